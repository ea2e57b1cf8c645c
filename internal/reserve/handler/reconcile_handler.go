package handler

import (
	"github.com/bitfantasy/nimo-reserve/internal/reserve/service"
	"github.com/gin-gonic/gin"
)

// ReconcileHandler 批量作业处理器
type ReconcileHandler struct {
	svc *service.ReconcileService
}

func NewReconcileHandler(svc *service.ReconcileService) *ReconcileHandler {
	return &ReconcileHandler{svc: svc}
}

// ReconcileAll 全量预留重算
// POST /api/v1/reserve/jobs/reconcile?dry_run=true
func (h *ReconcileHandler) ReconcileAll(c *gin.Context) {
	dryRun := c.Query("dry_run") == "true"
	summary, err := h.svc.ReconcileAll(c.Request.Context(), dryRun)
	if err != nil {
		InternalError(c, "批量校正失败: "+err.Error())
		return
	}
	Success(c, summary)
}

// NormalizeAll 全台账数量归一化
// POST /api/v1/reserve/jobs/normalize
func (h *ReconcileHandler) NormalizeAll(c *gin.Context) {
	summary, err := h.svc.NormalizeAllQuantities(c.Request.Context())
	if err != nil {
		InternalError(c, "数量归一化失败: "+err.Error())
		return
	}
	Success(c, summary)
}
