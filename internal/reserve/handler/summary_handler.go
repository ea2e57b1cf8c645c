package handler

import (
	"github.com/bitfantasy/nimo-reserve/internal/reserve/service"
	"github.com/gin-gonic/gin"
)

// SummaryHandler 物料汇总处理器（只读）
type SummaryHandler struct {
	svc *service.SummaryService
}

func NewSummaryHandler(svc *service.SummaryService) *SummaryHandler {
	return &SummaryHandler{svc: svc}
}

// Summarize 订单物料汇总
// GET /api/v1/reserve/orders/:id/materials
func (h *SummaryHandler) Summarize(c *gin.Context) {
	rows, err := h.svc.Summarize(c.Request.Context(), c.Param("id"))
	if err != nil {
		if service.IsValidationError(err) {
			BadRequest(c, err.Error())
			return
		}
		InternalError(c, "生成物料汇总失败: "+err.Error())
		return
	}
	Success(c, rows)
}
