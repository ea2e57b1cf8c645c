package handler

import (
	"context"
	"errors"
	"io"

	"github.com/bitfantasy/nimo-reserve/internal/reserve/entity"
	"github.com/bitfantasy/nimo-reserve/internal/reserve/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// AuditReader 储备清理审计读取接口
type AuditReader interface {
	ListByOrder(ctx context.Context, orderID string) ([]entity.ReserveReleaseLog, error)
}

// AllocationHandler 分配编排处理器
type AllocationHandler struct {
	svc   *service.AllocationService
	audit AuditReader
}

func NewAllocationHandler(svc *service.AllocationService, audit AuditReader) *AllocationHandler {
	return &AllocationHandler{svc: svc, audit: audit}
}

// SubmitOrder 订单提交钩子
// POST /api/v1/reserve/orders/:id/submit
func (h *AllocationHandler) SubmitOrder(c *gin.Context) {
	respondOutcome(c, h.svc.OnOrderSubmit(c.Request.Context(), c.Param("id")), "预留已登记")
}

// CancelOrder 订单取消钩子
// POST /api/v1/reserve/orders/:id/cancel
func (h *AllocationHandler) CancelOrder(c *gin.Context) {
	respondOutcome(c, h.svc.OnOrderCancel(c.Request.Context(), c.Param("id")), "分配已冲销")
}

type consumeRequest struct {
	ItemCode string          `json:"item_code" binding:"required"`
	Qty      decimal.Decimal `json:"qty" binding:"required"`
}

// Consume 实物消耗钩子（投产/调拨）
// POST /api/v1/reserve/orders/:id/consume
func (h *AllocationHandler) Consume(c *gin.Context) {
	var req consumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	err := h.svc.OnPhysicalConsumption(c.Request.Context(), c.Param("id"), req.ItemCode, req.Qty)
	respondOutcome(c, err, "消耗已入账")
}

// ReverseConsumption 消耗回退钩子
// POST /api/v1/reserve/orders/:id/consume/reverse
func (h *AllocationHandler) ReverseConsumption(c *gin.Context) {
	var req consumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	err := h.svc.OnConsumptionReversed(c.Request.Context(), c.Param("id"), req.ItemCode, req.Qty)
	respondOutcome(c, err, "消耗已回退")
}

type useLongTermRequest struct {
	Lines []service.AllocationLine `json:"lines" binding:"required"`
}

// UseLongTermReserve 显式长期储备分配（整批成败）
// POST /api/v1/reserve/orders/:id/use-long-term
func (h *AllocationHandler) UseLongTermReserve(c *gin.Context) {
	var req useLongTermRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	err := h.svc.UseLongTermReserveBulk(c.Request.Context(), c.Param("id"), req.Lines)
	respondOutcome(c, err, "长期储备分配完成")
}

type clearReservesRequest struct {
	Reason string `json:"reason"`
}

// ClearReserves 手工清理剩余储备（落审计）
// POST /api/v1/reserve/orders/:id/clear-reserves
func (h *AllocationHandler) ClearReserves(c *gin.Context) {
	var req clearReservesRequest
	// 空请求体等价于无参清理
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	cleared, err := h.svc.ClearRemainingReserves(c.Request.Context(), c.Param("id"), req.Reason, GetUserID(c))
	if err != nil {
		respondOutcome(c, err, "")
		return
	}
	Success(c, gin.H{"success": true, "cleared": cleared})
}

// ListReleaseLogs 某订单的清理审计记录
// GET /api/v1/reserve/orders/:id/release-logs
func (h *AllocationHandler) ListReleaseLogs(c *gin.Context) {
	logs, err := h.audit.ListByOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, "查询审计记录失败: "+err.Error())
		return
	}
	Success(c, logs)
}
