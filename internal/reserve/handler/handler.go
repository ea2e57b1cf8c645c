package handler

import (
	"github.com/bitfantasy/nimo-reserve/internal/reserve/service"
	"github.com/gin-gonic/gin"
)

// Handlers 预留子系统处理器集合
type Handlers struct {
	Allocation *AllocationHandler
	Summary    *SummaryHandler
	Reconcile  *ReconcileHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(
	allocationSvc *service.AllocationService,
	summarySvc *service.SummaryService,
	reconcileSvc *service.ReconcileService,
	auditReader AuditReader,
) *Handlers {
	return &Handlers{
		Allocation: NewAllocationHandler(allocationSvc, auditReader),
		Summary:    NewSummaryHandler(summarySvc),
		Reconcile:  NewReconcileHandler(reconcileSvc),
	}
}

// RegisterRoutes 挂载预留子系统路由
func (h *Handlers) RegisterRoutes(api *gin.RouterGroup) {
	orders := api.Group("/orders")
	{
		orders.POST("/:id/submit", h.Allocation.SubmitOrder)
		orders.POST("/:id/cancel", h.Allocation.CancelOrder)
		orders.POST("/:id/consume", h.Allocation.Consume)
		orders.POST("/:id/consume/reverse", h.Allocation.ReverseConsumption)
		orders.POST("/:id/use-long-term", h.Allocation.UseLongTermReserve)
		orders.POST("/:id/clear-reserves", h.Allocation.ClearReserves)
		orders.GET("/:id/release-logs", h.Allocation.ListReleaseLogs)
		orders.GET("/:id/materials", h.Summary.Summarize)
	}
	jobs := api.Group("/jobs")
	{
		jobs.POST("/reconcile", h.Reconcile.ReconcileAll)
		jobs.POST("/normalize", h.Reconcile.NormalizeAll)
	}
}

// === 响应辅助函数 ===

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// respondOutcome 白名单操作统一回 {success, message}
func respondOutcome(c *gin.Context, err error, okMessage string) {
	if err == nil {
		Success(c, gin.H{"success": true, "message": okMessage})
		return
	}
	if service.IsValidationError(err) {
		c.JSON(400, Response{
			Code:    40000,
			Message: err.Error(),
			Data:    gin.H{"success": false, "message": err.Error()},
		})
		return
	}
	InternalError(c, err.Error())
}

// GetUserID 从认证上下文取用户ID
func GetUserID(c *gin.Context) string {
	if userID, exists := c.Get("user_id"); exists {
		if id, ok := userID.(string); ok {
			return id
		}
	}
	return ""
}
