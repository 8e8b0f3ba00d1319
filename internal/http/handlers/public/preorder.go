package public

import (
	"strings"

	"github.com/orchard-next/internal/http/handlers/shared"
	"github.com/orchard-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ListPreOrders 查询当前用户的预购单列表
func (h *Handler) ListPreOrders(c *gin.Context) {
	uid, ok := shared.CurrentUserID(c)
	if !ok {
		return
	}
	page, pageSize := shared.ParsePagination(c)
	status := strings.TrimSpace(c.Query("status"))
	items, total, err := h.PreOrderService.ListUserPreOrders(uid, status, page, pageSize)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, items, response.NewPagination(page, pageSize, total))
}

// GetPreOrder 查询预购单详情，排队中的订单附带队列位置
func (h *Handler) GetPreOrder(c *gin.Context) {
	uid, ok := shared.CurrentUserID(c)
	if !ok {
		return
	}
	preOrderNo := strings.TrimSpace(c.Param("pre_order_no"))
	if preOrderNo == "" {
		response.BadRequest(c, "pre_order_no is required")
		return
	}
	preOrder, err := h.PreOrderService.GetUserPreOrder(uid, preOrderNo)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	position, err := h.PreOrderService.GetQueuePosition(preOrder)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{
		"pre_order":      preOrder,
		"queue_position": position,
	})
}

// CancelPreOrder 用户侧取消请求。
// 定金支付后订单即进入配货流水线，自助取消一律拒绝。
func (h *Handler) CancelPreOrder(c *gin.Context) {
	uid, ok := shared.CurrentUserID(c)
	if !ok {
		return
	}
	preOrderNo := strings.TrimSpace(c.Param("pre_order_no"))
	if preOrderNo == "" {
		response.BadRequest(c, "pre_order_no is required")
		return
	}
	if err := h.PreOrderService.CancelUserPreOrder(uid, preOrderNo); err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, nil)
}

// CreateRemainingIntentRequest 创建尾款意向请求
type CreateRemainingIntentRequest struct {
	PreOrderID uint `json:"pre_order_id" binding:"required"`
}

// CreateRemainingIntent 为已配货订单创建尾款支付意向
func (h *Handler) CreateRemainingIntent(c *gin.Context) {
	uid, ok := shared.CurrentUserID(c)
	if !ok {
		return
	}
	var req CreateRemainingIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondError(c, response.CodeBadRequest, "invalid request", err)
		return
	}
	intent, err := h.RemainingService.CreateRemainingIntent(uid, req.PreOrderID, c.ClientIP())
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, intent)
}
