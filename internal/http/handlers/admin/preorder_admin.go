package admin

import (
	"strings"

	"github.com/orchard-next/internal/http/handlers/shared"
	"github.com/orchard-next/internal/http/response"
	"github.com/orchard-next/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListPreOrders 管理端预购单列表
func (h *Handler) ListPreOrders(c *gin.Context) {
	page, pageSize := shared.ParsePagination(c)
	filter := repository.PreOrderListFilter{
		UserID:      shared.ParseUintQuery(c, "user_id"),
		FruitTypeID: shared.ParseUintQuery(c, "fruit_type_id"),
		Status:      strings.TrimSpace(c.Query("status")),
		PreOrderNo:  strings.TrimSpace(c.Query("pre_order_no")),
		Page:        page,
		PageSize:    pageSize,
	}
	items, total, err := h.PreOrderService.ListAdminPreOrders(filter)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, items, response.NewPagination(page, pageSize, total))
}

// GetPreOrder 管理端预购单详情
func (h *Handler) GetPreOrder(c *gin.Context) {
	id, ok := shared.ParseUintParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid pre-order id")
		return
	}
	preOrder, err := h.PreOrderService.GetAdminPreOrder(id)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, preOrder)
}

// CompleteDelivery 标记预购单完成交付
func (h *Handler) CompleteDelivery(c *gin.Context) {
	id, ok := shared.ParseUintParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid pre-order id")
		return
	}
	preOrder, err := h.PreOrderService.CompleteDelivery(id)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, preOrder)
}

// MarkRefund 管理端标记退款，释放已占用的分配份额
func (h *Handler) MarkRefund(c *gin.Context) {
	id, ok := shared.ParseUintParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid pre-order id")
		return
	}
	preOrder, err := h.PreOrderService.MarkRefund(c.Request.Context(), id)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	h.DemandService.InvalidateOverviewCache(c.Request.Context())
	response.Success(c, preOrder)
}
