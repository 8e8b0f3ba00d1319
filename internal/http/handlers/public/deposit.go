package public

import (
	"strings"

	"github.com/orchard-next/internal/http/handlers/shared"
	"github.com/orchard-next/internal/http/response"
	"github.com/orchard-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateDepositIntentRequest 创建定金意向请求
type CreateDepositIntentRequest struct {
	FruitTypeID uint `json:"fruit_type_id" binding:"required"`
	QuantityKg  int  `json:"quantity_kg" binding:"required"`
}

// CreateDepositIntent 创建定金支付意向，返回收银台跳转链接
func (h *Handler) CreateDepositIntent(c *gin.Context) {
	uid, ok := shared.CurrentUserID(c)
	if !ok {
		return
	}
	var req CreateDepositIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondError(c, response.CodeBadRequest, "invalid request", err)
		return
	}
	intent, err := h.DepositService.CreateDepositIntent(service.CreateDepositIntentInput{
		UserID:      uid,
		FruitTypeID: req.FruitTypeID,
		QuantityKg:  req.QuantityKg,
		ClientIP:    c.ClientIP(),
	})
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, intent)
}

// GetDepositIntent 查询定金意向状态
func (h *Handler) GetDepositIntent(c *gin.Context) {
	uid, ok := shared.CurrentUserID(c)
	if !ok {
		return
	}
	intentNo := strings.TrimSpace(c.Param("intent_no"))
	if intentNo == "" {
		response.BadRequest(c, "intent_no is required")
		return
	}
	intent, err := h.DepositService.GetDepositIntent(uid, intentNo)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, intent)
}

// ListDepositIntents 查询当前用户的定金意向列表
func (h *Handler) ListDepositIntents(c *gin.Context) {
	uid, ok := shared.CurrentUserID(c)
	if !ok {
		return
	}
	page, pageSize := shared.ParsePagination(c)
	items, total, err := h.DepositService.ListUserDepositIntents(uid, page, pageSize)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, items, response.NewPagination(page, pageSize, total))
}
