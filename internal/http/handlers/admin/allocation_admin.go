package admin

import (
	"github.com/orchard-next/internal/http/handlers/shared"
	"github.com/orchard-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// RunAllocationRequest 触发配货请求
type RunAllocationRequest struct {
	FruitTypeID uint `json:"fruit_type_id" binding:"required"`
}

// RunAllocation 对指定品类执行一轮 FIFO 配货。
// 同一品类同一时刻只允许一轮配货在执行。
func (h *Handler) RunAllocation(c *gin.Context) {
	var req RunAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondError(c, response.CodeBadRequest, "invalid request", err)
		return
	}
	result, err := h.AllocationService.RunAllocation(c.Request.Context(), req.FruitTypeID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	h.DemandService.InvalidateOverviewCache(c.Request.Context())
	response.Success(c, result)
}

// GetDemandOverview 需求/库存总览看板
func (h *Handler) GetDemandOverview(c *gin.Context) {
	items, err := h.DemandService.GetDemandOverview(c.Request.Context())
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, items)
}

// GetDemandByFruitType 单一品类的需求/库存明细
func (h *Handler) GetDemandByFruitType(c *gin.Context) {
	id, ok := shared.ParseUintParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid fruit type id")
		return
	}
	item, err := h.DemandService.GetDemandByFruitType(id)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, item)
}
