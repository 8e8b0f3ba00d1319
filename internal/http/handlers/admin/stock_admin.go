package admin

import (
	"time"

	"github.com/orchard-next/internal/http/handlers/shared"
	"github.com/orchard-next/internal/http/response"
	"github.com/orchard-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateHarvestBatchRequest 创建采收批次请求
type CreateHarvestBatchRequest struct {
	FruitTypeID uint       `json:"fruit_type_id" binding:"required"`
	PlannedKg   int        `json:"planned_kg" binding:"required"`
	ArrivedAt   *time.Time `json:"arrived_at"`
}

// RecordReceiveRequest 到货登记请求
type RecordReceiveRequest struct {
	FruitTypeID uint   `json:"fruit_type_id" binding:"required"`
	QuantityKg  int    `json:"quantity_kg" binding:"required"`
	BatchID     uint   `json:"batch_id"`
	Note        string `json:"note"`
	Confirmed   bool   `json:"confirmed"`
}

// CreateHarvestBatch 创建采收批次
func (h *Handler) CreateHarvestBatch(c *gin.Context) {
	var req CreateHarvestBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondError(c, response.CodeBadRequest, "invalid request", err)
		return
	}
	arrivedAt := time.Now()
	if req.ArrivedAt != nil {
		arrivedAt = *req.ArrivedAt
	}
	batch, err := h.StockService.CreateHarvestBatch(service.CreateHarvestBatchInput{
		FruitTypeID: req.FruitTypeID,
		PlannedKg:   req.PlannedKg,
		ArrivedAt:   arrivedAt,
	})
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, batch)
}

// ListHarvestBatches 采收批次列表
func (h *Handler) ListHarvestBatches(c *gin.Context) {
	fruitTypeID := shared.ParseUintQuery(c, "fruit_type_id")
	page, pageSize := shared.ParsePagination(c)
	items, total, err := h.StockService.ListHarvestBatches(fruitTypeID, page, pageSize)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, items, response.NewPagination(page, pageSize, total))
}

// RecordReceive 登记一笔到货。
// 超出在途需求上限的数量会被整笔拒绝，需要管理员拆分后重新登记。
func (h *Handler) RecordReceive(c *gin.Context) {
	adminID, ok := shared.CurrentAdminID(c)
	if !ok {
		return
	}
	var req RecordReceiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondError(c, response.CodeBadRequest, "invalid request", err)
		return
	}
	receive, err := h.StockService.RecordReceive(c.Request.Context(), service.RecordReceiveInput{
		FruitTypeID: req.FruitTypeID,
		QuantityKg:  req.QuantityKg,
		BatchID:     req.BatchID,
		ReceivedBy:  adminID,
		Note:        req.Note,
		Confirmed:   req.Confirmed,
	})
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, receive)
}

// ListReceives 到货流水
func (h *Handler) ListReceives(c *gin.Context) {
	fruitTypeID := shared.ParseUintQuery(c, "fruit_type_id")
	page, pageSize := shared.ParsePagination(c)
	items, total, err := h.StockService.ListReceives(fruitTypeID, page, pageSize)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, items, response.NewPagination(page, pageSize, total))
}
