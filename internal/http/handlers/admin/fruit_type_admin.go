package admin

import (
	"strings"
	"time"

	"github.com/orchard-next/internal/http/handlers/shared"
	"github.com/orchard-next/internal/http/response"
	"github.com/orchard-next/internal/repository"
	"github.com/orchard-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CreateFruitTypeRequest 创建品类请求
type CreateFruitTypeRequest struct {
	Slug               string    `json:"slug" binding:"required"`
	Name               string    `json:"name" binding:"required"`
	Description        string    `json:"description"`
	EstimatedPrice     string    `json:"estimated_price" binding:"required"`
	MinOrderKg         int       `json:"min_order_kg"`
	MaxOrderKg         int       `json:"max_order_kg" binding:"required"`
	EstimatedHarvestAt time.Time `json:"estimated_harvest_at" binding:"required"`
	AllowPreOrder      bool      `json:"allow_pre_order"`
}

// UpdateFruitTypeRequest 更新品类请求，未提供的字段不修改
type UpdateFruitTypeRequest struct {
	Name               *string    `json:"name"`
	Description        *string    `json:"description"`
	EstimatedPrice     *string    `json:"estimated_price"`
	MinOrderKg         *int       `json:"min_order_kg"`
	MaxOrderKg         *int       `json:"max_order_kg"`
	EstimatedHarvestAt *time.Time `json:"estimated_harvest_at"`
	AllowPreOrder      *bool      `json:"allow_pre_order"`
	Status             *string    `json:"status"`
}

// CreateFruitType 创建品类
func (h *Handler) CreateFruitType(c *gin.Context) {
	var req CreateFruitTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondError(c, response.CodeBadRequest, "invalid request", err)
		return
	}
	price, err := decimal.NewFromString(req.EstimatedPrice)
	if err != nil {
		response.BadRequest(c, "estimated_price must be a decimal string")
		return
	}
	fruitType, err := h.FruitTypeService.CreateFruitType(service.CreateFruitTypeInput{
		Slug:               req.Slug,
		Name:               req.Name,
		Description:        req.Description,
		EstimatedPrice:     price,
		MinOrderKg:         req.MinOrderKg,
		MaxOrderKg:         req.MaxOrderKg,
		EstimatedHarvestAt: req.EstimatedHarvestAt,
		AllowPreOrder:      req.AllowPreOrder,
	})
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, fruitType)
}

// UpdateFruitType 更新品类。
// 改价只影响之后创建的支付意向。
func (h *Handler) UpdateFruitType(c *gin.Context) {
	id, ok := shared.ParseUintParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid fruit type id")
		return
	}
	var req UpdateFruitTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondError(c, response.CodeBadRequest, "invalid request", err)
		return
	}
	input := service.UpdateFruitTypeInput{
		Name:               req.Name,
		Description:        req.Description,
		MinOrderKg:         req.MinOrderKg,
		MaxOrderKg:         req.MaxOrderKg,
		EstimatedHarvestAt: req.EstimatedHarvestAt,
		AllowPreOrder:      req.AllowPreOrder,
		Status:             req.Status,
	}
	if req.EstimatedPrice != nil {
		price, err := decimal.NewFromString(*req.EstimatedPrice)
		if err != nil {
			response.BadRequest(c, "estimated_price must be a decimal string")
			return
		}
		input.EstimatedPrice = &price
	}
	fruitType, err := h.FruitTypeService.UpdateFruitType(id, input)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, fruitType)
}

// ListFruitTypes 管理端品类列表
func (h *Handler) ListFruitTypes(c *gin.Context) {
	page, pageSize := shared.ParsePagination(c)
	filter := repository.FruitTypeListFilter{
		Status:   strings.TrimSpace(c.Query("status")),
		Keyword:  strings.TrimSpace(c.Query("keyword")),
		Page:     page,
		PageSize: pageSize,
	}
	items, total, err := h.FruitTypeService.ListAdminFruitTypes(filter)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, items, response.NewPagination(page, pageSize, total))
}

// GetFruitType 管理端品类详情
func (h *Handler) GetFruitType(c *gin.Context) {
	id, ok := shared.ParseUintParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid fruit type id")
		return
	}
	fruitType, err := h.FruitTypeService.GetFruitType(id)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, fruitType)
}
