package public

import (
	"strings"

	"github.com/orchard-next/internal/http/handlers/shared"
	"github.com/orchard-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ListFruitTypes 前台品类列表。
// 只返回上架且开放预订的品类，按预计采收时间排序。
func (h *Handler) ListFruitTypes(c *gin.Context) {
	page, pageSize := shared.ParsePagination(c)
	items, total, err := h.FruitTypeService.ListPublicFruitTypes(page, pageSize)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, items, response.NewPagination(page, pageSize, total))
}

// GetFruitType 根据 slug 获取品类详情
func (h *Handler) GetFruitType(c *gin.Context) {
	slug := strings.TrimSpace(c.Param("slug"))
	if slug == "" {
		response.BadRequest(c, "slug is required")
		return
	}
	fruitType, err := h.FruitTypeService.GetFruitTypeBySlug(slug)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, fruitType)
}
