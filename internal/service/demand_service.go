package service

import (
	"context"
	"time"

	"github.com/orchard-next/internal/cache"
	"github.com/orchard-next/internal/constants"
	"github.com/orchard-next/internal/logger"
	"github.com/orchard-next/internal/repository"
)

const (
	demandOverviewCacheKey = "demand:overview"
	demandOverviewCacheTTL = 30 * time.Second
)

// DemandService 需求看板服务。
// 给管理员回答"还缺多少货"：按品类汇总在途需求、到货与分配。
type DemandService struct {
	preOrderRepo   repository.PreOrderRepository
	stockRepo      repository.StockRepository
	allocationRepo repository.AllocationRepository
	fruitTypeRepo  repository.FruitTypeRepository
}

// NewDemandService 创建需求看板服务
func NewDemandService(preOrderRepo repository.PreOrderRepository, stockRepo repository.StockRepository, allocationRepo repository.AllocationRepository, fruitTypeRepo repository.FruitTypeRepository) *DemandService {
	return &DemandService{
		preOrderRepo:   preOrderRepo,
		stockRepo:      stockRepo,
		allocationRepo: allocationRepo,
		fruitTypeRepo:  fruitTypeRepo,
	}
}

// DemandOverviewItem 单品类需求概览
type DemandOverviewItem struct {
	FruitTypeID     uint   `json:"fruit_type_id"`
	FruitTypeName   string `json:"fruit_type_name"`
	FruitTypeStatus string `json:"fruit_type_status"`
	DemandKg        int    `json:"demand_kg"`
	PreOrderCount   int    `json:"pre_order_count"`
	ReceivedKg      int    `json:"received_kg"`
	AllocatedKg     int    `json:"allocated_kg"`
	AvailableKg     int    `json:"available_kg"`
	ShortfallKg     int    `json:"shortfall_kg"`
	FullyReceived   bool   `json:"fully_received"`
}

// GetDemandOverview 全品类需求概览，短 TTL 缓存
func (s *DemandService) GetDemandOverview(ctx context.Context) ([]DemandOverviewItem, error) {
	var cached []DemandOverviewItem
	if hit, err := cache.GetJSON(ctx, demandOverviewCacheKey, &cached); err == nil && hit {
		return cached, nil
	} else if err != nil {
		logger.Debugw("demand_overview_cache_read_failed", "error", err)
	}

	items, err := s.buildOverview()
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, demandOverviewCacheKey, items, demandOverviewCacheTTL); err != nil {
		logger.Debugw("demand_overview_cache_write_failed", "error", err)
	}
	return items, nil
}

// GetDemandByFruitType 单品类需求概览，不走缓存
func (s *DemandService) GetDemandByFruitType(fruitTypeID uint) (*DemandOverviewItem, error) {
	fruitType, err := s.fruitTypeRepo.GetByID(fruitTypeID)
	if err != nil {
		return nil, err
	}
	if fruitType == nil {
		return nil, ErrFruitTypeNotFound
	}

	demand, err := s.preOrderRepo.SumQuantityByStatuses(fruitTypeID, constants.DemandStatuses())
	if err != nil {
		return nil, err
	}
	count, err := s.preOrderRepo.CountByFruitTypeAndStatuses(fruitTypeID, constants.DemandStatuses())
	if err != nil {
		return nil, err
	}
	received := 0
	if stock, err := s.stockRepo.GetByFruitType(fruitTypeID); err != nil {
		return nil, err
	} else if stock != nil {
		received = stock.ReceivedKg
	}
	allocated := 0
	if allocation, err := s.allocationRepo.GetByFruitType(fruitTypeID); err != nil {
		return nil, err
	} else if allocation != nil {
		allocated = allocation.AllocatedKg
	}

	item := &DemandOverviewItem{
		FruitTypeID:     fruitTypeID,
		FruitTypeName:   fruitType.Name,
		FruitTypeStatus: fruitType.Status,
		DemandKg:        demand,
		PreOrderCount:   int(count),
		ReceivedKg:      received,
		AllocatedKg:     allocated,
	}
	finishOverviewItem(item)
	return item, nil
}

// InvalidateOverviewCache 写路径变更台账后主动失效缓存
func (s *DemandService) InvalidateOverviewCache(ctx context.Context) {
	if err := cache.Del(ctx, demandOverviewCacheKey); err != nil {
		logger.Debugw("demand_overview_cache_invalidate_failed", "error", err)
	}
}

func (s *DemandService) buildOverview() ([]DemandOverviewItem, error) {
	rows, err := s.preOrderRepo.AggregateDemand(constants.DemandStatuses())
	if err != nil {
		return nil, err
	}
	stocks, err := s.stockRepo.ListAll()
	if err != nil {
		return nil, err
	}
	allocations, err := s.allocationRepo.ListAll()
	if err != nil {
		return nil, err
	}

	byType := make(map[uint]*DemandOverviewItem)
	ensure := func(fruitTypeID uint) *DemandOverviewItem {
		if item, ok := byType[fruitTypeID]; ok {
			return item
		}
		item := &DemandOverviewItem{FruitTypeID: fruitTypeID}
		byType[fruitTypeID] = item
		return item
	}
	order := make([]uint, 0, len(rows))
	for _, row := range rows {
		item := ensure(row.FruitTypeID)
		item.DemandKg = row.TotalKg
		item.PreOrderCount = row.Count
		order = append(order, row.FruitTypeID)
	}
	for _, stock := range stocks {
		item, ok := byType[stock.FruitTypeID]
		if !ok {
			item = ensure(stock.FruitTypeID)
			order = append(order, stock.FruitTypeID)
		}
		item.ReceivedKg = stock.ReceivedKg
	}
	for _, allocation := range allocations {
		if item, ok := byType[allocation.FruitTypeID]; ok {
			item.AllocatedKg = allocation.AllocatedKg
		}
	}

	items := make([]DemandOverviewItem, 0, len(order))
	for _, fruitTypeID := range order {
		item := byType[fruitTypeID]
		if fruitType, err := s.fruitTypeRepo.GetByID(fruitTypeID); err == nil && fruitType != nil {
			item.FruitTypeName = fruitType.Name
			item.FruitTypeStatus = fruitType.Status
		}
		finishOverviewItem(item)
		items = append(items, *item)
	}
	return items, nil
}

func finishOverviewItem(item *DemandOverviewItem) {
	item.AvailableKg = item.ReceivedKg - item.AllocatedKg
	if item.AvailableKg < 0 {
		item.AvailableKg = 0
	}
	// 仍缺的货 = 需求 - 未分配库存
	item.ShortfallKg = item.DemandKg - item.AvailableKg
	if item.ShortfallKg < 0 {
		item.ShortfallKg = 0
	}
	item.FullyReceived = item.ReceivedKg >= item.DemandKg
}
