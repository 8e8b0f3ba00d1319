package service

import (
	"context"
	"strings"
	"time"

	"github.com/orchard-next/internal/cache"
	"github.com/orchard-next/internal/constants"
	"github.com/orchard-next/internal/logger"
	"github.com/orchard-next/internal/models"
	"github.com/orchard-next/internal/repository"

	"gorm.io/gorm"
)

// StockService 到货入库服务。
// 入库量封顶为未覆盖需求，超出部分整笔拒绝而不是截断。
type StockService struct {
	stockRepo      repository.StockRepository
	receiveRepo    repository.ReceiveRepository
	batchRepo      repository.HarvestBatchRepository
	allocationRepo repository.AllocationRepository
	preOrderRepo   repository.PreOrderRepository
	fruitTypeRepo  repository.FruitTypeRepository
	allocLock      *cache.AllocLock
}

// NewStockService 创建入库服务
func NewStockService(stockRepo repository.StockRepository, receiveRepo repository.ReceiveRepository, batchRepo repository.HarvestBatchRepository, allocationRepo repository.AllocationRepository, preOrderRepo repository.PreOrderRepository, fruitTypeRepo repository.FruitTypeRepository, allocLock *cache.AllocLock) *StockService {
	return &StockService{
		stockRepo:      stockRepo,
		receiveRepo:    receiveRepo,
		batchRepo:      batchRepo,
		allocationRepo: allocationRepo,
		preOrderRepo:   preOrderRepo,
		fruitTypeRepo:  fruitTypeRepo,
		allocLock:      allocLock,
	}
}

// CreateHarvestBatchInput 创建采收批次输入
type CreateHarvestBatchInput struct {
	FruitTypeID uint
	PlannedKg   int
	ArrivedAt   time.Time
}

// CreateHarvestBatch 创建采收批次
func (s *StockService) CreateHarvestBatch(input CreateHarvestBatchInput) (*models.HarvestBatch, error) {
	fruitType, err := s.fruitTypeRepo.GetByID(input.FruitTypeID)
	if err != nil {
		return nil, err
	}
	if fruitType == nil {
		return nil, ErrFruitTypeNotFound
	}
	if input.PlannedKg <= 0 {
		return nil, ErrReceiveInvalidQuantity
	}
	arrivedAt := input.ArrivedAt
	if arrivedAt.IsZero() {
		arrivedAt = time.Now()
	}
	batch := &models.HarvestBatch{
		BatchNo:     generateBatchNo(),
		FruitTypeID: input.FruitTypeID,
		PlannedKg:   input.PlannedKg,
		ArrivedAt:   arrivedAt,
	}
	if err := s.batchRepo.Create(batch); err != nil {
		return nil, err
	}
	logger.Infow("harvest_batch_created",
		"batch_no", batch.BatchNo,
		"fruit_type_id", batch.FruitTypeID,
		"planned_kg", batch.PlannedKg,
	)
	return batch, nil
}

// RecordReceiveInput 到货入库输入
type RecordReceiveInput struct {
	FruitTypeID uint
	QuantityKg  int
	BatchID     uint
	ReceivedBy  uint // 操作管理员ID
	Note        string
	Confirmed   bool // 必须显式确认，防止误触入账
}

// RecordReceive 登记一笔到货。
// 与配货共用品类互斥锁，保证需求上限校验期间台账不被并发修改。
func (s *StockService) RecordReceive(ctx context.Context, input RecordReceiveInput) (*models.PreOrderReceive, error) {
	if input.QuantityKg <= 0 {
		return nil, ErrReceiveInvalidQuantity
	}
	if !input.Confirmed {
		return nil, ErrReceiveNotConfirmed
	}
	fruitType, err := s.fruitTypeRepo.GetByID(input.FruitTypeID)
	if err != nil {
		return nil, err
	}
	if fruitType == nil {
		return nil, ErrFruitTypeNotFound
	}

	acquired, err := s.allocLock.TryAcquire(ctx, input.FruitTypeID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrAllocationBusy
	}
	defer s.allocLock.Release(ctx, input.FruitTypeID)

	demand, err := s.preOrderRepo.SumQuantityByStatuses(input.FruitTypeID, constants.DemandStatuses())
	if err != nil {
		return nil, err
	}
	received := 0
	if stock, err := s.stockRepo.GetByFruitType(input.FruitTypeID); err != nil {
		return nil, err
	} else if stock != nil {
		received = stock.ReceivedKg
	}
	allocated := 0
	if allocation, err := s.allocationRepo.GetByFruitType(input.FruitTypeID); err != nil {
		return nil, err
	} else if allocation != nil {
		allocated = allocation.AllocatedKg
	}

	// 可继续入库量 = 在途需求 - 尚未分配的库存
	remainingToReceive := demand - (received - allocated)
	if remainingToReceive < 0 {
		remainingToReceive = 0
	}
	if input.QuantityKg > remainingToReceive {
		logger.Warnw("receive_rejected_exceeds_demand",
			"fruit_type_id", input.FruitTypeID,
			"quantity_kg", input.QuantityKg,
			"remaining_to_receive", remainingToReceive,
		)
		return nil, ErrReceiveExceedsDemand
	}

	var batchID *uint
	if input.BatchID > 0 {
		batch, err := s.batchRepo.GetByID(input.BatchID)
		if err != nil {
			return nil, err
		}
		if batch == nil {
			return nil, ErrBatchNotFound
		}
		if batch.FruitTypeID != input.FruitTypeID {
			return nil, ErrBatchFruitTypeMismatch
		}
		booked, err := s.receiveRepo.SumByBatch(batch.ID)
		if err != nil {
			return nil, err
		}
		if booked+input.QuantityKg > batch.PlannedKg {
			return nil, ErrReceiveExceedsBatch
		}
		batchID = &batch.ID
	}

	receive := &models.PreOrderReceive{
		FruitTypeID: input.FruitTypeID,
		BatchID:     batchID,
		QuantityKg:  input.QuantityKg,
		ReceivedBy:  input.ReceivedBy,
		Note:        strings.TrimSpace(input.Note),
	}
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.receiveRepo.WithTx(tx).Create(receive); err != nil {
			return err
		}
		if err := s.stockRepo.WithTx(tx).AddReceived(input.FruitTypeID, input.QuantityKg); err != nil {
			return err
		}
		if batchID != nil {
			return s.batchRepo.WithTx(tx).AddReceived(*batchID, input.QuantityKg)
		}
		return nil
	})
	if err != nil {
		logger.Errorw("receive_record_failed", "fruit_type_id", input.FruitTypeID, "error", err)
		return nil, err
	}

	logger.Infow("receive_recorded",
		"fruit_type_id", input.FruitTypeID,
		"quantity_kg", input.QuantityKg,
		"batch_id", input.BatchID,
		"received_by", receive.ReceivedBy,
	)
	return receive, nil
}

// ListReceives 查询品类的到货流水
func (s *StockService) ListReceives(fruitTypeID uint, page, pageSize int) ([]models.PreOrderReceive, int64, error) {
	return s.receiveRepo.ListByFruitType(fruitTypeID, page, pageSize)
}

// ListHarvestBatches 查询采收批次
func (s *StockService) ListHarvestBatches(fruitTypeID uint, page, pageSize int) ([]models.HarvestBatch, int64, error) {
	return s.batchRepo.ListByFruitType(fruitTypeID, page, pageSize)
}
