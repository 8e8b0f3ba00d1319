package service

import (
	"context"
	"time"

	"github.com/orchard-next/internal/cache"
	"github.com/orchard-next/internal/constants"
	"github.com/orchard-next/internal/logger"
	"github.com/orchard-next/internal/models"
	"github.com/orchard-next/internal/queue"
	"github.com/orchard-next/internal/repository"

	"gorm.io/gorm"
)

// AllocationService 配货服务。
// 配货由管理员显式触发，按付款先后顺序遍历排队订单，
// 顺延段优先于首次排队段；队头装不下时整体停止，不跳单。
type AllocationService struct {
	preOrderRepo        repository.PreOrderRepository
	stockRepo           repository.StockRepository
	allocationRepo      repository.AllocationRepository
	fruitTypeRepo       repository.FruitTypeRepository
	notificationService *NotificationService
	queueClient         *queue.Client
	allocLock           *cache.AllocLock
	remainingDays       int
}

// NewAllocationService 创建配货服务
func NewAllocationService(preOrderRepo repository.PreOrderRepository, stockRepo repository.StockRepository, allocationRepo repository.AllocationRepository, fruitTypeRepo repository.FruitTypeRepository, notificationService *NotificationService, queueClient *queue.Client, allocLock *cache.AllocLock, remainingDays int) *AllocationService {
	if remainingDays <= 0 {
		remainingDays = constants.DefaultRemainingPaymentDays
	}
	return &AllocationService{
		preOrderRepo:        preOrderRepo,
		stockRepo:           stockRepo,
		allocationRepo:      allocationRepo,
		fruitTypeRepo:       fruitTypeRepo,
		notificationService: notificationService,
		queueClient:         queueClient,
		allocLock:           allocLock,
		remainingDays:       remainingDays,
	}
}

// AllocationResult 单轮配货结果
type AllocationResult struct {
	FruitTypeID       uint   `json:"fruit_type_id"`
	AvailableKgBefore int    `json:"available_kg_before"`
	AvailableKgAfter  int    `json:"available_kg_after"`
	PromotedCount     int    `json:"promoted_count"`
	PromotedKg        int    `json:"promoted_kg"`
	DeferredCount     int    `json:"deferred_count"`
	FruitTypeClosed   bool   `json:"fruit_type_closed"`
	PromotedIDs       []uint `json:"-"`
	DeferredIDs       []uint `json:"-"`
}

// RunAllocation 对单个品类执行一轮配货。
// 同一品类同一时刻只允许一轮在跑，拿不到锁立即失败。
func (s *AllocationService) RunAllocation(ctx context.Context, fruitTypeID uint) (*AllocationResult, error) {
	fruitType, err := s.fruitTypeRepo.GetByID(fruitTypeID)
	if err != nil {
		return nil, err
	}
	if fruitType == nil {
		return nil, ErrFruitTypeNotFound
	}

	acquired, err := s.allocLock.TryAcquire(ctx, fruitTypeID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrAllocationBusy
	}
	defer s.allocLock.Release(ctx, fruitTypeID)

	now := time.Now()
	result := &AllocationResult{FruitTypeID: fruitTypeID}

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		preOrderRepo := s.preOrderRepo.WithTx(tx)

		received := 0
		if stock, err := s.stockRepo.WithTx(tx).GetByFruitType(fruitTypeID); err != nil {
			return err
		} else if stock != nil {
			received = stock.ReceivedKg
		}
		if received <= 0 {
			return ErrNothingToAllocate
		}
		allocated, err := preOrderRepo.SumQuantityByStatuses(fruitTypeID, constants.AllocatedStatuses())
		if err != nil {
			return err
		}
		available := received - allocated
		if available <= 0 {
			logger.Warnw("allocation_no_free_stock",
				"fruit_type_id", fruitTypeID,
				"received_kg", received,
				"allocated_kg", allocated,
			)
			return ErrNoStockAvailable
		}
		result.AvailableKgBefore = available

		// 顺延段排在首次排队段之前
		deferred, err := preOrderRepo.ListQueueSegment(fruitTypeID, constants.PreOrderStatusWaitingNextBatch)
		if err != nil {
			return err
		}
		waiting, err := preOrderRepo.ListQueueSegment(fruitTypeID, constants.PreOrderStatusWaitingAllocation)
		if err != nil {
			return err
		}
		lineup := append(deferred, waiting...)

		for _, preOrder := range lineup {
			// 库存恰好用尽：直接收尾，后面的订单保持原状
			if available == 0 {
				break
			}
			if preOrder.QuantityKg > available {
				// 队头装不下：整体停止。首次排队的队头转入顺延段，
				// 其余订单保持原状，即使更小的单能装下也不跳单。
				if preOrder.Status == constants.PreOrderStatusWaitingAllocation {
					if err := preOrderRepo.Update(preOrder.ID, map[string]interface{}{
						"status": constants.PreOrderStatusWaitingNextBatch,
					}); err != nil {
						return err
					}
					result.DeferredCount++
					result.DeferredIDs = append(result.DeferredIDs, preOrder.ID)
				}
				break
			}
			if err := preOrderRepo.Update(preOrder.ID, map[string]interface{}{
				"status":       constants.PreOrderStatusAllocatedWaitingPayment,
				"allocated_at": now,
			}); err != nil {
				return err
			}
			available -= preOrder.QuantityKg
			result.PromotedCount++
			result.PromotedKg += preOrder.QuantityKg
			result.PromotedIDs = append(result.PromotedIDs, preOrder.ID)
		}
		result.AvailableKgAfter = available

		// 台账整表重算，不做增量累加
		totalAllocated, err := preOrderRepo.SumQuantityByStatuses(fruitTypeID, constants.AllocatedStatuses())
		if err != nil {
			return err
		}
		if err := s.allocationRepo.WithTx(tx).SetAllocated(fruitTypeID, totalAllocated); err != nil {
			return err
		}

		demand, err := preOrderRepo.SumQuantityByStatuses(fruitTypeID, constants.DemandStatuses())
		if err != nil {
			return err
		}
		if demand == 0 {
			if err := s.fruitTypeRepo.WithTx(tx).UpdateStatus(fruitTypeID, constants.FruitTypeStatusInactive); err != nil {
				return err
			}
			result.FruitTypeClosed = true
		}
		return nil
	})
	if err != nil {
		logger.Errorw("allocation_run_failed", "fruit_type_id", fruitTypeID, "error", err)
		return nil, err
	}

	// 事务提交后再发通知与超时任务，避免回滚后发出假消息
	remainingDeadline := time.Duration(s.remainingDays) * 24 * time.Hour
	for _, preOrderID := range result.PromotedIDs {
		s.notificationService.Enqueue(preOrderID, constants.NotifyEventAllocated)
		if err := s.queueClient.EnqueueRemainingTimeoutCancel(queue.RemainingTimeoutPayload{
			PreOrderID: preOrderID,
		}, remainingDeadline); err != nil {
			logger.Warnw("remaining_timeout_enqueue_failed", "pre_order_id", preOrderID, "error", err)
		}
	}
	for _, preOrderID := range result.DeferredIDs {
		s.notificationService.Enqueue(preOrderID, constants.NotifyEventDelayed)
	}

	logger.Infow("allocation_completed",
		"fruit_type_id", fruitTypeID,
		"available_before", result.AvailableKgBefore,
		"available_after", result.AvailableKgAfter,
		"promoted_count", result.PromotedCount,
		"promoted_kg", result.PromotedKg,
		"deferred_count", result.DeferredCount,
		"fruit_type_closed", result.FruitTypeClosed,
	)
	return result, nil
}

// CancelRemainingTimeout 尾款超时取消。
// 由延时任务触发，是订单进入 cancelled 的唯一途径；
// 订单已支付尾款或已退款时幂等跳过。
func (s *AllocationService) CancelRemainingTimeout(ctx context.Context, preOrderID uint) error {
	preOrder, err := s.preOrderRepo.GetByID(preOrderID)
	if err != nil {
		return err
	}
	if preOrder == nil {
		logger.Warnw("timeout_cancel_pre_order_missing", "pre_order_id", preOrderID)
		return nil
	}
	if preOrder.Status != constants.PreOrderStatusAllocatedWaitingPayment {
		logger.Infow("timeout_cancel_skipped",
			"pre_order_no", preOrder.PreOrderNo,
			"status", preOrder.Status,
		)
		return nil
	}

	acquired, err := s.allocLock.TryAcquire(ctx, preOrder.FruitTypeID)
	if err != nil {
		return err
	}
	if !acquired {
		// 正在配货或入库，交给 asynq 重试
		return ErrAllocationBusy
	}
	defer s.allocLock.Release(ctx, preOrder.FruitTypeID)

	now := time.Now()
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		preOrderRepo := s.preOrderRepo.WithTx(tx)
		if err := preOrderRepo.Update(preOrder.ID, map[string]interface{}{
			"status":      constants.PreOrderStatusCancelled,
			"canceled_at": now,
		}); err != nil {
			return err
		}
		// 取消释放份额，台账重算
		totalAllocated, err := preOrderRepo.SumQuantityByStatuses(preOrder.FruitTypeID, constants.AllocatedStatuses())
		if err != nil {
			return err
		}
		if err := s.allocationRepo.WithTx(tx).SetAllocated(preOrder.FruitTypeID, totalAllocated); err != nil {
			return err
		}
		return deactivateFruitTypeIfSettled(tx, s.preOrderRepo, s.fruitTypeRepo, preOrder.FruitTypeID)
	})
	if err != nil {
		logger.Errorw("timeout_cancel_failed", "pre_order_no", preOrder.PreOrderNo, "error", err)
		return err
	}

	s.notificationService.Enqueue(preOrder.ID, constants.NotifyEventTimeoutCancelled)
	logger.Infow("timeout_cancelled",
		"pre_order_no", preOrder.PreOrderNo,
		"fruit_type_id", preOrder.FruitTypeID,
		"quantity_kg", preOrder.QuantityKg,
	)
	return nil
}
