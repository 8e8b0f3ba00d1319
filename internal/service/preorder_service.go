package service

import (
	"context"
	"time"

	"github.com/orchard-next/internal/cache"
	"github.com/orchard-next/internal/constants"
	"github.com/orchard-next/internal/logger"
	"github.com/orchard-next/internal/models"
	"github.com/orchard-next/internal/repository"

	"gorm.io/gorm"
)

// PreOrderService 预购单查询与管理服务
type PreOrderService struct {
	preOrderRepo        repository.PreOrderRepository
	allocationRepo      repository.AllocationRepository
	fruitTypeRepo       repository.FruitTypeRepository
	notificationService *NotificationService
	allocLock           *cache.AllocLock
}

// NewPreOrderService 创建预购单服务
func NewPreOrderService(preOrderRepo repository.PreOrderRepository, allocationRepo repository.AllocationRepository, fruitTypeRepo repository.FruitTypeRepository, notificationService *NotificationService, allocLock *cache.AllocLock) *PreOrderService {
	return &PreOrderService{
		preOrderRepo:        preOrderRepo,
		allocationRepo:      allocationRepo,
		fruitTypeRepo:       fruitTypeRepo,
		notificationService: notificationService,
		allocLock:           allocLock,
	}
}

// GetUserPreOrder 查询用户自己的预购单
func (s *PreOrderService) GetUserPreOrder(userID uint, preOrderNo string) (*models.PreOrder, error) {
	preOrder, err := s.preOrderRepo.GetByPreOrderNo(preOrderNo)
	if err != nil {
		return nil, err
	}
	if preOrder == nil {
		return nil, ErrPreOrderNotFound
	}
	if preOrder.UserID != userID {
		return nil, ErrPreOrderAccessDenied
	}
	return preOrder, nil
}

// ListUserPreOrders 查询用户的预购单列表
func (s *PreOrderService) ListUserPreOrders(userID uint, status string, page, pageSize int) ([]models.PreOrder, int64, error) {
	return s.preOrderRepo.List(repository.PreOrderListFilter{
		UserID:   userID,
		Status:   status,
		Page:     page,
		PageSize: pageSize,
	})
}

// CancelUserPreOrder 用户主动取消。
// 定金确认后的预购单不接受任何用户取消，一律拒绝。
func (s *PreOrderService) CancelUserPreOrder(userID uint, preOrderNo string) error {
	preOrder, err := s.preOrderRepo.GetByPreOrderNo(preOrderNo)
	if err != nil {
		return err
	}
	if preOrder == nil {
		return ErrPreOrderNotFound
	}
	if preOrder.UserID != userID {
		return ErrPreOrderAccessDenied
	}
	logger.Infow("pre_order_cancel_rejected",
		"pre_order_no", preOrder.PreOrderNo,
		"user_id", userID,
		"status", preOrder.Status,
	)
	return ErrCancelNotAllowed
}

// ListAdminPreOrders 管理端预购单列表
func (s *PreOrderService) ListAdminPreOrders(filter repository.PreOrderListFilter) ([]models.PreOrder, int64, error) {
	return s.preOrderRepo.List(filter)
}

// GetAdminPreOrder 管理端预购单详情
func (s *PreOrderService) GetAdminPreOrder(id uint) (*models.PreOrder, error) {
	preOrder, err := s.preOrderRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if preOrder == nil {
		return nil, ErrPreOrderNotFound
	}
	return preOrder, nil
}

// CompleteDelivery 管理员确认发货完成
func (s *PreOrderService) CompleteDelivery(id uint) (*models.PreOrder, error) {
	preOrder, err := s.preOrderRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if preOrder == nil {
		return nil, ErrPreOrderNotFound
	}
	if !isTransitionAllowed(preOrder.Status, constants.PreOrderStatusCompleted) {
		return nil, ErrInvalidStatusTransition
	}
	if preOrder.Status == constants.PreOrderStatusCompleted {
		return preOrder, nil
	}

	now := time.Now()
	if err := s.preOrderRepo.Update(preOrder.ID, map[string]interface{}{
		"status":       constants.PreOrderStatusCompleted,
		"completed_at": now,
	}); err != nil {
		return nil, err
	}
	preOrder.Status = constants.PreOrderStatusCompleted
	preOrder.CompletedAt = &now

	s.notificationService.Enqueue(preOrder.ID, constants.NotifyEventCompleted)
	logger.Infow("pre_order_completed", "pre_order_no", preOrder.PreOrderNo)
	return preOrder, nil
}

// MarkRefund 管理员标记退款。
// 实际打款走线下或外部系统，这里只推进状态并释放已占份额。
func (s *PreOrderService) MarkRefund(ctx context.Context, id uint) (*models.PreOrder, error) {
	preOrder, err := s.preOrderRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if preOrder == nil {
		return nil, ErrPreOrderNotFound
	}
	if preOrder.Status == constants.PreOrderStatusRefund {
		return preOrder, nil
	}
	if !isTransitionAllowed(preOrder.Status, constants.PreOrderStatusRefund) {
		return nil, ErrInvalidStatusTransition
	}

	acquired, err := s.allocLock.TryAcquire(ctx, preOrder.FruitTypeID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrAllocationBusy
	}
	defer s.allocLock.Release(ctx, preOrder.FruitTypeID)

	now := time.Now()
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		preOrderRepo := s.preOrderRepo.WithTx(tx)
		if err := preOrderRepo.Update(preOrder.ID, map[string]interface{}{
			"status":      constants.PreOrderStatusRefund,
			"refunded_at": now,
		}); err != nil {
			return err
		}
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
		logger.Errorw("pre_order_refund_failed", "pre_order_no", preOrder.PreOrderNo, "error", err)
		return nil, err
	}
	preOrder.Status = constants.PreOrderStatusRefund
	preOrder.RefundedAt = &now

	logger.Infow("pre_order_refund_marked", "pre_order_no", preOrder.PreOrderNo)
	return preOrder, nil
}

// GetQueuePosition 查询预购单在排队中的位置（从 1 开始）。
// 顺延段整体排在首次排队段之前；不在排队状态返回 0。
func (s *PreOrderService) GetQueuePosition(preOrder *models.PreOrder) (int, error) {
	if preOrder == nil {
		return 0, ErrPreOrderNotFound
	}
	switch preOrder.Status {
	case constants.PreOrderStatusWaitingAllocation, constants.PreOrderStatusWaitingNextBatch:
	default:
		return 0, nil
	}

	deferred, err := s.preOrderRepo.ListQueueSegment(preOrder.FruitTypeID, constants.PreOrderStatusWaitingNextBatch)
	if err != nil {
		return 0, err
	}
	waiting, err := s.preOrderRepo.ListQueueSegment(preOrder.FruitTypeID, constants.PreOrderStatusWaitingAllocation)
	if err != nil {
		return 0, err
	}
	position := 0
	for _, item := range append(deferred, waiting...) {
		position++
		if item.ID == preOrder.ID {
			return position, nil
		}
	}
	return 0, nil
}
