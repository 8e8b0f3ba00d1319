package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/orchard-next/internal/constants"
	"github.com/orchard-next/internal/models"
	"github.com/orchard-next/internal/repository"
)

func newPreOrderServiceForTest(env *allocationTestEnv) *PreOrderService {
	userRepo := repository.NewUserRepository(env.db)
	emailSvc := NewEmailService(nil)
	pushSvc := NewPushService(nil)
	notifySvc := NewNotificationService(env.preOrderRepo, userRepo, emailSvc, pushSvc, nil)
	return NewPreOrderService(env.preOrderRepo, env.allocationRepo, env.fruitTypeRepo, notifySvc, env.allocLock)
}

func TestCancelUserPreOrderAlwaysRejected(t *testing.T) {
	env := setupAllocationServiceTest(t)
	svc := newPreOrderServiceForTest(env)
	fruitType := seedFruitType(t, env.db)

	// 定金一经支付，任何状态下用户都不能自助取消
	statuses := []string{
		constants.PreOrderStatusWaitingAllocation,
		constants.PreOrderStatusWaitingNextBatch,
		constants.PreOrderStatusAllocatedWaitingPayment,
		constants.PreOrderStatusReadyForFulfillment,
	}
	for _, status := range statuses {
		preOrder := seedPreOrder(t, env.db, fruitType.ID, 5, status, time.Now())
		if err := svc.CancelUserPreOrder(1, preOrder.PreOrderNo); !errors.Is(err, ErrCancelNotAllowed) {
			t.Fatalf("status %s: expected ErrCancelNotAllowed, got %v", status, err)
		}
		if got := reloadPreOrder(t, env.db, preOrder.ID).Status; got != status {
			t.Fatalf("status %s: order mutated to %s", status, got)
		}
	}
}

func TestGetUserPreOrderOwnership(t *testing.T) {
	env := setupAllocationServiceTest(t)
	svc := newPreOrderServiceForTest(env)
	fruitType := seedFruitType(t, env.db)
	preOrder := seedPreOrder(t, env.db, fruitType.ID, 5, constants.PreOrderStatusWaitingAllocation, time.Now())

	if _, err := svc.GetUserPreOrder(2, preOrder.PreOrderNo); !errors.Is(err, ErrPreOrderAccessDenied) {
		t.Fatalf("expected ErrPreOrderAccessDenied, got %v", err)
	}
	got, err := svc.GetUserPreOrder(1, preOrder.PreOrderNo)
	if err != nil {
		t.Fatalf("owner lookup failed: %v", err)
	}
	if got.ID != preOrder.ID {
		t.Fatalf("expected pre_order %d, got %d", preOrder.ID, got.ID)
	}
}

func TestCompleteDeliveryRequiresReadyStatus(t *testing.T) {
	env := setupAllocationServiceTest(t)
	svc := newPreOrderServiceForTest(env)
	fruitType := seedFruitType(t, env.db)

	waiting := seedPreOrder(t, env.db, fruitType.ID, 5, constants.PreOrderStatusWaitingAllocation, time.Now())
	if _, err := svc.CompleteDelivery(waiting.ID); !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("expected ErrInvalidStatusTransition, got %v", err)
	}

	ready := seedPreOrder(t, env.db, fruitType.ID, 5, constants.PreOrderStatusReadyForFulfillment, time.Now())
	completed, err := svc.CompleteDelivery(ready.ID)
	if err != nil {
		t.Fatalf("complete delivery failed: %v", err)
	}
	if completed.Status != constants.PreOrderStatusCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}
	if completed.CompletedAt == nil {
		t.Fatalf("expected completed_at to be set")
	}

	// 重复交付幂等
	if _, err := svc.CompleteDelivery(ready.ID); err != nil {
		t.Fatalf("repeat complete failed: %v", err)
	}
}

func TestMarkRefundReleasesAllocation(t *testing.T) {
	env := setupAllocationServiceTest(t)
	svc := newPreOrderServiceForTest(env)
	fruitType := seedFruitType(t, env.db)

	preOrder := seedPreOrder(t, env.db, fruitType.ID, 5, constants.PreOrderStatusAllocatedWaitingPayment, time.Now())
	if err := env.allocationRepo.SetAllocated(fruitType.ID, 5); err != nil {
		t.Fatalf("seed allocation ledger failed: %v", err)
	}

	refunded, err := svc.MarkRefund(context.Background(), preOrder.ID)
	if err != nil {
		t.Fatalf("mark refund failed: %v", err)
	}
	if refunded.Status != constants.PreOrderStatusRefund {
		t.Fatalf("expected refund, got %s", refunded.Status)
	}
	if refunded.RefundedAt == nil {
		t.Fatalf("expected refunded_at to be set")
	}

	allocation, err := env.allocationRepo.GetByFruitType(fruitType.ID)
	if err != nil {
		t.Fatalf("read allocation ledger failed: %v", err)
	}
	if allocation.AllocatedKg != 0 {
		t.Fatalf("expected released ledger 0kg, got %d", allocation.AllocatedKg)
	}

	// 退款是终态，不能再次流转
	if _, err := svc.CompleteDelivery(preOrder.ID); !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("expected ErrInvalidStatusTransition after refund, got %v", err)
	}
}

func TestMarkRefundFromTerminalStatusRejected(t *testing.T) {
	env := setupAllocationServiceTest(t)
	svc := newPreOrderServiceForTest(env)
	fruitType := seedFruitType(t, env.db)

	cancelled := seedPreOrder(t, env.db, fruitType.ID, 5, constants.PreOrderStatusCancelled, time.Now())
	if _, err := svc.MarkRefund(context.Background(), cancelled.ID); !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("expected ErrInvalidStatusTransition, got %v", err)
	}
}

func TestGetQueuePositionSpansBothSegments(t *testing.T) {
	env := setupAllocationServiceTest(t)
	svc := newPreOrderServiceForTest(env)
	fruitType := seedFruitType(t, env.db)
	base := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

	deferred := seedPreOrder(t, env.db, fruitType.ID, 5, constants.PreOrderStatusWaitingNextBatch, base.Add(time.Hour))
	first := seedPreOrder(t, env.db, fruitType.ID, 3, constants.PreOrderStatusWaitingAllocation, base)
	second := seedPreOrder(t, env.db, fruitType.ID, 2, constants.PreOrderStatusWaitingAllocation, base.Add(2*time.Hour))
	allocated := seedPreOrder(t, env.db, fruitType.ID, 4, constants.PreOrderStatusAllocatedWaitingPayment, base)

	// 顺延段排在首次等待段之前
	cases := []struct {
		preOrder *models.PreOrder
		want     int
	}{
		{deferred, 1},
		{first, 2},
		{second, 3},
		{allocated, 0},
	}
	for _, tc := range cases {
		got, err := svc.GetQueuePosition(tc.preOrder)
		if err != nil {
			t.Fatalf("queue position failed: %v", err)
		}
		if got != tc.want {
			t.Fatalf("%s: expected position %d, got %d", tc.preOrder.PreOrderNo, tc.want, got)
		}
	}
}
