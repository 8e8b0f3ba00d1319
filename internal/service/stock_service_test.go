package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/orchard-next/internal/constants"
)

func TestRecordReceiveRejectsBeyondDemand(t *testing.T) {
	env := setupAllocationServiceTest(t)
	fruitType := seedFruitType(t, env.db)
	ctx := context.Background()

	seedPreOrder(t, env.db, fruitType.ID, 10, constants.PreOrderStatusWaitingAllocation, time.Now())

	receive, err := env.stockSvc.RecordReceive(ctx, RecordReceiveInput{
		FruitTypeID: fruitType.ID,
		QuantityKg:  8,
		ReceivedBy:  1,
		Confirmed:   true,
	})
	if err != nil {
		t.Fatalf("first receive failed: %v", err)
	}
	if receive.ReceivedBy != 1 {
		t.Fatalf("receive must record the operator admin id, got %d", receive.ReceivedBy)
	}

	// 剩余可收 2kg，入 5kg 整笔拒绝而不是收 2kg
	_, err = env.stockSvc.RecordReceive(ctx, RecordReceiveInput{
		FruitTypeID: fruitType.ID,
		QuantityKg:  5,
		ReceivedBy:  1,
		Confirmed:   true,
	})
	if !errors.Is(err, ErrReceiveExceedsDemand) {
		t.Fatalf("expected ErrReceiveExceedsDemand, got %v", err)
	}
	stock, err := env.stockRepo.GetByFruitType(fruitType.ID)
	if err != nil {
		t.Fatalf("read stock failed: %v", err)
	}
	if stock.ReceivedKg != 8 {
		t.Fatalf("rejected receive must not change ledger: got %dkg", stock.ReceivedKg)
	}

	if _, err := env.stockSvc.RecordReceive(ctx, RecordReceiveInput{
		FruitTypeID: fruitType.ID,
		QuantityKg:  2,
		ReceivedBy:  1,
		Confirmed:   true,
	}); err != nil {
		t.Fatalf("exact remaining receive failed: %v", err)
	}
}

func TestRecordReceiveRequiresConfirmation(t *testing.T) {
	env := setupAllocationServiceTest(t)
	fruitType := seedFruitType(t, env.db)

	seedPreOrder(t, env.db, fruitType.ID, 10, constants.PreOrderStatusWaitingAllocation, time.Now())

	_, err := env.stockSvc.RecordReceive(context.Background(), RecordReceiveInput{
		FruitTypeID: fruitType.ID,
		QuantityKg:  5,
		ReceivedBy:  1,
	})
	if !errors.Is(err, ErrReceiveNotConfirmed) {
		t.Fatalf("expected ErrReceiveNotConfirmed, got %v", err)
	}
}

func TestRecordReceiveRespectsBatchPlannedQuantity(t *testing.T) {
	env := setupAllocationServiceTest(t)
	fruitType := seedFruitType(t, env.db)
	ctx := context.Background()

	seedPreOrder(t, env.db, fruitType.ID, 50, constants.PreOrderStatusWaitingAllocation, time.Now())

	batch, err := env.stockSvc.CreateHarvestBatch(CreateHarvestBatchInput{
		FruitTypeID: fruitType.ID,
		PlannedKg:   10,
	})
	if err != nil {
		t.Fatalf("create batch failed: %v", err)
	}
	if batch.ArrivedAt.IsZero() {
		t.Fatalf("batch without explicit arrival time must default to now")
	}

	if _, err := env.stockSvc.RecordReceive(ctx, RecordReceiveInput{
		FruitTypeID: fruitType.ID,
		QuantityKg:  7,
		BatchID:     batch.ID,
		ReceivedBy:  1,
		Confirmed:   true,
	}); err != nil {
		t.Fatalf("batch receive failed: %v", err)
	}

	_, err = env.stockSvc.RecordReceive(ctx, RecordReceiveInput{
		FruitTypeID: fruitType.ID,
		QuantityKg:  4,
		BatchID:     batch.ID,
		ReceivedBy:  1,
		Confirmed:   true,
	})
	if !errors.Is(err, ErrReceiveExceedsBatch) {
		t.Fatalf("expected ErrReceiveExceedsBatch, got %v", err)
	}
}

func TestRecordReceiveFailsWhileAllocationRunning(t *testing.T) {
	env := setupAllocationServiceTest(t)
	fruitType := seedFruitType(t, env.db)
	ctx := context.Background()

	seedPreOrder(t, env.db, fruitType.ID, 10, constants.PreOrderStatusWaitingAllocation, time.Now())

	acquired, err := env.allocLock.TryAcquire(ctx, fruitType.ID)
	if err != nil || !acquired {
		t.Fatalf("prefetch lock failed: acquired=%v err=%v", acquired, err)
	}
	defer env.allocLock.Release(ctx, fruitType.ID)

	_, err = env.stockSvc.RecordReceive(ctx, RecordReceiveInput{
		FruitTypeID: fruitType.ID,
		QuantityKg:  5,
		ReceivedBy:  1,
		Confirmed:   true,
	})
	if !errors.Is(err, ErrAllocationBusy) {
		t.Fatalf("expected ErrAllocationBusy, got %v", err)
	}
}

func TestRecordReceiveCapAccountsForAllocatedStock(t *testing.T) {
	env := setupAllocationServiceTest(t)
	fruitType := seedFruitType(t, env.db)
	ctx := context.Background()

	// 10kg 已分配并占用 10kg 库存，另有 5kg 新需求在排队
	seedPreOrder(t, env.db, fruitType.ID, 10, constants.PreOrderStatusAllocatedWaitingPayment, time.Now())
	seedPreOrder(t, env.db, fruitType.ID, 5, constants.PreOrderStatusWaitingAllocation, time.Now())
	seedStock(t, env.db, fruitType.ID, 10)
	if err := env.allocationRepo.SetAllocated(fruitType.ID, 10); err != nil {
		t.Fatalf("seed allocation ledger failed: %v", err)
	}

	// 总需求 15，空闲库存 0，可继续收 15；收 5 覆盖排队需求
	if _, err := env.stockSvc.RecordReceive(ctx, RecordReceiveInput{
		FruitTypeID: fruitType.ID,
		QuantityKg:  5,
		ReceivedBy:  1,
		Confirmed:   true,
	}); err != nil {
		t.Fatalf("receive within cap failed: %v", err)
	}
}
