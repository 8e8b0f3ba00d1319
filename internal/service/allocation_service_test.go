package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/orchard-next/internal/cache"
	"github.com/orchard-next/internal/config"
	"github.com/orchard-next/internal/constants"
	"github.com/orchard-next/internal/models"
	"github.com/orchard-next/internal/queue"
	"github.com/orchard-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type allocationTestEnv struct {
	allocSvc       *AllocationService
	stockSvc       *StockService
	preOrderRepo   *repository.GormPreOrderRepository
	stockRepo      *repository.GormStockRepository
	allocationRepo *repository.GormAllocationRepository
	fruitTypeRepo  *repository.GormFruitTypeRepository
	allocLock      *cache.AllocLock
	db             *gorm.DB
}

func setupAllocationServiceTest(t *testing.T) *allocationTestEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:allocation_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.FruitType{},
		&models.PreOrder{},
		&models.PreOrderStock{},
		&models.PreOrderReceive{},
		&models.HarvestBatch{},
		&models.PreOrderAllocation{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	preOrderRepo := repository.NewPreOrderRepository(db)
	stockRepo := repository.NewStockRepository(db)
	receiveRepo := repository.NewReceiveRepository(db)
	batchRepo := repository.NewHarvestBatchRepository(db)
	allocationRepo := repository.NewAllocationRepository(db)
	fruitTypeRepo := repository.NewFruitTypeRepository(db)
	userRepo := repository.NewUserRepository(db)

	queueClient, err := queue.NewClient(nil)
	if err != nil {
		t.Fatalf("create queue client failed: %v", err)
	}
	emailSvc := NewEmailService(&config.EmailConfig{Enabled: false})
	pushSvc := NewPushService(&config.PushConfig{Enabled: false})
	notifySvc := NewNotificationService(preOrderRepo, userRepo, emailSvc, pushSvc, queueClient)
	allocLock := cache.NewAllocLock(30 * time.Second)

	allocSvc := NewAllocationService(preOrderRepo, stockRepo, allocationRepo, fruitTypeRepo, notifySvc, queueClient, allocLock, 3)
	stockSvc := NewStockService(stockRepo, receiveRepo, batchRepo, allocationRepo, preOrderRepo, fruitTypeRepo, allocLock)

	return &allocationTestEnv{
		allocSvc:       allocSvc,
		stockSvc:       stockSvc,
		preOrderRepo:   preOrderRepo,
		stockRepo:      stockRepo,
		allocationRepo: allocationRepo,
		fruitTypeRepo:  fruitTypeRepo,
		allocLock:      allocLock,
		db:             db,
	}
}

func seedFruitType(t *testing.T, db *gorm.DB) *models.FruitType {
	t.Helper()
	fruitType := &models.FruitType{
		Slug:               fmt.Sprintf("peach-%d", time.Now().UnixNano()),
		Name:               "水蜜桃",
		EstimatedPrice:     models.NewMoneyFromDecimal(decimal.NewFromInt(20)),
		MinOrderKg:         1,
		MaxOrderKg:         100,
		EstimatedHarvestAt: time.Now().AddDate(0, 1, 0),
		AllowPreOrder:      true,
		Status:             constants.FruitTypeStatusActive,
	}
	if err := db.Create(fruitType).Error; err != nil {
		t.Fatalf("create fruit type failed: %v", err)
	}
	return fruitType
}

func seedPreOrder(t *testing.T, db *gorm.DB, fruitTypeID uint, quantityKg int, status string, createdAt time.Time) *models.PreOrder {
	t.Helper()
	preOrder := &models.PreOrder{
		PreOrderNo:  fmt.Sprintf("PO-%d-%d", fruitTypeID, time.Now().UnixNano()),
		UserID:      1,
		FruitTypeID: fruitTypeID,
		QuantityKg:  quantityKg,
		DepositPaid: models.NewMoneyFromDecimal(decimal.NewFromInt(int64(quantityKg) * 10)),
		TotalAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(int64(quantityKg) * 20)),
		Currency:    constants.SiteCurrencyDefault,
		Status:      status,
	}
	if err := db.Create(preOrder).Error; err != nil {
		t.Fatalf("create pre_order failed: %v", err)
	}
	if err := db.Model(preOrder).Update("created_at", createdAt).Error; err != nil {
		t.Fatalf("backdate pre_order failed: %v", err)
	}
	preOrder.CreatedAt = createdAt
	return preOrder
}

func seedStock(t *testing.T, db *gorm.DB, fruitTypeID uint, receivedKg int) {
	t.Helper()
	if err := db.Create(&models.PreOrderStock{FruitTypeID: fruitTypeID, ReceivedKg: receivedKg}).Error; err != nil {
		t.Fatalf("create stock failed: %v", err)
	}
}

func reloadPreOrder(t *testing.T, db *gorm.DB, id uint) *models.PreOrder {
	t.Helper()
	var preOrder models.PreOrder
	if err := db.First(&preOrder, id).Error; err != nil {
		t.Fatalf("reload pre_order failed: %v", err)
	}
	return &preOrder
}

func TestRunAllocationHardStopNoSkipAhead(t *testing.T) {
	env := setupAllocationServiceTest(t)
	fruitType := seedFruitType(t, env.db)
	base := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

	a := seedPreOrder(t, env.db, fruitType.ID, 10, constants.PreOrderStatusWaitingNextBatch, base)
	b := seedPreOrder(t, env.db, fruitType.ID, 5, constants.PreOrderStatusWaitingAllocation, base.Add(time.Hour))
	c := seedPreOrder(t, env.db, fruitType.ID, 3, constants.PreOrderStatusWaitingAllocation, base.Add(2*time.Hour))
	seedStock(t, env.db, fruitType.ID, 8)

	result, err := env.allocSvc.RunAllocation(context.Background(), fruitType.ID)
	if err != nil {
		t.Fatalf("run allocation failed: %v", err)
	}
	if result.PromotedCount != 0 {
		t.Fatalf("expected no promotions, got %d", result.PromotedCount)
	}

	// 队头 A 装不下即整体停止，B+C=8 恰好放得下也不允许跳单
	if got := reloadPreOrder(t, env.db, a.ID).Status; got != constants.PreOrderStatusWaitingNextBatch {
		t.Fatalf("A: expected waiting_for_next_batch, got %s", got)
	}
	if got := reloadPreOrder(t, env.db, b.ID).Status; got != constants.PreOrderStatusWaitingAllocation {
		t.Fatalf("B: expected waiting_for_allocation, got %s", got)
	}
	if got := reloadPreOrder(t, env.db, c.ID).Status; got != constants.PreOrderStatusWaitingAllocation {
		t.Fatalf("C: expected waiting_for_allocation, got %s", got)
	}

	allocation, err := env.allocationRepo.GetByFruitType(fruitType.ID)
	if err != nil {
		t.Fatalf("read allocation ledger failed: %v", err)
	}
	if allocation == nil || allocation.AllocatedKg != 0 {
		t.Fatalf("expected allocated 0kg, got %+v", allocation)
	}
}

func TestRunAllocationPromotesInFIFOOrder(t *testing.T) {
	env := setupAllocationServiceTest(t)
	fruitType := seedFruitType(t, env.db)
	base := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

	a := seedPreOrder(t, env.db, fruitType.ID, 10, constants.PreOrderStatusWaitingNextBatch, base)
	b := seedPreOrder(t, env.db, fruitType.ID, 5, constants.PreOrderStatusWaitingAllocation, base.Add(time.Hour))
	c := seedPreOrder(t, env.db, fruitType.ID, 3, constants.PreOrderStatusWaitingAllocation, base.Add(2*time.Hour))
	seedStock(t, env.db, fruitType.ID, 15)

	result, err := env.allocSvc.RunAllocation(context.Background(), fruitType.ID)
	if err != nil {
		t.Fatalf("run allocation failed: %v", err)
	}
	if result.PromotedCount != 2 || result.PromotedKg != 15 {
		t.Fatalf("expected 2 promotions for 15kg, got %d for %dkg", result.PromotedCount, result.PromotedKg)
	}

	if got := reloadPreOrder(t, env.db, a.ID).Status; got != constants.PreOrderStatusAllocatedWaitingPayment {
		t.Fatalf("A: expected allocated_waiting_payment, got %s", got)
	}
	if got := reloadPreOrder(t, env.db, b.ID).Status; got != constants.PreOrderStatusAllocatedWaitingPayment {
		t.Fatalf("B: expected allocated_waiting_payment, got %s", got)
	}
	// 库存恰好用尽时 C 留在原状态，不被标记顺延
	if got := reloadPreOrder(t, env.db, c.ID).Status; got != constants.PreOrderStatusWaitingAllocation {
		t.Fatalf("C: expected waiting_for_allocation, got %s", got)
	}

	allocation, err := env.allocationRepo.GetByFruitType(fruitType.ID)
	if err != nil {
		t.Fatalf("read allocation ledger failed: %v", err)
	}
	if allocation == nil || allocation.AllocatedKg != 15 {
		t.Fatalf("expected allocated 15kg, got %+v", allocation)
	}
}

func TestRunAllocationDeferredSegmentGoesFirst(t *testing.T) {
	env := setupAllocationServiceTest(t)
	fruitType := seedFruitType(t, env.db)
	base := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

	// 顺延单比首次排队单创建得更晚，仍须优先获得份额
	deferred := seedPreOrder(t, env.db, fruitType.ID, 6, constants.PreOrderStatusWaitingNextBatch, base.Add(time.Hour))
	waiting := seedPreOrder(t, env.db, fruitType.ID, 6, constants.PreOrderStatusWaitingAllocation, base)
	seedStock(t, env.db, fruitType.ID, 6)

	if _, err := env.allocSvc.RunAllocation(context.Background(), fruitType.ID); err != nil {
		t.Fatalf("run allocation failed: %v", err)
	}

	if got := reloadPreOrder(t, env.db, deferred.ID).Status; got != constants.PreOrderStatusAllocatedWaitingPayment {
		t.Fatalf("deferred: expected allocated_waiting_payment, got %s", got)
	}
	if got := reloadPreOrder(t, env.db, waiting.ID).Status; got != constants.PreOrderStatusWaitingAllocation {
		t.Fatalf("waiting: expected waiting_for_allocation, got %s", got)
	}
}

func TestRunAllocationFailsWithoutStock(t *testing.T) {
	env := setupAllocationServiceTest(t)
	fruitType := seedFruitType(t, env.db)
	seedPreOrder(t, env.db, fruitType.ID, 5, constants.PreOrderStatusWaitingAllocation, time.Now())

	if _, err := env.allocSvc.RunAllocation(context.Background(), fruitType.ID); !errors.Is(err, ErrNothingToAllocate) {
		t.Fatalf("expected ErrNothingToAllocate, got %v", err)
	}
}

func TestRunAllocationSecondRunWithoutNewStockFails(t *testing.T) {
	env := setupAllocationServiceTest(t)
	fruitType := seedFruitType(t, env.db)
	base := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

	seedPreOrder(t, env.db, fruitType.ID, 5, constants.PreOrderStatusWaitingAllocation, base)
	seedPreOrder(t, env.db, fruitType.ID, 4, constants.PreOrderStatusWaitingAllocation, base.Add(time.Hour))
	seedStock(t, env.db, fruitType.ID, 5)

	if _, err := env.allocSvc.RunAllocation(context.Background(), fruitType.ID); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	// 没有新库存也没有新订单时，第二轮直接失败而不是改动台账
	if _, err := env.allocSvc.RunAllocation(context.Background(), fruitType.ID); !errors.Is(err, ErrNoStockAvailable) {
		t.Fatalf("expected ErrNoStockAvailable, got %v", err)
	}

	allocation, err := env.allocationRepo.GetByFruitType(fruitType.ID)
	if err != nil {
		t.Fatalf("read allocation ledger failed: %v", err)
	}
	if allocation.AllocatedKg != 5 {
		t.Fatalf("ledger changed by failed run: %d", allocation.AllocatedKg)
	}
}

func TestRunAllocationConcurrencyGuard(t *testing.T) {
	env := setupAllocationServiceTest(t)
	fruitType := seedFruitType(t, env.db)
	seedPreOrder(t, env.db, fruitType.ID, 5, constants.PreOrderStatusWaitingAllocation, time.Now())
	seedStock(t, env.db, fruitType.ID, 5)

	ctx := context.Background()
	acquired, err := env.allocLock.TryAcquire(ctx, fruitType.ID)
	if err != nil || !acquired {
		t.Fatalf("prefetch lock failed: acquired=%v err=%v", acquired, err)
	}
	defer env.allocLock.Release(ctx, fruitType.ID)

	if _, err := env.allocSvc.RunAllocation(ctx, fruitType.ID); !errors.Is(err, ErrAllocationBusy) {
		t.Fatalf("expected ErrAllocationBusy, got %v", err)
	}
}

func TestRunAllocationRecomputesLedgerFromScratch(t *testing.T) {
	env := setupAllocationServiceTest(t)
	fruitType := seedFruitType(t, env.db)
	base := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

	seedPreOrder(t, env.db, fruitType.ID, 4, constants.PreOrderStatusCompleted, base)
	seedPreOrder(t, env.db, fruitType.ID, 5, constants.PreOrderStatusWaitingAllocation, base.Add(time.Hour))
	seedStock(t, env.db, fruitType.ID, 9)
	// 预置一个漂移的台账值，配货后必须被整表重算覆盖
	if err := env.allocationRepo.SetAllocated(fruitType.ID, 99); err != nil {
		t.Fatalf("seed allocation ledger failed: %v", err)
	}

	if _, err := env.allocSvc.RunAllocation(context.Background(), fruitType.ID); err != nil {
		t.Fatalf("run allocation failed: %v", err)
	}

	allocation, err := env.allocationRepo.GetByFruitType(fruitType.ID)
	if err != nil {
		t.Fatalf("read allocation ledger failed: %v", err)
	}
	if allocation.AllocatedKg != 9 {
		t.Fatalf("expected recomputed 9kg (4 completed + 5 promoted), got %d", allocation.AllocatedKg)
	}
}

func TestCancelRemainingTimeoutReleasesAllocation(t *testing.T) {
	env := setupAllocationServiceTest(t)
	fruitType := seedFruitType(t, env.db)

	preOrder := seedPreOrder(t, env.db, fruitType.ID, 5, constants.PreOrderStatusAllocatedWaitingPayment, time.Now())
	seedStock(t, env.db, fruitType.ID, 5)
	if err := env.allocationRepo.SetAllocated(fruitType.ID, 5); err != nil {
		t.Fatalf("seed allocation ledger failed: %v", err)
	}

	if err := env.allocSvc.CancelRemainingTimeout(context.Background(), preOrder.ID); err != nil {
		t.Fatalf("timeout cancel failed: %v", err)
	}

	updated := reloadPreOrder(t, env.db, preOrder.ID)
	if updated.Status != constants.PreOrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", updated.Status)
	}
	if updated.CanceledAt == nil {
		t.Fatalf("expected canceled_at to be set")
	}
	allocation, err := env.allocationRepo.GetByFruitType(fruitType.ID)
	if err != nil {
		t.Fatalf("read allocation ledger failed: %v", err)
	}
	if allocation.AllocatedKg != 0 {
		t.Fatalf("expected released ledger 0kg, got %d", allocation.AllocatedKg)
	}
	// 需求归零，品类应自动下架
	var updatedType models.FruitType
	if err := env.db.First(&updatedType, fruitType.ID).Error; err != nil {
		t.Fatalf("reload fruit type failed: %v", err)
	}
	if updatedType.Status != constants.FruitTypeStatusInactive {
		t.Fatalf("expected fruit type inactive, got %s", updatedType.Status)
	}
}

func TestCancelRemainingTimeoutIsIdempotent(t *testing.T) {
	env := setupAllocationServiceTest(t)
	fruitType := seedFruitType(t, env.db)

	preOrder := seedPreOrder(t, env.db, fruitType.ID, 5, constants.PreOrderStatusReadyForFulfillment, time.Now())

	// 尾款已付的订单不受超时任务影响
	if err := env.allocSvc.CancelRemainingTimeout(context.Background(), preOrder.ID); err != nil {
		t.Fatalf("timeout cancel returned error: %v", err)
	}
	if got := reloadPreOrder(t, env.db, preOrder.ID).Status; got != constants.PreOrderStatusReadyForFulfillment {
		t.Fatalf("expected ready_for_fulfillment untouched, got %s", got)
	}
}
