package repository

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/orchard-next/internal/constants"
	"github.com/orchard-next/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupPreOrderRepositoryTest(t *testing.T) (*GormPreOrderRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.FruitType{}, &models.PreOrder{}); err != nil {
		t.Fatalf("migrate pre_order models failed: %v", err)
	}
	return NewPreOrderRepository(db), db
}

func createTestPreOrder(t *testing.T, db *gorm.DB, fruitTypeID uint, quantityKg int, status string, createdAt time.Time) *models.PreOrder {
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

func TestListQueueSegmentOrdersByPaidTimeThenID(t *testing.T) {
	repo, db := setupPreOrderRepositoryTest(t)
	base := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

	third := createTestPreOrder(t, db, 1, 3, constants.PreOrderStatusWaitingAllocation, base.Add(2*time.Hour))
	first := createTestPreOrder(t, db, 1, 10, constants.PreOrderStatusWaitingAllocation, base)
	second := createTestPreOrder(t, db, 1, 5, constants.PreOrderStatusWaitingAllocation, base.Add(time.Hour))
	createTestPreOrder(t, db, 1, 7, constants.PreOrderStatusCompleted, base)
	createTestPreOrder(t, db, 2, 9, constants.PreOrderStatusWaitingAllocation, base)

	items, err := repo.ListQueueSegment(1, constants.PreOrderStatusWaitingAllocation)
	if err != nil {
		t.Fatalf("list queue segment failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 queued pre_orders, got %d", len(items))
	}
	want := []uint{first.ID, second.ID, third.ID}
	for i, item := range items {
		if item.ID != want[i] {
			t.Fatalf("position %d: expected pre_order %d, got %d", i, want[i], item.ID)
		}
	}
}

func TestListQueueSegmentBreaksTiesByID(t *testing.T) {
	repo, db := setupPreOrderRepositoryTest(t)
	paidAt := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

	a := createTestPreOrder(t, db, 1, 4, constants.PreOrderStatusWaitingNextBatch, paidAt)
	b := createTestPreOrder(t, db, 1, 6, constants.PreOrderStatusWaitingNextBatch, paidAt)

	items, err := repo.ListQueueSegment(1, constants.PreOrderStatusWaitingNextBatch)
	if err != nil {
		t.Fatalf("list queue segment failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 queued pre_orders, got %d", len(items))
	}
	if items[0].ID != a.ID || items[1].ID != b.ID {
		t.Fatalf("expected order [%d %d], got [%d %d]", a.ID, b.ID, items[0].ID, items[1].ID)
	}
}

func TestSumQuantityByStatuses(t *testing.T) {
	repo, db := setupPreOrderRepositoryTest(t)
	base := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

	createTestPreOrder(t, db, 1, 10, constants.PreOrderStatusWaitingAllocation, base)
	createTestPreOrder(t, db, 1, 5, constants.PreOrderStatusWaitingNextBatch, base)
	createTestPreOrder(t, db, 1, 3, constants.PreOrderStatusAllocatedWaitingPayment, base)
	createTestPreOrder(t, db, 1, 8, constants.PreOrderStatusCompleted, base)
	createTestPreOrder(t, db, 2, 100, constants.PreOrderStatusWaitingAllocation, base)

	total, err := repo.SumQuantityByStatuses(1, constants.DemandStatuses())
	if err != nil {
		t.Fatalf("sum quantity failed: %v", err)
	}
	if total != 18 {
		t.Fatalf("expected demand 18kg, got %d", total)
	}

	total, err = repo.SumQuantityByStatuses(1, nil)
	if err != nil {
		t.Fatalf("sum with no statuses failed: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected 0 for empty status list, got %d", total)
	}
}

func TestAggregateDemandGroupsByFruitType(t *testing.T) {
	repo, db := setupPreOrderRepositoryTest(t)
	base := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

	createTestPreOrder(t, db, 1, 10, constants.PreOrderStatusWaitingAllocation, base)
	createTestPreOrder(t, db, 1, 5, constants.PreOrderStatusWaitingNextBatch, base)
	createTestPreOrder(t, db, 2, 7, constants.PreOrderStatusAllocatedWaitingPayment, base)
	createTestPreOrder(t, db, 2, 4, constants.PreOrderStatusRefund, base)

	rows, err := repo.AggregateDemand(constants.DemandStatuses())
	if err != nil {
		t.Fatalf("aggregate demand failed: %v", err)
	}
	byType := make(map[uint]DemandRow)
	for _, row := range rows {
		byType[row.FruitTypeID] = row
	}
	if row := byType[1]; row.TotalKg != 15 || row.Count != 2 {
		t.Fatalf("fruit type 1: expected 15kg over 2 pre_orders, got %dkg over %d", row.TotalKg, row.Count)
	}
	if row := byType[2]; row.TotalKg != 7 || row.Count != 1 {
		t.Fatalf("fruit type 2: expected 7kg over 1 pre_order, got %dkg over %d", row.TotalKg, row.Count)
	}
}
