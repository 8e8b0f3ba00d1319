package service

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/orchard-next/internal/config"
	"github.com/orchard-next/internal/constants"
	"github.com/orchard-next/internal/models"
	"github.com/orchard-next/internal/payment/epay"
	"github.com/orchard-next/internal/queue"
	"github.com/orchard-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var testEpayConfig = &epay.Config{
	GatewayURL:  "https://pay.example.com",
	MerchantID:  "1001",
	MerchantKey: "test-merchant-key",
	NotifyURL:   "https://shop.example.com/api/payment/notify",
	ReturnURL:   "https://shop.example.com/pay/return",
	Device:      "pc",
}

type depositTestEnv struct {
	depositSvc    *DepositService
	remainingSvc  *RemainingService
	depositRepo   *repository.GormDepositIntentRepository
	remainingRepo *repository.GormRemainingIntentRepository
	preOrderRepo  *repository.GormPreOrderRepository
	fruitTypeRepo *repository.GormFruitTypeRepository
	db            *gorm.DB
}

func setupDepositServiceTest(t *testing.T) *depositTestEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:deposit_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.FruitType{},
		&models.DepositIntent{},
		&models.RemainingIntent{},
		&models.PreOrder{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	depositRepo := repository.NewDepositIntentRepository(db)
	remainingRepo := repository.NewRemainingIntentRepository(db)
	preOrderRepo := repository.NewPreOrderRepository(db)
	fruitTypeRepo := repository.NewFruitTypeRepository(db)
	userRepo := repository.NewUserRepository(db)

	queueClient, err := queue.NewClient(nil)
	if err != nil {
		t.Fatalf("create queue client failed: %v", err)
	}
	emailSvc := NewEmailService(&config.EmailConfig{Enabled: false})
	pushSvc := NewPushService(&config.PushConfig{Enabled: false})
	notifySvc := NewNotificationService(preOrderRepo, userRepo, emailSvc, pushSvc, queueClient)

	fruitTypeSvc := NewFruitTypeService(fruitTypeRepo, 7)
	depositSvc := NewDepositService(depositRepo, preOrderRepo, fruitTypeRepo, fruitTypeSvc, testEpayConfig, 15)
	remainingSvc := NewRemainingService(remainingRepo, preOrderRepo, fruitTypeRepo, notifySvc, testEpayConfig, 15)

	return &depositTestEnv{
		depositSvc:    depositSvc,
		remainingSvc:  remainingSvc,
		depositRepo:   depositRepo,
		remainingRepo: remainingRepo,
		preOrderRepo:  preOrderRepo,
		fruitTypeRepo: fruitTypeRepo,
		db:            db,
	}
}

// signedCallbackForm 构造带合法 MD5 签名的回调表单
func signedCallbackForm(t *testing.T, params map[string]string) url.Values {
	t.Helper()
	var keys []string
	for k, v := range params {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, params[k]))
	}
	sum := md5.Sum([]byte(strings.Join(pairs, "&") + testEpayConfig.MerchantKey))

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	form.Set("sign", hex.EncodeToString(sum[:]))
	form.Set("sign_type", "MD5")
	return form
}

func TestCreateDepositIntentLocksPriceSnapshot(t *testing.T) {
	env := setupDepositServiceTest(t)
	fruitType := seedFruitType(t, env.db)

	intent, err := env.depositSvc.CreateDepositIntent(CreateDepositIntentInput{
		UserID:      1,
		FruitTypeID: fruitType.ID,
		QuantityKg:  10,
		ClientIP:    "192.0.2.1",
	})
	if err != nil {
		t.Fatalf("create deposit intent failed: %v", err)
	}
	// 定金 = 单价 20 × 10kg × 50% = 100.00
	if intent.Amount.String() != "100.00" {
		t.Fatalf("expected deposit 100.00, got %s", intent.Amount.String())
	}
	if intent.UnitPrice.String() != "20.00" {
		t.Fatalf("expected unit price snapshot 20.00, got %s", intent.UnitPrice.String())
	}
	if intent.Status != constants.IntentStatusPending {
		t.Fatalf("expected pending, got %s", intent.Status)
	}
	if !strings.Contains(intent.PayURL, "out_trade_no="+intent.IntentNo) {
		t.Fatalf("pay url missing reference: %s", intent.PayURL)
	}
}

func TestCreateDepositIntentValidations(t *testing.T) {
	env := setupDepositServiceTest(t)
	fruitType := seedFruitType(t, env.db)

	if _, err := env.depositSvc.CreateDepositIntent(CreateDepositIntentInput{
		UserID: 1, FruitTypeID: fruitType.ID, QuantityKg: 999,
	}); !errors.Is(err, ErrQuantityOutOfRange) {
		t.Fatalf("expected ErrQuantityOutOfRange, got %v", err)
	}

	if err := env.fruitTypeRepo.Update(fruitType.ID, map[string]interface{}{"allow_pre_order": false}); err != nil {
		t.Fatalf("update fruit type failed: %v", err)
	}
	if _, err := env.depositSvc.CreateDepositIntent(CreateDepositIntentInput{
		UserID: 1, FruitTypeID: fruitType.ID, QuantityKg: 10,
	}); !errors.Is(err, ErrFruitTypeNotOrderable) {
		t.Fatalf("expected ErrFruitTypeNotOrderable, got %v", err)
	}

	// 采收前 7 天内停止接单
	if err := env.fruitTypeRepo.Update(fruitType.ID, map[string]interface{}{
		"allow_pre_order":      true,
		"estimated_harvest_at": time.Now().AddDate(0, 0, 3),
	}); err != nil {
		t.Fatalf("update fruit type failed: %v", err)
	}
	if _, err := env.depositSvc.CreateDepositIntent(CreateDepositIntentInput{
		UserID: 1, FruitTypeID: fruitType.ID, QuantityKg: 10,
	}); !errors.Is(err, ErrHarvestTooClose) {
		t.Fatalf("expected ErrHarvestTooClose, got %v", err)
	}
}

func TestConfirmDepositCreatesPreOrderOnce(t *testing.T) {
	env := setupDepositServiceTest(t)
	fruitType := seedFruitType(t, env.db)

	intent, err := env.depositSvc.CreateDepositIntent(CreateDepositIntentInput{
		UserID:      1,
		FruitTypeID: fruitType.ID,
		QuantityKg:  10,
	})
	if err != nil {
		t.Fatalf("create deposit intent failed: %v", err)
	}

	form := signedCallbackForm(t, map[string]string{
		"pid":          testEpayConfig.MerchantID,
		"out_trade_no": intent.IntentNo,
		"trade_no":     "GW123456",
		"trade_status": "TRADE_SUCCESS",
		"money":        intent.Amount.String(),
	})

	preOrder, err := env.depositSvc.ConfirmDepositCallback(form)
	if err != nil {
		t.Fatalf("confirm deposit failed: %v", err)
	}
	if preOrder.Status != constants.PreOrderStatusWaitingAllocation {
		t.Fatalf("expected waiting_for_allocation, got %s", preOrder.Status)
	}
	if preOrder.TotalAmount.String() != "200.00" {
		t.Fatalf("expected total 200.00, got %s", preOrder.TotalAmount.String())
	}
	if preOrder.DepositPaid.String() != "100.00" {
		t.Fatalf("expected deposit 100.00, got %s", preOrder.DepositPaid.String())
	}

	// 重复回调幂等：返回同一订单，不重复创建
	again, err := env.depositSvc.ConfirmDepositCallback(form)
	if err != nil {
		t.Fatalf("repeat confirm failed: %v", err)
	}
	if again.ID != preOrder.ID {
		t.Fatalf("expected same pre_order %d, got %d", preOrder.ID, again.ID)
	}
	var count int64
	if err := env.db.Model(&models.PreOrder{}).Count(&count).Error; err != nil {
		t.Fatalf("count pre_orders failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 pre_order, got %d", count)
	}
}

func TestConfirmDepositRejectsExpiredIntent(t *testing.T) {
	env := setupDepositServiceTest(t)
	fruitType := seedFruitType(t, env.db)

	intent, err := env.depositSvc.CreateDepositIntent(CreateDepositIntentInput{
		UserID:      1,
		FruitTypeID: fruitType.ID,
		QuantityKg:  10,
	})
	if err != nil {
		t.Fatalf("create deposit intent failed: %v", err)
	}
	if err := env.depositRepo.Update(intent.ID, map[string]interface{}{
		"expires_at": time.Now().Add(-time.Minute),
	}); err != nil {
		t.Fatalf("backdate expiry failed: %v", err)
	}

	form := signedCallbackForm(t, map[string]string{
		"out_trade_no": intent.IntentNo,
		"trade_status": "TRADE_SUCCESS",
		"money":        intent.Amount.String(),
	})
	if _, err := env.depositSvc.ConfirmDepositCallback(form); !errors.Is(err, ErrIntentExpired) {
		t.Fatalf("expected ErrIntentExpired, got %v", err)
	}

	// 过期在读取时惰性落库
	stored, err := env.depositRepo.GetByID(intent.ID)
	if err != nil {
		t.Fatalf("reload intent failed: %v", err)
	}
	if stored.Status != constants.IntentStatusExpired {
		t.Fatalf("expected expired, got %s", stored.Status)
	}
}

func TestConfirmDepositRejectsBadSignature(t *testing.T) {
	env := setupDepositServiceTest(t)

	form := url.Values{}
	form.Set("out_trade_no", "DI123")
	form.Set("trade_status", "TRADE_SUCCESS")
	form.Set("sign", "deadbeef")
	form.Set("sign_type", "MD5")

	if _, err := env.depositSvc.ConfirmDepositCallback(form); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestTotalAmountImmutableAfterPriceEdit(t *testing.T) {
	env := setupDepositServiceTest(t)
	fruitType := seedFruitType(t, env.db)

	intent, err := env.depositSvc.CreateDepositIntent(CreateDepositIntentInput{
		UserID:      1,
		FruitTypeID: fruitType.ID,
		QuantityKg:  10,
	})
	if err != nil {
		t.Fatalf("create deposit intent failed: %v", err)
	}
	form := signedCallbackForm(t, map[string]string{
		"out_trade_no": intent.IntentNo,
		"trade_status": "TRADE_SUCCESS",
		"money":        intent.Amount.String(),
	})
	preOrder, err := env.depositSvc.ConfirmDepositCallback(form)
	if err != nil {
		t.Fatalf("confirm deposit failed: %v", err)
	}

	if err := env.fruitTypeRepo.Update(fruitType.ID, map[string]interface{}{
		"estimated_price": models.NewMoneyFromDecimal(decimal.NewFromInt(35)),
	}); err != nil {
		t.Fatalf("edit price failed: %v", err)
	}

	stored, err := env.preOrderRepo.GetByID(preOrder.ID)
	if err != nil {
		t.Fatalf("reload pre_order failed: %v", err)
	}
	if stored.TotalAmount.String() != "200.00" {
		t.Fatalf("total amount changed after price edit: %s", stored.TotalAmount.String())
	}
}

func TestRemainingIntentPreconditions(t *testing.T) {
	env := setupDepositServiceTest(t)
	fruitType := seedFruitType(t, env.db)

	waiting := seedPreOrder(t, env.db, fruitType.ID, 10, constants.PreOrderStatusWaitingAllocation, time.Now())
	if _, err := env.remainingSvc.CreateRemainingIntent(1, waiting.ID, ""); !errors.Is(err, ErrRemainingNotDue) {
		t.Fatalf("expected ErrRemainingNotDue for unallocated order, got %v", err)
	}

	allocated := seedPreOrder(t, env.db, fruitType.ID, 10, constants.PreOrderStatusAllocatedWaitingPayment, time.Now())
	if _, err := env.remainingSvc.CreateRemainingIntent(2, allocated.ID, ""); !errors.Is(err, ErrPreOrderAccessDenied) {
		t.Fatalf("expected ErrPreOrderAccessDenied for other user, got %v", err)
	}

	intent, err := env.remainingSvc.CreateRemainingIntent(1, allocated.ID, "192.0.2.1")
	if err != nil {
		t.Fatalf("create remaining intent failed: %v", err)
	}
	// 尾款 = 总额 200 - 定金 100
	if intent.Amount.String() != "100.00" {
		t.Fatalf("expected remaining 100.00, got %s", intent.Amount.String())
	}

	// 未过期的待支付意向直接复用
	again, err := env.remainingSvc.CreateRemainingIntent(1, allocated.ID, "")
	if err != nil {
		t.Fatalf("reuse remaining intent failed: %v", err)
	}
	if again.ID != intent.ID {
		t.Fatalf("expected reused intent %d, got %d", intent.ID, again.ID)
	}
}

func TestConfirmRemainingRejectsExpiredIntent(t *testing.T) {
	env := setupDepositServiceTest(t)
	fruitType := seedFruitType(t, env.db)

	preOrder := seedPreOrder(t, env.db, fruitType.ID, 10, constants.PreOrderStatusAllocatedWaitingPayment, time.Now())
	intent, err := env.remainingSvc.CreateRemainingIntent(1, preOrder.ID, "")
	if err != nil {
		t.Fatalf("create remaining intent failed: %v", err)
	}
	if err := env.remainingRepo.Update(intent.ID, map[string]interface{}{
		"expires_at": time.Now().Add(-time.Hour),
	}); err != nil {
		t.Fatalf("backdate expiry failed: %v", err)
	}

	form := signedCallbackForm(t, map[string]string{
		"out_trade_no": intent.IntentNo,
		"trade_status": "TRADE_SUCCESS",
		"money":        intent.Amount.String(),
	})
	if _, err := env.remainingSvc.ConfirmRemainingCallback(form); !errors.Is(err, ErrIntentExpired) {
		t.Fatalf("expected ErrIntentExpired, got %v", err)
	}

	// 过期在回调时惰性落库，订单状态保持不变
	stored, err := env.remainingRepo.GetByID(intent.ID)
	if err != nil {
		t.Fatalf("reload intent failed: %v", err)
	}
	if stored.Status != constants.IntentStatusExpired {
		t.Fatalf("expected expired, got %s", stored.Status)
	}
	reloaded, err := env.preOrderRepo.GetByID(preOrder.ID)
	if err != nil {
		t.Fatalf("reload pre-order failed: %v", err)
	}
	if reloaded.Status != constants.PreOrderStatusAllocatedWaitingPayment {
		t.Fatalf("expired callback must not advance order, got %s", reloaded.Status)
	}
}

func TestConfirmRemainingAdvancesToReady(t *testing.T) {
	env := setupDepositServiceTest(t)
	fruitType := seedFruitType(t, env.db)

	preOrder := seedPreOrder(t, env.db, fruitType.ID, 10, constants.PreOrderStatusAllocatedWaitingPayment, time.Now())
	intent, err := env.remainingSvc.CreateRemainingIntent(1, preOrder.ID, "")
	if err != nil {
		t.Fatalf("create remaining intent failed: %v", err)
	}

	form := signedCallbackForm(t, map[string]string{
		"out_trade_no": intent.IntentNo,
		"trade_status": "TRADE_SUCCESS",
		"money":        intent.Amount.String(),
	})
	updated, err := env.remainingSvc.ConfirmRemainingCallback(form)
	if err != nil {
		t.Fatalf("confirm remaining failed: %v", err)
	}
	if updated.Status != constants.PreOrderStatusReadyForFulfillment {
		t.Fatalf("expected ready_for_fulfillment, got %s", updated.Status)
	}
	if updated.RemainingPaidAt == nil {
		t.Fatalf("expected remaining_paid_at to be set")
	}

	// 重复回调幂等
	if _, err := env.remainingSvc.ConfirmRemainingCallback(form); err != nil {
		t.Fatalf("repeat confirm failed: %v", err)
	}

	// 需求归零，品类自动下架
	updatedType, err := env.fruitTypeRepo.GetByID(fruitType.ID)
	if err != nil {
		t.Fatalf("reload fruit type failed: %v", err)
	}
	if updatedType.Status != constants.FruitTypeStatusInactive {
		t.Fatalf("expected fruit type inactive, got %s", updatedType.Status)
	}
}
