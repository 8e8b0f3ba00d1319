package service

import (
	"net/url"
	"time"

	"github.com/orchard-next/internal/constants"
	"github.com/orchard-next/internal/logger"
	"github.com/orchard-next/internal/models"
	"github.com/orchard-next/internal/payment/epay"
	"github.com/orchard-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RemainingService 尾款支付服务
type RemainingService struct {
	remainingRepo       repository.RemainingIntentRepository
	preOrderRepo        repository.PreOrderRepository
	fruitTypeRepo       repository.FruitTypeRepository
	notificationService *NotificationService
	epayCfg             *epay.Config
	expireMinutes       int
}

// NewRemainingService 创建尾款服务
func NewRemainingService(remainingRepo repository.RemainingIntentRepository, preOrderRepo repository.PreOrderRepository, fruitTypeRepo repository.FruitTypeRepository, notificationService *NotificationService, epayCfg *epay.Config, expireMinutes int) *RemainingService {
	if expireMinutes <= 0 {
		expireMinutes = constants.DefaultIntentExpireMinutes
	}
	return &RemainingService{
		remainingRepo:       remainingRepo,
		preOrderRepo:        preOrderRepo,
		fruitTypeRepo:       fruitTypeRepo,
		notificationService: notificationService,
		epayCfg:             epayCfg,
		expireMinutes:       expireMinutes,
	}
}

// CreateRemainingIntent 创建尾款支付意向。
// 仅允许 allocated_waiting_payment 状态的订单发起；
// 已有未过期的待支付意向时直接复用。
func (s *RemainingService) CreateRemainingIntent(userID, preOrderID uint, clientIP string) (*models.RemainingIntent, error) {
	preOrder, err := s.preOrderRepo.GetByID(preOrderID)
	if err != nil {
		return nil, err
	}
	if preOrder == nil {
		return nil, ErrPreOrderNotFound
	}
	if preOrder.UserID != userID {
		return nil, ErrPreOrderAccessDenied
	}
	switch preOrder.Status {
	case constants.PreOrderStatusAllocatedWaitingPayment:
	case constants.PreOrderStatusReadyForFulfillment, constants.PreOrderStatusCompleted:
		return nil, ErrRemainingAlreadyPaid
	default:
		return nil, ErrRemainingNotDue
	}

	now := time.Now()
	existing, err := s.remainingRepo.GetPendingByPreOrder(preOrder.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if now.Before(existing.ExpiresAt) {
			return existing, nil
		}
		if err := s.remainingRepo.Update(existing.ID, map[string]interface{}{
			"status": constants.IntentStatusExpired,
		}); err != nil {
			return nil, err
		}
	}

	amount := preOrder.TotalAmount.Sub(preOrder.DepositPaid.Decimal)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrRemainingAlreadyPaid
	}

	subject := "预售尾款"
	if preOrder.FruitType != nil {
		subject = preOrder.FruitType.Name + " 预售尾款"
	}
	intent := &models.RemainingIntent{
		IntentNo:   generateRemainingIntentNo(),
		PreOrderID: preOrder.ID,
		UserID:     preOrder.UserID,
		Amount:     models.NewMoneyFromDecimal(amount),
		Currency:   preOrder.Currency,
		Status:     constants.IntentStatusPending,
		ClientIP:   clientIP,
		ExpiresAt:  now.Add(time.Duration(s.expireMinutes) * time.Minute),
	}
	payURL, err := epay.BuildPayURL(s.epayCfg, epay.CreateInput{
		ReferenceNo: intent.IntentNo,
		Amount:      intent.Amount.String(),
		Subject:     subject,
		ClientIP:    clientIP,
	})
	if err != nil {
		return nil, err
	}
	intent.PayURL = payURL

	if err := s.remainingRepo.Create(intent); err != nil {
		return nil, err
	}
	logger.Infow("remaining_intent_created",
		"intent_no", intent.IntentNo,
		"pre_order_no", preOrder.PreOrderNo,
		"amount", intent.Amount.String(),
	)
	return intent, nil
}

// expireIfDue 对超过有效期的待支付意向做惰性过期标记
func (s *RemainingService) expireIfDue(intent *models.RemainingIntent) (*models.RemainingIntent, error) {
	if intent.Status != constants.IntentStatusPending || time.Now().Before(intent.ExpiresAt) {
		return intent, nil
	}
	if err := s.remainingRepo.Update(intent.ID, map[string]interface{}{
		"status": constants.IntentStatusExpired,
	}); err != nil {
		return nil, err
	}
	intent.Status = constants.IntentStatusExpired
	logger.Infow("remaining_intent_expired_lazily", "intent_no", intent.IntentNo)
	return intent, nil
}

// ConfirmRemainingCallback 处理尾款网关异步回调。
// 尾款确认是订单进入 ready_for_fulfillment 的唯一途径，重复回调幂等。
func (s *RemainingService) ConfirmRemainingCallback(form url.Values) (*models.PreOrder, error) {
	if err := epay.VerifyCallback(s.epayCfg, form); err != nil {
		logger.Warnw("remaining_callback_sign_invalid", "error", err)
		return nil, err
	}
	if !epay.IsTradeSuccess(form) {
		logger.Infow("remaining_callback_not_success", "intent_no", form.Get("out_trade_no"))
		return nil, nil
	}

	intentNo := form.Get("out_trade_no")
	intent, err := s.remainingRepo.GetByIntentNo(intentNo)
	if err != nil {
		return nil, err
	}
	if intent == nil {
		logger.Warnw("remaining_callback_intent_not_found", "intent_no", intentNo)
		return nil, ErrIntentNotFound
	}
	if intent.Status == constants.IntentStatusSuccess {
		logger.Infow("remaining_callback_idempotent", "intent_no", intent.IntentNo)
		return s.preOrderRepo.GetByID(intent.PreOrderID)
	}

	// 过期惰性标记，迟到的回调不再生效
	intent, err = s.expireIfDue(intent)
	if err != nil {
		return nil, err
	}
	if intent.Status == constants.IntentStatusExpired {
		logger.Warnw("remaining_callback_after_expiry", "intent_no", intent.IntentNo)
		return nil, ErrIntentExpired
	}

	preOrder, err := s.preOrderRepo.GetByID(intent.PreOrderID)
	if err != nil {
		return nil, err
	}
	if preOrder == nil {
		return nil, ErrPreOrderNotFound
	}
	// 订单已被超时任务取消或已退款，迟到的回调不再推进状态
	if preOrder.Status != constants.PreOrderStatusAllocatedWaitingPayment {
		logger.Warnw("remaining_callback_order_not_payable",
			"intent_no", intent.IntentNo,
			"pre_order_no", preOrder.PreOrderNo,
			"status", preOrder.Status,
		)
		return nil, ErrRemainingNotDue
	}

	if money := form.Get("money"); money != "" {
		paid, parseErr := decimal.NewFromString(money)
		if parseErr != nil || paid.Cmp(intent.Amount.Decimal) != 0 {
			logger.Warnw("remaining_callback_amount_mismatch",
				"intent_no", intent.IntentNo,
				"expected", intent.Amount.String(),
				"got", money,
			)
			return nil, ErrAmountMismatch
		}
	}

	now := time.Now()
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.remainingRepo.WithTx(tx).Update(intent.ID, map[string]interface{}{
			"status":        constants.IntentStatusSuccess,
			"paid_at":       now,
			"callback_json": callbackPayload(form),
		}); err != nil {
			return err
		}
		if err := s.preOrderRepo.WithTx(tx).Update(preOrder.ID, map[string]interface{}{
			"status":            constants.PreOrderStatusReadyForFulfillment,
			"remaining_paid_at": now,
		}); err != nil {
			return err
		}
		return deactivateFruitTypeIfSettled(tx, s.preOrderRepo, s.fruitTypeRepo, preOrder.FruitTypeID)
	})
	if err != nil {
		logger.Errorw("remaining_callback_confirm_failed", "intent_no", intent.IntentNo, "error", err)
		return nil, err
	}

	preOrder.Status = constants.PreOrderStatusReadyForFulfillment
	preOrder.RemainingPaidAt = &now
	s.notificationService.Enqueue(preOrder.ID, constants.NotifyEventReady)
	logger.Infow("remaining_confirmed",
		"intent_no", intent.IntentNo,
		"pre_order_no", preOrder.PreOrderNo,
		"amount", intent.Amount.String(),
	)
	return preOrder, nil
}

// deactivateFruitTypeIfSettled 在途需求归零时自动下架品类
func deactivateFruitTypeIfSettled(tx *gorm.DB, preOrderRepo repository.PreOrderRepository, fruitTypeRepo repository.FruitTypeRepository, fruitTypeID uint) error {
	demand, err := preOrderRepo.WithTx(tx).SumQuantityByStatuses(fruitTypeID, constants.DemandStatuses())
	if err != nil {
		return err
	}
	if demand > 0 {
		return nil
	}
	if err := fruitTypeRepo.WithTx(tx).UpdateStatus(fruitTypeID, constants.FruitTypeStatusInactive); err != nil {
		return err
	}
	logger.Infow("fruit_type_deactivated_demand_settled", "fruit_type_id", fruitTypeID)
	return nil
}
