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

// DepositService 定金支付服务。
// 定金意向是唯一的下单入口，网关确认成功才会生成预售订单。
type DepositService struct {
	depositRepo      repository.DepositIntentRepository
	preOrderRepo     repository.PreOrderRepository
	fruitTypeRepo    repository.FruitTypeRepository
	fruitTypeService *FruitTypeService
	epayCfg          *epay.Config
	expireMinutes    int
}

// NewDepositService 创建定金服务
func NewDepositService(depositRepo repository.DepositIntentRepository, preOrderRepo repository.PreOrderRepository, fruitTypeRepo repository.FruitTypeRepository, fruitTypeService *FruitTypeService, epayCfg *epay.Config, expireMinutes int) *DepositService {
	if expireMinutes <= 0 {
		expireMinutes = constants.DefaultIntentExpireMinutes
	}
	return &DepositService{
		depositRepo:      depositRepo,
		preOrderRepo:     preOrderRepo,
		fruitTypeRepo:    fruitTypeRepo,
		fruitTypeService: fruitTypeService,
		epayCfg:          epayCfg,
		expireMinutes:    expireMinutes,
	}
}

// CreateDepositIntentInput 创建定金意向输入
type CreateDepositIntentInput struct {
	UserID      uint
	FruitTypeID uint
	QuantityKg  int
	ClientIP    string
}

// CreateDepositIntent 创建定金支付意向。
// 单价在此刻快照，定金按快照价的 50% 计算。
func (s *DepositService) CreateDepositIntent(input CreateDepositIntentInput) (*models.DepositIntent, error) {
	fruitType, err := s.fruitTypeRepo.GetByID(input.FruitTypeID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if err := s.fruitTypeService.EnsureOrderable(fruitType, input.QuantityKg, now); err != nil {
		return nil, err
	}

	unitPrice := fruitType.EstimatedPrice
	total := unitPrice.Mul(decimal.NewFromInt(int64(input.QuantityKg)))
	deposit := total.Mul(decimal.NewFromInt(constants.DepositRatePercent)).Div(decimal.NewFromInt(100))

	intent := &models.DepositIntent{
		IntentNo:    generateDepositIntentNo(),
		UserID:      input.UserID,
		FruitTypeID: fruitType.ID,
		QuantityKg:  input.QuantityKg,
		UnitPrice:   unitPrice,
		Amount:      models.NewMoneyFromDecimal(deposit),
		Currency:    constants.SiteCurrencyDefault,
		Status:      constants.IntentStatusPending,
		ClientIP:    input.ClientIP,
		ExpiresAt:   now.Add(time.Duration(s.expireMinutes) * time.Minute),
	}

	payURL, err := epay.BuildPayURL(s.epayCfg, epay.CreateInput{
		ReferenceNo: intent.IntentNo,
		Amount:      intent.Amount.String(),
		Subject:     fruitType.Name + " 预售定金",
		ClientIP:    input.ClientIP,
	})
	if err != nil {
		return nil, err
	}
	intent.PayURL = payURL

	if err := s.depositRepo.Create(intent); err != nil {
		return nil, err
	}
	logger.Infow("deposit_intent_created",
		"intent_no", intent.IntentNo,
		"user_id", intent.UserID,
		"fruit_type_id", intent.FruitTypeID,
		"quantity_kg", intent.QuantityKg,
		"amount", intent.Amount.String(),
	)
	return intent, nil
}

// GetDepositIntent 查询定金意向，读取时惰性标记过期
func (s *DepositService) GetDepositIntent(userID uint, intentNo string) (*models.DepositIntent, error) {
	intent, err := s.depositRepo.GetByIntentNo(intentNo)
	if err != nil {
		return nil, err
	}
	if intent == nil || intent.UserID != userID {
		return nil, ErrIntentNotFound
	}
	return s.expireIfDue(intent)
}

// expireIfDue 对超过有效期的待支付意向做惰性过期标记
func (s *DepositService) expireIfDue(intent *models.DepositIntent) (*models.DepositIntent, error) {
	if intent.Status != constants.IntentStatusPending || time.Now().Before(intent.ExpiresAt) {
		return intent, nil
	}
	if err := s.depositRepo.Update(intent.ID, map[string]interface{}{
		"status": constants.IntentStatusExpired,
	}); err != nil {
		return nil, err
	}
	intent.Status = constants.IntentStatusExpired
	logger.Infow("deposit_intent_expired_lazily", "intent_no", intent.IntentNo)
	return intent, nil
}

// ConfirmDepositCallback 处理定金网关异步回调。
// 重复回调幂等返回已有订单；过期意向的迟到回调会被拒绝。
func (s *DepositService) ConfirmDepositCallback(form url.Values) (*models.PreOrder, error) {
	if err := epay.VerifyCallback(s.epayCfg, form); err != nil {
		logger.Warnw("deposit_callback_sign_invalid", "error", err)
		return nil, err
	}
	if !epay.IsTradeSuccess(form) {
		logger.Infow("deposit_callback_not_success", "intent_no", form.Get("out_trade_no"))
		return nil, nil
	}

	intentNo := form.Get("out_trade_no")
	intent, err := s.depositRepo.GetByIntentNo(intentNo)
	if err != nil {
		return nil, err
	}
	if intent == nil {
		logger.Warnw("deposit_callback_intent_not_found", "intent_no", intentNo)
		return nil, ErrIntentNotFound
	}

	// 幂等处理：已成功的直接返回既有订单
	if intent.Status == constants.IntentStatusSuccess {
		logger.Infow("deposit_callback_idempotent", "intent_no", intent.IntentNo)
		if intent.PreOrderID != nil {
			return s.preOrderRepo.GetByID(*intent.PreOrderID)
		}
		return nil, nil
	}

	intent, err = s.expireIfDue(intent)
	if err != nil {
		return nil, err
	}
	if intent.Status == constants.IntentStatusExpired {
		logger.Warnw("deposit_callback_after_expiry", "intent_no", intent.IntentNo)
		return nil, ErrIntentExpired
	}

	if money := form.Get("money"); money != "" {
		paid, parseErr := decimal.NewFromString(money)
		if parseErr != nil || paid.Cmp(intent.Amount.Decimal) != 0 {
			logger.Warnw("deposit_callback_amount_mismatch",
				"intent_no", intent.IntentNo,
				"expected", intent.Amount.String(),
				"got", money,
			)
			return nil, ErrAmountMismatch
		}
	}

	fruitType, err := s.fruitTypeRepo.GetByID(intent.FruitTypeID)
	if err != nil {
		return nil, err
	}
	if fruitType == nil {
		return nil, ErrFruitTypeNotFound
	}

	// 总额按确认时刻的品类现价计算，写入后不再变动
	now := time.Now()
	total := fruitType.EstimatedPrice.Mul(decimal.NewFromInt(int64(intent.QuantityKg)))
	preOrder := &models.PreOrder{
		PreOrderNo:  generatePreOrderNo(),
		UserID:      intent.UserID,
		FruitTypeID: intent.FruitTypeID,
		QuantityKg:  intent.QuantityKg,
		DepositPaid: intent.Amount,
		TotalAmount: models.NewMoneyFromDecimal(total),
		Currency:    intent.Currency,
		Status:      constants.PreOrderStatusWaitingAllocation,
	}

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		preOrderRepo := s.preOrderRepo.WithTx(tx)
		if err := preOrderRepo.Create(preOrder); err != nil {
			return err
		}
		return s.depositRepo.WithTx(tx).Update(intent.ID, map[string]interface{}{
			"status":        constants.IntentStatusSuccess,
			"paid_at":       now,
			"pre_order_id":  preOrder.ID,
			"callback_json": callbackPayload(form),
		})
	})
	if err != nil {
		logger.Errorw("deposit_callback_confirm_failed", "intent_no", intent.IntentNo, "error", err)
		return nil, err
	}

	logger.Infow("deposit_confirmed",
		"intent_no", intent.IntentNo,
		"pre_order_no", preOrder.PreOrderNo,
		"user_id", preOrder.UserID,
		"fruit_type_id", preOrder.FruitTypeID,
		"quantity_kg", preOrder.QuantityKg,
		"total_amount", preOrder.TotalAmount.String(),
	)
	return preOrder, nil
}

// ListUserDepositIntents 查询用户的定金意向
func (s *DepositService) ListUserDepositIntents(userID uint, page, pageSize int) ([]models.DepositIntent, int64, error) {
	return s.depositRepo.ListByUser(userID, page, pageSize)
}

// callbackPayload 将网关回调参数保留为审计载荷
func callbackPayload(form url.Values) models.JSON {
	payload := make(models.JSON, len(form))
	for key := range form {
		payload[key] = form.Get(key)
	}
	return payload
}
