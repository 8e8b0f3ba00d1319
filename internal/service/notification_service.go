package service

import (
	"context"
	"errors"
	"strings"

	"github.com/orchard-next/internal/constants"
	"github.com/orchard-next/internal/logger"
	"github.com/orchard-next/internal/models"
	"github.com/orchard-next/internal/queue"
	"github.com/orchard-next/internal/repository"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
)

// NotificationService 预售通知服务。
// 事件先入队，由 worker 调用 Dispatch 完成邮件与推送发送。
type NotificationService struct {
	preOrderRepo repository.PreOrderRepository
	userRepo     repository.UserRepository
	emailService *EmailService
	pushService  *PushService
	queueClient  *queue.Client
}

// NewNotificationService 创建通知服务
func NewNotificationService(preOrderRepo repository.PreOrderRepository, userRepo repository.UserRepository, emailService *EmailService, pushService *PushService, queueClient *queue.Client) *NotificationService {
	return &NotificationService{
		preOrderRepo: preOrderRepo,
		userRepo:     userRepo,
		emailService: emailService,
		pushService:  pushService,
		queueClient:  queueClient,
	}
}

// Enqueue 入队预售通知事件。入队失败只记日志，不影响主流程。
func (s *NotificationService) Enqueue(preOrderID uint, event string) {
	if s == nil || s.queueClient == nil {
		return
	}
	err := s.queueClient.EnqueueNotification(queue.NotificationPayload{
		PreOrderID: preOrderID,
		Event:      event,
	}, asynq.MaxRetry(5))
	if err != nil {
		logger.Warnw("notification_enqueue_failed",
			"pre_order_id", preOrderID,
			"event", event,
			"error", err,
		)
	}
}

// Dispatch 处理预售通知任务
func (s *NotificationService) Dispatch(ctx context.Context, payload queue.NotificationPayload) error {
	if s == nil {
		return nil
	}
	if !isNotifyEventSupported(payload.Event) {
		logger.Warnw("notification_event_invalid", "pre_order_id", payload.PreOrderID, "event", payload.Event)
		return nil
	}
	preOrder, err := s.preOrderRepo.GetByID(payload.PreOrderID)
	if err != nil {
		return err
	}
	if preOrder == nil {
		logger.Warnw("notification_pre_order_missing", "pre_order_id", payload.PreOrderID)
		return nil
	}
	user, err := s.userRepo.GetByID(preOrder.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		logger.Warnw("notification_user_missing", "pre_order_id", preOrder.ID, "user_id", preOrder.UserID)
		return nil
	}

	fruitTypeName := ""
	if preOrder.FruitType != nil {
		fruitTypeName = preOrder.FruitType.Name
	}
	remaining := models.NewMoneyFromDecimal(preOrder.TotalAmount.Sub(preOrder.DepositPaid.Decimal))
	if remaining.LessThan(decimal.Zero) {
		remaining = models.NewMoneyFromInt(0)
	}

	input := PreOrderEmailInput{
		PreOrderNo:    preOrder.PreOrderNo,
		FruitTypeName: fruitTypeName,
		QuantityKg:    preOrder.QuantityKg,
		Event:         payload.Event,
		RemainingDue:  remaining,
		Currency:      preOrder.Currency,
	}

	if err := s.emailService.SendPreOrderEmail(user.Email, input); err != nil {
		if errors.Is(err, ErrEmailServiceDisabled) || errors.Is(err, ErrEmailServiceNotConfigured) {
			logger.Debugw("notification_email_skipped", "pre_order_id", preOrder.ID, "reason", err.Error())
		} else {
			logger.Warnw("notification_email_failed",
				"pre_order_id", preOrder.ID,
				"event", payload.Event,
				"error", err,
			)
		}
	}

	if s.pushService.Enabled() {
		subject, body := buildPreOrderEmailContent(input)
		if err := s.pushService.Send(ctx, PushMessage{
			Event:      payload.Event,
			PreOrderNo: preOrder.PreOrderNo,
			UserID:     preOrder.UserID,
			Title:      subject,
			Body:       body,
		}); err != nil {
			logger.Warnw("notification_push_failed",
				"pre_order_id", preOrder.ID,
				"event", payload.Event,
				"error", err,
			)
		}
	}
	return nil
}

// isNotifyEventSupported 校验事件名
func isNotifyEventSupported(event string) bool {
	switch strings.ToLower(strings.TrimSpace(event)) {
	case constants.NotifyEventAllocated,
		constants.NotifyEventDelayed,
		constants.NotifyEventReady,
		constants.NotifyEventCompleted,
		constants.NotifyEventTimeoutCancelled:
		return true
	}
	return false
}
