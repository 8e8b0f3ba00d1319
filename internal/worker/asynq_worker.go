package worker

import (
	"context"
	"encoding/json"

	"github.com/orchard-next/internal/logger"
	"github.com/orchard-next/internal/provider"
	"github.com/orchard-next/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskPreOrderNotification, c.handlePreOrderNotification)
	mux.HandleFunc(queue.TaskRemainingPaymentTimeout, c.handleRemainingPaymentTimeout)
}

func (c *Consumer) handlePreOrderNotification(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_notification_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.NotificationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_notification_unmarshal_failed", "error", err)
		return err
	}
	if payload.PreOrderID == 0 || payload.Event == "" {
		logger.Debugw("worker_notification_skip_invalid_payload", "pre_order_id", payload.PreOrderID, "event", payload.Event)
		return nil
	}
	if c.NotificationService == nil {
		logger.Warnw("worker_notification_skip_service_nil", "pre_order_id", payload.PreOrderID)
		return nil
	}
	return c.NotificationService.Dispatch(ctx, payload)
}

func (c *Consumer) handleRemainingPaymentTimeout(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_timeout_cancel_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.RemainingTimeoutPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_timeout_cancel_unmarshal_failed", "error", err)
		return err
	}
	if payload.PreOrderID == 0 {
		logger.Debugw("worker_timeout_cancel_skip_invalid_payload", "pre_order_id", payload.PreOrderID)
		return nil
	}
	if c.AllocationService == nil {
		logger.Warnw("worker_timeout_cancel_skip_service_nil", "pre_order_id", payload.PreOrderID)
		return nil
	}
	// 配货锁被占用时返回错误交给 asynq 重试
	return c.AllocationService.CancelRemainingTimeout(ctx, payload.PreOrderID)
}
