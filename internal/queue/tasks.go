package queue

import (
	"encoding/json"

	"github.com/orchard-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskPreOrderNotification 预售状态通知任务
	TaskPreOrderNotification = constants.TaskPreOrderNotification
	// TaskRemainingPaymentTimeout 尾款超时取消任务
	TaskRemainingPaymentTimeout = constants.TaskRemainingPaymentTimeout
)

// NotificationPayload 预售通知任务载荷
type NotificationPayload struct {
	PreOrderID uint   `json:"pre_order_id"`
	Event      string `json:"event"`
}

// RemainingTimeoutPayload 尾款超时取消任务载荷
type RemainingTimeoutPayload struct {
	PreOrderID uint `json:"pre_order_id"`
}

// NewNotificationTask 创建预售通知任务
func NewNotificationTask(payload NotificationPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPreOrderNotification, body), nil
}

// NewRemainingTimeoutTask 创建尾款超时取消任务
func NewRemainingTimeoutTask(payload RemainingTimeoutPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRemainingPaymentTimeout, body), nil
}
