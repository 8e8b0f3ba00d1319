package constants

// 预售订单状态常量
const (
	PreOrderStatusWaitingAllocation       = "waiting_for_allocation"
	PreOrderStatusWaitingNextBatch        = "waiting_for_next_batch"
	PreOrderStatusAllocatedWaitingPayment = "allocated_waiting_payment"
	PreOrderStatusReadyForFulfillment     = "ready_for_fulfillment"
	PreOrderStatusCompleted               = "completed"
	PreOrderStatusRefund                  = "refund"
	PreOrderStatusCancelled               = "cancelled"
)

// DemandStatuses 仍计入在途需求的预购单状态。
// 尾款已付及之后的状态不再占用需求额度。
func DemandStatuses() []string {
	return []string{
		PreOrderStatusWaitingAllocation,
		PreOrderStatusWaitingNextBatch,
		PreOrderStatusAllocatedWaitingPayment,
	}
}

// AllocatedStatuses 已获得分配份额的预购单状态，用于重算分配台账。
func AllocatedStatuses() []string {
	return []string{
		PreOrderStatusAllocatedWaitingPayment,
		PreOrderStatusReadyForFulfillment,
		PreOrderStatusCompleted,
	}
}

// 支付意向状态常量
const (
	IntentStatusPending = "pending"
	IntentStatusSuccess = "success"
	IntentStatusExpired = "expired"
)

// 支付意向类型常量
const (
	IntentKindDeposit   = "deposit"
	IntentKindRemaining = "remaining"
)

// 水果品类状态常量
const (
	FruitTypeStatusActive   = "active"
	FruitTypeStatusInactive = "inactive"
)

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 队列与任务常量
const (
	QueueDefault = "default"

	TaskPreOrderNotification    = "preorder:notification"
	TaskRemainingPaymentTimeout = "preorder:payment_timeout"
)

// 通知事件常量
const (
	NotifyEventAllocated        = "preorder_allocated"
	NotifyEventDelayed          = "preorder_delayed"
	NotifyEventReady            = "preorder_ready"
	NotifyEventCompleted        = "preorder_completed"
	NotifyEventTimeoutCancelled = "preorder_payment_timeout_cancelled"
)

// 预售默认参数
const (
	DefaultIntentExpireMinutes  = 15
	DefaultHarvestLockoutDays   = 7
	DefaultRemainingPaymentDays = 3
	DepositRatePercent          = 50
)

// 站点币种
const SiteCurrencyDefault = "CNY"

// 易支付回调应答
const (
	EpayCallbackSuccess = "success"
	EpayCallbackFail    = "fail"
)
