package service

import "github.com/orchard-next/internal/constants"

// 预购单状态机。cancelled 只能由尾款超时任务触达，
// 用户主动取消在任何状态下都会被拒绝。
var allowedTransitions = map[string]map[string]bool{
	constants.PreOrderStatusWaitingAllocation: {
		constants.PreOrderStatusWaitingNextBatch:        true,
		constants.PreOrderStatusAllocatedWaitingPayment: true,
		constants.PreOrderStatusRefund:                  true,
	},
	constants.PreOrderStatusWaitingNextBatch: {
		constants.PreOrderStatusAllocatedWaitingPayment: true,
		constants.PreOrderStatusRefund:                  true,
	},
	constants.PreOrderStatusAllocatedWaitingPayment: {
		constants.PreOrderStatusReadyForFulfillment: true,
		constants.PreOrderStatusCancelled:           true,
		constants.PreOrderStatusRefund:              true,
	},
	constants.PreOrderStatusReadyForFulfillment: {
		constants.PreOrderStatusCompleted: true,
		constants.PreOrderStatusRefund:    true,
	},
}

func isTransitionAllowed(current, target string) bool {
	if current == target {
		return true
	}
	nexts, ok := allowedTransitions[current]
	if !ok {
		return false
	}
	return nexts[target]
}

// isTerminalStatus 终态不再参与任何流转
func isTerminalStatus(status string) bool {
	switch status {
	case constants.PreOrderStatusCompleted,
		constants.PreOrderStatusRefund,
		constants.PreOrderStatusCancelled:
		return true
	}
	return false
}
