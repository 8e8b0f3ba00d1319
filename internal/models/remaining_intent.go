package models

import (
	"time"
)

// RemainingIntent 尾款支付意向表
//
// 仅当预售订单处于 allocated_waiting_payment 时允许创建；
// 确认成功是订单进入 ready_for_fulfillment 的唯一途径。
type RemainingIntent struct {
	ID           uint       `gorm:"primarykey" json:"id"`                        // 主键
	IntentNo     string     `gorm:"uniqueIndex;not null" json:"intent_no"`       // 意向编号（网关参考号）
	PreOrderID   uint       `gorm:"index;not null" json:"pre_order_id"`          // 预售订单ID
	UserID       uint       `gorm:"index;not null" json:"user_id"`               // 用户ID
	Amount       Money      `gorm:"type:decimal(20,2);not null" json:"amount"`   // 尾款金额（总额-定金）
	Currency     string     `gorm:"not null" json:"currency"`                    // 币种
	Status       string     `gorm:"index;not null" json:"status"`                // 意向状态（pending/success/expired）
	PayURL       string     `gorm:"type:text" json:"pay_url"`                    // 网关跳转链接
	CallbackJSON JSON       `gorm:"type:text" json:"-"`                          // 网关回调原始参数（审计）
	ClientIP     string     `gorm:"type:varchar(64)" json:"client_ip,omitempty"` // 客户端IP
	ExpiresAt    time.Time  `gorm:"index;not null" json:"expires_at"`            // 过期时间
	PaidAt       *time.Time `gorm:"index" json:"paid_at"`                        // 支付时间
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`                     // 创建时间
	UpdatedAt    time.Time  `gorm:"index" json:"updated_at"`                     // 更新时间
}

// TableName 指定表名
func (RemainingIntent) TableName() string {
	return "remaining_intents"
}
