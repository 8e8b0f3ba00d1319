package models

import (
	"time"
)

// DepositIntent 定金支付意向表
//
// 仅在网关确认成功时创建预售订单；成功后重复回调为幂等空操作，
// 过期在读取时惰性标记，记录永不删除。
type DepositIntent struct {
	ID           uint       `gorm:"primarykey" json:"id"`                          // 主键
	IntentNo     string     `gorm:"uniqueIndex;not null" json:"intent_no"`         // 意向编号（网关参考号）
	UserID       uint       `gorm:"index;not null" json:"user_id"`                 // 用户ID
	FruitTypeID  uint       `gorm:"index;not null" json:"fruit_type_id"`           // 水果品类ID
	QuantityKg   int        `gorm:"not null" json:"quantity_kg"`                   // 预订数量（kg）
	UnitPrice    Money      `gorm:"type:decimal(20,2);not null" json:"unit_price"` // 创建时锁定的预估单价
	Amount       Money      `gorm:"type:decimal(20,2);not null" json:"amount"`     // 定金金额（50%）
	Currency     string     `gorm:"not null" json:"currency"`                      // 币种
	Status       string     `gorm:"index;not null" json:"status"`                  // 意向状态（pending/success/expired）
	PayURL       string     `gorm:"type:text" json:"pay_url"`                      // 网关跳转链接
	CallbackJSON JSON       `gorm:"type:text" json:"-"`                            // 网关回调原始参数（审计）
	PreOrderID   *uint      `gorm:"index" json:"pre_order_id,omitempty"`           // 确认后生成的预售订单ID
	ClientIP     string     `gorm:"type:varchar(64)" json:"client_ip,omitempty"`   // 下单客户端IP
	ExpiresAt    time.Time  `gorm:"index;not null" json:"expires_at"`              // 过期时间
	PaidAt       *time.Time `gorm:"index" json:"paid_at"`                          // 支付时间
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`                       // 创建时间
	UpdatedAt    time.Time  `gorm:"index" json:"updated_at"`                       // 更新时间
}

// TableName 指定表名
func (DepositIntent) TableName() string {
	return "deposit_intents"
}
