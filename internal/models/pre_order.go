package models

import (
	"time"
)

// PreOrder 预售订单表（需求单元）
//
// QuantityKg 与 TotalAmount 在创建后不可变；状态只能由配货、尾款回调
// 和管理端完成/退款动作推进。
type PreOrder struct {
	ID              uint       `gorm:"primarykey" json:"id"`                                      // 主键
	PreOrderNo      string     `gorm:"uniqueIndex;not null" json:"pre_order_no"`                  // 预售订单编号
	UserID          uint       `gorm:"index;not null" json:"user_id"`                             // 用户ID
	FruitTypeID     uint       `gorm:"index;not null" json:"fruit_type_id"`                       // 水果品类ID
	QuantityKg      int        `gorm:"not null" json:"quantity_kg"`                               // 预订数量（kg），创建后不可变
	DepositPaid     Money      `gorm:"type:decimal(20,2);not null;default:0" json:"deposit_paid"` // 已付定金
	TotalAmount     Money      `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"` // 订单总额，创建后不可变
	Currency        string     `gorm:"not null" json:"currency"`                                  // 币种
	Status          string     `gorm:"index;not null" json:"status"`                              // 预售订单状态
	RemainingPaidAt *time.Time `gorm:"index" json:"remaining_paid_at"`                            // 尾款支付时间
	AllocatedAt     *time.Time `gorm:"index" json:"allocated_at"`                                 // 配货时间
	CompletedAt     *time.Time `gorm:"index" json:"completed_at"`                                 // 完成时间
	RefundedAt      *time.Time `json:"refunded_at"`                                               // 退款标记时间
	CanceledAt      *time.Time `json:"canceled_at"`                                               // 取消时间（仅系统超时）
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`                                   // 创建时间（FIFO 排序键）
	UpdatedAt       time.Time  `gorm:"index" json:"updated_at"`                                   // 更新时间

	FruitType *FruitType `gorm:"foreignKey:FruitTypeID" json:"fruit_type,omitempty"` // 关联品类
}

// TableName 指定表名
func (PreOrder) TableName() string {
	return "pre_orders"
}
