package models

import (
	"time"
)

// PreOrderAllocation 配货台账：每个品类一行，记录已承诺给订单的总量
//
// AllocatedKg 每次配货后全量重算（不做增量累加），避免中断或重跑造成漂移；
// 任一时刻 AllocatedKg 不得超过同品类 PreOrderStock.ReceivedKg。
type PreOrderAllocation struct {
	ID          uint      `gorm:"primarykey" json:"id"`                      // 主键
	FruitTypeID uint      `gorm:"uniqueIndex;not null" json:"fruit_type_id"` // 水果品类ID
	AllocatedKg int       `gorm:"not null;default:0" json:"allocated_kg"`    // 已配货数量（kg）
	CreatedAt   time.Time `json:"created_at"`                                // 创建时间
	UpdatedAt   time.Time `gorm:"index" json:"updated_at"`                   // 更新时间
}

// TableName 指定表名
func (PreOrderAllocation) TableName() string {
	return "pre_order_allocations"
}
