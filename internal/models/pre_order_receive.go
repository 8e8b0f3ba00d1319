package models

import (
	"time"
)

// PreOrderReceive 入库流水表（只追加，不修改不删除）
type PreOrderReceive struct {
	ID          uint      `gorm:"primarykey" json:"id"`                 // 主键
	FruitTypeID uint      `gorm:"index;not null" json:"fruit_type_id"`  // 水果品类ID
	BatchID     *uint     `gorm:"index" json:"batch_id,omitempty"`      // 采收批次ID（可选）
	QuantityKg  int       `gorm:"not null" json:"quantity_kg"`          // 入库数量（kg）
	ReceivedBy  uint      `gorm:"index;not null" json:"received_by"`    // 操作管理员ID
	Note        string    `gorm:"type:varchar(500)" json:"note,omitempty"` // 备注
	CreatedAt   time.Time `gorm:"index" json:"created_at"`              // 入库时间
}

// TableName 指定表名
func (PreOrderReceive) TableName() string {
	return "pre_order_receives"
}
