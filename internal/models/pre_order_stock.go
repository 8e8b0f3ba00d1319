package models

import (
	"time"
)

// PreOrderStock 预售库存台账：每个品类一行，记录已入库总量
//
// ReceivedKg 只增不减，仅由确认后的入库记录累加。
type PreOrderStock struct {
	ID          uint      `gorm:"primarykey" json:"id"`                     // 主键
	FruitTypeID uint      `gorm:"uniqueIndex;not null" json:"fruit_type_id"` // 水果品类ID
	ReceivedKg  int       `gorm:"not null;default:0" json:"received_kg"`    // 累计入库数量（kg）
	CreatedAt   time.Time `json:"created_at"`                               // 创建时间
	UpdatedAt   time.Time `gorm:"index" json:"updated_at"`                  // 更新时间
}

// TableName 指定表名
func (PreOrderStock) TableName() string {
	return "pre_order_stocks"
}
