package models

import (
	"time"
)

// HarvestBatch 采收批次表：带计划量的入库上限
type HarvestBatch struct {
	ID          uint      `gorm:"primarykey" json:"id"`                  // 主键
	BatchNo     string    `gorm:"uniqueIndex;not null" json:"batch_no"`  // 批次编号
	FruitTypeID uint      `gorm:"index;not null" json:"fruit_type_id"`   // 水果品类ID
	PlannedKg   int       `gorm:"not null" json:"planned_kg"`            // 计划入库数量（kg）
	ReceivedKg  int       `gorm:"not null;default:0" json:"received_kg"` // 已入库数量（kg）
	ArrivedAt   time.Time `gorm:"index" json:"arrived_at"`               // 到仓时间
	CreatedAt   time.Time `gorm:"index" json:"created_at"`               // 创建时间
	UpdatedAt   time.Time `json:"updated_at"`                            // 更新时间
}

// TableName 指定表名
func (HarvestBatch) TableName() string {
	return "harvest_batches"
}
