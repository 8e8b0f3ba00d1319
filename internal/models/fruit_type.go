package models

import (
	"time"
)

// FruitType 水果品类表（预售目录）
type FruitType struct {
	ID                 uint       `gorm:"primarykey" json:"id"`                              // 主键
	Slug               string     `gorm:"uniqueIndex;not null" json:"slug"`                  // 唯一标识
	Name               string     `gorm:"type:varchar(200);not null" json:"name"`            // 品类名称
	Description        string     `gorm:"type:text" json:"description,omitempty"`            // 品类介绍
	EstimatedPrice     Money      `gorm:"type:decimal(20,2);not null" json:"estimated_price"` // 预估单价（元/kg）
	MinOrderKg         int        `gorm:"not null;default:1" json:"min_order_kg"`            // 最小预订数量（kg）
	MaxOrderKg         int        `gorm:"not null;default:100" json:"max_order_kg"`          // 最大预订数量（kg）
	EstimatedHarvestAt time.Time  `gorm:"index;not null" json:"estimated_harvest_at"`        // 预计采收日期
	AllowPreOrder      bool       `gorm:"not null;default:true" json:"allow_pre_order"`      // 是否开放预售
	Status             string     `gorm:"index;not null;default:'active'" json:"status"`     // 品类状态（active/inactive）
	CreatedAt          time.Time  `gorm:"index" json:"created_at"`                           // 创建时间
	UpdatedAt          time.Time  `gorm:"index" json:"updated_at"`                           // 更新时间
}

// TableName 指定表名
func (FruitType) TableName() string {
	return "fruit_types"
}
