package repository

import (
	"errors"

	"github.com/orchard-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllocationRepository 分配台账数据访问接口
type AllocationRepository interface {
	GetByFruitType(fruitTypeID uint) (*models.PreOrderAllocation, error)
	SetAllocated(fruitTypeID uint, allocatedKg int) error
	ListAll() ([]models.PreOrderAllocation, error)
	WithTx(tx *gorm.DB) *GormAllocationRepository
}

// GormAllocationRepository GORM 实现
type GormAllocationRepository struct {
	db *gorm.DB
}

// NewAllocationRepository 创建分配台账仓库
func NewAllocationRepository(db *gorm.DB) *GormAllocationRepository {
	return &GormAllocationRepository{db: db}
}

// WithTx 绑定事务
func (r *GormAllocationRepository) WithTx(tx *gorm.DB) *GormAllocationRepository {
	if tx == nil {
		return r
	}
	return &GormAllocationRepository{db: tx}
}

// GetByFruitType 获取品类的分配台账
func (r *GormAllocationRepository) GetByFruitType(fruitTypeID uint) (*models.PreOrderAllocation, error) {
	var allocation models.PreOrderAllocation
	if err := r.db.Where("fruit_type_id = ?", fruitTypeID).First(&allocation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &allocation, nil
}

// SetAllocated 写入品类的已分配公斤数。
// 每轮分配都整表重算后覆盖写入，不做增量累加。
func (r *GormAllocationRepository) SetAllocated(fruitTypeID uint, allocatedKg int) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "fruit_type_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"allocated_kg": allocatedKg,
		}),
	}).Create(&models.PreOrderAllocation{
		FruitTypeID: fruitTypeID,
		AllocatedKg: allocatedKg,
	}).Error
}

// ListAll 列出所有分配台账
func (r *GormAllocationRepository) ListAll() ([]models.PreOrderAllocation, error) {
	var items []models.PreOrderAllocation
	if err := r.db.Order("fruit_type_id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
