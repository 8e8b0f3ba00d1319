package repository

import (
	"github.com/orchard-next/internal/models"

	"gorm.io/gorm"
)

// ReceiveRepository 到货流水数据访问接口
type ReceiveRepository interface {
	Create(receive *models.PreOrderReceive) error
	ListByFruitType(fruitTypeID uint, page, pageSize int) ([]models.PreOrderReceive, int64, error)
	SumByBatch(batchID uint) (int, error)
	WithTx(tx *gorm.DB) *GormReceiveRepository
}

// GormReceiveRepository GORM 实现
type GormReceiveRepository struct {
	db *gorm.DB
}

// NewReceiveRepository 创建到货流水仓库
func NewReceiveRepository(db *gorm.DB) *GormReceiveRepository {
	return &GormReceiveRepository{db: db}
}

// WithTx 绑定事务
func (r *GormReceiveRepository) WithTx(tx *gorm.DB) *GormReceiveRepository {
	if tx == nil {
		return r
	}
	return &GormReceiveRepository{db: tx}
}

// Create 写入一条到货流水。流水只增不改。
func (r *GormReceiveRepository) Create(receive *models.PreOrderReceive) error {
	return r.db.Create(receive).Error
}

// ListByFruitType 查询品类的到货流水，fruitTypeID 为 0 时不过滤
func (r *GormReceiveRepository) ListByFruitType(fruitTypeID uint, page, pageSize int) ([]models.PreOrderReceive, int64, error) {
	query := r.db.Model(&models.PreOrderReceive{})
	if fruitTypeID > 0 {
		query = query.Where("fruit_type_id = ?", fruitTypeID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.PreOrderReceive
	if err := applyPagination(query.Order("id DESC"), page, pageSize).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// SumByBatch 汇总某采收批次已入账的公斤数
func (r *GormReceiveRepository) SumByBatch(batchID uint) (int, error) {
	var total int64
	if err := r.db.Model(&models.PreOrderReceive{}).
		Where("batch_id = ?", batchID).
		Select("COALESCE(SUM(quantity_kg), 0)").
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return int(total), nil
}
