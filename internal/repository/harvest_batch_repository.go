package repository

import (
	"errors"
	"strings"

	"github.com/orchard-next/internal/models"

	"gorm.io/gorm"
)

// HarvestBatchRepository 采收批次数据访问接口
type HarvestBatchRepository interface {
	Create(batch *models.HarvestBatch) error
	GetByID(id uint) (*models.HarvestBatch, error)
	GetByBatchNo(batchNo string) (*models.HarvestBatch, error)
	ListByFruitType(fruitTypeID uint, page, pageSize int) ([]models.HarvestBatch, int64, error)
	AddReceived(id uint, quantityKg int) error
	WithTx(tx *gorm.DB) *GormHarvestBatchRepository
}

// GormHarvestBatchRepository GORM 实现
type GormHarvestBatchRepository struct {
	db *gorm.DB
}

// NewHarvestBatchRepository 创建采收批次仓库
func NewHarvestBatchRepository(db *gorm.DB) *GormHarvestBatchRepository {
	return &GormHarvestBatchRepository{db: db}
}

// WithTx 绑定事务
func (r *GormHarvestBatchRepository) WithTx(tx *gorm.DB) *GormHarvestBatchRepository {
	if tx == nil {
		return r
	}
	return &GormHarvestBatchRepository{db: tx}
}

// Create 创建采收批次
func (r *GormHarvestBatchRepository) Create(batch *models.HarvestBatch) error {
	return r.db.Create(batch).Error
}

// GetByID 根据 ID 获取批次
func (r *GormHarvestBatchRepository) GetByID(id uint) (*models.HarvestBatch, error) {
	var batch models.HarvestBatch
	if err := r.db.First(&batch, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &batch, nil
}

// GetByBatchNo 根据批次号获取批次
func (r *GormHarvestBatchRepository) GetByBatchNo(batchNo string) (*models.HarvestBatch, error) {
	var batch models.HarvestBatch
	if err := r.db.Where("batch_no = ?", strings.TrimSpace(batchNo)).First(&batch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &batch, nil
}

// ListByFruitType 查询品类的采收批次
func (r *GormHarvestBatchRepository) ListByFruitType(fruitTypeID uint, page, pageSize int) ([]models.HarvestBatch, int64, error) {
	query := r.db.Model(&models.HarvestBatch{})
	if fruitTypeID > 0 {
		query = query.Where("fruit_type_id = ?", fruitTypeID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.HarvestBatch
	if err := applyPagination(query.Order("id DESC"), page, pageSize).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// AddReceived 累加批次已入账公斤数
func (r *GormHarvestBatchRepository) AddReceived(id uint, quantityKg int) error {
	return r.db.Model(&models.HarvestBatch{}).
		Where("id = ?", id).
		Update("received_kg", gorm.Expr("received_kg + ?", quantityKg)).Error
}
