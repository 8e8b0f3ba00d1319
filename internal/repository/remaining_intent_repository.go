package repository

import (
	"errors"
	"strings"

	"github.com/orchard-next/internal/models"

	"gorm.io/gorm"
)

// RemainingIntentRepository 尾款支付意向数据访问接口
type RemainingIntentRepository interface {
	Create(intent *models.RemainingIntent) error
	GetByID(id uint) (*models.RemainingIntent, error)
	GetByIntentNo(intentNo string) (*models.RemainingIntent, error)
	GetPendingByPreOrder(preOrderID uint) (*models.RemainingIntent, error)
	Update(id uint, updates map[string]interface{}) error
	WithTx(tx *gorm.DB) *GormRemainingIntentRepository
}

// GormRemainingIntentRepository GORM 实现
type GormRemainingIntentRepository struct {
	db *gorm.DB
}

// NewRemainingIntentRepository 创建尾款意向仓库
func NewRemainingIntentRepository(db *gorm.DB) *GormRemainingIntentRepository {
	return &GormRemainingIntentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRemainingIntentRepository) WithTx(tx *gorm.DB) *GormRemainingIntentRepository {
	if tx == nil {
		return r
	}
	return &GormRemainingIntentRepository{db: tx}
}

// Create 创建尾款意向
func (r *GormRemainingIntentRepository) Create(intent *models.RemainingIntent) error {
	return r.db.Create(intent).Error
}

// GetByID 根据 ID 获取尾款意向
func (r *GormRemainingIntentRepository) GetByID(id uint) (*models.RemainingIntent, error) {
	var intent models.RemainingIntent
	if err := r.db.First(&intent, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

// GetByIntentNo 根据意向单号获取尾款意向
func (r *GormRemainingIntentRepository) GetByIntentNo(intentNo string) (*models.RemainingIntent, error) {
	var intent models.RemainingIntent
	if err := r.db.Where("intent_no = ?", strings.TrimSpace(intentNo)).First(&intent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

// GetPendingByPreOrder 获取预购单下待支付的尾款意向
func (r *GormRemainingIntentRepository) GetPendingByPreOrder(preOrderID uint) (*models.RemainingIntent, error) {
	var intent models.RemainingIntent
	if err := r.db.Where("pre_order_id = ? AND status = ?", preOrderID, "pending").
		Order("id DESC").
		First(&intent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

// Update 更新尾款意向
func (r *GormRemainingIntentRepository) Update(id uint, updates map[string]interface{}) error {
	return r.db.Model(&models.RemainingIntent{}).Where("id = ?", id).Updates(updates).Error
}
