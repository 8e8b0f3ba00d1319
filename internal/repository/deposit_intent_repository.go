package repository

import (
	"errors"
	"strings"

	"github.com/orchard-next/internal/models"

	"gorm.io/gorm"
)

// DepositIntentRepository 定金支付意向数据访问接口
type DepositIntentRepository interface {
	Create(intent *models.DepositIntent) error
	GetByID(id uint) (*models.DepositIntent, error)
	GetByIntentNo(intentNo string) (*models.DepositIntent, error)
	ListByUser(userID uint, page, pageSize int) ([]models.DepositIntent, int64, error)
	Update(id uint, updates map[string]interface{}) error
	WithTx(tx *gorm.DB) *GormDepositIntentRepository
}

// GormDepositIntentRepository GORM 实现
type GormDepositIntentRepository struct {
	db *gorm.DB
}

// NewDepositIntentRepository 创建定金意向仓库
func NewDepositIntentRepository(db *gorm.DB) *GormDepositIntentRepository {
	return &GormDepositIntentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormDepositIntentRepository) WithTx(tx *gorm.DB) *GormDepositIntentRepository {
	if tx == nil {
		return r
	}
	return &GormDepositIntentRepository{db: tx}
}

// Create 创建定金意向
func (r *GormDepositIntentRepository) Create(intent *models.DepositIntent) error {
	return r.db.Create(intent).Error
}

// GetByID 根据 ID 获取定金意向
func (r *GormDepositIntentRepository) GetByID(id uint) (*models.DepositIntent, error) {
	var intent models.DepositIntent
	if err := r.db.First(&intent, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

// GetByIntentNo 根据意向单号获取定金意向
func (r *GormDepositIntentRepository) GetByIntentNo(intentNo string) (*models.DepositIntent, error) {
	var intent models.DepositIntent
	if err := r.db.Where("intent_no = ?", strings.TrimSpace(intentNo)).First(&intent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

// ListByUser 查询用户的定金意向
func (r *GormDepositIntentRepository) ListByUser(userID uint, page, pageSize int) ([]models.DepositIntent, int64, error) {
	query := r.db.Model(&models.DepositIntent{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.DepositIntent
	if err := applyPagination(query.Order("id DESC"), page, pageSize).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Update 更新定金意向
func (r *GormDepositIntentRepository) Update(id uint, updates map[string]interface{}) error {
	return r.db.Model(&models.DepositIntent{}).Where("id = ?", id).Updates(updates).Error
}
