package repository

import (
	"errors"
	"strings"

	"github.com/orchard-next/internal/models"

	"gorm.io/gorm"
)

// FruitTypeListFilter 品类列表过滤条件
type FruitTypeListFilter struct {
	Status        string
	AllowPreOrder *bool
	Keyword       string
	Page          int
	PageSize      int
}

// FruitTypeRepository 水果品类数据访问接口
type FruitTypeRepository interface {
	Create(fruitType *models.FruitType) error
	GetByID(id uint) (*models.FruitType, error)
	GetBySlug(slug string) (*models.FruitType, error)
	ListPublic(page, pageSize int) ([]models.FruitType, int64, error)
	ListAdmin(filter FruitTypeListFilter) ([]models.FruitType, int64, error)
	Update(id uint, updates map[string]interface{}) error
	UpdateStatus(id uint, status string) error
	WithTx(tx *gorm.DB) *GormFruitTypeRepository
}

// GormFruitTypeRepository GORM 实现
type GormFruitTypeRepository struct {
	db *gorm.DB
}

// NewFruitTypeRepository 创建品类仓库
func NewFruitTypeRepository(db *gorm.DB) *GormFruitTypeRepository {
	return &GormFruitTypeRepository{db: db}
}

// WithTx 绑定事务
func (r *GormFruitTypeRepository) WithTx(tx *gorm.DB) *GormFruitTypeRepository {
	if tx == nil {
		return r
	}
	return &GormFruitTypeRepository{db: tx}
}

// Create 创建品类
func (r *GormFruitTypeRepository) Create(fruitType *models.FruitType) error {
	return r.db.Create(fruitType).Error
}

// GetByID 根据 ID 获取品类
func (r *GormFruitTypeRepository) GetByID(id uint) (*models.FruitType, error) {
	var fruitType models.FruitType
	if err := r.db.First(&fruitType, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &fruitType, nil
}

// GetBySlug 根据 slug 获取品类
func (r *GormFruitTypeRepository) GetBySlug(slug string) (*models.FruitType, error) {
	var fruitType models.FruitType
	if err := r.db.Where("slug = ?", strings.TrimSpace(slug)).First(&fruitType).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &fruitType, nil
}

// ListPublic 前台品类列表（仅开放预售的上架品类）
func (r *GormFruitTypeRepository) ListPublic(page, pageSize int) ([]models.FruitType, int64, error) {
	query := r.db.Model(&models.FruitType{}).
		Where("status = ?", "active").
		Where("allow_pre_order = ?", true)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.FruitType
	if err := applyPagination(query.Order("estimated_harvest_at ASC"), page, pageSize).
		Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListAdmin 管理端品类列表
func (r *GormFruitTypeRepository) ListAdmin(filter FruitTypeListFilter) ([]models.FruitType, int64, error) {
	query := r.db.Model(&models.FruitType{})
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if filter.AllowPreOrder != nil {
		query = query.Where("allow_pre_order = ?", *filter.AllowPreOrder)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		like := "%" + keyword + "%"
		query = query.Where("name LIKE ? OR slug LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.FruitType
	if err := applyPagination(query.Order("id DESC"), filter.Page, filter.PageSize).
		Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Update 更新品类字段
func (r *GormFruitTypeRepository) Update(id uint, updates map[string]interface{}) error {
	return r.db.Model(&models.FruitType{}).Where("id = ?", id).Updates(updates).Error
}

// UpdateStatus 更新品类状态
func (r *GormFruitTypeRepository) UpdateStatus(id uint, status string) error {
	return r.db.Model(&models.FruitType{}).Where("id = ?", id).Update("status", status).Error
}
