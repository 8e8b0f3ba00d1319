package repository

import (
	"errors"
	"strings"

	"github.com/orchard-next/internal/models"

	"gorm.io/gorm"
)

// PreOrderListFilter 预购单列表过滤条件
type PreOrderListFilter struct {
	UserID      uint
	FruitTypeID uint
	Status      string
	PreOrderNo  string
	Page        int
	PageSize    int
}

// DemandRow 按品类聚合的在途需求
type DemandRow struct {
	FruitTypeID uint
	TotalKg     int
	Count       int
}

// PreOrderRepository 预购单数据访问接口
type PreOrderRepository interface {
	Create(preOrder *models.PreOrder) error
	GetByID(id uint) (*models.PreOrder, error)
	GetByPreOrderNo(preOrderNo string) (*models.PreOrder, error)
	List(filter PreOrderListFilter) ([]models.PreOrder, int64, error)
	ListQueueSegment(fruitTypeID uint, status string) ([]models.PreOrder, error)
	SumQuantityByStatuses(fruitTypeID uint, statuses []string) (int, error)
	CountByFruitTypeAndStatuses(fruitTypeID uint, statuses []string) (int64, error)
	AggregateDemand(statuses []string) ([]DemandRow, error)
	Update(id uint, updates map[string]interface{}) error
	WithTx(tx *gorm.DB) *GormPreOrderRepository
}

// GormPreOrderRepository GORM 实现
type GormPreOrderRepository struct {
	db *gorm.DB
}

// NewPreOrderRepository 创建预购单仓库
func NewPreOrderRepository(db *gorm.DB) *GormPreOrderRepository {
	return &GormPreOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPreOrderRepository) WithTx(tx *gorm.DB) *GormPreOrderRepository {
	if tx == nil {
		return r
	}
	return &GormPreOrderRepository{db: tx}
}

// Create 创建预购单
func (r *GormPreOrderRepository) Create(preOrder *models.PreOrder) error {
	return r.db.Create(preOrder).Error
}

// GetByID 根据 ID 获取预购单
func (r *GormPreOrderRepository) GetByID(id uint) (*models.PreOrder, error) {
	var preOrder models.PreOrder
	if err := r.db.Preload("FruitType").First(&preOrder, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &preOrder, nil
}

// GetByPreOrderNo 根据单号获取预购单
func (r *GormPreOrderRepository) GetByPreOrderNo(preOrderNo string) (*models.PreOrder, error) {
	var preOrder models.PreOrder
	if err := r.db.Preload("FruitType").
		Where("pre_order_no = ?", strings.TrimSpace(preOrderNo)).
		First(&preOrder).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &preOrder, nil
}

// List 分页查询预购单
func (r *GormPreOrderRepository) List(filter PreOrderListFilter) ([]models.PreOrder, int64, error) {
	query := r.db.Model(&models.PreOrder{})
	if filter.UserID > 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.FruitTypeID > 0 {
		query = query.Where("fruit_type_id = ?", filter.FruitTypeID)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if no := strings.TrimSpace(filter.PreOrderNo); no != "" {
		query = query.Where("pre_order_no = ?", no)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.PreOrder
	if err := applyPagination(query.Preload("FruitType").Order("id DESC"), filter.Page, filter.PageSize).
		Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListQueueSegment 按付款时间取出某一状态段的排队预购单。
// 付款时间相同的按 ID 升序，保证遍历顺序稳定。
func (r *GormPreOrderRepository) ListQueueSegment(fruitTypeID uint, status string) ([]models.PreOrder, error) {
	var items []models.PreOrder
	if err := r.db.Where("fruit_type_id = ? AND status = ?", fruitTypeID, status).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// SumQuantityByStatuses 汇总某品类下指定状态预购单的总公斤数
func (r *GormPreOrderRepository) SumQuantityByStatuses(fruitTypeID uint, statuses []string) (int, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	var total int64
	if err := r.db.Model(&models.PreOrder{}).
		Where("fruit_type_id = ? AND status IN ?", fruitTypeID, statuses).
		Select("COALESCE(SUM(quantity_kg), 0)").
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return int(total), nil
}

// CountByFruitTypeAndStatuses 统计某品类下指定状态的预购单数量
func (r *GormPreOrderRepository) CountByFruitTypeAndStatuses(fruitTypeID uint, statuses []string) (int64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	var count int64
	if err := r.db.Model(&models.PreOrder{}).
		Where("fruit_type_id = ? AND status IN ?", fruitTypeID, statuses).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// AggregateDemand 按品类聚合指定状态预购单的总需求
func (r *GormPreOrderRepository) AggregateDemand(statuses []string) ([]DemandRow, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	var rows []DemandRow
	if err := r.db.Model(&models.PreOrder{}).
		Where("status IN ?", statuses).
		Select("fruit_type_id AS fruit_type_id, COALESCE(SUM(quantity_kg), 0) AS total_kg, COUNT(*) AS count").
		Group("fruit_type_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Update 更新预购单字段
func (r *GormPreOrderRepository) Update(id uint, updates map[string]interface{}) error {
	return r.db.Model(&models.PreOrder{}).Where("id = ?", id).Updates(updates).Error
}
