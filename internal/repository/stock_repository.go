package repository

import (
	"errors"

	"github.com/orchard-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockRepository 预售库存台账数据访问接口
type StockRepository interface {
	GetByFruitType(fruitTypeID uint) (*models.PreOrderStock, error)
	AddReceived(fruitTypeID uint, quantityKg int) error
	ListAll() ([]models.PreOrderStock, error)
	WithTx(tx *gorm.DB) *GormStockRepository
}

// GormStockRepository GORM 实现
type GormStockRepository struct {
	db *gorm.DB
}

// NewStockRepository 创建库存台账仓库
func NewStockRepository(db *gorm.DB) *GormStockRepository {
	return &GormStockRepository{db: db}
}

// WithTx 绑定事务
func (r *GormStockRepository) WithTx(tx *gorm.DB) *GormStockRepository {
	if tx == nil {
		return r
	}
	return &GormStockRepository{db: tx}
}

// GetByFruitType 获取品类的库存台账
func (r *GormStockRepository) GetByFruitType(fruitTypeID uint) (*models.PreOrderStock, error) {
	var stock models.PreOrderStock
	if err := r.db.Where("fruit_type_id = ?", fruitTypeID).First(&stock).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &stock, nil
}

// AddReceived 累加品类的到货公斤数，台账不存在时插入
func (r *GormStockRepository) AddReceived(fruitTypeID uint, quantityKg int) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "fruit_type_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"received_kg": gorm.Expr("received_kg + ?", quantityKg),
		}),
	}).Create(&models.PreOrderStock{
		FruitTypeID: fruitTypeID,
		ReceivedKg:  quantityKg,
	}).Error
}

// ListAll 列出所有台账
func (r *GormStockRepository) ListAll() ([]models.PreOrderStock, error) {
	var items []models.PreOrderStock
	if err := r.db.Order("fruit_type_id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
