package service

import (
	"strings"
	"time"

	"github.com/orchard-next/internal/constants"
	"github.com/orchard-next/internal/models"
	"github.com/orchard-next/internal/repository"

	"github.com/shopspring/decimal"
)

// FruitTypeService 水果品类服务
type FruitTypeService struct {
	fruitTypeRepo      repository.FruitTypeRepository
	harvestLockoutDays int
}

// NewFruitTypeService 创建品类服务
func NewFruitTypeService(fruitTypeRepo repository.FruitTypeRepository, harvestLockoutDays int) *FruitTypeService {
	if harvestLockoutDays <= 0 {
		harvestLockoutDays = constants.DefaultHarvestLockoutDays
	}
	return &FruitTypeService{
		fruitTypeRepo:      fruitTypeRepo,
		harvestLockoutDays: harvestLockoutDays,
	}
}

// CreateFruitTypeInput 创建品类输入
type CreateFruitTypeInput struct {
	Slug               string
	Name               string
	Description        string
	EstimatedPrice     decimal.Decimal
	MinOrderKg         int
	MaxOrderKg         int
	EstimatedHarvestAt time.Time
	AllowPreOrder      bool
}

// CreateFruitType 创建品类
func (s *FruitTypeService) CreateFruitType(input CreateFruitTypeInput) (*models.FruitType, error) {
	slug := strings.TrimSpace(input.Slug)
	name := strings.TrimSpace(input.Name)
	if slug == "" || name == "" || input.EstimatedPrice.LessThanOrEqual(decimal.Zero) {
		return nil, ErrFruitTypeNotOrderable
	}
	if input.MinOrderKg <= 0 {
		input.MinOrderKg = 1
	}
	if input.MaxOrderKg < input.MinOrderKg {
		return nil, ErrQuantityOutOfRange
	}
	existing, err := s.fruitTypeRepo.GetBySlug(slug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrFruitTypeSlugTaken
	}

	fruitType := &models.FruitType{
		Slug:               slug,
		Name:               name,
		Description:        strings.TrimSpace(input.Description),
		EstimatedPrice:     models.NewMoneyFromDecimal(input.EstimatedPrice),
		MinOrderKg:         input.MinOrderKg,
		MaxOrderKg:         input.MaxOrderKg,
		EstimatedHarvestAt: input.EstimatedHarvestAt,
		AllowPreOrder:      input.AllowPreOrder,
		Status:             constants.FruitTypeStatusActive,
	}
	if err := s.fruitTypeRepo.Create(fruitType); err != nil {
		return nil, err
	}
	return fruitType, nil
}

// UpdateFruitTypeInput 更新品类输入。nil 字段表示不修改。
// 改价只影响之后创建的支付意向，已生成订单的金额不受影响。
type UpdateFruitTypeInput struct {
	Name               *string
	Description        *string
	EstimatedPrice     *decimal.Decimal
	MinOrderKg         *int
	MaxOrderKg         *int
	EstimatedHarvestAt *time.Time
	AllowPreOrder      *bool
	Status             *string
}

// UpdateFruitType 更新品类
func (s *FruitTypeService) UpdateFruitType(id uint, input UpdateFruitTypeInput) (*models.FruitType, error) {
	fruitType, err := s.fruitTypeRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if fruitType == nil {
		return nil, ErrFruitTypeNotFound
	}

	updates := map[string]interface{}{}
	if input.Name != nil && strings.TrimSpace(*input.Name) != "" {
		updates["name"] = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.EstimatedPrice != nil {
		if input.EstimatedPrice.LessThanOrEqual(decimal.Zero) {
			return nil, ErrFruitTypeNotOrderable
		}
		updates["estimated_price"] = models.NewMoneyFromDecimal(*input.EstimatedPrice)
	}
	minKg := fruitType.MinOrderKg
	maxKg := fruitType.MaxOrderKg
	if input.MinOrderKg != nil {
		minKg = *input.MinOrderKg
	}
	if input.MaxOrderKg != nil {
		maxKg = *input.MaxOrderKg
	}
	if minKg <= 0 || maxKg < minKg {
		return nil, ErrQuantityOutOfRange
	}
	updates["min_order_kg"] = minKg
	updates["max_order_kg"] = maxKg
	if input.EstimatedHarvestAt != nil {
		updates["estimated_harvest_at"] = *input.EstimatedHarvestAt
	}
	if input.AllowPreOrder != nil {
		updates["allow_pre_order"] = *input.AllowPreOrder
	}
	if input.Status != nil {
		status := strings.TrimSpace(*input.Status)
		if status != constants.FruitTypeStatusActive && status != constants.FruitTypeStatusInactive {
			return nil, ErrFruitTypeNotFound
		}
		updates["status"] = status
	}

	if err := s.fruitTypeRepo.Update(id, updates); err != nil {
		return nil, err
	}
	return s.fruitTypeRepo.GetByID(id)
}

// GetFruitType 获取品类详情
func (s *FruitTypeService) GetFruitType(id uint) (*models.FruitType, error) {
	fruitType, err := s.fruitTypeRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if fruitType == nil {
		return nil, ErrFruitTypeNotFound
	}
	return fruitType, nil
}

// GetFruitTypeBySlug 根据 slug 获取品类详情
func (s *FruitTypeService) GetFruitTypeBySlug(slug string) (*models.FruitType, error) {
	fruitType, err := s.fruitTypeRepo.GetBySlug(slug)
	if err != nil {
		return nil, err
	}
	if fruitType == nil {
		return nil, ErrFruitTypeNotFound
	}
	return fruitType, nil
}

// ListPublicFruitTypes 前台品类列表
func (s *FruitTypeService) ListPublicFruitTypes(page, pageSize int) ([]models.FruitType, int64, error) {
	return s.fruitTypeRepo.ListPublic(page, pageSize)
}

// ListAdminFruitTypes 管理端品类列表
func (s *FruitTypeService) ListAdminFruitTypes(filter repository.FruitTypeListFilter) ([]models.FruitType, int64, error) {
	return s.fruitTypeRepo.ListAdmin(filter)
}

// EnsureOrderable 校验品类当前可接受预订
func (s *FruitTypeService) EnsureOrderable(fruitType *models.FruitType, quantityKg int, now time.Time) error {
	if fruitType == nil {
		return ErrFruitTypeNotFound
	}
	if fruitType.Status != constants.FruitTypeStatusActive || !fruitType.AllowPreOrder {
		return ErrFruitTypeNotOrderable
	}
	if quantityKg < fruitType.MinOrderKg || quantityKg > fruitType.MaxOrderKg {
		return ErrQuantityOutOfRange
	}
	lockout := fruitType.EstimatedHarvestAt.AddDate(0, 0, -s.harvestLockoutDays)
	if !now.Before(lockout) {
		return ErrHarvestTooClose
	}
	return nil
}
