package main

import (
	"time"

	"github.com/orchard-next/internal/config"
	"github.com/orchard-next/internal/constants"
	"github.com/orchard-next/internal/logger"
	"github.com/orchard-next/internal/models"

	"github.com/shopspring/decimal"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 初始化默认管理员
	if err := models.InitDefaultAdmin("", ""); err != nil {
		stdLog.Printf("Failed to init default admin: %v", err)
	}

	now := time.Now()

	// 添加示例水果品类
	fruitTypes := []models.FruitType{
		{
			Slug:               "yantai-red-fuji",
			Name:               "烟台红富士苹果",
			Description:        "产自烟台栖霞的红富士苹果，脆甜多汁，按整箱毛重预售。",
			EstimatedPrice:     models.NewMoneyFromDecimal(decimal.NewFromFloat(12.80)),
			MinOrderKg:         5,
			MaxOrderKg:         50,
			EstimatedHarvestAt: now.AddDate(0, 2, 0),
			AllowPreOrder:      true,
			Status:             constants.FruitTypeStatusActive,
		},
		{
			Slug:               "gannan-navel-orange",
			Name:               "赣南脐橙",
			Description:        "赣州信丰脐橙，皮薄化渣，采摘后 48 小时内发货。",
			EstimatedPrice:     models.NewMoneyFromDecimal(decimal.NewFromFloat(9.90)),
			MinOrderKg:         5,
			MaxOrderKg:         100,
			EstimatedHarvestAt: now.AddDate(0, 3, 0),
			AllowPreOrder:      true,
			Status:             constants.FruitTypeStatusActive,
		},
		{
			Slug:               "xinjiang-flat-peach",
			Name:               "新疆蟠桃",
			Description:        "喀什蟠桃，产量有限按批次到货分配，建议提前预订。",
			EstimatedPrice:     models.NewMoneyFromDecimal(decimal.NewFromFloat(25.00)),
			MinOrderKg:         2,
			MaxOrderKg:         20,
			EstimatedHarvestAt: now.AddDate(0, 1, 10),
			AllowPreOrder:      true,
			Status:             constants.FruitTypeStatusActive,
		},
		{
			Slug:               "demo-closed-lychee",
			Name:               "演示品类-妃子笑荔枝（已停售）",
			Description:        "用于后台停售状态展示，前台不可下单。",
			EstimatedPrice:     models.NewMoneyFromDecimal(decimal.NewFromFloat(32.00)),
			MinOrderKg:         1,
			MaxOrderKg:         10,
			EstimatedHarvestAt: now.AddDate(0, 0, 20),
			AllowPreOrder:      false,
			Status:             constants.FruitTypeStatusInactive,
		},
	}

	for _, ft := range fruitTypes {
		var existing models.FruitType
		if err := models.DB.Where("slug = ?", ft.Slug).First(&existing).Error; err != nil {
			if err := models.DB.Create(&ft).Error; err != nil {
				stdLog.Printf("Failed to create fruit type %s: %v", ft.Slug, err)
			} else {
				stdLog.Printf("Created fruit type: %s", ft.Slug)
			}
		} else {
			stdLog.Printf("Fruit type already exists: %s", ft.Slug)
		}
	}

	stdLog.Printf("Seed completed")
}
