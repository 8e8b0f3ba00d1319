package provider

import (
	"time"

	"github.com/orchard-next/internal/cache"
	"github.com/orchard-next/internal/config"
	"github.com/orchard-next/internal/logger"
	"github.com/orchard-next/internal/models"
	"github.com/orchard-next/internal/payment/epay"
	"github.com/orchard-next/internal/queue"
	"github.com/orchard-next/internal/repository"
	"github.com/orchard-next/internal/service"
)

// 配货互斥锁的兜底有效期，防止进程异常退出后锁悬挂
const allocLockTTL = 2 * time.Minute

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	AllocLock   *cache.AllocLock

	// Repositories
	AdminRepo           repository.AdminRepository
	UserRepo            repository.UserRepository
	FruitTypeRepo       repository.FruitTypeRepository
	PreOrderRepo        repository.PreOrderRepository
	DepositIntentRepo   repository.DepositIntentRepository
	RemainingIntentRepo repository.RemainingIntentRepository
	StockRepo           repository.StockRepository
	ReceiveRepo         repository.ReceiveRepository
	HarvestBatchRepo    repository.HarvestBatchRepository
	AllocationRepo      repository.AllocationRepository

	// Services
	AuthService         *service.AuthService
	UserAuthService     *service.UserAuthService
	EmailService        *service.EmailService
	PushService         *service.PushService
	NotificationService *service.NotificationService
	FruitTypeService    *service.FruitTypeService
	DepositService      *service.DepositService
	RemainingService    *service.RemainingService
	PreOrderService     *service.PreOrderService
	StockService        *service.StockService
	AllocationService   *service.AllocationService
	DemandService       *service.DemandService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
		AllocLock:   cache.NewAllocLock(allocLockTTL),
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.UserRepo = repository.NewUserRepository(db)
	c.FruitTypeRepo = repository.NewFruitTypeRepository(db)
	c.PreOrderRepo = repository.NewPreOrderRepository(db)
	c.DepositIntentRepo = repository.NewDepositIntentRepository(db)
	c.RemainingIntentRepo = repository.NewRemainingIntentRepository(db)
	c.StockRepo = repository.NewStockRepository(db)
	c.ReceiveRepo = repository.NewReceiveRepository(db)
	c.HarvestBatchRepo = repository.NewHarvestBatchRepository(db)
	c.AllocationRepo = repository.NewAllocationRepository(db)
}

func (c *Container) initServices() {
	c.AuthService = service.NewAuthService(c.Config, c.AdminRepo)
	c.UserAuthService = service.NewUserAuthService(c.Config, c.UserRepo)
	c.EmailService = service.NewEmailService(&c.Config.Email)
	c.PushService = service.NewPushService(&c.Config.Push)
	c.NotificationService = service.NewNotificationService(c.PreOrderRepo, c.UserRepo, c.EmailService, c.PushService, c.QueueClient)

	epayCfg := buildEpayConfig(&c.Config.Epay)
	c.FruitTypeService = service.NewFruitTypeService(c.FruitTypeRepo, c.Config.PreOrder.HarvestLockoutDays)
	c.DepositService = service.NewDepositService(c.DepositIntentRepo, c.PreOrderRepo, c.FruitTypeRepo, c.FruitTypeService, epayCfg, c.Config.PreOrder.IntentExpireMinutes)
	c.RemainingService = service.NewRemainingService(c.RemainingIntentRepo, c.PreOrderRepo, c.FruitTypeRepo, c.NotificationService, epayCfg, c.Config.PreOrder.IntentExpireMinutes)
	c.PreOrderService = service.NewPreOrderService(c.PreOrderRepo, c.AllocationRepo, c.FruitTypeRepo, c.NotificationService, c.AllocLock)
	c.StockService = service.NewStockService(c.StockRepo, c.ReceiveRepo, c.HarvestBatchRepo, c.AllocationRepo, c.PreOrderRepo, c.FruitTypeRepo, c.AllocLock)
	c.AllocationService = service.NewAllocationService(c.PreOrderRepo, c.StockRepo, c.AllocationRepo, c.FruitTypeRepo, c.NotificationService, c.QueueClient, c.AllocLock, c.Config.PreOrder.RemainingPaymentDays)
	c.DemandService = service.NewDemandService(c.PreOrderRepo, c.StockRepo, c.AllocationRepo, c.FruitTypeRepo)
}

// buildEpayConfig 把应用配置转换为网关客户端配置
func buildEpayConfig(cfg *config.EpayConfig) *epay.Config {
	return &epay.Config{
		GatewayURL:  cfg.GatewayURL,
		MerchantID:  cfg.MerchantID,
		MerchantKey: cfg.MerchantKey,
		NotifyURL:   cfg.NotifyURL,
		ReturnURL:   cfg.ReturnURL,
		Device:      cfg.Device,
	}
}
