package router

import (
	"fmt"
	"strings"

	"github.com/orchard-next/internal/cache"
	"github.com/orchard-next/internal/config"
	adminhandlers "github.com/orchard-next/internal/http/handlers/admin"
	publichandlers "github.com/orchard-next/internal/http/handlers/public"
	"github.com/orchard-next/internal/provider"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container, log *zap.Logger) *gin.Engine {
	r := gin.New()

	// 初始化 Handler（按前台/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)

	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "orchard"
	}
	redisClient := cache.Client()
	loginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:login", redisPrefix),
		WindowSeconds: 60,
		MaxRequests:   10,
	}
	intentRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:intent", redisPrefix),
		WindowSeconds: 60,
		MaxRequests:   20,
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 公开接口
		public := apiV1.Group("/public")
		{
			public.GET("/fruit-types", publicHandler.ListFruitTypes)
			public.GET("/fruit-types/:slug", publicHandler.GetFruitType)
		}

		// 用户认证接口
		auth := apiV1.Group("/auth")
		{
			auth.POST("/register", publicHandler.Register)
			auth.POST("/login", RateLimitMiddleware(redisClient, loginRule, KeyByIPAndJSONField("email")), publicHandler.Login)
		}

		// 用户接口（需鉴权）
		user := apiV1.Group("")
		user.Use(UserJWTMiddleware(cfg.UserJWT.SecretKey, c.UserRepo))
		{
			user.GET("/me", publicHandler.Profile)
			user.POST("/deposit-intents", RateLimitMiddleware(redisClient, intentRule, KeyByIP), publicHandler.CreateDepositIntent)
			user.GET("/deposit-intents", publicHandler.ListDepositIntents)
			user.GET("/deposit-intents/:intent_no", publicHandler.GetDepositIntent)
			user.POST("/remaining-intents", RateLimitMiddleware(redisClient, intentRule, KeyByIP), publicHandler.CreateRemainingIntent)
			user.GET("/pre-orders", publicHandler.ListPreOrders)
			user.GET("/pre-orders/:pre_order_no", publicHandler.GetPreOrder)
			user.POST("/pre-orders/:pre_order_no/cancel", publicHandler.CancelPreOrder)
		}

		// 支付网关回调（签名校验在回调处理内完成）
		apiV1.POST("/payments/deposit/callback", publicHandler.DepositCallback)
		apiV1.GET("/payments/deposit/callback", publicHandler.DepositCallback)
		apiV1.POST("/payments/remaining/callback", publicHandler.RemainingCallback)
		apiV1.GET("/payments/remaining/callback", publicHandler.RemainingCallback)

		// 管理员接口
		admin := apiV1.Group("/admin")
		{
			// 登录接口（无需鉴权）
			admin.POST("/login", RateLimitMiddleware(redisClient, loginRule, KeyByIPAndJSONField("username")), adminHandler.Login)

			// 需要鉴权的管理接口
			authed := admin.Group("")
			authed.Use(AdminJWTMiddleware(cfg.JWT.SecretKey, c.AdminRepo))
			{
				authed.GET("/fruit-types", adminHandler.ListFruitTypes)
				authed.POST("/fruit-types", adminHandler.CreateFruitType)
				authed.GET("/fruit-types/:id", adminHandler.GetFruitType)
				authed.PUT("/fruit-types/:id", adminHandler.UpdateFruitType)
				authed.GET("/fruit-types/:id/demand", adminHandler.GetDemandByFruitType)

				authed.POST("/harvest-batches", adminHandler.CreateHarvestBatch)
				authed.GET("/harvest-batches", adminHandler.ListHarvestBatches)
				authed.POST("/receives", adminHandler.RecordReceive)
				authed.GET("/receives", adminHandler.ListReceives)

				authed.POST("/allocations/run", adminHandler.RunAllocation)
				authed.GET("/demand/overview", adminHandler.GetDemandOverview)

				authed.GET("/pre-orders", adminHandler.ListPreOrders)
				authed.GET("/pre-orders/:id", adminHandler.GetPreOrder)
				authed.POST("/pre-orders/:id/complete", adminHandler.CompleteDelivery)
				authed.POST("/pre-orders/:id/refund", adminHandler.MarkRefund)
			}
		}
	}

	return r
}
