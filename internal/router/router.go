package router

import (
	"fmt"
	"strings"

	"github.com/licensegate/internal/cache"
	"github.com/licensegate/internal/config"
	adminhandlers "github.com/licensegate/internal/http/handlers/admin"
	publichandlers "github.com/licensegate/internal/http/handlers/public"
	"github.com/licensegate/internal/logger"
	"github.com/licensegate/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按公开/管理分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "lg"
	}
	redisClient := cache.Client()
	loginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:admin_login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		Message:       "登录尝试过于频繁",
	}
	verifyRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:verify", redisPrefix),
		WindowSeconds: cfg.Security.VerifyRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.VerifyRateLimit.MaxAttempts,
		Message:       "验证请求过于频繁",
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
			public.POST("/licenses/verify",
				RateLimitMiddleware(redisClient, verifyRule, KeyByIPAndJSONField("email")),
				publicHandler.VerifyLicense)
		}

		// 管理员接口
		admin := apiV1.Group("/admin")
		{
			// 登录接口（无需鉴权）
			admin.POST("/login", RateLimitMiddleware(redisClient, loginRule, KeyByIP), adminHandler.AdminLogin)

			// 需要鉴权的接口
			authorized := admin.Use(JWTAuthMiddleware(cfg.JWT.SecretKey, c.AdminRepo))
			{
				// 授权码管理
				authorized.POST("/licenses", adminHandler.CreateLicense)
				authorized.POST("/licenses/batch", adminHandler.CreateLicenseBatch)
				authorized.GET("/licenses", adminHandler.GetLicenses)
				authorized.GET("/licenses/:id", adminHandler.GetLicense)
				authorized.POST("/licenses/inspect", adminHandler.InspectLicense)
				authorized.PUT("/licenses/:id/lock", adminHandler.UpdateLicenseLock)
				authorized.DELETE("/licenses/:id", adminHandler.DeleteLicense)
				authorized.GET("/licenses/:id/access-logs", adminHandler.GetLicenseAccessLogs)

				// 生命周期维护
				authorized.GET("/licenses/expiring", adminHandler.GetExpiringLicenses)
				authorized.POST("/licenses/expiry-sweep", adminHandler.RunExpirySweep)
				authorized.POST("/licenses/reminders", adminHandler.SendExpirationReminders)
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
