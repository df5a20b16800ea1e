package provider

import (
	"github.com/licensegate/internal/cache"
	"github.com/licensegate/internal/config"
	"github.com/licensegate/internal/keycode"
	"github.com/licensegate/internal/logger"
	"github.com/licensegate/internal/models"
	"github.com/licensegate/internal/queue"
	"github.com/licensegate/internal/repository"
	"github.com/licensegate/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	AdminRepo     repository.AdminRepository
	LicenseRepo   repository.LicenseRepository
	AccessLogRepo repository.AccessLogRepository

	// Services
	AuthService      *service.AuthService
	EmailService     *service.EmailService
	LicenseService   *service.LicenseService
	RiskService      *service.RiskService
	LifecycleService *service.LifecycleService
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
	}

	c.initRepositories()
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.LicenseRepo = repository.NewLicenseRepository(db)
	c.AccessLogRepo = repository.NewAccessLogRepository(db)
}

func (c *Container) initServices() {
	c.EmailService = service.NewEmailService(&c.Config.Email)
	c.AuthService = service.NewAuthService(c.AdminRepo, &c.Config.JWT)

	codeCfg := keycode.Config{
		Alphabet:    c.Config.License.Alphabet,
		TotalLength: c.Config.License.TotalLength,
		GroupSize:   c.Config.License.GroupSize,
		Separator:   c.Config.License.Separator,
		Checksum:    c.Config.License.Checksum,
		MaxAttempts: c.Config.License.MaxAttempts,
	}
	riskOpts := service.RiskOptions{
		WarningThreshold: c.Config.Risk.WarningThreshold,
		LockThreshold:    c.Config.Risk.LockThreshold,
		WindowHours:      c.Config.Risk.WindowHours,
	}

	c.RiskService = service.NewRiskService(c.LicenseRepo, c.AccessLogRepo, c.EmailService, c.QueueClient, riskOpts)
	c.LicenseService = service.NewLicenseService(c.LicenseRepo, c.AccessLogRepo, c.RiskService, c.EmailService, codeCfg)
	c.LifecycleService = service.NewLifecycleService(c.LicenseRepo, c.EmailService)
}
