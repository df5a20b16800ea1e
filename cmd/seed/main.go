package main

import (
	"fmt"
	"time"

	"github.com/licensegate/internal/config"
	"github.com/licensegate/internal/keycode"
	"github.com/licensegate/internal/logger"
	"github.com/licensegate/internal/models"

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

	codeCfg := keycode.Config{
		Alphabet:    cfg.License.Alphabet,
		TotalLength: cfg.License.TotalLength,
		GroupSize:   cfg.License.GroupSize,
		Separator:   cfg.License.Separator,
		Checksum:    cfg.License.Checksum,
		MaxAttempts: cfg.License.MaxAttempts,
	}

	now := time.Now()
	soonExpiry := now.AddDate(0, 0, 5)
	farExpiry := now.AddDate(1, 0, 0)
	pastExpiry := now.AddDate(0, 0, -3)

	// 演示授权码
	plans := []struct {
		Email          string
		PurchaseAmount float64
		Remark         string
		ExpiresAt      *time.Time
		IsUsed         bool
		Locked         bool
		LastIP         string
	}{
		{Email: "alice@example.com", PurchaseAmount: 99.00, Remark: "演示数据-永久授权", ExpiresAt: nil, IsUsed: true, LastIP: "203.0.113.10"},
		{Email: "bob@example.com", PurchaseAmount: 49.00, Remark: "演示数据-即将到期", ExpiresAt: &soonExpiry, IsUsed: true, LastIP: "198.51.100.7"},
		{Email: "carol@example.com", PurchaseAmount: 199.00, Remark: "演示数据-一年期", ExpiresAt: &farExpiry},
		{Email: "dave@example.com", PurchaseAmount: 29.00, Remark: "演示数据-已过期", ExpiresAt: &pastExpiry, IsUsed: true, LastIP: "192.0.2.44"},
		{Email: "eve@example.com", PurchaseAmount: 59.00, Remark: "演示数据-已锁定", ExpiresAt: &farExpiry, IsUsed: true, Locked: true, LastIP: "203.0.113.99"},
	}

	created := 0
	for _, plan := range plans {
		var existing models.License
		if err := models.DB.Where("email = ? AND remark = ?", plan.Email, plan.Remark).First(&existing).Error; err == nil {
			stdLog.Printf("License already exists: %s (%s)", plan.Email, plan.Remark)
			continue
		}

		code, err := keycode.AllocateOne(func(candidate string) (bool, error) {
			var count int64
			if err := models.DB.Model(&models.License{}).Where("code = ?", candidate).Count(&count).Error; err != nil {
				return false, err
			}
			return count > 0, nil
		}, codeCfg)
		if err != nil {
			stdLog.Printf("Failed to allocate code for %s: %v", plan.Email, err)
			continue
		}

		license := models.License{
			Code:           code,
			Email:          plan.Email,
			PurchaseAmount: models.NewMoneyFromDecimal(decimal.NewFromFloat(plan.PurchaseAmount)),
			Remark:         plan.Remark,
			IsUsed:         plan.IsUsed,
			Locked:         plan.Locked,
			ExpiresAt:      plan.ExpiresAt,
			LastIP:         plan.LastIP,
		}
		if err := models.DB.Create(&license).Error; err != nil {
			stdLog.Printf("Failed to create license for %s: %v", plan.Email, err)
			continue
		}
		created++
		stdLog.Printf("Created license: %s -> %s", plan.Email, code)

		// 为已使用的授权码补几条访问日志
		if plan.IsUsed && plan.LastIP != "" {
			logs := []models.AccessLog{
				{LicenseID: license.ID, Email: plan.Email, IP: plan.LastIP, IsRisky: false, AccessedAt: now.Add(-48 * time.Hour)},
				{LicenseID: license.ID, Email: plan.Email, IP: plan.LastIP, IsRisky: false, AccessedAt: now.Add(-2 * time.Hour)},
			}
			if plan.Locked {
				logs = append(logs, models.AccessLog{
					LicenseID:  license.ID,
					Email:      plan.Email,
					IP:         "198.51.100.200",
					IsRisky:    true,
					AccessedAt: now.Add(-1 * time.Hour),
				})
			}
			for _, item := range logs {
				entry := item
				if err := models.DB.Create(&entry).Error; err != nil {
					stdLog.Printf("Failed to create access log for %s: %v", plan.Email, err)
				}
			}
		}
	}

	fmt.Println("\n✅ Seed data created successfully!")
	fmt.Printf("- %d licenses created (%d plans total)\n", created, len(plans))
	fmt.Println("- Access logs attached to used licenses")
}
