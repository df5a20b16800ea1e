package worker

import (
	"fmt"
	"testing"
	"time"

	"github.com/licensegate/internal/config"
	"github.com/licensegate/internal/models"
	"github.com/licensegate/internal/provider"
	"github.com/licensegate/internal/repository"
	"github.com/licensegate/internal/service"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// fakeNotifier 测试用通知实现
type fakeNotifier struct {
	reminders int
}

func (f *fakeNotifier) SendLicenseCode(email, code string) service.NotifyResult {
	return service.NotifyResult{Success: true, MessageID: "test"}
}

func (f *fakeNotifier) SendSecurityWarning(email, ip string) service.NotifyResult {
	return service.NotifyResult{Success: true, MessageID: "test"}
}

func (f *fakeNotifier) SendAccountLock(email, reason string) service.NotifyResult {
	return service.NotifyResult{Success: true, MessageID: "test"}
}

func (f *fakeNotifier) SendExpirationReminder(email, code string, expiresAt time.Time, remaining service.RemainingTime) service.NotifyResult {
	f.reminders++
	return service.NotifyResult{Success: true, MessageID: "test"}
}

func setupSweepTest(t *testing.T) (*Service, *fakeNotifier, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:worker_sweep_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.License{}, &models.AccessLog{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	notifier := &fakeNotifier{}
	lifecycle := service.NewLifecycleService(repository.NewLicenseRepository(db), notifier)
	svc := &Service{
		name:     "worker",
		consumer: NewConsumer(&provider.Container{LifecycleService: lifecycle}),
		sweeper: config.SweeperConfig{
			Enabled:               true,
			IntervalMinutes:       60,
			ReminderDaysAhead:     7,
			ReminderIntervalHours: 24,
		},
	}
	return svc, notifier, db
}

func TestSweepOnceThrottlesReminders(t *testing.T) {
	svc, notifier, db := setupSweepTest(t)
	soon := time.Now().Add(48 * time.Hour)
	license := &models.License{
		Code:      "SWP-AAAA-0001",
		Email:     "owner@example.com",
		ExpiresAt: &soon,
	}
	if err := db.Create(license).Error; err != nil {
		t.Fatalf("create license failed: %v", err)
	}

	now := time.Now()
	svc.sweepOnce(now)
	if notifier.reminders != 1 {
		t.Fatalf("first sweep reminders = %d, want 1", notifier.reminders)
	}

	// 提醒间隔内的后续轮次不得重复发信
	svc.sweepOnce(now.Add(time.Hour))
	svc.sweepOnce(now.Add(2 * time.Hour))
	if notifier.reminders != 1 {
		t.Fatalf("in-window sweeps reminders = %d, want 1", notifier.reminders)
	}

	svc.sweepOnce(now.Add(25 * time.Hour))
	if notifier.reminders != 2 {
		t.Fatalf("post-window sweep reminders = %d, want 2", notifier.reminders)
	}
}

func TestSweepOnceAlwaysMarksExpired(t *testing.T) {
	svc, notifier, db := setupSweepTest(t)
	now := time.Now()
	svc.sweepOnce(now)

	// 水位已推进，提醒被节流，但到期标记每轮都要执行
	past := now.Add(-time.Hour)
	license := &models.License{
		Code:      "SWP-BBBB-0001",
		Email:     "owner@example.com",
		ExpiresAt: &past,
	}
	if err := db.Create(license).Error; err != nil {
		t.Fatalf("create license failed: %v", err)
	}

	svc.sweepOnce(now.Add(time.Hour))
	if notifier.reminders != 0 {
		t.Fatalf("expired license must not get reminder, got %d", notifier.reminders)
	}

	var stored models.License
	if err := db.First(&stored, license.ID).Error; err != nil {
		t.Fatalf("query license failed: %v", err)
	}
	if !stored.IsExpired {
		t.Fatal("expired license should be marked by in-window sweep")
	}
}
