package service

import (
	"fmt"
	"time"

	"github.com/licensegate/internal/logger"
	"github.com/licensegate/internal/models"
	"github.com/licensegate/internal/repository"
)

// ReminderSummary 到期提醒批次汇总
type ReminderSummary struct {
	Total  int      `json:"total"`
	Sent   int      `json:"sent"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

// LifecycleService 授权码到期巡检服务
type LifecycleService struct {
	licenseRepo repository.LicenseRepository
	notifier    Notifier
}

// NewLifecycleService 创建到期巡检服务
func NewLifecycleService(licenseRepo repository.LicenseRepository, notifier Notifier) *LifecycleService {
	return &LifecycleService{
		licenseRepo: licenseRepo,
		notifier:    notifier,
	}
}

// MarkExpiredBatch 批量标记到期授权码，返回本轮影响行数
// 单条集合式 UPDATE，重复执行幂等。
func (s *LifecycleService) MarkExpiredBatch() (int64, error) {
	if s == nil || s.licenseRepo == nil {
		return 0, ErrLicenseUpdateFailed
	}
	affected, err := s.licenseRepo.BulkMarkExpired(time.Now())
	if err != nil {
		return 0, ErrLicenseUpdateFailed
	}
	if affected > 0 {
		logger.Infow("license_expiry_sweep_done", "affected", affected)
	}
	return affected, nil
}

// SendExpirationReminders 对窗口内即将到期的授权码逐张发送提醒
// 单张发送失败只计入汇总，不中断整批。
func (s *LifecycleService) SendExpirationReminders(daysAhead int) (*ReminderSummary, error) {
	if s == nil || s.licenseRepo == nil {
		return nil, ErrLicenseFetchFailed
	}
	if daysAhead <= 0 {
		return nil, ErrLicenseInvalid
	}

	now := time.Now()
	to := now.Add(time.Duration(daysAhead) * 24 * time.Hour)
	licenses, err := s.licenseRepo.ListExpiringWithin(now, to)
	if err != nil {
		return nil, ErrLicenseFetchFailed
	}

	summary := &ReminderSummary{Total: len(licenses)}
	for i := range licenses {
		license := &licenses[i]
		remaining, ok := remainingUntil(license.ExpiresAt, now)
		if !ok {
			// 查询和发送之间刚好过期的跳过
			continue
		}
		if s.notifier == nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("license %d: notifier missing", license.ID))
			continue
		}
		result := s.notifier.SendExpirationReminder(license.Email, license.Code, *license.ExpiresAt, remaining)
		if result.Success {
			summary.Sent++
			continue
		}
		summary.Failed++
		summary.Errors = append(summary.Errors, fmt.Sprintf("license %d: %v", license.ID, result.Err))
		logger.Warnw("license_expiration_reminder_failed",
			"license_id", license.ID,
			"email", license.Email,
			"error", result.Err,
		)
	}

	logger.Infow("license_expiration_reminders_done",
		"total", summary.Total,
		"sent", summary.Sent,
		"failed", summary.Failed,
	)
	return summary, nil
}

// remainingUntil 按 expiresAt 与当前时间计算真实剩余时长
func remainingUntil(expiresAt *time.Time, now time.Time) (RemainingTime, bool) {
	if expiresAt == nil || expiresAt.IsZero() {
		return RemainingTime{}, false
	}
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return RemainingTime{}, false
	}
	totalMinutes := int(remaining.Minutes())
	return RemainingTime{
		Days:    totalMinutes / (24 * 60),
		Hours:   (totalMinutes / 60) % 24,
		Minutes: totalMinutes % 60,
	}, true
}

// ListExpiringSoon 查询窗口内即将到期的授权码（供管理端预览）
func (s *LifecycleService) ListExpiringSoon(daysAhead int) ([]models.License, error) {
	if s == nil || s.licenseRepo == nil {
		return nil, ErrLicenseFetchFailed
	}
	if daysAhead <= 0 {
		return nil, ErrLicenseInvalid
	}
	now := time.Now()
	licenses, err := s.licenseRepo.ListExpiringWithin(now, now.Add(time.Duration(daysAhead)*24*time.Hour))
	if err != nil {
		return nil, ErrLicenseFetchFailed
	}
	return licenses, nil
}
