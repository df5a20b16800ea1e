package service

import (
	"strings"
	"time"

	"github.com/licensegate/internal/constants"
	"github.com/licensegate/internal/logger"
	"github.com/licensegate/internal/models"
	"github.com/licensegate/internal/queue"
	"github.com/licensegate/internal/repository"
)

// RiskOptions 风控阈值配置
type RiskOptions struct {
	WarningThreshold int // 窗口内风险访问达到该次数后，IP 变更视为风险行为
	LockThreshold    int // 警告次数达到该值后自动锁定
	WindowHours      int // 风险访问统计窗口（小时）
}

// DefaultRiskOptions 返回默认风控阈值
func DefaultRiskOptions() RiskOptions {
	return RiskOptions{
		WarningThreshold: constants.RiskWarningThresholdDefault,
		LockThreshold:    constants.RiskLockThresholdDefault,
		WindowHours:      constants.RiskWindowHoursDefault,
	}
}

func (o RiskOptions) withDefaults() RiskOptions {
	defaults := DefaultRiskOptions()
	if o.WarningThreshold <= 0 {
		o.WarningThreshold = defaults.WarningThreshold
	}
	if o.LockThreshold <= 0 {
		o.LockThreshold = defaults.LockThreshold
	}
	if o.WindowHours <= 0 {
		o.WindowHours = defaults.WindowHours
	}
	return o
}

// VerifyResult 单次验证结果
type VerifyResult struct {
	Authorized bool   `json:"authorized"`
	IsRisky    bool   `json:"is_risky"`
	Locked     bool   `json:"locked"`
	Message    string `json:"message"`
	Warning    string `json:"warning,omitempty"`
}

// RiskService 授权码验证与风控服务
type RiskService struct {
	licenseRepo repository.LicenseRepository
	accessRepo  repository.AccessLogRepository
	notifier    Notifier
	queueClient *queue.Client
	opts        RiskOptions
}

// NewRiskService 创建风控服务
func NewRiskService(
	licenseRepo repository.LicenseRepository,
	accessRepo repository.AccessLogRepository,
	notifier Notifier,
	queueClient *queue.Client,
	opts RiskOptions,
) *RiskService {
	return &RiskService{
		licenseRepo: licenseRepo,
		accessRepo:  accessRepo,
		notifier:    notifier,
		queueClient: queueClient,
		opts:        opts.withDefaults(),
	}
}

const (
	verifyMsgDenied  = "邮箱或授权码不正确"
	verifyMsgLocked  = "授权码已被锁定，请联系我们核实"
	verifyMsgExpired = "授权码已过期"
	verifyMsgOK      = "验证通过"
	verifyWarnRisky  = "检测到异常访问，已记录安全警告"
)

// Verify 验证一次授权码使用并推进其风控状态
// 查无记录时返回统一的拒绝消息，不区分邮箱错误与授权码错误。
// 锁定与过期都是对授权的终态，任一为真即拒绝。
func (s *RiskService) Verify(email, code, ip string) (*VerifyResult, error) {
	if s == nil || s.licenseRepo == nil || s.accessRepo == nil {
		return nil, ErrLicenseFetchFailed
	}
	email = strings.TrimSpace(strings.ToLower(email))
	code = strings.TrimSpace(code)
	ip = strings.TrimSpace(ip)
	if email == "" || code == "" {
		return &VerifyResult{Authorized: false, Message: verifyMsgDenied}, nil
	}

	license, err := s.licenseRepo.GetByEmailAndCode(email, code)
	if err != nil {
		return nil, ErrLicenseFetchFailed
	}
	if license == nil {
		return &VerifyResult{Authorized: false, Message: verifyMsgDenied}, nil
	}

	if license.Locked {
		return &VerifyResult{Authorized: false, Locked: true, Message: verifyMsgLocked}, nil
	}

	now := time.Now()

	// 首次使用幂等标记，不影响本次授权结果
	if !license.IsUsed {
		if err := s.licenseRepo.UpdateFields(license.ID, map[string]interface{}{
			"is_used":    true,
			"updated_at": now,
		}); err != nil {
			return nil, ErrLicenseUpdateFailed
		}
		license.IsUsed = true
	}

	// 到期惰性落盘：is_expired 一旦置真不再回退
	if license.ExpiresAt != nil && now.After(*license.ExpiresAt) {
		if !license.IsExpired {
			if err := s.licenseRepo.UpdateFields(license.ID, map[string]interface{}{
				"is_expired": true,
				"updated_at": now,
			}); err != nil {
				return nil, ErrLicenseUpdateFailed
			}
		}
		return &VerifyResult{Authorized: false, Message: verifyMsgExpired}, nil
	}
	if license.IsExpired {
		return &VerifyResult{Authorized: false, Message: verifyMsgExpired}, nil
	}

	isRisky, err := s.assessRisk(license, ip, now)
	if err != nil {
		return nil, ErrLicenseFetchFailed
	}

	if isRisky {
		// 库级自增拿到权威计数，锁定阈值按递增后的值判定
		warningCount, err := s.licenseRepo.IncrementWarning(license.ID)
		if err != nil {
			return nil, ErrLicenseUpdateFailed
		}
		if err := s.licenseRepo.UpdateFields(license.ID, map[string]interface{}{
			"last_ip":    ip,
			"updated_at": now,
		}); err != nil {
			return nil, ErrLicenseUpdateFailed
		}
		s.notifySecurityWarning(license, ip)

		if warningCount >= s.opts.LockThreshold {
			if err := s.licenseRepo.SetLocked(license.ID, true); err != nil {
				return nil, ErrLicenseUpdateFailed
			}
			// 触发锁定的这次访问同样入账，再返回锁定结果
			s.appendAccessLog(license, email, ip, true, now)
			s.notifyAccountLock(license)
			return &VerifyResult{
				Authorized: false,
				IsRisky:    true,
				Locked:     true,
				Message:    verifyMsgLocked,
			}, nil
		}
	} else if ip != "" && ip != license.LastIP {
		if err := s.licenseRepo.UpdateFields(license.ID, map[string]interface{}{
			"last_ip":    ip,
			"updated_at": now,
		}); err != nil {
			return nil, ErrLicenseUpdateFailed
		}
	}

	s.appendAccessLog(license, email, ip, isRisky, now)

	result := &VerifyResult{
		Authorized: true,
		IsRisky:    isRisky,
		Message:    verifyMsgOK,
	}
	if isRisky {
		result.Warning = verifyWarnRisky
	}
	return result, nil
}

// assessRisk 判定本次访问是否属于风险访问
// 首次出现的 IP 不算风险；IP 变更且窗口内风险访问已达阈值时算风险。
func (s *RiskService) assessRisk(license *models.License, ip string, now time.Time) (bool, error) {
	if license.LastIP == "" || ip == "" || ip == license.LastIP {
		return false, nil
	}
	since := now.Add(-time.Duration(s.opts.WindowHours) * time.Hour)
	riskyCount, err := s.accessRepo.CountRiskySince(license.ID, since)
	if err != nil {
		return false, err
	}
	return riskyCount >= int64(s.opts.WarningThreshold), nil
}

// appendAccessLog 追加访问日志，失败仅记日志不阻断验证流程
func (s *RiskService) appendAccessLog(license *models.License, email, ip string, isRisky bool, at time.Time) {
	entry := &models.AccessLog{
		LicenseID:  license.ID,
		Email:      email,
		IP:         ip,
		IsRisky:    isRisky,
		AccessedAt: at,
	}
	if err := s.accessRepo.Create(entry); err != nil {
		logger.Warnw("risk_access_log_append_failed",
			"license_id", license.ID,
			"ip", ip,
			"is_risky", isRisky,
			"error", err,
		)
	}
}

// notifySecurityWarning 发送安全警告通知（尽力而为，失败不上抛）
// 队列可用时投递异步任务，否则退回同步直发。
func (s *RiskService) notifySecurityWarning(license *models.License, ip string) {
	if s.queueClient.Enabled() {
		err := s.queueClient.EnqueueSecurityWarningEmail(queue.SecurityWarningEmailPayload{
			LicenseID: license.ID,
			Email:     license.Email,
			IP:        ip,
		})
		if err == nil {
			return
		}
		logger.Warnw("risk_security_warning_enqueue_failed", "license_id", license.ID, "error", err)
	}
	if s.notifier == nil {
		return
	}
	if result := s.notifier.SendSecurityWarning(license.Email, ip); !result.Success {
		logger.Warnw("risk_security_warning_send_failed",
			"license_id", license.ID,
			"email", license.Email,
			"error", result.Err,
		)
	}
}

// notifyAccountLock 发送锁定通知（尽力而为，失败不上抛）
func (s *RiskService) notifyAccountLock(license *models.License) {
	reason := "异常访问次数超出限制"
	if s.queueClient.Enabled() {
		err := s.queueClient.EnqueueAccountLockEmail(queue.AccountLockEmailPayload{
			LicenseID: license.ID,
			Email:     license.Email,
			Reason:    reason,
		})
		if err == nil {
			return
		}
		logger.Warnw("risk_account_lock_enqueue_failed", "license_id", license.ID, "error", err)
	}
	if s.notifier == nil {
		return
	}
	if result := s.notifier.SendAccountLock(license.Email, reason); !result.Success {
		logger.Warnw("risk_account_lock_send_failed",
			"license_id", license.ID,
			"email", license.Email,
			"error", result.Err,
		)
	}
}

// RiskLevel 评估授权码当前风险等级（只读，不影响授权）
func (s *RiskService) RiskLevel(license *models.License) (string, error) {
	if s == nil || s.accessRepo == nil || license == nil {
		return constants.RiskLevelSafe, ErrLicenseInvalid
	}
	since := time.Now().Add(-time.Duration(s.opts.WindowHours) * time.Hour)
	recentRisky, err := s.accessRepo.CountRiskySince(license.ID, since)
	if err != nil {
		return constants.RiskLevelSafe, ErrLicenseFetchFailed
	}
	commonIPs, err := s.accessRepo.AggregateCommonIPs(license.ID, 10)
	if err != nil {
		return constants.RiskLevelSafe, ErrLicenseFetchFailed
	}
	return classifyRiskLevel(license, recentRisky, len(commonIPs)), nil
}

// classifyRiskLevel 风险等级分类规则
func classifyRiskLevel(license *models.License, recentRisky int64, distinctIPs int) string {
	switch {
	case license.Locked:
		return constants.RiskLevelHigh
	case license.WarningCount >= 5 || recentRisky >= 5:
		return constants.RiskLevelHigh
	case license.WarningCount >= 3 || recentRisky >= 3 || distinctIPs >= 3:
		return constants.RiskLevelMedium
	case license.WarningCount >= 1 || recentRisky >= 1:
		return constants.RiskLevelLow
	default:
		return constants.RiskLevelSafe
	}
}
