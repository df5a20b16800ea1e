package service

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/licensegate/internal/keycode"
	"github.com/licensegate/internal/logger"
	"github.com/licensegate/internal/models"
	"github.com/licensegate/internal/repository"

	"gorm.io/gorm"
)

// LicenseService 授权码签发与管理服务
type LicenseService struct {
	licenseRepo repository.LicenseRepository
	accessRepo  repository.AccessLogRepository
	riskService *RiskService
	notifier    Notifier
	codeCfg     keycode.Config
}

// NewLicenseService 创建授权码服务
func NewLicenseService(
	licenseRepo repository.LicenseRepository,
	accessRepo repository.AccessLogRepository,
	riskService *RiskService,
	notifier Notifier,
	codeCfg keycode.Config,
) *LicenseService {
	return &LicenseService{
		licenseRepo: licenseRepo,
		accessRepo:  accessRepo,
		riskService: riskService,
		notifier:    notifier,
		codeCfg:     codeCfg,
	}
}

// IssueLicenseInput 签发授权码输入
type IssueLicenseInput struct {
	Email          string
	PurchaseAmount models.Money
	Remark         string
	ExpiresAt      *time.Time
}

// IssueLicenseBatchInput 批量签发输入
type IssueLicenseBatchInput struct {
	Email          string
	Count          int
	PurchaseAmount models.Money
	Remark         string
	ExpiresAt      *time.Time
}

// LicenseListInput 管理端列表输入
type LicenseListInput struct {
	Email       string
	Locked      *bool
	IsExpired   *bool
	IsUsed      *bool
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Page        int
	PageSize    int
}

// InspectResult 管理端查验结果
type InspectResult struct {
	Valid      bool                 `json:"valid"`
	License    *models.License      `json:"license"`
	RiskLevel  string               `json:"risk_level"`
	CommonIPs  []repository.IPCount `json:"common_ips"`
	RecentLogs []models.AccessLog   `json:"recent_logs"`
}

const issueBatchMax = 1000

// Issue 签发一张授权码并同步发送下发邮件
// 邮件发送失败时删除刚创建的授权码作为补偿，整个签发视为失败；
// 邮件服务未启用时跳过发送，只记日志。
func (s *LicenseService) Issue(input IssueLicenseInput) (*models.License, string, error) {
	if s == nil || s.licenseRepo == nil {
		return nil, "", ErrLicenseCreateFailed
	}
	email, err := normalizeOwnerEmail(input.Email)
	if err != nil {
		return nil, "", err
	}
	expiresAt, err := normalizeExpiresAt(input.ExpiresAt)
	if err != nil {
		return nil, "", err
	}

	code, err := keycode.AllocateOne(s.licenseRepo.ExistsByCode, s.codeCfg)
	if err != nil {
		var exhausted *keycode.ExhaustedError
		if errors.As(err, &exhausted) {
			return nil, "", ErrCodeAllocateExhausted
		}
		return nil, "", ErrLicenseCreateFailed
	}

	now := time.Now()
	license := &models.License{
		Code:           code,
		Email:          email,
		PurchaseAmount: input.PurchaseAmount,
		Remark:         strings.TrimSpace(input.Remark),
		ExpiresAt:      expiresAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.licenseRepo.Create(license); err != nil {
		return nil, "", ErrLicenseCreateFailed
	}

	messageID, err := s.deliverLicenseCode(license)
	if err != nil {
		// 补偿：邮件发不出去就撤销这次签发
		if delErr := s.licenseRepo.Delete(license.ID); delErr != nil {
			logger.Errorw("license_issue_compensate_delete_failed",
				"license_id", license.ID,
				"error", delErr,
			)
		}
		return nil, "", ErrLicenseNotifyFailed
	}
	return license, messageID, nil
}

// IssueBatch 批量签发授权码
// 整批在一个事务内落库，下发邮件汇总为一封；发送失败时整批删除。
func (s *LicenseService) IssueBatch(input IssueLicenseBatchInput) ([]models.License, string, error) {
	if s == nil || s.licenseRepo == nil {
		return nil, "", ErrLicenseCreateFailed
	}
	email, err := normalizeOwnerEmail(input.Email)
	if err != nil {
		return nil, "", err
	}
	if input.Count <= 0 || input.Count > issueBatchMax {
		return nil, "", ErrLicenseInvalid
	}
	expiresAt, err := normalizeExpiresAt(input.ExpiresAt)
	if err != nil {
		return nil, "", err
	}

	codes, err := keycode.AllocateMany(input.Count, s.licenseRepo.ExistsByCode, s.codeCfg)
	if err != nil {
		var exhausted *keycode.ExhaustedError
		if errors.As(err, &exhausted) {
			return nil, "", ErrCodeAllocateExhausted
		}
		return nil, "", ErrLicenseCreateFailed
	}

	now := time.Now()
	remark := strings.TrimSpace(input.Remark)
	licenses := make([]models.License, 0, len(codes))
	for _, code := range codes {
		licenses = append(licenses, models.License{
			Code:           code,
			Email:          email,
			PurchaseAmount: input.PurchaseAmount,
			Remark:         remark,
			ExpiresAt:      expiresAt,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}

	if err := models.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.licenseRepo.WithTx(tx)
		for i := range licenses {
			if err := repo.Create(&licenses[i]); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, "", ErrLicenseCreateFailed
	}

	messageID, err := s.deliverLicenseBatch(email, codes, licenses)
	if err != nil {
		return nil, "", ErrLicenseNotifyFailed
	}
	return licenses, messageID, nil
}

// List 管理端分页查询授权码，返回的码一律脱敏
func (s *LicenseService) List(input LicenseListInput) ([]models.License, int64, error) {
	if s == nil || s.licenseRepo == nil {
		return nil, 0, ErrLicenseFetchFailed
	}
	filter := repository.LicenseListFilter{
		Email:       strings.TrimSpace(strings.ToLower(input.Email)),
		Locked:      input.Locked,
		IsExpired:   input.IsExpired,
		IsUsed:      input.IsUsed,
		CreatedFrom: input.CreatedFrom,
		CreatedTo:   input.CreatedTo,
		Page:        input.Page,
		PageSize:    input.PageSize,
	}
	licenses, total, err := s.licenseRepo.List(filter)
	if err != nil {
		return nil, 0, ErrLicenseFetchFailed
	}
	for i := range licenses {
		licenses[i].Code = keycode.Mask(licenses[i].Code)
	}
	return licenses, total, nil
}

// AdminInspect 管理端按 ID 查验授权码详情
func (s *LicenseService) AdminInspect(id uint) (*InspectResult, error) {
	if s == nil || s.licenseRepo == nil || id == 0 {
		return nil, ErrLicenseInvalid
	}
	license, err := s.licenseRepo.GetByID(id)
	if err != nil {
		return nil, ErrLicenseFetchFailed
	}
	if license == nil {
		return nil, ErrLicenseNotFound
	}
	return s.buildInspectResult(license)
}

// AdminInspectByCredential 管理端按邮箱加授权码查验
func (s *LicenseService) AdminInspectByCredential(email, code string) (*InspectResult, error) {
	if s == nil || s.licenseRepo == nil {
		return nil, ErrLicenseInvalid
	}
	email = strings.TrimSpace(strings.ToLower(email))
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, ErrLicenseInvalid
	}
	license, err := s.licenseRepo.GetByEmailAndCode(email, code)
	if err != nil {
		return nil, ErrLicenseFetchFailed
	}
	if license == nil {
		return nil, ErrLicenseNotFound
	}
	return s.buildInspectResult(license)
}

func (s *LicenseService) buildInspectResult(license *models.License) (*InspectResult, error) {
	result := &InspectResult{
		Valid:   !license.Locked && !license.IsExpired,
		License: license,
	}
	if license.ExpiresAt != nil && time.Now().After(*license.ExpiresAt) {
		result.Valid = false
	}

	if s.riskService != nil {
		level, err := s.riskService.RiskLevel(license)
		if err != nil {
			return nil, err
		}
		result.RiskLevel = level
	}
	if s.accessRepo != nil {
		commonIPs, err := s.accessRepo.AggregateCommonIPs(license.ID, 5)
		if err != nil {
			return nil, ErrLicenseFetchFailed
		}
		result.CommonIPs = commonIPs

		logs, _, err := s.accessRepo.ListByLicense(license.ID, 1, 10)
		if err != nil {
			return nil, ErrLicenseFetchFailed
		}
		result.RecentLogs = logs
	}
	return result, nil
}

// ToggleLock 设置或解除锁定
// 锁定是对授权的终态，但允许管理员人工解锁。
func (s *LicenseService) ToggleLock(id uint, locked bool) (*models.License, error) {
	if s == nil || s.licenseRepo == nil || id == 0 {
		return nil, ErrLicenseInvalid
	}
	license, err := s.licenseRepo.GetByID(id)
	if err != nil {
		return nil, ErrLicenseFetchFailed
	}
	if license == nil {
		return nil, ErrLicenseNotFound
	}
	if license.Locked == locked {
		return license, nil
	}
	if err := s.licenseRepo.SetLocked(id, locked); err != nil {
		return nil, ErrLicenseUpdateFailed
	}
	license.Locked = locked
	return license, nil
}

// Delete 管理端删除授权码（连带其访问日志）
func (s *LicenseService) Delete(id uint) error {
	if s == nil || s.licenseRepo == nil || id == 0 {
		return ErrLicenseInvalid
	}
	license, err := s.licenseRepo.GetByID(id)
	if err != nil {
		return ErrLicenseFetchFailed
	}
	if license == nil {
		return ErrLicenseNotFound
	}
	if err := s.licenseRepo.Delete(id); err != nil {
		return ErrLicenseDeleteFailed
	}
	return nil
}

// AccessLogs 管理端分页查询访问日志
func (s *LicenseService) AccessLogs(id uint, page, pageSize int) ([]models.AccessLog, int64, error) {
	if s == nil || s.accessRepo == nil || id == 0 {
		return nil, 0, ErrLicenseInvalid
	}
	license, err := s.licenseRepo.GetByID(id)
	if err != nil {
		return nil, 0, ErrLicenseFetchFailed
	}
	if license == nil {
		return nil, 0, ErrLicenseNotFound
	}
	logs, total, err := s.accessRepo.ListByLicense(id, page, pageSize)
	if err != nil {
		return nil, 0, ErrLicenseFetchFailed
	}
	return logs, total, nil
}

// deliverLicenseCode 同步发送下发邮件，返回消息 ID
func (s *LicenseService) deliverLicenseCode(license *models.License) (string, error) {
	if s.notifier == nil {
		logger.Warnw("license_issue_notifier_missing", "license_id", license.ID)
		return "", nil
	}
	result := s.notifier.SendLicenseCode(license.Email, license.Code)
	if result.Success {
		return result.MessageID, nil
	}
	if errors.Is(result.Err, ErrEmailServiceDisabled) {
		logger.Infow("license_issue_email_skipped_disabled", "license_id", license.ID)
		return "", nil
	}
	logger.Warnw("license_issue_email_failed",
		"license_id", license.ID,
		"email", license.Email,
		"error", result.Err,
	)
	return "", ErrLicenseNotifyFailed
}

// deliverLicenseBatch 批量签发的下发邮件，所有码汇总为一封
// 发送失败时整批删除作为补偿。
func (s *LicenseService) deliverLicenseBatch(email string, codes []string, licenses []models.License) (string, error) {
	if s.notifier == nil {
		logger.Warnw("license_issue_batch_notifier_missing", "email", email, "count", len(codes))
		return "", nil
	}
	result := s.notifier.SendLicenseCode(email, strings.Join(codes, "\n"))
	if result.Success {
		return result.MessageID, nil
	}
	if errors.Is(result.Err, ErrEmailServiceDisabled) {
		logger.Infow("license_issue_batch_email_skipped_disabled", "email", email, "count", len(codes))
		return "", nil
	}
	for i := range licenses {
		if delErr := s.licenseRepo.Delete(licenses[i].ID); delErr != nil {
			logger.Errorw("license_issue_batch_compensate_delete_failed",
				"license_id", licenses[i].ID,
				"error", delErr,
			)
		}
	}
	logger.Warnw("license_issue_batch_email_failed",
		"email", email,
		"count", len(codes),
		"error", result.Err,
	)
	return "", ErrLicenseNotifyFailed
}

func normalizeOwnerEmail(raw string) (string, error) {
	email := strings.TrimSpace(strings.ToLower(raw))
	if email == "" {
		return "", ErrLicenseInvalid
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func normalizeExpiresAt(raw *time.Time) (*time.Time, error) {
	if raw == nil || raw.IsZero() {
		return nil, nil
	}
	if raw.Before(time.Now()) {
		return nil, ErrLicenseInvalid
	}
	value := raw.UTC()
	return &value, nil
}
