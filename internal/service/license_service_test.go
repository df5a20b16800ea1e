package service

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/licensegate/internal/keycode"
	"github.com/licensegate/internal/models"
	"github.com/licensegate/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupLicenseServiceTest(t *testing.T) (*LicenseService, *fakeNotifier, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:license_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.License{}, &models.AccessLog{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	licenseRepo := repository.NewLicenseRepository(db)
	accessRepo := repository.NewAccessLogRepository(db)
	notifier := &fakeNotifier{}
	riskSvc := NewRiskService(licenseRepo, accessRepo, notifier, nil, DefaultRiskOptions())
	svc := NewLicenseService(licenseRepo, accessRepo, riskSvc, notifier, keycode.DefaultConfig())
	return svc, notifier, db
}

func TestLicenseServiceIssue(t *testing.T) {
	svc, notifier, db := setupLicenseServiceTest(t)

	expiresAt := time.Now().Add(30 * 24 * time.Hour)
	license, messageID, err := svc.Issue(IssueLicenseInput{
		Email:          "Buyer@Example.com",
		PurchaseAmount: models.NewMoneyFromDecimal(decimal.RequireFromString("199.00")),
		Remark:         "年度授权",
		ExpiresAt:      &expiresAt,
	})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if license == nil || license.ID == 0 {
		t.Fatalf("invalid license: %+v", license)
	}
	if license.Email != "buyer@example.com" {
		t.Fatalf("email should be normalized, got: %s", license.Email)
	}
	if messageID == "" {
		t.Fatal("expected message id from notifier")
	}
	if !keycode.Validate(license.Code, keycode.DefaultConfig()) {
		t.Fatalf("issued code fails validation: %s", license.Code)
	}
	if len(notifier.codes) != 1 || notifier.codes[0] != license.Code {
		t.Fatalf("expected code delivered once, got: %v", notifier.codes)
	}

	var count int64
	if err := db.Model(&models.License{}).Count(&count).Error; err != nil {
		t.Fatalf("count licenses failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 license, got: %d", count)
	}
}

func TestLicenseServiceIssueRollsBackOnNotifyFailure(t *testing.T) {
	svc, notifier, db := setupLicenseServiceTest(t)
	notifier.fail = true

	_, _, err := svc.Issue(IssueLicenseInput{
		Email:          "buyer@example.com",
		PurchaseAmount: models.NewMoneyFromDecimal(decimal.RequireFromString("9.90")),
	})
	if !errors.Is(err, ErrLicenseNotifyFailed) {
		t.Fatalf("expected ErrLicenseNotifyFailed, got: %v", err)
	}

	var count int64
	if err := db.Model(&models.License{}).Count(&count).Error; err != nil {
		t.Fatalf("count licenses failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("license should be rolled back, got %d rows", count)
	}
}

func TestLicenseServiceIssueSkipsDisabledNotifier(t *testing.T) {
	svc, notifier, db := setupLicenseServiceTest(t)
	notifier.disabled = true

	license, messageID, err := svc.Issue(IssueLicenseInput{
		Email:          "buyer@example.com",
		PurchaseAmount: models.NewMoneyFromDecimal(decimal.RequireFromString("9.90")),
	})
	if err != nil {
		t.Fatalf("issue with disabled email should succeed: %v", err)
	}
	if messageID != "" {
		t.Fatalf("expected empty message id, got: %s", messageID)
	}

	var count int64
	if err := db.Model(&models.License{}).Where("id = ?", license.ID).Count(&count).Error; err != nil {
		t.Fatalf("count licenses failed: %v", err)
	}
	if count != 1 {
		t.Fatal("license should be persisted")
	}
}

func TestLicenseServiceIssueRejectsInvalidInput(t *testing.T) {
	svc, _, _ := setupLicenseServiceTest(t)

	if _, _, err := svc.Issue(IssueLicenseInput{Email: "not-an-email"}); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got: %v", err)
	}
	past := time.Now().Add(-time.Hour)
	if _, _, err := svc.Issue(IssueLicenseInput{Email: "a@b.com", ExpiresAt: &past}); !errors.Is(err, ErrLicenseInvalid) {
		t.Fatalf("expected ErrLicenseInvalid for past expiry, got: %v", err)
	}
}

func TestLicenseServiceIssueBatch(t *testing.T) {
	svc, notifier, db := setupLicenseServiceTest(t)

	licenses, _, err := svc.IssueBatch(IssueLicenseBatchInput{
		Email:          "buyer@example.com",
		Count:          5,
		PurchaseAmount: models.NewMoneyFromDecimal(decimal.RequireFromString("49.00")),
	})
	if err != nil {
		t.Fatalf("issue batch failed: %v", err)
	}
	if len(licenses) != 5 {
		t.Fatalf("expected 5 licenses, got: %d", len(licenses))
	}

	seen := map[string]struct{}{}
	for _, l := range licenses {
		if _, dup := seen[l.Code]; dup {
			t.Fatalf("duplicate code in batch: %s", l.Code)
		}
		seen[l.Code] = struct{}{}
	}
	if len(notifier.codes) != 1 {
		t.Fatalf("batch should deliver a single summary email, got %d", len(notifier.codes))
	}

	var count int64
	if err := db.Model(&models.License{}).Count(&count).Error; err != nil {
		t.Fatalf("count licenses failed: %v", err)
	}
	if count != 5 {
		t.Fatalf("expected 5 rows, got: %d", count)
	}
}

func TestLicenseServiceListMasksCodes(t *testing.T) {
	svc, _, db := setupLicenseServiceTest(t)
	license := models.License{
		Code:      "ABCD-EFGH-IJKL-MNOP-Q",
		Email:     "buyer@example.com",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(&license).Error; err != nil {
		t.Fatalf("create license failed: %v", err)
	}

	listed, total, err := svc.List(LicenseListInput{Page: 1, PageSize: 20})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 1 || len(listed) != 1 {
		t.Fatalf("unexpected list result: total=%d len=%d", total, len(listed))
	}
	if listed[0].Code == license.Code {
		t.Fatal("listed code must be masked")
	}
	if !strings.Contains(listed[0].Code, "*") {
		t.Fatalf("masked code should contain mask char: %s", listed[0].Code)
	}
	if len(listed[0].Code) != len(license.Code) {
		t.Fatalf("mask must preserve length: %s", listed[0].Code)
	}
}

func TestLicenseServiceAdminInspect(t *testing.T) {
	svc, _, db := setupLicenseServiceTest(t)
	license := models.License{
		Code:         "ABCD-EFGH-IJKL-MNOP-Q",
		Email:        "buyer@example.com",
		WarningCount: 3,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := db.Create(&license).Error; err != nil {
		t.Fatalf("create license failed: %v", err)
	}

	result, err := svc.AdminInspect(license.ID)
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if !result.Valid {
		t.Fatalf("unlocked unexpired license should be valid: %+v", result)
	}
	if result.RiskLevel != "medium" {
		t.Fatalf("expected medium risk, got: %s", result.RiskLevel)
	}

	byCred, err := svc.AdminInspectByCredential("buyer@example.com", license.Code)
	if err != nil {
		t.Fatalf("inspect by credential failed: %v", err)
	}
	if byCred.License == nil || byCred.License.ID != license.ID {
		t.Fatalf("unexpected inspect result: %+v", byCred)
	}

	if _, err := svc.AdminInspect(9999); !errors.Is(err, ErrLicenseNotFound) {
		t.Fatalf("expected ErrLicenseNotFound, got: %v", err)
	}
}

func TestLicenseServiceToggleLock(t *testing.T) {
	svc, _, db := setupLicenseServiceTest(t)
	license := models.License{
		Code:      "ABCD-EFGH-IJKL-MNOP-Q",
		Email:     "buyer@example.com",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(&license).Error; err != nil {
		t.Fatalf("create license failed: %v", err)
	}

	locked, err := svc.ToggleLock(license.ID, true)
	if err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	if !locked.Locked {
		t.Fatal("license should be locked")
	}

	unlocked, err := svc.ToggleLock(license.ID, false)
	if err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
	if unlocked.Locked {
		t.Fatal("license should be unlocked by admin action")
	}
}

func TestLicenseServiceDeleteCascadesLogs(t *testing.T) {
	svc, _, db := setupLicenseServiceTest(t)
	license := models.License{
		Code:      "ABCD-EFGH-IJKL-MNOP-Q",
		Email:     "buyer@example.com",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(&license).Error; err != nil {
		t.Fatalf("create license failed: %v", err)
	}
	entry := models.AccessLog{LicenseID: license.ID, Email: license.Email, IP: "1.1.1.1", AccessedAt: time.Now()}
	if err := db.Create(&entry).Error; err != nil {
		t.Fatalf("create access log failed: %v", err)
	}

	if err := svc.Delete(license.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	var licenseCount, logCount int64
	if err := db.Model(&models.License{}).Count(&licenseCount).Error; err != nil {
		t.Fatalf("count licenses failed: %v", err)
	}
	if err := db.Model(&models.AccessLog{}).Count(&logCount).Error; err != nil {
		t.Fatalf("count access logs failed: %v", err)
	}
	if licenseCount != 0 || logCount != 0 {
		t.Fatalf("expected cascade delete, licenses=%d logs=%d", licenseCount, logCount)
	}
}
