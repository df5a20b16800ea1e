package repository

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/licensegate/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupLicenseRepositoryTest(t *testing.T) (*GormLicenseRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:license_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.License{}, &models.AccessLog{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewLicenseRepository(db), db
}

func createTestLicense(t *testing.T, db *gorm.DB, code string, mutate func(*models.License)) *models.License {
	t.Helper()
	license := &models.License{
		Code:  code,
		Email: "owner@example.com",
	}
	if mutate != nil {
		mutate(license)
	}
	if err := db.Create(license).Error; err != nil {
		t.Fatalf("create license failed: %v", err)
	}
	return license
}

func TestIncrementWarningReturnsUpdatedCount(t *testing.T) {
	repo, db := setupLicenseRepositoryTest(t)
	license := createTestLicense(t, db, "WARN-0001", nil)

	for want := 1; want <= 3; want++ {
		got, err := repo.IncrementWarning(license.ID)
		if err != nil {
			t.Fatalf("increment warning failed: %v", err)
		}
		if got != want {
			t.Fatalf("warning count = %d, want %d", got, want)
		}
	}

	var stored models.License
	if err := db.First(&stored, license.ID).Error; err != nil {
		t.Fatalf("query license failed: %v", err)
	}
	if stored.WarningCount != 3 {
		t.Fatalf("stored warning_count = %d, want 3", stored.WarningCount)
	}
}

func TestIncrementWarningMissingLicense(t *testing.T) {
	repo, _ := setupLicenseRepositoryTest(t)

	if _, err := repo.IncrementWarning(9999); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got: %v", err)
	}
}

func TestBulkMarkExpiredIsSetBasedAndIdempotent(t *testing.T) {
	repo, db := setupLicenseRepositoryTest(t)
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(24 * time.Hour)

	createTestLicense(t, db, "EXP-0001", func(l *models.License) { l.ExpiresAt = &past })
	createTestLicense(t, db, "EXP-0002", func(l *models.License) { l.ExpiresAt = &past })
	createTestLicense(t, db, "EXP-0003", func(l *models.License) { l.ExpiresAt = &future })
	createTestLicense(t, db, "EXP-0004", nil)

	affected, err := repo.BulkMarkExpired(now)
	if err != nil {
		t.Fatalf("bulk mark expired failed: %v", err)
	}
	if affected != 2 {
		t.Fatalf("affected = %d, want 2", affected)
	}

	// 已标记过的不会被重复计数
	affected, err = repo.BulkMarkExpired(now)
	if err != nil {
		t.Fatalf("second bulk mark expired failed: %v", err)
	}
	if affected != 0 {
		t.Fatalf("second run affected = %d, want 0", affected)
	}

	var expiredCount int64
	if err := db.Model(&models.License{}).Where("is_expired = ?", true).Count(&expiredCount).Error; err != nil {
		t.Fatalf("count expired failed: %v", err)
	}
	if expiredCount != 2 {
		t.Fatalf("expired rows = %d, want 2", expiredCount)
	}
}

func TestListExpiringWithinSkipsExpiredAndLocked(t *testing.T) {
	repo, db := setupLicenseRepositoryTest(t)
	now := time.Now()
	in3d := now.Add(3 * 24 * time.Hour)
	in5d := now.Add(5 * 24 * time.Hour)
	in30d := now.Add(30 * 24 * time.Hour)

	want := createTestLicense(t, db, "REM-0001", func(l *models.License) { l.ExpiresAt = &in3d })
	createTestLicense(t, db, "REM-0002", func(l *models.License) {
		l.ExpiresAt = &in5d
		l.Locked = true
	})
	createTestLicense(t, db, "REM-0003", func(l *models.License) {
		l.ExpiresAt = &in5d
		l.IsExpired = true
	})
	createTestLicense(t, db, "REM-0004", func(l *models.License) { l.ExpiresAt = &in30d })

	licenses, err := repo.ListExpiringWithin(now, now.Add(7*24*time.Hour))
	if err != nil {
		t.Fatalf("list expiring failed: %v", err)
	}
	if len(licenses) != 1 || licenses[0].ID != want.ID {
		t.Fatalf("unexpected reminder candidates: %+v", licenses)
	}
}

func TestDeleteCascadesAccessLogs(t *testing.T) {
	repo, db := setupLicenseRepositoryTest(t)
	license := createTestLicense(t, db, "DEL-0001", nil)
	for i := 0; i < 3; i++ {
		log := models.AccessLog{
			LicenseID:  license.ID,
			Email:      license.Email,
			IP:         "203.0.113.5",
			AccessedAt: time.Now(),
		}
		if err := db.Create(&log).Error; err != nil {
			t.Fatalf("create access log failed: %v", err)
		}
	}

	if err := repo.Delete(license.ID); err != nil {
		t.Fatalf("delete license failed: %v", err)
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
