package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/licensegate/internal/config"
	"github.com/licensegate/internal/models"
	"github.com/licensegate/internal/repository"

	"github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func setupAuthServiceTest(t *testing.T) (*AuthService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:auth_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Admin{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	svc := NewAuthService(repository.NewAdminRepository(db), &config.JWTConfig{
		SecretKey:   "test-secret-key",
		ExpireHours: 1,
	})
	return svc, db
}

func seedAdmin(t *testing.T, db *gorm.DB, username, password string) *models.Admin {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password failed: %v", err)
	}
	admin := &models.Admin{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := db.Create(admin).Error; err != nil {
		t.Fatalf("create admin failed: %v", err)
	}
	return admin
}

func TestAuthServiceLogin(t *testing.T) {
	svc, db := setupAuthServiceTest(t)
	seeded := seedAdmin(t, db, "admin", "secret123")

	token, admin, err := svc.Login("admin", "secret123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if token == "" || admin == nil || admin.ID != seeded.ID {
		t.Fatalf("unexpected login result: token=%q admin=%+v", token, admin)
	}

	claims, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if claims.AdminID != seeded.ID || claims.Username != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	var stored models.Admin
	if err := db.First(&stored, seeded.ID).Error; err != nil {
		t.Fatalf("query admin failed: %v", err)
	}
	if stored.LastLoginAt == nil {
		t.Fatal("last_login_at should be updated")
	}
}

func TestAuthServiceLoginRejectsBadCredentials(t *testing.T) {
	svc, db := setupAuthServiceTest(t)
	seedAdmin(t, db, "admin", "secret123")

	if _, _, err := svc.Login("admin", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got: %v", err)
	}
	if _, _, err := svc.Login("nobody", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got: %v", err)
	}
}

func TestAuthServiceParseTokenRejectsGarbage(t *testing.T) {
	svc, _ := setupAuthServiceTest(t)
	if _, err := svc.ParseToken("not-a-token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got: %v", err)
	}
	if _, err := svc.ParseToken(""); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for empty token, got: %v", err)
	}
}
