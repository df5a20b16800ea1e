package service

import (
	"strings"
	"time"

	"github.com/licensegate/internal/config"
	"github.com/licensegate/internal/logger"
	"github.com/licensegate/internal/models"
	"github.com/licensegate/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthService 管理员认证服务
type AuthService struct {
	adminRepo repository.AdminRepository
	cfg       *config.JWTConfig
}

// NewAuthService 创建认证服务
func NewAuthService(adminRepo repository.AdminRepository, cfg *config.JWTConfig) *AuthService {
	return &AuthService{
		adminRepo: adminRepo,
		cfg:       cfg,
	}
}

// AdminClaims 管理端 JWT 载荷
type AdminClaims struct {
	AdminID  uint   `json:"admin_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Login 账号密码登录，成功返回 JWT
func (s *AuthService) Login(username, password string) (string, *models.Admin, error) {
	if s == nil || s.adminRepo == nil || s.cfg == nil {
		return "", nil, ErrLoginFailed
	}
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", nil, ErrInvalidCredentials
	}

	admin, err := s.adminRepo.GetByUsername(username)
	if err != nil {
		return "", nil, ErrLoginFailed
	}
	if admin == nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.issueToken(admin)
	if err != nil {
		return "", nil, ErrLoginFailed
	}

	if err := s.adminRepo.UpdateLastLogin(admin.ID, time.Now()); err != nil {
		logger.Warnw("admin_update_last_login_failed", "admin_id", admin.ID, "error", err)
	}
	return token, admin, nil
}

// ParseToken 解析并校验 JWT
func (s *AuthService) ParseToken(tokenString string) (*AdminClaims, error) {
	if s == nil || s.cfg == nil || strings.TrimSpace(tokenString) == "" {
		return nil, ErrTokenInvalid
	}
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(s.cfg.SecretKey), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.AdminID == 0 {
		return nil, ErrTokenInvalid
	}

	// 确认管理员仍然存在
	if s.adminRepo != nil {
		admin, err := s.adminRepo.GetByID(claims.AdminID)
		if err != nil || admin == nil {
			return nil, ErrTokenInvalid
		}
	}
	return claims, nil
}

func (s *AuthService) issueToken(admin *models.Admin) (string, error) {
	expireHours := s.cfg.ExpireHours
	if expireHours <= 0 {
		expireHours = 24
	}
	now := time.Now()
	claims := AdminClaims{
		AdminID:  admin.ID,
		Username: admin.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expireHours) * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.SecretKey))
}
