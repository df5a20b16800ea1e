package repository

import (
	"errors"
	"time"

	"github.com/licensegate/internal/models"

	"gorm.io/gorm"
)

// LicenseListFilter 管理端授权码列表过滤条件
type LicenseListFilter struct {
	Email       string
	Locked      *bool
	IsExpired   *bool
	IsUsed      *bool
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Page        int
	PageSize    int
}

// LicenseRepository 授权码数据访问接口
type LicenseRepository interface {
	GetByEmailAndCode(email, code string) (*models.License, error)
	GetByID(id uint) (*models.License, error)
	GetByCode(code string) (*models.License, error)
	ExistsByCode(code string) (bool, error)
	Create(license *models.License) error
	UpdateFields(id uint, fields map[string]interface{}) error
	Delete(id uint) error
	List(filter LicenseListFilter) ([]models.License, int64, error)
	IncrementWarning(id uint) (int, error)
	SetLocked(id uint, locked bool) error
	BulkMarkExpired(now time.Time) (int64, error)
	ListExpiringWithin(from, to time.Time) ([]models.License, error)
	WithTx(tx *gorm.DB) *GormLicenseRepository
}

// GormLicenseRepository GORM 实现
type GormLicenseRepository struct {
	db *gorm.DB
}

// NewLicenseRepository 创建授权码仓库
func NewLicenseRepository(db *gorm.DB) *GormLicenseRepository {
	return &GormLicenseRepository{db: db}
}

// WithTx 绑定事务
func (r *GormLicenseRepository) WithTx(tx *gorm.DB) *GormLicenseRepository {
	if tx == nil {
		return r
	}
	return &GormLicenseRepository{db: tx}
}

// GetByEmailAndCode 按邮箱加授权码查询
func (r *GormLicenseRepository) GetByEmailAndCode(email, code string) (*models.License, error) {
	var license models.License
	if err := r.db.Where("email = ? AND code = ?", email, code).First(&license).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &license, nil
}

// GetByID 根据 ID 查询授权码
func (r *GormLicenseRepository) GetByID(id uint) (*models.License, error) {
	var license models.License
	if err := r.db.First(&license, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &license, nil
}

// GetByCode 根据授权码内容查询
func (r *GormLicenseRepository) GetByCode(code string) (*models.License, error) {
	var license models.License
	if err := r.db.Where("code = ?", code).First(&license).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &license, nil
}

// ExistsByCode 判断授权码是否已存在
func (r *GormLicenseRepository) ExistsByCode(code string) (bool, error) {
	var count int64
	if err := r.db.Model(&models.License{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create 创建授权码
func (r *GormLicenseRepository) Create(license *models.License) error {
	if license == nil {
		return errors.New("nil license")
	}
	return r.db.Create(license).Error
}

// UpdateFields 按字段更新授权码
func (r *GormLicenseRepository) UpdateFields(id uint, fields map[string]interface{}) error {
	if id == 0 || len(fields) == 0 {
		return nil
	}
	return r.db.Model(&models.License{}).Where("id = ?", id).Updates(fields).Error
}

// Delete 删除授权码（连带清理其访问日志）
func (r *GormLicenseRepository) Delete(id uint) error {
	if id == 0 {
		return nil
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("license_id = ?", id).Delete(&models.AccessLog{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.License{}, id).Error
	})
}

// List 管理端分页查询授权码
func (r *GormLicenseRepository) List(filter LicenseListFilter) ([]models.License, int64, error) {
	query := r.db.Model(&models.License{})
	if filter.Email != "" {
		query = query.Where("email = ?", filter.Email)
	}
	if filter.Locked != nil {
		query = query.Where("locked = ?", *filter.Locked)
	}
	if filter.IsExpired != nil {
		query = query.Where("is_expired = ?", *filter.IsExpired)
	}
	if filter.IsUsed != nil {
		query = query.Where("is_used = ?", *filter.IsUsed)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var licenses []models.License
	if err := query.Order("id desc").Find(&licenses).Error; err != nil {
		return nil, 0, err
	}
	return licenses, total, nil
}

// IncrementWarning 原子递增警告计数并返回递增后的值
// 用单条 UPDATE 完成自增，再读回权威值，避免并发读改写丢更新。
func (r *GormLicenseRepository) IncrementWarning(id uint) (int, error) {
	if id == 0 {
		return 0, errors.New("invalid license id")
	}

	var count int
	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.License{}).
			Where("id = ?", id).
			Update("warning_count", gorm.Expr("warning_count + 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&models.License{}).
			Where("id = ?", id).
			Select("warning_count").
			Scan(&count).Error
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// SetLocked 设置锁定状态
func (r *GormLicenseRepository) SetLocked(id uint, locked bool) error {
	if id == 0 {
		return errors.New("invalid license id")
	}
	return r.db.Model(&models.License{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"locked":     locked,
			"updated_at": time.Now(),
		}).Error
}

// BulkMarkExpired 批量标记已到期的授权码（集合式更新，幂等）
func (r *GormLicenseRepository) BulkMarkExpired(now time.Time) (int64, error) {
	if now.IsZero() {
		now = time.Now()
	}
	result := r.db.Model(&models.License{}).
		Where("expires_at IS NOT NULL AND expires_at < ? AND is_expired = ?", now, false).
		Updates(map[string]interface{}{
			"is_expired": true,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

// ListExpiringWithin 查询时间窗内即将到期的授权码
// 已过期与已锁定的不参与提醒。
func (r *GormLicenseRepository) ListExpiringWithin(from, to time.Time) ([]models.License, error) {
	var licenses []models.License
	if err := r.db.Model(&models.License{}).
		Where("expires_at IS NOT NULL AND expires_at >= ? AND expires_at <= ?", from, to).
		Where("is_expired = ? AND locked = ?", false, false).
		Order("expires_at asc").
		Find(&licenses).Error; err != nil {
		return nil, err
	}
	return licenses, nil
}
