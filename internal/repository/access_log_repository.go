package repository

import (
	"errors"
	"time"

	"github.com/licensegate/internal/models"

	"gorm.io/gorm"
)

// IPCount 访问 IP 聚合结果
type IPCount struct {
	IP    string `json:"ip"`
	Total int64  `json:"total"`
}

// AccessLogRepository 访问日志数据访问接口（只追加）
type AccessLogRepository interface {
	Create(log *models.AccessLog) error
	CountRiskySince(licenseID uint, since time.Time) (int64, error)
	ListByLicense(licenseID uint, page, pageSize int) ([]models.AccessLog, int64, error)
	AggregateCommonIPs(licenseID uint, limit int) ([]IPCount, error)
	WithTx(tx *gorm.DB) *GormAccessLogRepository
}

// GormAccessLogRepository GORM 实现
type GormAccessLogRepository struct {
	db *gorm.DB
}

// NewAccessLogRepository 创建访问日志仓库
func NewAccessLogRepository(db *gorm.DB) *GormAccessLogRepository {
	return &GormAccessLogRepository{db: db}
}

// WithTx 绑定事务
func (r *GormAccessLogRepository) WithTx(tx *gorm.DB) *GormAccessLogRepository {
	if tx == nil {
		return r
	}
	return &GormAccessLogRepository{db: tx}
}

// Create 追加一条访问日志
func (r *GormAccessLogRepository) Create(log *models.AccessLog) error {
	if log == nil {
		return nil
	}
	if log.AccessedAt.IsZero() {
		log.AccessedAt = time.Now()
	}
	return r.db.Create(log).Error
}

// CountRiskySince 统计指定时间之后的风险访问次数
func (r *GormAccessLogRepository) CountRiskySince(licenseID uint, since time.Time) (int64, error) {
	if licenseID == 0 {
		return 0, errors.New("invalid license id")
	}
	var count int64
	if err := r.db.Model(&models.AccessLog{}).
		Where("license_id = ? AND is_risky = ? AND accessed_at >= ?", licenseID, true, since).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListByLicense 按授权码分页查询访问日志
func (r *GormAccessLogRepository) ListByLicense(licenseID uint, page, pageSize int) ([]models.AccessLog, int64, error) {
	if licenseID == 0 {
		return nil, 0, errors.New("invalid license id")
	}
	query := r.db.Model(&models.AccessLog{}).Where("license_id = ?", licenseID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, page, pageSize)

	var logs []models.AccessLog
	if err := query.Order("id desc").Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// AggregateCommonIPs 聚合授权码的常用访问 IP（按出现次数降序）
func (r *GormAccessLogRepository) AggregateCommonIPs(licenseID uint, limit int) ([]IPCount, error) {
	if licenseID == 0 {
		return nil, errors.New("invalid license id")
	}
	if limit <= 0 {
		limit = 5
	}
	var rows []IPCount
	if err := r.db.Model(&models.AccessLog{}).
		Select("ip, COUNT(*) as total").
		Where("license_id = ? AND ip <> ''", licenseID).
		Group("ip").
		Order("total desc").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
