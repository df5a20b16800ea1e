package models

import "time"

// AccessLog 授权码访问日志表（只追加，不修改不删除）
type AccessLog struct {
	ID         uint      `gorm:"primarykey" json:"id"`               // 主键
	LicenseID  uint      `gorm:"index;not null" json:"license_id"`   // 授权码ID
	Email      string    `gorm:"index;not null" json:"email"`        // 访问邮箱
	IP         string    `gorm:"index" json:"ip"`                    // 访问 IP
	IsRisky    bool      `gorm:"not null;default:false" json:"is_risky"` // 是否风险访问
	AccessedAt time.Time `gorm:"index" json:"accessed_at"`           // 访问时间
}

// TableName 指定表名
func (AccessLog) TableName() string {
	return "access_logs"
}
