package models

import "time"

// License 授权码表
type License struct {
	ID             uint       `gorm:"primarykey" json:"id"`                           // 主键
	Code           string     `gorm:"uniqueIndex;not null" json:"code"`               // 授权码（全局唯一）
	Email          string     `gorm:"index;not null" json:"email"`                    // 绑定邮箱
	PurchaseAmount Money      `gorm:"type:decimal(12,2)" json:"purchase_amount"`      // 购买金额
	Remark         string     `gorm:"type:text" json:"remark"`                        // 备注
	IsUsed         bool       `gorm:"not null;default:false" json:"is_used"`          // 是否已首次使用
	Locked         bool       `gorm:"not null;default:false;index" json:"locked"`     // 是否已锁定（终态）
	IsExpired      bool       `gorm:"not null;default:false;index" json:"is_expired"` // 是否已过期（单向）
	ExpiresAt      *time.Time `gorm:"index" json:"expires_at"`                        // 过期时间（nil 表示永久）
	LastIP         string     `json:"last_ip"`                                        // 最近一次访问 IP
	WarningCount   int        `gorm:"not null;default:0" json:"warning_count"`        // 风险警告次数（单调递增）
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`                        // 创建时间
	UpdatedAt      time.Time  `json:"updated_at"`                                     // 更新时间
}

// TableName 指定表名
func (License) TableName() string {
	return "licenses"
}
