package queue

import (
	"encoding/json"

	"github.com/licensegate/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskSecurityWarningEmail 安全警告邮件任务
	TaskSecurityWarningEmail = constants.TaskSecurityWarningEmail
	// TaskAccountLockEmail 锁定通知邮件任务
	TaskAccountLockEmail = constants.TaskAccountLockEmail
)

// SecurityWarningEmailPayload 安全警告邮件任务载荷
type SecurityWarningEmailPayload struct {
	LicenseID uint   `json:"license_id"`
	Email     string `json:"email"`
	IP        string `json:"ip"`
}

// AccountLockEmailPayload 锁定通知邮件任务载荷
type AccountLockEmailPayload struct {
	LicenseID uint   `json:"license_id"`
	Email     string `json:"email"`
	Reason    string `json:"reason"`
}

// NewSecurityWarningEmailTask 创建安全警告邮件任务
func NewSecurityWarningEmailTask(payload SecurityWarningEmailPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSecurityWarningEmail, body), nil
}

// NewAccountLockEmailTask 创建锁定通知邮件任务
func NewAccountLockEmailTask(payload AccountLockEmailPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAccountLockEmail, body), nil
}
