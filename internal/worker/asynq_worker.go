package worker

import (
	"context"
	"encoding/json"

	"github.com/licensegate/internal/logger"
	"github.com/licensegate/internal/provider"
	"github.com/licensegate/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskSecurityWarningEmail, c.handleSecurityWarningEmail)
	mux.HandleFunc(queue.TaskAccountLockEmail, c.handleAccountLockEmail)
}

func (c *Consumer) handleSecurityWarningEmail(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_security_warning_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.SecurityWarningEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_security_warning_unmarshal_failed", "error", err)
		return err
	}
	if payload.LicenseID == 0 || payload.Email == "" {
		logger.Debugw("worker_security_warning_skip_invalid_payload", "license_id", payload.LicenseID)
		return nil
	}

	// 授权码可能在任务排队期间被删除
	license, err := c.LicenseRepo.GetByID(payload.LicenseID)
	if err != nil {
		logger.Warnw("worker_security_warning_fetch_failed", "license_id", payload.LicenseID, "error", err)
		return err
	}
	if license == nil {
		logger.Debugw("worker_security_warning_skip_license_gone", "license_id", payload.LicenseID)
		return nil
	}
	if c.EmailService == nil {
		logger.Warnw("worker_security_warning_skip_email_service_nil", "license_id", payload.LicenseID)
		return nil
	}

	result := c.EmailService.SendSecurityWarning(payload.Email, payload.IP)
	if !result.Success {
		logger.Warnw("worker_security_warning_send_failed",
			"license_id", payload.LicenseID,
			"email", payload.Email,
			"ip", payload.IP,
			"error", result.Err,
		)
		return result.Err
	}
	return nil
}

func (c *Consumer) handleAccountLockEmail(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_account_lock_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.AccountLockEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_account_lock_unmarshal_failed", "error", err)
		return err
	}
	if payload.LicenseID == 0 || payload.Email == "" {
		logger.Debugw("worker_account_lock_skip_invalid_payload", "license_id", payload.LicenseID)
		return nil
	}
	if c.EmailService == nil {
		logger.Warnw("worker_account_lock_skip_email_service_nil", "license_id", payload.LicenseID)
		return nil
	}

	result := c.EmailService.SendAccountLock(payload.Email, payload.Reason)
	if !result.Success {
		logger.Warnw("worker_account_lock_send_failed",
			"license_id", payload.LicenseID,
			"email", payload.Email,
			"error", result.Err,
		)
		return result.Err
	}
	return nil
}
