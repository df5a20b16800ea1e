package service

import "time"

// NotifyResult 单次通知发送结果
type NotifyResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Err       error  `json:"-"`
}

// RemainingTime 到期前剩余时间
type RemainingTime struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// Notifier 授权码相关通知发送接口
type Notifier interface {
	SendLicenseCode(email, code string) NotifyResult
	SendSecurityWarning(email, ip string) NotifyResult
	SendAccountLock(email, reason string) NotifyResult
	SendExpirationReminder(email, code string, expiresAt time.Time, remaining RemainingTime) NotifyResult
}
