package service

import "errors"

// 邮件服务错误
var (
	ErrEmailServiceDisabled      = errors.New("邮件服务未启用")
	ErrEmailServiceNotConfigured = errors.New("邮件服务未配置")
	ErrInvalidEmail              = errors.New("邮箱地址无效")
	ErrEmailRecipientRejected    = errors.New("收件人地址被拒绝")
)

// 授权码服务错误
var (
	ErrLicenseInvalid        = errors.New("授权码参数无效")
	ErrLicenseNotFound       = errors.New("授权码不存在")
	ErrLicenseFetchFailed    = errors.New("授权码查询失败")
	ErrLicenseCreateFailed   = errors.New("授权码创建失败")
	ErrLicenseUpdateFailed   = errors.New("授权码更新失败")
	ErrLicenseDeleteFailed   = errors.New("授权码删除失败")
	ErrLicenseNotifyFailed   = errors.New("授权码通知发送失败")
	ErrCodeAllocateExhausted = errors.New("授权码生成重试次数耗尽")
)

// 管理员认证错误
var (
	ErrInvalidCredentials = errors.New("账号或密码错误")
	ErrTokenInvalid       = errors.New("登录凭证无效")
	ErrLoginFailed        = errors.New("登录失败")
)
