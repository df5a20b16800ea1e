package constants

// 授权码风控默认值
const (
	// RiskWarningThresholdDefault 24 小时内风险访问次数达到该值后，IP 变更视为风险行为
	RiskWarningThresholdDefault = 3
	// RiskLockThresholdDefault 警告次数达到该值后自动锁定授权码
	RiskLockThresholdDefault = 5
	// RiskWindowHoursDefault 风险访问统计窗口（小时）
	RiskWindowHoursDefault = 24
)

// 风险等级常量
const (
	RiskLevelSafe   = "safe"
	RiskLevelLow    = "low"
	RiskLevelMedium = "medium"
	RiskLevelHigh   = "high"
)

// 授权码生成默认值
const (
	LicenseCodeAlphabetDefault    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	LicenseCodeLengthDefault      = 16
	LicenseCodeGroupSizeDefault   = 4
	LicenseCodeSeparatorDefault   = "-"
	LicenseCodeMaxAttemptsDefault = 10
)

// 队列与任务常量
const (
	QueueDefault             = "default"
	TaskSecurityWarningEmail = "license:security_warning_email"
	TaskAccountLockEmail     = "license:account_lock_email"
)

// 周期任务默认值
const (
	SweepIntervalMinutesDefault  = 60
	ReminderDaysAheadDefault     = 7
	ReminderIntervalHoursDefault = 24
)

// 通用分页默认值
const (
	PageSizeDefault = 20
	PageSizeMax     = 100
)
