package keycode

import "github.com/licensegate/internal/constants"

// Config 授权码形态配置
type Config struct {
	Alphabet    string // 候选字符集
	TotalLength int    // 码体长度（不含校验位）
	GroupSize   int    // 分组宽度
	Separator   string // 分组分隔符
	Checksum    bool   // 是否附加校验位
	MaxAttempts int    // 唯一性分配最大重试次数
}

// DefaultConfig 返回默认授权码配置
func DefaultConfig() Config {
	return Config{
		Alphabet:    constants.LicenseCodeAlphabetDefault,
		TotalLength: constants.LicenseCodeLengthDefault,
		GroupSize:   constants.LicenseCodeGroupSizeDefault,
		Separator:   constants.LicenseCodeSeparatorDefault,
		Checksum:    true,
		MaxAttempts: constants.LicenseCodeMaxAttemptsDefault,
	}
}

// withDefaults 对缺失字段逐项回填默认值
func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Alphabet == "" {
		c.Alphabet = defaults.Alphabet
	}
	if c.TotalLength <= 0 {
		c.TotalLength = defaults.TotalLength
	}
	if c.GroupSize <= 0 {
		c.GroupSize = defaults.GroupSize
	}
	if c.Separator == "" {
		c.Separator = defaults.Separator
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaults.MaxAttempts
	}
	return c
}
