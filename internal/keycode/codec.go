package keycode

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Generate 生成一个格式化授权码
// 码体来自加密随机字节流对字符集取模，启用校验位时追加一位
// Luhn 式 mod-N 校验字符，最后按分组宽度加分隔符输出。
func Generate(cfg Config) (string, error) {
	cfg = cfg.withDefaults()

	random := make([]byte, cfg.TotalLength)
	if _, err := rand.Read(random); err != nil {
		return "", fmt.Errorf("read random bytes failed: %w", err)
	}

	body := make([]byte, cfg.TotalLength)
	for i, b := range random {
		body[i] = cfg.Alphabet[int(b)%len(cfg.Alphabet)]
	}

	raw := string(body)
	if cfg.Checksum {
		idx, ok := checksumIndex(raw, cfg.Alphabet)
		if !ok {
			return "", fmt.Errorf("checksum compute failed for alphabet of size %d", len(cfg.Alphabet))
		}
		raw += string(cfg.Alphabet[idx])
	}

	return groupCode(raw, cfg.GroupSize, cfg.Separator), nil
}

// ValidateFormat 校验授权码的分组形态与字符集
// 启用校验位时同时校验校验字符。畸形输入一律返回 false。
func ValidateFormat(code string, cfg Config) bool {
	cfg = cfg.withDefaults()
	if code == "" {
		return false
	}

	totalChars := cfg.TotalLength
	if cfg.Checksum {
		totalChars++
	}

	segments := strings.Split(code, cfg.Separator)
	expected := (totalChars + cfg.GroupSize - 1) / cfg.GroupSize
	if len(segments) != expected {
		return false
	}
	for i, segment := range segments {
		if segment == "" {
			return false
		}
		if i < len(segments)-1 && len(segment) != cfg.GroupSize {
			return false
		}
		if i == len(segments)-1 && len(segment) > cfg.GroupSize {
			return false
		}
	}

	stripped := strings.ReplaceAll(code, cfg.Separator, "")
	if len(stripped) != totalChars {
		return false
	}
	for i := 0; i < len(stripped); i++ {
		if strings.IndexByte(cfg.Alphabet, stripped[i]) < 0 {
			return false
		}
	}

	if cfg.Checksum {
		return ValidateChecksum(code, cfg)
	}
	return true
}

// ValidateChecksum 重算码体校验位并与末位比对
// 未启用校验位时恒为 true。
func ValidateChecksum(code string, cfg Config) bool {
	cfg = cfg.withDefaults()
	if !cfg.Checksum {
		return true
	}

	stripped := strings.ReplaceAll(code, cfg.Separator, "")
	if len(stripped) < 2 {
		return false
	}

	body := stripped[:len(stripped)-1]
	idx, ok := checksumIndex(body, cfg.Alphabet)
	if !ok {
		return false
	}
	return cfg.Alphabet[idx] == stripped[len(stripped)-1]
}

// Validate 同时校验形态与校验位
// ValidateFormat 在启用校验位时已含校验位检查，无需重复计算。
func Validate(code string, cfg Config) bool {
	return ValidateFormat(code, cfg)
}

// checksumIndex 计算 Luhn 式 mod-N 校验位在字符集中的下标
// 从右向左处理码体，最右一位不加倍，隔位加倍并按 base 折叠。
func checksumIndex(body, alphabet string) (int, bool) {
	base := len(alphabet)
	if base < 2 || body == "" {
		return 0, false
	}

	sum := 0
	double := false
	for i := len(body) - 1; i >= 0; i-- {
		v, ok := charValue(body[i], alphabet)
		if !ok {
			return 0, false
		}
		if double {
			v *= 2
			if v > base-1 {
				v = v/base + v%base
			}
		}
		sum += v
		double = !double
	}
	return (base - sum%base) % base, true
}

// charValue 字符到数值的映射（数字 0-9，大写字母 10-35）
// 字符集中超出该范围的字符退回到其在字符集中的下标。
func charValue(ch byte, alphabet string) (int, bool) {
	switch {
	case ch >= '0' && ch <= '9':
		return int(ch - '0'), true
	case ch >= 'A' && ch <= 'Z':
		return int(ch-'A') + 10, true
	}
	idx := strings.IndexByte(alphabet, ch)
	if idx < 0 {
		return 0, false
	}
	return idx, true
}

// groupCode 按固定宽度分组并用分隔符拼接
func groupCode(raw string, groupSize int, separator string) string {
	if groupSize <= 0 || len(raw) <= groupSize {
		return raw
	}
	var builder strings.Builder
	for i := 0; i < len(raw); i += groupSize {
		if i > 0 {
			builder.WriteString(separator)
		}
		end := i + groupSize
		if end > len(raw) {
			end = len(raw)
		}
		builder.WriteString(raw[i:end])
	}
	return builder.String()
}
