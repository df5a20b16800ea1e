package keycode

import "strings"

// 候选分隔符，按顺序尝试
var maskSeparators = []string{"-", "_"}

// MaskOptions 脱敏配置
type MaskOptions struct {
	MaskChar  rune // 掩码字符
	KeepEdges bool // 长段是否保留首尾字符
	MinLength int  // 低于该长度的输入原样返回
}

// DefaultMaskOptions 返回默认脱敏配置
func DefaultMaskOptions() MaskOptions {
	return MaskOptions{
		MaskChar:  '*',
		KeepEdges: true,
		MinLength: 3,
	}
}

// Mask 按默认配置对授权码做保形脱敏
func Mask(code string) string {
	return MaskWithOptions(code, DefaultMaskOptions())
}

// MaskWithOptions 对授权码做保形脱敏
// 识别出标准分组结构时逐段掩码，否则整串按单段处理。
// 段长与分隔符结构保持不变。
func MaskWithOptions(code string, opts MaskOptions) string {
	if opts.MaskChar == 0 {
		opts.MaskChar = '*'
	}
	if opts.MinLength <= 0 {
		opts.MinLength = 3
	}
	if code == "" || len([]rune(code)) < opts.MinLength {
		return code
	}

	separator := detectSeparator(code)
	if separator == "" {
		return maskSegment(code, opts)
	}

	segments := strings.Split(code, separator)
	for i, segment := range segments {
		segments[i] = maskSegment(segment, opts)
	}
	return strings.Join(segments, separator)
}

// MaskBatch 对一组授权码逐个脱敏
func MaskBatch(codes []string) []string {
	if len(codes) == 0 {
		return codes
	}
	masked := make([]string, len(codes))
	for i, code := range codes {
		masked[i] = Mask(code)
	}
	return masked
}

// detectSeparator 识别授权码使用的分隔符
// 仅当按某候选分隔符切出至少 3 个非空段、且不含其他候选分隔符时接受，
// 混用分隔符视为非标准结构。
func detectSeparator(code string) string {
	for _, candidate := range maskSeparators {
		if !strings.Contains(code, candidate) {
			continue
		}
		mixed := false
		for _, other := range maskSeparators {
			if other != candidate && strings.Contains(code, other) {
				mixed = true
				break
			}
		}
		if mixed {
			continue
		}
		segments := strings.Split(code, candidate)
		if len(segments) < 3 {
			continue
		}
		valid := true
		for _, segment := range segments {
			if segment == "" {
				valid = false
				break
			}
		}
		if valid {
			return candidate
		}
	}
	return ""
}

// maskSegment 对单段掩码（长段保留首尾，短段整段替换）
func maskSegment(segment string, opts MaskOptions) string {
	runes := []rune(segment)
	if len(runes) == 0 {
		return segment
	}
	if !opts.KeepEdges || len(runes) <= 2 {
		return strings.Repeat(string(opts.MaskChar), len(runes))
	}
	masked := make([]rune, len(runes))
	masked[0] = runes[0]
	masked[len(runes)-1] = runes[len(runes)-1]
	for i := 1; i < len(runes)-1; i++ {
		masked[i] = opts.MaskChar
	}
	return string(masked)
}
