package keycode

import (
	"strings"
	"testing"
)

func TestGenerateDefaultShape(t *testing.T) {
	code, err := Generate(DefaultConfig())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	segments := strings.Split(code, "-")
	if len(segments) != 5 {
		t.Fatalf("segment count = %d, want 5 (code %q)", len(segments), code)
	}
	for i := 0; i < 4; i++ {
		if len(segments[i]) != 4 {
			t.Errorf("segment %d length = %d, want 4", i, len(segments[i]))
		}
	}
	if len(segments[4]) != 1 {
		t.Errorf("checksum segment length = %d, want 1", len(segments[4]))
	}
}

func TestGenerateValidatesRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	for i := 0; i < 200; i++ {
		code, err := Generate(cfg)
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if !ValidateFormat(code, cfg) {
			t.Fatalf("ValidateFormat(%q) = false", code)
		}
		if !ValidateChecksum(code, cfg) {
			t.Fatalf("ValidateChecksum(%q) = false", code)
		}
		if !Validate(code, cfg) {
			t.Fatalf("Validate(%q) = false", code)
		}
	}
}

func TestChecksumKnownVectors(t *testing.T) {
	cfg := Config{TotalLength: 4, GroupSize: 4, Separator: "-", Checksum: true}

	// 手算向量：A=10，从右往左隔位加倍并按 36 折叠
	cases := []struct {
		code  string
		valid bool
	}{
		{"AAAA-M", true},
		{"1234-W", true},
		{"AAAA-A", false},
		{"1234-X", false},
	}
	for _, tc := range cases {
		if got := ValidateChecksum(tc.code, cfg); got != tc.valid {
			t.Errorf("ValidateChecksum(%q) = %v, want %v", tc.code, got, tc.valid)
		}
	}
}

func TestChecksumDetectsSubstitution(t *testing.T) {
	cfg := DefaultConfig()
	for i := 0; i < 100; i++ {
		code, err := Generate(cfg)
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}

		// 替换码体最右一位（未加倍位），数值必变，校验必失败
		stripped := strings.ReplaceAll(code, "-", "")
		bodyLast := len(stripped) - 2
		original := stripped[bodyLast]
		replacement := byte('A')
		if original == 'A' {
			replacement = 'B'
		}
		mutated := stripped[:bodyLast] + string(replacement) + stripped[bodyLast+1:]
		regrouped := groupCode(mutated, cfg.GroupSize, cfg.Separator)
		if ValidateChecksum(regrouped, cfg) {
			t.Fatalf("mutated code %q unexpectedly passed checksum (from %q)", regrouped, code)
		}
	}
}

func TestValidateRejectsBadChecksum(t *testing.T) {
	cfg := Config{TotalLength: 4, GroupSize: 4, Separator: "-", Checksum: true}

	if !Validate("AAAA-M", cfg) {
		t.Fatal("Validate should accept code with correct checksum")
	}
	// 形态合法但校验位错误
	if Validate("AAAA-A", cfg) {
		t.Fatal("Validate should reject code with wrong checksum")
	}
	if ValidateFormat("AAAA-A", cfg) {
		t.Fatal("ValidateFormat should reject wrong checksum when checksum enabled")
	}
}

func TestValidateFormatRejectsMalformed(t *testing.T) {
	cfg := DefaultConfig()
	cases := []string{
		"",
		"ABCD",
		"ABCD-EFGH-IJKL-MNOP",          // 缺校验段
		"ABCD-EFGH-IJKL-MNOP-QR",       // 校验段过长
		"abcd-efgh-ijkl-mnop-q",        // 字符集外（小写）
		"ABCD-EFGH-IJKL-MNO!-Q",        // 非法字符
		"ABCD_EFGH_IJKL_MNOP_Q",        // 分隔符不匹配
		"ABCDE-FGH-IJKL-MNOP-Q",        // 段宽错误
		"ABCD-EFGH-IJKL-MNOP-QQ-X",     // 段数过多
		"ABCD--EFGH-IJKL-MNOP-Q",       // 空段
	}
	for _, code := range cases {
		if ValidateFormat(code, cfg) {
			t.Errorf("ValidateFormat(%q) = true, want false", code)
		}
	}
}

func TestValidateWithoutChecksum(t *testing.T) {
	cfg := Config{TotalLength: 8, GroupSize: 4, Separator: "-", Checksum: false}
	code, err := Generate(cfg)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(strings.ReplaceAll(code, "-", "")) != 8 {
		t.Fatalf("code %q body length != 8", code)
	}
	if !Validate(code, cfg) {
		t.Fatalf("Validate(%q) = false", code)
	}
	// 未启用校验位时任意合法形态都通过校验和检查
	if !ValidateChecksum("ZZZZ-ZZZZ", cfg) {
		t.Error("ValidateChecksum should be a no-op when checksum disabled")
	}
}

func TestGenerateCustomAlphabet(t *testing.T) {
	cfg := Config{
		Alphabet:    "0123456789",
		TotalLength: 6,
		GroupSize:   3,
		Separator:   "-",
		Checksum:    true,
	}
	for i := 0; i < 50; i++ {
		code, err := Generate(cfg)
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		for _, ch := range strings.ReplaceAll(code, "-", "") {
			if ch < '0' || ch > '9' {
				t.Fatalf("code %q contains non-digit %q", code, ch)
			}
		}
		if !Validate(code, cfg) {
			t.Fatalf("Validate(%q) = false", code)
		}
	}
}
