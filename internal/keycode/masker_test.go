package keycode

import (
	"strings"
	"testing"
)

func TestMaskSegmented(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"abc-123-def", "a*c-1*3-d*f"},
		{"ABCD-EFGH-IJKL-MNOP-Q", "A**D-E**H-I**L-M**P-*"},
		{"abc_123_def", "a*c_1*3_d*f"},
		{"ab-cd-ef", "**-**-**"},
	}
	for _, tc := range cases {
		if got := Mask(tc.in); got != tc.want {
			t.Errorf("Mask(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMaskUnsegmented(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"short", "s***t"},
		{"abcdef", "a****f"},
		{"ab-cd", "a***d"}, // 仅 2 段，不构成标准分组，整串处理
		{"", ""},
		{"ab", "ab"}, // 低于最小长度原样返回
	}
	for _, tc := range cases {
		if got := Mask(tc.in); got != tc.want {
			t.Errorf("Mask(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMaskRejectsMixedSeparators(t *testing.T) {
	// 混用 - 与 _ 不识别为分组结构，整串按单段掩码
	got := Mask("abc-123_def")
	want := "a*********f"
	if got != want {
		t.Errorf("Mask mixed separators = %q, want %q", got, want)
	}
}

func TestMaskPreservesStructure(t *testing.T) {
	cfg := DefaultConfig()
	for i := 0; i < 50; i++ {
		code, err := Generate(cfg)
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		masked := Mask(code)
		if len(masked) != len(code) {
			t.Fatalf("Mask(%q) changed length: %q", code, masked)
		}
		origSegs := strings.Split(code, "-")
		maskSegs := strings.Split(masked, "-")
		if len(origSegs) != len(maskSegs) {
			t.Fatalf("Mask(%q) changed segment count: %q", code, masked)
		}
		for j := range origSegs {
			if len(origSegs[j]) != len(maskSegs[j]) {
				t.Fatalf("segment %d length changed: %q -> %q", j, origSegs[j], maskSegs[j])
			}
			if len(origSegs[j]) > 2 {
				if maskSegs[j][0] != origSegs[j][0] || maskSegs[j][len(maskSegs[j])-1] != origSegs[j][len(origSegs[j])-1] {
					t.Fatalf("segment %d edges not preserved: %q -> %q", j, origSegs[j], maskSegs[j])
				}
			}
		}
	}
}

func TestMaskWithOptionsNoEdges(t *testing.T) {
	opts := DefaultMaskOptions()
	opts.KeepEdges = false
	if got := MaskWithOptions("abc-123-def", opts); got != "***-***-***" {
		t.Errorf("MaskWithOptions no edges = %q", got)
	}
}

func TestMaskBatch(t *testing.T) {
	in := []string{"abc-123-def", "short", ""}
	got := MaskBatch(in)
	want := []string{"a*c-1*3-d*f", "s***t", ""}
	if len(got) != len(want) {
		t.Fatalf("MaskBatch length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("MaskBatch[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
