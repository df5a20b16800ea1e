package keycode

import (
	"errors"
	"testing"
)

func TestAllocateOneSucceedsFirstTry(t *testing.T) {
	calls := 0
	code, err := AllocateOne(func(string) (bool, error) {
		calls++
		return false, nil
	}, DefaultConfig())
	if err != nil {
		t.Fatalf("AllocateOne() error = %v", err)
	}
	if code == "" {
		t.Fatal("AllocateOne() returned empty code")
	}
	if calls != 1 {
		t.Errorf("exists check calls = %d, want 1", calls)
	}
}

func TestAllocateOneExhaustsAfterMaxAttempts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAttempts = 4

	calls := 0
	code, err := AllocateOne(func(string) (bool, error) {
		calls++
		return true, nil
	}, cfg)
	if code != "" {
		t.Fatalf("AllocateOne() = %q, want empty on exhaustion", code)
	}
	if calls != 4 {
		t.Errorf("exists check calls = %d, want 4", calls)
	}

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error type = %T, want *ExhaustedError", err)
	}
	if exhausted.Index != 1 || exhausted.Attempts != 4 {
		t.Errorf("exhausted = %+v, want index 1 attempts 4", exhausted)
	}
}

func TestAllocateOnePropagatesCheckError(t *testing.T) {
	storeErr := errors.New("store unavailable")
	_, err := AllocateOne(func(string) (bool, error) {
		return false, storeErr
	}, DefaultConfig())
	if !errors.Is(err, storeErr) {
		t.Fatalf("error = %v, want wrapped store error", err)
	}
}

func TestAllocateManyDistinct(t *testing.T) {
	existing := map[string]struct{}{}
	codes, err := AllocateMany(50, func(code string) (bool, error) {
		_, ok := existing[code]
		return ok, nil
	}, DefaultConfig())
	if err != nil {
		t.Fatalf("AllocateMany() error = %v", err)
	}
	if len(codes) != 50 {
		t.Fatalf("allocated %d codes, want 50", len(codes))
	}

	seen := map[string]struct{}{}
	for _, code := range codes {
		if _, dup := seen[code]; dup {
			t.Fatalf("duplicate code in batch: %q", code)
		}
		seen[code] = struct{}{}
		if _, taken := existing[code]; taken {
			t.Fatalf("code %q collides with existing set", code)
		}
	}
}

func TestAllocateManyReportsFailingIndex(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAttempts = 3

	// 前两个放行，第三个开始一律视为已存在
	released := 0
	_, err := AllocateMany(5, func(string) (bool, error) {
		if released < 2 {
			released++
			return false, nil
		}
		return true, nil
	}, cfg)

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error type = %T, want *ExhaustedError", err)
	}
	if exhausted.Index != 3 {
		t.Errorf("failing index = %d, want 3", exhausted.Index)
	}
}

func TestAllocateManyRejectsInvalidCount(t *testing.T) {
	if _, err := AllocateMany(0, func(string) (bool, error) { return false, nil }, DefaultConfig()); err == nil {
		t.Fatal("AllocateMany(0) expected error")
	}
}
