package keycode

import "fmt"

// ExistsFunc 调用方提供的存在性判断（通常是库表查询）
type ExistsFunc func(code string) (bool, error)

// ExhaustedError 唯一性分配在限定重试次数内未产出可用授权码
type ExhaustedError struct {
	Index    int // 批量分配中失败项的序号（从 1 开始）
	Attempts int // 已消耗的重试次数
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("license code allocation exhausted after %d attempts (item %d)", e.Attempts, e.Index)
}

// AllocateOne 生成一个经存在性检查确认唯一的授权码
// 最多重试 cfg.MaxAttempts 次，耗尽后返回 ExhaustedError。
func AllocateOne(exists ExistsFunc, cfg Config) (string, error) {
	cfg = cfg.withDefaults()
	return allocate(1, exists, nil, cfg)
}

// AllocateMany 批量生成互不重复且库内唯一的授权码
// 批内重复的候选在查询库表前即被拒绝。任一项耗尽重试时整批失败，
// 返回携带失败项序号的 ExhaustedError，已生成的码由调用方丢弃。
func AllocateMany(count int, exists ExistsFunc, cfg Config) ([]string, error) {
	cfg = cfg.withDefaults()
	if count <= 0 {
		return nil, fmt.Errorf("invalid allocation count: %d", count)
	}

	codes := make([]string, 0, count)
	seen := make(map[string]struct{}, count)
	for i := 1; i <= count; i++ {
		code, err := allocate(i, exists, seen, cfg)
		if err != nil {
			return nil, err
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

func allocate(index int, exists ExistsFunc, seen map[string]struct{}, cfg Config) (string, error) {
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		candidate, err := Generate(cfg)
		if err != nil {
			return "", err
		}
		if seen != nil {
			if _, dup := seen[candidate]; dup {
				continue
			}
		}
		taken, err := exists(candidate)
		if err != nil {
			return "", fmt.Errorf("exists check failed: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", &ExhaustedError{Index: index, Attempts: cfg.MaxAttempts}
}
