package timeline

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	// MaxOffsetMs 偏移和结束时间的上限，超过后换算成 time.Duration 会溢出
	MaxOffsetMs int64 = math.MaxInt64 / int64(time.Millisecond)

	// MaxRampSteps 单个渐变的最大步数
	MaxRampSteps int64 = 100000
)

// Problem 描述时间轴中的一个具体错误
type Problem struct {
	Index  int    // 阶段下标，-1 表示整个时间轴
	Phase  string // 阶段名（可能为空）
	Reason string
}

func (p Problem) String() string {
	if p.Index < 0 {
		return p.Reason
	}
	return fmt.Sprintf("phase[%d] %q: %s", p.Index, p.Phase, p.Reason)
}

// ValidationError 时间轴格式错误
// 属于开发期错误：在 Start 时立即失败，不会调度任何定时器
type ValidationError struct {
	Spec     string
	Problems []Problem
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.String())
	}
	name := e.Spec
	if name == "" {
		name = "<unnamed>"
	}
	return fmt.Sprintf("invalid timeline %s: %s", name, strings.Join(parts, "; "))
}

// Validate 校验时间轴
//
// 规则：
//   - 阶段名非空且唯一
//   - StartOffsetMs 非负且单调不减
//   - DurationMs（如有）为正数
//   - Ramp（如有）StepMs 为正数，By 非负，步数不超过 MaxRampSteps
//   - 开始、结束和渐变最后一步都不晚于 MaxOffsetMs
//
// 返回：
//   - error: 所有问题汇总为一个 *ValidationError；合法时返回 nil
func Validate(spec Spec) error {
	var problems []Problem
	seen := make(map[string]int, len(spec.Phases))
	var prevOffset int64

	for i, p := range spec.Phases {
		add := func(format string, args ...any) {
			problems = append(problems, Problem{Index: i, Phase: p.Name, Reason: fmt.Sprintf(format, args...)})
		}

		if p.Name == "" {
			add("name is empty")
		} else if first, dup := seen[p.Name]; dup {
			add("duplicate name (first used by phase[%d])", first)
		} else {
			seen[p.Name] = i
		}

		if p.StartOffsetMs < 0 {
			add("startOffsetMs %d is negative", p.StartOffsetMs)
		}
		if p.StartOffsetMs > MaxOffsetMs {
			add("startOffsetMs %d exceeds %d", p.StartOffsetMs, MaxOffsetMs)
		}
		inRange := p.StartOffsetMs >= 0 && p.StartOffsetMs <= MaxOffsetMs
		if i > 0 && p.StartOffsetMs < prevOffset {
			add("startOffsetMs %d is before previous phase offset %d", p.StartOffsetMs, prevOffset)
		}
		prevOffset = p.StartOffsetMs

		if p.DurationMs != nil {
			if *p.DurationMs <= 0 {
				add("durationMs %d must be positive", *p.DurationMs)
			} else if inRange && *p.DurationMs > MaxOffsetMs-p.StartOffsetMs {
				add("phase end exceeds %dms", MaxOffsetMs)
			}
		}

		if r := p.Ramp; r != nil {
			if r.StepMs <= 0 {
				add("ramp.stepMs %d must be positive", r.StepMs)
			}
			if r.By < 0 {
				add("ramp.by %d must not be negative", r.By)
			}
			if steps := r.Steps(); steps > MaxRampSteps {
				add("ramp needs %d steps, more than %d", steps, MaxRampSteps)
			} else if inRange && r.StepMs > 0 && steps > 0 && r.StepMs > (MaxOffsetMs-p.StartOffsetMs)/steps {
				add("ramp last step exceeds %dms", MaxOffsetMs)
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Spec: spec.Name, Problems: problems}
	}
	return nil
}
