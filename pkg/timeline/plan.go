package timeline

import (
	"math"
	"sort"
)

// Unbounded 表示阶段没有结束时间（一直持续到时间轴结束之后）
const Unbounded int64 = math.MaxInt64

// interval 编译后的阶段区间 [Start, End)
type interval struct {
	phase Phase
	start int64
	end   int64
}

// Plan 编译后的时间轴
//
// 预先计算每个阶段的有效区间和所有边界时刻，
// At(t) 是 t 的纯函数，因此可以在不模拟定时器的情况下测试任意时刻的状态。
type Plan struct {
	spec       Spec
	intervals  []interval
	boundaries []int64
	end        int64
}

// Compile 校验并编译时间轴
//
// 返回：
//   - *Plan: 编译结果
//   - error: 时间轴不合法时返回 *ValidationError
func Compile(spec Spec) (*Plan, error) {
	if err := Validate(spec); err != nil {
		return nil, err
	}

	p := &Plan{spec: spec}
	set := map[int64]struct{}{0: {}}

	for i, ph := range spec.Phases {
		iv := interval{phase: ph, start: ph.StartOffsetMs, end: Unbounded}
		if ph.DurationMs != nil {
			iv.end = ph.StartOffsetMs + *ph.DurationMs
		} else {
			// 隐式结束：第一个开始时间严格更晚的后续阶段
			for _, next := range spec.Phases[i+1:] {
				if next.StartOffsetMs > ph.StartOffsetMs {
					iv.end = next.StartOffsetMs
					break
				}
			}
		}
		p.intervals = append(p.intervals, iv)

		set[iv.start] = struct{}{}
		if iv.end != Unbounded {
			set[iv.end] = struct{}{}
		}
		if ph.Ramp != nil {
			for k := int64(1); k <= ph.Ramp.Steps(); k++ {
				at := iv.start + k*ph.Ramp.StepMs
				if at >= iv.end {
					break
				}
				set[at] = struct{}{}
			}
		}
	}

	p.boundaries = make([]int64, 0, len(set))
	for t := range set {
		p.boundaries = append(p.boundaries, t)
	}
	sort.Slice(p.boundaries, func(i, j int) bool { return p.boundaries[i] < p.boundaries[j] })
	p.end = p.boundaries[len(p.boundaries)-1]

	return p, nil
}

// Spec 返回编译前的时间轴定义
func (p *Plan) Spec() Spec {
	return p.spec
}

// Boundaries 返回所有状态可能发生变化的时刻（升序、去重，包含 0）
func (p *Plan) Boundaries() []int64 {
	return append([]int64{}, p.boundaries...)
}

// End 返回时间轴终点（最后一个边界时刻）
func (p *Plan) End() int64 {
	return p.end
}

// At 计算时刻 t 的状态
func (p *Plan) At(t int64) State {
	st := State{
		ElapsedMs:  t,
		Active:     []string{},
		RampValues: map[string]int{},
		Done:       t >= p.end,
	}

	for _, iv := range p.intervals {
		if t < iv.start {
			continue
		}
		if t < iv.end {
			st.Active = append(st.Active, iv.phase.Name)
		}
		if r := iv.phase.Ramp; r != nil {
			// 渐变只在阶段激活期间步进；阶段结束时还没走完的直接落到 To
			if iv.end != Unbounded && t >= iv.end {
				st.RampValues[iv.phase.Name] = r.To
				continue
			}
			st.RampValues[iv.phase.Name] = r.ValueAfter((t - iv.start) / r.StepMs)
		}
	}

	return st
}

// Evaluate 编译时间轴并计算时刻 t 的状态
func Evaluate(spec Spec, t int64) (State, error) {
	p, err := Compile(spec)
	if err != nil {
		return State{}, err
	}
	return p.At(t), nil
}

// ActivatedBetween 返回在 (from, to] 内开始的阶段（按 Spec 顺序）
// from < 0 表示包含 t=0 时开始的阶段
func (p *Plan) ActivatedBetween(from, to int64) []Phase {
	var out []Phase
	for _, iv := range p.intervals {
		if iv.start > from && iv.start <= to && iv.start < iv.end {
			out = append(out, iv.phase)
		}
	}
	return out
}
