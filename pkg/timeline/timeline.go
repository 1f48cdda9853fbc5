// Package timeline 定义通关/庆祝画面使用的时间轴数据结构。
//
// 时间轴（Spec）是一组按开始偏移排序的命名阶段（Phase），
// 每个阶段可以带有持续时间和数值渐变（Ramp，如 EXP 计数动画）。
// 本包只做纯计算：校验、编译成区间、计算任意时刻的状态；
// 定时调度由 sequencer 包负责。
package timeline

// Ramp 数值渐变描述
// 从 From 开始，每隔 StepMs 毫秒向 To 移动 By（默认 1），到达 To 后停止（不会越过 To）
type Ramp struct {
	From   int   `yaml:"from"`         // 起始值
	To     int   `yaml:"to"`           // 目标值
	StepMs int64 `yaml:"stepMs"`       // 每一步的间隔（毫秒）
	By     int   `yaml:"by,omitempty"` // 每一步的增量绝对值，0 表示 1
}

// Increment 返回每一步的增量绝对值
func (r Ramp) Increment() int {
	if r.By <= 0 {
		return 1
	}
	return r.By
}

// Steps 返回从 From 到达 To 需要的步数
func (r Ramp) Steps() int64 {
	diff := r.To - r.From
	if diff < 0 {
		diff = -diff
	}
	inc := r.Increment()
	return int64((diff + inc - 1) / inc)
}

// ValueAfter 返回走了 n 步之后的值，结果被限制在 To
func (r Ramp) ValueAfter(n int64) int {
	if n <= 0 {
		return r.From
	}
	if n >= r.Steps() {
		return r.To
	}
	delta := int(n) * r.Increment()
	if r.To < r.From {
		return r.From - delta
	}
	return r.From + delta
}

// Phase 时间轴中的一个命名阶段
type Phase struct {
	Name          string `yaml:"name"`
	StartOffsetMs int64  `yaml:"startOffsetMs"`

	// DurationMs 持续时间（毫秒）
	// nil 表示持续到下一个（开始时间更晚的）阶段开始，或时间轴结束
	DurationMs *int64 `yaml:"durationMs,omitempty"`

	// Ramp 阶段内的数值渐变（可选）
	Ramp *Ramp `yaml:"ramp,omitempty"`

	// Sound 阶段激活时播放的音效ID（可选，即发即忘）
	Sound string `yaml:"sound,omitempty"`
}

// Spec 时间轴定义，构造后不再修改
type Spec struct {
	Name   string  `yaml:"name"`
	Phases []Phase `yaml:"phases"`
}

// Ms 返回一个毫秒值的指针，用于构造带持续时间的 Phase
func Ms(v int64) *int64 {
	return &v
}

// State 时间轴在某一时刻的快照
type State struct {
	ElapsedMs  int64          // 自时间轴开始以来经过的毫秒数
	Active     []string       // 当前激活的阶段（按 Spec 顺序）
	RampValues map[string]int // 已开始的渐变阶段 -> 当前数值
	Done       bool           // 是否已到达时间轴终点
}

// IsActive 检查阶段是否处于激活状态
func (s State) IsActive(name string) bool {
	for _, n := range s.Active {
		if n == name {
			return true
		}
	}
	return false
}

// RampValue 返回阶段的渐变数值；阶段尚未开始或没有渐变时返回 (0, false)
func (s State) RampValue(name string) (int, bool) {
	v, ok := s.RampValues[name]
	return v, ok
}

// SameAs 比较两个快照的可见内容（忽略 ElapsedMs）
func (s State) SameAs(o State) bool {
	if s.Done != o.Done || len(s.Active) != len(o.Active) || len(s.RampValues) != len(o.RampValues) {
		return false
	}
	for i := range s.Active {
		if s.Active[i] != o.Active[i] {
			return false
		}
	}
	for k, v := range s.RampValues {
		if ov, ok := o.RampValues[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Clone 深拷贝快照，避免调用方修改内部切片和映射
func (s State) Clone() State {
	out := State{ElapsedMs: s.ElapsedMs, Done: s.Done}
	out.Active = append([]string{}, s.Active...)
	out.RampValues = make(map[string]int, len(s.RampValues))
	for k, v := range s.RampValues {
		out.RampValues[k] = v
	}
	return out
}
