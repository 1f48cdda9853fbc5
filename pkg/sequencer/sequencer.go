// Package sequencer 把静态时间轴转换为阶段激活/进度事件流。
//
// 取代每个通关画面中手写的 setTimeout/setInterval 嵌套链：
// 一个画面持有一个 Sequencer，时间全部来自声明式的 timeline.Spec。
package sequencer

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gonewx/closetkingdom/pkg/timeline"
)

// Status 时序器状态
type Status int

const (
	// StatusIdle 尚未启动
	StatusIdle Status = iota
	// StatusRunning 运行中，还有未触发的边界
	StatusRunning
	// StatusDone 已自然到达时间轴终点
	StatusDone
	// StatusStopped 已被 Stop 取消
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusDone:
		return "done"
	case StatusStopped:
		return "stopped"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// StateError 在不允许的状态下操作时序器
// 例如重复 Start，或已停止的时序器收到定时器回调（后者只记录日志，不返回给调用方）
type StateError struct {
	Op     string
	Status Status
}

func (e *StateError) Error() string {
	return fmt.Sprintf("sequencer: cannot %s while %s", e.Op, e.Status)
}

// TickFunc 状态变化回调
type TickFunc func(state timeline.State)

// Option 时序器配置项
type Option func(*Sequencer)

// WithLogger 设置日志记录器
func WithLogger(logger *zap.Logger) Option {
	return func(s *Sequencer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Sequencer 时间轴时序器
//
// 职责：
//   - Start 时为每个不同的边界时刻调度一个定时器（阶段开始、显式结束、渐变步进）
//   - 每次定时器触发时重新计算状态，只有状态变化时才调用一次 onTick
//   - Stop 取消所有未触发的定时器，可重复调用
//
// 一个画面生命周期内只持有一个 Sequencer。onTick 按 ElapsedMs 非递减顺序投递。
//
// Stop 不等待正在进行的投递，因此可以在 onTick 内调用。Stop 返回后不会再有新的
// 投递通过状态检查；在另一个 goroutine 上已经通过检查的那一次投递仍可能在 Stop
// 返回之后才调用 onTick，需要严格保证的调用方应在 onTick 中自行过滤
// （screens.Controller 用 mounted 标志过滤）。
type Sequencer struct {
	clock  Clock
	logger *zap.Logger

	// deliverMu 串行化 onTick 投递，保证投递顺序
	deliverMu sync.Mutex

	mu      sync.Mutex
	status  Status
	gen     uint64 // 每次 Start 递增，旧一轮的定时器回调会被忽略
	plan    *timeline.Plan
	onTick  TickFunc
	timers  []Timer
	last    timeline.State
	hasLast bool
}

// New 创建时序器
func New(clock Clock, opts ...Option) *Sequencer {
	s := &Sequencer{
		clock:  clock,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("Sequencer")
	return s
}

// Start 从 elapsedMs = 0 开始运行时间轴
//
// t=0 的状态在 Start 返回前同步投递。空时间轴只投递一次
// （Active 为空、Done 为 true）然后自动结束。
//
// 返回：
//   - error: 时间轴不合法时返回包装的 *timeline.ValidationError（不会留下任何定时器）；
//     时序器正在运行时返回 *StateError
func (s *Sequencer) Start(spec timeline.Spec, onTick TickFunc) error {
	if onTick == nil {
		onTick = func(timeline.State) {}
	}

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	if s.status == StatusRunning {
		status := s.status
		s.mu.Unlock()
		return &StateError{Op: "start", Status: status}
	}

	plan, err := timeline.Compile(spec)
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("时间轴校验失败", zap.String("timeline", spec.Name), zap.Error(err))
		return fmt.Errorf("sequencer: start %q: %w", spec.Name, err)
	}

	s.gen++
	gen := s.gen
	s.plan = plan
	s.onTick = onTick
	s.status = StatusRunning
	s.timers = s.timers[:0]

	for _, at := range plan.Boundaries() {
		if at == 0 {
			continue
		}
		at := at
		s.timers = append(s.timers, s.clock.AfterFunc(time.Duration(at)*time.Millisecond, func() {
			s.fire(gen, at)
		}))
	}

	first := plan.At(0)
	s.last = first
	s.hasLast = true
	if first.Done {
		s.finishLocked()
	}
	s.mu.Unlock()

	s.logger.Debug("时间轴开始",
		zap.String("timeline", spec.Name),
		zap.Int("phases", len(spec.Phases)),
		zap.Int64("endMs", plan.End()))

	onTick(first.Clone())
	return nil
}

// fire 定时器回调：计算边界时刻 at 的状态并投递
func (s *Sequencer) fire(gen uint64, at int64) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	if gen != s.gen || s.status != StatusRunning {
		status := s.status
		s.mu.Unlock()
		s.logger.Warn("忽略定时器回调",
			zap.Int64("elapsedMs", at),
			zap.Error(&StateError{Op: "tick", Status: status}))
		return
	}
	if s.hasLast && at <= s.last.ElapsedMs {
		s.mu.Unlock()
		return
	}

	st := s.plan.At(at)
	changed := !s.hasLast || !st.SameAs(s.last)
	s.last = st
	s.hasLast = true
	if st.Done {
		s.finishLocked()
	}
	onTick := s.onTick
	s.mu.Unlock()

	if !changed || !s.current(gen) {
		return
	}
	onTick(st.Clone())
}

// current 投递前再次确认这一轮没有被 Stop 或重新 Start
// 到达终点的那次投递状态已是 StatusDone，仍然需要投递
func (s *Sequencer) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.gen && s.status != StatusStopped
}

// finishLocked 到达终点，调用方必须持有 s.mu
func (s *Sequencer) finishLocked() {
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
	s.status = StatusDone
}

// Stop 取消所有未触发的定时器
// 可重复调用；在启动前或自然结束后调用都是安全的空操作
func (s *Sequencer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusRunning {
		return
	}
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
	s.status = StatusStopped
	s.logger.Debug("时间轴已停止", zap.Int64("elapsedMs", s.last.ElapsedMs))
}

// Status 返回当前状态
func (s *Sequencer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Snapshot 返回最后一次投递的状态
func (s *Sequencer) Snapshot() (timeline.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasLast {
		return timeline.State{}, false
	}
	return s.last.Clone(), true
}

// Plan 返回当前运行的编译时间轴（未启动时为 nil）
func (s *Sequencer) Plan() *timeline.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plan
}
