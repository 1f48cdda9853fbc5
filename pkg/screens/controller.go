package screens

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/gonewx/closetkingdom/pkg/backend"
	"github.com/gonewx/closetkingdom/pkg/sequencer"
	"github.com/gonewx/closetkingdom/pkg/timeline"
)

var (
	// ErrNotMounted 画面未挂载或已卸载
	ErrNotMounted = errors.New("screens: screen is not mounted")
	// ErrButtonDisabled 按钮当前不可用（不在终点阶段，或上一次调用尚未结束）
	ErrButtonDisabled = errors.New("screens: button is not enabled")
)

// Navigator 页面切换
type Navigator interface {
	Navigate(route Route)
}

// AudioPlayer 音效播放（即发即忘，静音由实现负责）
type AudioPlayer interface {
	PlaySound(id string)
}

// Deps 控制器依赖
type Deps struct {
	Clock     sequencer.Clock
	Service   backend.UserDataService
	Navigator Navigator
	Audio     AudioPlayer // 可为 nil
	Logger    *zap.Logger // 可为 nil
}

// Controller 画面控制器
//
// 一个画面生命周期内持有唯一的 Sequencer：
//   - Mount 启动时间轴，时间轴不合法时退回到静态终点画面
//   - 每个 tick 重新渲染，并播放新激活阶段的音效
//   - Press 只在按钮可用时执行后端调用，失败时保留按钮并显示提示，成功后导航
//   - Unmount 同步取消所有定时器，之后的 tick 和调用结果都不再改变画面
type Controller struct {
	adapter Adapter
	deps    Deps
	seq     *sequencer.Sequencer
	logger  *zap.Logger

	mu        sync.Mutex
	mounted   bool
	static    bool
	state     timeline.State
	hasState  bool
	busy      bool
	loading   bool
	feedback  string
	completed []bool // 本次挂载中已成功的按钮调用（按 Action.Calls 下标）
	onChange  func(View)
}

// NewController 创建控制器
func NewController(adapter Adapter, deps Deps) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		adapter: adapter,
		deps:    deps,
		seq:     sequencer.New(deps.Clock, sequencer.WithLogger(logger)),
		logger:  logger.Named("Screen").With(zap.String("screen", string(adapter.Screen()))),
	}
}

// OnChange 注册画面变化回调（在 tick 或调用结束的 goroutine 中调用）
func (c *Controller) OnChange(fn func(View)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Adapter 返回画面适配器
func (c *Controller) Adapter() Adapter {
	return c.adapter
}

// Mount 挂载画面并启动时间轴
//
// 时间轴构建或启动失败时画面退回 adapter.Static()，返回的错误只用于日志。
func (c *Controller) Mount() error {
	c.mu.Lock()
	if c.mounted {
		c.mu.Unlock()
		return &sequencer.StateError{Op: "mount", Status: c.seq.Status()}
	}
	c.mounted = true
	c.static = false
	c.hasState = false
	c.feedback = ""
	c.completed = nil
	c.mu.Unlock()

	spec, err := c.adapter.Timeline()
	if err == nil {
		err = c.seq.Start(spec, c.handleTick)
	}
	if err != nil {
		c.logger.Error("时间轴无法启动，显示静态画面", zap.Error(err))
		c.mu.Lock()
		c.static = true
		c.mu.Unlock()
		c.notify()
		return fmt.Errorf("screens: mount %s: %w", c.adapter.Screen(), err)
	}
	return nil
}

// Unmount 卸载画面，同步取消所有未触发的定时器
func (c *Controller) Unmount() {
	c.seq.Stop()

	c.mu.Lock()
	c.mounted = false
	c.mu.Unlock()
}

// Mounted 是否处于挂载状态
func (c *Controller) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mounted
}

// Refresh 为需要数据的画面读取后端数据
// 失败不会返回给调用方：错误由适配器渲染为提示，这里只记录日志
func (c *Controller) Refresh(ctx context.Context) {
	loader, ok := c.adapter.(Loader)
	if !ok {
		return
	}

	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return
	}
	c.loading = true
	c.mu.Unlock()
	c.notify()

	err := loader.Load(ctx, c.deps.Service)
	if err != nil {
		c.logger.Warn("读取数据失败", zap.Error(err), zap.Bool("retryable", backend.IsRetryable(err)))
	}

	c.mu.Lock()
	c.loading = false
	c.mu.Unlock()
	c.notify()
}

// handleTick 时序器回调
func (c *Controller) handleTick(st timeline.State) {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return
	}
	prev := int64(-1)
	if c.hasState {
		prev = c.state.ElapsedMs
	}
	c.state = st
	c.hasState = true
	c.mu.Unlock()

	c.playActivated(prev, st.ElapsedMs)
	c.notify()
}

// playActivated 播放 (from, to] 内激活阶段的音效
func (c *Controller) playActivated(from, to int64) {
	if c.deps.Audio == nil {
		return
	}
	plan := c.seq.Plan()
	if plan == nil {
		return
	}
	for _, p := range plan.ActivatedBetween(from, to) {
		if p.Sound != "" {
			c.deps.Audio.PlaySound(p.Sound)
		}
	}
}

// View 返回当前画面
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) viewLocked() View {
	var v View
	switch {
	case c.static:
		v = c.adapter.Static()
	case c.hasState:
		v = c.adapter.Render(c.state)
		if plan := c.seq.Plan(); plan != nil && plan.End() > 0 {
			v.Progress = float64(c.state.ElapsedMs) / float64(plan.End())
			if v.Progress > 1 {
				v.Progress = 1
			}
		}
	default:
		v = View{Screen: c.adapter.Screen()}
	}

	if v.Button != nil {
		b := *v.Button
		if c.busy || c.loading {
			b.Enabled = false
		}
		v.Button = &b
	}
	v.Feedback = c.feedback
	v.Busy = c.busy || c.loading
	return v
}

// notify 通知画面变化
func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.onChange
	var v View
	if fn != nil {
		v = c.viewLocked()
	}
	c.mu.Unlock()
	if fn != nil {
		fn(v)
	}
}

// Press 按下终点阶段按钮
//
// 依次执行 Action.Calls（跳过本次挂载中已成功的调用），全部成功后导航。
// 任一调用失败：按钮恢复可用，Feedback 显示可重试的提示，不导航。
//
// 返回：
//   - error: ErrNotMounted / ErrButtonDisabled，或包装后的后端错误
func (c *Controller) Press(ctx context.Context) error {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return ErrNotMounted
	}
	v := c.viewLocked()
	if v.Button == nil || !v.Button.Enabled {
		c.mu.Unlock()
		return ErrButtonDisabled
	}
	action := c.adapter.Action()
	if len(c.completed) != len(action.Calls) {
		c.completed = make([]bool, len(action.Calls))
	}
	completed := append([]bool(nil), c.completed...)
	c.busy = true
	c.feedback = ""
	c.mu.Unlock()
	c.notify()

	if action.Reload {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
		c.Refresh(ctx)
		return nil
	}

	for i, call := range action.Calls {
		if completed[i] {
			continue
		}
		if err := call.Do(ctx, c.deps.Service); err != nil {
			c.logger.Warn("按钮调用失败",
				zap.String("call", call.Name),
				zap.Bool("retryable", backend.IsRetryable(err)),
				zap.Error(err))
			c.mu.Lock()
			c.busy = false
			c.feedback = backend.UserMessage(err)
			c.mu.Unlock()
			c.notify()
			return fmt.Errorf("screens: %s: %w", call.Name, err)
		}
		c.mu.Lock()
		if i < len(c.completed) {
			c.completed[i] = true
		}
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.busy = false
	mounted := c.mounted
	c.mu.Unlock()
	c.notify()

	if !mounted {
		c.logger.Debug("画面已卸载，跳过导航", zap.String("next", action.Next.Path()))
		return nil
	}
	c.logger.Debug("导航", zap.String("next", action.Next.Path()))
	if c.deps.Navigator != nil {
		c.deps.Navigator.Navigate(action.Next)
	}
	return nil
}
