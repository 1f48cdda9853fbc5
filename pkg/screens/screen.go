// Package screens 把时序器状态翻译为各个叙事画面的内容，并管理画面的挂载、按钮和导航。
//
// 适配器（Adapter）是状态的纯函数：同一个状态快照总是渲染出同样的 View，
// 不依赖上一次渲染的任何值。副作用（后端调用、导航）只在用户按下终点阶段按钮时发生，
// 由 Controller 执行。
package screens

import (
	"context"

	"github.com/gonewx/closetkingdom/pkg/backend"
	"github.com/gonewx/closetkingdom/pkg/config"
	"github.com/gonewx/closetkingdom/pkg/timeline"
)

// ScreenID 画面标识
type ScreenID string

const (
	ScreenHome         ScreenID = "home"
	ScreenRackProgress ScreenID = "rack-progress"
	ScreenStageClear   ScreenID = "stage-clear"
	ScreenDungeonClear ScreenID = "dungeon-clear"
	ScreenEndroll      ScreenID = "endroll"
	ScreenCrown        ScreenID = "crown"
	ScreenLeaderboard  ScreenID = "leaderboard"
)

// Params 画面挂载参数
type Params struct {
	UserID string
	RackID string
	Stage  int
	// Rack 已知的货架定义（可为 nil，此时使用兜底文案）
	Rack *backend.Rack
	// Values 时间轴参数，如 exp、stages、level；未给出的使用配置文件中的默认值
	Values map[string]int
	// Period 排行榜周期
	Period backend.Period
}

// LineStyle 行样式
type LineStyle int

const (
	StyleNormal LineStyle = iota
	StyleHeading
	StyleEmphasis
	StyleMuted
	StyleError
)

// Line 一行文字
type Line struct {
	Text  string
	Style LineStyle
}

// Counter 渐变计数器（EXP、关卡数、等级）
type Counter struct {
	Label  string
	Value  int
	Target int
}

// Button 终点阶段按钮
type Button struct {
	Label   string
	Enabled bool
}

// View 渲染结果，由渲染器（ebiten / 终端）直接绘制
type View struct {
	Screen   ScreenID
	Title    string
	Lines    []Line
	Counter  *Counter
	Progress float64 // 0..1，时间轴进度
	Button   *Button
	Feedback string // 用户可见的错误提示（可重试）
	Busy     bool   // 正在执行后端调用或加载数据
}

// Call 按钮触发的一次后端调用
type Call struct {
	Name string
	Do   func(ctx context.Context, svc backend.UserDataService) error
}

// Action 终点阶段按钮的语义
type Action struct {
	// Calls 按顺序执行；任一失败则停止，不导航。重试时跳过已成功的调用
	Calls []Call
	// Next 全部成功后的导航目标
	Next Route
	// Reload 为 true 时按钮只重新加载数据（错误提示上的"重试"）
	Reload bool
}

// Adapter 单个画面的展示适配器
type Adapter interface {
	Screen() ScreenID
	// Timeline 构建本次挂载使用的时间轴
	Timeline() (timeline.Spec, error)
	// Render 状态 → 画面内容（纯函数）
	Render(state timeline.State) View
	// Static 时间轴无法启动时直接显示的终点画面
	Static() View
	// Action 终点阶段按钮的语义
	Action() Action
}

// Loader 挂载时需要读取后端数据的画面
// Load 失败时适配器自己保留错误用于渲染（错误提示 + 保留之前的数据），返回的错误只用于日志
type Loader interface {
	Load(ctx context.Context, svc backend.UserDataService) error
}

// TimelineSource 按画面读取时间轴配置
type TimelineSource func(screen ScreenID) (*config.TimelineConfig, error)

// EmbeddedTimelines 从嵌入资源读取时间轴配置
func EmbeddedTimelines(screen ScreenID) (*config.TimelineConfig, error) {
	return config.LoadScreenTimeline(string(screen))
}

// Table 带显式兜底值的内容表
type Table[K comparable, V any] struct {
	entries  map[K]V
	fallback V
}

// NewTable 创建内容表
func NewTable[K comparable, V any](entries map[K]V, fallback V) Table[K, V] {
	return Table[K, V]{entries: entries, fallback: fallback}
}

// Get 返回 key 对应的值，不存在时返回兜底值
func (t Table[K, V]) Get(key K) V {
	if v, ok := t.entries[key]; ok {
		return v
	}
	return t.fallback
}

// Lookup 返回 key 对应的值以及是否存在
func (t Table[K, V]) Lookup(key K) (V, bool) {
	v, ok := t.entries[key]
	return v, ok
}

// base 时间轴驱动画面的公共部分
type base struct {
	screen ScreenID
	params Params
	source TimelineSource
}

func (b *base) Screen() ScreenID {
	return b.screen
}

func (b *base) Timeline() (timeline.Spec, error) {
	cfg, err := b.source(b.screen)
	if err != nil {
		return timeline.Spec{}, err
	}
	return cfg.Build(b.params.Values)
}

// value 读取时间轴参数，未给出时返回 def
func (b *base) value(name string, def int) int {
	if v, ok := b.params.Values[name]; ok {
		return v
	}
	return def
}

// stageTitle 返回当前关卡标题，货架未知时使用兜底文案
func (b *base) stageTitle() string {
	if b.params.Rack != nil {
		if st, ok := b.params.Rack.Stage(b.params.Stage); ok {
			return st.Title
		}
	}
	return "Stage cleared"
}

// rackName 返回货架名称
func (b *base) rackName() string {
	if b.params.Rack != nil && b.params.Rack.Name != "" {
		return b.params.Rack.Name
	}
	if b.params.RackID != "" {
		return b.params.RackID
	}
	return "Your dungeon"
}

// reached 返回当前最靠后的活动阶段在 order 中的下标，没有活动阶段时返回 -1
// 用于"某阶段及之后都显示"的累积揭示
func reached(st timeline.State, order []string) int {
	idx := -1
	for i, name := range order {
		if st.IsActive(name) {
			idx = i
		}
	}
	return idx
}

// indexOf 返回 name 在 order 中的下标
func indexOf(order []string, name string) int {
	for i, n := range order {
		if n == name {
			return i
		}
	}
	return -1
}
