// Package tui 终端预览：在终端里播放画面时间轴并操作按钮
//
// 使用 bubbletea（Elm 架构）：
//
//  1. Model 持有当前画面控制器
//  2. Update 处理按键、帧刷新和后台调用结果
//  3. View 把控制器的当前视图渲染成字符串
//
// 时间轴由 WallClock 驱动，画面每帧从控制器读取最新视图，
// 所以控制器回调不需要跨 goroutine 发送消息。
package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/gonewx/closetkingdom/pkg/backend"
	"github.com/gonewx/closetkingdom/pkg/screens"
	"github.com/gonewx/closetkingdom/pkg/sequencer"
)

const (
	frameInterval = 50 * time.Millisecond
	barWidth      = 30
)

type frameMsg struct{}

type pressDoneMsg struct{ err error }

type refreshDoneMsg struct{}

// Options 终端预览配置
type Options struct {
	Session *screens.Session
	Service backend.UserDataService
	Clock   sequencer.Clock
	Start   screens.Route
	Home    screens.Route // Home 路由实际打开的页面
	Logger  *zap.Logger
}

// Model 终端预览的 bubbletea 模型
type Model struct {
	opts   Options
	logger *zap.Logger
	sounds *soundLog

	ctx    context.Context
	cancel context.CancelFunc

	ctrl    *screens.Controller
	route   screens.Route
	width   int
	lastErr error

	mu      sync.Mutex
	pending *screens.Route
}

// New 创建模型并挂载起始画面
func New(opts Options) (*Model, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Home.Screen == "" {
		opts.Home = screens.Route{Screen: screens.ScreenLeaderboard}
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Model{
		opts:   opts,
		logger: logger.Named("TUI"),
		sounds: &soundLog{},
		ctx:    ctx,
		cancel: cancel,
		width:  60,
	}
	start := opts.Start
	if start.Screen == "" {
		start = screens.Home()
	}
	if err := m.open(start); err != nil {
		cancel()
		return nil, err
	}
	return m, nil
}

// Navigate 实现 screens.Navigator，切换推迟到下一条消息处理
func (m *Model) Navigate(route screens.Route) {
	m.mu.Lock()
	m.pending = &route
	m.mu.Unlock()
}

// Route 当前画面的路由
func (m *Model) Route() screens.Route {
	return m.route
}

// Controller 当前画面控制器
func (m *Model) Controller() *screens.Controller {
	return m.ctrl
}

// open 卸载当前画面并挂载新的画面
func (m *Model) open(route screens.Route) error {
	if route.Screen == screens.ScreenHome {
		route = m.opts.Home
	}
	adapter, err := m.opts.Session.Adapter(route)
	if err != nil {
		return err
	}
	if m.ctrl != nil {
		m.ctrl.Unmount()
	}
	m.ctrl = screens.NewController(adapter, screens.Deps{
		Clock:     m.opts.Clock,
		Service:   m.opts.Service,
		Navigator: m,
		Audio:     m.sounds,
		Logger:    m.logger,
	})
	m.route = route
	m.lastErr = nil
	if err := m.ctrl.Mount(); err != nil {
		m.logger.Warn("画面以静态方式显示", zap.Error(err))
	}
	m.logger.Debug("打开画面", zap.Stringer("route", route))
	return nil
}

// Init 启动帧刷新，并为需要数据的画面读取数据
func (m *Model) Init() tea.Cmd {
	return tea.Batch(frame(), m.refreshCmd())
}

func frame() tea.Cmd {
	return tea.Tick(frameInterval, func(time.Time) tea.Msg { return frameMsg{} })
}

func (m *Model) refreshCmd() tea.Cmd {
	if _, ok := m.ctrl.Adapter().(screens.Loader); !ok {
		return nil
	}
	ctrl := m.ctrl
	return func() tea.Msg {
		ctrl.Refresh(m.ctx)
		m.opts.Session.Observe(ctrl.Adapter())
		return refreshDoneMsg{}
	}
}

func (m *Model) pressCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		return pressDoneMsg{err: ctrl.Press(m.ctx)}
	}
}

// Update 处理消息
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case frameMsg:
		return m, tea.Batch(m.applyNavigation(), frame())
	case pressDoneMsg:
		// 后端错误已由控制器显示为 Feedback
		if msg.err != nil {
			m.logger.Debug("按钮动作未完成", zap.Error(msg.err))
		}
		return m, m.applyNavigation()
	case refreshDoneMsg:
		return m, nil
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.Close()
		return tea.Quit
	case "enter", " ":
		return m.pressCmd()
	case "r":
		if err := m.open(m.route); err != nil {
			m.lastErr = err
			return nil
		}
		return m.refreshCmd()
	case "l":
		m.Navigate(screens.Route{Screen: screens.ScreenLeaderboard})
		return m.applyNavigation()
	case "h":
		m.Navigate(screens.Home())
		return m.applyNavigation()
	}
	return nil
}

// applyNavigation 执行挂起的导航
func (m *Model) applyNavigation() tea.Cmd {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()
	if pending == nil {
		return nil
	}
	if err := m.open(*pending); err != nil {
		m.logger.Error("无法打开画面", zap.Stringer("route", *pending), zap.Error(err))
		m.lastErr = err
		return nil
	}
	return m.refreshCmd()
}

// Close 卸载当前画面并取消进行中的请求
func (m *Model) Close() {
	m.cancel()
	if m.ctrl != nil {
		m.ctrl.Unmount()
	}
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFD166"))
	headingStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFE082"))
	emphasisStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CF09C"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	buttonStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 2).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#3F8FD8"))
	disabledStyle = lipgloss.NewStyle().Padding(0, 2).Foreground(lipgloss.Color("#AAAAAA")).Background(lipgloss.Color("#444444"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(1, 2)

	lineStyles = screens.NewTable(map[screens.LineStyle]lipgloss.Style{
		screens.StyleHeading:  headingStyle,
		screens.StyleEmphasis: emphasisStyle,
		screens.StyleMuted:    mutedStyle,
		screens.StyleError:    errorStyle,
	}, lipgloss.NewStyle())
)

// View 渲染当前视图
func (m *Model) View() string {
	return m.render(m.ctrl.View())
}

func (m *Model) render(v screens.View) string {
	var b strings.Builder
	if v.Title != "" {
		b.WriteString(titleStyle.Render(v.Title))
		b.WriteString("\n\n")
	}
	for _, line := range v.Lines {
		b.WriteString(lineStyles.Get(line.Style).Render(line.Text))
		b.WriteString("\n")
	}
	if v.Counter != nil {
		b.WriteString("\n")
		b.WriteString(headingStyle.Render(formatCounter(*v.Counter)))
		b.WriteString("\n")
	}
	if v.Progress > 0 {
		b.WriteString("\n")
		b.WriteString(progressBar(v.Progress, barWidth))
		b.WriteString("\n")
	}
	if v.Feedback != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(v.Feedback))
		b.WriteString("\n")
	}
	if v.Button != nil {
		b.WriteString("\n")
		label := v.Button.Label
		if v.Busy {
			label += " ..."
		}
		if v.Button.Enabled {
			b.WriteString(buttonStyle.Render(label))
		} else {
			b.WriteString(disabledStyle.Render(label))
		}
		b.WriteString("\n")
	}

	box := boxStyle.Width(max(40, m.width-4)).Render(strings.TrimRight(b.String(), "\n"))

	footer := []string{m.route.Path()}
	if m.lastErr != nil {
		footer = append(footer, errorStyle.Render(m.lastErr.Error()))
	}
	if s := m.sounds.last(); s != "" {
		footer = append(footer, "♪ "+s)
	}
	footer = append(footer, "enter: press  r: restart  l: leaderboard  h: home  q: quit")
	return box + "\n" + mutedStyle.Render(strings.Join(footer, "  |  ")) + "\n"
}

func formatCounter(c screens.Counter) string {
	if c.Target > 0 {
		return fmt.Sprintf("%s  %d / %d", c.Label, c.Value, c.Target)
	}
	return fmt.Sprintf("%s  %d", c.Label, c.Value)
}

// progressBar 用方块字符绘制进度条
func progressBar(ratio float64, width int) string {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * float64(width))
	return emphasisStyle.Render(strings.Repeat("█", filled)) + mutedStyle.Render(strings.Repeat("░", width-filled))
}

// soundLog 终端里不播放声音，只在页脚显示最近的音效ID
type soundLog struct {
	mu  sync.Mutex
	ids []string
}

func (s *soundLog) PlaySound(id string) {
	s.mu.Lock()
	s.ids = append(s.ids, id)
	s.mu.Unlock()
}

func (s *soundLog) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ids) == 0 {
		return ""
	}
	return s.ids[len(s.ids)-1]
}

func (s *soundLog) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ids...)
}

// Run 运行终端预览，直到用户退出或 ctx 取消
func Run(ctx context.Context, opts Options, teaOpts ...tea.ProgramOption) error {
	m, err := New(opts)
	if err != nil {
		return err
	}
	defer m.Close()

	teaOpts = append(teaOpts, tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := tea.NewProgram(m, teaOpts...).Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
