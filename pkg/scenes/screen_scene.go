// Package scenes 把画面控制器渲染为 ebiten 场景
package scenes

import (
	"context"
	"fmt"
	"image/color"
	"sync"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"go.uber.org/zap"

	"github.com/gonewx/closetkingdom/pkg/backend"
	"github.com/gonewx/closetkingdom/pkg/game"
	"github.com/gonewx/closetkingdom/pkg/screens"
	"github.com/gonewx/closetkingdom/pkg/sequencer"
)

const (
	// WindowWidth 窗口逻辑宽度
	WindowWidth = 640
	// WindowHeight 窗口逻辑高度
	WindowHeight = 480

	marginX     = 32
	titleY      = 28
	linesY      = 84
	lineHeight  = 24
	counterY    = 300
	progressY   = 340
	progressH   = 10
	feedbackY   = 368
	buttonW     = 220
	buttonH     = 44
	buttonY     = WindowHeight - buttonH - 32
	buttonX     = (WindowWidth - buttonW) / 2
	textPadding = 12
)

var (
	backgroundColors = screens.NewTable(map[screens.ScreenID]color.RGBA{
		screens.ScreenStageClear:   {R: 0x2d, G: 0x3a, B: 0x5c, A: 0xff},
		screens.ScreenDungeonClear: {R: 0x3c, G: 0x23, B: 0x4f, A: 0xff},
		screens.ScreenEndroll:      {R: 0x10, G: 0x10, B: 0x18, A: 0xff},
		screens.ScreenCrown:        {R: 0x5c, G: 0x45, B: 0x12, A: 0xff},
	}, color.RGBA{R: 0x1f, G: 0x2a, B: 0x33, A: 0xff})

	lineColors = screens.NewTable(map[screens.LineStyle]color.RGBA{
		screens.StyleHeading:  {R: 0xff, G: 0xe0, B: 0x82, A: 0xff},
		screens.StyleEmphasis: {R: 0x9c, G: 0xf0, B: 0x9c, A: 0xff},
		screens.StyleMuted:    {R: 0x9a, G: 0x9a, B: 0xa8, A: 0xff},
		screens.StyleError:    {R: 0xff, G: 0x78, B: 0x6e, A: 0xff},
	}, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})

	progressTrack  = color.RGBA{R: 0x44, G: 0x44, B: 0x55, A: 0xff}
	progressFill   = color.RGBA{R: 0x7c, G: 0xd6, B: 0x7c, A: 0xff}
	buttonEnabled  = color.RGBA{R: 0x3f, G: 0x8f, B: 0xd8, A: 0xff}
	buttonDisabled = color.RGBA{R: 0x55, G: 0x55, B: 0x60, A: 0xff}
	feedbackColor  = color.RGBA{R: 0xff, G: 0x78, B: 0x6e, A: 0xff}
	textColor      = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// ScreenScene 将一个画面控制器接入 ebiten 游戏循环
//
// 时间轴由场景自己的 FrameClock 驱动：每帧 Update(deltaTime) 推进时钟，
// 到期的阶段边界在游戏循环 goroutine 中同步触发。
// 按钮调用和数据读取在后台 goroutine 中执行，画面通过控制器的 View 读取最新状态。
type ScreenScene struct {
	controller *screens.Controller
	clock      *sequencer.FrameClock
	session    *screens.Session
	fonts      *Fonts
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	pressing atomic.Bool
	exited   atomic.Bool
}

// NewScreenScene 创建并挂载场景
// 时间轴不合法时控制器已退回静态画面，场景仍然可用
func NewScreenScene(adapter screens.Adapter, deps SceneDeps) *ScreenScene {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := sequencer.NewFrameClock()
	ctx, cancel := context.WithCancel(context.Background())

	s := &ScreenScene{
		controller: screens.NewController(adapter, screens.Deps{
			Clock:     clock,
			Service:   deps.Service,
			Navigator: deps.Navigator,
			Audio:     deps.Audio,
			Logger:    logger,
		}),
		clock:   clock,
		session: deps.Session,
		fonts:   deps.Fonts,
		logger:  logger.Named("ScreenScene").With(zap.String("screen", string(adapter.Screen()))),
		ctx:     ctx,
		cancel:  cancel,
	}

	if err := s.controller.Mount(); err != nil {
		s.logger.Warn("画面以静态方式显示", zap.Error(err))
	}
	s.refresh()
	return s
}

// Controller 返回场景的画面控制器
func (s *ScreenScene) Controller() *screens.Controller {
	return s.controller
}

// Update 推进时间轴并处理输入
func (s *ScreenScene) Update(deltaTime float64) {
	s.clock.Update(deltaTime)

	if s.triggered() {
		s.press()
	}
}

// triggered 回车、空格或点击按钮区域
func (s *ScreenScene) triggered() bool {
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) || inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		return true
	}
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		return insideButton(ebiten.CursorPosition())
	}
	return false
}

// press 在后台执行按钮动作，同一时间只有一次
func (s *ScreenScene) press() {
	if s.exited.Load() || !s.pressing.CompareAndSwap(false, true) {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.pressing.Store(false)
		if err := s.controller.Press(s.ctx); err != nil {
			s.logger.Debug("按钮动作未完成", zap.Error(err))
			return
		}
		if s.session != nil {
			s.session.Observe(s.controller.Adapter())
		}
	}()
}

// refresh 后台读取画面数据（只对 Loader 画面生效）
func (s *ScreenScene) refresh() {
	if _, ok := s.controller.Adapter().(screens.Loader); !ok {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.controller.Refresh(s.ctx)
		if s.session != nil {
			s.session.Observe(s.controller.Adapter())
		}
	}()
}

// OnExit 卸载画面：取消进行中的请求，同步取消定时器，并等待后台 goroutine 结束
func (s *ScreenScene) OnExit() {
	if !s.exited.CompareAndSwap(false, true) {
		return
	}
	s.cancel()
	s.controller.Unmount()
	s.wg.Wait()
}

// wait 等待后台 goroutine 结束（测试用）
func (s *ScreenScene) wait() {
	s.wg.Wait()
}

// Draw 绘制当前视图
func (s *ScreenScene) Draw(screen *ebiten.Image) {
	v := s.controller.View()
	screen.Fill(backgroundColors.Get(v.Screen))

	s.drawText(screen, v.Title, marginX, titleY, textColor, true)

	for i, line := range v.Lines {
		s.drawText(screen, line.Text, marginX, float64(linesY+i*lineHeight), lineColors.Get(line.Style), false)
	}

	if v.Counter != nil {
		s.drawText(screen, formatCounter(*v.Counter), marginX, counterY, lineColors.Get(screens.StyleHeading), false)
	}

	if v.Progress > 0 {
		width := float32(WindowWidth - 2*marginX)
		vector.DrawFilledRect(screen, marginX, progressY, width, progressH, progressTrack, false)
		vector.DrawFilledRect(screen, marginX, progressY, width*float32(v.Progress), progressH, progressFill, false)
	}

	if v.Feedback != "" {
		s.drawText(screen, v.Feedback, marginX, feedbackY, feedbackColor, false)
	}

	if v.Button != nil {
		fill := buttonDisabled
		if v.Button.Enabled {
			fill = buttonEnabled
		}
		vector.DrawFilledRect(screen, buttonX, buttonY, buttonW, buttonH, fill, false)
		s.drawText(screen, buttonLabel(v), buttonX+textPadding, buttonY+textPadding, textColor, false)
	}
}

// drawText 使用字体绘制文字，字体不可用时退回调试文字
func (s *ScreenScene) drawText(screen *ebiten.Image, str string, x, y float64, clr color.Color, large bool) {
	if str == "" {
		return
	}
	face := s.fonts.face(large)
	if face == nil {
		ebitenutil.DebugPrintAt(screen, str, int(x), int(y))
		return
	}
	op := &text.DrawOptions{}
	op.GeoM.Translate(x, y)
	op.ColorScale.ScaleWithColor(clr)
	text.Draw(screen, str, face, op)
}

func formatCounter(c screens.Counter) string {
	if c.Target > 0 {
		return fmt.Sprintf("%s  %d / %d", c.Label, c.Value, c.Target)
	}
	return fmt.Sprintf("%s  %d", c.Label, c.Value)
}

func buttonLabel(v screens.View) string {
	if v.Busy {
		return v.Button.Label + " ..."
	}
	return v.Button.Label
}

func insideButton(x, y int) bool {
	return x >= buttonX && x < buttonX+buttonW && y >= buttonY && y < buttonY+buttonH
}

// SceneDeps 场景依赖
type SceneDeps struct {
	Session   *screens.Session
	Service   backend.UserDataService
	Navigator screens.Navigator
	Audio     screens.AudioPlayer // 可为 nil
	Fonts     *Fonts              // 可为 nil，使用调试文字
	Logger    *zap.Logger
}

// NewSceneFactory 返回按路由创建画面场景的工厂
func NewSceneFactory(deps SceneDeps) game.SceneFactory {
	return func(route screens.Route) (game.Scene, error) {
		adapter, err := deps.Session.Adapter(route)
		if err != nil {
			return nil, err
		}
		return NewScreenScene(adapter, deps), nil
	}
}
