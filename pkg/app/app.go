// Package app 提供桌面端应用的核心包装器
//
// 该包把画面、场景管理器、音效和本机设置组装成一个 ebiten.Game。
// 桌面端通过 cli 的 play 命令调用 NewApp()。
package app

import (
	"context"
	"fmt"
	"image/color"
	"io/fs"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/quasilyte/gdata/v2"
	"go.uber.org/zap"

	"github.com/gonewx/closetkingdom/pkg/backend"
	"github.com/gonewx/closetkingdom/pkg/config"
	"github.com/gonewx/closetkingdom/pkg/embedded"
	"github.com/gonewx/closetkingdom/pkg/game"
	"github.com/gonewx/closetkingdom/pkg/scenes"
	"github.com/gonewx/closetkingdom/pkg/screens"
)

// 音频采样率
const sampleRate = 48000

// Config 定义应用启动配置
type Config struct {
	// App 应用配置（后端、奖励、音效映射）
	App *config.AppConfig
	// Service 后端服务（HTTP 客户端或进程内存储）
	Service backend.UserDataService
	// Start 启动时打开的路由，零值表示 Home
	Start screens.Route
	// HomeRack 首页对应的货架，为空时使用上次打开的货架
	HomeRack string
	// SoundFS 音效文件所在的文件系统，为 nil 时不播放音效
	SoundFS fs.FS
	// DisableAudio 不创建音频上下文（测试、无声卡环境）
	DisableAudio bool
	// Settings 本机设置存储，为 nil 时仅在内存中保存
	Settings *gdata.Manager
	Logger   *zap.Logger
}

// App 是应用的核心包装器，实现 ebiten.Game 接口
type App struct {
	sceneManager             *game.SceneManager
	settings                 *game.SettingsManager
	session                  *screens.Session
	logger                   *zap.Logger
	pendingWindowSizeReset   bool // 延迟设置窗口大小标志
	windowSizeResetCountdown int  // 延迟帧数
}

// NewApp 创建并初始化应用
//
// 调用此函数前，必须先调用 embedded.Init() 初始化嵌入资源。
func NewApp(cfg Config) (*App, error) {
	if cfg.App == nil {
		cfg.App = config.DefaultAppConfig()
	}
	if cfg.Service == nil {
		return nil, fmt.Errorf("app: backend service is required")
	}
	if !embedded.IsInitialized() {
		return nil, embedded.ErrNotInitialized
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	appLogger := logger.Named("App")

	settings := game.NewSettingsManager(cfg.Settings, logger)

	var audioContext *audio.Context
	if !cfg.DisableAudio {
		audioContext = audio.NewContext(sampleRate)
	}
	audioManager := game.NewAudioManager(audioContext, settings, cfg.SoundFS, cfg.App.Sounds, logger)
	audioManager.Preload(soundIDs(cfg.App.Sounds))

	fonts, err := scenes.LoadFonts()
	if err != nil {
		appLogger.Warn("字体加载失败，使用调试文字", zap.Error(err))
	}

	factory := screens.NewFactory(
		screens.WithRewardRange(cfg.App.Reward.MinExp, cfg.App.Reward.MaxExp),
		screens.WithSeed(cfg.App.Reward.Seed),
	)
	session := screens.NewSession(factory, cfg.App.Backend.UserID)

	homeRack := cfg.HomeRack
	if homeRack == "" {
		homeRack = settings.GetSettings().LastRack
	}
	if homeRack == "" {
		homeRack = cfg.Start.RackID
	}

	// 预读首页货架，失败时由进度页自己重试
	if homeRack != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.App.RequestTimeout())
		if _, err := session.Preload(ctx, cfg.Service, homeRack); err != nil {
			appLogger.Warn("预读货架失败", zap.String("rack", homeRack), zap.Error(err))
		}
		cancel()
	}

	sceneManager := game.NewSceneManager(logger)
	sceneManager.SetSceneFactory(scenes.NewSceneFactory(scenes.SceneDeps{
		Session:   session,
		Service:   cfg.Service,
		Navigator: sceneManager,
		Audio:     audioManager,
		Fonts:     fonts,
		Logger:    logger,
	}))
	home := screens.Route{Screen: screens.ScreenLeaderboard}
	if homeRack != "" {
		home = screens.Route{Screen: screens.ScreenRackProgress, RackID: homeRack}
	}
	sceneManager.SetHome(home)

	start := cfg.Start
	if start.Screen == "" {
		start = screens.Home()
	}
	if err := sceneManager.Load(start); err != nil {
		return nil, fmt.Errorf("app: open %s: %w", start, err)
	}
	appLogger.Info("应用已启动", zap.Stringer("start", sceneManager.CurrentRoute()), zap.String("user", session.UserID()))

	return &App{
		sceneManager: sceneManager,
		settings:     settings,
		session:      session,
		logger:       appLogger,
	}, nil
}

// Update 更新游戏逻辑
// 每个 tick 调用一次（通常每秒 60 次）
func (a *App) Update() error {
	// 延迟设置窗口大小（退出全屏后需要等待几帧才能正确设置）
	if a.pendingWindowSizeReset {
		a.windowSizeResetCountdown--
		if a.windowSizeResetCountdown <= 0 {
			ebiten.SetWindowSize(scenes.WindowWidth, scenes.WindowHeight)
			a.pendingWindowSizeReset = false
		}
	}

	// F11 切换全屏
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		a.toggleFullscreen()
	}

	// M 切换静音
	if inpututil.IsKeyJustPressed(ebiten.KeyM) {
		muted := a.settings.ToggleMuted()
		a.saveSettings()
		a.logger.Info("切换静音", zap.Bool("muted", muted))
	}

	deltaTime := 1.0 / 60.0
	a.sceneManager.Update(deltaTime)
	a.rememberRack()
	return nil
}

func (a *App) toggleFullscreen() {
	if ebiten.IsFullscreen() {
		ebiten.SetFullscreen(false)
		if ebiten.IsWindowMaximized() || ebiten.IsWindowMinimized() {
			ebiten.RestoreWindow()
		}
		// 延迟几帧后设置窗口大小，让窗口管理器有时间处理
		a.pendingWindowSizeReset = true
		a.windowSizeResetCountdown = 3
		a.settings.SetFullscreen(false)
	} else {
		ebiten.SetFullscreen(true)
		a.settings.SetFullscreen(true)
	}
	a.saveSettings()
}

// rememberRack 把最近打开的货架记为下次的首页
func (a *App) rememberRack() {
	rackID := a.sceneManager.CurrentRoute().RackID
	if rackID == "" || rackID == a.settings.GetSettings().LastRack {
		return
	}
	a.settings.SetLastRack(rackID)
	a.saveSettings()
}

func (a *App) saveSettings() {
	if err := a.settings.Save(); err != nil {
		a.logger.Warn("保存设置失败", zap.Error(err))
	}
}

// Draw 绘制画面
func (a *App) Draw(screen *ebiten.Image) {
	a.sceneManager.Draw(screen)
}

// DrawFinalScreen 实现 FinalScreenDrawer 接口
// 全屏时左右留黑边，并使用线性滤波缩放
func (a *App) DrawFinalScreen(screen ebiten.FinalScreen, offscreen *ebiten.Image, geoM ebiten.GeoM) {
	screen.Fill(color.Black)
	op := &ebiten.DrawImageOptions{}
	op.GeoM = geoM
	op.Filter = ebiten.FilterLinear
	screen.DrawImage(offscreen, op)
}

// Layout 返回逻辑屏幕尺寸
func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	return scenes.WindowWidth, scenes.WindowHeight
}

// Close 卸载当前画面并保存设置
// 窗口关闭后调用
func (a *App) Close() {
	a.sceneManager.Close()
	a.saveSettings()
}

// GetSceneManager 返回场景管理器
func (a *App) GetSceneManager() *game.SceneManager {
	return a.sceneManager
}

// Settings 返回本机设置
func (a *App) Settings() *game.SettingsManager {
	return a.settings
}

func soundIDs(sounds map[string]string) []string {
	ids := make([]string, 0, len(sounds))
	for id := range sounds {
		ids = append(ids, id)
	}
	return ids
}
