package game

import (
	"errors"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"go.uber.org/zap"

	"github.com/gonewx/closetkingdom/pkg/screens"
)

var errNoFactory = errors.New("game: scene factory is not set")

// SceneFactory 场景工厂函数类型
// 根据路由创建场景，避免 game 包依赖具体的场景实现
type SceneFactory func(route screens.Route) (Scene, error)

// SceneManager 管理当前活动的场景
//
// Navigate 可以在任意 goroutine 中调用（按钮调用在后台执行），
// 真正的切换推迟到下一次 Update，在游戏循环所在的 goroutine 中完成
type SceneManager struct {
	currentScene Scene
	currentRoute screens.Route
	sceneFactory SceneFactory
	home         screens.Route
	logger       *zap.Logger

	mu      sync.Mutex
	pending *screens.Route
}

// NewSceneManager 创建场景管理器
// 初始没有活动场景，使用 SwitchTo 或 Navigate 设置第一个场景
func NewSceneManager(logger *zap.Logger) *SceneManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SceneManager{
		home:   screens.Home(),
		logger: logger.Named("SceneManager"),
	}
}

// SetSceneFactory 设置场景工厂函数
func (sm *SceneManager) SetSceneFactory(factory SceneFactory) {
	sm.sceneFactory = factory
}

// SetHome 设置 Home 路由实际打开的页面
// 桌面端没有独立的首页，通常指向默认货架的进度页
func (sm *SceneManager) SetHome(route screens.Route) {
	sm.home = route
}

// SwitchTo 立即切换到指定场景
// 旧场景若实现了 Exiter，会先调用 OnExit
func (sm *SceneManager) SwitchTo(scene Scene) {
	if exiter, ok := sm.currentScene.(Exiter); ok {
		exiter.OnExit()
	}
	sm.currentScene = scene
}

// GetCurrentScene 返回当前活动的场景，没有时返回 nil
func (sm *SceneManager) GetCurrentScene() Scene {
	return sm.currentScene
}

// CurrentRoute 返回当前场景对应的路由
func (sm *SceneManager) CurrentRoute() screens.Route {
	return sm.currentRoute
}

// Navigate 请求切换到指定路由（实现 screens.Navigator）
// 多次调用时只保留最后一次
func (sm *SceneManager) Navigate(route screens.Route) {
	sm.mu.Lock()
	sm.pending = &route
	sm.mu.Unlock()
}

// Load 立即创建并切换到指定路由的场景
//
// 返回：
//   - error: 工厂未设置或创建失败，当前场景保持不变
func (sm *SceneManager) Load(route screens.Route) error {
	if route.Screen == screens.ScreenHome {
		route = sm.home
	}

	if sm.sceneFactory == nil {
		sm.logger.Error("SceneFactory 未设置", zap.Stringer("route", route))
		return errNoFactory
	}

	scene, err := sm.sceneFactory(route)
	if err != nil {
		sm.logger.Error("无法创建场景", zap.Stringer("route", route), zap.Error(err))
		return err
	}

	sm.SwitchTo(scene)
	sm.currentRoute = route
	sm.logger.Info("切换场景", zap.Stringer("route", route))
	return nil
}

// Update 应用挂起的导航请求，然后更新当前场景
func (sm *SceneManager) Update(deltaTime float64) {
	sm.mu.Lock()
	pending := sm.pending
	sm.pending = nil
	sm.mu.Unlock()

	if pending != nil {
		_ = sm.Load(*pending)
	}

	if sm.currentScene != nil {
		sm.currentScene.Update(deltaTime)
	}
}

// Draw 绘制当前场景
func (sm *SceneManager) Draw(screen *ebiten.Image) {
	if sm.currentScene != nil {
		sm.currentScene.Draw(screen)
	}
}

// Close 退出当前场景，程序关闭时调用
func (sm *SceneManager) Close() {
	if exiter, ok := sm.currentScene.(Exiter); ok {
		exiter.OnExit()
	}
	sm.currentScene = nil
}
