package game

import (
	"github.com/hajimehoshi/ebiten/v2"
)

// Scene 一个可绘制的画面（通关演出、货架进度、排行榜等）
// 同一时间只有一个场景的 Update 和 Draw 被调用
type Scene interface {
	// Update 推进场景逻辑
	// deltaTime 为距上一帧的时间（秒）
	Update(deltaTime float64)

	// Draw 将场景绘制到 screen
	Draw(screen *ebiten.Image)
}

// Exiter 是一个可选接口，场景被替换或程序退出时调用 OnExit
//
// 实现方应在 OnExit 中同步释放定时器等资源，
// 返回后不得再修改任何可见状态
type Exiter interface {
	OnExit()
}
