//go:build mobile

// Package mobile 提供 ebitenmobile 绑定入口
//
// 此包用于构建 Android (.aar) 和 iOS (.xcframework) 包。
// 移动端没有单独的 API 服务，直接使用设备上的平台存储（gdata）。
//
// 此文件仅在使用 -tags mobile 构建时编译：
//
//	# Android
//	cp -r data mobile/ && ebitenmobile bind -target android -tags mobile -androidapi 23 -javapkg com.gonewx.closetkingdom -o build/android/closetkingdom.aar -v ./mobile
//
//	# iOS (仅 macOS)
//	cp -r data mobile/ && ebitenmobile bind -target ios -tags mobile -o build/ios/ClosetKingdom.xcframework -v ./mobile
package mobile

import (
	"github.com/hajimehoshi/ebiten/v2/mobile"
	"github.com/quasilyte/gdata/v2"
	"go.uber.org/zap"

	"github.com/gonewx/closetkingdom/internal/logging"
	"github.com/gonewx/closetkingdom/pkg/app"
	"github.com/gonewx/closetkingdom/pkg/config"
	"github.com/gonewx/closetkingdom/pkg/embedded"
	"github.com/gonewx/closetkingdom/pkg/store"
)

func init() {
	// dataFS 在 embed.go 中声明
	embedded.Init(dataFS)

	logger := logging.Must(logging.Options{Console: true})
	cfg := config.DefaultAppConfig()

	st := store.Open(store.Config{AppName: cfg.Storage.AppName}, store.WithLogger(logger))
	if racks, err := store.LoadEmbeddedRacks(); err != nil {
		logger.Error("演示货架加载失败", zap.Error(err))
	} else if _, err := st.SeedRacks(racks); err != nil {
		logger.Error("演示货架写入失败", zap.Error(err))
	}

	settings, err := gdata.Open(gdata.Config{AppName: cfg.Storage.AppName})
	if err != nil {
		logger.Warn("本机设置不可用，仅保存在内存中", zap.Error(err))
		settings = nil
	}

	gameApp, err := app.NewApp(app.Config{
		App:      cfg,
		Service:  store.NewService(st),
		Settings: settings,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("应用初始化失败", zap.Error(err))
	}

	// 注册到 ebitenmobile
	mobile.SetGame(gameApp)
}

// Dummy 是一个空导出函数，确保包被 ebitenmobile 正确识别
func Dummy() {}
