package game

import (
	"fmt"
	"sync"

	"github.com/quasilyte/gdata/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Settings 本机设置
// 设置与用户无关，只保存在当前设备上
type Settings struct {
	SoundVolume float64 `yaml:"soundVolume"` // 音效音量 0.0 ~ 1.0
	Muted       bool    `yaml:"muted"`       // 静音
	Fullscreen  bool    `yaml:"fullscreen"`  // 启动时是否全屏
	LastRack    string  `yaml:"lastRack"`    // 上次打开的货架，作为 Home 页面
}

// DefaultSettings 返回默认设置
func DefaultSettings() *Settings {
	return &Settings{
		SoundVolume: 0.8,
	}
}

// 存储路径常量
const (
	settingsObject   = "settings"
	settingsProperty = "global"
)

// SettingsManager 设置管理器
// 负责设置的加载、保存；可在多个 goroutine 中读取
type SettingsManager struct {
	gdataManager *gdata.Manager // 可为 nil（降级模式，仅内存设置）
	logger       *zap.Logger

	mu       sync.RWMutex
	settings *Settings
}

// NewSettingsManager 创建设置管理器并尝试加载已保存的设置
//
// 参数：
//   - gdataManager: gdata 跨平台存储管理器，可为 nil（降级模式）
//   - logger: 日志，可为 nil
//
// 加载失败不是致命错误，会退回默认设置
func NewSettingsManager(gdataManager *gdata.Manager, logger *zap.Logger) *SettingsManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	sm := &SettingsManager{
		gdataManager: gdataManager,
		logger:       logger.Named("SettingsManager"),
		settings:     DefaultSettings(),
	}
	if err := sm.Load(); err != nil {
		sm.logger.Warn("加载设置失败，使用默认设置", zap.Error(err))
	}
	return sm
}

// Load 从 gdata 加载设置
// gdataManager 为 nil 或设置不存在时使用默认设置
func (sm *SettingsManager) Load() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.settings = DefaultSettings()
	if sm.gdataManager == nil || !sm.gdataManager.ObjectPropExists(settingsObject, settingsProperty) {
		return nil
	}

	data, err := sm.gdataManager.LoadObjectProp(settingsObject, settingsProperty)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	var loaded Settings
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	loaded.SoundVolume = clampVolume(loaded.SoundVolume)
	sm.settings = &loaded
	sm.logger.Debug("设置已加载")
	return nil
}

// Save 保存设置到 gdata
// 降级模式下直接返回 nil
func (sm *SettingsManager) Save() error {
	if sm.gdataManager == nil {
		return nil
	}

	sm.mu.RLock()
	data, err := yaml.Marshal(sm.settings)
	sm.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := sm.gdataManager.SaveObjectProp(settingsObject, settingsProperty, data); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// GetSettings 返回当前设置的副本
func (sm *SettingsManager) GetSettings() Settings {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return *sm.settings
}

// Muted 是否静音
func (sm *SettingsManager) Muted() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.settings.Muted
}

// SetMuted 设置静音（仅修改内存，需调用 Save 持久化）
func (sm *SettingsManager) SetMuted(muted bool) {
	sm.mu.Lock()
	sm.settings.Muted = muted
	sm.mu.Unlock()
}

// ToggleMuted 切换静音，返回切换后的状态
func (sm *SettingsManager) ToggleMuted() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.settings.Muted = !sm.settings.Muted
	return sm.settings.Muted
}

// SetSoundVolume 设置音效音量，限制在 0.0 ~ 1.0
func (sm *SettingsManager) SetSoundVolume(volume float64) {
	sm.mu.Lock()
	sm.settings.SoundVolume = clampVolume(volume)
	sm.mu.Unlock()
}

// SetFullscreen 设置全屏模式
func (sm *SettingsManager) SetFullscreen(enabled bool) {
	sm.mu.Lock()
	sm.settings.Fullscreen = enabled
	sm.mu.Unlock()
}

// SetLastRack 记录上次打开的货架
func (sm *SettingsManager) SetLastRack(rackID string) {
	sm.mu.Lock()
	sm.settings.LastRack = rackID
	sm.mu.Unlock()
}

func clampVolume(volume float64) float64 {
	if volume < 0.0 {
		return 0.0
	}
	if volume > 1.0 {
		return 1.0
	}
	return volume
}
