package game

import (
	"path/filepath"
	"testing"

	"github.com/quasilyte/gdata/v2"
)

func openTestGdata(t *testing.T) *gdata.Manager {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, ".local", "share"))

	gdataManager, err := gdata.Open(gdata.Config{AppName: "closetkingdom_settings_test"})
	if err != nil {
		t.Skipf("gdata unavailable in this environment: %v", err)
	}
	return gdataManager
}

// TestDefaultSettings 测试默认设置
func TestDefaultSettings(t *testing.T) {
	settings := DefaultSettings()
	if settings.SoundVolume != 0.8 {
		t.Errorf("SoundVolume: got %v, want 0.8", settings.SoundVolume)
	}
	if settings.Muted {
		t.Error("Muted: got true, want false")
	}
	if settings.Fullscreen {
		t.Error("Fullscreen: got true, want false")
	}
}

// TestNewSettingsManagerNilGdata 测试降级模式（仅内存设置）
func TestNewSettingsManagerNilGdata(t *testing.T) {
	sm := NewSettingsManager(nil, nil)

	if got := sm.GetSettings(); got != *DefaultSettings() {
		t.Errorf("expected default settings, got %+v", got)
	}
	sm.SetMuted(true)
	if err := sm.Save(); err != nil {
		t.Errorf("Save in degraded mode should not fail: %v", err)
	}
	if err := sm.Load(); err != nil {
		t.Errorf("Load in degraded mode should not fail: %v", err)
	}
	if sm.Muted() {
		t.Error("degraded Load should reset to defaults")
	}
}

// TestSettingsLoadSave 测试设置持久化
func TestSettingsLoadSave(t *testing.T) {
	gdataManager := openTestGdata(t)

	sm := NewSettingsManager(gdataManager, nil)
	sm.SetMuted(true)
	sm.SetSoundVolume(0.5)
	sm.SetFullscreen(true)
	sm.SetLastRack("shoe-rack")
	if err := sm.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded := NewSettingsManager(gdataManager, nil)
	got := reloaded.GetSettings()
	want := Settings{SoundVolume: 0.5, Muted: true, Fullscreen: true, LastRack: "shoe-rack"}
	if got != want {
		t.Errorf("reloaded settings: got %+v, want %+v", got, want)
	}
}

// TestSettingsCorruptedData 测试存储内容损坏时退回默认设置
func TestSettingsCorruptedData(t *testing.T) {
	gdataManager := openTestGdata(t)
	if err := gdataManager.SaveObjectProp(settingsObject, settingsProperty, []byte("soundVolume: [")); err != nil {
		t.Fatalf("SaveObjectProp failed: %v", err)
	}

	sm := NewSettingsManager(gdataManager, nil)
	if got := sm.GetSettings(); got != *DefaultSettings() {
		t.Errorf("expected default settings, got %+v", got)
	}
}

// TestToggleMuted 测试静音切换
func TestToggleMuted(t *testing.T) {
	sm := NewSettingsManager(nil, nil)
	if !sm.ToggleMuted() {
		t.Error("first toggle should mute")
	}
	if sm.ToggleMuted() {
		t.Error("second toggle should unmute")
	}
}

// TestSetSoundVolumeClamp 测试音量边界限制
func TestSetSoundVolumeClamp(t *testing.T) {
	tests := []struct {
		name   string
		input  float64
		expect float64
	}{
		{"正常值", 0.5, 0.5},
		{"低于下限", -0.5, 0.0},
		{"高于上限", 1.5, 1.0},
		{"边界 0", 0.0, 0.0},
		{"边界 1", 1.0, 1.0},
	}

	sm := NewSettingsManager(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm.SetSoundVolume(tt.input)
			if got := sm.GetSettings().SoundVolume; got != tt.expect {
				t.Errorf("SetSoundVolume(%v): got %v, want %v", tt.input, got, tt.expect)
			}
		})
	}
}

// TestGetSettingsReturnsCopy 测试 GetSettings 返回副本
func TestGetSettingsReturnsCopy(t *testing.T) {
	sm := NewSettingsManager(nil, nil)
	s := sm.GetSettings()
	s.Muted = true
	if sm.Muted() {
		t.Error("modifying the returned copy must not change the manager")
	}
}
