package game

import (
	"bytes"
	"encoding/binary"
	"os"
	"testing"
	"testing/fstest"

	"github.com/hajimehoshi/ebiten/v2/audio"
)

var testAudioContext *audio.Context

func TestMain(m *testing.M) {
	// 整个进程只能创建一个音频上下文
	testAudioContext = audio.NewContext(48000)
	os.Exit(m.Run())
}

// silentWAV 生成一段 16 位双声道静音 WAV
func silentWAV(frames int) []byte {
	dataLen := frames * 4
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint32(48000))
	binary.Write(&buf, binary.LittleEndian, uint32(48000*4))
	binary.Write(&buf, binary.LittleEndian, uint16(4))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(make([]byte, dataLen))
	return buf.Bytes()
}

func testSoundFS() fstest.MapFS {
	return fstest.MapFS{
		"sounds/count.wav":  {Data: silentWAV(480)},
		"sounds/broken.ogg": {Data: []byte("not vorbis")},
		"sounds/readme.txt": {Data: []byte("hello")},
	}
}

var testSounds = map[string]string{
	"SOUND_COUNT":   "sounds/count.wav",
	"SOUND_BROKEN":  "sounds/broken.ogg",
	"SOUND_TEXT":    "sounds/readme.txt",
	"SOUND_MISSING": "sounds/missing.wav",
}

// TestAudioManagerPreload 测试按扩展名加载并缓存
func TestAudioManagerPreload(t *testing.T) {
	am := NewAudioManager(testAudioContext, nil, testSoundFS(), testSounds, nil)
	am.Preload([]string{"SOUND_COUNT", "SOUND_BROKEN", "SOUND_TEXT", "SOUND_MISSING", "SOUND_UNKNOWN"})

	if len(am.players) != 1 {
		t.Fatalf("expected only the wav to load, got %d players", len(am.players))
	}
	if _, ok := am.players["SOUND_COUNT"]; !ok {
		t.Error("SOUND_COUNT should be cached")
	}
	for _, id := range []string{"SOUND_BROKEN", "SOUND_TEXT", "SOUND_MISSING", "SOUND_UNKNOWN"} {
		if !am.failed[id] {
			t.Errorf("%s should be marked as failed", id)
		}
	}
}

// TestAudioManagerLoadErrors 测试各种加载失败
func TestAudioManagerLoadErrors(t *testing.T) {
	am := NewAudioManager(testAudioContext, nil, testSoundFS(), testSounds, nil)

	if _, err := am.load("sounds/readme.txt"); err == nil {
		t.Error("expected unsupported format error")
	}
	if _, err := am.load("sounds/missing.wav"); err == nil {
		t.Error("expected read error")
	}
	if _, err := am.load("sounds/broken.ogg"); err == nil {
		t.Error("expected decode error")
	}

	noFS := NewAudioManager(testAudioContext, nil, nil, testSounds, nil)
	if _, err := noFS.load("sounds/count.wav"); err == nil {
		t.Error("expected error without filesystem")
	}
}

// TestAudioManagerSilentModes 测试静默的几种情况
func TestAudioManagerSilentModes(t *testing.T) {
	t.Run("没有音频上下文", func(t *testing.T) {
		am := NewAudioManager(nil, nil, testSoundFS(), testSounds, nil)
		if am.play("SOUND_COUNT") {
			t.Error("play without context should be a no-op")
		}
		am.PlaySound("SOUND_COUNT")
	})

	t.Run("静音", func(t *testing.T) {
		settings := NewSettingsManager(nil, nil)
		settings.SetMuted(true)
		am := NewAudioManager(testAudioContext, settings, testSoundFS(), testSounds, nil)
		if am.play("SOUND_COUNT") {
			t.Error("play while muted should be a no-op")
		}
		if len(am.players) != 0 {
			t.Error("muted play should not load anything")
		}
	})

	t.Run("未配置的音效", func(t *testing.T) {
		am := NewAudioManager(testAudioContext, nil, testSoundFS(), testSounds, nil)
		if am.play("SOUND_UNKNOWN") || am.play("") {
			t.Error("unknown sound should not play")
		}
	})
}

// TestAudioManagerVolume 测试音量来自设置
func TestAudioManagerVolume(t *testing.T) {
	am := NewAudioManager(testAudioContext, nil, nil, nil, nil)
	if got := am.volume(); got != 0.8 {
		t.Errorf("default volume: got %v", got)
	}

	settings := NewSettingsManager(nil, nil)
	settings.SetSoundVolume(0.25)
	am = NewAudioManager(testAudioContext, settings, nil, nil, nil)
	if got := am.volume(); got != 0.25 {
		t.Errorf("volume from settings: got %v", got)
	}
}
