package game

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/audio/mp3"
	"github.com/hajimehoshi/ebiten/v2/audio/vorbis"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"
	"go.uber.org/zap"
)

// AudioManager 音效管理器
//
// 通过音效ID（如 "SOUND_STAGE_CLEAR"）播放音效，ID 到文件路径的映射来自
// closetkingdom.yaml 的 sounds 段。实现 screens.AudioPlayer：
//   - 即发即忘，加载失败只记录日志，不影响画面
//   - 静音和音量由 SettingsManager 决定
//   - audio.Context 为 nil 时整体静默（终端预览、测试）
type AudioManager struct {
	context  *audio.Context
	settings *SettingsManager
	fsys     fs.FS
	sounds   map[string]string
	logger   *zap.Logger

	mu      sync.Mutex
	players map[string]*audio.Player // 音效ID -> 播放器缓存
	failed  map[string]bool          // 加载失败过的ID，不再重试
}

// NewAudioManager 创建音效管理器
//
// 参数：
//   - ctx: ebiten 音频上下文，可为 nil（静默模式）
//   - settings: 设置管理器，可为 nil（使用默认音量）
//   - fsys: 音效文件所在的文件系统
//   - sounds: 音效ID -> 文件路径
func NewAudioManager(ctx *audio.Context, settings *SettingsManager, fsys fs.FS, sounds map[string]string, logger *zap.Logger) *AudioManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AudioManager{
		context:  ctx,
		settings: settings,
		fsys:     fsys,
		sounds:   sounds,
		logger:   logger.Named("AudioManager"),
		players:  make(map[string]*audio.Player),
		failed:   make(map[string]bool),
	}
}

// PlaySound 播放音效（实现 screens.AudioPlayer）
func (am *AudioManager) PlaySound(soundID string) {
	am.play(soundID)
}

// play 播放音效，返回是否真正开始播放
func (am *AudioManager) play(soundID string) bool {
	if am.context == nil || soundID == "" {
		return false
	}
	if am.settings != nil && am.settings.Muted() {
		return false
	}

	am.mu.Lock()
	defer am.mu.Unlock()

	player := am.playerLocked(soundID)
	if player == nil {
		return false
	}

	player.SetVolume(am.volume())
	if err := player.Rewind(); err != nil {
		am.logger.Warn("音效重置失败", zap.String("sound", soundID), zap.Error(err))
	}
	player.Play()
	return true
}

// Preload 预加载音效，避免首次播放时的解码延迟
func (am *AudioManager) Preload(soundIDs []string) {
	if am.context == nil {
		return
	}
	am.mu.Lock()
	defer am.mu.Unlock()
	loaded := 0
	for _, id := range soundIDs {
		if am.playerLocked(id) != nil {
			loaded++
		}
	}
	am.logger.Debug("预加载音效", zap.Int("loaded", loaded), zap.Int("requested", len(soundIDs)))
}

// playerLocked 获取或加载播放器，调用方需持有 am.mu
func (am *AudioManager) playerLocked(soundID string) *audio.Player {
	if player, ok := am.players[soundID]; ok {
		return player
	}
	if am.failed[soundID] {
		return nil
	}

	filePath, ok := am.sounds[soundID]
	if !ok {
		am.failed[soundID] = true
		am.logger.Debug("音效未配置", zap.String("sound", soundID))
		return nil
	}

	player, err := am.load(filePath)
	if err != nil {
		am.failed[soundID] = true
		am.logger.Warn("音效加载失败", zap.String("sound", soundID), zap.String("path", filePath), zap.Error(err))
		return nil
	}
	am.players[soundID] = player
	return player
}

// load 按扩展名解码音效文件（单次播放，不循环）
func (am *AudioManager) load(filePath string) (*audio.Player, error) {
	if am.fsys == nil {
		return nil, fmt.Errorf("no filesystem for %s", filePath)
	}
	data, err := fs.ReadFile(am.fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read sound file %s: %w", filePath, err)
	}

	reader := bytes.NewReader(data)
	var stream io.Reader
	switch ext := strings.ToLower(path.Ext(filePath)); ext {
	case ".mp3":
		stream, err = mp3.DecodeWithoutResampling(reader)
	case ".ogg":
		stream, err = vorbis.DecodeWithoutResampling(reader)
	case ".wav":
		stream, err = wav.DecodeWithoutResampling(reader)
	default:
		return nil, fmt.Errorf("unsupported audio format: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filePath, err)
	}

	player, err := am.context.NewPlayer(stream)
	if err != nil {
		return nil, fmt.Errorf("failed to create player for %s: %w", filePath, err)
	}
	return player, nil
}

func (am *AudioManager) volume() float64 {
	if am.settings != nil {
		return am.settings.GetSettings().SoundVolume
	}
	return DefaultSettings().SoundVolume
}
