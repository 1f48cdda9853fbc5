package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gonewx/closetkingdom/pkg/timeline"
)

// DefaultRequestTimeoutMs 后端请求默认超时（毫秒）
const DefaultRequestTimeoutMs = 10000

// ServerConfig API 服务端配置
type ServerConfig struct {
	Addr              string `yaml:"addr"`              // 监听地址，如 ":8080"
	ShutdownTimeoutMs int64  `yaml:"shutdownTimeoutMs"` // 优雅关闭等待时间
	SeedRacks         bool   `yaml:"seedRacks"`         // 首次启动时写入演示货架
}

// BackendConfig 客户端访问后端的配置
type BackendConfig struct {
	BaseURL   string `yaml:"baseURL"`   // 如 "http://localhost:8080"
	TimeoutMs int64  `yaml:"timeoutMs"` // 单次请求超时，默认 10000
	UserID    string `yaml:"userID"`
	UserName  string `yaml:"userName"`
}

// StorageConfig 平台存储配置
type StorageConfig struct {
	AppName string `yaml:"appName"` // gdata 应用名，决定存储目录
	Memory  bool   `yaml:"memory"`  // 只使用内存存储（不落盘）
}

// RewardConfig 奖励配置
type RewardConfig struct {
	MinExp int   `yaml:"minExp"` // 通关随机 EXP 下限（含）
	MaxExp int   `yaml:"maxExp"` // 通关随机 EXP 上限（含）
	Seed   int64 `yaml:"seed"`   // 随机种子，0 表示使用当前时间
}

// AppConfig 应用配置（closetkingdom.yaml）
type AppConfig struct {
	Server  ServerConfig      `yaml:"server"`
	Backend BackendConfig     `yaml:"backend"`
	Storage StorageConfig     `yaml:"storage"`
	Reward  RewardConfig      `yaml:"reward"`
	Sounds  map[string]string `yaml:"sounds"` // 音效ID -> 文件路径
	Verbose bool              `yaml:"verbose"`
}

// DefaultAppConfig 返回默认配置
func DefaultAppConfig() *AppConfig {
	cfg := &AppConfig{}
	applyAppDefaults(cfg)
	return cfg
}

// LoadAppConfig 从 YAML 文件加载应用配置
// path 为空时返回默认配置
func LoadAppConfig(path string) (*AppConfig, error) {
	cfg := &AppConfig{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read app config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse app config YAML from %s: %w", path, err)
		}
	}

	applyAppDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid app config in %s: %w", path, err)
	}
	return cfg, nil
}

// applyAppDefaults 为缺失的可选字段设置默认值
func applyAppDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ShutdownTimeoutMs == 0 {
		cfg.Server.ShutdownTimeoutMs = 5000
	}
	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = "http://localhost:8080"
	}
	if cfg.Backend.TimeoutMs == 0 {
		cfg.Backend.TimeoutMs = DefaultRequestTimeoutMs
	}
	if cfg.Backend.UserID == "" {
		cfg.Backend.UserID = "guest"
	}
	if cfg.Backend.UserName == "" {
		cfg.Backend.UserName = cfg.Backend.UserID
	}
	if cfg.Storage.AppName == "" {
		cfg.Storage.AppName = "closetkingdom"
	}
	if cfg.Reward.MinExp == 0 && cfg.Reward.MaxExp == 0 {
		cfg.Reward.MinExp = 30
		cfg.Reward.MaxExp = 60
	}
	if cfg.Sounds == nil {
		cfg.Sounds = map[string]string{}
	}
}

// Validate 校验配置合法性
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Backend.TimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("backend.timeoutMs cannot be negative, got %d", c.Backend.TimeoutMs))
	}
	if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend.baseURL %q is not an absolute URL", c.Backend.BaseURL))
	}
	if c.Reward.MinExp < 0 || c.Reward.MaxExp < c.Reward.MinExp {
		errs = append(errs, fmt.Errorf("reward range [%d, %d] is invalid", c.Reward.MinExp, c.Reward.MaxExp))
	}
	if int64(c.Reward.MaxExp) > timeline.MaxRampSteps {
		errs = append(errs, fmt.Errorf("reward.maxExp %d exceeds %d, the EXP counter cannot show it", c.Reward.MaxExp, timeline.MaxRampSteps))
	}
	if c.Server.ShutdownTimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("server.shutdownTimeoutMs cannot be negative, got %d", c.Server.ShutdownTimeoutMs))
	}
	return errors.Join(errs...)
}

// RequestTimeout 返回后端请求超时
func (c *AppConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutMs) * time.Millisecond
}

// ShutdownTimeout 返回服务端优雅关闭等待时间
func (c *AppConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutMs) * time.Millisecond
}
