// Package logging 构建全局使用的 zap 日志记录器
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options 日志选项
type Options struct {
	Verbose bool   // 输出 Debug 级别日志
	Quiet   bool   // 完全关闭日志（TUI 预览时使用，避免破坏终端画面）
	Console bool   // 使用可读的控制台格式而不是 JSON
	File    string // 非空时写入该文件而不是 stderr
}

// New 根据选项构建日志记录器
func New(opts Options) (*zap.Logger, error) {
	if opts.Quiet {
		return zap.NewNop(), nil
	}

	config := zap.NewProductionConfig()
	if opts.Console {
		config.Encoding = "console"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	if opts.Verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		config.Sampling = nil
	}
	if opts.File != "" {
		config.OutputPaths = []string{opts.File}
		config.ErrorOutputPaths = []string{opts.File}
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// Must 与 New 相同，但失败时回退到写 stderr 的开发日志
func Must(opts Options) *zap.Logger {
	logger, err := New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[Logging] %v, falling back to development logger\n", err)
		return zap.NewExample()
	}
	return logger
}
