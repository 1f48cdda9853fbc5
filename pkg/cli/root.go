// Package cli 提供 closetkingdom 命令行入口
//
// 子命令：
//
//	play      桌面端（ebiten）
//	serve     API 服务端
//	preview   终端预览（bubbletea）
//	timeline  校验和展开时间轴配置
package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gonewx/closetkingdom/internal/logging"
	"github.com/gonewx/closetkingdom/pkg/config"
	"github.com/gonewx/closetkingdom/pkg/screens"
)

// rootOptions 所有子命令共享的全局参数
type rootOptions struct {
	configPath string
	verbose    bool
	logFile    string
}

// loadConfig 读取 --config 指定的应用配置，未指定时使用默认值
func (o *rootOptions) loadConfig() (*config.AppConfig, error) {
	cfg, err := config.LoadAppConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.verbose {
		cfg.Verbose = true
	}
	return cfg, nil
}

// newLogger 构建进程日志
// quiet 为 true 且没有 --log-file 时不输出日志（终端预览会占用整个终端）
func (o *rootOptions) newLogger(cfg *config.AppConfig, quiet bool) *zap.Logger {
	return logging.Must(logging.Options{
		Verbose: cfg.Verbose,
		Quiet:   quiet && o.logFile == "",
		Console: o.logFile == "",
		File:    o.logFile,
	})
}

// NewRootCommand 创建根命令
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "closetkingdom",
		Short: "Closet Kingdom: staged reveal screens for tidying up racks",
		Long: `Closet Kingdom turns tidying a rack into a small game.

Clearing a stage plays a staged reveal (banner, EXP count-up, item), and the
button that advances to the next screen only becomes usable once the reveal
has finished. Results are written through the user-data API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to closetkingdom.yaml")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "Write logs to this file instead of stderr")

	cmd.AddCommand(newPlayCommand(opts))
	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newPreviewCommand(opts))
	cmd.AddCommand(newTimelineCommand())

	return cmd
}

// routeFromArgs 解析可选的路由参数，缺省为首页
func routeFromArgs(args []string) (screens.Route, error) {
	if len(args) == 0 {
		return screens.Home(), nil
	}
	route, err := screens.ParseRoute(args[0])
	if err != nil {
		return screens.Route{}, fmt.Errorf("invalid route: %w", err)
	}
	return route, nil
}

func fprintf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
