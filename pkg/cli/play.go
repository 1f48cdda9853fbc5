package cli

import (
	"fmt"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/quasilyte/gdata/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gonewx/closetkingdom/pkg/app"
	"github.com/gonewx/closetkingdom/pkg/scenes"
)

type playOptions struct {
	local    bool
	homeRack string
	userID   string
	soundDir string
}

func newPlayCommand(root *rootOptions) *cobra.Command {
	opts := &playOptions{}

	cmd := &cobra.Command{
		Use:   "play [route]",
		Short: "Open the desktop app",
		Long: `Open the desktop app at the given route (default: home).

Routes:
  /                              home (rack progress of the last rack)
  /rack/{rack}                   rack progress
  /rack/{rack}/stage/{n}/clear   stage clear
  /rack/{rack}/clear             dungeon clear
  /rack/{rack}/endroll           end roll
  /rack/{rack}/crown             crown
  /leaderboard                   leaderboard

Keys: Enter/Space/click press the button, F11 toggles fullscreen, M mutes.`,
		Example: `  closetkingdom play --local /rack/closet-1/stage/1/clear`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(root, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.local, "local", false, "Use the local platform store instead of the HTTP backend")
	cmd.Flags().StringVar(&opts.homeRack, "rack", "", "Rack shown as home (default: last opened rack)")
	cmd.Flags().StringVar(&opts.userID, "user", "", "User ID (overrides backend.userID)")
	cmd.Flags().StringVar(&opts.soundDir, "sounds", ".", "Directory that sound paths in the config are relative to")

	return cmd
}

func runPlay(root *rootOptions, opts *playOptions, args []string) error {
	route, err := routeFromArgs(args)
	if err != nil {
		return err
	}
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if opts.userID != "" {
		cfg.Backend.UserID = opts.userID
	}

	logger := root.newLogger(cfg, false)
	defer func() { _ = logger.Sync() }()

	svc, err := newService(cfg, opts.local, logger)
	if err != nil {
		return err
	}

	// 本机设置（静音、音量、上次打开的货架），失败时仅保存在内存中
	settingsData, err := gdata.Open(gdata.Config{AppName: cfg.Storage.AppName})
	if err != nil {
		logger.Warn("本机设置不可用，仅保存在内存中", zap.Error(err))
		settingsData = nil
	}

	a, err := app.NewApp(app.Config{
		App:      cfg,
		Service:  svc,
		Start:    route,
		HomeRack: opts.homeRack,
		SoundFS:  os.DirFS(opts.soundDir),
		Settings: settingsData,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	ebiten.SetWindowSize(scenes.WindowWidth, scenes.WindowHeight)
	ebiten.SetWindowTitle("Closet Kingdom")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	if a.Settings().GetSettings().Fullscreen {
		ebiten.SetFullscreen(true)
	}

	if err := ebiten.RunGame(a); err != nil {
		return fmt.Errorf("game loop: %w", err)
	}
	return nil
}
