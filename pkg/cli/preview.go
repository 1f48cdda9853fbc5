package cli

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/gonewx/closetkingdom/pkg/screens"
	"github.com/gonewx/closetkingdom/pkg/sequencer"
	"github.com/gonewx/closetkingdom/pkg/tui"
)

type previewOptions struct {
	exp    int
	remote bool
	rack   string
	userID string
}

func newPreviewCommand(root *rootOptions) *cobra.Command {
	opts := &previewOptions{}

	cmd := &cobra.Command{
		Use:   "preview [route]",
		Short: "Play a screen in the terminal",
		Long: `Play a screen's timeline in the terminal.

By default the preview runs against an in-memory store seeded with the demo
racks, so button presses never touch real data. Use --remote to talk to the
configured backend instead.

Keys: enter/space press, r restart, l leaderboard, h home, q quit.`,
		Example: `  closetkingdom preview /rack/closet-1/stage/2/clear --exp 50
  closetkingdom preview /rack/closet-1/crown`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			if !opts.remote {
				cfg.Storage.Memory = true
			}

			logger := root.newLogger(cfg, true)
			defer func() { _ = logger.Sync() }()

			svc, err := newService(cfg, !opts.remote, logger)
			if err != nil {
				return err
			}

			rack := opts.rack
			if rack == "" {
				rack = route.RackID
			}
			session := screens.NewSession(newFactory(cfg, opts.exp), cfg.Backend.UserID)
			preload(cmd.Context(), cfg, session, svc, rack, logger)

			clock := sequencer.NewWallClock()
			defer clock.Close()

			return tui.Run(cmd.Context(), tui.Options{
				Session: session,
				Service: svc,
				Clock:   clock,
				Start:   route,
				Home:    homeFor(rack),
				Logger:  logger,
			}, tea.WithInput(cmd.InOrStdin()), tea.WithOutput(cmd.OutOrStdout()))
		},
	}

	cmd.Flags().IntVar(&opts.exp, "exp", 0, "Fixed EXP reward for stage clear (0 draws from reward.minExp..maxExp)")
	cmd.Flags().BoolVar(&opts.remote, "remote", false, "Use the configured HTTP backend instead of an in-memory store")
	cmd.Flags().StringVar(&opts.rack, "rack", "", "Rack shown as home (default: the route's rack)")
	cmd.Flags().StringVar(&opts.userID, "user", "", "User ID (overrides backend.userID)")

	return cmd
}
