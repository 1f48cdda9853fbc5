// Package main provides a verification tool for the staged clear screens.
//
// It mounts a single screen against an in-memory store so the timeline,
// sounds and button behaviour can be checked without a running backend.
//
// Usage:
//
//	go run cmd/verify_clear_screen/main.go [flags]
//
// Flags:
//
//	--screen <id>    Screen to mount: stage-clear, dungeon-clear, endroll, crown (default: "stage-clear")
//	--rack <id>      Rack ID (default: "closet-1")
//	--stage <n>      Stage number for stage-clear (default: 1)
//	--exp <n>        EXP to award, 0 draws a random amount
//	--root <dir>     Repository root containing data/ (default: ".")
//	--verbose        Enable verbose logging
//
// Controls:
//
//	Space/Enter/Click  - Press the screen button once it is enabled
//	R                  - Restart the screen from t=0
//	Q                  - Quit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"go.uber.org/zap"

	"github.com/gonewx/closetkingdom/internal/logging"
	"github.com/gonewx/closetkingdom/pkg/embedded"
	"github.com/gonewx/closetkingdom/pkg/scenes"
	"github.com/gonewx/closetkingdom/pkg/screens"
	"github.com/gonewx/closetkingdom/pkg/store"
)

var (
	screenFlag  = flag.String("screen", "stage-clear", "Screen to mount (stage-clear, dungeon-clear, endroll, crown)")
	rackFlag    = flag.String("rack", "closet-1", "Rack ID")
	stageFlag   = flag.Int("stage", 1, "Stage number for stage-clear")
	expFlag     = flag.Int("exp", 0, "EXP to award, 0 draws a random amount")
	rootFlag    = flag.String("root", ".", "Repository root containing data/")
	verboseFlag = flag.Bool("verbose", false, "Enable verbose logging")
)

var errQuit = errors.New("quit")

// navLog 记录按钮导航，验证工具不真正切换画面
type navLog struct {
	logger *zap.Logger

	mu   sync.Mutex
	last string
}

func (n *navLog) Navigate(r screens.Route) {
	n.set(r.Path())
	n.logger.Info("navigate", zap.String("route", r.Path()))
}

func (n *navLog) set(path string) {
	n.mu.Lock()
	n.last = path
	n.mu.Unlock()
}

func (n *navLog) get() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}

// ClearScreenVerifyGame implements ebiten.Game for a single clear screen
type ClearScreenVerifyGame struct {
	route   screens.Route
	factory *screens.Factory
	session *screens.Session
	deps    scenes.SceneDeps
	nav     *navLog
	scene   *scenes.ScreenScene
	elapsed float64
}

// NewClearScreenVerifyGame mounts the screen against a fresh in-memory store
func NewClearScreenVerifyGame(route screens.Route, logger *zap.Logger) (*ClearScreenVerifyGame, error) {
	st := store.NewMemory(store.WithLogger(logger))
	racks, err := store.LoadEmbeddedRacks()
	if err != nil {
		return nil, err
	}
	if _, err := st.SeedRacks(racks); err != nil {
		return nil, err
	}
	svc := store.NewService(st)

	factory := screens.NewFactory()
	session := screens.NewSession(factory, "verifier")
	if route.RackID != "" {
		if _, err := session.Preload(context.Background(), svc, route.RackID); err != nil {
			logger.Warn("rack not found, titles fall back to defaults", zap.Error(err))
		}
	}

	fonts, err := scenes.LoadFonts()
	if err != nil {
		logger.Warn("font load failed", zap.Error(err))
	}

	nav := &navLog{logger: logger}
	g := &ClearScreenVerifyGame{
		route:   route,
		factory: factory,
		session: session,
		nav:     nav,
		deps: scenes.SceneDeps{
			Session:   session,
			Service:   svc,
			Navigator: nav,
			Fonts:     fonts,
			Logger:    logger,
		},
	}
	if err := g.restart(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *ClearScreenVerifyGame) restart() error {
	if g.scene != nil {
		g.scene.OnExit()
	}
	params := g.session.Params(g.route)
	if *expFlag > 0 {
		params.Values = map[string]int{"exp": *expFlag}
	}
	adapter, err := g.factory.New(g.route, params)
	if err != nil {
		return err
	}
	g.scene = scenes.NewScreenScene(adapter, g.deps)
	g.elapsed = 0
	g.nav.set("")
	return nil
}

// Update advances the screen
func (g *ClearScreenVerifyGame) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyQ) {
		g.scene.OnExit()
		return errQuit
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		if err := g.restart(); err != nil {
			return err
		}
	}

	dt := 1.0 / 60.0
	g.elapsed += dt
	g.scene.Update(dt)
	return nil
}

// Draw renders the screen and a debug line
func (g *ClearScreenVerifyGame) Draw(screen *ebiten.Image) {
	g.scene.Draw(screen)

	v := g.scene.Controller().View()
	info := []string{
		fmt.Sprintf("t=%.2fs progress=%.0f%%", g.elapsed, v.Progress*100),
		"R restart | Q quit",
	}
	if next := g.nav.get(); next != "" {
		info = append(info, "next: "+next)
	}
	ebitenutil.DebugPrintAt(screen, strings.Join(info, "\n"), scenes.WindowWidth-200, 4)
}

// Layout returns the logical screen size
func (g *ClearScreenVerifyGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return scenes.WindowWidth, scenes.WindowHeight
}

func main() {
	flag.Parse()

	logger := logging.Must(logging.Options{Verbose: *verboseFlag, Console: true})
	defer logger.Sync()

	embedded.Init(os.DirFS(*rootFlag))

	route := screens.Route{Screen: screens.ScreenID(*screenFlag), RackID: *rackFlag}
	if route.Screen == screens.ScreenStageClear {
		route.Stage = *stageFlag
	}

	game, err := NewClearScreenVerifyGame(route, logger)
	if err != nil {
		logger.Fatal("failed to create verifier", zap.Error(err))
	}

	ebiten.SetWindowSize(scenes.WindowWidth, scenes.WindowHeight)
	ebiten.SetWindowTitle(fmt.Sprintf("Clear Screen Verifier - %s", route))
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	if err := ebiten.RunGame(game); err != nil && !errors.Is(err, errQuit) {
		logger.Fatal("game error", zap.Error(err))
	}
	logger.Info("verifier closed")
}
