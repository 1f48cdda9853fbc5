package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gonewx/closetkingdom/pkg/embedded"
	"github.com/gonewx/closetkingdom/pkg/scenes"
	"github.com/gonewx/closetkingdom/pkg/screens"
	"github.com/gonewx/closetkingdom/pkg/store"
)

func TestMain(m *testing.M) {
	embedded.Init(os.DirFS(filepath.Join("..", "..")))
	os.Exit(m.Run())
}

func newTestService(t *testing.T) *store.Service {
	t.Helper()
	st := store.NewMemory()
	racks, err := store.LoadEmbeddedRacks()
	require.NoError(t, err)
	_, err = st.SeedRacks(racks)
	require.NoError(t, err)
	return store.NewService(st)
}

func TestNewAppOpensHomeRack(t *testing.T) {
	a, err := NewApp(Config{
		Service:      newTestService(t),
		HomeRack:     "closet-1",
		DisableAudio: true,
	})
	require.NoError(t, err)
	defer a.Close()

	sm := a.GetSceneManager()
	assert.Equal(t, screens.Route{Screen: screens.ScreenRackProgress, RackID: "closet-1"}, sm.CurrentRoute())
	_, ok := sm.GetCurrentScene().(*scenes.ScreenScene)
	assert.True(t, ok)

	require.NoError(t, a.Update())
	assert.Equal(t, "closet-1", a.Settings().GetSettings().LastRack)

	w, h := a.Layout(1920, 1080)
	assert.Equal(t, scenes.WindowWidth, w)
	assert.Equal(t, scenes.WindowHeight, h)
}

func TestNewAppExplicitStart(t *testing.T) {
	start := screens.Route{Screen: screens.ScreenStageClear, RackID: "shoe-rack", Stage: 2}
	a, err := NewApp(Config{
		Service:      newTestService(t),
		Start:        start,
		DisableAudio: true,
	})
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, start, a.GetSceneManager().CurrentRoute())

	// 没有指定首页时，首页是启动货架
	a.GetSceneManager().Navigate(screens.Home())
	require.NoError(t, a.Update())
	assert.Equal(t, screens.Route{Screen: screens.ScreenRackProgress, RackID: "shoe-rack"}, a.GetSceneManager().CurrentRoute())
}

func TestNewAppWithoutRackFallsBackToLeaderboard(t *testing.T) {
	a, err := NewApp(Config{Service: newTestService(t), DisableAudio: true})
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, screens.ScreenLeaderboard, a.GetSceneManager().CurrentRoute().Screen)
}

func TestNewAppErrors(t *testing.T) {
	_, err := NewApp(Config{DisableAudio: true})
	assert.Error(t, err)

	_, err = NewApp(Config{
		Service:      newTestService(t),
		Start:        screens.Route{Screen: screens.ScreenID("unknown")},
		DisableAudio: true,
	})
	assert.Error(t, err)
}
