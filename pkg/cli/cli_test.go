package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gonewx/closetkingdom/pkg/config"
	"github.com/gonewx/closetkingdom/pkg/embedded"
	"github.com/gonewx/closetkingdom/pkg/screens"
	"github.com/gonewx/closetkingdom/pkg/server"
	"github.com/gonewx/closetkingdom/pkg/store"
)

func TestMain(m *testing.M) {
	embedded.Init(os.DirFS(filepath.Join("..", "..")))
	os.Exit(m.Run())
}

// execute 运行根命令并返回标准输出
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand_ListsSubcommands(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	for _, name := range []string{"play", "serve", "preview", "timeline"} {
		assert.Contains(t, out, name)
	}
}

func TestTimelineValidate_BundledFiles(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("..", "..", config.TimelineDir, "*.yaml"))
	require.NoError(t, err)
	require.Len(t, files, 4)

	out, err := execute(t, append([]string{"timeline", "validate"}, files...)...)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(out, "ok    "))
	assert.Contains(t, out, "stage-clear")
}

func TestTimelineValidate_ReportsEveryProblem(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	data := `name: broken
phases:
  - name: ""
    startOffsetMs: 0
  - name: count
    startOffsetMs: 100
    ramp:
      from: 0
      to: 10
      stepMs: 0
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	out, err := execute(t, "timeline", "validate", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1")
	assert.Contains(t, out, "FAIL  "+path)
	assert.Contains(t, out, "phase[0]")
	assert.Contains(t, out, "phase[1]")
}

func TestTimelineValidate_MissingFile(t *testing.T) {
	out, err := execute(t, "timeline", "validate", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, out, "FAIL")
}

func TestTimelineDump_StageClear(t *testing.T) {
	out, err := execute(t, "timeline", "dump", "stage-clear", "--set", "exp=12")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Greater(t, len(lines), 2)
	assert.True(t, strings.HasPrefix(lines[0], "T(ms)"))
	assert.True(t, strings.HasPrefix(lines[1], "0 "), "first boundary is t=0: %q", lines[1])
	assert.Contains(t, lines[1], "SOUND_STAGE_CLEAR")

	assert.Contains(t, out, "exp=12")
	assert.NotContains(t, out, "exp=13")
	assert.Contains(t, out, "SOUND_COUNT")
	assert.Contains(t, out, "SOUND_ITEM")

	last := lines[len(lines)-1]
	assert.True(t, strings.HasPrefix(last, "5200 "), "last boundary: %q", last)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(last), "true"))
}

func TestTimelineDump_FromFile(t *testing.T) {
	out, err := execute(t, "timeline", "dump", filepath.Join("..", "..", config.TimelineDir, "crown.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "crown")
}

func TestTimelineDump_UnknownScreen(t *testing.T) {
	_, err := execute(t, "timeline", "dump", "no-such-screen")
	assert.Error(t, err)
}

func TestRouteFromArgs(t *testing.T) {
	tests := []struct {
		args    []string
		want    screens.Route
		wantErr bool
	}{
		{nil, screens.Home(), false},
		{[]string{"/"}, screens.Home(), false},
		{[]string{"/rack/closet-1"}, screens.Route{Screen: screens.ScreenRackProgress, RackID: "closet-1"}, false},
		{[]string{"/rack/closet-1/stage/2/clear"}, screens.Route{Screen: screens.ScreenStageClear, RackID: "closet-1", Stage: 2}, false},
		{[]string{"/leaderboard"}, screens.Route{Screen: screens.ScreenLeaderboard}, false},
		{[]string{"/garage"}, screens.Route{}, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.args), func(t *testing.T) {
			got, err := routeFromArgs(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("默认配置", func(t *testing.T) {
		cfg, err := (&rootOptions{verbose: true}).loadConfig()
		require.NoError(t, err)
		assert.True(t, cfg.Verbose)
		assert.Equal(t, "guest", cfg.Backend.UserID)
	})

	t.Run("文件不存在", func(t *testing.T) {
		_, err := (&rootOptions{configPath: filepath.Join(t.TempDir(), "nope.yaml")}).loadConfig()
		assert.Error(t, err)
	})

	t.Run("读取文件", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "closetkingdom.yaml")
		require.NoError(t, os.WriteFile(path, []byte("backend:\n  userID: alice\nreward:\n  minExp: 10\n  maxExp: 20\n"), 0o644))
		cfg, err := (&rootOptions{configPath: path}).loadConfig()
		require.NoError(t, err)
		assert.Equal(t, "alice", cfg.Backend.UserID)
		assert.Equal(t, 10, cfg.Reward.MinExp)
		assert.False(t, cfg.Verbose)
	})
}

func TestNewService_Local(t *testing.T) {
	cfg := config.DefaultAppConfig()
	cfg.Storage.Memory = true

	svc, err := newService(cfg, true, zap.NewNop())
	require.NoError(t, err)

	rack, err := svc.GetRack(context.Background(), "u-1", "closet-1")
	require.NoError(t, err)
	assert.Equal(t, "closet-1", rack.ID)

	session := screens.NewSession(newFactory(cfg, 0), "u-1")
	preload(context.Background(), cfg, session, svc, "closet-1", zap.NewNop())
	_, ok := session.Rack("closet-1")
	assert.True(t, ok)

	// 不存在的货架只记录警告
	preload(context.Background(), cfg, session, svc, "garage", zap.NewNop())
	_, ok = session.Rack("garage")
	assert.False(t, ok)
}

func TestNewFactory_FixedExp(t *testing.T) {
	cfg := config.DefaultAppConfig()
	f := newFactory(cfg, 50)
	for i := 0; i < 10; i++ {
		assert.Equal(t, 50, f.DrawExp())
	}

	f = newFactory(cfg, 0)
	exp := f.DrawExp()
	assert.GreaterOrEqual(t, exp, cfg.Reward.MinExp)
	assert.LessOrEqual(t, exp, cfg.Reward.MaxExp)
}

func TestHomeFor(t *testing.T) {
	assert.Equal(t, screens.Route{Screen: screens.ScreenLeaderboard}, homeFor(""))
	assert.Equal(t, screens.Route{Screen: screens.ScreenRackProgress, RackID: "closet-1"}, homeFor("closet-1"))
}

func TestRunServer_GracefulShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := server.New(store.NewMemory())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runServer(ctx, ln, srv.Handler(), time.Second, zap.NewNop())
	}()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s/healthz", ln.Addr()))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	client.CloseIdleConnections()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	_, err = client.Get(fmt.Sprintf("http://%s/healthz", ln.Addr()))
	assert.Error(t, err, "listener must be closed after shutdown")
}

func TestLoadConfig_ExampleFile(t *testing.T) {
	cfg, err := (&rootOptions{configPath: filepath.Join("..", "..", "closetkingdom.example.yaml")}).loadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.Server.SeedRacks)
	assert.Len(t, cfg.Sounds, 7)
}
