package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gonewx/closetkingdom/pkg/backend"
)

// fixedNow 可手动推进的时间源
type fixedNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fixedNow) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fixedNow) set(t time.Time) {
	f.mu.Lock()
	f.t = t
	f.mu.Unlock()
}

func TestFlags(t *testing.T) {
	s := NewMemory()
	key := backend.StageFlag("closet-1", 1, backend.FieldCleared).String()

	flags, err := s.GetFlags("u-1", []string{key})
	require.NoError(t, err)
	assert.Empty(t, flags, "absent key means not yet unlocked")

	require.NoError(t, s.SetFlag("u-1", key, "false"))
	require.NoError(t, s.SetFlag("u-1", key, backend.FlagTrue))

	flags, err = s.GetFlags("u-1", []string{key, "rack/closet-1/stage/2/cleared"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{key: "true"}, flags)

	// 其他用户互不影响
	flags, err = s.GetFlags("u-2", []string{key})
	require.NoError(t, err)
	assert.Empty(t, flags)

	assert.ErrorIs(t, s.SetFlag("u-1", " ", "x"), ErrInvalidArgument)
	_, err = s.GetFlags("", []string{key})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestAwardExperienceIsAdditive(t *testing.T) {
	s := NewMemory()

	total, err := s.AwardExperience("u-1", 30)
	require.NoError(t, err)
	assert.Equal(t, 30, total)

	total, err = s.AwardExperience("u-1", 45)
	require.NoError(t, err)
	assert.Equal(t, 75, total)

	_, err = s.AwardExperience("u-1", 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	p, err := s.Profile("u-1")
	require.NoError(t, err)
	assert.Equal(t, 75, p.Exp)
	assert.Len(t, p.ExpLog, 2)
}

func TestStatisticsAndItems(t *testing.T) {
	s := NewMemory()

	v, err := s.UpdateStatistics("u-1", "crowns", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	v, err = s.UpdateStatistics("u-1", "crowns", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	n, err := s.UpdateItem("u-1", "hanger")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.UpdateItem("u-1", "hanger")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.UpdateItem("u-1", "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = s.UpdateStatistics("u-1", "", 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestLeaderboardPeriods(t *testing.T) {
	clock := &fixedNow{}
	s := NewMemory(WithNow(clock.now))

	// 2026-10-19 是周一
	monday := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	clock.set(monday.AddDate(0, -1, 0)) // 上个月
	_, err := s.AwardExperience("old", 500)
	require.NoError(t, err)

	clock.set(monday.AddDate(0, 0, -3)) // 本月、上周
	_, err = s.AwardExperience("mid", 100)
	require.NoError(t, err)

	clock.set(monday)
	_, err = s.AwardExperience("new", 40)
	require.NoError(t, err)
	_, err = s.AwardExperience("mid", 10)
	require.NoError(t, err)
	require.NoError(t, s.Register("new", "Newcomer"))

	tests := []struct {
		period backend.Period
		want   []backend.LeaderboardEntry
	}{
		{backend.PeriodDaily, []backend.LeaderboardEntry{
			{UserID: "new", DisplayName: "Newcomer", Score: 40},
			{UserID: "mid", DisplayName: "mid", Score: 10},
		}},
		{backend.PeriodWeekly, []backend.LeaderboardEntry{
			{UserID: "new", DisplayName: "Newcomer", Score: 40},
			{UserID: "mid", DisplayName: "mid", Score: 10},
		}},
		{backend.PeriodMonthly, []backend.LeaderboardEntry{
			{UserID: "mid", DisplayName: "mid", Score: 110},
			{UserID: "new", DisplayName: "Newcomer", Score: 40},
		}},
		{backend.PeriodAll, []backend.LeaderboardEntry{
			{UserID: "old", DisplayName: "old", Score: 500},
			{UserID: "mid", DisplayName: "mid", Score: 110},
			{UserID: "new", DisplayName: "Newcomer", Score: 40},
		}},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			got, err := s.Leaderboard(tt.period, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	top, err := s.Leaderboard(backend.PeriodAll, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)

	_, err = s.Leaderboard("yearly", 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestPeriodStart(t *testing.T) {
	sunday := time.Date(2026, 10, 25, 23, 59, 0, 0, time.UTC)
	start, err := PeriodStart(backend.PeriodWeekly, sunday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), start)

	start, err = PeriodStart(backend.PeriodAll, sunday)
	require.NoError(t, err)
	assert.True(t, start.IsZero())
}

func TestLeaderboardTiesOrderedByUserID(t *testing.T) {
	s := NewMemory()
	for _, id := range []string{"zed", "amy", "bob"} {
		_, err := s.AwardExperience(id, 50)
		require.NoError(t, err)
	}
	got, err := s.Leaderboard(backend.PeriodAll, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"amy", "bob", "zed"}, []string{got[0].UserID, got[1].UserID, got[2].UserID})
}

func TestRacks(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", RacksPath))
	require.NoError(t, err)
	racks, err := ParseRacks(data)
	require.NoError(t, err)
	require.NotEmpty(t, racks)

	s := NewMemory()
	n, err := s.SeedRacks(racks)
	require.NoError(t, err)
	assert.Equal(t, len(racks), n)

	n, err = s.SeedRacks(racks)
	require.NoError(t, err)
	assert.Zero(t, n, "seeding twice must not overwrite")

	rack, err := s.GetRack("closet-1")
	require.NoError(t, err)
	assert.Equal(t, "Bedroom Closet", rack.Name)
	assert.Len(t, rack.Stages, 5)

	_, err = s.GetRack("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestParseRacksRejectsBadData(t *testing.T) {
	_, err := ParseRacks([]byte("racks:\n  - id: a\n  - id: a\n"))
	assert.Error(t, err)

	_, err = ParseRacks([]byte("racks:\n  - id: a\n    stages:\n      - number: 2\n"))
	assert.Error(t, err)
}

func TestConcurrentAwards(t *testing.T) {
	s := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.AwardExperience(fmt.Sprintf("u-%d", i%4), 5)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	board, err := s.Leaderboard(backend.PeriodAll, 0)
	require.NoError(t, err)
	require.Len(t, board, 4)
	for _, e := range board {
		assert.Equal(t, 25, e.Score)
	}
}

func TestGdataPersistence(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, ".local", "share"))

	cfg := Config{AppName: fmt.Sprintf("closetkingdom_store_test_%d", time.Now().UnixNano())}
	s := Open(cfg)
	if s.Degraded() {
		t.Skip("gdata unavailable in this environment")
	}

	require.NoError(t, s.Register("user/with/slashes", "Slashy"))
	_, err := s.AwardExperience("user/with/slashes", 33)
	require.NoError(t, err)
	require.NoError(t, s.SetFlag("user/with/slashes", "rack/closet-1/cleared", "true"))

	reopened := Open(cfg)
	require.False(t, reopened.Degraded())
	p, err := reopened.Profile("user/with/slashes")
	require.NoError(t, err)
	assert.Equal(t, "Slashy", p.DisplayName)
	assert.Equal(t, 33, p.Exp)
	assert.Equal(t, "true", p.Flags["rack/closet-1/cleared"])

	board, err := reopened.Leaderboard(backend.PeriodAll, 0)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, "Slashy", board[0].DisplayName)
}

func TestServiceHonoursContext(t *testing.T) {
	svc := NewService(NewMemory())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.AwardExperience(ctx, "u-1", 10)
	assert.ErrorIs(t, err, context.Canceled)

	total, err := svc.AwardExperience(context.Background(), "u-1", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, total)
}
