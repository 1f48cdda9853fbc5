package screens

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gonewx/closetkingdom/pkg/backend"
	"github.com/gonewx/closetkingdom/pkg/config"
	"github.com/gonewx/closetkingdom/pkg/sequencer"
	"github.com/gonewx/closetkingdom/pkg/timeline"
)

// harness 一个画面的测试环境
type harness struct {
	clock *sequencer.FrameClock
	svc   *fakeService
	nav   *recordingNavigator
	audio *recordingAudio
	ctrl  *Controller
}

func newHarness(t *testing.T, route Route, p Params, opts ...FactoryOption) *harness {
	t.Helper()
	h := &harness{
		clock: sequencer.NewFrameClock(),
		svc:   newFakeService(),
		nav:   &recordingNavigator{},
		audio: &recordingAudio{},
	}
	opts = append([]FactoryOption{WithSeed(7)}, opts...)
	adapter, err := NewFactory(opts...).New(route, p)
	require.NoError(t, err)
	h.ctrl = NewController(adapter, Deps{
		Clock:     h.clock,
		Service:   h.svc,
		Navigator: h.nav,
		Audio:     h.audio,
	})
	return h
}

func stageClearRoute() Route {
	return Route{Screen: ScreenStageClear, RackID: "closet-1", Stage: 1}
}

func stageClearParams() Params {
	return Params{UserID: "u-1", Rack: testRack(), Values: map[string]int{"exp": 45}}
}

func lineTexts(v View) []string {
	out := make([]string, 0, len(v.Lines))
	for _, l := range v.Lines {
		out = append(out, l.Text)
	}
	return out
}

func TestStageClearRenderIsPureFunctionOfState(t *testing.T) {
	adapter := NewStageClear(Params{RackID: "closet-1", Stage: 1, Rack: testRack(), Values: map[string]int{"exp": 45}}, EmbeddedTimelines)
	spec, err := adapter.Timeline()
	require.NoError(t, err)
	plan, err := timeline.Compile(spec)
	require.NoError(t, err)
	assert.Equal(t, int64(5200), plan.End())

	tests := []struct {
		at      int64
		counter *Counter
		item    bool
		button  bool
	}{
		{at: 0},
		{at: 1200, counter: &Counter{Label: "EXP", Value: 0, Target: 45}},
		{at: 2000, counter: &Counter{Label: "EXP", Value: 20, Target: 45}},
		{at: 3000, counter: &Counter{Label: "EXP", Value: 45, Target: 45}},
		{at: 4000, counter: &Counter{Label: "EXP", Value: 45, Target: 45}, item: true},
		{at: 5200, counter: &Counter{Label: "EXP", Value: 45, Target: 45}, item: true, button: true},
	}
	for _, tt := range tests {
		st := plan.At(tt.at)
		v := adapter.Render(st)
		assert.Equal(t, v, adapter.Render(st), "render must be deterministic at %d", tt.at)

		assert.Equal(t, "STAGE CLEAR!", v.Title)
		assert.Equal(t, "Stage 1: Sort the tops", v.Lines[0].Text)
		assert.Equal(t, tt.counter, v.Counter, "counter at %d", tt.at)
		assert.Equal(t, tt.item, strings.Contains(strings.Join(lineTexts(v), "\n"), "Trash Bag"), "item at %d", tt.at)
		if tt.button {
			require.NotNil(t, v.Button)
			assert.Equal(t, "Next", v.Button.Label)
		} else {
			assert.Nil(t, v.Button, "button at %d", tt.at)
		}
	}
}

func TestStageClearFlow(t *testing.T) {
	h := newHarness(t, stageClearRoute(), stageClearParams())
	require.NoError(t, h.ctrl.Mount())

	v := h.ctrl.View()
	assert.Equal(t, "STAGE CLEAR!", v.Title)
	assert.Nil(t, v.Button)
	assert.ErrorIs(t, h.ctrl.Press(context.Background()), ErrButtonDisabled, "button is only available in the terminal phase")
	assert.Empty(t, h.svc.callLog())

	h.clock.Advance(3 * time.Second)
	v = h.ctrl.View()
	require.NotNil(t, v.Counter)
	assert.Equal(t, 45, v.Counter.Value)
	assert.InDelta(t, 3000.0/5200.0, v.Progress, 1e-9)

	h.clock.Advance(3 * time.Second)
	v = h.ctrl.View()
	require.NotNil(t, v.Button)
	assert.True(t, v.Button.Enabled)
	assert.Equal(t, 1.0, v.Progress)
	assert.Equal(t, []string{"SOUND_STAGE_CLEAR", "SOUND_COUNT", "SOUND_ITEM"}, h.audio.all())
	assert.Zero(t, h.clock.Pending())

	require.NoError(t, h.ctrl.Press(context.Background()))
	assert.Equal(t, []string{
		"awardExperience:45",
		"updateItem:Trash Bag",
		"setFlag:rack/closet-1/stage/1/cleared=true",
	}, h.svc.callLog())
	assert.Equal(t, []Route{{Screen: ScreenRackProgress, RackID: "closet-1"}}, h.nav.all())
}

// exp 超过计数阶段能走完的步数时，终点计数器仍等于实际发放的 EXP
func TestStageClearCounterReachesTargetForLargeExp(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		opts   []FactoryOption
		want   int
	}{
		{
			name:   "固定 exp",
			params: Params{UserID: "u-1", Rack: testRack(), Values: map[string]int{"exp": 100}},
			want:   100,
		},
		{
			name:   "奖励区间上限",
			params: Params{UserID: "u-1", Rack: testRack()},
			opts:   []FactoryOption{WithRewardRange(500, 500)},
			want:   500,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, stageClearRoute(), tt.params, tt.opts...)
			require.NoError(t, h.ctrl.Mount())

			h.clock.Advance(3900 * time.Millisecond)
			v := h.ctrl.View()
			require.NotNil(t, v.Counter)
			assert.Less(t, v.Counter.Value, tt.want)

			h.clock.Advance(10 * time.Second)
			v = h.ctrl.View()
			require.NotNil(t, v.Button)
			require.NotNil(t, v.Counter)
			assert.Equal(t, tt.want, v.Counter.Target)
			assert.Equal(t, v.Counter.Target, v.Counter.Value)

			require.NoError(t, h.ctrl.Press(context.Background()))
			assert.Contains(t, h.svc.callLog(), fmt.Sprintf("awardExperience:%d", tt.want))
		})
	}
}

func TestPressFailureKeepsButtonAndRetriesRemainingCalls(t *testing.T) {
	h := newHarness(t, stageClearRoute(), stageClearParams())
	require.NoError(t, h.ctrl.Mount())
	h.clock.Advance(10 * time.Second)

	h.svc.failNext("setFlag", &backend.NetworkError{Op: "setFlag", Err: errors.New("connection refused")})

	err := h.ctrl.Press(context.Background())
	var ne *backend.NetworkError
	require.ErrorAs(t, err, &ne)

	v := h.ctrl.View()
	require.NotNil(t, v.Button)
	assert.True(t, v.Button.Enabled, "button stays enabled for retry")
	assert.False(t, v.Busy)
	assert.Contains(t, v.Feedback, "Could not reach the server")
	assert.Empty(t, h.nav.all(), "no navigation on failure")

	require.NoError(t, h.ctrl.Press(context.Background()))
	assert.Equal(t, []string{
		"awardExperience:45",
		"updateItem:Trash Bag",
		"setFlag:rack/closet-1/stage/1/cleared=true",
		"setFlag:rack/closet-1/stage/1/cleared=true",
	}, h.svc.callLog(), "EXP is not awarded twice on retry")
	assert.Empty(t, h.ctrl.View().Feedback)
	assert.Len(t, h.nav.all(), 1)
}

func TestPressTimeoutSurfacesFeedback(t *testing.T) {
	h := newHarness(t, Route{Screen: ScreenCrown, RackID: "closet-1"}, Params{UserID: "u-1"})
	hang := &hangingService{fakeService: h.svc, release: make(chan struct{})}
	defer close(hang.release)
	h.ctrl.deps.Service = backend.WithTimeout(hang, 20*time.Millisecond)

	require.NoError(t, h.ctrl.Mount())
	h.clock.Advance(10 * time.Second)

	err := h.ctrl.Press(context.Background())
	var te *backend.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, h.ctrl.View().Feedback, "took too long")
	assert.Empty(t, h.nav.all())
}

// hangingService UpdateStatistics 一直挂起
type hangingService struct {
	*fakeService
	release chan struct{}
}

func (h *hangingService) UpdateStatistics(ctx context.Context, userID, name string, delta int) error {
	<-h.release
	return nil
}

func TestUnmountCancelsPendingTimers(t *testing.T) {
	h := newHarness(t, stageClearRoute(), stageClearParams())
	require.NoError(t, h.ctrl.Mount())
	h.clock.Advance(1300 * time.Millisecond)
	before := h.ctrl.View()
	require.NotZero(t, h.clock.Pending())

	h.ctrl.Unmount()
	h.ctrl.Unmount()
	assert.Zero(t, h.clock.Pending())

	h.clock.Advance(10 * time.Second)
	assert.Equal(t, before, h.ctrl.View(), "no state change after unmount")
	assert.ErrorIs(t, h.ctrl.Press(context.Background()), ErrNotMounted)
	assert.Equal(t, []string{"SOUND_STAGE_CLEAR", "SOUND_COUNT"}, h.audio.all())
}

func TestInvalidTimelineFallsBackToStaticView(t *testing.T) {
	broken := func(ScreenID) (*config.TimelineConfig, error) {
		return &config.TimelineConfig{
			Name: "broken",
			Phases: []config.PhaseConfig{
				{Name: "a", StartOffsetMs: 100},
				{Name: "a", StartOffsetMs: 0},
			},
		}, nil
	}
	h := newHarness(t, stageClearRoute(), stageClearParams(), WithTimelineSource(broken))

	err := h.ctrl.Mount()
	var verr *timeline.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, h.clock.Pending(), "no partial timers")

	v := h.ctrl.View()
	require.NotNil(t, v.Button)
	assert.True(t, v.Button.Enabled)
	require.NotNil(t, v.Counter)
	assert.Equal(t, 45, v.Counter.Value)

	require.NoError(t, h.ctrl.Press(context.Background()))
	assert.Len(t, h.nav.all(), 1)
}

func TestMissingTimelineFallsBackToStaticView(t *testing.T) {
	missing := func(ScreenID) (*config.TimelineConfig, error) {
		return nil, errors.New("no such file")
	}
	h := newHarness(t, Route{Screen: ScreenEndroll, RackID: "closet-1"}, Params{}, WithTimelineSource(missing))
	require.Error(t, h.ctrl.Mount())

	v := h.ctrl.View()
	assert.Contains(t, lineTexts(v), "FIN")
	require.NotNil(t, v.Button)
}

func TestMountTwiceIsStateError(t *testing.T) {
	h := newHarness(t, stageClearRoute(), stageClearParams())
	require.NoError(t, h.ctrl.Mount())
	var se *sequencer.StateError
	require.ErrorAs(t, h.ctrl.Mount(), &se)

	h.ctrl.Unmount()
	require.NoError(t, h.ctrl.Mount(), "remount after unmount starts a fresh run")
	assert.Equal(t, []string{"SOUND_STAGE_CLEAR", "SOUND_STAGE_CLEAR"}, h.audio.all())
}

func TestOnChangeReceivesEveryTick(t *testing.T) {
	h := newHarness(t, Route{Screen: ScreenEndroll, RackID: "closet-1"}, Params{})
	var views []View
	h.ctrl.OnChange(func(v View) { views = append(views, v) })

	require.NoError(t, h.ctrl.Mount())
	h.clock.Advance(9 * time.Second)

	// t=0, 2000, 4000, 6000, 8000
	require.Len(t, views, 5)
	assert.Len(t, views[0].Lines, 1)
	assert.Len(t, views[2].Lines, 3)
	last := views[4]
	assert.Contains(t, lineTexts(last), "FIN")
	require.NotNil(t, last.Button)

	require.NoError(t, h.ctrl.Press(context.Background()))
	assert.Equal(t, []Route{Home()}, h.nav.all())
	assert.Empty(t, h.svc.callLog(), "endroll has no backend calls")
}

func TestEndrollRevealsOneLinePerPhase(t *testing.T) {
	e := NewEndroll(Params{}, EmbeddedTimelines)
	spec, err := e.Timeline()
	require.NoError(t, err)
	plan, err := timeline.Compile(spec)
	require.NoError(t, err)

	v := e.Render(plan.At(4000))
	require.Len(t, v.Lines, 3)
	assert.Equal(t, StyleMuted, v.Lines[0].Style)
	assert.Equal(t, StyleNormal, v.Lines[2].Style)
	assert.Nil(t, v.Button)
}

func TestDungeonClearFlow(t *testing.T) {
	h := newHarness(t, Route{Screen: ScreenDungeonClear, RackID: "closet-1"}, Params{UserID: "u-1", Rack: testRack()})
	require.NoError(t, h.ctrl.Mount())
	h.clock.Advance(10 * time.Second)

	v := h.ctrl.View()
	assert.Equal(t, "DUNGEON CLEAR!", v.Title)
	require.NotNil(t, v.Counter)
	assert.Equal(t, Counter{Label: "Stages cleared", Value: 3, Target: 3}, *v.Counter)
	assert.Contains(t, lineTexts(v), "New title: 👑 Closet Conqueror")
	assert.Equal(t, []string{"SOUND_DUNGEON_CLEAR", "SOUND_TITLE"}, h.audio.all())

	require.NoError(t, h.ctrl.Press(context.Background()))
	assert.Equal(t, []string{
		"setFlag:rack/closet-1/cleared=true",
		"setFlag:rack/closet-1/title=Closet Conqueror",
	}, h.svc.callLog())
	assert.Equal(t, []Route{{Screen: ScreenEndroll, RackID: "closet-1"}}, h.nav.all())
}

func TestCrownFlow(t *testing.T) {
	h := newHarness(t, Route{Screen: ScreenCrown, RackID: "closet-1"}, Params{UserID: "u-1", Rack: testRack()})
	require.NoError(t, h.ctrl.Mount())
	h.clock.Advance(10 * time.Second)

	v := h.ctrl.View()
	require.NotNil(t, v.Counter)
	assert.Equal(t, 10, v.Counter.Value)
	assert.Equal(t, "Leaderboard", v.Button.Label)

	require.NoError(t, h.ctrl.Press(context.Background()))
	assert.Equal(t, []string{"updateStatistics:crowns+1"}, h.svc.callLog())
	assert.Equal(t, 1, h.svc.stats[StatCrowns])
	assert.Equal(t, []Route{{Screen: ScreenLeaderboard}}, h.nav.all())
}
