package sequencer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/gonewx/closetkingdom/pkg/timeline"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// safeRecorder 并发安全的 tick 收集器（WallClock 在调度 goroutine 中回调）
type safeRecorder struct {
	mu    sync.Mutex
	ticks []timeline.State
	done  chan struct{}
	once  sync.Once
}

func newSafeRecorder() *safeRecorder {
	return &safeRecorder{done: make(chan struct{})}
}

func (r *safeRecorder) onTick(st timeline.State) {
	r.mu.Lock()
	r.ticks = append(r.ticks, st)
	r.mu.Unlock()
	if st.Done {
		r.once.Do(func() { close(r.done) })
	}
}

func (r *safeRecorder) snapshot() []timeline.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]timeline.State{}, r.ticks...)
}

// TestWallClockRunsTimelineToEnd 测试真实时钟驱动时间轴到终点
func TestWallClockRunsTimelineToEnd(t *testing.T) {
	clock := NewWallClock()
	defer clock.Close()

	seq := New(clock)
	rec := newSafeRecorder()
	spec := timeline.Spec{Phases: []timeline.Phase{
		{Name: "clear", StartOffsetMs: 0, DurationMs: timeline.Ms(20)},
		{Name: "exp", StartOffsetMs: 20, Ramp: &timeline.Ramp{From: 0, To: 5, StepMs: 5}},
		{Name: "complete", StartOffsetMs: 60},
	}}
	require.NoError(t, seq.Start(spec, rec.onTick))

	select {
	case <-rec.done:
	case <-time.After(2 * time.Second):
		t.Fatal("时间轴未在预期时间内结束")
	}

	ticks := rec.snapshot()
	for i := 1; i < len(ticks); i++ {
		assert.Greater(t, ticks[i].ElapsedMs, ticks[i-1].ElapsedMs)
	}
	final := ticks[len(ticks)-1]
	assert.Equal(t, []string{"complete"}, final.Active)
	v, _ := final.RampValue("exp")
	assert.Equal(t, 5, v)
}

// TestWallClockStopPreventsFurtherTicks 测试 Stop 后等待超过剩余偏移也不会有新的 tick
func TestWallClockStopPreventsFurtherTicks(t *testing.T) {
	clock := NewWallClock()
	defer clock.Close()

	seq := New(clock)
	rec := newSafeRecorder()
	spec := timeline.Spec{Phases: []timeline.Phase{
		{Name: "a", StartOffsetMs: 0},
		{Name: "b", StartOffsetMs: 150},
	}}
	require.NoError(t, seq.Start(spec, rec.onTick))
	seq.Stop()

	time.Sleep(300 * time.Millisecond)
	assert.Len(t, rec.snapshot(), 1)
}

// TestWallClockCloseDropsPending 测试 Close 丢弃未到期的定时器并退出 goroutine
func TestWallClockCloseDropsPending(t *testing.T) {
	clock := NewWallClock()
	fired := make(chan struct{}, 1)
	clock.AfterFunc(time.Hour, func() { fired <- struct{}{} })
	clock.Close()
	clock.Close()

	select {
	case <-fired:
		t.Fatal("Close 之后不应执行回调")
	default:
	}
}
