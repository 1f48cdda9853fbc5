package screens

import (
	"context"
	"fmt"
	"sync"

	"github.com/gonewx/closetkingdom/pkg/backend"
	"github.com/gonewx/closetkingdom/pkg/timeline"
)

// periodTitles 周期 → 标题
var periodTitles = NewTable(map[backend.Period]string{
	backend.PeriodDaily:   "Today's tidiest",
	backend.PeriodWeekly:  "This week's tidiest",
	backend.PeriodMonthly: "This month's tidiest",
	backend.PeriodAll:     "Hall of fame",
}, "Leaderboard")

// Leaderboard 排行榜画面，挂载时读取
type Leaderboard struct {
	params Params

	mu      sync.Mutex
	entries []backend.LeaderboardEntry
	loaded  bool
	err     error
}

// NewLeaderboard 创建排行榜画面
func NewLeaderboard(p Params) *Leaderboard {
	if p.Period == "" {
		p.Period = backend.PeriodWeekly
	}
	return &Leaderboard{params: p}
}

func (l *Leaderboard) Screen() ScreenID { return ScreenLeaderboard }

func (l *Leaderboard) Timeline() (timeline.Spec, error) {
	return timeline.Spec{Name: string(ScreenLeaderboard)}, nil
}

// Load 读取排行榜，失败时保留之前的结果
func (l *Leaderboard) Load(ctx context.Context, svc backend.UserDataService) error {
	entries, err := svc.GetLeaderboard(ctx, l.params.Period)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.err = err
		return fmt.Errorf("load leaderboard %s: %w", l.params.Period, err)
	}
	l.entries = entries
	l.loaded = true
	l.err = nil
	return nil
}

func (l *Leaderboard) Render(timeline.State) View {
	l.mu.Lock()
	defer l.mu.Unlock()

	v := View{Screen: ScreenLeaderboard, Title: periodTitles.Get(l.params.Period)}
	switch {
	case !l.loaded && l.err == nil:
		v.Lines = append(v.Lines, Line{Text: "Loading...", Style: StyleMuted})
		return v
	case l.loaded && len(l.entries) == 0:
		v.Lines = append(v.Lines, Line{Text: "Nobody has scored yet.", Style: StyleMuted})
	}

	for i, e := range l.entries {
		style := StyleNormal
		if e.UserID == l.params.UserID {
			style = StyleEmphasis
		}
		v.Lines = append(v.Lines, Line{Text: fmt.Sprintf("%2d. %-20s %6d", i+1, e.DisplayName, e.Score), Style: style})
	}

	if l.err != nil {
		v.Lines = append(v.Lines, Line{Text: backend.UserMessage(l.err), Style: StyleError})
		v.Button = &Button{Label: "Retry", Enabled: true}
		return v
	}
	v.Button = &Button{Label: "Home", Enabled: true}
	return v
}

func (l *Leaderboard) Static() View {
	return l.Render(timeline.State{Done: true})
}

func (l *Leaderboard) Action() Action {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil || !l.loaded {
		return Action{Reload: true}
	}
	return Action{Next: Home()}
}
