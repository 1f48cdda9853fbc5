package screens

import (
	"context"
	"fmt"

	"github.com/gonewx/closetkingdom/pkg/backend"
	"github.com/gonewx/closetkingdom/pkg/timeline"
)

// StatCrowns 王冠数量统计项
const StatCrowns = "crowns"

var crownOrder = []string{"crown", "level", "complete"}

// Crown 王冠获得画面
// crown → level（等级计数）→ complete
type Crown struct {
	base
}

// NewCrown 创建王冠画面
func NewCrown(p Params, source TimelineSource) *Crown {
	return &Crown{base: base{screen: ScreenCrown, params: p, source: source}}
}

func (c *Crown) Render(st timeline.State) View {
	v := View{Screen: c.screen}
	idx := reached(st, crownOrder)
	if idx < 0 {
		return v
	}

	v.Title = "A CROWN FOR YOU"
	v.Lines = append(v.Lines, Line{Text: fmt.Sprintf("👑 %s is spotless", c.rackName()), Style: StyleHeading})
	if lvl, ok := st.RampValue("level"); ok {
		v.Counter = &Counter{Label: "Level", Value: lvl, Target: c.value("level", lvl)}
	}
	if idx >= indexOf(crownOrder, "complete") {
		v.Button = &Button{Label: "Leaderboard", Enabled: true}
	}
	return v
}

func (c *Crown) Static() View {
	st := timeline.State{Active: []string{"complete"}, Done: true}
	if lvl, ok := c.params.Values["level"]; ok {
		st.RampValues = map[string]int{"level": lvl}
	}
	return c.Render(st)
}

// Action 王冠数 +1，然后打开排行榜
func (c *Crown) Action() Action {
	userID := c.params.UserID
	return Action{
		Calls: []Call{{Name: "updateStatistics", Do: func(ctx context.Context, svc backend.UserDataService) error {
			return svc.UpdateStatistics(ctx, userID, StatCrowns, 1)
		}}},
		Next: Route{Screen: ScreenLeaderboard},
	}
}
