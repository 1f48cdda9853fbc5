package screens

import (
	"context"
	"fmt"

	"github.com/gonewx/closetkingdom/pkg/backend"
	"github.com/gonewx/closetkingdom/pkg/timeline"
)

// Item 通关获得的道具
type Item struct {
	Name  string
	Emoji string
}

// stageItems 关卡类型 → 道具
var stageItems = NewTable(map[string]Item{
	"discard": {Name: "Trash Bag", Emoji: "🗑️"},
	"storage": {Name: "Storage Box", Emoji: "📦"},
	"label":   {Name: "Label Maker", Emoji: "🏷️"},
}, Item{Name: "Mystery Box", Emoji: "🎁"})

// stageFlavor 关卡类型 → 一句话
var stageFlavor = NewTable(map[string]string{
	"discard": "Less stuff, more space.",
	"storage": "Everything has a home now.",
	"label":   "Future you will thank you.",
}, "Another corner of the kingdom is tidy.")

var stageClearOrder = []string{"clear", "exp", "item", "complete"}

// StageClear 关卡通关画面
// clear → exp（0 → 本次奖励的 EXP）→ item → complete
type StageClear struct {
	base
}

// NewStageClear 创建关卡通关画面
func NewStageClear(p Params, source TimelineSource) *StageClear {
	return &StageClear{base: base{screen: ScreenStageClear, params: p, source: source}}
}

func (s *StageClear) exp() int {
	return s.value("exp", 0)
}

func (s *StageClear) kind() string {
	if s.params.Rack != nil {
		if st, ok := s.params.Rack.Stage(s.params.Stage); ok {
			return st.Kind
		}
	}
	return ""
}

// Item 本次获得的道具
func (s *StageClear) Item() Item {
	return stageItems.Get(s.kind())
}

func (s *StageClear) Render(st timeline.State) View {
	v := View{Screen: s.screen}
	idx := reached(st, stageClearOrder)
	if idx < 0 {
		return v
	}

	v.Title = "STAGE CLEAR!"
	v.Lines = append(v.Lines, Line{Text: fmt.Sprintf("Stage %d: %s", s.params.Stage, s.stageTitle()), Style: StyleHeading})

	if exp, ok := st.RampValue("exp"); ok {
		v.Counter = &Counter{Label: "EXP", Value: exp, Target: s.exp()}
	}
	if idx >= indexOf(stageClearOrder, "item") {
		item := s.Item()
		v.Lines = append(v.Lines,
			Line{Text: fmt.Sprintf("You found: %s %s", item.Name, item.Emoji), Style: StyleEmphasis},
			Line{Text: stageFlavor.Get(s.kind()), Style: StyleMuted})
	}
	if idx >= indexOf(stageClearOrder, "complete") {
		v.Button = &Button{Label: "Next", Enabled: true}
	}
	return v
}

func (s *StageClear) Static() View {
	return s.Render(timeline.State{
		Active:     []string{"complete"},
		RampValues: map[string]int{"exp": s.exp()},
		Done:       true,
	})
}

// Action 发放 EXP、记录道具、标记关卡通关，然后回到货架
func (s *StageClear) Action() Action {
	userID := s.params.UserID
	var calls []Call
	if exp := s.exp(); exp > 0 {
		calls = append(calls, Call{Name: "awardExperience", Do: func(ctx context.Context, svc backend.UserDataService) error {
			_, err := svc.AwardExperience(ctx, userID, exp)
			return err
		}})
	}
	item := s.Item().Name
	flag := backend.StageFlag(s.params.RackID, s.params.Stage, backend.FieldCleared).String()
	calls = append(calls,
		Call{Name: "updateItem", Do: func(ctx context.Context, svc backend.UserDataService) error {
			return svc.UpdateItem(ctx, userID, item)
		}},
		Call{Name: "setFlag", Do: func(ctx context.Context, svc backend.UserDataService) error {
			return svc.SetFlag(ctx, userID, flag, backend.FlagTrue)
		}},
	)
	return Action{
		Calls: calls,
		Next:  Route{Screen: ScreenRackProgress, RackID: s.params.RackID},
	}
}
