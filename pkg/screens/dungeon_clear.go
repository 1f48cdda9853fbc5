package screens

import (
	"context"
	"fmt"

	"github.com/gonewx/closetkingdom/pkg/backend"
	"github.com/gonewx/closetkingdom/pkg/timeline"
)

// Title 地下城通关授予的称号
type Title struct {
	Name  string
	Emoji string
}

// rackTitles 货架ID → 称号
var rackTitles = NewTable(map[string]Title{
	"closet-1":  {Name: "Closet Conqueror", Emoji: "👑"},
	"shoe-rack": {Name: "Sole Keeper", Emoji: "👟"},
	"pantry":    {Name: "Pantry Paladin", Emoji: "🥫"},
}, Title{Name: "Tidy Adventurer", Emoji: "✨"})

var dungeonClearOrder = []string{"banner", "stats", "title", "complete"}

// DungeonClear 地下城（货架全部关卡）通关画面
// banner → stats（已通关关卡数）→ title → complete
type DungeonClear struct {
	base
}

// NewDungeonClear 创建地下城通关画面
func NewDungeonClear(p Params, source TimelineSource) *DungeonClear {
	return &DungeonClear{base: base{screen: ScreenDungeonClear, params: p, source: source}}
}

// Title 本次授予的称号
func (d *DungeonClear) Title() Title {
	return rackTitles.Get(d.params.RackID)
}

func (d *DungeonClear) stages() int {
	if n, ok := d.params.Values["stages"]; ok {
		return n
	}
	if d.params.Rack != nil {
		return len(d.params.Rack.Stages)
	}
	return 0
}

func (d *DungeonClear) Render(st timeline.State) View {
	v := View{Screen: d.screen}
	idx := reached(st, dungeonClearOrder)
	if idx < 0 {
		return v
	}

	v.Title = "DUNGEON CLEAR!"
	v.Lines = append(v.Lines, Line{Text: d.rackName(), Style: StyleHeading})

	if n, ok := st.RampValue("stats"); ok {
		v.Counter = &Counter{Label: "Stages cleared", Value: n, Target: d.stages()}
	}
	if idx >= indexOf(dungeonClearOrder, "title") {
		t := d.Title()
		v.Lines = append(v.Lines, Line{Text: fmt.Sprintf("New title: %s %s", t.Emoji, t.Name), Style: StyleEmphasis})
	}
	if idx >= indexOf(dungeonClearOrder, "complete") {
		v.Button = &Button{Label: "Continue", Enabled: true}
	}
	return v
}

func (d *DungeonClear) Static() View {
	return d.Render(timeline.State{
		Active:     []string{"complete"},
		RampValues: map[string]int{"stats": d.stages()},
		Done:       true,
	})
}

// Action 标记货架通关、记录称号，然后播放结束字幕
func (d *DungeonClear) Action() Action {
	userID := d.params.UserID
	rackFlag := backend.RackFlag(d.params.RackID, backend.FieldCleared).String()
	titleFlag := backend.RackFlag(d.params.RackID, "title").String()
	title := d.Title().Name
	return Action{
		Calls: []Call{
			{Name: "setFlag", Do: func(ctx context.Context, svc backend.UserDataService) error {
				return svc.SetFlag(ctx, userID, rackFlag, backend.FlagTrue)
			}},
			{Name: "setTitle", Do: func(ctx context.Context, svc backend.UserDataService) error {
				return svc.SetFlag(ctx, userID, titleFlag, title)
			}},
		},
		Next: Route{Screen: ScreenEndroll, RackID: d.params.RackID},
	}
}
