package screens

import (
	"github.com/gonewx/closetkingdom/pkg/timeline"
)

// credits 字幕阶段 → 文字
var credits = NewTable(map[string]string{
	"credits-1": "Quest design: everyone who ever lost a sock",
	"credits-2": "Storage engineering: the humble shoebox",
	"credits-3": "Labels: a steady hand and a marker",
	"credits-4": "Special thanks: you, for finishing",
}, "")

var endrollOrder = []string{"credits-1", "credits-2", "credits-3", "credits-4", "fin"}

// Endroll 结束字幕：每个阶段多显示一行，最后是 FIN
type Endroll struct {
	base
}

// NewEndroll 创建结束字幕画面
func NewEndroll(p Params, source TimelineSource) *Endroll {
	return &Endroll{base: base{screen: ScreenEndroll, params: p, source: source}}
}

func (e *Endroll) Render(st timeline.State) View {
	v := View{Screen: e.screen, Title: "Thanks for playing"}
	idx := reached(st, endrollOrder)
	for i := 0; i <= idx && i < len(endrollOrder); i++ {
		name := endrollOrder[i]
		if name == "fin" {
			v.Lines = append(v.Lines, Line{Text: "FIN", Style: StyleHeading})
			v.Button = &Button{Label: "Home", Enabled: true}
			continue
		}
		style := StyleMuted
		if i == idx {
			style = StyleNormal
		}
		v.Lines = append(v.Lines, Line{Text: credits.Get(name), Style: style})
	}
	return v
}

func (e *Endroll) Static() View {
	return e.Render(timeline.State{Active: []string{"fin"}, Done: true})
}

// Action 回到首页，没有后端调用
func (e *Endroll) Action() Action {
	return Action{Next: Home()}
}
