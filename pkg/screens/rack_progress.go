package screens

import (
	"context"
	"fmt"
	"sync"

	"github.com/gonewx/closetkingdom/pkg/backend"
	"github.com/gonewx/closetkingdom/pkg/timeline"
)

// RackProgress 货架进度画面
//
// 不是时间轴驱动的：挂载时读取货架和各关卡的通关标记。
// 读取失败时显示错误提示和"重试"按钮，之前读到的标记继续显示。
type RackProgress struct {
	params Params

	mu     sync.Mutex
	rack   *backend.Rack
	flags  map[string]string
	loaded bool
	err    error
}

// NewRackProgress 创建货架进度画面
func NewRackProgress(p Params) *RackProgress {
	return &RackProgress{params: p, rack: p.Rack}
}

func (r *RackProgress) Screen() ScreenID { return ScreenRackProgress }

// Timeline 空时间轴：挂载后立即进入终点状态
func (r *RackProgress) Timeline() (timeline.Spec, error) {
	return timeline.Spec{Name: string(ScreenRackProgress)}, nil
}

// Load 读取货架定义和通关标记
func (r *RackProgress) Load(ctx context.Context, svc backend.UserDataService) error {
	r.mu.Lock()
	rack := r.rack
	r.mu.Unlock()

	if rack == nil {
		var err error
		rack, err = svc.GetRack(ctx, r.params.UserID, r.params.RackID)
		if err != nil {
			r.fail(err)
			return fmt.Errorf("load rack %q: %w", r.params.RackID, err)
		}
	}

	keys := make([]string, 0, len(rack.Stages)+1)
	for _, st := range rack.Stages {
		keys = append(keys, backend.StageFlag(rack.ID, st.Number, backend.FieldCleared).String())
	}
	keys = append(keys, backend.RackFlag(rack.ID, backend.FieldCleared).String())

	flags, err := svc.GetFlags(ctx, r.params.UserID, keys)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rack = rack
	if err != nil {
		r.err = err
		return fmt.Errorf("load flags for rack %q: %w", rack.ID, err)
	}
	r.flags = flags
	r.loaded = true
	r.err = nil
	return nil
}

func (r *RackProgress) fail(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// progress 计算当前进度，调用方必须持有 r.mu
// 返回已通关关卡数、下一个未通关关卡（0 表示全部通关）、货架是否已通关
func (r *RackProgress) progressLocked() (cleared, next int, rackCleared bool) {
	if r.rack == nil {
		return 0, 0, false
	}
	for _, st := range r.rack.Stages {
		if r.flags[backend.StageFlag(r.rack.ID, st.Number, backend.FieldCleared).String()] == backend.FlagTrue {
			cleared++
		} else if next == 0 {
			next = st.Number
		}
	}
	rackCleared = r.flags[backend.RackFlag(r.rack.ID, backend.FieldCleared).String()] == backend.FlagTrue
	return cleared, next, rackCleared
}

func (r *RackProgress) Render(timeline.State) View {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := View{Screen: ScreenRackProgress, Title: r.params.RackID}
	if r.rack != nil {
		v.Title = r.rack.Name
	}
	if !r.loaded && r.err == nil {
		v.Lines = append(v.Lines, Line{Text: "Loading...", Style: StyleMuted})
		return v
	}

	if r.rack != nil {
		cleared, next, rackCleared := r.progressLocked()
		for _, st := range r.rack.Stages {
			mark, style := "[ ]", StyleNormal
			if r.flags[backend.StageFlag(r.rack.ID, st.Number, backend.FieldCleared).String()] == backend.FlagTrue {
				mark, style = "[x]", StyleMuted
			}
			if st.Number == next {
				style = StyleEmphasis
			}
			v.Lines = append(v.Lines, Line{Text: fmt.Sprintf("%s %d. %s", mark, st.Number, st.Title), Style: style})
		}
		if rackCleared {
			v.Lines = append(v.Lines, Line{Text: "Dungeon cleared!", Style: StyleHeading})
		}
		v.Counter = &Counter{Label: "Cleared", Value: cleared, Target: len(r.rack.Stages)}
		v.Progress = ratio(cleared, len(r.rack.Stages))
	}

	if r.err != nil {
		v.Lines = append(v.Lines, Line{Text: backend.UserMessage(r.err), Style: StyleError})
		v.Button = &Button{Label: "Retry", Enabled: true}
		return v
	}
	v.Button = &Button{Label: r.nextLabelLocked(), Enabled: true}
	return v
}

func (r *RackProgress) nextLabelLocked() string {
	_, next, rackCleared := r.progressLocked()
	switch {
	case next > 0:
		return fmt.Sprintf("Clear stage %d", next)
	case !rackCleared:
		return "Finish dungeon"
	default:
		return "Claim crown"
	}
}

func (r *RackProgress) Static() View {
	return r.Render(timeline.State{Done: true})
}

// Action 出错或尚未加载时重新加载；否则进入下一个关卡、地下城通关或王冠
func (r *RackProgress) Action() Action {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil || !r.loaded || r.rack == nil {
		return Action{Reload: true}
	}
	_, next, rackCleared := r.progressLocked()
	switch {
	case next > 0:
		return Action{Next: Route{Screen: ScreenStageClear, RackID: r.rack.ID, Stage: next}}
	case !rackCleared:
		return Action{Next: Route{Screen: ScreenDungeonClear, RackID: r.rack.ID}}
	default:
		return Action{Next: Route{Screen: ScreenCrown, RackID: r.rack.ID}}
	}
}

// Rack 返回已加载的货架定义
func (r *RackProgress) Rack() *backend.Rack {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rack
}

func ratio(n, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(n) / float64(total)
}
