package screens

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Factory 按路由创建画面适配器
//
// 关卡通关的 EXP 奖励在创建时从 [minExp, maxExp] 中抽取一次，整个挂载期间不变。
type Factory struct {
	source TimelineSource
	minExp int
	maxExp int

	mu  sync.Mutex
	rng *rand.Rand
}

// FactoryOption 工厂配置项
type FactoryOption func(*Factory)

// WithTimelineSource 设置时间轴来源（默认读取嵌入资源）
func WithTimelineSource(source TimelineSource) FactoryOption {
	return func(f *Factory) {
		if source != nil {
			f.source = source
		}
	}
}

// WithRewardRange 设置 EXP 奖励范围（含两端）
func WithRewardRange(minExp, maxExp int) FactoryOption {
	return func(f *Factory) {
		if minExp >= 0 && maxExp >= minExp {
			f.minExp, f.maxExp = minExp, maxExp
		}
	}
}

// WithSeed 设置随机种子，0 表示使用当前时间
func WithSeed(seed int64) FactoryOption {
	return func(f *Factory) {
		if seed != 0 {
			f.rng = rand.New(rand.NewSource(seed))
		}
	}
}

// NewFactory 创建工厂
func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{
		source: EmbeddedTimelines,
		minExp: 30,
		maxExp: 60,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.rng == nil {
		f.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return f
}

// DrawExp 抽取一次 EXP 奖励
func (f *Factory) DrawExp() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.minExp + f.rng.Intn(f.maxExp-f.minExp+1)
}

// New 为路由创建适配器
// 路由中的货架/关卡覆盖 p 中的同名字段；首页需要先由导航器解析为具体画面
func (f *Factory) New(route Route, p Params) (Adapter, error) {
	p.RackID = route.RackID
	p.Stage = route.Stage
	p.Values = f.values(route, p)

	switch route.Screen {
	case ScreenStageClear:
		return NewStageClear(p, f.source), nil
	case ScreenDungeonClear:
		return NewDungeonClear(p, f.source), nil
	case ScreenEndroll:
		return NewEndroll(p, f.source), nil
	case ScreenCrown:
		return NewCrown(p, f.source), nil
	case ScreenRackProgress:
		return NewRackProgress(p), nil
	case ScreenLeaderboard:
		return NewLeaderboard(p), nil
	default:
		return nil, fmt.Errorf("screens: no adapter for route %s", route)
	}
}

// values 合并时间轴参数：调用方给出的 > 路由推导的 > 配置文件默认值
func (f *Factory) values(route Route, p Params) map[string]int {
	values := make(map[string]int, len(p.Values)+1)
	for k, v := range p.Values {
		values[k] = v
	}

	switch route.Screen {
	case ScreenStageClear:
		if _, ok := values["exp"]; !ok {
			values["exp"] = f.DrawExp()
		}
	case ScreenDungeonClear:
		if _, ok := values["stages"]; !ok && p.Rack != nil {
			values["stages"] = len(p.Rack.Stages)
		}
	}

	if cfg, err := f.source(route.Screen); err == nil {
		for k, v := range cfg.Params {
			if _, ok := values[k]; !ok {
				values[k] = v
			}
		}
	}
	return values
}
