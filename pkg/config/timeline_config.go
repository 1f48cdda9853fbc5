package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gonewx/closetkingdom/pkg/embedded"
	"github.com/gonewx/closetkingdom/pkg/timeline"
)

// TimelineDir 嵌入的时间轴配置目录
const TimelineDir = "data/timelines"

// RampConfig 渐变配置
// From/To 可以直接写数值，也可以通过 FromParam/ToParam 引用挂载时传入的参数
type RampConfig struct {
	From      int    `yaml:"from"`
	To        int    `yaml:"to"`
	FromParam string `yaml:"fromParam,omitempty"` // 如 "exp"，优先于 From
	ToParam   string `yaml:"toParam,omitempty"`   // 如 "exp"，优先于 To
	StepMs    int64  `yaml:"stepMs"`
	By        int    `yaml:"by,omitempty"`
}

// PhaseConfig 阶段配置，对应 timeline.Phase
type PhaseConfig struct {
	Name          string      `yaml:"name"`
	StartOffsetMs int64       `yaml:"startOffsetMs"`
	DurationMs    *int64      `yaml:"durationMs,omitempty"`
	Ramp          *RampConfig `yaml:"ramp,omitempty"`
	Sound         string      `yaml:"sound,omitempty"`
}

// TimelineConfig 单个画面的时间轴配置文件结构
type TimelineConfig struct {
	Name   string         `yaml:"name"`   // 时间轴名称，如 "stage-clear"
	Params map[string]int `yaml:"params"` // 参数默认值，如 exp: 45
	Phases []PhaseConfig  `yaml:"phases"` // 阶段列表（按开始时间排序）
}

// LoadTimelineConfig 从 YAML 文件加载时间轴配置
// 参数：
//
//	path - 配置文件路径（相对或绝对路径）
//
// 返回：
//
//	*TimelineConfig - 解析后的配置对象
//	error - 如果文件读取、解析或校验失败，返回错误信息
func LoadTimelineConfig(path string) (*TimelineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timeline config file %s: %w", path, err)
	}
	return ParseTimelineConfig(data, path)
}

// LoadScreenTimeline 从嵌入资源加载画面的时间轴配置
// screen 为画面ID（如 "stage-clear"），对应文件 data/timelines/stage_clear.yaml
func LoadScreenTimeline(screen string) (*TimelineConfig, error) {
	path := TimelinePath(screen)
	if embedded.IsInitialized() && !embedded.Exists(path) {
		return nil, fmt.Errorf("no timeline for screen %q (have: %s)", screen, strings.Join(EmbeddedTimelineScreens(), ", "))
	}
	data, err := embedded.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timeline config %s: %w", path, err)
	}
	return ParseTimelineConfig(data, path)
}

// TimelinePath 返回画面对应的嵌入时间轴路径
func TimelinePath(screen string) string {
	return TimelineDir + "/" + strings.ReplaceAll(screen, "-", "_") + ".yaml"
}

// EmbeddedTimelineScreens 返回带有嵌入时间轴配置的画面ID（排序后）
func EmbeddedTimelineScreens() []string {
	paths, err := embedded.Glob(TimelineDir + "/*.yaml")
	if err != nil {
		return nil
	}
	screens := make([]string, 0, len(paths))
	for _, p := range paths {
		name := strings.TrimSuffix(strings.TrimPrefix(p, TimelineDir+"/"), ".yaml")
		screens = append(screens, strings.ReplaceAll(name, "_", "-"))
	}
	sort.Strings(screens)
	return screens
}

// ParseTimelineConfig 解析 YAML 数据
// source 仅用于错误信息
func ParseTimelineConfig(data []byte, source string) (*TimelineConfig, error) {
	var cfg TimelineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse timeline YAML from %s: %w", source, err)
	}

	if cfg.Params == nil {
		cfg.Params = map[string]int{}
	}

	// 用默认参数构建一次，确保参数引用和时间轴本身都合法
	if _, err := cfg.Build(nil); err != nil {
		return nil, fmt.Errorf("invalid timeline config in %s: %w", source, err)
	}

	return &cfg, nil
}

// Build 用参数构建时间轴
//
// 参数：
//   - params: 覆盖默认值的参数（可为 nil）
//
// 返回：
//   - timeline.Spec: 构建好的时间轴（已校验）
//   - error: 引用了未定义的参数，或时间轴不合法（*timeline.ValidationError）
func (c *TimelineConfig) Build(params map[string]int) (timeline.Spec, error) {
	resolve := func(phase, name string) (int, error) {
		if v, ok := params[name]; ok {
			return v, nil
		}
		if v, ok := c.Params[name]; ok {
			return v, nil
		}
		return 0, fmt.Errorf("phase %q references undefined param %q", phase, name)
	}

	spec := timeline.Spec{Name: c.Name, Phases: make([]timeline.Phase, 0, len(c.Phases))}
	for _, pc := range c.Phases {
		phase := timeline.Phase{
			Name:          pc.Name,
			StartOffsetMs: pc.StartOffsetMs,
			DurationMs:    pc.DurationMs,
			Sound:         pc.Sound,
		}
		if rc := pc.Ramp; rc != nil {
			ramp := &timeline.Ramp{From: rc.From, To: rc.To, StepMs: rc.StepMs, By: rc.By}
			if rc.FromParam != "" {
				v, err := resolve(pc.Name, rc.FromParam)
				if err != nil {
					return timeline.Spec{}, err
				}
				ramp.From = v
			}
			if rc.ToParam != "" {
				v, err := resolve(pc.Name, rc.ToParam)
				if err != nil {
					return timeline.Spec{}, err
				}
				ramp.To = v
			}
			phase.Ramp = ramp
		}
		spec.Phases = append(spec.Phases, phase)
	}

	if err := timeline.Validate(spec); err != nil {
		return timeline.Spec{}, err
	}
	return spec, nil
}

// ParamNames 返回已声明的参数名（排序后）
func (c *TimelineConfig) ParamNames() []string {
	names := make([]string, 0, len(c.Params))
	for name := range c.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
