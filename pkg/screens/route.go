package screens

import (
	"fmt"
	"strconv"
	"strings"
)

// Route 导航目标，只在用户按下按钮时切换
//
// 路径形式：
//
//	/                               首页
//	/rack/{rack}                    货架进度
//	/rack/{rack}/stage/{n}/clear    关卡通关
//	/rack/{rack}/clear              地下城通关
//	/rack/{rack}/endroll            结束字幕
//	/rack/{rack}/crown              王冠
//	/leaderboard                    排行榜
type Route struct {
	Screen ScreenID
	RackID string
	Stage  int
}

// Home 首页路由
func Home() Route { return Route{Screen: ScreenHome} }

// Path 返回路由路径
func (r Route) Path() string {
	switch r.Screen {
	case ScreenRackProgress:
		return "/rack/" + r.RackID
	case ScreenStageClear:
		return "/rack/" + r.RackID + "/stage/" + strconv.Itoa(r.Stage) + "/clear"
	case ScreenDungeonClear:
		return "/rack/" + r.RackID + "/clear"
	case ScreenEndroll:
		return "/rack/" + r.RackID + "/endroll"
	case ScreenCrown:
		return "/rack/" + r.RackID + "/crown"
	case ScreenLeaderboard:
		return "/leaderboard"
	default:
		return "/"
	}
}

func (r Route) String() string { return r.Path() }

// ParseRoute 从路径中解析画面和货架/关卡参数
func ParseRoute(path string) (Route, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return Home(), nil
	}
	parts := strings.Split(trimmed, "/")

	if len(parts) == 1 && parts[0] == "leaderboard" {
		return Route{Screen: ScreenLeaderboard}, nil
	}
	if parts[0] != "rack" || len(parts) < 2 || parts[1] == "" {
		return Route{}, fmt.Errorf("unknown route %q", path)
	}

	rack := parts[1]
	switch {
	case len(parts) == 2:
		return Route{Screen: ScreenRackProgress, RackID: rack}, nil
	case len(parts) == 3 && parts[2] == "clear":
		return Route{Screen: ScreenDungeonClear, RackID: rack}, nil
	case len(parts) == 3 && parts[2] == "endroll":
		return Route{Screen: ScreenEndroll, RackID: rack}, nil
	case len(parts) == 3 && parts[2] == "crown":
		return Route{Screen: ScreenCrown, RackID: rack}, nil
	case len(parts) == 5 && parts[2] == "stage" && parts[4] == "clear":
		n, err := strconv.Atoi(parts[3])
		if err != nil || n <= 0 {
			return Route{}, fmt.Errorf("invalid stage number in route %q", path)
		}
		return Route{Screen: ScreenStageClear, RackID: rack, Stage: n}, nil
	default:
		return Route{}, fmt.Errorf("unknown route %q", path)
	}
}
