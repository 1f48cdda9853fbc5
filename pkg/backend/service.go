// Package backend 定义画面依赖的用户数据服务契约，以及访问 API 服务端的 HTTP 客户端。
//
// 画面从不假设调用同步完成或一定成功：每个调用点都必须处理错误，
// 显示用户可见的非致命提示，并且不做乐观的持久状态修改。
package backend

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// UserDataService 用户数据服务
//
// 所有写操作都是幂等、可累加（EXP、统计）或后写覆盖（标记）的，
// 客户端不需要加锁。
type UserDataService interface {
	// GetFlags 读取进度标记；不存在的 key 不出现在结果中（表示"尚未解锁"，不是错误）
	GetFlags(ctx context.Context, userID string, keys []string) (map[string]string, error)
	// SetFlag 写入进度标记（后写覆盖）
	SetFlag(ctx context.Context, userID, key, value string) error
	// AwardExperience 增加 EXP，返回新的总值
	AwardExperience(ctx context.Context, userID string, amount int) (int, error)
	// GetLeaderboard 按周期返回排行榜（按分数降序）
	GetLeaderboard(ctx context.Context, period Period) ([]LeaderboardEntry, error)
	// UpdateStatistics 统计值增加 delta
	UpdateStatistics(ctx context.Context, userID, name string, delta int) error
	// UpdateItem 获得一个道具
	UpdateItem(ctx context.Context, userID, itemName string) error
	// GetRack 读取货架（地下城）定义
	GetRack(ctx context.Context, userID, rackID string) (*Rack, error)
}

// Period 排行榜周期
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodAll     Period = "all"
)

// ParsePeriod 解析周期字符串，空字符串视为 all
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PeriodAll, nil
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodAll:
		return p, nil
	default:
		return "", fmt.Errorf("unknown leaderboard period %q", s)
	}
}

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
}

// Stage 货架中的一个关卡
type Stage struct {
	Number int    `json:"number" yaml:"number"`
	Title  string `json:"title" yaml:"title"`
	Kind   string `json:"kind" yaml:"kind"` // discard / storage / label
}

// Rack 货架（地下城），由若干关卡组成
type Rack struct {
	ID     string  `json:"id" yaml:"id"`
	Name   string  `json:"name" yaml:"name"`
	Stages []Stage `json:"stages" yaml:"stages"`
}

// Stage 按编号查找关卡
func (r *Rack) Stage(number int) (Stage, bool) {
	for _, s := range r.Stages {
		if s.Number == number {
			return s, true
		}
	}
	return Stage{}, false
}

// 常用的标记字段和值
const (
	FieldCleared = "cleared"
	FlagTrue     = "true"
)

// FlagKey 进度标记键
//
// 字符串形式：
//   - 关卡级：rack/<rack>/stage/<stage>/<field>
//   - 货架级（Stage 为 0）：rack/<rack>/<field>
//
// 用户不在键里，单独传递。
type FlagKey struct {
	Rack  string
	Stage int
	Field string
}

// StageFlag 关卡级标记
func StageFlag(rack string, stage int, field string) FlagKey {
	return FlagKey{Rack: rack, Stage: stage, Field: field}
}

// RackFlag 货架级标记
func RackFlag(rack, field string) FlagKey {
	return FlagKey{Rack: rack, Field: field}
}

func (k FlagKey) String() string {
	if k.Stage == 0 {
		return "rack/" + k.Rack + "/" + k.Field
	}
	return "rack/" + k.Rack + "/stage/" + strconv.Itoa(k.Stage) + "/" + k.Field
}

// ParseFlagKey 解析标记键字符串
func ParseFlagKey(s string) (FlagKey, error) {
	parts := strings.Split(s, "/")
	switch {
	case len(parts) == 3 && parts[0] == "rack" && parts[1] != "" && parts[2] != "":
		return FlagKey{Rack: parts[1], Field: parts[2]}, nil
	case len(parts) == 5 && parts[0] == "rack" && parts[2] == "stage" && parts[1] != "" && parts[4] != "":
		n, err := strconv.Atoi(parts[3])
		if err != nil || n <= 0 {
			return FlagKey{}, fmt.Errorf("invalid stage number in flag key %q", s)
		}
		return FlagKey{Rack: parts[1], Stage: n, Field: parts[4]}, nil
	default:
		return FlagKey{}, fmt.Errorf("malformed flag key %q", s)
	}
}
