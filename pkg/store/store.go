// Package store 在本地模拟外部游戏平台：按用户保存进度标记、EXP、统计、道具和货架定义。
//
// 持久化使用 gdata（与设置管理器相同的跨平台存储），
// gdata 不可用时退化为内存存储（降级模式），功能不受影响，只是不落盘。
package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/quasilyte/gdata/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/gonewx/closetkingdom/pkg/backend"
)

// 存储对象名
const (
	usersObject = "users"
	indexObject = "index"
	indexProp   = "users"
	racksObject = "racks"
)

// DefaultLeaderboardLimit 排行榜默认条数
const DefaultLeaderboardLimit = 50

var (
	// ErrNotFound 请求的货架不存在
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument 参数不合法
	ErrInvalidArgument = errors.New("invalid argument")
)

// ExpAward 一次 EXP 发放记录
type ExpAward struct {
	At     time.Time `yaml:"at"`
	Amount int       `yaml:"amount"`
}

// Profile 单个用户在平台上的数据
type Profile struct {
	UserID      string            `yaml:"userId"`
	DisplayName string            `yaml:"displayName"`
	Exp         int               `yaml:"exp"`
	ExpLog      []ExpAward        `yaml:"expLog"`
	Flags       map[string]string `yaml:"flags"`
	Statistics  map[string]int    `yaml:"statistics"`
	Items       map[string]int    `yaml:"items"`
}

func newProfile(userID string) *Profile {
	return &Profile{
		UserID:     userID,
		Flags:      map[string]string{},
		Statistics: map[string]int{},
		Items:      map[string]int{},
	}
}

// Config 存储配置
type Config struct {
	AppName string // gdata 应用名
	Memory  bool   // 强制使用内存存储
}

// Option 存储配置项
type Option func(*Store)

// WithLogger 设置日志记录器
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNow 设置时间源（排行榜周期计算使用）
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store 平台存储
// 所有方法都是并发安全的，服务端会从多个 goroutine 调用
type Store struct {
	mu       sync.Mutex
	kv       kv
	degraded bool
	logger   *zap.Logger
	now      func() time.Time
}

func newStore(backing kv, degraded bool, opts []Option) *Store {
	s := &Store{
		kv:       backing,
		degraded: degraded,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("Store")
	return s
}

// Open 打开 gdata 存储
// gdata 初始化失败时记录警告并使用内存存储（降级模式），不返回错误
func Open(cfg Config, opts ...Option) *Store {
	if cfg.Memory {
		return NewMemory(opts...)
	}

	manager, err := gdata.Open(gdata.Config{AppName: cfg.AppName})
	if err != nil {
		s := newStore(newMemoryKV(), true, opts)
		s.logger.Warn("gdata 初始化失败，使用内存存储（降级模式）",
			zap.String("appName", cfg.AppName), zap.Error(err))
		return s
	}

	s := newStore(&gdataKV{manager: manager}, false, opts)
	s.logger.Info("平台存储已打开", zap.String("appName", cfg.AppName))
	return s
}

// NewMemory 创建内存存储
func NewMemory(opts ...Option) *Store {
	return newStore(newMemoryKV(), true, opts)
}

// Degraded 是否处于降级模式（数据不持久化）
func (s *Store) Degraded() bool {
	return s.degraded
}

// Register 确保用户存在，name 非空时更新显示名
func (s *Store) Register(userID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.profileLocked(userID)
	if err != nil {
		return err
	}
	exists := s.kv.exists(usersObject, propName(userID))
	if exists && (name == "" || p.DisplayName == name) {
		return nil
	}
	if name != "" {
		p.DisplayName = name
	}
	return s.saveProfileLocked(p)
}

// Profile 返回用户数据副本；用户不存在时返回空档案
func (s *Store) Profile(userID string) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.profileLocked(userID)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetFlags 读取标记，不存在的 key 不出现在结果中
func (s *Store) GetFlags(userID string, keys []string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.profileLocked(userID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := p.Flags[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// SetFlag 写入标记（后写覆盖）
func (s *Store) SetFlag(userID, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: flag key is empty", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.profileLocked(userID)
	if err != nil {
		return err
	}
	p.Flags[key] = value
	return s.saveProfileLocked(p)
}

// AwardExperience 增加 EXP 并记录发放时间，返回新的总值
func (s *Store) AwardExperience(userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: amount must be positive, got %d", ErrInvalidArgument, amount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.profileLocked(userID)
	if err != nil {
		return 0, err
	}
	p.Exp += amount
	p.ExpLog = append(p.ExpLog, ExpAward{At: s.now().UTC(), Amount: amount})
	if err := s.saveProfileLocked(p); err != nil {
		return 0, err
	}
	s.logger.Debug("发放 EXP", zap.String("user", userID), zap.Int("amount", amount), zap.Int("total", p.Exp))
	return p.Exp, nil
}

// UpdateStatistics 统计值增加 delta，返回新值
func (s *Store) UpdateStatistics(userID, name string, delta int) (int, error) {
	if strings.TrimSpace(name) == "" {
		return 0, fmt.Errorf("%w: statistic name is empty", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.profileLocked(userID)
	if err != nil {
		return 0, err
	}
	p.Statistics[name] += delta
	if err := s.saveProfileLocked(p); err != nil {
		return 0, err
	}
	return p.Statistics[name], nil
}

// UpdateItem 道具数量加一，返回新数量
func (s *Store) UpdateItem(userID, itemName string) (int, error) {
	if strings.TrimSpace(itemName) == "" {
		return 0, fmt.Errorf("%w: item name is empty", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.profileLocked(userID)
	if err != nil {
		return 0, err
	}
	p.Items[itemName]++
	if err := s.saveProfileLocked(p); err != nil {
		return 0, err
	}
	return p.Items[itemName], nil
}

// Leaderboard 返回周期内的排行榜
//
// 分数为周期内获得的 EXP（all 为总 EXP），按分数降序、用户ID升序排列；
// 分数为 0 的用户不上榜。limit <= 0 时使用 DefaultLeaderboardLimit。
func (s *Store) Leaderboard(period backend.Period, limit int) ([]backend.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	since, err := PeriodStart(period, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.indexLocked()
	if err != nil {
		return nil, err
	}

	entries := make([]backend.LeaderboardEntry, 0, len(ids))
	for _, id := range ids {
		p, err := s.profileLocked(id)
		if err != nil {
			return nil, err
		}
		score := p.Exp
		if !since.IsZero() {
			score = 0
			for _, a := range p.ExpLog {
				if !a.At.Before(since) {
					score += a.Amount
				}
			}
		}
		if score <= 0 {
			continue
		}
		name := p.DisplayName
		if name == "" {
			name = p.UserID
		}
		entries = append(entries, backend.LeaderboardEntry{UserID: p.UserID, DisplayName: name, Score: score})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].UserID < entries[j].UserID
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// PeriodStart 返回周期起点（UTC）；all 返回零值
// 周从周一开始
func PeriodStart(period backend.Period, now time.Time) (time.Time, error) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch period {
	case backend.PeriodAll, "":
		return time.Time{}, nil
	case backend.PeriodDaily:
		return today, nil
	case backend.PeriodWeekly:
		offset := (int(today.Weekday()) + 6) % 7
		return today.AddDate(0, 0, -offset), nil
	case backend.PeriodMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	default:
		return time.Time{}, fmt.Errorf("unknown leaderboard period %q", period)
	}
}

// profileLocked 加载用户档案，不存在时返回新档案（未保存）
func (s *Store) profileLocked(userID string) (*Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is empty", ErrInvalidArgument)
	}
	prop := propName(userID)
	if !s.kv.exists(usersObject, prop) {
		return newProfile(userID), nil
	}
	data, err := s.kv.load(usersObject, prop)
	if err != nil {
		return nil, err
	}
	p := newProfile(userID)
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile %q: %w", userID, err)
	}
	// yaml 中的空 map 会被解成 nil
	if p.Flags == nil {
		p.Flags = map[string]string{}
	}
	if p.Statistics == nil {
		p.Statistics = map[string]int{}
	}
	if p.Items == nil {
		p.Items = map[string]int{}
	}
	return p, nil
}

// saveProfileLocked 保存用户档案，首次保存时写入用户索引
func (s *Store) saveProfileLocked(p *Profile) error {
	prop := propName(p.UserID)
	isNew := !s.kv.exists(usersObject, prop)

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile %q: %w", p.UserID, err)
	}
	if err := s.kv.save(usersObject, prop, data); err != nil {
		return err
	}
	if !isNew {
		return nil
	}

	ids, err := s.indexLocked()
	if err != nil {
		return err
	}
	ids = append(ids, p.UserID)
	data, err = yaml.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal user index: %w", err)
	}
	return s.kv.save(indexObject, indexProp, data)
}

// indexLocked 返回所有已知用户ID
func (s *Store) indexLocked() ([]string, error) {
	if !s.kv.exists(indexObject, indexProp) {
		return nil, nil
	}
	data, err := s.kv.load(indexObject, indexProp)
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := yaml.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user index: %w", err)
	}
	return ids, nil
}
