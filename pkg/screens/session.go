package screens

import (
	"context"
	"sync"

	"github.com/gonewx/closetkingdom/pkg/backend"
)

// Session 一个用户的导航会话
//
// 为每个路由构造 Params：当前用户、已知的货架定义、排行榜周期。
// 货架定义来自 Preload 或已加载过的货架进度画面，
// 这样通关画面可以显示关卡标题而不必在挂载时再请求一次
type Session struct {
	factory *Factory
	userID  string
	period  backend.Period

	mu    sync.Mutex
	racks map[string]*backend.Rack
}

// NewSession 创建会话
func NewSession(factory *Factory, userID string) *Session {
	return &Session{
		factory: factory,
		userID:  userID,
		period:  backend.PeriodWeekly,
		racks:   make(map[string]*backend.Rack),
	}
}

// UserID 当前用户
func (s *Session) UserID() string { return s.userID }

// SetPeriod 设置排行榜周期
func (s *Session) SetPeriod(period backend.Period) {
	s.mu.Lock()
	s.period = period
	s.mu.Unlock()
}

// Remember 记录货架定义，nil 忽略
func (s *Session) Remember(rack *backend.Rack) {
	if rack == nil || rack.ID == "" {
		return
	}
	s.mu.Lock()
	s.racks[rack.ID] = rack
	s.mu.Unlock()
}

// Rack 返回已知的货架定义
func (s *Session) Rack(id string) (*backend.Rack, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rack, ok := s.racks[id]
	return rack, ok
}

// Preload 从后端读取货架定义并记录
func (s *Session) Preload(ctx context.Context, svc backend.UserDataService, rackID string) (*backend.Rack, error) {
	rack, err := svc.GetRack(ctx, s.userID, rackID)
	if err != nil {
		return nil, err
	}
	s.Remember(rack)
	return rack, nil
}

// Params 为路由构造挂载参数
func (s *Session) Params(route Route) Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Params{
		UserID: s.userID,
		Rack:   s.racks[route.RackID],
		Period: s.period,
	}
}

// Adapter 为路由创建适配器
func (s *Session) Adapter(route Route) (Adapter, error) {
	return s.factory.New(route, s.Params(route))
}

// Observe 从加载完成的画面中收集货架定义
func (s *Session) Observe(a Adapter) {
	if rp, ok := a.(*RackProgress); ok {
		s.Remember(rp.Rack())
	}
}
