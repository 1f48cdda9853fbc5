package store

import (
	"context"

	"github.com/gonewx/closetkingdom/pkg/backend"
)

// Service 把 Store 包装为进程内的 backend.UserDataService
// 不启动服务端时（play --local）画面直接使用它
type Service struct {
	store *Store
}

// NewService 创建进程内服务
func NewService(s *Store) *Service {
	return &Service{store: s}
}

var _ backend.UserDataService = (*Service)(nil)

func (s *Service) GetFlags(ctx context.Context, userID string, keys []string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.GetFlags(userID, keys)
}

func (s *Service) SetFlag(ctx context.Context, userID, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.store.SetFlag(userID, key, value)
}

func (s *Service) AwardExperience(ctx context.Context, userID string, amount int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.store.AwardExperience(userID, amount)
}

func (s *Service) GetLeaderboard(ctx context.Context, period backend.Period) ([]backend.LeaderboardEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.Leaderboard(period, 0)
}

func (s *Service) UpdateStatistics(ctx context.Context, userID, name string, delta int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.store.UpdateStatistics(userID, name, delta)
	return err
}

func (s *Service) UpdateItem(ctx context.Context, userID, itemName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.store.UpdateItem(userID, itemName)
	return err
}

func (s *Service) GetRack(ctx context.Context, userID, rackID string) (*backend.Rack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.GetRack(rackID)
}
