package backend

import (
	"context"
	"errors"
	"time"
)

// DefaultTimeout 默认调用超时
const DefaultTimeout = 10 * time.Second

// WithTimeout 为每个调用加上超时
//
// 即使下层实现不响应 ctx 而一直挂起，调用方也会在 d 之后拿到 *TimeoutError。
// d <= 0 时使用 DefaultTimeout。
func WithTimeout(svc UserDataService, d time.Duration) UserDataService {
	if d <= 0 {
		d = DefaultTimeout
	}
	return &timeoutService{next: svc, timeout: d}
}

type timeoutService struct {
	next    UserDataService
	timeout time.Duration
}

type result[T any] struct {
	v   T
	err error
}

// bounded 在超时内执行 fn
func bounded[T any](ctx context.Context, d time.Duration, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	ch := make(chan result[T], 1)
	go func() {
		v, err := fn(ctx)
		ch <- result[T]{v: v, err: err}
	}()

	var zero T
	select {
	case r := <-ch:
		if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			var te *TimeoutError
			if !errors.As(r.err, &te) {
				return zero, &TimeoutError{Op: op, After: d}
			}
		}
		return r.v, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, &TimeoutError{Op: op, After: d}
		}
		return zero, &NetworkError{Op: op, Err: ctx.Err()}
	}
}

func (s *timeoutService) GetFlags(ctx context.Context, userID string, keys []string) (map[string]string, error) {
	return bounded(ctx, s.timeout, "getFlags", func(ctx context.Context) (map[string]string, error) {
		return s.next.GetFlags(ctx, userID, keys)
	})
}

func (s *timeoutService) SetFlag(ctx context.Context, userID, key, value string) error {
	_, err := bounded(ctx, s.timeout, "setFlag", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.next.SetFlag(ctx, userID, key, value)
	})
	return err
}

func (s *timeoutService) AwardExperience(ctx context.Context, userID string, amount int) (int, error) {
	return bounded(ctx, s.timeout, "awardExperience", func(ctx context.Context) (int, error) {
		return s.next.AwardExperience(ctx, userID, amount)
	})
}

func (s *timeoutService) GetLeaderboard(ctx context.Context, period Period) ([]LeaderboardEntry, error) {
	return bounded(ctx, s.timeout, "getLeaderboard", func(ctx context.Context) ([]LeaderboardEntry, error) {
		return s.next.GetLeaderboard(ctx, period)
	})
}

func (s *timeoutService) UpdateStatistics(ctx context.Context, userID, name string, delta int) error {
	_, err := bounded(ctx, s.timeout, "updateStatistics", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.next.UpdateStatistics(ctx, userID, name, delta)
	})
	return err
}

func (s *timeoutService) UpdateItem(ctx context.Context, userID, itemName string) error {
	_, err := bounded(ctx, s.timeout, "updateItem", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.next.UpdateItem(ctx, userID, itemName)
	})
	return err
}

func (s *timeoutService) GetRack(ctx context.Context, userID, rackID string) (*Rack, error) {
	return bounded(ctx, s.timeout, "getRack", func(ctx context.Context) (*Rack, error) {
		return s.next.GetRack(ctx, userID, rackID)
	})
}
