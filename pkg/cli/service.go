package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gonewx/closetkingdom/pkg/backend"
	"github.com/gonewx/closetkingdom/pkg/config"
	"github.com/gonewx/closetkingdom/pkg/screens"
	"github.com/gonewx/closetkingdom/pkg/store"
)

// newService 创建画面使用的后端服务
//
// local 为 true 时直接使用本机平台存储（不需要运行 serve），
// 否则通过 HTTP 访问 backend.baseURL。两种方式都受 backend.timeoutMs 限制。
func newService(cfg *config.AppConfig, local bool, logger *zap.Logger) (backend.UserDataService, error) {
	if local {
		st, err := openStore(cfg, true, logger)
		if err != nil {
			return nil, err
		}
		return backend.WithTimeout(store.NewService(st), cfg.RequestTimeout()), nil
	}

	client := backend.NewClient(cfg.Backend.BaseURL,
		backend.WithUserName(cfg.Backend.UserName),
		backend.WithClientLogger(logger),
	)
	logger.Info("使用远程后端", zap.String("baseURL", cfg.Backend.BaseURL))
	return backend.WithTimeout(client, cfg.RequestTimeout()), nil
}

// openStore 打开平台存储，seed 为 true 时写入缺失的演示货架
func openStore(cfg *config.AppConfig, seed bool, logger *zap.Logger) (*store.Store, error) {
	st := store.Open(store.Config{AppName: cfg.Storage.AppName, Memory: cfg.Storage.Memory}, store.WithLogger(logger))
	if !seed {
		return st, nil
	}
	racks, err := store.LoadEmbeddedRacks()
	if err != nil {
		return nil, fmt.Errorf("failed to load demo racks: %w", err)
	}
	if _, err := st.SeedRacks(racks); err != nil {
		return nil, fmt.Errorf("failed to seed demo racks: %w", err)
	}
	return st, nil
}

// newFactory 按奖励配置创建画面工厂；exp > 0 时固定奖励数值
func newFactory(cfg *config.AppConfig, exp int) *screens.Factory {
	minExp, maxExp := cfg.Reward.MinExp, cfg.Reward.MaxExp
	if exp > 0 {
		minExp, maxExp = exp, exp
	}
	return screens.NewFactory(
		screens.WithRewardRange(minExp, maxExp),
		screens.WithSeed(cfg.Reward.Seed),
	)
}

// homeFor 返回路由对应的首页：有货架时是货架进度，否则是排行榜
func homeFor(rackID string) screens.Route {
	if rackID == "" {
		return screens.Route{Screen: screens.ScreenLeaderboard}
	}
	return screens.Route{Screen: screens.ScreenRackProgress, RackID: rackID}
}

// preload 预读货架定义，失败只记录警告（进度页会自己重新读取）
func preload(ctx context.Context, cfg *config.AppConfig, session *screens.Session, svc backend.UserDataService, rackID string, logger *zap.Logger) {
	if rackID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout())
	defer cancel()
	if _, err := session.Preload(ctx, svc, rackID); err != nil {
		logger.Warn("预读货架失败", zap.String("rack", rackID), zap.Error(err))
	}
}
