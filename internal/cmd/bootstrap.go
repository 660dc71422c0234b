package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/user/tmdb-ratelimit/internal/config"
	"github.com/user/tmdb-ratelimit/internal/limiter"
	"github.com/user/tmdb-ratelimit/internal/observability"
	"github.com/user/tmdb-ratelimit/internal/storage"
)

// app is everything a command needs after startup.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	selection *limiter.Selection
	closers   []func() error
}

// bootstrap loads config, builds the logger and selects the limiter. The
// caller must call close.
func bootstrap(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.viper, opts.cfgFile)
	if err != nil {
		return nil, err
	}

	logger, err := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	rt := &app{cfg: cfg, logger: logger}
	rt.selection = rt.selectLimiter(ctx)
	return rt, nil
}

func (rt *app) selectLimiter(ctx context.Context) *limiter.Selection {
	opts := []limiter.Option{
		limiter.WithLogger(rt.logger),
		limiter.WithKeyPrefix(rt.cfg.Redis.KeyPrefix),
		limiter.WithStrictCounting(rt.cfg.Redis.StrictCounting),
	}

	if !rt.cfg.Redis.Enabled {
		return limiter.Select(ctx, nil, rt.cfg.TMDb.Limiter(), opts...)
	}

	client := storage.NewRedisClient(rt.cfg.Redis.Addr, rt.cfg.Redis.Password, rt.cfg.Redis.DB)
	sel := limiter.Select(ctx, storage.NewRedisStore(client), rt.cfg.TMDb.Limiter(), opts...)
	if sel.Variant == limiter.VariantDistributed {
		rt.closers = append(rt.closers, client.Close)
	} else {
		_ = client.Close()
	}
	return sel
}

func (rt *app) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Warn("Close failed", zap.Error(err))
		}
	}
	// Sync errors are often benign (stderr already closed)
	_ = rt.logger.Sync()
}
