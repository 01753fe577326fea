package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/cache"
	"github.com/sells-group/dealdesk/internal/config"
	"github.com/sells-group/dealdesk/internal/crm"
	"github.com/sells-group/dealdesk/internal/resilience"
	"github.com/sells-group/dealdesk/internal/store"
	"github.com/sells-group/dealdesk/pkg/hubspot"
)

// appEnv holds everything a command needs to talk to HubSpot.
type appEnv struct {
	Service *crm.Service
	Ledger  store.Store
	Cache   cache.Store
}

// Close releases the ledger and cache connections.
func (e *appEnv) Close() {
	if e.Ledger != nil {
		if err := e.Ledger.Close(); err != nil {
			zap.L().Warn("close ledger", zap.Error(err))
		}
	}
	if e.Cache != nil {
		if err := e.Cache.Close(); err != nil {
			zap.L().Warn("close cache", zap.Error(err))
		}
	}
}

// initEnv validates config for mode and wires client, coordinator, cache,
// ledger and service.
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	ledger, err := initStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := ledger.Migrate(ctx); err != nil {
		ledger.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}

	cst, err := initCache(ctx, cfg.Cache)
	if err != nil {
		ledger.Close() //nolint:errcheck
		return nil, err
	}

	client := hubspot.NewClient(cfg.HubSpot.AccessToken,
		hubspot.WithBaseURL(cfg.HubSpot.BaseURL),
		hubspot.WithRateLimit(cfg.HubSpot.RateLimitRPS),
		hubspot.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.HubSpot.TimeoutSecs) * time.Second}),
	)

	r := cfg.HubSpot.Retry
	coord := resilience.NewCoordinator(resilience.FromRetryConfig(r.MaxRetries, r.InitialBackoffMs, r.MaxBackoffMs, r.Multiplier))

	svc := crm.NewService(client, coord, serviceConfig(cfg),
		crm.WithCache(cst),
		crm.WithLedger(ledger),
	)
	return &appEnv{Service: svc, Ledger: ledger, Cache: cst}, nil
}

// serviceConfig maps file/env configuration onto service policy.
func serviceConfig(c *config.Config) crm.Config {
	secs := func(n int) time.Duration { return time.Duration(n) * time.Second }
	return crm.Config{
		TargetPipelines: c.HubSpot.TargetPipelines,
		MaxRetries:      -1,
		CacheTTLs: crm.CacheTTLs{
			Deals:     secs(c.Cache.DealsTTLSecs),
			Stages:    secs(c.Cache.StagesTTLSecs),
			Pipelines: secs(c.Cache.PipelinesTTLSecs),
			Owners:    secs(c.Cache.OwnersTTLSecs),
		},
		Poll: crm.PollConfig{
			InitialDelay: time.Duration(c.Export.InitialDelayMs) * time.Millisecond,
			Interval:     time.Duration(c.Export.IntervalMs) * time.Millisecond,
			Timeout:      secs(c.Export.TimeoutSecs),
		},
	}
}

func initStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	switch sc.Driver {
	case "sqlite":
		dsn := sc.DatabaseURL
		if dsn == "" {
			dsn = "dealdesk.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, sc.DatabaseURL, &store.PoolConfig{
			MaxConns: sc.MaxConns,
			MinConns: sc.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
}

// initCache returns the configured cache. An unreachable Redis is logged
// and used anyway: memoized calls fall through to HubSpot until it
// recovers.
func initCache(ctx context.Context, cc config.CacheConfig) (cache.Store, error) {
	switch cc.Driver {
	case "", "memory":
		return cache.NewMemory(), nil
	case "none":
		return cache.Nop{}, nil
	case "redis":
		r, err := cache.DialRedis(ctx, cc.Redis.Addr, cc.Redis.Password, cc.Redis.DB, cc.Redis.Prefix)
		if err != nil {
			zap.L().Warn("redis cache unreachable, continuing", zap.String("addr", cc.Redis.Addr), zap.Error(err))
		}
		return r, nil
	default:
		return nil, eris.Errorf("unsupported cache driver: %s", cc.Driver)
	}
}
