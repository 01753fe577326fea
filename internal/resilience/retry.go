package resilience

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultKey is used when a caller passes an empty dedup key.
const DefaultKey = "default"

// RetryConfig controls retry behavior with exponential backoff.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	// Default: 3.
	MaxRetries int

	// InitialBackoff is the delay before the first retry. Default: 1s.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff duration. Default: 30s.
	MaxBackoff time.Duration

	// Multiplier scales the backoff after each attempt. Default: 2.0.
	Multiplier float64

	// ShouldRetry optionally overrides the default rate-limit check.
	// If nil, IsRateLimit is used.
	ShouldRetry func(err error) bool
}

// DefaultRetryConfig returns the retry schedule used for HubSpot calls:
// three retries waiting 1s, 2s and 4s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
}

func applyDefaults(cfg RetryConfig) RetryConfig {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = IsRateLimit
	}
	return cfg
}

func computeBackoff(attempt int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(attempt))
	if delay > float64(cfg.MaxBackoff) {
		delay = float64(cfg.MaxBackoff)
	}
	return time.Duration(delay)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep waits for d, returning early with ctx.Err() if ctx ends first.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithSleep replaces the backoff sleep. Tests use it to skip real waits.
func WithSleep(fn SleepFunc) CoordinatorOption {
	return func(c *Coordinator) {
		c.sleep = fn
	}
}

// Coordinator retries rate-limited calls and collapses concurrent calls
// sharing a key into one physical execution. The key table is per
// instance; callers normally hold one Coordinator per process.
type Coordinator struct {
	cfg   RetryConfig
	group singleflight.Group
	sleep SleepFunc
}

// NewCoordinator creates a Coordinator with the given retry schedule.
func NewCoordinator(cfg RetryConfig, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		cfg:   applyDefaults(cfg),
		sleep: Sleep,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Config returns the effective retry configuration.
func (c *Coordinator) Config() RetryConfig {
	return c.cfg
}

// Do runs fn under key. While a call for key is in flight, later callers
// attach to it and receive its outcome instead of starting their own, even
// if their fn differs. The entry is cleared once the call settles, so the
// next call after that starts fresh.
//
// The shared call runs detached from any single caller's cancellation. A
// caller whose ctx ends stops waiting and gets ctx.Err(); the call itself
// keeps going for the others.
func Do[T any](ctx context.Context, c *Coordinator, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	return do(ctx, c, key, c.cfg.MaxRetries, fn)
}

// WithRetry wraps fn so every invocation goes through the coordinator
// under key with at most maxRetries retries. A negative maxRetries uses
// the coordinator's default.
func WithRetry[A, T any](c *Coordinator, key string, maxRetries int, fn func(ctx context.Context, arg A) (T, error)) func(ctx context.Context, arg A) (T, error) {
	if maxRetries < 0 {
		maxRetries = c.cfg.MaxRetries
	}
	return func(ctx context.Context, arg A) (T, error) {
		return do(ctx, c, key, maxRetries, func(ctx context.Context) (T, error) {
			return fn(ctx, arg)
		})
	}
}

func do[T any](ctx context.Context, c *Coordinator, key string, maxRetries int, fn func(ctx context.Context) (T, error)) (T, error) {
	if key == "" {
		key = DefaultKey
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return retry(detached, c, key, maxRetries, fn)
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		if res.Val == nil {
			return zero, nil
		}
		v, ok := res.Val.(T)
		if !ok {
			return zero, eris.Errorf("resilience: key %q shared by calls of different result types", key)
		}
		return v, nil
	}
}

func retry[T any](ctx context.Context, c *Coordinator, key string, maxRetries int, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if !c.cfg.ShouldRetry(err) {
			return zero, err
		}

		// Don't sleep after the last attempt.
		if attempt >= maxRetries {
			break
		}

		delay := computeBackoff(attempt, c.cfg)
		zap.L().Warn("rate limited, retrying",
			zap.String("key", key),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxRetries+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return zero, lastErr
		}
	}

	return zero, lastErr
}
