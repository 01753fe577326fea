package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Policy describes how a memoized function is cached.
type Policy struct {
	// Name prefixes every key produced for the function.
	Name string
	TTL  time.Duration
	Tags []string
}

// Key returns the cache key for one argument value: the policy name plus
// the JSON encoding of arg.
func (p Policy) Key(arg any) (string, error) {
	b, err := json.Marshal(arg)
	if err != nil {
		return "", eris.Wrapf(err, "cache: encode key for %s", p.Name)
	}
	return p.Name + ":" + string(b), nil
}

// Memoize wraps fn so results are served from store while fresh. Values
// round-trip through JSON, so every caller gets its own copy. Concurrent
// misses on the same key share one fn call. Errors are never cached, and
// a failing store degrades to calling fn directly.
//
// A fill runs detached from the caller's cancellation. A caller whose ctx
// ends gets ctx.Err() while the fill completes and is stored for the next
// caller.
func Memoize[A, T any](store Store, p Policy, fn func(ctx context.Context, arg A) (T, error)) func(ctx context.Context, arg A) (T, error) {
	var group singleflight.Group

	return func(ctx context.Context, arg A) (T, error) {
		var zero T

		key, err := p.Key(arg)
		if err != nil {
			return zero, err
		}

		if data, ok, err := store.Get(ctx, key); err != nil {
			zap.L().Warn("cache read failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			var v T
			if err := json.Unmarshal(data, &v); err == nil {
				return v, nil
			}
			zap.L().Warn("cache entry undecodable, refreshing", zap.String("key", key))
		}

		detached := context.WithoutCancel(ctx)
		ch := group.DoChan(key, func() (any, error) {
			v, err := fn(detached, arg)
			if err != nil {
				return nil, err
			}
			b, err := json.Marshal(v)
			if err != nil {
				return nil, eris.Wrapf(err, "cache: encode value for %s", p.Name)
			}
			if err := store.Set(detached, key, b, p.TTL, p.Tags...); err != nil {
				zap.L().Warn("cache write failed", zap.String("key", key), zap.Error(err))
			}
			return b, nil
		})

		var res singleflight.Result
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case res = <-ch:
		}
		if res.Err != nil {
			return zero, res.Err
		}

		var v T
		if err := json.Unmarshal(res.Val.([]byte), &v); err != nil {
			return zero, eris.Wrapf(err, "cache: decode value for %s", p.Name)
		}
		return v, nil
	}
}
