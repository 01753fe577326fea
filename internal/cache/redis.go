package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// DefaultRedisPrefix namespaces cache keys in a shared Redis.
const DefaultRedisPrefix = "dealdesk:"

// Redis is a Store backed by Redis. Tags are kept as sets of member keys.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis wraps an existing client. An empty prefix uses
// DefaultRedisPrefix.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

// DialRedis connects to addr and pings it. A failed ping is returned with
// the store so callers can decide whether to fall back.
func DialRedis(ctx context.Context, addr, password string, db int, prefix string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	r := NewRedis(client, prefix)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return r, eris.Wrapf(err, "cache: ping redis at %s", addr)
	}
	return r, nil
}

func (r *Redis) entryKey(key string) string { return r.prefix + "cache:" + key }
func (r *Redis) tagKey(tag string) string   { return r.prefix + "tag:" + tag }

// Get implements Store.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.entryKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: redis get %s", key)
	}
	return data, true, nil
}

// Set implements Store. A non-positive ttl is a no-op.
func (r *Redis) Set(ctx context.Context, key string, data []byte, ttl time.Duration, tags ...string) error {
	if ttl <= 0 {
		return nil
	}

	ek := r.entryKey(key)
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, ek, data, ttl)
	for _, tag := range tags {
		pipe.SAdd(ctx, r.tagKey(tag), ek)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return eris.Wrapf(err, "cache: redis set %s", key)
	}
	return nil
}

// InvalidateTag implements Store.
func (r *Redis) InvalidateTag(ctx context.Context, tag string) error {
	tk := r.tagKey(tag)
	members, err := r.client.SMembers(ctx, tk).Result()
	if err != nil {
		return eris.Wrapf(err, "cache: redis members of tag %s", tag)
	}

	keys := append(members, tk)
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return eris.Wrapf(err, "cache: redis invalidate tag %s", tag)
	}
	return nil
}

// Close implements Store.
func (r *Redis) Close() error {
	return r.client.Close()
}
