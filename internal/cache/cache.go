// Package cache provides TTL caches with tag-based invalidation and a
// generic memoizer that the CRM accessors sit on.
package cache

import (
	"context"
	"time"
)

// Store is a byte-oriented cache. Entries expire after their TTL and can
// be dropped in bulk by any tag they were stored with.
type Store interface {
	// Get returns the cached bytes and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration, tags ...string) error
	InvalidateTag(ctx context.Context, tag string) error
	Close() error
}
