package cache

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	data    []byte
	expires time.Time
	tags    []string
}

// Memory is an in-process Store. Expired entries are dropped lazily on
// read.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memEntry
	tags    map[string]map[string]struct{}
	nowFunc func() time.Time
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithNow overrides the clock used for expiry.
func WithNow(fn func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.nowFunc = fn
	}
}

// NewMemory creates an empty in-process store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]memEntry),
		tags:    make(map[string]map[string]struct{}),
		nowFunc: time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !m.nowFunc().Before(e.expires) {
		m.removeLocked(key, e)
		return nil, false, nil
	}
	return e.data, true, nil
}

// Set implements Store. A non-positive ttl is a no-op.
func (m *Memory) Set(_ context.Context, key string, data []byte, ttl time.Duration, tags ...string) error {
	if ttl <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.entries[key]; ok {
		m.removeLocked(key, old)
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	m.entries[key] = memEntry{
		data:    buf,
		expires: m.nowFunc().Add(ttl),
		tags:    tags,
	}
	for _, tag := range tags {
		keys, ok := m.tags[tag]
		if !ok {
			keys = make(map[string]struct{})
			m.tags[tag] = keys
		}
		keys[key] = struct{}{}
	}
	return nil
}

// InvalidateTag implements Store.
func (m *Memory) InvalidateTag(_ context.Context, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.tags[tag] {
		if e, ok := m.entries[key]; ok {
			m.removeLocked(key, e)
		}
	}
	delete(m.tags, tag)
	return nil
}

// Close implements Store.
func (m *Memory) Close() error { return nil }

func (m *Memory) removeLocked(key string, e memEntry) {
	delete(m.entries, key)
	for _, tag := range e.tags {
		if keys, ok := m.tags[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(m.tags, tag)
			}
		}
	}
}

// Nop never stores anything. Memoized calls always run.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (Nop) Set(context.Context, string, []byte, time.Duration, ...string) error { return nil }

func (Nop) InvalidateTag(context.Context, string) error { return nil }

func (Nop) Close() error { return nil }
