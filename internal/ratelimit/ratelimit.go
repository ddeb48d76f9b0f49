// Package ratelimit implements a fixed-window request counter. The window
// starts on the first request for a key; every request increments the counter
// and the request that pushes the count past the limit is itself rejected.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Config is one (limit, window) pair. Presets are just different configs fed
// to the same algorithm.
type Config struct {
	MaxRequests int
	Window      time.Duration
}

// Preset configs. Payment endpoints get the tightest budget.
var (
	Strict   = Config{MaxRequests: 10, Window: time.Minute}
	Standard = Config{MaxRequests: 60, Window: time.Minute}
	Relaxed  = Config{MaxRequests: 300, Window: time.Minute}
	Payment  = Config{MaxRequests: 5, Window: time.Minute}
)

// Result reports one admission decision.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Store is the atomic counter backend. Incr must atomically increment the
// counter for key within its current window, starting a fresh window when
// none is active, and report the post-increment count and window reset time.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int, resetAt time.Time, err error)
}

// Limiter applies a Config against a Store.
type Limiter struct {
	store Store
	cfg   Config
}

// New creates a limiter.
func New(store Store, cfg Config) *Limiter {
	return &Limiter{store: store, cfg: cfg}
}

// Check records one request against key and decides admission. On store
// failure the limiter is advisory: it reports the request as allowed along
// with the error so callers can log the degradation.
func (l *Limiter) Check(ctx context.Context, key string) (Result, error) {
	count, resetAt, err := l.store.Incr(ctx, key, l.cfg.Window)
	if err != nil {
		return Result{Allowed: true, Remaining: l.cfg.MaxRequests, ResetAt: time.Now().Add(l.cfg.Window)}, err
	}

	remaining := l.cfg.MaxRequests - count
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   count <= l.cfg.MaxRequests,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Key combines caller identity and route so limits are per-user-per-endpoint.
func Key(identity, route string) string {
	return fmt.Sprintf("%s:%s", route, identity)
}

type windowEntry struct {
	count   int
	resetAt time.Time
}

// MemoryStore is a process-local Store. Counts are not shared across
// processes, so multi-node deployments need the Redis store instead.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	now     func() time.Time
}

// NewMemoryStore creates an in-memory fixed-window store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*windowEntry),
		now:     time.Now,
	}
}

// Incr implements Store.
func (m *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.entries[key]
	if !ok || !now.Before(e.resetAt) {
		e = &windowEntry{count: 0, resetAt: now.Add(window)}
		m.entries[key] = e
	}
	e.count++

	return e.count, e.resetAt, nil
}

// Prune drops expired windows. Callers run it periodically; the store never
// grows past the set of keys seen within one window otherwise.
func (m *MemoryStore) Prune() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, e := range m.entries {
		if !now.Before(e.resetAt) {
			delete(m.entries, key)
		}
	}
}

// RedisIncrementer matches the redis client's fixed-window command.
type RedisIncrementer interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int, time.Time, error)
}

// RedisStore is a Store backed by a shared atomic Redis counter, safe across
// processes.
type RedisStore struct {
	client RedisIncrementer
}

// NewRedisStore creates a Redis-backed fixed-window store.
func NewRedisStore(client RedisIncrementer) *RedisStore {
	return &RedisStore{client: client}
}

// Incr implements Store.
func (r *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	return r.client.IncrWindow(ctx, key, window)
}
