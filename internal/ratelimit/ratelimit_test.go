package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedWindowRejectsOverLimit(t *testing.T) {
	store := NewMemoryStore()
	limiter := New(store, Config{MaxRequests: 5, Window: 60 * time.Second})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := limiter.Check(ctx, "checkout:user-1")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 5-(i+1), res.Remaining)
	}

	res, err := limiter.Check(ctx, "checkout:user-1")
	require.NoError(t, err)
	assert.False(t, res.Allowed, "6th request should be rejected")
	assert.Equal(t, 0, res.Remaining)
}

func TestWindowResetsAfterExpiry(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore()
	store.now = func() time.Time { return now }

	limiter := New(store, Config{MaxRequests: 5, Window: 60 * time.Second})
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := limiter.Check(ctx, "checkout:user-1")
		require.NoError(t, err)
	}

	now = now.Add(61 * time.Second)

	res, err := limiter.Check(ctx, "checkout:user-1")
	require.NoError(t, err)
	assert.True(t, res.Allowed, "request in fresh window should be allowed")
	assert.Equal(t, 4, res.Remaining, "fresh window should start at count=1")
}

func TestKeysAreIndependent(t *testing.T) {
	store := NewMemoryStore()
	limiter := New(store, Config{MaxRequests: 1, Window: time.Minute})
	ctx := context.Background()

	res, err := limiter.Check(ctx, Key("user-1", "checkout"))
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = limiter.Check(ctx, Key("user-1", "checkout"))
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	res, err = limiter.Check(ctx, Key("user-2", "checkout"))
	require.NoError(t, err)
	assert.True(t, res.Allowed, "a second user must not share the first user's window")

	res, err = limiter.Check(ctx, Key("user-1", "orders"))
	require.NoError(t, err)
	assert.True(t, res.Allowed, "a second route must not share the checkout window")
}

func TestMemoryStoreConcurrentIncrements(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := store.Incr(ctx, "k", time.Minute)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, _, err := store.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 51, count)
}

func TestPruneDropsExpiredWindows(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_, _, err := store.Incr(ctx, "old", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, _, err = store.Incr(ctx, "fresh", time.Minute)
	require.NoError(t, err)

	store.Prune()

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.NotContains(t, store.entries, "old")
	assert.Contains(t, store.entries, "fresh")
}

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration) (int, time.Time, error) {
	return 0, time.Time{}, errors.New("store down")
}

func TestAdvisoryOnStoreFailure(t *testing.T) {
	limiter := New(failingStore{}, Config{MaxRequests: 5, Window: time.Minute})

	res, err := limiter.Check(context.Background(), "checkout:user-1")
	assert.Error(t, err)
	assert.True(t, res.Allowed, "limiter degrades to advisory when the store is down")
}
