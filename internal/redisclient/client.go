package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/fixed_window.lua
var fixedWindowScript string

type Client struct {
	rdb          *redis.Client
	windowScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:          rdb,
		windowScript: redis.NewScript(fixedWindowScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// IncrWindow atomically increments the fixed-window counter for key, starting
// a new window of the given length on its first hit. It returns the count
// after incrementing and the instant the window resets.
func (c *Client) IncrWindow(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	result, err := c.windowScript.Run(ctx, c.rdb,
		[]string{fmt.Sprintf("ratelimit:%s", key)}, window.Milliseconds()).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("fixed window script failed: %w", err)
	}

	vals, ok := result.([]interface{})
	if !ok || len(vals) != 2 {
		return 0, time.Time{}, fmt.Errorf("unexpected script result type")
	}

	count, ok1 := vals[0].(int64)
	ttlMs, ok2 := vals[1].(int64)
	if !ok1 || !ok2 {
		return 0, time.Time{}, fmt.Errorf("unexpected script result type")
	}

	resetAt := time.Now().Add(time.Duration(ttlMs) * time.Millisecond)
	return int(count), resetAt, nil
}
