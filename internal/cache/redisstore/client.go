// Package redisstore wraps the Redis operations used by the shared
// document cache.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	maintnotifications "github.com/redis/go-redis/v9/maintnotifications"

	"github.com/mohammed-shakir/geos/internal/core/observability"
)

type Option func(*redis.Options)

func WithPoolSize(n int) Option {
	return func(o *redis.Options) { o.PoolSize = n }
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.DialTimeout = d }
}

func WithReadTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.ReadTimeout = d }
}

type Client struct {
	rdb *redis.Client
}

func New(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}

	ro := &redis.Options{
		Addr:         addr,
		PoolSize:     32,
		MinIdleConns: 2,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	}
	for _, f := range opts {
		f(ro)
	}

	rdb := redis.NewClient(ro)

	start := time.Now()
	err := rdb.Ping(ctx).Err()
	observability.ObserveCacheOp("ping", err, time.Since(start).Seconds())
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// Get returns the value stored at key. A missing key is not an error: found
// is false.
func (c *Client) Get(ctx context.Context, key string) (val []byte, found bool, err error) {
	start := time.Now()
	val, err = c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.ObserveCacheOp("get", nil, time.Since(start).Seconds())
		return nil, false, nil
	}
	observability.ObserveCacheOp("get", err, time.Since(start).Seconds())
	if err != nil {
		return nil, false, fmt.Errorf("redis GET %q: %w", key, err)
	}
	return val, true, nil
}

func (c *Client) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.rdb.Set(ctx, key, val, ttl).Err()
	observability.ObserveCacheOp("set", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("redis SET %q: %w", key, err)
	}
	return nil
}

func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}
