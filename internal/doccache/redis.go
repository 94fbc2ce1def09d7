package doccache

import (
	"context"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/geos/internal/cache/redisstore"
	"github.com/mohammed-shakir/geos/internal/core/config"
)

type redisBackend struct {
	client *redisstore.Client
	ttl    time.Duration
}

func newRedisBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (Backend, error) {
	c, err := redisstore.New(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, err
	}
	logger.Info("doc cache: redis", "addr", cfg.RedisAddr, "ttl", cfg.DocCache.TTL.String())
	return &redisBackend{client: c, ttl: cfg.DocCache.TTL}, nil
}

func (b *redisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return b.client.Get(ctx, key)
}

func (b *redisBackend) Set(ctx context.Context, key string, val []byte) error {
	return b.client.Set(ctx, key, val, b.ttl)
}

func (b *redisBackend) Close() error { return b.client.Close() }
