package doccache

import (
	"context"
	"log/slog"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mohammed-shakir/geos/internal/core/config"
)

// lruBackend keeps documents in process memory. expirable.LRU is safe for
// concurrent use.
type lruBackend struct {
	lru *expirable.LRU[string, []byte]
}

func newLRUBackend(_ context.Context, cfg config.Config, logger *slog.Logger) (Backend, error) {
	size := cfg.DocCache.Size
	if size <= 0 {
		size = 4096
	}
	logger.Info("doc cache: in-memory lru", "size", size, "ttl", cfg.DocCache.TTL.String())
	return &lruBackend{lru: expirable.NewLRU[string, []byte](size, nil, cfg.DocCache.TTL)}, nil
}

func (b *lruBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := b.lru.Get(key)
	return v, ok, nil
}

func (b *lruBackend) Set(_ context.Context, key string, val []byte) error {
	b.lru.Add(key, val)
	return nil
}

func (b *lruBackend) Close() error {
	b.lru.Purge()
	return nil
}
