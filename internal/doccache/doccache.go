// Package doccache stores rendered KML documents. Documents are a pure
// function of their key, so any backend may drop entries at will.
package doccache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/mohammed-shakir/geos/internal/cache/keys"
	"github.com/mohammed-shakir/geos/internal/core/config"
	"github.com/mohammed-shakir/geos/internal/core/observability"
)

const opTimeout = 250 * time.Millisecond

// Backend is a byte store keyed by rendered cache keys.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte) error
	Close() error
}

type Factory func(ctx context.Context, cfg config.Config, logger *slog.Logger) (Backend, error)

var reg = map[string]Factory{}

func Register(name string, f Factory) {
	reg[name] = f
}

// Backends lists the registered backend names.
func Backends() []string {
	out := make([]string, 0, len(reg))
	for n := range reg {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func init() {
	Register("none", func(context.Context, config.Config, *slog.Logger) (Backend, error) {
		return noop{}, nil
	})
	Register("lru", newLRUBackend)
	Register("redis", newRedisBackend)
}

// Cache wraps a Backend with metrics and error absorption.
type Cache struct {
	name    string
	backend Backend
	logger  *slog.Logger
}

// New builds the cache named by cfg.DocCache.Backend. Unknown names fall
// back to "none".
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Cache, error) {
	name := cfg.DocCache.Backend
	f, ok := reg[name]
	if !ok {
		logger.Warn("unknown doc cache backend; falling back to none", "backend", name, "known", Backends())
		name, f = "none", reg["none"]
	}
	b, err := f(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("doc cache %q: %w", name, err)
	}
	return &Cache{name: name, backend: b, logger: logger}, nil
}

// NewWithBackend wraps an existing backend. A nil backend disables caching.
func NewWithBackend(name string, b Backend, logger *slog.Logger) *Cache {
	if b == nil {
		name, b = "none", noop{}
	}
	return &Cache{name: name, backend: b, logger: logger}
}

func (c *Cache) Name() string { return c.name }

func (c *Cache) Enabled() bool {
	_, off := c.backend.(noop)
	return !off
}

// GetOrRender returns the cached document for key or renders and stores it.
// Backend failures are logged and answered by rendering.
func (c *Cache) GetOrRender(ctx context.Context, key keys.Doc, render func() ([]byte, error)) ([]byte, error) {
	if !c.Enabled() {
		return render()
	}
	k := key.String()

	gctx, cancel := context.WithTimeout(ctx, opTimeout)
	val, ok, err := c.backend.Get(gctx, k)
	cancel()
	switch {
	case err != nil:
		observability.IncDocCache("error")
		c.logger.Warn("doc cache get failed", "backend", c.name, "key", k, "err", err)
	case ok:
		observability.IncDocCache("hit")
		return val, nil
	default:
		observability.IncDocCache("miss")
	}

	body, err := render()
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := c.backend.Set(sctx, k, body); err != nil {
		c.logger.Warn("doc cache set failed", "backend", c.name, "key", k, "err", err)
	}
	return body, nil
}

func (c *Cache) Close() error { return c.backend.Close() }

type noop struct{}

func (noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (noop) Set(context.Context, string, []byte) error         { return nil }
func (noop) Close() error                                      { return nil }
