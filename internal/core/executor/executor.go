// Package executor performs upstream tile requests.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mohammed-shakir/geos/internal/core/observability"
)

// Some tile servers refuse requests that do not look like they come from a browser.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 6.1) AppleWebKit/537.36 (KHTML, " +
	"like Gecko) Chrome/35.0.1916.153 Safari/537.36 SE 2.X MetaSr 1.0"

const maxTileBytes = 16 << 20

var ErrTileTooLarge = errors.New("tile exceeds size limit")

type Interface interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

type Executor struct {
	logger    *slog.Logger
	client    *http.Client
	userAgent string
	startNow  func() time.Time // for tests
}

func New(logger *slog.Logger, client *http.Client, userAgent string) *Executor {
	if client == nil {
		client = http.DefaultClient
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Executor{
		logger:    logger,
		client:    client,
		userAgent: userAgent,
		startNow:  time.Now,
	}
}

// Fetch downloads one tile and returns its body and content type. Non 2xx
// answers are errors.
func (e *Executor) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "image/*")

	start := e.startNow()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	observability.ObserveUpstreamLatency("tile", e.startNow().Sub(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return nil, "", fmt.Errorf("upstream status %d: %s", resp.StatusCode, string(b))
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxTileBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	if len(b) > maxTileBytes {
		return nil, "", fmt.Errorf("%w: %s", ErrTileTooLarge, url)
	}
	e.logger.Debug("tile fetched", "url", url, "bytes", len(b), "dur", e.startNow().Sub(start).String())
	return b, resp.Header.Get("Content-Type"), nil
}
