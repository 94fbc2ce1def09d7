package printmap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"sync"
	"time"

	_ "github.com/chai2010/webp"

	"github.com/mohammed-shakir/geos/internal/core/executor"
	"github.com/mohammed-shakir/geos/internal/core/observability"
	"github.com/mohammed-shakir/geos/internal/geo"
	"github.com/mohammed-shakir/geos/internal/mapsource"
)

const (
	DefaultWorkers     = 16
	DefaultTileTimeout = 10 * time.Second

	// tiles larger than this are refused before their pixels are decoded
	maxTileSide = 4 * TileSize
)

var ErrTileDimensions = errors.New("tile dimensions out of range")

// Placeholder stands in for every tile that could not be fetched.
var Placeholder image.Image = image.NewNRGBA(image.Rect(0, 0, TileSize, TileSize))

type TileKey struct {
	X int
	Y int
}

// Tiles holds one image per window slot.
type Tiles map[TileKey]image.Image

type FetchStats struct {
	Total   int
	OK      int
	Failed  int
	Skipped int
}

func (s *FetchStats) add(o FetchStats) {
	s.Total += o.Total
	s.OK += o.OK
	s.Failed += o.Failed
	s.Skipped += o.Skipped
}

type Fetcher struct {
	logger      *slog.Logger
	source      executor.Interface
	workers     int
	tileTimeout time.Duration
	progress    func()
}

type Option func(*Fetcher)

func WithWorkers(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.workers = n
		}
	}
}

func WithTileTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.tileTimeout = d
		}
	}
}

// WithProgress registers a callback invoked once per finished tile. It is
// called from worker goroutines.
func WithProgress(fn func()) Option {
	return func(f *Fetcher) { f.progress = fn }
}

func NewFetcher(logger *slog.Logger, source executor.Interface, opts ...Option) *Fetcher {
	f := &Fetcher{
		logger:      logger,
		source:      source,
		workers:     DefaultWorkers,
		tileTimeout: DefaultTileTimeout,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

type tileResult struct {
	key     TileKey
	img     image.Image
	outcome string
}

// FetchTiles downloads every tile of window for layer. It always returns a
// full Tiles map: failed, timed out and out of grid tiles are replaced by
// Placeholder.
func (f *Fetcher) FetchTiles(ctx context.Context, mapID string, layer mapsource.Layer, window geo.GridBB) (Tiles, FetchStats) {
	tiles := window.Tiles()
	jobs := make(chan geo.TileCoordinate)
	results := make(chan tileResult, len(tiles))

	workers := f.workers
	if workers > len(tiles) {
		workers = len(tiles)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				results <- f.fetchOne(ctx, mapID, layer, t)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, t := range tiles {
			jobs <- t
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make(Tiles, len(tiles))
	stats := FetchStats{Total: len(tiles)}
	for r := range results {
		out[r.key] = r.img
		switch r.outcome {
		case "ok":
			stats.OK++
		case "skipped":
			stats.Skipped++
		default:
			stats.Failed++
		}
	}
	return out, stats
}

func (f *Fetcher) fetchOne(ctx context.Context, mapID string, layer mapsource.Layer, t geo.TileCoordinate) tileResult {
	key := TileKey{X: t.X, Y: t.Y}
	if f.progress != nil {
		defer f.progress()
	}
	if !t.Valid() {
		observability.ObserveTileFetch("skipped", 0)
		return tileResult{key: key, img: Placeholder, outcome: "skipped"}
	}

	url := layer.TileURL(t.Zoom, t.X, t.Y)
	start := time.Now()
	img, err := f.download(ctx, url)
	dur := time.Since(start).Seconds()
	if err != nil {
		observability.ObserveTileFetch("error", dur)
		f.logger.Warn("tile fetch failed, using placeholder",
			"map_id", mapID, "z", t.Zoom, "x", t.X, "y", t.Y, "url", url, "err", err)
		return tileResult{key: key, img: Placeholder, outcome: "error"}
	}
	observability.ObserveTileFetch("ok", dur)
	return tileResult{key: key, img: img, outcome: "ok"}
}

func (f *Fetcher) download(ctx context.Context, url string) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, f.tileTimeout)
	defer cancel()

	body, _, err := f.source.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decode tile: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > maxTileSide || cfg.Height > maxTileSide {
		return nil, fmt.Errorf("%w: %dx%d", ErrTileDimensions, cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decode tile: %w", err)
	}
	return img, nil
}
