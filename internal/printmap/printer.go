package printmap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/teris-io/shortid"

	"github.com/mohammed-shakir/geos/internal/core/observability"
	"github.com/mohammed-shakir/geos/internal/geo"
	"github.com/mohammed-shakir/geos/internal/mapsource"
)

type Request struct {
	Center geo.MercatorCoordinate
	Zoom   int
	Page   Page
	Format Format
}

// Result describes a finished print job.
type Result struct {
	JobID    string
	Window   geo.GridBB
	Layers   int
	Stats    FetchStats
	Duration time.Duration
}

type Printer struct {
	logger    *slog.Logger
	fetcher   *Fetcher
	maxPixels int
}

func NewPrinter(logger *slog.Logger, fetcher *Fetcher, maxPixels int) *Printer {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxCanvasPixels
	}
	return &Printer{logger: logger, fetcher: fetcher, maxPixels: maxPixels}
}

// Print runs the whole pipeline for the layers of ms active at req.Zoom and
// returns the encoded artifact. The caller must Remove it.
func (p *Printer) Print(ctx context.Context, ms *mapsource.MapSource, req Request) (*Artifact, Result, error) {
	start := time.Now()
	res := Result{JobID: newJobID()}
	if req.Format == "" {
		req.Format = DefaultFormat
	}
	if _, err := ParseFormat(string(req.Format)); err != nil {
		return nil, res, err
	}
	if _, err := req.Center.ToGeographic(); err != nil {
		return nil, res, err
	}
	if err := req.Page.Validate(); err != nil {
		return nil, res, err
	}
	if _, err := canvasSize(req.Page, p.maxPixels); err != nil {
		return nil, res, err
	}

	window, err := ComputeWindow(req.Center, req.Zoom, req.Page)
	if err != nil {
		return nil, res, err
	}
	res.Window = window

	log := p.logger.With("job_id", res.JobID, "map_id", ms.ID)
	log.Info("print started", "zoom", req.Zoom, "window", window.String(), "tiles", window.Len())

	active := ms.ActiveLayers(req.Zoom)
	layers := make([]Tiles, 0, len(active))
	for _, l := range active {
		tiles, stats := p.fetcher.FetchTiles(ctx, ms.ID, l, window)
		layers = append(layers, tiles)
		res.Stats.add(stats)
	}
	res.Layers = len(layers)
	if err := ctx.Err(); err != nil {
		return nil, res, err
	}

	canvas, err := Stitch(layers, req.Page, window, p.maxPixels)
	if err != nil {
		return nil, res, err
	}
	if err := AddScaleBar(canvas, window); err != nil {
		return nil, res, err
	}
	art, err := Export(canvas, req.Format, req.Page.DPI)
	if err != nil {
		return nil, res, err
	}

	res.Duration = time.Since(start)
	observability.ObservePrint(string(req.Format), res.Duration.Seconds())
	log.Info("print finished",
		"format", string(req.Format), "layers", res.Layers,
		"ok", res.Stats.OK, "failed", res.Stats.Failed, "skipped", res.Stats.Skipped,
		"bytes", art.Size, "dur", res.Duration.String())
	return art, res, nil
}

func newJobID() string {
	id, err := shortid.Generate()
	if err != nil {
		return fmt.Sprintf("job-%d", time.Now().UnixNano())
	}
	return id
}
