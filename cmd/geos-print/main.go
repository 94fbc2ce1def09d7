// Command geos-print renders one printable map page without the HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	pb "gopkg.in/cheggaaa/pb.v1"

	"github.com/mohammed-shakir/geos/internal/core/config"
	"github.com/mohammed-shakir/geos/internal/core/executor"
	"github.com/mohammed-shakir/geos/internal/core/httpclient"
	"github.com/mohammed-shakir/geos/internal/geo"
	"github.com/mohammed-shakir/geos/internal/logger"
	"github.com/mohammed-shakir/geos/internal/mapsource"
	"github.com/mohammed-shakir/geos/internal/printmap"
)

type options struct {
	mapsDir  string
	mapID    string
	x, y     float64
	lat, lon float64
	useLL    bool
	zoom     int
	page     printmap.Page
	format   string
	out      string
	quiet    bool
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func parseFlags(args []string) (options, error) {
	cfg := config.FromEnv()
	o := options{page: printmap.DefaultPage()}
	o.page.DPI = cfg.Print.DefaultDPI

	fs := flag.NewFlagSet("geos-print", flag.ContinueOnError)
	fs.StringVar(&o.mapsDir, "maps", cfg.MapsDir, "directory with map source definitions")
	fs.StringVar(&o.mapID, "map", "", "map source id (required)")
	fs.Float64Var(&o.x, "x", 0, "page centre, web mercator easting in metres")
	fs.Float64Var(&o.y, "y", 0, "page centre, web mercator northing in metres")
	lat := fs.String("lat", "", "page centre latitude (instead of -x/-y)")
	lon := fs.String("lon", "", "page centre longitude (instead of -x/-y)")
	fs.IntVar(&o.zoom, "zoom", printmap.DefaultZoom, "tile zoom level")
	fs.Float64Var(&o.page.WidthMM, "width", o.page.WidthMM, "page width in mm")
	fs.Float64Var(&o.page.HeightMM, "height", o.page.HeightMM, "page height in mm")
	fs.Float64Var(&o.page.DPI, "dpi", o.page.DPI, "output resolution")
	fs.StringVar(&o.format, "format", string(printmap.DefaultFormat), "pdf, png, jpeg, tiff, bmp, webp or gif")
	fs.StringVar(&o.out, "o", "", "output file (default map.<format>)")
	fs.BoolVar(&o.quiet, "q", false, "no progress bar")
	err := fs.Parse(args)
	if err != nil {
		return o, err
	}

	if o.mapID == "" {
		return o, errors.New("-map is required")
	}
	if (*lat == "") != (*lon == "") {
		return o, errors.New("-lat and -lon go together")
	}
	if *lat != "" {
		if o.lat, err = strconv.ParseFloat(*lat, 64); err != nil {
			return o, fmt.Errorf("-lat: %w", err)
		}
		if o.lon, err = strconv.ParseFloat(*lon, 64); err != nil {
			return o, fmt.Errorf("-lon: %w", err)
		}
		o.useLL = true
	}
	return o, nil
}

func (o options) center() (geo.MercatorCoordinate, error) {
	if o.useLL {
		return geo.GeographicCoordinate{Lat: o.lat, Lon: o.lon}.ToMercator()
	}
	return geo.MercatorCoordinate{X: o.x, Y: o.y}, nil
}

func run(args []string) int {
	o, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, "geos-print:", err)
		return 2
	}

	cfg := config.FromEnv()
	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   true,
		Service:   "geos",
		Component: "print-cli",
	}, os.Stderr)
	log := logger.NewSlog(&zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := printPage(ctx, log, cfg, o); err != nil {
		log.Error("print failed", "map_id", o.mapID, "err", err)
		return 1
	}
	return 0
}

func printPage(ctx context.Context, log *slog.Logger, cfg config.Config, o options) error {
	format, err := printmap.ParseFormat(o.format)
	if err != nil {
		return err
	}
	center, err := o.center()
	if err != nil {
		return err
	}

	registry, err := mapsource.LoadDir(o.mapsDir)
	if err != nil {
		return err
	}
	ms, err := registry.Resolve(o.mapID)
	if err != nil {
		return err
	}

	window, err := printmap.ComputeWindow(center, o.zoom, o.page)
	if err != nil {
		return err
	}
	total := int64(window.Len() * len(ms.ActiveLayers(o.zoom)))

	fetchOpts := []printmap.Option{
		printmap.WithWorkers(cfg.Print.Workers),
		printmap.WithTileTimeout(cfg.Print.TileTimeout),
	}
	var bar *pb.ProgressBar
	if !o.quiet && total > 0 {
		bar = pb.New64(total).Prefix(fmt.Sprintf("Zoom %d : ", o.zoom))
		bar.Output = os.Stderr
		bar.SetRefreshRate(200 * time.Millisecond)
		bar.Start()
		fetchOpts = append(fetchOpts, printmap.WithProgress(func() { bar.Increment() }))
	}

	exec := executor.New(log, httpclient.NewOutbound(cfg.Print.Workers), cfg.Print.UserAgent)
	printer := printmap.NewPrinter(log, printmap.NewFetcher(log, exec, fetchOpts...), cfg.Print.MaxPixels)

	art, res, err := printer.Print(ctx, ms, printmap.Request{
		Center: center,
		Zoom:   o.zoom,
		Page:   o.page,
		Format: format,
	})
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}
	defer func() { _ = art.Remove() }()

	out := o.out
	if out == "" {
		out = art.Filename()
	}
	if err := copyFile(art.Path, out); err != nil {
		return err
	}
	log.Info("map written",
		"path", out,
		"bytes", art.Size,
		"tiles", res.Stats.Total,
		"failed", res.Stats.Failed,
		"skipped", res.Stats.Skipped,
		"elapsed", res.Duration)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, in); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return f.Close()
}
