package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/mohammed-shakir/geos/internal/core/config"
	"github.com/mohammed-shakir/geos/internal/core/executor"
	"github.com/mohammed-shakir/geos/internal/core/httpclient"
	"github.com/mohammed-shakir/geos/internal/core/observability"
	"github.com/mohammed-shakir/geos/internal/core/router"
	"github.com/mohammed-shakir/geos/internal/core/server"
	"github.com/mohammed-shakir/geos/internal/doccache"
	"github.com/mohammed-shakir/geos/internal/kml"
	"github.com/mohammed-shakir/geos/internal/logger"
	"github.com/mohammed-shakir/geos/internal/mapsource"
	"github.com/mohammed-shakir/geos/internal/metrics"
	"github.com/mohammed-shakir/geos/internal/printevents"
	"github.com/mohammed-shakir/geos/internal/printmap"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	mapsDir := flag.String("maps", "", "directory with map source definitions (overrides MAPS_DIR)")
	addr := flag.String("addr", "", "listen address (overrides ADDR)")
	flag.Parse()

	cfg := config.FromEnv()
	if *mapsDir != "" {
		cfg.MapsDir = *mapsDir
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Service:   "geos",
		Component: "server",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prov := metrics.Init(metrics.Config{
		Enabled: cfg.MetricsEnabled,
		Addr:    cfg.MetricsAddr,
		Path:    cfg.MetricsPath,
		Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			Branch:    os.Getenv("BUILD_BRANCH"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
	})
	observability.Init(prov.Registerer(), prov.Enabled())
	go func() {
		if err := prov.Serve(ctx, appLog); err != nil {
			appLog.Error("metrics server exited", "addr", prov.Addr(), "err", err)
		}
	}()

	registry, err := mapsource.LoadDir(cfg.MapsDir)
	if err != nil {
		appLog.Error("loading map sources failed", "dir", cfg.MapsDir, "err", err)
		return 1
	}
	appLog.Info("map sources loaded", "dir", cfg.MapsDir, "count", registry.Len())

	gen, err := kml.NewGenerator(kml.URLFormatter{
		Scheme: cfg.Public.Scheme,
		Host:   cfg.Public.Host,
		Port:   cfg.Public.Port,
	}, cfg.LogTilesPerRow, cfg.MinZoomLimit)
	if err != nil {
		appLog.Error("kml generator setup failed", "err", err)
		return 1
	}

	exec := executor.New(appLog, httpclient.NewOutbound(cfg.Print.Workers), cfg.Print.UserAgent)
	fetcher := printmap.NewFetcher(appLog, exec,
		printmap.WithWorkers(cfg.Print.Workers),
		printmap.WithTileTimeout(cfg.Print.TileTimeout),
	)
	printer := printmap.NewPrinter(appLog, fetcher, cfg.Print.MaxPixels)

	docs, err := doccache.New(ctx, cfg, appLog)
	if err != nil {
		appLog.Warn("document cache unavailable, rendering every request", "backend", cfg.DocCache.Backend, "err", err)
		docs = doccache.NewWithBackend("none", nil, appLog)
	}
	defer func() { _ = docs.Close() }()

	var events printevents.Sink = printevents.Nop{}
	if cfg.PrintEvents.Enabled {
		pub, err := printevents.NewPublisher(cfg.PrintEvents.Brokers, cfg.PrintEvents.Topic, 1024, appLog)
		if err != nil {
			appLog.Warn("print events disabled", "brokers", cfg.PrintEvents.Brokers, "err", err)
		} else {
			defer func() { _ = pub.Close() }()
			events = pub
		}
	}

	svc := router.New(router.Deps{
		Logger:     appLog,
		Registry:   registry,
		Generator:  gen,
		Printer:    printer,
		Docs:       docs,
		Events:     events,
		DefaultDPI: cfg.Print.DefaultDPI,
	})

	appLog.Info("starting geos",
		"addr", cfg.Addr,
		"version", Version,
		"public", gen.URLs().AbsURL("/"),
		"doc_cache", docs.Name(),
		"print_workers", cfg.Print.Workers,
		"metrics", prov.Enabled(),
		"metrics_path", prov.Path())

	if err := server.Run(ctx, cfg, appLog, server.NewHandler(appLog, svc, prov)); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
