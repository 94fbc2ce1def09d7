// Package metrics owns the service's Prometheus registry and decides where
// it is exposed: on the main listener or on a listener of its own.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const DefaultPath = "/metrics"

type BuildInfo struct {
	Version   string
	Revision  string
	Branch    string
	BuildDate string
}

// Config selects the exposure. An empty Addr serves Path on the main
// listener; Enabled=false exposes nothing while the registry still collects.
type Config struct {
	Enabled bool
	Addr    string
	Path    string
	Build   BuildInfo
}

type Provider struct {
	reg     *prometheus.Registry
	enabled bool
	addr    string
	path    string
}

func Init(cfg Config) *Provider {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	build := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build info for this binary (value is always 1).",
		},
		[]string{"version", "revision", "branch", "build_date"},
	)
	reg.MustRegister(build)
	v := cfg.Build
	if v.Version == "" {
		v.Version = "dev"
	}
	build.WithLabelValues(v.Version, v.Revision, v.Branch, v.BuildDate).Set(1)

	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &Provider{reg: reg, enabled: cfg.Enabled, addr: strings.TrimSpace(cfg.Addr), path: path}
}

func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

func (p *Provider) Register(cs ...prometheus.Collector) {
	for _, c := range cs {
		p.reg.MustRegister(c)
	}
}

func (p *Provider) Registerer() prometheus.Registerer { return p.reg }

func (p *Provider) Enabled() bool { return p != nil && p.enabled }

func (p *Provider) Path() string { return p.path }

func (p *Provider) Addr() string { return p.addr }

// Inline reports whether the main listener should serve Path.
func (p *Provider) Inline() bool { return p.Enabled() && p.addr == "" }

// Serve runs the dedicated metrics listener until ctx ends. It returns
// immediately when metrics are disabled or served inline.
func (p *Provider) Serve(ctx context.Context, log *slog.Logger) error {
	if !p.Enabled() || p.addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle(p.path, p.Handler())

	srv := &http.Server{
		Addr:              p.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("metrics listening", "addr", p.addr, "path", p.path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
