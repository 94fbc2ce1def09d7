package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammed-shakir/geos/internal/core/observability"
	"github.com/mohammed-shakir/geos/internal/core/router"
	"github.com/mohammed-shakir/geos/internal/kml"
	"github.com/mohammed-shakir/geos/internal/mapsource"
	"github.com/mohammed-shakir/geos/internal/metrics"
)

func newHandler(t *testing.T) http.Handler {
	t.Helper()
	return newHandlerWithMetrics(t, metrics.Config{Enabled: true})
}

func newService(t *testing.T) (*slog.Logger, *router.Service) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ms, err := mapsource.New("osm", "", "", nil, mapsource.Layer{URLTemplate: "http://t/{z}/{x}/{y}.png", MinZoom: 5, MaxZoom: 6})
	if err != nil {
		t.Fatalf("mapsource: %v", err)
	}
	reg, _ := mapsource.NewRegistry(ms)
	gen, _ := kml.NewGenerator(kml.URLFormatter{Host: "localhost", Port: 5000}, 1, 5)
	return logger, router.New(router.Deps{Logger: logger, Registry: reg, Generator: gen})
}

func newHandlerWithMetrics(t *testing.T, mc metrics.Config) http.Handler {
	t.Helper()
	logger, svc := newService(t)
	p := metrics.Init(mc)
	observability.Init(p.Registerer(), p.Enabled())
	return NewHandler(logger, svc, p)
}

func TestHandler_OpsAndServiceRoutes(t *testing.T) {
	h := newHandler(t)
	cases := map[string]int{
		"/healthz":            http.StatusOK,
		"/readyz":             http.StatusOK,
		"/kml-master.kml":     http.StatusOK,
		"/maps/osm.kml":       http.StatusOK,
		"/maps/osm/5/0/0.kml": http.StatusOK,
		"/maps.json":          http.StatusOK,
		"/no/such/route":      http.StatusNotFound,
	}
	for path, want := range cases {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != want {
			t.Fatalf("%s status=%d want %d", path, rr.Code, want)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Fatalf("%s: missing X-Request-ID", path)
		}
	}
}

func TestHandler_PrintDisabledWithoutPrinter(t *testing.T) {
	rr := httptest.NewRecorder()
	newHandler(t).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/print/osm/10/0/0/100/100/map.pdf", nil))
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status=%d want 501", rr.Code)
	}
}

func TestHandler_MetricsExposeRoutePatterns(t *testing.T) {
	h := newHandler(t)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/maps/osm/5/1/1.kml", nil))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	for _, want := range []string{
		`http_requests_total{method="GET",route="/maps/{id}/{z}/{x}/{y}.kml",status="200"}`,
		`kml_documents_total{kind="region"}`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %s\n%s", want, body)
		}
	}
}

func TestHandler_MetricsMountFollowsProvider(t *testing.T) {
	cases := []struct {
		cfg  metrics.Config
		path string
		want int
	}{
		{metrics.Config{Enabled: true, Path: "/prom"}, "/prom", http.StatusOK},
		{metrics.Config{Enabled: true, Path: "/prom"}, "/metrics", http.StatusNotFound},
		{metrics.Config{Enabled: true, Addr: ":0"}, "/metrics", http.StatusNotFound},
		{metrics.Config{Enabled: false}, "/metrics", http.StatusNotFound},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		newHandlerWithMetrics(t, tc.cfg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rr.Code != tc.want {
			t.Fatalf("cfg=%+v %s: status=%d want %d", tc.cfg, tc.path, rr.Code, tc.want)
		}
	}
	logger, svc := newService(t)
	rr := httptest.NewRecorder()
	NewHandler(logger, svc, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("nil provider /metrics: status=%d want 404", rr.Code)
	}
	rr = httptest.NewRecorder()
	NewHandler(logger, svc, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("nil provider: status=%d", rr.Code)
	}
}
