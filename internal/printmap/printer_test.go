package printmap

import (
	"context"
	"errors"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/mohammed-shakir/geos/internal/core/executor"
	"github.com/mohammed-shakir/geos/internal/geo"
	"github.com/mohammed-shakir/geos/internal/mapsource"
)

func newTileServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	body := solidPNG(t, TileSize, color.NRGBA{G: 200, A: 255})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if strings.HasPrefix(r.URL.Path, "/broken/") {
			http.Error(w, "gone", http.StatusGone)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPrinter_PrintEndToEnd(t *testing.T) {
	var hits atomic.Int64
	srv := newTileServer(t, &hits)

	ms, err := mapsource.New("osm", "OSM", "", nil,
		mapsource.Layer{URLTemplate: srv.URL + "/base/{$z}/{$x}/{$y}.png", MinZoom: 1, MaxZoom: 17},
		mapsource.Layer{URLTemplate: srv.URL + "/broken/{$z}/{$x}/{$y}.png", MinZoom: 10, MaxZoom: 17},
		mapsource.Layer{URLTemplate: srv.URL + "/high/{$z}/{$x}/{$y}.png", MinZoom: 16, MaxZoom: 17},
	)
	if err != nil {
		t.Fatalf("mapsource.New: %v", err)
	}

	fetcher := NewFetcher(discardLogger(), executor.New(discardLogger(), srv.Client(), ""), WithWorkers(4))
	p := NewPrinter(discardLogger(), fetcher, 0)

	req := Request{
		Center: geo.MercatorCoordinate{X: 4164462.15, Y: 985738.80},
		Zoom:   14,
		Page:   Page{WidthMM: 100, HeightMM: 80, DPI: 96},
		Format: FormatPNG,
	}
	art, res, err := p.Print(context.Background(), ms, req)
	if err != nil {
		t.Fatalf("Print: %v", err)
	}
	defer func() { _ = art.Remove() }()

	if res.JobID == "" {
		t.Fatal("empty job id")
	}
	if res.Layers != 2 {
		t.Fatalf("layers=%d want 2", res.Layers)
	}
	n := res.Window.Len()
	if res.Stats.Total != 2*n || res.Stats.OK != n || res.Stats.Failed != n {
		t.Fatalf("stats=%+v window=%d", res.Stats, n)
	}
	if int(hits.Load()) != 2*n {
		t.Fatalf("upstream hits=%d want %d", hits.Load(), 2*n)
	}
	if _, err := os.Stat(art.Path); err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	if art.ContentType != "image/png" {
		t.Fatalf("content type=%q", art.ContentType)
	}
}

func TestPrinter_RejectsBadRequests(t *testing.T) {
	ms, _ := mapsource.New("m", "", "", nil, mapsource.Layer{URLTemplate: "http://t/{z}/{x}/{y}", MaxZoom: 18})
	p := NewPrinter(discardLogger(), NewFetcher(discardLogger(), &fakeSource{}), 1_000_000)

	cases := []struct {
		name string
		req  Request
		want error
	}{
		{"format", Request{Page: DefaultPage(), Format: "svg"}, ErrUnsupportedFormat},
		{"projection", Request{Center: geo.MercatorCoordinate{Y: 3 * geo.HalfWorld}, Page: DefaultPage()}, geo.ErrProjectionRange},
		{"page", Request{Page: Page{WidthMM: -1, HeightMM: 1, DPI: 1}}, ErrInvalidPage},
		{"oversized", Request{Page: DefaultPage()}, ErrCanvasAllocation},
	}
	for _, tc := range cases {
		_, _, err := p.Print(context.Background(), ms, tc.req)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: err=%v want %v", tc.name, err, tc.want)
		}
	}
}

func TestPrinter_HugePageIsRejectedNotAllocated(t *testing.T) {
	var hits atomic.Int64
	srv := newTileServer(t, &hits)
	ms, err := mapsource.New("osm", "", "", nil,
		mapsource.Layer{URLTemplate: srv.URL + "/base/{$z}/{$x}/{$y}.png", MinZoom: 1, MaxZoom: 17},
		mapsource.Layer{URLTemplate: srv.URL + "/high/{$z}/{$x}/{$y}.png", MinZoom: 16, MaxZoom: 17},
	)
	if err != nil {
		t.Fatalf("mapsource.New: %v", err)
	}
	fetcher := NewFetcher(discardLogger(), executor.New(discardLogger(), srv.Client(), ""))
	p := NewPrinter(discardLogger(), fetcher, 0)

	// 2^32 px per side; the pixel product wraps int64 to zero
	huge := Page{WidthMM: 4294967296, HeightMM: 4294967296, DPI: 25.4}
	for _, zoom := range []int{14, 3} {
		_, _, err := p.Print(context.Background(), ms, Request{Zoom: zoom, Page: huge, Format: FormatPNG})
		if !errors.Is(err, ErrCanvasAllocation) {
			t.Fatalf("zoom %d: err=%v want ErrCanvasAllocation", zoom, err)
		}
	}
	if n := hits.Load(); n != 0 {
		t.Fatalf("tile requests=%d want 0", n)
	}
}
