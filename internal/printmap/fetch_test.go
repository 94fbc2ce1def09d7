package printmap

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mohammed-shakir/geos/internal/geo"
	"github.com/mohammed-shakir/geos/internal/mapsource"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func solidPNG(t *testing.T, size int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

// fakeSource answers with body unless mode maps the URL to a failure:
// "fail", "slow" (blocks until the context ends) or "garbage".
type fakeSource struct {
	body []byte
	mode func(url string) string

	mu    sync.Mutex
	calls []string
}

func (f *fakeSource) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()

	m := ""
	if f.mode != nil {
		m = f.mode(url)
	}
	switch m {
	case "fail":
		return nil, "", errors.New("connection refused")
	case "slow":
		<-ctx.Done()
		return nil, "", ctx.Err()
	case "garbage":
		return []byte("not an image"), "text/plain", nil
	}
	return f.body, "image/png", nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestFetchTiles_EveryTileGetsAnEntry(t *testing.T) {
	src := &fakeSource{body: solidPNG(t, TileSize, color.NRGBA{R: 255, A: 255})}
	var done atomic.Int64
	f := NewFetcher(discardLogger(), src, WithWorkers(4), WithProgress(func() { done.Add(1) }))

	window, _ := geo.NewGridBB(10, 100, 200, 104, 202)
	layer := mapsource.Layer{URLTemplate: "http://tiles/{$z}/{$x}/{$y}.png", MinZoom: 0, MaxZoom: 18}
	tiles, stats := f.FetchTiles(context.Background(), "osm", layer, window)

	if len(tiles) != window.Len() {
		t.Fatalf("entries=%d want %d", len(tiles), window.Len())
	}
	if stats.OK != window.Len() || stats.Failed != 0 || stats.Skipped != 0 {
		t.Fatalf("stats=%+v", stats)
	}
	if int(done.Load()) != window.Len() {
		t.Fatalf("progress=%d want %d", done.Load(), window.Len())
	}
	for _, tc := range window.Tiles() {
		img := tiles[TileKey{X: tc.X, Y: tc.Y}]
		if img == nil || img == Placeholder {
			t.Fatalf("tile %s missing or placeholder", tc)
		}
	}
}

func TestFetchTiles_FailuresBecomePlaceholders(t *testing.T) {
	// Column 0 fails, column 1 stalls past the timeout, column 2 is not an image.
	src := &fakeSource{
		body: solidPNG(t, TileSize, color.White),
		mode: func(url string) string {
			switch {
			case strings.HasPrefix(url, "http://tiles/0/"):
				return "fail"
			case strings.HasPrefix(url, "http://tiles/1/"):
				return "slow"
			case strings.HasPrefix(url, "http://tiles/2/"):
				return "garbage"
			}
			return ""
		},
	}
	f := NewFetcher(discardLogger(), src, WithWorkers(3), WithTileTimeout(50*time.Millisecond))

	window, _ := geo.NewGridBB(5, 0, 0, 3, 3)
	layer := mapsource.Layer{URLTemplate: "http://tiles/{$x}/{$y}/{$z}.png", MaxZoom: 18}

	start := time.Now()
	tiles, stats := f.FetchTiles(context.Background(), "m", layer, window)
	if time.Since(start) > 2*time.Second {
		t.Fatalf("fetch took %v", time.Since(start))
	}
	if len(tiles) != 16 {
		t.Fatalf("entries=%d want 16", len(tiles))
	}
	if stats.Failed != 12 || stats.OK != 4 {
		t.Fatalf("stats=%+v want 12 failed 4 ok", stats)
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 3; x++ {
			if tiles[TileKey{X: x, Y: y}] != Placeholder {
				t.Fatalf("tile (%d,%d) not placeholder", x, y)
			}
		}
		if tiles[TileKey{X: 3, Y: y}] == Placeholder {
			t.Fatalf("tile (3,%d) is placeholder", y)
		}
	}
}

func TestFetchTiles_OutOfGridSkipsRequest(t *testing.T) {
	src := &fakeSource{body: solidPNG(t, TileSize, color.White)}
	f := NewFetcher(discardLogger(), src)

	// Zoom 1 has tiles 0..1 on each axis.
	window, _ := geo.NewGridBB(1, -1, -1, 1, 1)
	layer := mapsource.Layer{URLTemplate: "http://t/{z}/{x}/{y}.png", MaxZoom: 5}
	tiles, stats := f.FetchTiles(context.Background(), "m", layer, window)

	if len(tiles) != 9 {
		t.Fatalf("entries=%d want 9", len(tiles))
	}
	if stats.Skipped != 5 || stats.OK != 4 {
		t.Fatalf("stats=%+v want 5 skipped 4 ok", stats)
	}
	if src.callCount() != 4 {
		t.Fatalf("requests=%d want 4", src.callCount())
	}
	if tiles[TileKey{X: -1, Y: 0}] != Placeholder {
		t.Fatal("out of grid tile is not the placeholder")
	}
}

func TestFetchTiles_CancelledContextCompletes(t *testing.T) {
	src := &fakeSource{mode: func(string) string { return "slow" }}
	f := NewFetcher(discardLogger(), src, WithWorkers(2))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	window, _ := geo.NewGridBB(8, 10, 10, 13, 13)
	layer := mapsource.Layer{URLTemplate: "http://t/{z}/{x}/{y}.png", MaxZoom: 18}
	tiles, stats := f.FetchTiles(ctx, "m", layer, window)
	if len(tiles) != 16 || stats.Failed != 16 {
		t.Fatalf("entries=%d stats=%+v", len(tiles), stats)
	}
}

// pngDeclaring returns a valid 1x1 PNG whose header claims w x h pixels.
func pngDeclaring(t *testing.T, w, h uint32) []byte {
	t.Helper()
	b := solidPNG(t, 1, color.White)
	// IHDR data starts at 16, its CRC covers type+data (12..29) and sits at 29
	binary.BigEndian.PutUint32(b[16:], w)
	binary.BigEndian.PutUint32(b[20:], h)
	binary.BigEndian.PutUint32(b[29:], crc32.ChecksumIEEE(b[12:29]))
	return b
}

func TestFetchTiles_OversizedTileBecomesPlaceholder(t *testing.T) {
	src := &fakeSource{
		body: solidPNG(t, TileSize, color.White),
		mode: func(url string) string {
			if strings.HasPrefix(url, "http://tiles/0/") {
				return "bomb"
			}
			return ""
		},
	}
	bomb := pngDeclaring(t, 1<<20, 1<<20)
	f := NewFetcher(discardLogger(), &bombSource{fakeSource: src, bomb: bomb}, WithWorkers(2))

	window, _ := geo.NewGridBB(5, 0, 0, 1, 0)
	layer := mapsource.Layer{URLTemplate: "http://tiles/{$x}/{$y}/{$z}.png", MaxZoom: 18}
	tiles, stats := f.FetchTiles(context.Background(), "m", layer, window)

	if stats.Failed != 1 || stats.OK != 1 {
		t.Fatalf("stats=%+v want 1 failed 1 ok", stats)
	}
	if tiles[TileKey{X: 0, Y: 0}] != Placeholder {
		t.Fatal("oversized tile was decoded")
	}
}

func TestDownload_RejectsDeclaredDimensions(t *testing.T) {
	f := NewFetcher(discardLogger(), &fakeSource{body: pngDeclaring(t, maxTileSide+1, 1)})
	if _, err := f.download(context.Background(), "http://tiles/x"); !errors.Is(err, ErrTileDimensions) {
		t.Fatalf("err=%v want ErrTileDimensions", err)
	}
	f = NewFetcher(discardLogger(), &fakeSource{body: solidPNG(t, 2*TileSize, color.White)})
	if _, err := f.download(context.Background(), "http://tiles/x"); err != nil {
		t.Fatalf("512px tile: %v", err)
	}
}

// bombSource serves bomb for the URLs fakeSource's mode marks "bomb".
type bombSource struct {
	*fakeSource
	bomb []byte
}

func (b *bombSource) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	if b.mode != nil && b.mode(url) == "bomb" {
		return b.bomb, "image/png", nil
	}
	return b.fakeSource.Fetch(ctx, url)
}
