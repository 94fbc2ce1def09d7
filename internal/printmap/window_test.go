package printmap

import (
	"errors"
	"math"
	"testing"

	"github.com/mohammed-shakir/geos/internal/geo"
)

func TestComputeWindow_A4LandscapeAt120DPI(t *testing.T) {
	center := geo.MercatorCoordinate{X: 4164462.1505763642, Y: 985738.7965919945}
	w, err := ComputeWindow(center, 14, Page{WidthMM: 297, HeightMM: 150, DPI: 120})
	if err != nil {
		t.Fatalf("ComputeWindow: %v", err)
	}
	want := geo.GridBB{Zoom: 14, MinX: 9891, MinY: 7786, MaxX: 9897, MaxY: 7790}
	if w != want {
		t.Fatalf("got=%s want %s", w, want)
	}
}

func TestComputeWindow_NeverCropsShort(t *testing.T) {
	center := geo.MercatorCoordinate{X: 1000, Y: -2000}
	for _, page := range []Page{
		{WidthMM: 297, HeightMM: 210, DPI: 300},
		{WidthMM: 210, HeightMM: 297, DPI: 72},
		{WidthMM: 10, HeightMM: 10, DPI: 10},
		{WidthMM: 841, HeightMM: 1189, DPI: 150},
	} {
		w, err := ComputeWindow(center, 12, page)
		if err != nil {
			t.Fatalf("%+v: %v", page, err)
		}
		px := page.PixelSize()
		if w.Cols()*TileSize < px.X || w.Rows()*TileSize < px.Y {
			t.Fatalf("%+v: window %dx%d tiles smaller than %v px", page, w.Cols(), w.Rows(), px)
		}
		wantCols := int(math.Ceil(page.WidthMM * DotsPerMM(page.DPI) / TileSize))
		if w.Cols() < wantCols {
			t.Fatalf("%+v: cols=%d want >= %d", page, w.Cols(), wantCols)
		}
		c := center.ToTile(12)
		if c.X-w.MinX != w.MaxX-c.X || c.Y-w.MinY != w.MaxY-c.Y {
			t.Fatalf("%+v: window %s not centered on %s", page, w, c)
		}
	}
}

func TestComputeWindow_InvalidPage(t *testing.T) {
	for _, page := range []Page{
		{WidthMM: 0, HeightMM: 10, DPI: 300},
		{WidthMM: 10, HeightMM: -1, DPI: 300},
		{WidthMM: 10, HeightMM: 10, DPI: math.NaN()},
	} {
		if _, err := ComputeWindow(geo.MercatorCoordinate{}, 10, page); !errors.Is(err, ErrInvalidPage) {
			t.Fatalf("%+v: err=%v want ErrInvalidPage", page, err)
		}
	}
	if _, err := ComputeWindow(geo.MercatorCoordinate{}, 31, DefaultPage()); !errors.Is(err, ErrInvalidPage) {
		t.Fatalf("zoom 31: err=%v want ErrInvalidPage", err)
	}
}

func TestPage_PixelSize(t *testing.T) {
	got := Page{WidthMM: 25.4, HeightMM: 50.8, DPI: 300}.PixelSize()
	if got.X != 300 || got.Y != 600 {
		t.Fatalf("got=%v want (300,600)", got)
	}
}

func TestPage_ValidateRejectsHugeSides(t *testing.T) {
	page := Page{WidthMM: 10, HeightMM: float64(MaxPageDots) + 1, DPI: 25.4}
	if err := page.Validate(); !errors.Is(err, ErrCanvasAllocation) {
		t.Fatalf("err=%v want ErrCanvasAllocation", err)
	}
	if _, err := ComputeWindow(geo.MercatorCoordinate{}, 10, page); !errors.Is(err, ErrCanvasAllocation) {
		t.Fatalf("window err=%v want ErrCanvasAllocation", err)
	}
	page.HeightMM = float64(MaxPageDots)
	if err := page.Validate(); err != nil {
		t.Fatalf("side at the limit: %v", err)
	}
}
