package printmap

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/mohammed-shakir/geos/internal/geo"
)

func solid(size int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// A page of exactly 2x1 tiles at 25.4 dpi: 1 px per mm.
var twoTilePage = Page{WidthMM: 2 * TileSize, HeightMM: TileSize, DPI: 25.4}

func TestStitch_LayersCompositeInOrder(t *testing.T) {
	window, _ := geo.NewGridBB(3, 4, 2, 5, 2)
	red := color.NRGBA{R: 255, A: 255}
	halfBlue := color.NRGBA{B: 255, A: 128}

	base := Tiles{
		{X: 4, Y: 2}: solid(TileSize, red),
		{X: 5, Y: 2}: Placeholder,
	}
	overlay := Tiles{
		{X: 4, Y: 2}: solid(TileSize, halfBlue),
		{X: 5, Y: 2}: solid(TileSize, halfBlue),
	}
	img, err := Stitch([]Tiles{base, overlay}, twoTilePage, window, 0)
	if err != nil {
		t.Fatalf("Stitch: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 512 || b.Dy() != 256 {
		t.Fatalf("bounds=%v want 512x256", b)
	}

	// Left: blue over red. Right: blue over the white canvas.
	left := img.RGBAAt(10, 10)
	if left.R < 120 || left.R > 135 || left.B < 120 || left.B > 135 || left.G != 0 {
		t.Fatalf("left=%v want red/blue mix", left)
	}
	right := img.RGBAAt(300, 10)
	if right.B != 255 || right.R < 120 || right.R > 135 || right.G < 120 || right.G > 135 {
		t.Fatalf("right=%v want blue over white", right)
	}
}

func TestStitch_LaterLayerWins(t *testing.T) {
	window, _ := geo.NewGridBB(3, 0, 0, 1, 0)
	a := Tiles{{X: 0, Y: 0}: solid(TileSize, color.NRGBA{R: 255, A: 255})}
	b := Tiles{{X: 0, Y: 0}: solid(TileSize, color.NRGBA{G: 255, A: 255})}

	img, err := Stitch([]Tiles{a, b}, twoTilePage, window, 0)
	if err != nil {
		t.Fatalf("Stitch: %v", err)
	}
	if got := img.RGBAAt(5, 5); got != (color.RGBA{G: 255, A: 255}) {
		t.Fatalf("got=%v want green", got)
	}
	// Untouched slot stays white.
	if got := img.RGBAAt(400, 5); got != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Fatalf("got=%v want white", got)
	}
}

func TestStitch_RescalesOffSizeTiles(t *testing.T) {
	window, _ := geo.NewGridBB(3, 0, 0, 1, 0)
	retina := Tiles{{X: 1, Y: 0}: solid(512, color.NRGBA{B: 255, A: 255})}

	img, err := Stitch([]Tiles{retina}, twoTilePage, window, 0)
	if err != nil {
		t.Fatalf("Stitch: %v", err)
	}
	if got := img.RGBAAt(511, 255); got != (color.RGBA{B: 255, A: 255}) {
		t.Fatalf("slot corner=%v want blue", got)
	}
	if got := img.RGBAAt(255, 0); got.R != 255 {
		t.Fatalf("neighbour slot=%v overwritten", got)
	}
}

func TestStitch_CanvasLimit(t *testing.T) {
	window, _ := geo.NewGridBB(3, 0, 0, 1, 0)
	_, err := Stitch(nil, twoTilePage, window, 1000)
	if !errors.Is(err, ErrCanvasAllocation) {
		t.Fatalf("err=%v want ErrCanvasAllocation", err)
	}
	_, err = Stitch(nil, Page{WidthMM: 0.01, HeightMM: 0.01, DPI: 25.4}, window, 0)
	if !errors.Is(err, ErrCanvasAllocation) {
		t.Fatalf("empty page err=%v want ErrCanvasAllocation", err)
	}
}

func TestStitch_BudgetProductDoesNotWrap(t *testing.T) {
	window, _ := geo.NewGridBB(3, 0, 0, 1, 0)
	// 2^32 x 2^32 px; PixelSize alone overflows the int product
	page := Page{WidthMM: 4294967296, HeightMM: 4294967296, DPI: 25.4}
	if _, err := Stitch(nil, page, window, 0); !errors.Is(err, ErrCanvasAllocation) {
		t.Fatalf("err=%v want ErrCanvasAllocation", err)
	}
	if _, err := canvasSize(Page{WidthMM: 200_000, HeightMM: 200_000, DPI: 25.4}, DefaultMaxCanvasPixels); !errors.Is(err, ErrCanvasAllocation) {
		t.Fatalf("4e10 px: err=%v want ErrCanvasAllocation", err)
	}
}
