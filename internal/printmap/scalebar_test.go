package printmap

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/mohammed-shakir/geos/internal/geo"
)

func TestScaleBarLength_Equator(t *testing.T) {
	// Tile (z, 2^(z-1), 2^(z-1)) has its north-west corner on the equator.
	window, _ := geo.NewGridBB(14, 8192, 8192, 8194, 8194)
	got := ScaleBarLength(window)
	want := int(1000 / geo.Resolution(0, 14)) // ~104 px
	if got != want || got != 104 {
		t.Fatalf("got=%d want %d", got, want)
	}
}

func TestScaleBarLength_ClampsOutOfGridWindow(t *testing.T) {
	window, _ := geo.NewGridBB(2, -1, -1, 1, 1)
	if got := ScaleBarLength(window); got < 0 {
		t.Fatalf("got=%d", got)
	}
}

func TestAddScaleBar_DrawsBarWhiskersAndLabel(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 600, 400))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	window, _ := geo.NewGridBB(14, 8192, 8192, 8194, 8194)

	if err := AddScaleBar(img, window); err != nil {
		t.Fatalf("AddScaleBar: %v", err)
	}
	black := color.RGBA{A: 255}
	y0 := 400 - 100
	length := ScaleBarLength(window)

	for _, p := range []image.Point{
		{X: 100, Y: y0},           // bar start
		{X: 100 + length/2, Y: y0}, // bar middle
		{X: 100, Y: y0 - 15},      // left whisker top
		{X: 100 + length, Y: y0 + 15},
	} {
		if got := img.RGBAAt(p.X, p.Y); got != black {
			t.Fatalf("pixel %v=%v want black", p, got)
		}
	}
	if got := img.RGBAAt(99-5, y0); got != (color.RGBA{255, 255, 255, 255}) {
		t.Fatalf("left of bar=%v want white", got)
	}

	// The label sits below and right of the bar start.
	inked := false
	for y := y0 + 10; y < y0+60 && !inked; y++ {
		for x := 110; x < 220; x++ {
			if img.RGBAAt(x, y).R < 128 {
				inked = true
				break
			}
		}
	}
	if !inked {
		t.Fatal("no label pixels found")
	}
}
