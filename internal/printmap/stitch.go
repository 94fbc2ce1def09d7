package printmap

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/mohammed-shakir/geos/internal/geo"
)

// DefaultMaxCanvasPixels bounds the canvas of a single print (200 MP).
const DefaultMaxCanvasPixels = 200_000_000

// Stitch composites layers, in order, onto a white canvas of the page's
// pixel size. Tile (x, y) lands at ((x-minX)*256, (y-minY)*256).
func Stitch(layers []Tiles, page Page, window geo.GridBB, maxPixels int) (*image.RGBA, error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}
	size, err := canvasSize(page, maxPixels)
	if err != nil {
		return nil, err
	}

	bounds := image.Rect(0, 0, size.X, size.Y)
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, image.NewUniform(color.White), image.Point{}, draw.Src)

	for _, tiles := range layers {
		buf := image.NewNRGBA(bounds)
		pasteLayer(buf, tiles, window)
		draw.Draw(canvas, bounds, buf, image.Point{}, draw.Over)
	}
	return canvas, nil
}

// canvasSize is the page's pixel size once it fits the pixel budget. The
// product is taken in float64 so huge sides cannot wrap around.
func canvasSize(page Page, maxPixels int) (image.Point, error) {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxCanvasPixels
	}
	size := page.PixelSize()
	if size.X <= 0 || size.Y <= 0 || float64(size.X)*float64(size.Y) > float64(maxPixels) {
		return image.Point{}, fmt.Errorf("%w: %dx%d px (limit %d)", ErrCanvasAllocation, size.X, size.Y, maxPixels)
	}
	return size, nil
}

func pasteLayer(dst *image.NRGBA, tiles Tiles, window geo.GridBB) {
	for key, img := range tiles {
		if img == nil {
			continue
		}
		off := image.Pt((key.X-window.MinX)*TileSize, (key.Y-window.MinY)*TileSize)
		slot := image.Rectangle{Min: off, Max: off.Add(image.Pt(TileSize, TileSize))}
		if !slot.Overlaps(dst.Bounds()) {
			continue
		}
		src := img.Bounds()
		if src.Dx() == TileSize && src.Dy() == TileSize {
			draw.Draw(dst, slot, img, src.Min, draw.Src)
			continue
		}
		draw.ApproxBiLinear.Scale(dst, slot, img, src, draw.Src, nil)
	}
}
