// Package printmap renders a printable map image: it computes the tile
// window for a page, fetches the tiles of every layer, stitches them,
// draws a scale bar and encodes the result.
package printmap

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/mohammed-shakir/geos/internal/geo"
)

const (
	TileSize = geo.TileSize

	DefaultZoom     = 14
	DefaultWidthMM  = 297
	DefaultHeightMM = 210
	DefaultDPI      = 300
)

var (
	ErrInvalidPage      = errors.New("invalid page")
	ErrCanvasAllocation = errors.New("cannot allocate print canvas")
)

// Page is the physical output size.
type Page struct {
	WidthMM  float64
	HeightMM float64
	DPI      float64
}

// MaxPageDots bounds each side of the canvas. Larger pages are rejected
// before any window or canvas is sized from them.
const MaxPageDots = 1 << 18

func DefaultPage() Page {
	return Page{WidthMM: DefaultWidthMM, HeightMM: DefaultHeightMM, DPI: DefaultDPI}
}

// DotsPerMM converts dots per inch to dots per millimeter.
func DotsPerMM(dpi float64) float64 { return dpi / 25.4 }

func (p Page) Validate() error {
	for _, v := range []float64{p.WidthMM, p.HeightMM, p.DPI} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("%w: width=%vmm height=%vmm dpi=%v", ErrInvalidPage, p.WidthMM, p.HeightMM, p.DPI)
		}
	}
	dpmm := DotsPerMM(p.DPI)
	if p.WidthMM*dpmm > MaxPageDots || p.HeightMM*dpmm > MaxPageDots {
		return fmt.Errorf("%w: %.0fx%.0f px exceeds %d px per side",
			ErrCanvasAllocation, p.WidthMM*dpmm, p.HeightMM*dpmm, MaxPageDots)
	}
	return nil
}

// PixelSize is the canvas size in pixels, truncated.
func (p Page) PixelSize() image.Point {
	dpmm := DotsPerMM(p.DPI)
	return image.Pt(int(p.WidthMM*dpmm), int(p.HeightMM*dpmm))
}

// ComputeWindow returns the smallest symmetric tile window around center
// that covers the page at zoom.
func ComputeWindow(center geo.MercatorCoordinate, zoom int, page Page) (geo.GridBB, error) {
	if err := page.Validate(); err != nil {
		return geo.GridBB{}, err
	}
	if zoom < 0 || zoom > geo.MaxZoom {
		return geo.GridBB{}, fmt.Errorf("%w: zoom %d", ErrInvalidPage, zoom)
	}
	dpmm := DotsPerMM(page.DPI)
	tilesH := page.WidthMM * dpmm / TileSize
	tilesV := page.HeightMM * dpmm / TileSize
	halfH := int(math.Ceil(tilesH / 2))
	halfV := int(math.Ceil(tilesV / 2))

	c := center.ToTile(zoom)
	return geo.NewGridBB(zoom, c.X-halfH, c.Y-halfV, c.X+halfH, c.Y+halfV)
}
