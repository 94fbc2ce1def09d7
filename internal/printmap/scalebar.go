package printmap

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/mohammed-shakir/geos/internal/geo"
)

const (
	scaleBarMeters    = 1000
	scaleBarLabel     = "1 km"
	scaleBarOffset    = 100
	scaleBarThickness = 5
	whiskerHalf       = 15
	whiskerWidth      = 2
	labelOffset       = 10
	labelSize         = 32
)

var (
	labelFontOnce sync.Once
	labelFont     *truetype.Font
	labelFontErr  error
)

func scaleBarFont() (*truetype.Font, error) {
	labelFontOnce.Do(func() {
		labelFont, labelFontErr = freetype.ParseFont(goregular.TTF)
	})
	return labelFont, labelFontErr
}

// ScaleBarLength is the pixel length of 1 km at the north-west corner of the
// window's first tile.
func ScaleBarLength(window geo.GridBB) int {
	t := window.Min()
	n := 1 << t.Zoom
	t.X = min(max(t.X, 0), n-1)
	t.Y = min(max(t.Y, 0), n-1)
	return int(scaleBarMeters / t.Resolution())
}

// AddScaleBar draws a 1 km bar with end whiskers and a label starting at
// (100, h-100).
func AddScaleBar(img draw.Image, window geo.GridBB) error {
	b := img.Bounds()
	length := ScaleBarLength(window)
	x0 := b.Min.X + scaleBarOffset
	y0 := b.Max.Y - scaleBarOffset
	x1 := x0 + length
	ink := image.NewUniform(color.Black)

	bar := image.Rect(x0, y0-scaleBarThickness/2, x1, y0-scaleBarThickness/2+scaleBarThickness)
	draw.Draw(img, bar.Intersect(b), ink, image.Point{}, draw.Src)
	for _, x := range []int{x0, x1} {
		w := image.Rect(x-whiskerWidth/2, y0-whiskerHalf, x-whiskerWidth/2+whiskerWidth, y0+whiskerHalf+1)
		draw.Draw(img, w.Intersect(b), ink, image.Point{}, draw.Src)
	}

	f, err := scaleBarFont()
	if err != nil {
		return fmt.Errorf("load label font: %w", err)
	}
	c := freetype.NewContext()
	c.SetDPI(72)
	c.SetFont(f)
	c.SetFontSize(labelSize)
	c.SetClip(b)
	c.SetDst(img)
	c.SetSrc(ink)
	c.SetHinting(font.HintingFull)

	pt := freetype.Pt(x0+labelOffset, y0+labelOffset+int(c.PointToFixed(labelSize)>>6))
	if _, err := c.DrawString(scaleBarLabel, pt); err != nil {
		return fmt.Errorf("draw scale label: %w", err)
	}
	return nil
}
