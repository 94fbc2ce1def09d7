// Package geo converts between geographic coordinates, spherical mercator
// coordinates and the XYZ tile grid.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

const (
	// TileSize is the edge length of one raster tile in pixels.
	TileSize = 256
	// MaxLatitude is the largest latitude spherical mercator can represent.
	MaxLatitude = 85.0511287798066
	MaxZoom     = 30
)

var (
	WorldSize = 2 * math.Pi * orb.EarthRadius
	HalfWorld = math.Pi * orb.EarthRadius
)

var (
	ErrProjectionRange = errors.New("coordinate outside mercator range")
	ErrInvalidBounds   = errors.New("invalid bounds")
)

type GeographicCoordinate struct {
	Lat float64
	Lon float64
}

func (g GeographicCoordinate) Point() orb.Point { return orb.Point{g.Lon, g.Lat} }

// ToMercator projects g onto EPSG:3857.
func (g GeographicCoordinate) ToMercator() (MercatorCoordinate, error) {
	if math.IsNaN(g.Lat) || math.Abs(g.Lat) > MaxLatitude {
		return MercatorCoordinate{}, fmt.Errorf("%w: lat=%v", ErrProjectionRange, g.Lat)
	}
	p := project.WGS84.ToMercator(g.Point())
	return MercatorCoordinate{X: p[0], Y: p[1]}, nil
}

func (g GeographicCoordinate) String() string {
	return fmt.Sprintf("<lat: %v, lon: %v>", g.Lat, g.Lon)
}

// MercatorCoordinate is a point on the EPSG:3857 plane in meters.
type MercatorCoordinate struct {
	X float64
	Y float64
}

func (m MercatorCoordinate) ToGeographic() (GeographicCoordinate, error) {
	if math.IsNaN(m.X) || math.IsNaN(m.Y) || math.Abs(m.X) > HalfWorld+1e-6 || math.Abs(m.Y) > HalfWorld+1e-6 {
		return GeographicCoordinate{}, fmt.Errorf("%w: x=%v y=%v", ErrProjectionRange, m.X, m.Y)
	}
	p := project.Mercator.ToWGS84(orb.Point{m.X, m.Y})
	return GeographicCoordinate{Lat: p[1], Lon: p[0]}, nil
}

// ToTile returns the tile containing m. Points on or past the world edge
// clamp to the outermost tile.
func (m MercatorCoordinate) ToTile(zoom int) TileCoordinate {
	n := 1 << zoom
	span := WorldSize / float64(n)
	x := int(math.Floor((m.X + HalfWorld) / span))
	y := int(math.Floor((HalfWorld - m.Y) / span))
	return TileCoordinate{Zoom: zoom, X: clamp(x, 0, n-1), Y: clamp(y, 0, n-1)}
}

func (m MercatorCoordinate) String() string {
	return fmt.Sprintf("<x: %v, y: %v>", m.X, m.Y)
}

// GeographicBB is a lat/lon bounding box.
type GeographicBB struct {
	Min GeographicCoordinate
	Max GeographicCoordinate
}

func NewGeographicBB(minLon, minLat, maxLon, maxLat float64) (GeographicBB, error) {
	switch {
	case minLon > maxLon || minLat > maxLat:
		return GeographicBB{}, fmt.Errorf("%w: min must not exceed max", ErrInvalidBounds)
	case minLon < -180 || maxLon > 180:
		return GeographicBB{}, fmt.Errorf("%w: longitude must be in [-180,180]", ErrInvalidBounds)
	case minLat < -90 || maxLat > 90:
		return GeographicBB{}, fmt.Errorf("%w: latitude must be in [-90,90]", ErrInvalidBounds)
	}
	return GeographicBB{
		Min: GeographicCoordinate{Lat: minLat, Lon: minLon},
		Max: GeographicCoordinate{Lat: maxLat, Lon: maxLon},
	}, nil
}

func (b GeographicBB) North() float64 { return b.Max.Lat }
func (b GeographicBB) South() float64 { return b.Min.Lat }
func (b GeographicBB) East() float64  { return b.Max.Lon }
func (b GeographicBB) West() float64  { return b.Min.Lon }

func (b GeographicBB) Bound() orb.Bound {
	return orb.Bound{Min: b.Min.Point(), Max: b.Max.Point()}
}

func (b GeographicBB) Contains(c GeographicCoordinate) bool {
	return b.Bound().Contains(c.Point())
}

// ToTileBounds returns the tiles at zoom covering b. Latitudes beyond the
// mercator limit are clamped first.
func (b GeographicBB) ToTileBounds(zoom int) GridBB {
	nw := GeographicCoordinate{Lat: clampf(b.Max.Lat, -MaxLatitude, MaxLatitude), Lon: b.Min.Lon}
	se := GeographicCoordinate{Lat: clampf(b.Min.Lat, -MaxLatitude, MaxLatitude), Lon: b.Max.Lon}
	// cannot fail after clamping
	nwm, _ := nw.ToMercator()
	sem, _ := se.ToMercator()
	minT := nwm.ToTile(zoom)
	maxT := sem.ToTile(zoom)
	return GridBB{Zoom: zoom, MinX: minT.X, MinY: minT.Y, MaxX: maxT.X, MaxY: maxT.Y}
}

func (b GeographicBB) String() string {
	return fmt.Sprintf("<geo min: %s, max: %s>", b.Min, b.Max)
}

func fromBound(b orb.Bound) GeographicBB {
	return GeographicBB{
		Min: GeographicCoordinate{Lat: b.Min.Lat(), Lon: b.Min.Lon()},
		Max: GeographicCoordinate{Lat: b.Max.Lat(), Lon: b.Max.Lon()},
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampf(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
