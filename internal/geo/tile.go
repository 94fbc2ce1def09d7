package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb/maptile"
)

var ErrOutOfGrid = errors.New("coordinate outside tile grid")

// MaxLogTilesPerRow is the exclusive upper bound for a region's
// log2(tiles per row).
const MaxLogTilesPerRow = 5

func ValidLogTilesPerRow(l int) bool { return l >= 0 && l < MaxLogTilesPerRow }

// TileCoordinate addresses one raster tile. Y grows southward.
type TileCoordinate struct {
	Zoom int
	X    int
	Y    int
}

func (t TileCoordinate) Valid() bool {
	if t.Zoom < 0 || t.Zoom > MaxZoom {
		return false
	}
	n := 1 << t.Zoom
	return t.X >= 0 && t.X < n && t.Y >= 0 && t.Y < n
}

func (t TileCoordinate) Tile() maptile.Tile {
	return maptile.New(uint32(t.X), uint32(t.Y), maptile.Zoom(t.Zoom))
}

// GeographicBounds is the lat/lon footprint of the tile.
func (t TileCoordinate) GeographicBounds() GeographicBB {
	return fromBound(t.Tile().Bound())
}

// ToMercator returns the north-west corner of the tile.
func (t TileCoordinate) ToMercator() MercatorCoordinate {
	span := WorldSize / float64(int(1)<<t.Zoom)
	return MercatorCoordinate{
		X: float64(t.X)*span - HalfWorld,
		Y: HalfWorld - float64(t.Y)*span,
	}
}

// Resolution is meters per pixel at the tile's north-west corner.
func (t TileCoordinate) Resolution() float64 {
	lat := t.GeographicBounds().North()
	return Resolution(lat, t.Zoom)
}

func (t TileCoordinate) String() string {
	return fmt.Sprintf("<zoom: %d, x: %d, y: %d>", t.Zoom, t.X, t.Y)
}

// Resolution is meters per pixel of a TileSize tile at lat and zoom.
func Resolution(lat float64, zoom int) float64 {
	return WorldSize * math.Cos(lat*math.Pi/180) / (TileSize * math.Exp2(float64(zoom)))
}

// GridBB is an inclusive rectangle of tiles at one zoom level.
type GridBB struct {
	Zoom int
	MinX int
	MinY int
	MaxX int
	MaxY int
}

func NewGridBB(zoom, minX, minY, maxX, maxY int) (GridBB, error) {
	if minX > maxX || minY > maxY {
		return GridBB{}, fmt.Errorf("%w: min (%d,%d) exceeds max (%d,%d)", ErrInvalidBounds, minX, minY, maxX, maxY)
	}
	return GridBB{Zoom: zoom, MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}, nil
}

func (g GridBB) Min() TileCoordinate { return TileCoordinate{Zoom: g.Zoom, X: g.MinX, Y: g.MinY} }
func (g GridBB) Max() TileCoordinate { return TileCoordinate{Zoom: g.Zoom, X: g.MaxX, Y: g.MaxY} }
func (g GridBB) Cols() int           { return g.MaxX - g.MinX + 1 }
func (g GridBB) Rows() int           { return g.MaxY - g.MinY + 1 }
func (g GridBB) Len() int            { return g.Cols() * g.Rows() }

func (g GridBB) Contains(t TileCoordinate) bool {
	return t.Zoom == g.Zoom && t.X >= g.MinX && t.X <= g.MaxX && t.Y >= g.MinY && t.Y <= g.MaxY
}

// Tiles lists every tile of g, column by column.
func (g GridBB) Tiles() []TileCoordinate {
	out := make([]TileCoordinate, 0, g.Len())
	for x := g.MinX; x <= g.MaxX; x++ {
		for y := g.MinY; y <= g.MaxY; y++ {
			out = append(out, TileCoordinate{Zoom: g.Zoom, X: x, Y: y})
		}
	}
	return out
}

func (g GridBB) String() string {
	return fmt.Sprintf("<tile min: %s, max: %s>", g.Min(), g.Max())
}

// RegionCoordinate addresses a square block of 2^LogTilesPerRow tiles per
// side. X and Y count regions, not tiles.
type RegionCoordinate struct {
	Zoom           int
	X              int
	Y              int
	LogTilesPerRow int
}

func (r RegionCoordinate) TilesPerRow() int { return 1 << r.LogTilesPerRow }

// RegionsPerRow is the number of regions spanning the world at r.Zoom; zero
// when a single region would be wider than the world.
func (r RegionCoordinate) RegionsPerRow() int {
	if r.Zoom < r.LogTilesPerRow {
		return 0
	}
	return 1 << (r.Zoom - r.LogTilesPerRow)
}

func (r RegionCoordinate) Valid() bool {
	if !ValidLogTilesPerRow(r.LogTilesPerRow) || r.Zoom < 0 || r.Zoom > MaxZoom {
		return false
	}
	n := r.RegionsPerRow()
	return r.X >= 0 && r.X < n && r.Y >= 0 && r.Y < n
}

// Tiles lists the tiles inside the region, column by column.
func (r RegionCoordinate) Tiles() []TileCoordinate {
	return r.TileBounds().Tiles()
}

func (r RegionCoordinate) TileBounds() GridBB {
	tpr := r.TilesPerRow()
	return GridBB{
		Zoom: r.Zoom,
		MinX: r.X * tpr,
		MinY: r.Y * tpr,
		MaxX: (r.X+1)*tpr - 1,
		MaxY: (r.Y+1)*tpr - 1,
	}
}

// ZoomIn returns the four regions at Zoom+1 that cover r.
func (r RegionCoordinate) ZoomIn() [4]RegionCoordinate {
	var out [4]RegionCoordinate
	i := 0
	for dx := range 2 {
		for dy := range 2 {
			out[i] = RegionCoordinate{
				Zoom:           r.Zoom + 1,
				X:              2*r.X + dx,
				Y:              2*r.Y + dy,
				LogTilesPerRow: r.LogTilesPerRow,
			}
			i++
		}
	}
	return out
}

// GeographicBounds is the footprint of the whole region. A region at zoom z
// covers exactly the tile (x, y) at zoom z-LogTilesPerRow.
func (r RegionCoordinate) GeographicBounds() GeographicBB {
	t := maptile.New(uint32(r.X), uint32(r.Y), maptile.Zoom(r.Zoom-r.LogTilesPerRow))
	return fromBound(t.Bound())
}

func (r RegionCoordinate) String() string {
	return fmt.Sprintf("<region zoom: %d, x: %d, y: %d, tiles/row: %d>", r.Zoom, r.X, r.Y, r.TilesPerRow())
}

// RegionGrid lists every region of the world at zoom, column by column.
func RegionGrid(zoom, logTilesPerRow int) []RegionCoordinate {
	n := RegionCoordinate{Zoom: zoom, LogTilesPerRow: logTilesPerRow}.RegionsPerRow()
	return regionBlock(zoom, logTilesPerRow, 0, 0, n, n)
}

// RegionsCovering lists the regions whose tiles intersect bb.
func RegionsCovering(bb GridBB, logTilesPerRow int) []RegionCoordinate {
	tpr := 1 << logTilesPerRow
	x0 := floorDiv(bb.MinX, tpr)
	y0 := floorDiv(bb.MinY, tpr)
	ncol := ceilDiv(bb.MaxX+1, tpr) - x0
	nrow := ceilDiv(bb.MaxY+1, tpr) - y0
	return regionBlock(bb.Zoom, logTilesPerRow, x0, y0, ncol, nrow)
}

func regionBlock(zoom, l, x0, y0, ncol, nrow int) []RegionCoordinate {
	if ncol <= 0 || nrow <= 0 {
		return nil
	}
	out := make([]RegionCoordinate, 0, ncol*nrow)
	for x := x0; x < x0+ncol; x++ {
		for y := y0; y < y0+nrow; y++ {
			out = append(out, RegionCoordinate{Zoom: zoom, X: x, Y: y, LogTilesPerRow: l})
		}
	}
	return out
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func ceilDiv(a, b int) int { return -floorDiv(-a, b) }
