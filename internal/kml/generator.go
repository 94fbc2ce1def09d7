// Package kml builds the linked KML documents that overlay a tiled web map
// in Google Earth.
//
// A map is served as a quadtree of regions. Every region holds the tiles of
// its zoom level as GroundOverlays plus four NetworkLinks to the regions of
// the next zoom level, which the viewer follows once a region grows large
// enough on screen. LogTilesPerRow sets how many tiles share one region:
// 2^LogTilesPerRow per row, so more tiles per region means fewer documents
// but more images fetched at once.
package kml

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/mohammed-shakir/geos/internal/geo"
	"github.com/mohammed-shakir/geos/internal/mapsource"
)

const (
	DefaultLogTilesPerRow = 1
	// DefaultMinZoomLimit caps the zoom of a map root document. Beyond it a
	// whole-world root would hold too many overlays, so deeper levels are
	// reached through empty regions instead.
	DefaultMinZoomLimit = 5
)

var (
	ErrInvalidConfiguration = errors.New("invalid kml configuration")
	ErrGridConsistency      = errors.New("region size does not divide the tile grid")
	ErrRegionOutOfRange     = errors.New("region outside tile grid")
)

// URLFormatter makes the absolute links documents use to reference each other.
type URLFormatter struct {
	Scheme string
	Host   string
	Port   int
}

func (u URLFormatter) AbsURL(rel string) string {
	scheme := u.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s:%d/%s", scheme, u.Host, u.Port, strings.TrimLeft(rel, "/"))
}

func (u URLFormatter) MasterURL() string { return u.AbsURL("/kml-master.kml") }

func (u URLFormatter) MapRootURL(mapID string) string {
	return u.AbsURL("/maps/" + url.PathEscape(mapID) + ".kml")
}

func (u URLFormatter) RegionURL(mapID string, rc geo.RegionCoordinate) string {
	return u.AbsURL(fmt.Sprintf("/maps/%s/%d/%d/%d.kml", url.PathEscape(mapID), rc.Zoom, rc.X, rc.Y))
}

// Generator builds documents. It holds no per-request state.
type Generator struct {
	urls           URLFormatter
	logTilesPerRow int
	minZoomLimit   int
}

func NewGenerator(urls URLFormatter, logTilesPerRow, minZoomLimit int) (*Generator, error) {
	if !geo.ValidLogTilesPerRow(logTilesPerRow) {
		return nil, fmt.Errorf("%w: log tiles per row %d not in [0,%d)",
			ErrInvalidConfiguration, logTilesPerRow, geo.MaxLogTilesPerRow)
	}
	if minZoomLimit < 0 || minZoomLimit > geo.MaxZoom {
		return nil, fmt.Errorf("%w: min zoom limit %d", ErrInvalidConfiguration, minZoomLimit)
	}
	return &Generator{urls: urls, logTilesPerRow: logTilesPerRow, minZoomLimit: minZoomLimit}, nil
}

func (g *Generator) LogTilesPerRow() int { return g.logTilesPerRow }

func (g *Generator) URLs() URLFormatter { return g.urls }

// RootZoom is the zoom level of the map root document: the map's min zoom,
// raised to fit one region and capped at the min zoom limit.
func (g *Generator) RootZoom(ms *mapsource.MapSource) int {
	return min(max(ms.MinZoom(), g.logTilesPerRow), g.minZoomLimit)
}

// Master lists every map as a hidden NetworkLink to its root document,
// nested in folders.
func (g *Generator) Master(sources []*mapsource.MapSource) *MasterDocument {
	byPath := map[string]mapsource.Folder{}
	for f := range mapsource.Walk(sources) {
		byPath[f.Path] = f
	}
	doc := &MasterDocument{}
	doc.AddElements(g.folderElements(byPath, "")...)
	return doc
}

func (g *Generator) folderElements(byPath map[string]mapsource.Folder, path string) []Element {
	f := byPath[path]
	out := make([]Element, 0, len(f.Maps)+len(f.Folders))
	for _, ms := range f.Maps {
		out = append(out, hiddenLink(ms.Name, g.urls.MapRootURL(ms.ID)))
	}
	for _, name := range f.Folders {
		out = append(out, &Folder{
			Name:     name,
			Elements: g.folderElements(byPath, path+mapsource.FolderSep+name),
		})
	}
	return out
}

// MapRoot emits one region per square block of tiles at the root zoom,
// restricted to the map's bounding box when it has one.
func (g *Generator) MapRoot(ms *mapsource.MapSource) (*MapRootDocument, error) {
	zoom := g.RootZoom(ms)
	tilesPerRow := 1 << g.logTilesPerRow
	if (1<<zoom)%tilesPerRow != 0 {
		return nil, fmt.Errorf("%w: %d tiles per row at zoom %d", ErrGridConsistency, tilesPerRow, zoom)
	}

	var regions []geo.RegionCoordinate
	if ms.BBox == nil {
		regions = geo.RegionGrid(zoom, g.logTilesPerRow)
	} else {
		regions = geo.RegionsCovering(ms.BBox.ToTileBounds(zoom), g.logTilesPerRow)
	}

	doc := &MapRootDocument{}
	doc.AddElement(&Name{Value: ms.Name + " root"})
	for _, rc := range regions {
		doc.AddElement(&Folder{
			Name:     ElementName("DOC", rc.Zoom, rc.X, rc.Y),
			Elements: g.regionElements(ms, rc),
		})
	}
	return doc, nil
}

// Region builds the document of the region (zoom, x, y); x and y count
// regions, not tiles.
func (g *Generator) Region(ms *mapsource.MapSource, zoom, x, y int) (*RegionDocument, error) {
	rc := geo.RegionCoordinate{Zoom: zoom, X: x, Y: y, LogTilesPerRow: g.logTilesPerRow}
	if !rc.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrRegionOutOfRange, rc)
	}
	doc := &RegionDocument{}
	doc.AddElement(&Name{Value: ElementName("DOC", zoom, x, y)})
	doc.AddElements(g.regionElements(ms, rc)...)
	return doc, nil
}

// regionElements returns the children of one quadtree node: overlays for
// every tile and active layer once the map's min zoom is reached, then links
// to the four child regions until its max zoom. Nodes below min zoom are
// empty shells that only link deeper.
func (g *Generator) regionElements(ms *mapsource.MapSource, rc geo.RegionCoordinate) []Element {
	var out []Element
	if rc.Zoom >= ms.MinZoom() {
		layers := ms.ActiveLayers(rc.Zoom)
		for _, tc := range rc.Tiles() {
			for _, l := range layers {
				out = append(out, groundOverlay(tc, l.TileURL(tc.Zoom, tc.X, tc.Y)))
			}
		}
	}
	if rc.Zoom < ms.MaxZoom() {
		for _, child := range rc.ZoomIn() {
			out = append(out, regionLink(child, g.urls.RegionURL(ms.ID, child)))
		}
	}
	return out
}
