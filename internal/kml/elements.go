package kml

import (
	"encoding/xml"
	"fmt"

	"github.com/mohammed-shakir/geos/internal/geo"
)

const (
	Namespace = "http://www.opengis.net/kml/2.2"
	MIMEType  = "application/vnd.google-earth.kml+xml"

	DefaultMinLodPixels = 128
	DefaultMaxLodPixels = -1
)

// Element is anything that can be placed in a Document or Folder.
type Element interface {
	kmlElement()
}

type Name struct {
	XMLName xml.Name `xml:"name"`
	Value   string   `xml:",chardata"`
}

type Folder struct {
	XMLName  xml.Name  `xml:"Folder"`
	Name     string    `xml:"name"`
	Elements []Element `xml:"elements"`
}

func (f *Folder) Add(els ...Element) { f.Elements = append(f.Elements, els...) }

type NetworkLink struct {
	XMLName    xml.Name `xml:"NetworkLink"`
	Name       string   `xml:"name,omitempty"`
	Region     *Region  `xml:"Region,omitempty"`
	Visibility *int     `xml:"visibility,omitempty"`
	Link       Link     `xml:"Link"`
}

type Link struct {
	Href            string `xml:"href"`
	ViewRefreshMode string `xml:"viewRefreshMode"`
}

type Region struct {
	Lod          Lod       `xml:"Lod"`
	LatLonAltBox LatLonBox `xml:"LatLonAltBox"`
}

type Lod struct {
	MinLodPixels int `xml:"minLodPixels"`
	MaxLodPixels int `xml:"maxLodPixels"`
}

type LatLonBox struct {
	North float64 `xml:"north"`
	South float64 `xml:"south"`
	East  float64 `xml:"east"`
	West  float64 `xml:"west"`
}

type GroundOverlay struct {
	XMLName   xml.Name  `xml:"GroundOverlay"`
	Name      string    `xml:"name"`
	DrawOrder int       `xml:"drawOrder"`
	Icon      Icon      `xml:"Icon"`
	LatLonBox LatLonBox `xml:"LatLonBox"`
}

type Icon struct {
	Href string `xml:"href"`
}

func (*Name) kmlElement()          {}
func (*Folder) kmlElement()        {}
func (*NetworkLink) kmlElement()   {}
func (*GroundOverlay) kmlElement() {}

// ElementName builds the deterministic name of a node, e.g. NL_5_42_60.
func ElementName(prefix string, zoom, x, y int) string {
	return fmt.Sprintf("%s_%d_%d_%d", prefix, zoom, x, y)
}

func latLonBox(bb geo.GeographicBB) LatLonBox {
	return LatLonBox{North: bb.North(), South: bb.South(), East: bb.East(), West: bb.West()}
}

func groundOverlay(tc geo.TileCoordinate, href string) *GroundOverlay {
	return &GroundOverlay{
		Name:      ElementName("GO", tc.Zoom, tc.X, tc.Y),
		DrawOrder: tc.Zoom,
		Icon:      Icon{Href: href},
		LatLonBox: latLonBox(tc.GeographicBounds()),
	}
}

// regionLink points at the document of rc; the viewer loads it once the
// region covers minLodPixels on screen.
func regionLink(rc geo.RegionCoordinate, href string) *NetworkLink {
	return &NetworkLink{
		Name: ElementName("NL", rc.Zoom, rc.X, rc.Y),
		Region: &Region{
			Lod: Lod{
				MinLodPixels: DefaultMinLodPixels * rc.TilesPerRow(),
				MaxLodPixels: DefaultMaxLodPixels,
			},
			LatLonAltBox: latLonBox(rc.GeographicBounds()),
		},
		Link: Link{Href: href, ViewRefreshMode: "onRegion"},
	}
}

func hiddenLink(name, href string) *NetworkLink {
	hidden := 0
	return &NetworkLink{
		Name:       name,
		Visibility: &hidden,
		Link:       Link{Href: href, ViewRefreshMode: "onRegion"},
	}
}
