package kml

import (
	"encoding/xml"
	"fmt"
)

// Renderer is the common surface of every KML document kind.
type Renderer interface {
	AddElement(e Element)
	AddElements(els ...Element)
	Serialize() ([]byte, error)
}

type kmlRoot struct {
	XMLName  xml.Name `xml:"http://www.opengis.net/kml/2.2 kml"`
	Document *body    `xml:"Document"`
}

type body struct {
	Elements []Element `xml:"elements"`
}

// Document is a <kml><Document> tree of elements.
type Document struct {
	body body
}

func (d *Document) AddElement(e Element) { d.body.Elements = append(d.body.Elements, e) }

func (d *Document) AddElements(els ...Element) {
	d.body.Elements = append(d.body.Elements, els...)
}

// Elements returns the top level elements in insertion order.
func (d *Document) Elements() []Element { return d.body.Elements }

// Serialize renders the document as indented XML with declaration.
func (d *Document) Serialize() ([]byte, error) {
	out, err := xml.MarshalIndent(kmlRoot{Document: &d.body}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal kml: %w", err)
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

// MasterDocument lists all maps, organised in folders.
type MasterDocument struct{ Document }

// MapRootDocument is the entry document of one map.
type MapRootDocument struct{ Document }

// RegionDocument is loaded on demand for one quadtree node.
type RegionDocument struct{ Document }

var (
	_ Renderer = (*MasterDocument)(nil)
	_ Renderer = (*MapRootDocument)(nil)
	_ Renderer = (*RegionDocument)(nil)
)
