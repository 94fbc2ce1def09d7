// Package mapsource defines map sources, their tile layers and the registry
// handlers resolve them from.
package mapsource

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/geos/internal/geo"
)

const (
	// FolderSep separates folder names in MapSource.Folder, independent of
	// the operating system.
	FolderSep = "/"

	DefaultMinZoom = 1
	DefaultMaxZoom = 17
)

var (
	ErrUnknownMapSource   = errors.New("unknown map source")
	ErrDuplicateMapSource = errors.New("duplicate map source id")
	ErrInvalidMapSource   = errors.New("invalid map source")
)

type ValidationError struct {
	ID     string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.ID == "" {
		return "invalid map source: " + e.Reason
	}
	return fmt.Sprintf("invalid map source %q: %s", e.ID, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidMapSource }

// Layer is one tile source of a map. URLTemplate carries {$z}, {$x} and {$y}
// placeholders; the plain {z}, {x}, {y} form is accepted as well.
type Layer struct {
	URLTemplate string
	MinZoom     int
	MaxZoom     int
}

func (l Layer) Active(zoom int) bool {
	return l.MinZoom <= zoom && zoom <= l.MaxZoom
}

func (l Layer) TileURL(zoom, x, y int) string {
	z, xs, ys := strconv.Itoa(zoom), strconv.Itoa(x), strconv.Itoa(y)
	return strings.NewReplacer(
		"{$z}", z, "{$x}", xs, "{$y}", ys,
		"{z}", z, "{x}", xs, "{y}", ys,
	).Replace(l.URLTemplate)
}

// PlainTemplate is URLTemplate with the placeholders in {z}/{x}/{y} form,
// as web map clients expect it.
func (l Layer) PlainTemplate() string {
	return strings.ReplaceAll(l.URLTemplate, "$", "")
}

func (l Layer) validate() string {
	if strings.TrimSpace(l.URLTemplate) == "" {
		return "layer requires a tile url"
	}
	for _, p := range []string{"z", "x", "y"} {
		if !strings.Contains(l.URLTemplate, "{$"+p+"}") && !strings.Contains(l.URLTemplate, "{"+p+"}") {
			return fmt.Sprintf("tile url %q lacks the {$%s} placeholder", l.URLTemplate, p)
		}
	}
	if l.MinZoom < 0 || l.MaxZoom > geo.MaxZoom {
		return fmt.Sprintf("zoom range [%d,%d] outside [0,%d]", l.MinZoom, l.MaxZoom, geo.MaxZoom)
	}
	if l.MinZoom > l.MaxZoom {
		return fmt.Sprintf("min zoom %d exceeds max zoom %d", l.MinZoom, l.MaxZoom)
	}
	return ""
}

// MapSource describes one map. It is not modified after New returns.
type MapSource struct {
	ID     string
	Name   string
	Folder string
	BBox   *geo.GeographicBB
	Layers []Layer

	minZoom int
	maxZoom int
}

// New validates and builds a map source. An empty name falls back to id.
func New(id, name, folder string, bbox *geo.GeographicBB, layers ...Layer) (*MapSource, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, &ValidationError{Reason: "id is required"}
	}
	if len(layers) == 0 {
		return nil, &ValidationError{ID: id, Reason: "at least one layer is required"}
	}
	for i, l := range layers {
		if reason := l.validate(); reason != "" {
			return nil, &ValidationError{ID: id, Reason: fmt.Sprintf("layer %d: %s", i, reason)}
		}
	}
	if name == "" {
		name = id
	}

	ms := &MapSource{
		ID:      id,
		Name:    name,
		Folder:  strings.TrimSpace(folder),
		BBox:    bbox,
		Layers:  append([]Layer(nil), layers...),
		minZoom: layers[0].MinZoom,
		maxZoom: layers[0].MaxZoom,
	}
	for _, l := range layers[1:] {
		ms.minZoom = min(ms.minZoom, l.MinZoom)
		ms.maxZoom = max(ms.maxZoom, l.MaxZoom)
	}
	return ms, nil
}

// MinZoom is the smallest MinZoom across the layers.
func (m *MapSource) MinZoom() int { return m.minZoom }

// MaxZoom is the largest MaxZoom across the layers.
func (m *MapSource) MaxZoom() int { return m.maxZoom }

// ActiveLayers returns the layers serving zoom, in declared order.
func (m *MapSource) ActiveLayers(zoom int) []Layer {
	var out []Layer
	for _, l := range m.Layers {
		if l.Active(zoom) {
			out = append(out, l)
		}
	}
	return out
}

func (m *MapSource) String() string {
	return fmt.Sprintf("<MapSource: %s (%s), n_layers: %d, min_zoom:%d, max_zoom:%d>",
		m.ID, m.Name, len(m.Layers), m.minZoom, m.maxZoom)
}
