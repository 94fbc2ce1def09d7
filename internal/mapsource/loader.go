package mapsource

import (
	"encoding/xml"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mohammed-shakir/geos/internal/geo"
)

// LoadDir reads every map source definition below dir. MOBAC style *.xml
// files and *.yaml / *.yml files are recognised; anything else is skipped.
func LoadDir(dir string) (*Registry, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("maps dir %q: %w", dir, err)
	}

	var sources []*MapSource
	seen := map[string]string{}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isDefinition(path) {
			return nil
		}
		ms, err := LoadFile(path, root)
		if err != nil {
			return err
		}
		if prev, dup := seen[ms.ID]; dup {
			return fmt.Errorf("%w: %q in %s (first defined in %s)", ErrDuplicateMapSource, ms.ID, path, prev)
		}
		seen[ms.ID] = path
		sources = append(sources, ms)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load map sources: %w", err)
	}
	return NewRegistry(sources...)
}

func isDefinition(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml", ".yaml", ".yml":
		return true
	}
	return false
}

// LoadFile reads a single definition. root is the maps directory; the folder
// of a definition without an explicit folder is its directory relative to root.
func LoadFile(path, root string) (*MapSource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var def definition
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		def, err = parseYAML(raw)
	default:
		def, err = parseXML(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if def.ID != nil && strings.TrimSpace(*def.ID) != "" {
		id = strings.TrimSpace(*def.ID)
	}
	name := id
	if def.Name != nil {
		name = strings.TrimSpace(*def.Name)
	}
	folder := relFolder(root, filepath.Dir(path))
	if def.Folder != nil {
		folder = strings.TrimSpace(*def.Folder)
	}
	for i := range def.Layers {
		def.Layers[i].ID = id
	}

	layers := make([]Layer, 0, len(def.Layers))
	for _, l := range def.Layers {
		layer, err := l.layer()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		layers = append(layers, layer)
	}

	var bbox *geo.GeographicBB
	if def.Region != nil {
		bb, err := def.Region.bounds(id)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		bbox = &bb
	}

	ms, err := New(id, name, folder, bbox, layers...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ms, nil
}

func relFolder(root, dir string) string {
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." {
		return ""
	}
	return FolderSep + filepath.ToSlash(rel)
}

// definition is the format independent shape of a map source file.
type definition struct {
	ID     *string
	Name   *string
	Folder *string
	Region *regionDef
	Layers []layerDef
}

type layerDef struct {
	ID      string
	URL     *string
	MinZoom *string
	MaxZoom *string
}

func (l layerDef) layer() (Layer, error) {
	if l.URL == nil || strings.TrimSpace(*l.URL) == "" {
		return Layer{}, &ValidationError{ID: l.ID, Reason: "layer requires a tile url"}
	}
	minZ, err := zoomValue(l.MinZoom, DefaultMinZoom)
	if err != nil {
		return Layer{}, &ValidationError{ID: l.ID, Reason: "minZoom must be an integer"}
	}
	maxZ, err := zoomValue(l.MaxZoom, DefaultMaxZoom)
	if err != nil {
		return Layer{}, &ValidationError{ID: l.ID, Reason: "maxZoom must be an integer"}
	}
	return Layer{URLTemplate: strings.TrimSpace(*l.URL), MinZoom: minZ, MaxZoom: maxZ}, nil
}

func zoomValue(s *string, def int) (int, error) {
	if s == nil {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(*s))
	if err != nil {
		return 0, fmt.Errorf("parse zoom: %w", err)
	}
	return n, nil
}

type regionDef struct {
	North *string `xml:"north" yaml:"north"`
	South *string `xml:"south" yaml:"south"`
	East  *string `xml:"east" yaml:"east"`
	West  *string `xml:"west" yaml:"west"`
}

func (r regionDef) bounds(id string) (geo.GeographicBB, error) {
	var v [4]float64
	for i, s := range []*string{r.West, r.South, r.East, r.North} {
		if s == nil {
			return geo.GeographicBB{}, &ValidationError{ID: id, Reason: "region boundaries are invalid"}
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(*s), 64)
		if err != nil {
			return geo.GeographicBB{}, &ValidationError{ID: id, Reason: "region boundaries are invalid"}
		}
		v[i] = f
	}
	bb, err := geo.NewGeographicBB(v[0], v[1], v[2], v[3])
	if err != nil {
		return geo.GeographicBB{}, &ValidationError{ID: id, Reason: err.Error()}
	}
	return bb, nil
}

// MOBAC customMapSource / customMultiLayerMapSource documents.
type xmlSource struct {
	ID      *string    `xml:"id"`
	Name    *string    `xml:"name"`
	Folder  *string    `xml:"folder"`
	Region  *regionDef `xml:"region"`
	Layers  *xmlLayers `xml:"layers"`
	URL     *string    `xml:"url"`
	MinZoom *string    `xml:"minZoom"`
	MaxZoom *string    `xml:"maxZoom"`
}

type xmlLayers struct {
	Items []xmlLayer `xml:",any"`
}

type xmlLayer struct {
	URL     *string `xml:"url"`
	MinZoom *string `xml:"minZoom"`
	MaxZoom *string `xml:"maxZoom"`
}

func parseXML(raw []byte) (definition, error) {
	var src xmlSource
	if err := xml.Unmarshal(raw, &src); err != nil {
		return definition{}, fmt.Errorf("parse xml: %w", err)
	}
	def := definition{ID: src.ID, Name: src.Name, Folder: src.Folder, Region: src.Region}
	if src.Layers == nil {
		def.Layers = []layerDef{{URL: src.URL, MinZoom: src.MinZoom, MaxZoom: src.MaxZoom}}
		return def, nil
	}
	for _, l := range src.Layers.Items {
		def.Layers = append(def.Layers, layerDef{URL: l.URL, MinZoom: l.MinZoom, MaxZoom: l.MaxZoom})
	}
	return def, nil
}

type yamlSource struct {
	ID      *string     `yaml:"id"`
	Name    *string     `yaml:"name"`
	Folder  *string     `yaml:"folder"`
	Region  *regionDef  `yaml:"region"`
	Layers  []yamlLayer `yaml:"layers"`
	URL     *string     `yaml:"url"`
	MinZoom *string     `yaml:"min_zoom"`
	MaxZoom *string     `yaml:"max_zoom"`
}

type yamlLayer struct {
	URL     *string `yaml:"url"`
	MinZoom *string `yaml:"min_zoom"`
	MaxZoom *string `yaml:"max_zoom"`
}

func parseYAML(raw []byte) (definition, error) {
	var src yamlSource
	if err := yaml.Unmarshal(raw, &src); err != nil {
		return definition{}, fmt.Errorf("parse yaml: %w", err)
	}
	def := definition{ID: src.ID, Name: src.Name, Folder: src.Folder, Region: src.Region}
	if len(src.Layers) == 0 {
		def.Layers = []layerDef{{URL: src.URL, MinZoom: src.MinZoom, MaxZoom: src.MaxZoom}}
		return def, nil
	}
	for _, l := range src.Layers {
		def.Layers = append(def.Layers, layerDef{URL: l.URL, MinZoom: l.MinZoom, MaxZoom: l.MaxZoom})
	}
	return def, nil
}
