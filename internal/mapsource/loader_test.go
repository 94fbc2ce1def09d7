package mapsource

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

const mobacSingle = `<?xml version="1.0" encoding="UTF-8"?>
<customMapSource>
  <name>OSM Mapnik</name>
  <minZoom>0</minZoom>
  <maxZoom>18</maxZoom>
  <url>http://tile.openstreetmap.org/{$z}/{$x}/{$y}.png</url>
</customMapSource>`

const mobacMulti = `<?xml version="1.0" encoding="UTF-8"?>
<customMultiLayerMapSource>
  <id>swiss-topo</id>
  <name>Swiss Topo</name>
  <folder>/europe/switzerland</folder>
  <region>
    <north>47.8</north>
    <south>45.8</south>
    <east>10.5</east>
    <west>5.9</west>
  </region>
  <layers>
    <customMapSource>
      <url>http://base.example/{$z}/{$x}/{$y}.jpg</url>
      <minZoom>6</minZoom>
      <maxZoom>16</maxZoom>
    </customMapSource>
    <customMapSource>
      <url>http://overlay.example/{$z}/{$x}/{$y}.png</url>
      <minZoom>10</minZoom>
    </customMapSource>
  </layers>
</customMultiLayerMapSource>`

const yamlSourceDef = `name: Hiking
layers:
  - url: https://hike.example/{z}/{x}/{y}.png
    min_zoom: 8
    max_zoom: 15
`

func TestLoadDir_MobacAndYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "osm.xml"), mobacSingle)
	writeFile(t, filepath.Join(dir, "europe", "swiss.xml"), mobacMulti)
	writeFile(t, filepath.Join(dir, "europe", "france", "hike.yaml"), yamlSourceDef)
	writeFile(t, filepath.Join(dir, "README.txt"), "ignored")

	reg, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if reg.Len() != 3 {
		t.Fatalf("len=%d want 3", reg.Len())
	}

	osm, err := reg.Resolve("osm")
	if err != nil {
		t.Fatalf("osm: %v", err)
	}
	if osm.Name != "OSM Mapnik" || osm.Folder != "" || osm.MinZoom() != 0 || osm.MaxZoom() != 18 {
		t.Fatalf("osm parsed wrong: %+v", osm)
	}

	swiss, err := reg.Resolve("swiss-topo")
	if err != nil {
		t.Fatalf("swiss-topo: %v", err)
	}
	if swiss.Folder != "/europe/switzerland" || len(swiss.Layers) != 2 {
		t.Fatalf("swiss parsed wrong: %+v", swiss)
	}
	if swiss.Layers[1].MaxZoom != DefaultMaxZoom {
		t.Fatalf("overlay max zoom=%d want default %d", swiss.Layers[1].MaxZoom, DefaultMaxZoom)
	}
	if swiss.BBox == nil || swiss.BBox.North() != 47.8 || swiss.BBox.West() != 5.9 {
		t.Fatalf("bbox parsed wrong: %v", swiss.BBox)
	}

	hike, err := reg.Resolve("hike")
	if err != nil {
		t.Fatalf("hike: %v", err)
	}
	if hike.Folder != "/europe/france" || hike.MinZoom() != 8 {
		t.Fatalf("hike parsed wrong: %+v", hike)
	}
}

func TestLoadDir_DuplicateID(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a", "osm.xml"), mobacSingle)
	writeFile(t, filepath.Join(dir, "b", "osm.xml"), mobacSingle)

	if _, err := LoadDir(dir); !errors.Is(err, ErrDuplicateMapSource) {
		t.Fatalf("err=%v want ErrDuplicateMapSource", err)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"nourl.xml":   `<customMapSource><name>x</name></customMapSource>`,
		"badzoom.xml": `<customMapSource><url>http://t/{$z}/{$x}/{$y}</url><minZoom>low</minZoom></customMapSource>`,
		"badbox.xml": `<customMapSource><url>http://t/{$z}/{$x}/{$y}</url>
			<region><north>x</north><south>1</south><east>1</east><west>1</west></region></customMapSource>`,
		"flipped.xml": `<customMapSource><url>http://t/{$z}/{$x}/{$y}</url>
			<region><north>1</north><south>5</south><east>1</east><west>0</west></region></customMapSource>`,
	}
	for name, body := range cases {
		path := filepath.Join(dir, name)
		writeFile(t, path, body)
		if _, err := LoadFile(path, dir); !errors.Is(err, ErrInvalidMapSource) {
			t.Fatalf("%s: err=%v want ErrInvalidMapSource", name, err)
		}
	}
}
