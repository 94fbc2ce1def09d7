package main

import (
	"fmt"
	"math"
	"math/rand"
	"net/url"
	"strings"

	"github.com/mohammed-shakir/geos/internal/geo"
)

// hot spots the skewed part of the workload clusters around
var hotCenters = []geo.GeographicCoordinate{
	{Lat: 59.3293, Lon: 18.0686},
	{Lat: 57.7089, Lon: 11.9746},
	{Lat: 55.6050, Lon: 13.0038},
	{Lat: 65.5848, Lon: 22.1547},
}

// coldArea bounds the uniformly spread regions.
var coldArea = geo.GeographicBB{
	Min: geo.GeographicCoordinate{Lat: 55, Lon: 11},
	Max: geo.GeographicCoordinate{Lat: 66, Lon: 24},
}

// makeRegions builds a pool of distinct region documents at zoom. The first
// quarter sits around the hot centers so a Zipf draw over the pool keeps
// hitting the same few documents.
func makeRegions(count, zoom, logTilesPerRow int, r *rand.Rand) []geo.RegionCoordinate {
	if count <= 0 {
		return nil
	}
	seen := make(map[geo.RegionCoordinate]struct{}, count)
	out := make([]geo.RegionCoordinate, 0, count)
	add := func(c geo.GeographicCoordinate) {
		rc, ok := regionAt(c, zoom, logTilesPerRow)
		if !ok {
			return
		}
		if _, dup := seen[rc]; dup {
			return
		}
		seen[rc] = struct{}{}
		out = append(out, rc)
	}

	hot := max(count/4, 1)
	for i := 0; len(out) < hot && i < hot*8; i++ {
		c := hotCenters[i%len(hotCenters)]
		add(geo.GeographicCoordinate{
			Lat: c.Lat + (r.Float64()-0.5)*0.2,
			Lon: c.Lon + (r.Float64()-0.5)*0.2,
		})
	}
	for i := 0; len(out) < count && i < count*8; i++ {
		add(geo.GeographicCoordinate{
			Lat: coldArea.South() + r.Float64()*(coldArea.North()-coldArea.South()),
			Lon: coldArea.West() + r.Float64()*(coldArea.East()-coldArea.West()),
		})
	}
	return out
}

func regionAt(c geo.GeographicCoordinate, zoom, logTilesPerRow int) (geo.RegionCoordinate, bool) {
	m, err := c.ToMercator()
	if err != nil {
		return geo.RegionCoordinate{}, false
	}
	t := m.ToTile(zoom)
	n := 1 << logTilesPerRow
	rc := geo.RegionCoordinate{Zoom: zoom, X: t.X / n, Y: t.Y / n, LogTilesPerRow: logTilesPerRow}
	return rc, rc.Valid()
}

func regionURL(base, mapID string, rc geo.RegionCoordinate) string {
	return fmt.Sprintf("%s/maps/%s/%d/%d/%d.kml", strings.TrimRight(base, "/"), url.PathEscape(mapID), rc.Zoom, rc.X, rc.Y)
}

func percentile(sortedValues []float64, p float64) float64 {
	if len(sortedValues) == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sortedValues[0]
	}
	if p >= 100 {
		return sortedValues[len(sortedValues)-1]
	}
	k := (p / 100.0) * float64(len(sortedValues)-1)
	f := math.Floor(k)
	i := int(f)
	if i >= len(sortedValues)-1 {
		return sortedValues[len(sortedValues)-1]
	}
	d := k - f
	return sortedValues[i]*(1-d) + sortedValues[i+1]*d
}
