// Package grid maps coordinates to integer bins on a zoom-dependent
// latitude/longitude grid.
package grid

import "math"

// StorageZoom is the zoom at which persisted bins are computed. Spatial
// queries always filter with ranges at this zoom.
const StorageZoom = 14

// Cell identifies one grid bin.
type Cell struct {
	LatBin int `json:"lat_bin"`
	LonBin int `json:"lon_bin"`
}

// Range is an inclusive bin range.
type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether v lies within the range.
func (r Range) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

// Viewport is a map region expressed as a center and full spans in degrees.
type Viewport struct {
	CenterLat float64 `json:"center_lat"`
	CenterLon float64 `json:"center_lon"`
	LatDelta  float64 `json:"lat_delta"`
	LonDelta  float64 `json:"lon_delta"`
}

// ViewportFromBounds builds a viewport from its edges.
func ViewportFromBounds(minLat, maxLat, minLon, maxLon float64) Viewport {
	return Viewport{
		CenterLat: (minLat + maxLat) / 2,
		CenterLon: (minLon + maxLon) / 2,
		LatDelta:  maxLat - minLat,
		LonDelta:  maxLon - minLon,
	}
}

// Bounds returns the viewport edges.
func (v Viewport) Bounds() (minLat, maxLat, minLon, maxLon float64) {
	return v.CenterLat - v.LatDelta/2, v.CenterLat + v.LatDelta/2,
		v.CenterLon - v.LonDelta/2, v.CenterLon + v.LonDelta/2
}

// Scale returns the number of bins per degree at a zoom level.
func Scale(zoom int) float64 {
	switch {
	case zoom < 5:
		return 1
	case zoom < 7:
		return 2
	case zoom < 9:
		return 4
	case zoom < 11:
		return 8
	case zoom < 13:
		return 16
	case zoom < 15:
		return 32
	default:
		return 64
	}
}

// Bin returns the cell containing the coordinate at the given zoom.
func Bin(lat, lon float64, zoom int) Cell {
	s := Scale(zoom)
	return Cell{
		LatBin: int(math.Floor((lat + 90) * s)),
		LonBin: int(math.Floor((lon + 180) * s)),
	}
}

// BinsInViewport returns the inclusive bin ranges covering the viewport.
func BinsInViewport(v Viewport, zoom int) (lat, lon Range) {
	minLat, maxLat, minLon, maxLon := v.Bounds()
	lo := Bin(minLat, minLon, zoom)
	hi := Bin(maxLat, maxLon, zoom)
	return Range{Min: lo.LatBin, Max: hi.LatBin}, Range{Min: lo.LonBin, Max: hi.LonBin}
}
