package mapquery

import (
	"math"

	"github.com/couchcryptid/fire-data-etl/internal/domain"
	"github.com/couchcryptid/fire-data-etl/internal/grid"
)

// Mode is how a viewport should be drawn.
type Mode string

const (
	ModePins    Mode = "pins"
	ModeHeatmap Mode = "heatmap"
)

// DefaultHeatmapThreshold is the latitude span above which viewports switch to a heatmap.
const DefaultHeatmapThreshold = 8.0

// DisplayMode returns heatmap when the viewport's latitude span exceeds the threshold.
func DisplayMode(vp grid.Viewport, threshold float64) Mode {
	if vp.LatDelta > threshold {
		return ModeHeatmap
	}
	return ModePins
}

// Region fitting defaults.
const (
	DefaultPadding  = 1.3
	DefaultMinDelta = 0.5
	DefaultMaxDelta = 60.0
)

// RegionFitting returns a viewport enclosing the coordinates, with spans
// scaled by padding and clamped to [minDelta, maxDelta]. It returns ok=false
// for no coordinates.
func RegionFitting(coords []domain.Coordinate, padding, minDelta, maxDelta float64) (grid.Viewport, bool) {
	if len(coords) == 0 {
		return grid.Viewport{}, false
	}
	minLat, maxLat := coords[0].Lat, coords[0].Lat
	minLon, maxLon := coords[0].Lon, coords[0].Lon
	for _, c := range coords[1:] {
		minLat, maxLat = math.Min(minLat, c.Lat), math.Max(maxLat, c.Lat)
		minLon, maxLon = math.Min(minLon, c.Lon), math.Max(maxLon, c.Lon)
	}
	clamp := func(v float64) float64 { return math.Min(math.Max(v, minDelta), maxDelta) }
	return grid.Viewport{
		CenterLat: (minLat + maxLat) / 2,
		CenterLon: (minLon + maxLon) / 2,
		LatDelta:  clamp((maxLat - minLat) * padding),
		LonDelta:  clamp((maxLon - minLon) * padding),
	}, true
}

// ZoomForSpan approximates a web-map zoom level for a latitude span in
// degrees, assuming 360 degrees at zoom 0. The result is within [0, 20].
func ZoomForSpan(latDelta float64) int {
	if latDelta <= 0 {
		return 20
	}
	z := int(math.Round(math.Log2(360 / latDelta)))
	return max(0, min(z, 20))
}
