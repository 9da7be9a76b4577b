package domain

import (
	"time"

	"github.com/couchcryptid/fire-data-etl/internal/grid"
)

// Coordinate is a WGS-84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewCoordinate returns ok=false when lat is outside [-90, 90] or lon outside [-180, 180].
func NewCoordinate(lat, lon float64) (Coordinate, bool) {
	c := Coordinate{Lat: lat, Lon: lon}
	return c, c.Valid()
}

// Valid reports whether both components are within range. NaN is never valid.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// FireFocus is a single fire detection. Values are treated as immutable;
// use the With* helpers to derive modified copies.
type FireFocus struct {
	ID              string     `json:"id"`
	Coordinate      Coordinate `json:"coordinate"`
	Satellite       string     `json:"satellite,omitempty"`
	Municipality    string     `json:"municipality,omitempty"`
	Region          string     `json:"region,omitempty"`
	DaysWithoutRain *int       `json:"days_without_rain,omitempty"`
	FireRiskLevel   string     `json:"fire_risk_level,omitempty"`
	Biome           string     `json:"biome,omitempty"`
	FRP             *float64   `json:"frp,omitempty"`
	Date            time.Time  `json:"date,omitzero"`
}

// WithDate returns a copy of f stamped with the given source day.
func (f FireFocus) WithDate(date time.Time) FireFocus {
	f.Date = date
	return f
}

// FRPOrZero returns the FRP value, or 0 when absent.
func (f FireFocus) FRPOrZero() float64 {
	if f.FRP == nil {
		return 0
	}
	return *f.FRP
}

// PersistedFocus is the stored projection of a FireFocus: the record plus its
// day key and the grid bins computed once at write time at [grid.StorageZoom].
type PersistedFocus struct {
	FireFocus
	DayKey time.Time `json:"day_key"`
	LatBin int       `json:"lat_bin"`
	LonBin int       `json:"lon_bin"`
}

// Persist builds the stored projection of f for the given day.
func Persist(f FireFocus, day time.Time) PersistedFocus {
	cell := grid.Bin(f.Coordinate.Lat, f.Coordinate.Lon, grid.StorageZoom)
	return PersistedFocus{
		FireFocus: f,
		DayKey:    UTC.StartOfDay(day),
		LatBin:    cell.LatBin,
		LonBin:    cell.LonBin,
	}
}

// HeatCell is the per-bin count returned by aggregate map queries.
// Sample is omitted in the aggregate path.
type HeatCell struct {
	LatBin int        `json:"lat_bin"`
	LonBin int        `json:"lon_bin"`
	Count  int        `json:"count"`
	Sample *FireFocus `json:"sample,omitempty"`
}

// Predicate selects persisted records. Empty DayKeys matches nothing; nil
// ranges do not constrain that axis.
type Predicate struct {
	DayKeys  []time.Time
	LatRange *grid.Range
	LonRange *grid.Range
}

// PersistResult reports what a per-day persist did.
type PersistResult struct {
	Processed int
	Existing  int
	Inserted  int
	Skipped   int
}
