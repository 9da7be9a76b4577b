package domain

import (
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var (
	latCandidates = []string{"latitude", "lat", "y", "latitud"}
	lonCandidates = []string{"longitude", "lon", "long", "lng", "x", "longitud"}

	satelliteKeys    = []string{"satelite", "satélite", "satellite"}
	municipalityKeys = []string{"municipio", "município"}
	regionKeys       = []string{"estado", "uf"}
	biomeKeys        = []string{"bioma"}
	fireRiskKeys     = []string{"risco_fogo", "risco", "riscofogo"}
	daysNoRainKeys   = []string{"numero_dias_sem_chuva", "dias_sem_chuva", "diassemschuva"}
	frpKeys          = []string{"frp"}
)

// DetectLatLonColumns finds the latitude and longitude headers. Each axis is
// the first header, in file order, that case-insensitively equals one of its
// candidates; the header is returned in its original casing. An empty string
// means no match.
func DetectLatLonColumns(headers []string) (latCol, lonCol string) {
	return firstHeader(headers, latCandidates), firstHeader(headers, lonCandidates)
}

func firstHeader(headers, candidates []string) string {
	for _, h := range headers {
		folded := strings.ToLower(strings.TrimSpace(h))
		if slices.Contains(candidates, folded) {
			return h
		}
	}
	return ""
}

// MapRow converts one parsed row into a FireFocus. It returns ok=false when a
// coordinate column is missing, unparsable or out of range.
func MapRow(row map[string]string, latCol, lonCol string) (FireFocus, bool) {
	if latCol == "" || lonCol == "" {
		return FireFocus{}, false
	}
	latRaw, ok := row[latCol]
	if !ok {
		return FireFocus{}, false
	}
	lonRaw, ok := row[lonCol]
	if !ok {
		return FireFocus{}, false
	}
	lat, ok := ParseDecimal(latRaw)
	if !ok {
		return FireFocus{}, false
	}
	lon, ok := ParseDecimal(lonRaw)
	if !ok {
		return FireFocus{}, false
	}
	coord, ok := NewCoordinate(lat, lon)
	if !ok {
		return FireFocus{}, false
	}

	normalized := NormalizeKeys(row)
	f := FireFocus{
		ID:         mapID(row),
		Coordinate: coord,
	}
	f.Satellite, _ = Lookup(row, normalized, satelliteKeys...)
	f.Municipality, _ = Lookup(row, normalized, municipalityKeys...)
	f.Region, _ = Lookup(row, normalized, regionKeys...)
	f.Biome, _ = Lookup(row, normalized, biomeKeys...)
	f.FireRiskLevel, _ = Lookup(row, normalized, fireRiskKeys...)

	if v, ok := Lookup(row, normalized, daysNoRainKeys...); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			f.DaysWithoutRain = &n
		}
	}
	if v, ok := Lookup(row, normalized, frpKeys...); ok {
		if frp, ok := ParseDecimal(v); ok && frp >= 0 {
			f.FRP = &frp
		}
	}
	return f, true
}

// MapAll maps every row, dropping invalid ones and preserving order. It
// returns nil when no lat/lon columns can be detected.
func MapAll(headers []string, rows []map[string]string) []FireFocus {
	latCol, lonCol := DetectLatLonColumns(headers)
	if latCol == "" || lonCol == "" {
		return nil
	}
	out := make([]FireFocus, 0, len(rows))
	for _, row := range rows {
		if f, ok := MapRow(row, latCol, lonCol); ok {
			out = append(out, f)
		}
	}
	return out
}

// mapID takes the row's own "id" column, trimmed, or generates one.
func mapID(row map[string]string) string {
	if id := strings.TrimSpace(row["id"]); id != "" {
		return id
	}
	return uuid.NewString()
}
