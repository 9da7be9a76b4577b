// Package heatmap turns FRP values into bounded heatmap weights.
package heatmap

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/couchcryptid/fire-data-etl/internal/domain"
)

const epsilon = 1e-9

// Strategy chooses the divisor that FRP values are scaled against.
// Implementations are FixedDivisor and Quantile.
type Strategy interface {
	divisor(frps []float64) float64
}

// FixedDivisor scales every FRP against a constant.
type FixedDivisor float64

func (d FixedDivisor) divisor([]float64) float64 {
	return math.Max(float64(d), epsilon)
}

// Quantile scales against the p-th quantile of the batch, with p clamped to
// [0.5, 0.999]. Absent FRP counts as zero.
type Quantile float64

func (q Quantile) divisor(frps []float64) float64 {
	if len(frps) == 0 {
		return epsilon
	}
	sorted := append([]float64(nil), frps...)
	sort.Float64s(sorted)

	p := math.Min(math.Max(float64(q), 0.5), 0.999)
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	v := sorted[lo]
	if hi != lo {
		frac := pos - float64(lo)
		v = sorted[lo]*(1-frac) + sorted[hi]*frac
	}
	return math.Max(v, epsilon)
}

// Transform compresses FRP values before scaling.
type Transform int

const (
	Linear Transform = iota
	Sqrt
	Log
)

// ParseTransform accepts "linear", "sqrt" and "log".
func ParseTransform(s string) (Transform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "linear":
		return Linear, nil
	case "sqrt":
		return Sqrt, nil
	case "log", "log1p":
		return Log, nil
	default:
		return 0, fmt.Errorf("invalid transform %q: want linear, sqrt or log", s)
	}
}

func (t Transform) apply(v float64) float64 {
	v = math.Max(v, 0)
	switch t {
	case Sqrt:
		return math.Sqrt(v)
	case Log:
		return math.Log1p(v)
	default:
		return v
	}
}

// WeightedPoint is a coordinate with its normalized heatmap weight.
type WeightedPoint struct {
	Coordinate domain.Coordinate `json:"coordinate"`
	Weight     float64           `json:"weight"`
}

// Weights returns one point per record with weight
// clamp(t(frp) / t(divisor), floor, ceiling).
func Weights(records []domain.FireFocus, floor, ceiling float64, s Strategy, t Transform) []WeightedPoint {
	frps := make([]float64, len(records))
	for i, r := range records {
		frps[i] = r.FRPOrZero()
	}

	denom := t.apply(s.divisor(frps))
	points := make([]WeightedPoint, len(records))
	for i, r := range records {
		w := 0.0
		if denom > 0 {
			w = t.apply(frps[i]) / denom
		}
		points[i] = WeightedPoint{
			Coordinate: r.Coordinate,
			Weight:     math.Min(math.Max(w, floor), ceiling),
		}
	}
	return points
}
