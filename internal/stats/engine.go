// Package stats computes summaries, groupings and daily series over fire
// focus records. The functions here are pure and never fail.
package stats

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/fire-data-etl/internal/domain"
)

const unknownKey = "Unknown"

// Summary aggregates a record set. FRP statistics are nil when no record has FRP.
type Summary struct {
	TotalCount int      `json:"total_count"`
	FRPSum     float64  `json:"frp_sum"`
	FRPAvg     *float64 `json:"frp_avg"`
	FRPMedian  *float64 `json:"frp_median"`
	FRPP90     *float64 `json:"frp_p90"`
	FRPMax     *float64 `json:"frp_max"`
}

// GroupStat is one row of a top-N grouping.
type GroupStat struct {
	Key    string  `json:"key"`
	Count  int     `json:"count"`
	FRPSum float64 `json:"frp_sum"`
	Share  float64 `json:"share"`
}

// TimePoint is the activity of a single day.
type TimePoint struct {
	Date   time.Time `json:"date"`
	Count  int       `json:"count"`
	FRPSum float64   `json:"frp_sum"`
}

// GroupKey selects the grouping dimension.
type GroupKey int

const (
	ByRegion GroupKey = iota
	ByBiome
	ByMunicipality
)

func (k GroupKey) String() string {
	switch k {
	case ByRegion:
		return "region"
	case ByBiome:
		return "biome"
	case ByMunicipality:
		return "municipality"
	default:
		return fmt.Sprintf("GroupKey(%d)", int(k))
	}
}

// OrderBy selects the primary sort metric of a grouping.
type OrderBy int

const (
	OrderByCount OrderBy = iota
	OrderByFRPSum
)

// ParseOrderBy accepts "count" and "frp".
func ParseOrderBy(s string) (OrderBy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "count":
		return OrderByCount, nil
	case "frp", "frp_sum":
		return OrderByFRPSum, nil
	default:
		return 0, fmt.Errorf("invalid order %q: want count or frp", s)
	}
}

// Summarize computes totals and FRP statistics. Median and P90 use the
// nearest-rank method.
func Summarize(records []domain.FireFocus) Summary {
	s := Summary{TotalCount: len(records)}

	frps := make([]float64, 0, len(records))
	for _, r := range records {
		if r.FRP != nil {
			frps = append(frps, *r.FRP)
		}
	}
	if len(frps) == 0 {
		return s
	}
	sort.Float64s(frps)

	for _, v := range frps {
		s.FRPSum += v
	}
	avg := s.FRPSum / float64(len(frps))
	median := nearestRank(frps, 50)
	p90 := nearestRank(frps, 90)
	maxFRP := frps[len(frps)-1]

	s.FRPAvg = &avg
	s.FRPMedian = &median
	s.FRPP90 = &p90
	s.FRPMax = &maxFRP
	return s
}

// nearestRank expects sorted, non-empty input.
func nearestRank(sorted []float64, p float64) float64 {
	n := len(sorted)
	rank := int(math.Ceil(p / 100 * float64(n)))
	rank = max(1, min(rank, n))
	return sorted[rank-1]
}

// Group buckets records by key and returns the top N groups. Groups are
// ordered by the chosen metric, then the other metric, both descending, then
// by key ascending ignoring case. Share is relative to len(records).
func Group(records []domain.FireFocus, key GroupKey, topN int, orderBy OrderBy) []GroupStat {
	if topN <= 0 || len(records) == 0 {
		return nil
	}

	index := make(map[string]int)
	var groups []GroupStat
	for _, r := range records {
		k := groupKey(r, key)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, GroupStat{Key: k})
		}
		groups[i].Count++
		groups[i].FRPSum += r.FRPOrZero()
	}

	total := float64(len(records))
	for i := range groups {
		groups[i].Share = float64(groups[i].Count) / total
	}

	sort.Slice(groups, func(i, j int) bool {
		return groupLess(groups[i], groups[j], orderBy)
	})
	if len(groups) > topN {
		groups = groups[:topN]
	}
	return groups
}

func groupLess(a, b GroupStat, orderBy OrderBy) bool {
	if orderBy == OrderByFRPSum {
		if a.FRPSum != b.FRPSum {
			return a.FRPSum > b.FRPSum
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
	} else {
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.FRPSum != b.FRPSum {
			return a.FRPSum > b.FRPSum
		}
	}
	la, lb := strings.ToLower(a.Key), strings.ToLower(b.Key)
	if la != lb {
		return la < lb
	}
	return a.Key < b.Key
}

func groupKey(r domain.FireFocus, key GroupKey) string {
	switch key {
	case ByBiome:
		return orUnknown(domain.NormalizeRegion(r.Biome))
	case ByMunicipality:
		muni := orUnknown(strings.TrimSpace(r.Municipality))
		if s, ok := domain.StateFromCSV(r.Region); ok {
			return fmt.Sprintf("%s (%s)", muni, s.UF)
		}
		return muni
	default:
		return orUnknown(domain.NormalizeRegion(r.Region))
	}
}

func orUnknown(v string) string {
	if v == "" {
		return unknownKey
	}
	return v
}

// TimeSeries returns one point per calendar day in [start, end], including
// days without records. Records outside the range or without a date are
// ignored. An end before start yields no points.
func TimeSeries(records []domain.FireFocus, cal domain.Calendar, start, end time.Time) []TimePoint {
	start, end = cal.StartOfDay(start), cal.StartOfDay(end)
	if end.Before(start) {
		return nil
	}

	type bucket struct {
		count int
		frp   float64
	}
	buckets := make(map[time.Time]*bucket)
	for _, r := range records {
		if r.Date.IsZero() {
			continue
		}
		day := cal.StartOfDay(r.Date)
		if day.Before(start) || day.After(end) {
			continue
		}
		b, ok := buckets[day]
		if !ok {
			b = &bucket{}
			buckets[day] = b
		}
		b.count++
		b.frp += r.FRPOrZero()
	}

	var points []TimePoint
	for d := start; !d.After(end); d = cal.AddDays(d, 1) {
		p := TimePoint{Date: d}
		if b, ok := buckets[d]; ok {
			p.Count, p.FRPSum = b.count, b.frp
		}
		points = append(points, p)
	}
	return points
}
