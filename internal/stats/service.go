package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/fire-data-etl/internal/domain"
)

// PresetDays are the period shortcuts offered to API callers.
var PresetDays = []int{7, 15, 30}

// FocusProvider loads records for a set of days.
type FocusProvider interface {
	GetFocuses(ctx context.Context, dates []time.Time) (map[time.Time][]domain.FireFocus, error)
}

// ReportRequest describes a statistics query. Zero Start/End default to the
// last seven days ending today.
type ReportRequest struct {
	Start   time.Time
	End     time.Time
	State   *domain.State
	Biome   *domain.Biome
	TopN    int
	OrderBy OrderBy
}

// Report is the full statistics response for a period.
type Report struct {
	Start          time.Time   `json:"start"`
	End            time.Time   `json:"end"`
	Summary        Summary     `json:"summary"`
	ByState        []GroupStat `json:"by_state"`
	ByBiome        []GroupStat `json:"by_biome"`
	ByMunicipality []GroupStat `json:"by_municipality"`
	Series         []TimePoint `json:"series"`
}

// Service loads records through a FocusProvider and aggregates them.
type Service struct {
	provider FocusProvider
	clock    clockwork.Clock
	logger   *slog.Logger
}

// NewService creates a statistics service.
func NewService(provider FocusProvider, clock clockwork.Clock, logger *slog.Logger) *Service {
	return &Service{provider: provider, clock: clock, logger: logger}
}

// PresetRange returns the period of the given number of days ending today (UTC).
func (s *Service) PresetRange(days int) (start, end time.Time) {
	end = domain.UTC.StartOfDay(s.clock.Now())
	return domain.UTC.AddDays(end, -(max(days, 1) - 1)), end
}

// Report loads every day of the period, applies the filters and aggregates.
func (s *Service) Report(ctx context.Context, req ReportRequest) (Report, error) {
	start, end := req.Start, req.End
	if start.IsZero() || end.IsZero() {
		start, end = s.PresetRange(PresetDays[0])
	}
	start, end = domain.UTC.StartOfDay(start), domain.UTC.StartOfDay(end)
	if end.Before(start) {
		start, end = end, start
	}
	topN := max(req.TopN, 1)

	byDay, err := s.provider.GetFocuses(ctx, domain.UTC.DatesBetween(start, end))
	if err != nil {
		return Report{}, fmt.Errorf("load focuses: %w", err)
	}

	records := domain.Filter(flatten(byDay), req.State, req.Biome)
	s.logger.Debug("stats report",
		"start", domain.FormatDay(start),
		"end", domain.FormatDay(end),
		"records", len(records),
	)

	return Report{
		Start:          start,
		End:            end,
		Summary:        Summarize(records),
		ByState:        Group(records, ByRegion, topN, req.OrderBy),
		ByBiome:        Group(records, ByBiome, topN, req.OrderBy),
		ByMunicipality: Group(records, ByMunicipality, topN, req.OrderBy),
		Series:         TimeSeries(records, domain.UTC, start, end),
	}, nil
}

func flatten(byDay map[time.Time][]domain.FireFocus) []domain.FireFocus {
	days := make([]time.Time, 0, len(byDay))
	n := 0
	for d, rs := range byDay {
		days = append(days, d)
		n += len(rs)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	out := make([]domain.FireFocus, 0, n)
	for _, d := range days {
		out = append(out, byDay[d]...)
	}
	return out
}
