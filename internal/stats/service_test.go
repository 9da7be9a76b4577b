package stats

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/fire-data-etl/internal/domain"
)

// --- mocks ---

type mockProvider struct {
	data      map[time.Time][]domain.FireFocus
	err       error
	requested []time.Time
}

func (m *mockProvider) GetFocuses(_ context.Context, dates []time.Time) (map[time.Time][]domain.FireFocus, error) {
	m.requested = dates
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[time.Time][]domain.FireFocus, len(dates))
	for _, d := range dates {
		out[d] = m.data[d]
	}
	return out, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- tests ---

func TestServiceReport(t *testing.T) {
	d1 := day(t, "2024-08-01")
	d2 := day(t, "2024-08-02")
	provider := &mockProvider{data: map[time.Time][]domain.FireFocus{
		d1: {
			{ID: "1", Region: "PARÁ", Biome: "Amazônia", Municipality: "ALTAMIRA", FRP: frp(10), Date: d1},
			{ID: "2", Region: "MT", Biome: "Cerrado", Municipality: "SORRISO", FRP: frp(20), Date: d1},
		},
		d2: {
			{ID: "3", Region: "PA", Biome: "Amazônia", Municipality: "ALTAMIRA", Date: d2},
		},
	}}
	svc := NewService(provider, clockwork.NewFakeClockAt(d2.Add(10*time.Hour)), discardLogger())

	t.Run("reversed range is swapped", func(t *testing.T) {
		report, err := svc.Report(context.Background(), ReportRequest{Start: d2, End: d1, TopN: 5})
		require.NoError(t, err)

		assert.Equal(t, []time.Time{d1, d2}, provider.requested)
		assert.Equal(t, 3, report.Summary.TotalCount)
		assert.Len(t, report.Series, 2)
		require.NotEmpty(t, report.ByMunicipality)
		assert.Equal(t, "ALTAMIRA (PA)", report.ByMunicipality[0].Key)
	})

	t.Run("state filter", func(t *testing.T) {
		pa, _ := domain.StateFromCSV("PA")
		report, err := svc.Report(context.Background(), ReportRequest{Start: d1, End: d2, State: &pa})
		require.NoError(t, err)

		assert.Equal(t, 2, report.Summary.TotalCount)
		// topN defaults to one
		assert.Len(t, report.ByState, 1)
	})

	t.Run("biome filter", func(t *testing.T) {
		cerrado := domain.BiomeCerrado
		report, err := svc.Report(context.Background(), ReportRequest{Start: d1, End: d2, Biome: &cerrado, TopN: 3})
		require.NoError(t, err)
		assert.Equal(t, 1, report.Summary.TotalCount)
		assert.Equal(t, 20.0, report.Summary.FRPSum)
	})

	t.Run("default period", func(t *testing.T) {
		report, err := svc.Report(context.Background(), ReportRequest{TopN: 3})
		require.NoError(t, err)
		assert.Equal(t, d2, report.End)
		assert.Equal(t, d2.AddDate(0, 0, -6), report.Start)
		assert.Len(t, report.Series, 7)
	})

	t.Run("provider error", func(t *testing.T) {
		failing := NewService(&mockProvider{err: domain.ErrTransport}, clockwork.NewFakeClock(), discardLogger())
		_, err := failing.Report(context.Background(), ReportRequest{Start: d1, End: d1})
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrTransport))
	})
}

func TestPresetRange(t *testing.T) {
	now := time.Date(2024, 8, 30, 23, 0, 0, 0, time.UTC)
	svc := NewService(&mockProvider{}, clockwork.NewFakeClockAt(now), discardLogger())

	for _, days := range PresetDays {
		start, end := svc.PresetRange(days)
		assert.Equal(t, time.Date(2024, 8, 30, 0, 0, 0, 0, time.UTC), end)
		assert.Len(t, domain.UTC.DatesBetween(start, end), days)
	}
}
