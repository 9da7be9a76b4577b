// Package mapquery answers viewport queries against the local store: capped
// pins per grid cell and aggregate heatmap cells.
package mapquery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/fire-data-etl/internal/domain"
	"github.com/couchcryptid/fire-data-etl/internal/grid"
	"github.com/couchcryptid/fire-data-etl/internal/observability"
)

// DefaultLimitPerCell caps pins per cell when callers do not choose a limit.
const DefaultLimitPerCell = 50

// Reader is the store access needed by map queries.
type Reader interface {
	Query(ctx context.Context, p domain.Predicate) ([]domain.PersistedFocus, error)
	GroupedCount(ctx context.Context, p domain.Predicate) ([]domain.HeatCell, error)
}

// Service runs map queries.
type Service struct {
	store   Reader
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewService creates a map query service.
func NewService(store Reader, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{store: store, metrics: metrics, logger: logger}
}

// predicate filters by day set and the viewport's bin ranges at the storage
// zoom. The display zoom never changes which stored bins match.
func predicate(vp grid.Viewport, days []time.Time) domain.Predicate {
	latRange, lonRange := grid.BinsInViewport(vp, grid.StorageZoom)
	return domain.Predicate{
		DayKeys:  domain.UTC.UniqueDays(days),
		LatRange: &latRange,
		LonRange: &lonRange,
	}
}

// Pins returns at most limitPerCell records per grid cell, in store order.
// No days or a non-positive limit yields no pins.
func (s *Service) Pins(ctx context.Context, vp grid.Viewport, zoom int, days []time.Time, limitPerCell int) ([]domain.FireFocus, error) {
	if len(days) == 0 || limitPerCell <= 0 {
		return nil, nil
	}
	start := time.Now()
	defer func() { s.metrics.QueryDuration.WithLabelValues("pins").Observe(time.Since(start).Seconds()) }()

	recs, err := s.store.Query(ctx, predicate(vp, days))
	if err != nil {
		return nil, fmt.Errorf("query pins: %w", err)
	}

	counts := make(map[grid.Cell]int)
	out := make([]domain.FireFocus, 0, len(recs))
	for _, r := range recs {
		cell := grid.Cell{LatBin: r.LatBin, LonBin: r.LonBin}
		if counts[cell] >= limitPerCell {
			continue
		}
		counts[cell]++
		out = append(out, r.FireFocus)
	}

	s.logger.Debug("pins query",
		"zoom", zoom,
		"days", len(days),
		"matched", len(recs),
		"cells", len(counts),
		"returned", len(out),
	)
	return out, nil
}

// Heatmap returns the per-cell record counts inside the viewport.
func (s *Service) Heatmap(ctx context.Context, vp grid.Viewport, zoom int, days []time.Time) ([]domain.HeatCell, error) {
	if len(days) == 0 {
		return nil, nil
	}
	start := time.Now()
	defer func() { s.metrics.QueryDuration.WithLabelValues("heatmap").Observe(time.Since(start).Seconds()) }()

	cells, err := s.store.GroupedCount(ctx, predicate(vp, days))
	if err != nil {
		return nil, fmt.Errorf("query heatmap: %w", err)
	}
	s.logger.Debug("heatmap query", "zoom", zoom, "days", len(days), "cells", len(cells))
	return cells, nil
}
