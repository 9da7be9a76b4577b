// Package scheduler refreshes the most recent days on a cron schedule. The
// current day's file keeps growing while INPE publishes new detections, so
// each run purges and re-ingests it.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"github.com/couchcryptid/fire-data-etl/internal/domain"
)

// Refresher loads and purges days.
type Refresher interface {
	GetFocuses(ctx context.Context, dates []time.Time) (map[time.Time][]domain.FireFocus, error)
	Purge(ctx context.Context, dates []time.Time) ([]string, error)
}

// Scheduler runs RunOnce on a cron schedule in UTC. Overlapping runs are
// skipped.
type Scheduler struct {
	refresher Refresher
	clock     clockwork.Clock
	days      int
	timeout   time.Duration
	logger    *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// New creates a scheduler that refreshes the given number of days ending
// today. Each run is bounded by timeout.
func New(refresher Refresher, clock clockwork.Clock, days int, timeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		refresher: refresher,
		clock:     clock,
		days:      max(days, 1),
		timeout:   timeout,
		logger:    logger,
	}
}

// Start registers the job with a standard five-field cron spec and starts
// the cron runner.
func (s *Scheduler) Start(spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return errors.New("scheduler already started")
	}

	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(spec, s.run); err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	c.Start()
	s.cron = c

	s.logger.Info("refresh scheduler started", "schedule", spec, "days", s.days)
	return nil
}

// Stop stops scheduling and waits for a running job until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}

	s.logger.Info("stopping refresh scheduler")
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("refresh still running at shutdown")
	}
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := s.clock.Now()
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("scheduled refresh failed", "error", err, "duration", s.clock.Since(start))
		return
	}
	s.logger.Info("scheduled refresh completed", "duration", s.clock.Since(start))
}

// RunOnce refreshes the configured window. Past days are loaded through the
// normal cache, store and remote path. Today is purged first so the latest
// file is downloaded again; a file not yet published is not an error.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	today := domain.UTC.StartOfDay(s.clock.Now())

	if s.days > 1 {
		past := domain.UTC.DatesBetween(domain.UTC.AddDays(today, -(s.days-1)), domain.UTC.AddDays(today, -1))
		byDay, err := s.refresher.GetFocuses(ctx, past)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			s.logger.Warn("past day not available", "error", err)
		case err != nil:
			return fmt.Errorf("refresh past days: %w", err)
		default:
			s.logger.Debug("past days refreshed", "days", len(past), "records", count(byDay))
		}
	}

	ids, err := s.refresher.Purge(ctx, []time.Time{today})
	if err != nil {
		return fmt.Errorf("purge today: %w", err)
	}

	byDay, err := s.refresher.GetFocuses(ctx, []time.Time{today})
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Info("today's file not published yet", "day", domain.FormatDay(today))
		return nil
	}
	if err != nil {
		return fmt.Errorf("refresh today: %w", err)
	}

	s.logger.Info("today refreshed",
		"day", domain.FormatDay(today),
		"purged", len(ids),
		"records", count(byDay),
	)
	return nil
}

func count(byDay map[time.Time][]domain.FireFocus) int {
	n := 0
	for _, recs := range byDay {
		n += len(recs)
	}
	return n
}
