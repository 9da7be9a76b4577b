// Package memory implements the local fire focus store in process memory.
// It honors the same contract as the SQLite store and is used for tests and
// ephemeral deployments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/fire-data-etl/internal/domain"
)

// Store keeps records per day in insertion order. All access goes through a
// single RWMutex, so a persist call is atomic with respect to other writers.
type Store struct {
	mu    sync.RWMutex
	byID  map[string]domain.PersistedFocus
	order map[time.Time][]string
}

// New creates an empty store.
func New() *Store {
	return &Store{
		byID:  make(map[string]domain.PersistedFocus),
		order: make(map[time.Time][]string),
	}
}

// CheckReadiness always succeeds.
func (s *Store) CheckReadiness(context.Context) error { return nil }

// Upsert inserts the record or replaces the one with the same id.
func (s *Store) Upsert(_ context.Context, rec domain.PersistedFocus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(rec)
	return nil
}

// PersistDay inserts the records under the day's key, skipping ids already
// stored. batchSize has no effect in memory.
func (s *Store) PersistDay(ctx context.Context, day time.Time, records []domain.FireFocus, _ int) (domain.PersistResult, error) {
	day = domain.UTC.StartOfDay(day)

	s.mu.Lock()
	defer s.mu.Unlock()

	res := domain.PersistResult{Existing: len(s.order[day])}
	for _, f := range records {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("persist day: %w: %w", domain.ErrPersistence, err)
		}
		res.Processed++
		if _, ok := s.byID[f.ID]; ok {
			res.Skipped++
			continue
		}
		s.put(domain.Persist(f, day))
		res.Inserted++
	}
	return res, nil
}

func (s *Store) put(rec domain.PersistedFocus) {
	if old, ok := s.byID[rec.ID]; ok {
		s.removeFromDay(old.DayKey, rec.ID)
	}
	s.byID[rec.ID] = rec
	s.order[rec.DayKey] = append(s.order[rec.DayKey], rec.ID)
}

func (s *Store) removeFromDay(day time.Time, id string) {
	ids := s.order[day]
	for i, v := range ids {
		if v == id {
			s.order[day] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(s.order[day]) == 0 {
		delete(s.order, day)
	}
}

// QueryByDayKeys returns every record stored under the given days.
func (s *Store) QueryByDayKeys(ctx context.Context, keys []time.Time) ([]domain.PersistedFocus, error) {
	return s.Query(ctx, domain.Predicate{DayKeys: keys})
}

// Query returns the records matching the predicate ordered by day and insertion.
func (s *Store) Query(_ context.Context, p domain.Predicate) ([]domain.PersistedFocus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.PersistedFocus
	for _, day := range sortedDays(p.DayKeys) {
		for _, id := range s.order[day] {
			rec := s.byID[id]
			if matches(rec, p) {
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

// GroupedCount counts matching records per bin.
func (s *Store) GroupedCount(ctx context.Context, p domain.Predicate) ([]domain.HeatCell, error) {
	recs, err := s.Query(ctx, p)
	if err != nil {
		return nil, err
	}
	type cell struct{ lat, lon int }
	counts := make(map[cell]int)
	for _, r := range recs {
		counts[cell{r.LatBin, r.LonBin}]++
	}
	out := make([]domain.HeatCell, 0, len(counts))
	for c, n := range counts {
		out = append(out, domain.HeatCell{LatBin: c.lat, LonBin: c.lon, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LatBin != out[j].LatBin {
			return out[i].LatBin < out[j].LatBin
		}
		return out[i].LonBin < out[j].LonBin
	})
	return out, nil
}

// DeleteByDayKeys removes every record of the given days and returns their ids.
func (s *Store) DeleteByDayKeys(_ context.Context, keys []time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for _, day := range sortedDays(keys) {
		for _, id := range s.order[day] {
			delete(s.byID, id)
			ids = append(ids, id)
		}
		delete(s.order, day)
	}
	return ids, nil
}

func matches(rec domain.PersistedFocus, p domain.Predicate) bool {
	if p.LatRange != nil && !p.LatRange.Contains(rec.LatBin) {
		return false
	}
	if p.LonRange != nil && !p.LonRange.Contains(rec.LonBin) {
		return false
	}
	return true
}

func sortedDays(keys []time.Time) []time.Time {
	days := domain.UTC.UniqueDays(keys)
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}
