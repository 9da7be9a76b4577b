// Package pipeline orchestrates fetching, persisting and serving days of fire
// focus records.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/fire-data-etl/internal/csvparse"
	"github.com/couchcryptid/fire-data-etl/internal/domain"
	"github.com/couchcryptid/fire-data-etl/internal/observability"
)

const (
	defaultMaxConcurrency  = 2
	defaultCommitBatchSize = 500
	defaultRetries         = 2
	defaultBackoff         = 200 * time.Millisecond
	maxBackoff             = 5 * time.Second
)

// Source downloads the raw CSV text for one day.
type Source interface {
	FetchCSV(ctx context.Context, day time.Time) (string, error)
}

// Store is the local persistence used by the orchestrator.
type Store interface {
	QueryByDayKeys(ctx context.Context, keys []time.Time) ([]domain.PersistedFocus, error)
	PersistDay(ctx context.Context, day time.Time, records []domain.FireFocus, batchSize int) (domain.PersistResult, error)
	DeleteByDayKeys(ctx context.Context, keys []time.Time) ([]string, error)
	CheckReadiness(ctx context.Context) error
}

// Cache holds recently read days. It must be invalidated whenever the store
// changes. Readers take the day's generation before reading the store and
// put with it, so records read before an invalidation are never cached after it.
type Cache interface {
	Get(day time.Time) ([]domain.FireFocus, bool)
	Generation(day time.Time) uint64
	PutIfCurrent(day time.Time, records []domain.FireFocus, gen uint64) bool
	Invalidate(days ...time.Time)
}

// Publisher forwards newly ingested records downstream.
type Publisher interface {
	Publish(ctx context.Context, day time.Time, records []domain.FireFocus) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCache puts a read cache in front of the store.
func WithCache(c Cache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// WithPublisher publishes every freshly fetched day.
func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithMaxConcurrency sets how many days are fetched at once.
func WithMaxConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxConcurrency = n
		}
	}
}

// WithCommitBatchSize sets the number of inserts per store commit.
func WithCommitBatchSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.commitBatchSize = n
		}
	}
}

// WithRetry sets how often a transport failure is retried and the initial backoff.
func WithRetry(retries int, backoff time.Duration) Option {
	return func(o *Orchestrator) {
		o.retries = max(retries, 0)
		o.backoff = backoff
	}
}

// Orchestrator serves days of records from the cache, the local store, or the
// remote source, in that order. Days the store lacks are fetched, persisted
// and merged into the result.
type Orchestrator struct {
	source    Source
	store     Store
	cache     Cache
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics

	maxConcurrency  int
	commitBatchSize int
	retries         int
	backoff         time.Duration
}

// New creates an Orchestrator.
func New(source Source, store Store, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		source:          source,
		store:           store,
		logger:          logger,
		metrics:         metrics,
		maxConcurrency:  defaultMaxConcurrency,
		commitBatchSize: defaultCommitBatchSize,
		retries:         defaultRetries,
		backoff:         defaultBackoff,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CheckReadiness reports whether the store is reachable.
func (o *Orchestrator) CheckReadiness(ctx context.Context) error {
	return o.store.CheckReadiness(ctx)
}

// GetFocuses returns the records of every requested day, keyed by UTC day.
// Every requested day is present in the result, possibly with no records.
// Any failure fetching or persisting a missing day fails the whole call;
// days committed before the failure stay committed.
func (o *Orchestrator) GetFocuses(ctx context.Context, dates []time.Time) (map[time.Time][]domain.FireFocus, error) {
	result, _, err := o.load(ctx, dates, false)
	return result, err
}

// GetAvailableFocuses is GetFocuses for callers that accept gaps: a day the
// source has not published is returned empty and listed in unpublished
// instead of failing the call, and the remaining days are still loaded.
func (o *Orchestrator) GetAvailableFocuses(ctx context.Context, dates []time.Time) (map[time.Time][]domain.FireFocus, []time.Time, error) {
	return o.load(ctx, dates, true)
}

func (o *Orchestrator) load(ctx context.Context, dates []time.Time, skipUnpublished bool) (map[time.Time][]domain.FireFocus, []time.Time, error) {
	days := domain.UTC.UniqueDays(dates)
	result := make(map[time.Time][]domain.FireFocus, len(days))
	if len(days) == 0 {
		return result, nil, nil
	}
	o.metrics.DaysRequested.Add(float64(len(days)))

	uncached := make([]time.Time, 0, len(days))
	gens := make(map[time.Time]uint64, len(days))
	for _, d := range days {
		if o.cache != nil {
			if recs, ok := o.cache.Get(d); ok && len(recs) > 0 {
				result[d] = recs
				o.metrics.DaysServed.WithLabelValues("cache").Inc()
				continue
			}
			gens[d] = o.cache.Generation(d)
		}
		uncached = append(uncached, d)
	}

	if len(uncached) > 0 {
		stored, err := o.store.QueryByDayKeys(ctx, uncached)
		if err != nil {
			return nil, nil, fmt.Errorf("query store: %w", err)
		}
		byDay := groupByDay(stored)
		for _, d := range uncached {
			recs := byDay[d]
			if len(recs) == 0 {
				continue
			}
			result[d] = recs
			o.metrics.DaysServed.WithLabelValues("store").Inc()
			o.cachePut(d, recs, gens[d])
		}
	}

	var missing []time.Time
	for _, d := range days {
		if len(result[d]) == 0 {
			missing = append(missing, d)
			result[d] = nil
		}
	}
	if len(missing) == 0 {
		return result, nil, nil
	}

	o.logger.Info("fetching missing days", "days", len(missing), "requested", len(days))
	fetched, unpublished, err := o.fetchMissing(ctx, missing, skipUnpublished)
	if err != nil {
		return nil, nil, err
	}
	for d, recs := range fetched {
		result[d] = recs
	}
	return result, unpublished, nil
}

// fetchMissing ingests days in sequential batches of at most maxConcurrency
// concurrent fetches. With skipUnpublished, a day answering ErrNotFound is
// collected instead of failing its batch.
func (o *Orchestrator) fetchMissing(ctx context.Context, days []time.Time, skipUnpublished bool) (map[time.Time][]domain.FireFocus, []time.Time, error) {
	out := make(map[time.Time][]domain.FireFocus, len(days))
	var unpublished []time.Time
	for start := 0; start < len(days); start += o.maxConcurrency {
		batch := days[start:min(start+o.maxConcurrency, len(days))]
		results := make([][]domain.FireFocus, len(batch))
		notFound := make([]bool, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		for i, day := range batch {
			g.Go(func() error {
				recs, err := o.ingestDay(gctx, day)
				if skipUnpublished && errors.Is(err, domain.ErrNotFound) {
					notFound[i] = true
					return nil
				}
				if err != nil {
					return err
				}
				results[i] = recs
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, nil, err
		}
		for i, d := range batch {
			if notFound[i] {
				unpublished = append(unpublished, d)
			}
			out[d] = results[i]
		}
	}
	if len(unpublished) > 0 {
		o.logger.Info("days not published yet", "days", len(unpublished))
	}
	return out, unpublished, nil
}

// ingestDay fetches, parses, maps, stamps and persists one day.
func (o *Orchestrator) ingestDay(ctx context.Context, day time.Time) ([]domain.FireFocus, error) {
	o.metrics.IngestionRunning.Inc()
	defer o.metrics.IngestionRunning.Dec()

	var gen uint64
	if o.cache != nil {
		gen = o.cache.Generation(day)
	}

	text, err := o.fetchWithRetry(ctx, day)
	if err != nil {
		o.metrics.FetchErrors.WithLabelValues(errorKind(err)).Inc()
		return nil, fmt.Errorf("fetch day %s: %w", domain.FormatDay(day), err)
	}

	headers, rows := csvparse.Parse(text)
	mapped := domain.MapAll(headers, rows)
	o.metrics.RowsDropped.Add(float64(len(rows) - len(mapped)))

	records := make([]domain.FireFocus, len(mapped))
	for i, f := range mapped {
		records[i] = f.WithDate(day)
	}

	res, err := o.persist(ctx, day, records)
	if err != nil {
		o.metrics.FetchErrors.WithLabelValues(errorKind(err)).Inc()
		return nil, err
	}
	o.metrics.DaysServed.WithLabelValues("remote").Inc()

	o.logger.Info("day ingested",
		"day", domain.FormatDay(day),
		"rows", len(rows),
		"valid", len(records),
		"dropped", len(rows)-len(records),
		"processed", res.Processed,
		"existing", res.Existing,
		"inserted", res.Inserted,
		"skipped", res.Skipped,
	)

	if len(records) > 0 {
		o.cachePut(day, records, gen)
		o.publish(ctx, day, records)
	}
	return records, nil
}

// cachePut caches the day unless it was invalidated since gen was taken.
func (o *Orchestrator) cachePut(day time.Time, records []domain.FireFocus, gen uint64) {
	if o.cache == nil {
		return
	}
	if !o.cache.PutIfCurrent(day, records, gen) {
		o.logger.Debug("day changed while loading, not cached", "day", domain.FormatDay(day))
	}
}

func (o *Orchestrator) fetchWithRetry(ctx context.Context, day time.Time) (string, error) {
	backoff := o.backoff
	for attempt := 0; ; attempt++ {
		text, err := o.source.FetchCSV(ctx, day)
		if err == nil || !errors.Is(err, domain.ErrTransport) || attempt >= o.retries || ctx.Err() != nil {
			return text, err
		}
		o.logger.Warn("fetch failed, retrying",
			"day", domain.FormatDay(day),
			"attempt", attempt+1,
			"backoff", backoff,
			"error", err,
		)
		if !sleepWithContext(ctx, backoff) {
			return "", err
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
}

func (o *Orchestrator) persist(ctx context.Context, day time.Time, records []domain.FireFocus) (domain.PersistResult, error) {
	start := time.Now()
	res, err := o.store.PersistDay(ctx, day, records, o.commitBatchSize)
	o.metrics.PersistDuration.Observe(time.Since(start).Seconds())
	o.metrics.RecordsPersisted.WithLabelValues("inserted").Add(float64(res.Inserted))
	o.metrics.RecordsPersisted.WithLabelValues("skipped").Add(float64(res.Skipped))
	if err != nil {
		return res, fmt.Errorf("persist day %s: %w", domain.FormatDay(day), err)
	}
	return res, nil
}

func (o *Orchestrator) publish(ctx context.Context, day time.Time, records []domain.FireFocus) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(ctx, day, records); err != nil {
		o.logger.Warn("publish failed", "day", domain.FormatDay(day), "records", len(records), "error", err)
		return
	}
	o.metrics.RecordsPublished.Add(float64(len(records)))
}

// StoreFocuses persists records under the given day, stamping each with it,
// and drops the day from the read cache.
func (o *Orchestrator) StoreFocuses(ctx context.Context, records []domain.FireFocus, date time.Time) (domain.PersistResult, error) {
	day := domain.UTC.StartOfDay(date)
	stamped := make([]domain.FireFocus, len(records))
	for i, f := range records {
		stamped[i] = f.WithDate(day)
	}

	res, err := o.persist(ctx, day, stamped)
	if o.cache != nil {
		o.cache.Invalidate(day)
	}
	if err != nil {
		return res, err
	}
	o.logger.Info("records stored",
		"day", domain.FormatDay(day),
		"processed", res.Processed,
		"inserted", res.Inserted,
		"skipped", res.Skipped,
	)
	return res, nil
}

// Purge deletes every record of the given days and drops them from the read
// cache. It returns the deleted ids.
func (o *Orchestrator) Purge(ctx context.Context, dates []time.Time) ([]string, error) {
	days := domain.UTC.UniqueDays(dates)
	if len(days) == 0 {
		return nil, nil
	}
	ids, err := o.store.DeleteByDayKeys(ctx, days)
	if err != nil {
		return nil, fmt.Errorf("purge: %w", err)
	}
	if o.cache != nil {
		o.cache.Invalidate(days...)
	}
	o.metrics.RecordsPurged.Add(float64(len(ids)))
	o.logger.Info("days purged", "days", len(days), "records", len(ids))
	return ids, nil
}

func groupByDay(records []domain.PersistedFocus) map[time.Time][]domain.FireFocus {
	out := make(map[time.Time][]domain.FireFocus)
	for _, r := range records {
		key := domain.UTC.StartOfDay(r.DayKey)
		out[key] = append(out[key], r.FireFocus)
	}
	return out
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrTransport):
		return "transport"
	case errors.Is(err, domain.ErrDecode):
		return "decode"
	case errors.Is(err, domain.ErrPersistence):
		return "persistence"
	default:
		return "other"
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
