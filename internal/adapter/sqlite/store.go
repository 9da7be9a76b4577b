// Package sqlite implements the local fire focus store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/couchcryptid/fire-data-etl/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS fire_focuses (
	id                TEXT PRIMARY KEY,
	day_key           INTEGER NOT NULL,
	date              INTEGER,
	latitude          REAL NOT NULL,
	longitude         REAL NOT NULL,
	lat_bin           INTEGER NOT NULL,
	lon_bin           INTEGER NOT NULL,
	satellite         TEXT NOT NULL DEFAULT '',
	municipality      TEXT NOT NULL DEFAULT '',
	region            TEXT NOT NULL DEFAULT '',
	days_without_rain INTEGER,
	fire_risk_level   TEXT NOT NULL DEFAULT '',
	biome             TEXT NOT NULL DEFAULT '',
	frp               REAL
);
CREATE INDEX IF NOT EXISTS idx_fire_focuses_day ON fire_focuses (day_key);
CREATE INDEX IF NOT EXISTS idx_fire_focuses_day_bins ON fire_focuses (day_key, lat_bin, lon_bin);
`

const columns = `id, day_key, date, latitude, longitude, lat_bin, lon_bin, satellite,
	municipality, region, days_without_rain, fire_risk_level, biome, frp`

const insertSQL = `INSERT INTO fire_focuses (` + columns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO NOTHING`

const upsertSQL = `INSERT INTO fire_focuses (` + columns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		day_key = excluded.day_key,
		date = excluded.date,
		latitude = excluded.latitude,
		longitude = excluded.longitude,
		lat_bin = excluded.lat_bin,
		lon_bin = excluded.lon_bin,
		satellite = excluded.satellite,
		municipality = excluded.municipality,
		region = excluded.region,
		days_without_rain = excluded.days_without_rain,
		fire_risk_level = excluded.fire_risk_level,
		biome = excluded.biome,
		frp = excluded.frp`

// Store persists fire focuses in a single SQLite database file.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	mu       sync.Mutex
	dayLocks map[int64]*sync.Mutex
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection serializes writers; SQLite allows one at a time anyway.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := New(db, logger)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("sqlite store opened", "path", path)
	return s, nil
}

// New wraps an existing handle. The schema is not applied.
func New(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger, dayLocks: make(map[int64]*sync.Mutex)}
}

// Migrate creates the table and indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return persistErr("migrate", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return persistErr("ping", err)
	}
	return nil
}

// Upsert inserts the record or replaces the stored record with the same id.
func (s *Store) Upsert(ctx context.Context, rec domain.PersistedFocus) error {
	if _, err := s.db.ExecContext(ctx, upsertSQL, recordArgs(rec)...); err != nil {
		return persistErr("upsert "+rec.ID, err)
	}
	return nil
}

// PersistDay inserts the records under the day's key, skipping ids the day
// already holds. Inserts are committed every batchSize rows and once more at
// the end. Writers of the same day are serialized.
func (s *Store) PersistDay(ctx context.Context, day time.Time, records []domain.FireFocus, batchSize int) (domain.PersistResult, error) {
	day = domain.UTC.StartOfDay(day)
	if batchSize <= 0 {
		batchSize = 500
	}

	unlock := s.lockDay(day.Unix())
	defer unlock()

	var res domain.PersistResult
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, persistErr("begin", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	existing, err := existingIDs(ctx, tx, day.Unix())
	if err != nil {
		return res, err
	}
	res.Existing = len(existing)

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return res, persistErr("prepare insert", err)
	}

	pending := 0
	for _, f := range records {
		res.Processed++
		if _, ok := existing[f.ID]; ok {
			res.Skipped++
			continue
		}
		result, err := stmt.ExecContext(ctx, recordArgs(domain.Persist(f, day))...)
		if err != nil {
			return res, persistErr("insert "+f.ID, err)
		}
		existing[f.ID] = struct{}{}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			// id already stored under another day
			res.Skipped++
			continue
		}
		res.Inserted++
		pending++

		if pending >= batchSize {
			if err := tx.Commit(); err != nil {
				tx = nil
				return res, persistErr("commit", err)
			}
			pending = 0
			if tx, err = s.db.BeginTx(ctx, nil); err != nil {
				tx = nil
				return res, persistErr("begin", err)
			}
			if stmt, err = tx.PrepareContext(ctx, insertSQL); err != nil {
				return res, persistErr("prepare insert", err)
			}
		}
	}

	err = tx.Commit()
	tx = nil
	if err != nil {
		return res, persistErr("commit", err)
	}
	return res, nil
}

func existingIDs(ctx context.Context, tx *sql.Tx, dayKey int64) (map[string]struct{}, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM fire_focuses WHERE day_key = ?`, dayKey)
	if err != nil {
		return nil, persistErr("select existing ids", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, persistErr("scan id", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("select existing ids", err)
	}
	return ids, nil
}

// QueryByDayKeys returns every record stored under the given days.
func (s *Store) QueryByDayKeys(ctx context.Context, keys []time.Time) ([]domain.PersistedFocus, error) {
	return s.Query(ctx, domain.Predicate{DayKeys: keys})
}

// Query returns the records matching the predicate ordered by day and
// insertion. An empty day-key set matches nothing.
func (s *Store) Query(ctx context.Context, p domain.Predicate) ([]domain.PersistedFocus, error) {
	if len(p.DayKeys) == 0 {
		return nil, nil
	}
	where, args := whereClause(p)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+columns+` FROM fire_focuses WHERE `+where+` ORDER BY day_key, rowid`, args...)
	if err != nil {
		return nil, persistErr("query", err)
	}
	defer rows.Close()

	var out []domain.PersistedFocus
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, persistErr("scan", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("query", err)
	}
	return out, nil
}

// GroupedCount counts matching records per (lat_bin, lon_bin).
func (s *Store) GroupedCount(ctx context.Context, p domain.Predicate) ([]domain.HeatCell, error) {
	if len(p.DayKeys) == 0 {
		return nil, nil
	}
	where, args := whereClause(p)
	rows, err := s.db.QueryContext(ctx,
		`SELECT lat_bin, lon_bin, COUNT(*) FROM fire_focuses WHERE `+where+
			` GROUP BY lat_bin, lon_bin ORDER BY lat_bin, lon_bin`, args...)
	if err != nil {
		return nil, persistErr("grouped count", err)
	}
	defer rows.Close()

	var out []domain.HeatCell
	for rows.Next() {
		var c domain.HeatCell
		if err := rows.Scan(&c.LatBin, &c.LonBin, &c.Count); err != nil {
			return nil, persistErr("scan cell", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("grouped count", err)
	}
	return out, nil
}

// DeleteByDayKeys removes every record of the given days in one transaction
// and returns the deleted ids.
func (s *Store) DeleteByDayKeys(ctx context.Context, keys []time.Time) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	in, args := inClause(keys)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, persistErr("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM fire_focuses WHERE day_key IN (`+in+`)`, args...)
	if err != nil {
		return nil, persistErr("select ids", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, persistErr("scan id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, persistErr("select ids", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM fire_focuses WHERE day_key IN (`+in+`)`, args...); err != nil {
		return nil, persistErr("delete", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, persistErr("commit", err)
	}
	return ids, nil
}

func (s *Store) lockDay(key int64) func() {
	s.mu.Lock()
	l, ok := s.dayLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.dayLocks[key] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func whereClause(p domain.Predicate) (string, []any) {
	in, args := inClause(p.DayKeys)
	clauses := []string{"day_key IN (" + in + ")"}
	if p.LatRange != nil {
		clauses = append(clauses, "lat_bin BETWEEN ? AND ?")
		args = append(args, p.LatRange.Min, p.LatRange.Max)
	}
	if p.LonRange != nil {
		clauses = append(clauses, "lon_bin BETWEEN ? AND ?")
		args = append(args, p.LonRange.Min, p.LonRange.Max)
	}
	return strings.Join(clauses, " AND "), args
}

func inClause(keys []time.Time) (string, []any) {
	placeholders := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		placeholders[i] = "?"
		args[i] = domain.UTC.StartOfDay(k).Unix()
	}
	return strings.Join(placeholders, ", "), args
}

func recordArgs(rec domain.PersistedFocus) []any {
	var date sql.NullInt64
	if !rec.Date.IsZero() {
		date = sql.NullInt64{Int64: rec.Date.Unix(), Valid: true}
	}
	var days sql.NullInt64
	if rec.DaysWithoutRain != nil {
		days = sql.NullInt64{Int64: int64(*rec.DaysWithoutRain), Valid: true}
	}
	var frp sql.NullFloat64
	if rec.FRP != nil {
		frp = sql.NullFloat64{Float64: *rec.FRP, Valid: true}
	}
	return []any{
		rec.ID, rec.DayKey.Unix(), date,
		rec.Coordinate.Lat, rec.Coordinate.Lon, rec.LatBin, rec.LonBin,
		rec.Satellite, rec.Municipality, rec.Region,
		days, rec.FireRiskLevel, rec.Biome, frp,
	}
}

func scanRecord(rows *sql.Rows) (domain.PersistedFocus, error) {
	var (
		rec    domain.PersistedFocus
		dayKey int64
		date   sql.NullInt64
		days   sql.NullInt64
		frp    sql.NullFloat64
	)
	err := rows.Scan(
		&rec.ID, &dayKey, &date,
		&rec.Coordinate.Lat, &rec.Coordinate.Lon, &rec.LatBin, &rec.LonBin,
		&rec.Satellite, &rec.Municipality, &rec.Region,
		&days, &rec.FireRiskLevel, &rec.Biome, &frp,
	)
	if err != nil {
		return rec, err
	}
	rec.DayKey = time.Unix(dayKey, 0).UTC()
	if date.Valid {
		rec.Date = time.Unix(date.Int64, 0).UTC()
	}
	if days.Valid {
		n := int(days.Int64)
		rec.DaysWithoutRain = &n
	}
	if frp.Valid {
		v := frp.Float64
		rec.FRP = &v
	}
	return rec, nil
}

func persistErr(op string, err error) error {
	if errors.Is(err, domain.ErrPersistence) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrPersistence, err)
}
