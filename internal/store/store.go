// Package store is the PostgreSQL layer: load history, the last good center
// snapshot and counters shown on the stats endpoint.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/benjaminillouz/cemedis-website/internal/app"
	"github.com/benjaminillouz/cemedis-website/internal/centers"
	"github.com/benjaminillouz/cemedis-website/internal/logger"
)

// Store holds the connection pool.
type Store struct {
	db *sql.DB

	mu    sync.Mutex
	saved string // fingerprint of the last snapshot written
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

// Open uses the DSN with the default pool size.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// LoadRecord is one row of _centers_loads.
type LoadRecord struct {
	Generation int64
	Source     string
	OK         bool
	Reason     string
	Count      int
	DurationMs int64
}

// RecordOf converts a committed load.
func RecordOf(ev app.LoadEvent) LoadRecord {
	return LoadRecord{
		Generation: int64(ev.Generation),
		Source:     ev.Source,
		OK:         ev.OK,
		Reason:     ev.Reason,
		Count:      ev.Count,
		DurationMs: ev.Duration.Milliseconds(),
	}
}

// RecordLoad appends to the load history and bumps the counters.
func (s *Store) RecordLoad(ctx context.Context, r LoadRecord) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO _centers_loads(generation, source, ok, reason, count, duration_ms)
        VALUES($1,$2,$3,$4,$5,$6)`, r.Generation, r.Source, r.OK, r.Reason, r.Count, r.DurationMs)
	if err != nil {
		return err
	}
	col := "loads"
	if !r.OK {
		col = "failures"
	}
	_, _ = s.db.ExecContext(ctx, "UPDATE _centers_stats_total SET "+col+"="+col+"+1 WHERE id=1")
	_, _ = s.db.ExecContext(ctx, "INSERT INTO _centers_stats_daily(day, "+col+") VALUES(current_date, 1) ON CONFLICT (day) DO UPDATE SET "+col+"=_centers_stats_daily."+col+"+1")
	logger.L().Debug("db_load_recorded", "ok", r.OK, "count", r.Count, "reason", r.Reason)
	return nil
}

// SnapshotRow is the stored form of a center.
type SnapshotRow struct {
	Name        string
	Address     string
	City        string
	Phone       string
	Lat         sql.NullFloat64
	Lon         sql.NullFloat64
	Rating      float64
	ReviewCount int
	BookingURL  string
	LogoURL     string
	ReviewURL   string
}

// RowOf converts a center; an absent position becomes NULL.
func RowOf(c centers.Center) SnapshotRow {
	r := SnapshotRow{
		Name:        c.Name,
		Address:     c.Address,
		City:        c.City,
		Phone:       c.Phone,
		Rating:      c.Rating,
		ReviewCount: c.ReviewCount,
		BookingURL:  c.BookingURL,
		LogoURL:     c.LogoURL,
		ReviewURL:   c.ReviewURL,
	}
	if c.HasPosition() {
		r.Lat = sql.NullFloat64{Float64: c.Position.Lat, Valid: true}
		r.Lon = sql.NullFloat64{Float64: c.Position.Lon, Valid: true}
	}
	return r
}

// Fingerprint identifies a snapshot by its rows.
func Fingerprint(all []centers.Center) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, c := range all {
		_ = enc.Encode(RowOf(c))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// claim marks fp as the snapshot being written. It returns false when that
// snapshot is already stored or in flight.
func (s *Store) claim(fp string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == fp {
		return false
	}
	s.saved = fp
	return true
}

func (s *Store) release(fp string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == fp {
		s.saved = ""
	}
}

// SaveCenters upserts all by position and trims rows past its end, in one
// transaction. Concurrent writers lock rows in ord order, so they serialize
// instead of colliding on the key. An unchanged snapshot is not rewritten.
func (s *Store) SaveCenters(ctx context.Context, all []centers.Center) error {
	fp := Fingerprint(all)
	if !s.claim(fp) {
		logger.L().Debug("db_snapshot_unchanged", "count", len(all))
		return nil
	}
	if err := s.writeSnapshot(ctx, all); err != nil {
		s.release(fp)
		return err
	}
	logger.L().Debug("db_snapshot_saved", "count", len(all))
	return nil
}

func (s *Store) writeSnapshot(ctx context.Context, all []centers.Center) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO _centers_snapshot(ord, name, address, city, phone, lat, lon, rating, review_count, booking_url, logo_url, review_url)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        ON CONFLICT (ord) DO UPDATE SET name=EXCLUDED.name, address=EXCLUDED.address, city=EXCLUDED.city,
            phone=EXCLUDED.phone, lat=EXCLUDED.lat, lon=EXCLUDED.lon, rating=EXCLUDED.rating,
            review_count=EXCLUDED.review_count, booking_url=EXCLUDED.booking_url,
            logo_url=EXCLUDED.logo_url, review_url=EXCLUDED.review_url`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, c := range all {
		r := RowOf(c)
		if _, err := stmt.ExecContext(ctx, i, r.Name, r.Address, r.City, r.Phone, r.Lat, r.Lon, r.Rating, r.ReviewCount, r.BookingURL, r.LogoURL, r.ReviewURL); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM _centers_snapshot WHERE ord >= $1", len(all)); err != nil {
		return err
	}
	return tx.Commit()
}

// Totals is returned by the stats endpoint.
type Totals struct {
	Loads      int64 `json:"loads"`
	Failures   int64 `json:"failures"`
	LoadsToday int64 `json:"loads_today"`
	Centers    int64 `json:"centers"`
	WithCoords int64 `json:"with_coords"`
}

// GetTotals reads the counters and snapshot size. Missing rows read as 0.
func (s *Store) GetTotals(ctx context.Context) (*Totals, error) {
	var t Totals
	row := s.db.QueryRowContext(ctx, "SELECT loads, failures FROM _centers_stats_total WHERE id=1")
	_ = row.Scan(&t.Loads, &t.Failures)
	row2 := s.db.QueryRowContext(ctx, "SELECT loads FROM _centers_stats_daily WHERE day=current_date")
	_ = row2.Scan(&t.LoadsToday)
	row3 := s.db.QueryRowContext(ctx, "SELECT count(*), count(lat) FROM _centers_snapshot")
	if err := row3.Scan(&t.Centers, &t.WithCoords); err != nil {
		return nil, err
	}
	logger.L().Debug("stats_totals", "loads", t.Loads, "centers", t.Centers)
	return &t, nil
}

// LoadFinished records the load and, on success, the snapshot. It runs on
// its own deadline so a closing page does not abort the write.
func (s *Store) LoadFinished(_ context.Context, ev app.LoadEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.RecordLoad(ctx, RecordOf(ev)); err != nil {
		logger.L().Warn("db_load_record_error", "err", err)
		return
	}
	if ev.OK {
		if err := s.SaveCenters(ctx, ev.Centers); err != nil {
			logger.L().Warn("db_snapshot_error", "err", err)
		}
	}
}
