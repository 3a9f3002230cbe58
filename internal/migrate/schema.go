package migrate

import (
	"database/sql"

	"github.com/benjaminillouz/cemedis-website/internal/logger"
)

// EnsureSchema creates the tables on first run.
// Constraint: IF NOT EXISTS everywhere; existing structures are left alone.
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS _centers_loads (
            id BIGSERIAL PRIMARY KEY,
            generation BIGINT NOT NULL,
            source TEXT NOT NULL,
            ok BOOLEAN NOT NULL,
            reason TEXT NOT NULL DEFAULT '',
            count INT NOT NULL DEFAULT 0,
            duration_ms BIGINT NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_centers_loads_created ON _centers_loads(created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS _centers_snapshot (
            ord INT PRIMARY KEY,
            name TEXT NOT NULL,
            address TEXT NOT NULL,
            city TEXT NOT NULL,
            phone TEXT NOT NULL,
            lat DOUBLE PRECISION,
            lon DOUBLE PRECISION,
            rating DOUBLE PRECISION NOT NULL DEFAULT 0,
            review_count INT NOT NULL DEFAULT 0,
            booking_url TEXT NOT NULL DEFAULT '',
            logo_url TEXT NOT NULL DEFAULT '',
            review_url TEXT NOT NULL DEFAULT '',
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE TABLE IF NOT EXISTS _centers_stats_total (
            id INT PRIMARY KEY,
            loads BIGINT NOT NULL DEFAULT 0,
            failures BIGINT NOT NULL DEFAULT 0
        )`,
		`CREATE TABLE IF NOT EXISTS _centers_stats_daily (
            day DATE PRIMARY KEY,
            loads BIGINT NOT NULL DEFAULT 0,
            failures BIGINT NOT NULL DEFAULT 0
        )`,
		`INSERT INTO _centers_stats_total(id, loads, failures)
         VALUES(1, 0, 0)
         ON CONFLICT (id) DO NOTHING`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
