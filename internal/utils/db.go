package utils

import (
	"database/sql"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	_ "github.com/lib/pq"
)

// Pool defaults; the load log writes one row per page load.
const (
	defaultMaxOpen = 20
	defaultMaxIdle = 10
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// OpenPostgres opens dsn with the default pool size. The connection is not
// checked; callers Ping.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(defaultMaxOpen)
	db.SetMaxIdleConns(defaultMaxIdle)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// BuildPostgresDSNFromEnv assembles a postgres:// URL from PG_HOST, PG_PORT,
// PG_USER, PG_PASSWORD, PG_DB and PG_SSLMODE. User and password are escaped.
func BuildPostgresDSNFromEnv() string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(envOr("PG_HOST", "localhost"), envOr("PG_PORT", "5432")),
		Path:     "/" + envOr("PG_DB", "cemedis"),
		RawQuery: url.Values{"sslmode": {envOr("PG_SSLMODE", "disable")}}.Encode(),
	}
	user := envOr("PG_USER", "postgres")
	if pass := os.Getenv("PG_PASSWORD"); pass != "" {
		u.User = url.UserPassword(user, pass)
	} else {
		u.User = url.User(user)
	}
	return u.String()
}

// OpenPostgresFromEnv also honors PG_MAX_OPEN_CONNS and PG_MAX_IDLE_CONNS.
func OpenPostgresFromEnv() (*sql.DB, error) {
	db, err := OpenPostgres(BuildPostgresDSNFromEnv())
	if err != nil {
		return nil, err
	}
	if n, err := strconv.Atoi(os.Getenv("PG_MAX_OPEN_CONNS")); err == nil && n > 0 {
		db.SetMaxOpenConns(n)
	}
	if n, err := strconv.Atoi(os.Getenv("PG_MAX_IDLE_CONNS")); err == nil && n >= 0 {
		db.SetMaxIdleConns(n)
	}
	return db, nil
}
