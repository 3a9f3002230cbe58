// Package config gathers the service settings from the environment. Values
// may come from .env files loaded by the entry point with godotenv.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/benjaminillouz/cemedis-website/internal/mapview"
	"github.com/benjaminillouz/cemedis-website/internal/source"
)

// Config is the full service configuration.
type Config struct {
	Addr    string
	APIBase string
	Source  source.Config
	// CacheTTL enables the redis payload cache when positive.
	CacheTTL time.Duration
	// Refresh re-fetches the payload into the cache periodically when positive.
	Refresh  time.Duration
	Map      MapConfig
	GeoIP    string
	Sessions SessionConfig
	I18nDir  string
	PG       bool
	TLS      TLSConfig
}

type MapConfig struct {
	Engine   string
	TileURL  string
	SDKURL   string
	SDKKey   string
	Attempts int
	Interval time.Duration
}

type SessionConfig struct {
	Max int
	TTL time.Duration
}

type TLSConfig struct {
	Enabled  bool
	CertPath string
	KeyPath  string
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, e := strconv.Atoi(s); e == nil && n >= 0 {
			return n
		}
	}
	return def
}

// FromEnv reads every setting. Unparseable numbers fall back to defaults.
func FromEnv() Config {
	return Config{
		Addr:    env("ADDR", ":8080"),
		APIBase: env("API_BASE", "/api"),
		Source: source.Config{
			Kind: env("SOURCE_KIND", source.KindHTTP),
			URL:  env("CENTERS_URL", source.DefaultURL),
			File: os.Getenv("CENTERS_FILE"),
			S3: source.S3Config{
				Endpoint:  os.Getenv("S3_ENDPOINT"),
				AccessKey: os.Getenv("S3_ACCESS_KEY"),
				SecretKey: os.Getenv("S3_SECRET_KEY"),
				UseSSL:    os.Getenv("S3_USE_SSL") == "true",
				Region:    os.Getenv("S3_REGION"),
				Bucket:    os.Getenv("S3_BUCKET"),
				Key:       env("S3_KEY", "centers.json"),
			},
		},
		CacheTTL: time.Duration(envInt("CENTERS_CACHE_TTL_S", 300)) * time.Second,
		Refresh:  time.Duration(envInt("CENTERS_REFRESH_S", 0)) * time.Second,
		Map: MapConfig{
			Engine:   env("MAP_ENGINE", mapview.KindTile),
			TileURL:  os.Getenv("MAP_TILE_URL"),
			SDKURL:   os.Getenv("MAP_SDK_URL"),
			SDKKey:   os.Getenv("MAP_SDK_KEY"),
			Attempts: envInt("MAP_READY_ATTEMPTS", mapview.DefaultReadyAttempts),
			Interval: time.Duration(envInt("MAP_READY_INTERVAL_MS", int(mapview.DefaultReadyInterval/time.Millisecond))) * time.Millisecond,
		},
		GeoIP: os.Getenv("GEOIP_PATH"),
		Sessions: SessionConfig{
			Max: envInt("SESSION_MAX", 10000),
			TTL: time.Duration(envInt("SESSION_TTL_S", 1800)) * time.Second,
		},
		I18nDir: os.Getenv("I18N_DIR"),
		PG:      os.Getenv("PG_ENABLED") == "true" || (os.Getenv("PG_ENABLED") == "" && os.Getenv("PG_HOST") != ""),
		TLS: TLSConfig{
			Enabled:  os.Getenv("TLS_ENABLE") == "true",
			CertPath: env("TLS_CERT_PATH", filepath.Join("data", "certs", "server.crt")),
			KeyPath:  env("TLS_KEY_PATH", filepath.Join("data", "certs", "server.key")),
		},
	}
}
