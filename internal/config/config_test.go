package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/benjaminillouz/cemedis-website/internal/mapview"
	"github.com/benjaminillouz/cemedis-website/internal/source"
)

var keys = []string{
	"ADDR", "API_BASE", "SOURCE_KIND", "CENTERS_URL", "CENTERS_FILE", "S3_KEY",
	"CENTERS_CACHE_TTL_S", "MAP_ENGINE", "MAP_READY_ATTEMPTS", "MAP_READY_INTERVAL_MS",
	"SESSION_MAX", "SESSION_TTL_S", "PG_ENABLED", "PG_HOST", "TLS_ENABLE",
	"CENTERS_REFRESH_S",
}

func unsetAll(t *testing.T) {
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	unsetAll(t)
	c := FromEnv()
	assert.Equal(t, ":8080", c.Addr)
	assert.Equal(t, "/api", c.APIBase)
	assert.Equal(t, source.KindHTTP, c.Source.Kind)
	assert.Equal(t, source.DefaultURL, c.Source.URL)
	assert.Equal(t, "centers.json", c.Source.S3.Key)
	assert.Equal(t, 5*time.Minute, c.CacheTTL)
	assert.Zero(t, c.Refresh)
	assert.Equal(t, mapview.KindTile, c.Map.Engine)
	assert.Equal(t, 50, c.Map.Attempts)
	assert.Equal(t, 100*time.Millisecond, c.Map.Interval)
	assert.Equal(t, 30*time.Minute, c.Sessions.TTL)
	assert.False(t, c.PG)
	assert.False(t, c.TLS.Enabled)
}

func TestOverrides(t *testing.T) {
	unsetAll(t)
	t.Setenv("MAP_ENGINE", "commercial")
	t.Setenv("SESSION_MAX", "12")
	t.Setenv("CENTERS_CACHE_TTL_S", "0")
	t.Setenv("MAP_READY_ATTEMPTS", "oops")
	t.Setenv("PG_HOST", "db")
	t.Setenv("CENTERS_REFRESH_S", "60")
	c := FromEnv()
	assert.Equal(t, time.Minute, c.Refresh)
	assert.Equal(t, mapview.KindCommercial, c.Map.Engine)
	assert.Equal(t, 12, c.Sessions.Max)
	assert.Zero(t, c.CacheTTL)
	assert.Equal(t, 50, c.Map.Attempts)
	assert.True(t, c.PG)

	t.Setenv("PG_ENABLED", "false")
	assert.False(t, FromEnv().PG)
}
