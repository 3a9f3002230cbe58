package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketRefillsEachSecond(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tb := NewTokenBucket(2)
	tb.now = func() time.Time { return now }
	tb.lastSec = now.Unix()

	assert.True(t, tb.allow())
	assert.True(t, tb.allow())
	assert.False(t, tb.allow())

	now = now.Add(time.Second)
	assert.True(t, tb.allow())
}

func TestLimitReturns429(t *testing.T) {
	tb := NewTokenBucket(1)
	fixed := time.Unix(1_700_000_000, 0)
	tb.now = func() time.Time { return fixed }
	tb.lastSec = fixed.Unix()
	h := tb.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestEdgeGeoInjectsContext(t *testing.T) {
	var got EdgeGeoInfo
	var ok bool
	h := EdgeGeo(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = EdgeGeoFrom(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/locate", nil)
	req.Header.Set("CF-IPCountry", "FR")
	req.Header.Set("CF-IPCity", "Lyon")
	req.Header.Set("CF-IPLatitude", "45.7640")
	req.Header.Set("CF-IPLongitude", "4.8357")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, ok)
	assert.True(t, got.HasCoords)
	assert.Equal(t, "Lyon", got.City)
	assert.InDelta(t, 45.764, got.Latitude, 1e-9)
}

func TestParseEdgeGeoRejectsBadCoords(t *testing.T) {
	h := http.Header{}
	h.Set("CF-IPLatitude", "91")
	h.Set("CF-IPLongitude", "2")
	assert.False(t, ParseEdgeGeo(h).HasCoords)

	h.Set("CF-IPLatitude", "abc")
	assert.False(t, ParseEdgeGeo(h).HasCoords)
}
