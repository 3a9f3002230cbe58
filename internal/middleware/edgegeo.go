package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/benjaminillouz/cemedis-website/internal/logger"
)

// EdgeGeoInfo is the visitor location a CDN in front of the service may
// attach to the request (Cloudflare visitor location headers).
type EdgeGeoInfo struct {
	Country   string
	City      string
	Latitude  float64
	Longitude float64
	HasCoords bool
}

type edgeGeoKey struct{}

// EdgeGeo parses the edge headers into the request context. Missing or
// malformed values are ignored.
func EdgeGeo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g := ParseEdgeGeo(r.Header)
		if g.HasCoords {
			logger.L().Debug("edge_geo_inject", "country", g.Country, "city", g.City, "lat", g.Latitude, "lon", g.Longitude)
		}
		ctx := context.WithValue(r.Context(), edgeGeoKey{}, g)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ParseEdgeGeo reads CF-IPCountry, CF-IPCity, CF-IPLatitude and CF-IPLongitude.
func ParseEdgeGeo(h http.Header) EdgeGeoInfo {
	g := EdgeGeoInfo{
		Country: strings.TrimSpace(h.Get("CF-IPCountry")),
		City:    strings.TrimSpace(h.Get("CF-IPCity")),
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(h.Get("CF-IPLatitude")), 64)
	lon, errLon := strconv.ParseFloat(strings.TrimSpace(h.Get("CF-IPLongitude")), 64)
	if errLat == nil && errLon == nil && lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180 {
		g.Latitude, g.Longitude, g.HasCoords = lat, lon, true
	}
	return g
}

// EdgeGeoFrom returns the info injected by EdgeGeo, if any.
func EdgeGeoFrom(ctx context.Context) (EdgeGeoInfo, bool) {
	g, ok := ctx.Value(edgeGeoKey{}).(EdgeGeoInfo)
	return g, ok
}
