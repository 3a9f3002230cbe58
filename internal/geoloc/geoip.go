package geoloc

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/oschwald/geoip2-golang"

	"github.com/benjaminillouz/cemedis-website/internal/geomath"
	"github.com/benjaminillouz/cemedis-website/internal/logger"
)

type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
}

type cached struct {
	p  geomath.Point
	ok bool
}

// GeoIP resolves a client IP with a MaxMind City database.
type GeoIP struct {
	db    cityReader
	close func() error
	cache *expirable.LRU[string, cached]
}

// OpenGeoIP opens the mmdb at path with an LRU of cacheSize entries.
func OpenGeoIP(path string, cacheSize int, ttl time.Duration) (*GeoIP, error) {
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoloc: open %s: %w", path, err)
	}
	g := newGeoIP(r, cacheSize, ttl)
	g.close = r.Close
	logger.L().Info("geoip_opened", "path", path)
	return g, nil
}

func newGeoIP(db cityReader, cacheSize int, ttl time.Duration) *GeoIP {
	if cacheSize <= 0 {
		cacheSize = 4096
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &GeoIP{db: db, cache: expirable.NewLRU[string, cached](cacheSize, nil, ttl)}
}

func (g *GeoIP) Name() string { return "geoip" }

func (g *GeoIP) Locate(ctx context.Context, req Request) (geomath.Point, error) {
	if req.IP == nil || req.IP.IsLoopback() || req.IP.IsPrivate() {
		return geomath.Point{}, ErrUnavailable
	}
	key := req.IP.String()
	if c, ok := g.cache.Get(key); ok {
		if !c.ok {
			return geomath.Point{}, ErrUnavailable
		}
		return c.p, nil
	}
	rec, err := g.db.City(req.IP)
	if err != nil {
		logger.L().Warn("geoip_lookup_error", "ip", key, "err", err)
		return geomath.Point{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	p := geomath.Point{Lat: rec.Location.Latitude, Lon: rec.Location.Longitude}
	ok := (p.Lat != 0 || p.Lon != 0) && geomath.ValidLatLon(p.Lat, p.Lon)
	g.cache.Add(key, cached{p: p, ok: ok})
	if !ok {
		return geomath.Point{}, ErrUnavailable
	}
	return p, nil
}

// Close releases the database.
func (g *GeoIP) Close() error {
	if g.close == nil {
		return nil
	}
	return g.close()
}
