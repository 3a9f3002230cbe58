// Package geoloc resolves the visitor position for the "nearest center"
// action. The browser position comes first; edge headers and a GeoIP2
// database can stand in only when the browser has no geolocation support.
// A failure the browser reported (denied, timeout, unavailable) is final.
package geoloc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/benjaminillouz/cemedis-website/internal/geomath"
	"github.com/benjaminillouz/cemedis-website/internal/middleware"
)

var (
	ErrDenied      = errors.New("geoloc: permission denied")
	ErrUnavailable = errors.New("geoloc: position unavailable")
	ErrUnsupported = errors.New("geoloc: geolocation unsupported")
)

// Browser error codes reported by the page, mirroring the Geolocation API.
const (
	CodeDenied      = "denied"
	CodeUnavailable = "unavailable"
	CodeTimeout     = "timeout"
	CodeUnsupported = "unsupported"
)

// Request carries everything known about the visitor position.
type Request struct {
	Lat, Lon string
	Error    string
	IP       net.IP
	Edge     middleware.EdgeGeoInfo
}

// Locator returns the visitor position.
type Locator interface {
	Name() string
	Locate(ctx context.Context, req Request) (geomath.Point, error)
}

// ParseCoord accepts a decimal with '.' or ','.
func ParseCoord(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Browser uses the coordinates posted by the page.
type Browser struct{}

func (Browser) Name() string { return "browser" }

func (Browser) Locate(ctx context.Context, req Request) (geomath.Point, error) {
	switch strings.ToLower(strings.TrimSpace(req.Error)) {
	case "":
	case CodeDenied:
		return geomath.Point{}, reportedError{ErrDenied}
	case CodeUnsupported:
		return geomath.Point{}, ErrUnsupported
	default:
		return geomath.Point{}, reportedError{fmt.Errorf("%w: %s", ErrUnavailable, req.Error)}
	}
	if req.Lat == "" && req.Lon == "" {
		return geomath.Point{}, ErrUnsupported
	}
	lat, okLat := ParseCoord(req.Lat)
	lon, okLon := ParseCoord(req.Lon)
	if !okLat || !okLon || !geomath.ValidLatLon(lat, lon) {
		return geomath.Point{}, reportedError{fmt.Errorf("%w: bad coordinates", ErrUnavailable)}
	}
	return geomath.Point{Lat: lat, Lon: lon}, nil
}

// reportedError is a failure the browser itself reported. It ends a Chain.
type reportedError struct{ err error }

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

// Final reports whether err must not be replaced by another locator's guess.
func Final(err error) bool {
	var r reportedError
	return errors.As(err, &r) || errors.Is(err, ErrDenied)
}

// Edge uses the position injected by middleware.EdgeGeo. The headers come
// from the client, so Edge belongs in a chain only when the origin is
// reachable through the CDN alone (see pkg/origindefense).
type Edge struct{}

func (Edge) Name() string { return "edge" }

func (Edge) Locate(ctx context.Context, req Request) (geomath.Point, error) {
	if !req.Edge.HasCoords {
		return geomath.Point{}, ErrUnavailable
	}
	return geomath.Point{Lat: req.Edge.Latitude, Lon: req.Edge.Longitude}, nil
}

// Chain tries locators in order. A Final error stops it: the state stays as
// it was and the visitor gets the browser's failure, not an IP estimate.
type Chain []Locator

// NewChain is the production order: browser, edge headers when trustEdge,
// then fallbacks such as GeoIP.
func NewChain(trustEdge bool, fallbacks ...Locator) Chain {
	c := Chain{Browser{}}
	if trustEdge {
		c = append(c, Edge{})
	}
	return append(c, fallbacks...)
}

func (c Chain) Name() string { return "chain" }

func (c Chain) Locate(ctx context.Context, req Request) (geomath.Point, error) {
	var first error
	for _, l := range c {
		p, err := l.Locate(ctx, req)
		if err == nil {
			return p, nil
		}
		if Final(err) {
			return geomath.Point{}, err
		}
		if first == nil {
			first = err
		}
	}
	if first == nil {
		first = ErrUnsupported
	}
	return geomath.Point{}, first
}

// Outcome is the metrics label for a locate result.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDenied):
		return "denied"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	}
	return "unavailable"
}
