// Package centers models the medical center directory: record parsing from
// the upstream webhook payload and the Store holding the full and filtered
// views.
package centers

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/benjaminillouz/cemedis-website/internal/geomath"
)

// Upstream field names. The webhook keys records by their French display labels.
const (
	KeyName        = "Nom"
	KeyAddress     = "Adresse"
	KeyCity        = "Ville"
	KeyPhone       = "Tel_app"
	KeyLat         = "LAT"
	KeyLon         = "LONG"
	KeyRating      = "Note Google"
	KeyReviewCount = "Nombre d'avis Google"
	KeyBookingPage = "Page Doctolib"
	KeyBookingRDV  = "Module RDV Doctolib"
	KeyLogo        = "Logo"
	KeyReviewURL   = "Lien avis Google"
)

// ErrDecode is returned when a payload is not a JSON array of objects.
var ErrDecode = errors.New("centers: payload is not a json array of objects")

// Center is one directory entry.
// Position is nil when the source coordinates could not be parsed; such a
// center is listed but never plotted. DistanceKm is only set by a proximity
// sort and is +Inf for centers without a position.
type Center struct {
	Name        string         `json:"name"`
	Address     string         `json:"address"`
	City        string         `json:"city"`
	Phone       string         `json:"phone"`
	Position    *geomath.Point `json:"position,omitempty"`
	Rating      float64        `json:"rating"`
	ReviewCount int            `json:"reviewCount"`
	BookingURL  string         `json:"bookingUrl,omitempty"`
	LogoURL     string         `json:"logoUrl,omitempty"`
	ReviewURL   string         `json:"reviewUrl,omitempty"`
	DistanceKm  *float64       `json:"distanceKm,omitempty"`
}

// HasPosition reports whether the center can produce a map marker.
func (c Center) HasPosition() bool { return c.Position != nil }

// FromRaw builds a Center from one upstream object. Unparseable numeric
// fields are downgraded to their zero value, never reported as errors.
func FromRaw(raw map[string]any) Center {
	c := Center{
		Name:        str(raw[KeyName]),
		Address:     str(raw[KeyAddress]),
		City:        str(raw[KeyCity]),
		Phone:       str(raw[KeyPhone]),
		Rating:      number(raw[KeyRating]),
		ReviewCount: integer(raw[KeyReviewCount]),
		BookingURL:  firstNonEmpty(str(raw[KeyBookingPage]), str(raw[KeyBookingRDV])),
		LogoURL:     str(raw[KeyLogo]),
		ReviewURL:   str(raw[KeyReviewURL]),
	}
	lat, okLat := parseCoord(raw[KeyLat])
	lon, okLon := parseCoord(raw[KeyLon])
	if okLat && okLon && geomath.ValidLatLon(lat, lon) {
		c.Position = &geomath.Point{Lat: lat, Lon: lon}
	}
	return c
}

// DecodeRaw parses a webhook payload into raw objects.
func DecodeRaw(b []byte) ([]map[string]any, error) {
	var raw []map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return raw, nil
}

func str(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseFloat accepts JSON numbers and numeric strings; a decimal comma is
// read as a decimal point.
func parseFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case json.Number:
		g, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = g
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(x), ",", ".")
		if s == "" {
			return 0, false
		}
		g, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = g
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseCoord(v any) (float64, bool) { return parseFloat(v) }

func number(v any) float64 {
	f, ok := parseFloat(v)
	if !ok || f < 0 {
		return 0
	}
	return f
}

func integer(v any) int {
	f, ok := parseFloat(v)
	if !ok || f < 0 {
		return 0
	}
	return int(f)
}
