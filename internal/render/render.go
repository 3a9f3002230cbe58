// Package render projects center records to HTML fragments for the results
// grid and map popups. Every function is a pure function of its inputs.
//
// Constraint: all externally sourced strings go through html/template
// contextual escaping; URL fields are kept only when they are http(s).
package render

import (
	"bytes"
	"html/template"
	"math"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/benjaminillouz/cemedis-website/internal/centers"
)

// Translator resolves dotted translation keys; see i18n.Localizer.
type Translator interface {
	T(key string) string
	Tf(key string, data map[string]any) string
}

// Star kinds, in display order.
const (
	StarFull  = "full"
	StarHalf  = "half"
	StarEmpty = "empty"
)

// Stars returns exactly five kinds: floor(rating) full, one half when the
// fractional part is at least 0.5, the rest empty.
func Stars(rating float64) []string {
	if rating < 0 {
		rating = 0
	}
	if rating > 5 {
		rating = 5
	}
	full := int(rating)
	half := rating-float64(full) >= 0.5
	out := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		switch {
		case i < full:
			out = append(out, StarFull)
		case i == full && half:
			out = append(out, StarHalf)
		default:
			out = append(out, StarEmpty)
		}
	}
	return out
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatPhone groups a ten-digit number as "XX XX XX XX XX". Anything else
// is returned unchanged.
func FormatPhone(phone string) string {
	d := digits(phone)
	if len(d) != 10 {
		return phone
	}
	return d[0:2] + " " + d[2:4] + " " + d[4:6] + " " + d[6:8] + " " + d[8:10]
}

// TelHref builds the dial link: digits only, keeping a leading '+'.
func TelHref(phone string) string {
	p := strings.TrimLeftFunc(phone, unicode.IsSpace)
	prefix := ""
	if strings.HasPrefix(p, "+") {
		prefix = "+"
	}
	return "tel:" + prefix + digits(p)
}

// SafeURL returns raw when it parses as an absolute http or https URL,
// otherwise "".
func SafeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return raw
	}
	return ""
}

func displayName(c centers.Center, t Translator) string {
	if c.Name != "" {
		return c.Name
	}
	return t.T("centers.defaultName")
}

func formatKm(km float64) string {
	if km < 10 {
		return strconv.FormatFloat(km, 'f', 1, 64)
	}
	return strconv.FormatFloat(km, 'f', 0, 64)
}

type cardView struct {
	Name         string
	Address      string
	HasRating    bool
	Rating       string
	ReviewCount  int
	Stars        []string
	Phone        string
	PhoneDisplay string
	Tel          template.URL
	BookingURL   string
	ReviewURL    string
	LogoURL      string
	Distance     string
}

type labels struct {
	Book, Call, Reviews, SeeReviews string
}

func labelsFor(t Translator) labels {
	return labels{
		Book:       t.T("centers.book"),
		Call:       t.T("centers.call"),
		Reviews:    t.T("centers.reviews"),
		SeeReviews: t.T("centers.seeReviews"),
	}
}

func viewOf(c centers.Center, t Translator) cardView {
	v := cardView{
		Name:       displayName(c, t),
		Address:    c.Address,
		BookingURL: SafeURL(c.BookingURL),
		ReviewURL:  SafeURL(c.ReviewURL),
		LogoURL:    SafeURL(c.LogoURL),
	}
	if c.Rating > 0 {
		v.HasRating = true
		v.Rating = strconv.FormatFloat(c.Rating, 'f', 1, 64)
		v.ReviewCount = c.ReviewCount
		v.Stars = Stars(c.Rating)
	}
	if c.Phone != "" {
		v.Phone = c.Phone
		v.PhoneDisplay = FormatPhone(c.Phone)
		v.Tel = template.URL(TelHref(c.Phone))
	}
	if c.DistanceKm != nil && !math.IsInf(*c.DistanceKm, 0) {
		v.Distance = t.Tf("centers.distance", map[string]any{"Km": formatKm(*c.DistanceKm)})
	}
	return v
}

func execute(name string, data any) template.HTML {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return template.HTML("<!-- render error -->")
	}
	return template.HTML(buf.String())
}

// Cards renders the results grid content. An empty slice renders the
// no-results block instead of an empty grid.
func Cards(records []centers.Center, t Translator) template.HTML {
	if len(records) == 0 {
		return execute("no-results", map[string]string{
			"Title": t.T("centers.noResults.title"),
			"Text":  t.T("centers.noResults.text"),
		})
	}
	l := labelsFor(t)
	views := make([]map[string]any, len(records))
	for i, c := range records {
		views[i] = map[string]any{"C": viewOf(c, t), "L": l}
	}
	return execute("cards", views)
}

// Card renders one center card.
func Card(c centers.Center, t Translator) template.HTML {
	return execute("card", map[string]any{"C": viewOf(c, t), "L": labelsFor(t)})
}

// Skeleton renders n placeholder cards shown while a load is in flight.
func Skeleton(n int) template.HTML {
	if n < 0 {
		n = 0
	}
	return execute("skeleton", make([]struct{}, n))
}

// ErrorPanel renders the load failure block. The retry control posts to
// retryAction.
func ErrorPanel(message, retryAction string, t Translator) template.HTML {
	return execute("error", map[string]string{
		"Title":   t.T("centers.error.title"),
		"Message": message,
		"Retry":   t.T("centers.error.retry"),
		"Action":  retryAction,
	})
}

// Popup renders the map marker popup: name, address, and the booking and
// call links when available.
func Popup(c centers.Center, t Translator) template.HTML {
	return execute("popup", map[string]any{"C": viewOf(c, t), "L": labelsFor(t)})
}

// MapError is the static block that replaces the map container after a
// terminal engine failure.
func MapError(t Translator) template.HTML {
	return execute("map-error", t.T("map.error"))
}
