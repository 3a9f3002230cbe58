package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benjaminillouz/cemedis-website/internal/centers"
	"github.com/benjaminillouz/cemedis-website/internal/geomath"
)

type fakeT map[string]string

func (f fakeT) T(key string) string {
	if v, ok := f[key]; ok {
		return v
	}
	return key
}

func (f fakeT) Tf(key string, data map[string]any) string {
	s := f.T(key)
	for k, v := range data {
		s = strings.ReplaceAll(s, "{{."+k+"}}", v.(string))
	}
	return s
}

var tr = fakeT{
	"centers.defaultName":     "Centre CEMEDIS",
	"centers.book":            "Prendre RDV",
	"centers.call":            "Appeler",
	"centers.reviews":         "avis",
	"centers.distance":        "à {{.Km}} km",
	"centers.noResults.title": "Aucun centre trouvé",
	"centers.error.title":     "Erreur de chargement",
	"centers.error.retry":     "Réessayer",
	"map.error":               "La carte n'a pas pu être chargée.",
}

func count(kinds []string, kind string) int {
	n := 0
	for _, k := range kinds {
		if k == kind {
			n++
		}
	}
	return n
}

func TestStars(t *testing.T) {
	cases := []struct {
		rating            float64
		full, half, empty int
	}{
		{4.7, 4, 1, 0},
		{3.0, 3, 0, 2},
		{4.5, 4, 1, 0},
		{4.49, 4, 0, 1},
		{5, 5, 0, 0},
		{0.5, 0, 1, 4},
	}
	for _, tc := range cases {
		s := Stars(tc.rating)
		require.Len(t, s, 5)
		assert.Equal(t, tc.full, count(s, StarFull), "full for %v", tc.rating)
		assert.Equal(t, tc.half, count(s, StarHalf), "half for %v", tc.rating)
		assert.Equal(t, tc.empty, count(s, StarEmpty), "empty for %v", tc.rating)
	}
}

func TestFormatPhone(t *testing.T) {
	assert.Equal(t, "01 23 45 67 89", FormatPhone("0123456789"))
	assert.Equal(t, "01 23 45 67 89", FormatPhone("01.23.45.67.89"))
	assert.Equal(t, "+33 1 23 45 67 89", FormatPhone("+33 1 23 45 67 89"))
	assert.Equal(t, "123", FormatPhone("123"))
}

func TestTelHref(t *testing.T) {
	assert.Equal(t, "tel:0123456789", TelHref("01 23 45 67 89"))
	assert.Equal(t, "tel:+33123456789", TelHref("+33 1 23 45 67 89"))
}

func TestSafeURL(t *testing.T) {
	assert.Equal(t, "https://www.doctolib.fr/x", SafeURL("https://www.doctolib.fr/x"))
	assert.Equal(t, "http://a.example/b", SafeURL(" http://a.example/b "))
	assert.Empty(t, SafeURL("javascript:alert(1)"))
	assert.Empty(t, SafeURL("/relative"))
	assert.Empty(t, SafeURL(""))
}

func TestCardsFullRecord(t *testing.T) {
	c := centers.Center{
		Name:        "Cemedis Rivoli",
		Address:     "10 rue de Rivoli",
		Phone:       "0123456789",
		Position:    &geomath.Point{Lat: 48.85, Lon: 2.35},
		Rating:      4.7,
		ReviewCount: 120,
		BookingURL:  "https://www.doctolib.fr/rivoli",
	}
	out := string(Cards([]centers.Center{c}, tr))

	assert.Equal(t, 1, strings.Count(out, `class="center-card"`))
	assert.Contains(t, out, "Cemedis Rivoli")
	assert.Contains(t, out, "4.7 (120 avis)")
	assert.Equal(t, 4, strings.Count(out, "star-full"))
	assert.Equal(t, 1, strings.Count(out, "star-half"))
	assert.Equal(t, 0, strings.Count(out, "star-empty"))
	assert.Contains(t, out, "01 23 45 67 89")
	assert.Contains(t, out, `href="tel:0123456789"`)
	assert.Contains(t, out, `href="https://www.doctolib.fr/rivoli"`)
	assert.Contains(t, out, "Prendre RDV")
	assert.Contains(t, out, "Appeler")
}

func TestCardsOptionalBlocks(t *testing.T) {
	out := string(Cards([]centers.Center{{Address: "1 place Bellecour"}}, tr))
	assert.Contains(t, out, "Centre CEMEDIS")
	assert.NotContains(t, out, "center-rating")
	assert.NotContains(t, out, "Prendre RDV")
	assert.NotContains(t, out, "Appeler")
	assert.NotContains(t, out, "tel:")
}

func TestCardsEscapesFields(t *testing.T) {
	c := centers.Center{
		Name:       `<script>alert("x")</script>`,
		Address:    `5 "quai" & co`,
		BookingURL: "javascript:alert(1)",
	}
	out := string(Cards([]centers.Center{c}, tr))
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, "&amp; co")
	assert.NotContains(t, out, "javascript:")
	assert.NotContains(t, out, "Prendre RDV")
}

func TestCardsDistance(t *testing.T) {
	d := 3.24
	out := string(Card(centers.Center{Name: "A", DistanceKm: &d}, tr))
	assert.Contains(t, out, "à 3.2 km")
}

func TestCardsEmptyIsNoResults(t *testing.T) {
	out := string(Cards(nil, tr))
	assert.Contains(t, out, "no-results")
	assert.Contains(t, out, "Aucun centre trouvé")
	assert.NotContains(t, out, "center-card")
}

func TestSkeleton(t *testing.T) {
	out := string(Skeleton(6))
	assert.Equal(t, 6, strings.Count(out, "center-card-skeleton"))
	assert.Empty(t, strings.TrimSpace(string(Skeleton(0))))
}

func TestErrorPanel(t *testing.T) {
	out := string(ErrorPanel("Impossible de charger les centres.", "/api/retry", tr))
	assert.Contains(t, out, "Erreur de chargement")
	assert.Contains(t, out, "Impossible de charger les centres.")
	assert.Contains(t, out, `action="/api/retry"`)
	assert.Contains(t, out, `data-action="retry"`)
	assert.Contains(t, out, "Réessayer")
}

func TestPopup(t *testing.T) {
	out := string(Popup(centers.Center{Name: "Vieux-Port", Address: "Quai", Phone: "0491000000"}, tr))
	assert.Contains(t, out, "map-popup-title")
	assert.Contains(t, out, "Vieux-Port")
	assert.Contains(t, out, `href="tel:0491000000"`)
	assert.NotContains(t, out, "Prendre RDV")
}

func TestMapError(t *testing.T) {
	assert.Contains(t, string(MapError(tr)), "La carte n&#39;a pas pu être chargée.")
}
