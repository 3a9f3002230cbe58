package centers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRaw(t *testing.T) {
	c := FromRaw(map[string]any{
		"Nom":                  "  Centre A ",
		"Adresse":              "1 rue de Rivoli",
		"Ville":                "Paris",
		"Tel_app":              "01 23 45 67 89",
		"LAT":                  "48.85",
		"LONG":                 "2.35",
		"Note Google":          "4.5",
		"Nombre d'avis Google": 120.0,
		"Module RDV Doctolib":  "https://www.doctolib.fr/centre-a",
	})
	assert.Equal(t, "Centre A", c.Name)
	assert.Equal(t, "Paris", c.City)
	require.True(t, c.HasPosition())
	assert.Equal(t, 48.85, c.Position.Lat)
	assert.Equal(t, 2.35, c.Position.Lon)
	assert.Equal(t, 4.5, c.Rating)
	assert.Equal(t, 120, c.ReviewCount)
	assert.Equal(t, "https://www.doctolib.fr/centre-a", c.BookingURL)
	assert.Nil(t, c.DistanceKm)
}

func TestFromRawDowngradesBadFields(t *testing.T) {
	cases := []struct {
		name string
		raw  map[string]any
	}{
		{"garbage strings", map[string]any{"LAT": "bad", "LONG": "bad", "Note Google": "n/a"}},
		{"missing lon", map[string]any{"LAT": "48.85"}},
		{"out of range", map[string]any{"LAT": "148.85", "LONG": "2.35"}},
		{"empty strings", map[string]any{"LAT": "", "LONG": " "}},
		{"wrong types", map[string]any{"LAT": true, "LONG": []any{1.0}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := FromRaw(tc.raw)
			assert.False(t, c.HasPosition())
			assert.Equal(t, 0.0, c.Rating)
			assert.Equal(t, 0, c.ReviewCount)
		})
	}
}

func TestFromRawDecimalComma(t *testing.T) {
	c := FromRaw(map[string]any{"LAT": "48,8566", "LONG": 2.3522})
	require.True(t, c.HasPosition())
	assert.InDelta(t, 48.8566, c.Position.Lat, 1e-9)
}

func TestBookingFallsBackToModule(t *testing.T) {
	c := FromRaw(map[string]any{"Page Doctolib": "https://a", "Module RDV Doctolib": "https://b"})
	assert.Equal(t, "https://a", c.BookingURL)
}

func TestDecodeRaw(t *testing.T) {
	_, err := DecodeRaw([]byte(`{"Nom":"not an array"}`))
	assert.ErrorIs(t, err, ErrDecode)

	raw, err := DecodeRaw([]byte(`[{"Nom":"A"},{"Nom":"B"}]`))
	require.NoError(t, err)
	assert.Len(t, raw, 2)
}
