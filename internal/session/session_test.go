package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benjaminillouz/cemedis-website/internal/app"
	"github.com/benjaminillouz/cemedis-website/internal/i18n"
)

type staticFetcher string

func (s staticFetcher) Name() string { return "static" }

func (s staticFetcher) Fetch(ctx context.Context) ([]byte, error) { return []byte(s), nil }

var catalog = i18n.NewCatalog(i18n.Embedded())

func factory(opts Options) *app.App {
	return app.New(app.Deps{
		Fetcher:   staticFetcher(`[{"Nom":"Cemedis Rivoli","LAT":"48.86","LONG":"2.33"}]`),
		Localizer: catalog.Localizer(opts.Lang),
		HasGrid:   opts.HasGrid,
	})
}

func TestOpenStartsApp(t *testing.T) {
	m := NewManager(8, time.Minute, factory)
	defer m.Close()
	s := m.Open(Options{Lang: "en", HasGrid: true})
	require.NotEmpty(t, s.ID)
	require.Eventually(t, func() bool { return s.App.State() == app.Ready }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "en", s.App.Lang())

	got, ok := m.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, m.Len())
}

func TestDropCancelsContext(t *testing.T) {
	m := NewManager(8, time.Minute, factory)
	s := m.Open(Options{Lang: "fr"})
	m.Drop(s.ID)
	select {
	case <-s.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled")
	}
	_, ok := m.Get(s.ID)
	assert.False(t, ok)
}

func TestSizeBound(t *testing.T) {
	m := NewManager(2, time.Minute, factory)
	defer m.Close()
	first := m.Open(Options{Lang: "fr"})
	m.Open(Options{Lang: "fr"})
	m.Open(Options{Lang: "fr"})
	assert.Equal(t, 2, m.Len())
	_, ok := m.Get(first.ID)
	assert.False(t, ok)
	_, ok = m.Get("")
	assert.False(t, ok)
}
