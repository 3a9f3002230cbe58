package mapview

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benjaminillouz/cemedis-website/internal/centers"
	"github.com/benjaminillouz/cemedis-website/internal/geomath"
)

func at(name string, lat, lon float64) centers.Center {
	return centers.Center{Name: name, Position: &geomath.Point{Lat: lat, Lon: lon}}
}

var sample = []centers.Center{
	at("Rivoli", 48.8606, 2.3376),
	{Name: "Sans GPS"},
	at("Bellecour", 45.7578, 4.8320),
}

func readyAdapter(t *testing.T) (*Adapter, *TileEngine) {
	t.Helper()
	e := NewTileEngine("")
	a := NewAdapter(e, func(c centers.Center) string { return "<b>" + c.Name + "</b>" }, func() string { return "map failed" })
	require.NoError(t, a.Create(context.Background()))
	return a, e
}

func TestSyncPlacesOneMarkerPerValidPosition(t *testing.T) {
	a, e := readyAdapter(t)
	placed, deferred := a.SyncMarkers(sample)
	assert.False(t, deferred)
	assert.Equal(t, 2, placed)

	s := e.Scene()
	require.Len(t, s.Markers, 2)
	assert.Equal(t, "Rivoli", s.Markers[0].Title)
	assert.Equal(t, "<b>Rivoli</b>", s.Markers[0].Popup)
	require.NotNil(t, s.Bounds)
	span := 48.8606 - 45.7578
	assert.InDelta(t, 45.7578-span*FitPadding, s.Bounds.South, 1e-9)
	assert.InDelta(t, 48.8606+span*FitPadding, s.Bounds.North, 1e-9)
}

func TestResyncReplacesMarkers(t *testing.T) {
	a, e := readyAdapter(t)
	a.SyncMarkers(sample)
	a.SyncMarkers(sample[:1])
	assert.Len(t, e.Scene().Markers, 1)
	assert.Equal(t, 1, a.ActiveMarkers())
}

func TestSyncWithoutPositionsKeepsViewport(t *testing.T) {
	a, e := readyAdapter(t)
	a.Recenter(45.0, 4.0, LocateZoom)
	before := e.Scene()
	placed, _ := a.SyncMarkers([]centers.Center{{Name: "Sans GPS"}})
	assert.Zero(t, placed)
	after := e.Scene()
	assert.Empty(t, after.Markers)
	assert.Equal(t, before.Center, after.Center)
	assert.Equal(t, LocateZoom, after.Zoom)
	assert.Nil(t, after.Bounds)
}

func TestDefaultView(t *testing.T) {
	_, e := readyAdapter(t)
	s := e.Scene()
	assert.Equal(t, DefaultCenter, s.Center)
	assert.Equal(t, DefaultZoom, s.Zoom)
	assert.Equal(t, OSMTileURL, s.TileURL)
}

func TestDeferredSyncReplaysLatestOnce(t *testing.T) {
	e := NewTileEngine("")
	a := NewAdapter(e, nil, nil)
	_, deferred := a.SyncMarkers(sample)
	assert.True(t, deferred)
	_, deferred = a.SyncMarkers(sample[2:])
	assert.True(t, deferred)
	assert.Empty(t, e.Scene().Markers)

	require.NoError(t, a.Create(context.Background()))
	s := e.Scene()
	require.Len(t, s.Markers, 1)
	assert.Equal(t, "Bellecour", s.Markers[0].Title)

	require.NoError(t, a.Create(context.Background()))
	assert.Equal(t, s.Version, e.Scene().Version)
}

type countingEngine struct {
	*TileEngine
	inits atomic.Int32
	gate  chan struct{}
}

func (c *countingEngine) Init(ctx context.Context) error {
	c.inits.Add(1)
	<-c.gate
	return nil
}

func TestCreateIsIdempotent(t *testing.T) {
	e := &countingEngine{TileEngine: NewTileEngine(""), gate: make(chan struct{})}
	a := NewAdapter(e, nil, nil)
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() { errs <- a.Create(context.Background()) }()
	}
	require.Eventually(t, func() bool { return e.inits.Load() == 1 }, time.Second, 5*time.Millisecond)
	close(e.gate)
	for i := 0; i < 3; i++ {
		assert.NoError(t, <-errs)
	}
	assert.Equal(t, int32(1), e.inits.Load())
	assert.True(t, a.Ready())
}

func TestCommercialTimeoutIsTerminal(t *testing.T) {
	e := NewCommercialEngine("https://sdk.example/maps.js", NewReadiness(), 20*time.Millisecond)
	a := NewAdapter(e, nil, func() string { return "La carte n'a pas pu être chargée." })
	a.SyncMarkers(sample)

	err := a.Create(context.Background())
	require.ErrorIs(t, err, ErrEngineUnavailable)
	assert.True(t, a.Failed())

	s := a.Scene()
	assert.False(t, s.Ready)
	assert.Equal(t, "La carte n'a pas pu être chargée.", s.Error)
	assert.Empty(t, s.Markers)

	start := time.Now()
	assert.ErrorIs(t, a.Create(context.Background()), ErrEngineUnavailable)
	assert.Less(t, time.Since(start), 20*time.Millisecond)

	placed, deferred := a.SyncMarkers(sample)
	assert.Zero(t, placed)
	assert.False(t, deferred)
	assert.False(t, a.Recenter(1, 2, 3))
}

func TestCommercialReady(t *testing.T) {
	r := NewReadiness()
	e := NewCommercialEngine("https://sdk.example/maps.js", r, time.Second)
	a := NewAdapter(e, nil, nil)
	go func() {
		time.Sleep(10 * time.Millisecond)
		r.Complete(nil)
	}()
	require.NoError(t, a.Create(context.Background()))
	a.SyncMarkers(sample)
	s := a.Scene()
	assert.True(t, s.Ready)
	assert.Equal(t, KindCommercial, s.Engine)
	assert.Equal(t, "https://sdk.example/maps.js", s.SDKURL)
	assert.Len(t, s.Markers, 2)
}

func TestCancelledCreateCanBeRetried(t *testing.T) {
	r := NewReadiness()
	a := NewAdapter(NewCommercialEngine("", r, time.Second), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, a.Create(ctx), context.Canceled)
	assert.False(t, a.Failed())

	r.Complete(nil)
	assert.NoError(t, a.Create(context.Background()))
}

func TestReadinessCompletesOnce(t *testing.T) {
	r := NewReadiness()
	r.Complete(nil)
	r.Complete(assert.AnError)
	assert.NoError(t, r.Wait(context.Background(), time.Millisecond))
}

func TestHTTPSDKLoader(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		if r.URL.Path == "/missing.js" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("window.sdk = {}"))
	}))
	defer srv.Close()

	require.NoError(t, HTTPSDKLoader{URL: srv.URL + "/maps.js", Key: "k1"}.Load(context.Background()))
	assert.Equal(t, "k1", gotKey)
	assert.Error(t, HTTPSDKLoader{URL: srv.URL + "/missing.js"}.Load(context.Background()))
	assert.Error(t, HTTPSDKLoader{}.Load(context.Background()))

	r := StartSDK(context.Background(), HTTPSDKLoader{URL: srv.URL + "/maps.js"})
	assert.NoError(t, r.Wait(context.Background(), time.Second))
}

func TestNewEngine(t *testing.T) {
	e, err := NewEngine(EngineConfig{Kind: KindTile})
	require.NoError(t, err)
	assert.Equal(t, KindTile, e.Kind())

	e, err = NewEngine(EngineConfig{Kind: KindCommercial, Ready: NewReadiness(), Attempts: 2, Interval: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, KindCommercial, e.Kind())
	assert.Equal(t, 2*time.Millisecond, e.(*CommercialEngine).timeout)

	_, err = NewEngine(EngineConfig{Kind: KindCommercial})
	assert.Error(t, err)
	_, err = NewEngine(EngineConfig{Kind: "svg"})
	assert.Error(t, err)
}
