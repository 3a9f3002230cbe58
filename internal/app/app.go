// Package app orchestrates one page session: it loads the center collection,
// drives the results grid and the map overlay, and answers search and
// geolocation events.
//
// Every event runs under the session lock. Fetching, SDK readiness and
// geolocation are awaited outside it and re-enter the lock to commit.
package app

import (
	"context"
	"errors"
	"html/template"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benjaminillouz/cemedis-website/internal/centers"
	"github.com/benjaminillouz/cemedis-website/internal/geoloc"
	"github.com/benjaminillouz/cemedis-website/internal/logger"
	"github.com/benjaminillouz/cemedis-website/internal/mapview"
	"github.com/benjaminillouz/cemedis-website/internal/metrics"
	"github.com/benjaminillouz/cemedis-website/internal/render"
	"github.com/benjaminillouz/cemedis-website/internal/search"
	"github.com/benjaminillouz/cemedis-website/internal/source"
	"github.com/benjaminillouz/cemedis-website/internal/ui"
)

// SkeletonCards is the number of placeholders shown while loading.
const SkeletonCards = 6

// ErrStaleLoad is returned by Load when a newer load was issued before this
// one completed; its result was discarded.
var ErrStaleLoad = errors.New("app: superseded by a newer load")

type State int

const (
	Idle State = iota
	Loading
	Ready
	LoadError
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case LoadError:
		return "load_error"
	}
	return "unknown"
}

// Localizer is the translation capability of the page.
type Localizer interface {
	render.Translator
	Lang() string
	Dir() string
}

// LoadEvent describes a committed load, successful or not.
type LoadEvent struct {
	Generation uint64
	Source     string
	OK         bool
	Reason     string
	Count      int
	Duration   time.Duration
	Centers    []centers.Center
}

// LoadObserver is told about every committed load.
type LoadObserver interface {
	LoadFinished(ctx context.Context, ev LoadEvent)
}

// Deps wires a session.
type Deps struct {
	Fetcher source.Fetcher
	// Engine is nil on pages without a map.
	Engine    mapview.Engine
	Locator   geoloc.Locator
	Localizer Localizer
	Observer  LoadObserver
	// RetryPath is where the error panel's retry control posts.
	RetryPath string
	// HasGrid is false on landing pages, whose submits navigate away.
	HasGrid   bool
	LiveDelay time.Duration
}

// App is the state of one page lifetime.
type App struct {
	mu            sync.Mutex
	state         State
	gen           uint64
	mapReady      bool
	centersLoaded bool

	store    *centers.Store
	mapv     *mapview.Adapter
	page     *ui.Page
	search   *search.Engine
	t        atomic.Value
	fetcher  source.Fetcher
	locator  geoloc.Locator
	observer LoadObserver
	retry    string
	hasGrid  bool
}

func New(d Deps) *App {
	a := &App{
		store:    centers.NewStore(),
		page:     ui.NewPage(d.Localizer.Lang(), d.Localizer.Dir()),
		fetcher:  d.Fetcher,
		locator:  d.Locator,
		observer: d.Observer,
		retry:    d.RetryPath,
		hasGrid:  d.HasGrid,
	}
	a.t.Store(localizerBox{d.Localizer})
	if a.locator == nil {
		a.locator = geoloc.Browser{}
	}
	if d.Engine != nil {
		a.mapv = mapview.NewAdapter(d.Engine, a.popup, a.mapError)
	}
	a.search = search.New(a.store, &a.mu, a.onSearch, d.LiveDelay)
	return a
}

type localizerBox struct{ Localizer }

func (a *App) loc() Localizer { return a.t.Load().(localizerBox).Localizer }

// popup may run from the adapter's deferred replay, outside the session lock.
func (a *App) popup(c centers.Center) string { return string(render.Popup(c, a.loc())) }

func (a *App) mapError() string { return string(render.MapError(a.loc())) }

// Start initializes the map and loads the collection in the background.
// ctx bounds the whole page lifetime.
func (a *App) Start(ctx context.Context) {
	if a.mapv != nil {
		go func() { _ = a.InitMap(ctx) }()
	}
	go func() { _ = a.Load(ctx) }()
}

// InitMap creates the map engine. A queued marker sync is replayed by the
// adapter once creation completes.
func (a *App) InitMap(ctx context.Context) error {
	if a.mapv == nil {
		return nil
	}
	err := a.mapv.Create(ctx)
	a.mu.Lock()
	a.mapReady = err == nil
	a.mu.Unlock()
	return err
}

// Load fetches and commits the collection. Only the latest issued
// generation commits; an older one returns ErrStaleLoad.
func (a *App) Load(ctx context.Context) error {
	a.mu.Lock()
	a.gen++
	gen := a.gen
	a.state = Loading
	a.page.SetGrid(render.Skeleton(SkeletonCards))
	a.mu.Unlock()

	metrics.LoadsTotal.Inc()
	logger.L().Debug("centers_load_begin", "gen", gen, "source", a.fetcher.Name())
	t0 := time.Now()
	var raw []map[string]any
	b, err := a.fetcher.Fetch(ctx)
	if err == nil {
		raw, err = centers.DecodeRaw(b)
	}
	dur := time.Since(t0)
	metrics.LoadDurationMs.Observe(float64(dur.Milliseconds()))

	ev, err := a.commitLoad(gen, raw, err)
	ev.Duration = dur
	if ev.Generation != 0 && a.observer != nil {
		a.observer.LoadFinished(ctx, ev)
	}
	return err
}

func (a *App) commitLoad(gen uint64, raw []map[string]any, fetchErr error) (LoadEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.gen {
		metrics.LoadStaleTotal.Inc()
		logger.L().Debug("centers_load_stale", "gen", gen, "latest", a.gen)
		return LoadEvent{}, ErrStaleLoad
	}
	ev := LoadEvent{Generation: gen, Source: a.fetcher.Name()}
	if fetchErr != nil {
		reason := source.Reason(fetchErr)
		if errors.Is(fetchErr, centers.ErrDecode) {
			reason = "decode"
		}
		ev.Reason = reason
		a.state = LoadError
		a.page.SetGrid(a.errorPanel())
		metrics.LoadFailTotal.WithLabelValues(reason).Inc()
		logger.L().Warn("centers_load_error", "gen", gen, "reason", reason, "err", fetchErr)
		return ev, fetchErr
	}
	a.store.Load(raw)
	a.centersLoaded = true
	a.state = Ready
	records := a.store.All()
	if q := a.search.Query(); q != "" {
		records = a.store.FilterByText(q)
	}
	a.showLocked(records)
	n := a.store.Len()
	a.page.StartCount(n)
	ev.OK = true
	ev.Count = n
	ev.Centers = a.store.All()
	logger.L().Info("centers_load_ok", "gen", gen, "count", n, "shown", len(records))
	return ev, nil
}

func (a *App) errorPanel() template.HTML {
	t := a.loc()
	return render.ErrorPanel(t.T("centers.error.message"), a.retry, t)
}

// showLocked renders records and rebuilds the markers.
func (a *App) showLocked(records []centers.Center) {
	a.page.SetGrid(render.Cards(records, a.loc()))
	if a.mapv != nil {
		a.mapv.SyncMarkers(records)
	}
}

// Retry reloads after a failure. It is a no-op in any other state.
func (a *App) Retry(ctx context.Context) error {
	a.mu.Lock()
	st := a.state
	a.mu.Unlock()
	if st != LoadError {
		return nil
	}
	logger.L().Info("centers_retry")
	return a.Load(ctx)
}

func (a *App) onSearch(res search.Result) {
	if !a.centersLoaded {
		return
	}
	a.state = Ready
	a.showLocked(res.Records)
}

// Live is the typing path (debounced).
func (a *App) Live(q string) { a.search.Live(q) }

// Submit is the explicit search. On pages without a results grid it returns
// the listing URL to navigate to instead of filtering.
func (a *App) Submit(q string) (redirect string, navigated bool) {
	if to, ok := search.SubmitTarget(q, a.hasGrid); ok {
		return to, true
	}
	a.search.Submit(q)
	return "", false
}

// Bootstrap applies the page URL's search parameter before the first render.
func (a *App) Bootstrap(v url.Values) string {
	r, ok := a.search.Bootstrap(v)
	if !ok {
		return ""
	}
	return r.Query
}

// Locate sorts by proximity to the visitor and recenters the map. On
// failure it queues an alert and leaves lists and map unchanged.
func (a *App) Locate(ctx context.Context, req geoloc.Request) error {
	p, err := a.locator.Locate(ctx, req)
	metrics.LocateTotal.WithLabelValues(geoloc.Outcome(err)).Inc()
	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		key := "geolocation.error"
		if errors.Is(err, geoloc.ErrUnsupported) {
			key = "geolocation.unsupported"
		}
		a.page.Alert(a.loc().T(key))
		logger.L().Info("locate_failed", "locator", a.locator.Name(), "err", err)
		return err
	}
	records := a.store.SortByProximity(p.Lat, p.Lon)
	if a.centersLoaded {
		a.showLocked(records)
	}
	if a.mapv != nil {
		a.mapv.Recenter(p.Lat, p.Lon, mapview.LocateZoom)
	}
	logger.L().Debug("locate_ok", "locator", a.locator.Name(), "lat", p.Lat, "lon", p.Lon)
	return nil
}

// SetLocalizer switches the page language and re-renders what is shown.
func (a *App) SetLocalizer(l Localizer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.t.Store(localizerBox{l})
	a.page.SetLang(l.Lang(), l.Dir())
	switch a.state {
	case Ready:
		a.showLocked(a.store.Filtered())
	case LoadError:
		a.page.SetGrid(a.errorPanel())
	}
}

// Close stops pending timers.
func (a *App) Close() { a.search.Close() }

func (a *App) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Flags returns the readiness flags.
func (a *App) Flags() (mapReady, centersLoaded bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mapReady, a.centersLoaded
}

func (a *App) Page() *ui.Page { return a.page }

// Query is the last issued search query.
func (a *App) Query() string { return a.search.Query() }

func (a *App) Store() *centers.Store { return a.store }

func (a *App) HasGrid() bool { return a.hasGrid }

func (a *App) Lang() string { return a.loc().Lang() }

// Localizer is the current translation capability.
func (a *App) Localizer() Localizer { return a.loc() }

// Scene is the map scene, or false on pages without a map.
func (a *App) Scene() (mapview.Scene, bool) {
	if a.mapv == nil {
		return mapview.Scene{}, false
	}
	return a.mapv.Scene(), true
}
