package mapview

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/benjaminillouz/cemedis-website/internal/centers"
	"github.com/benjaminillouz/cemedis-website/internal/geomath"
	"github.com/benjaminillouz/cemedis-website/internal/logger"
	"github.com/benjaminillouz/cemedis-website/internal/metrics"
)

type status int

const (
	statusNew status = iota
	statusCreating
	statusReady
	statusFailed
)

// PopupFunc renders the popup HTML of one marker.
type PopupFunc func(centers.Center) string

// Adapter owns the map handle and the active markers. It is the only writer
// of the marker layer.
type Adapter struct {
	mu         sync.Mutex
	engine     Engine
	popup      PopupFunc
	failText   func() string
	status     status
	initDone   chan struct{}
	initErr    error
	active     []MarkerID
	pending    []centers.Center
	hasPending bool
}

// NewAdapter wraps engine. failText renders the message that replaces the
// map after a terminal initialization failure; it is called on every Scene
// so the message follows the current language.
func NewAdapter(engine Engine, popup PopupFunc, failText func() string) *Adapter {
	return &Adapter{engine: engine, popup: popup, failText: failText}
}

// Create initializes the engine once. Concurrent callers wait for the first
// attempt. A sync requested before completion is replayed once, with the
// latest record set.
// Constraint: a terminal failure is sticky; cancellation of ctx is not.
func (a *Adapter) Create(ctx context.Context) error {
	a.mu.Lock()
	switch a.status {
	case statusReady:
		a.mu.Unlock()
		return nil
	case statusFailed:
		err := a.initErr
		a.mu.Unlock()
		return err
	case statusCreating:
		done := a.initDone
		a.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.status == statusReady {
			return nil
		}
		if a.status == statusFailed {
			return a.initErr
		}
		return context.Canceled
	}
	a.status = statusCreating
	a.initDone = make(chan struct{})
	a.mu.Unlock()

	err := a.engine.Init(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	defer close(a.initDone)
	kind := a.engine.Kind()
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			a.status = statusNew
			return err
		}
		if !errors.Is(err, ErrEngineUnavailable) {
			err = fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
		}
		a.status = statusFailed
		a.initErr = err
		a.hasPending = false
		a.pending = nil
		metrics.MapReadyTotal.WithLabelValues(kind, "fail").Inc()
		logger.L().Warn("map_init_error", "engine", kind, "err", err)
		return err
	}
	a.status = statusReady
	metrics.MapReadyTotal.WithLabelValues(kind, "ok").Inc()
	a.engine.SetView(DefaultCenter.Lat, DefaultCenter.Lon, DefaultZoom)
	logger.L().Debug("map_ready", "engine", kind, "deferred_sync", a.hasPending)
	if a.hasPending {
		recs := a.pending
		a.pending = nil
		a.hasPending = false
		a.syncLocked(recs)
	}
	return nil
}

// SyncMarkers rebuilds the marker layer from records. Before the engine is
// ready the request is queued (deferred=true); after a terminal failure it
// is dropped.
func (a *Adapter) SyncMarkers(records []centers.Center) (placed int, deferred bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.status {
	case statusReady:
		return a.syncLocked(records), false
	case statusFailed:
		return 0, false
	}
	a.pending = append([]centers.Center(nil), records...)
	a.hasPending = true
	logger.L().Debug("map_sync_deferred", "records", len(records))
	return 0, true
}

func (a *Adapter) syncLocked(records []centers.Center) int {
	for _, id := range a.active {
		a.engine.RemoveMarker(id)
	}
	a.active = a.active[:0]
	var b geomath.Bounds
	for _, c := range records {
		if !c.HasPosition() {
			continue
		}
		m := Marker{Lat: c.Position.Lat, Lon: c.Position.Lon, Title: c.Name}
		if a.popup != nil {
			m.Popup = a.popup(c)
		}
		a.active = append(a.active, a.engine.AddMarker(m))
		b = b.Extend(*c.Position)
	}
	if len(a.active) > 0 {
		a.engine.FitBounds(b.Pad(FitPadding))
	}
	metrics.MarkersSynced.Observe(float64(len(a.active)))
	logger.L().Debug("map_sync", "records", len(records), "markers", len(a.active))
	return len(a.active)
}

// Recenter moves the viewport. It reports false when the map is not ready.
func (a *Adapter) Recenter(lat, lon float64, zoom int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != statusReady {
		return false
	}
	a.engine.SetView(lat, lon, zoom)
	return true
}

// Ready reports whether the engine finished initializing.
func (a *Adapter) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status == statusReady
}

// Failed reports a terminal initialization failure.
func (a *Adapter) Failed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status == statusFailed
}

// ActiveMarkers is the number of markers currently placed.
func (a *Adapter) ActiveMarkers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.active)
}

// Scene returns the engine scene with the adapter status folded in.
func (a *Adapter) Scene() Scene {
	a.mu.Lock()
	st := a.status
	a.mu.Unlock()
	s := a.engine.Scene()
	s.Ready = st == statusReady
	if st == statusFailed {
		if a.failText != nil {
			s.Error = a.failText()
		}
		s.Markers = []Marker{}
	}
	return s
}
