// Package mapview keeps the map marker overlay in step with the filtered
// center list. An Engine is the contract with the map SDK; the Adapter owns
// the engine handle and the active markers of one page session.
package mapview

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benjaminillouz/cemedis-website/internal/geomath"
)

// ErrEngineUnavailable is terminal: the map container shows a static
// message and initialization is not retried.
var ErrEngineUnavailable = errors.New("mapview: map engine unavailable")

// Engine kinds accepted by NewEngine.
const (
	KindTile       = "tile"
	KindCommercial = "commercial"
)

// Default viewport before any marker is placed, and the zoom used when
// recentering on the visitor.
var DefaultCenter = geomath.Point{Lat: 48.8566, Lon: 2.3522}

const (
	DefaultZoom = 11
	LocateZoom  = 13
	FitPadding  = 0.1
)

type MarkerID int

// Marker is one pin placed on the map.
type Marker struct {
	ID    MarkerID `json:"id"`
	Lat   float64  `json:"lat"`
	Lon   float64  `json:"lon"`
	Title string   `json:"title"`
	Popup string   `json:"popup"`
}

// Scene is what the client-side SDK needs to draw the current map state.
type Scene struct {
	Engine      string          `json:"engine"`
	TileURL     string          `json:"tile_url,omitempty"`
	Attribution string          `json:"attribution,omitempty"`
	SDKURL      string          `json:"sdk_url,omitempty"`
	Ready       bool            `json:"ready"`
	Error       string          `json:"error,omitempty"`
	Center      geomath.Point   `json:"center"`
	Zoom        int             `json:"zoom"`
	Bounds      *geomath.Bounds `json:"bounds,omitempty"`
	Markers     []Marker        `json:"markers"`
	Version     uint64          `json:"version"`
}

// Engine is the map SDK contract.
type Engine interface {
	Kind() string
	Init(ctx context.Context) error
	AddMarker(m Marker) MarkerID
	RemoveMarker(id MarkerID)
	FitBounds(b geomath.Bounds)
	SetView(lat, lon float64, zoom int)
	Scene() Scene
}

// canvas is the in-memory viewport and marker layer shared by the engines.
type canvas struct {
	mu      sync.Mutex
	nextID  MarkerID
	markers map[MarkerID]Marker
	center  geomath.Point
	zoom    int
	bounds  *geomath.Bounds
	version uint64
}

func (c *canvas) reset() {
	c.markers = make(map[MarkerID]Marker)
	c.center = DefaultCenter
	c.zoom = DefaultZoom
}

func (c *canvas) AddMarker(m Marker) MarkerID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	m.ID = c.nextID
	c.markers[m.ID] = m
	c.version++
	return m.ID
}

func (c *canvas) RemoveMarker(id MarkerID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.markers[id]; ok {
		delete(c.markers, id)
		c.version++
	}
}

func (c *canvas) FitBounds(b geomath.Bounds) {
	if b.Empty() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bounds = &b
	c.center = b.Center()
	c.version++
}

func (c *canvas) SetView(lat, lon float64, zoom int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.center = geomath.Point{Lat: lat, Lon: lon}
	c.zoom = zoom
	c.bounds = nil
	c.version++
}

func (c *canvas) scene(kind string) Scene {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Scene{Engine: kind, Center: c.center, Zoom: c.zoom, Version: c.version}
	if c.bounds != nil {
		b := *c.bounds
		s.Bounds = &b
	}
	s.Markers = make([]Marker, 0, len(c.markers))
	for _, m := range c.markers {
		s.Markers = append(s.Markers, m)
	}
	sort.Slice(s.Markers, func(i, j int) bool { return s.Markers[i].ID < s.Markers[j].ID })
	return s
}

// EngineConfig selects and parameterizes the engine of a session.
type EngineConfig struct {
	Kind string
	// TileURL overrides the OpenStreetMap template for the tile engine.
	TileURL string
	// SDKURL is handed to the client for the commercial engine.
	SDKURL string
	// Ready is the shared SDK readiness future for the commercial engine.
	Ready *Readiness
	// Attempts and Interval bound the readiness wait (Attempts*Interval).
	Attempts int
	Interval time.Duration
}

// NewEngine builds the engine named by cfg.Kind.
func NewEngine(cfg EngineConfig) (Engine, error) {
	switch cfg.Kind {
	case "", KindTile:
		return NewTileEngine(cfg.TileURL), nil
	case KindCommercial:
		if cfg.Ready == nil {
			return nil, fmt.Errorf("mapview: commercial engine without SDK readiness")
		}
		return NewCommercialEngine(cfg.SDKURL, cfg.Ready, readyTimeout(cfg.Attempts, cfg.Interval)), nil
	}
	return nil, fmt.Errorf("mapview: unknown engine %q", cfg.Kind)
}
