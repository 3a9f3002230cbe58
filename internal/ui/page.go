// Package ui is the in-memory document of one page session: the results
// grid fragment, the stat counter, pending alerts and the text direction.
package ui

import (
	"html/template"
	"sync"
	"time"
)

// Alert is a transient user-facing message.
type Alert struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Page is safe for concurrent use.
type Page struct {
	mu          sync.Mutex
	grid        template.HTML
	gridVersion uint64
	count       CountUp
	alerts      []Alert
	lang        string
	dir         string
	now         func() time.Time
}

func NewPage(lang, dir string) *Page {
	return &Page{lang: lang, dir: dir, now: time.Now}
}

// SetGrid replaces the results grid content.
func (p *Page) SetGrid(html template.HTML) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.grid = html
	p.gridVersion++
}

// Grid returns the grid content and a version bumped on every SetGrid.
func (p *Page) Grid() (template.HTML, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.grid, p.gridVersion
}

// StartCount begins the stat count-up from 0 to target.
func (p *Page) StartCount(target int) CountUp {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count = CountUp{Target: target, Start: p.now(), Duration: CountDuration}
	return p.count
}

// Count returns the current count-up.
func (p *Page) Count() CountUp {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// Stat is the counter value displayed right now.
func (p *Page) Stat() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count.ValueAt(p.now())
}

// Alert queues a transient message.
func (p *Page) Alert(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, Alert{Text: text, At: p.now()})
}

// DrainAlerts returns and clears the queued alerts.
func (p *Page) DrainAlerts() []Alert {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.alerts
	p.alerts = nil
	return out
}

// SetLang records the page language and direction ("ltr" or "rtl").
func (p *Page) SetLang(lang, dir string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lang, p.dir = lang, dir
}

func (p *Page) Lang() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lang
}

func (p *Page) Dir() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dir
}

// Snapshot is the JSON view served to the client.
type Snapshot struct {
	Grid        string  `json:"grid"`
	GridVersion uint64  `json:"grid_version"`
	Stat        int     `json:"stat"`
	StatTarget  int     `json:"stat_target"`
	Alerts      []Alert `json:"alerts"`
	Lang        string  `json:"lang"`
	Dir         string  `json:"dir"`
}

// Snapshot reads the document and drains alerts.
func (p *Page) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Snapshot{
		Grid:        string(p.grid),
		GridVersion: p.gridVersion,
		Stat:        p.count.ValueAt(p.now()),
		StatTarget:  p.count.Target,
		Alerts:      p.alerts,
		Lang:        p.lang,
		Dir:         p.dir,
	}
	if s.Alerts == nil {
		s.Alerts = []Alert{}
	}
	p.alerts = nil
	return s
}
