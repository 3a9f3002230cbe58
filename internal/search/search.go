// Package search turns query input into filtered center sets. Typing goes
// through a trailing-edge debounce; explicit submits and URL bootstrap apply
// at once.
//
// Constraint: every request takes a sequence number when issued and applies
// only while that number is the latest issued, so a debounced query that was
// overtaken by a submit is dropped.
package search

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/benjaminillouz/cemedis-website/internal/centers"
	"github.com/benjaminillouz/cemedis-website/internal/debounce"
	"github.com/benjaminillouz/cemedis-website/internal/logger"
	"github.com/benjaminillouz/cemedis-website/internal/metrics"
)

// LiveDelay is the quiet period before a typed query is applied.
const LiveDelay = 300 * time.Millisecond

// Param is the query-string key carrying an initial search.
const Param = "search"

// ResultsPath is the listing page landing-page searches navigate to.
const ResultsPath = "/etablissements"

type Mode string

const (
	ModeLive      Mode = "live"
	ModeSubmit    Mode = "submit"
	ModeBootstrap Mode = "bootstrap"
)

// Filter is implemented by centers.Store.
type Filter interface {
	FilterByText(q string) []centers.Center
}

// Result is one applied (or dropped) search.
type Result struct {
	Query   string
	Mode    Mode
	Seq     uint64
	Applied bool
	Records []centers.Center
}

type request struct {
	query string
	seq   uint64
}

// Engine serializes searches of one page session. Results are applied and
// passed to notify while holding locker, the session lock.
type Engine struct {
	mu     sync.Mutex
	seq    uint64
	query  string
	filter Filter
	locker sync.Locker
	notify func(Result)
	live   *debounce.Debouncer[request]
}

// New returns an engine with the default live delay. A zero wait uses
// LiveDelay.
func New(filter Filter, locker sync.Locker, notify func(Result), wait time.Duration) *Engine {
	if wait <= 0 {
		wait = LiveDelay
	}
	e := &Engine{filter: filter, locker: locker, notify: notify}
	e.live = debounce.New(wait, func(r request) { e.run(r, ModeLive) })
	return e
}

func (e *Engine) issue(q string) request {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	e.query = q
	return request{query: q, seq: e.seq}
}

func (e *Engine) latest(seq uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return seq == e.seq
}

func (e *Engine) run(r request, mode Mode) Result {
	e.locker.Lock()
	defer e.locker.Unlock()
	res := Result{Query: r.query, Mode: mode, Seq: r.seq}
	if !e.latest(r.seq) {
		metrics.SearchesTotal.WithLabelValues(string(mode), "dropped").Inc()
		logger.L().Debug("search_dropped", "mode", mode, "seq", r.seq)
		return res
	}
	res.Records = e.filter.FilterByText(r.query)
	res.Applied = true
	metrics.SearchesTotal.WithLabelValues(string(mode), "applied").Inc()
	logger.L().Debug("search_applied", "mode", mode, "seq", r.seq, "query", r.query, "results", len(res.Records))
	if e.notify != nil {
		e.notify(res)
	}
	return res
}

// Live schedules q after the quiet period; a later Live restarts it.
func (e *Engine) Live(q string) {
	e.live.Trigger(e.issue(q))
}

// HandleQueryChange filters by q immediately and notifies.
func (e *Engine) HandleQueryChange(q string) Result {
	return e.run(e.issue(q), ModeSubmit)
}

// Submit is the explicit enter/button path. It bypasses and cancels any
// pending live query.
func (e *Engine) Submit(q string) Result {
	e.live.Cancel()
	return e.HandleQueryChange(q)
}

// Bootstrap applies the search parameter of the page URL, if present.
func (e *Engine) Bootstrap(v url.Values) (Result, bool) {
	q := strings.TrimSpace(v.Get(Param))
	if q == "" {
		return Result{}, false
	}
	return e.run(e.issue(q), ModeBootstrap), true
}

// Query is the last issued query text, the value of the search box.
func (e *Engine) Query() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.query
}

// Pending reports whether a live query is waiting for its quiet period.
func (e *Engine) Pending() bool { return e.live.Pending() }

// Close drops any pending live query.
func (e *Engine) Close() { e.live.Cancel() }

// SubmitTarget implements the navigation contract of a submit: pages without
// a results grid navigate to the listing page carrying the query, pages with
// one filter in place (ok=false).
func SubmitTarget(q string, hasResultsGrid bool) (redirect string, ok bool) {
	if hasResultsGrid {
		return "", false
	}
	return ResultsPath + "?" + url.Values{Param: {q}}.Encode(), true
}
