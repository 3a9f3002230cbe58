// Package session keeps one app.App per page lifetime, keyed by the
// cemedis-sid cookie, in a bounded expiring LRU.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/benjaminillouz/cemedis-website/internal/app"
	"github.com/benjaminillouz/cemedis-website/internal/logger"
	"github.com/benjaminillouz/cemedis-website/internal/metrics"
)

// CookieName carries the session id.
const CookieName = "cemedis-sid"

// Options describe the page a session was opened for.
type Options struct {
	Lang    string
	HasGrid bool
	HasMap  bool
}

// Factory builds the app of a new session.
type Factory func(opts Options) *app.App

// Session is one page lifetime.
type Session struct {
	ID      string
	App     *app.App
	Opts    Options
	Created time.Time
	ctx     context.Context
	cancel  context.CancelFunc
}

// Context ends when the session is evicted or dropped.
func (s *Session) Context() context.Context { return s.ctx }

// Manager is safe for concurrent use.
type Manager struct {
	cache   *expirable.LRU[string, *Session]
	factory Factory
}

// NewManager holds at most size sessions, each for ttl after its last use.
func NewManager(size int, ttl time.Duration, f Factory) *Manager {
	if size <= 0 {
		size = 10000
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	m := &Manager{factory: f}
	m.cache = expirable.NewLRU[string, *Session](size, func(id string, s *Session) {
		s.cancel()
		s.App.Close()
		metrics.SessionsActive.Dec()
		logger.L().Debug("session_evicted", "sid", id)
	}, ttl)
	return m
}

// Open creates a session and starts its app.
func (m *Manager) Open(opts Options) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:      uuid.NewString(),
		App:     m.factory(opts),
		Opts:    opts,
		Created: time.Now(),
		ctx:     ctx,
		cancel:  cancel,
	}
	m.cache.Add(s.ID, s)
	metrics.SessionsActive.Inc()
	logger.L().Debug("session_open", "sid", s.ID, "lang", opts.Lang, "grid", opts.HasGrid, "map", opts.HasMap)
	s.App.Start(ctx)
	return s
}

// Get returns a live session and refreshes its position in the LRU.
func (m *Manager) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	s, ok := m.cache.Get(id)
	if ok {
		// re-add to restart the expiry window
		m.cache.Add(id, s)
	}
	return s, ok
}

// Drop ends a session.
func (m *Manager) Drop(id string) { m.cache.Remove(id) }

func (m *Manager) Len() int { return m.cache.Len() }

// Close ends every session.
func (m *Manager) Close() { m.cache.Purge() }
