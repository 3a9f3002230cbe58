// Package api is the HTTP surface: the two pages of the directory and the
// JSON endpoints the page scripts call while a session is open.
package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/benjaminillouz/cemedis-website/internal/app"
	"github.com/benjaminillouz/cemedis-website/internal/geoloc"
	"github.com/benjaminillouz/cemedis-website/internal/i18n"
	"github.com/benjaminillouz/cemedis-website/internal/logger"
	"github.com/benjaminillouz/cemedis-website/internal/metrics"
	"github.com/benjaminillouz/cemedis-website/internal/middleware"
	"github.com/benjaminillouz/cemedis-website/internal/session"
	"github.com/benjaminillouz/cemedis-website/internal/store"
	"github.com/benjaminillouz/cemedis-website/internal/ui"
)

// TotalsSource reports the load history. Nil when Postgres is disabled.
type TotalsSource interface {
	GetTotals(ctx context.Context) (*store.Totals, error)
}

// Server holds what the handlers share across sessions.
type Server struct {
	Sessions *session.Manager
	Catalog  *i18n.Catalog
	Totals   TotalsSource
	// APIBase is the prefix the API mux is mounted under; pages use it in
	// the script configuration.
	APIBase string
}

// gridView is the grid snapshot plus the session state.
type gridView struct {
	ui.Snapshot
	State string `json:"state"`
	Query string `json:"query"`
}

type searchView struct {
	Redirect string    `json:"redirect,omitempty"`
	Pending  bool      `json:"pending,omitempty"`
	Grid     *gridView `json:"grid,omitempty"`
}

type statsView struct {
	Sessions int           `json:"sessions"`
	Centers  int           `json:"centers"`
	Located  int           `json:"located"`
	History  *store.Totals `json:"history,omitempty"`
}

// BuildRoutes returns the API mux. The entry point mounts it under APIBase
// with http.StripPrefix.
func (s *Server) BuildRoutes() *http.ServeMux {
	apiMux := http.NewServeMux()
	apiMux.Handle("GET /grid", instrument("grid", s.withSession(s.handleGrid)))
	apiMux.Handle("POST /search", instrument("search", s.withSession(s.handleSearch)))
	apiMux.Handle("POST /retry", instrument("retry", s.withSession(s.handleRetry)))
	apiMux.Handle("/locate", instrument("locate", s.withSession(s.handleLocate)))
	apiMux.Handle("GET /map", instrument("map", s.withSession(s.handleMap)))
	apiMux.Handle("POST /lang", instrument("lang", s.withSession(s.handleLang)))
	apiMux.Handle("GET /stats", instrument("stats", http.HandlerFunc(s.handleStats)))
	apiMux.Handle("GET /i18n/{lang}", instrument("i18n", http.HandlerFunc(s.handleI18n)))
	return apiMux
}

// Mount attaches the pages at the root and the API under APIBase.
func (s *Server) Mount(mux *http.ServeMux) {
	base := strings.TrimSuffix(s.APIBase, "/")
	if base == "" {
		base = "/api"
	}
	mux.Handle(base+"/", http.StripPrefix(base, s.BuildRoutes()))
	mux.Handle("/", s.BuildPages())
}

// instrument counts requests per route and records their duration.
func instrument(route string, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h.ServeHTTP(w, r)
		metrics.RequestsTotal.WithLabelValues(route).Inc()
		metrics.RequestDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	})
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

// withSession resolves the cemedis-sid cookie. Unknown or expired ids get
// 404 so the page reloads and opens a new session.
func (s *Server) withSession(h sessionHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(session.CookieName); err == nil {
			id = c.Value
		}
		sess, ok := s.Sessions.Get(id)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "session_expired"})
			return
		}
		h(w, r, sess)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func viewOf(a *app.App) *gridView {
	return &gridView{
		Snapshot: a.Page().Snapshot(),
		State:    a.State().String(),
		Query:    a.Query(),
	}
}

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, viewOf(sess.App))
}

// handleSearch takes q and mode (live or submit). Live queries are debounced
// and answered 202; the client polls the grid for the outcome.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	q := r.FormValue("q")
	switch r.FormValue("mode") {
	case "live":
		sess.App.Live(q)
		writeJSON(w, http.StatusAccepted, searchView{Pending: true})
	case "submit", "":
		if to, ok := sess.App.Submit(q); ok {
			writeJSON(w, http.StatusOK, searchView{Redirect: to})
			return
		}
		writeJSON(w, http.StatusOK, searchView{Grid: viewOf(sess.App)})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_mode"})
	}
}

// handleRetry reloads on the session context so a dropped request does not
// cancel the fetch. The grid shows the outcome either way.
func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := sess.App.Retry(sess.Context()); err != nil {
		logger.L().Info("api_retry_failed", "sid", sess.ID, "err", err)
	}
	writeJSON(w, http.StatusOK, viewOf(sess.App))
}

// handleLocate accepts the browser position (lat, lon) or its error code.
// Failures are reported through the grid alerts.
func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	req := geoloc.Request{
		Lat:   r.FormValue("lat"),
		Lon:   r.FormValue("lon"),
		Error: r.FormValue("error"),
		IP:    visitorIP(r),
	}
	if edge, ok := middleware.EdgeGeoFrom(r.Context()); ok {
		req.Edge = edge
	}
	err := sess.App.Locate(r.Context(), req)
	v := struct {
		*gridView
		Located bool `json:"located"`
	}{viewOf(sess.App), err == nil}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	scene, ok := sess.App.Scene()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no_map"})
		return
	}
	writeJSON(w, http.StatusOK, scene)
}

// handleLang switches the session language and persists it in the cookie.
func (s *Server) handleLang(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	lang := i18n.Resolve(r.FormValue("lang"))
	sess.App.SetLocalizer(s.Catalog.Localizer(lang))
	setLangCookie(w, lang)
	writeJSON(w, http.StatusOK, viewOf(sess.App))
}

// handleStats works without a session; the center counts are then zero.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	v := statsView{Sessions: s.Sessions.Len()}
	if c, err := r.Cookie(session.CookieName); err == nil {
		if sess, ok := s.Sessions.Get(c.Value); ok {
			all := sess.App.Store().All()
			v.Centers = len(all)
			for _, ct := range all {
				if ct.HasPosition() {
					v.Located++
				}
			}
		}
	}
	if s.Totals != nil {
		t, err := s.Totals.GetTotals(r.Context())
		if err != nil {
			logger.L().Warn("api_stats_totals_error", "err", err)
		} else {
			v.History = t
		}
	}
	writeJSON(w, http.StatusOK, v)
}

// handleI18n serves the raw locale document. Unknown languages resolve to
// the default and the response says which one was served.
func (s *Server) handleI18n(w http.ResponseWriter, r *http.Request) {
	doc, lang, err := s.Catalog.Document(r.PathValue("lang"))
	if err != nil {
		logger.L().Error("api_i18n_error", "lang", r.PathValue("lang"), "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "no_document"})
		return
	}
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("content-language", lang)
	w.Header().Set("cache-control", "public, max-age=3600")
	_ = json.NewEncoder(w).Encode(doc)
}

// visitorIP resolves the visitor address for the GeoIP locator: common proxy
// headers first, then the connection address.
// Constraint: headers are trusted as-is; deploy behind a proxy that rewrites them.
func visitorIP(r *http.Request) net.IP {
	h := r.Header
	for _, k := range []string{"x-forwarded-for", "cf-connecting-ip", "x-real-ip", "x-client-ip"} {
		if x := h.Get(k); x != "" {
			if ip := net.ParseIP(strings.TrimSpace(strings.Split(x, ",")[0])); ip != nil {
				return ip
			}
		}
	}
	if x := h.Get("forwarded"); x != "" {
		if i := strings.Index(strings.ToLower(x), "for="); i >= 0 {
			y := x[i+4:]
			if p := strings.IndexAny(y, ";,"); p >= 0 {
				y = y[:p]
			}
			y = strings.Trim(y, "\" []")
			if ip := net.ParseIP(y); ip != nil {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}
