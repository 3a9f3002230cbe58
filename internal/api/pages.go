package api

import (
	"bytes"
	"html/template"
	"net/http"
	"time"

	"github.com/benjaminillouz/cemedis-website/internal/app"
	"github.com/benjaminillouz/cemedis-website/internal/i18n"
	"github.com/benjaminillouz/cemedis-website/internal/logger"
	"github.com/benjaminillouz/cemedis-website/internal/render"
	"github.com/benjaminillouz/cemedis-website/internal/search"
	"github.com/benjaminillouz/cemedis-website/internal/session"
)

// langCookieAge keeps the language choice for a year.
const langCookieAge = 365 * 24 * 3600

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}" dir="{{.Dir}}">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{call .T "meta.title"}}</title>
<meta name="description" content="{{call .T "meta.description"}}">
<script src="/config.js"></script>
</head>
<body data-api-base="{{.APIBase}}">
<header class="header">
<nav>
<a href="/">{{call .T "nav.home"}}</a>
<a href="{{.ResultsPath}}">{{call .T "nav.centers"}}</a>
</nav>
<div id="language-selector"><select name="lang">{{range .Languages}}
<option value="{{.}}"{{if eq . $.Lang}} selected{{end}}>{{.}}</option>{{end}}
</select></div>
</header>
<main>
<form class="search" action="/search" method="get">
<input id="hero-search" type="search" name="search" value="{{.Query}}" placeholder="{{call .T "search.placeholder"}}">
<button id="search-btn" type="submit">{{call .T "search.button"}}</button>
<button id="locate-btn" type="button" data-action="locate">{{call .T "search.nearest"}}</button>
</form>
<p class="stat"><span id="stat-centers" data-target="{{.StatTarget}}">{{.Stat}}</span> {{call .T "stats.centers"}}</p>
{{if .HasMap}}<div id="map"></div>{{end}}
{{if .HasGrid}}<div id="centers-grid">{{.Grid}}</div>{{end}}
</main>
</body>
</html>
`))

type pageData struct {
	Lang        string
	Dir         string
	T           func(string) string
	APIBase     string
	ResultsPath string
	Languages   []string
	Query       string
	Grid        template.HTML
	Stat        int
	StatTarget  int
	HasGrid     bool
	HasMap      bool
}

// BuildPages returns the page routes: the landing page, the listing page
// and the submit navigation of the search form.
func (s *Server) BuildPages() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /{$}", instrument("page_home", s.page(false)))
	mux.Handle("GET "+search.ResultsPath, instrument("page_centers", s.page(true)))
	mux.Handle("GET /search", instrument("page_search", http.HandlerFunc(handleSearchNav)))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// handleSearchNav is the form fallback without scripts: it navigates to the
// listing page carrying the query.
func handleSearchNav(w http.ResponseWriter, r *http.Request) {
	to, _ := search.SubmitTarget(r.URL.Query().Get(search.Param), false)
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// page opens a session per page view. The listing page has the grid; both
// pages show the map.
func (s *Server) page(hasGrid bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var stored string
		if c, err := r.Cookie(i18n.CookieName); err == nil {
			stored = c.Value
		}
		lang := i18n.Negotiate(r.URL.Query().Get("lang"), stored, r.Header.Get("Accept-Language"))
		sess := s.Sessions.Open(session.Options{Lang: lang, HasGrid: hasGrid, HasMap: true})
		a := sess.App
		a.Bootstrap(r.URL.Query())

		loc := a.Localizer()
		grid, _ := a.Page().Grid()
		if grid == "" {
			grid = render.Skeleton(app.SkeletonCards)
		}
		count := a.Page().Count()
		data := pageData{
			Lang:        loc.Lang(),
			Dir:         loc.Dir(),
			T:           loc.T,
			APIBase:     s.APIBase,
			ResultsPath: search.ResultsPath,
			Languages:   i18n.Supported,
			Query:       a.Query(),
			Grid:        grid,
			Stat:        a.Page().Stat(),
			StatTarget:  count.Target,
			HasGrid:     hasGrid,
			HasMap:      true,
		}
		var buf bytes.Buffer
		if err := pageTmpl.Execute(&buf, data); err != nil {
			logger.L().Error("page_render_error", "err", err)
			http.Error(w, "render error", http.StatusInternalServerError)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     session.CookieName,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		setLangCookie(w, loc.Lang())
		w.Header().Set("content-type", "text/html; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write(buf.Bytes())
	})
}

func setLangCookie(w http.ResponseWriter, lang string) {
	http.SetCookie(w, &http.Cookie{
		Name:     i18n.CookieName,
		Value:    lang,
		Path:     "/",
		MaxAge:   langCookieAge,
		Expires:  time.Now().Add(langCookieAge * time.Second),
		SameSite: http.SameSiteLaxMode,
	})
}
