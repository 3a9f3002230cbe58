// Entry point: reads configuration, wires the dependencies and serves the
// directory pages and API. Routes live in internal/api.
package main

import (
	"context"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/benjaminillouz/cemedis-website/internal/api"
	"github.com/benjaminillouz/cemedis-website/internal/app"
	"github.com/benjaminillouz/cemedis-website/internal/config"
	"github.com/benjaminillouz/cemedis-website/internal/geoloc"
	"github.com/benjaminillouz/cemedis-website/internal/i18n"
	"github.com/benjaminillouz/cemedis-website/internal/logger"
	"github.com/benjaminillouz/cemedis-website/internal/mapview"
	"github.com/benjaminillouz/cemedis-website/internal/metrics"
	"github.com/benjaminillouz/cemedis-website/internal/middleware"
	"github.com/benjaminillouz/cemedis-website/internal/migrate"
	"github.com/benjaminillouz/cemedis-website/internal/session"
	"github.com/benjaminillouz/cemedis-website/internal/source"
	"github.com/benjaminillouz/cemedis-website/internal/store"
	"github.com/benjaminillouz/cemedis-website/internal/utils"
	"github.com/benjaminillouz/cemedis-website/internal/version"
	"github.com/benjaminillouz/cemedis-website/pkg/origindefense"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()
	l.Debug("log_init_ok")
	cfg := config.FromEnv()
	l.Debug("config_api_base", "base", cfg.APIBase)

	// Postgres keeps the load history; the site works without it.
	var st *store.Store
	var observer app.LoadObserver
	if cfg.PG {
		db, err := utils.OpenPostgresFromEnv()
		if err != nil {
			l.Error("db_open_error", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			l.Error("db_ping_error", "err", err)
		} else {
			l.Info("db_ping_ok")
		}
		if err := migrate.EnsureSchema(db); err != nil {
			l.Error("schema_error", "err", err)
			os.Exit(1)
		}
		st = store.AttachDB(db)
		observer = st
	} else {
		l.Info("db_disabled")
	}

	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("redis_disabled")
	} else if err := rc.Ping(context.Background()).Err(); err != nil {
		l.Error("redis_ping_error", "err", err)
	} else {
		l.Info("redis_ping_ok")
	}

	inner, err := source.New(cfg.Source)
	if err != nil {
		l.Error("source_config_error", "kind", cfg.Source.Kind, "err", err)
		os.Exit(1)
	}
	fetcher := source.NewCached(inner, rc, cfg.CacheTTL)
	l.Info("source_ready", "kind", inner.Name(), "cache_ttl_s", int(cfg.CacheTTL/time.Second))
	if rc != nil && cfg.Refresh > 0 {
		source.StartRefresher(context.Background(), fetcher, cfg.Refresh)
		l.Info("source_refresh_enabled", "period_s", int(cfg.Refresh/time.Second))
	}

	var locales fs.FS = i18n.Embedded()
	if cfg.I18nDir != "" {
		locales = os.DirFS(cfg.I18nDir)
		l.Debug("config_i18n_dir", "dir", cfg.I18nDir)
	}
	catalog := i18n.NewCatalog(locales)

	// One SDK load for the process; every session engine waits on it.
	var ready *mapview.Readiness
	if cfg.Map.Engine == mapview.KindCommercial {
		loader := mapview.HTTPSDKLoader{
			URL:    cfg.Map.SDKURL,
			Key:    cfg.Map.SDKKey,
			Client: &http.Client{Timeout: 10 * time.Second},
		}
		ready = mapview.StartSDK(context.Background(), loader)
	}
	engineCfg := mapview.EngineConfig{
		Kind:     cfg.Map.Engine,
		TileURL:  cfg.Map.TileURL,
		SDKURL:   cfg.Map.SDKURL,
		Ready:    ready,
		Attempts: cfg.Map.Attempts,
		Interval: cfg.Map.Interval,
	}
	if _, err := mapview.NewEngine(engineCfg); err != nil {
		l.Error("map_config_error", "engine", cfg.Map.Engine, "err", err)
		os.Exit(1)
	}
	l.Info("map_engine", "engine", cfg.Map.Engine)

	// CDN position headers are only trusted when the CDN is the sole way in.
	guard := origindefense.NewFromEnv(context.Background(), l)
	var fallbacks []geoloc.Locator
	if cfg.GeoIP != "" {
		g, err := geoloc.OpenGeoIP(cfg.GeoIP, 4096, time.Hour)
		if err != nil {
			l.Error("geoip_open_error", "path", cfg.GeoIP, "err", err)
		} else {
			defer g.Close()
			fallbacks = append(fallbacks, g)
			l.Info("geoip_ready", "path", cfg.GeoIP)
		}
	}
	locator := geoloc.NewChain(guard.Enabled(), fallbacks...)
	l.Debug("locator_chain", "edge", guard.Enabled(), "geoip", len(fallbacks) > 0)

	retryPath := strings.TrimSuffix(cfg.APIBase, "/") + "/retry"
	sessions := session.NewManager(cfg.Sessions.Max, cfg.Sessions.TTL, func(opts session.Options) *app.App {
		d := app.Deps{
			Fetcher:   fetcher,
			Locator:   locator,
			Localizer: catalog.Localizer(opts.Lang),
			Observer:  observer,
			RetryPath: retryPath,
			HasGrid:   opts.HasGrid,
		}
		if opts.HasMap {
			// validated above
			d.Engine, _ = mapview.NewEngine(engineCfg)
		}
		return app.New(d)
	})
	defer sessions.Close()

	srv := &api.Server{Sessions: sessions, Catalog: catalog, APIBase: cfg.APIBase}
	if st != nil {
		srv.Totals = st
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.APIBase+"/metrics", metrics.Handler())
	srv.Mount(mux)

	// expose runtime settings to the page scripts
	mux.HandleFunc("/config.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/javascript; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write([]byte("window.__API_BASE__='" + cfg.APIBase + "'\n"))
		_, _ = w.Write([]byte("window.__MAP_ENGINE__='" + cfg.Map.Engine + "'\n"))
		_, _ = w.Write([]byte("window.__MAP_SDK_URL__='" + cfg.Map.SDKURL + "'\n"))
		_, _ = w.Write([]byte("window.__COMMIT_SHA__='" + version.Commit + "'"))
	})

	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler)
	handler = guard.Wrap(handler)
	s := &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	if cfg.TLS.Enabled {
		if err := utils.EnsureSelfSignedCert(cfg.TLS.CertPath, cfg.TLS.KeyPath, "cemedis.local"); err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		}
		if os.Getenv("TLS_REDIRECT_ENABLE") == "true" {
			go serveRedirect(cfg.Addr)
		}
		l.Info("listening_tls", "addr", cfg.Addr, "cert", cfg.TLS.CertPath)
		if err := s.ListenAndServeTLS(cfg.TLS.CertPath, cfg.TLS.KeyPath); err != nil {
			l.Error("server_error", "err", err)
		}
		return
	}
	l.Info("listening", "addr", cfg.Addr)
	if err := s.ListenAndServe(); err != nil {
		l.Error("server_error", "err", err)
	}
}

// serveRedirect answers plain HTTP with a redirect to the HTTPS port.
func serveRedirect(httpsAddr string) {
	l := logger.L()
	redirAddr := os.Getenv("TLS_REDIRECT_ADDR")
	if redirAddr == "" {
		redirAddr = ":80"
	}
	httpsPort := strings.TrimPrefix(httpsAddr, ":")
	redir := http.NewServeMux()
	redir.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if i := strings.LastIndex(host, ":"); i != -1 {
			host = host[:i]
		}
		if httpsPort != "" {
			host += ":" + httpsPort
		}
		target := "https://" + host + r.URL.RequestURI()
		http.Redirect(w, r, target, http.StatusMovedPermanently)
		l.Debug("http_redirect", "from", r.Host, "to", target)
	})
	l.Info("http_redirect_listening", "addr", redirAddr, "to", "https"+httpsAddr)
	_ = http.ListenAndServe(redirAddr, logger.AccessMiddleware(l)(redir))
}
