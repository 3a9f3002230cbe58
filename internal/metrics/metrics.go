package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cemedis_requests_total",
		Help: "Total HTTP requests by route",
	}, []string{"route"})
	RequestDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cemedis_request_duration_ms",
		Help:    "Request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	LoadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cemedis_loads_total",
		Help: "Total center collection loads started",
	})
	LoadFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cemedis_load_fail_total",
		Help: "Total failed loads by reason (network, status, decode)",
	}, []string{"reason"})
	LoadStaleTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cemedis_load_stale_total",
		Help: "Load results discarded because a newer load was issued",
	})
	LoadDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cemedis_load_duration_ms",
		Help:    "Collection fetch duration in milliseconds",
		Buckets: []float64{5, 20, 50, 100, 200, 500, 1000, 2000, 5000},
	})
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cemedis_cache_hits_total",
		Help: "Total redis payload cache hits",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cemedis_cache_misses_total",
		Help: "Total redis payload cache misses",
	})
	SearchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cemedis_searches_total",
		Help: "Search requests by mode (live, submit, bootstrap) and outcome (applied, dropped)",
	}, []string{"mode", "outcome"})
	LocateTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cemedis_locate_total",
		Help: "Geolocation requests by outcome",
	}, []string{"outcome"})
	MarkersSynced = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cemedis_markers_synced",
		Help:    "Markers placed per map sync",
		Buckets: []float64{0, 1, 5, 10, 20, 50, 100, 200},
	})
	MapReadyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cemedis_map_ready_total",
		Help: "Map engine initialization outcomes by engine and status",
	}, []string{"engine", "status"})
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cemedis_sessions_active",
		Help: "Page sessions currently held",
	})
	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cemedis_rate_limited_total",
		Help: "Requests rejected by the token bucket",
	})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(LoadsTotal)
	prometheus.MustRegister(LoadFailTotal)
	prometheus.MustRegister(LoadStaleTotal)
	prometheus.MustRegister(LoadDurationMs)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(SearchesTotal)
	prometheus.MustRegister(LocateTotal)
	prometheus.MustRegister(MarkersSynced)
	prometheus.MustRegister(MapReadyTotal)
	prometheus.MustRegister(SessionsActive)
	prometheus.MustRegister(RateLimitedTotal)
}

// Handler exposes every registered collector for scraping; mounted under
// {API_BASE}/metrics by the entry point.
func Handler() http.Handler { return promhttp.Handler() }
