package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TileRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "whisker_tile_requests_total",
		Help: "Tile fetches started, by source",
	}, []string{"source"})
	TileFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "whisker_tile_failures_total",
		Help: "Tile fetch or decode failures, by source",
	}, []string{"source"})
	TileFallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "whisker_tile_fallbacks_total",
		Help: "Tiles served by the fallback source after the primary failed",
	})
	TileFetchDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "whisker_tile_fetch_duration_ms",
		Help:    "Tile fetch and decode duration in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 200, 500, 1000, 2000, 5000},
	})
	TileCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "whisker_tile_cache_hits_total",
		Help: "Tile requests answered by an existing cache entry",
	})
	TileCacheEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "whisker_tile_cache_evictions_total",
		Help: "Tile cache entries evicted over capacity",
	})
	FrameRenderDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "whisker_frame_render_duration_ms",
		Help:    "Map frame composite duration in milliseconds",
		Buckets: []float64{1, 2, 5, 10, 16, 33, 50, 100, 250},
	})
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "whisker_sessions_active",
		Help: "Open map sessions",
	})
	ViewportSavesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "whisker_viewport_saves_total",
		Help: "Persisted viewport writes by result",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(TileRequestsTotal)
	prometheus.MustRegister(TileFailuresTotal)
	prometheus.MustRegister(TileFallbacksTotal)
	prometheus.MustRegister(TileFetchDurationMs)
	prometheus.MustRegister(TileCacheHitsTotal)
	prometheus.MustRegister(TileCacheEvictionsTotal)
	prometheus.MustRegister(FrameRenderDurationMs)
	prometheus.MustRegister(ActiveSessions)
	prometheus.MustRegister(ViewportSavesTotal)
}

// Handler exposes the registered collectors for scraping on /metrics
func Handler() http.Handler { return promhttp.Handler() }
