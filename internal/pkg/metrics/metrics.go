package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stopgrid",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stopgrid",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stopgrid",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Snapshot / index metrics
	SnapshotRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stopgrid",
		Subsystem: "index",
		Name:      "snapshot_rebuilds_total",
		Help:      "Total proximity index rebuilds",
	})

	SnapshotRebuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "stopgrid",
		Subsystem: "index",
		Name:      "snapshot_rebuild_duration_seconds",
		Help:      "Duration of proximity index rebuilds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	SnapshotStops = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "stopgrid",
		Subsystem: "index",
		Name:      "snapshot_stops",
		Help:      "Stops in the snapshot currently serving queries",
	})

	IndexQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stopgrid",
		Subsystem: "index",
		Name:      "queries_total",
		Help:      "Total index queries by kind",
	}, []string{"kind"})

	SearchBoundExceeded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stopgrid",
		Subsystem: "index",
		Name:      "search_bound_exceeded_total",
		Help:      "Queries that hit the ring-expansion cap without a result",
	})

	HeatmapCellsEvaluated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stopgrid",
		Subsystem: "index",
		Name:      "heatmap_cells_evaluated_total",
		Help:      "Total heatmap raster cells evaluated",
	})

	// Ingest metrics
	StopsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stopgrid",
		Subsystem: "ingest",
		Name:      "stops_ingested_total",
		Help:      "Total stops upserted by the ingestor",
	}, []string{"agency"})

	// Cache metrics
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stopgrid",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stopgrid",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// WebSocket metrics
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "stopgrid",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving the Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}
