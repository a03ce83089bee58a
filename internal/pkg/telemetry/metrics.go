package telemetry

// SLI metric names used for instrumentation.
const (
	// Latency
	MetricAPILatencyP50 = "api.latency.p50"
	MetricAPILatencyP95 = "api.latency.p95"
	MetricAPILatencyP99 = "api.latency.p99"

	// Throughput
	MetricRequestsPerSec = "api.requests_per_second"

	// Data freshness
	MetricSnapshotAge     = "index.snapshot_age_seconds"
	MetricSnapshotRebuild = "index.rebuild_duration"

	// Availability
	MetricUptime = "service.uptime_percentage"

	// Business
	MetricHeatmapRenders = "business.heatmaps_rendered"
	MetricStopsIndexed   = "business.stops_indexed"
)
