package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/stopgrid/internal/core/domain"
	"github.com/samirrijal/stopgrid/internal/core/ports"
	"github.com/samirrijal/stopgrid/internal/core/proximity"
	"github.com/samirrijal/stopgrid/internal/pkg/metrics"
)

// Config tunes the accessibility service and the index it builds.
type Config struct {
	Index proximity.Config

	// SummaryRadii are the fixed radii (meters) reported by Summary.
	SummaryRadii []float64

	// HeatMaxMeters is the distance mapped to maximum heat.
	HeatMaxMeters float64

	// HeatmapDefaultSize is the N used when a caller does not pick one.
	HeatmapDefaultSize int
}

// DefaultConfig returns the service tuning used when none is supplied.
func DefaultConfig() Config {
	return Config{
		Index:              proximity.DefaultConfig(),
		SummaryRadii:       []float64{500, 1000, 2000},
		HeatMaxMeters:      2000,
		HeatmapDefaultSize: 24,
	}
}

func (c Config) withDefaults() Config {
	if len(c.SummaryRadii) == 0 {
		c.SummaryRadii = []float64{500, 1000, 2000}
	}
	if c.HeatMaxMeters <= 0 {
		c.HeatMaxMeters = 2000
	}
	if c.HeatmapDefaultSize <= 0 {
		c.HeatmapDefaultSize = 24
	}
	return c
}

// snapshot pairs an immutable index with its provenance. A rebuild creates a
// new snapshot and publishes it with a single pointer swap; queries running
// against the previous snapshot are never blocked or torn.
type snapshot struct {
	index    *proximity.Index
	revision uint64
	builtAt  time.Time
	buildDur time.Duration
}

// AccessibilityService answers stop-accessibility queries against the most
// recently built stop snapshot.
type AccessibilityService struct {
	stops     ports.StopRepository
	cache     ports.CacheService
	publisher ports.EventPublisher
	cfg       Config

	current  atomic.Pointer[snapshot]
	revision atomic.Uint64
}

// NewAccessibilityService creates a new AccessibilityService. cache and
// publisher may be nil; the service degrades to uncached, unannounced
// operation.
func NewAccessibilityService(stops ports.StopRepository, cache ports.CacheService, publisher ports.EventPublisher, cfg Config) *AccessibilityService {
	return &AccessibilityService{
		stops:     stops,
		cache:     cache,
		publisher: publisher,
		cfg:       cfg.withDefaults(),
	}
}

// Refresh loads the full stop inventory, builds a fresh index, and swaps it
// in atomically. Queries keep hitting the previous snapshot until the swap.
func (s *AccessibilityService) Refresh(ctx context.Context) error {
	ctx, span := otel.Tracer("stopgrid/accessibility").Start(ctx, "snapshot.refresh")
	defer span.End()

	stops, err := s.stops.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list stops: %w", err)
	}

	points := make([]proximity.Point, len(stops))
	for i, st := range stops {
		points[i] = proximity.Point{ID: st.ID, Lat: st.Location.Lat, Lon: st.Location.Lon}
	}

	start := time.Now()
	idx := proximity.New(points, s.cfg.Index)
	buildDur := time.Since(start)

	snap := &snapshot{
		index:    idx,
		revision: s.revision.Add(1),
		builtAt:  time.Now(),
		buildDur: buildDur,
	}
	s.current.Store(snap)

	span.SetAttributes(
		attribute.Int("stops", idx.Len()),
		attribute.Int64("revision", int64(snap.revision)),
	)
	metrics.SnapshotRebuilds.Inc()
	metrics.SnapshotRebuildDuration.Observe(buildDur.Seconds())
	metrics.SnapshotStops.Set(float64(idx.Len()))

	if s.publisher != nil {
		_ = s.publisher.PublishSnapshotRefreshed(ctx, &domain.SnapshotRefreshed{
			Revision: snap.revision,
			Stops:    idx.Len(),
			BuiltAt:  snap.builtAt,
		})
	}
	return nil
}

// Snapshot reports the snapshot currently serving queries, or false when no
// rebuild has completed yet.
func (s *AccessibilityService) Snapshot() (*domain.SnapshotInfo, bool) {
	snap := s.current.Load()
	if snap == nil {
		return nil, false
	}
	return &domain.SnapshotInfo{
		Revision:       snap.revision,
		Stops:          snap.index.Len(),
		CellSizeMeters: snap.index.CellSize(),
		BuiltAt:        snap.builtAt,
		BuildDuration:  snap.buildDur.String(),
	}, true
}

// Nearest returns the distance in meters to the closest stop, or nil when
// there is none (empty inventory, no snapshot yet, or search bound exceeded).
// Absence of data is an expected condition, never an error.
func (s *AccessibilityService) Nearest(ctx context.Context, lat, lon float64) *float64 {
	snap := s.current.Load()
	if snap == nil {
		return nil
	}
	metrics.IndexQueries.WithLabelValues("nearest").Inc()

	d, ok := snap.index.NearestDistance(lat, lon)
	if !ok {
		if snap.index.Len() > 0 {
			metrics.SearchBoundExceeded.Inc()
		}
		return nil
	}
	return &d
}

// KNearest returns up to k stops ascending by distance. k is clamped by the
// index configuration.
func (s *AccessibilityService) KNearest(ctx context.Context, lat, lon float64, k int) []proximity.Neighbor {
	snap := s.current.Load()
	if snap == nil {
		return nil
	}
	metrics.IndexQueries.WithLabelValues("knearest").Inc()
	return snap.index.KNearest(lat, lon, k)
}

// CountWithin returns the number of stops within radiusMeters.
func (s *AccessibilityService) CountWithin(ctx context.Context, lat, lon, radiusMeters float64) int {
	snap := s.current.Load()
	if snap == nil {
		return 0
	}
	metrics.IndexQueries.WithLabelValues("count").Inc()
	return snap.index.CountWithinRadius(lat, lon, radiusMeters)
}

// Summary computes the nearest-stop distance plus counts at the fixed summary
// radii. Results are cached per snapshot revision; stale entries age out with
// their TTL since keys embed the revision.
func (s *AccessibilityService) Summary(ctx context.Context, lat, lon float64) *domain.AccessibilitySummary {
	snap := s.current.Load()
	if snap == nil {
		return &domain.AccessibilitySummary{Location: domain.GeoPoint{Lat: lat, Lon: lon}}
	}

	cacheKey := fmt.Sprintf("access:summary:%d:%.4f:%.4f", snap.revision, lat, lon)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var sum domain.AccessibilitySummary
			if err := json.Unmarshal(data, &sum); err == nil {
				return &sum
			}
		}
	}

	sum := &domain.AccessibilitySummary{
		Location:          domain.GeoPoint{Lat: lat, Lon: lon},
		NearestStopMeters: s.Nearest(ctx, lat, lon),
		SnapshotRevision:  snap.revision,
	}
	for _, r := range s.cfg.SummaryRadii {
		sum.Counts = append(sum.Counts, domain.RadiusCount{
			RadiusMeters: r,
			Count:        snap.index.CountWithinRadius(lat, lon, r),
		})
	}

	if s.cache != nil {
		if data, err := json.Marshal(sum); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 300)
		}
	}
	return sum
}
