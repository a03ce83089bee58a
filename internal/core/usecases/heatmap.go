package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/stopgrid/internal/core/domain"
	"github.com/samirrijal/stopgrid/internal/pkg/geospatial"
	"github.com/samirrijal/stopgrid/internal/pkg/metrics"
)

// Heat ramp anchors: near, mid, far. The ramp interpolates linearly inside
// each half-range [0, 0.5) and [0.5, 1] — two segments, not one gradient.
var (
	heatNear = domain.RGB{R: 46, G: 204, B: 113}
	heatMid  = domain.RGB{R: 241, G: 196, B: 15}
	heatFar  = domain.RGB{R: 231, G: 76, B: 60}
)

const (
	heatmapMinSize = 4
	heatmapMaxSize = 96
)

// heatValue normalizes a distance into [0, 1] against maxMeters.
func heatValue(meters, maxMeters float64) float64 {
	if maxMeters <= 0 {
		return 1
	}
	t := meters / maxMeters
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// rampColor maps a heat value through the three-stop ramp.
func rampColor(t float64) domain.RGB {
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	if t < 0.5 {
		return lerpRGB(heatNear, heatMid, t*2)
	}
	return lerpRGB(heatMid, heatFar, (t-0.5)*2)
}

func lerpRGB(a, b domain.RGB, t float64) domain.RGB {
	return domain.RGB{
		R: uint8(float64(a.R) + (float64(b.R)-float64(a.R))*t + 0.5),
		G: uint8(float64(a.G) + (float64(b.G)-float64(a.G))*t + 0.5),
		B: uint8(float64(a.B) + (float64(b.B)-float64(a.B))*t + 0.5),
	}
}

// Heatmap rasterizes an n by n accessibility grid over a square window of
// radiusMeters around the center. Each cell center is queried for its
// nearest-stop distance; unreachable cells carry maximum heat. n is clamped
// to [4, 96]; n <= 0 selects the configured default. Responses are cached per
// snapshot revision.
func (s *AccessibilityService) Heatmap(ctx context.Context, lat, lon, radiusMeters float64, n int) *domain.HeatmapGrid {
	if n <= 0 {
		n = s.cfg.HeatmapDefaultSize
	}
	if n < heatmapMinSize {
		n = heatmapMinSize
	} else if n > heatmapMaxSize {
		n = heatmapMaxSize
	}

	snap := s.current.Load()
	minLat, minLon, maxLat, maxLon := geospatial.Window(lat, lon, radiusMeters)
	grid := &domain.HeatmapGrid{
		Center:       domain.GeoPoint{Lat: lat, Lon: lon},
		RadiusMeters: radiusMeters,
		Size:         n,
		Bounds:       domain.Bounds{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon},
	}
	if snap == nil {
		return grid
	}
	grid.SnapshotRevision = snap.revision

	cacheKey := fmt.Sprintf("access:heatmap:%d:%.4f:%.4f:%.0f:%d", snap.revision, lat, lon, radiusMeters, n)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var cached domain.HeatmapGrid
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached
			}
		}
	}

	ctx, span := otel.Tracer("stopgrid/accessibility").Start(ctx, "heatmap.rasterize")
	defer span.End()
	span.SetAttributes(attribute.Int("cells", n*n))

	latStep := (maxLat - minLat) / float64(n)
	lonStep := (maxLon - minLon) / float64(n)

	grid.Cells = make([]domain.HeatCell, 0, n*n)
	for row := 0; row < n; row++ {
		cellLat := minLat + (float64(row)+0.5)*latStep
		for col := 0; col < n; col++ {
			cellLon := minLon + (float64(col)+0.5)*lonStep

			cell := domain.HeatCell{Center: domain.GeoPoint{Lat: cellLat, Lon: cellLon}}
			if d, ok := snap.index.NearestDistance(cellLat, cellLon); ok {
				meters := d
				cell.Meters = &meters
				cell.Heat = heatValue(d, s.cfg.HeatMaxMeters)
			} else {
				cell.Heat = 1
			}
			cell.Color = rampColor(cell.Heat)
			grid.Cells = append(grid.Cells, cell)
		}
	}
	metrics.HeatmapCellsEvaluated.Add(float64(n * n))

	if s.cache != nil {
		if data, err := json.Marshal(grid); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 300)
		}
	}
	return grid
}
