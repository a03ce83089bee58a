package usecases

import (
	"context"
	"math"
	"testing"

	"github.com/samirrijal/stopgrid/internal/core/domain"
)

func TestHeatValue(t *testing.T) {
	cases := []struct {
		meters, max, want float64
	}{
		{0, 2000, 0},
		{1000, 2000, 0.5},
		{2000, 2000, 1},
		{5000, 2000, 1},  // clamped high
		{-100, 2000, 0},  // clamped low
		{100, 0, 1},      // degenerate max
	}
	for _, c := range cases {
		if got := heatValue(c.meters, c.max); math.Abs(got-c.want) > 1e-12 {
			t.Errorf("heatValue(%f, %f) = %f, want %f", c.meters, c.max, got, c.want)
		}
	}
}

func TestRampColor_Anchors(t *testing.T) {
	if got := rampColor(0); got != heatNear {
		t.Errorf("t=0 must be the near anchor, got %+v", got)
	}
	if got := rampColor(0.5); got != heatMid {
		t.Errorf("t=0.5 must be the mid anchor, got %+v", got)
	}
	if got := rampColor(1); got != heatFar {
		t.Errorf("t=1 must be the far anchor, got %+v", got)
	}
}

func TestRampColor_TwoSegments(t *testing.T) {
	// Quarter points must be midpoints of their segment, not of the whole
	// ramp: the interpolation is piecewise over [0,0.5) and [0.5,1].
	q1 := rampColor(0.25)
	wantQ1 := lerpRGB(heatNear, heatMid, 0.5)
	if q1 != wantQ1 {
		t.Errorf("t=0.25: got %+v, want %+v", q1, wantQ1)
	}

	q3 := rampColor(0.75)
	wantQ3 := lerpRGB(heatMid, heatFar, 0.5)
	if q3 != wantQ3 {
		t.Errorf("t=0.75: got %+v, want %+v", q3, wantQ3)
	}

	if q1 == q3 {
		t.Error("quarter points of different segments must differ")
	}
}

func TestRampColor_Clamps(t *testing.T) {
	if rampColor(-1) != heatNear || rampColor(2) != heatFar {
		t.Error("out-of-range heat must clamp to the end anchors")
	}
}

func TestHeatmap_GridShape(t *testing.T) {
	repo := &stubStopRepo{stops: []domain.Stop{
		{ID: "center", Location: domain.GeoPoint{Lat: 43.263, Lon: -2.935}},
	}}
	svc := NewAccessibilityService(repo, nil, nil, DefaultConfig())
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	grid := svc.Heatmap(context.Background(), 43.263, -2.935, 2000, 8)
	if grid.Size != 8 {
		t.Fatalf("expected size 8, got %d", grid.Size)
	}
	if len(grid.Cells) != 64 {
		t.Fatalf("expected 64 cells, got %d", len(grid.Cells))
	}
	if grid.Bounds.MinLat >= grid.Bounds.MaxLat || grid.Bounds.MinLon >= grid.Bounds.MaxLon {
		t.Error("bounds must be a proper extent")
	}

	for i, cell := range grid.Cells {
		if cell.Heat < 0 || cell.Heat > 1 {
			t.Fatalf("cell %d heat out of range: %f", i, cell.Heat)
		}
		if cell.Meters == nil {
			t.Fatalf("cell %d should reach the stop at this scale", i)
		}
	}

	// Cells near the center sit close to the single stop; corner cells do
	// not. Heat must reflect that ordering.
	center := grid.Cells[8*4+4]
	corner := grid.Cells[0]
	if center.Heat >= corner.Heat {
		t.Errorf("center heat %f should be below corner heat %f", center.Heat, corner.Heat)
	}
}

func TestHeatmap_SizeClampAndDefault(t *testing.T) {
	repo := &stubStopRepo{stops: []domain.Stop{
		{ID: "a", Location: domain.GeoPoint{Lat: 43.263, Lon: -2.935}},
	}}
	svc := NewAccessibilityService(repo, nil, nil, DefaultConfig())
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	if grid := svc.Heatmap(context.Background(), 43.263, -2.935, 1000, 0); grid.Size != 24 {
		t.Errorf("n=0 must use the default size, got %d", grid.Size)
	}
	if grid := svc.Heatmap(context.Background(), 43.263, -2.935, 1000, 2); grid.Size != heatmapMinSize {
		t.Errorf("n=2 must clamp to %d, got %d", heatmapMinSize, grid.Size)
	}
	if grid := svc.Heatmap(context.Background(), 43.263, -2.935, 1000, 500); grid.Size != heatmapMaxSize {
		t.Errorf("n=500 must clamp to %d, got %d", heatmapMaxSize, grid.Size)
	}
}

func TestHeatmap_NoSnapshot(t *testing.T) {
	svc := NewAccessibilityService(&stubStopRepo{}, nil, nil, DefaultConfig())

	grid := svc.Heatmap(context.Background(), 43.263, -2.935, 1000, 8)
	if len(grid.Cells) != 0 {
		t.Error("heatmap without a snapshot must carry no cells")
	}
	if grid.SnapshotRevision != 0 {
		t.Error("heatmap without a snapshot must report revision 0")
	}
}

// stubStopRepo is the in-package variant of the usecases_test mock, for tests
// that need access to unexported ramp helpers.
type stubStopRepo struct {
	stops []domain.Stop
}

func (s *stubStopRepo) Upsert(ctx context.Context, st *domain.Stop) error        { return nil }
func (s *stubStopRepo) UpsertBatch(ctx context.Context, st []domain.Stop) error  { return nil }
func (s *stubStopRepo) GetByID(ctx context.Context, id string) (*domain.Stop, error) {
	return nil, nil
}
func (s *stubStopRepo) ListAll(ctx context.Context) ([]domain.Stop, error) { return s.stops, nil }
func (s *stubStopRepo) List(ctx context.Context, offset, limit int) ([]domain.Stop, int, error) {
	return nil, 0, nil
}
func (s *stubStopRepo) Count(ctx context.Context) (int, error) { return len(s.stops), nil }
