package proximity

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/samirrijal/stopgrid/internal/pkg/geospatial"
)

const floatTol = 1e-6

// randomStops spreads n points over a ~20 km box around central Bilbao.
func randomStops(rng *rand.Rand, n int) []Point {
	pts := make([]Point, n)
	for i := range pts {
		pts[i] = Point{
			ID:  fmt.Sprintf("stop-%d", i),
			Lat: 43.20 + rng.Float64()*0.18,
			Lon: -3.05 + rng.Float64()*0.24,
		}
	}
	return pts
}

// bruteNearest is the reference implementation: a linear scan over projected
// Euclidean distances.
func bruteNearest(points []Point, lat, lon float64) (float64, bool) {
	if len(points) == 0 {
		return 0, false
	}
	qx, qy := geospatial.Project(lat, lon)
	best := math.MaxFloat64
	for _, p := range points {
		x, y := geospatial.Project(p.Lat, p.Lon)
		if d := math.Hypot(x-qx, y-qy); d < best {
			best = d
		}
	}
	return best, true
}

func bruteCount(points []Point, lat, lon, radius float64) int {
	qx, qy := geospatial.Project(lat, lon)
	n := 0
	for _, p := range points {
		x, y := geospatial.Project(p.Lat, p.Lon)
		if math.Hypot(x-qx, y-qy) <= radius {
			n++
		}
	}
	return n
}

func bruteSortedDistances(points []Point, lat, lon float64) []float64 {
	qx, qy := geospatial.Project(lat, lon)
	ds := make([]float64, len(points))
	for i, p := range points {
		x, y := geospatial.Project(p.Lat, p.Lon)
		ds[i] = math.Hypot(x-qx, y-qy)
	}
	sort.Float64s(ds)
	return ds
}

func TestNearestDistance_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	points := randomStops(rng, 2000)
	idx := New(points, DefaultConfig())

	for i := 0; i < 200; i++ {
		lat := 43.20 + rng.Float64()*0.18
		lon := -3.05 + rng.Float64()*0.24

		got, ok := idx.NearestDistance(lat, lon)
		want, _ := bruteNearest(points, lat, lon)
		if !ok {
			t.Fatalf("query %d: expected a result, got none", i)
		}
		if math.Abs(got-want) > floatTol {
			t.Fatalf("query %d: nearest %f, brute force %f", i, got, want)
		}
	}
}

func TestNearestDistance_NeighborAcrossCellEdge(t *testing.T) {
	// A query just inside a cell edge, with a far point in its home cell and
	// a much closer point across the edge in ring 1. The near point must win:
	// ring r holds points as close as (r-1)*cellSize, so the search may only
	// stop once that floor exceeds the best distance found so far.
	lonAt := func(xMeters float64) float64 {
		return xMeters / 6378137.0 * 180 / math.Pi
	}
	points := []Point{
		{ID: "home-far", Lat: 0, Lon: lonAt(500)},
		{ID: "edge-near", Lat: 0, Lon: lonAt(901)},
	}
	idx := New(points, Config{CellSizeMeters: 900})

	d, ok := idx.NearestDistance(0, lonAt(899.5))
	if !ok {
		t.Fatal("expected a nearest result")
	}
	if math.Abs(d-1.5) > 0.01 {
		t.Errorf("expected ~1.5 m across the cell edge, got %f", d)
	}

	nn := idx.KNearest(0, lonAt(899.5), 2)
	if len(nn) != 2 {
		t.Fatalf("expected 2 neighbors, got %d", len(nn))
	}
	if nn[0].ID != "edge-near" || nn[1].ID != "home-far" {
		t.Errorf("expected [edge-near home-far], got [%s %s]", nn[0].ID, nn[1].ID)
	}
}

func TestCountWithinRadius_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	points := randomStops(rng, 1500)
	idx := New(points, DefaultConfig())

	radii := []float64{0, 50, 500, 1000, 2000, 5000}
	for i := 0; i < 50; i++ {
		lat := 43.20 + rng.Float64()*0.18
		lon := -3.05 + rng.Float64()*0.24
		for _, r := range radii {
			got := idx.CountWithinRadius(lat, lon, r)
			want := bruteCount(points, lat, lon, r)
			if got != want {
				t.Fatalf("query %d radius %f: count %d, brute force %d", i, r, got, want)
			}
		}
	}
}

func TestKNearest_MatchesBruteForcePrefix(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	points := randomStops(rng, 800)
	idx := New(points, DefaultConfig())

	for i := 0; i < 50; i++ {
		lat := 43.20 + rng.Float64()*0.18
		lon := -3.05 + rng.Float64()*0.24
		k := 1 + rng.Intn(16)

		got := idx.KNearest(lat, lon, k)
		if len(got) != k {
			t.Fatalf("query %d: expected %d results, got %d", i, k, len(got))
		}

		for j := 1; j < len(got); j++ {
			if got[j].Meters < got[j-1].Meters {
				t.Fatalf("query %d: results not sorted at %d: %f < %f", i, j, got[j].Meters, got[j-1].Meters)
			}
		}

		want := bruteSortedDistances(points, lat, lon)
		for j, n := range got {
			if math.Abs(n.Meters-want[j]) > floatTol {
				t.Fatalf("query %d rank %d: distance %f, brute force %f", i, j, n.Meters, want[j])
			}
		}
	}
}

func TestKNearest_Clamping(t *testing.T) {
	points := randomStops(rand.New(rand.NewSource(1)), 100)
	idx := New(points, DefaultConfig())

	if got := idx.KNearest(43.26, -2.93, 0); len(got) != 1 {
		t.Errorf("k=0 must clamp to 1, got %d results", len(got))
	}
	if got := idx.KNearest(43.26, -2.93, -5); len(got) != 1 {
		t.Errorf("k=-5 must clamp to 1, got %d results", len(got))
	}
	if got := idx.KNearest(43.26, -2.93, 999); len(got) != defaultMaxK {
		t.Errorf("k=999 must clamp to %d, got %d results", defaultMaxK, len(got))
	}
}

func TestKNearest_FewerPointsThanK(t *testing.T) {
	points := []Point{
		{ID: "a", Lat: 43.263, Lon: -2.935},
		{ID: "b", Lat: 43.264, Lon: -2.934},
		{ID: "c", Lat: 43.265, Lon: -2.933},
	}
	idx := New(points, DefaultConfig())

	got := idx.KNearest(43.263, -2.935, 10)
	if len(got) != 3 {
		t.Fatalf("expected all 3 points, got %d", len(got))
	}
	if got[0].ID != "a" {
		t.Errorf("expected a first, got %s", got[0].ID)
	}
}

func TestEmptyIndex(t *testing.T) {
	idx := New(nil, DefaultConfig())

	if idx.Len() != 0 {
		t.Errorf("expected empty index, len %d", idx.Len())
	}
	if _, ok := idx.NearestDistance(43.26, -2.93); ok {
		t.Error("nearest on empty index must report no result")
	}
	if n := idx.CountWithinRadius(43.26, -2.93, 1000); n != 0 {
		t.Errorf("count on empty index must be 0, got %d", n)
	}
	if got := idx.KNearest(43.26, -2.93, 5); len(got) != 0 {
		t.Errorf("k-nearest on empty index must be empty, got %d", len(got))
	}
}

func TestRebuildDeterminism(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	points := randomStops(rng, 500)

	a := New(points, DefaultConfig())
	b := New(points, DefaultConfig())

	for i := 0; i < 30; i++ {
		lat := 43.20 + rng.Float64()*0.18
		lon := -3.05 + rng.Float64()*0.24

		da, oka := a.NearestDistance(lat, lon)
		db, okb := b.NearestDistance(lat, lon)
		if oka != okb || da != db {
			t.Fatalf("rebuild mismatch at query %d: (%f,%v) vs (%f,%v)", i, da, oka, db, okb)
		}

		ka := a.KNearest(lat, lon, 8)
		kb := b.KNearest(lat, lon, 8)
		if len(ka) != len(kb) {
			t.Fatalf("rebuild k-nearest length mismatch at query %d", i)
		}
		for j := range ka {
			if ka[j] != kb[j] {
				t.Fatalf("rebuild k-nearest mismatch at query %d rank %d", i, j)
			}
		}
	}
}

func TestScenario_TwoBrisbaneStops(t *testing.T) {
	points := []Point{
		{ID: "A", Lat: -27.4698, Lon: 153.0251},
		{ID: "B", Lat: -27.4700, Lon: 153.0260},
	}
	idx := New(points, Config{CellSizeMeters: 900})

	d, ok := idx.NearestDistance(-27.4698, 153.0251)
	if !ok {
		t.Fatal("expected a nearest result")
	}
	if d > 1 {
		t.Errorf("query at A must be ~0 m away, got %f", d)
	}

	nn := idx.KNearest(-27.4698, 153.0251, 2)
	if len(nn) != 2 {
		t.Fatalf("expected 2 neighbors, got %d", len(nn))
	}
	if nn[0].ID != "A" || nn[1].ID != "B" {
		t.Errorf("expected [A B], got [%s %s]", nn[0].ID, nn[1].ID)
	}
	// A to B is roughly 100 m on the ground; the planar figure carries the
	// Mercator latitude inflation (~1/cos(27.47) = 1.13) on top.
	if nn[1].Meters < 80 || nn[1].Meters > 150 {
		t.Errorf("expected B ~100 m away, got %f", nn[1].Meters)
	}

	if n := idx.CountWithinRadius(-27.4698, 153.0251, 50); n != 1 {
		t.Errorf("expected only A within 50 m, got %d", n)
	}
}

func TestSearchBound_SinglePointFarAway(t *testing.T) {
	// One stop, queried from ~50 km away. 50 km exceeds the 24-ring cap at
	// 900 m cells (~21.6 km), so the documented behavior is "no result".
	idx := New([]Point{{ID: "lone", Lat: -27.4698, Lon: 153.0251}}, DefaultConfig())

	if _, ok := idx.NearestDistance(-27.92, 153.0251); ok {
		t.Error("query beyond the ring cap must report no result")
	}
	if got := idx.KNearest(-27.92, 153.0251, 1); len(got) != 0 {
		t.Errorf("k-nearest beyond the ring cap must be empty, got %d", len(got))
	}

	// The same stop is reachable when the cap covers the gap.
	wide := New([]Point{{ID: "lone", Lat: -27.4698, Lon: 153.0251}}, Config{CellSizeMeters: 900, MaxRings: 80})
	if _, ok := wide.NearestDistance(-27.92, 153.0251); !ok {
		t.Error("raising the ring cap must make the lone stop reachable")
	}
}

func TestCountWithinRadius_NegativeRadius(t *testing.T) {
	idx := New([]Point{{ID: "a", Lat: 43.263, Lon: -2.935}}, DefaultConfig())
	if n := idx.CountWithinRadius(43.263, -2.935, -1); n != 0 {
		t.Errorf("negative radius must count 0, got %d", n)
	}
}

func TestConfigDefaults(t *testing.T) {
	idx := New(nil, Config{})
	if idx.CellSize() != defaultCellSizeMeters {
		t.Errorf("zero config must default cell size, got %f", idx.CellSize())
	}
	if idx.cfg.MaxRings != defaultMaxRings || idx.cfg.MaxK != defaultMaxK {
		t.Errorf("zero config must default rings/k, got %d/%d", idx.cfg.MaxRings, idx.cfg.MaxK)
	}
}
