// Package proximity implements a uniform-grid spatial index over transit
// stops. Points are projected onto a planar coordinate system once at build
// time and binned into fixed-size square cells; queries then search cells in
// expanding square rings so that typical lookups touch a handful of cells
// instead of the whole point set.
//
// An Index is immutable after New returns. Data refreshes build a fresh Index
// and swap the reference; queries against an existing Index are pure and safe
// to run concurrently at render-loop frequency.
package proximity

import (
	"math"
	"sort"

	"github.com/samirrijal/stopgrid/internal/pkg/geospatial"
)

// Point is one indexable location, identified by an opaque ID.
type Point struct {
	ID  string
	Lat float64
	Lon float64
}

// Neighbor is a query result: a point ID and its planar distance in meters.
type Neighbor struct {
	ID     string  `json:"id"`
	Meters float64 `json:"meters"`
}

// Config tunes the grid. Zero values fall back to the defaults below.
type Config struct {
	// CellSizeMeters is the square cell edge length. The default of 900 m
	// keeps a handful of stops per cell at typical urban densities; it is a
	// density tuning knob, not a correctness constraint.
	CellSizeMeters float64

	// MaxRings caps the Chebyshev ring expansion for nearest and k-nearest
	// searches. When the cap is hit before any point is found the query
	// reports no result rather than scanning indefinitely; with the defaults
	// that bounds the search at roughly 21.6 km. This is a deliberate
	// completeness/latency trade-off.
	MaxRings int

	// MaxK bounds k for KNearest. Out-of-range k is clamped, not rejected.
	MaxK int
}

const (
	defaultCellSizeMeters = 900.0
	defaultMaxRings       = 24
	defaultMaxK           = 32
)

// DefaultConfig returns the tuning used by the service when none is supplied.
func DefaultConfig() Config {
	return Config{
		CellSizeMeters: defaultCellSizeMeters,
		MaxRings:       defaultMaxRings,
		MaxK:           defaultMaxK,
	}
}

func (c Config) withDefaults() Config {
	if c.CellSizeMeters <= 0 {
		c.CellSizeMeters = defaultCellSizeMeters
	}
	if c.MaxRings <= 0 {
		c.MaxRings = defaultMaxRings
	}
	if c.MaxK <= 0 {
		c.MaxK = defaultMaxK
	}
	return c
}

// projected is a point after planar projection.
type projected struct {
	id   string
	x, y float64
}

// Index is the immutable grid. All query methods are read-only.
type Index struct {
	cfg   Config
	cells map[int64][]projected
	count int
}

// New builds an index over the given points. An empty point set yields a
// valid index whose queries all report "no result".
func New(points []Point, cfg Config) *Index {
	cfg = cfg.withDefaults()

	cells := make(map[int64][]projected, len(points)/4+1)
	for _, p := range points {
		x, y := geospatial.Project(p.Lat, p.Lon)
		key := packCell(cellOf(x, cfg.CellSizeMeters), cellOf(y, cfg.CellSizeMeters))
		cells[key] = append(cells[key], projected{id: p.ID, x: x, y: y})
	}

	return &Index{cfg: cfg, cells: cells, count: len(points)}
}

// Len reports the number of indexed points.
func (idx *Index) Len() int { return idx.count }

// CellSize reports the configured cell edge length in meters.
func (idx *Index) CellSize() float64 { return idx.cfg.CellSizeMeters }

// NearestDistance returns the planar distance in meters from the query point
// to the closest indexed point. ok is false when the index is empty or no
// point was found within the ring-search bound.
func (idx *Index) NearestDistance(lat, lon float64) (meters float64, ok bool) {
	if idx.count == 0 {
		return 0, false
	}

	qx, qy := geospatial.Project(lat, lon)
	ix0 := cellOf(qx, idx.cfg.CellSizeMeters)
	iy0 := cellOf(qy, idx.cfg.CellSizeMeters)

	bestSq := math.MaxFloat64
	found := false

	for r := 0; r <= idx.cfg.MaxRings; r++ {
		// Every point in ring r is at least (r-1)*cellSize away from the
		// query, so once that floor exceeds the current best no closer point
		// can exist in this or any later ring. Rings 0 and 1 are always
		// visited: a point just across a cell edge sits in ring 1 at nearly
		// zero distance.
		if found && r > 1 {
			floor := float64(r-1) * idx.cfg.CellSizeMeters
			if floor*floor > bestSq {
				break
			}
		}

		idx.visitRing(ix0, iy0, r, func(p projected) {
			if d := distSq(qx, qy, p.x, p.y); d < bestSq {
				bestSq = d
				found = true
			}
		})
	}

	if !found {
		return 0, false
	}
	return math.Sqrt(bestSq), true
}

// KNearest returns up to k points ordered ascending by distance. k is clamped
// to [1, MaxK]. Ties keep visit order (point IDs are unique, so exact ties
// are indistinguishable to callers). The result may hold fewer than k entries
// when the index holds fewer points or the search bound is reached first.
func (idx *Index) KNearest(lat, lon float64, k int) []Neighbor {
	if idx.count == 0 {
		return nil
	}
	if k < 1 {
		k = 1
	}
	if k > idx.cfg.MaxK {
		k = idx.cfg.MaxK
	}
	want := k
	if idx.count < want {
		want = idx.count
	}

	qx, qy := geospatial.Project(lat, lon)
	ix0 := cellOf(qx, idx.cfg.CellSizeMeters)
	iy0 := cellOf(qy, idx.cfg.CellSizeMeters)

	type candidate struct {
		id     string
		distSq float64
		seq    int
	}

	// Fixed-capacity candidate set with a linear worst scan. k is small
	// (<= MaxK) so this beats a heap on both simplicity and constant factors.
	cand := make([]candidate, 0, k)
	worst := -1 // position of the max-distance candidate once the set is full
	seq := 0

	rescanWorst := func() {
		worst = 0
		for i := 1; i < len(cand); i++ {
			if cand[i].distSq > cand[worst].distSq {
				worst = i
			}
		}
	}

	for r := 0; r <= idx.cfg.MaxRings; r++ {
		// Same early exit as NearestDistance, but against the worst kept
		// distance, and only once enough candidates are held.
		if len(cand) >= want && r > 1 {
			worstSq := cand[0].distSq
			for _, c := range cand[1:] {
				if c.distSq > worstSq {
					worstSq = c.distSq
				}
			}
			floor := float64(r-1) * idx.cfg.CellSizeMeters
			if floor*floor > worstSq {
				break
			}
		}

		idx.visitRing(ix0, iy0, r, func(p projected) {
			d := distSq(qx, qy, p.x, p.y)
			if len(cand) < k {
				cand = append(cand, candidate{id: p.id, distSq: d, seq: seq})
				seq++
				if len(cand) == k {
					rescanWorst()
				}
				return
			}
			// Full: replace the worst only for a strictly closer point.
			if d < cand[worst].distSq {
				cand[worst] = candidate{id: p.id, distSq: d, seq: seq}
				seq++
				rescanWorst()
			}
		})
	}

	sort.SliceStable(cand, func(i, j int) bool {
		if cand[i].distSq != cand[j].distSq {
			return cand[i].distSq < cand[j].distSq
		}
		return cand[i].seq < cand[j].seq
	})

	out := make([]Neighbor, len(cand))
	for i, c := range cand {
		out[i] = Neighbor{ID: c.id, Meters: math.Sqrt(c.distSq)}
	}
	return out
}

// CountWithinRadius returns the exact number of indexed points whose planar
// distance from the query point is at most radiusMeters. Cells overlapping
// the radius boundary contribute only their in-radius points.
func (idx *Index) CountWithinRadius(lat, lon, radiusMeters float64) int {
	if idx.count == 0 || radiusMeters < 0 {
		return 0
	}

	qx, qy := geospatial.Project(lat, lon)
	ix0 := cellOf(qx, idx.cfg.CellSizeMeters)
	iy0 := cellOf(qy, idx.cfg.CellSizeMeters)

	// Block visit, not ring expansion: the count is not distance-ordered, so
	// the only bound needed is the covering square of cells.
	cellRadius := int(math.Ceil(radiusMeters / idx.cfg.CellSizeMeters))
	radiusSq := radiusMeters * radiusMeters

	n := 0
	for dx := -cellRadius; dx <= cellRadius; dx++ {
		for dy := -cellRadius; dy <= cellRadius; dy++ {
			for _, p := range idx.cells[packCell(ix0+dx, iy0+dy)] {
				if distSq(qx, qy, p.x, p.y) <= radiusSq {
					n++
				}
			}
		}
	}
	return n
}

// visitRing calls fn for every point in the cells at Chebyshev radius r from
// the home cell. Ring 0 is the home cell itself.
func (idx *Index) visitRing(ix0, iy0, r int, fn func(projected)) {
	if r == 0 {
		for _, p := range idx.cells[packCell(ix0, iy0)] {
			fn(p)
		}
		return
	}

	for dx := -r; dx <= r; dx++ {
		for _, p := range idx.cells[packCell(ix0+dx, iy0-r)] {
			fn(p)
		}
		for _, p := range idx.cells[packCell(ix0+dx, iy0+r)] {
			fn(p)
		}
	}
	for dy := -r + 1; dy <= r-1; dy++ {
		for _, p := range idx.cells[packCell(ix0-r, iy0+dy)] {
			fn(p)
		}
		for _, p := range idx.cells[packCell(ix0+r, iy0+dy)] {
			fn(p)
		}
	}
}

// cellOf bins a projected coordinate by floor division.
func cellOf(v, cellSize float64) int {
	return int(math.Floor(v / cellSize))
}

// packCell packs two cell coordinates into one map key. The Mercator band at
// any sane cell size keeps both coordinates far inside 32 bits.
func packCell(ix, iy int) int64 {
	return int64(ix)<<32 | int64(uint32(int32(iy)))
}

func distSq(x1, y1, x2, y2 float64) float64 {
	dx := x2 - x1
	dy := y2 - y1
	return dx*dx + dy*dy
}
