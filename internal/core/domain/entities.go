package domain

import (
	"time"
)

// Stop represents a transit stop or station.
type Stop struct {
	ID                   string    `json:"id"`
	StopID               string    `json:"stop_id"`
	AgencyID             string    `json:"agency_id"`
	Name                 string    `json:"name"`
	Location             GeoPoint  `json:"location"`
	WheelchairAccessible bool      `json:"wheelchair_accessible"`
	CreatedAt            time.Time `json:"created_at"`
}

// SnapshotInfo describes the stop snapshot currently backing the index.
type SnapshotInfo struct {
	Revision       uint64    `json:"revision"`
	Stops          int       `json:"stops"`
	CellSizeMeters float64   `json:"cell_size_meters"`
	BuiltAt        time.Time `json:"built_at"`
	BuildDuration  string    `json:"build_duration"`
}

// SnapshotRefreshed is the event published after an index rebuild.
type SnapshotRefreshed struct {
	Revision uint64    `json:"revision"`
	Stops    int       `json:"stops"`
	BuiltAt  time.Time `json:"built_at"`
}

// RadiusCount is a stop count at one of the fixed summary radii.
type RadiusCount struct {
	RadiusMeters float64 `json:"radius_meters"`
	Count        int     `json:"count"`
}

// AccessibilitySummary bundles the per-location accessibility metrics.
// NearestStopMeters is nil when the index is empty or the nearest stop lies
// beyond the search bound.
type AccessibilitySummary struct {
	Location          GeoPoint      `json:"location"`
	NearestStopMeters *float64      `json:"nearest_stop_meters"`
	Counts            []RadiusCount `json:"counts"`
	SnapshotRevision  uint64        `json:"snapshot_revision"`
}

// HeatCell is one rasterized cell of an accessibility heatmap. Meters is nil
// for cells with no reachable stop; such cells carry the maximum heat.
type HeatCell struct {
	Center GeoPoint `json:"center"`
	Meters *float64 `json:"meters"`
	Heat   float64  `json:"heat"` // normalized [0,1]
	Color  RGB      `json:"color"`
}

// HeatmapGrid is an N by N raster of heat cells covering a square window.
type HeatmapGrid struct {
	Center           GeoPoint   `json:"center"`
	RadiusMeters     float64    `json:"radius_meters"`
	Size             int        `json:"size"`
	Bounds           Bounds     `json:"bounds"`
	Cells            []HeatCell `json:"cells"` // row-major, size*size entries
	SnapshotRevision uint64     `json:"snapshot_revision"`
}
