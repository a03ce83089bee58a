package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/samirrijal/stopgrid/internal/core/domain"
)

// queryLatLon parses the required lat/lon query parameters and validates
// ranges. Latitudes beyond the projectable band are accepted here and clamped
// by the projector.
func queryLatLon(c *fiber.Ctx) (lat, lon float64, err error) {
	if c.Query("lat") == "" || c.Query("lon") == "" {
		return 0, 0, errors.New("lat and lon are required")
	}
	lat = c.QueryFloat("lat", 0)
	lon = c.QueryFloat("lon", 0)
	if lat < -90 || lat > 90 {
		return 0, 0, errors.New("lat must be between -90 and 90")
	}
	if lon < -180 || lon > 180 {
		return 0, 0, errors.New("lon must be between -180 and 180")
	}
	return lat, lon, nil
}

// NearestStopHandler returns the planar distance to the closest stop.
// A null distance means the inventory is empty or the search bound was hit.
func NearestStopHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, lon, err := queryLatLon(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		resp := fiber.Map{
			"location":            domain.GeoPoint{Lat: lat, Lon: lon},
			"nearest_stop_meters": deps.Accessibility.Nearest(c.Context(), lat, lon),
		}
		if snap, ok := deps.Accessibility.Snapshot(); ok {
			resp["snapshot_revision"] = snap.Revision
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(resp)
	}
}

// KNearestStopsHandler returns up to k stops ascending by distance.
func KNearestStopsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, lon, err := queryLatLon(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		k := c.QueryInt("k", 5)

		neighbors := deps.Accessibility.KNearest(c.Context(), lat, lon, k)

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(fiber.Map{
			"location":  domain.GeoPoint{Lat: lat, Lon: lon},
			"neighbors": neighbors,
			"count":     len(neighbors),
		})
	}
}

// CountWithinHandler returns the exact number of stops within a radius.
func CountWithinHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, lon, err := queryLatLon(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		radius := c.QueryFloat("radius", 500)
		if radius <= 0 || radius > 10000 {
			return errBadRequest(c, "radius must be between 1 and 10000 meters")
		}

		count := deps.Accessibility.CountWithin(c.Context(), lat, lon, radius)

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(fiber.Map{
			"location":      domain.GeoPoint{Lat: lat, Lon: lon},
			"radius_meters": radius,
			"count":         count,
		})
	}
}

// AccessibilitySummaryHandler returns nearest-stop distance plus counts at the
// fixed summary radii.
func AccessibilitySummaryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, lon, err := queryLatLon(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		summary := deps.Accessibility.Summary(c.Context(), lat, lon)

		c.Set("Cache-Control", "public, max-age=300")
		return c.JSON(summary)
	}
}

// HeatmapHandler rasterizes an N×N accessibility grid over a window.
func HeatmapHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, lon, err := queryLatLon(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		radius := c.QueryFloat("radius", 1000)
		if radius <= 0 || radius > 20000 {
			return errBadRequest(c, "radius must be between 1 and 20000 meters")
		}
		size := c.QueryInt("size", 0) // 0 → service default, clamped there

		grid := deps.Accessibility.Heatmap(c.Context(), lat, lon, radius, size)

		c.Set("Cache-Control", "public, max-age=300")
		return c.JSON(grid)
	}
}

// SnapshotHandler reports metadata about the snapshot currently serving
// queries.
func SnapshotHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, ok := deps.Accessibility.Snapshot()
		if !ok {
			return newError(c, 503, "snapshot_unavailable", "no snapshot built yet")
		}
		return c.JSON(snap)
	}
}

// RefreshSnapshotHandler rebuilds the snapshot from the stop inventory and
// returns the metadata of the snapshot now serving queries. Rebuilds are also
// triggered by ingest events and the periodic timer; this endpoint exists for
// operators who do not want to wait for either.
func RefreshSnapshotHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Accessibility.Refresh(c.Context()); err != nil {
			return errInternal(c, err.Error())
		}
		snap, _ := deps.Accessibility.Snapshot()
		return c.JSON(snap)
	}
}

// ListStopsHandler returns one page of the stop inventory.
func ListStopsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 100)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 500 {
			limit = 100
		}

		stops, total, err := deps.Stops.List(c.Context(), offset, limit)
		if err != nil {
			return errInternal(c, err.Error())
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: stops, Pagination: pg})
	}
}

// GetStopHandler returns a single stop by ID.
func GetStopHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "stop id is required")
		}
		stop, err := deps.Stops.GetByID(c.Context(), id)
		if err != nil {
			return errNotFound(c, "stop not found")
		}
		return c.JSON(stop)
	}
}
