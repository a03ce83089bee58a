package geospatial

import "math"

// earthRadiusM is the WGS 84 semi-major axis in meters.
const earthRadiusM = 6378137.0

// maxProjectedLat bounds latitudes away from the Mercator pole singularity.
const maxProjectedLat = 85.0

// Project converts a geographic coordinate to a planar (x, y) pair in meters
// using a spherical Web-Mercator transform. The result is only suitable for
// comparing distances over city-scale extents; it is an approximation, not a
// geodesic measurement, and is never used for display coordinates.
//
// Latitude is clamped to [-85, 85] before the transform.
func Project(lat, lon float64) (x, y float64) {
	if lat > maxProjectedLat {
		lat = maxProjectedLat
	} else if lat < -maxProjectedLat {
		lat = -maxProjectedLat
	}

	x = earthRadiusM * toRad(lon)
	y = earthRadiusM * math.Log(math.Tan(math.Pi/4+toRad(lat)/2))
	return x, y
}
