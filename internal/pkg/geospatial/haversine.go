package geospatial

import "math"

const (
	earthRadiusKm = 6371.0

	// metersPerDegreeLat is the equirectangular scale used for window extents.
	metersPerDegreeLat = 111320.0

	// minLonScale floors the cos(lat) longitude scale so window math cannot
	// blow up near the poles.
	minLonScale = 0.15
)

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000 // meters
}

// Window returns the latitude/longitude extent of a square window of
// radiusMeters centered on a point, under the equirectangular approximation
// (1 degree latitude ~ 111320 m, longitude scaled by cos of the latitude with
// a floor of 0.15).
func Window(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	latDelta := radiusMeters / metersPerDegreeLat

	scale := math.Cos(toRad(lat))
	if scale < minLonScale {
		scale = minLonScale
	}
	lonDelta := radiusMeters / (metersPerDegreeLat * scale)

	return lat - latDelta, lon - lonDelta, lat + latDelta, lon + lonDelta
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
