package geospatial

import "math"

const earthRadiusKm = 6371.0

const earthRadiusM = earthRadiusKm * 1000

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

// Offset returns the position reached by moving north and east by the given
// number of meters from lat/lon. Used to build fixtures and padding.
func Offset(lat, lon, northM, eastM float64) (float64, float64) {
	dLat := northM / earthRadiusM
	dLon := eastM / (earthRadiusM * math.Cos(toRad(lat)))
	return lat + toDeg(dLat), lon + toDeg(dLon)
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
