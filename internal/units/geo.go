package units

import "github.com/golang/geo/s2"

// EarthRadiusMeters is the mean earth radius used for great-circle
// distances.
const EarthRadiusMeters = 6371000.0

// HaversineMeters returns the great-circle distance between two
// geographic points in meters.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}
