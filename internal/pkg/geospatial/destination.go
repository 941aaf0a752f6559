package geospatial

import (
	"math"

	"github.com/samirrijal/raycross/internal/core/domain"
)

// Destination projects a point distanceMeters away from origin along bearingDeg
// (clockwise from true north) on a sphere of radius EarthRadiusMeters.
// Inputs are used as-is; the resulting longitude is not wrapped.
func Destination(origin domain.GeoPoint, bearingDeg, distanceMeters float64) domain.GeoPoint {
	phi1 := toRad(origin.Lat)
	lambda1 := toRad(origin.Lon)
	theta := toRad(bearingDeg)
	delta := distanceMeters / EarthRadiusMeters

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) +
		math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2))

	return domain.GeoPoint{Lat: toDeg(phi2), Lon: toDeg(lambda2)}
}
