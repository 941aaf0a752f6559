package geospatial

import "github.com/samirrijal/raycross/internal/core/domain"

// Intersect returns the crossing point of two segments, treating longitude as x and
// latitude as y. It reports false for parallel or collinear segments (exact zero
// denominator) and for crossings outside either segment. Endpoints count as inside.
func Intersect(a, b domain.Segment) (domain.GeoPoint, bool) {
	x1, y1 := a.From.Lon, a.From.Lat
	x2, y2 := a.To.Lon, a.To.Lat
	x3, y3 := b.From.Lon, b.From.Lat
	x4, y4 := b.To.Lon, b.To.Lat

	denom := (y4-y3)*(x2-x1) - (x4-x3)*(y2-y1)
	if denom == 0 {
		return domain.GeoPoint{}, false
	}

	ua := ((x4-x3)*(y1-y3) - (y4-y3)*(x1-x3)) / denom
	ub := ((x2-x1)*(y1-y3) - (y2-y1)*(x1-x3)) / denom
	// NaN parameters fail this check.
	if !(ua >= 0 && ua <= 1 && ub >= 0 && ub <= 1) {
		return domain.GeoPoint{}, false
	}

	return domain.GeoPoint{
		Lat: y1 + ua*(y2-y1),
		Lon: x1 + ua*(x2-x1),
	}, true
}
