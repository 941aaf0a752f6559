package geospatial

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/samirrijal/raycross/internal/core/domain"
)

// MinorAxisRatio fixes the semi-minor axis as a fraction of the semi-major axis.
const MinorAxisRatio = 0.6

// FitEllipse computes the centroid of points and an ellipse whose semi-major axis is the
// mean distance from the centroid to each point. The minor axis is MinorAxisRatio of the
// major and the orientation is always 0. dist defaults to Distance when nil.
//
// points must not be empty.
func FitEllipse(points []domain.GeoPoint, dist DistanceFunc) domain.Ellipse {
	if len(points) == 0 {
		panic("geospatial: FitEllipse called with no points")
	}
	if dist == nil {
		dist = Distance
	}

	lats := make([]float64, len(points))
	lons := make([]float64, len(points))
	for i, p := range points {
		lats[i] = p.Lat
		lons[i] = p.Lon
	}
	center := domain.GeoPoint{Lat: stat.Mean(lats, nil), Lon: stat.Mean(lons, nil)}

	dists := make([]float64, len(points))
	for i, p := range points {
		dists[i] = dist(center, p)
	}
	semiMajor := stat.Mean(dists, nil)

	return domain.Ellipse{
		Center:              center,
		SemiMajorAxisMeters: semiMajor,
		SemiMinorAxisMeters: semiMajor * MinorAxisRatio,
		OrientationDegrees:  0,
	}
}

// EllipseRing samples n points around the outline of e, closing the ring.
// The semi-major axis lies east-west before rotation by OrientationDegrees.
func EllipseRing(e domain.Ellipse, n int) []domain.GeoPoint {
	if n < 4 {
		n = 4
	}
	rot := toRad(e.OrientationDegrees)
	ring := make([]domain.GeoPoint, 0, n+1)
	for i := 0; i < n; i++ {
		t := 2 * math.Pi * float64(i) / float64(n)
		x := e.SemiMajorAxisMeters * math.Cos(t)
		y := e.SemiMinorAxisMeters * math.Sin(t)
		east := x*math.Cos(rot) - y*math.Sin(rot)
		north := x*math.Sin(rot) + y*math.Cos(rot)
		bearing := toDeg(math.Atan2(east, north))
		ring = append(ring, Destination(e.Center, bearing, math.Hypot(east, north)))
	}
	return append(ring, ring[0])
}
