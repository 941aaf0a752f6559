package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

var rowFields = [4]string{"latitude", "longitude", "bearing", "distance"}

// ParseRow validates the first four fields of a feed row.
// Extra trailing fields are ignored.
func ParseRow(row RawRow) (RayInput, error) {
	if len(row) < len(rowFields) {
		return RayInput{}, fmt.Errorf("%w: expected %d fields, got %d", ErrInvalidInput, len(rowFields), len(row))
	}
	var v [4]float64
	for i, name := range rowFields {
		f, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
		if err != nil {
			return RayInput{}, fmt.Errorf("%w: %s %q is not a number", ErrInvalidInput, name, row[i])
		}
		v[i] = f
	}
	return NewRayInput(v[0], v[1], v[2], v[3])
}

// NewRayInput validates numeric ray fields. Latitude must lie in [-90, 90] and
// longitude in [-180, 180]; the bearing is wrapped into [0, 360).
func NewRayInput(lat, lon, bearing, distance float64) (RayInput, error) {
	for i, f := range [4]float64{lat, lon, bearing, distance} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return RayInput{}, fmt.Errorf("%w: %s must be finite", ErrInvalidInput, rowFields[i])
		}
	}
	if lat < -90 || lat > 90 {
		return RayInput{}, fmt.Errorf("%w: latitude %g outside [-90, 90]", ErrInvalidInput, lat)
	}
	if lon < -180 || lon > 180 {
		return RayInput{}, fmt.Errorf("%w: longitude %g outside [-180, 180]", ErrInvalidInput, lon)
	}
	if distance < 0 {
		return RayInput{}, fmt.Errorf("%w: distance must not be negative", ErrInvalidInput)
	}
	return RayInput{Origin: GeoPoint{Lat: lat, Lon: lon}, Bearing: NormalizeBearing(bearing), DistanceMeters: distance}, nil
}

// NormalizeBearing wraps a finite bearing into [0, 360).
func NormalizeBearing(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}
