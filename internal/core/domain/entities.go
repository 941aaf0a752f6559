package domain

import (
	"time"
)

// Ray is a directional segment projected from an origin along a bearing.
// Destination is derived from Origin, Bearing and DistanceMeters and never edited directly.
type Ray struct {
	ID             string   `json:"id"`
	Origin         GeoPoint `json:"origin"`
	Bearing        float64  `json:"bearing"`
	DistanceMeters float64  `json:"distance_meters"`
	Destination    GeoPoint `json:"destination"`
	Selected       bool     `json:"selected"`
}

// Segment returns the ray as an origin→destination segment.
func (r Ray) Segment() Segment {
	return Segment{From: r.Origin, To: r.Destination}
}

// IntersectionPoint is the crossing of two rays. It is recomputed on every request.
type IntersectionPoint struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	RayA string  `json:"ray_a"`
	RayB string  `json:"ray_b"`
}

// Point returns the intersection as a GeoPoint.
func (p IntersectionPoint) Point() GeoPoint {
	return GeoPoint{Lat: p.Lat, Lon: p.Lon}
}

// Ellipse is the shape fitted through a set of intersection points.
type Ellipse struct {
	Center              GeoPoint `json:"center"`
	SemiMajorAxisMeters float64  `json:"semi_major_axis_meters"`
	SemiMinorAxisMeters float64  `json:"semi_minor_axis_meters"`
	OrientationDegrees  float64  `json:"orientation_degrees"`
}

// FitStatus reports the outcome of an intersection request.
type FitStatus string

const (
	StatusOK               FitStatus = "ok"
	StatusInsufficientRays FitStatus = "insufficient_rays"
	StatusNoIntersections  FitStatus = "no_intersections"
)

// MinRaysForFit is the smallest ray count that can enclose a shape.
const MinRaysForFit = 3

// Message returns the user-facing text for a status.
func (s FitStatus) Message() string {
	switch s {
	case StatusInsufficientRays:
		return "Please add at least three rays."
	case StatusNoIntersections:
		return "No intersections found."
	default:
		return ""
	}
}

// FitResult is the outcome of pairwise intersection followed by ellipse fitting.
// Ellipse is nil unless Status is StatusOK.
type FitResult struct {
	Status        FitStatus           `json:"status"`
	Message       string              `json:"message,omitempty"`
	Attempts      int                 `json:"attempts"`
	Intersections []IntersectionPoint `json:"intersections"`
	Ellipse       *Ellipse            `json:"ellipse,omitempty"`
	ComputedAt    time.Time           `json:"computed_at"`
}

// RayInput is a validated (origin, bearing, distance) triple ready for projection.
type RayInput struct {
	Origin         GeoPoint `json:"origin"`
	Bearing        float64  `json:"bearing"`
	DistanceMeters float64  `json:"distance_meters"`
}

// RawRow is one unparsed row from a data-ingestion feed:
// latitude, longitude, bearing degrees, distance meters.
type RawRow []string

// ImportReport summarises a bulk import.
type ImportReport struct {
	Added   int      `json:"added"`
	Skipped int      `json:"skipped"`
	RayIDs  []string `json:"ray_ids,omitempty"`
}

// Snapshot is the serialisable state of one session's ray set.
type Snapshot struct {
	SessionID string     `json:"session_id"`
	Rays      []Ray      `json:"rays"`
	LastFit   *FitResult `json:"last_fit,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// SelectedIDs returns the ids of the selected rays in insertion order.
func (s Snapshot) SelectedIDs() []string {
	var ids []string
	for _, r := range s.Rays {
		if r.Selected {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// MapView is the viewport a client should open a session at.
type MapView struct {
	Center GeoPoint `json:"center"`
	Zoom   int      `json:"zoom"`
	Bounds *Bounds  `json:"bounds,omitempty"`
}

// DefaultMapView is used for sessions without rays.
var DefaultMapView = MapView{Center: GeoPoint{Lat: 20.5937, Lon: 78.9629}, Zoom: 5}

// SessionEvent is published whenever a session's ray set changes.
type SessionEvent struct {
	SessionID string     `json:"session_id"`
	Kind      string     `json:"kind"` // ray_added | selection | rays_removed | fit | imported | closed
	Rays      []Ray      `json:"rays,omitempty"`
	RayIDs    []string   `json:"ray_ids,omitempty"`
	Fit       *FitResult `json:"fit,omitempty"`
	Time      time.Time  `json:"time"`
}

// Event kinds.
const (
	EventRayAdded    = "ray_added"
	EventSelection   = "selection"
	EventRaysRemoved = "rays_removed"
	EventFit         = "fit"
	EventImported    = "imported"
	EventClosed      = "closed"
)
