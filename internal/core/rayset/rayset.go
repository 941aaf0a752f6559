// Package rayset holds the per-session ray aggregate: the active rays, their
// selection state, and the intersection/ellipse result currently on display.
package rayset

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/raycross/internal/core/domain"
	"github.com/samirrijal/raycross/internal/core/ports"
	"github.com/samirrijal/raycross/internal/pkg/geospatial"
)

// RaySet owns a session's rays and everything it has drawn on its surface.
// It is not safe for concurrent use; callers serialise commands per session.
type RaySet struct {
	surface ports.RenderSurface
	rays    []*domain.Ray
	byID    map[string]*domain.Ray

	rayOverlays    map[string]domain.OverlayHandle
	markerOverlays []domain.OverlayHandle
	ellipseOverlay *domain.OverlayHandle

	lastFit *domain.FitResult
	now     func() time.Time
	newID   func() string
}

// New creates an empty RaySet drawing on surface. A nil surface discards overlays.
func New(surface ports.RenderSurface) *RaySet {
	if surface == nil {
		surface = discardSurface{}
	}
	return &RaySet{
		surface:     surface,
		byID:        make(map[string]*domain.Ray),
		rayOverlays: make(map[string]domain.OverlayHandle),
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// AddRay projects the destination and appends an unselected ray.
func (s *RaySet) AddRay(origin domain.GeoPoint, bearing, distanceMeters float64) (domain.Ray, error) {
	in, err := domain.NewRayInput(origin.Lat, origin.Lon, bearing, distanceMeters)
	if err != nil {
		return domain.Ray{}, err
	}
	r, err := s.add(s.newID(), in, false)
	if err != nil {
		return domain.Ray{}, err
	}
	s.invalidateFit()
	return r, nil
}

func (s *RaySet) add(id string, in domain.RayInput, selected bool) (domain.Ray, error) {
	dest := geospatial.Destination(in.Origin, in.Bearing, in.DistanceMeters)
	if !dest.Finite() {
		return domain.Ray{}, fmt.Errorf("%w: destination is not a finite point", domain.ErrInvalidInput)
	}
	r := &domain.Ray{
		ID:             id,
		Origin:         in.Origin,
		Bearing:        in.Bearing,
		DistanceMeters: in.DistanceMeters,
		Destination:    dest,
		Selected:       selected,
	}
	s.rays = append(s.rays, r)
	s.byID[r.ID] = r
	s.rayOverlays[r.ID] = s.surface.AddOverlay(r.Segment(), domain.RayStyle(*r))
	return *r, nil
}

// ToggleSelection flips the selection state of one ray and restyles it.
func (s *RaySet) ToggleSelection(id string) (domain.Ray, error) {
	r, ok := s.byID[id]
	if !ok {
		return domain.Ray{}, fmt.Errorf("%w: %s", domain.ErrRayNotFound, id)
	}
	r.Selected = !r.Selected
	s.surface.RemoveOverlay(s.rayOverlays[id])
	s.rayOverlays[id] = s.surface.AddOverlay(r.Segment(), domain.RayStyle(*r))
	return *r, nil
}

// RemoveSelected drops every selected ray and returns their ids.
// With nothing selected it does nothing.
func (s *RaySet) RemoveSelected() []string {
	var removed []string
	kept := s.rays[:0]
	for _, r := range s.rays {
		if !r.Selected {
			kept = append(kept, r)
			continue
		}
		removed = append(removed, r.ID)
		s.surface.RemoveOverlay(s.rayOverlays[r.ID])
		delete(s.rayOverlays, r.ID)
		delete(s.byID, r.ID)
	}
	for i := len(kept); i < len(s.rays); i++ {
		s.rays[i] = nil
	}
	s.rays = kept
	if len(removed) > 0 {
		s.invalidateFit()
	}
	return removed
}

// ComputeIntersections intersects every unordered pair of active rays and fits an
// ellipse through the crossings.
//
// With fewer than domain.MinRaysForFit rays nothing is computed and the display is
// left as it was. Otherwise previous markers are always replaced; when no pair
// crosses the previous ellipse is cleared as well, so the display never shows a
// result for a different ray set.
func (s *RaySet) ComputeIntersections() domain.FitResult {
	res := domain.FitResult{ComputedAt: s.now()}
	if len(s.rays) < domain.MinRaysForFit {
		res.Status = domain.StatusInsufficientRays
		res.Message = res.Status.Message()
		return res
	}

	s.clearMarkers()

	res.Intersections = []domain.IntersectionPoint{}
	for i := 0; i < len(s.rays); i++ {
		for j := i + 1; j < len(s.rays); j++ {
			res.Attempts++
			p, ok := geospatial.Intersect(s.rays[i].Segment(), s.rays[j].Segment())
			if !ok {
				continue
			}
			res.Intersections = append(res.Intersections, domain.IntersectionPoint{
				Lat: p.Lat, Lon: p.Lon, RayA: s.rays[i].ID, RayB: s.rays[j].ID,
			})
		}
	}

	if len(res.Intersections) == 0 {
		s.clearEllipse()
		res.Status = domain.StatusNoIntersections
		res.Message = res.Status.Message()
		s.lastFit = &res
		return res
	}

	points := make([]domain.GeoPoint, len(res.Intersections))
	for i, ip := range res.Intersections {
		points[i] = ip.Point()
		s.drawMarker(ip)
	}
	e := geospatial.FitEllipse(points, s.surface.Distance)
	res.Ellipse = &e
	res.Status = domain.StatusOK

	s.drawEllipse(e)
	s.lastFit = &res
	return res
}

// invalidateFit drops the result computed for a previous ray set, together with
// its markers and ellipse.
func (s *RaySet) invalidateFit() {
	s.clearMarkers()
	s.clearEllipse()
	s.lastFit = nil
}

func (s *RaySet) drawMarker(ip domain.IntersectionPoint) {
	s.markerOverlays = append(s.markerOverlays, s.surface.AddOverlay(ip.Point(), domain.Style{
		Kind:  domain.OverlayIntersection,
		Popup: fmt.Sprintf("Intersection at: %.5f, %.5f", ip.Lat, ip.Lon),
	}))
}

func (s *RaySet) drawEllipse(e domain.Ellipse) {
	s.clearEllipse()
	h := s.surface.AddOverlay(geospatial.EllipseRing(e, ellipseVertices), domain.EllipseStyle)
	s.ellipseOverlay = &h
}

func (s *RaySet) clearMarkers() {
	for _, h := range s.markerOverlays {
		s.surface.RemoveOverlay(h)
	}
	s.markerOverlays = nil
}

func (s *RaySet) clearEllipse() {
	if s.ellipseOverlay != nil {
		s.surface.RemoveOverlay(*s.ellipseOverlay)
		s.ellipseOverlay = nil
	}
}

// ellipseVertices is the number of samples used to draw the ellipse outline.
const ellipseVertices = 64

// Close removes every overlay the set has drawn. The set must not be used afterwards.
func (s *RaySet) Close() {
	for _, h := range s.rayOverlays {
		s.surface.RemoveOverlay(h)
	}
	s.clearMarkers()
	s.clearEllipse()
	s.rays = nil
	s.byID = map[string]*domain.Ray{}
	s.rayOverlays = map[string]domain.OverlayHandle{}
}

// Len returns the number of active rays.
func (s *RaySet) Len() int { return len(s.rays) }

// Rays returns copies of the active rays in insertion order.
func (s *RaySet) Rays() []domain.Ray {
	out := make([]domain.Ray, len(s.rays))
	for i, r := range s.rays {
		out[i] = *r
	}
	return out
}

// Selected returns copies of the selected rays in insertion order.
func (s *RaySet) Selected() []domain.Ray {
	var out []domain.Ray
	for _, r := range s.rays {
		if r.Selected {
			out = append(out, *r)
		}
	}
	return out
}

// Ray returns one active ray.
func (s *RaySet) Ray(id string) (domain.Ray, bool) {
	r, ok := s.byID[id]
	if !ok {
		return domain.Ray{}, false
	}
	return *r, true
}

// LastFit returns the most recent computed result, or nil.
func (s *RaySet) LastFit() *domain.FitResult {
	return s.lastFit
}

// Bounds returns the box around every ray endpoint. ok is false for an empty set.
func (s *RaySet) Bounds() (b domain.Bounds, ok bool) {
	for i, r := range s.rays {
		if i == 0 {
			b = domain.PointBounds(r.Origin)
		}
		b = b.Extend(r.Origin).Extend(r.Destination)
	}
	return b, len(s.rays) > 0
}

type discardSurface struct{}

func (discardSurface) AddOverlay(any, domain.Style) domain.OverlayHandle { return 0 }
func (discardSurface) RemoveOverlay(domain.OverlayHandle)                {}
func (discardSurface) Distance(a, b domain.GeoPoint) float64             { return geospatial.Distance(a, b) }
