package rayset

import (
	"fmt"

	"github.com/samirrijal/raycross/internal/core/domain"
	"github.com/samirrijal/raycross/internal/core/ports"
)

// Snapshot captures the rays and the last result for storage.
func (s *RaySet) Snapshot(sessionID string) domain.Snapshot {
	snap := domain.Snapshot{SessionID: sessionID, Rays: s.Rays()}
	if s.lastFit != nil {
		fit := *s.lastFit
		snap.LastFit = &fit
	}
	return snap
}

// Restore rebuilds a RaySet from a snapshot onto surface, redrawing rays and the
// last result. Destinations are re-projected from their inputs.
func Restore(snap domain.Snapshot, surface ports.RenderSurface) (*RaySet, error) {
	s := New(surface)
	for _, r := range snap.Rays {
		if _, dup := s.byID[r.ID]; dup || r.ID == "" {
			return nil, fmt.Errorf("restore session %s: bad ray id %q", snap.SessionID, r.ID)
		}
		in, err := domain.NewRayInput(r.Origin.Lat, r.Origin.Lon, r.Bearing, r.DistanceMeters)
		if err != nil {
			return nil, fmt.Errorf("restore session %s: ray %s: %w", snap.SessionID, r.ID, err)
		}
		if _, err := s.add(r.ID, in, r.Selected); err != nil {
			return nil, fmt.Errorf("restore session %s: ray %s: %w", snap.SessionID, r.ID, err)
		}
	}

	if snap.LastFit != nil {
		fit := *snap.LastFit
		s.lastFit = &fit
		for _, ip := range fit.Intersections {
			s.drawMarker(ip)
		}
		if fit.Ellipse != nil {
			s.drawEllipse(*fit.Ellipse)
		}
	}
	return s, nil
}
