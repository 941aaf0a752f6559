// Package overlay implements ports.RenderSurface as an in-memory set of GeoJSON
// features that a browser map can draw directly.
package overlay

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/raycross/internal/core/domain"
	"github.com/samirrijal/raycross/internal/pkg/geospatial"
)

type layer struct {
	geometry orb.Geometry
	style    domain.Style
}

// Surface collects overlays keyed by handle.
type Surface struct {
	next   domain.OverlayHandle
	layers map[domain.OverlayHandle]layer
}

// New creates an empty surface.
func New() *Surface {
	return &Surface{layers: make(map[domain.OverlayHandle]layer)}
}

// AddOverlay draws geometry and returns its handle. Unsupported geometry is
// skipped and yields handle 0.
func (s *Surface) AddOverlay(geometry any, style domain.Style) domain.OverlayHandle {
	g := toOrb(geometry)
	if g == nil {
		slog.Warn("overlay: unsupported geometry", "type", fmt.Sprintf("%T", geometry), "kind", style.Kind)
		return 0
	}
	s.next++
	s.layers[s.next] = layer{geometry: g, style: style}
	return s.next
}

// RemoveOverlay deletes an overlay. Unknown handles are ignored.
func (s *Surface) RemoveOverlay(h domain.OverlayHandle) {
	delete(s.layers, h)
}

// Distance is the great-circle distance primitive of the map.
func (s *Surface) Distance(a, b domain.GeoPoint) float64 {
	return geospatial.Distance(a, b)
}

// Len returns the number of overlays currently drawn.
func (s *Surface) Len() int { return len(s.layers) }

// FeatureCollection renders every overlay in drawing order. Style fields become
// feature properties; the collection carries a bbox when it is not empty.
func (s *Surface) FeatureCollection() *geojson.FeatureCollection {
	handles := make([]domain.OverlayHandle, 0, len(s.layers))
	for h := range s.layers {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })

	fc := geojson.NewFeatureCollection()
	var bound orb.Bound
	for i, h := range handles {
		l := s.layers[h]
		f := geojson.NewFeature(l.geometry)
		f.ID = int64(h)
		f.Properties["kind"] = string(l.style.Kind)
		if l.style.Color != "" {
			f.Properties["color"] = l.style.Color
		}
		if l.style.Weight != 0 {
			f.Properties["weight"] = l.style.Weight
		}
		if l.style.Popup != "" {
			f.Properties["popup"] = l.style.Popup
		}
		if l.style.RefID != "" {
			f.Properties["ref_id"] = l.style.RefID
		}
		fc.Append(f)

		if i == 0 {
			bound = l.geometry.Bound()
		} else {
			bound = bound.Union(l.geometry.Bound())
		}
	}
	if len(handles) > 0 {
		fc.BBox = geojson.NewBBox(bound)
	}
	return fc
}

func toOrb(geometry any) orb.Geometry {
	switch g := geometry.(type) {
	case domain.GeoPoint:
		return point(g)
	case domain.Segment:
		return orb.LineString{point(g.From), point(g.To)}
	case []domain.GeoPoint:
		ring := make(orb.Ring, len(g))
		for i, p := range g {
			ring[i] = point(p)
		}
		return orb.Polygon{ring}
	default:
		return nil
	}
}

func point(p domain.GeoPoint) orb.Point {
	return orb.Point{p.Lon, p.Lat}
}
