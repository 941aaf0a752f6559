package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/raycross/internal/core/domain"
	"github.com/samirrijal/raycross/internal/core/ports"
	"github.com/samirrijal/raycross/internal/core/rayset"
	"github.com/samirrijal/raycross/internal/pkg/geospatial"
	"github.com/samirrijal/raycross/internal/pkg/metrics"
	"github.com/samirrijal/raycross/internal/pkg/telemetry"
)

// SessionService runs ray commands against stored sessions.
// Each command loads the session under a per-session lock, replays it onto a
// fresh surface, applies the change and saves it back.
type SessionService struct {
	store      ports.SessionStore
	publisher  ports.EventPublisher
	newSurface func() ports.OverlaySurface
	ttl        time.Duration
	locks      *keyedMutex

	now   func() time.Time
	newID func() string
}

// NewSessionService creates a new SessionService. publisher may be nil.
func NewSessionService(
	store ports.SessionStore,
	publisher ports.EventPublisher,
	newSurface func() ports.OverlaySurface,
	ttl time.Duration,
) *SessionService {
	return &SessionService{
		store:      store,
		publisher:  publisher,
		newSurface: newSurface,
		ttl:        ttl,
		locks:      newKeyedMutex(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// CreateSession stores an empty session.
func (s *SessionService) CreateSession(ctx context.Context) (*domain.Snapshot, error) {
	now := s.now()
	snap := &domain.Snapshot{
		SessionID: s.newID(),
		Rays:      []domain.Ray{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Save(ctx, snap, s.ttl); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	slog.InfoContext(ctx, "session created", "session_id", snap.SessionID)
	return snap, nil
}

// GetSession returns a session's current state.
func (s *SessionService) GetSession(ctx context.Context, id string) (*domain.Snapshot, error) {
	return s.store.Get(ctx, id)
}

// CloseSession tears a session down and forgets it.
func (s *SessionService) CloseSession(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	snap, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	rs, err := rayset.Restore(*snap, s.newSurface())
	if err != nil {
		return err
	}
	rs.Close()

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.publish(ctx, &domain.SessionEvent{SessionID: id, Kind: domain.EventClosed})
	slog.InfoContext(ctx, "session closed", "session_id", id, "rays", len(snap.Rays))
	return nil
}

// AddRay projects and appends a ray.
func (s *SessionService) AddRay(ctx context.Context, id string, in domain.RayInput) (domain.Ray, error) {
	ctx, span := startSpan(ctx, telemetry.SpanAddRay, id)
	var ray domain.Ray
	err := s.mutate(ctx, id, func(rs *rayset.RaySet) (*domain.SessionEvent, error) {
		r, err := rs.AddRay(in.Origin, in.Bearing, in.DistanceMeters)
		if err != nil {
			return nil, err
		}
		ray = r
		metrics.RaysAdded.Inc()
		return &domain.SessionEvent{Kind: domain.EventRayAdded, Rays: []domain.Ray{r}}, nil
	})
	endSpan(span, err)
	return ray, err
}

// ToggleRaySelection flips one ray's selection.
func (s *SessionService) ToggleRaySelection(ctx context.Context, id, rayID string) (domain.Ray, error) {
	ctx, span := startSpan(ctx, telemetry.SpanToggleSelection, id)
	var ray domain.Ray
	err := s.mutate(ctx, id, func(rs *rayset.RaySet) (*domain.SessionEvent, error) {
		r, err := rs.ToggleSelection(rayID)
		if err != nil {
			return nil, err
		}
		ray = r
		return &domain.SessionEvent{Kind: domain.EventSelection, Rays: []domain.Ray{r}}, nil
	})
	endSpan(span, err)
	return ray, err
}

// RemoveSelectedRays deletes every selected ray and returns their ids.
func (s *SessionService) RemoveSelectedRays(ctx context.Context, id string) ([]string, error) {
	ctx, span := startSpan(ctx, telemetry.SpanRemoveSelected, id)
	var removed []string
	err := s.mutate(ctx, id, func(rs *rayset.RaySet) (*domain.SessionEvent, error) {
		removed = rs.RemoveSelected()
		if len(removed) == 0 {
			return nil, nil
		}
		metrics.RaysRemoved.Add(float64(len(removed)))
		return &domain.SessionEvent{Kind: domain.EventRaysRemoved, RayIDs: removed}, nil
	})
	endSpan(span, err)
	return removed, err
}

// ComputeIntersectionsAndFit intersects every ray pair and fits an ellipse
// through the crossings. Insufficient rays and empty results are statuses.
func (s *SessionService) ComputeIntersectionsAndFit(ctx context.Context, id string) (domain.FitResult, error) {
	ctx, span := startSpan(ctx, telemetry.SpanComputeFit, id)
	var res domain.FitResult
	err := s.mutate(ctx, id, func(rs *rayset.RaySet) (*domain.SessionEvent, error) {
		start := time.Now()
		res = rs.ComputeIntersections()
		metrics.FitDuration.Observe(time.Since(start).Seconds())
		metrics.FitsTotal.WithLabelValues(string(res.Status)).Inc()
		metrics.IntersectionPairs.Add(float64(res.Attempts))
		span.SetAttributes(
			attribute.String("fit.status", string(res.Status)),
			attribute.Int("fit.intersections", len(res.Intersections)),
		)
		fit := res
		return &domain.SessionEvent{Kind: domain.EventFit, Fit: &fit}, nil
	})
	endSpan(span, err)
	return res, err
}

// ImportRays adds every valid row and counts the rest as skipped.
func (s *SessionService) ImportRays(ctx context.Context, id string, rows []domain.RawRow) (domain.ImportReport, error) {
	return s.importRows(ctx, id, rows, "rows")
}

// ImportFeed reads a feed and imports its rows.
func (s *SessionService) ImportFeed(ctx context.Context, id string, feed ports.RowFeed) (domain.ImportReport, error) {
	rows, err := feed.Rows(ctx)
	if err != nil {
		return domain.ImportReport{}, fmt.Errorf("read %s: %w", feed.Source(), err)
	}
	return s.importRows(ctx, id, rows, feed.Source())
}

func (s *SessionService) importRows(ctx context.Context, id string, rows []domain.RawRow, source string) (domain.ImportReport, error) {
	ctx, span := startSpan(ctx, telemetry.SpanImport, id)
	label, _, _ := strings.Cut(source, ":")
	var report domain.ImportReport
	err := s.mutate(ctx, id, func(rs *rayset.RaySet) (*domain.SessionEvent, error) {
		var added []domain.Ray
		for i, row := range rows {
			in, err := domain.ParseRow(row)
			if err == nil {
				var r domain.Ray
				if r, err = rs.AddRay(in.Origin, in.Bearing, in.DistanceMeters); err == nil {
					added = append(added, r)
					report.RayIDs = append(report.RayIDs, r.ID)
					continue
				}
			}
			report.Skipped++
			slog.DebugContext(ctx, "import row skipped", "session_id", id, "source", source, "row", i, "error", err)
		}
		report.Added = len(added)
		metrics.RaysAdded.Add(float64(report.Added))
		metrics.RowsSkipped.WithLabelValues(label).Add(float64(report.Skipped))
		if report.Added == 0 {
			return nil, nil
		}
		return &domain.SessionEvent{Kind: domain.EventImported, Rays: added}, nil
	})
	span.SetAttributes(attribute.Int("import.added", report.Added), attribute.Int("import.skipped", report.Skipped))
	endSpan(span, err)
	if err != nil {
		return domain.ImportReport{}, err
	}
	slog.InfoContext(ctx, "rows imported", "session_id", id, "source", source, "added", report.Added, "skipped", report.Skipped)
	return report, nil
}

// Overlays renders a session's rays, markers and ellipse as GeoJSON.
func (s *SessionService) Overlays(ctx context.Context, id string) (*geojson.FeatureCollection, error) {
	snap, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	surface := s.newSurface()
	if _, err := rayset.Restore(*snap, surface); err != nil {
		return nil, err
	}
	return surface.FeatureCollection(), nil
}

// View returns where a client should open the session's map.
func (s *SessionService) View(ctx context.Context, id string) (domain.MapView, error) {
	snap, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.MapView{}, err
	}
	return ViewOf(snap.Rays), nil
}

// minViewRadius is the smallest radius, in meters, a framed view covers.
const minViewRadius = 500.0

// ViewOf frames rays. Without rays it returns the default view; otherwise the
// view is centred on the ray endpoints and clients zoom to Bounds.
func ViewOf(rays []domain.Ray) domain.MapView {
	if len(rays) == 0 {
		return domain.DefaultMapView
	}
	b := domain.PointBounds(rays[0].Origin)
	for _, r := range rays {
		b = b.Extend(r.Origin).Extend(r.Destination)
	}
	// Never frame less than minViewRadius around the centre.
	c := b.Center()
	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(c.Lat, c.Lon, minViewRadius)
	b = b.Extend(domain.GeoPoint{Lat: minLat, Lon: minLon}).Extend(domain.GeoPoint{Lat: maxLat, Lon: maxLon})
	return domain.MapView{Center: b.Center(), Bounds: &b}
}

// mutate runs fn on the restored session and persists the result.
// A nil event from fn means nothing observable changed.
func (s *SessionService) mutate(ctx context.Context, id string, fn func(rs *rayset.RaySet) (*domain.SessionEvent, error)) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	snap, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	rs, err := rayset.Restore(*snap, s.newSurface())
	if err != nil {
		return err
	}

	ev, err := fn(rs)
	if err != nil {
		return err
	}

	next := rs.Snapshot(id)
	next.CreatedAt = snap.CreatedAt
	next.UpdatedAt = s.now()
	if err := s.store.Save(ctx, &next, s.ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	if ev != nil {
		ev.SessionID = id
		s.publish(ctx, ev)
	}
	return nil
}

func (s *SessionService) publish(ctx context.Context, ev *domain.SessionEvent) {
	if s.publisher == nil {
		return
	}
	ev.Time = s.now()
	if err := s.publisher.PublishSessionEvent(ctx, ev); err != nil {
		slog.WarnContext(ctx, "publish session event", "session_id", ev.SessionID, "kind", ev.Kind, "error", err)
	}
}

func startSpan(ctx context.Context, name, sessionID string) (context.Context, trace.Span) {
	return telemetry.Tracer().Start(ctx, name, trace.WithAttributes(attribute.String("session.id", sessionID)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
