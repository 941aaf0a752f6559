package ports

import (
	"context"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/raycross/internal/core/domain"
)

// SessionStore persists session snapshots between commands. Entries expire after ttl.
type SessionStore interface {
	Get(ctx context.Context, id string) (*domain.Snapshot, error)
	Save(ctx context.Context, snap *domain.Snapshot, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// EventPublisher publishes session events to a message broker.
type EventPublisher interface {
	PublishSessionEvent(ctx context.Context, event *domain.SessionEvent) error
}

// RenderSurface is the map widget the core draws onto.
// Geometry is either a domain.GeoPoint, a domain.Segment or a []domain.GeoPoint ring.
type RenderSurface interface {
	AddOverlay(geometry any, style domain.Style) domain.OverlayHandle
	RemoveOverlay(handle domain.OverlayHandle)
	Distance(a, b domain.GeoPoint) float64
}

// OverlaySurface is a RenderSurface whose contents can be exported as GeoJSON.
type OverlaySurface interface {
	RenderSurface
	FeatureCollection() *geojson.FeatureCollection
}

// RowFeed yields already-materialised rows from a data-ingestion source.
type RowFeed interface {
	Rows(ctx context.Context) ([]domain.RawRow, error)
	Source() string
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
