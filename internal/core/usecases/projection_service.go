package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samirrijal/raycross/internal/core/domain"
	"github.com/samirrijal/raycross/internal/core/ports"
	"github.com/samirrijal/raycross/internal/pkg/geospatial"
	"github.com/samirrijal/raycross/internal/pkg/metrics"
)

// ProjectionService answers stateless destination queries.
type ProjectionService struct {
	cache ports.CacheService
}

// NewProjectionService creates a new ProjectionService. cache may be nil.
func NewProjectionService(cache ports.CacheService) *ProjectionService {
	return &ProjectionService{cache: cache}
}

// Project returns the ray from in.Origin along in.Bearing for in.DistanceMeters.
// The result has no id and is never stored.
func (s *ProjectionService) Project(ctx context.Context, in domain.RayInput) (domain.Ray, error) {
	in, err := domain.NewRayInput(in.Origin.Lat, in.Origin.Lon, in.Bearing, in.DistanceMeters)
	if err != nil {
		return domain.Ray{}, err
	}

	ray := domain.Ray{Origin: in.Origin, Bearing: in.Bearing, DistanceMeters: in.DistanceMeters}

	// Try cache
	cacheKey := fmt.Sprintf("project:%v:%v:%v:%v", in.Origin.Lat, in.Origin.Lon, in.Bearing, in.DistanceMeters)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			if err := json.Unmarshal(data, &ray.Destination); err == nil {
				metrics.CacheHits.WithLabelValues("project").Inc()
				return ray, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("project").Inc()
	}

	ray.Destination = geospatial.Destination(in.Origin, in.Bearing, in.DistanceMeters)
	if !ray.Destination.Finite() {
		return domain.Ray{}, fmt.Errorf("%w: destination is not a finite point", domain.ErrInvalidInput)
	}

	// Cache for 1 hour
	if s.cache != nil {
		if data, err := json.Marshal(ray.Destination); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 3600)
		}
	}

	return ray, nil
}
