// Package memstore keeps session snapshots in process memory with expiry.
package memstore

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/samirrijal/raycross/internal/core/domain"
	"github.com/samirrijal/raycross/internal/pkg/metrics"
)

// Store implements ports.SessionStore on a ttlcache.
type Store struct {
	cache *ttlcache.Cache[string, domain.Snapshot]
}

// New creates a store holding at most capacity sessions (0 = unbounded).
// onExpire, when set, is called for sessions that expire or are evicted for capacity.
// The store keeps metrics.ActiveSessions equal to the number of sessions it holds.
func New(capacity uint64, onExpire func(id string)) *Store {
	opts := []ttlcache.Option[string, domain.Snapshot]{}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, domain.Snapshot](capacity))
	}
	cache := ttlcache.New(opts...)
	cache.OnInsertion(func(ctx context.Context, item *ttlcache.Item[string, domain.Snapshot]) {
		metrics.ActiveSessions.Inc()
	})
	cache.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, domain.Snapshot]) {
		metrics.ActiveSessions.Dec()
		if onExpire == nil || reason == ttlcache.EvictionReasonDeleted {
			return
		}
		onExpire(item.Key())
	})
	return &Store{cache: cache}
}

// Start runs the expiry loop until Stop is called.
func (s *Store) Start() {
	go s.cache.Start()
}

// Stop ends the expiry loop.
func (s *Store) Stop() {
	s.cache.Stop()
}

// Get returns a copy of the stored snapshot.
func (s *Store) Get(ctx context.Context, id string) (*domain.Snapshot, error) {
	item := s.cache.Get(id)
	if item == nil {
		return nil, domain.ErrSessionNotFound
	}
	snap := item.Value()
	snap.Rays = append([]domain.Ray(nil), snap.Rays...)
	return &snap, nil
}

// Save stores a copy of snap and refreshes its expiry.
func (s *Store) Save(ctx context.Context, snap *domain.Snapshot, ttl time.Duration) error {
	cp := *snap
	cp.Rays = append([]domain.Ray(nil), snap.Rays...)
	s.cache.Set(cp.SessionID, cp, ttl)
	return nil
}

// Delete removes a session.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.cache.Delete(id)
	return nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.cache.Len()
}
