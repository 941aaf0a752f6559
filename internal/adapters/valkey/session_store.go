package valkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/samirrijal/raycross/internal/core/domain"
)

const sessionKeyPrefix = "raycross:session:"

// SessionStore implements ports.SessionStore on Valkey so that every API replica
// and the import worker see the same sessions.
type SessionStore struct {
	cache *Cache
}

// NewSessionStore shares the cache's client.
func NewSessionStore(cache *Cache) *SessionStore {
	return &SessionStore{cache: cache}
}

// Get loads a session snapshot.
func (s *SessionStore) Get(ctx context.Context, id string) (*domain.Snapshot, error) {
	data, err := s.cache.Get(ctx, sessionKeyPrefix+id)
	if err != nil {
		if errors.Is(err, ErrMiss) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &snap, nil
}

// Save writes a snapshot with a TTL (rounded up to whole seconds).
func (s *SessionStore) Save(ctx context.Context, snap *domain.Snapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", snap.SessionID, err)
	}
	return s.cache.Set(ctx, sessionKeyPrefix+snap.SessionID, data, ttlSeconds(ttl))
}

// Delete removes a session.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.cache.Delete(ctx, sessionKeyPrefix+id)
}

// ttlSeconds rounds ttl up to whole seconds, never below one.
func ttlSeconds(ttl time.Duration) int {
	secs := int((ttl + time.Second - 1) / time.Second)
	if secs <= 0 {
		secs = 1
	}
	return secs
}
