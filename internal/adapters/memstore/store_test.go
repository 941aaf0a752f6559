package memstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/raycross/internal/adapters/memstore"
	"github.com/samirrijal/raycross/internal/core/domain"
	"github.com/samirrijal/raycross/internal/pkg/metrics"
)

func TestStore_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	s := memstore.New(0, nil)

	snap := &domain.Snapshot{SessionID: "s1", Rays: []domain.Ray{{ID: "r1"}}}
	require.NoError(t, s.Save(ctx, snap, time.Minute))

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.Rays[0].ID)

	// Stored copies are isolated from caller mutation.
	got.Rays[0].ID = "changed"
	snap.Rays[0].ID = "changed"
	again, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "r1", again.Rays[0].ID)

	require.NoError(t, s.Delete(ctx, "s1"))
	_, err = s.Get(ctx, "s1")
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
}

func TestStore_Expiry(t *testing.T) {
	ctx := context.Background()
	expired := make(chan string, 1)
	s := memstore.New(0, func(id string) { expired <- id })
	s.Start()
	defer s.Stop()

	require.NoError(t, s.Save(ctx, &domain.Snapshot{SessionID: "short"}, 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	_, err := s.Get(ctx, "short")
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))

	select {
	case id := <-expired:
		assert.Equal(t, "short", id)
	case <-time.After(time.Second):
		t.Fatal("expiry callback not called")
	}
}

func TestStore_Capacity(t *testing.T) {
	ctx := context.Background()
	s := memstore.New(1, nil)
	require.NoError(t, s.Save(ctx, &domain.Snapshot{SessionID: "a"}, time.Minute))
	require.NoError(t, s.Save(ctx, &domain.Snapshot{SessionID: "b"}, time.Minute))
	assert.Equal(t, 1, s.Len())
}

func TestStore_ActiveSessionsGauge(t *testing.T) {
	ctx := context.Background()
	s := memstore.New(0, nil)
	s.Start()
	defer s.Stop()
	base := testutil.ToFloat64(metrics.ActiveSessions)

	// ttlcache runs insertion and eviction callbacks on their own goroutines.
	gaugeIs := func(want float64, msg string) {
		t.Helper()
		assert.Eventually(t, func() bool {
			return testutil.ToFloat64(metrics.ActiveSessions) == want
		}, time.Second, 5*time.Millisecond, msg)
	}

	require.NoError(t, s.Save(ctx, &domain.Snapshot{SessionID: "a"}, time.Minute))
	require.NoError(t, s.Save(ctx, &domain.Snapshot{SessionID: "b"}, 200*time.Millisecond))
	// Saving an existing session again is not a new session.
	require.NoError(t, s.Save(ctx, &domain.Snapshot{SessionID: "a"}, time.Minute))
	gaugeIs(base+2, "expected two sessions counted")

	require.NoError(t, s.Delete(ctx, "a"))
	gaugeIs(base+1, "deleted session still counted")

	gaugeIs(base, "expired session still counted")
}
