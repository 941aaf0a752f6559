package usecases_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/raycross/internal/adapters/overlay"
	"github.com/samirrijal/raycross/internal/core/domain"
	"github.com/samirrijal/raycross/internal/core/ports"
	"github.com/samirrijal/raycross/internal/core/usecases"
	"github.com/samirrijal/raycross/internal/pkg/geospatial"
)

// --- Mock SessionStore ---

type mockStore struct {
	mu      sync.Mutex
	snaps   map[string]domain.Snapshot
	saveErr error
}

func newMockStore() *mockStore {
	return &mockStore{snaps: make(map[string]domain.Snapshot)}
}

func (m *mockStore) Get(ctx context.Context, id string) (*domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &snap, nil
}

func (m *mockStore) Save(ctx context.Context, snap *domain.Snapshot, ttl time.Duration) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[snap.SessionID] = *snap
	return nil
}

func (m *mockStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, id)
	return nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.SessionEvent
	err    error
}

func (m *mockPublisher) PublishSessionEvent(ctx context.Context, ev *domain.SessionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *ev)
	return m.err
}

func (m *mockPublisher) kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, ev := range m.events {
		out = append(out, ev.Kind)
	}
	return out
}

// --- Mock RowFeed ---

type mockFeed struct {
	rows []domain.RawRow
	err  error
}

func (m mockFeed) Rows(ctx context.Context) ([]domain.RawRow, error) { return m.rows, m.err }
func (m mockFeed) Source() string                                     { return "mock" }

// --- Helpers ---

func newService(t *testing.T) (*usecases.SessionService, *mockStore, *mockPublisher, string) {
	t.Helper()
	store := newMockStore()
	pub := &mockPublisher{}
	svc := usecases.NewSessionService(store, pub, func() ports.OverlaySurface { return overlay.New() }, time.Hour)
	snap, err := svc.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return svc, store, pub, snap.SessionID
}

// squareRows are two eastbound and two northbound rays crossing in a square
// of side 0.01 degrees with its lower-left corner at (0, 0).
func squareRows() []domain.RawRow {
	length := fmt.Sprint(0.02 * geospatial.EarthRadiusMeters * math.Pi / 180)
	return []domain.RawRow{
		{"0", "-0.005", "90", length},
		{"0.01", "-0.005", "90", length},
		{"-0.005", "0", "0", length},
		{"-0.005", "0.01", "0", length},
	}
}

func input(lat, lon, bearing, dist float64) domain.RayInput {
	return domain.RayInput{Origin: domain.GeoPoint{Lat: lat, Lon: lon}, Bearing: bearing, DistanceMeters: dist}
}

// --- Tests ---

func TestSessionService_CreateAndGet(t *testing.T) {
	svc, _, _, id := newService(t)

	snap, err := svc.GetSession(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Rays) != 0 {
		t.Errorf("expected empty session, got %d rays", len(snap.Rays))
	}
	if snap.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestSessionService_UnknownSession(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.AddRay(ctx, "missing", input(0, 0, 0, 100)); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("AddRay: expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.ComputeIntersectionsAndFit(ctx, "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("Compute: expected ErrSessionNotFound, got %v", err)
	}
	if err := svc.CloseSession(ctx, "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("Close: expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionService_AddRay(t *testing.T) {
	svc, _, pub, id := newService(t)
	ctx := context.Background()

	ray, err := svc.AddRay(ctx, id, input(12.9716, 77.5946, 45, 1000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ray.ID == "" {
		t.Error("expected ray id")
	}
	if ray.Selected {
		t.Error("new ray must be unselected")
	}
	want := geospatial.Destination(ray.Origin, 45, 1000)
	if ray.Destination != want {
		t.Errorf("expected destination %+v, got %+v", want, ray.Destination)
	}

	snap, _ := svc.GetSession(ctx, id)
	if len(snap.Rays) != 1 || snap.Rays[0].ID != ray.ID {
		t.Fatalf("expected stored ray %s, got %+v", ray.ID, snap.Rays)
	}
	if kinds := pub.kinds(); len(kinds) != 1 || kinds[0] != domain.EventRayAdded {
		t.Errorf("expected one ray_added event, got %v", kinds)
	}
}

func TestSessionService_AddRay_Invalid(t *testing.T) {
	svc, _, pub, id := newService(t)

	_, err := svc.AddRay(context.Background(), id, input(0, 0, 0, -5))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	_, err = svc.AddRay(context.Background(), id, input(math.NaN(), 0, 0, 5))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(pub.kinds()) != 0 {
		t.Error("rejected commands must not publish")
	}
}

func TestSessionService_ToggleAndRemove(t *testing.T) {
	svc, _, _, id := newService(t)
	ctx := context.Background()

	a, _ := svc.AddRay(ctx, id, input(0, 0, 0, 100))
	b, _ := svc.AddRay(ctx, id, input(1, 1, 90, 100))

	removed, err := svc.RemoveSelectedRays(ctx, id)
	if err != nil || len(removed) != 0 {
		t.Fatalf("expected no-op removal, got %v, %v", removed, err)
	}

	toggled, err := svc.ToggleRaySelection(ctx, id, a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !toggled.Selected {
		t.Error("expected ray to be selected")
	}

	removed, err = svc.RemoveSelectedRays(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(removed) != 1 || removed[0] != a.ID {
		t.Fatalf("expected [%s] removed, got %v", a.ID, removed)
	}

	snap, _ := svc.GetSession(ctx, id)
	if len(snap.Rays) != 1 || snap.Rays[0].ID != b.ID {
		t.Errorf("expected only %s left, got %+v", b.ID, snap.Rays)
	}
	if len(snap.SelectedIDs()) != 0 {
		t.Error("selection must be empty after removal")
	}

	if _, err := svc.ToggleRaySelection(ctx, id, a.ID); !errors.Is(err, domain.ErrRayNotFound) {
		t.Errorf("expected ErrRayNotFound, got %v", err)
	}
}

func TestSessionService_ComputeFit_Insufficient(t *testing.T) {
	svc, _, _, id := newService(t)
	ctx := context.Background()

	svc.AddRay(ctx, id, input(0, 0, 0, 100))
	svc.AddRay(ctx, id, input(0, 0, 90, 100))

	res, err := svc.ComputeIntersectionsAndFit(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != domain.StatusInsufficientRays {
		t.Errorf("expected insufficient_rays, got %s", res.Status)
	}
	if res.Message != "Please add at least three rays." {
		t.Errorf("unexpected message %q", res.Message)
	}
	if res.Attempts != 0 {
		t.Errorf("expected no pairs tested, got %d", res.Attempts)
	}
	snap, _ := svc.GetSession(ctx, id)
	if snap.LastFit != nil {
		t.Error("insufficient request must not record a result")
	}
}

func TestSessionService_ImportAndFit(t *testing.T) {
	svc, _, pub, id := newService(t)
	ctx := context.Background()

	rows := append(squareRows(),
		domain.RawRow{"latitude", "longitude", "bearing", "distance"},
		domain.RawRow{"1", "2"},
	)
	report, err := svc.ImportRays(ctx, id, rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Added != 4 || report.Skipped != 2 {
		t.Fatalf("expected 4 added / 2 skipped, got %+v", report)
	}

	res, err := svc.ComputeIntersectionsAndFit(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != domain.StatusOK {
		t.Fatalf("expected ok, got %s", res.Status)
	}
	if res.Attempts != 6 || len(res.Intersections) != 4 {
		t.Fatalf("expected 6 attempts and 4 crossings, got %d and %d", res.Attempts, len(res.Intersections))
	}
	if math.Abs(res.Ellipse.Center.Lat-0.005) > 1e-6 || math.Abs(res.Ellipse.Center.Lon-0.005) > 1e-6 {
		t.Errorf("expected centre near (0.005, 0.005), got %+v", res.Ellipse.Center)
	}

	fc, err := svc.Overlays(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 4 rays + 4 markers + 1 ellipse
	if len(fc.Features) != 9 {
		t.Errorf("expected 9 overlay features, got %d", len(fc.Features))
	}

	kinds := pub.kinds()
	if len(kinds) != 2 || kinds[0] != domain.EventImported || kinds[1] != domain.EventFit {
		t.Errorf("expected imported then fit events, got %v", kinds)
	}
}

func TestSessionService_ImportFeed(t *testing.T) {
	svc, _, _, id := newService(t)
	ctx := context.Background()

	report, err := svc.ImportFeed(ctx, id, mockFeed{rows: squareRows()[:2]})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Added != 2 || len(report.RayIDs) != 2 {
		t.Errorf("expected 2 added, got %+v", report)
	}

	_, err = svc.ImportFeed(ctx, id, mockFeed{err: errors.New("disk on fire")})
	if err == nil {
		t.Error("expected feed error")
	}
}

func TestSessionService_NoIntersectionsAfterRemoval(t *testing.T) {
	svc, _, _, id := newService(t)
	ctx := context.Background()

	report, _ := svc.ImportRays(ctx, id, squareRows())
	if res, _ := svc.ComputeIntersectionsAndFit(ctx, id); res.Status != domain.StatusOK {
		t.Fatalf("expected ok, got %s", res.Status)
	}

	// Keep only the northbound rays and add a third parallel one.
	for _, rayID := range report.RayIDs[:2] {
		if _, err := svc.ToggleRaySelection(ctx, id, rayID); err != nil {
			t.Fatalf("toggle: %v", err)
		}
	}
	svc.RemoveSelectedRays(ctx, id)
	svc.AddRay(ctx, id, input(-0.005, 0.02, 0, 1000))

	res, err := svc.ComputeIntersectionsAndFit(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != domain.StatusNoIntersections || res.Message != "No intersections found." {
		t.Errorf("expected no_intersections, got %s %q", res.Status, res.Message)
	}

	fc, _ := svc.Overlays(ctx, id)
	if len(fc.Features) != 3 {
		t.Errorf("expected only the 3 rays drawn, got %d features", len(fc.Features))
	}
}

func TestSessionService_View(t *testing.T) {
	svc, _, _, id := newService(t)
	ctx := context.Background()

	view, err := svc.View(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Center != domain.DefaultMapView.Center || view.Zoom != 5 || view.Bounds != nil {
		t.Errorf("expected default view, got %+v", view)
	}

	svc.ImportRays(ctx, id, squareRows())
	view, _ = svc.View(ctx, id)
	if view.Bounds == nil {
		t.Fatal("expected bounds")
	}
	if math.Abs(view.Center.Lat-0.005) > 1e-6 || math.Abs(view.Center.Lon-0.005) > 1e-6 {
		t.Errorf("expected centre near (0.005, 0.005), got %+v", view.Center)
	}
}

func TestSessionService_Close(t *testing.T) {
	svc, store, pub, id := newService(t)
	ctx := context.Background()
	svc.AddRay(ctx, id, input(0, 0, 0, 100))

	if err := svc.CloseSession(ctx, id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Get(ctx, id); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected session to be deleted, got %v", err)
	}
	kinds := pub.kinds()
	if kinds[len(kinds)-1] != domain.EventClosed {
		t.Errorf("expected closed event last, got %v", kinds)
	}
}

func TestSessionService_SaveError(t *testing.T) {
	svc, store, pub, id := newService(t)
	store.saveErr = errors.New("store down")

	if _, err := svc.AddRay(context.Background(), id, input(0, 0, 0, 100)); err == nil {
		t.Fatal("expected save error")
	}
	if len(pub.kinds()) != 0 {
		t.Error("failed commands must not publish")
	}
}

func TestSessionService_PublishErrorIsNotFatal(t *testing.T) {
	svc, _, pub, id := newService(t)
	pub.err = errors.New("nats down")

	if _, err := svc.AddRay(context.Background(), id, input(0, 0, 0, 100)); err != nil {
		t.Fatalf("publish failure must not fail the command: %v", err)
	}
}

func TestSessionService_ConcurrentAdds(t *testing.T) {
	svc, _, _, id := newService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.AddRay(ctx, id, input(0, float64(i)/100, 0, 100)); err != nil {
				t.Errorf("add %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	snap, _ := svc.GetSession(ctx, id)
	if len(snap.Rays) != 20 {
		t.Errorf("expected 20 rays, got %d", len(snap.Rays))
	}
}

func TestViewOf_ZeroLengthRayKeepsMinimumFrame(t *testing.T) {
	origin := domain.GeoPoint{Lat: 43.26, Lon: -2.93}
	view := usecases.ViewOf([]domain.Ray{{Origin: origin, Destination: origin}})
	if view.Bounds == nil {
		t.Fatal("expected bounds")
	}
	if view.Bounds.MaxLat-view.Bounds.MinLat <= 0 || view.Bounds.MaxLon-view.Bounds.MinLon <= 0 {
		t.Errorf("expected a non-degenerate frame, got %+v", *view.Bounds)
	}
	if math.Abs(view.Center.Lat-origin.Lat) > 1e-9 || math.Abs(view.Center.Lon-origin.Lon) > 1e-9 {
		t.Errorf("expected centre on the origin, got %+v", view.Center)
	}
}

func TestSessionService_HugeBearingKeepsSessionReadable(t *testing.T) {
	svc, _, _, id := newService(t)
	ctx := context.Background()

	in, err := domain.ParseRow(domain.RawRow{"43.26", "-2.93", "1e308", "1000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.AddRay(ctx, id, in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.AddRay(ctx, id, input(1e308, 0, 0, 10)); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for latitude 1e308, got %v", err)
	}

	snap, err := svc.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := json.Marshal(snap); err != nil {
		t.Errorf("session must stay serialisable: %v", err)
	}
	fc, err := svc.Overlays(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := fc.MarshalJSON(); err != nil {
		t.Errorf("overlays must stay serialisable: %v", err)
	}
}

func TestSessionService_RemovalDropsStoredFit(t *testing.T) {
	svc, _, _, id := newService(t)
	ctx := context.Background()

	report, _ := svc.ImportRays(ctx, id, squareRows())
	if res, _ := svc.ComputeIntersectionsAndFit(ctx, id); res.Status != domain.StatusOK {
		t.Fatalf("expected ok, got %s", res.Status)
	}
	if _, err := svc.ToggleRaySelection(ctx, id, report.RayIDs[0]); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, err := svc.RemoveSelectedRays(ctx, id); err != nil {
		t.Fatalf("remove: %v", err)
	}

	snap, _ := svc.GetSession(ctx, id)
	if snap.LastFit != nil {
		t.Errorf("expected no stored fit after removal, got %+v", snap.LastFit)
	}
	fc, _ := svc.Overlays(ctx, id)
	if len(fc.Features) != 3 {
		t.Errorf("expected only the 3 remaining rays drawn, got %d features", len(fc.Features))
	}
}
