package usecases_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/samirrijal/pintfinder/internal/core/domain"
	"github.com/samirrijal/pintfinder/internal/surface"
)

// --- Mock RouteBackend ---

type mockBackend struct {
	requestFn func(ctx context.Context, origin domain.Coordinate, prefs domain.Preferences) (*domain.RouteResponse, error)
}

func (m *mockBackend) RequestRoute(ctx context.Context, origin domain.Coordinate, prefs domain.Preferences) (*domain.RouteResponse, error) {
	if m.requestFn != nil {
		return m.requestFn(ctx, origin, prefs)
	}
	return &domain.RouteResponse{}, nil
}

// --- Mock CrimeFeed ---

type mockFeed struct {
	fetchFn func(ctx context.Context, at domain.Coordinate, month, category string) ([]domain.CrimeIncident, error)
	calls   int
}

func (m *mockFeed) FetchIncidents(ctx context.Context, at domain.Coordinate, month, category string) ([]domain.CrimeIncident, error) {
	m.calls++
	if m.fetchFn != nil {
		return m.fetchFn(ctx, at, month, category)
	}
	return nil, nil
}

// --- Mock PhotoResolver ---

type mockResolver struct {
	resolveFn func(ctx context.Context, ref string) (string, error)
	mu        sync.Mutex
	calls     int
}

func (m *mockResolver) ResolvePhotoURL(ctx context.Context, ref string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.resolveFn != nil {
		return m.resolveFn(ctx, ref)
	}
	return "", errors.New("not found")
}

// --- Mock PhotoLookup ---

type mockPhotos map[string]string

func (m mockPhotos) PhotoURL(_ context.Context, ref string) string { return m[ref] }

// --- In-memory CacheService ---

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, errors.New("miss")
	}
	return v, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// --- Mock EnrichmentScheduler ---

type mockScheduler struct {
	scheduleFn func(ctx context.Context, session string, origin domain.Coordinate) error
}

func (m *mockScheduler) ScheduleEnrichment(ctx context.Context, session string, origin domain.Coordinate) error {
	if m.scheduleFn != nil {
		return m.scheduleFn(ctx, session, origin)
	}
	return nil
}

// --- Fixtures ---

var scenarioOrigin = domain.Coordinate{Lng: -0.5658, Lat: 51.4258}

// scenarioRoute is the Rose & Crown to White Hart walk, already in map order.
func scenarioRoute() *domain.RouteResponse {
	return &domain.RouteResponse{Segments: []domain.RouteSegment{{
		Start: domain.RouteStop{Name: "Rose & Crown", Location: domain.Coordinate{Lng: -0.5660, Lat: 51.4260}},
		End:   domain.RouteStop{Name: "White Hart", Location: domain.Coordinate{Lng: -0.5700, Lat: 51.4300}},
		Path:  []domain.Coordinate{{Lng: -0.5670, Lat: 51.4270}},
	}}}
}

func newHandle(t *testing.T) *surface.Handle {
	t.Helper()
	hub := surface.NewHub()
	t.Cleanup(hub.Attach("view-1"))
	h, err := surface.Initialize(context.Background(), hub, hub, "view-1", scenarioOrigin, domain.MapOptions{Zoom: 15})
	if err != nil {
		t.Fatalf("initialize surface: %v", err)
	}
	return h
}
