package ports

import (
	"context"

	"github.com/samirrijal/pintfinder/internal/core/domain"
)

// MapSurface is the capability surface of one interactive map.
// Ids are chosen by the caller so renders can scope them per generation.
type MapSurface interface {
	ID() string
	View() string
	Live() bool
	// Acquire takes the surface's in-flight flag for a multi-op render pass.
	Acquire() (release func(), err error)

	OnLoad(cb func()) (cancel func())
	OnClick(cb func(domain.Coordinate)) (cancel func())

	PlaceMarker(ctx context.Context, id string, at domain.Coordinate, style domain.MarkerStyle) error
	RemoveMarker(ctx context.Context, id string) error
	AttachPopup(ctx context.Context, markerID string, popup domain.Popup) error
	AddPolyline(ctx context.Context, id string, path []domain.Coordinate, style domain.LineStyle) error
	AddSource(ctx context.Context, src domain.Source) error
	RemoveSource(ctx context.Context, id string) error
	AddLayer(ctx context.Context, layer domain.Layer) error
	RemoveLayer(ctx context.Context, id string) error
	FitBounds(ctx context.Context, b domain.Bounds) error

	Snapshot() domain.Scene
	Dispose()
}

// ViewSurface is a MapSurface whose browser events are delivered by the
// transport that carries the view.
type ViewSurface interface {
	MapSurface
	Click(at domain.Coordinate)
	MarkLoaded()
}

// SurfaceFactory initializes surfaces on attached views.
type SurfaceFactory interface {
	NewSurface(ctx context.Context, view string, center domain.Coordinate) (ViewSurface, error)
}

// SurfacePublisher ships scene mutations towards the browser view.
type SurfacePublisher interface {
	PublishSurfaceOp(ctx context.Context, op domain.SurfaceOp) error
}

// SurfaceSubscriber delivers the ops published for one view.
type SurfaceSubscriber interface {
	SubscribeView(view string, handler func(data []byte)) (unsubscribe func(), err error)
}

// ViewRegistry tracks which browser views currently have a live client.
type ViewRegistry interface {
	Attached(view string) bool
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// EnrichmentScheduler warms caches in the background for a freshly picked
// origin, ahead of the submit that reads them.
type EnrichmentScheduler interface {
	ScheduleEnrichment(ctx context.Context, session string, origin domain.Coordinate) error
}
