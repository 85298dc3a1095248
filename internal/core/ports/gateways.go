package ports

import (
	"context"

	"github.com/samirrijal/pintfinder/internal/core/domain"
)

// RouteBackend asks the remote routing service for a pub crawl.
type RouteBackend interface {
	RequestRoute(ctx context.Context, origin domain.Coordinate, prefs domain.Preferences) (*domain.RouteResponse, error)
}

// CrimeFeed fetches street-level crimes recorded near a point.
type CrimeFeed interface {
	FetchIncidents(ctx context.Context, at domain.Coordinate, month, category string) ([]domain.CrimeIncident, error)
}

// PhotoResolver turns an opaque photo reference into an image URL.
type PhotoResolver interface {
	ResolvePhotoURL(ctx context.Context, reference string) (string, error)
}
