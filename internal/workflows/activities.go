package workflows

import (
	"context"
	"fmt"

	"github.com/samirrijal/pintfinder/internal/core/domain"
)

// CrimeWarmer fetches, and thereby caches, incidents near a point.
type CrimeWarmer interface {
	FetchIncidents(ctx context.Context, at domain.Coordinate, month, category string) []domain.CrimeIncident
}

// EnrichmentActivities holds the activity implementations for the
// enrichment workflow.
type EnrichmentActivities struct {
	Crimes CrimeWarmer
}

// WarmCrimeCache fetches incidents around a point with the default month
// and category, the same query a submit from that point makes.
func (a *EnrichmentActivities) WarmCrimeCache(ctx context.Context, lng, lat float64) (int, error) {
	if a.Crimes == nil {
		return 0, fmt.Errorf("no crime feed configured")
	}
	at, err := domain.NewCoordinate(lng, lat)
	if err != nil {
		return 0, err
	}
	return len(a.Crimes.FetchIncidents(ctx, at, "", "")), nil
}
