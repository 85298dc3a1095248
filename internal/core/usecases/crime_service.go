package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/samirrijal/pintfinder/internal/core/domain"
	"github.com/samirrijal/pintfinder/internal/core/ports"
	"github.com/samirrijal/pintfinder/internal/pkg/logging"
	"github.com/samirrijal/pintfinder/internal/pkg/metrics"
)

// CrimeDefaults fill in omitted query parameters.
type CrimeDefaults struct {
	Month    string
	Category string
	CacheTTL time.Duration
}

// CrimeService is the best-effort crime feed: failures are logged and
// yield no incidents.
type CrimeService struct {
	feed     ports.CrimeFeed
	cache    ports.CacheService
	defaults CrimeDefaults
}

// NewCrimeService creates a new CrimeService. cache may be nil.
func NewCrimeService(feed ports.CrimeFeed, cache ports.CacheService, defaults CrimeDefaults) *CrimeService {
	if defaults.Month == "" {
		defaults.Month = "2024-01"
	}
	if defaults.Category == "" {
		defaults.Category = "all-crime"
	}
	return &CrimeService{feed: feed, cache: cache, defaults: defaults}
}

// FetchIncidents returns incidents near at. It never fails; an empty
// slice means no incidents or an unavailable feed.
func (s *CrimeService) FetchIncidents(ctx context.Context, at domain.Coordinate, month, category string) []domain.CrimeIncident {
	if month == "" {
		month = s.defaults.Month
	}
	if category == "" {
		category = s.defaults.Category
	}
	log := logging.FromContext(ctx).With("lat", at.Lat, "lng", at.Lng, "month", month, "category", category)

	cacheKey := fmt.Sprintf("crimes:%s:%s:%.4f:%.4f", category, month, at.Lat, at.Lng)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var incidents []domain.CrimeIncident
			if err := json.Unmarshal(data, &incidents); err == nil {
				metrics.CacheHits.WithLabelValues("crimes").Inc()
				metrics.CrimeFetches.WithLabelValues("cached").Inc()
				return incidents
			}
		}
		metrics.CacheMisses.WithLabelValues("crimes").Inc()
	}

	incidents, err := s.feed.FetchIncidents(ctx, at, month, category)
	if err != nil {
		metrics.CrimeFetches.WithLabelValues("error").Inc()
		log.Warn("crime feed unavailable, showing no incidents", "error", err)
		return []domain.CrimeIncident{}
	}
	if incidents == nil {
		incidents = []domain.CrimeIncident{}
	}
	metrics.CrimeFetches.WithLabelValues("ok").Inc()

	if s.cache != nil && s.defaults.CacheTTL > 0 {
		if data, err := json.Marshal(incidents); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, int(s.defaults.CacheTTL.Seconds()))
		}
	}
	log.Debug("crime incidents fetched", "count", len(incidents))
	return incidents
}
