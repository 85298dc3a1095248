package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samirrijal/pintfinder/internal/core/domain"
	"github.com/samirrijal/pintfinder/internal/core/ports"
	"github.com/samirrijal/pintfinder/internal/pkg/logging"
	"github.com/samirrijal/pintfinder/internal/pkg/metrics"
)

// PhotoService resolves stop photo references and caches the result.
type PhotoService struct {
	resolver ports.PhotoResolver
	cache    ports.CacheService
	ttl      time.Duration
}

// NewPhotoService creates a new PhotoService. resolver and cache may be nil.
func NewPhotoService(resolver ports.PhotoResolver, cache ports.CacheService, ttl time.Duration) *PhotoService {
	return &PhotoService{resolver: resolver, cache: cache, ttl: ttl}
}

// Resolve returns the image URL for reference.
func (s *PhotoService) Resolve(ctx context.Context, reference string) (string, error) {
	if reference == "" {
		return "", fmt.Errorf("%w: empty reference", domain.ErrPhoto)
	}
	if s.resolver == nil {
		return "", fmt.Errorf("%w: no photo endpoint configured", domain.ErrPhoto)
	}

	cacheKey := "photo:" + reference
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil && len(data) > 0 {
			metrics.CacheHits.WithLabelValues("photos").Inc()
			return string(data), nil
		}
		metrics.CacheMisses.WithLabelValues("photos").Inc()
	}

	url, err := s.resolver.ResolvePhotoURL(ctx, reference)
	if err != nil {
		metrics.PhotoResolutions.WithLabelValues("error").Inc()
		if errors.Is(err, domain.ErrPhoto) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", domain.ErrPhoto, err)
	}
	metrics.PhotoResolutions.WithLabelValues("ok").Inc()

	if s.cache != nil && s.ttl > 0 {
		_ = s.cache.Set(ctx, cacheKey, []byte(url), int(s.ttl.Seconds()))
	}
	return url, nil
}

// PhotoURL is Resolve for rendering: failures are logged and yield "".
func (s *PhotoService) PhotoURL(ctx context.Context, reference string) string {
	url, err := s.Resolve(ctx, reference)
	if err != nil {
		logging.FromContext(ctx).Debug("photo not resolved", "reference", reference, "error", err)
		return ""
	}
	return url
}
