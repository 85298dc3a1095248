// Package policeuk fetches street-level crimes from the data.police.uk API.
package policeuk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/samirrijal/pintfinder/internal/core/domain"
	"github.com/samirrijal/pintfinder/internal/pkg/telemetry"
)

// Client implements ports.CrimeFeed.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates a client for baseURL (e.g. https://data.police.uk/api)
// allowing at most perSecond requests per second.
func New(baseURL string, perSecond float64, timeout time.Duration) *Client {
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

type apiCrime struct {
	ID       int64  `json:"id"`
	Category string `json:"category"`
	Month    string `json:"month"`
	Location struct {
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
		Street    struct {
			Name string `json:"name"`
		} `json:"street"`
	} `json:"location"`
}

// FetchIncidents returns crimes recorded within a mile of at during month.
func (c *Client) FetchIncidents(ctx context.Context, at domain.Coordinate, month, category string) ([]domain.CrimeIncident, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanCrimeFetch,
		attribute.String("category", category),
		attribute.String("month", month),
	)
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit: %v", domain.ErrCrimeFeed, err)
	}

	q := url.Values{}
	q.Set("date", month)
	q.Set("lat", strconv.FormatFloat(at.Lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(at.Lng, 'f', -1, 64))
	endpoint := fmt.Sprintf("%s/crimes-street/%s?%s", c.baseURL, url.PathEscape(category), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCrimeFeed, err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", domain.ErrCrimeFeed, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
		return nil, fmt.Errorf("%w: status %d", domain.ErrCrimeFeed, res.StatusCode)
	}

	var raw []apiCrime
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrCrimeFeed, err)
	}

	incidents := make([]domain.CrimeIncident, 0, len(raw))
	for _, r := range raw {
		inc, err := r.incident()
		if err != nil {
			slog.Debug("skipping crime with bad location", "id", r.ID, "error", err)
			continue
		}
		incidents = append(incidents, inc)
	}
	span.SetAttributes(attribute.Int("incidents", len(incidents)))
	return incidents, nil
}

func (r apiCrime) incident() (domain.CrimeIncident, error) {
	lat, err := strconv.ParseFloat(r.Location.Latitude, 64)
	if err != nil {
		return domain.CrimeIncident{}, fmt.Errorf("latitude %q: %w", r.Location.Latitude, err)
	}
	lng, err := strconv.ParseFloat(r.Location.Longitude, 64)
	if err != nil {
		return domain.CrimeIncident{}, fmt.Errorf("longitude %q: %w", r.Location.Longitude, err)
	}
	loc, err := domain.NewCoordinate(lng, lat)
	if err != nil {
		return domain.CrimeIncident{}, err
	}
	return domain.CrimeIncident{
		ID:       r.ID,
		Category: r.Category,
		Location: loc,
		Month:    r.Month,
		Street:   r.Location.Street.Name,
	}, nil
}
