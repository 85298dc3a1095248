// Package places resolves place photo references to image URLs.
package places

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/samirrijal/pintfinder/internal/core/domain"
	"github.com/samirrijal/pintfinder/internal/pkg/telemetry"
)

// Client implements ports.PhotoResolver against a place-photo endpoint
// that redirects to the image.
type Client struct {
	endpoint   string
	apiKey     string
	maxWidth   int
	httpClient *http.Client
}

func New(endpoint, apiKey string, maxWidth int, timeout time.Duration) *Client {
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		maxWidth:   maxWidth,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ResolvePhotoURL follows the endpoint's redirect and returns the final
// image URL. A response that was not redirected is rejected so the API key
// never reaches the browser.
func (c *Client) ResolvePhotoURL(ctx context.Context, reference string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanPhotoResolve)
	defer span.End()

	q := url.Values{}
	q.Set("maxwidth", strconv.Itoa(c.maxWidth))
	q.Set("photoreference", reference)
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrPhoto, err)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("%w: %v", domain.ErrPhoto, err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<20))

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", domain.ErrPhoto, res.StatusCode)
	}

	final := res.Request.URL
	if final.String() == req.URL.String() {
		return "", fmt.Errorf("%w: photo endpoint did not redirect", domain.ErrPhoto)
	}
	return final.String(), nil
}
