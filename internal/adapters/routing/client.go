// Package routing is the client of the pub-crawl routing backend.
package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/pintfinder/internal/core/domain"
	"github.com/samirrijal/pintfinder/internal/pkg/metrics"
	"github.com/samirrijal/pintfinder/internal/pkg/telemetry"
)

// Client implements ports.RouteBackend over HTTP.
type Client struct {
	url        string
	httpClient *http.Client
}

// New creates a routing client posting to url. The per-request deadline
// comes from the caller's context; timeout is a transport backstop.
func New(url string, timeout time.Duration) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// routeRequest is the backend's request body. Field order is part of the
// contract.
type routeRequest struct {
	Long    float64 `json:"long"`
	Lat     float64 `json:"lat"`
	Radius  float64 `json:"radius"`
	Rating  int     `json:"rating"`
	Walk    int     `json:"walk"`
	Warrior bool    `json:"warrior"`
}

type wireNode struct {
	Name             string    `json:"name"`
	Loc              []float64 `json:"loc"` // [lat, lng]
	PhotoReference   string    `json:"photo_reference"`
	PhotoReferenceJS string    `json:"PhotoReference"`
	Rating           float64   `json:"rating"`
}

type wireSegment struct {
	StartNode wireNode    `json:"start_node"`
	EndNode   wireNode    `json:"end_node"`
	Time      float64     `json:"time"`     // minutes
	Distance  float64     `json:"distance"` // meters
	Route     [][]float64 `json:"route"`    // [lat, lng] pairs
}

// EncodeRequest builds the request body for origin and prefs.
func EncodeRequest(origin domain.Coordinate, prefs domain.Preferences) ([]byte, error) {
	return json.Marshal(routeRequest{
		Long:    origin.Lng,
		Lat:     origin.Lat,
		Radius:  prefs.SearchRadiusKm,
		Rating:  int(prefs.PubQuality),
		Walk:    int(prefs.WalkTolerance),
		Warrior: prefs.WarriorMode,
	})
}

// DecodeResponse parses a backend response, swapping [lat, lng] pairs into
// map order.
func DecodeResponse(r io.Reader) (*domain.RouteResponse, error) {
	var wire []wireSegment
	if err := json.NewDecoder(r).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode route: %w", err)
	}

	resp := &domain.RouteResponse{Segments: make([]domain.RouteSegment, 0, len(wire))}
	for i, ws := range wire {
		start, err := ws.StartNode.stop()
		if err != nil {
			return nil, fmt.Errorf("segment %d start: %w", i, err)
		}
		end, err := ws.EndNode.stop()
		if err != nil {
			return nil, fmt.Errorf("segment %d end: %w", i, err)
		}
		path := make([]domain.Coordinate, 0, len(ws.Route))
		for j, pt := range ws.Route {
			c, err := latLng(pt)
			if err != nil {
				return nil, fmt.Errorf("segment %d point %d: %w", i, j, err)
			}
			path = append(path, c)
		}
		resp.Segments = append(resp.Segments, domain.RouteSegment{
			Start:           start,
			End:             end,
			Path:            path,
			DurationMinutes: int(math.Round(ws.Time)),
			DistanceMeters:  int(math.Round(ws.Distance)),
		})
	}
	return resp, nil
}

func (n wireNode) stop() (domain.RouteStop, error) {
	loc, err := latLng(n.Loc)
	if err != nil {
		return domain.RouteStop{}, fmt.Errorf("%s: %w", n.Name, err)
	}
	ref := n.PhotoReference
	if ref == "" {
		ref = n.PhotoReferenceJS
	}
	return domain.RouteStop{Name: n.Name, Location: loc, PhotoReference: ref, Rating: n.Rating}, nil
}

// latLng is the single place backend [lat, lng] pairs become coordinates.
func latLng(pt []float64) (domain.Coordinate, error) {
	if len(pt) != 2 {
		return domain.Coordinate{}, fmt.Errorf("%w: expected [lat, lng], got %d values", domain.ErrInvalidCoordinate, len(pt))
	}
	return domain.NewCoordinate(pt[1], pt[0])
}

// RequestRoute posts origin and prefs to the backend.
func (c *Client) RequestRoute(ctx context.Context, origin domain.Coordinate, prefs domain.Preferences) (*domain.RouteResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanRouteRequest,
		attribute.Float64("origin.lng", origin.Lng),
		attribute.Float64("origin.lat", origin.Lat),
	)
	defer span.End()

	start := time.Now()
	resp, err := c.do(ctx, origin, prefs)
	metrics.RouteRequestDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		var re *domain.RouteError
		outcome := "error"
		if errors.As(err, &re) {
			outcome = string(re.Kind)
		}
		metrics.RouteRequests.WithLabelValues(outcome).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.RouteRequests.WithLabelValues("ok").Inc()
	span.SetAttributes(attribute.Int("segments", len(resp.Segments)))
	return resp, nil
}

func (c *Client) do(ctx context.Context, origin domain.Coordinate, prefs domain.Preferences) (*domain.RouteResponse, error) {
	body, err := EncodeRequest(origin, prefs)
	if err != nil {
		return nil, &domain.RouteError{Kind: domain.RouteErrParse, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, &domain.RouteError{Kind: domain.RouteErrNetwork, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, &domain.RouteError{Kind: domain.RouteErrTimeout, Err: err}
		}
		return nil, &domain.RouteError{Kind: domain.RouteErrNetwork, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, &domain.RouteError{
			Kind:   domain.RouteErrBackend,
			Status: res.StatusCode,
			Err:    errors.New(string(bytes.TrimSpace(snippet))),
		}
	}

	route, err := DecodeResponse(res.Body)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, &domain.RouteError{Kind: domain.RouteErrTimeout, Err: err}
		}
		return nil, &domain.RouteError{Kind: domain.RouteErrParse, Err: err}
	}
	return route, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
