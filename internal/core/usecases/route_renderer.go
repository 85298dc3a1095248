package usecases

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/pintfinder/internal/core/domain"
	"github.com/samirrijal/pintfinder/internal/core/ports"
	"github.com/samirrijal/pintfinder/internal/pkg/geospatial"
	"github.com/samirrijal/pintfinder/internal/pkg/metrics"
)

// PhotoLookup resolves a photo reference to a URL, or "" when it cannot.
type PhotoLookup interface {
	PhotoURL(ctx context.Context, reference string) string
}

// RouteStyle parameterizes how routes are drawn.
type RouteStyle struct {
	Line domain.LineStyle
	// DedupeMeters merges stop markers closer than this within a generation.
	DedupeMeters float64
	// PhotoWorkers bounds concurrent photo lookups per render.
	PhotoWorkers int
}

// DefaultRouteStyle matches the web client's route look.
func DefaultRouteStyle() RouteStyle {
	return RouteStyle{
		Line:         domain.LineStyle{Color: "#888", Width: 8, Opacity: 1},
		DedupeMeters: 1,
		PhotoWorkers: 4,
	}
}

type drawnGeneration struct {
	gen     int64
	markers []string
	layers  []string
}

// RouteRenderer draws route responses as generation-scoped markers,
// popups and line layers. Callers serialize renders per surface with
// MapSurface.Acquire.
type RouteRenderer struct {
	photos PhotoLookup
	style  RouteStyle

	mu    sync.Mutex
	drawn map[string]*drawnGeneration // by surface id
}

// NewRouteRenderer creates a RouteRenderer. photos may be nil.
func NewRouteRenderer(photos PhotoLookup, style RouteStyle) *RouteRenderer {
	if style.PhotoWorkers <= 0 {
		style.PhotoWorkers = 1
	}
	return &RouteRenderer{photos: photos, style: style, drawn: make(map[string]*drawnGeneration)}
}

// LastGeneration returns the newest generation drawn on a surface, or 0.
func (r *RouteRenderer) LastGeneration(surfaceID string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.drawn[surfaceID]; ok {
		return d.gen
	}
	return 0
}

// Forget drops bookkeeping for a disposed surface.
func (r *RouteRenderer) Forget(surfaceID string) {
	r.mu.Lock()
	delete(r.drawn, surfaceID)
	r.mu.Unlock()
}

// Render replaces the previous generation on surface with route.
// A generation not newer than the last one fails with
// ErrDuplicateGeneration before anything is touched.
func (r *RouteRenderer) Render(ctx context.Context, surface ports.MapSurface, route *domain.RouteResponse, gen int64) (domain.RenderResult, error) {
	prev := r.previous(surface.ID())
	if prev != nil && gen <= prev.gen {
		metrics.RenderGenerations.WithLabelValues("duplicate").Inc()
		return domain.RenderResult{}, fmt.Errorf("%w: %d (last %d)", domain.ErrDuplicateGeneration, gen, prev.gen)
	}
	if route == nil {
		route = &domain.RouteResponse{}
	}

	photos, err := r.resolvePhotos(ctx, route)
	if err != nil {
		return domain.RenderResult{}, err
	}
	if !surface.Live() {
		metrics.RenderGenerations.WithLabelValues("dropped").Inc()
		return domain.RenderResult{}, domain.ErrSurfaceDisposed
	}

	if prev != nil {
		if err := r.clear(ctx, surface, prev); err != nil {
			return domain.RenderResult{}, err
		}
	}

	cur := &drawnGeneration{gen: gen}
	err = r.draw(ctx, surface, route, cur, photos)
	r.mu.Lock()
	r.drawn[surface.ID()] = cur
	r.mu.Unlock()
	if err != nil {
		return domain.RenderResult{}, err
	}

	metrics.RenderGenerations.WithLabelValues("drawn").Inc()
	return domain.RenderResult{Generation: gen, MarkerIDs: cur.markers, LayerIDs: cur.layers}, nil
}

func (r *RouteRenderer) previous(surfaceID string) *drawnGeneration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drawn[surfaceID]
}

func (r *RouteRenderer) resolvePhotos(ctx context.Context, route *domain.RouteResponse) (map[string]string, error) {
	refs := make(map[string]struct{})
	for _, seg := range route.Segments {
		for _, stop := range [2]domain.RouteStop{seg.Start, seg.End} {
			if stop.PhotoReference != "" {
				refs[stop.PhotoReference] = struct{}{}
			}
		}
	}
	resolved := make(map[string]string, len(refs))
	if r.photos == nil || len(refs) == 0 {
		return resolved, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.style.PhotoWorkers)
	for ref := range refs {
		g.Go(func() error {
			url := r.photos.PhotoURL(gctx, ref)
			if url == "" {
				return nil
			}
			mu.Lock()
			resolved[ref] = url
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return resolved, ctx.Err()
}

func (r *RouteRenderer) clear(ctx context.Context, surface ports.MapSurface, prev *drawnGeneration) error {
	for _, id := range prev.layers {
		if err := surface.RemoveSource(ctx, id); err != nil {
			return fmt.Errorf("remove layer %s: %w", id, err)
		}
	}
	for _, id := range prev.markers {
		if err := surface.RemoveMarker(ctx, id); err != nil {
			return fmt.Errorf("remove marker %s: %w", id, err)
		}
	}
	return nil
}

// plannedStop is one deduplicated marker of a generation together with
// every leg that leaves from it.
type plannedStop struct {
	id    string
	stop  domain.RouteStop
	style domain.MarkerStyle
	legs  []string
}

// planStops assigns marker ids in order of first appearance. A stop that
// coincides with an earlier one reuses its marker and adds its outgoing leg
// to that marker's popup.
func (r *RouteRenderer) planStops(route *domain.RouteResponse, gen int64) []*plannedStop {
	var planned []*plannedStop
	last := len(route.Segments) - 1

	plan := func(stop domain.RouteStop, style domain.MarkerStyle) *plannedStop {
		for _, p := range planned {
			if geospatial.Coincident(p.stop.Location, stop.Location, r.style.DedupeMeters) {
				return p
			}
		}
		p := &plannedStop{
			id:    fmt.Sprintf("marker-%d-%d", gen, len(planned)),
			stop:  stop,
			style: style,
		}
		planned = append(planned, p)
		return p
	}

	for i, seg := range route.Segments {
		startStyle := domain.MarkerStop
		if i == 0 {
			startStyle = domain.MarkerOrigin
		}
		endStyle := domain.MarkerStop
		if i == last {
			endStyle = domain.MarkerDestination
		}

		start := plan(seg.Start, startStyle)
		if leg := legText(seg); leg != "" {
			start.legs = append(start.legs, leg)
		}
		plan(seg.End, endStyle)
	}
	return planned
}

func (r *RouteRenderer) draw(ctx context.Context, surface ports.MapSurface, route *domain.RouteResponse, cur *drawnGeneration, photos map[string]string) error {
	for _, p := range r.planStops(route, cur.gen) {
		if err := surface.PlaceMarker(ctx, p.id, p.stop.Location, p.style); err != nil {
			return fmt.Errorf("place marker %s: %w", p.id, err)
		}
		cur.markers = append(cur.markers, p.id)

		popup := domain.Popup{Title: p.stop.Name, Body: stopBody(p.stop, p.legs), PhotoURL: photos[p.stop.PhotoReference]}
		if err := surface.AttachPopup(ctx, p.id, popup); err != nil {
			return fmt.Errorf("attach popup %s: %w", p.id, err)
		}
	}

	var extent []domain.Coordinate
	for i, seg := range route.Segments {
		id := fmt.Sprintf("route-%d-%d", cur.gen, i)
		line := seg.Line()
		if err := surface.AddPolyline(ctx, id, line, r.style.Line); err != nil {
			return fmt.Errorf("add polyline %s: %w", id, err)
		}
		cur.layers = append(cur.layers, id)
		extent = append(extent, line...)
	}

	if b, ok := geospatial.Extent(extent); ok {
		if err := surface.FitBounds(ctx, b); err != nil {
			return fmt.Errorf("fit bounds: %w", err)
		}
	}
	return nil
}

// stopBody describes a stop and the walks that leave from it.
func stopBody(stop domain.RouteStop, legs []string) string {
	var parts []string
	if stop.Rating > 0 {
		parts = append(parts, fmt.Sprintf("Rating %.1f", stop.Rating))
	}
	parts = append(parts, legs...)
	return strings.Join(parts, " | ")
}

func legText(seg domain.RouteSegment) string {
	if seg.DurationMinutes <= 0 {
		return ""
	}
	leg := fmt.Sprintf("%d min walk to %s", seg.DurationMinutes, seg.End.Name)
	if seg.DistanceMeters > 0 {
		leg += fmt.Sprintf(" (%d m)", seg.DistanceMeters)
	}
	return leg
}
