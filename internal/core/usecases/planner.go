package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/pintfinder/internal/core/domain"
	"github.com/samirrijal/pintfinder/internal/core/ports"
	"github.com/samirrijal/pintfinder/internal/pkg/logging"
	"github.com/samirrijal/pintfinder/internal/pkg/telemetry"
)

// IncidentSource is the best-effort crime feed the planner overlays.
type IncidentSource interface {
	FetchIncidents(ctx context.Context, at domain.Coordinate, month, category string) []domain.CrimeIncident
}

// PlannerOptions tune a Planner.
type PlannerOptions struct {
	RouteTimeout time.Duration
	// StrictGenerations returns ErrDuplicateGeneration to the caller
	// instead of logging it.
	StrictGenerations bool
}

// Planner runs one submit: route request and crime fetch, then route and
// crime renders on the session surface.
type Planner struct {
	sessions *SessionService
	backend  ports.RouteBackend
	crimes   IncidentSource
	routes   *RouteRenderer
	overlay  *CrimeOverlayRenderer
	opts     PlannerOptions
}

// NewPlanner creates a new Planner. crimes and overlay may be nil.
func NewPlanner(
	sessions *SessionService,
	backend ports.RouteBackend,
	crimes IncidentSource,
	routes *RouteRenderer,
	overlay *CrimeOverlayRenderer,
	opts PlannerOptions,
) *Planner {
	if opts.RouteTimeout <= 0 {
		opts.RouteTimeout = 30 * time.Second
	}
	return &Planner{
		sessions: sessions,
		backend:  backend,
		crimes:   crimes,
		routes:   routes,
		overlay:  overlay,
		opts:     opts,
	}
}

// Submit plans and draws a route for the session's origin and preferences.
// Route failures leave the form FAILED for a user retry.
func (p *Planner) Submit(ctx context.Context, sessionID string) (*domain.PlanResult, error) {
	sess, err := p.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanPlanSubmit, attribute.String("session", sessionID))
	defer span.End()
	log := logging.FromContext(ctx).With("session", sessionID, "view", sess.View)

	release, err := sess.Surface.Acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	origin, prefs, err := sess.Form.BeginSubmit()
	if err != nil {
		return nil, err
	}

	route, incidents, err := p.fetch(ctx, origin, prefs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		_ = sess.Form.Fail(err)
		log.Warn("route request failed", "error", err)
		return nil, err
	}

	if !sess.Surface.Live() {
		_ = sess.Form.Fail(domain.ErrSurfaceDisposed)
		return nil, domain.ErrSurfaceDisposed
	}

	gen := sess.NextGeneration()
	render, err := p.routes.Render(ctx, sess.Surface, route, gen)
	switch {
	case errors.Is(err, domain.ErrDuplicateGeneration) && !p.opts.StrictGenerations:
		log.Warn("route render skipped", "generation", gen, "error", err)
	case err != nil:
		_ = sess.Form.Fail(err)
		return nil, fmt.Errorf("render route: %w", err)
	}

	if p.overlay != nil {
		if err := p.overlay.Render(ctx, sess.Surface, incidents); err != nil {
			if errors.Is(err, domain.ErrSurfaceDisposed) {
				_ = sess.Form.Fail(err)
				return nil, err
			}
			log.Warn("crime overlay not drawn", "error", err)
		} else {
			sess.incidents.Store(int64(len(incidents)))
		}
	}

	if err := sess.Form.Complete(); err != nil {
		return nil, err
	}

	log.Info("route planned",
		"generation", gen,
		"segments", len(route.Segments),
		"minutes", route.TotalMinutes(),
		"incidents", len(incidents),
	)
	return &domain.PlanResult{
		Session:   sessionID,
		Route:     route,
		Render:    render,
		Incidents: len(incidents),
	}, nil
}

// fetch runs the route request and the crime fetch concurrently. A route
// failure cancels the crime fetch.
func (p *Planner) fetch(ctx context.Context, origin domain.Coordinate, prefs domain.Preferences) (*domain.RouteResponse, []domain.CrimeIncident, error) {
	var (
		route     *domain.RouteResponse
		incidents []domain.CrimeIncident
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rctx, cancel := context.WithTimeout(gctx, p.opts.RouteTimeout)
		defer cancel()

		r, err := p.backend.RequestRoute(rctx, origin, prefs)
		if err != nil {
			if !domain.IsRouteError(err) && errors.Is(err, context.DeadlineExceeded) {
				err = &domain.RouteError{Kind: domain.RouteErrTimeout, Err: err}
			}
			return err
		}
		route = r
		return nil
	})
	if p.crimes != nil {
		g.Go(func() error {
			incidents = p.crimes.FetchIncidents(gctx, origin, "", "")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if route == nil {
		route = &domain.RouteResponse{}
	}
	if incidents == nil {
		incidents = []domain.CrimeIncident{}
	}
	return route, incidents, nil
}
