package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/pintfinder/internal/core/domain"
	"github.com/samirrijal/pintfinder/internal/core/ports"
	"github.com/samirrijal/pintfinder/internal/pkg/logging"
)

// OriginMarkerID is the id of the user's candidate origin marker.
const OriginMarkerID = "origin"

// enrichScheduleTimeout bounds one warmup hand-off to the scheduler.
const enrichScheduleTimeout = 5 * time.Second

// Session is one planning session: a surface on a view plus its form.
type Session struct {
	ID        string
	View      string
	CreatedAt time.Time
	Surface   ports.ViewSurface
	Form      *OverlayForm

	generation atomic.Int64
	incidents  atomic.Int64
	cancels    []func()
}

// NextGeneration allocates the next render generation, starting at 1.
func (s *Session) NextGeneration() int64 {
	return s.generation.Add(1)
}

// Generation returns the last allocated generation.
func (s *Session) Generation() int64 {
	return s.generation.Load()
}

// Incidents returns how many crime incidents the last plan drew.
func (s *Session) Incidents() int {
	return int(s.incidents.Load())
}

// SessionView is the JSON shape of a session.
type SessionView struct {
	ID         string              `json:"id"`
	View       string              `json:"view"`
	Surface    string              `json:"surface"`
	CreatedAt  time.Time           `json:"created_at"`
	Generation int64               `json:"generation"`
	Incidents  int                 `json:"incidents"`
	Form       domain.FormSnapshot `json:"form"`
}

func (s *Session) Describe() SessionView {
	return SessionView{
		ID:         s.ID,
		View:       s.View,
		Surface:    s.Surface.ID(),
		CreatedAt:  s.CreatedAt,
		Generation: s.Generation(),
		Incidents:  s.Incidents(),
		Form:       s.Form.Snapshot(),
	}
}

// SessionService owns the sessions of this process.
type SessionService struct {
	surfaces      ports.SurfaceFactory
	formOpts      FormOptions
	defaultCenter domain.Coordinate
	routes        *RouteRenderer
	enrich        ports.EnrichmentScheduler

	mu       sync.RWMutex
	sessions map[string]*Session
	byView   map[string]map[string]struct{}
}

// NewSessionService creates a new SessionService. routes and enrich may be
// nil. When enrich is set, every new origin schedules a cache warmup.
func NewSessionService(
	surfaces ports.SurfaceFactory,
	formOpts FormOptions,
	defaultCenter domain.Coordinate,
	routes *RouteRenderer,
	enrich ports.EnrichmentScheduler,
) *SessionService {
	return &SessionService{
		surfaces:      surfaces,
		formOpts:      formOpts,
		defaultCenter: defaultCenter,
		routes:        routes,
		enrich:        enrich,
		sessions:      make(map[string]*Session),
		byView:        make(map[string]map[string]struct{}),
	}
}

// Open initializes a surface on view and starts a session on it.
// A nil center uses the configured default.
func (s *SessionService) Open(ctx context.Context, view string, center *domain.Coordinate) (*Session, error) {
	c := s.defaultCenter
	if center != nil {
		if err := center.Validate(); err != nil {
			return nil, err
		}
		c = *center
	}

	surface, err := s.surfaces.NewSurface(ctx, view, c)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	sess := &Session{
		ID:        uuid.NewString(),
		View:      view,
		CreatedAt: time.Now().UTC(),
		Surface:   surface,
		Form:      NewOverlayForm(s.formOpts),
	}
	log := logging.FromContext(ctx).With("session", sess.ID, "view", view)

	sess.cancels = append(sess.cancels,
		surface.OnClick(func(at domain.Coordinate) {
			if !sess.Form.Click(at) {
				log.Debug("map click ignored", "state", sess.Form.State())
			}
		}),
		sess.Form.OnOriginChanged(func(at domain.Coordinate) {
			if err := surface.PlaceMarker(context.Background(), OriginMarkerID, at, domain.MarkerCandidate); err != nil {
				log.Warn("origin marker not placed", "error", err)
			}
			s.warm(sess.ID, at, log)
		}),
	)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	if s.byView[view] == nil {
		s.byView[view] = make(map[string]struct{})
	}
	s.byView[view][sess.ID] = struct{}{}
	s.mu.Unlock()

	log.Info("session opened", "surface", surface.ID())
	return sess, nil
}

// warm schedules a crime cache warmup around a new origin off the click
// path.
func (s *SessionService) warm(id string, at domain.Coordinate, log *slog.Logger) {
	if s.enrich == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), enrichScheduleTimeout)
		defer cancel()
		if err := s.enrich.ScheduleEnrichment(ctx, id, at); err != nil {
			log.Warn("enrichment not scheduled", "error", err)
		}
	}()
}

func (s *SessionService) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return sess, nil
}

// Count returns the number of open sessions.
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Click delivers a map click to a session through its surface, exactly as
// a browser click would arrive.
func (s *SessionService) Click(_ context.Context, id string, at domain.Coordinate) (domain.FormSnapshot, error) {
	if err := at.Validate(); err != nil {
		return domain.FormSnapshot{}, err
	}
	sess, err := s.Get(id)
	if err != nil {
		return domain.FormSnapshot{}, err
	}
	if !sess.Surface.Live() {
		return domain.FormSnapshot{}, domain.ErrSurfaceDisposed
	}
	sess.Surface.Click(at)
	return sess.Form.Snapshot(), nil
}

// ClickView delivers a browser click to every session on view.
func (s *SessionService) ClickView(view string, at domain.Coordinate) {
	if at.Validate() != nil {
		return
	}
	for _, sess := range s.onView(view) {
		sess.Surface.Click(at)
	}
}

// LoadedView delivers the browser's load-complete signal.
func (s *SessionService) LoadedView(view string) {
	for _, sess := range s.onView(view) {
		sess.Surface.MarkLoaded()
	}
}

// SetPreferences replaces a session's preferences.
func (s *SessionService) SetPreferences(_ context.Context, id string, prefs domain.Preferences) (domain.FormSnapshot, error) {
	sess, err := s.Get(id)
	if err != nil {
		return domain.FormSnapshot{}, err
	}
	if err := sess.Form.SetPreferences(prefs); err != nil {
		return domain.FormSnapshot{}, err
	}
	return sess.Form.Snapshot(), nil
}

// Retry re-opens a failed form for another submit.
func (s *SessionService) Retry(_ context.Context, id string) (domain.FormSnapshot, error) {
	sess, err := s.Get(id)
	if err != nil {
		return domain.FormSnapshot{}, err
	}
	if err := sess.Form.Retry(); err != nil {
		return domain.FormSnapshot{}, err
	}
	return sess.Form.Snapshot(), nil
}

// Scene returns the session surface's current scene.
func (s *SessionService) Scene(id string) (domain.Scene, error) {
	sess, err := s.Get(id)
	if err != nil {
		return domain.Scene{}, err
	}
	return sess.Surface.Snapshot(), nil
}

// Close disposes a session's surface and forgets it.
func (s *SessionService) Close(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
		delete(s.byView[sess.View], id)
		if len(s.byView[sess.View]) == 0 {
			delete(s.byView, sess.View)
		}
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}

	for _, cancel := range sess.cancels {
		cancel()
	}
	sess.Surface.Dispose()
	if s.routes != nil {
		s.routes.Forget(sess.Surface.ID())
	}
	logging.FromContext(ctx).Info("session closed", "session", id, "view", sess.View)
	return nil
}

// ScenesOnView returns the scene of every session drawn on view.
func (s *SessionService) ScenesOnView(view string) []domain.Scene {
	sessions := s.onView(view)
	scenes := make([]domain.Scene, 0, len(sessions))
	for _, sess := range sessions {
		scenes = append(scenes, sess.Surface.Snapshot())
	}
	return scenes
}

// CloseView closes every session on a detached view.
func (s *SessionService) CloseView(ctx context.Context, view string) {
	for _, sess := range s.onView(view) {
		_ = s.Close(ctx, sess.ID)
	}
}

// CloseAll closes every session, on shutdown.
func (s *SessionService) CloseAll(ctx context.Context) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	for _, id := range ids {
		_ = s.Close(ctx, id)
	}
}

func (s *SessionService) onView(view string) []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Session, 0, len(s.byView[view]))
	for id := range s.byView[view] {
		out = append(out, s.sessions[id])
	}
	return out
}
