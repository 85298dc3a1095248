package usecases

import (
	"fmt"
	"sync"

	"github.com/samirrijal/pintfinder/internal/core/domain"
)

// FormOptions configure an OverlayForm.
type FormOptions struct {
	// LockOrigin keeps the first clicked origin for the whole session.
	LockOrigin bool
	// MaxRadiusKm caps the search radius; <= 0 disables the cap.
	MaxRadiusKm float64
}

// OverlayForm is the single state store of a session's preferences overlay:
// origin, preferences and visibility all derive from it.
type OverlayForm struct {
	opts FormOptions

	mu      sync.Mutex
	state   domain.FormState
	origin  *domain.Coordinate
	prefs   domain.Preferences
	lastErr error

	nextSub int
	subs    map[int]func(domain.Coordinate)
}

// NewOverlayForm returns a hidden form with default preferences.
func NewOverlayForm(opts FormOptions) *OverlayForm {
	return &OverlayForm{
		opts:  opts,
		state: domain.FormHidden,
		prefs: domain.DefaultPreferences(),
		subs:  make(map[int]func(domain.Coordinate)),
	}
}

// OnOriginChanged subscribes to origin changes.
func (f *OverlayForm) OnOriginChanged(cb func(domain.Coordinate)) (cancel func()) {
	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = cb
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

// Click records a map click as the candidate origin and opens the overlay.
// It reports whether the click was accepted. Clicks are dropped while
// SUBMITTING or FAILED, and after the first one when the origin is locked.
func (f *OverlayForm) Click(at domain.Coordinate) bool {
	if at.Validate() != nil {
		return false
	}

	f.mu.Lock()
	switch f.state {
	case domain.FormSubmitting, domain.FormFailed:
		f.mu.Unlock()
		return false
	}
	if f.opts.LockOrigin && f.origin != nil {
		f.mu.Unlock()
		return false
	}

	origin := at
	f.origin = &origin
	f.state = domain.FormAwaitingInput
	f.lastErr = nil
	subs := make([]func(domain.Coordinate), 0, len(f.subs))
	for _, cb := range f.subs {
		subs = append(subs, cb)
	}
	f.mu.Unlock()

	for _, cb := range subs {
		cb(at)
	}
	return true
}

// SetPreferences replaces the preferences wholesale.
func (f *OverlayForm) SetPreferences(p domain.Preferences) error {
	return f.mutate(func(cur *domain.Preferences) { *cur = p })
}

func (f *OverlayForm) SetSearchRadius(km float64) error {
	return f.mutate(func(p *domain.Preferences) { p.SearchRadiusKm = km })
}

func (f *OverlayForm) SetPubQuality(q domain.PubQuality) error {
	return f.mutate(func(p *domain.Preferences) { p.PubQuality = q })
}

func (f *OverlayForm) SetWalkTolerance(w domain.WalkTolerance) error {
	return f.mutate(func(p *domain.Preferences) { p.WalkTolerance = w })
}

func (f *OverlayForm) SetWarriorMode(on bool) error {
	return f.mutate(func(p *domain.Preferences) { p.WarriorMode = on })
}

func (f *OverlayForm) mutate(apply func(*domain.Preferences)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != domain.FormAwaitingInput {
		return fmt.Errorf("%w: preferences are read-only in %s", domain.ErrInvalidTransition, f.state)
	}
	next := f.prefs
	apply(&next)
	if err := next.Validate(f.opts.MaxRadiusKm); err != nil {
		return err
	}
	f.prefs = next
	return nil
}

// BeginSubmit moves AWAITING_INPUT to SUBMITTING and returns the values to
// send.
func (f *OverlayForm) BeginSubmit() (domain.Coordinate, domain.Preferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != domain.FormAwaitingInput {
		return domain.Coordinate{}, domain.Preferences{}, fmt.Errorf("%w: cannot submit from %s", domain.ErrInvalidTransition, f.state)
	}
	if f.origin == nil {
		return domain.Coordinate{}, domain.Preferences{}, domain.ErrNoOrigin
	}
	f.state = domain.FormSubmitting
	f.lastErr = nil
	return *f.origin, f.prefs, nil
}

// Complete moves SUBMITTING to SUBMITTED, hiding the overlay.
func (f *OverlayForm) Complete() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != domain.FormSubmitting {
		return fmt.Errorf("%w: cannot complete from %s", domain.ErrInvalidTransition, f.state)
	}
	f.state = domain.FormSubmitted
	return nil
}

// Fail moves SUBMITTING to FAILED and records cause.
func (f *OverlayForm) Fail(cause error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != domain.FormSubmitting {
		return fmt.Errorf("%w: cannot fail from %s", domain.ErrInvalidTransition, f.state)
	}
	f.state = domain.FormFailed
	f.lastErr = cause
	return nil
}

// Retry moves FAILED back to AWAITING_INPUT keeping origin and preferences.
func (f *OverlayForm) Retry() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != domain.FormFailed {
		return fmt.Errorf("%w: cannot retry from %s", domain.ErrInvalidTransition, f.state)
	}
	f.state = domain.FormAwaitingInput
	return nil
}

func (f *OverlayForm) State() domain.FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *OverlayForm) Snapshot() domain.FormSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := domain.FormSnapshot{
		State:       f.state,
		Visible:     f.state.Visible(),
		OriginLock:  f.opts.LockOrigin,
		Preferences: f.prefs,
	}
	if f.origin != nil {
		o := *f.origin
		snap.Origin = &o
	}
	if f.lastErr != nil {
		snap.LastError = f.lastErr.Error()
	}
	return snap
}
