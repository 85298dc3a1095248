package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCoordinate  = errors.New("invalid coordinate")
	ErrInvalidPreferences = errors.New("invalid preferences")

	// ErrSurfaceInit is returned when a surface is initialized on a view
	// that has no live client attached. Retry only after the view attaches.
	ErrSurfaceInit     = errors.New("surface init: view not attached")
	ErrSurfaceDisposed = errors.New("surface disposed")
	ErrSurfaceBusy     = errors.New("surface busy: render in flight")

	ErrInvalidTransition = errors.New("invalid form transition")
	ErrNoOrigin          = errors.New("no origin selected")
	ErrSessionNotFound   = errors.New("session not found")

	// ErrDuplicateGeneration signals a render with a generation id that is
	// not newer than the last one drawn on the surface.
	ErrDuplicateGeneration = errors.New("duplicate render generation")

	ErrNetwork = errors.New("routing backend unreachable")
	ErrBackend = errors.New("routing backend error")
	ErrParse   = errors.New("routing response malformed")
	ErrTimeout = errors.New("routing request timed out")

	ErrCrimeFeed = errors.New("crime feed unavailable")
	ErrPhoto     = errors.New("photo unavailable")
)

// RouteErrorKind classifies a failed route request.
type RouteErrorKind string

const (
	RouteErrNetwork RouteErrorKind = "network"
	RouteErrBackend RouteErrorKind = "backend"
	RouteErrParse   RouteErrorKind = "parse"
	RouteErrTimeout RouteErrorKind = "timeout"
)

// RouteError is returned by the routing client. It matches one of
// ErrNetwork, ErrBackend, ErrParse or ErrTimeout with errors.Is.
type RouteError struct {
	Kind   RouteErrorKind
	Status int // HTTP status for backend errors
	Err    error
}

func (e *RouteError) Error() string {
	switch e.Kind {
	case RouteErrBackend:
		return fmt.Sprintf("routing backend returned %d: %v", e.Status, e.Err)
	default:
		return fmt.Sprintf("routing %s error: %v", e.Kind, e.Err)
	}
}

func (e *RouteError) Unwrap() error { return e.Err }

func (e *RouteError) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == RouteErrNetwork
	case ErrBackend:
		return e.Kind == RouteErrBackend
	case ErrParse:
		return e.Kind == RouteErrParse
	case ErrTimeout:
		return e.Kind == RouteErrTimeout
	}
	return false
}

// IsRouteError reports whether err is one of the user-retriable route failures.
func IsRouteError(err error) bool {
	var re *RouteError
	return errors.As(err, &re)
}
