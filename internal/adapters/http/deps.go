package http

import (
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/pintfinder/internal/adapters/valkey"
	"github.com/samirrijal/pintfinder/internal/core/domain"
	"github.com/samirrijal/pintfinder/internal/core/ports"
	"github.com/samirrijal/pintfinder/internal/core/usecases"
)

// ViewAttacher marks browser views live while their socket is open.
type ViewAttacher interface {
	Attach(view string) (detach func())
	Attached(view string) bool
}

// MapConfig is what a browser needs to draw the base map.
type MapConfig struct {
	Style       string            `json:"style"`
	AccessToken string            `json:"access_token,omitempty"`
	Center      domain.Coordinate `json:"center"`
	Zoom        float64           `json:"zoom"`
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Sessions *usecases.SessionService
	Planner  *usecases.Planner
	Crimes   *usecases.CrimeService
	Photos   *usecases.PhotoService
	Views    ViewAttacher
	Ops      ports.SurfaceSubscriber
	Map      MapConfig

	// RequestTimeout bounds ordinary API calls; SubmitTimeout must exceed
	// the routing backend timeout so route timeouts surface as 504.
	RequestTimeout time.Duration
	SubmitTimeout  time.Duration

	// OpenAPIPath is the document served under /docs.
	OpenAPIPath string

	NATS  *nats.Conn
	Cache *valkey.Cache
}
