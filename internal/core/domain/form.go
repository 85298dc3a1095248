package domain

// FormState is the lifecycle of the preferences overlay.
type FormState string

const (
	FormHidden        FormState = "HIDDEN"
	FormAwaitingInput FormState = "AWAITING_INPUT"
	FormSubmitting    FormState = "SUBMITTING"
	FormSubmitted     FormState = "SUBMITTED"
	FormFailed        FormState = "FAILED"
)

// Visible reports whether the overlay is shown in this state.
func (s FormState) Visible() bool {
	return s == FormAwaitingInput || s == FormSubmitting || s == FormFailed
}

// FormSnapshot is a read-only copy of the overlay form.
type FormSnapshot struct {
	State       FormState   `json:"state"`
	Visible     bool        `json:"visible"`
	Origin      *Coordinate `json:"origin,omitempty"`
	OriginLock  bool        `json:"origin_locked"`
	Preferences Preferences `json:"preferences"`
	LastError   string      `json:"last_error,omitempty"`
}

// RenderResult lists what one route render placed on a surface.
type RenderResult struct {
	Generation int64    `json:"generation"`
	MarkerIDs  []string `json:"marker_ids"`
	LayerIDs   []string `json:"layer_ids"`
}

// PlanResult is the outcome of a successful submit.
type PlanResult struct {
	Session   string         `json:"session"`
	Route     *RouteResponse `json:"route"`
	Render    RenderResult   `json:"render"`
	Incidents int            `json:"incidents"`
}
