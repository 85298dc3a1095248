package domain

import "github.com/paulmach/orb/geojson"

// MarkerStyle selects the marker icon drawn by the browser.
type MarkerStyle string

const (
	MarkerCandidate   MarkerStyle = "candidate" // user-picked origin
	MarkerOrigin      MarkerStyle = "origin"
	MarkerStop        MarkerStyle = "stop"
	MarkerDestination MarkerStyle = "destination"
)

// Popup is the content attached to a marker.
type Popup struct {
	Title    string `json:"title"`
	Body     string `json:"body,omitempty"`
	PhotoURL string `json:"photo_url,omitempty"`
}

// Marker is a placed marker in the scene.
type Marker struct {
	ID    string      `json:"id"`
	At    Coordinate  `json:"at"`
	Style MarkerStyle `json:"style"`
	Popup *Popup      `json:"popup,omitempty"`
}

// LineStyle is the paint of a polyline.
type LineStyle struct {
	Color   string  `json:"color"`
	Width   float64 `json:"width"`
	Opacity float64 `json:"opacity"`
}

// Source is a GeoJSON data source, optionally clustered by the browser.
type Source struct {
	ID             string                     `json:"id"`
	Data           *geojson.FeatureCollection `json:"data"`
	Cluster        bool                       `json:"cluster,omitempty"`
	ClusterMaxZoom int                        `json:"cluster_max_zoom,omitempty"`
	ClusterRadius  int                        `json:"cluster_radius,omitempty"`
}

// LayerPopup declares a click-to-popup on a layer: clicking a feature
// shows Label followed by the feature's Property value.
type LayerPopup struct {
	Label    string `json:"label"`
	Property string `json:"property"`
}

// Layer is a styled view over a source. Filter, Paint and Layout use the
// mapping SDK's expression syntax and are passed through untouched.
type Layer struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"` // line, circle, symbol
	Source      string         `json:"source"`
	Filter      []any          `json:"filter,omitempty"`
	Paint       map[string]any `json:"paint,omitempty"`
	Layout      map[string]any `json:"layout,omitempty"`
	Popup       *LayerPopup    `json:"popup,omitempty"`
	HoverCursor string         `json:"hover_cursor,omitempty"`
}

// MapOptions configure a new surface.
type MapOptions struct {
	Style       string  `json:"style"`
	AccessToken string  `json:"access_token,omitempty"`
	Zoom        float64 `json:"zoom"`
}

// OpKind names a scene mutation sent to the browser.
type OpKind string

const (
	OpInit         OpKind = "surface.init"
	OpDispose      OpKind = "surface.dispose"
	OpMarkerAdd    OpKind = "marker.add"
	OpMarkerRemove OpKind = "marker.remove"
	OpPopupAttach  OpKind = "popup.attach"
	OpSourceAdd    OpKind = "source.add"
	OpSourceRemove OpKind = "source.remove"
	OpLayerAdd     OpKind = "layer.add"
	OpLayerRemove  OpKind = "layer.remove"
	OpFitBounds    OpKind = "camera.fit"

	// OpSnapshot carries a whole Scene to a client that joined late.
	OpSnapshot OpKind = "surface.snapshot"
)

// SurfaceOp is one scene mutation, numbered per surface.
type SurfaceOp struct {
	Seq     int64  `json:"seq"`
	Surface string `json:"surface"`
	View    string `json:"view"`
	Kind    OpKind `json:"kind"`
	ID      string `json:"id,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// Scene is a point-in-time copy of everything drawn on a surface.
type Scene struct {
	Surface string     `json:"surface"`
	View    string     `json:"view"`
	Center  Coordinate `json:"center"`
	Options MapOptions `json:"options"`
	Loaded  bool       `json:"loaded"`
	Seq     int64      `json:"seq"`
	Markers []Marker   `json:"markers"`
	Sources []Source   `json:"sources"`
	Layers  []Layer    `json:"layers"`
	Bounds  *Bounds    `json:"bounds,omitempty"`
}
