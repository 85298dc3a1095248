// Package surface keeps the authoritative scene of each browser map and
// streams its mutations to the view that draws it.
package surface

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/pintfinder/internal/core/domain"
	"github.com/samirrijal/pintfinder/internal/core/ports"
	"github.com/samirrijal/pintfinder/internal/pkg/metrics"
)

// publishTimeout bounds one hand-off to the publisher.
const publishTimeout = 5 * time.Second

// Handle is one map instance bound to a browser view. It implements
// ports.MapSurface. Adding an id that already exists replaces it.
//
// Ops are numbered under the scene lock and queued; a single drainer
// goroutine publishes them in seq order, so a slow publisher never holds
// up the scene.
type Handle struct {
	id     string
	view   string
	center domain.Coordinate
	opts   domain.MapOptions
	pub    ports.SurfacePublisher

	mu       sync.Mutex
	disposed bool
	loaded   bool
	busy     bool
	seq      int64

	outbox   []queuedOp
	draining bool
	drained  *sync.Cond

	nextListener int
	loadCbs      map[int]func()
	clickCbs     map[int]func(domain.Coordinate)

	markers     map[string]*domain.Marker
	markerOrder []string
	sources     map[string]domain.Source
	sourceOrder []string
	layers      map[string]domain.Layer
	layerOrder  []string
	bounds      *domain.Bounds
}

type queuedOp struct {
	ctx context.Context
	op  domain.SurfaceOp
}

type initPayload struct {
	Center  domain.Coordinate `json:"center"`
	Options domain.MapOptions `json:"options"`
}

type markerPayload struct {
	At    domain.Coordinate  `json:"at"`
	Style domain.MarkerStyle `json:"style"`
}

// Initialize creates a surface on an attached view and announces it.
// It fails with domain.ErrSurfaceInit when no client is attached to viewID.
func Initialize(
	ctx context.Context,
	views ports.ViewRegistry,
	pub ports.SurfacePublisher,
	viewID string,
	center domain.Coordinate,
	opts domain.MapOptions,
) (*Handle, error) {
	if viewID == "" || views == nil || !views.Attached(viewID) {
		return nil, fmt.Errorf("%w: %q", domain.ErrSurfaceInit, viewID)
	}
	if err := center.Validate(); err != nil {
		return nil, err
	}

	h := &Handle{
		id:       uuid.NewString(),
		view:     viewID,
		center:   center,
		opts:     opts,
		pub:      pub,
		loadCbs:  make(map[int]func()),
		clickCbs: make(map[int]func(domain.Coordinate)),
		markers:  make(map[string]*domain.Marker),
		sources:  make(map[string]domain.Source),
		layers:   make(map[string]domain.Layer),
	}
	h.drained = sync.NewCond(&h.mu)

	h.mu.Lock()
	h.emit(ctx, domain.OpInit, "", initPayload{Center: center, Options: opts})
	h.mu.Unlock()

	metrics.ActiveSurfaces.Inc()
	return h, nil
}

func (h *Handle) ID() string   { return h.id }
func (h *Handle) View() string { return h.view }

// Live reports whether the surface has not been disposed.
func (h *Handle) Live() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.disposed
}

// Acquire takes the in-flight flag. A second caller gets ErrSurfaceBusy
// until release is called.
func (h *Handle) Acquire() (func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return nil, domain.ErrSurfaceDisposed
	}
	if h.busy {
		return nil, domain.ErrSurfaceBusy
	}
	h.busy = true

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			h.busy = false
			h.mu.Unlock()
		})
	}, nil
}

// OnLoad registers cb for the load-complete signal. If the map has already
// loaded, cb runs immediately.
func (h *Handle) OnLoad(cb func()) func() {
	h.mu.Lock()
	if h.disposed {
		h.mu.Unlock()
		return func() {}
	}
	if h.loaded {
		h.mu.Unlock()
		cb()
		return func() {}
	}
	id := h.nextListener
	h.nextListener++
	h.loadCbs[id] = cb
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.loadCbs, id)
		h.mu.Unlock()
	}
}

// OnClick registers cb for map clicks.
func (h *Handle) OnClick(cb func(domain.Coordinate)) func() {
	h.mu.Lock()
	if h.disposed {
		h.mu.Unlock()
		return func() {}
	}
	id := h.nextListener
	h.nextListener++
	h.clickCbs[id] = cb
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.clickCbs, id)
		h.mu.Unlock()
	}
}

// MarkLoaded delivers the browser's load-complete signal. Load listeners
// fire once.
func (h *Handle) MarkLoaded() {
	h.mu.Lock()
	if h.disposed || h.loaded {
		h.mu.Unlock()
		return
	}
	h.loaded = true
	cbs := make([]func(), 0, len(h.loadCbs))
	for _, cb := range h.loadCbs {
		cbs = append(cbs, cb)
	}
	h.loadCbs = make(map[int]func())
	h.mu.Unlock()

	for _, cb := range cbs {
		cb()
	}
}

// Click delivers a map click from the browser to every click listener.
func (h *Handle) Click(at domain.Coordinate) {
	h.mu.Lock()
	if h.disposed {
		h.mu.Unlock()
		return
	}
	cbs := make([]func(domain.Coordinate), 0, len(h.clickCbs))
	for _, cb := range h.clickCbs {
		cbs = append(cbs, cb)
	}
	h.mu.Unlock()

	for _, cb := range cbs {
		cb(at)
	}
}

func (h *Handle) PlaceMarker(ctx context.Context, id string, at domain.Coordinate, style domain.MarkerStyle) error {
	if err := at.Validate(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return domain.ErrSurfaceDisposed
	}

	if _, ok := h.markers[id]; !ok {
		h.markerOrder = append(h.markerOrder, id)
	}
	h.markers[id] = &domain.Marker{ID: id, At: at, Style: style}
	h.emit(ctx, domain.OpMarkerAdd, id, markerPayload{At: at, Style: style})
	return nil
}

func (h *Handle) RemoveMarker(ctx context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return domain.ErrSurfaceDisposed
	}
	if _, ok := h.markers[id]; !ok {
		return nil
	}
	delete(h.markers, id)
	h.markerOrder = without(h.markerOrder, id)
	h.emit(ctx, domain.OpMarkerRemove, id, nil)
	return nil
}

func (h *Handle) AttachPopup(ctx context.Context, markerID string, popup domain.Popup) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return domain.ErrSurfaceDisposed
	}
	m, ok := h.markers[markerID]
	if !ok {
		return fmt.Errorf("attach popup: unknown marker %q", markerID)
	}
	p := popup
	m.Popup = &p
	h.emit(ctx, domain.OpPopupAttach, markerID, popup)
	return nil
}

// AddPolyline draws path as a line layer backed by a GeoJSON source, both
// named id.
func (h *Handle) AddPolyline(ctx context.Context, id string, path []domain.Coordinate, style domain.LineStyle) error {
	if len(path) < 2 {
		return fmt.Errorf("polyline %q needs at least 2 points, got %d", id, len(path))
	}
	line := make(orb.LineString, 0, len(path))
	for _, p := range path {
		if err := p.Validate(); err != nil {
			return err
		}
		line = append(line, orb.Point{p.Lng, p.Lat})
	}

	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(line))

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return domain.ErrSurfaceDisposed
	}

	h.putSource(ctx, domain.Source{ID: id, Data: fc})
	h.putLayer(ctx, domain.Layer{
		ID:     id,
		Type:   "line",
		Source: id,
		Layout: map[string]any{
			"line-join": "round",
			"line-cap":  "round",
		},
		Paint: map[string]any{
			"line-color":   style.Color,
			"line-width":   style.Width,
			"line-opacity": style.Opacity,
		},
	})
	return nil
}

func (h *Handle) AddSource(ctx context.Context, src domain.Source) error {
	if src.ID == "" {
		return fmt.Errorf("add source: empty id")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return domain.ErrSurfaceDisposed
	}
	h.putSource(ctx, src)
	return nil
}

// RemoveSource removes a source along with every layer drawn from it.
func (h *Handle) RemoveSource(ctx context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return domain.ErrSurfaceDisposed
	}
	if _, ok := h.sources[id]; !ok {
		return nil
	}
	for _, lid := range append([]string(nil), h.layerOrder...) {
		if h.layers[lid].Source == id {
			h.dropLayer(ctx, lid)
		}
	}
	delete(h.sources, id)
	h.sourceOrder = without(h.sourceOrder, id)
	h.emit(ctx, domain.OpSourceRemove, id, nil)
	return nil
}

func (h *Handle) AddLayer(ctx context.Context, layer domain.Layer) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return domain.ErrSurfaceDisposed
	}
	if _, ok := h.sources[layer.Source]; !ok {
		return fmt.Errorf("add layer %q: unknown source %q", layer.ID, layer.Source)
	}
	h.putLayer(ctx, layer)
	return nil
}

func (h *Handle) RemoveLayer(ctx context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return domain.ErrSurfaceDisposed
	}
	h.dropLayer(ctx, id)
	return nil
}

func (h *Handle) FitBounds(ctx context.Context, b domain.Bounds) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return domain.ErrSurfaceDisposed
	}
	h.bounds = &b
	h.emit(ctx, domain.OpFitBounds, "", b)
	return nil
}

// Snapshot returns a copy of the current scene in insertion order.
func (h *Handle) Snapshot() domain.Scene {
	h.mu.Lock()
	defer h.mu.Unlock()

	scene := domain.Scene{
		Surface: h.id,
		View:    h.view,
		Center:  h.center,
		Options: h.opts,
		Loaded:  h.loaded,
		Seq:     h.seq,
		Markers: make([]domain.Marker, 0, len(h.markerOrder)),
		Sources: make([]domain.Source, 0, len(h.sourceOrder)),
		Layers:  make([]domain.Layer, 0, len(h.layerOrder)),
	}
	for _, id := range h.markerOrder {
		m := *h.markers[id]
		if m.Popup != nil {
			p := *m.Popup
			m.Popup = &p
		}
		scene.Markers = append(scene.Markers, m)
	}
	for _, id := range h.sourceOrder {
		scene.Sources = append(scene.Sources, h.sources[id])
	}
	for _, id := range h.layerOrder {
		scene.Layers = append(scene.Layers, h.layers[id])
	}
	if h.bounds != nil {
		b := *h.bounds
		scene.Bounds = &b
	}
	return scene
}

// Dispose tears down the surface: listeners and scene objects are dropped
// and a final dispose op is emitted. Calling it again does nothing.
func (h *Handle) Dispose() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return
	}
	h.disposed = true
	h.loadCbs = make(map[int]func())
	h.clickCbs = make(map[int]func(domain.Coordinate))
	h.markers = make(map[string]*domain.Marker)
	h.markerOrder = nil
	h.sources = make(map[string]domain.Source)
	h.sourceOrder = nil
	h.layers = make(map[string]domain.Layer)
	h.layerOrder = nil
	h.bounds = nil

	h.emit(context.Background(), domain.OpDispose, "", nil)
	metrics.ActiveSurfaces.Dec()
}

// putSource, putLayer, dropLayer and emit expect h.mu to be held.

func (h *Handle) putSource(ctx context.Context, src domain.Source) {
	if _, ok := h.sources[src.ID]; !ok {
		h.sourceOrder = append(h.sourceOrder, src.ID)
	}
	h.sources[src.ID] = src
	h.emit(ctx, domain.OpSourceAdd, src.ID, src)
}

func (h *Handle) putLayer(ctx context.Context, layer domain.Layer) {
	if _, ok := h.layers[layer.ID]; !ok {
		h.layerOrder = append(h.layerOrder, layer.ID)
	}
	h.layers[layer.ID] = layer
	h.emit(ctx, domain.OpLayerAdd, layer.ID, layer)
}

func (h *Handle) dropLayer(ctx context.Context, id string) {
	if _, ok := h.layers[id]; !ok {
		return
	}
	delete(h.layers, id)
	h.layerOrder = without(h.layerOrder, id)
	h.emit(ctx, domain.OpLayerRemove, id, nil)
}

// emit numbers one op and queues it for the drainer. The scene stays
// authoritative when publishing fails: a reconnecting view replays it from
// Snapshot.
func (h *Handle) emit(ctx context.Context, kind domain.OpKind, id string, payload any) {
	h.seq++
	if h.pub == nil {
		return
	}
	h.outbox = append(h.outbox, queuedOp{
		ctx: context.WithoutCancel(ctx),
		op: domain.SurfaceOp{
			Seq:     h.seq,
			Surface: h.id,
			View:    h.view,
			Kind:    kind,
			ID:      id,
			Payload: payload,
		},
	})
	if !h.draining {
		h.draining = true
		go h.drain()
	}
}

func (h *Handle) drain() {
	for {
		h.mu.Lock()
		batch := h.outbox
		h.outbox = nil
		if len(batch) == 0 {
			h.draining = false
			h.drained.Broadcast()
			h.mu.Unlock()
			return
		}
		h.mu.Unlock()

		for _, q := range batch {
			h.publish(q)
		}
	}
}

func (h *Handle) publish(q queuedOp) {
	ctx, cancel := context.WithTimeout(q.ctx, publishTimeout)
	defer cancel()
	if err := h.pub.PublishSurfaceOp(ctx, q.op); err != nil {
		slog.Warn("surface op not delivered",
			"surface", h.id, "view", h.view, "kind", q.op.Kind, "seq", q.op.Seq, "error", err)
	}
}

// Flush waits until every op emitted so far has been handed to the
// publisher.
func (h *Handle) Flush() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for h.draining {
		h.drained.Wait()
	}
}

func without(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
