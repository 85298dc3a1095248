package surface

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/samirrijal/pintfinder/internal/core/domain"
)

// Hub is the in-process view registry and op bus. It is always the view
// registry of the API process; it is also the op bus when NATS is
// unavailable.
type Hub struct {
	mu    sync.RWMutex
	views map[string]int
	subs  map[string]map[int]func([]byte)
	next  int
}

func NewHub() *Hub {
	return &Hub{
		views: make(map[string]int),
		subs:  make(map[string]map[int]func([]byte)),
	}
}

// Attach marks a view as having a live client. The returned func detaches
// it; a view stays attached while any of its clients is connected.
func (h *Hub) Attach(view string) (detach func()) {
	h.mu.Lock()
	h.views[view]++
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if h.views[view] <= 1 {
				delete(h.views, view)
				return
			}
			h.views[view]--
		})
	}
}

func (h *Hub) Attached(view string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.views[view] > 0
}

// PublishSurfaceOp delivers op to the view's subscribers synchronously,
// preserving per-surface order.
func (h *Hub) PublishSurfaceOp(_ context.Context, op domain.SurfaceOp) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("marshal surface op: %w", err)
	}

	h.mu.RLock()
	handlers := make([]func([]byte), 0, len(h.subs[op.View]))
	for _, fn := range h.subs[op.View] {
		handlers = append(handlers, fn)
	}
	h.mu.RUnlock()

	for _, fn := range handlers {
		fn(data)
	}
	return nil
}

func (h *Hub) SubscribeView(view string, handler func([]byte)) (func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	if h.subs[view] == nil {
		h.subs[view] = make(map[int]func([]byte))
	}
	h.subs[view][id] = handler

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[view], id)
		if len(h.subs[view]) == 0 {
			delete(h.subs, view)
		}
	}, nil
}
