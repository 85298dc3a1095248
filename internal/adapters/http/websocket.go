package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/pintfinder/internal/core/domain"
	"github.com/samirrijal/pintfinder/internal/pkg/logging"
	"github.com/samirrijal/pintfinder/internal/pkg/metrics"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	// wsSendBuffer is how many ops may queue for one socket before the
	// client is considered too slow and disconnected.
	wsSendBuffer = 256
)

// wsMessage is a browser event on a view socket.
type wsMessage struct {
	Type string  `json:"type"` // "load" | "click"
	Lng  float64 `json:"lng"`
	Lat  float64 `json:"lat"`
}

// ViewSocketHandler returns a handler that binds one browser view.
// While the socket is open the view is attached, surface ops published for
// it are relayed to the client, and the client's load and click events are
// delivered to the view's surfaces. Clients send JSON:
// {"type":"load"} or {"type":"click","lng":-0.5658,"lat":51.4258}.
// Closing the last socket on a view disposes its sessions.
func ViewSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		view := c.Params("view")
		log := slog.Default().With("view", view, "remote", c.RemoteAddr().String())
		ctx := logging.WithLogger(context.Background(), log)

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		write := func(kind int, data []byte) error {
			mu.Lock()
			defer mu.Unlock()
			if err := c.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
				return err
			}
			return c.WriteMessage(kind, data)
		}
		writeRaw := func(data []byte) error {
			return write(websocket.TextMessage, data)
		}
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			return writeRaw(data)
		}

		// Ops are queued per socket so one slow client never stalls
		// delivery to the view's other sockets.
		send := make(chan []byte, wsSendBuffer)
		var dropOnce sync.Once
		unsubscribe, err := deps.Ops.SubscribeView(view, func(data []byte) {
			select {
			case send <- data:
			default:
				dropOnce.Do(func() {
					log.Warn("ws client too slow, disconnecting", "buffered", wsSendBuffer)
					_ = c.Close()
				})
			}
		})
		if err != nil {
			log.Error("ws subscribe failed", "error", err)
			_ = writeJSON(map[string]string{"error": "subscribe failed"})
			return
		}
		defer unsubscribe()

		detach := deps.Views.Attach(view)
		defer func() {
			detach()
			if !deps.Views.Attached(view) {
				deps.Sessions.CloseView(ctx, view)
			}
		}()
		log.Info("ws view attached")

		_ = writeJSON(map[string]string{"status": "attached", "view": view})

		// Clients dedupe by seq, so an op racing the snapshot is harmless.
		for _, scene := range deps.Sessions.ScenesOnView(view) {
			_ = writeJSON(domain.SurfaceOp{
				Seq:     scene.Seq,
				Surface: scene.Surface,
				View:    view,
				Kind:    domain.OpSnapshot,
				Payload: scene,
			})
		}

		// Op relay and keep-alive ping
		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(wsPingInterval)
			defer ticker.Stop()
			for {
				select {
				case data := <-send:
					if err := writeRaw(data); err != nil {
						log.Debug("ws write failed", "error", err)
						_ = c.Close()
						return
					}
				case <-ticker.C:
					if err := write(websocket.PingMessage, nil); err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			switch m.Type {
			case "load":
				deps.Sessions.LoadedView(view)
			case "click":
				at, err := domain.NewCoordinate(m.Lng, m.Lat)
				if err != nil {
					_ = writeJSON(map[string]string{"error": err.Error()})
					continue
				}
				deps.Sessions.ClickView(view, at)
			default:
				_ = writeJSON(map[string]string{"error": "unknown type: " + m.Type})
			}
		}

		log.Info("ws view detached")
	}
}
