package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/maildeskhq/maildesk/pkg/models"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPongWait     = 45 * time.Second
	wsPingInterval = 15 * time.Second
	wsBufferSize   = 64
)

// handleWS handles GET /api/pipeline/ws, streaming the same bus events as
// the SSE endpoint as JSON text frames. The client is not expected to send
// anything; its read side only serves pong and close handling.
func (h *Handler) handleWS(w http.ResponseWriter, r *http.Request) {
	if h.config.Bus == nil {
		h.jsonError(w, "Event stream not configured", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.config.Logger.Debug(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := make(chan models.PipelineEvent, wsBufferSize)
	unsubscribe := h.config.Bus.Subscribe(func(e models.PipelineEvent) {
		select {
		case ch <- e:
		default:
		}
	})
	defer unsubscribe()

	if h.config.Metrics != nil {
		h.config.Metrics.ObserverConnected("ws")
		defer h.config.Metrics.ObserverDisconnected("ws")
	}
	h.config.Logger.Debug(r.Context(), "ws observer attached", "remote_addr", r.RemoteAddr)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(1024)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case e := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		}
	}
}
