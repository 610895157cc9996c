package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/maildeskhq/maildesk/pkg/models"
)

// sseBufferSize bounds how many events a slow SSE client can fall behind
// before events are dropped. Delivery to observers is best effort.
const sseBufferSize = 64

const sseKeepAliveInterval = 25 * time.Second

// handleEvents handles GET /api/pipeline/events as a server-sent event
// stream. The connection stays open until the client goes away; a client
// attaching mid-run receives the bus's reconnect snapshot first.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.jsonError(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	if h.config.Bus == nil {
		h.jsonError(w, "Event stream not configured", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan models.PipelineEvent, sseBufferSize)
	unsubscribe := h.config.Bus.Subscribe(func(e models.PipelineEvent) {
		select {
		case ch <- e:
		default:
			// Slow consumer; this observer loses the event.
		}
	})
	defer unsubscribe()

	if h.config.Metrics != nil {
		h.config.Metrics.ObserverConnected("sse")
		defer h.config.Metrics.ObserverDisconnected("sse")
	}
	h.config.Logger.Debug(r.Context(), "sse observer attached", "remote_addr", r.RemoteAddr)

	keepAlive := time.NewTicker(sseKeepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case e := <-ch:
			if err := writeSSE(w, e); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, e models.PipelineEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
	return err
}
