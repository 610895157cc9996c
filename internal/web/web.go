// Package web serves the maildesk HTTP API: inbox listing, pipeline
// control, live event streams over SSE and WebSocket, editing locks, and
// the usage and health endpoints the dashboard polls.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maildeskhq/maildesk/internal/events"
	"github.com/maildeskhq/maildesk/internal/locks"
	"github.com/maildeskhq/maildesk/internal/observability"
	"github.com/maildeskhq/maildesk/internal/store"
	"github.com/maildeskhq/maildesk/internal/usage"
	"github.com/maildeskhq/maildesk/pkg/models"
)

// Pipeline is the slice of the orchestrator the API needs.
type Pipeline interface {
	StartBatch(ctx context.Context, mode models.JobMode) (models.Job, error)
	StartSingle(ctx context.Context, itemID string) (models.Job, error)
	Status() models.Job
}

// Config wires the handler's collaborators. Store, Pipeline, and Bus are
// required; the rest degrade to disabled endpoints when nil.
type Config struct {
	Store    store.Store
	Pipeline Pipeline
	Bus      *events.Bus
	Locks    *locks.Manager
	Usage    *usage.Tracker
	Logger   *observability.Logger
	Metrics  *observability.Metrics
}

// Handler is the maildesk API handler.
type Handler struct {
	config   *Config
	mux      *http.ServeMux
	upgrader websocket.Upgrader
}

// NewHandler creates the API handler and registers all routes.
func NewHandler(cfg *Config) *Handler {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.LogConfig{})
	}

	h := &Handler{
		config: cfg,
		mux:    http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The dashboard dev server runs on another origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	h.setupRoutes()
	return h
}

func (h *Handler) setupRoutes() {
	h.mux.HandleFunc("/healthz", h.handleHealth)
	h.mux.Handle("/metrics", promhttp.Handler())

	h.mux.HandleFunc("/api/items", h.handleItemList)
	h.mux.HandleFunc("/api/items/", h.handleItem)

	h.mux.HandleFunc("/api/pipeline/batch", h.handlePipelineBatch)
	h.mux.HandleFunc("/api/pipeline/items/", h.handlePipelineSingle)
	h.mux.HandleFunc("/api/pipeline/status", h.handlePipelineStatus)
	h.mux.HandleFunc("/api/pipeline/events", h.handleEvents)
	h.mux.HandleFunc("/api/pipeline/ws", h.handleWS)

	h.mux.HandleFunc("/api/usage", h.handleUsage)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Mount returns the handler wrapped in the request-ID and logging
// middleware, ready to hand to an http.Server.
func (h *Handler) Mount() http.Handler {
	var handler http.Handler = h
	handler = LoggingMiddleware(h.config.Logger, h.config.Metrics)(handler)
	handler = RequestIDMiddleware()(handler)
	return handler
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response.
func (h *Handler) jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.config.Logger.Error(context.Background(), "json encode error", "error", err)
	}
}

// jsonError writes a JSON error response.
func (h *Handler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// parseIntParam reads an integer query parameter with a default.
func parseIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
