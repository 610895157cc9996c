package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/maildeskhq/maildesk/internal/locks"
	"github.com/maildeskhq/maildesk/internal/pipeline"
	"github.com/maildeskhq/maildesk/pkg/models"
)

// ItemListResponse is the JSON response for the inbox listing.
type ItemListResponse struct {
	Items  []*models.Item `json:"items"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// BatchRequest selects the mode of a pipeline run.
type BatchRequest struct {
	Mode models.JobMode `json:"mode"`
}

// LockRequest identifies the user taking an editing lock.
type LockRequest struct {
	Owner string `json:"owner"`
}

// UsageResponse aggregates tracked provider usage.
type UsageResponse struct {
	Totals map[string]any `json:"totals"`
	Recent any            `json:"recent"`
}

// handleItemList handles GET /api/items.
func (h *Handler) handleItemList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := parseIntParam(r, "limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset := parseIntParam(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	items, err := h.config.Store.List(r.Context(), limit, offset)
	if err != nil {
		h.config.Logger.Error(r.Context(), "item list failed", "error", err)
		h.jsonError(w, "Failed to list items", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []*models.Item{}
	}
	h.jsonResponse(w, ItemListResponse{Items: items, Limit: limit, Offset: offset})
}

// handleItem dispatches /api/items/{id} and /api/items/{id}/lock.
func (h *Handler) handleItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/items/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		h.jsonError(w, "Item ID required", http.StatusBadRequest)
		return
	}

	switch sub {
	case "":
		h.handleItemDetail(w, r, id)
	case "lock":
		h.handleItemLock(w, r, id)
	default:
		h.jsonError(w, "Not found", http.StatusNotFound)
	}
}

func (h *Handler) handleItemDetail(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		h.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	item, err := h.config.Store.Get(r.Context(), id)
	if err != nil {
		h.config.Logger.Error(r.Context(), "item lookup failed", "item_id", id, "error", err)
		h.jsonError(w, "Failed to load item", http.StatusInternalServerError)
		return
	}
	if item == nil {
		h.jsonError(w, "Item not found", http.StatusNotFound)
		return
	}
	h.jsonResponse(w, item)
}

// handleItemLock handles POST and DELETE /api/items/{id}/lock. Acquiring a
// lock someone else holds answers 423 with the holder so the dashboard can
// show who is editing.
func (h *Handler) handleItemLock(w http.ResponseWriter, r *http.Request, id string) {
	if h.config.Locks == nil {
		h.jsonError(w, "Locks not configured", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req LockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Owner) == "" {
			h.jsonError(w, "Owner required", http.StatusBadRequest)
			return
		}
		lock, err := h.config.Locks.Acquire(id, req.Owner)
		if errors.Is(err, locks.ErrHeld) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusLocked)
			_ = json.NewEncoder(w).Encode(h.config.Locks.Get(id))
			return
		}
		if err != nil {
			h.jsonError(w, "Failed to acquire lock", http.StatusInternalServerError)
			return
		}
		h.jsonResponse(w, lock)

	case http.MethodDelete:
		token := r.URL.Query().Get("token")
		if token == "" {
			h.jsonError(w, "Token required", http.StatusBadRequest)
			return
		}
		h.config.Locks.Release(id, token)
		w.WriteHeader(http.StatusNoContent)

	default:
		h.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handlePipelineBatch handles POST /api/pipeline/batch. Starting while a
// run is active is not an error: the active run's snapshot comes back.
func (h *Handler) handlePipelineBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req := BatchRequest{Mode: models.JobModeBatch}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.jsonError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	switch req.Mode {
	case "", models.JobModeBatch:
		req.Mode = models.JobModeBatch
	case models.JobModeRecalculate:
	default:
		h.jsonError(w, "Invalid mode", http.StatusBadRequest)
		return
	}

	snap, err := h.config.Pipeline.StartBatch(r.Context(), req.Mode)
	if err != nil {
		h.config.Logger.Error(r.Context(), "batch start failed", "error", err)
		h.jsonError(w, "Failed to start batch", http.StatusInternalServerError)
		return
	}
	h.jsonResponse(w, snap)
}

// handlePipelineSingle handles POST /api/pipeline/items/{id}.
func (h *Handler) handlePipelineSingle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/pipeline/items/")
	if id == "" || strings.Contains(id, "/") {
		h.jsonError(w, "Item ID required", http.StatusBadRequest)
		return
	}

	snap, err := h.config.Pipeline.StartSingle(r.Context(), id)
	if errors.Is(err, pipeline.ErrItemNotFound) {
		h.jsonError(w, "Item not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.config.Logger.Error(r.Context(), "single start failed", "item_id", id, "error", err)
		h.jsonError(w, "Failed to start processing", http.StatusInternalServerError)
		return
	}
	h.jsonResponse(w, snap)
}

// handlePipelineStatus handles GET /api/pipeline/status, the polling
// alternative to the event stream.
func (h *Handler) handlePipelineStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.jsonResponse(w, h.config.Pipeline.Status())
}

// handleUsage handles GET /api/usage.
func (h *Handler) handleUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.config.Usage == nil {
		h.jsonError(w, "Usage tracking not configured", http.StatusNotFound)
		return
	}

	totals := make(map[string]any)
	for key, u := range h.config.Usage.Summary() {
		totals[key] = u
	}
	h.jsonResponse(w, UsageResponse{
		Totals: totals,
		Recent: h.config.Usage.Recent(parseIntParam(r, "limit", 20)),
	})
}
