package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/maildeskhq/maildesk/internal/events"
	"github.com/maildeskhq/maildesk/internal/locks"
	"github.com/maildeskhq/maildesk/internal/observability"
	"github.com/maildeskhq/maildesk/internal/pipeline"
	"github.com/maildeskhq/maildesk/internal/store"
	"github.com/maildeskhq/maildesk/internal/usage"
	"github.com/maildeskhq/maildesk/pkg/models"
)

// fakePipeline records start calls and replays a canned snapshot.
type fakePipeline struct {
	job         models.Job
	err         error
	batchModes  []models.JobMode
	singleItems []string
}

func (f *fakePipeline) StartBatch(_ context.Context, mode models.JobMode) (models.Job, error) {
	f.batchModes = append(f.batchModes, mode)
	return f.job, f.err
}

func (f *fakePipeline) StartSingle(_ context.Context, itemID string) (models.Job, error) {
	f.singleItems = append(f.singleItems, itemID)
	return f.job, f.err
}

func (f *fakePipeline) Status() models.Job { return f.job }

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.LogConfig{Output: io.Discard})
}

func testHandler(t *testing.T, cfg *Config) *Handler {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Store == nil {
		cfg.Store = store.NewMemoryStore()
	}
	if cfg.Pipeline == nil {
		cfg.Pipeline = &fakePipeline{}
	}
	if cfg.Logger == nil {
		cfg.Logger = testLogger()
	}
	return NewHandler(cfg)
}

func seedItem(t *testing.T, s store.Store, id string) {
	t.Helper()
	err := s.Upsert(context.Background(), &models.Item{
		ID:          id,
		Subject:     "Lieferstatus",
		FromAddress: "kunde@example.de",
		ReceivedAt:  time.Now(),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestHealth(t *testing.T) {
	h := testHandler(t, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestItemListAndDetail(t *testing.T) {
	s := store.NewMemoryStore()
	seedItem(t, s, "m-1")
	seedItem(t, s, "m-2")
	h := testHandler(t, &Config{Store: s})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items?limit=10", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list ItemListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Items) != 2 {
		t.Errorf("items = %d, want 2", len(list.Items))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items/m-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("detail status = %d", rec.Code)
	}
	var item models.Item
	if err := json.Unmarshal(rec.Body.Bytes(), &item); err != nil {
		t.Fatalf("decode item: %v", err)
	}
	if item.ID != "m-1" {
		t.Errorf("item id = %q", item.ID)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing item status = %d, want 404", rec.Code)
	}
}

func TestPipelineBatch(t *testing.T) {
	fp := &fakePipeline{job: models.Job{Running: true, Mode: models.JobModeBatch, Total: 4}}
	h := testHandler(t, &Config{Pipeline: fp})

	tests := []struct {
		name     string
		body     string
		status   int
		wantMode models.JobMode
	}{
		{"default mode", "", http.StatusOK, models.JobModeBatch},
		{"explicit batch", `{"mode":"batch"}`, http.StatusOK, models.JobModeBatch},
		{"recalculate", `{"mode":"recalculate"}`, http.StatusOK, models.JobModeRecalculate},
		{"single rejected", `{"mode":"single"}`, http.StatusBadRequest, ""},
		{"garbage mode", `{"mode":"everything"}`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp.batchModes = nil
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/pipeline/batch", body))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status != http.StatusOK {
				return
			}
			if len(fp.batchModes) != 1 || fp.batchModes[0] != tt.wantMode {
				t.Errorf("modes = %v, want [%s]", fp.batchModes, tt.wantMode)
			}
			var snap models.Job
			if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
				t.Fatalf("decode snapshot: %v", err)
			}
			if snap.Total != 4 {
				t.Errorf("snapshot total = %d", snap.Total)
			}
		})
	}
}

func TestPipelineSingle(t *testing.T) {
	fp := &fakePipeline{job: models.Job{Running: true, Mode: models.JobModeSingle, Total: 1}}
	h := testHandler(t, &Config{Pipeline: fp})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/pipeline/items/m-7", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(fp.singleItems) != 1 || fp.singleItems[0] != "m-7" {
		t.Errorf("single items = %v", fp.singleItems)
	}

	fp.err = pipeline.ErrItemNotFound
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/pipeline/items/ghost", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown item status = %d, want 404", rec.Code)
	}
}

func TestPipelineStatus(t *testing.T) {
	fp := &fakePipeline{job: models.Job{Running: true, Processed: 3, Total: 9}}
	h := testHandler(t, &Config{Pipeline: fp})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pipeline/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snap models.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Processed != 3 || snap.Total != 9 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestItemLockLifecycle(t *testing.T) {
	s := store.NewMemoryStore()
	seedItem(t, s, "m-1")
	h := testHandler(t, &Config{
		Store: s,
		Locks: locks.NewManager(time.Minute, nil),
	})

	// Acquire.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/items/m-1/lock",
		strings.NewReader(`{"owner":"anna"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("acquire status = %d", rec.Code)
	}
	var lock locks.Lock
	if err := json.Unmarshal(rec.Body.Bytes(), &lock); err != nil {
		t.Fatalf("decode lock: %v", err)
	}
	if lock.Owner != "anna" || lock.Token == "" {
		t.Fatalf("lock = %+v", lock)
	}

	// Second owner is refused with the holder in the body.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/items/m-1/lock",
		strings.NewReader(`{"owner":"ben"}`)))
	if rec.Code != http.StatusLocked {
		t.Fatalf("conflict status = %d, want 423", rec.Code)
	}
	var holder locks.Lock
	if err := json.Unmarshal(rec.Body.Bytes(), &holder); err != nil {
		t.Fatalf("decode holder: %v", err)
	}
	if holder.Owner != "anna" {
		t.Errorf("holder = %q, want anna", holder.Owner)
	}

	// Release, then the second owner succeeds.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/items/m-1/lock?token="+lock.Token, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("release status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/items/m-1/lock",
		strings.NewReader(`{"owner":"ben"}`)))
	if rec.Code != http.StatusOK {
		t.Errorf("re-acquire status = %d", rec.Code)
	}
}

func TestLockRequiresOwner(t *testing.T) {
	h := testHandler(t, &Config{Locks: locks.NewManager(time.Minute, nil)})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/items/m-1/lock",
		strings.NewReader(`{}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUsage(t *testing.T) {
	tracker := usage.NewTracker(usage.DefaultTrackerConfig())
	tracker.Track(usage.Record{
		Provider: "openai",
		Model:    "gpt-4o",
		Feature:  "pipeline",
		Usage:    usage.Usage{PromptTokens: 120, CompletionTokens: 40},
	})
	h := testHandler(t, &Config{Usage: tracker})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/usage", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp UsageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Totals) == 0 {
		t.Error("totals empty")
	}
}

func TestMethodChecks(t *testing.T) {
	h := testHandler(t, &Config{Bus: events.NewBus(testLogger(), nil)})
	cases := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/items"},
		{http.MethodDelete, "/api/items/m-1"},
		{http.MethodGet, "/api/pipeline/batch"},
		{http.MethodGet, "/api/pipeline/items/m-1"},
		{http.MethodPost, "/api/pipeline/status"},
		{http.MethodPost, "/api/usage"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s = %d, want 405", tc.method, tc.path, rec.Code)
		}
	}
}
