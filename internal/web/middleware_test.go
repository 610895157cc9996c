package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/maildeskhq/maildesk/internal/observability"
)

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = observability.GetRequestID(r.Context())
	})
	handler := RequestIDMiddleware()(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if seen == "" {
		t.Error("no request id generated")
	}
	if got := rec.Header().Get("X-Request-ID"); got != seen {
		t.Errorf("header id = %q, context id = %q", got, seen)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "proxy-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "proxy-123" {
		t.Errorf("request id = %q, want the proxy-supplied one", seen)
	}
}

func TestResponseWriterCapturesStatus(t *testing.T) {
	handler := LoggingMiddleware(testLogger(), nil)(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestMetricPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/api/items", "/api/items"},
		{"/api/items/m-42", "/api/items/{id}"},
		{"/api/items/m-42/lock", "/api/items/{id}/lock"},
		{"/api/pipeline/items/m-42", "/api/pipeline/items/{id}"},
		{"/api/pipeline/status", "/api/pipeline/status"},
	}
	for _, tt := range tests {
		if got := metricPath(tt.in); got != tt.want {
			t.Errorf("metricPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
