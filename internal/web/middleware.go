package web

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maildeskhq/maildesk/internal/observability"
)

// RequestIDMiddleware attaches a request id to the context, honoring one
// supplied by a proxy.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			ctx := observability.WithRequestID(r.Context(), requestID)
			w.Header().Set("X-Request-ID", requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggingMiddleware logs requests and feeds the HTTP metrics. Streaming
// endpoints are logged on connect only; their long-lived durations would
// distort the latency histogram, so they are skipped there.
func LoggingMiddleware(logger *observability.Logger, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			if logger != nil {
				logger.Debug(r.Context(), "http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", wrapped.status,
					"duration_ms", duration.Milliseconds(),
					"remote_addr", r.RemoteAddr,
				)
			}
			if metrics != nil && !isStreamingPath(r.URL.Path) {
				metrics.RecordHTTPRequest(r.Method, metricPath(r.URL.Path),
					strconv.Itoa(wrapped.status), duration.Seconds())
			}
		})
	}
}

func isStreamingPath(path string) bool {
	return path == "/api/pipeline/events" || path == "/api/pipeline/ws"
}

// metricPath collapses per-item paths so item ids do not explode the
// metric label cardinality.
func metricPath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/items/"):
		if strings.HasSuffix(path, "/lock") {
			return "/api/items/{id}/lock"
		}
		return "/api/items/{id}"
	case strings.HasPrefix(path, "/api/pipeline/items/"):
		return "/api/pipeline/items/{id}"
	default:
		return path
	}
}

// responseWriter captures the status code for logging. Flush and Hijack
// pass through so SSE and WebSocket upgrades keep working behind it.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := w.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, errors.New("response writer does not support hijacking")
}
