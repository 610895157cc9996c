package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus metrics for the processing pipeline. All
// metrics register with the default registry and are served at /metrics.
type Metrics struct {
	// PipelineRunCounter counts pipeline runs.
	// Labels: mode (batch|recalculate|single), status (completed|fatal)
	PipelineRunCounter *prometheus.CounterVec

	// PipelineRunDuration measures whole-run wall time in seconds.
	// Labels: mode
	PipelineRunDuration *prometheus.HistogramVec

	// ItemCounter counts processed inbox items.
	// Labels: status (processed|failed)
	ItemCounter *prometheus.CounterVec

	// ItemDuration measures per-item processing time in seconds.
	ItemDuration prometheus.Histogram

	// ProviderRequestCounter counts chat-completion calls.
	// Labels: provider, model, status (success|error)
	ProviderRequestCounter *prometheus.CounterVec

	// ProviderRequestDuration measures provider call latency in seconds.
	// Labels: provider, model
	ProviderRequestDuration *prometheus.HistogramVec

	// ProviderTokens tracks token consumption.
	// Labels: provider, model, type (prompt|completion)
	ProviderTokens *prometheus.CounterVec

	// ToolExecutionCounter counts lookup tool invocations.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// FactsExtracted counts extracted facts by source path.
	// Labels: source (block|regex)
	FactsExtracted *prometheus.CounterVec

	// EventsPublished counts bus events by type.
	EventsPublished *prometheus.CounterVec

	// Observers tracks connected live observers.
	// Labels: transport (sse|ws)
	Observers *prometheus.GaugeVec

	// ActiveLocks tracks currently held editing locks.
	ActiveLocks prometheus.Gauge

	// HTTPRequestDuration measures HTTP API request latency.
	// Labels: method, path, status_code
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestCounter counts HTTP requests.
	// Labels: method, path, status_code
	HTTPRequestCounter *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics. Call once at
// application startup.
func NewMetrics() *Metrics {
	return &Metrics{
		PipelineRunCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maildesk_pipeline_runs_total",
				Help: "Total number of pipeline runs by mode and status",
			},
			[]string{"mode", "status"},
		),

		PipelineRunDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "maildesk_pipeline_run_duration_seconds",
				Help:    "Duration of pipeline runs in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"mode"},
		),

		ItemCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maildesk_items_total",
				Help: "Total number of inbox items run through the pipeline by status",
			},
			[]string{"status"},
		),

		ItemDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "maildesk_item_duration_seconds",
				Help:    "Duration of per-item processing in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
		),

		ProviderRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maildesk_provider_requests_total",
				Help: "Total number of chat-completion requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		ProviderRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "maildesk_provider_request_duration_seconds",
				Help:    "Duration of chat-completion requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 90},
			},
			[]string{"provider", "model"},
		),

		ProviderTokens: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maildesk_provider_tokens_total",
				Help: "Total number of tokens used by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),

		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maildesk_tool_executions_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "maildesk_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"tool_name"},
		),

		FactsExtracted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maildesk_facts_extracted_total",
				Help: "Total number of facts extracted by source path",
			},
			[]string{"source"},
		),

		EventsPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maildesk_events_published_total",
				Help: "Total number of pipeline events published by type",
			},
			[]string{"type"},
		),

		Observers: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "maildesk_observers",
				Help: "Current number of connected live observers by transport",
			},
			[]string{"transport"},
		),

		ActiveLocks: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "maildesk_active_locks",
				Help: "Current number of held editing locks",
			},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "maildesk_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "path", "status_code"},
		),

		HTTPRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maildesk_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
	}
}

// RecordRun records a finished pipeline run.
func (m *Metrics) RecordRun(mode, status string, durationSeconds float64) {
	m.PipelineRunCounter.WithLabelValues(mode, status).Inc()
	m.PipelineRunDuration.WithLabelValues(mode).Observe(durationSeconds)
}

// RecordItem records one item leaving the pipeline loop.
func (m *Metrics) RecordItem(status string, durationSeconds float64) {
	m.ItemCounter.WithLabelValues(status).Inc()
	m.ItemDuration.Observe(durationSeconds)
}

// RecordProviderRequest records one chat-completion call.
func (m *Metrics) RecordProviderRequest(provider, model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.ProviderRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.ProviderRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.ProviderTokens.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.ProviderTokens.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordToolExecution records one lookup tool call.
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordFacts adds to the extracted-facts counter for one source path.
func (m *Metrics) RecordFacts(source string, count int) {
	if count > 0 {
		m.FactsExtracted.WithLabelValues(source).Add(float64(count))
	}
}

// RecordEvent counts one published bus event.
func (m *Metrics) RecordEvent(eventType string) {
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// ObserverConnected increments the observer gauge for a transport.
func (m *Metrics) ObserverConnected(transport string) {
	m.Observers.WithLabelValues(transport).Inc()
}

// ObserverDisconnected decrements the observer gauge for a transport.
func (m *Metrics) ObserverDisconnected(transport string) {
	m.Observers.WithLabelValues(transport).Dec()
}

// RecordHTTPRequest records one HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, durationSeconds float64) {
	m.HTTPRequestCounter.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
}
