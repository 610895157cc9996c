// Package agent runs the bounded tool-calling conversation that analyzes
// one inbox item. The loop asks a chat-completion provider for the next
// move, executes requested CRM lookups, and feeds results back until the
// model produces a final answer or the iteration budget runs out.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/maildeskhq/maildesk/internal/observability"
	"github.com/maildeskhq/maildesk/internal/usage"
	"github.com/maildeskhq/maildesk/pkg/models"
)

const (
	// DefaultMaxIterations caps tool-use turns per item. The conversation
	// makes at most DefaultMaxIterations+1 provider calls.
	DefaultMaxIterations = 6

	// DefaultCallTimeout bounds each individual provider call.
	DefaultCallTimeout = 90 * time.Second

	// DefaultMaxTokens is the per-reply token limit sent to providers.
	DefaultMaxTokens = 2048
)

// maxToolMessageRunes bounds tool results appended to the conversation so
// verbose lookups cannot blow up context growth.
const maxToolMessageRunes = 2000

const maxErrorRunes = 200

// forceSummaryPrompt is appended as a user message when the iteration
// budget is exhausted. The follow-up call carries no tool definitions.
const forceSummaryPrompt = "Stop using tools now. Write your final answer " +
	"immediately in the required output format, based only on the " +
	"information you already have."

// ErrNoProvider is returned by Run when the agent has no provider.
var ErrNoProvider = errors.New("agent: no provider configured")

// Config assembles an Agent. Provider is required; everything else has a
// usable default.
type Config struct {
	Provider      Provider
	Registry      *Registry
	System        func() string
	Model         string
	MaxTokens     int
	MaxIterations int
	CallTimeout   time.Duration
	Logger        *observability.Logger
	Metrics       *observability.Metrics
	Tracer        *observability.Tracer
	Usage         *usage.Tracker
}

// Agent drives one conversation per inbox item.
type Agent struct {
	provider      Provider
	registry      *Registry
	system        func() string
	model         string
	maxTokens     int
	maxIterations int
	callTimeout   time.Duration
	logger        *observability.Logger
	metrics       *observability.Metrics
	tracer        *observability.Tracer
	usage         *usage.Tracker
}

// New creates an agent, filling unset config fields with defaults.
func New(cfg Config) *Agent {
	if cfg.Registry == nil {
		cfg.Registry = NewRegistry()
	}
	if cfg.System == nil {
		cfg.System = func() string { return "" }
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.LogConfig{})
	}
	return &Agent{
		provider:      cfg.Provider,
		registry:      cfg.Registry,
		system:        cfg.System,
		model:         cfg.Model,
		maxTokens:     cfg.MaxTokens,
		maxIterations: cfg.MaxIterations,
		callTimeout:   cfg.CallTimeout,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		tracer:        cfg.Tracer,
		usage:         cfg.Usage,
	}
}

// Run drives the conversation for one item and returns the final answer
// text. A non-nil error means no usable answer exists; the degraded
// fallback path returns usable text with a nil error. onStep, when set,
// receives live step notifications inline on the conversation goroutine
// and must not block.
func (a *Agent) Run(ctx context.Context, item *models.Item, onStep func(models.AgentStep)) (string, error) {
	if a.provider == nil {
		return "", ErrNoProvider
	}
	if item == nil {
		return "", errors.New("agent: item is nil")
	}

	emit := func(step models.AgentStep) {
		if onStep != nil {
			onStep(step)
		}
	}

	messages := []Message{
		{Role: RoleSystem, Content: a.system()},
		renderItemMessage(item),
	}
	specs := a.registry.Specs()

	var outputs []toolOutput

	for i := 0; i < a.maxIterations; i++ {
		emit(models.AgentStep{Kind: models.StepThinking, Status: models.StepRunning})

		resp, err := a.complete(ctx, item, messages, specs, "auto")
		if err != nil {
			return a.degrade(ctx, err, outputs, emit)
		}

		reply := resp.Message
		reply.Role = RoleAssistant
		if len(reply.ToolCalls) == 0 {
			emit(models.AgentStep{Kind: models.StepComplete, Status: models.StepDone})
			return reply.Content, nil
		}

		messages = append(messages, reply)
		for _, call := range reply.ToolCalls {
			content, isErr := a.runTool(ctx, call, emit)
			outputs = append(outputs, toolOutput{Name: call.Name, Content: content, IsError: isErr})
			messages = append(messages, Message{
				Role:       RoleTool,
				ToolCallID: call.ID,
				Content:    truncateRunes(content, maxToolMessageRunes),
				IsError:    isErr,
			})
		}
	}

	// Budget exhausted. Force a final answer with tools withheld so the
	// conversation terminates on this call no matter what the model wants.
	a.logger.Debug(ctx, "iteration budget exhausted, forcing final answer",
		"iterations", a.maxIterations)
	messages = append(messages, Message{Role: RoleUser, Content: forceSummaryPrompt})

	resp, err := a.complete(ctx, item, messages, nil, "")
	if err != nil {
		return a.degrade(ctx, err, outputs, emit)
	}
	answer := resp.Message.Content
	if strings.TrimSpace(answer) == "" && len(outputs) > 0 {
		answer = fallbackSummary(outputs)
	}
	emit(models.AgentStep{Kind: models.StepComplete, Status: models.StepDone})
	return answer, nil
}

// degrade converts a provider failure into a terminal answer. With no tool
// context collected yet the failure is final; with partial lookups a local
// summary preserves the work already done.
func (a *Agent) degrade(ctx context.Context, err error, outputs []toolOutput, emit func(models.AgentStep)) (string, error) {
	if len(outputs) == 0 {
		emit(models.AgentStep{Kind: models.StepError, Status: models.StepFailed, Result: err.Error()})
		return "Die automatische Analyse ist fehlgeschlagen: " + truncateRunes(err.Error(), maxErrorRunes), err
	}
	a.logger.Warn(ctx, "provider failed mid-conversation, assembling fallback summary",
		"error", err, "tool_outputs", len(outputs))
	emit(models.AgentStep{Kind: models.StepComplete, Status: models.StepDone})
	return fallbackSummary(outputs), nil
}

// runTool executes one requested tool call and reports the surrounding
// steps. Failures come back as error-flagged content, never as an error.
func (a *Agent) runTool(ctx context.Context, call ToolCall, emit func(models.AgentStep)) (string, bool) {
	params, args := parseToolArgs(call.Arguments)
	emit(models.AgentStep{
		Kind:   models.StepToolCall,
		Tool:   call.Name,
		Args:   args,
		Status: models.StepRunning,
	})

	toolCtx := ctx
	if a.tracer != nil {
		var span trace.Span
		toolCtx, span = a.tracer.TraceToolExecution(ctx, call.Name)
		defer span.End()
	}

	start := time.Now()
	result := a.registry.Execute(toolCtx, call.Name, params)
	elapsed := time.Since(start)

	status := "ok"
	stepStatus := models.StepDone
	if result.IsError {
		status = "error"
		stepStatus = models.StepFailed
	}
	if a.metrics != nil {
		a.metrics.RecordToolExecution(call.Name, status, elapsed.Seconds())
	}
	a.logger.Debug(ctx, "tool executed",
		"tool", call.Name, "status", status, "duration_ms", elapsed.Milliseconds())

	emit(models.AgentStep{
		Kind:   models.StepToolResult,
		Tool:   call.Name,
		Result: truncateRunes(result.Content, maxToolMessageRunes),
		Status: stepStatus,
	})
	return result.Content, result.IsError
}

// complete performs one provider call under the per-call timeout and
// records the usage side effects.
func (a *Agent) complete(ctx context.Context, item *models.Item, messages []Message, tools []ToolSpec, choice string) (*ChatResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	if a.tracer != nil {
		var span trace.Span
		callCtx, span = a.tracer.TraceProviderCall(callCtx, a.provider.Name(), a.model)
		defer span.End()
	}

	req := &ChatRequest{
		Model:      a.model,
		Messages:   messages,
		Tools:      tools,
		ToolChoice: choice,
		MaxTokens:  a.maxTokens,
	}

	start := time.Now()
	resp, err := a.provider.Complete(callCtx, req)
	elapsed := time.Since(start)

	prompt, completion := 0, 0
	if resp != nil && resp.Usage != nil {
		prompt = resp.Usage.PromptTokens
		completion = resp.Usage.CompletionTokens
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	if a.metrics != nil {
		a.metrics.RecordProviderRequest(a.provider.Name(), a.model, status, elapsed.Seconds(), prompt, completion)
	}
	if err != nil {
		a.logger.Warn(ctx, "provider call failed",
			"provider", a.provider.Name(), "model", a.model, "error", err)
		return nil, err
	}

	a.trackUsage(item, resp.Usage)
	return resp, nil
}

// trackUsage reports token accounting. The tracker never fails, so tracking
// can never disturb the conversation.
func (a *Agent) trackUsage(item *models.Item, u *Usage) {
	if a.usage == nil || u == nil {
		return
	}
	a.usage.Track(usage.Record{
		Provider: a.provider.Name(),
		Model:    a.model,
		Feature:  "pipeline",
		ItemID:   item.ID,
		Usage: usage.Usage{
			PromptTokens:     int64(u.PromptTokens),
			CompletionTokens: int64(u.CompletionTokens),
		},
	})
}

// parseToolArgs parses a tool-call argument string. Malformed JSON is
// tolerated and treated as an empty argument object.
func parseToolArgs(raw string) (json.RawMessage, map[string]any) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return json.RawMessage("{}"), map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(trimmed), &args); err != nil || args == nil {
		return json.RawMessage("{}"), map[string]any{}
	}
	return json.RawMessage(trimmed), args
}
