package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
)

// MaxToolParamsSize bounds tool argument payloads (1MB).
const MaxToolParamsSize = 1 << 20

// Registry manages available tools with thread-safe registration and lookup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds a tool by name, replacing any tool already registered
// under that name.
func (r *Registry) Register(tool Tool) {
	if tool == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	name := tool.Name()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Specs returns the tool catalog in registration order, ready to attach to
// a ChatRequest.
func (r *Registry) Specs() []ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		specs = append(specs, ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			Schema:      t.Schema(),
		})
	}
	return specs
}

// Execute runs a tool by name. Every failure mode, including a missing
// tool, oversized parameters, a returned error, or a panic inside the tool,
// comes back as an error-flagged ToolResult so the conversation can continue.
func (r *Registry) Execute(ctx context.Context, name string, params json.RawMessage) (result *ToolResult) {
	defer func() {
		if rec := recover(); rec != nil {
			stack := debug.Stack()
			result = errorResult(fmt.Sprintf("panic in tool %s: %v\n%s", name, rec, stack))
		}
	}()

	if len(params) > MaxToolParamsSize {
		return errorResult(fmt.Sprintf("tool parameters exceed maximum size of %d bytes", MaxToolParamsSize))
	}

	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return errorResult("tool not found: " + name)
	}

	res, err := tool.Execute(ctx, params)
	if err != nil {
		return errorResult(err.Error())
	}
	if res == nil {
		return errorResult("tool returned no result: " + name)
	}
	return res
}

// errorResult wraps a failure message as a structured tool payload.
func errorResult(msg string) *ToolResult {
	data, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		data = []byte(`{"error": "tool execution failed"}`)
	}
	return &ToolResult{Content: string(data), IsError: true}
}
