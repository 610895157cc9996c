package agent

import (
	"context"
	"encoding/json"
)

// Provider is the chat-completion backend the agent talks to.
//
// Implementations handle the specifics of one vendor API (OpenAI, Anthropic,
// Gemini, Bedrock) while presenting a single non-streaming call to the
// agent loop. The loop only ever needs the final assistant message per
// turn, so providers that stream internally accumulate before returning.
//
// Implementations must be safe for concurrent use; the pipeline is
// sequential but status handlers may poll concurrently.
type Provider interface {
	// Complete sends the conversation and returns the assistant's reply.
	Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Name returns the provider name used in logs and usage records.
	Name() string
}

// ChatRequest is one completion call.
//
// Example:
//
//	req := &ChatRequest{
//	    Model: "gpt-4o",
//	    Messages: []Message{
//	        {Role: RoleSystem, Content: "You are a support assistant."},
//	        {Role: RoleUser, Content: "Wo ist meine Bestellung?"},
//	    },
//	    Tools:      registry.Specs(),
//	    ToolChoice: "auto",
//	}
type ChatRequest struct {
	// Model names the vendor model. Empty picks the provider default.
	Model string `json:"model"`

	// Messages is the conversation so far, in order.
	Messages []Message `json:"messages"`

	// Tools lists the callable tools. Empty disables tool calling, which
	// the loop relies on for its final forced-summary call.
	Tools []ToolSpec `json:"tools,omitempty"`

	// ToolChoice is the vendor tool-choice mode; the loop uses "auto".
	ToolChoice string `json:"tool_choice,omitempty"`

	// MaxTokens bounds the reply length. 0 uses the provider default.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// Message roles. Tool results travel as RoleTool messages carrying the
// originating ToolCallID.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`

	// ToolCalls are the assistant's tool invocations, if any.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a RoleTool message to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// IsError marks a RoleTool message as a failed execution for vendors
	// whose wire format carries an explicit error flag.
	IsError bool `json:"is_error,omitempty"`

	// Images holds data URLs of inline images for vision-capable models.
	Images []string `json:"images,omitempty"`
}

// ToolCall is the assistant asking for one tool execution. Arguments is the
// raw JSON string as the model produced it and may be malformed; consumers
// must tolerate that.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolSpec describes one callable tool to the model.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema"`
}

// ChatResponse is the assistant's reply for one call. Usage may be nil when
// the vendor omits it.
type ChatResponse struct {
	Message Message `json:"message"`
	Usage   *Usage  `json:"usage,omitempty"`
}

// Usage is the token accounting for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Tool is one executable lookup the agent can request.
type Tool interface {
	// Name returns the tool name for function calling.
	Name() string

	// Description tells the model when to use the tool.
	Description() string

	// Schema returns the JSON Schema of the tool's parameters.
	Schema() json.RawMessage

	// Execute runs the tool. Failures should be reported through
	// ToolResult.IsError where possible; returned errors are captured by
	// the agent and never abort the conversation.
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolResult is the outcome of one tool execution.
type ToolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}
