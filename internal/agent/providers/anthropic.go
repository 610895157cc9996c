package providers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/maildeskhq/maildesk/internal/agent"
)

// DefaultAnthropicModel is used when neither the config nor the request
// names a model.
const DefaultAnthropicModel = "claude-sonnet-4-20250514"

// AnthropicProvider talks to the Anthropic Messages API. The API is
// streaming-first, so Complete consumes the event stream internally and
// returns the assembled message.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
	maxRetries   int
	retryDelay   time.Duration
}

// NewAnthropicProvider creates an Anthropic provider. baseURL and model
// are optional; an empty model falls back to DefaultAnthropicModel.
func NewAnthropicProvider(apiKey, baseURL, model string) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &AnthropicProvider{
		client:       anthropic.NewClient(opts...),
		defaultModel: model,
		maxRetries:   defaultMaxRetries,
		retryDelay:   defaultRetryDelay,
	}, nil
}

// Name returns the provider identifier used in logs, metrics, and usage
// records.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Complete sends the conversation to the Messages API and returns the
// assembled assistant turn. Transient failures are retried with
// exponential backoff before the error is wrapped and returned.
func (p *AnthropicProvider) Complete(ctx context.Context, req *agent.ChatRequest) (*agent.ChatResponse, error) {
	model := p.defaultModel
	if req.Model != "" {
		model = req.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  convertAnthropicMessages(req.Messages),
		MaxTokens: int64(maxTokens),
	}
	if system := systemPrompt(req.Messages); system != "" {
		params.System = []anthropic.TextBlockParam{
			{Type: "text", Text: system},
		}
	}
	if len(req.Tools) > 0 {
		params.Tools = convertAnthropicTools(req.Tools)
	}

	var resp *agent.ChatResponse
	err := retry(ctx, p.maxRetries, exponentialDelay(p.retryDelay), func() error {
		var callErr error
		resp, callErr = p.consumeStream(ctx, params)
		return callErr
	})
	if err != nil {
		return nil, &ProviderError{Provider: "anthropic", Model: model, Err: err}
	}
	return resp, nil
}

// consumeStream drains one streaming request and assembles the full
// assistant message. Tool input arrives as JSON fragments spread over
// delta events; fragments are accumulated per content block and finalized
// when the block stops.
func (p *AnthropicProvider) consumeStream(ctx context.Context, params anthropic.MessageNewParams) (*agent.ChatResponse, error) {
	stream := p.client.Messages.NewStreaming(ctx, params)

	var (
		text      strings.Builder
		toolCalls []agent.ToolCall
		current   *agent.ToolCall
		toolInput strings.Builder
		usage     agent.Usage
	)

	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "message_start":
			start := event.AsMessageStart()
			if start.Message.Usage.InputTokens > 0 {
				usage.PromptTokens = int(start.Message.Usage.InputTokens)
			}

		case "content_block_start":
			blockStart := event.AsContentBlockStart()
			if blockStart.ContentBlock.Type == "tool_use" {
				toolUse := blockStart.ContentBlock.AsToolUse()
				current = &agent.ToolCall{ID: toolUse.ID, Name: toolUse.Name}
				toolInput.Reset()
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				text.WriteString(delta.Text)
			case "input_json_delta":
				toolInput.WriteString(delta.PartialJSON)
			}

		case "content_block_stop":
			if current != nil {
				args := toolInput.String()
				if args == "" {
					args = "{}"
				}
				current.Arguments = args
				toolCalls = append(toolCalls, *current)
				current = nil
				toolInput.Reset()
			}

		case "message_delta":
			delta := event.AsMessageDelta()
			if delta.Usage.OutputTokens > 0 {
				usage.CompletionTokens = int(delta.Usage.OutputTokens)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}

	resp := &agent.ChatResponse{
		Message: agent.Message{
			Role:      agent.RoleAssistant,
			Content:   text.String(),
			ToolCalls: toolCalls,
		},
	}
	if usage.PromptTokens > 0 || usage.CompletionTokens > 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
		resp.Usage = &usage
	}
	return resp, nil
}

// convertAnthropicMessages maps neutral messages onto Anthropic message
// params. System messages are carried separately in the request, and tool
// results ride in user messages per the Messages API contract.
func convertAnthropicMessages(messages []agent.Message) []anthropic.MessageParam {
	var result []anthropic.MessageParam
	for _, msg := range messages {
		if msg.Role == agent.RoleSystem {
			continue
		}

		var blocks []anthropic.ContentBlockParamUnion

		if msg.Role == agent.RoleTool {
			blocks = append(blocks, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, msg.IsError))
		} else if msg.Content != "" {
			blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
		}

		for _, img := range msg.Images {
			if mediaType, data, ok := parseDataURL(img); ok {
				blocks = append(blocks, anthropic.NewImageBlockBase64(mediaType, data))
			}
		}

		for _, call := range msg.ToolCalls {
			var input map[string]any
			if err := json.Unmarshal([]byte(call.Arguments), &input); err != nil || input == nil {
				input = map[string]any{}
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, input, call.Name))
		}

		if len(blocks) == 0 {
			continue
		}
		if msg.Role == agent.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(blocks...))
		} else {
			result = append(result, anthropic.NewUserMessage(blocks...))
		}
	}
	return result
}

// convertAnthropicTools maps tool specs onto Anthropic tool params. Specs
// whose schema does not parse are skipped rather than failing the request.
func convertAnthropicTools(specs []agent.ToolSpec) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(spec.Schema, &schema); err != nil {
			continue
		}
		tool := anthropic.ToolUnionParamOfTool(schema, spec.Name)
		if tool.OfTool != nil && spec.Description != "" {
			tool.OfTool.Description = anthropic.String(spec.Description)
		}
		tools = append(tools, tool)
	}
	return tools
}
