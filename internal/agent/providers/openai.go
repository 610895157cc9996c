package providers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/maildeskhq/maildesk/internal/agent"
)

// DefaultOpenAIModel is used when neither the config nor the request names
// a model.
const DefaultOpenAIModel = "gpt-4o"

// OpenAIProvider talks to the OpenAI chat completions API. Setting a base
// URL points it at any OpenAI-compatible endpoint instead.
type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
	maxRetries   int
	retryDelay   time.Duration
}

// NewOpenAIProvider creates an OpenAI provider. baseURL and model are
// optional; an empty model falls back to DefaultOpenAIModel.
func NewOpenAIProvider(apiKey, baseURL, model string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	var client *openai.Client
	if baseURL != "" {
		clientConfig := openai.DefaultConfig(apiKey)
		clientConfig.BaseURL = baseURL
		client = openai.NewClientWithConfig(clientConfig)
	} else {
		client = openai.NewClient(apiKey)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIProvider{
		client:       client,
		defaultModel: model,
		maxRetries:   defaultMaxRetries,
		retryDelay:   defaultRetryDelay,
	}, nil
}

// Name returns the provider identifier used in logs, metrics, and usage
// records.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Complete sends the conversation to the chat completions endpoint and
// returns the assistant turn. Transient failures are retried with linear
// backoff before the error is wrapped and returned.
func (p *OpenAIProvider) Complete(ctx context.Context, req *agent.ChatRequest) (*agent.ChatResponse, error) {
	model := p.defaultModel
	if req.Model != "" {
		model = req.Model
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: convertOpenAIMessages(req.Messages),
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = convertOpenAITools(req.Tools)
		if req.ToolChoice != "" {
			chatReq.ToolChoice = req.ToolChoice
		}
	}

	var resp openai.ChatCompletionResponse
	err := retry(ctx, p.maxRetries, linearDelay(p.retryDelay), func() error {
		var callErr error
		resp, callErr = p.client.CreateChatCompletion(ctx, chatReq)
		return callErr
	})
	if err != nil {
		return nil, &ProviderError{Provider: "openai", Model: model, Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: "openai", Model: model, Err: errors.New("response contained no choices")}
	}

	choice := resp.Choices[0].Message
	msg := agent.Message{Role: agent.RoleAssistant, Content: choice.Content}
	for _, call := range choice.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, agent.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}

	out := &agent.ChatResponse{Message: msg}
	if resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
		out.Usage = &agent.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return out, nil
}

// convertOpenAIMessages maps neutral messages onto the OpenAI wire format.
// User messages with images become multi-part content; tool results keep
// their tool_call_id so the API can pair them with the assistant turn.
func convertOpenAIMessages(messages []agent.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case agent.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: msg.Content,
			})

		case agent.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
			})

		case agent.RoleAssistant:
			converted := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Content,
			}
			for _, call := range msg.ToolCalls {
				args := call.Arguments
				if strings.TrimSpace(args) == "" {
					args = "{}"
				}
				converted.ToolCalls = append(converted.ToolCalls, openai.ToolCall{
					ID:   call.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      call.Name,
						Arguments: args,
					},
				})
			}
			out = append(out, converted)

		default:
			if len(msg.Images) > 0 {
				parts := []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: msg.Content},
				}
				for _, img := range msg.Images {
					parts = append(parts, openai.ChatMessagePart{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    img,
							Detail: openai.ImageURLDetailAuto,
						},
					})
				}
				out = append(out, openai.ChatCompletionMessage{
					Role:         openai.ChatMessageRoleUser,
					MultiContent: parts,
				})
				continue
			}
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: msg.Content,
			})
		}
	}
	return out
}

// convertOpenAITools maps tool specs onto OpenAI function definitions. A
// schema that fails to parse degrades to an empty object schema so one bad
// tool cannot sink the whole request.
func convertOpenAITools(specs []agent.ToolSpec) []openai.Tool {
	tools := make([]openai.Tool, 0, len(specs))
	for _, spec := range specs {
		var params map[string]any
		if err := json.Unmarshal(spec.Schema, &params); err != nil || params == nil {
			params = map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			}
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  params,
			},
		})
	}
	return tools
}
