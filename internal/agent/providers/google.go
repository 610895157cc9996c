package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/maildeskhq/maildesk/internal/agent"
)

// DefaultGoogleModel is used when neither the config nor the request names
// a model.
const DefaultGoogleModel = "gemini-2.0-flash"

// GoogleProvider talks to the Gemini API. Gemini pairs function responses
// with calls by name rather than by id, so the adapter fabricates call ids
// on the way out and resolves them back to names on the way in.
type GoogleProvider struct {
	client       *genai.Client
	defaultModel string
	maxRetries   int
	retryDelay   time.Duration
}

// NewGoogleProvider creates a Gemini provider. An empty model falls back
// to DefaultGoogleModel.
func NewGoogleProvider(ctx context.Context, apiKey, model string) (*GoogleProvider, error) {
	if apiKey == "" {
		return nil, errors.New("google: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google: create client: %w", err)
	}
	if model == "" {
		model = DefaultGoogleModel
	}
	return &GoogleProvider{
		client:       client,
		defaultModel: model,
		maxRetries:   defaultMaxRetries,
		retryDelay:   defaultRetryDelay,
	}, nil
}

// Name returns the provider identifier used in logs, metrics, and usage
// records.
func (p *GoogleProvider) Name() string {
	return "google"
}

// Complete sends the conversation to Gemini and returns the assistant
// turn. Transient failures are retried with exponential backoff before
// the error is wrapped and returned.
func (p *GoogleProvider) Complete(ctx context.Context, req *agent.ChatRequest) (*agent.ChatResponse, error) {
	model := p.defaultModel
	if req.Model != "" {
		model = req.Model
	}

	contents := convertGoogleMessages(req.Messages)

	genConfig := &genai.GenerateContentConfig{}
	if system := systemPrompt(req.Messages); system != "" {
		genConfig.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}
	if req.MaxTokens > 0 {
		genConfig.MaxOutputTokens = int32(req.MaxTokens)
	}
	if len(req.Tools) > 0 {
		genConfig.Tools = convertGoogleTools(req.Tools)
	}

	var resp *genai.GenerateContentResponse
	err := retry(ctx, p.maxRetries, exponentialDelay(p.retryDelay), func() error {
		var callErr error
		resp, callErr = p.client.Models.GenerateContent(ctx, model, contents, genConfig)
		return callErr
	})
	if err != nil {
		return nil, &ProviderError{Provider: "google", Model: model, Err: err}
	}

	return parseGoogleResponse(resp), nil
}

// parseGoogleResponse flattens candidate parts into a single assistant
// message. Function call args are re-marshaled to JSON text so downstream
// handling matches the other vendors.
func parseGoogleResponse(resp *genai.GenerateContentResponse) *agent.ChatResponse {
	msg := agent.Message{Role: agent.RoleAssistant}
	var text strings.Builder

	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part == nil {
					continue
				}
				if part.Text != "" {
					text.WriteString(part.Text)
				}
				if part.FunctionCall != nil {
					args, err := json.Marshal(part.FunctionCall.Args)
					if err != nil {
						args = []byte("{}")
					}
					msg.ToolCalls = append(msg.ToolCalls, agent.ToolCall{
						ID:        googleToolCallID(part.FunctionCall.Name),
						Name:      part.FunctionCall.Name,
						Arguments: string(args),
					})
				}
			}
		}
	}
	msg.Content = text.String()

	out := &agent.ChatResponse{Message: msg}
	if resp != nil && resp.UsageMetadata != nil {
		out.Usage = &agent.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
		if out.Usage.TotalTokens == 0 {
			out.Usage.TotalTokens = out.Usage.PromptTokens + out.Usage.CompletionTokens
		}
	}
	return out
}

// googleToolCallID fabricates a call id for a Gemini function call. Gemini
// does not issue ids, but the rest of the pipeline pairs results to calls
// by id.
func googleToolCallID(name string) string {
	return fmt.Sprintf("call_%s_%d", name, time.Now().UnixNano())
}

// convertGoogleMessages maps neutral messages onto Gemini contents. Tool
// results need the original function name, which is recovered from the
// assistant tool calls seen earlier in the conversation.
func convertGoogleMessages(messages []agent.Message) []*genai.Content {
	toolNames := make(map[string]string)
	var contents []*genai.Content

	for _, msg := range messages {
		if msg.Role == agent.RoleSystem {
			continue
		}

		role := genai.RoleUser
		if msg.Role == agent.RoleAssistant {
			role = genai.RoleModel
		}

		var parts []*genai.Part

		if msg.Role == agent.RoleTool {
			name := toolNames[msg.ToolCallID]
			if name == "" {
				name = "tool"
			}
			response := map[string]any{}
			if err := json.Unmarshal([]byte(msg.Content), &response); err != nil || response == nil {
				response = map[string]any{"result": msg.Content}
			}
			if msg.IsError {
				response["error"] = true
			}
			parts = append(parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{Name: name, Response: response},
			})
		} else {
			if msg.Content != "" {
				parts = append(parts, &genai.Part{Text: msg.Content})
			}
			for _, img := range msg.Images {
				mediaType, encoded, ok := parseDataURL(img)
				if !ok {
					continue
				}
				data, err := base64.StdEncoding.DecodeString(encoded)
				if err != nil {
					continue
				}
				parts = append(parts, &genai.Part{
					InlineData: &genai.Blob{Data: data, MIMEType: mediaType},
				})
			}
			for _, call := range msg.ToolCalls {
				toolNames[call.ID] = call.Name
				args := map[string]any{}
				if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil || args == nil {
					args = map[string]any{}
				}
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{Name: call.Name, Args: args},
				})
			}
		}

		if len(parts) == 0 {
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return contents
}

// convertGoogleTools maps tool specs onto Gemini function declarations.
// Specs whose schema does not parse are skipped rather than failing the
// request.
func convertGoogleTools(specs []agent.ToolSpec) []*genai.Tool {
	var decls []*genai.FunctionDeclaration
	for _, spec := range specs {
		var raw map[string]any
		if err := json.Unmarshal(spec.Schema, &raw); err != nil || raw == nil {
			continue
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  googleSchema(raw),
		})
	}
	if len(decls) == 0 {
		return nil
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// googleSchema converts a JSON schema fragment into Gemini's typed schema.
// Only the subset the lookup tools use is carried over.
func googleSchema(raw map[string]any) *genai.Schema {
	if raw == nil {
		return nil
	}
	schema := &genai.Schema{}
	if t, ok := raw["type"].(string); ok {
		schema.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := raw["description"].(string); ok {
		schema.Description = desc
	}
	if enum, ok := raw["enum"].([]any); ok {
		for _, value := range enum {
			if s, ok := value.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}
	if props, ok := raw["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, value := range props {
			if sub, ok := value.(map[string]any); ok {
				schema.Properties[name] = googleSchema(sub)
			}
		}
	}
	if required, ok := raw["required"].([]any); ok {
		for _, value := range required {
			if s, ok := value.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	if items, ok := raw["items"].(map[string]any); ok {
		schema.Items = googleSchema(items)
	}
	return schema
}
