package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/maildeskhq/maildesk/internal/agent"
)

const (
	// DefaultBedrockRegion is used when no region is configured.
	DefaultBedrockRegion = "us-east-1"

	// DefaultBedrockModel is used when neither the config nor the request
	// names a model.
	DefaultBedrockModel = "anthropic.claude-3-sonnet-20240229-v1:0"
)

// BedrockConfig holds the AWS settings for a Bedrock provider. Leaving the
// static credential fields empty falls back to the default AWS credential
// chain (environment, shared config, instance role).
type BedrockConfig struct {
	Region          string
	Model           string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// BedrockProvider talks to AWS Bedrock through the Converse API.
type BedrockProvider struct {
	client       *bedrockruntime.Client
	defaultModel string
	maxRetries   int
	retryDelay   time.Duration
}

// NewBedrockProvider creates a Bedrock provider from the given AWS
// settings.
func NewBedrockProvider(ctx context.Context, cfg BedrockConfig) (*BedrockProvider, error) {
	region := cfg.Region
	if region == "" {
		region = DefaultBedrockRegion
	}
	model := cfg.Model
	if model == "" {
		model = DefaultBedrockModel
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("bedrock: load AWS config: %w", err)
	}

	return &BedrockProvider{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: model,
		maxRetries:   defaultMaxRetries,
		retryDelay:   defaultRetryDelay,
	}, nil
}

// Name returns the provider identifier used in logs, metrics, and usage
// records.
func (p *BedrockProvider) Name() string {
	return "bedrock"
}

// Complete sends the conversation through the Converse API and returns the
// assistant turn. Transient failures are retried with linear backoff
// before the error is wrapped and returned.
func (p *BedrockProvider) Complete(ctx context.Context, req *agent.ChatRequest) (*agent.ChatResponse, error) {
	model := p.defaultModel
	if req.Model != "" {
		model = req.Model
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(model),
		Messages: convertBedrockMessages(req.Messages),
	}
	if system := systemPrompt(req.Messages); system != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: system},
		}
	}
	if req.MaxTokens > 0 {
		maxTokens := min(req.MaxTokens, math.MaxInt32)
		input.InferenceConfig = &types.InferenceConfiguration{
			MaxTokens: aws.Int32(int32(maxTokens)),
		}
	}
	if len(req.Tools) > 0 {
		input.ToolConfig = convertBedrockTools(req.Tools)
	}

	var out *bedrockruntime.ConverseOutput
	err := retry(ctx, p.maxRetries, linearDelay(p.retryDelay), func() error {
		var callErr error
		out, callErr = p.client.Converse(ctx, input)
		return callErr
	})
	if err != nil {
		return nil, &ProviderError{Provider: "bedrock", Model: model, Err: err}
	}

	resp, err := parseBedrockOutput(out)
	if err != nil {
		return nil, &ProviderError{Provider: "bedrock", Model: model, Err: err}
	}
	return resp, nil
}

// parseBedrockOutput flattens the Converse output into a single assistant
// message. Tool input documents are re-marshaled to JSON text so
// downstream handling matches the other vendors.
func parseBedrockOutput(out *bedrockruntime.ConverseOutput) (*agent.ChatResponse, error) {
	output, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, errors.New("unexpected converse output type")
	}

	msg := agent.Message{Role: agent.RoleAssistant}
	var text strings.Builder

	for _, block := range output.Value.Content {
		switch b := block.(type) {
		case *types.ContentBlockMemberText:
			text.WriteString(b.Value)
		case *types.ContentBlockMemberToolUse:
			args := "{}"
			if b.Value.Input != nil {
				if raw, err := b.Value.Input.MarshalSmithyDocument(); err == nil {
					args = string(raw)
				}
			}
			msg.ToolCalls = append(msg.ToolCalls, agent.ToolCall{
				ID:        aws.ToString(b.Value.ToolUseId),
				Name:      aws.ToString(b.Value.Name),
				Arguments: args,
			})
		}
	}
	msg.Content = text.String()

	resp := &agent.ChatResponse{Message: msg}
	if out.Usage != nil {
		resp.Usage = &agent.Usage{
			PromptTokens:     int(aws.ToInt32(out.Usage.InputTokens)),
			CompletionTokens: int(aws.ToInt32(out.Usage.OutputTokens)),
			TotalTokens:      int(aws.ToInt32(out.Usage.TotalTokens)),
		}
	}
	return resp, nil
}

// convertBedrockMessages maps neutral messages onto Converse messages.
// Tool results ride in user messages; failed executions carry the error
// status so the model sees them as such.
func convertBedrockMessages(messages []agent.Message) []types.Message {
	result := make([]types.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == agent.RoleSystem {
			continue
		}

		var content []types.ContentBlock

		if msg.Role == agent.RoleTool {
			block := types.ToolResultBlock{
				ToolUseId: aws.String(msg.ToolCallID),
				Content: []types.ToolResultContentBlock{
					&types.ToolResultContentBlockMemberText{Value: msg.Content},
				},
			}
			if msg.IsError {
				block.Status = types.ToolResultStatusError
			}
			content = append(content, &types.ContentBlockMemberToolResult{Value: block})
		} else {
			if msg.Content != "" {
				content = append(content, &types.ContentBlockMemberText{Value: msg.Content})
			}
			for _, img := range msg.Images {
				imageBlock, err := bedrockImageBlock(img)
				if err != nil {
					continue
				}
				content = append(content, imageBlock)
			}
			for _, call := range msg.ToolCalls {
				var input any
				if err := json.Unmarshal([]byte(call.Arguments), &input); err != nil || input == nil {
					input = map[string]any{}
				}
				content = append(content, &types.ContentBlockMemberToolUse{
					Value: types.ToolUseBlock{
						ToolUseId: aws.String(call.ID),
						Name:      aws.String(call.Name),
						Input:     document.NewLazyDocument(input),
					},
				})
			}
		}

		if len(content) == 0 {
			continue
		}
		role := types.ConversationRoleUser
		if msg.Role == agent.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		result = append(result, types.Message{Role: role, Content: content})
	}
	return result
}

// convertBedrockTools maps tool specs onto the Converse tool
// configuration. A schema that fails to parse degrades to an empty object
// schema so one bad tool cannot sink the whole request.
func convertBedrockTools(specs []agent.ToolSpec) *types.ToolConfiguration {
	tools := make([]types.Tool, 0, len(specs))
	for _, spec := range specs {
		var schema any
		if err := json.Unmarshal(spec.Schema, &schema); err != nil || schema == nil {
			schema = map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			}
		}
		toolSpec := types.ToolSpecification{
			Name:        aws.String(spec.Name),
			InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
		}
		if spec.Description != "" {
			toolSpec.Description = aws.String(spec.Description)
		}
		tools = append(tools, &types.ToolMemberToolSpec{Value: toolSpec})
	}
	return &types.ToolConfiguration{Tools: tools}
}

func bedrockImageBlock(dataURL string) (*types.ContentBlockMemberImage, error) {
	mediaType, encoded, ok := parseDataURL(dataURL)
	if !ok {
		return nil, errors.New("not a base64 data url")
	}
	format, ok := bedrockImageFormat(mediaType)
	if !ok {
		return nil, fmt.Errorf("unsupported image format %q", mediaType)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return &types.ContentBlockMemberImage{
		Value: types.ImageBlock{
			Format: format,
			Source: &types.ImageSourceMemberBytes{Value: data},
		},
	}, nil
}

func bedrockImageFormat(mediaType string) (types.ImageFormat, bool) {
	switch strings.ToLower(mediaType) {
	case "image/png":
		return types.ImageFormatPng, true
	case "image/jpeg", "image/jpg":
		return types.ImageFormatJpeg, true
	case "image/gif":
		return types.ImageFormatGif, true
	case "image/webp":
		return types.ImageFormatWebp, true
	}
	return "", false
}
