// Package providers implements the vendor adapters behind agent.Provider.
//
// Four vendors are supported: OpenAI-compatible APIs, Anthropic, Google
// Gemini, and AWS Bedrock. Each adapter translates the neutral chat types
// from the agent package into its SDK's wire format, normalizes the
// response back into an agent.ChatResponse, and retries transient
// failures before giving up. Adapters are stateless after construction
// and safe for concurrent use.
package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/maildeskhq/maildesk/internal/agent"
	"github.com/maildeskhq/maildesk/internal/config"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = time.Second
	defaultMaxTokens  = 2048
)

// New builds the provider selected by cfg.Name. An empty name selects
// OpenAI. cfg.Model overrides the vendor's default model; credentials and
// endpoint fields are passed through to the vendor SDK.
func New(ctx context.Context, cfg config.ProviderConfig) (agent.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case "", "openai":
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model)
	case "anthropic":
		return NewAnthropicProvider(cfg.APIKey, cfg.BaseURL, cfg.Model)
	case "google", "gemini":
		return NewGoogleProvider(ctx, cfg.APIKey, cfg.Model)
	case "bedrock":
		return NewBedrockProvider(ctx, BedrockConfig{
			Region:          cfg.Region,
			Model:           cfg.Model,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			SessionToken:    cfg.SessionToken,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}

// ProviderError wraps a vendor failure with the provider and model that
// produced it. The message is stable enough to surface to operators.
type ProviderError struct {
	Provider string
	Model    string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: model=%s: %v", e.Provider, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// retryable reports whether an error message looks transient. Vendor SDKs
// surface throttling and infrastructure failures as text, so matching on
// message content is the common denominator across all four of them.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	markers := []string{
		"rate limit", "429", "too many requests", "throttl",
		"overloaded", "resource exhausted",
		"500", "502", "503", "504", "service unavailable",
		"timeout", "deadline exceeded",
		"connection reset", "connection refused",
	}
	for _, marker := range markers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// retry runs op up to attempts times, sleeping delay(attempt) between
// tries. Non-retryable errors and context cancellation end the loop
// immediately.
func retry(ctx context.Context, attempts int, delay func(int) time.Duration, op func() error) error {
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) || attempt == attempts {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay(attempt)):
		}
	}
	return lastErr
}

func linearDelay(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

func exponentialDelay(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return base * time.Duration(1<<(attempt-1))
	}
}

// systemPrompt extracts the leading system message, if any. Vendors that
// carry the system prompt outside the message list use this and skip
// system entries during conversion.
func systemPrompt(messages []agent.Message) string {
	for _, msg := range messages {
		if msg.Role == agent.RoleSystem {
			return msg.Content
		}
	}
	return ""
}

// parseDataURL splits a base64 data URL into media type and payload.
func parseDataURL(raw string) (string, string, bool) {
	if !strings.HasPrefix(raw, "data:") {
		return "", "", false
	}
	parts := strings.SplitN(raw, ",", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	meta := strings.TrimPrefix(parts[0], "data:")
	if !strings.HasSuffix(meta, ";base64") {
		return "", "", false
	}
	mediaType := strings.TrimSuffix(meta, ";base64")
	if mediaType == "" {
		return "", "", false
	}
	return mediaType, parts[1], true
}
