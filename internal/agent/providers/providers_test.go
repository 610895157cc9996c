package providers

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/maildeskhq/maildesk/internal/agent"
	"github.com/maildeskhq/maildesk/internal/config"
)

func TestNewSelectsProvider(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		cfg      config.ProviderConfig
		wantName string
	}{
		{"explicit openai", config.ProviderConfig{Name: "openai", APIKey: "sk-test"}, "openai"},
		{"empty name defaults to openai", config.ProviderConfig{APIKey: "sk-test"}, "openai"},
		{"anthropic", config.ProviderConfig{Name: "anthropic", APIKey: "sk-ant-test"}, "anthropic"},
		{"google", config.ProviderConfig{Name: "google", APIKey: "g-test"}, "google"},
		{"gemini alias", config.ProviderConfig{Name: "gemini", APIKey: "g-test"}, "google"},
		{"bedrock", config.ProviderConfig{Name: "bedrock", Region: "eu-central-1"}, "bedrock"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := New(ctx, tt.cfg)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if provider.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", provider.Name(), tt.wantName)
			}
		})
	}
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), config.ProviderConfig{Name: "llamafarm"})
	if err == nil {
		t.Fatal("expected error for unknown provider name")
	}
	if !strings.Contains(err.Error(), "llamafarm") {
		t.Errorf("error %q should name the offending provider", err)
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	for _, name := range []string{"openai", "anthropic", "google"} {
		if _, err := New(context.Background(), config.ProviderConfig{Name: name}); err == nil {
			t.Errorf("New(%s) without API key: expected error", name)
		}
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", errors.New("429 Too Many Requests"), true},
		{"server error", errors.New("status 503: Service Unavailable"), true},
		{"aws throttling", errors.New("ThrottlingException: rate exceeded"), true},
		{"overloaded", errors.New("Overloaded, please retry"), true},
		{"deadline", errors.New("context deadline exceeded"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"auth failure", errors.New("401 Unauthorized"), false},
		{"bad request", errors.New("invalid request: missing field"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryable(tt.err); got != tt.want {
				t.Errorf("retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	calls := 0
	err := retry(context.Background(), 3, linearDelay(time.Millisecond), func() error {
		calls++
		return errors.New("invalid api key")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("op ran %d times, want 1", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := retry(context.Background(), 3, linearDelay(time.Millisecond), func() error {
		calls++
		return errors.New("503 service unavailable")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("op ran %d times, want 3", calls)
	}
}

func TestRetrySucceedsAfterTransientFailure(t *testing.T) {
	calls := 0
	err := retry(context.Background(), 3, linearDelay(time.Millisecond), func() error {
		calls++
		if calls < 2 {
			return errors.New("rate limit exceeded")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("retry error = %v", err)
	}
	if calls != 2 {
		t.Errorf("op ran %d times, want 2", calls)
	}
}

func TestRetryHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := retry(ctx, 3, linearDelay(time.Millisecond), func() error {
		calls++
		return errors.New("should not run")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Errorf("op ran %d times, want 0", calls)
	}
}

func TestDelaySchedules(t *testing.T) {
	linear := linearDelay(time.Second)
	if linear(1) != time.Second || linear(3) != 3*time.Second {
		t.Errorf("linearDelay: got %v and %v", linear(1), linear(3))
	}

	exponential := exponentialDelay(time.Second)
	if exponential(1) != time.Second || exponential(3) != 4*time.Second {
		t.Errorf("exponentialDelay: got %v and %v", exponential(1), exponential(3))
	}
}

func TestParseDataURL(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantMedia string
		wantData  string
		wantOK    bool
	}{
		{"png", "data:image/png;base64,AAAA", "image/png", "AAAA", true},
		{"jpeg", "data:image/jpeg;base64,/9j/4AAQ", "image/jpeg", "/9j/4AAQ", true},
		{"http url", "https://example.com/a.png", "", "", false},
		{"not base64", "data:image/png,AAAA", "", "", false},
		{"missing media type", "data:;base64,AAAA", "", "", false},
		{"missing payload", "data:image/png;base64", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mediaType, data, ok := parseDataURL(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if mediaType != tt.wantMedia || data != tt.wantData {
				t.Errorf("got (%q, %q), want (%q, %q)", mediaType, data, tt.wantMedia, tt.wantData)
			}
		})
	}
}

func TestSystemPrompt(t *testing.T) {
	messages := []agent.Message{
		{Role: agent.RoleSystem, Content: "Du bist ein Assistent."},
		{Role: agent.RoleUser, Content: "Hallo"},
	}
	if got := systemPrompt(messages); got != "Du bist ein Assistent." {
		t.Errorf("systemPrompt() = %q", got)
	}
	if got := systemPrompt(messages[1:]); got != "" {
		t.Errorf("systemPrompt() without system message = %q, want empty", got)
	}
}

func TestProviderError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &ProviderError{Provider: "openai", Model: "gpt-4o", Err: cause}

	msg := err.Error()
	if !strings.Contains(msg, "openai") || !strings.Contains(msg, "gpt-4o") || !strings.Contains(msg, "connection refused") {
		t.Errorf("Error() = %q, missing context", msg)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the wrapped cause")
	}
}
