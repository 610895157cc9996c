package providers

import (
	"encoding/json"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/maildeskhq/maildesk/internal/agent"
)

func TestConvertOpenAIMessages(t *testing.T) {
	messages := []agent.Message{
		{Role: agent.RoleSystem, Content: "Du bist ein Assistent für ein Support-Team."},
		{Role: agent.RoleUser, Content: "Wo bleibt meine Bestellung?"},
		{Role: agent.RoleAssistant, ToolCalls: []agent.ToolCall{
			{ID: "call-1", Name: "order_history", Arguments: `{"customer_number":"KD-482910"}`},
		}},
		{Role: agent.RoleTool, ToolCallID: "call-1", Content: "Bestellung B-1001: versandt"},
	}

	got := convertOpenAIMessages(messages)
	if len(got) != 4 {
		t.Fatalf("got %d messages, want 4", len(got))
	}

	if got[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("messages[0].Role = %q, want system", got[0].Role)
	}
	if got[1].Role != openai.ChatMessageRoleUser || got[1].Content != "Wo bleibt meine Bestellung?" {
		t.Errorf("messages[1] = %+v", got[1])
	}

	if len(got[2].ToolCalls) != 1 {
		t.Fatalf("assistant message has %d tool calls, want 1", len(got[2].ToolCalls))
	}
	call := got[2].ToolCalls[0]
	if call.ID != "call-1" || call.Type != openai.ToolTypeFunction {
		t.Errorf("tool call = %+v", call)
	}
	if call.Function.Name != "order_history" || call.Function.Arguments != `{"customer_number":"KD-482910"}` {
		t.Errorf("tool call function = %+v", call.Function)
	}

	if got[3].Role != openai.ChatMessageRoleTool || got[3].ToolCallID != "call-1" {
		t.Errorf("tool result message = %+v", got[3])
	}
}

func TestConvertOpenAIMessagesVision(t *testing.T) {
	imageURL := "data:image/jpeg;base64,AAAA"
	messages := []agent.Message{
		{Role: agent.RoleUser, Content: "Siehe beigefügtes Foto.", Images: []string{imageURL}},
	}

	got := convertOpenAIMessages(messages)
	if len(got) != 1 {
		t.Fatalf("got %d messages, want 1", len(got))
	}
	if got[0].Content != "" {
		t.Errorf("Content should be empty when MultiContent is used, got %q", got[0].Content)
	}
	if len(got[0].MultiContent) != 2 {
		t.Fatalf("got %d content parts, want 2", len(got[0].MultiContent))
	}
	if got[0].MultiContent[0].Type != openai.ChatMessagePartTypeText {
		t.Errorf("parts[0].Type = %q, want text", got[0].MultiContent[0].Type)
	}
	imagePart := got[0].MultiContent[1]
	if imagePart.Type != openai.ChatMessagePartTypeImageURL || imagePart.ImageURL == nil {
		t.Fatalf("parts[1] = %+v, want image part", imagePart)
	}
	if imagePart.ImageURL.URL != imageURL {
		t.Errorf("image URL = %q, want %q", imagePart.ImageURL.URL, imageURL)
	}
}

func TestConvertOpenAIMessagesPatchesEmptyToolArguments(t *testing.T) {
	messages := []agent.Message{
		{Role: agent.RoleAssistant, ToolCalls: []agent.ToolCall{{ID: "call-1", Name: "customer_lookup", Arguments: "  "}}},
	}

	got := convertOpenAIMessages(messages)
	if got[0].ToolCalls[0].Function.Arguments != "{}" {
		t.Errorf("empty arguments should become {}, got %q", got[0].ToolCalls[0].Function.Arguments)
	}
}

func TestConvertOpenAITools(t *testing.T) {
	specs := []agent.ToolSpec{
		{
			Name:        "customer_lookup",
			Description: "Sucht einen Kunden anhand der E-Mail-Adresse.",
			Schema:      json.RawMessage(`{"type":"object","properties":{"email":{"type":"string"}},"required":["email"]}`),
		},
		{Name: "broken", Schema: json.RawMessage(`{not json`)},
	}

	got := convertOpenAITools(specs)
	if len(got) != 2 {
		t.Fatalf("got %d tools, want 2", len(got))
	}

	if got[0].Type != openai.ToolTypeFunction || got[0].Function.Name != "customer_lookup" {
		t.Errorf("tools[0] = %+v", got[0])
	}
	params, ok := got[0].Function.Parameters.(map[string]any)
	if !ok {
		t.Fatalf("tools[0].Parameters is %T, want map", got[0].Function.Parameters)
	}
	if params["type"] != "object" {
		t.Errorf("schema type = %v", params["type"])
	}

	degraded, ok := got[1].Function.Parameters.(map[string]any)
	if !ok {
		t.Fatalf("tools[1].Parameters is %T, want map", got[1].Function.Parameters)
	}
	if degraded["type"] != "object" {
		t.Errorf("broken schema should degrade to empty object schema, got %v", degraded)
	}
}

func TestNewOpenAIProvider(t *testing.T) {
	provider, err := NewOpenAIProvider("sk-test", "", "")
	if err != nil {
		t.Fatalf("NewOpenAIProvider error = %v", err)
	}
	if provider.defaultModel != DefaultOpenAIModel {
		t.Errorf("defaultModel = %q, want %q", provider.defaultModel, DefaultOpenAIModel)
	}
	if provider.Name() != "openai" {
		t.Errorf("Name() = %q", provider.Name())
	}

	custom, err := NewOpenAIProvider("sk-test", "http://localhost:11434/v1", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("NewOpenAIProvider with base URL error = %v", err)
	}
	if custom.defaultModel != "gpt-4o-mini" {
		t.Errorf("defaultModel = %q, want gpt-4o-mini", custom.defaultModel)
	}

	if _, err := NewOpenAIProvider("", "", ""); err == nil {
		t.Error("expected error for missing API key")
	}
}
