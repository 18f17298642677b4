package llm

import (
	"testing"

	"github.com/sashabaranov/go-openai"
)

func newTestClient(t *testing.T) *OpenAIClient {
	t.Helper()
	c, err := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", Model: "gpt-4o-mini"}, nil)
	if err != nil {
		t.Fatalf("NewOpenAIClient: %v", err)
	}
	return c
}

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	if _, err := NewOpenAIClient(OpenAIConfig{}, nil); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestBuildRequestMapsToolsAndMessages(t *testing.T) {
	c := newTestClient(t)

	req := c.buildRequest(Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "you are helpful"},
			{Role: RoleUser, Content: "先週の売上は?"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call-1", Name: "sales_summary", Arguments: `{"days":7}`}}},
			{Role: RoleTool, ToolCallID: "call-1", Name: "sales_summary", Content: `{"total":12000}`},
		},
		Tools:       []ToolSpec{{Name: "sales_summary", Description: "summarize sales", Schema: map[string]any{"type": "object"}}},
		Temperature: 0.4,
	})

	if req.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", req.Model)
	}
	if len(req.Messages) != 4 {
		t.Fatalf("messages = %d, want 4", len(req.Messages))
	}
	if req.Messages[2].ToolCalls[0].Function.Name != "sales_summary" {
		t.Errorf("assistant tool call not mapped: %+v", req.Messages[2].ToolCalls)
	}
	if req.Messages[3].ToolCallID != "call-1" {
		t.Errorf("tool observation ToolCallID not mapped")
	}
	if len(req.Tools) != 1 || req.Tools[0].Type != openai.ToolTypeFunction || req.Tools[0].Function.Name != "sales_summary" {
		t.Errorf("tools not mapped: %+v", req.Tools)
	}
	if req.Temperature != 0.4 {
		t.Errorf("temperature = %v", req.Temperature)
	}
}

func TestBuildRequestOmitsToolsWhenEmpty(t *testing.T) {
	c := newTestClient(t)
	req := c.buildRequest(Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if req.Tools != nil {
		t.Fatalf("expected no tools, got %d", len(req.Tools))
	}
}

func TestToolCallRoundTrip(t *testing.T) {
	in := []ToolCall{
		{ID: "a", Name: "search", Arguments: `{"q":"claims"}`},
		{ID: "b", Name: "claims_count", Arguments: `{}`},
	}
	got := fromOpenAIToolCalls(toOpenAIToolCalls(in))
	if len(got) != 2 || got[0] != in[0] || got[1] != in[1] {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}
