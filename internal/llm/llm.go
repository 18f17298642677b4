// Package llm defines the model client surface the agent drives. Types here
// are vendor-neutral; the OpenAI-backed implementation lives in openai.go and
// tests substitute scripted clients.
package llm

import (
	"context"
	"errors"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ErrEmptyCompletion indicates the backend returned no choices.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// ToolCall is one tool invocation requested by the model. Arguments is the
// raw JSON argument object as produced by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Message is one turn of model context. ToolCalls is set on assistant turns
// that request tools; ToolCallID and Name are set on tool observation turns.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// ToolSpec describes one callable tool. Schema is a JSON Schema object for
// the argument payload.
type ToolSpec struct {
	Name        string
	Description string
	Schema      any
}

// Request is one completion request. An empty Tools slice means the model
// must answer in prose; the agent finalizes that way.
type Request struct {
	Messages    []Message
	Tools       []ToolSpec
	Temperature float32
	MaxTokens   int
}

// Usage is the token accounting reported by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completion is the model's reply. Content and ToolCalls are not mutually
// exclusive; some models emit both.
type Completion struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	Usage        Usage
}

// Client completes chat requests. Implementations must be safe for
// concurrent use.
type Client interface {
	// Complete runs one request to completion.
	Complete(ctx context.Context, req Request) (*Completion, error)

	// Stream runs one request, invoking onToken for each content delta as
	// it arrives, and returns the assembled completion. onToken may be nil.
	Stream(ctx context.Context, req Request, onToken func(token string)) (*Completion, error)

	// ModelName reports the configured model identifier.
	ModelName() string
}
