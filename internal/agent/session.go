// Package agent drives the conversation control loop: the model thinks,
// optionally requests tools, observes their results, and finally streams an
// answer. The loop is bounded, failures become user-visible messages, and
// each exchange is persisted as chat history.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/time/rate"

	"github.com/akiyama0/storemind/internal/history"
	"github.com/akiyama0/storemind/internal/llm"
	"github.com/akiyama0/storemind/internal/log"
	"github.com/akiyama0/storemind/internal/tool"
)

// Loop bounds. One tool round then forced finalization is the default
// policy; the ceiling guarantees termination when more rounds are enabled.
const (
	DefaultMaxToolRounds = 1
	MaxToolRoundsCeiling = 5
)

// Fallback answers substituted when the model produces empty output.
const (
	fallbackAnswerJA = "申し訳ありません、回答を生成できませんでした。質問を言い換えてもう一度お試しください。"
	fallbackAnswerEN = "I'm sorry, I couldn't produce an answer. Please try rephrasing your question."
)

// ErrMissingClient and friends report invalid session construction.
var (
	ErrMissingClient   = errors.New("agent: model client is required")
	ErrMissingRegistry = errors.New("agent: tool registry is required")
)

// State names the control loop phases, in event payloads and logs.
type State string

const (
	StateThinking   State = "THINKING"
	StateToolCall   State = "TOOL_CALL"
	StateObserving  State = "OBSERVING"
	StateFinalizing State = "FINALIZING"
	StateDone       State = "DONE"
	StateError      State = "ERROR"
)

// EventType tags the events emitted during one exchange, in stream order:
// start, zero or more tool_call/tool_result pairs, content tokens, then
// done or error.
type EventType string

const (
	EventStart      EventType = "start"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventContent    EventType = "content"
	EventDone       EventType = "done"
	EventError      EventType = "error"
)

// Event is one streamed occurrence. Data is JSON-marshalable.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

// ToolCallData is the payload of a tool_call event.
type ToolCallData struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolResultData is the payload of a tool_result event.
type ToolResultData struct {
	Name        string `json:"name"`
	Observation string `json:"observation"`
}

// HistoryStore persists conversation turns. *history.Store satisfies it.
type HistoryStore interface {
	SaveTurn(ctx context.Context, tenantID, role, content string) error
	LoadRecent(ctx context.Context, tenantID string, limit int) ([]history.Turn, error)
}

// Config assembles a Session. Client and Registry are required.
type Config struct {
	Client   llm.Client
	Registry *tool.Registry
	Executor *tool.Executor
	History  HistoryStore
	Logger   log.Logger

	Temperature   float32
	MaxToolRounds int
	HistoryLimit  int
	TokenBudget   TokenBudget
	Retry         RetryConfig
	// Limiter throttles model calls across concurrent requests. nil gets a
	// default of 10 req/s with burst 30.
	Limiter *rate.Limiter
}

// Session runs exchanges against one configured model. It holds no
// per-conversation state, so one Session serves concurrent requests.
type Session struct {
	client   llm.Client
	registry *tool.Registry
	executor *tool.Executor
	history  HistoryStore
	logger   log.Logger

	temperature float32
	maxRounds   int
	histLimit   int
	budget      TokenBudget
	retry       RetryConfig
	limiter     *rate.Limiter
}

// New validates cfg and builds a Session.
func New(cfg Config) (*Session, error) {
	if cfg.Client == nil {
		return nil, ErrMissingClient
	}
	if cfg.Registry == nil {
		return nil, ErrMissingRegistry
	}
	if cfg.Executor == nil {
		cfg.Executor = tool.NewExecutor(tool.Sequential, 0, cfg.Logger)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = DefaultMaxToolRounds
	}
	if cfg.MaxToolRounds > MaxToolRoundsCeiling {
		cfg.MaxToolRounds = MaxToolRoundsCeiling
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = history.DefaultLimit
	}
	if cfg.TokenBudget == (TokenBudget{}) {
		cfg.TokenBudget = DefaultTokenBudget()
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.Limiter == nil {
		cfg.Limiter = rate.NewLimiter(10, 30)
	}

	return &Session{
		client:      cfg.Client,
		registry:    cfg.Registry,
		executor:    cfg.Executor,
		history:     cfg.History,
		logger:      cfg.Logger,
		temperature: cfg.Temperature,
		maxRounds:   cfg.MaxToolRounds,
		histLimit:   cfg.HistoryLimit,
		budget:      cfg.TokenBudget,
		retry:       cfg.Retry,
		limiter:     cfg.Limiter,
	}, nil
}

// Request is one user exchange.
type Request struct {
	TenantID       string
	Query          string
	IncludeHistory bool
}

// ToolCallRecord documents one executed tool call.
type ToolCallRecord struct {
	Name        string
	Arguments   string
	Observation string
}

// Result is the outcome of one exchange. On failure Answer still carries a
// user-visible message, never empty content.
type Result struct {
	Answer       string
	ToolCalls    []ToolCallRecord
	Rounds       int
	FallbackUsed bool
	State        State
}

// Ask runs one exchange. onEvent, if non-nil, receives the event stream;
// content arrives token-by-token. Ask returns a non-nil Result even when it
// returns an error: Result.Answer is then the message to show the user.
func (s *Session) Ask(ctx context.Context, req Request, onEvent func(Event)) (*Result, error) {
	emit := func(ev Event) {
		if onEvent != nil {
			onEvent(ev)
		}
	}
	emit(Event{Type: EventStart, Data: map[string]string{"tenant_id": req.TenantID}})

	result, err := s.run(ctx, req, emit)
	if err != nil {
		s.logger.Error("exchange failed", "tenant_id", req.TenantID, "error", err)
		if ctx.Err() == nil {
			emit(Event{Type: EventError, Data: map[string]string{"message": fallbackAnswer(req.Query)}})
		}
		return &Result{Answer: fallbackAnswer(req.Query), State: StateError}, err
	}

	emit(Event{Type: EventDone, Data: map[string]any{"answer": result.Answer, "rounds": result.Rounds}})
	s.persist(ctx, req, result.Answer)
	return result, nil
}

func (s *Session) run(ctx context.Context, req Request, emit func(Event)) (*Result, error) {
	tools, err := s.registry.ToolsFor(req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("binding tools: %w", err)
	}
	specs := toolSpecs(tools)

	messages, err := s.buildContext(ctx, req)
	if err != nil {
		return nil, err
	}

	result := &Result{State: StateThinking}
	for round := 0; round < s.maxRounds; round++ {
		completion, err := s.completeWithRetry(ctx, func(ctx context.Context) (*llm.Completion, error) {
			return s.client.Complete(ctx, llm.Request{
				Messages:    messages,
				Tools:       specs,
				Temperature: s.temperature,
			})
		})
		if err != nil {
			return nil, fmt.Errorf("thinking round %d: %w", round+1, err)
		}
		if len(completion.ToolCalls) == 0 {
			break
		}
		result.Rounds++

		result.State = StateToolCall
		for _, call := range completion.ToolCalls {
			emit(Event{Type: EventToolCall, Data: ToolCallData{Name: call.Name, Arguments: call.Arguments}})
		}
		observations := s.executor.Execute(ctx, tools, completion.ToolCalls)

		// One batch: the assistant's request plus every observation, then
		// back to thinking.
		result.State = StateObserving
		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
		})
		for i, obs := range observations {
			emit(Event{Type: EventToolResult, Data: ToolResultData{Name: obs.Name, Observation: obs.Content}})
			result.ToolCalls = append(result.ToolCalls, ToolCallRecord{
				Name:        obs.Name,
				Arguments:   completion.ToolCalls[i].Arguments,
				Observation: obs.Content,
			})
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    obs.Content,
				ToolCallID: obs.CallID,
				Name:       obs.Name,
			})
		}
		result.State = StateThinking
	}

	// Finalization runs without tools so it cannot recurse into more calls.
	// Once a token has reached the client a failed stream must not be
	// retried: a second attempt would replay the delivered prefix.
	result.State = StateFinalizing
	var streamed bool
	completion, err := s.completeWithRetry(ctx, func(ctx context.Context) (*llm.Completion, error) {
		c, err := s.client.Stream(ctx, llm.Request{
			Messages:    messages,
			Temperature: s.temperature,
		}, func(token string) {
			streamed = true
			emit(Event{Type: EventContent, Data: token})
		})
		if err != nil && streamed {
			return nil, fmt.Errorf("%w: %w", errPartialStream, err)
		}
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("finalizing: %w", err)
	}

	result.Answer = strings.TrimSpace(completion.Content)
	if result.Answer == "" {
		result.Answer = fallbackAnswer(req.Query)
		result.FallbackUsed = true
		emit(Event{Type: EventContent, Data: result.Answer})
	}
	result.State = StateDone
	return result, nil
}

// buildContext assembles system prompt, truncated history and the query.
func (s *Session) buildContext(ctx context.Context, req Request) ([]llm.Message, error) {
	messages := []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt(req.TenantID)}}

	if req.IncludeHistory && s.history != nil {
		turns, err := s.history.LoadRecent(ctx, req.TenantID, s.histLimit)
		if err != nil {
			return nil, fmt.Errorf("loading history: %w", err)
		}
		past := make([]llm.Message, len(turns))
		for i, t := range turns {
			past[i] = llm.Message{Role: t.Role, Content: t.Content}
		}
		messages = append(messages, s.truncateHistory(past, s.budget.MaxHistoryTokens)...)
	}

	return append(messages, llm.Message{Role: llm.RoleUser, Content: req.Query}), nil
}

// persist writes the exchange once the answer has fully streamed. A canceled
// context means the client went away mid-stream; nothing is written then, so
// a reconnecting client never sees a half-recorded exchange.
func (s *Session) persist(ctx context.Context, req Request, answer string) {
	if s.history == nil || ctx.Err() != nil {
		return
	}
	if err := s.history.SaveTurn(ctx, req.TenantID, history.RoleUser, req.Query); err != nil {
		s.logger.Warn("failed to persist user turn", "tenant_id", req.TenantID, "error", err)
		return
	}
	if err := s.history.SaveTurn(ctx, req.TenantID, history.RoleAssistant, answer); err != nil {
		s.logger.Warn("failed to persist assistant turn", "tenant_id", req.TenantID, "error", err)
	}
}

func toolSpecs(tools []*tool.Tool) []llm.ToolSpec {
	specs := make([]llm.ToolSpec, len(tools))
	for i, t := range tools {
		specs[i] = llm.ToolSpec{Name: t.Name, Description: t.Description, Schema: t.ArgSchema}
	}
	return specs
}

func systemPrompt(tenantID string) string {
	return fmt.Sprintf(`You are the operations assistant for store %s.
You answer questions about this store's daily reports, sales figures, customer claims, bulletin board discussions and company manuals.

Rules:
- Use the provided tools to retrieve records before answering questions about store data. Do not invent numbers.
- Answer in the same language as the user's question.
- If a tool result contains "status":"error", explain briefly what failed instead of guessing.
- Keep answers concise and cite dates when summarizing records.`, tenantID)
}

// fallbackAnswer picks the apology matching the user's language.
func fallbackAnswer(query string) string {
	for _, r := range query {
		if unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Han) {
			return fallbackAnswerJA
		}
	}
	return fallbackAnswerEN
}
