package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/akiyama0/storemind/internal/agent"
	"github.com/akiyama0/storemind/internal/log"
)

// ChatHandler serves the chat endpoints. Each request is routed to a
// session from the cache, keyed by model, temperature and credential, so
// repeated requests with the same configuration share one session.
type ChatHandler struct {
	sessions *agent.Cache
	logger   log.Logger

	// Defaults applied when the request does not override them.
	model       string
	temperature float32
	credential  string
}

// NewChatHandler creates a chat handler. model, temperature and credential
// are the server defaults; a request may supply its own credential via the
// Authorization header.
func NewChatHandler(sessions *agent.Cache, model string, temperature float32, credential string, logger log.Logger) *ChatHandler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &ChatHandler{
		sessions:    sessions,
		logger:      logger,
		model:       model,
		temperature: temperature,
		credential:  credential,
	}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.handleChat)
	mux.HandleFunc("POST /api/chat/stream", h.handleStream)
}

// ChatRequest is the body of both chat endpoints.
type ChatRequest struct {
	StoreID        string `json:"store_id"`
	Query          string `json:"query"`
	IncludeHistory bool   `json:"include_history"`
}

// ChatToolCall summarizes one tool invocation in a response.
type ChatToolCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatResponse is the body of the synchronous endpoint.
type ChatResponse struct {
	Answer       string         `json:"answer"`
	Rounds       int            `json:"rounds"`
	FallbackUsed bool           `json:"fallback_used,omitempty"`
	ToolCalls    []ChatToolCall `json:"tool_calls,omitempty"`
}

func (r *ChatRequest) validate() string {
	if r.StoreID == "" {
		return "store_id is required"
	}
	if strings.TrimSpace(r.Query) == "" {
		return "query is required"
	}
	return ""
}

// resolveSession picks the session for this request. The Authorization
// header, when present, replaces the server credential; a different key
// lands on a different cache entry.
func (h *ChatHandler) resolveSession(r *http.Request) (*agent.Session, error) {
	credential := h.credential
	if auth := r.Header.Get("Authorization"); auth != "" {
		credential = strings.TrimPrefix(auth, "Bearer ")
	}
	return h.sessions.Get(h.model, h.temperature, credential)
}

// handleChat runs one exchange and returns the full answer as JSON.
func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", msg)
		return
	}

	session, err := h.resolveSession(r)
	if err != nil {
		h.logger.Error("session resolution failed", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "session_error", "failed to initialize agent session")
		return
	}

	result, err := session.Ask(r.Context(), agent.Request{
		TenantID:       req.StoreID,
		Query:          req.Query,
		IncludeHistory: req.IncludeHistory,
	}, nil)
	if err != nil {
		if r.Context().Err() != nil {
			// Client went away; nothing left to answer.
			return
		}
		h.logger.Error("exchange failed", "store_id", req.StoreID, "error", err)
		writeError(w, h.logger, http.StatusBadGateway, "model_error", result.Answer)
		return
	}

	resp := ChatResponse{
		Answer:       result.Answer,
		Rounds:       result.Rounds,
		FallbackUsed: result.FallbackUsed,
	}
	for _, call := range result.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, ChatToolCall{Name: call.Name, Arguments: call.Arguments})
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// handleStream runs one exchange and relays the agent's event stream as
// Server-Sent Events. Event names mirror the agent's event types:
// start, tool_call, tool_result, content, done, error.
func (h *ChatHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeSSE(w, flusher, string(agent.EventError), map[string]string{"message": fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	if msg := req.validate(); msg != "" {
		h.writeSSE(w, flusher, string(agent.EventError), map[string]string{"message": msg})
		return
	}

	session, err := h.resolveSession(r)
	if err != nil {
		h.logger.Error("session resolution failed", "error", err)
		h.writeSSE(w, flusher, string(agent.EventError), map[string]string{"message": "failed to initialize agent session"})
		return
	}

	ctx := r.Context()
	h.logger.Info("stream started", "store_id", req.StoreID)

	result, err := session.Ask(ctx, agent.Request{
		TenantID:       req.StoreID,
		Query:          req.Query,
		IncludeHistory: req.IncludeHistory,
	}, func(ev agent.Event) {
		if ctx.Err() != nil {
			return
		}
		h.writeSSE(w, flusher, string(ev.Type), ev.Data)
	})
	if err != nil {
		// The agent already emitted the error event; the disconnect case has
		// nobody listening anyway.
		h.logger.Error("stream failed", "store_id", req.StoreID, "error", err)
		return
	}

	h.logger.Info("stream completed",
		"store_id", req.StoreID,
		"rounds", result.Rounds,
		"answer_len", len(result.Answer))
}

// writeSSE writes one event and flushes it to the client.
func (h *ChatHandler) writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("failed to encode SSE payload", "event", event, "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	flusher.Flush()
}
