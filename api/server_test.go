package api

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/akiyama0/storemind/internal/log"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(newChatHandler(t, nil), NewHealthHandler(&fakePinger{}, nil), nil)
}

func TestServerRoutes(t *testing.T) {
	handler := newTestServer(t).Handler()

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"health registered", http.MethodGet, "/health", http.StatusOK},
		{"ready registered", http.MethodGet, "/ready", http.StatusOK},
		{"chat rejects GET", http.MethodGet, "/api/chat", http.StatusMethodNotAllowed},
		{"stream rejects GET", http.MethodGet, "/api/chat/stream", http.StatusMethodNotAllowed},
		{"unknown path", http.MethodGet, "/api/unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	handler := chain(panicky, recoveryMiddleware(log.NewNop()))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 after panic", rec.Code)
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithWriter(&buf, log.Config{Level: slog.LevelDebug})
	handler := chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), loggingMiddleware(logger))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if !bytes.Contains(buf.Bytes(), []byte("/health")) {
		t.Fatalf("log output missing request path: %s", buf.String())
	}
}
