package agent

import (
	"strings"
	"testing"

	"github.com/akiyama0/storemind/internal/llm"
	"github.com/akiyama0/storemind/internal/testutil"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "ascii", text: "hello world!", want: 6},
		{name: "japanese", text: "こんにちは", want: 2},
		{name: "single rune", text: "a", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := estimateTokens(tt.text); got != tt.want {
				t.Errorf("estimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestTruncateHistoryUnderBudget(t *testing.T) {
	s := newSession(t, testutil.NewScriptedClient(), nil, nil, 1)
	msgs := []llm.Message{
		{Role: llm.RoleUser, Content: "short"},
		{Role: llm.RoleAssistant, Content: "also short"},
	}
	got := s.truncateHistory(msgs, 1000)
	if len(got) != 2 {
		t.Fatalf("under-budget history should be untouched, got %d msgs", len(got))
	}
}

func TestTruncateHistoryDropsOldest(t *testing.T) {
	s := newSession(t, testutil.NewScriptedClient(), nil, nil, 1)

	old := strings.Repeat("ancient ", 100)
	msgs := []llm.Message{
		{Role: llm.RoleUser, Content: old},
		{Role: llm.RoleAssistant, Content: old},
		{Role: llm.RoleUser, Content: "recent question"},
		{Role: llm.RoleAssistant, Content: "recent answer"},
	}

	budget := estimateTokens("recent question") + estimateTokens("recent answer")
	got := s.truncateHistory(msgs, budget)

	if len(got) != 2 {
		t.Fatalf("kept %d messages, want 2", len(got))
	}
	if got[0].Content != "recent question" || got[1].Content != "recent answer" {
		t.Errorf("wrong messages kept, order broken: %+v", got)
	}
}

func TestTruncateHistoryEmpty(t *testing.T) {
	s := newSession(t, testutil.NewScriptedClient(), nil, nil, 1)
	if got := s.truncateHistory(nil, 100); len(got) != 0 {
		t.Errorf("got %d messages from empty history", len(got))
	}
}
