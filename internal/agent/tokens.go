package agent

import (
	"slices"
	"unicode/utf8"

	"github.com/akiyama0/storemind/internal/llm"
)

// TokenBudget bounds how much context each part of a request may consume.
type TokenBudget struct {
	MaxHistoryTokens int
	MaxInputTokens   int
	ReservedTokens   int
}

// DefaultTokenBudget returns conservative defaults.
func DefaultTokenBudget() TokenBudget {
	return TokenBudget{
		MaxHistoryTokens: 8000,
		MaxInputTokens:   2000,
		ReservedTokens:   4000,
	}
}

// estimateTokens gives a rough token count. Rune count divided by 2 is
// conservative for both English (~4 chars/token) and CJK (~1.5 chars/token).
func estimateTokens(text string) int {
	return utf8.RuneCountInString(text) / 2
}

func estimateMessagesTokens(msgs []llm.Message) int {
	total := 0
	for _, m := range msgs {
		total += estimateTokens(m.Content)
	}
	return total
}

// truncateHistory drops the oldest turns until the history fits the budget.
// Chronological order is preserved.
func (s *Session) truncateHistory(msgs []llm.Message, budget int) []llm.Message {
	current := estimateMessagesTokens(msgs)
	if current <= budget {
		return msgs
	}

	remaining := budget
	kept := make([]llm.Message, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		cost := estimateTokens(msgs[i].Content)
		if remaining < cost {
			break
		}
		kept = append(kept, msgs[i])
		remaining -= cost
	}
	slices.Reverse(kept)

	s.logger.Debug("history truncated",
		"original_count", len(msgs),
		"kept_count", len(kept),
		"budget", budget)
	return kept
}
