package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akiyama0/storemind/internal/llm"
)

// errPartialStream marks a stream failure after tokens already reached the
// client. Retrying would replay delivered tokens, so it is always terminal
// even when the underlying cause looks transient.
var errPartialStream = errors.New("stream failed after partial output")

// RetryConfig configures retry behavior for model calls.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns sensible defaults for model API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryablePatterns groups transient-error substrings by category. Matched
// case-insensitively; provider SDKs do not expose sentinel errors for these.
var retryablePatterns = [][]string{
	{"rate limit", "quota exceeded", "429"},
	{"500", "502", "503", "504", "unavailable"},
	{"connection reset", "timeout", "temporary"},
}

func retryableError(err error) bool {
	if err == nil || errors.Is(err, errPartialStream) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, group := range retryablePatterns {
		for _, sub := range group {
			if strings.Contains(msg, sub) {
				return true
			}
		}
	}
	return false
}

// completeWithRetry runs one model call with exponential backoff. Each
// attempt waits on the rate limiter first, so retries cannot stampede.
func (s *Session) completeWithRetry(ctx context.Context, call func(context.Context) (*llm.Completion, error)) (*llm.Completion, error) {
	var lastErr error
	delay := s.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		completion, err := call(ctx)
		if err == nil {
			s.logger.Debug("model call succeeded", "attempts", attempt+1, "elapsed", time.Since(start))
			return completion, nil
		}
		lastErr = err

		if !retryableError(err) {
			return nil, fmt.Errorf("model call: %w", err)
		}
		if attempt == s.retry.MaxRetries {
			break
		}

		s.logger.Debug("retrying model call", "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, s.retry.MaxInterval)
		}
	}

	return nil, fmt.Errorf("model call after %d retries (elapsed %v): %w",
		s.retry.MaxRetries, time.Since(start), lastErr)
}
