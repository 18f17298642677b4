// Package testutil provides fakes shared across test packages: a scripted
// model client and a deterministic embedder.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/akiyama0/storemind/internal/embed"
	"github.com/akiyama0/storemind/internal/llm"
)

// Step is one scripted model response. Err, when set, is returned instead of
// the completion.
type Step struct {
	Completion llm.Completion
	Err        error
}

// ScriptedClient replays a fixed sequence of completions and records every
// request it receives. Safe for concurrent use.
type ScriptedClient struct {
	mu       sync.Mutex
	steps    []Step
	pos      int
	Requests []llm.Request
	Model    string
}

var _ llm.Client = (*ScriptedClient)(nil)

// NewScriptedClient builds a client that replays steps in order.
func NewScriptedClient(steps ...Step) *ScriptedClient {
	return &ScriptedClient{steps: steps, Model: "scripted-model"}
}

func (c *ScriptedClient) next(req llm.Request) (*llm.Completion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Requests = append(c.Requests, req)
	if c.pos >= len(c.steps) {
		return nil, fmt.Errorf("scripted client exhausted after %d steps", len(c.steps))
	}
	step := c.steps[c.pos]
	c.pos++
	if step.Err != nil {
		return nil, step.Err
	}
	completion := step.Completion
	return &completion, nil
}

// Complete replays the next step.
func (c *ScriptedClient) Complete(_ context.Context, req llm.Request) (*llm.Completion, error) {
	return c.next(req)
}

// Stream replays the next step, delivering the content to onToken in small
// chunks. It stops early if ctx is canceled.
func (c *ScriptedClient) Stream(ctx context.Context, req llm.Request, onToken func(string)) (*llm.Completion, error) {
	completion, err := c.next(req)
	if err != nil {
		return nil, err
	}
	if onToken != nil {
		for _, token := range Tokenize(completion.Content) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			onToken(token)
		}
	}
	return completion, nil
}

// ModelName reports the scripted model identifier.
func (c *ScriptedClient) ModelName() string { return c.Model }

// Calls reports how many requests the client has served.
func (c *ScriptedClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Requests)
}

// Tokenize splits text into the chunks Stream delivers: runs of up to three
// runes. Tests use it to predict the exact token sequence.
func Tokenize(text string) []string {
	runes := []rune(text)
	var tokens []string
	for i := 0; i < len(runes); i += 3 {
		end := min(i+3, len(runes))
		tokens = append(tokens, string(runes[i:end]))
	}
	return tokens
}

// HashEmbedder is a deterministic embedder: equal texts embed equally and
// the vector depends only on the text. Blank input fails like a real
// provider.
type HashEmbedder struct {
	Dim int
	Err error
}

var _ embed.Embedder = (*HashEmbedder)(nil)

// Dimension reports the configured vector width.
func (h *HashEmbedder) Dimension() int { return h.Dim }

// Embed derives a unit-ish vector from a hash of the text.
func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if h.Err != nil {
		return nil, h.Err
	}
	if strings.TrimSpace(text) == "" {
		return nil, embed.ErrEmptyInput
	}
	if h.Dim <= 0 {
		return nil, errors.New("testutil: dimension not set")
	}

	vec := make([]float32, h.Dim)
	hash := fnv.New64a()
	for i := range vec {
		hash.Write([]byte(text))
		fmt.Fprintf(hash, "/%d", i)
		vec[i] = float32(hash.Sum64()%1000)/1000 - 0.5
	}
	return vec, nil
}
