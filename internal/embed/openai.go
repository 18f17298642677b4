package embed

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/akiyama0/storemind/internal/log"
)

// DefaultDimension matches text-embedding-3-small.
const DefaultDimension = 1536

// defaultEmbedTimeout bounds a single provider round-trip so a slow endpoint
// cannot hang an ingestion batch or a live query.
const defaultEmbedTimeout = 10 * time.Second

// OpenAIConfig configures the OpenAI-compatible embedding provider.
type OpenAIConfig struct {
	Model     string        // e.g. "text-embedding-3-small"
	Dimension int           // expected vector length (0 = DefaultDimension)
	Timeout   time.Duration // per-call deadline (0 = defaultEmbedTimeout)
}

// OpenAIEmbedder implements Embedder on top of an OpenAI-compatible
// embeddings endpoint. The same endpoint serves local inference servers that
// speak the OpenAI wire format, so swapping the provider is a config change.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	dimension int
	timeout   time.Duration
	logger    log.Logger
}

// NewOpenAI creates an OpenAIEmbedder. logger may be nil for tests.
func NewOpenAI(client *openai.Client, cfg OpenAIConfig, logger log.Logger) *OpenAIEmbedder {
	if logger == nil {
		logger = log.NewNop()
	}
	dim := cfg.Dimension
	if dim <= 0 {
		dim = DefaultDimension
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultEmbedTimeout
	}

	return &OpenAIEmbedder{
		client:    client,
		model:     openai.EmbeddingModel(cfg.Model),
		dimension: dim,
		timeout:   timeout,
		logger:    logger,
	}
}

// Embed implements Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateEmbeddings(callCtx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embedding request: provider returned no vector")
	}

	vec := resp.Data[0].Embedding
	if len(vec) != e.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), e.dimension)
	}

	e.logger.Debug("embedded text", "chars", len(text), "dimension", len(vec))
	return vec, nil
}

// Dimension implements Embedder.
func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}
