// Package embed wraps the external embedding provider behind a small
// interface so that the vector store and the ingestion pipeline never depend
// on a concrete vendor SDK.
//
// Blank input is a signal, not a value: embedding "" would produce a vector
// whose similarity to everything is meaningless, so Embed fails with
// ErrEmptyInput and batch helpers skip the position instead.
package embed

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrEmptyInput indicates blank or whitespace-only text was passed to Embed.
	// Callers must treat this as "no result", never as "zero similarity".
	ErrEmptyInput = errors.New("embed: empty input")

	// ErrDimensionMismatch indicates the provider returned a vector whose
	// length differs from the configured dimension.
	ErrDimensionMismatch = errors.New("embed: dimension mismatch")
)

// Embedder turns text into a fixed-length vector.
//
// Implementations must be safe for concurrent use and must honor context
// cancellation; every remote call is expected to carry a deadline.
type Embedder interface {
	// Embed returns a vector of exactly Dimension() floats, or an error.
	// Blank input fails with ErrEmptyInput.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension reports the fixed vector length this embedder produces.
	Dimension() int
}

// Batch embeds each text in order and returns a same-length slice.
// Blank entries and entries whose embedding fails yield a nil vector at that
// position; one bad item never fails the batch. The only terminal error is
// context cancellation, which aborts the remaining items.
func Batch(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		vec, err := e.Embed(ctx, text)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			// Partial failure: leave the slot nil and keep going.
			continue
		}
		out[i] = vec
	}

	return out, nil
}
