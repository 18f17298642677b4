// Package memory implements the in-process vector index that serves all
// nearest-neighbor queries.
//
// The corpus is small and per-tenant (daily reports, board posts, manual
// chunks), so brute-force cosine over an in-memory slice beats a remote
// round-trip. Writes arrive from the ingestion pipeline; reads are lock-light
// and safely concurrent.
package memory

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/akiyama0/storemind/internal/log"
	"github.com/akiyama0/storemind/internal/vector"
)

// Index is a brute-force cosine similarity index. Safe for concurrent use.
type Index struct {
	mu        sync.RWMutex
	docs      map[vector.Key]vector.Document
	dimension int
	allowed   map[string]struct{}
	logger    log.Logger
}

// New creates an empty index for vectors of the given dimension.
// filterKeys declares the metadata keys searches may filter on; nil keeps
// the package defaults (store_id, date, category).
func New(dimension int, filterKeys []string, logger log.Logger) *Index {
	if logger == nil {
		logger = log.NewNop()
	}
	if filterKeys == nil {
		filterKeys = []string{vector.FilterKeyStoreID, vector.FilterKeyDate, vector.FilterKeyCategory}
	}
	allowed := make(map[string]struct{}, len(filterKeys))
	for _, k := range filterKeys {
		allowed[k] = struct{}{}
	}

	return &Index{
		docs:      make(map[vector.Key]vector.Document),
		dimension: dimension,
		allowed:   allowed,
		logger:    logger,
	}
}

// Upsert inserts doc or overwrites the existing document with the same
// (source type, source id). Re-ingestion is idempotent.
func (ix *Index) Upsert(doc vector.Document) error {
	if len(doc.Embedding) != ix.dimension {
		return fmt.Errorf("%w: got %d, want %d", vector.ErrDimensionMismatch, len(doc.Embedding), ix.dimension)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.docs[doc.Key()] = doc
	return nil
}

// Delete removes the document with the given key. Deleting a missing key is
// a no-op.
func (ix *Index) Delete(key vector.Key) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.docs, key)
}

// DeleteWhere removes every document the predicate matches and reports how
// many were dropped. The ingestion pipeline uses this to regenerate a
// knowledge document's chunks wholesale.
func (ix *Index) DeleteWhere(pred func(vector.Document) bool) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	n := 0
	for key, doc := range ix.docs {
		if pred(doc) {
			delete(ix.docs, key)
			n++
		}
	}
	return n
}

// Len reports the number of indexed documents.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Search implements vector.Searcher: cosine similarity descending, ties
// broken by most recent CreatedAt. topK beyond the candidate count returns
// every candidate; no match returns an empty slice.
func (ix *Index) Search(ctx context.Context, query []float32, sourceTypes []vector.SourceType, filters []vector.Filter, topK int) ([]vector.SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: got %d", vector.ErrInvalidTopK, topK)
	}
	if len(query) != ix.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", vector.ErrDimensionMismatch, len(query), ix.dimension)
	}
	for _, f := range filters {
		if _, ok := ix.allowed[f.Key]; !ok {
			return nil, fmt.Errorf("%w: %q", vector.ErrUnknownFilterKey, f.Key)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	typeSet := make(map[vector.SourceType]struct{}, len(sourceTypes))
	for _, st := range sourceTypes {
		typeSet[st] = struct{}{}
	}

	ix.mu.RLock()
	results := make([]vector.SearchResult, 0, len(ix.docs))
	for _, doc := range ix.docs {
		if len(typeSet) > 0 {
			if _, ok := typeSet[doc.SourceType]; !ok {
				continue
			}
		}
		if !matchesAll(doc.Metadata, filters) {
			continue
		}

		results = append(results, vector.SearchResult{
			SourceType: doc.SourceType,
			SourceID:   doc.SourceID,
			Content:    doc.Content,
			Metadata:   doc.Metadata,
			Similarity: cosine(query, doc.Embedding),
			CreatedAt:  doc.CreatedAt,
		})
	}
	ix.mu.RUnlock()

	slices.SortFunc(results, func(a, b vector.SearchResult) int {
		if a.Similarity != b.Similarity {
			if a.Similarity > b.Similarity {
				return -1
			}
			return 1
		}
		// Tie-break: most recent first.
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if len(results) > topK {
		results = results[:topK]
	}
	ix.logger.Debug("vector search", "candidates", ix.Len(), "hits", len(results), "topK", topK)
	return results, nil
}

func matchesAll(metadata map[string]string, filters []vector.Filter) bool {
	for _, f := range filters {
		v, ok := metadata[f.Key]
		if !ok {
			return false
		}
		switch f.Op {
		case vector.OpEq:
			if v != f.Value {
				return false
			}
		case vector.OpGte:
			if v < f.Value {
				return false
			}
		case vector.OpLte:
			if v > f.Value {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// cosine returns the cosine similarity of two equal-length vectors.
// A zero vector has no direction; its similarity to anything is 0.
func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
