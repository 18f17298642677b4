// Package knowledge runs the ingestion pipeline: operational records and
// knowledge documents come in, embedded vector.Documents land in the index
// and the persistence store.
//
// Knowledge documents are chunked before embedding and their chunks are
// regenerated wholesale on re-ingestion; chunk rows are never patched in
// place. Operational records (daily reports, board posts, comments) are
// embedded whole and upserted idempotently by (source type, source id).
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/akiyama0/storemind/internal/chunk"
	"github.com/akiyama0/storemind/internal/embed"
	"github.com/akiyama0/storemind/internal/log"
	"github.com/akiyama0/storemind/internal/vector"
)

// Metadata keys written by the pipeline.
const (
	MetaDocumentID = "document_id"
	MetaChunkIndex = "chunk_index"
	MetaTitle      = "title"
)

// ErrEmbeddingIncomplete indicates at least one chunk could not be embedded.
// The previous generation of chunks is left untouched in that case.
var ErrEmbeddingIncomplete = errors.New("knowledge: embedding incomplete")

// Indexer is the in-memory index surface the pipeline writes to.
// *memory.Index satisfies it.
type Indexer interface {
	Upsert(doc vector.Document) error
	DeleteWhere(pred func(vector.Document) bool) int
}

// Persister is the durable store surface. *postgres.Store satisfies it.
// A nil Persister disables persistence (tests, ephemeral deployments).
type Persister interface {
	Upsert(ctx context.Context, doc vector.Document) error
	Delete(ctx context.Context, key vector.Key) error
	DeleteByMetadata(ctx context.Context, sourceType vector.SourceType, key, value string) error
}

// Pipeline chunks, embeds and stores documents. Safe for concurrent use as
// long as distinct documents are ingested concurrently.
type Pipeline struct {
	chunker  *chunk.Chunker
	embedder embed.Embedder
	index    Indexer
	persist  Persister
	logger   log.Logger
}

// NewPipeline wires the ingestion pipeline. persist may be nil; logger may
// be nil.
func NewPipeline(chunker *chunk.Chunker, embedder embed.Embedder, index Indexer, persist Persister, logger log.Logger) *Pipeline {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Pipeline{
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		persist:  persist,
		logger:   logger,
	}
}

// IngestRecord embeds one operational record and upserts it. Metadata is
// stored as given; callers set store_id/date/category for filterability.
// Blank content is skipped silently (embed.ErrEmptyInput is "no signal").
func (p *Pipeline) IngestRecord(ctx context.Context, sourceType vector.SourceType, sourceID, content string, metadata map[string]string, createdAt time.Time) error {
	vec, err := p.embedder.Embed(ctx, content)
	if err != nil {
		if errors.Is(err, embed.ErrEmptyInput) {
			p.logger.Debug("skipping blank record", "source_type", sourceType, "source_id", sourceID)
			return nil
		}
		return fmt.Errorf("embedding record %s/%s: %w", sourceType, sourceID, err)
	}

	doc := vector.Document{
		SourceType: sourceType,
		SourceID:   sourceID,
		Content:    content,
		Metadata:   metadata,
		Embedding:  vec,
		CreatedAt:  createdAt,
		UpdatedAt:  time.Now(),
	}

	if err := p.index.Upsert(doc); err != nil {
		return fmt.Errorf("indexing record %s/%s: %w", sourceType, sourceID, err)
	}
	if p.persist != nil {
		if err := p.persist.Upsert(ctx, doc); err != nil {
			return fmt.Errorf("persisting record %s/%s: %w", sourceType, sourceID, err)
		}
	}
	return nil
}

// IngestKnowledge chunks a knowledge document, embeds every chunk and
// replaces the document's previous chunks wholesale. It returns the number
// of chunks stored.
//
// Embedding runs before any deletion: if one chunk fails to embed the old
// generation stays in place and ErrEmbeddingIncomplete is returned.
func (p *Pipeline) IngestKnowledge(ctx context.Context, documentID, title, text string) (int, error) {
	chunks := p.chunker.Split(text, title, true)
	if len(chunks) == 0 {
		// Empty document: drop whatever was there and finish.
		p.deleteChunks(ctx, documentID)
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := embed.Batch(ctx, p.embedder, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding chunks of %s: %w", documentID, err)
	}
	for i, v := range vectors {
		if v == nil {
			return 0, fmt.Errorf("%w: document %s chunk %d", ErrEmbeddingIncomplete, documentID, i)
		}
	}

	p.deleteChunks(ctx, documentID)

	now := time.Now()
	for i, c := range chunks {
		doc := vector.Document{
			SourceType: vector.SourceKnowledge,
			SourceID:   chunkSourceID(documentID, c.Index),
			Content:    c.Content,
			Metadata: map[string]string{
				MetaDocumentID: documentID,
				MetaChunkIndex: strconv.Itoa(c.Index),
				MetaTitle:      title,
			},
			Embedding: vectors[i],
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := p.index.Upsert(doc); err != nil {
			return i, fmt.Errorf("indexing chunk %d of %s: %w", c.Index, documentID, err)
		}
		if p.persist != nil {
			if err := p.persist.Upsert(ctx, doc); err != nil {
				return i, fmt.Errorf("persisting chunk %d of %s: %w", c.Index, documentID, err)
			}
		}
	}

	p.logger.Info("ingested knowledge document", "document_id", documentID, "chunks", len(chunks))
	return len(chunks), nil
}

// deleteChunks removes every chunk of documentID from the index and the
// persistence store.
func (p *Pipeline) deleteChunks(ctx context.Context, documentID string) {
	n := p.index.DeleteWhere(func(d vector.Document) bool {
		return d.SourceType == vector.SourceKnowledge && d.Metadata[MetaDocumentID] == documentID
	})
	if n > 0 {
		p.logger.Debug("dropped previous chunk generation", "document_id", documentID, "chunks", n)
	}
	if p.persist != nil {
		if err := p.persist.DeleteByMetadata(ctx, vector.SourceKnowledge, MetaDocumentID, documentID); err != nil {
			p.logger.Warn("failed to delete persisted chunks", "document_id", documentID, "error", err)
		}
	}
}

func chunkSourceID(documentID string, index int) string {
	return documentID + "#" + strconv.Itoa(index)
}
