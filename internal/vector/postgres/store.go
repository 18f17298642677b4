// Package postgres persists embedded documents in PostgreSQL with pgvector.
//
// The in-memory index (vector/memory) serves queries; this store is the
// durable copy used to rebuild the index on startup and to share ingestion
// output across processes. Schema ownership stays with the host application;
// this package only reads and writes the documents table.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/akiyama0/storemind/internal/log"
	"github.com/akiyama0/storemind/internal/vector"
)

// DB is the subset of pgxpool.Pool the store needs. Tests substitute a mock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Connect opens a pgx pool with pgvector types registered on every
// connection.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres config: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return pool, nil
}

// Store reads and writes the documents table. Safe for concurrent use.
type Store struct {
	db     DB
	logger log.Logger
}

// New creates a Store. logger may be nil.
func New(db DB, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: db, logger: logger}
}

const upsertSQL = `
INSERT INTO documents (source_type, source_id, content, metadata, embedding, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (source_type, source_id) DO UPDATE SET
    content    = EXCLUDED.content,
    metadata   = EXCLUDED.metadata,
    embedding  = EXCLUDED.embedding,
    updated_at = EXCLUDED.updated_at`

// Upsert writes doc, overwriting any existing row with the same
// (source_type, source_id).
func (s *Store) Upsert(ctx context.Context, doc vector.Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	now := time.Now()
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := doc.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	_, err = s.db.Exec(ctx, upsertSQL,
		string(doc.SourceType),
		doc.SourceID,
		doc.Content,
		metadataJSON,
		pgvector.NewVector(doc.Embedding),
		createdAt,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting document %s/%s: %w", doc.SourceType, doc.SourceID, err)
	}

	s.logger.Debug("persisted document", "source_type", doc.SourceType, "source_id", doc.SourceID)
	return nil
}

// Delete removes one document. Missing rows are not an error.
func (s *Store) Delete(ctx context.Context, key vector.Key) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM documents WHERE source_type = $1 AND source_id = $2`,
		string(key.SourceType), key.SourceID)
	if err != nil {
		return fmt.Errorf("deleting document %s/%s: %w", key.SourceType, key.SourceID, err)
	}
	return nil
}

// DeleteByMetadata removes every document of the given source type whose
// metadata contains key=value. Used to drop a knowledge document's chunks
// wholesale before regeneration.
func (s *Store) DeleteByMetadata(ctx context.Context, sourceType vector.SourceType, key, value string) error {
	filter, err := json.Marshal(map[string]string{key: value})
	if err != nil {
		return fmt.Errorf("marshaling metadata filter: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`DELETE FROM documents WHERE source_type = $1 AND metadata @> $2`,
		string(sourceType), filter)
	if err != nil {
		return fmt.Errorf("deleting documents by metadata: %w", err)
	}
	return nil
}

// LoadAll streams every persisted document, typically to warm the in-memory
// index at startup.
func (s *Store) LoadAll(ctx context.Context) ([]vector.Document, error) {
	rows, err := s.db.Query(ctx,
		`SELECT source_type, source_id, content, metadata, embedding, created_at, updated_at FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("loading documents: %w", err)
	}
	defer rows.Close()

	var docs []vector.Document
	for rows.Next() {
		var (
			sourceType   string
			sourceID     string
			content      string
			metadataJSON []byte
			embedding    pgvector.Vector
			createdAt    time.Time
			updatedAt    time.Time
		)
		if err := rows.Scan(&sourceType, &sourceID, &content, &metadataJSON, &embedding, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}

		var metadata map[string]string
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			s.logger.Warn("skipping document with bad metadata",
				"source_type", sourceType, "source_id", sourceID, "error", err)
			continue
		}

		docs = append(docs, vector.Document{
			SourceType: vector.SourceType(sourceType),
			SourceID:   sourceID,
			Content:    content,
			Metadata:   metadata,
			Embedding:  embedding.Slice(),
			CreatedAt:  createdAt,
			UpdatedAt:  updatedAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}

	s.logger.Info("loaded persisted documents", "count", len(docs))
	return docs, nil
}
