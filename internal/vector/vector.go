// Package vector defines the document model and search contract for the
// retrieval engine.
//
// A Document is any embedded operational record: a daily report, a bulletin
// board post or comment, or one chunk of a knowledge manual. Documents are
// identified by (source type, source id); re-ingestion upserts in place.
//
// The read path of record is the in-memory index in vector/memory. The
// postgres subpackage persists documents so the index can be rebuilt on
// startup; source collaborators own the write schedule.
package vector

import (
	"context"
	"errors"
	"time"
)

// SourceType categorizes where a document came from.
type SourceType string

const (
	// SourceOperationalReport is a store's daily operational report.
	SourceOperationalReport SourceType = "operational_report"

	// SourceBoardPost is a bulletin board post.
	SourceBoardPost SourceType = "board_post"

	// SourceBoardComment is a comment on a bulletin board post.
	SourceBoardComment SourceType = "board_comment"

	// SourceKnowledge is one chunk of an ingested knowledge document.
	SourceKnowledge SourceType = "knowledge"
)

// Metadata keys the store accepts in filters. Anything else in a filter is a
// caller bug and is rejected, never silently ignored.
const (
	FilterKeyStoreID  = "store_id"
	FilterKeyDate     = "date"
	FilterKeyCategory = "category"
)

var (
	// ErrInvalidTopK indicates a non-positive topK was requested.
	ErrInvalidTopK = errors.New("vector: topK must be positive")

	// ErrUnknownFilterKey indicates a filter references an undeclared
	// metadata key.
	ErrUnknownFilterKey = errors.New("vector: unknown filter key")

	// ErrDimensionMismatch indicates a query vector whose length differs
	// from the index dimension.
	ErrDimensionMismatch = errors.New("vector: query dimension mismatch")
)

// Document is an embedded record. (SourceType, SourceID) is unique; upserting
// the same pair overwrites in place.
type Document struct {
	SourceType SourceType
	SourceID   string
	Content    string
	Metadata   map[string]string
	Embedding  []float32
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Key returns the identity pair used for dedup and upsert.
func (d Document) Key() Key {
	return Key{SourceType: d.SourceType, SourceID: d.SourceID}
}

// Key identifies a document.
type Key struct {
	SourceType SourceType
	SourceID   string
}

// SearchResult is one ranked hit. Ephemeral, never persisted.
type SearchResult struct {
	SourceType SourceType
	SourceID   string
	Content    string
	Metadata   map[string]string
	Similarity float64 // cosine similarity in [-1, 1]
	CreatedAt  time.Time
}

// FilterOp is a comparison operator for metadata filters.
type FilterOp string

const (
	OpEq  FilterOp = "eq"
	OpGte FilterOp = ">="
	OpLte FilterOp = "<="
)

// Filter restricts search to documents whose metadata matches. Range
// operators compare lexicographically, which is exact for the ISO dates the
// ingestion pipeline writes.
type Filter struct {
	Key   string
	Op    FilterOp
	Value string
}

// Eq builds an equality filter.
func Eq(key, value string) Filter { return Filter{Key: key, Op: OpEq, Value: value} }

// Gte builds a >= range filter.
func Gte(key, value string) Filter { return Filter{Key: key, Op: OpGte, Value: value} }

// Lte builds a <= range filter.
func Lte(key, value string) Filter { return Filter{Key: key, Op: OpLte, Value: value} }

// Searcher is the read contract the retrieval layers consume. Implementations
// must rank by cosine similarity descending, break ties by most recent
// CreatedAt, and return an empty slice (never nil-as-error) when nothing
// matches.
type Searcher interface {
	Search(ctx context.Context, query []float32, sourceTypes []SourceType, filters []Filter, topK int) ([]SearchResult, error)
}
