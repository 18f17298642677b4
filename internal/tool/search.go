package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/akiyama0/storemind/internal/classify"
	"github.com/akiyama0/storemind/internal/embed"
	"github.com/akiyama0/storemind/internal/log"
	"github.com/akiyama0/storemind/internal/merge"
	"github.com/akiyama0/storemind/internal/vector"
)

// Retriever runs the retrieval pipeline behind the search tool: classify the
// query for a result budget, embed it, search the index scoped to the tenant,
// and merge/rank the hits.
type Retriever struct {
	classifier *classify.Classifier
	embedder   embed.Embedder
	searcher   vector.Searcher
	merger     *merge.Merger
	logger     log.Logger
}

// NewRetriever wires the pipeline. logger may be nil.
func NewRetriever(classifier *classify.Classifier, embedder embed.Embedder, searcher vector.Searcher, merger *merge.Merger, logger log.Logger) *Retriever {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Retriever{
		classifier: classifier,
		embedder:   embedder,
		searcher:   searcher,
		merger:     merger,
		logger:     logger,
	}
}

// retrievedHit is the wire shape of one search result handed to the model.
type retrievedHit struct {
	SourceType string            `json:"source_type"`
	SourceID   string            `json:"source_id"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Score      float64           `json:"score"`
}

// Search retrieves evidence for the query, scoped to tenantID. dateFrom and
// dateTo (ISO dates, either may be empty) bound the search window. The
// result is a JSON document the model can quote from.
func (r *Retriever) Search(ctx context.Context, tenantID, query, dateFrom, dateTo string) (string, error) {
	topK := r.classifier.Classify(query)

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("embedding query: %w", err)
	}

	filters := []vector.Filter{vector.Eq(vector.FilterKeyStoreID, tenantID)}
	if dateFrom != "" {
		filters = append(filters, vector.Gte(vector.FilterKeyDate, dateFrom))
	}
	if dateTo != "" {
		filters = append(filters, vector.Lte(vector.FilterKeyDate, dateTo))
	}

	// Knowledge chunks are tenant-agnostic; search them without the store
	// filter so manuals answer questions for every store.
	recordHits, err := r.searcher.Search(ctx, vec,
		[]vector.SourceType{vector.SourceOperationalReport, vector.SourceBoardPost, vector.SourceBoardComment},
		filters, topK)
	if err != nil {
		return "", fmt.Errorf("searching records: %w", err)
	}
	knowledgeHits, err := r.searcher.Search(ctx, vec,
		[]vector.SourceType{vector.SourceKnowledge}, nil, topK)
	if err != nil {
		return "", fmt.Errorf("searching knowledge: %w", err)
	}

	merged := r.merger.MergeAndRank([][]vector.SearchResult{recordHits, knowledgeHits}, topK)

	hits := make([]retrievedHit, len(merged))
	for i, m := range merged {
		hits[i] = retrievedHit{
			SourceType: string(m.SourceType),
			SourceID:   m.SourceID,
			Content:    m.Content,
			Metadata:   m.Metadata,
			Score:      m.FinalScore,
		}
	}

	r.logger.Debug("retrieval finished", "tenant_id", tenantID, "top_k", topK, "hits", len(hits))

	b, err := json.Marshal(map[string]any{
		"status":  "ok",
		"count":   len(hits),
		"results": hits,
	})
	if err != nil {
		return "", fmt.Errorf("encoding results: %w", err)
	}
	return string(b), nil
}
