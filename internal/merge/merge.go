// Package merge deduplicates and re-scores search results gathered from
// several sub-query reformulations of one user question.
//
// The score deliberately weights corroboration above raw similarity:
// a document surfacing in three reformulations is stronger evidence than a
// single high-similarity hit, so each contributing result set is worth a
// full HitWeight step (default 10) while similarity contributes at most 1.
// The weighting is a tunable policy, not a derived constant.
package merge

import (
	"slices"

	"github.com/akiyama0/storemind/internal/log"
	"github.com/akiyama0/storemind/internal/vector"
)

// DefaultHitWeight is the score step per contributing result set.
const DefaultHitWeight = 10.0

// MergedResult is a deduplicated, re-scored hit. Derived per request, never
// persisted.
type MergedResult struct {
	SourceType    vector.SourceType
	SourceID      string
	Content       string
	Metadata      map[string]string
	HitCount      int
	MaxSimilarity float64
	AvgSimilarity float64
	FinalScore    float64
}

// Merger combines result sets. Stateless, safe for concurrent use.
type Merger struct {
	hitWeight float64
	logger    log.Logger
}

// New creates a Merger. hitWeight <= 0 uses DefaultHitWeight; logger may be
// nil.
func New(hitWeight float64, logger log.Logger) *Merger {
	if hitWeight <= 0 {
		hitWeight = DefaultHitWeight
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Merger{hitWeight: hitWeight, logger: logger}
}

// MergeAndRank groups all results across the input sets by document key,
// scores each group hitWeight*hitCount + maxSimilarity, and returns the topK
// groups in descending score order. The ranking is independent of the order
// in which the input sets are listed.
func (m *Merger) MergeAndRank(resultSets [][]vector.SearchResult, topK int) []MergedResult {
	type group struct {
		merged   MergedResult
		simSum   float64
		simCount int
		sets     map[int]struct{}
	}

	groups := make(map[vector.Key]*group)
	for setIdx, set := range resultSets {
		for _, r := range set {
			key := vector.Key{SourceType: r.SourceType, SourceID: r.SourceID}
			g, ok := groups[key]
			if !ok {
				g = &group{
					merged: MergedResult{
						SourceType:    r.SourceType,
						SourceID:      r.SourceID,
						Content:       r.Content,
						Metadata:      r.Metadata,
						MaxSimilarity: r.Similarity,
					},
					sets: make(map[int]struct{}),
				}
				groups[key] = g
			}

			g.sets[setIdx] = struct{}{}
			g.simSum += r.Similarity
			g.simCount++
			if r.Similarity > g.merged.MaxSimilarity {
				g.merged.MaxSimilarity = r.Similarity
				// Representative content follows the strongest member.
				g.merged.Content = r.Content
				g.merged.Metadata = r.Metadata
			}
		}
	}

	out := make([]MergedResult, 0, len(groups))
	for _, g := range groups {
		g.merged.HitCount = len(g.sets)
		g.merged.AvgSimilarity = g.simSum / float64(g.simCount)
		g.merged.FinalScore = float64(g.merged.HitCount)*m.hitWeight + g.merged.MaxSimilarity
		out = append(out, g.merged)
	}

	slices.SortFunc(out, func(a, b MergedResult) int {
		if a.FinalScore != b.FinalScore {
			if a.FinalScore > b.FinalScore {
				return -1
			}
			return 1
		}
		// Deterministic tie-break independent of input set order.
		if a.SourceType != b.SourceType {
			if a.SourceType < b.SourceType {
				return -1
			}
			return 1
		}
		if a.SourceID < b.SourceID {
			return -1
		}
		if a.SourceID > b.SourceID {
			return 1
		}
		return 0
	})

	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	m.logger.Debug("merged result sets", "sets", len(resultSets), "groups", len(groups), "returned", len(out))
	return out
}

// FilterByThreshold drops results below minSimilarity. Applied before
// grouping when the caller wants precision over recall.
func FilterByThreshold(results []vector.SearchResult, minSimilarity float64) []vector.SearchResult {
	out := make([]vector.SearchResult, 0, len(results))
	for _, r := range results {
		if r.Similarity >= minSimilarity {
			out = append(out, r)
		}
	}
	return out
}

// RerankWithWeights multiplies each result's similarity by a per-source-type
// trust weight. Source types without an entry keep weight 1. Applied before
// grouping when, say, operational reports should outrank board chatter of
// equal similarity.
func RerankWithWeights(results []vector.SearchResult, weights map[vector.SourceType]float64) []vector.SearchResult {
	out := make([]vector.SearchResult, 0, len(results))
	for _, r := range results {
		if w, ok := weights[r.SourceType]; ok {
			r.Similarity *= w
		}
		out = append(out, r)
	}
	return out
}
