// Package memory implements similarity search over the face-embedding store:
// a full scan of all entries, cosine-scored against the query, filtered,
// ranked and truncated. The scan-per-call design is deliberate; the entry
// set is one household's worth of people, not a vector database.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/theaipetcompany/memory-management-sub000/internal/models"
)

// EntrySource yields the full candidate set for one search.
type EntrySource interface {
	ListEntries(ctx context.Context) ([]models.Entry, error)
}

// SearchOptions controls filtering and ranking of a similarity search.
type SearchOptions struct {
	// Threshold is the minimum similarity for a candidate to be returned.
	Threshold float64
	// TopK caps the number of results; must be positive.
	TopK int
	// Categories, when non-empty, restricts results to entries whose
	// category is in the set.
	Categories []models.Category
	// ExcludeIDs removes specific entries regardless of score.
	ExcludeIDs []uuid.UUID
}

// SimilarityResult is one ranked match.
type SimilarityResult struct {
	ID         uuid.UUID    `json:"id"`
	Similarity float64      `json:"similarity"`
	Entry      models.Entry `json:"entry"`
}

// Recognition is the outcome of the single-best-match decision rule.
type Recognition struct {
	Recognized bool              `json:"recognized"`
	Confidence float64           `json:"confidence"`
	Match      *SimilarityResult `json:"match,omitempty"`
}

// Engine ranks stored entries against a query embedding.
// It is stateless between calls; every search reads the entry set fresh.
type Engine struct {
	source EntrySource
}

func NewEngine(source EntrySource) *Engine {
	return &Engine{source: source}
}

// FindSimilar returns the entries most similar to query, ordered by
// similarity descending (ties broken by id so the order is deterministic),
// truncated to opts.TopK. Candidates below opts.Threshold, outside
// opts.Categories or listed in opts.ExcludeIDs are dropped. An empty result
// is not an error; a store read failure is.
func (e *Engine) FindSimilar(ctx context.Context, query []float32, opts SearchOptions) ([]SimilarityResult, error) {
	if err := validateQuery(query); err != nil {
		return nil, err
	}
	if opts.TopK <= 0 {
		return nil, ErrInvalidTopK
	}

	entries, err := e.source.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	var categories map[models.Category]struct{}
	if len(opts.Categories) > 0 {
		categories = make(map[models.Category]struct{}, len(opts.Categories))
		for _, c := range opts.Categories {
			categories[c] = struct{}{}
		}
	}
	var excluded map[uuid.UUID]struct{}
	if len(opts.ExcludeIDs) > 0 {
		excluded = make(map[uuid.UUID]struct{}, len(opts.ExcludeIDs))
		for _, id := range opts.ExcludeIDs {
			excluded[id] = struct{}{}
		}
	}

	results := make([]SimilarityResult, 0, len(entries))
	for _, entry := range entries {
		if categories != nil {
			if _, ok := categories[entry.Category]; !ok {
				continue
			}
		}
		if excluded != nil {
			if _, ok := excluded[entry.ID]; ok {
				continue
			}
		}
		sim := CosineSimilarity(query, entry.Embedding)
		if sim < opts.Threshold {
			continue
		}
		results = append(results, SimilarityResult{
			ID:         entry.ID,
			Similarity: sim,
			Entry:      entry,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return bytes.Compare(results[i].ID[:], results[j].ID[:]) < 0
	})

	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	return results, nil
}

// Recognize applies the single-best-match rule: the query is recognized iff
// the best-scoring entry reaches threshold. Confidence is the best score
// even when it falls short, and 0 when the store is empty.
func (e *Engine) Recognize(ctx context.Context, query []float32, threshold float64) (Recognition, error) {
	// Rank with an open threshold so a near miss still reports its score.
	results, err := e.FindSimilar(ctx, query, SearchOptions{Threshold: -1, TopK: 1})
	if err != nil {
		return Recognition{}, err
	}
	if len(results) == 0 {
		return Recognition{}, nil
	}

	top := results[0]
	return Recognition{
		Recognized: top.Similarity >= threshold,
		Confidence: top.Similarity,
		Match:      &top,
	}, nil
}
