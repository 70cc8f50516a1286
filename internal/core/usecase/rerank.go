package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/core/ports"
)

type Reranker struct {
	scorer ports.PassageScorer
	limit  int
}

func NewReranker(scorer ports.PassageScorer, limit int) *Reranker {
	if limit <= 0 {
		limit = domain.DefaultThresholds().RerankCap
	}
	return &Reranker{scorer: scorer, limit: limit}
}

// Rerank drops duplicate candidates, scores the rest against the query and
// returns at most limit documents with their scores, best first. Ties keep
// retrieval order. Empty input returns empty output without scoring.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []domain.Document) ([]domain.Document, []float64, error) {
	unique := dedupeDocuments(candidates)
	if len(unique) == 0 {
		return []domain.Document{}, []float64{}, nil
	}

	passages := make([]string, len(unique))
	for i, doc := range unique {
		passages[i] = doc.Passage()
	}
	scores, err := r.scorer.Score(ctx, query, passages)
	if err != nil {
		return nil, nil, fmt.Errorf("score candidates: %w", err)
	}
	if len(scores) != len(unique) {
		return nil, nil, fmt.Errorf("score candidates: got %d scores for %d passages", len(scores), len(unique))
	}

	scored := make([]domain.ScoredDocument, len(unique))
	for i, doc := range unique {
		scored[i] = domain.ScoredDocument{Document: doc, Score: scores[i]}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > r.limit {
		scored = scored[:r.limit]
	}

	docs := make([]domain.Document, len(scored))
	out := make([]float64, len(scored))
	for i, item := range scored {
		docs[i] = item.Document
		out[i] = item.Score
	}
	return docs, out, nil
}

func dedupeDocuments(docs []domain.Document) []domain.Document {
	seen := make(map[domain.Document]struct{}, len(docs))
	out := make([]domain.Document, 0, len(docs))
	for _, doc := range docs {
		if _, ok := seen[doc]; ok {
			continue
		}
		seen[doc] = struct{}{}
		out = append(out, doc)
	}
	return out
}
