package usecase

import (
	"context"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/core/ports"
)

// Retriever holds the two read-only index handles. It is safe for concurrent use.
type Retriever struct {
	vectors     *VectorIndex
	primary     ports.Index
	alternative ports.Index
	topK        int
}

func NewRetriever(vectors *VectorIndex, primary, alternative ports.Index, topK int) *Retriever {
	if topK <= 0 {
		topK = domain.DefaultThresholds().TopK
	}
	return &Retriever{vectors: vectors, primary: primary, alternative: alternative, topK: topK}
}

func (r *Retriever) Retrieve(ctx context.Context, query string, useAlternative bool) ([]domain.Document, error) {
	index := r.primary
	if useAlternative {
		index = r.alternative
	}
	return r.vectors.Query(ctx, index, query, r.topK)
}
