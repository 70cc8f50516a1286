package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/core/ports"
)

const defaultEmbedBatchSize = 32

// VectorIndex builds, loads and queries persisted indexes. Documents are
// embedded as passages, queries as queries.
type VectorIndex struct {
	embedder  ports.Embedder
	store     ports.IndexStore
	batchSize int
}

func NewVectorIndex(embedder ports.Embedder, store ports.IndexStore, batchSize int) *VectorIndex {
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}
	return &VectorIndex{embedder: embedder, store: store, batchSize: batchSize}
}

func (v *VectorIndex) Build(ctx context.Context, docs []domain.Document, path string) error {
	if path == "" {
		return domain.WrapError(domain.ErrInvalidInput, "build index", errors.New("index path is required"))
	}
	if len(docs) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "build index", errors.New("corpus has no documents"))
	}

	vectors := make([][]float32, 0, len(docs))
	for start := 0; start < len(docs); start += v.batchSize {
		end := min(start+v.batchSize, len(docs))
		texts := make([]string, 0, end-start)
		for _, doc := range docs[start:end] {
			texts = append(texts, doc.Passage())
		}
		batch, err := v.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed passages %d-%d: %w", start, end, err)
		}
		if len(batch) != len(texts) {
			return fmt.Errorf("embed passages %d-%d: got %d vectors", start, end, len(batch))
		}
		vectors = append(vectors, batch...)
	}

	if err := v.store.Write(ctx, path, docs, vectors); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// Load opens the index at path or returns domain.ErrIndexNotBuilt.
func (v *VectorIndex) Load(ctx context.Context, path string) (ports.Index, error) {
	exists, err := v.store.Exists(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("check index: %w", err)
	}
	if !exists {
		return nil, domain.WrapError(domain.ErrIndexNotBuilt, "load index", fmt.Errorf("nothing at %q", path))
	}
	index, err := v.store.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return index, nil
}

func (v *VectorIndex) Query(ctx context.Context, index ports.Index, text string, k int) ([]domain.Document, error) {
	vector, err := v.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	docs, err := index.Search(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	if len(docs) > k {
		docs = docs[:k]
	}
	return docs, nil
}
