package sqlitevec

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

type entry struct {
	doc    domain.Document
	vector []float32
	norm   float64
}

// Index is a loaded index held in memory. It is never modified after Open,
// so concurrent searches need no locking.
type Index struct {
	entries []entry
}

func (i *Index) Len() int {
	return len(i.entries)
}

// Search ranks documents by cosine similarity. Equal scores keep build order.
func (i *Index) Search(ctx context.Context, vector []float32, k int) ([]domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 || len(i.entries) == 0 {
		return nil, nil
	}
	if dim := len(i.entries[0].vector); len(vector) != dim {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search index",
			fmt.Errorf("query dimension %d, index dimension %d", len(vector), dim))
	}

	queryNorm := norm(vector)
	type hit struct {
		pos   int
		score float64
	}
	hits := make([]hit, len(i.entries))
	for pos, e := range i.entries {
		hits[pos] = hit{pos: pos, score: cosine(vector, queryNorm, e.vector, e.norm)}
	}
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].score > hits[b].score
	})

	k = min(k, len(hits))
	out := make([]domain.Document, 0, k)
	for _, h := range hits[:k] {
		out = append(out, i.entries[h.pos].doc)
	}
	return out, nil
}

func (i *Index) Close() error {
	return nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, aNorm float64, b []float32, bNorm float64) float64 {
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (aNorm * bNorm)
}
