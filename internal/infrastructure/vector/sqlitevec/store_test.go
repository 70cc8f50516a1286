package sqlitevec

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

func TestStoreWriteOpenSearch(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "indexes", "primary.db")
	store := New()

	exists, err := store.Exists(ctx, path)
	if err != nil || exists {
		t.Fatalf("Exists() before build = %v, %v", exists, err)
	}

	docs := []domain.Document{
		{Title: "Fees", Text: "Fees\nThe fee is 80 EUR.", URL: "https://example.org/fees"},
		{Title: "Library", Text: "Library\nOpen daily.", URL: ""},
		{Title: "Canteen", Text: "Canteen\nLunch at noon.", URL: "https://example.org/canteen"},
	}
	vectors := [][]float32{{1, 0}, {0, 1}, {0.7, 0.7}}
	if err := store.Write(ctx, path, docs, vectors); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	exists, err = store.Exists(ctx, path)
	if err != nil || !exists {
		t.Fatalf("Exists() after build = %v, %v", exists, err)
	}

	index, err := store.Open(ctx, path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer index.Close()

	got, err := index.Search(ctx, []float32{1, 0.1}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if diff := cmp.Diff([]domain.Document{docs[0], docs[2]}, got); diff != "" {
		t.Fatalf("Search() mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreOpenMissingIsNotBuilt(t *testing.T) {
	_, err := New().Open(context.Background(), filepath.Join(t.TempDir(), "missing.db"))
	if !domain.IsKind(err, domain.ErrIndexNotBuilt) {
		t.Fatalf("expected ErrIndexNotBuilt, got %v", err)
	}
}

func TestStoreWriteRejectsMismatchedVectors(t *testing.T) {
	err := New().Write(context.Background(), filepath.Join(t.TempDir(), "x.db"),
		[]domain.Document{{Title: "a"}}, nil)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestIndexSearchKeepsBuildOrderOnTies(t *testing.T) {
	index := &Index{}
	for _, title := range []string{"first", "second", "third"} {
		v := []float32{1, 1}
		index.entries = append(index.entries, entry{doc: domain.Document{Title: title}, vector: v, norm: norm(v)})
	}
	got, err := index.Search(context.Background(), []float32{2, 2}, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	titles := []string{got[0].Title, got[1].Title, got[2].Title}
	if diff := cmp.Diff([]string{"first", "second", "third"}, titles); diff != "" {
		t.Fatalf("tie order mismatch (-want +got):\n%s", diff)
	}
}

func TestIndexSearchRejectsWrongDimension(t *testing.T) {
	v := []float32{1, 0, 0}
	index := &Index{entries: []entry{{doc: domain.Document{Title: "a"}, vector: v, norm: norm(v)}}}
	if _, err := index.Search(context.Background(), []float32{1}, 1); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
