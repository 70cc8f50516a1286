package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

// Embedder builds vectors for passages and query text. Implementations apply
// domain.PassageInstruction and domain.QueryInstruction before embedding.
type Embedder interface {
	Embed(ctx context.Context, passages []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// PassageScorer is the cross-encoder collaborator. Higher scores mean more relevant;
// the range is model specific. Scores are parallel to passages.
type PassageScorer interface {
	Score(ctx context.Context, query string, passages []string) ([]float64, error)
}

// AnswerGenerator creates the final user-facing answer. It must accept empty docs and history.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, docs []domain.Document, history string) (string, error)
}

type Tokenizer interface {
	Count(text string) int
}

// Chunker splits section text into title-prefixed passages.
type Chunker interface {
	Split(text, title string) []string
}

// IndexStore persists a built index at a path and opens it read-only.
type IndexStore interface {
	Exists(ctx context.Context, path string) (bool, error)
	Write(ctx context.Context, path string, docs []domain.Document, vectors [][]float32) error
	Open(ctx context.Context, path string) (Index, error)
}

// Index is a loaded, read-only vector index.
type Index interface {
	Search(ctx context.Context, vector []float32, k int) ([]domain.Document, error)
	Close() error
}

// DocumentRetriever returns raw candidates from the primary or alternative index.
type DocumentRetriever interface {
	Retrieve(ctx context.Context, query string, useAlternative bool) ([]domain.Document, error)
}

type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

type WebSectionExtractor interface {
	Extract(rawHTML, pageURL string) (domain.Section, error)
}

type PDFSectionExtractor interface {
	Sections(ctx context.Context, data []byte) ([]domain.Section, error)
}

// QARecordReader parses one Q/A source file. The name selects the format.
type QARecordReader interface {
	Records(ctx context.Context, name string, data []byte) ([]domain.QARecord, error)
}

// ObjectStorage stores corpus inputs and build artifacts.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, dir string) ([]string, error)
}

// WebCatalog loads the list of pages that make up a web corpus.
type WebCatalog interface {
	Pages(ctx context.Context, key string) ([]domain.WebPage, error)
}

type ReportStore interface {
	SaveReport(ctx context.Context, report domain.IngestionReport) error
}

// EventPublisher announces finished corpus builds.
type EventPublisher interface {
	PublishCorpusBuilt(ctx context.Context, report domain.IngestionReport) error
}

type RouteObserver interface {
	ObserveRoute(branch domain.Branch, topScore float64, duration time.Duration)
}

type IngestObserver interface {
	ObserveUnit(kind domain.UnitKind, ok bool)
	ObserveDocuments(corpus string, count int)
}
