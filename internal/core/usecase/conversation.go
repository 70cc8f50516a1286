package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/core/ports"
)

// ConversationManager owns corpus setup and serves queries once both indexes
// are loaded. Run is safe for concurrent use after Setup returned nil.
type ConversationManager struct {
	pipeline  *IngestionPipeline
	vectors   *VectorIndex
	reranker  *Reranker
	generator ports.AnswerGenerator
	storage   ports.ObjectStorage
	reports   ports.ReportStore
	events    ports.EventPublisher
	observer  ports.RouteObserver
	settings  RouterSettings

	builds  singleflight.Group
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	mu      sync.RWMutex
	router  *ResponseRouter
	indexes []ports.Index
}

func NewConversationManager(
	pipeline *IngestionPipeline,
	vectors *VectorIndex,
	reranker *Reranker,
	generator ports.AnswerGenerator,
	storage ports.ObjectStorage,
	reports ports.ReportStore,
	events ports.EventPublisher,
	observer ports.RouteObserver,
	settings RouterSettings,
) *ConversationManager {
	return &ConversationManager{
		pipeline:  pipeline,
		vectors:   vectors,
		reranker:  reranker,
		generator: generator,
		storage:   storage,
		reports:   reports,
		events:    events,
		observer:  observer,
		settings:  settings,
		locks:     make(map[string]*sync.Mutex),
	}
}

// Setup loads both indexes, building whichever does not exist yet. Builds of
// the same index path never run concurrently. Calling Setup again after it
// succeeded is a no-op.
func (m *ConversationManager) Setup(ctx context.Context, primary, alternative domain.CorpusSpec) error {
	if m.Ready() {
		return nil
	}

	primaryIndex, err := m.ensureIndex(ctx, primary)
	if err != nil {
		return fmt.Errorf("setup primary corpus: %w", err)
	}
	alternativeIndex, err := m.ensureIndex(ctx, alternative)
	if err != nil {
		return fmt.Errorf("setup alternative corpus: %w", err)
	}

	if m.install(primaryIndex, alternativeIndex) {
		slog.Info("corpus_ready", "primary", primary.IndexPath, "alternative", alternative.IndexPath)
	}
	return nil
}

// install makes the indexes live unless a concurrent Setup got there first.
// In that case the handles that are not in use are closed.
func (m *ConversationManager) install(primaryIndex, alternativeIndex ports.Index) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.router == nil {
		retriever := NewRetriever(m.vectors, primaryIndex, alternativeIndex, m.settings.Thresholds.Normalize().TopK)
		m.router = NewResponseRouter(retriever, m.reranker, m.generator, m.observer, m.settings)
		m.indexes = []ports.Index{primaryIndex, alternativeIndex}
		return true
	}

	closed := make([]ports.Index, 0, 2)
	for _, index := range []ports.Index{primaryIndex, alternativeIndex} {
		if slices.Contains(m.indexes, index) || slices.Contains(closed, index) {
			continue
		}
		if err := index.Close(); err != nil {
			slog.Warn("close_unused_index_failed", "error", err)
		}
		closed = append(closed, index)
	}
	return false
}

func (m *ConversationManager) ensureIndex(ctx context.Context, spec domain.CorpusSpec) (ports.Index, error) {
	if strings.TrimSpace(spec.IndexPath) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "setup", errors.New("index path is required"))
	}

	value, err, _ := m.builds.Do(spec.IndexPath, func() (any, error) {
		lock := m.pathLock(spec.IndexPath)
		lock.Lock()
		defer lock.Unlock()

		index, err := m.vectors.Load(ctx, spec.IndexPath)
		if err == nil {
			return index, nil
		}
		if !domain.IsKind(err, domain.ErrIndexNotBuilt) {
			return nil, err
		}
		if _, err := m.build(ctx, spec); err != nil {
			return nil, err
		}
		return m.vectors.Load(ctx, spec.IndexPath)
	})
	if err != nil {
		return nil, err
	}
	return value.(ports.Index), nil
}

// Build ingests the corpus and writes its index, replacing whatever is at the
// index path. It serializes with Setup on the same path.
func (m *ConversationManager) Build(ctx context.Context, spec domain.CorpusSpec) (domain.IngestionReport, error) {
	lock := m.pathLock(spec.IndexPath)
	lock.Lock()
	defer lock.Unlock()
	return m.build(ctx, spec)
}

func (m *ConversationManager) build(ctx context.Context, spec domain.CorpusSpec) (domain.IngestionReport, error) {
	docs, report := m.pipeline.Run(ctx, spec.Source)
	report.IndexPath = spec.IndexPath
	if len(docs) == 0 {
		return report, domain.WrapError(domain.ErrInvalidInput, "build corpus",
			fmt.Errorf("corpus %q produced no documents (%d units skipped)", spec.Source.Name, len(report.Skipped)))
	}

	if err := m.dumpCorpus(ctx, spec.Source.Name, docs); err != nil {
		slog.Warn("corpus_dump_failed", "corpus", spec.Source.Name, "error", err)
	}
	if err := m.vectors.Build(ctx, docs, spec.IndexPath); err != nil {
		return report, fmt.Errorf("build index %q: %w", spec.IndexPath, err)
	}

	if m.reports != nil {
		if err := m.reports.SaveReport(ctx, report); err != nil {
			slog.Warn("ingest_report_save_failed", "corpus", report.Corpus, "error", err)
		}
	}
	if m.events != nil {
		if err := m.events.PublishCorpusBuilt(ctx, report); err != nil {
			slog.Warn("corpus_built_publish_failed", "corpus", report.Corpus, "error", err)
		}
	}
	slog.Info("corpus_built",
		"corpus", report.Corpus,
		"index_path", report.IndexPath,
		"documents", report.Documents,
		"skipped", len(report.Skipped),
	)
	return report, nil
}

// CorpusDumpKey is the storage key of the JSON lines dump of a built corpus.
func CorpusDumpKey(corpus string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, corpus)
	if name == "" {
		name = "corpus"
	}
	return path.Join("corpus", name+".jsonl")
}

func (m *ConversationManager) dumpCorpus(ctx context.Context, corpus string, docs []domain.Document) error {
	if m.storage == nil {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, doc := range docs {
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode document: %w", err)
		}
	}
	return m.storage.Save(ctx, CorpusDumpKey(corpus), &buf)
}

func (m *ConversationManager) pathLock(indexPath string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	lock, ok := m.locks[indexPath]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[indexPath] = lock
	}
	return lock
}

func (m *ConversationManager) Run(ctx context.Context, query string, history []domain.ConversationTurn) (domain.RouteResult, error) {
	m.mu.RLock()
	router := m.router
	m.mu.RUnlock()
	if router == nil {
		return domain.RouteResult{}, domain.WrapError(domain.ErrNotReady, "run", errors.New("corpus setup has not completed"))
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return domain.RouteResult{}, domain.WrapError(domain.ErrInvalidInput, "run", errors.New("question is required"))
	}
	return router.Route(ctx, query, history)
}

func (m *ConversationManager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.router != nil
}

// Close releases the loaded indexes.
func (m *ConversationManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, index := range m.indexes {
		if err := index.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.indexes = nil
	m.router = nil
	return errors.Join(errs...)
}
