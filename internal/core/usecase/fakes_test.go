package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/core/ports"
)

type wordTokenizerFake struct{}

func (wordTokenizerFake) Count(text string) int {
	return len(strings.Fields(text))
}

type scorerFake struct {
	scores map[string]float64
	calls  atomic.Int32
	err    error
}

func (f *scorerFake) Score(_ context.Context, _ string, passages []string) ([]float64, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]float64, len(passages))
	for i, passage := range passages {
		out[i] = f.scores[passage]
	}
	return out, nil
}

type retrieverFake struct {
	primary          []domain.Document
	alternative      []domain.Document
	primaryCalls     atomic.Int32
	alternativeCalls atomic.Int32
	block            bool
}

func (f *retrieverFake) Retrieve(ctx context.Context, _ string, useAlternative bool) ([]domain.Document, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if useAlternative {
		f.alternativeCalls.Add(1)
		return f.alternative, nil
	}
	f.primaryCalls.Add(1)
	return f.primary, nil
}

type generatorFake struct {
	mu      sync.Mutex
	docs    []domain.Document
	history string
	err     error
}

func (f *generatorFake) GenerateAnswer(_ context.Context, question string, docs []domain.Document, history string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append([]domain.Document(nil), docs...)
	f.history = history
	if f.err != nil {
		return "", f.err
	}
	return "answer to " + question, nil
}

// embedderFake maps a text to a one-dimensional vector so that cosine
// similarity is 1 for every pair; search order is build order.
type embedderFake struct {
	mu      sync.Mutex
	batches [][]string
	queries []string
}

func (f *embedderFake) Embed(_ context.Context, passages []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]string(nil), passages...))
	out := make([][]float32, len(passages))
	for i := range passages {
		out[i] = []float32{1}
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, text)
	return []float32{1}, nil
}

type indexFake struct {
	docs   []domain.Document
	closed atomic.Bool
}

func (f *indexFake) Search(_ context.Context, _ []float32, k int) ([]domain.Document, error) {
	if k > len(f.docs) {
		k = len(f.docs)
	}
	return append([]domain.Document(nil), f.docs[:k]...), nil
}

func (f *indexFake) Close() error {
	f.closed.Store(true)
	return nil
}

type indexStoreFake struct {
	mu      sync.Mutex
	indexes map[string][]domain.Document
	writes  atomic.Int32
	delay   time.Duration
}

func newIndexStoreFake() *indexStoreFake {
	return &indexStoreFake{indexes: make(map[string][]domain.Document)}
}

func (f *indexStoreFake) Exists(_ context.Context, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.indexes[path]
	return ok, nil
}

func (f *indexStoreFake) Write(_ context.Context, path string, docs []domain.Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("got %d vectors for %d docs", len(vectors), len(docs))
	}
	f.writes.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexes[path] = append([]domain.Document(nil), docs...)
	return nil
}

func (f *indexStoreFake) Open(_ context.Context, path string) (ports.Index, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	docs, ok := f.indexes[path]
	if !ok {
		return nil, domain.ErrIndexNotBuilt
	}
	return &indexFake{docs: docs}, nil
}

type storageFake struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newStorageFake(objects map[string]string) *storageFake {
	f := &storageFake{objects: make(map[string][]byte)}
	for key, value := range objects {
		f.objects[key] = []byte(value)
	}
	return f
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("open %s: not found", key)
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *storageFake) List(_ context.Context, dir string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0)
	for key := range f.objects {
		if strings.HasPrefix(key, dir+"/") && !strings.Contains(strings.TrimPrefix(key, dir+"/"), "/") {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

type catalogFake struct {
	pages []domain.WebPage
	err   error
}

func (f *catalogFake) Pages(context.Context, string) ([]domain.WebPage, error) {
	return f.pages, f.err
}

// fetcherFake serves bodies by URL. Earlier pages answer later so completion
// order differs from list order.
type fetcherFake struct {
	bodies map[string]string
	delays map[string]time.Duration
}

func (f *fetcherFake) Fetch(ctx context.Context, pageURL string) (string, error) {
	if d := f.delays[pageURL]; d > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(d):
		}
	}
	body, ok := f.bodies[pageURL]
	if !ok {
		return "", errors.New("status 404")
	}
	return body, nil
}

// webExtractorFake treats the first line of the body as the title.
type webExtractorFake struct{}

func (webExtractorFake) Extract(rawHTML, _ string) (domain.Section, error) {
	title, text, _ := strings.Cut(rawHTML, "\n")
	return domain.Section{Title: title, Text: text}, nil
}

type pdfExtractorFake struct {
	sections map[string][]domain.Section
}

func (f *pdfExtractorFake) Sections(_ context.Context, data []byte) ([]domain.Section, error) {
	sections, ok := f.sections[string(data)]
	if !ok {
		return nil, errors.New("malformed pdf")
	}
	return sections, nil
}

// qaReaderFake parses "question=answer" lines.
type qaReaderFake struct{}

func (qaReaderFake) Records(_ context.Context, _ string, data []byte) ([]domain.QARecord, error) {
	out := make([]domain.QARecord, 0)
	for _, line := range strings.Split(string(data), "\n") {
		q, a, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out = append(out, domain.QARecord{Question: q, Answer: a})
	}
	return out, nil
}

type ingestObserverFake struct {
	mu    sync.Mutex
	units map[domain.UnitKind][2]int
	docs  int
}

func (f *ingestObserverFake) ObserveUnit(kind domain.UnitKind, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.units == nil {
		f.units = make(map[domain.UnitKind][2]int)
	}
	counts := f.units[kind]
	if ok {
		counts[0]++
	} else {
		counts[1]++
	}
	f.units[kind] = counts
}

func (f *ingestObserverFake) ObserveDocuments(_ string, count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs += count
}

type reportStoreFake struct {
	mu      sync.Mutex
	reports []domain.IngestionReport
}

func (f *reportStoreFake) SaveReport(_ context.Context, report domain.IngestionReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, report)
	return nil
}

type publisherFake struct {
	events atomic.Int32
	err    error
}

func (f *publisherFake) PublishCorpusBuilt(context.Context, domain.IngestionReport) error {
	f.events.Add(1)
	return f.err
}

type routeObserverFake struct {
	mu       sync.Mutex
	branches []domain.Branch
}

func (f *routeObserverFake) ObserveRoute(branch domain.Branch, _ float64, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.branches = append(f.branches, branch)
}
