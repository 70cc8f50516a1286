package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/core/ports"
)

const defaultFetchConcurrency = 4

// IngestionPipeline turns one corpus source into chunked documents. It keeps
// no state between runs; every Run returns fresh values.
type IngestionPipeline struct {
	catalog          ports.WebCatalog
	fetcher          ports.PageFetcher
	web              ports.WebSectionExtractor
	pdf              ports.PDFSectionExtractor
	qa               ports.QARecordReader
	storage          ports.ObjectStorage
	chunker          ports.Chunker
	observer         ports.IngestObserver
	fetchConcurrency int
}

func NewIngestionPipeline(
	catalog ports.WebCatalog,
	fetcher ports.PageFetcher,
	web ports.WebSectionExtractor,
	pdf ports.PDFSectionExtractor,
	qa ports.QARecordReader,
	storage ports.ObjectStorage,
	chunker ports.Chunker,
	observer ports.IngestObserver,
	fetchConcurrency int,
) *IngestionPipeline {
	if fetchConcurrency <= 0 {
		fetchConcurrency = defaultFetchConcurrency
	}
	return &IngestionPipeline{
		catalog:          catalog,
		fetcher:          fetcher,
		web:              web,
		pdf:              pdf,
		qa:               qa,
		storage:          storage,
		chunker:          chunker,
		observer:         observer,
		fetchConcurrency: fetchConcurrency,
	}
}

// Run ingests web pages, then PDFs, then Q/A files. A failing unit is recorded
// in the report and skipped; the output order does not depend on scheduling.
func (p *IngestionPipeline) Run(ctx context.Context, source domain.CorpusSource) ([]domain.Document, domain.IngestionReport) {
	report := domain.IngestionReport{
		Corpus:    source.Name,
		Skipped:   []domain.UnitFailure{},
		StartedAt: time.Now().UTC(),
	}
	docs := make([]domain.Document, 0)

	if source.WebListPath != "" {
		docs = append(docs, p.ingestWeb(ctx, source.WebListPath, &report)...)
	}
	if source.IncludePDFs && source.PDFDir != "" {
		docs = append(docs, p.ingestPDFs(ctx, source.PDFDir, &report)...)
	}
	if source.QADir != "" {
		docs = append(docs, p.ingestQA(ctx, source.QADir, &report)...)
	}

	report.Documents = len(docs)
	report.FinishedAt = time.Now().UTC()
	if p.observer != nil {
		p.observer.ObserveDocuments(source.Name, len(docs))
	}
	slog.Info("ingest_completed",
		"corpus", source.Name,
		"units", report.Units,
		"skipped", len(report.Skipped),
		"documents", report.Documents,
	)
	return docs, report
}

func (p *IngestionPipeline) ingestWeb(ctx context.Context, listKey string, report *domain.IngestionReport) []domain.Document {
	pages, err := p.catalog.Pages(ctx, listKey)
	if err != nil {
		p.skip(report, domain.UnitWeb, listKey, fmt.Errorf("load web list: %w", err))
		return nil
	}

	results := make([][]domain.Document, len(pages))
	failures := make([]error, len(pages))

	// Workers never return an error so one bad page does not cancel its siblings.
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.fetchConcurrency)
	for i, page := range pages {
		group.Go(func() error {
			results[i], failures[i] = p.webUnit(groupCtx, page)
			return nil
		})
	}
	_ = group.Wait()

	docs := make([]domain.Document, 0, len(pages))
	for i, page := range pages {
		if failures[i] != nil {
			p.skip(report, domain.UnitWeb, page.URL, failures[i])
			continue
		}
		p.done(report, domain.UnitWeb)
		docs = append(docs, results[i]...)
	}
	return docs
}

func (p *IngestionPipeline) webUnit(ctx context.Context, page domain.WebPage) ([]domain.Document, error) {
	raw, err := p.fetcher.Fetch(ctx, page.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	section, err := p.web.Extract(raw, page.URL)
	if err != nil {
		return nil, fmt.Errorf("extract page: %w", err)
	}
	title := section.Title
	if strings.TrimSpace(title) == "" {
		title = page.Title
	}

	chunks := p.chunker.Split(section.Text, title)
	docs := make([]domain.Document, 0, len(chunks))
	for _, chunk := range chunks {
		docs = append(docs, domain.Document{Title: title, Text: chunk, URL: page.URL})
	}
	return docs, nil
}

func (p *IngestionPipeline) ingestPDFs(ctx context.Context, dir string, report *domain.IngestionReport) []domain.Document {
	keys, err := p.storage.List(ctx, dir)
	if err != nil {
		p.skip(report, domain.UnitPDF, dir, fmt.Errorf("list pdf dir: %w", err))
		return nil
	}

	docs := make([]domain.Document, 0)
	for _, key := range keys {
		if !strings.EqualFold(path.Ext(key), ".pdf") {
			continue
		}
		unitDocs, err := p.pdfUnit(ctx, key)
		if err != nil {
			p.skip(report, domain.UnitPDF, key, err)
			continue
		}
		p.done(report, domain.UnitPDF)
		docs = append(docs, unitDocs...)
	}
	return docs
}

func (p *IngestionPipeline) pdfUnit(ctx context.Context, key string) ([]domain.Document, error) {
	data, err := p.read(ctx, key)
	if err != nil {
		return nil, err
	}
	sections, err := p.pdf.Sections(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("extract sections: %w", err)
	}

	docTitle := strings.TrimSuffix(path.Base(key), path.Ext(key))
	docs := make([]domain.Document, 0, len(sections))
	for _, section := range sections {
		title := docTitle + " - " + section.Title
		for _, chunk := range p.chunker.Split(section.Text, docTitle) {
			docs = append(docs, domain.Document{Title: title, Text: chunk})
		}
	}
	return docs, nil
}

// ingestQA merges all Q/A files into one question-keyed set: a question keeps
// the position of its first occurrence and the answer of its last.
func (p *IngestionPipeline) ingestQA(ctx context.Context, dir string, report *domain.IngestionReport) []domain.Document {
	keys, err := p.storage.List(ctx, dir)
	if err != nil {
		p.skip(report, domain.UnitQA, dir, fmt.Errorf("list qa dir: %w", err))
		return nil
	}

	position := make(map[string]int)
	docs := make([]domain.Document, 0)
	for _, key := range keys {
		if strings.HasPrefix(path.Base(key), ".") {
			continue
		}
		records, err := p.qaUnit(ctx, key)
		if err != nil {
			p.skip(report, domain.UnitQA, key, err)
			continue
		}
		p.done(report, domain.UnitQA)

		for _, record := range records {
			doc := domain.Document{Title: record.Question, Text: record.Answer}
			if i, ok := position[record.Question]; ok {
				docs[i] = doc
				continue
			}
			position[record.Question] = len(docs)
			docs = append(docs, doc)
		}
	}
	return docs
}

func (p *IngestionPipeline) qaUnit(ctx context.Context, key string) ([]domain.QARecord, error) {
	data, err := p.read(ctx, key)
	if err != nil {
		return nil, err
	}
	records, err := p.qa.Records(ctx, path.Base(key), data)
	if err != nil {
		return nil, fmt.Errorf("parse qa records: %w", err)
	}
	return records, nil
}

func (p *IngestionPipeline) read(ctx context.Context, key string) ([]byte, error) {
	rc, err := p.storage.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	return data, nil
}

func (p *IngestionPipeline) done(report *domain.IngestionReport, kind domain.UnitKind) {
	report.Units++
	if p.observer != nil {
		p.observer.ObserveUnit(kind, true)
	}
}

func (p *IngestionPipeline) skip(report *domain.IngestionReport, kind domain.UnitKind, source string, err error) {
	report.Units++
	report.Skipped = append(report.Skipped, domain.UnitFailure{Kind: kind, Source: source, Error: err.Error()})
	if p.observer != nil {
		p.observer.ObserveUnit(kind, false)
	}
	slog.Warn("ingest_unit_skipped", "kind", string(kind), "source", source, "error", err)
}
