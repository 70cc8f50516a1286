package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	lpdf "github.com/ledongthuc/pdf"
	"golang.org/x/text/unicode/norm"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

// contentsPageMinTitles is the least number of outline titles on one page for
// that page to be treated as a printed table of contents.
const contentsPageMinTitles = 5

// Document adapts a parsed PDF to PageDocument. Page text is extracted once
// and cached. Outline entries in the file carry no usable page numbers for
// this reader, so start pages are resolved by locating each title in the
// page text, scanning forward from the previous entry's page.
type Document struct {
	reader *lpdf.Reader
	pages  []string
	loaded []bool
	toc    []domain.TocEntry
}

func Open(data []byte) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = domain.WrapError(domain.ErrInvalidInput, "open pdf", fmt.Errorf("malformed pdf: %v", r))
		}
	}()

	reader, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open pdf", err)
	}
	n := reader.NumPage()
	doc = &Document{
		reader: reader,
		pages:  make([]string, n+1),
		loaded: make([]bool, n+1),
	}
	doc.toc = doc.resolveOutline(reader.Outline())
	return doc, nil
}

func (d *Document) TOC() []domain.TocEntry {
	return d.toc
}

func (d *Document) NumPages() int {
	return len(d.pages) - 1
}

func (d *Document) PageText(page int) (string, error) {
	if page < 1 || page > d.NumPages() {
		return "", fmt.Errorf("page %d out of range 1..%d", page, d.NumPages())
	}
	if d.loaded[page] {
		return d.pages[page], nil
	}
	p := d.reader.Page(page)
	if p.V.IsNull() {
		return "", fmt.Errorf("page %d not found", page)
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("extract page %d text: %w", page, err)
	}
	text = norm.NFC.String(text)
	d.pages[page] = text
	d.loaded[page] = true
	return text, nil
}

func (d *Document) resolveOutline(root lpdf.Outline) []domain.TocEntry {
	entries := flattenOutline(root.Child, 1, nil)
	if len(entries) == 0 {
		return nil
	}

	contents := d.contentsPages(entries)
	page := 1
	for i := range entries {
		title := strings.TrimSpace(entries[i].Title)
		for candidate := page; candidate <= d.NumPages() && title != ""; candidate++ {
			if contents[candidate] {
				continue
			}
			text, err := d.PageText(candidate)
			if err != nil {
				continue
			}
			if strings.Contains(text, title) {
				page = candidate
				break
			}
		}
		entries[i].StartPage = page
	}
	return entries
}

func (d *Document) contentsPages(entries []domain.TocEntry) map[int]bool {
	threshold := max(contentsPageMinTitles, len(entries)/4)
	out := make(map[int]bool)
	for page := 1; page <= d.NumPages(); page++ {
		text, err := d.PageText(page)
		if err != nil {
			continue
		}
		hits := 0
		for _, entry := range entries {
			title := strings.TrimSpace(entry.Title)
			if title != "" && strings.Contains(text, title) {
				hits++
			}
		}
		if hits >= threshold {
			out[page] = true
		}
	}
	return out
}

func flattenOutline(items []lpdf.Outline, level int, out []domain.TocEntry) []domain.TocEntry {
	for _, item := range items {
		out = append(out, domain.TocEntry{Level: level, Title: norm.NFC.String(item.Title)})
		out = flattenOutline(item.Child, level+1, out)
	}
	return out
}

// Extractor reads a PDF and builds its sections.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Sections(ctx context.Context, data []byte) (sections []domain.Section, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := Open(data)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			sections = nil
			err = domain.WrapError(domain.ErrInvalidInput, "build pdf sections", fmt.Errorf("malformed pdf: %v", r))
		}
	}()
	return BuildSections(doc)
}
