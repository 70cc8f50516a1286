package pdf

import (
	"fmt"
	"strings"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

// PageDocument is random access to the pages of a document with an outline.
// Pages are numbered from 1.
type PageDocument interface {
	TOC() []domain.TocEntry
	NumPages() int
	PageText(page int) (string, error)
}

// BuildSections derives one section per outline entry of level 1 or 2.
// Every section text starts with the most recent level 1 title. Entries that
// repeat a title accumulate into the first section with that title.
func BuildSections(doc PageDocument) ([]domain.Section, error) {
	toc := doc.TOC()
	order := make([]string, 0, len(toc))
	texts := make(map[string]*strings.Builder, len(toc))
	chapter := ""

	for i, entry := range toc {
		if entry.Level > 2 {
			continue
		}
		if _, ok := texts[entry.Title]; !ok {
			order = append(order, entry.Title)
			texts[entry.Title] = &strings.Builder{}
		}
		if entry.Level == 1 {
			chapter = entry.Title
		}

		end := doc.NumPages()
		if next, ok := nextChapter(toc, i); ok {
			end = next.StartPage
		}
		raw, err := pageRange(doc, entry.StartPage, end)
		if err != nil {
			return nil, fmt.Errorf("read section %q: %w", entry.Title, err)
		}

		text := filterSection(raw, toc, i)
		if strings.TrimSpace(text) == strings.TrimSpace(entry.Title) {
			continue
		}
		texts[entry.Title].WriteString(chapter + "\n" + text)
	}

	out := make([]domain.Section, 0, len(order))
	for _, title := range order {
		text := texts[title].String()
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, domain.Section{Title: title, Text: text})
	}
	return out, nil
}

// nextChapter returns the first entry after i whose level is not deeper than toc[i].
func nextChapter(toc []domain.TocEntry, i int) (domain.TocEntry, bool) {
	j := i + 1
	for j < len(toc) && toc[j].Level > toc[i].Level {
		j++
	}
	if j == len(toc) {
		return domain.TocEntry{}, false
	}
	return toc[j], true
}

// pageRange concatenates pages first..last, both inclusive, clamped to the document.
func pageRange(doc PageDocument, first, last int) (string, error) {
	first = max(first, 1)
	last = min(last, doc.NumPages())
	var b strings.Builder
	for page := first; page <= last; page++ {
		text, err := doc.PageText(page)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", page, err)
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

// filterSection narrows raw page text to the text of toc[i]. Boundary titles
// are searched after the entry's own title so a title repeated earlier on the
// first page does not cut the section short. Level 2 sections also drop the
// text in front of their own title.
func filterSection(text string, toc []domain.TocEntry, i int) string {
	entry := toc[i]
	own := strings.TrimSpace(entry.Title)

	bodyFrom := 0
	if own != "" {
		if start := strings.Index(text, own); start >= 0 {
			bodyFrom = start + len(own)
			if entry.Level == 2 {
				text = text[start:]
				bodyFrom = len(own)
			}
		}
	}

	if entry.Level != 2 {
		if i+1 < len(toc) {
			return cutAt(text, bodyFrom, toc[i+1].Title)
		}
		return text
	}

	for j := i + 1; j < len(toc) && toc[j].Level > 2; j++ {
		sub := strings.TrimSpace(toc[j].Title)
		if sub == "" {
			continue
		}
		if idx := strings.Index(text[bodyFrom:], sub); idx >= 0 {
			pos := bodyFrom + idx
			text = text[:pos] + "\n\n" + text[pos:]
		}
	}
	if next, ok := nextChapter(toc, i); ok {
		return cutAt(text, bodyFrom, next.Title)
	}
	return text
}

func cutAt(text string, from int, boundary string) string {
	boundary = strings.TrimSpace(boundary)
	if boundary == "" {
		return text
	}
	if idx := strings.Index(text[from:], boundary); idx >= 0 {
		return text[:from+idx]
	}
	return text
}
