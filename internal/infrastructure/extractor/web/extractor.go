package web

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

type Extractor struct {
	policy Policy
}

func NewExtractor(policy Policy) *Extractor {
	return &Extractor{policy: policy}
}

// Extract turns a fetched page into one section. The title comes from the
// breadcrumb list in the page header, or the header heading as a fallback.
func (e *Extractor) Extract(rawHTML, pageURL string) (domain.Section, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return domain.Section{}, domain.WrapError(domain.ErrInvalidInput, "parse page url", err)
	}
	for _, noise := range e.policy.NoiseStrings {
		if noise != "" {
			rawHTML = strings.ReplaceAll(rawHTML, noise, "")
		}
	}
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return domain.Section{}, fmt.Errorf("parse html: %w", err)
	}

	removeAll(root, "script", "style", "img")

	header := findFirst(root, "header")
	title := headerTitle(header)
	if header != nil {
		detach(header)
	}
	removeAll(root, "nav", "article")

	blocks := make([]string, 0, 32)
	walkElements(root, func(n *html.Node) {
		if block, ok := e.renderBlock(n, base, title); ok {
			blocks = append(blocks, block)
		}
	})

	return domain.Section{
		Title: title,
		Text:  strings.Join(blocks, "\n"),
	}, nil
}

func (e *Extractor) renderBlock(n *html.Node, base *url.URL, title string) (string, bool) {
	switch n.Data {
	case "p":
		return e.withLinks(n, base, textContent(n, " ", true))
	case "ul":
		items := findAll(n, "li")
		lines := make([]string, 0, len(items))
		for _, li := range items {
			lines = append(lines, "- "+textContent(li, "", true))
		}
		return e.withLinks(n, base, strings.Join(lines, "\n"))
	case "ol":
		items := findAll(n, "li")
		lines := make([]string, 0, len(items))
		for i, li := range items {
			lines = append(lines, strconv.Itoa(i+1)+". "+textContent(li, "", true))
		}
		return e.withLinks(n, base, strings.Join(lines, "\n"))
	case "h1", "h2", "h3":
		text, ok := e.withLinks(n, base, textContent(n, " ", true))
		if !ok {
			return "", false
		}
		return "\n" + text + ":", true
	case "h4", "h5", "h6":
		text, ok := e.withLinks(n, base, textContent(n, " ", true))
		if !ok {
			return "", false
		}
		return text + ":", true
	case "table":
		if !e.keepTable(n, title) {
			return "", false
		}
		rendered := renderTable(tableRows(n))
		return rendered, rendered != ""
	}
	return "", false
}

func (e *Extractor) withLinks(n *html.Node, base *url.URL, text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return e.rewriteLinks(n, base, text), true
}

// rewriteLinks replaces every anchor text inside n with a markdown link to
// the absolute target. Phone numbers and empty anchors stay plain text.
func (e *Extractor) rewriteLinks(n *html.Node, base *url.URL, text string) string {
	for _, a := range findAll(n, "a") {
		href := attr(a, "href")
		if href == "" {
			continue
		}
		anchor := textContent(a, "", false)
		if anchor == "" || e.isPhone(anchor) {
			continue
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			continue
		}
		target := base.ResolveReference(ref).String()
		text = strings.ReplaceAll(text, anchor, " ["+anchor+"]("+target+")")
	}
	return text
}

func (e *Extractor) isPhone(anchor string) bool {
	for _, marker := range e.policy.PhoneMarkers {
		if marker != "" && strings.Contains(anchor, marker) {
			return true
		}
	}
	return false
}

func (e *Extractor) keepTable(table *html.Node, title string) bool {
	if findFirst(table, "p") == nil {
		return true
	}
	for _, allowed := range e.policy.TableAllowTitles {
		if allowed != "" && strings.Contains(title, allowed) {
			return true
		}
	}
	return false
}

func headerTitle(header *html.Node) string {
	if header == nil {
		return ""
	}
	if ul := findFirst(header, "ul"); ul != nil {
		items := findAll(ul, "li")
		if len(items) > 2 {
			items = items[len(items)-2:]
		}
		parts := make([]string, 0, len(items))
		for _, li := range items {
			parts = append(parts, textContent(li, "", true))
		}
		return strings.Join(parts, " - ") + " "
	}
	if h1 := findFirst(header, "h1"); h1 != nil {
		return textContent(h1, "", false)
	}
	return ""
}

func tableRows(table *html.Node) [][]string {
	rows := make([][]string, 0, 8)
	for _, tr := range findAll(table, "tr") {
		cells := make([]string, 0, 4)
		walkElements(tr, func(n *html.Node) {
			if n != tr && (n.Data == "th" || n.Data == "td") {
				cells = append(cells, textContent(n, "", true))
			}
		})
		rows = append(rows, cells)
	}
	return rows
}
