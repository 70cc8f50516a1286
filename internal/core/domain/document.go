package domain

import "strings"

// Document is one indexed passage. Title and URL are provenance; URL is empty
// for passages that did not come from a web page.
type Document struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	URL   string `json:"url"`
}

// Passage is what gets embedded, scored and put into a prompt: the title
// followed by the text. Chunks that already open with their title and
// emptied documents are returned as is.
func (d Document) Passage() string {
	title := strings.TrimSpace(d.Title)
	if d.Text == "" || title == "" || strings.HasPrefix(d.Text, title) {
		return d.Text
	}
	if strings.HasSuffix(d.Title, " ") || strings.HasSuffix(d.Title, "\n") {
		return d.Title + d.Text
	}
	return d.Title + " " + d.Text
}

// Section is a titled block of text produced by a section extractor, before chunking.
type Section struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// TocEntry is one line of a document outline. Only levels 1 and 2 become sections;
// deeper levels only mark boundaries inside their parent.
type TocEntry struct {
	Level     int    `json:"level"`
	Title     string `json:"title"`
	StartPage int    `json:"start_page"`
}

// ScoredDocument pairs a document with its cross-encoder relevance score.
type ScoredDocument struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// WebPage is one record of a web source list.
type WebPage struct {
	URL   string `json:"url" yaml:"url"`
	Title string `json:"title" yaml:"title"`
}

// QARecord is one question/answer pair of a Q/A corpus.
type QARecord struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// CorpusSource names the raw inputs of one corpus. Empty paths are skipped.
type CorpusSource struct {
	Name        string `json:"name"`
	WebListPath string `json:"web_list_path,omitempty"`
	PDFDir      string `json:"pdf_dir,omitempty"`
	QADir       string `json:"qa_dir,omitempty"`
	IncludePDFs bool   `json:"include_pdfs"`
}

// CorpusSpec binds a corpus source to the path its index is persisted at.
type CorpusSpec struct {
	Source    CorpusSource `json:"source"`
	IndexPath string       `json:"index_path"`
}
