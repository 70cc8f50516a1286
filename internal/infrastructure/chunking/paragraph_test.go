package chunking

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type wordTokenizerFake struct{}

func (wordTokenizerFake) Count(text string) int {
	return len(strings.Fields(text))
}

func words(n int, word string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = word
	}
	return strings.Join(parts, " ")
}

func TestParagraphChunkerPacksWithinBudget(t *testing.T) {
	chunker := NewParagraphChunker(wordTokenizerFake{}, 10)
	text := strings.Join([]string{words(4, "a"), words(4, "b"), words(4, "c"), words(2, "d")}, "\n\n")

	chunks := chunker.Split(text, "Fees")
	want := []string{
		"Fees\n" + words(4, "a") + "\n" + words(4, "b"),
		"Fees\n" + words(4, "c") + "\n" + words(2, "d"),
	}
	if diff := cmp.Diff(want, chunks); diff != "" {
		t.Fatalf("Split() mismatch (-want +got):\n%s", diff)
	}

	tokenizer := wordTokenizerFake{}
	titleTokens := tokenizer.Count("Fees")
	for _, chunk := range chunks {
		if got := tokenizer.Count(chunk) - titleTokens; got > 10 {
			t.Fatalf("chunk over budget: %d tokens in %q", got, chunk)
		}
	}
}

func TestParagraphChunkerAllowsOverlongParagraph(t *testing.T) {
	chunker := NewParagraphChunker(wordTokenizerFake{}, 500)
	paragraph := words(520, "study")

	chunks := chunker.Split(paragraph, "Admissions")
	if len(chunks) != 1 {
		t.Fatalf("expected one chunk, got %d", len(chunks))
	}
	if !strings.HasPrefix(chunks[0], "Admissions\n") {
		t.Fatalf("chunk must start with title, got %q", chunks[0][:20])
	}
	if !strings.Contains(chunks[0], paragraph) {
		t.Fatalf("chunk must contain the full paragraph")
	}
}

func TestParagraphChunkerOverlongParagraphBetweenShortOnes(t *testing.T) {
	chunker := NewParagraphChunker(wordTokenizerFake{}, 6)
	text := strings.Join([]string{words(2, "a"), words(12, "b"), words(2, "c")}, "\n\n")

	chunks := chunker.Split(text, "T")
	want := []string{
		"T\n" + words(2, "a"),
		"T\n" + words(12, "b"),
		"T\n" + words(2, "c"),
	}
	if diff := cmp.Diff(want, chunks); diff != "" {
		t.Fatalf("Split() mismatch (-want +got):\n%s", diff)
	}
}

func TestParagraphChunkerKeepsParagraphsWhole(t *testing.T) {
	paragraphs := []string{
		"Lectures start in October.",
		"Enrollment closes two weeks before the semester.",
		"The library is open on Saturdays.",
		"Exams are held in February and July.",
	}
	chunker := NewParagraphChunker(wordTokenizerFake{}, 12)

	chunks := chunker.Split(strings.Join(paragraphs, "\n\n"), "Calendar")
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}

	var rebuilt []string
	for _, chunk := range chunks {
		body := strings.TrimPrefix(chunk, "Calendar\n")
		for _, line := range strings.Split(body, "\n") {
			if line != "" {
				rebuilt = append(rebuilt, line)
			}
		}
	}
	if diff := cmp.Diff(paragraphs, rebuilt); diff != "" {
		t.Fatalf("paragraph sequence changed (-want +got):\n%s", diff)
	}
}

func TestParagraphChunkerDropsTitleOnlyChunk(t *testing.T) {
	chunker := NewParagraphChunker(wordTokenizerFake{}, 10)
	if chunks := chunker.Split("", "Contact"); len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %q", chunks)
	}
	if chunks := chunker.Split("\n\n\n\n", "Contact"); len(chunks) != 0 {
		t.Fatalf("expected no chunks for blank paragraphs, got %q", chunks)
	}
}

func TestParagraphChunkerRemovesCRLFParagraphBreaks(t *testing.T) {
	chunker := NewParagraphChunker(wordTokenizerFake{}, 50)
	chunks := chunker.Split("first\r\n\r\nsecond", "T")
	if len(chunks) != 1 {
		t.Fatalf("expected one chunk, got %d", len(chunks))
	}
	if strings.Contains(chunks[0], "\r\n\r\n") {
		t.Fatalf("chunk still contains CRLF break: %q", chunks[0])
	}
}
