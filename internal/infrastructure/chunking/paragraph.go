package chunking

import (
	"strings"

	"github.com/kirillkom/campus-assistant/internal/core/ports"
)

const DefaultMaxTokens = 500

// ParagraphChunker packs whole paragraphs into passages of at most
// MaxTokens minus the title's token count. A single paragraph is never split,
// so one that exceeds the budget on its own becomes an over-budget chunk.
type ParagraphChunker struct {
	MaxTokens int
	tokenizer ports.Tokenizer
}

func NewParagraphChunker(tokenizer ports.Tokenizer, maxTokens int) *ParagraphChunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &ParagraphChunker{
		MaxTokens: maxTokens,
		tokenizer: tokenizer,
	}
}

func (c *ParagraphChunker) Split(text, title string) []string {
	budget := c.MaxTokens - c.tokenizer.Count(title)
	trimmedTitle := strings.TrimSpace(title)

	out := make([]string, 0, 4)
	var body strings.Builder
	bodyTokens := 0

	for _, paragraph := range strings.Split(text, "\n\n") {
		n := c.tokenizer.Count(paragraph)
		if bodyTokens+n <= budget {
			body.WriteString(paragraph)
			body.WriteString("\n")
			bodyTokens += n
			continue
		}
		if strings.TrimSpace(body.String()) != "" {
			out = append(out, withTitle(title, body.String()))
		}
		body.Reset()
		body.WriteString(paragraph)
		body.WriteString("\n")
		bodyTokens = n
	}

	if last := withTitle(title, body.String()); last != "" && last != trimmedTitle {
		out = append(out, last)
	}
	return out
}

func withTitle(title, body string) string {
	chunk := strings.TrimSpace(title + "\n" + body)
	return strings.ReplaceAll(chunk, "\r\n\r\n", "")
}
