package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func writeAnswer(w io.Writer, response domain.AskResponse, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(w, response)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(response.Answer))
	fmt.Fprintf(&b, "[%s] %s\n", response.Branch, response.Label)
	for i, doc := range response.RerankedDocs {
		score := ""
		if i < len(response.Scores) {
			score = domain.FormatScore(response.Scores[i])
		}
		if doc.URL != "" {
			fmt.Fprintf(&b, "  %d. %s (%s) %s\n", i+1, doc.Title, doc.URL, score)
		} else {
			fmt.Fprintf(&b, "  %d. %s %s\n", i+1, doc.Title, score)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeReport(w io.Writer, report domain.IngestionReport, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(w, report)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "corpus %s: %d documents from %d/%d units -> %s\n",
		report.Corpus, report.Documents, report.Succeeded(), report.Units, report.IndexPath)
	if !report.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "  built %s in %s\n",
			report.FinishedAt.Format("2006-01-02 15:04:05"), report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	}
	for _, failure := range report.Skipped {
		fmt.Fprintf(&b, "  skipped %s %s: %s\n", failure.Kind, failure.Source, failure.Error)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
