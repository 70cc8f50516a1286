package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()

	if cmd.Use != "ragctl" {
		t.Errorf("Use = %q, want %q", cmd.Use, "ragctl")
	}
	if cmd.Short == "" || cmd.Long == "" {
		t.Error("root command needs short and long descriptions")
	}

	want := map[string]bool{"build": false, "ask": false, "report": false, "mcp": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestRootCmd_GlobalFlags(t *testing.T) {
	cmd := NewRootCmd()

	for _, name := range []string{"log-level", "json"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("--%s flag not found", name)
		}
	}
}

func TestAskCmd_RemoteFlag(t *testing.T) {
	cmd := NewAskCmd()

	flag := cmd.Flags().Lookup("remote")
	if flag == nil {
		t.Fatalf("--remote flag not found")
	}
	if flag.DefValue != "false" {
		t.Errorf("--remote default = %q, want false", flag.DefValue)
	}
	if err := cmd.Args(cmd, nil); err == nil {
		t.Error("ask without a question should be rejected")
	}
}

func TestMCPCmd_Description(t *testing.T) {
	cmd := NewMCPCmd()

	if !strings.Contains(cmd.Long, "stdio") {
		t.Error("Long description should mention stdio")
	}
	if !strings.Contains(cmd.Example, "claude_desktop_config") {
		t.Error("Example should mention the desktop config")
	}
	if cmd.RunE == nil {
		t.Error("RunE should be set")
	}
}

func TestCorporaFor(t *testing.T) {
	primary := domain.CorpusSpec{Source: domain.CorpusSource{Name: "faq"}}
	alternative := domain.CorpusSpec{Source: domain.CorpusSource{Name: "website"}}

	tests := []struct {
		target string
		want   []string
	}{
		{"all", []string{"faq", "website"}},
		{"primary", []string{"faq"}},
		{"website", []string{"website"}},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			specs, err := corporaFor(tt.target, primary, alternative)
			if err != nil {
				t.Fatalf("corporaFor() error = %v", err)
			}
			var got []string
			for _, spec := range specs {
				got = append(got, spec.Source.Name)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Fatalf("corporaFor(%q) = %v, want %v", tt.target, got, tt.want)
			}
		})
	}

	if _, err := corporaFor("archive", primary, alternative); err == nil {
		t.Fatalf("expected error for unknown corpus")
	}
}

func TestWriteAnswerText(t *testing.T) {
	var buf bytes.Buffer
	err := writeAnswer(&buf, domain.AskResponse{
		Answer:       "The library opens at 8.\n",
		RerankedDocs: []domain.Document{{Title: "Library", URL: "https://tha.de/library"}, {Title: "FAQ"}},
		Scores:       []float64{6, 2.5},
		Label:        "Similarity score: 6.0",
		Branch:       domain.BranchPrimary,
	}, false)
	if err != nil {
		t.Fatalf("writeAnswer() error = %v", err)
	}

	want := "The library opens at 8.\n\n" +
		"[primary] Similarity score: 6.0\n" +
		"  1. Library (https://tha.de/library) 6.0\n" +
		"  2. FAQ 2.5\n"
	if buf.String() != want {
		t.Fatalf("writeAnswer() =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestWriteReportJSON(t *testing.T) {
	started := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	report := domain.IngestionReport{
		Corpus:     "alternative",
		Units:      2,
		Documents:  7,
		Skipped:    []domain.UnitFailure{{Kind: domain.UnitWeb, Source: "https://tha.de/gone", Error: "status 404"}},
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
	}

	var buf bytes.Buffer
	if err := writeReport(&buf, report, true); err != nil {
		t.Fatalf("writeReport() error = %v", err)
	}
	var got domain.IngestionReport
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if got.Documents != 7 || len(got.Skipped) != 1 {
		t.Fatalf("unexpected report: %+v", got)
	}

	buf.Reset()
	if err := writeReport(&buf, report, false); err != nil {
		t.Fatalf("writeReport() error = %v", err)
	}
	if !strings.Contains(buf.String(), "7 documents from 1/2 units") {
		t.Fatalf("unexpected text report: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "skipped web https://tha.de/gone: status 404") {
		t.Fatalf("expected skipped unit line, got %q", buf.String())
	}
}

type builderFake struct {
	built []string
	fail  string
}

func (f *builderFake) Build(_ context.Context, spec domain.CorpusSpec) (domain.IngestionReport, error) {
	f.built = append(f.built, spec.Source.Name)
	if spec.Source.Name == f.fail {
		return domain.IngestionReport{}, errors.New("no documents")
	}
	return domain.IngestionReport{Corpus: spec.Source.Name, Units: 1, Documents: 3}, nil
}

func TestBuildCorporaStopsAtFirstFailure(t *testing.T) {
	builder := &builderFake{fail: "faq"}
	specs := []domain.CorpusSpec{
		{Source: domain.CorpusSource{Name: "faq"}},
		{Source: domain.CorpusSource{Name: "website"}},
	}

	var buf bytes.Buffer
	err := buildCorpora(context.Background(), builder, specs, &buf)
	if err == nil || !strings.Contains(err.Error(), "build faq") {
		t.Fatalf("expected build faq error, got %v", err)
	}
	if strings.Join(builder.built, ",") != "faq" {
		t.Fatalf("expected build to stop after faq, built %v", builder.built)
	}
}

func TestBuildCorporaReportsEachCorpus(t *testing.T) {
	builder := &builderFake{}
	specs := []domain.CorpusSpec{
		{Source: domain.CorpusSource{Name: "faq"}},
		{Source: domain.CorpusSource{Name: "website"}},
	}

	var buf bytes.Buffer
	if err := buildCorpora(context.Background(), builder, specs, &buf); err != nil {
		t.Fatalf("buildCorpora() error = %v", err)
	}
	if !strings.Contains(buf.String(), "corpus faq:") || !strings.Contains(buf.String(), "corpus website:") {
		t.Fatalf("expected one report line per corpus, got %q", buf.String())
	}
}
