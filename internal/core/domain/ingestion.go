package domain

import "time"

type UnitKind string

const (
	UnitWeb UnitKind = "web"
	UnitPDF UnitKind = "pdf"
	UnitQA  UnitKind = "qa"
)

// UnitFailure records one source unit that was skipped during ingestion.
type UnitFailure struct {
	Kind   UnitKind `json:"kind"`
	Source string   `json:"source"`
	Error  string   `json:"error"`
}

type IngestionReport struct {
	Corpus     string        `json:"corpus"`
	IndexPath  string        `json:"index_path"`
	Units      int           `json:"units"`
	Documents  int           `json:"documents"`
	Skipped    []UnitFailure `json:"skipped"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

func (r IngestionReport) Succeeded() int {
	return r.Units - len(r.Skipped)
}
