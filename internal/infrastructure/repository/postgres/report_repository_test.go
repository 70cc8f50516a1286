package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*ReportRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &ReportRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(int64(2026101901)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS ingestion_reports").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveReportStoresFailuresInOrder(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	started := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	report := domain.IngestionReport{
		Corpus:    "alternative",
		IndexPath: "indexes/alternative.db",
		Units:     3,
		Documents: 40,
		Skipped: []domain.UnitFailure{
			{Kind: domain.UnitWeb, Source: "https://example.edu/a", Error: "status 404"},
			{Kind: domain.UnitPDF, Source: "pdf/broken.pdf", Error: "malformed pdf"},
		},
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
	}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO ingestion_reports").
		WithArgs("alternative", "indexes/alternative.db", 3, 40, started, started.Add(time.Minute)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec("INSERT INTO ingestion_failures").
		WithArgs(int64(7), 0, "web", "https://example.edu/a", "status 404").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO ingestion_failures").
		WithArgs(int64(7), 1, "pdf", "pdf/broken.pdf", "malformed pdf").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.SaveReport(context.Background(), report); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveReportRollsBackOnFailureInsertError(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO ingestion_reports").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectExec("INSERT INTO ingestion_failures").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.SaveReport(context.Background(), domain.IngestionReport{
		Corpus:  "primary",
		Skipped: []domain.UnitFailure{{Kind: domain.UnitQA, Source: "qa/a.txt", Error: "bad"}},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLatestReportReturnsNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, corpus, index_path").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.LatestReport(context.Background(), "missing")
	if !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}
}

func TestLatestReportLoadsFailures(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	finished := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, corpus, index_path").
		WithArgs("primary").
		WillReturnRows(sqlmock.NewRows([]string{"id", "corpus", "index_path", "units", "documents", "started_at", "finished_at"}).
			AddRow(int64(3), "primary", "indexes/primary.db", 2, 12, finished.Add(-time.Minute), finished))
	mock.ExpectQuery("SELECT kind, source, error_message").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"kind", "source", "error_message"}).
			AddRow("qa", "qa/broken.bin", "not utf-8"))

	report, err := repo.LatestReport(context.Background(), "primary")
	if err != nil {
		t.Fatalf("LatestReport() error = %v", err)
	}
	want := []domain.UnitFailure{{Kind: domain.UnitQA, Source: "qa/broken.bin", Error: "not utf-8"}}
	if diff := cmp.Diff(want, report.Skipped); diff != "" {
		t.Fatalf("failures mismatch (-want +got):\n%s", diff)
	}
	if report.Documents != 12 || report.Succeeded() != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
}
