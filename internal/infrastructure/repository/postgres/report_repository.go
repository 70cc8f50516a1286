package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

// ErrReportNotFound is returned when a corpus has no stored ingestion report.
var ErrReportNotFound = errors.New("ingestion report not found")

// ReportRepository keeps the history of corpus builds and their skipped units.
type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ReportRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker/ragctl startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS ingestion_reports (
	id BIGSERIAL PRIMARY KEY,
	corpus TEXT NOT NULL,
	index_path TEXT NOT NULL,
	units INTEGER NOT NULL,
	documents INTEGER NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS ingestion_failures (
	report_id BIGINT NOT NULL REFERENCES ingestion_reports(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	kind TEXT NOT NULL,
	source TEXT NOT NULL,
	error_message TEXT NOT NULL,
	PRIMARY KEY (report_id, position)
);

CREATE INDEX IF NOT EXISTS idx_ingestion_reports_corpus ON ingestion_reports(corpus, finished_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ReportRepository) SaveReport(ctx context.Context, report domain.IngestionReport) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin report tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var id int64
	err = tx.QueryRowContext(ctx, `
INSERT INTO ingestion_reports (corpus, index_path, units, documents, started_at, finished_at)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id
`,
		report.Corpus, report.IndexPath, report.Units, report.Documents, report.StartedAt, report.FinishedAt,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}

	for i, failure := range report.Skipped {
		_, err := tx.ExecContext(ctx, `
INSERT INTO ingestion_failures (report_id, position, kind, source, error_message)
VALUES ($1,$2,$3,$4,$5)
`, id, i, string(failure.Kind), failure.Source, failure.Error)
		if err != nil {
			return fmt.Errorf("insert failure %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit report tx: %w", err)
	}
	return nil
}

// LatestReport returns the most recent report of a corpus with its failures.
func (r *ReportRepository) LatestReport(ctx context.Context, corpus string) (domain.IngestionReport, error) {
	var (
		id     int64
		report domain.IngestionReport
	)
	err := r.db.QueryRowContext(ctx, `
SELECT id, corpus, index_path, units, documents, started_at, finished_at
FROM ingestion_reports
WHERE corpus = $1
ORDER BY finished_at DESC, id DESC
LIMIT 1
`, corpus).Scan(&id, &report.Corpus, &report.IndexPath, &report.Units, &report.Documents, &report.StartedAt, &report.FinishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.IngestionReport{}, fmt.Errorf("%w: %s", ErrReportNotFound, corpus)
		}
		return domain.IngestionReport{}, fmt.Errorf("scan report: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT kind, source, error_message
FROM ingestion_failures
WHERE report_id = $1
ORDER BY position ASC
`, id)
	if err != nil {
		return domain.IngestionReport{}, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	report.Skipped = []domain.UnitFailure{}
	for rows.Next() {
		var (
			failure domain.UnitFailure
			kind    string
		)
		if err := rows.Scan(&kind, &failure.Source, &failure.Error); err != nil {
			return domain.IngestionReport{}, fmt.Errorf("scan failure: %w", err)
		}
		failure.Kind = domain.UnitKind(kind)
		report.Skipped = append(report.Skipped, failure)
	}
	if err := rows.Err(); err != nil {
		return domain.IngestionReport{}, fmt.Errorf("iterate failures: %w", err)
	}
	return report, nil
}
