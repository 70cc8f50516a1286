package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/core/ports"
)

const schema = `
CREATE TABLE meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE documents (
	id     INTEGER PRIMARY KEY,
	title  TEXT NOT NULL,
	text   TEXT NOT NULL,
	url    TEXT NOT NULL,
	vector BLOB NOT NULL
);
`

const formatVersion = "1"

// Store keeps an index as a single SQLite file. The file is written under a
// temporary name and renamed into place, so its existence means a complete build.
type Store struct{}

func New() *Store {
	return &Store{}
}

func (s *Store) Exists(_ context.Context, path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat index: %w", err)
	}
	return info.Mode().IsRegular(), nil
}

func (s *Store) Write(ctx context.Context, path string, docs []domain.Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return domain.WrapError(domain.ErrInvalidInput, "write index",
			fmt.Errorf("documents/vectors mismatch: %d/%d", len(docs), len(vectors)))
	}
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	for i, vector := range vectors {
		if len(vector) != dim {
			return domain.WrapError(domain.ErrInvalidInput, "write index",
				fmt.Errorf("vector %d has dimension %d, want %d", i, len(vector), dim))
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+uuid.NewString())
	defer os.Remove(tmp)

	if err := writeFile(ctx, tmp, docs, vectors, dim); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("publish index: %w", err)
	}
	return nil
}

func writeFile(ctx context.Context, path string, docs []domain.Document, vectors [][]float32, dim int) error {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(DELETE)&_pragma=synchronous(FULL)")
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin index tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create index schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('format', ?), ('dimension', ?), ('count', ?)`,
		formatVersion, fmt.Sprint(dim), fmt.Sprint(len(docs)),
	); err != nil {
		return fmt.Errorf("write index meta: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO documents (id, title, text, url, vector) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare document insert: %w", err)
	}
	defer stmt.Close()

	for i, doc := range docs {
		if _, err := stmt.ExecContext(ctx, i, doc.Title, doc.Text, doc.URL, encodeVector(vectors[i])); err != nil {
			return fmt.Errorf("insert document %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index: %w", err)
	}
	return nil
}

func (s *Store) Open(ctx context.Context, path string) (ports.Index, error) {
	exists, err := s.Exists(ctx, path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.WrapError(domain.ErrIndexNotBuilt, "open index", fmt.Errorf("no index at %s", path))
	}

	db, err := sql.Open("sqlite", path+"?_pragma=query_only(1)")
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer db.Close()

	var version string
	if err := db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'format'`).Scan(&version); err != nil {
		return nil, domain.WrapError(domain.ErrIndexNotBuilt, "read index meta", err)
	}
	if version != formatVersion {
		return nil, domain.WrapError(domain.ErrIndexNotBuilt, "read index meta", fmt.Errorf("unsupported index format %q", version))
	}

	rows, err := db.QueryContext(ctx, `SELECT title, text, url, vector FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query index documents: %w", err)
	}
	defer rows.Close()

	index := &Index{}
	for rows.Next() {
		var (
			e    entry
			blob []byte
		)
		if err := rows.Scan(&e.doc.Title, &e.doc.Text, &e.doc.URL, &blob); err != nil {
			return nil, fmt.Errorf("scan index document: %w", err)
		}
		e.vector = decodeVector(blob)
		e.norm = norm(e.vector)
		index.entries = append(index.entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate index documents: %w", err)
	}
	return index, nil
}

func encodeVector(vector []float32) []byte {
	blob := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

func decodeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}
