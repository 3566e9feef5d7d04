// Package history persists completed analyses in SQLite.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/zeto-space/exoclassify/internal/schema"
	"github.com/zeto-space/exoclassify/internal/verdict"
)

// ErrNotFound is returned by Get for unknown IDs.
var ErrNotFound = errors.New("analysis not found")

// Kind tells single and batch analyses apart.
type Kind string

const (
	KindSingle Kind = "single"
	KindBatch  Kind = "batch"
)

// Analysis is one stored classification run.
type Analysis struct {
	ID         string            `json:"id" yaml:"id"`
	Kind       Kind              `json:"kind" yaml:"kind"`
	CreatedAt  time.Time         `json:"created_at" yaml:"created_at"`
	Records    int               `json:"records" yaml:"records"`
	Summary    verdict.Summary   `json:"summary" yaml:"summary"`
	Verdicts   []verdict.Verdict `json:"verdicts,omitempty" yaml:"verdicts,omitempty"`
	Parameters []schema.Record   `json:"parameters,omitempty" yaml:"-"`
}

const createTable = `
CREATE TABLE IF NOT EXISTS analyses (
	id              TEXT PRIMARY KEY,
	kind            TEXT NOT NULL,
	created_at      TEXT NOT NULL,
	records         INTEGER NOT NULL,
	confirmed       INTEGER NOT NULL,
	candidate       INTEGER NOT NULL,
	false_positives INTEGER NOT NULL,
	verdicts        TEXT NOT NULL,
	parameters      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
`

// Fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var columns = []string{"id", "kind", "created_at", "records", "confirmed", "candidate", "false_positives", "verdicts", "parameters"}

// Store is a SQLite-backed analysis log.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path. ":memory:" keeps it in memory.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(createTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores a, assigning an ID and timestamp when they are unset.
func (s *Store) Save(ctx context.Context, a *Analysis) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	if a.Records == 0 {
		a.Records = len(a.Verdicts)
	}

	verdicts, err := json.Marshal(nonNil(a.Verdicts))
	if err != nil {
		return fmt.Errorf("encode verdicts: %w", err)
	}
	params, err := json.Marshal(nonNil(a.Parameters))
	if err != nil {
		return fmt.Errorf("encode parameters: %w", err)
	}

	query, args, err := sq.Insert("analyses").
		Columns(columns...).
		Values(
			a.ID, string(a.Kind), a.CreatedAt.UTC().Format(timeLayout), a.Records,
			a.Summary.Confirmed, a.Summary.Candidate, a.Summary.FalsePositives,
			string(verdicts), string(params),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// List returns up to limit analyses, newest first. limit <= 0 means 20.
func (s *Store) List(ctx context.Context, limit int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 20
	}
	query, args, err := sq.Select(columns...).
		From("analyses").
		OrderBy("created_at DESC", "id").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}
	return out, nil
}

// Get returns one analysis by ID.
func (s *Store) Get(ctx context.Context, id string) (Analysis, error) {
	query, args, err := sq.Select(columns...).
		From("analyses").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return Analysis{}, fmt.Errorf("build select: %w", err)
	}

	a, err := scan(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Analysis{}, ErrNotFound
	}
	return a, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (Analysis, error) {
	var (
		a         Analysis
		kind      string
		createdAt string
		verdicts  string
		params    string
	)
	err := row.Scan(&a.ID, &kind, &createdAt, &a.Records,
		&a.Summary.Confirmed, &a.Summary.Candidate, &a.Summary.FalsePositives,
		&verdicts, &params)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, err
		}
		return Analysis{}, fmt.Errorf("scan analysis: %w", err)
	}

	a.Kind = Kind(kind)
	a.Summary.Total = a.Records
	if a.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return Analysis{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	if err := json.Unmarshal([]byte(verdicts), &a.Verdicts); err != nil {
		return Analysis{}, fmt.Errorf("decode verdicts: %w", err)
	}
	if err := json.Unmarshal([]byte(params), &a.Parameters); err != nil {
		return Analysis{}, fmt.Errorf("decode parameters: %w", err)
	}
	return a, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
