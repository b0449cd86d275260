// Package index keeps a SQLite table of finished discussion and annotation
// runs so output directories can be queried without reading every record.
package index

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	derrors "github.com/dimits-ts/syndisco/pkg/errors"
	"github.com/dimits-ts/syndisco/pkg/job"
)

// ErrNotFound is returned by Get when no run has the requested id.
var ErrNotFound = errors.New("run not found")

const schemaVersion = 1

var schema = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		kind        TEXT NOT NULL,
		source      TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL,
		reason      TEXT NOT NULL DEFAULT '',
		messages    INTEGER NOT NULL DEFAULT 0,
		failures    INTEGER NOT NULL DEFAULT 0,
		path        TEXT NOT NULL DEFAULT '',
		started_at  TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS runs_kind_finished ON runs (kind, finished_at)`,
	`CREATE INDEX IF NOT EXISTS runs_source ON runs (source)`,
}

// Run is one indexed job.
type Run struct {
	ID         string        `json:"id"`
	Kind       job.Kind      `json:"kind"`
	Source     string        `json:"source,omitempty"`
	Status     job.State     `json:"status"`
	Reason     string        `json:"reason"`
	Messages   int           `json:"messages"`
	Failures   int           `json:"failures"`
	Path       string        `json:"path"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
}

// FromSummary converts a job summary into a run finishing at finished.
func FromSummary(s job.Summary, finished time.Time) Run {
	return Run{
		ID:         s.ID,
		Kind:       s.Kind,
		Source:     s.Source,
		Status:     s.Status,
		Reason:     s.Reason,
		Messages:   s.Messages,
		Failures:   s.Failures,
		Path:       s.Path,
		StartedAt:  finished.Add(-s.Duration),
		FinishedAt: finished,
		Duration:   s.Duration,
	}
}

// Index is a run index backed by a SQLite file.
type Index struct {
	db   *sql.DB
	path string
}

// Open opens or creates the index at path and installs the schema.
func Open(ctx context.Context, path string) (*Index, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, indexErr(err, "failed to create index directory", path)
		}
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, indexErr(err, "failed to open index", path)
	}
	if path == ":memory:" {
		// Each connection to :memory: is its own database.
		db.SetMaxOpenConns(1)
	}

	idx := &Index{db: db, path: path}
	if err := idx.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (i *Index) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := i.db.ExecContext(ctx, stmt); err != nil {
			return indexErr(err, "failed to install index schema", i.path)
		}
	}
	var current int
	err := i.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current)
	if err != nil {
		return indexErr(err, "failed to read schema version", i.path)
	}
	if current < schemaVersion {
		if _, err := i.db.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, schemaVersion); err != nil {
			return indexErr(err, "failed to write schema version", i.path)
		}
	}
	return nil
}

// Path returns the database file.
func (i *Index) Path() string { return i.path }

// Close closes the database.
func (i *Index) Close() error { return i.db.Close() }

// Record inserts run, replacing any run with the same id.
func (i *Index) Record(ctx context.Context, run Run) error {
	_, err := i.db.ExecContext(ctx, `INSERT OR REPLACE INTO runs
		(id, kind, source, status, reason, messages, failures, path, started_at, finished_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Kind), run.Source, string(run.Status), run.Reason,
		run.Messages, run.Failures, run.Path,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		run.Duration.Milliseconds())
	if err != nil {
		return indexErr(err, "failed to record run", i.path).WithContext("run_id", run.ID)
	}
	return nil
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Kind   job.Kind
	Status job.State
	Source string
	Limit  int
}

// List returns runs matching f, most recently finished first.
func (i *Index) List(ctx context.Context, f Filter) ([]Run, error) {
	var (
		where []string
		args  []any
	)
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Source != "" {
		where = append(where, "source = ?")
		args = append(args, f.Source)
	}

	query := `SELECT id, kind, source, status, reason, messages, failures, path, started_at, finished_at, duration_ms FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY finished_at DESC, id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := i.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, indexErr(err, "failed to list runs", i.path)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, indexErr(err, "failed to read run", i.path)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, indexErr(err, "failed to list runs", i.path)
	}
	return runs, nil
}

// Get returns the run with id, or ErrNotFound.
func (i *Index) Get(ctx context.Context, id string) (Run, error) {
	row := i.db.QueryRowContext(ctx, `SELECT id, kind, source, status, reason, messages, failures, path, started_at, finished_at, duration_ms
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, indexErr(err, "failed to read run", i.path).WithContext("run_id", id)
	}
	return run, nil
}

// Stats counts runs per kind and status.
func (i *Index) Stats(ctx context.Context) (map[job.Kind]map[job.State]int, error) {
	rows, err := i.db.QueryContext(ctx, `SELECT kind, status, COUNT(*) FROM runs GROUP BY kind, status`)
	if err != nil {
		return nil, indexErr(err, "failed to count runs", i.path)
	}
	defer rows.Close()

	stats := make(map[job.Kind]map[job.State]int)
	for rows.Next() {
		var kind, status string
		var n int
		if err := rows.Scan(&kind, &status, &n); err != nil {
			return nil, indexErr(err, "failed to count runs", i.path)
		}
		k := job.Kind(kind)
		if stats[k] == nil {
			stats[k] = make(map[job.State]int)
		}
		stats[k][job.State(status)] = n
	}
	return stats, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		run                   Run
		kind, status          string
		startedAt, finishedAt string
		durationMS            int64
	)
	err := s.Scan(&run.ID, &kind, &run.Source, &status, &run.Reason,
		&run.Messages, &run.Failures, &run.Path, &startedAt, &finishedAt, &durationMS)
	if err != nil {
		return Run{}, err
	}
	run.Kind = job.Kind(kind)
	run.Status = job.State(status)
	run.Duration = time.Duration(durationMS) * time.Millisecond
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return Run{}, err
	}
	if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt); err != nil {
		return Run{}, err
	}
	return run, nil
}

func indexErr(cause error, message, path string) *derrors.DiscoError {
	return derrors.IOWrap(cause, derrors.ErrIOIndexFailed, message).WithContext("path", path)
}

// Recorder is a job.Observer that records every finished job.
type Recorder struct {
	job.NopObserver
	index  *Index
	logger *zap.Logger
	now    func() time.Time
}

// NewRecorder returns an observer writing to idx. Index failures are logged
// and never fail the job.
func NewRecorder(idx *Index, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{index: idx, logger: logger.With(zap.String("component", "index")), now: time.Now}
}

func (r *Recorder) OnFinish(s job.Summary) {
	if err := r.index.Record(context.Background(), FromSummary(s, r.now())); err != nil {
		r.logger.Warn("failed to index run", zap.String("id", s.ID), zap.Error(err))
	}
}
