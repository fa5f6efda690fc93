package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (and if needed initializes) a run store.
// Use ":memory:" for an in-memory database, or a file path for persistence.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		trigger_kind TEXT NOT NULL,
		commit_sha TEXT NOT NULL,
		site_commit TEXT,
		outcome TEXT NOT NULL,
		files_written INTEGER NOT NULL DEFAULT 0,
		files_deleted INTEGER NOT NULL DEFAULT 0,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);
	CREATE INDEX IF NOT EXISTS idx_runs_source_commit ON runs(source, commit_sha);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordRun persists a finished run.
func (s *SQLiteStore) RecordRun(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, trigger_kind, commit_sha, site_commit, outcome,
			files_written, files_deleted, started_at, duration_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.Trigger, run.Commit, run.SiteCommit, run.Outcome,
		run.FilesWritten, run.FilesDeleted, run.StartedAt.UnixMilli(),
		run.Duration.Milliseconds(), run.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// LastRun returns the most recent run for a source.
func (s *SQLiteStore) LastRun(ctx context.Context, source string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		selectRuns+" WHERE source = ? ORDER BY started_at DESC LIMIT 1", source)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		selectRuns+" ORDER BY started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// AlreadySynced reports whether a source commit already completed cleanly.
func (s *SQLiteStore) AlreadySynced(ctx context.Context, source, commit string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM runs
		 WHERE source = ? AND commit_sha = ? AND outcome IN ('success', 'up_to_date')`,
		source, commit).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query runs: %w", err)
	}
	return n > 0, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

const selectRuns = `SELECT id, source, trigger_kind, commit_sha, site_commit, outcome,
	files_written, files_deleted, started_at, duration_ms, error FROM runs`

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var r Run
		var siteCommit, errText sql.NullString
		var startedAt, durationMS int64

		err := rows.Scan(&r.ID, &r.Source, &r.Trigger, &r.Commit, &siteCommit, &r.Outcome,
			&r.FilesWritten, &r.FilesDeleted, &startedAt, &durationMS, &errText)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}

		r.SiteCommit = siteCommit.String
		r.Error = errText.String
		r.StartedAt = time.UnixMilli(startedAt)
		r.Duration = time.Duration(durationMS) * time.Millisecond

		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return runs, nil
}
