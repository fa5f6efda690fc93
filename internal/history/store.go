// Package history persists sync run records so the daemon can skip commits
// it has already synced and the status command can report recent activity.
package history

import (
	"context"
	"time"
)

// Run is the persisted record of one sync run.
type Run struct {
	ID           string
	Source       string
	Trigger      string // webhook|schedule|manual
	Commit       string // source head that was synced
	SiteCommit   string // commit created in the site repository, empty when none
	Outcome      string
	FilesWritten int
	FilesDeleted int
	StartedAt    time.Time
	Duration     time.Duration
	Error        string
}

// Store records and queries sync runs.
type Store interface {
	// RecordRun persists a finished run.
	RecordRun(ctx context.Context, run Run) error

	// LastRun returns the most recent run for a source, or nil when the
	// source has never been synced.
	LastRun(ctx context.Context, source string) (*Run, error)

	// RecentRuns returns up to limit runs, newest first.
	RecentRuns(ctx context.Context, limit int) ([]Run, error)

	// AlreadySynced reports whether a source commit has previously completed
	// with a clean outcome, so repeated webhook deliveries become no-ops.
	AlreadySynced(ctx context.Context, source, commit string) (bool, error)

	Close() error
}

// NoopStore discards runs and remembers nothing. One-shot CLI syncs use it
// when no data directory is configured.
type NoopStore struct{}

func (NoopStore) RecordRun(context.Context, Run) error          { return nil }
func (NoopStore) LastRun(context.Context, string) (*Run, error) { return nil, nil }
func (NoopStore) RecentRuns(context.Context, int) ([]Run, error) {
	return nil, nil
}
func (NoopStore) AlreadySynced(context.Context, string, string) (bool, error) {
	return false, nil
}
func (NoopStore) Close() error { return nil }
