package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndLastRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := Run{
		ID: "run-1", Source: "go", Trigger: "webhook",
		Commit: "aaa111", SiteCommit: "bbb222", Outcome: "success",
		FilesWritten: 3, FilesDeleted: 1,
		StartedAt: time.Now().Add(-time.Minute), Duration: 4 * time.Second,
	}
	require.NoError(t, store.RecordRun(ctx, first))

	second := first
	second.ID = "run-2"
	second.Commit = "ccc333"
	second.SiteCommit = ""
	second.Outcome = "up_to_date"
	second.FilesWritten = 0
	second.FilesDeleted = 0
	second.StartedAt = time.Now()
	require.NoError(t, store.RecordRun(ctx, second))

	last, err := store.LastRun(ctx, "go")
	require.NoError(t, err)
	require.NotNil(t, last)
	require.Equal(t, "run-2", last.ID)
	require.Equal(t, "up_to_date", last.Outcome)
	require.Empty(t, last.SiteCommit)

	last, err = store.LastRun(ctx, "jvm")
	require.NoError(t, err)
	require.Nil(t, last)
}

func TestAlreadySynced(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordRun(ctx, Run{
		ID: "run-1", Source: "go", Trigger: "webhook",
		Commit: "aaa111", Outcome: "success", StartedAt: time.Now(),
	}))
	require.NoError(t, store.RecordRun(ctx, Run{
		ID: "run-2", Source: "go", Trigger: "webhook",
		Commit: "ddd444", Outcome: "failed", Error: "push timed out",
		StartedAt: time.Now(),
	}))

	synced, err := store.AlreadySynced(ctx, "go", "aaa111")
	require.NoError(t, err)
	require.True(t, synced)

	// Failed runs do not count; the commit should be retried.
	synced, err = store.AlreadySynced(ctx, "go", "ddd444")
	require.NoError(t, err)
	require.False(t, synced)

	synced, err = store.AlreadySynced(ctx, "jvm", "aaa111")
	require.NoError(t, err)
	require.False(t, synced)
}

func TestRecentRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"run-1", "run-2", "run-3"} {
		require.NoError(t, store.RecordRun(ctx, Run{
			ID: id, Source: "go", Trigger: "schedule",
			Commit: "aaa111", Outcome: "success",
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	runs, err := store.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "run-3", runs[0].ID)
	require.Equal(t, "run-2", runs[1].ID)
}

func TestNoopStore(t *testing.T) {
	var store Store = NoopStore{}
	ctx := context.Background()

	require.NoError(t, store.RecordRun(ctx, Run{ID: "run-1"}))
	synced, err := store.AlreadySynced(ctx, "go", "aaa111")
	require.NoError(t, err)
	require.False(t, synced)
	last, err := store.LastRun(ctx, "go")
	require.NoError(t, err)
	require.Nil(t, last)
}
