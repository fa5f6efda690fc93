package daemon

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsync/internal/metrics"
	"git.home.luguber.info/inful/docsync/internal/sync"
)

func receiveJob(t *testing.T, q *Queue) Job {
	t.Helper()
	select {
	case job := <-q.Jobs():
		return job
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job")
		return Job{}
	}
}

func TestQueue_CoalescesBurstsPerSource(t *testing.T) {
	q := NewQueue(50*time.Millisecond, metrics.NoopRecorder{})
	defer q.Close()

	q.Enqueue(Job{Source: "go", Trigger: sync.TriggerWebhook, Commit: "aaa"})
	q.Enqueue(Job{Source: "go", Trigger: sync.TriggerWebhook, Commit: "bbb"})
	q.Enqueue(Job{Source: "go", Trigger: sync.TriggerWebhook, Commit: "ccc"})

	job := receiveJob(t, q)
	require.Equal(t, "go", job.Source)
	require.Equal(t, "ccc", job.Commit, "burst must keep the newest commit")

	select {
	case extra := <-q.Jobs():
		t.Fatalf("unexpected second job: %+v", extra)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestQueue_IndependentSources(t *testing.T) {
	q := NewQueue(20*time.Millisecond, metrics.NoopRecorder{})
	defer q.Close()

	q.Enqueue(Job{Source: "go", Trigger: sync.TriggerWebhook})
	q.Enqueue(Job{Source: "jvm", Trigger: sync.TriggerSchedule})

	seen := map[string]bool{}
	for range 2 {
		seen[receiveJob(t, q).Source] = true
	}
	require.True(t, seen["go"])
	require.True(t, seen["jvm"])
}

func TestQueue_ScheduleDoesNotDropWebhookCommit(t *testing.T) {
	q := NewQueue(50*time.Millisecond, metrics.NoopRecorder{})
	defer q.Close()

	q.Enqueue(Job{Source: "go", Trigger: sync.TriggerWebhook, Commit: "aaa"})
	q.Enqueue(Job{Source: "go", Trigger: sync.TriggerSchedule})

	job := receiveJob(t, q)
	require.Equal(t, "aaa", job.Commit, "commit from the webhook must survive coalescing")
}

func TestQueue_CloseStopsPending(t *testing.T) {
	q := NewQueue(time.Hour, metrics.NoopRecorder{})
	q.Enqueue(Job{Source: "go"})
	q.Close()

	_, ok := <-q.Jobs()
	require.False(t, ok, "channel must be closed")

	// Enqueue after close is a no-op, not a panic.
	q.Enqueue(Job{Source: "go"})
}

func TestQueue_CloseWhileFiresBlockedOnFullBuffer(t *testing.T) {
	q := NewQueue(time.Millisecond, metrics.NoopRecorder{})

	// More sources than the output buffer holds, with no consumer: once the
	// buffer fills, the remaining timer callbacks block in their send.
	for i := range 70 {
		q.Enqueue(Job{Source: fmt.Sprintf("src-%d", i), Trigger: sync.TriggerSchedule})
	}
	time.Sleep(50 * time.Millisecond)

	// Close must release the blocked fires, never panic on the send.
	q.Close()

	// Buffered jobs stay consumable and the channel ends closed.
	count := 0
	for range q.Jobs() {
		count++
	}
	require.NotZero(t, count)
	require.LessOrEqual(t, count, 70)
}
