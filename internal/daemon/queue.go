package daemon

import (
	"sync"
	"time"

	"git.home.luguber.info/inful/docsync/internal/metrics"
)

// Job is one pending sync request for a source.
type Job struct {
	Source  string
	Trigger string
	// Commit is the head SHA the triggering push reported, empty for
	// scheduled and manual jobs.
	Commit string
}

// Queue coalesces bursts of sync requests per source.
//
// Forges deliver one webhook per push, and pushes often arrive in quick
// succession (review rounds, batched merges). Each source gets a quiet
// window; requests arriving inside it collapse into a single job carrying
// the newest commit.
type Queue struct {
	quiet    time.Duration
	out      chan Job
	done     chan struct{}
	recorder metrics.Recorder

	firing sync.WaitGroup

	mu      sync.Mutex
	pending map[string]*pendingJob
	closed  bool
}

type pendingJob struct {
	timer *time.Timer
	job   Job
}

// NewQueue creates a queue with the given quiet window.
func NewQueue(quiet time.Duration, recorder metrics.Recorder) *Queue {
	return &Queue{
		quiet:    quiet,
		out:      make(chan Job, 64),
		done:     make(chan struct{}),
		recorder: recorder,
		pending:  make(map[string]*pendingJob),
	}
}

// Jobs is the channel the daemon worker consumes.
func (q *Queue) Jobs() <-chan Job { return q.out }

// Enqueue schedules a sync for a source. A request for a source that is
// already waiting restarts its quiet window and keeps the newest commit.
func (q *Queue) Enqueue(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}

	if p, ok := q.pending[job.Source]; ok {
		p.job.Trigger = job.Trigger
		if job.Commit != "" {
			p.job.Commit = job.Commit
		}
		p.timer.Reset(q.quiet)
		return
	}

	p := &pendingJob{job: job}
	p.timer = time.AfterFunc(q.quiet, func() { q.fire(job.Source) })
	q.pending[job.Source] = p
	q.recorder.SetQueueDepth(len(q.pending))
}

func (q *Queue) fire(source string) {
	q.mu.Lock()
	p, ok := q.pending[source]
	if ok {
		delete(q.pending, source)
	}
	if !ok || q.closed {
		q.mu.Unlock()
		return
	}
	// Registered under the lock, so Close cannot close the channel while
	// this send is in flight.
	q.firing.Add(1)
	q.recorder.SetQueueDepth(len(q.pending))
	q.mu.Unlock()
	defer q.firing.Done()

	select {
	case q.out <- p.job:
	case <-q.done:
		// Queue closed with a full buffer: the job is dropped.
	}
}

// Close stops all pending timers, unblocks in-flight fires, and closes the
// job channel. Jobs already buffered stay consumable.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for _, p := range q.pending {
		p.timer.Stop()
	}
	q.pending = map[string]*pendingJob{}
	q.mu.Unlock()

	close(q.done)
	q.firing.Wait()
	close(q.out)
}
