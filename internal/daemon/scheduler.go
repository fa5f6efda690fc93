package daemon

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/docsync/internal/sync"
)

// Scheduler wraps gocron to run periodic full syncs. Scheduled syncs catch
// up on anything webhooks missed (downtime, undelivered hooks).
type Scheduler struct {
	scheduler gocron.Scheduler
	queue     *Queue
}

// NewScheduler creates a scheduler instance.
func NewScheduler(queue *Queue) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, queue: queue}, nil
}

// SchedulePeriodicSync enqueues every source for sync at the given interval.
func (s *Scheduler) SchedulePeriodicSync(interval time.Duration, sources func() []string) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			for _, name := range sources() {
				s.queue.Enqueue(Job{Source: name, Trigger: sync.TriggerSchedule})
			}
		}),
		gocron.WithName("periodic-sync"),
	)
	if err != nil {
		return fmt.Errorf("failed to create periodic sync job: %w", err)
	}
	return nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}
