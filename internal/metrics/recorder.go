// Package metrics defines observability hooks for sync runs.
package metrics

import "time"

// Outcome enumerates terminal run states for counters.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeUpToDate Outcome = "up_to_date"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeConflict Outcome = "conflict"
	OutcomeFailed   Outcome = "failed"
)

// Recorder defines observability hooks for sync and webhook metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc. All methods
// must be safe on the NoopRecorder so injection stays optional.
type Recorder interface {
	ObserveRunDuration(source string, d time.Duration)
	IncRunOutcome(source string, outcome Outcome)
	ObserveFetchDuration(source string, d time.Duration, success bool)
	IncFilesWritten(source string, n int)
	IncWebhook(forge string, accepted bool)
	SetQueueDepth(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveRunDuration(string, time.Duration)         {}
func (NoopRecorder) IncRunOutcome(string, Outcome)                    {}
func (NoopRecorder) ObserveFetchDuration(string, time.Duration, bool) {}
func (NoopRecorder) IncFilesWritten(string, int)                      {}
func (NoopRecorder) IncWebhook(string, bool)                          {}
func (NoopRecorder) SetQueueDepth(int)                                {}
