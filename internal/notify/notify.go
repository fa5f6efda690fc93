// Package notify publishes run summaries to NATS JetStream so downstream
// consumers (deploy triggers, chat bots) can react to sync activity.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/docsync/internal/config"
)

// RunSummary is the payload published after every sync run.
type RunSummary struct {
	RunID        string    `json:"run_id"`
	Source       string    `json:"source"`
	Trigger      string    `json:"trigger"`
	Commit       string    `json:"commit"`
	SiteCommit   string    `json:"site_commit,omitempty"`
	Outcome      string    `json:"outcome"`
	FilesWritten int       `json:"files_written"`
	FilesDeleted int       `json:"files_deleted"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Notifier publishes run summaries.
type Notifier interface {
	PublishRun(ctx context.Context, summary RunSummary) error
	Close() error
}

// NoopNotifier is used when notifications are not configured.
type NoopNotifier struct{}

func (NoopNotifier) PublishRun(context.Context, RunSummary) error { return nil }
func (NoopNotifier) Close() error                                 { return nil }

// NATSNotifier publishes run summaries to a JetStream subject.
type NATSNotifier struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
}

// NewNATSNotifier connects to NATS and prepares a JetStream publisher.
func NewNATSNotifier(cfg *config.NotifyConfig) (*NATSNotifier, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, fmt.Errorf("notifications are disabled")
	}

	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	slog.Info("NATS notifier initialized", "url", cfg.URL, "subject", cfg.Subject)

	return &NATSNotifier{conn: conn, js: js, subject: cfg.Subject}, nil
}

// PublishRun publishes a run summary.
func (n *NATSNotifier) PublishRun(ctx context.Context, summary RunSummary) error {
	if summary.Timestamp.IsZero() {
		summary.Timestamp = time.Now()
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := n.js.Publish(ctx, n.subject, data); err != nil {
		return fmt.Errorf("failed to publish run summary: %w", err)
	}

	slog.Debug("Published run summary",
		"run_id", summary.RunID, "source", summary.Source, "outcome", summary.Outcome)

	return nil
}

// Close closes the NATS connection.
func (n *NATSNotifier) Close() error {
	if n.conn != nil {
		n.conn.Close()
	}
	return nil
}
