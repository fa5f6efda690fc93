// Package daemon runs the long-lived sync service: a webhook listener, a
// debounced job queue with a single sync worker, a periodic full-sync
// schedule, an admin endpoint, and live configuration reload.
package daemon

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docsync/internal/config"
	"git.home.luguber.info/inful/docsync/internal/foundation/errors"
	"git.home.luguber.info/inful/docsync/internal/git"
	"git.home.luguber.info/inful/docsync/internal/history"
	"git.home.luguber.info/inful/docsync/internal/logfields"
	"git.home.luguber.info/inful/docsync/internal/metrics"
	"git.home.luguber.info/inful/docsync/internal/notify"
	"git.home.luguber.info/inful/docsync/internal/retry"
	syncpkg "git.home.luguber.info/inful/docsync/internal/sync"
)

const shutdownTimeout = 15 * time.Second

// Daemon wires the long-running components together.
type Daemon struct {
	configPath string

	mu  sync.RWMutex
	cfg *config.Config

	client   *git.Client
	store    history.Store
	notifier notify.Notifier
	recorder *metrics.PrometheusRecorder

	queue     *Queue
	webhook   *WebhookServer
	admin     *AdminServer
	scheduler *Scheduler
}

// New builds a daemon from a validated configuration. The configuration
// must carry a daemon section.
func New(configPath string, cfg *config.Config) (*Daemon, error) {
	if cfg.Daemon == nil {
		return nil, errors.DaemonError("daemon mode requires a daemon section in the configuration").Build()
	}

	dataDir := cfg.Daemon.DataDir
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, errors.DaemonError("failed to create data directory").
			WithContext("path", dataDir).
			WithContext("cause", err.Error()).Build()
	}

	store, err := history.NewSQLiteStore(filepath.Join(dataDir, "docsync.db"))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryHistory, "failed to open run store").Build()
	}

	var notifier notify.Notifier = notify.NoopNotifier{}
	if cfg.Notify != nil && cfg.Notify.Enabled {
		notifier, err = notify.NewNATSNotifier(cfg.Notify)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	recorder := metrics.NewPrometheusRecorder(prom.NewRegistry())
	client := git.NewClient(filepath.Join(dataDir, "workspace"))
	if err := client.EnsureWorkspace(); err != nil {
		_ = store.Close()
		_ = notifier.Close()
		return nil, err
	}

	queue := NewQueue(cfg.Daemon.Debounce, recorder)

	d := &Daemon{
		configPath: configPath,
		cfg:        cfg,
		client:     client,
		store:      store,
		notifier:   notifier,
		recorder:   recorder,
		queue:      queue,
	}

	d.webhook = NewWebhookServer(cfg.Daemon.WebhookAddr, cfg, queue, recorder)
	d.admin = NewAdminServer(cfg.Daemon.AdminAddr, cfg, store, recorder)

	d.scheduler, err = NewScheduler(queue)
	if err != nil {
		_ = store.Close()
		_ = notifier.Close()
		return nil, err
	}

	return d, nil
}

// Run starts all components and blocks until the context is cancelled or a
// listener fails.
func (d *Daemon) Run(ctx context.Context) error {
	cfg := d.config()

	slog.Info("Daemon starting",
		"webhook_addr", cfg.Daemon.WebhookAddr,
		"admin_addr", cfg.Daemon.AdminAddr,
		"sources", len(cfg.Sources))

	errCh := make(chan error, 3)

	go func() { errCh <- d.webhook.Start() }()
	go func() { errCh <- d.admin.Start() }()

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		d.worker(ctx)
	}()

	if cfg.Daemon.SyncInterval > 0 {
		if err := d.scheduler.SchedulePeriodicSync(cfg.Daemon.SyncInterval, d.sourceNames); err != nil {
			return err
		}
		d.scheduler.Start()
	}

	// Catch up on anything pushed while the daemon was down.
	d.TriggerAll(syncpkg.TriggerSchedule)

	watcher, err := NewConfigWatcher(d.configPath, d.Reload)
	if err != nil {
		slog.Warn("Configuration watching disabled", logfields.Error(err))
	} else {
		go func() {
			if err := watcher.Run(ctx); err != nil {
				slog.Warn("Config watcher stopped", logfields.Error(err))
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("Daemon shutting down")
	case runErr = <-errCh:
		slog.Error("Daemon component failed", logfields.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	_ = d.webhook.Shutdown(shutdownCtx)
	_ = d.admin.Shutdown(shutdownCtx)
	if err := d.scheduler.Stop(); err != nil {
		slog.Warn("Scheduler shutdown failed", logfields.Error(err))
	}
	d.queue.Close()
	<-workerDone

	_ = d.notifier.Close()
	_ = d.store.Close()

	return runErr
}

// Reload swaps in a freshly loaded configuration. In-flight jobs keep the
// configuration they started with.
func (d *Daemon) Reload(cfg *config.Config) {
	if cfg.Daemon == nil {
		slog.Error("Reloaded configuration has no daemon section, keeping previous configuration")
		return
	}

	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()

	d.webhook.SwapConfig(cfg)
	d.admin.SwapConfig(cfg)
}

// TriggerAll enqueues a sync for every configured source.
func (d *Daemon) TriggerAll(trigger string) {
	for _, name := range d.sourceNames() {
		d.queue.Enqueue(Job{Source: name, Trigger: trigger})
	}
}

func (d *Daemon) config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

func (d *Daemon) sourceNames() []string {
	cfg := d.config()
	names := make([]string, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		names = append(names, src.Name)
	}
	return names
}

// worker drains the job queue one sync at a time. A single worker
// serializes pushes to the site repository, which keeps conflict handling
// out of the common path.
func (d *Daemon) worker(ctx context.Context) {
	for job := range d.queue.Jobs() {
		if ctx.Err() != nil {
			continue // drain remaining jobs without running them
		}

		cfg := d.config()
		src, ok := cfg.SourceByName(job.Source)
		if !ok {
			slog.Warn("Job references unknown source, dropping", logfields.Source(job.Source))
			continue
		}

		syncer := syncpkg.New(cfg, d.client, d.store, d.notifier, d.recorder,
			retry.FromConfig(cfg.Daemon.Retry))

		// Run errors are already logged and recorded by the syncer.
		_, _ = syncer.Run(ctx, *src, job.Trigger)
	}
}
