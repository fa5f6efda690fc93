package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docsync/internal/config"
	"git.home.luguber.info/inful/docsync/internal/daemon"
	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
	"git.home.luguber.info/inful/docsync/internal/git"
	"git.home.luguber.info/inful/docsync/internal/history"
	"git.home.luguber.info/inful/docsync/internal/metrics"
	"git.home.luguber.info/inful/docsync/internal/notify"
	"git.home.luguber.info/inful/docsync/internal/retry"
	"git.home.luguber.info/inful/docsync/internal/sync"
	"git.home.luguber.info/inful/docsync/internal/verify"
	"git.home.luguber.info/inful/docsync/internal/version"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"docsync.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`
	JSONLog bool   `help:"Emit logs as JSON"`

	Sync struct {
		Source string `short:"s" help:"Sync a single source by name (default: all)"`
	} `cmd:"" help:"Run one sync pass and exit"`

	Daemon struct{} `cmd:"" help:"Run continuously: webhook listener, scheduler, admin endpoint"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Write an example configuration file"`

	Status struct {
		Limit int `default:"10" help:"Number of recent runs to show"`
	} `cmd:"" help:"Show recent sync runs from the daemon's run store"`

	Verify struct {
		Site     string `help:"Path to a site checkout (default: clone fresh into a temp dir)"`
		Sidebars string `help:"Path to sidebars.json, relative to the site root" default:"sidebars.json"`
	} `cmd:"" help:"Check sidebar reachability and internal links of the site docs"`

	Version struct{} `cmd:"" help:"Print version information"`
}

func main() {
	ctx := kong.Parse(&CLI)
	setupLogging()

	adapter := ferrors.NewCLIErrorAdapter(CLI.Verbose, slog.Default())

	var err error
	switch ctx.Command() {
	case "sync":
		err = runSync()
	case "daemon":
		err = runDaemon()
	case "init":
		err = runInit()
	case "status":
		err = runStatus()
	case "verify":
		err = runVerify()
	case "version":
		fmt.Printf("docsync %s (commit %s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
	default:
		err = fmt.Errorf("unknown command: %s", ctx.Command())
	}

	adapter.HandleError(err)
}

func setupLogging() {
	level := slog.LevelInfo
	if CLI.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if CLI.JSONLog {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return nil, err
	}

	if cfg.Logging != nil {
		applyLoggingConfig(cfg.Logging)
	}
	return cfg, nil
}

// applyLoggingConfig lets the config file raise or change log output unless
// flags already did.
func applyLoggingConfig(lc *config.LoggingConfig) {
	if CLI.Verbose || CLI.JSONLog {
		return
	}

	level := slog.LevelInfo
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if lc.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runSync() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	workspace, err := os.MkdirTemp("", "docsync-*")
	if err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	defer func() { _ = os.RemoveAll(workspace) }()

	client := git.NewClient(workspace)
	if err := client.EnsureWorkspace(); err != nil {
		return err
	}

	notifier, err := buildNotifier(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = notifier.Close() }()

	policy := retry.DefaultPolicy()
	if cfg.Daemon != nil {
		policy = retry.FromConfig(cfg.Daemon.Retry)
	}

	syncer := sync.New(cfg, client, history.NoopStore{}, notifier, metrics.NoopRecorder{}, policy)

	if CLI.Sync.Source != "" {
		src, ok := cfg.SourceByName(CLI.Sync.Source)
		if !ok {
			return ferrors.ValidationError(fmt.Sprintf("unknown source: %s", CLI.Sync.Source)).Build()
		}
		_, err := syncer.Run(ctx, *src, sync.TriggerManual)
		return err
	}

	_, err = syncer.RunAll(ctx, sync.TriggerManual)
	return err
}

func runDaemon() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	d, err := daemon.New(CLI.Config, cfg)
	if err != nil {
		return err
	}
	return d.Run(ctx)
}

func runInit() error {
	if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "failed to initialize configuration").Build()
	}
	fmt.Printf("Configuration written to %s\n", CLI.Config)
	return nil
}

func runStatus() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Daemon == nil {
		return ferrors.ValidationError("status requires a daemon section: runs are only recorded in daemon mode").Build()
	}

	store, err := history.NewSQLiteStore(filepath.Join(cfg.Daemon.DataDir, "docsync.db"))
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryHistory, "failed to open run store").Build()
	}
	defer func() { _ = store.Close() }()

	runs, err := store.RecentRuns(context.Background(), CLI.Status.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tSOURCE\tTRIGGER\tOUTCOME\tCOMMIT\tFILES\tDURATION")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			run.StartedAt.Format(time.RFC3339), run.Source, run.Trigger, run.Outcome,
			shortSHA(run.Commit), run.FilesWritten, run.Duration.Round(time.Millisecond))
	}
	return w.Flush()
}

func runVerify() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sitePath := CLI.Verify.Site
	if sitePath == "" {
		ctx, cancel := signalContext()
		defer cancel()

		workspace, err := os.MkdirTemp("", "docsync-verify-*")
		if err != nil {
			return fmt.Errorf("failed to create workspace: %w", err)
		}
		defer func() { _ = os.RemoveAll(workspace) }()

		client := git.NewClient(workspace)
		if err := client.EnsureWorkspace(); err != nil {
			return err
		}
		checkout, err := client.CloneSite(ctx, cfg.Site)
		if err != nil {
			return err
		}
		sitePath = checkout.Path
	}

	docsDir := filepath.Join(sitePath, filepath.FromSlash(cfg.Site.DocsRoot))
	sidebarsPath := filepath.Join(sitePath, filepath.FromSlash(CLI.Verify.Sidebars))
	if _, err := os.Stat(sidebarsPath); err != nil {
		slog.Warn("Sidebars file not found, skipping reachability check", "path", sidebarsPath)
		sidebarsPath = ""
	}

	report, err := verify.Run(docsDir, sidebarsPath)
	if err != nil {
		return err
	}

	fmt.Printf("Scanned %d documents.\n", report.DocsScanned)
	if report.Clean() {
		fmt.Println("No problems found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tDOCUMENT\tREFERENCE")
	for _, f := range report.Findings {
		fmt.Fprintf(w, "%s\t%s\t%s\n", f.Kind, f.Doc, f.Ref)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	// Findings are advisory; sidebar updates stay a human decision.
	fmt.Printf("%d findings.\n", len(report.Findings))
	return nil
}

func buildNotifier(cfg *config.Config) (notify.Notifier, error) {
	if cfg.Notify != nil && cfg.Notify.Enabled {
		return notify.NewNATSNotifier(cfg.Notify)
	}
	return notify.NoopNotifier{}, nil
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
