package sync

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docsync/internal/config"
	"git.home.luguber.info/inful/docsync/internal/foundation/errors"
	"git.home.luguber.info/inful/docsync/internal/git"
	"git.home.luguber.info/inful/docsync/internal/history"
	"git.home.luguber.info/inful/docsync/internal/logfields"
	"git.home.luguber.info/inful/docsync/internal/metrics"
	"git.home.luguber.info/inful/docsync/internal/notify"
	"git.home.luguber.info/inful/docsync/internal/retry"
)

// Trigger names the origin of a sync run.
const (
	TriggerWebhook  = "webhook"
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// Result summarizes one finished sync run.
type Result struct {
	RunID        string
	Source       string
	Trigger      string
	Outcome      metrics.Outcome
	Commit       string
	SiteCommit   string
	FilesWritten int
	FilesDeleted int
	Duration     time.Duration
}

// Syncer runs the fetch/transform/publish pipeline for configured sources.
type Syncer struct {
	cfg      *config.Config
	client   *git.Client
	store    history.Store
	notifier notify.Notifier
	recorder metrics.Recorder
	policy   retry.Policy
}

// New creates a syncer. Store, notifier, and recorder accept the package
// noop implementations when the corresponding feature is not configured.
func New(cfg *config.Config, client *git.Client, store history.Store, notifier notify.Notifier, recorder metrics.Recorder, policy retry.Policy) *Syncer {
	return &Syncer{
		cfg:      cfg,
		client:   client,
		store:    store,
		notifier: notifier,
		recorder: recorder,
		policy:   policy,
	}
}

// Run syncs one source into the site repository.
//
// A run that finds no difference against the site tree ends without a commit.
// A push rejected because the site branch moved ends with OutcomeConflict and
// a reset checkout; the caller may schedule another attempt.
func (s *Syncer) Run(ctx context.Context, src config.Source, trigger string) (*Result, error) {
	start := time.Now()
	res := &Result{
		RunID:   uuid.NewString(),
		Source:  src.Name,
		Trigger: trigger,
		Outcome: metrics.OutcomeFailed,
	}

	slog.Info("Sync run started",
		logfields.RunID(res.RunID), logfields.Source(src.Name), logfields.Trigger(trigger))

	fetchStart := time.Now()
	var checkout *git.Checkout
	err := s.policy.Do(ctx, isTransientGitError, func() error {
		var fetchErr error
		checkout, fetchErr = s.client.UpdateSource(ctx, src)
		return fetchErr
	})
	s.recorder.ObserveFetchDuration(src.Name, time.Since(fetchStart), err == nil)
	if err != nil {
		return s.finish(ctx, res, start, err)
	}
	res.Commit = checkout.Head

	synced, err := s.store.AlreadySynced(ctx, src.Name, checkout.Head)
	if err != nil {
		return s.finish(ctx, res, start, err)
	}
	if synced {
		slog.Info("Commit already synced, skipping",
			logfields.RunID(res.RunID), logfields.Source(src.Name), logfields.Commit(shortSHA(checkout.Head)))
		res.Outcome = metrics.OutcomeSkipped
		return s.finish(ctx, res, start, nil)
	}

	plan, err := DiscoverDocs(checkout.Path, src)
	if err != nil {
		return s.finish(ctx, res, start, err)
	}

	var site *git.SiteCheckout
	err = s.policy.Do(ctx, isTransientGitError, func() error {
		var cloneErr error
		site, cloneErr = s.client.CloneSite(ctx, s.cfg.Site)
		return cloneErr
	})
	if err != nil {
		return s.finish(ctx, res, start, err)
	}

	written, deleted, err := s.applyPlan(plan, src, site.Path)
	if err != nil {
		return s.finish(ctx, res, start, err)
	}
	res.FilesWritten = written
	res.FilesDeleted = deleted

	changed, err := site.HasChanges()
	if err != nil {
		return s.finish(ctx, res, start, err)
	}
	if !changed {
		res.Outcome = metrics.OutcomeUpToDate
		return s.finish(ctx, res, start, nil)
	}

	message := fmt.Sprintf("docs: sync %s @ %s", src.Name, shortSHA(checkout.Head))
	siteCommit, err := site.CommitAll(message)
	if err != nil {
		return s.finish(ctx, res, start, err)
	}
	res.SiteCommit = siteCommit

	err = s.policy.Do(ctx, isTransientGitError, func() error {
		return site.Push(ctx)
	})
	if err != nil {
		if git.IsConflict(err) {
			res.Outcome = metrics.OutcomeConflict
			res.SiteCommit = ""
			if resetErr := site.ResetHard(); resetErr != nil {
				slog.Warn("Failed to reset site checkout after conflict",
					logfields.RunID(res.RunID), logfields.Error(resetErr))
			}
		}
		return s.finish(ctx, res, start, err)
	}

	res.Outcome = metrics.OutcomeSuccess
	return s.finish(ctx, res, start, nil)
}

// RunAll syncs every configured source in order. It keeps going past
// individual failures and returns the first error encountered.
func (s *Syncer) RunAll(ctx context.Context, trigger string) ([]*Result, error) {
	var results []*Result
	var firstErr error
	for _, src := range s.cfg.Sources {
		res, err := s.Run(ctx, src, trigger)
		results = append(results, res)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
	}
	return results, firstErr
}

// applyPlan mirrors the plan into the site checkout's owned subtree:
// markdown goes through the transformer, assets are copied, and files no
// longer present upstream are pruned.
func (s *Syncer) applyPlan(plan *Plan, src config.Source, sitePath string) (written, deleted int, err error) {
	docsRoot := filepath.Join(sitePath, filepath.FromSlash(s.cfg.Site.DocsRoot))
	transformer := NewTransformer(src)

	for _, entry := range plan.Entries {
		content, err := os.ReadFile(entry.AbsPath)
		if err != nil {
			return written, deleted, fmt.Errorf("failed to read %s: %w", entry.RepoRel, err)
		}

		if entry.Markdown {
			content, err = transformer.Transform(content, entry.RepoRel)
			if err != nil {
				return written, deleted, errors.WrapError(err, errors.CategorySync,
					fmt.Sprintf("failed to transform %s", entry.RepoRel)).Build()
			}
		}

		dest := filepath.Join(docsRoot, filepath.FromSlash(entry.DestRel))
		wrote, err := writeFileIfChanged(dest, content)
		if err != nil {
			return written, deleted, err
		}
		if wrote {
			written++
		}
	}

	deleted, err = pruneOwnedSubtree(docsRoot, src.Destination, plan.DestPaths())
	return written, deleted, err
}

// writeFileIfChanged writes content unless the destination already holds
// exactly those bytes. Byte-stable transforms make this the idempotence
// check: unchanged sources produce zero writes.
func writeFileIfChanged(dest string, content []byte) (bool, error) {
	existing, err := os.ReadFile(dest)
	if err == nil && bytes.Equal(existing, content) {
		return false, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to read %s: %w", dest, err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return false, fmt.Errorf("failed to create directory for %s: %w", dest, err)
	}
	if err := os.WriteFile(dest, content, 0o644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return true, nil
}

// pruneOwnedSubtree removes files under the source's destination directory
// that the current plan no longer produces. Only the owned subtree is
// touched; the rest of the site tree is never modified.
func pruneOwnedSubtree(docsRoot, destination string, keep map[string]struct{}) (int, error) {
	owned := filepath.Join(docsRoot, filepath.FromSlash(destination))
	if _, err := os.Stat(owned); os.IsNotExist(err) {
		return 0, nil
	}

	var deleted int
	var dirs []string
	err := filepath.WalkDir(owned, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != owned {
				dirs = append(dirs, p)
			}
			return nil
		}

		rel, err := filepath.Rel(docsRoot, p)
		if err != nil {
			return err
		}
		if _, ok := keep[filepath.ToSlash(rel)]; ok {
			return nil
		}
		if err := os.Remove(p); err != nil {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
		deleted++
		return nil
	})
	if err != nil {
		return deleted, fmt.Errorf("failed to prune %s: %w", destination, err)
	}

	// Deepest first, so emptied parents go too.
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err == nil && len(entries) == 0 {
			_ = os.Remove(dir)
		}
	}

	return deleted, nil
}

// finish records the run's outcome in metrics, history, and notifications.
func (s *Syncer) finish(ctx context.Context, res *Result, start time.Time, runErr error) (*Result, error) {
	res.Duration = time.Since(start)

	s.recorder.ObserveRunDuration(res.Source, res.Duration)
	s.recorder.IncRunOutcome(res.Source, res.Outcome)
	if res.FilesWritten > 0 {
		s.recorder.IncFilesWritten(res.Source, res.FilesWritten)
	}

	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}

	if err := s.store.RecordRun(ctx, history.Run{
		ID:           res.RunID,
		Source:       res.Source,
		Trigger:      res.Trigger,
		Commit:       res.Commit,
		SiteCommit:   res.SiteCommit,
		Outcome:      string(res.Outcome),
		FilesWritten: res.FilesWritten,
		FilesDeleted: res.FilesDeleted,
		StartedAt:    start,
		Duration:     res.Duration,
		Error:        errText,
	}); err != nil {
		slog.Warn("Failed to record run", logfields.RunID(res.RunID), logfields.Error(err))
	}

	if err := s.notifier.PublishRun(ctx, notify.RunSummary{
		RunID:        res.RunID,
		Source:       res.Source,
		Trigger:      res.Trigger,
		Commit:       res.Commit,
		SiteCommit:   res.SiteCommit,
		Outcome:      string(res.Outcome),
		FilesWritten: res.FilesWritten,
		FilesDeleted: res.FilesDeleted,
		Error:        errText,
	}); err != nil {
		slog.Warn("Failed to publish run summary", logfields.RunID(res.RunID), logfields.Error(err))
	}

	attrs := []slog.Attr{
		logfields.RunID(res.RunID),
		logfields.Source(res.Source),
		logfields.Outcome(string(res.Outcome)),
		logfields.Files(res.FilesWritten),
		logfields.DurationMS(float64(res.Duration.Milliseconds())),
	}
	if runErr != nil {
		attrs = append(attrs, logfields.Error(runErr))
		slog.LogAttrs(ctx, slog.LevelError, "Sync run failed", attrs...)
	} else {
		slog.LogAttrs(ctx, slog.LevelInfo, "Sync run finished", attrs...)
	}

	return res, runErr
}

// isTransientGitError treats classified errors marked RetryNever (push
// conflicts, auth failures) as permanent; transient transport errors on
// clone, pull, and push retry.
func isTransientGitError(err error) bool {
	if classified, ok := errors.AsClassified(err); ok {
		return classified.CanRetry()
	}
	return true
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
