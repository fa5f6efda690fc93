package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsync/internal/config"
	"git.home.luguber.info/inful/docsync/internal/frontmatter"
	"git.home.luguber.info/inful/docsync/internal/git"
	"git.home.luguber.info/inful/docsync/internal/history"
	"git.home.luguber.info/inful/docsync/internal/metrics"
	"git.home.luguber.info/inful/docsync/internal/notify"
	"git.home.luguber.info/inful/docsync/internal/retry"
)

func commitAll(t *testing.T, repo *gogit.Repository, message string) string {
	t.Helper()
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.AddWithOptions(&gogit.AddOptions{All: true}))
	hash, err := wt.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@localhost", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

func seedSourceRepo(t *testing.T, files map[string]string) (string, *gogit.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	writeTree(t, dir, files)
	commitAll(t, repo, "initial docs")
	return dir, repo
}

// seedSiteRepo creates a bare site repository whose master branch already
// contains files, some inside and some outside the synced subtree.
func seedSiteRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	workDir, workRepo := seedSourceRepo(t, files)
	_ = workDir

	bareDir := t.TempDir()
	_, err := gogit.PlainInit(bareDir, true)
	require.NoError(t, err)
	_, err = workRepo.CreateRemote(&gitcfg.RemoteConfig{Name: "origin", URLs: []string{bareDir}})
	require.NoError(t, err)
	require.NoError(t, workRepo.Push(&gogit.PushOptions{RemoteName: "origin"}))
	return bareDir
}

func cloneSite(t *testing.T, bareDir string) string {
	t.Helper()
	dir := t.TempDir()
	_, err := gogit.PlainClone(dir, false, &gogit.CloneOptions{URL: bareDir})
	require.NoError(t, err)
	return dir
}

func testConfig(t *testing.T, srcURL, siteURL string) *config.Config {
	t.Helper()
	return &config.Config{
		Site: config.SiteConfig{
			URL:      siteURL,
			Branch:   "master",
			DocsRoot: "docs",
			Author:   config.CommitAuthor{Name: "docsync", Email: "docsync@localhost"},
		},
		Sources: []config.Source{{
			Name:        "go",
			URL:         srcURL,
			Branch:      "master",
			DocsRoot:    "docs",
			Destination: "implementation_guides/go",
			Forge: config.ForgeRef{
				Type:     config.ForgeGitHub,
				BaseURL:  "https://github.com",
				FullName: "example/framework-go",
			},
		}},
	}
}

func newTestSyncer(t *testing.T, cfg *config.Config, store history.Store) *Syncer {
	t.Helper()
	client := git.NewClient(t.TempDir())
	require.NoError(t, client.EnsureWorkspace())
	return New(cfg, client, store, notify.NoopNotifier{}, metrics.NoopRecorder{}, retry.Policy{MaxRetries: 0})
}

func TestSyncerRun_PublishesTransformedDocs(t *testing.T) {
	srcDir, _ := seedSourceRepo(t, map[string]string{
		"docs/index.md":           "---\ntitle: Home\n---\n# Home\n\nWelcome.\n",
		"docs/guides/setup.md":    "# Setup\n\nSteps.\n",
		"docs/guides/diagram.png": "pseudo-binary",
	})
	siteDir := seedSiteRepo(t, map[string]string{
		"docs/intro.md":                          "# Site intro, not owned by any source\n",
		"docs/implementation_guides/go/stale.md": "# Stale, gone upstream\n",
	})

	cfg := testConfig(t, srcDir, siteDir)
	syncer := newTestSyncer(t, cfg, history.NoopStore{})

	res, err := syncer.Run(context.Background(), cfg.Sources[0], TriggerManual)
	require.NoError(t, err)
	require.Equal(t, metrics.OutcomeSuccess, res.Outcome)
	require.Equal(t, 3, res.FilesWritten)
	require.Equal(t, 1, res.FilesDeleted)
	require.NotEmpty(t, res.SiteCommit)

	published := cloneSite(t, siteDir)

	// Untouched: files outside the owned subtree.
	require.FileExists(t, filepath.Join(published, "docs", "intro.md"))
	// Pruned: files gone upstream.
	require.NoFileExists(t, filepath.Join(published, "docs", "implementation_guides", "go", "stale.md"))
	// Assets copied verbatim.
	asset, err := os.ReadFile(filepath.Join(published, "docs", "implementation_guides", "go", "docs", "guides", "diagram.png"))
	require.NoError(t, err)
	require.Equal(t, "pseudo-binary", string(asset))

	// Markdown got the edit URL pointing at the upstream file.
	content, err := os.ReadFile(filepath.Join(published, "docs", "implementation_guides", "go", "docs", "guides", "setup.md"))
	require.NoError(t, err)
	doc, err := frontmatter.Parse(content)
	require.NoError(t, err)
	editURL, _ := doc.GetString("custom_edit_url")
	require.Equal(t, "https://github.com/example/framework-go/edit/master/docs/guides/setup.md", editURL)
	title, _ := doc.GetString("title")
	require.Equal(t, "Setup", title)
	require.Equal(t, "# Setup\n\nSteps.\n", string(doc.Body))
}

func TestSyncerRun_SecondRunIsUpToDate(t *testing.T) {
	srcDir, _ := seedSourceRepo(t, map[string]string{
		"docs/index.md": "# Home\n",
	})
	siteDir := seedSiteRepo(t, map[string]string{
		"docs/intro.md": "# Intro\n",
	})

	cfg := testConfig(t, srcDir, siteDir)
	syncer := newTestSyncer(t, cfg, history.NoopStore{})

	res, err := syncer.Run(context.Background(), cfg.Sources[0], TriggerManual)
	require.NoError(t, err)
	require.Equal(t, metrics.OutcomeSuccess, res.Outcome)
	firstCommit := res.SiteCommit

	// Nothing changed upstream: the run must not create a commit.
	res, err = syncer.Run(context.Background(), cfg.Sources[0], TriggerManual)
	require.NoError(t, err)
	require.Equal(t, metrics.OutcomeUpToDate, res.Outcome)
	require.Zero(t, res.FilesWritten)
	require.Empty(t, res.SiteCommit)

	published := cloneSite(t, siteDir)
	repo, err := gogit.PlainOpen(published)
	require.NoError(t, err)
	head, err := repo.Head()
	require.NoError(t, err)
	require.Equal(t, firstCommit, head.Hash().String())
}

func TestSyncerRun_SkipsAlreadySyncedCommit(t *testing.T) {
	srcDir, _ := seedSourceRepo(t, map[string]string{
		"docs/index.md": "# Home\n",
	})
	siteDir := seedSiteRepo(t, map[string]string{
		"docs/intro.md": "# Intro\n",
	})

	store, err := history.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := testConfig(t, srcDir, siteDir)
	syncer := newTestSyncer(t, cfg, store)

	res, err := syncer.Run(context.Background(), cfg.Sources[0], TriggerWebhook)
	require.NoError(t, err)
	require.Equal(t, metrics.OutcomeSuccess, res.Outcome)

	// A redelivered webhook for the same commit is a no-op before any
	// site clone happens.
	res, err = syncer.Run(context.Background(), cfg.Sources[0], TriggerWebhook)
	require.NoError(t, err)
	require.Equal(t, metrics.OutcomeSkipped, res.Outcome)

	runs, err := store.RecentRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, string(metrics.OutcomeSkipped), runs[0].Outcome)
	require.Equal(t, string(metrics.OutcomeSuccess), runs[1].Outcome)
}

func TestSyncerRun_PicksUpUpstreamChanges(t *testing.T) {
	srcDir, srcRepo := seedSourceRepo(t, map[string]string{
		"docs/index.md": "# Home\n",
		"docs/old.md":   "# Old\n",
	})
	siteDir := seedSiteRepo(t, map[string]string{
		"docs/intro.md": "# Intro\n",
	})

	cfg := testConfig(t, srcDir, siteDir)
	syncer := newTestSyncer(t, cfg, history.NoopStore{})

	_, err := syncer.Run(context.Background(), cfg.Sources[0], TriggerManual)
	require.NoError(t, err)

	// Upstream renames old.md to new.md.
	require.NoError(t, os.Remove(filepath.Join(srcDir, "docs", "old.md")))
	writeTree(t, srcDir, map[string]string{"docs/new.md": "# New\n"})
	commitAll(t, srcRepo, "rename doc")

	res, err := syncer.Run(context.Background(), cfg.Sources[0], TriggerWebhook)
	require.NoError(t, err)
	require.Equal(t, metrics.OutcomeSuccess, res.Outcome)
	require.Equal(t, 1, res.FilesWritten)
	require.Equal(t, 1, res.FilesDeleted)

	published := cloneSite(t, siteDir)
	require.FileExists(t, filepath.Join(published, "docs", "implementation_guides", "go", "docs", "new.md"))
	require.NoFileExists(t, filepath.Join(published, "docs", "implementation_guides", "go", "docs", "old.md"))
}

func TestSyncerRun_RetriesTransientCloneFailure(t *testing.T) {
	srcDir, _ := seedSourceRepo(t, map[string]string{
		"docs/index.md": "# Home\n",
	})
	siteDir := seedSiteRepo(t, map[string]string{
		"docs/intro.md": "# Intro\n",
	})

	// The configured URL points nowhere until the repository reappears while
	// the first backoff is still running.
	flakyURL := filepath.Join(t.TempDir(), "flaky-src")
	cfg := testConfig(t, flakyURL, siteDir)

	client := git.NewClient(t.TempDir())
	require.NoError(t, client.EnsureWorkspace())
	policy := retry.Policy{
		Mode:       config.RetryBackoffFixed,
		Initial:    200 * time.Millisecond,
		Max:        200 * time.Millisecond,
		MaxRetries: 3,
	}
	syncer := New(cfg, client, history.NoopStore{}, notify.NoopNotifier{}, metrics.NoopRecorder{}, policy)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = os.Rename(srcDir, flakyURL)
	}()

	res, err := syncer.Run(context.Background(), cfg.Sources[0], TriggerManual)
	require.NoError(t, err)
	require.Equal(t, metrics.OutcomeSuccess, res.Outcome)
	require.Equal(t, 1, res.FilesWritten)
	require.NotEmpty(t, res.SiteCommit)
}

func TestWriteFileIfChanged(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "sub", "file.md")

	wrote, err := writeFileIfChanged(dest, []byte("one"))
	require.NoError(t, err)
	require.True(t, wrote)

	wrote, err = writeFileIfChanged(dest, []byte("one"))
	require.NoError(t, err)
	require.False(t, wrote, "identical content must not be rewritten")

	wrote, err = writeFileIfChanged(dest, []byte("two"))
	require.NoError(t, err)
	require.True(t, wrote)
}
