// Package git wraps go-git for the two sides of a sync run: cloning source
// repositories (read-only) and committing/pushing the site repository.
package git

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/docsync/internal/config"
	"git.home.luguber.info/inful/docsync/internal/logfields"
)

// Client handles git operations rooted in a workspace directory.
type Client struct {
	workspaceDir string
}

// NewClient creates a new git client with the specified workspace directory.
func NewClient(workspaceDir string) *Client {
	return &Client{workspaceDir: workspaceDir}
}

// WorkspaceDir returns the workspace root.
func (c *Client) WorkspaceDir() string { return c.workspaceDir }

// EnsureWorkspace creates the workspace directory if it doesn't exist.
func (c *Client) EnsureWorkspace() error {
	if err := os.MkdirAll(c.workspaceDir, 0o755); err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}
	return nil
}

// CleanWorkspace removes all contents from the workspace directory.
func (c *Client) CleanWorkspace() error {
	entries, err := os.ReadDir(c.workspaceDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read workspace directory: %w", err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(c.workspaceDir, entry.Name())); err != nil {
			return fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// Checkout is a cloned source repository ready for discovery.
type Checkout struct {
	Path string
	Head string
}

// CloneSource freshly clones a source repository at its tracked branch into
// the workspace, replacing any previous checkout.
func (c *Client) CloneSource(ctx context.Context, src config.Source) (*Checkout, error) {
	repoPath := filepath.Join(c.workspaceDir, "sources", src.Name)

	slog.Debug("Cloning source repository",
		logfields.Source(src.Name), logfields.URL(src.URL), logfields.Branch(src.Branch))

	if err := os.RemoveAll(repoPath); err != nil {
		return nil, fmt.Errorf("failed to remove existing checkout: %w", err)
	}

	opts := &gogit.CloneOptions{URL: src.URL}
	if src.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(src.Branch)
		opts.SingleBranch = true
	}
	auth, err := authMethod(src.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to setup authentication: %w", err)
	}
	opts.Auth = auth

	repo, err := gogit.PlainCloneContext(ctx, repoPath, false, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to clone source %s: %w", src.URL, err)
	}

	ref, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD of %s: %w", src.Name, err)
	}

	head := ref.Hash().String()
	slog.Info("Source repository cloned",
		logfields.Source(src.Name), logfields.Commit(shortSHA(head)), logfields.Path(repoPath))

	return &Checkout{Path: repoPath, Head: head}, nil
}

// UpdateSource pulls an existing checkout, or clones when none exists.
func (c *Client) UpdateSource(ctx context.Context, src config.Source) (*Checkout, error) {
	repoPath := filepath.Join(c.workspaceDir, "sources", src.Name)

	if _, err := os.Stat(filepath.Join(repoPath, ".git")); err != nil {
		return c.CloneSource(ctx, src)
	}

	repo, err := gogit.PlainOpen(repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkout: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	opts := &gogit.PullOptions{RemoteName: "origin"}
	auth, err := authMethod(src.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to setup authentication: %w", err)
	}
	opts.Auth = auth

	err = worktree.PullContext(ctx, opts)
	if err != nil && err != gogit.NoErrAlreadyUpToDate {
		return nil, fmt.Errorf("failed to pull source %s: %w", src.URL, err)
	}

	ref, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD of %s: %w", src.Name, err)
	}

	head := ref.Hash().String()
	if err == nil {
		slog.Debug("Source repository updated",
			logfields.Source(src.Name), logfields.Commit(shortSHA(head)))
	}

	return &Checkout{Path: repoPath, Head: head}, nil
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
