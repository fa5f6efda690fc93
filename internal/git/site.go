package git

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"git.home.luguber.info/inful/docsync/internal/config"
	"git.home.luguber.info/inful/docsync/internal/foundation/errors"
	"git.home.luguber.info/inful/docsync/internal/logfields"
)

// SiteCheckout is a writable clone of the documentation site repository.
type SiteCheckout struct {
	Path string

	repo     *gogit.Repository
	worktree *gogit.Worktree
	site     config.SiteConfig
}

// CloneSite freshly clones the site repository at its branch.
func (c *Client) CloneSite(ctx context.Context, site config.SiteConfig) (*SiteCheckout, error) {
	repoPath := filepath.Join(c.workspaceDir, "site")

	if err := os.RemoveAll(repoPath); err != nil {
		return nil, fmt.Errorf("failed to remove existing site checkout: %w", err)
	}

	auth, err := authMethod(site.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to setup authentication: %w", err)
	}

	opts := &gogit.CloneOptions{
		URL:           site.URL,
		ReferenceName: plumbing.NewBranchReferenceName(site.Branch),
		SingleBranch:  true,
		Auth:          auth,
	}

	repo, err := gogit.PlainCloneContext(ctx, repoPath, false, opts)
	if err != nil {
		return nil, errors.GitError("failed to clone site repository").
			WithContext("url", site.URL).
			WithContext("cause", err.Error()).Build()
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get site worktree: %w", err)
	}

	slog.Debug("Site repository cloned", logfields.URL(site.URL), logfields.Path(repoPath))

	return &SiteCheckout{Path: repoPath, repo: repo, worktree: worktree, site: site}, nil
}

// HasChanges reports whether the worktree differs from HEAD.
func (s *SiteCheckout) HasChanges() (bool, error) {
	status, err := s.worktree.Status()
	if err != nil {
		return false, fmt.Errorf("failed to read worktree status: %w", err)
	}
	return !status.IsClean(), nil
}

// CommitAll stages every change and creates a commit. Returns the commit SHA.
func (s *SiteCheckout) CommitAll(message string) (string, error) {
	if err := s.worktree.AddWithOptions(&gogit.AddOptions{All: true}); err != nil {
		return "", fmt.Errorf("failed to stage changes: %w", err)
	}

	hash, err := s.worktree.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  s.site.Author.Name,
			Email: s.site.Author.Email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}

	return hash.String(), nil
}

// Push pushes the site branch to origin. Conflicts (non-fast-forward) are
// reported as CategoryGit errors that IsConflict recognizes.
func (s *SiteCheckout) Push(ctx context.Context) error {
	auth, err := authMethod(s.site.Auth)
	if err != nil {
		return fmt.Errorf("failed to setup authentication: %w", err)
	}

	err = s.repo.PushContext(ctx, &gogit.PushOptions{RemoteName: "origin", Auth: auth})
	if err == nil || err == gogit.NoErrAlreadyUpToDate {
		return nil
	}

	if isNonFastForward(err) {
		return errors.GitError("push rejected: site branch moved upstream").
			WithRetry(errors.RetryNever).
			WithContext("branch", s.site.Branch).
			WithContext("conflict", true).Build()
	}

	return errors.GitError("failed to push site repository").
		WithContext("cause", err.Error()).Build()
}

// ResetHard discards all local modifications and commits not on origin's
// branch tip, leaving the checkout clean for the next run.
func (s *SiteCheckout) ResetHard() error {
	ref, err := s.repo.Reference(plumbing.NewRemoteReferenceName("origin", s.site.Branch), true)
	if err != nil {
		return fmt.Errorf("failed to resolve origin/%s: %w", s.site.Branch, err)
	}
	if err := s.worktree.Reset(&gogit.ResetOptions{Mode: gogit.HardReset, Commit: ref.Hash()}); err != nil {
		return fmt.Errorf("failed to reset worktree: %w", err)
	}
	return nil
}

// IsConflict reports whether an error represents a push conflict.
func IsConflict(err error) bool {
	classified, ok := errors.AsClassified(err)
	if !ok {
		return false
	}
	v, _ := classified.Context().Get("conflict")
	b, _ := v.(bool)
	return b
}

func isNonFastForward(err error) bool {
	if err == nil {
		return false
	}
	if err == transport.ErrAuthenticationRequired {
		return false
	}
	return strings.Contains(err.Error(), "non-fast-forward")
}
