// Package forge handles the provider-specific parts of upstream
// integration: webhook signature validation, push event parsing, and
// edit-URL construction for GitHub, GitLab, and Forgejo.
package forge

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/docsync/internal/config"
)

// PushEvent is the provider-neutral shape of a push webhook delivery.
type PushEvent struct {
	FullName  string    // owner/repo as the forge reports it
	Branch    string    // branch name extracted from the ref
	Ref       string    // raw ref (refs/heads/...)
	HeadSHA   string    // commit the push landed on
	Changed   []string  // union of added/modified/removed paths across commits
	Timestamp time.Time // delivery parse time
}

// TouchesMarkdownUnder reports whether any changed path is a markdown file
// under the given root. An empty commit list (for example a force push with
// no file details) counts as touching, since the safe answer is to sync.
func (e *PushEvent) TouchesMarkdownUnder(root string) bool {
	if len(e.Changed) == 0 {
		return true
	}
	for _, p := range e.Changed {
		if IsMarkdownPath(p) && isUnder(p, root) {
			return true
		}
	}
	return false
}

// Provider abstracts the per-forge webhook protocol.
type Provider interface {
	// Type returns the forge type this provider handles.
	Type() config.ForgeType
	// EventHeader names the HTTP header carrying the event type.
	EventHeader() string
	// SignatureHeader names the HTTP header carrying the payload signature.
	SignatureHeader() string
	// ValidateSignature checks the payload signature against the shared secret.
	ValidateSignature(payload []byte, signature, secret string) bool
	// ParsePush decodes a push event payload.
	ParsePush(payload []byte) (*PushEvent, error)
	// EditURL constructs the web UI edit URL for a file.
	EditURL(baseURL, fullName, branch, filePath string) string
}

// ProviderFor returns the Provider for a forge type.
func ProviderFor(t config.ForgeType) (Provider, error) {
	switch t {
	case config.ForgeGitHub:
		return GitHub{}, nil
	case config.ForgeGitLab:
		return GitLab{}, nil
	case config.ForgeForgejo:
		return Forgejo{}, nil
	default:
		return nil, fmt.Errorf("unsupported forge type: %s", t)
	}
}

// EditURL is a convenience wrapper resolving the provider first.
// Returns empty string if inputs are insufficient or the type is unknown.
func EditURL(t config.ForgeType, baseURL, fullName, branch, filePath string) string {
	if baseURL == "" || fullName == "" || branch == "" || filePath == "" {
		return ""
	}
	p, err := ProviderFor(t)
	if err != nil {
		return ""
	}
	return p.EditURL(baseURL, fullName, branch, filePath)
}
