package forge

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"git.home.luguber.info/inful/docsync/internal/config"
)

// GitLab implements Provider for gitlab.com and self-managed GitLab.
type GitLab struct{}

func (GitLab) Type() config.ForgeType  { return config.ForgeGitLab }
func (GitLab) EventHeader() string     { return "X-Gitlab-Event" }
func (GitLab) SignatureHeader() string { return "X-Gitlab-Token" }

// ValidateSignature compares the shared secret token. GitLab sends the
// configured secret verbatim rather than an HMAC of the payload.
func (GitLab) ValidateSignature(_ []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(signature), []byte(secret)) == 1
}

type gitlabPushPayload struct {
	ObjectKind  string `json:"object_kind"`
	Ref         string `json:"ref"`
	CheckoutSHA string `json:"checkout_sha"`
	After       string `json:"after"`
	Project     struct {
		PathWithNamespace string `json:"path_with_namespace"`
	} `json:"project"`
	Commits []struct {
		Added    []string `json:"added"`
		Modified []string `json:"modified"`
		Removed  []string `json:"removed"`
	} `json:"commits"`
}

// ParsePush decodes a GitLab push event payload.
func (GitLab) ParsePush(payload []byte) (*PushEvent, error) {
	var p gitlabPushPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode gitlab push event: %w", err)
	}
	if p.ObjectKind != "" && p.ObjectKind != "push" {
		return nil, fmt.Errorf("unexpected gitlab object_kind: %s", p.ObjectKind)
	}
	if p.Project.PathWithNamespace == "" {
		return nil, fmt.Errorf("gitlab push event missing project")
	}

	head := p.CheckoutSHA
	if head == "" {
		head = p.After
	}

	var changed []string
	for _, c := range p.Commits {
		changed = append(changed, c.Added...)
		changed = append(changed, c.Modified...)
		changed = append(changed, c.Removed...)
	}

	return &PushEvent{
		FullName:  p.Project.PathWithNamespace,
		Branch:    strings.TrimPrefix(p.Ref, "refs/heads/"),
		Ref:       p.Ref,
		HeadSHA:   head,
		Changed:   changed,
		Timestamp: time.Now(),
	}, nil
}

// EditURL returns the GitLab edit URL for a file.
func (GitLab) EditURL(baseURL, fullName, branch, filePath string) string {
	return fmt.Sprintf("%s/%s/-/edit/%s/%s", strings.TrimSuffix(baseURL, "/"), fullName, branch, filePath)
}
