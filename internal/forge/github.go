package forge

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"git.home.luguber.info/inful/docsync/internal/config"
)

// GitHub implements Provider for github.com and GitHub Enterprise.
type GitHub struct{}

func (GitHub) Type() config.ForgeType  { return config.ForgeGitHub }
func (GitHub) EventHeader() string     { return "X-GitHub-Event" }
func (GitHub) SignatureHeader() string { return "X-Hub-Signature-256" }

// ValidateSignature checks the HMAC payload signature.
// Preferred format is sha256=<hex>; sha1=<hex> is accepted for legacy hooks.
func (GitHub) ValidateSignature(payload []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	if expected, ok := strings.CutPrefix(signature, "sha256="); ok {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(payload)
		return hmac.Equal([]byte(expected), []byte(hex.EncodeToString(mac.Sum(nil))))
	}
	if expected, ok := strings.CutPrefix(signature, "sha1="); ok {
		mac := hmac.New(sha1.New, []byte(secret))
		mac.Write(payload)
		return hmac.Equal([]byte(expected), []byte(hex.EncodeToString(mac.Sum(nil))))
	}
	return false
}

type githubPushPayload struct {
	Ref        string `json:"ref"`
	After      string `json:"after"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Commits []struct {
		Added    []string `json:"added"`
		Modified []string `json:"modified"`
		Removed  []string `json:"removed"`
	} `json:"commits"`
	HeadCommit struct {
		ID string `json:"id"`
	} `json:"head_commit"`
}

// ParsePush decodes a GitHub push event payload.
func (GitHub) ParsePush(payload []byte) (*PushEvent, error) {
	var p githubPushPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode github push event: %w", err)
	}
	if p.Repository.FullName == "" {
		return nil, fmt.Errorf("github push event missing repository")
	}

	head := p.HeadCommit.ID
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
		FullName:  p.Repository.FullName,
		Branch:    strings.TrimPrefix(p.Ref, "refs/heads/"),
		Ref:       p.Ref,
		HeadSHA:   head,
		Changed:   changed,
		Timestamp: time.Now(),
	}, nil
}

// EditURL returns the GitHub edit URL for a file.
func (GitHub) EditURL(baseURL, fullName, branch, filePath string) string {
	return fmt.Sprintf("%s/%s/edit/%s/%s", strings.TrimSuffix(baseURL, "/"), fullName, branch, filePath)
}
