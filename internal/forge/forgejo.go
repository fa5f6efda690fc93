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

// Forgejo implements Provider for Forgejo and Gitea instances.
type Forgejo struct{}

func (Forgejo) Type() config.ForgeType  { return config.ForgeForgejo }
func (Forgejo) EventHeader() string     { return "X-Forgejo-Event" }
func (Forgejo) SignatureHeader() string { return "X-Forgejo-Signature" }

// ValidateSignature checks the Gitea-style HMAC signature. Newer instances
// send a GitHub-compatible sha256=<hex>; older ones send a bare SHA1 HMAC.
func (Forgejo) ValidateSignature(payload []byte, signature, secret string) bool {
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
	// Forgejo defaults to an unprefixed SHA256 HMAC in the signature header.
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal([]byte(signature), []byte(hex.EncodeToString(mac.Sum(nil))))
}

type forgejoPushPayload struct {
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

// ParsePush decodes a Forgejo push event payload.
func (Forgejo) ParsePush(payload []byte) (*PushEvent, error) {
	var p forgejoPushPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode forgejo push event: %w", err)
	}
	if p.Repository.FullName == "" {
		return nil, fmt.Errorf("forgejo push event missing repository")
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

// EditURL returns the Forgejo edit URL for a file.
func (Forgejo) EditURL(baseURL, fullName, branch, filePath string) string {
	return fmt.Sprintf("%s/%s/_edit/%s/%s", strings.TrimSuffix(baseURL, "/"), fullName, branch, filePath)
}
