package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"git.home.luguber.info/inful/docsync/internal/config"
	"git.home.luguber.info/inful/docsync/internal/forge"
	"git.home.luguber.info/inful/docsync/internal/logfields"
	"git.home.luguber.info/inful/docsync/internal/metrics"
	syncpkg "git.home.luguber.info/inful/docsync/internal/sync"
)

// maxWebhookBody caps payload reads. Push payloads are small; anything
// larger is not a webhook we want to buffer.
const maxWebhookBody = 5 << 20

// WebhookServer receives push webhooks from forges and turns them into
// queued sync jobs.
type WebhookServer struct {
	addr     string
	queue    *Queue
	recorder metrics.Recorder

	mu  sync.RWMutex
	cfg *config.Config

	server *http.Server
}

// NewWebhookServer creates the webhook listener.
func NewWebhookServer(addr string, cfg *config.Config, queue *Queue, recorder metrics.Recorder) *WebhookServer {
	s := &WebhookServer{addr: addr, cfg: cfg, queue: queue, recorder: recorder}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /hooks/{forge}", s.handleHook)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// SwapConfig replaces the configuration after a reload.
func (s *WebhookServer) SwapConfig(cfg *config.Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *WebhookServer) config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Start runs the listener until it fails or Shutdown is called.
func (s *WebhookServer) Start() error {
	slog.Info("Webhook server listening", "addr", s.addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the listener gracefully.
func (s *WebhookServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *WebhookServer) handleHook(w http.ResponseWriter, r *http.Request) {
	forgeType := config.ForgeType(r.PathValue("forge"))
	provider, err := forge.ProviderFor(forgeType)
	if err != nil {
		s.reject(w, "", http.StatusNotFound, "unknown forge")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		s.reject(w, forgeType, http.StatusBadRequest, "unreadable payload")
		return
	}

	if !isPushEvent(forgeType, r.Header.Get(provider.EventHeader())) {
		s.ignore(w, "not a push event")
		return
	}

	// The payload is parsed before signature validation because the secret
	// is per-source: the repository name inside the payload selects it.
	// Nothing from the payload is acted on until the signature checks out.
	event, err := provider.ParsePush(payload)
	if err != nil {
		s.reject(w, forgeType, http.StatusBadRequest, "malformed push payload")
		return
	}

	cfg := s.config()
	src, ok := cfg.SourceByFullName(event.FullName)
	if !ok || src.Forge.Type != forgeType {
		s.reject(w, forgeType, http.StatusNotFound, "unknown repository")
		return
	}

	if src.Forge.WebhookSecret != "" {
		signature := r.Header.Get(provider.SignatureHeader())
		if !provider.ValidateSignature(payload, signature, src.Forge.WebhookSecret) {
			slog.Warn("Webhook signature validation failed",
				logfields.Source(src.Name), logfields.Forge(string(forgeType)))
			s.reject(w, forgeType, http.StatusUnauthorized, "invalid signature")
			return
		}
	} else {
		slog.Warn("Source has no webhook secret configured, accepting unsigned delivery",
			logfields.Source(src.Name))
	}

	if event.Branch != src.Branch {
		s.ignore(w, "push to untracked branch")
		return
	}
	if !event.TouchesMarkdownUnder(src.DocsRoot) {
		s.ignore(w, "no documentation changes")
		return
	}

	s.queue.Enqueue(Job{Source: src.Name, Trigger: syncpkg.TriggerWebhook, Commit: event.HeadSHA})
	s.recorder.IncWebhook(string(forgeType), true)

	slog.Info("Webhook accepted",
		logfields.Source(src.Name), logfields.Branch(event.Branch), logfields.Commit(shortSHA(event.HeadSHA)))

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "queued",
		"source": src.Name,
	})
}

func (s *WebhookServer) reject(w http.ResponseWriter, forgeType config.ForgeType, status int, reason string) {
	s.recorder.IncWebhook(string(forgeType), false)
	writeJSON(w, status, map[string]string{"status": "rejected", "reason": reason})
}

// ignore acknowledges a valid delivery that needs no sync.
func (s *WebhookServer) ignore(w http.ResponseWriter, reason string) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": reason})
}

// isPushEvent matches the per-forge event header value for pushes.
func isPushEvent(t config.ForgeType, value string) bool {
	switch t {
	case config.ForgeGitLab:
		return value == "Push Hook"
	default:
		return value == "push"
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
