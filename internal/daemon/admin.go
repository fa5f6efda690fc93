package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"git.home.luguber.info/inful/docsync/internal/config"
	"git.home.luguber.info/inful/docsync/internal/history"
	"git.home.luguber.info/inful/docsync/internal/metrics"
	"git.home.luguber.info/inful/docsync/internal/version"
)

// AdminServer exposes health, status, and metrics endpoints on a separate
// listener, so the webhook port stays the only thing reachable from forges.
type AdminServer struct {
	addr    string
	store   history.Store
	started time.Time

	mu  sync.RWMutex
	cfg *config.Config

	server *http.Server
}

// SourceStatus is one source's entry in the status response.
type SourceStatus struct {
	Name        string     `json:"name"`
	Destination string     `json:"destination"`
	LastRun     *RunStatus `json:"last_run,omitempty"`
}

// RunStatus is the serialized form of a history run.
type RunStatus struct {
	RunID        string    `json:"run_id"`
	Trigger      string    `json:"trigger"`
	Commit       string    `json:"commit"`
	SiteCommit   string    `json:"site_commit,omitempty"`
	Outcome      string    `json:"outcome"`
	FilesWritten int       `json:"files_written"`
	FilesDeleted int       `json:"files_deleted"`
	StartedAt    time.Time `json:"started_at"`
	DurationMS   int64     `json:"duration_ms"`
	Error        string    `json:"error,omitempty"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Version string         `json:"version"`
	Uptime  string         `json:"uptime"`
	Sources []SourceStatus `json:"sources"`
}

// NewAdminServer creates the admin listener. A nil prometheus recorder
// leaves /metrics unregistered.
func NewAdminServer(addr string, cfg *config.Config, store history.Store, prom *metrics.PrometheusRecorder) *AdminServer {
	s := &AdminServer{addr: addr, cfg: cfg, store: store, started: time.Now()}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /status", s.handleStatus)
	if prom != nil {
		mux.Handle("GET /metrics", prom.Handler())
	}

	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// SwapConfig replaces the configuration after a reload.
func (s *AdminServer) SwapConfig(cfg *config.Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *AdminServer) config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Start runs the listener until it fails or Shutdown is called.
func (s *AdminServer) Start() error {
	slog.Info("Admin server listening", "addr", s.addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the listener gracefully.
func (s *AdminServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *AdminServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *AdminServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	cfg := s.config()
	resp := StatusResponse{
		Version: version.Version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	}

	for _, src := range cfg.Sources {
		status := SourceStatus{Name: src.Name, Destination: src.Destination}
		if last, err := s.store.LastRun(r.Context(), src.Name); err == nil && last != nil {
			status.LastRun = &RunStatus{
				RunID:        last.ID,
				Trigger:      last.Trigger,
				Commit:       last.Commit,
				SiteCommit:   last.SiteCommit,
				Outcome:      last.Outcome,
				FilesWritten: last.FilesWritten,
				FilesDeleted: last.FilesDeleted,
				StartedAt:    last.StartedAt,
				DurationMS:   last.Duration.Milliseconds(),
				Error:        last.Error,
			}
		}
		resp.Sources = append(resp.Sources, status)
	}

	writeJSON(w, http.StatusOK, resp)
}
