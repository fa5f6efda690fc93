package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsync/internal/history"
)

func TestAdmin_Healthz(t *testing.T) {
	s := NewAdminServer(":0", webhookConfig(), history.NoopStore{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAdmin_StatusReportsLastRun(t *testing.T) {
	store, err := history.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.RecordRun(context.Background(), history.Run{
		ID: "run-1", Source: "go", Trigger: "webhook",
		Commit: "deadbeefcafe", SiteCommit: "feedface", Outcome: "success",
		FilesWritten: 2, StartedAt: time.Now(), Duration: 3 * time.Second,
	}))

	s := NewAdminServer(":0", webhookConfig(), store, nil)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var status StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Len(t, status.Sources, 1)
	require.Equal(t, "go", status.Sources[0].Name)
	require.NotNil(t, status.Sources[0].LastRun)
	require.Equal(t, "success", status.Sources[0].LastRun.Outcome)
	require.Equal(t, "deadbeefcafe", status.Sources[0].LastRun.Commit)
	require.EqualValues(t, 3000, status.Sources[0].LastRun.DurationMS)
}

func TestAdmin_StatusWithoutRuns(t *testing.T) {
	s := NewAdminServer(":0", webhookConfig(), history.NoopStore{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var status StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Len(t, status.Sources, 1)
	require.Nil(t, status.Sources[0].LastRun)
}
