package httpadapter_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/ipc-forecast/internal/adapter/httpadapter"
	"github.com/couchcryptid/ipc-forecast/internal/domain"
	"github.com/couchcryptid/ipc-forecast/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockStatus struct {
	status *pipeline.RunStatus
}

func (m *mockStatus) LastRun() (pipeline.RunStatus, bool) {
	if m.status == nil {
		return pipeline.RunStatus{}, false
	}
	return *m.status, true
}

func newTestServer(readyErr error, status *pipeline.RunStatus) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, &mockStatus{status: status}, slog.Default())
}

func serve(srv *httpadapter.Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := serve(newTestServer(nil, nil), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := serve(newTestServer(nil, nil), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := serve(newTestServer(fmt.Errorf("pipeline has not completed a run yet"), nil), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusBeforeFirstRun(t *testing.T) {
	rec := serve(newTestServer(nil, nil), "/status")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestStatusAfterRun(t *testing.T) {
	finished := time.Date(2024, 11, 2, 8, 30, 0, 0, time.UTC)
	rec := serve(newTestServer(nil, &pipeline.RunStatus{
		RunID:      "run-9",
		StartedAt:  finished.Add(-30 * time.Minute),
		FinishedAt: finished,
		Rows:       118,
		States:     map[domain.DistrictState]int{domain.StateDone: 110, domain.StateFailed: 8, domain.StateSkipped: 14},
	}), "/status")

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-9", body["run_id"])
	assert.InDelta(t, 118, body["rows"], 0)
	assert.Equal(t, "2024-11-02T08:30:00Z", body["finished_at"])
	assert.Equal(t, map[string]any{"DONE": 110.0, "FAILED": 8.0, "SKIPPED": 14.0}, body["states"])
	assert.Equal(t, false, body["cancelled"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(newTestServer(nil, nil), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
