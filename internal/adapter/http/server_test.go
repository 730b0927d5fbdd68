package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/isd-archive-fetch/internal/adapter/http"
	"github.com/couchcryptid/isd-archive-fetch/internal/domain"
)

type mockBatch struct {
	readyErr error
	results  []domain.YearResult
}

func (m *mockBatch) CheckReadiness(_ context.Context) error { return m.readyErr }
func (m *mockBatch) Snapshot() []domain.YearResult          { return m.results }

func newTestServer(batch *mockBatch) *httpadapter.Server {
	return httpadapter.NewServer(":0", batch, slog.Default())
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(&mockBatch{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(&mockBatch{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(&mockBatch{readyErr: fmt.Errorf("no year has been processed yet")})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
}

func TestProgressReportsYears(t *testing.T) {
	batch := &mockBatch{results: []domain.YearResult{
		{Year: 2023, Succeeded: true, Stage: domain.StageDone},
		{Year: 2024, Succeeded: false, Stage: domain.StageDownloading, Error: "exhausted"},
	}}
	srv := newTestServer(batch)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/progress", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Processed int                 `json:"processed"`
		Failed    int                 `json:"failed"`
		Years     []domain.YearResult `json:"years"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Processed)
	assert.Equal(t, 1, body.Failed)
	require.Len(t, body.Years, 2)
	assert.Equal(t, 2023, body.Years[0].Year)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&mockBatch{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
