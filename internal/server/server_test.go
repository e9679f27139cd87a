package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swsmreport/internal/config"
	"swsmreport/internal/observability"
)

func newTestServer(t *testing.T, runLog bool) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Data.DataDir = t.TempDir()
	cfg.Data.RunLog = runLog

	metrics, reg := observability.NewMetricsForTesting()
	s, err := NewServer(cfg, Options{Metrics: metrics, Gatherer: reg})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestServer_Routes(t *testing.T) {
	s := newTestServer(t, true)
	require.NotNil(t, s.GetStore())

	cases := []struct {
		path     string
		status   int
		contains string
	}{
		{"/healthz", http.StatusOK, "healthy"},
		{"/readyz", http.StatusOK, "ready"},
		{"/api/status", http.StatusOK, "defaultThreshold"},
		{"/metrics", http.StatusOK, "swsm_downloads_pending"},
		{"/", http.StatusOK, "SWSM Daily Water Report"},
		{"/some/page", http.StatusOK, "<form"},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			w := get(s, tc.path)
			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), tc.contains)
		})
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	s := newTestServer(t, false)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/report", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_NoRunLog(t *testing.T) {
	s := newTestServer(t, false)
	assert.Nil(t, s.GetStore())
	assert.Equal(t, http.StatusOK, get(s, "/readyz").Code)
	assert.Equal(t, ":20262", s.Addr())

	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
