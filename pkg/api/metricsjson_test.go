package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cisco7507/LangId-mr/pkg/types"
)

func TestMetricsJSONShape(t *testing.T) {
	srv, store := newTestServer(t, standaloneCluster(), nil, nil)
	seedJob(t, store, "node-a-60", types.JobStatusQueued, "")
	seedJob(t, store, "node-a-61", types.JobStatusRunning, "")
	seedJob(t, store, "node-a-62", types.JobStatusSucceeded, `{"language":"en","processing_ms":2000}`)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics/json", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Jobs struct {
			Total             int            `json:"total"`
			ByStatus          map[string]int `json:"by_status"`
			Running           int            `json:"running"`
			Queued            int            `json:"queued"`
			RecentCompleted5m int            `json:"recent_completed_5m"`
		} `json:"jobs"`
		Workers struct {
			Configured int `json:"configured"`
		} `json:"workers"`
		Timing struct {
			AvgProcessingSecondsLast50 float64 `json:"avg_processing_seconds_last_50"`
		} `json:"timing"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, 3, body.Jobs.Total)
	assert.Equal(t, 1, body.Jobs.Running)
	assert.Equal(t, 1, body.Jobs.Queued)
	assert.Equal(t, 1, body.Jobs.ByStatus["succeeded"])
	assert.Equal(t, 1, body.Jobs.RecentCompleted5m)
	assert.Greater(t, body.Workers.Configured, 0)
	assert.InDelta(t, 2.0, body.Timing.AvgProcessingSecondsLast50, 0.001,
		"average prefers the measured processing_ms")
}

func TestMetricsJSONEmptyQueue(t *testing.T) {
	srv, _ := newTestServer(t, standaloneCluster(), nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics/json", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	jobs := body["jobs"].(map[string]any)
	assert.Equal(t, float64(0), jobs["total"])
	timing := body["timing"].(map[string]any)
	assert.Equal(t, float64(0), timing["avg_processing_seconds_last_50"])
}

func TestGatePathsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, standaloneCluster(), nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics/gate-paths", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Contains(t, body, "gate_paths")
	assert.Contains(t, body, "percentages")
	assert.Contains(t, body, "total")
}

func TestPrometheusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, standaloneCluster(), nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "langid_")
}
