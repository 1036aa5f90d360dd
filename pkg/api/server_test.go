package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cisco7507/LangId-mr/pkg/asr"
	"github.com/cisco7507/LangId-mr/pkg/asr/mock"
	"github.com/cisco7507/LangId-mr/pkg/cluster"
	"github.com/cisco7507/LangId-mr/pkg/config"
	"github.com/cisco7507/LangId-mr/pkg/gate"
	"github.com/cisco7507/LangId-mr/pkg/metrics"
	"github.com/cisco7507/LangId-mr/pkg/storage"
	"github.com/cisco7507/LangId-mr/pkg/types"
)

type fakeDecoder struct {
	samples []float32
	err     error
}

func (d *fakeDecoder) DecodeMono16k(ctx context.Context, path string) ([]float32, error) {
	return d.samples, d.err
}

func standaloneCluster() *cluster.Config {
	return &cluster.Config{
		SelfName:                      "node-a",
		Nodes:                         map[string]string{"node-a": "http://localhost:8000"},
		HealthCheckIntervalSeconds:    5,
		InternalRequestTimeoutSeconds: 1,
	}
}

func newTestServer(t *testing.T, clCfg *cluster.Config, engine asr.Engine, mutate func(*config.Config)) (*Server, storage.Store) {
	t.Helper()
	metrics.ResetForTest()

	cfg := config.Load()
	cfg.StorageDir = t.TempDir()
	if mutate != nil {
		mutate(cfg)
	}

	store, err := storage.NewBoltStore(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	if engine == nil {
		engine = mock.New()
	}
	g := gate.New(engine, cfg.Gate, cfg.ProbeSeconds, nil)
	health := cluster.NewHealthMonitor(clCfg)

	srv := NewServer(Deps{
		Config:     cfg,
		Cluster:    clCfg,
		Store:      store,
		Router:     cluster.NewRouter(clCfg),
		Scheduler:  cluster.NewScheduler(clCfg),
		Health:     health,
		Aggregator: cluster.NewAggregator(clCfg, health),
		Gate:       g,
		Decoder:    &fakeDecoder{samples: make([]float32, 16000*5)},
	})
	return srv, store
}

func uploadRequest(t *testing.T, target, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSubmitCreatesLocalJob(t *testing.T) {
	srv, store := newTestServer(t, standaloneCluster(), nil, nil)
	handler := srv.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, uploadRequest(t, "/jobs", "clip.wav", []byte("RIFFdata")))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	jobID, _ := body["job_id"].(string)
	assert.True(t, strings.HasPrefix(jobID, "node-a-"), "job id carries the owner prefix: %s", jobID)
	assert.Equal(t, "queued", body["status"])

	job, err := store.GetJob(jobID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusQueued, job.Status)
	assert.Equal(t, "clip.wav", job.OriginalFilename)
	assert.Equal(t, ".wav", filepath.Ext(job.InputPath))
}

func TestSubmitRejectsUnknownExtension(t *testing.T) {
	srv, _ := newTestServer(t, standaloneCluster(), nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, uploadRequest(t, "/jobs", "clip.txt", []byte("hi")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitRejectsOversizeUpload(t *testing.T) {
	srv, _ := newTestServer(t, standaloneCluster(), nil, func(cfg *config.Config) {
		cfg.MaxUploadBytes = 4
	})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, uploadRequest(t, "/jobs", "clip.wav", []byte("way past the limit")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestSubmitTargetLang(t *testing.T) {
	srv, store := newTestServer(t, standaloneCluster(), nil, nil)
	handler := srv.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, uploadRequest(t, "/jobs?target_lang=de", "clip.wav", []byte("x")))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unsupported target language")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, uploadRequest(t, "/jobs?target_lang=fra", "clip.wav", []byte("x")))
	require.Equal(t, http.StatusOK, rec.Code)

	job, err := store.GetJob(decodeBody(t, rec)["job_id"].(string))
	require.NoError(t, err)
	assert.Equal(t, "fr", job.TargetLang, "ISO code normalized to the short form")
}

func TestSubmitStrictRejectAtIngress(t *testing.T) {
	engine := mock.New(
		mock.Text("es", 0.42, "hola que tal amigos como estan ustedes hoy mismo bien"),
		mock.Text("es", 0.45, "hola que tal amigos como estan ustedes hoy mismo bien"))
	srv, store := newTestServer(t, standaloneCluster(), engine, func(cfg *config.Config) {
		cfg.Gate.StrictReject = true
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, uploadRequest(t, "/jobs", "clip.wav", []byte("x")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	jobs, err := store.ListJobs(storage.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, jobs, "rejected upload never reaches the queue")
}

func TestRoundRobinDistribution(t *testing.T) {
	var peerHits int
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("internal"), "forwarded submissions carry the recursion guard")
		peerHits++
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"job_id":"node-b-remote","status":"queued"}`)
	}))
	defer peer.Close()

	clCfg := &cluster.Config{
		SelfName: "node-a",
		Nodes: map[string]string{
			"node-a": "http://localhost:8000",
			"node-b": peer.URL,
		},
		InternalRequestTimeoutSeconds: 2,
		EnableRoundRobin:              true,
		RRStateFile:                   filepath.Join(t.TempDir(), "rr.json"),
	}
	srv, store := newTestServer(t, clCfg, nil, nil)
	handler := srv.Handler()

	for i := 0; i < 4; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, uploadRequest(t, "/jobs", "clip.wav", []byte("x")))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	jobs, err := store.ListJobs(storage.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, jobs, 2, "alternating targets leave half the jobs local")
	assert.Equal(t, 2, peerHits)
}

func TestRoundRobinFallsBackWhenPeerDown(t *testing.T) {
	clCfg := &cluster.Config{
		SelfName: "node-b", // sorted order starts at node-a, which is down
		Nodes: map[string]string{
			"node-a": "http://127.0.0.1:1",
			"node-b": "http://localhost:8000",
		},
		InternalRequestTimeoutSeconds: 1,
		EnableRoundRobin:              true,
	}
	srv, store := newTestServer(t, clCfg, nil, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, uploadRequest(t, "/jobs", "clip.wav", []byte("x")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	jobs, err := store.ListJobs(storage.ListFilter{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.True(t, strings.HasPrefix(jobs[0].ID, "node-b-"))
}

func TestSubmitInternalSkipsDistribution(t *testing.T) {
	clCfg := &cluster.Config{
		SelfName: "node-a",
		Nodes: map[string]string{
			"node-a": "http://localhost:8000",
			"node-b": "http://127.0.0.1:1",
		},
		InternalRequestTimeoutSeconds: 1,
		EnableRoundRobin:              true,
	}
	srv, store := newTestServer(t, clCfg, nil, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, uploadRequest(t, "/jobs?internal=1", "clip.wav", []byte("x")))
	require.Equal(t, http.StatusOK, rec.Code)

	jobs, err := store.ListJobs(storage.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, jobs, 1, "internal submissions never hop again")
}

func TestSubmitByURL(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("RIFFaudio"))
	}))
	defer origin.Close()

	srv, store := newTestServer(t, standaloneCluster(), nil, nil)
	body := strings.NewReader(`{"url":"` + origin.URL + `/media/clip.wav"}`)
	req := httptest.NewRequest(http.MethodPost, "/jobs/by-url", body)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	job, err := store.GetJob(decodeBody(t, rec)["job_id"].(string))
	require.NoError(t, err)
	assert.Equal(t, "clip.wav", job.OriginalFilename)
}

func TestSubmitByURLRejectsBadScheme(t *testing.T) {
	srv, _ := newTestServer(t, standaloneCluster(), nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/jobs/by-url",
		strings.NewReader(`{"url":"ftp://example.com/a.wav"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func seedJob(t *testing.T, store storage.Store, id string, status types.JobStatus, resultJSON string) *types.Job {
	t.Helper()
	now := time.Now().UTC()
	job := &types.Job{
		ID:               id,
		Status:           status,
		CreatedAt:        now.Add(-time.Minute),
		UpdatedAt:        now,
		InputPath:        "/data/" + id + ".wav",
		OriginalFilename: "clip.wav",
		ResultJSON:       resultJSON,
	}
	require.NoError(t, store.CreateJob(job))
	return job
}

func TestJobStatusLocal(t *testing.T) {
	srv, store := newTestServer(t, standaloneCluster(), nil, nil)
	seedJob(t, store, "node-a-42", types.JobStatusRunning, "")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/node-a-42", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "node-a-42", body["job_id"])
	assert.Equal(t, "running", body["status"])
}

func TestJobStatusNotFound(t *testing.T) {
	srv, _ := newTestServer(t, standaloneCluster(), nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/node-a-missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobResultConflictBeforeCompletion(t *testing.T) {
	srv, store := newTestServer(t, standaloneCluster(), nil, nil)
	seedJob(t, store, "node-a-43", types.JobStatusRunning, "")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/node-a-43/result", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "running", decodeBody(t, rec)["status"])
}

func TestJobResultIncludesJobID(t *testing.T) {
	srv, store := newTestServer(t, standaloneCluster(), nil, nil)
	seedJob(t, store, "node-a-44", types.JobStatusSucceeded,
		`{"language":"en","probability":0.91,"gate_decision":"accepted_high_conf","processing_ms":1200}`)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/node-a-44/result", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "node-a-44", body["job_id"])
	assert.Equal(t, "en", body["language"])
	assert.Equal(t, "accepted_high_conf", body["gate_decision"])
}

func TestDeleteJobsBulk(t *testing.T) {
	srv, store := newTestServer(t, standaloneCluster(), nil, nil)
	seedJob(t, store, "node-a-45", types.JobStatusSucceeded, "{}")
	seedJob(t, store, "node-a-46", types.JobStatusFailed, "")

	req := httptest.NewRequest(http.MethodDelete, "/jobs",
		strings.NewReader(`{"job_ids":["node-a-45","node-a-46","node-a-nope"]}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeBody(t, rec)["deleted"])
}

func TestDeleteSingleJobNotFound(t *testing.T) {
	srv, _ := newTestServer(t, standaloneCluster(), nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/jobs/node-a-nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminJobsStatusFilter(t *testing.T) {
	srv, store := newTestServer(t, standaloneCluster(), nil, nil)
	seedJob(t, store, "node-a-47", types.JobStatusSucceeded, "{}")
	seedJob(t, store, "node-a-48", types.JobStatusQueued, "")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/jobs?status=queued", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Jobs []jobView `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, "node-a-48", body.Jobs[0].JobID)
}

func TestAdminJobsBadSince(t *testing.T) {
	srv, _ := newTestServer(t, standaloneCluster(), nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/jobs?since=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, standaloneCluster(), nil, nil)
	handler := srv.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "node-a", decodeBody(t, rec)["node"])
}
