package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cisco7507/LangId-mr/pkg/audio"
	"github.com/cisco7507/LangId-mr/pkg/cluster"
	"github.com/cisco7507/LangId-mr/pkg/gate"
	"github.com/cisco7507/LangId-mr/pkg/log"
	"github.com/cisco7507/LangId-mr/pkg/metrics"
	"github.com/cisco7507/LangId-mr/pkg/storage"
	"github.com/cisco7507/LangId-mr/pkg/translate"
	"github.com/cisco7507/LangId-mr/pkg/types"
)

// jobView is the job representation served on listing and status endpoints.
type jobView struct {
	JobID            string    `json:"job_id"`
	Status           string    `json:"status"`
	Progress         int       `json:"progress"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	Attempts         int       `json:"attempts"`
	Filename         string    `json:"filename,omitempty"`
	OriginalFilename string    `json:"original_filename,omitempty"`
	Language         *string   `json:"language"`
	Probability      *float64  `json:"probability"`
	Error            string    `json:"error,omitempty"`
}

func buildJobView(job *types.Job) jobView {
	v := jobView{
		JobID:            job.ID,
		Status:           string(job.Status),
		Progress:         job.Progress,
		CreatedAt:        job.CreatedAt,
		UpdatedAt:        job.UpdatedAt,
		Attempts:         job.Attempts,
		OriginalFilename: job.OriginalFilename,
		Error:            job.Error,
	}
	if job.InputPath != "" {
		v.Filename = filepath.Base(job.InputPath)
	}
	if job.ResultJSON != "" {
		var result types.JobResult
		if err := json.Unmarshal([]byte(job.ResultJSON), &result); err == nil {
			lang := result.Language
			v.Language = &lang
			v.Probability = result.Probability
		}
	}
	return v
}

func isInternal(r *http.Request) bool {
	return r.URL.Query().Get("internal") == "1"
}

// handleSubmit accepts a multipart upload and either creates the job
// locally or round-robins it across the cluster.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	targetLang, ok := s.parseTargetLang(w, r)
	if !ok {
		return
	}

	// The multipart framing adds a little overhead on top of the payload.
	r.Body = http.MaxBytesReader(w, r.Body, s.Config.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	s.submitUpload(w, r, header.Filename, raw, targetLang)
}

type submitByURLRequest struct {
	URL string `json:"url"`
}

// fetchClient bounds remote downloads; large media should still finish well
// inside this deadline at upload-size limits.
var fetchClient = &http.Client{Timeout: 60 * time.Second}

// handleSubmitByURL fetches a remote file and then behaves like a direct
// upload of it.
func (s *Server) handleSubmitByURL(w http.ResponseWriter, r *http.Request) {
	targetLang, ok := s.parseTargetLang(w, r)
	if !ok {
		return
	}

	var req submitByURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "body must be {\"url\": ...}")
		return
	}
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		writeError(w, http.StatusBadRequest, "invalid URL scheme")
		return
	}

	fetchReq, err := http.NewRequestWithContext(r.Context(), http.MethodGet, req.URL, nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid URL")
		return
	}
	resp, err := fetchClient.Do(fetchReq)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to download URL: %v", err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("URL answered %d", resp.StatusCode))
		return
	}
	if resp.ContentLength > s.Config.MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "remote file exceeds size limit")
		return
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, s.Config.MaxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to download URL")
		return
	}
	if int64(len(raw)) > s.Config.MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "remote file exceeds size limit")
		return
	}

	filename := filepath.Base(strings.SplitN(strings.TrimPrefix(strings.TrimPrefix(req.URL, "https://"), "http://"), "?", 2)[0])
	s.submitUpload(w, r, filename, raw, targetLang)
}

func (s *Server) parseTargetLang(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := r.URL.Query().Get("target_lang")
	if raw == "" {
		return "", true
	}
	lang := translate.NormalizeTarget(raw)
	if lang == "" || !s.Config.Gate.AllowedLangs[lang] {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported target_lang %q", raw))
		return "", false
	}
	return lang, true
}

// submitUpload validates the payload and dispatches it: internal requests
// and non-round-robin clusters create locally, everything else walks the
// scheduler targets.
func (s *Server) submitUpload(w http.ResponseWriter, r *http.Request, filename string, raw []byte, targetLang string) {
	if int64(len(raw)) > s.Config.MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
		return
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !s.Config.ExtAllowed(ext) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("extension %q not allowed", ext))
		return
	}

	if isInternal(r) || !s.Cluster.EnableRoundRobin {
		s.createLocalJob(w, r, filename, raw, targetLang)
		return
	}
	s.distribute(w, r, filename, raw, targetLang)
}

// distribute walks round-robin targets until one accepts the job. 503 and
// connection failures move on to the next target; any other upstream answer
// is surfaced verbatim. If every peer refuses, the job is created locally.
func (s *Server) distribute(w http.ResponseWriter, r *http.Request, filename string, raw []byte, targetLang string) {
	self := s.Cluster.SelfName
	attempts := len(s.Cluster.Nodes)
	for i := 0; i < attempts; i++ {
		target := s.Scheduler.NextTarget()
		if target == self {
			metrics.IncJobsSubmitted(self, self)
			s.createLocalJob(w, r, filename, raw, targetLang)
			return
		}

		body, contentType, err := encodeMultipart(filename, raw)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to encode upload")
			return
		}
		resp, err := s.Router.SubmitToNode(r.Context(), target, contentType, body, targetLang)
		if err != nil {
			log.WithComponent("api").Warn().Err(err).Str("target", target).Msg("submission proxy failed, trying next target")
			continue
		}
		if resp.StatusCode == http.StatusServiceUnavailable {
			resp.Body.Close()
			continue
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			metrics.IncJobsSubmitted(self, target)
		}
		cluster.Relay(w, resp)
		return
	}

	log.WithComponent("api").Warn().Msg("all round-robin targets refused, creating locally")
	metrics.IncJobsSubmitted(self, self)
	s.createLocalJob(w, r, filename, raw, targetLang)
}

// createLocalJob runs the optional strict gate, persists the payload under
// the storage root and enqueues the job.
func (s *Server) createLocalJob(w http.ResponseWriter, r *http.Request, filename string, raw []byte, targetLang string) {
	if s.Config.Gate.StrictReject {
		if ok := s.strictValidate(w, r, filename, raw); !ok {
			return
		}
	}

	jobID := s.Cluster.SelfName + "-" + uuid.NewString()
	suffix := ""
	if ext := strings.ToLower(filepath.Ext(filename)); s.Config.ExtAllowed(ext) {
		suffix = ext
	}

	if err := os.MkdirAll(s.Config.StorageDir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	stored := filepath.Join(s.Config.StorageDir, jobID+suffix)
	if err := os.WriteFile(stored, raw, 0o644); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	now := time.Now().UTC()
	job := &types.Job{
		ID:               jobID,
		Status:           types.JobStatusQueued,
		CreatedAt:        now,
		UpdatedAt:        now,
		InputPath:        stored,
		OriginalFilename: filename,
		TargetLang:       targetLang,
	}
	if err := s.Store.CreateJob(job); err != nil {
		os.Remove(stored)
		writeError(w, http.StatusInternalServerError, "failed to persist job")
		return
	}
	metrics.IncJobsOwned(s.Cluster.SelfName)
	log.WithJobID(jobID).Info().Str("file", filename).Msg("job enqueued")

	writeJSON(w, http.StatusOK, map[string]string{
		"job_id": jobID,
		"status": string(types.JobStatusQueued),
	})
}

// strictValidate decodes the upload and runs the gate synchronously,
// rejecting non-EN/FR audio before it ever reaches the queue.
func (s *Server) strictValidate(w http.ResponseWriter, r *http.Request, filename string, raw []byte) bool {
	tmp, err := os.CreateTemp("", "langid-strict-*"+filepath.Ext(filename))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "temp storage unavailable")
		return false
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		writeError(w, http.StatusInternalServerError, "temp storage unavailable")
		return false
	}
	tmp.Close()

	samples, err := s.Decoder.DecodeMono16k(r.Context(), tmp.Name())
	if err != nil {
		if errors.Is(err, audio.ErrInvalidAudio) {
			writeError(w, http.StatusBadRequest, "invalid audio")
			return false
		}
		writeError(w, http.StatusInternalServerError, "decode failed")
		return false
	}
	if _, err := s.Gate.Evaluate(r.Context(), samples); err != nil {
		if errors.Is(err, gate.ErrStrictReject) {
			writeError(w, http.StatusBadRequest, err.Error())
			return false
		}
		writeError(w, http.StatusInternalServerError, "language validation failed")
		return false
	}
	return true
}

func encodeMultipart(filename string, raw []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(raw); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.Store.ListJobs(storage.ListFilter{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	views := make([]jobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, buildJobView(job))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": views})
}

type deleteJobsRequest struct {
	JobIDs []string `json:"job_ids"`
}

func (s *Server) handleDeleteJobs(w http.ResponseWriter, r *http.Request) {
	var req deleteJobsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "body must be {\"job_ids\": [...]}")
		return
	}
	deleted, err := s.Store.DeleteJobs(req.JobIDs, s.Config.StorageDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !cluster.IsLocal(s.Cluster, id) && !isInternal(r) {
		s.Router.ProxyToOwner(w, r, id, "")
		return
	}
	job, err := s.Store.GetJob(id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, buildJobView(job))
}

func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !cluster.IsLocal(s.Cluster, id) && !isInternal(r) {
		s.Router.ProxyToOwner(w, r, id, "/result")
		return
	}
	job, err := s.Store.GetJob(id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if job.Status != types.JobStatusSucceeded {
		writeJSON(w, http.StatusConflict, map[string]string{
			"detail": "job not completed",
			"status": string(job.Status),
		})
		return
	}

	result := map[string]any{}
	if err := json.Unmarshal([]byte(job.ResultJSON), &result); err != nil {
		writeError(w, http.StatusInternalServerError, "stored result is unreadable")
		return
	}
	result["job_id"] = job.ID
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleJobAudio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !cluster.IsLocal(s.Cluster, id) && !isInternal(r) {
		s.Router.ProxyToOwner(w, r, id, "/audio")
		return
	}
	job, err := s.Store.GetJob(id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if job.InputPath == "" {
		writeError(w, http.StatusNotFound, "no audio stored for job")
		return
	}
	if _, err := os.Stat(job.InputPath); err != nil {
		writeError(w, http.StatusNotFound, "audio file missing")
		return
	}

	mimeType := ""
	if job.OriginalFilename != "" {
		mimeType = mime.TypeByExtension(filepath.Ext(job.OriginalFilename))
	}
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(job.InputPath))
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	dispName := job.OriginalFilename
	if dispName == "" {
		dispName = filepath.Base(job.InputPath)
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", dispName))
	http.ServeFile(w, r, job.InputPath)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !cluster.IsLocal(s.Cluster, id) && !isInternal(r) {
		s.Router.ProxyToOwner(w, r, id, "")
		return
	}
	deleted, err := s.Store.DeleteJobs([]string{id}, s.Config.StorageDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	if deleted == 0 {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

func (s *Server) handleAdminJobs(w http.ResponseWriter, r *http.Request) {
	filter := storage.ListFilter{}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = types.JobStatus(status)
	}
	if since := r.URL.Query().Get("since"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be ISO8601")
			return
		}
		filter.Since = ts
	}

	jobs, err := s.Store.ListJobs(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	views := make([]jobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, buildJobView(job))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": views})
}
