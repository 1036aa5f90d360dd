package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cisco7507/LangId-mr/pkg/metrics"
	"github.com/cisco7507/LangId-mr/pkg/storage"
	"github.com/cisco7507/LangId-mr/pkg/types"
)

const timingSampleSize = 50

// handleMetricsJSON serves the lightweight dashboard view of this node's
// queue: counts by status plus average processing time over the most recent
// completed jobs.
func (s *Server) handleMetricsJSON(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.Store.ListJobs(storage.ListFilter{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	byStatus := map[string]int{}
	recent5m := 0
	cutoff := time.Now().UTC().Add(-5 * time.Minute)

	var durations []float64
	for _, job := range jobs {
		byStatus[string(job.Status)]++
		if job.Status != types.JobStatusSucceeded {
			continue
		}
		if job.UpdatedAt.After(cutoff) {
			recent5m++
		}
		if len(durations) < timingSampleSize {
			durations = append(durations, processingSeconds(job))
		}
	}

	avg := 0.0
	if len(durations) > 0 {
		sum := 0.0
		for _, d := range durations {
			sum += d
		}
		avg = sum / float64(len(durations))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"jobs": map[string]any{
			"total":               len(jobs),
			"by_status":           byStatus,
			"running":             byStatus[string(types.JobStatusRunning)],
			"queued":              byStatus[string(types.JobStatusQueued)],
			"recent_completed_5m": recent5m,
		},
		"workers": map[string]any{
			"configured": s.Config.MaxWorkers,
		},
		"timing": map[string]any{
			"avg_processing_seconds_last_50": avg,
		},
	})
}

// processingSeconds prefers the measured processing_ms from the stored
// result and falls back to the persisted timestamps.
func processingSeconds(job *types.Job) float64 {
	if job.ResultJSON != "" {
		var result types.JobResult
		if err := json.Unmarshal([]byte(job.ResultJSON), &result); err == nil && result.ProcessingMS > 0 {
			return float64(result.ProcessingMS) / 1000.0
		}
	}
	return job.UpdatedAt.Sub(job.CreatedAt).Seconds()
}

// handleGatePaths reports how often each gate outcome fired on this node.
func (s *Server) handleGatePaths(w http.ResponseWriter, r *http.Request) {
	paths := metrics.Snapshot().GatePaths

	var total int64
	for _, n := range paths {
		total += n
	}
	percentages := make(map[string]float64, len(paths))
	for path, n := range paths {
		if total > 0 {
			percentages[path] = 100.0 * float64(n) / float64(total)
		} else {
			percentages[path] = 0
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"gate_paths":  paths,
		"percentages": percentages,
		"total":       total,
	})
}
