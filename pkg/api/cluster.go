package api

import (
	"net/http"
	"strconv"

	"github.com/cisco7507/LangId-mr/pkg/metrics"
)

// handleClusterJobs merges job listings from every node.
func (s *Server) handleClusterJobs(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	since := r.URL.Query().Get("since")
	limit := -1
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	jobs, err := s.Aggregator.AggregateJobs(r.Context(), status, since, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "aggregation failed")
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleClusterNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"nodes": s.Health.Snapshot(),
	})
}

func (s *Server) handleLocalMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, metrics.Snapshot())
}

func (s *Server) handleMetricsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.Aggregator.AggregateMetrics(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "aggregation failed")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
