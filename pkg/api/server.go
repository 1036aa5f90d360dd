package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/cisco7507/LangId-mr/pkg/audio"
	"github.com/cisco7507/LangId-mr/pkg/cluster"
	"github.com/cisco7507/LangId-mr/pkg/config"
	"github.com/cisco7507/LangId-mr/pkg/gate"
	"github.com/cisco7507/LangId-mr/pkg/log"
	"github.com/cisco7507/LangId-mr/pkg/metrics"
	"github.com/cisco7507/LangId-mr/pkg/storage"
)

// Deps carries everything the HTTP surface needs. The gate is only invoked
// at ingress when strict mode is on; decoder likewise.
type Deps struct {
	Config     *config.Config
	Cluster    *cluster.Config
	Store      storage.Store
	Router     *cluster.Router
	Scheduler  *cluster.Scheduler
	Health     *cluster.HealthMonitor
	Aggregator *cluster.Aggregator
	Gate       *gate.Gate
	Decoder    audio.Decoder
}

// Server is the HTTP surface of a single node.
type Server struct {
	Deps
	httpServer *http.Server
}

// NewServer builds the server; call Start to begin serving.
func NewServer(deps Deps) *Server {
	return &Server{Deps: deps}
}

// Handler assembles the chi router with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/health", s.handleHealth)

	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Method(http.MethodGet, "/metrics/prometheus", metrics.Handler())
	r.Get("/metrics/json", s.handleMetricsJSON)
	r.Get("/metrics/gate-paths", s.handleGatePaths)

	r.Post("/jobs", s.handleSubmit)
	r.Post("/jobs/by-url", s.handleSubmitByURL)
	r.Get("/jobs", s.handleListJobs)
	r.Delete("/jobs", s.handleDeleteJobs)
	r.Get("/jobs/{id}", s.handleJobStatus)
	r.Get("/jobs/{id}/result", s.handleJobResult)
	r.Get("/jobs/{id}/audio", s.handleJobAudio)
	r.Delete("/jobs/{id}", s.handleDeleteJob)

	r.Get("/admin/jobs", s.handleAdminJobs)

	r.Get("/cluster/jobs", s.handleClusterJobs)
	r.Get("/cluster/nodes", s.handleClusterNodes)
	r.Get("/cluster/local-metrics", s.handleLocalMetrics)
	r.Get("/cluster/metrics-summary", s.handleMetricsSummary)

	return r
}

// Start serves until the listener fails or Stop is called.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.WithComponent("api").Info().Str("addr", addr).Msg("http server listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the server down, letting in-flight requests finish.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"node":   s.Cluster.SelfName,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
