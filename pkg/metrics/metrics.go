package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Job metrics
	JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "langid_jobs_total",
			Help: "Total number of jobs processed by terminal status",
		},
		[]string{"status"},
	)

	JobsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "langid_jobs_running",
			Help: "Number of jobs currently running",
		},
	)

	ActiveWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "langid_active_workers",
			Help: "Number of workers currently polling or processing",
		},
	)

	ProcessingSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "langid_processing_seconds",
			Help:    "Time spent processing a job",
			Buckets: prometheus.DefBuckets,
		},
	)

	AudioSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "langid_audio_seconds",
			Help:    "Duration of audio processed",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	// Gate metrics
	AutodetectAccept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "langid_autodetect_accept",
			Help: "Number of times the gate accepted an autodetected language",
		},
	)

	AutodetectReject = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "langid_autodetect_reject",
			Help: "Number of times the gate rejected an autodetected language",
		},
	)

	FallbackUsed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "langid_fallback_used",
			Help: "Number of times scoring fallback forced a language choice",
		},
	)

	GatePathDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "langid_gate_path_decisions_total",
			Help: "Number of jobs finalized by gate path decision",
		},
		[]string{"gate_path", "gate_decision", "pipeline_mode", "language", "music_only"},
	)

	// Translation metrics
	TranslateEnToFr = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "langid_translate_en2fr",
			Help: "Number of translations from English to French",
		},
	)

	TranslateFrToEn = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "langid_translate_fr2en",
			Help: "Number of translations from French to English",
		},
	)

	// Cluster metrics
	JobsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "langid_jobs_submitted_total",
			Help: "Total jobs submitted via POST /jobs",
		},
		[]string{"ingress_node", "target_node"},
	)

	JobsOwned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "langid_jobs_owned_total",
			Help: "Total jobs owned/created locally",
		},
		[]string{"owner_node"},
	)

	JobsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "langid_jobs_active",
			Help: "Number of currently active jobs",
		},
		[]string{"owner_node"},
	)

	NodeUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "langid_node_up",
			Help: "Node up status (1=up, 0=down)",
		},
		[]string{"node"},
	)

	NodeLastHealth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "langid_node_last_health_timestamp_seconds",
			Help: "Timestamp of last successful health check",
		},
		[]string{"node"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "langid_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "langid_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Event queue metrics
	EventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "langid_metric_events_dropped_total",
			Help: "Worker metric events dropped because the queue was full",
		},
	)
)

func init() {
	prometheus.MustRegister(JobsTotal)
	prometheus.MustRegister(JobsRunning)
	prometheus.MustRegister(ActiveWorkers)
	prometheus.MustRegister(ProcessingSeconds)
	prometheus.MustRegister(AudioSeconds)
	prometheus.MustRegister(AutodetectAccept)
	prometheus.MustRegister(AutodetectReject)
	prometheus.MustRegister(FallbackUsed)
	prometheus.MustRegister(GatePathDecisions)
	prometheus.MustRegister(TranslateEnToFr)
	prometheus.MustRegister(TranslateFrToEn)
	prometheus.MustRegister(JobsSubmitted)
	prometheus.MustRegister(JobsOwned)
	prometheus.MustRegister(JobsActive)
	prometheus.MustRegister(NodeUp)
	prometheus.MustRegister(NodeLastHealth)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(EventsDropped)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
