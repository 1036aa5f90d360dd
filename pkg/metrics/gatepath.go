package metrics

import (
	"strings"

	"github.com/cisco7507/LangId-mr/pkg/types"
)

// Canonical gate path labels expected by Prometheus queries and the
// dashboard.
const (
	GatePathHighConf  = "high_conf_base"
	GatePathMidZoneEn = "mid_zone_en"
	GatePathMidZoneFr = "mid_zone_fr"
	GatePathVadRetry  = "vad_retry"
	GatePathMusicOnly = "music_only"
	GatePathFallback  = "fallback"
	GatePathUnknown   = "unknown"
)

// Canonical pipeline mode labels. Coarse-grained on purpose so they remain
// low-cardinality in Prometheus.
const (
	PipelineModeBase      = "BASE"
	PipelineModeVad       = "VAD"
	PipelineModeMidZone   = "MID_ZONE"
	PipelineModeMusicOnly = "MUSIC_ONLY"
	PipelineModeFallback  = "FALLBACK"
	PipelineModeUnknown   = "UNKNOWN"
)

// ClassifyGatePath returns a stable gate path label for metrics and
// reporting.
func ClassifyGatePath(r *types.GateResult) string {
	if r == nil {
		return GatePathUnknown
	}
	if r.MusicOnly {
		return GatePathMusicOnly
	}
	switch r.Decision {
	case types.GateMusicOnly:
		return GatePathMusicOnly
	case types.GateFallback:
		return GatePathFallback
	case types.GateVadRetry:
		return GatePathVadRetry
	case types.GateMidZoneEn:
		return GatePathMidZoneEn
	case types.GateMidZoneFr:
		return GatePathMidZoneFr
	case types.GateHighConf:
		return GatePathHighConf
	}
	// Heuristic recovery for missing or unexpected decisions.
	if r.Meta.MidZone {
		if strings.EqualFold(r.Language, "fr") {
			return GatePathMidZoneFr
		}
		return GatePathMidZoneEn
	}
	return GatePathUnknown
}

// ClassifyPipelineMode returns a coarse pipeline mode label for Prometheus.
func ClassifyPipelineMode(r *types.GateResult) string {
	if r == nil {
		return PipelineModeUnknown
	}
	switch r.Decision {
	case types.GateFallback:
		return PipelineModeFallback
	case types.GateMusicOnly:
		return PipelineModeMusicOnly
	case types.GateMidZoneEn, types.GateMidZoneFr:
		return PipelineModeMidZone
	case types.GateVadRetry:
		return PipelineModeVad
	case types.GateHighConf:
		return PipelineModeBase
	}
	if r.MusicOnly {
		return PipelineModeMusicOnly
	}
	if r.Meta.MidZone {
		return PipelineModeMidZone
	}
	if r.Meta.VadUsed || strings.HasPrefix(strings.ToLower(r.Method), "vad") {
		return PipelineModeVad
	}
	return PipelineModeUnknown
}

// RecordGatePath increments the gate-path decision counter for a finalized
// gate result and mirrors the count into the local aggregation state.
func RecordGatePath(r *types.GateResult) {
	if r == nil {
		return
	}
	gatePath := ClassifyGatePath(r)
	language := r.Language
	if language == "" {
		language = "unknown"
	}
	musicOnly := "false"
	if r.MusicOnly {
		musicOnly = "true"
	}
	GatePathDecisions.WithLabelValues(
		gatePath,
		r.Decision.String(),
		ClassifyPipelineMode(r),
		language,
		musicOnly,
	).Inc()
	recordGatePathLocal(gatePath)
}
