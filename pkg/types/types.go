package types

import (
	"time"
)

// Job is the persistent record for a single audio upload. The id is prefixed
// with the owner node's name ("<owner>-<uuid>"); the prefix is authoritative
// for routing and only the owner node ever mutates the row.
type Job struct {
	ID               string    `json:"id"`
	Status           JobStatus `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	Attempts         int       `json:"attempts"`
	Progress         int       `json:"progress"` // 0-100, advisory
	InputPath        string    `json:"input_path"`
	OriginalFilename string    `json:"original_filename,omitempty"`
	TargetLang       string    `json:"target_lang,omitempty"`
	ResultJSON       string    `json:"result_json,omitempty"`
	Error            string    `json:"error,omitempty"`
}

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status can never transition again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// GateDecision identifies the path the language gate took for a job. The
// String form is the stable wire/metrics label and must never change.
type GateDecision int

const (
	GateUnknown GateDecision = iota
	GateHighConf
	GateMidZoneEn
	GateMidZoneFr
	GateVadRetry
	GateMusicOnly
	GateFallback
)

// Wire labels. GateMusicOnly keeps the legacy uppercase spelling consumed by
// existing dashboards.
const (
	labelHighConf  = "accepted_high_conf"
	labelMidZoneEn = "accepted_mid_zone_en"
	labelMidZoneFr = "accepted_mid_zone_fr"
	labelVadRetry  = "vad_retry"
	labelMusicOnly = "NO_SPEECH_MUSIC_ONLY"
	labelFallback  = "fallback"
	labelUnknown   = "unknown"
)

func (d GateDecision) String() string {
	switch d {
	case GateHighConf:
		return labelHighConf
	case GateMidZoneEn:
		return labelMidZoneEn
	case GateMidZoneFr:
		return labelMidZoneFr
	case GateVadRetry:
		return labelVadRetry
	case GateMusicOnly:
		return labelMusicOnly
	case GateFallback:
		return labelFallback
	default:
		return labelUnknown
	}
}

// ParseGateDecision maps a wire label back to its decision. Unrecognized
// labels map to GateUnknown.
func ParseGateDecision(s string) GateDecision {
	switch s {
	case labelHighConf:
		return GateHighConf
	case labelMidZoneEn:
		return GateMidZoneEn
	case labelMidZoneFr:
		return GateMidZoneFr
	case labelVadRetry:
		return GateVadRetry
	case labelMusicOnly:
		return GateMusicOnly
	case labelFallback:
		return GateFallback
	default:
		return GateUnknown
	}
}

func (d GateDecision) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *GateDecision) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	*d = ParseGateDecision(s)
	return nil
}

// Detection methods reported by the gate.
const (
	MethodAutodetect    = "autodetect"
	MethodAutodetectVAD = "autodetect-vad"
	MethodFallback      = "fallback"
)

// GateConfigSnapshot captures the thresholds in force when a gate decision
// was made. It is embedded in GateMeta so results are self-describing.
type GateConfigSnapshot struct {
	MidLower          float64 `json:"mid_lower"`
	MidUpper          float64 `json:"mid_upper"`
	MinStopwordEn     float64 `json:"min_stopword_en"`
	MinStopwordFr     float64 `json:"min_stopword_fr"`
	StopwordMargin    float64 `json:"stopword_margin"`
	MinTokens         int     `json:"min_tokens_heuristic"`
	MinTokensSpeech   int     `json:"min_tokens_speech"`
	MinStopwordSpeech float64 `json:"min_stopword_speech"`
	LangDetectMinProb float64 `json:"lang_detect_min_prob"`
	StrictReject      bool    `json:"enfr_strict_reject"`
}

// GateMeta carries transcript statistics recorded on every terminal gate path.
type GateMeta struct {
	MidZone    bool               `json:"mid_zone"`
	EnRatio    float64            `json:"en_ratio"`
	FrRatio    float64            `json:"fr_ratio"`
	TokenCount int                `json:"token_count"`
	VadUsed    bool               `json:"vad_used"`
	MusicOnly  bool               `json:"music_only"`
	Config     GateConfigSnapshot `json:"config"`
}

// GateResult is the transient, per-job outcome of the language gate.
// Probability is nil when the scoring fallback forced a choice.
type GateResult struct {
	Language    string       `json:"language"` // "en", "fr" or "none"
	Probability *float64     `json:"probability"`
	Method      string       `json:"method"`
	Decision    GateDecision `json:"gate_decision"`
	UseVAD      bool         `json:"use_vad"`
	MusicOnly   bool         `json:"music_only"`
	Meta        GateMeta     `json:"gate_meta"`
}

// JobResult is the payload serialized into Job.ResultJSON when a job
// succeeds.
type JobResult struct {
	Language        string         `json:"language"`
	Probability     *float64       `json:"probability"`
	Text            string         `json:"text,omitempty"`
	GateDecision    string         `json:"gate_decision"`
	GateMeta        GateMeta       `json:"gate_meta"`
	MusicOnly       bool           `json:"music_only"`
	DetectionMethod string         `json:"detection_method"`
	ProcessingMS    int64          `json:"processing_ms"`
	Translated      bool           `json:"translated"`
	Result          string         `json:"result,omitempty"`
	TargetLang      string         `json:"target_lang,omitempty"`
	Raw             map[string]any `json:"raw,omitempty"`
}

// NodeStatus is the health state of a cluster peer as seen from this node.
type NodeStatus string

const (
	NodeStatusUp   NodeStatus = "up"
	NodeStatusDown NodeStatus = "down"
)

// NodeHealth is the in-memory, per-peer health record maintained by the
// cluster health loop. LastSeen is nil until the first successful probe.
type NodeHealth struct {
	Name     string     `json:"name"`
	Status   NodeStatus `json:"status"`
	LastSeen *time.Time `json:"last_seen"`
}
