// Package gate implements the EN/FR language decision tree. The gate probes
// the first seconds of a clip, classifies music-only content, accepts high
// confidence detections, applies a stop-word heuristic in the confidence
// mid-zone, retries with a VAD filter, and finally either rejects (strict
// mode) or forces a choice with a per-language scoring fallback. Every
// terminal path carries GateMeta describing what the gate saw and the
// thresholds in force.
package gate
