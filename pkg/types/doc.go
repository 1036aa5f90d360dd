// Package types defines the shared data model for the language-identification
// service: the persistent Job record and its status automaton, the transient
// GateResult produced by the EN/FR language gate, and the per-peer NodeHealth
// view maintained by the cluster service.
//
// Job status transitions:
//
//	queued -> running
//	running -> succeeded
//	running -> failed
//	running -> queued        (retry, while attempts <= MAX_RETRIES)
//
// succeeded and failed are terminal. ResultJSON is populated if and only if
// the job succeeded.
//
// GateDecision is a tagged variant internally; its String form is the exact
// label exported on the wire and in Prometheus labels, including the legacy
// uppercase NO_SPEECH_MUSIC_ONLY spelling.
package types
