package metrics

import (
	"sync"
)

// LocalState is the JSON-friendly mirror of the cluster-relevant counters.
// Peers pull it from /cluster/local-metrics and merge; the Prometheus
// registry cannot be merged across nodes, this state can.
type LocalState struct {
	JobsSubmitted  map[string]int64   `json:"jobs_submitted"` // "ingress,target" -> count
	JobsOwned      map[string]int64   `json:"jobs_owned"`
	JobsActive     map[string]int64   `json:"jobs_active"`
	JobsFinished   map[string]int64   `json:"jobs_finished"` // terminal status -> count
	GatePaths      map[string]int64   `json:"gate_paths"`
	NodeUp         map[string]bool    `json:"node_up"`
	NodeLastHealth map[string]float64 `json:"node_last_health"`
}

var state = struct {
	mu sync.Mutex
	LocalState
}{
	LocalState: LocalState{
		JobsSubmitted:  make(map[string]int64),
		JobsOwned:      make(map[string]int64),
		JobsActive:     make(map[string]int64),
		JobsFinished:   make(map[string]int64),
		GatePaths:      make(map[string]int64),
		NodeUp:         make(map[string]bool),
		NodeLastHealth: make(map[string]float64),
	},
}

// IncJobsSubmitted records a job submission routed from ingress to target.
func IncJobsSubmitted(ingress, target string) {
	JobsSubmitted.WithLabelValues(ingress, target).Inc()
	state.mu.Lock()
	state.JobsSubmitted[ingress+","+target]++
	state.mu.Unlock()
}

// IncJobsOwned records a locally created job.
func IncJobsOwned(owner string) {
	JobsOwned.WithLabelValues(owner).Inc()
	state.mu.Lock()
	state.JobsOwned[owner]++
	state.mu.Unlock()
}

// JobsActiveInc marks a job as active for the owner node.
func JobsActiveInc(owner string) {
	JobsActive.WithLabelValues(owner).Inc()
	state.mu.Lock()
	state.JobsActive[owner]++
	state.mu.Unlock()
}

// JobsActiveDec marks a job as no longer active for the owner node.
func JobsActiveDec(owner string) {
	JobsActive.WithLabelValues(owner).Dec()
	state.mu.Lock()
	if state.JobsActive[owner] > 0 {
		state.JobsActive[owner]--
	}
	state.mu.Unlock()
}

// SetNodeUp records a peer's up/down status from the health loop.
func SetNodeUp(node string, up bool) {
	v := 0.0
	if up {
		v = 1.0
	}
	NodeUp.WithLabelValues(node).Set(v)
	state.mu.Lock()
	state.NodeUp[node] = up
	state.mu.Unlock()
}

// SetNodeLastHealth records the unix timestamp of the last successful probe.
func SetNodeLastHealth(node string, ts float64) {
	NodeLastHealth.WithLabelValues(node).Set(ts)
	state.mu.Lock()
	state.NodeLastHealth[node] = ts
	state.mu.Unlock()
}

func recordJobFinishedLocal(status string) {
	state.mu.Lock()
	state.JobsFinished[status]++
	state.mu.Unlock()
}

func recordGatePathLocal(gatePath string) {
	state.mu.Lock()
	state.GatePaths[gatePath]++
	state.mu.Unlock()
}

// Snapshot returns a copy of the local metric state.
func Snapshot() LocalState {
	state.mu.Lock()
	defer state.mu.Unlock()
	return LocalState{
		JobsSubmitted:  copyMap(state.JobsSubmitted),
		JobsOwned:      copyMap(state.JobsOwned),
		JobsActive:     copyMap(state.JobsActive),
		JobsFinished:   copyMap(state.JobsFinished),
		GatePaths:      copyMap(state.GatePaths),
		NodeUp:         copyBoolMap(state.NodeUp),
		NodeLastHealth: copyFloatMap(state.NodeLastHealth),
	}
}

// ResetForTest clears the local state between tests.
func ResetForTest() {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.JobsSubmitted = make(map[string]int64)
	state.JobsOwned = make(map[string]int64)
	state.JobsActive = make(map[string]int64)
	state.JobsFinished = make(map[string]int64)
	state.GatePaths = make(map[string]int64)
	state.NodeUp = make(map[string]bool)
	state.NodeLastHealth = make(map[string]float64)
}

func copyMap(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyBoolMap(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyFloatMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
