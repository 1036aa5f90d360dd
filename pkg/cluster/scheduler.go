package cluster

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/cisco7507/LangId-mr/pkg/log"
)

// Scheduler hands out round-robin submission targets over the sorted node
// list. The index survives restarts through a small JSON state file so a
// bounce does not re-concentrate traffic on the first node.
type Scheduler struct {
	mu     sync.Mutex
	cfg    *Config
	index  int
	loaded bool
}

type schedulerState struct {
	Index int `json:"index"`
}

// NewScheduler builds a scheduler for the cluster configuration.
func NewScheduler(cfg *Config) *Scheduler {
	return &Scheduler{cfg: cfg}
}

// NextTarget returns the node the next submission should go to and advances
// the counter. With round-robin disabled every job stays local.
func (s *Scheduler) NextTarget() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		s.index = s.loadState()
		s.loaded = true
	}

	if !s.cfg.EnableRoundRobin {
		return s.cfg.SelfName
	}
	nodes := s.cfg.SortedNodes()
	if len(nodes) == 0 {
		return s.cfg.SelfName
	}

	target := nodes[s.index%len(nodes)]
	s.index = (s.index + 1) % len(nodes)
	s.saveState()
	return target
}

// loadState reads the persisted index. Any corruption resets to zero; fair
// dispersion recovers within one cycle.
func (s *Scheduler) loadState() int {
	if s.cfg.RRStateFile == "" {
		return 0
	}
	data, err := os.ReadFile(s.cfg.RRStateFile)
	if err != nil {
		return 0
	}
	var state schedulerState
	if err := json.Unmarshal(data, &state); err != nil || state.Index < 0 {
		log.WithComponent("cluster").Warn().
			Str("file", s.cfg.RRStateFile).
			Msg("corrupt round-robin state, resetting")
		return 0
	}
	return state.Index
}

func (s *Scheduler) saveState() {
	if s.cfg.RRStateFile == "" {
		return
	}
	data, err := json.Marshal(schedulerState{Index: s.index})
	if err != nil {
		return
	}
	if err := os.WriteFile(s.cfg.RRStateFile, data, 0o644); err != nil {
		log.WithComponent("cluster").Warn().Err(err).
			Str("file", s.cfg.RRStateFile).
			Msg("failed to persist round-robin state")
	}
}
