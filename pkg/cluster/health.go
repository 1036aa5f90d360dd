package cluster

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cisco7507/LangId-mr/pkg/log"
	"github.com/cisco7507/LangId-mr/pkg/metrics"
	"github.com/cisco7507/LangId-mr/pkg/types"
)

// HealthMonitor probes every configured node's /health on a fixed interval
// and keeps the in-memory view the gauges and the dashboard read from. A
// node that stops answering flips to down but keeps its last_seen so the
// dashboard can show how stale it is.
type HealthMonitor struct {
	cfg    *Config
	client *http.Client

	mu     sync.RWMutex
	health map[string]*types.NodeHealth

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewHealthMonitor builds a monitor; call Start to begin probing.
func NewHealthMonitor(cfg *Config) *HealthMonitor {
	health := make(map[string]*types.NodeHealth, len(cfg.Nodes))
	for name := range cfg.Nodes {
		health[name] = &types.NodeHealth{Name: name, Status: types.NodeStatusDown}
	}
	return &HealthMonitor{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout()},
		health: health,
		stop:   make(chan struct{}),
	}
}

// Start launches the background probe loop.
func (m *HealthMonitor) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.HealthInterval())
		defer ticker.Stop()

		m.checkAll()
		for {
			select {
			case <-ticker.C:
				m.checkAll()
			case <-m.stop:
				return
			}
		}
	}()
	log.WithComponent("cluster").Info().
		Dur("interval", m.cfg.HealthInterval()).
		Int("nodes", len(m.cfg.Nodes)).
		Msg("health monitor started")
}

// Stop halts the probe loop and waits for it to exit.
func (m *HealthMonitor) Stop() {
	close(m.stop)
	m.wg.Wait()
}

// CheckNow probes every node once, synchronously. The background loop calls
// it on its interval; tests call it directly.
func (m *HealthMonitor) CheckNow() {
	m.checkAll()
}

func (m *HealthMonitor) checkAll() {
	var wg sync.WaitGroup
	for name, url := range m.cfg.Nodes {
		wg.Add(1)
		go func(name, url string) {
			defer wg.Done()
			m.checkNode(name, url)
		}(name, url)
	}
	wg.Wait()
}

func (m *HealthMonitor) checkNode(name, url string) {
	up := false
	resp, err := m.client.Get(strings.TrimRight(url, "/") + "/health")
	if err == nil {
		resp.Body.Close()
		up = resp.StatusCode == http.StatusOK
	}

	now := time.Now().UTC()
	m.mu.Lock()
	h := m.health[name]
	if h == nil {
		h = &types.NodeHealth{Name: name}
		m.health[name] = h
	}
	if up {
		h.Status = types.NodeStatusUp
		h.LastSeen = &now
	} else {
		// last_seen intentionally preserved
		h.Status = types.NodeStatusDown
	}
	m.mu.Unlock()

	metrics.SetNodeUp(name, up)
	if up {
		metrics.SetNodeLastHealth(name, float64(now.Unix()))
	}
}

// Snapshot returns the per-node health records sorted by name.
func (m *HealthMonitor) Snapshot() []types.NodeHealth {
	m.mu.RLock()
	out := make([]types.NodeHealth, 0, len(m.health))
	for _, h := range m.health {
		out = append(out, *h)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IsUp reports this node's current view of a peer.
func (m *HealthMonitor) IsUp(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h := m.health[name]
	return h != nil && h.Status == types.NodeStatusUp
}

// LastSeen returns the unix timestamp of the peer's last successful probe,
// or nil when it has never answered.
func (m *HealthMonitor) LastSeen(name string) *float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h := m.health[name]
	if h == nil || h.LastSeen == nil {
		return nil
	}
	ts := float64(h.LastSeen.Unix())
	return &ts
}
