package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cisco7507/LangId-mr/pkg/log"
	"github.com/cisco7507/LangId-mr/pkg/metrics"
)

// NodeSummary is the per-node reachability record attached to aggregated
// job listings.
type NodeSummary struct {
	Name      string `json:"name"`
	Reachable bool   `json:"reachable"`
	JobCount  int    `json:"job_count"`
}

// ClusterJobs is the merged job view across all nodes.
type ClusterJobs struct {
	Items []map[string]any `json:"items"`
	Nodes []NodeSummary    `json:"nodes"`
}

// MetricsNode is one row of the aggregated metrics summary.
type MetricsNode struct {
	Name                  string   `json:"name"`
	Up                    bool     `json:"up"`
	JobsOwnedTotal        int64    `json:"jobs_owned_total"`
	JobsActive            int64    `json:"jobs_active"`
	JobsSubmittedAsTarget int64    `json:"jobs_submitted_as_target"`
	LastHealthTS          *float64 `json:"last_health_ts"`
}

// MetricsSummary is the cluster-wide metrics view.
type MetricsSummary struct {
	Nodes []MetricsNode `json:"nodes"`
}

// Aggregator fans out to every node's internal endpoints and merges the
// answers. Job counters are summed across nodes; up/down always reflects
// this node's own health view, because a peer this node cannot reach is
// down as far as this node's callers are concerned.
type Aggregator struct {
	cfg    *Config
	client *http.Client
	health *HealthMonitor
}

// NewAggregator builds an aggregator sharing the monitor's health view.
func NewAggregator(cfg *Config, health *HealthMonitor) *Aggregator {
	return &Aggregator{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout()},
		health: health,
	}
}

// AggregateJobs merges every node's /admin/jobs listing, newest first.
// limit < 0 means no limit. Unreachable nodes contribute an empty list and
// a reachable=false summary row.
func (a *Aggregator) AggregateJobs(ctx context.Context, status, since string, limit int) (*ClusterJobs, error) {
	type nodeResult struct {
		name string
		jobs []map[string]any
		ok   bool
	}

	var mu sync.Mutex
	results := make([]nodeResult, 0, len(a.cfg.Nodes))

	g, ctx := errgroup.WithContext(ctx)
	for name, base := range a.cfg.Nodes {
		g.Go(func() error {
			jobs, err := a.fetchNodeJobs(ctx, base, status, since)
			res := nodeResult{name: name, jobs: jobs, ok: err == nil}
			if err != nil {
				log.WithComponent("cluster").Debug().Err(err).
					Str("node", name).
					Msg("node jobs fetch failed")
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].name < results[j].name })

	out := &ClusterJobs{Items: []map[string]any{}}
	for _, res := range results {
		out.Nodes = append(out.Nodes, NodeSummary{
			Name:      res.name,
			Reachable: res.ok,
			JobCount:  len(res.jobs),
		})
		out.Items = append(out.Items, res.jobs...)
	}

	// String compare is correct for ISO8601 timestamps.
	sort.SliceStable(out.Items, func(i, j int) bool {
		return jobCreatedAt(out.Items[i]) > jobCreatedAt(out.Items[j])
	})
	if limit >= 0 && len(out.Items) > limit {
		out.Items = out.Items[:limit]
	}
	return out, nil
}

func (a *Aggregator) fetchNodeJobs(ctx context.Context, base, status, since string) ([]map[string]any, error) {
	query := url.Values{"internal": {"1"}}
	if status != "" {
		query.Set("status", status)
	}
	if since != "" {
		query.Set("since", since)
	}
	target := strings.TrimRight(base, "/") + "/admin/jobs?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("node answered %d", resp.StatusCode)
	}

	var payload struct {
		Jobs []map[string]any `json:"jobs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return payload.Jobs, nil
}

// AggregateMetrics pulls every node's /cluster/local-metrics, sums the job
// counters and attaches this node's health view.
func (a *Aggregator) AggregateMetrics(ctx context.Context) (*MetricsSummary, error) {
	var mu sync.Mutex
	var states []metrics.LocalState

	g, ctx := errgroup.WithContext(ctx)
	for name, base := range a.cfg.Nodes {
		g.Go(func() error {
			state, err := a.fetchNodeMetrics(ctx, base)
			if err != nil {
				log.WithComponent("cluster").Debug().Err(err).
					Str("node", name).
					Msg("node metrics fetch failed")
				return nil
			}
			mu.Lock()
			states = append(states, state)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	owned := make(map[string]int64)
	active := make(map[string]int64)
	submittedAsTarget := make(map[string]int64)
	for _, state := range states {
		for node, n := range state.JobsOwned {
			owned[node] += n
		}
		for node, n := range state.JobsActive {
			active[node] += n
		}
		for key, n := range state.JobsSubmitted {
			if _, target, ok := strings.Cut(key, ","); ok {
				submittedAsTarget[target] += n
			}
		}
	}

	summary := &MetricsSummary{}
	for _, name := range a.cfg.SortedNodes() {
		node := MetricsNode{
			Name:                  name,
			JobsOwnedTotal:        owned[name],
			JobsActive:            active[name],
			JobsSubmittedAsTarget: submittedAsTarget[name],
		}
		if a.health != nil {
			node.Up = a.health.IsUp(name)
			node.LastHealthTS = a.health.LastSeen(name)
		}
		summary.Nodes = append(summary.Nodes, node)
	}
	return summary, nil
}

func (a *Aggregator) fetchNodeMetrics(ctx context.Context, base string) (metrics.LocalState, error) {
	target := strings.TrimRight(base, "/") + "/cluster/local-metrics"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return metrics.LocalState{}, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return metrics.LocalState{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return metrics.LocalState{}, fmt.Errorf("node answered %d", resp.StatusCode)
	}

	var state metrics.LocalState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return metrics.LocalState{}, err
	}
	return state, nil
}

func jobCreatedAt(job map[string]any) string {
	if s, ok := job["created_at"].(string); ok {
		return s
	}
	return ""
}
