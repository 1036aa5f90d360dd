// Package cluster makes a set of identical nodes behave like one service.
// Job ids carry their owner node's name as a prefix; the router forwards
// job-scoped requests to the owner, the scheduler spreads submissions
// round-robin, the health monitor keeps a per-peer up/down view, and the
// aggregator merges job listings and metrics across nodes.
package cluster
