package cluster

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"
)

// EnvConfigFile names the environment variable pointing at the cluster
// configuration file.
const EnvConfigFile = "LANGID_CLUSTER_CONFIG_FILE"

const defaultConfigPath = "cluster_config.json"

// Config describes the cluster this node belongs to.
type Config struct {
	SelfName                      string            `json:"self_name"`
	Nodes                         map[string]string `json:"nodes"` // name -> base URL
	HealthCheckIntervalSeconds    int               `json:"health_check_interval_seconds"`
	InternalRequestTimeoutSeconds int               `json:"internal_request_timeout_seconds"`
	EnableRoundRobin              bool              `json:"enable_round_robin"`
	RRStateFile                   string            `json:"rr_state_file"`
}

// LoadConfig reads the cluster configuration from path, falling back to the
// LANGID_CLUSTER_CONFIG_FILE environment variable and then to
// cluster_config.json. A missing file yields a standalone single-node
// configuration so the service can run unconfigured in development.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path == "" {
		path = defaultConfigPath
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Standalone(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cluster config: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse cluster config %s: %w", path, err)
	}
	if cfg.HealthCheckIntervalSeconds <= 0 {
		cfg.HealthCheckIntervalSeconds = 5
	}
	if cfg.InternalRequestTimeoutSeconds <= 0 {
		cfg.InternalRequestTimeoutSeconds = 5
	}
	if _, ok := cfg.Nodes[cfg.SelfName]; !ok {
		return nil, fmt.Errorf("self_name %q not found in nodes", cfg.SelfName)
	}
	return cfg, nil
}

// Standalone is the single-node fallback configuration.
func Standalone() *Config {
	return &Config{
		SelfName:                      "standalone",
		Nodes:                         map[string]string{"standalone": "http://localhost:8000"},
		HealthCheckIntervalSeconds:    5,
		InternalRequestTimeoutSeconds: 5,
	}
}

// NodeURL returns the base URL of a node, or "" when unknown.
func (c *Config) NodeURL(name string) string {
	return c.Nodes[name]
}

// SortedNodes returns the node names in sorted order, the order the
// round-robin scheduler iterates in.
func (c *Config) SortedNodes() []string {
	names := make([]string, 0, len(c.Nodes))
	for name := range c.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Timeout is the per-request deadline for internal cluster calls.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.InternalRequestTimeoutSeconds) * time.Second
}

// HealthInterval is the period of the background health loop.
func (c *Config) HealthInterval() time.Duration {
	return time.Duration(c.HealthCheckIntervalSeconds) * time.Second
}
