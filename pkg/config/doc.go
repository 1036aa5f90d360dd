// Package config loads the process-wide service configuration from the
// environment. Cluster topology lives in a separate JSON file handled by
// package cluster.
package config
