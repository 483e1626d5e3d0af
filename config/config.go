// Package config loads and validates the recognized environment inputs
// of spec §6, following the teacher's registry.Config validation style
// (defaults applied in a constructor, hard failures on out-of-range
// values).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ReplicationConfig holds the replication worker's tunables.
type ReplicationConfig struct {
	Enabled         bool   `yaml:"enabled" json:"enabled"`
	TimeoutSecs     int    `yaml:"timeout_secs" json:"timeout_secs"`
	BatchSize       int    `yaml:"batch_size" json:"batch_size"`
	BatchIntervalMs int    `yaml:"batch_interval_ms" json:"batch_interval_ms"`
	MaxRetries      int    `yaml:"max_retries" json:"max_retries"`
	RedisURL        string `yaml:"redis_url" json:"redis_url"`
}

// LeaseConfig holds the lease manager's tunables.
type LeaseConfig struct {
	TTLSecs             int `yaml:"ttl_secs" json:"ttl_secs"`
	CleanupIntervalSecs int `yaml:"cleanup_interval_secs" json:"cleanup_interval_secs"`
}

// ClusterConfig holds cluster membership and optional etcd-backstop
// settings.
type ClusterConfig struct {
	Peers         []string `yaml:"peers" json:"peers"`
	EtcdEndpoints []string `yaml:"etcd_endpoints" json:"etcd_endpoints"`
}

// Config is the complete recognized configuration record.
type Config struct {
	NodeID                   string            `yaml:"node_id" json:"node_id"`
	ServerURLs               []string          `yaml:"server_urls" json:"server_urls"`
	HeartbeatIntervalSecs    int               `yaml:"heartbeat_interval" json:"heartbeat_interval"`
	HeartbeatTTLSecs         int               `yaml:"heartbeat_ttl" json:"heartbeat_ttl"`
	HTTPRetryTimes           int               `yaml:"http_retry_times" json:"http_retry_times"`
	HTTPRetryIntervalMs      int               `yaml:"http_retry_interval_ms" json:"http_retry_interval_ms"`
	CacheTTLSecs             int               `yaml:"cache_ttl_secs" json:"cache_ttl_secs"`
	Replication              ReplicationConfig `yaml:"replication" json:"replication"`
	Lease                    LeaseConfig       `yaml:"lease" json:"lease"`
	Cluster                  ClusterConfig     `yaml:"cluster" json:"cluster"`
	WebsocketPingIntervalSecs int              `yaml:"websocket_ping_interval_secs" json:"websocket_ping_interval_secs"`
	ListenAddress            string            `yaml:"listen_address" json:"listen_address"`
	GRPCHealthAddress        string            `yaml:"grpc_health_address" json:"grpc_health_address"`
}

// Default returns a Config with every recognized option at its
// documented default.
func Default() Config {
	return Config{
		HeartbeatIntervalSecs: 10,
		HeartbeatTTLSecs:      30,
		HTTPRetryTimes:        3,
		HTTPRetryIntervalMs:   500,
		CacheTTLSecs:          60,
		Replication: ReplicationConfig{
			Enabled: true, TimeoutSecs: 5, BatchSize: 50, BatchIntervalMs: 1000, MaxRetries: 5,
		},
		Lease: LeaseConfig{TTLSecs: 30, CleanupIntervalSecs: 5},
		WebsocketPingIntervalSecs: 30,
		ListenAddress:             "0.0.0.0:8761",
		GRPCHealthAddress:         "0.0.0.0:8762",
	}
}

// Load reads a YAML file at path, falling back to Default for any field
// left unset, then applies environment-variable overrides the way the
// teacher's NewClientFromEnv reads GIBSON_REGISTRY_ENDPOINTS, and
// finally validates.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	if v := os.Getenv("ARTEMIS_NODE_ID"); v != "" {
		cfg.NodeID = v
	}
	if v := os.Getenv("ARTEMIS_LISTEN_ADDRESS"); v != "" {
		cfg.ListenAddress = v
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that violate the spec's documented
// constraints: TTL < 3x interval, http_retry_times or
// replication.max_retries out of [1,10], cache TTL below the 60s floor,
// websocket ping interval out of [5,300]. ServerURLs is not checked.
func (c Config) Validate() error {
	if c.HeartbeatTTLSecs < 3*c.HeartbeatIntervalSecs {
		return fmt.Errorf("heartbeat_ttl (%ds) must be at least 3x heartbeat_interval (%ds)", c.HeartbeatTTLSecs, c.HeartbeatIntervalSecs)
	}
	if c.HTTPRetryTimes < 1 || c.HTTPRetryTimes > 10 {
		return fmt.Errorf("http_retry_times must be in [1,10], got %d", c.HTTPRetryTimes)
	}
	if c.CacheTTLSecs < 60 {
		return fmt.Errorf("cache_ttl_secs must be >= 60, got %d", c.CacheTTLSecs)
	}
	if c.WebsocketPingIntervalSecs < 5 || c.WebsocketPingIntervalSecs > 300 {
		return fmt.Errorf("websocket_ping_interval_secs must be in [5,300], got %d", c.WebsocketPingIntervalSecs)
	}
	if c.Replication.MaxRetries < 1 || c.Replication.MaxRetries > 10 {
		return fmt.Errorf("replication.max_retries must be in [1,10], got %d", c.Replication.MaxRetries)
	}
	return nil
}

// LeaseTTL returns the lease TTL as a time.Duration.
func (c Config) LeaseTTL() time.Duration {
	return time.Duration(c.Lease.TTLSecs) * time.Second
}

// LeaseCleanupInterval returns the eviction sweep interval.
func (c Config) LeaseCleanupInterval() time.Duration {
	return time.Duration(c.Lease.CleanupIntervalSecs) * time.Second
}
