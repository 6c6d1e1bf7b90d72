// Package config defines the typed node configuration loaded at start-up,
// generalizing the teacher's flag-based cmd/substrated wiring into a
// loadable struct, since this system's recognised options are named
// explicitly rather than left to ad hoc flags.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// StorageBackend names one of the pluggable storage capability
// implementations a node can be configured to use.
type StorageBackend string

const (
	StorageBackendPgvector StorageBackend = "pgvector"
	StorageBackendMetaBolt StorageBackend = "metastore"
)

// NodeConfig holds every recognised configuration option for a single
// running node.
type NodeConfig struct {
	// ClusterID names the logical cluster. The node uses it as the
	// storage collection ID and in log lines; it does not filter gossip
	// membership.
	ClusterID string `yaml:"cluster_id"`

	// NodeID is this node's stable identity. If empty, one is generated
	// at start-up and persisted into DataDir.
	NodeID string `yaml:"node_id"`

	// ListenAddress is the gossip bind address (host:port).
	ListenAddress string `yaml:"listen_address"`

	// GRPCPort is the lazily-connected peer RPC port advertised to the
	// cluster.
	GRPCPort int `yaml:"grpc_port"`

	// RESTPort is the REST surface's bind port (transport wiring itself
	// is out of scope; this is carried through for completeness of the
	// config object the spec names).
	RESTPort int `yaml:"rest_port"`

	// CORSAllowOrigins lists origins permitted by the (unspecified) REST
	// surface.
	CORSAllowOrigins []string `yaml:"cors_allow_origins"`

	// ExtraResponseHeaders are appended to every REST response.
	ExtraResponseHeaders map[string]string `yaml:"extra_response_headers"`

	// StorageBackends lists the storage capability implementations this
	// node wires up, in priority order.
	StorageBackends []StorageBackend `yaml:"storage_backends"`

	// DataDir is the local embedded database directory for the metadata
	// and secret key-value store.
	DataDir string `yaml:"data_dir"`

	// PostgresDSN configures the pgvector-style storage adapter, when
	// StorageBackendPgvector is enabled.
	PostgresDSN string `yaml:"postgres_dsn"`

	// Heartbeat is the supervisor sampling interval. Overridable via the
	// QW_ACTOR_HEARTBEAT_SECS environment variable, short for tests.
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// heartbeatEnvVar is the environment variable recognised for overriding the
// default heartbeat interval, matching the naming convention of the system
// this specification distills.
const heartbeatEnvVar = "QW_ACTOR_HEARTBEAT_SECS"

// defaultHeartbeat is the default supervisor sampling interval.
const defaultHeartbeat = 30 * time.Second

// Default returns a NodeConfig with sane defaults for local development.
func Default() NodeConfig {
	return NodeConfig{
		ClusterID:       "veridian-dev",
		ListenAddress:   "0.0.0.0:7946",
		GRPCPort:        7947,
		RESTPort:        8080,
		StorageBackends: []StorageBackend{StorageBackendMetaBolt},
		DataDir:         "./data",
		Heartbeat:       defaultHeartbeat,
	}
}

// ApplyEnvOverrides mutates cfg in place with any recognised environment
// variable overrides. Currently only the heartbeat interval is
// environment-overridable, per the spec's named recognised options.
func (cfg *NodeConfig) ApplyEnvOverrides() error {
	raw, ok := os.LookupEnv(heartbeatEnvVar)
	if !ok || raw == "" {
		return nil
	}

	secs, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("parsing %s=%q: %w", heartbeatEnvVar, raw, err)
	}

	cfg.Heartbeat = time.Duration(secs) * time.Second
	return nil
}

// Load reads a NodeConfig from a YAML file at path, starting from Default()
// so unspecified fields keep their defaults, then applies environment
// overrides.
func Load(path string) (NodeConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return NodeConfig{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return NodeConfig{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return NodeConfig{}, err
	}

	return cfg, nil
}

// Validate checks the minimal set of invariants required to start a node.
func (cfg NodeConfig) Validate() error {
	if cfg.ClusterID == "" {
		return fmt.Errorf("cluster_id must not be empty")
	}
	if cfg.ListenAddress == "" {
		return fmt.Errorf("listen_address must not be empty")
	}
	if len(cfg.StorageBackends) == 0 {
		return fmt.Errorf("at least one storage backend must be configured")
	}

	return nil
}
