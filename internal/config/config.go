// Package config loads replica configuration from file and environment,
// mirroring the viper-based loader pattern used throughout this codebase.
package config

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/rechain/delta-crdt/internal/replica"
)

// Config is the full startup configuration for a replica daemon (spec §6:
// "Configuration is passed at startup: ship_interval, ship_debounce,
// notify target, crdt module").
type Config struct {
	Node      NodeConfig      `mapstructure:"node"`
	Replica   ReplicaConfig   `mapstructure:"replica"`
	Transport TransportConfig `mapstructure:"transport"`
	Lattice   LatticeConfig   `mapstructure:"lattice"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Audit     AuditConfig     `mapstructure:"audit"`
	HTTP      HTTPConfig      `mapstructure:"http"`
}

// NodeConfig identifies this replica.
type NodeConfig struct {
	Name     string `mapstructure:"name"`
	DataDir  string `mapstructure:"data_dir"`
	LogLevel string `mapstructure:"log_level"`
}

// ReplicaConfig tunes the anti-entropy engine's timers and notification.
type ReplicaConfig struct {
	ShipInterval   time.Duration `mapstructure:"ship_interval"`
	ShipDebounce   time.Duration `mapstructure:"ship_debounce"`
	GCInterval     time.Duration `mapstructure:"gc_interval"`
	NotifyEndpoint string        `mapstructure:"notify_endpoint"`
	NotifyMessage  string        `mapstructure:"notify_message"`
	Neighbours     []string      `mapstructure:"neighbours"`
}

// TransportConfig selects and configures the wire transport.
type TransportConfig struct {
	Kind        string        `mapstructure:"kind"` // "loopback" or "libp2p"
	ListenAddr  string        `mapstructure:"listen_address"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// LatticeConfig names the registered crdt.Lattice type this replica runs.
type LatticeConfig struct {
	Type string `mapstructure:"type"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AuditConfig controls the diagnostic admissibility/ship ring log.
type AuditConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Path     string `mapstructure:"path"`
	Capacity int    `mapstructure:"capacity"`
}

// HTTPConfig controls the read-only status/health server.
type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// DefaultConfig returns the configuration used when neither a file nor
// environment overrides are present.
func DefaultConfig() *Config {
	return &Config{
		Node: NodeConfig{
			DataDir:  "./data",
			LogLevel: "info",
		},
		Replica: ReplicaConfig{
			ShipInterval: 50 * time.Millisecond,
			ShipDebounce: 10 * time.Millisecond,
			GCInterval:   10 * time.Second,
			Neighbours:   []string{},
		},
		Transport: TransportConfig{
			Kind:        "loopback",
			ListenAddr:  "/ip4/0.0.0.0/tcp/7946",
			DialTimeout: 5 * time.Second,
		},
		Lattice: LatticeConfig{
			Type: "orset",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Audit: AuditConfig{
			Enabled:  false,
			Path:     "./data/audit",
			Capacity: 4096,
		},
		HTTP: HTTPConfig{
			Enabled: true,
			Address: "127.0.0.1:8080",
		},
	}
}

// Load reads configuration from configPath (if non-empty) and the
// DELTACRDT_-prefixed environment, layered over DefaultConfig.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()

	v.SetDefault("node.data_dir", cfg.Node.DataDir)
	v.SetDefault("node.log_level", cfg.Node.LogLevel)
	v.SetDefault("replica.ship_interval", cfg.Replica.ShipInterval)
	v.SetDefault("replica.ship_debounce", cfg.Replica.ShipDebounce)
	v.SetDefault("replica.gc_interval", cfg.Replica.GCInterval)
	v.SetDefault("replica.neighbours", cfg.Replica.Neighbours)
	v.SetDefault("transport.kind", cfg.Transport.Kind)
	v.SetDefault("transport.listen_address", cfg.Transport.ListenAddr)
	v.SetDefault("transport.dial_timeout", cfg.Transport.DialTimeout)
	v.SetDefault("lattice.type", cfg.Lattice.Type)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("audit.enabled", cfg.Audit.Enabled)
	v.SetDefault("audit.path", cfg.Audit.Path)
	v.SetDefault("audit.capacity", cfg.Audit.Capacity)
	v.SetDefault("http.enabled", cfg.HTTP.Enabled)
	v.SetDefault("http.address", cfg.HTTP.Address)

	v.SetEnvPrefix("DELTACRDT")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", configPath, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Node.Name == "" {
		return &replica.ConfigMissing{Field: "node.name"}
	}
	if cfg.Lattice.Type == "" {
		return &replica.ConfigMissing{Field: "lattice.type"}
	}
	return nil
}

// RandomNodeID draws a 64-bit node identity from a CSPRNG (spec §9:
// "64 bits from a CSPRNG is safer than the source's ~30-bit range").
func RandomNodeID() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("config: failed to generate node id: %w", err)
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}
