// Package config loads the ppctl serve configuration from a YAML file,
// with environment variable overrides via viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// RelayConfig describes one listener/backend pair the relay forwards
// between, prepending a PROXY protocol header on every new backend
// connection.
type RelayConfig struct {
	ListenAddr  string `mapstructure:"listen_addr" yaml:"listen_addr"`
	BackendAddr string `mapstructure:"backend_addr" yaml:"backend_addr"`
	ProtoTCP    bool   `mapstructure:"proto_tcp" yaml:"proto_tcp"`

	// HeaderVersion selects which PROXY protocol version the relay
	// prepends: 1 (text) or 2 (binary).
	HeaderVersion int `mapstructure:"header_version" yaml:"header_version"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Config is the full ppctl serve configuration.
type Config struct {
	Log LogConfig `mapstructure:"log" yaml:"log"`

	Relays []RelayConfig `mapstructure:"relays" yaml:"relays"`

	// MetricsAddr is the listen address for the Prometheus /metrics
	// endpoint. Empty disables the endpoint.
	MetricsAddr string `mapstructure:"metrics_addr" yaml:"metrics_addr"`

	// AuditDB is the path of the SQLite audit log. Empty disables
	// auditing.
	AuditDB string `mapstructure:"audit_db" yaml:"audit_db"`

	// HealthcheckSchedule is a standard cron expression; at each tick a
	// fresh v2 LOCAL health-check header is written to
	// HealthcheckBackend. Empty disables the emitter.
	HealthcheckSchedule string `mapstructure:"healthcheck_schedule" yaml:"healthcheck_schedule"`
	HealthcheckBackend  string `mapstructure:"healthcheck_backend" yaml:"healthcheck_backend"`
}

// Load reads path into a Config. Environment variables prefixed with
// PPCTL_ override file values (PPCTL_METRICS_ADDR, PPCTL_LOG_LEVEL, ...).
func Load(path string) (*Config, error) {
	v := viper.New()

	dir := filepath.Dir(path)
	filename := filepath.Base(path)
	ext := filepath.Ext(filename)

	v.SetConfigName(strings.TrimSuffix(filename, ext))
	v.SetConfigType(strings.TrimPrefix(ext, "."))
	v.AddConfigPath(dir)

	v.SetEnvPrefix("PPCTL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	for i := range cfg.Relays {
		if cfg.Relays[i].HeaderVersion == 0 {
			cfg.Relays[i].HeaderVersion = 2
		}
	}
}

// Validate rejects configurations the relay cannot act on.
func (c *Config) Validate() error {
	for i, r := range c.Relays {
		if r.ListenAddr == "" {
			return fmt.Errorf("relay %d: listen_addr is required", i)
		}
		if r.BackendAddr == "" {
			return fmt.Errorf("relay %d: backend_addr is required", i)
		}
		if r.HeaderVersion != 1 && r.HeaderVersion != 2 {
			return fmt.Errorf("relay %d: header_version must be 1 or 2, got %d", i, r.HeaderVersion)
		}
	}
	if c.HealthcheckSchedule != "" && c.HealthcheckBackend == "" {
		return fmt.Errorf("healthcheck_schedule set without healthcheck_backend")
	}
	return nil
}

// Example renders a ready-to-edit YAML configuration with one TCP relay,
// for ppctl serve --init-config.
func Example() ([]byte, error) {
	cfg := Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Relays: []RelayConfig{
			{
				ListenAddr:    ":8080",
				BackendAddr:   "127.0.0.1:9000",
				ProtoTCP:      true,
				HeaderVersion: 2,
			},
		},
		MetricsAddr:         ":9100",
		AuditDB:             "ppctl-audit.db",
		HealthcheckSchedule: "@every 30s",
		HealthcheckBackend:  "127.0.0.1:9000",
	}
	return yaml.Marshal(&cfg)
}
