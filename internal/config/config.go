// Package config loads the beacon YAML configuration.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"
	_ "time/tzdata" // timezone lookups must work in minimal containers

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file used when --config is not given.
const DefaultPath = "beacon.yaml"

// Environment variables that override secrets from the file.
const (
	EnvTelegramToken = "BEACON_TELEGRAM_TOKEN"
	EnvAdminKey      = "BEACON_ADMIN_KEY"
	EnvDatabaseDSN   = "BEACON_DATABASE_DSN"
)

// Config is the root configuration structure
type Config struct {
	Version  int            `yaml:"version"`
	Database DatabaseConfig `yaml:"database"`
	Targets  []TargetConfig `yaml:"targets"`
	Probe    ProbeConfig    `yaml:"probe"`
	Engine   EngineConfig   `yaml:"engine"`
	Telegram TelegramConfig `yaml:"telegram"`
	Admin    AdminConfig    `yaml:"admin"`
	Lock     LockConfig     `yaml:"lock"`
	Logging  LoggingConfig  `yaml:"logging"`
	Timezone string         `yaml:"timezone"` // IANA name used when rendering timestamps
}

// DatabaseConfig selects the SQL backend
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite3" or "postgres"
	DSN    string `yaml:"dsn"`
}

// TargetConfig is one monitored game server
type TargetConfig struct {
	Name string `yaml:"name"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Address returns host:port for dialing.
func (t TargetConfig) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// ProbeConfig holds liveness probe settings
type ProbeConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// EngineConfig holds tick scheduling and fan-out settings
type EngineConfig struct {
	Interval         time.Duration `yaml:"interval"`
	FailureThreshold int           `yaml:"failure_threshold"`
	DispatchTimeout  time.Duration `yaml:"dispatch_timeout"`
	DispatchWorkers  int           `yaml:"dispatch_workers"`
}

// TelegramConfig holds Bot API settings. An empty token disables chat.
type TelegramConfig struct {
	Token       string        `yaml:"token"`
	APIURL      string        `yaml:"api_url"`
	PollTimeout time.Duration `yaml:"poll_timeout"`
}

// AdminConfig holds the admin HTTP surface settings. An empty listen
// address disables it.
type AdminConfig struct {
	Listen string `yaml:"listen"`
	Key    string `yaml:"key"`
}

// LockConfig selects the tick lock backend. Without etcd endpoints ticks
// are serialized in process only.
type LockConfig struct {
	EtcdEndpoints []string `yaml:"etcd_endpoints"`
	Prefix        string   `yaml:"prefix"`
	TTL           int      `yaml:"ttl"` // seconds
}

// LoggingConfig holds slog settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// DefaultConfig returns a configuration that runs a single local target
// against a sqlite database under ~/.beacon.
func DefaultConfig() *Config {
	dsn := "beacon.db"
	if home, err := os.UserHomeDir(); err == nil {
		dsn = filepath.Join(home, ".beacon", "beacon.db")
	}

	return &Config{
		Version:  1,
		Database: DatabaseConfig{Driver: "sqlite3", DSN: dsn},
		Targets:  []TargetConfig{{Name: "main", Host: "localhost", Port: 25565}},
		Probe:    ProbeConfig{Timeout: 4 * time.Second},
		Engine: EngineConfig{
			Interval:         5 * time.Second,
			FailureThreshold: 15,
			DispatchTimeout:  time.Minute,
			DispatchWorkers:  4,
		},
		Telegram: TelegramConfig{
			APIURL:      "https://api.telegram.org",
			PollTimeout: 30 * time.Second,
		},
		Lock:     LockConfig{Prefix: "/beacon/ticks", TTL: 10},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Timezone: "UTC",
	}
}

// LoadConfig reads the YAML file at path over DefaultConfig, applies
// environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides secrets from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvTelegramToken); ok && v != "" {
		c.Telegram.Token = v
	}
	if v, ok := lookup(EnvAdminKey); ok && v != "" {
		c.Admin.Key = v
	}
	if v, ok := lookup(EnvDatabaseDSN); ok && v != "" {
		c.Database.DSN = v
	}
}

// SaveConfig writes cfg as YAML to path. The file may hold secrets, so it
// is only readable by the owner.
func SaveConfig(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config dir: %w", err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported config version: %d (expected 1)", c.Version)
	}

	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %q (expected sqlite3 or postgres)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}

	if len(c.Targets) == 0 {
		return fmt.Errorf("at least one target is required")
	}
	names := make(map[string]bool)
	for i, t := range c.Targets {
		if t.Name == "" {
			return fmt.Errorf("target %d: name is required", i)
		}
		if names[t.Name] {
			return fmt.Errorf("duplicate target name: %s", t.Name)
		}
		names[t.Name] = true
		if t.Host == "" {
			return fmt.Errorf("target %s: host is required", t.Name)
		}
		if t.Port < 1 || t.Port > 65535 {
			return fmt.Errorf("target %s: port %d out of range", t.Name, t.Port)
		}
	}

	if c.Probe.Timeout <= 0 {
		return fmt.Errorf("probe timeout must be positive")
	}
	if c.Engine.Interval <= 0 {
		return fmt.Errorf("engine interval must be positive")
	}
	if c.Engine.FailureThreshold < 1 {
		return fmt.Errorf("engine failure_threshold must be at least 1")
	}
	if c.Engine.DispatchTimeout <= 0 {
		return fmt.Errorf("engine dispatch_timeout must be positive")
	}
	if c.Engine.DispatchWorkers < 1 {
		return fmt.Errorf("engine dispatch_workers must be at least 1")
	}

	if c.Admin.Listen != "" && c.Admin.Key == "" {
		return fmt.Errorf("admin key is required when admin listen is set")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format: %q", c.Logging.Format)
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	return nil
}

// Location resolves Timezone, defaulting to UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
