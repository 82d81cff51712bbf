// Package config loads tempo's configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	// Remote is the base URL of the sync endpoint. Empty disables sync;
	// the engine then runs purely local.
	Remote string `yaml:"remote"`
	// ActorID identifies this user to the remote. Defaults to the
	// hostname when unset.
	ActorID string `yaml:"actor_id"`
	// DBPath is the sqlite file backing local state.
	DBPath string `yaml:"db_path"`
	// CacheGeneration tags cached remote responses; change it to drop
	// caches from older builds.
	CacheGeneration string `yaml:"cache_generation"`

	Sync    SyncConfig    `yaml:"sync"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// SyncConfig tunes the reconciliation loop.
type SyncConfig struct {
	PushDebounce time.Duration `yaml:"push_debounce"`
	PullInterval time.Duration `yaml:"pull_interval"`
	Timeout      time.Duration `yaml:"timeout"`
	// MessageTail caps how many recent messages per session each push
	// carries.
	MessageTail int `yaml:"message_tail"`
}

// ServerConfig configures the local HTTP surface.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Verbose bool `yaml:"verbose"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() *Config {
	host, _ := os.Hostname()
	return &Config{
		ActorID:         host,
		DBPath:          defaultDBPath(),
		CacheGeneration: "v3",
		Sync: SyncConfig{
			PushDebounce: 400 * time.Millisecond,
			PullInterval: 30 * time.Second,
			Timeout:      20 * time.Second,
			MessageTail:  50,
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:8275",
		},
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "tempo.db"
	}
	return filepath.Join(home, ".tempo", "tempo.db")
}

// Load reads path over the defaults. A missing file is not an error; the
// defaults plus environment overrides apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TEMPO_REMOTE_URL"); v != "" {
		cfg.Remote = v
	}
	if v := os.Getenv("TEMPO_ACTOR_ID"); v != "" {
		cfg.ActorID = v
	}
	if v := os.Getenv("TEMPO_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
}

func (c *Config) validate() error {
	if c.Sync.PushDebounce <= 0 {
		return fmt.Errorf("sync.push_debounce must be positive, got %s", c.Sync.PushDebounce)
	}
	if c.Sync.PullInterval <= 0 {
		return fmt.Errorf("sync.pull_interval must be positive, got %s", c.Sync.PullInterval)
	}
	if c.Sync.MessageTail <= 0 {
		return fmt.Errorf("sync.message_tail must be positive, got %d", c.Sync.MessageTail)
	}
	if c.Sync.Timeout <= 0 {
		return fmt.Errorf("sync.timeout must be positive, got %s", c.Sync.Timeout)
	}
	return nil
}
