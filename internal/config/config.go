// Package config handles braid configuration loading and defaults.
// Configuration is read once at process start and never hot-reloaded.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names for braid configuration.
const (
	EnvBraidDir     = "BRAID_DIR"           // Path to .braid directory
	EnvActor        = "BRAID_ACTOR"         // Override actor name
	EnvSyncInterval = "BRAID_SYNC_INTERVAL" // Override daemon sync interval (Go duration)
	EnvNoDaemon     = "BRAID_NO_DAEMON"     // Operate directly on the store ("1" or "true")
	EnvJSON         = "BRAID_JSON"          // Enable JSON output ("1" or "true")
)

// Config represents the contents of .braid/config.yml.
type Config struct {
	Defaults DefaultsConfig `yaml:"defaults"`
	ID       IDConfig       `yaml:"id"`
	Actor    string         `yaml:"actor"`
	Sync     SyncConfig     `yaml:"sync"`
}

type DefaultsConfig struct {
	Priority string `yaml:"priority"`
	Type     string `yaml:"type"`
}

type IDConfig struct {
	Prefix string `yaml:"prefix"`
}

// Duration wraps time.Duration with YAML support for strings like "30s"
// and bare integers meaning seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// SyncConfig controls the per-workspace sync daemon.
type SyncConfig struct {
	// Interval between reconciliation ticks when changes are pending.
	Interval Duration `yaml:"interval"`
	// AutoStart launches the daemon from the first CLI invocation in a
	// workspace that has none running.
	AutoStart bool `yaml:"auto_start"`
	// NoDaemon bypasses the daemon entirely; the CLI operates directly on
	// the store. Intended for git worktrees.
	NoDaemon bool `yaml:"no_daemon"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Defaults: DefaultsConfig{
			Priority: "medium",
			Type:     "task",
		},
		ID: IDConfig{
			Prefix: "br-",
		},
		Actor: os.Getenv("USER"),
		Sync: SyncConfig{
			Interval:  Duration(5 * time.Second),
			AutoStart: true,
		},
	}
}

// Load reads config.yml from path, applies defaults for missing fields and
// environment overrides on top. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, err
	}

	if cfg.Sync.Interval <= 0 {
		cfg.Sync.Interval = Duration(5 * time.Second)
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides layers process environment settings over the file.
// These overrides are never persisted.
func (cfg *Config) applyEnvOverrides() {
	if actor := os.Getenv(EnvActor); actor != "" {
		cfg.Actor = actor
	}
	if raw := os.Getenv(EnvSyncInterval); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.Sync.Interval = Duration(d)
		}
	}
	if truthy(os.Getenv(EnvNoDaemon)) {
		cfg.Sync.NoDaemon = true
	}
}

func truthy(s string) bool {
	if s == "" {
		return false
	}
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

// Write writes the provided configuration to path.
func Write(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// WriteDefault writes the default configuration to path.
func WriteDefault(path string) error {
	return Write(path, Default())
}
