// Package config loads the driver's root configuration: defaults first,
// then an optional YAML file, then .env/.env.local, then environment
// variables. Env wins over file, file wins over built-in defaults.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// HTTPConfig controls the optional admin HTTP API.
type HTTPConfig struct {
	Enable  bool   `yaml:"enable" envconfig:"ENABLE"`
	Addr    string `yaml:"addr" envconfig:"ADDR"`
	APIKey  string `yaml:"api_key" envconfig:"API_KEY"`
	DevMode bool   `yaml:"dev_mode" envconfig:"DEV_MODE"`
}

// PersistenceConfig controls the file-backed player/world/permission
// store and its auto-save cadence.
type PersistenceConfig struct {
	DataPath           string `yaml:"data_path" envconfig:"DATA_PATH"`
	AutoSaveIntervalMs int    `yaml:"auto_save_interval_ms" envconfig:"AUTO_SAVE_INTERVAL_MS"`
}

// PermissionsConfig seeds the Permissions subsystem's protected-path
// set. Leave nil to use the built-in default ({"/std/", "/daemons/",
// "/core/"}).
type PermissionsConfig struct {
	ProtectedPaths []string `yaml:"protected_paths" envconfig:"PROTECTED_PATHS"`
}

// Config is the root configuration structure loaded by Load; cmd
// maps it onto driver.Config when wiring the process.
type Config struct {
	// MudlibPath is the filesystem directory the Compiler/HotReload
	// watch mirrors the content path namespace against.
	MudlibPath string `yaml:"mudlib_path" envconfig:"MUDLIB_PATH"`

	// MasterObjectPath is the content path compiled at boot and handed
	// the driver start/preload/shutdown hooks. Defaults to "/master".
	MasterObjectPath string `yaml:"master_object_path" envconfig:"MASTER_OBJECT_PATH"`

	// Port is the game-facing listen port. The core does not implement
	// network transport; this is surfaced to whatever external
	// transport layer the operator wires in.
	Port int `yaml:"port" envconfig:"PORT"`

	// HeartbeatIntervalMs is the Scheduler's heartbeat tick period.
	// Zero means scheduler.DefaultHeartbeatIntervalMs.
	HeartbeatIntervalMs int `yaml:"heartbeat_interval_ms" envconfig:"HEARTBEAT_INTERVAL_MS"`

	// LogLevel controls structured logging verbosity (DEBUG, INFO,
	// WARN, ERROR).
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`

	// HotReloadEnabled turns on the file-watch-driven Hot-Reload
	// Controller.
	HotReloadEnabled bool `yaml:"hot_reload_enabled" envconfig:"HOT_RELOAD_ENABLED"`

	Persistence PersistenceConfig `yaml:"persistence" envconfig:"PERSISTENCE"`
	Permissions PermissionsConfig `yaml:"permissions" envconfig:"PERMISSIONS"`
	HTTP        HTTPConfig        `yaml:"http" envconfig:"HTTP"`
}

// Load reads configuration from path (if non-empty and present), layers
// .env/.env.local over it, then applies "MUD"-prefixed environment
// variables on top. Env wins over file, file wins over built-in
// defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	cfg := &Config{
		MasterObjectPath:    "/master",
		HeartbeatIntervalMs: 2000,
		LogLevel:            "INFO",
	}
	cfg.Persistence.DataPath = "./data"
	cfg.Persistence.AutoSaveIntervalMs = 60_000
	cfg.HTTP.Addr = ":8080"

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	if err := envconfig.Process("MUD", cfg); err != nil {
		return nil, fmt.Errorf("config: process env vars: %w", err)
	}

	return cfg, nil
}
