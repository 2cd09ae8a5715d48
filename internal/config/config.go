// ABOUTME: Biomarkers configuration management with backend selection.
// ABOUTME: Loads the JSON config file, applies env overrides, and opens the storage backend.

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/harperreed/biomarkers/internal/storage"
)

// Backend names accepted by OpenStorage.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendBadger   = "badger"
	BackendMarkdown = "markdown"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// DefaultAddr is the HTTP listen address used when none is configured.
const DefaultAddr = ":5000"

// Backends lists every backend name in display order.
var Backends = []string{BackendSQLite, BackendMemory, BackendBadger, BackendMarkdown, BackendPostgres, BackendRedis}

// Config stores biomarkers configuration.
type Config struct {
	// Backend selects the storage backend, defaulting to "sqlite".
	Backend string `json:"backend,omitempty" env:"BIOMARKERS_BACKEND"`

	// DataDir is the root directory for data storage.
	// SQLite puts biomarkers.db here, Badger uses badger/, Markdown uses entries/.
	// Supports ~ expansion for home directory. Defaults to ~/.local/share/biomarkers.
	DataDir string `json:"data_dir,omitempty" env:"BIOMARKERS_DATA_DIR"`

	// Addr is the HTTP listen address for serve.
	Addr string `json:"addr,omitempty" env:"BIOMARKERS_ADDR"`

	// Timezone names the IANA zone whose calendar decides what "today" is
	// and how timestamps map to days. Empty means the system zone.
	Timezone string `json:"timezone,omitempty" env:"BIOMARKERS_TIMEZONE"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty" env:"BIOMARKERS_LOG_LEVEL"`

	PostgresDSN string `json:"postgres_dsn,omitempty" env:"BIOMARKERS_POSTGRES_DSN"`
	RedisAddr   string `json:"redis_addr,omitempty" env:"BIOMARKERS_REDIS_ADDR"`
	RedisPrefix string `json:"redis_prefix,omitempty" env:"BIOMARKERS_REDIS_PREFIX"`
}

// GetBackend returns the configured backend, defaulting to "sqlite".
func (c *Config) GetBackend() string {
	if c.Backend == "" {
		return BackendSQLite
	}
	return strings.ToLower(c.Backend)
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return storage.DataDir()
	}
	return ExpandPath(c.DataDir)
}

// GetAddr returns the listen address, defaulting to DefaultAddr.
func (c *Config) GetAddr() string {
	if c.Addr == "" {
		return DefaultAddr
	}
	return c.Addr
}

// Location resolves Timezone. Empty or "Local" is the system zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// GetLogLevel parses LogLevel, defaulting to info.
func (c *Config) GetLogLevel() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// StoragePath returns where a file backed store keeps its data, or "" for
// the memory and network backends.
func (c *Config) StoragePath() string {
	dataDir := c.GetDataDir()
	switch c.GetBackend() {
	case BackendSQLite:
		return filepath.Join(dataDir, "biomarkers.db")
	case BackendBadger:
		return filepath.Join(dataDir, "badger")
	case BackendMarkdown:
		return filepath.Join(dataDir, "entries")
	}
	return ""
}

// OpenStorage creates a Repository implementation based on the configured backend.
func (c *Config) OpenStorage(ctx context.Context) (storage.Repository, error) {
	backend := c.GetBackend()

	switch backend {
	case BackendMemory:
		return storage.NewMemoryStore(), nil
	case BackendSQLite:
		return storage.Open(c.StoragePath())
	case BackendBadger:
		return storage.OpenBadger(c.StoragePath())
	case BackendMarkdown:
		return storage.NewMarkdownStore(c.GetDataDir())
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return nil, fmt.Errorf("backend %q requires postgres_dsn", backend)
		}
		return storage.OpenPostgres(ctx, c.PostgresDSN)
	case BackendRedis:
		if c.RedisAddr == "" {
			return nil, fmt.Errorf("backend %q requires redis_addr", backend)
		}
		return storage.OpenRedis(ctx, c.RedisAddr, c.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown backend: %q", backend)
	}
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "biomarkers", "config.json")
}

// Load reads config from disk and applies BIOMARKERS_* environment overrides.
func Load() (*Config, error) {
	cfg, err := LoadFile(GetConfigPath())
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads config from path. A missing file yields an empty Config.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyEnv overrides fields whose environment variables are set.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}

// Validate checks fields that would otherwise fail later at startup.
func (c *Config) Validate() error {
	known := false
	for _, b := range Backends {
		if c.GetBackend() == b {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown backend: %q", c.Backend)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.GetLogLevel(); err != nil {
		return err
	}
	return nil
}

// Save writes config to disk.
func (c *Config) Save() error {
	path := GetConfigPath()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
