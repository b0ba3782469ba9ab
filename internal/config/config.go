// Package config provides configuration management for the discovery
// service.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/goccy/go-json"
)

const (
	// DefaultWorkerPort is the default HTTP port for the discovery worker.
	DefaultWorkerPort = 37811

	// DefaultHistoryMaxEntries caps each user's search history log.
	DefaultHistoryMaxEntries = 100

	// DefaultSweepIntervalHours is how often the retention sweep runs.
	DefaultSweepIntervalHours = 24
)

// Storage backend names accepted in settings.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds the application configuration.
type Config struct {
	// Worker settings
	WorkerPort int `json:"worker_port"`

	// Storage settings
	StorageBackend string `json:"storage_backend"` // sqlite | postgres | memory
	DBPath         string `json:"db_path"`
	PostgresDSN    string `json:"postgres_dsn"`
	MaxConns       int    `json:"max_conns"`

	// History settings
	HistoryMaxEntries  int `json:"history_max_entries"`
	SweepIntervalHours int `json:"sweep_interval_hours"`

	// Personalization cache settings
	CacheTTLSeconds int `json:"cache_ttl_seconds"`
	CacheMaxSize    int `json:"cache_max_size"`
}

var (
	globalConfig *Config
	configOnce   sync.Once
)

// DataDir returns the data directory path (~/.annpale).
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".annpale")
}

// DBPath returns the database file path.
func DBPath() string {
	return filepath.Join(DataDir(), "discovery.db")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		WorkerPort:         DefaultWorkerPort,
		StorageBackend:     BackendSQLite,
		DBPath:             DBPath(),
		MaxConns:           4,
		HistoryMaxEntries:  DefaultHistoryMaxEntries,
		SweepIntervalHours: DefaultSweepIntervalHours,
		CacheTTLSeconds:    30,
		CacheMaxSize:       200,
	}
}

// Load loads configuration from the settings file, merging with defaults.
// Environment variables take precedence over the settings file.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}

	// Load settings into a map to preserve unknown fields
	var settings map[string]interface{}
	if err := json.Unmarshal(data, &settings); err != nil {
		applyEnv(cfg)
		return cfg, nil // Return defaults on parse error
	}

	if v, ok := settings["ANNPALE_WORKER_PORT"].(float64); ok && v > 0 {
		cfg.WorkerPort = int(v)
	}
	if v, ok := settings["ANNPALE_STORAGE_BACKEND"].(string); ok && v != "" {
		cfg.StorageBackend = v
	}
	if v, ok := settings["ANNPALE_DB_PATH"].(string); ok && v != "" {
		cfg.DBPath = v
	}
	if v, ok := settings["ANNPALE_POSTGRES_DSN"].(string); ok && v != "" {
		cfg.PostgresDSN = v
	}
	if v, ok := settings["ANNPALE_MAX_CONNS"].(float64); ok && v > 0 {
		cfg.MaxConns = int(v)
	}
	if v, ok := settings["ANNPALE_HISTORY_MAX_ENTRIES"].(float64); ok && v > 0 {
		cfg.HistoryMaxEntries = int(v)
	}
	if v, ok := settings["ANNPALE_SWEEP_INTERVAL_HOURS"].(float64); ok && v > 0 {
		cfg.SweepIntervalHours = int(v)
	}
	if v, ok := settings["ANNPALE_CACHE_TTL_SECONDS"].(float64); ok && v > 0 {
		cfg.CacheTTLSeconds = int(v)
	}
	if v, ok := settings["ANNPALE_CACHE_MAX_SIZE"].(float64); ok && v > 0 {
		cfg.CacheMaxSize = int(v)
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overrides config values from environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("ANNPALE_WORKER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			cfg.WorkerPort = p
		}
	}
	if v := os.Getenv("ANNPALE_STORAGE_BACKEND"); v != "" {
		cfg.StorageBackend = v
	}
	if v := os.Getenv("ANNPALE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("ANNPALE_POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
}

// Get returns the global configuration, loading it if necessary.
func Get() *Config {
	configOnce.Do(func() {
		var err error
		globalConfig, err = Load()
		if err != nil {
			globalConfig = Default()
		}
	})
	return globalConfig
}
