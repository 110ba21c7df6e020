package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML configuration file, applies defaults, and validates
// the result. Environment variables are not consulted; use
// LoadWithEnvOverrides for that.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Variables follow the convention
// BEACON_SECTION_FIELD (e.g. BEACON_API_BASE_URL) and always take
// precedence over file values.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate the final configuration
func LoadWithEnvOverrides(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// DefaultWithEnvOverrides builds a configuration from defaults and
// BEACON_* environment variables alone, for running without a config
// file.
func DefaultWithEnvOverrides() (*Config, error) {
	cfg := DefaultConfig()
	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies BEACON_* environment variables to the
// configuration.
func applyEnvOverrides(cfg *Config) {
	// API overrides
	if val := os.Getenv("BEACON_API_BASE_URL"); val != "" {
		cfg.API.BaseURL = val
	}
	if val := os.Getenv("BEACON_API_DURABLE_BASE_URL"); val != "" {
		cfg.API.DurableBaseURL = val
	}
	if val := os.Getenv("BEACON_API_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.API.Timeout = d
		}
	}
	if val := os.Getenv("BEACON_API_MAX_RETRIES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.API.MaxRetries = i
		}
	}
	if val := os.Getenv("BEACON_API_REVALIDATE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.API.RevalidateTimeout = d
		}
	}

	// Cache overrides
	if val := os.Getenv("BEACON_CACHE_BACKEND"); val != "" {
		cfg.Cache.Backend = val
	}
	if val := os.Getenv("BEACON_CACHE_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Cache.TTL = d
		}
	}
	if val := os.Getenv("BEACON_CACHE_MAX_ENTRIES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Cache.MaxEntries = i
		}
	}
	if val := os.Getenv("BEACON_CACHE_SQLITE_PATH"); val != "" {
		cfg.Cache.SQLitePath = val
	}
	if val := os.Getenv("BEACON_CACHE_KEEP_LATEST"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Cache.KeepLatest = i
		}
	}

	// Fallback overrides
	if val := os.Getenv("BEACON_FALLBACK_FILE"); val != "" {
		cfg.Fallback.File = val
	}
	if val := os.Getenv("BEACON_FALLBACK_WATCH"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Fallback.Watch = b
		}
	}

	// Refresh overrides
	if val := os.Getenv("BEACON_REFRESH_SCHEDULE"); val != "" {
		cfg.Refresh.Schedule = val
	}
	if val := os.Getenv("BEACON_REFRESH_KEYS"); val != "" {
		keys := strings.Split(val, ",")
		for i := range keys {
			keys[i] = strings.TrimSpace(keys[i])
		}
		cfg.Refresh.Keys = keys
	}
	if val := os.Getenv("BEACON_REFRESH_PRUNE_SCHEDULE"); val != "" {
		cfg.Refresh.PruneSchedule = val
	}

	// Server overrides
	if val := os.Getenv("BEACON_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("BEACON_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("BEACON_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if val := os.Getenv("BEACON_SERVER_IDLE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.IdleTimeout = d
		}
	}

	// Logging overrides
	if val := os.Getenv("BEACON_LOGGING_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("BEACON_LOGGING_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}
	if val := os.Getenv("BEACON_LOGGING_ADD_SOURCE"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Logging.AddSource = b
		}
	}

	// Metrics overrides
	if val := os.Getenv("BEACON_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("BEACON_METRICS_PATH"); val != "" {
		cfg.Metrics.Path = val
	}
}
