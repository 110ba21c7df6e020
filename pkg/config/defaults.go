package config

import "time"

// Default values for configuration fields.
const (
	// API defaults
	DefaultAPIBaseURL        = "http://localhost:8000"
	DefaultAPITimeout        = 10 * time.Second
	DefaultAPIMaxRetries     = 2
	DefaultRevalidateTimeout = 30 * time.Second

	// Cache defaults
	DefaultCacheBackend    = "memory"
	DefaultCacheTTL        = time.Hour
	DefaultCacheMaxEntries = 256
	DefaultCacheSQLitePath = "data/beacon.db"
	DefaultCacheKeepLatest = 10

	// Refresh defaults
	DefaultRefreshSchedule = "*/5 * * * *"
	DefaultPruneSchedule   = "0 3 * * *"

	// Server defaults
	DefaultListenAddress = "127.0.0.1:9090"
	DefaultReadTimeout   = 15 * time.Second
	DefaultWriteTimeout  = 15 * time.Second
	DefaultIdleTimeout   = 120 * time.Second

	// Logging defaults
	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = "json"

	// Metrics defaults
	DefaultMetricsNamespace = "beacon"
	DefaultMetricsSubsystem = "fetch"
	DefaultMetricsPath      = "/metrics"
)

// ApplyDefaults fills zero-valued fields with their defaults. It is
// idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// API defaults
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = DefaultAPIBaseURL
	}
	if cfg.API.DurableBaseURL == "" {
		cfg.API.DurableBaseURL = cfg.API.BaseURL
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = DefaultAPITimeout
	}
	if cfg.API.MaxRetries == 0 {
		cfg.API.MaxRetries = DefaultAPIMaxRetries
	}
	if cfg.API.RevalidateTimeout == 0 {
		cfg.API.RevalidateTimeout = DefaultRevalidateTimeout
	}

	// Cache defaults
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = DefaultCacheBackend
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = DefaultCacheTTL
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = DefaultCacheMaxEntries
	}
	if cfg.Cache.SQLitePath == "" {
		cfg.Cache.SQLitePath = DefaultCacheSQLitePath
	}
	if cfg.Cache.KeepLatest == 0 {
		cfg.Cache.KeepLatest = DefaultCacheKeepLatest
	}

	// Refresh defaults: schedules stay empty unless the section is in
	// use, so a bare config does not spin up background jobs.
	if len(cfg.Refresh.Keys) > 0 && cfg.Refresh.Schedule == "" {
		cfg.Refresh.Schedule = DefaultRefreshSchedule
	}
	if cfg.Cache.Backend == "sqlite" && cfg.Refresh.PruneSchedule == "" {
		cfg.Refresh.PruneSchedule = DefaultPruneSchedule
	}

	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}

	// Metrics defaults
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
}

// DefaultConfig returns a configuration with all defaults applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Metrics.Enabled = true
	return cfg
}
