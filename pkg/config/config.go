// Package config defines Beacon's configuration model: a YAML file with
// defaults applied, environment-variable overrides (BEACON_*), and
// validation.
package config

import "time"

// Config is the root configuration.
type Config struct {
	// API configures the live and durable metric endpoints.
	API APIConfig `yaml:"api"`

	// Cache configures the local cache store.
	Cache CacheConfig `yaml:"cache"`

	// Fallback configures the static fallback table.
	Fallback FallbackConfig `yaml:"fallback"`

	// Refresh configures background cache warming and pruning.
	Refresh RefreshConfig `yaml:"refresh"`

	// Server configures the sidecar HTTP server (`beacon serve`).
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures Prometheus instrumentation.
	Metrics MetricsConfig `yaml:"metrics"`
}

// APIConfig configures the HTTP tiers of the retrieval chain.
type APIConfig struct {
	// BaseURL is the metrics backend base URL.
	BaseURL string `yaml:"base_url"`

	// DurableBaseURL is the base URL for the durable-cache endpoint.
	// Defaults to BaseURL.
	DurableBaseURL string `yaml:"durable_base_url"`

	// Timeout is the per-request timeout.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the live tier's retry budget for transient failures.
	MaxRetries int `yaml:"max_retries"`

	// RevalidateTimeout bounds each background revalidation fetch.
	RevalidateTimeout time.Duration `yaml:"revalidate_timeout"`
}

// CacheConfig configures the local cache store.
type CacheConfig struct {
	// Backend selects the store implementation: "memory" or "sqlite".
	Backend string `yaml:"backend"`

	// TTL is the memory store's entry time-to-live (0 = no expiry).
	TTL time.Duration `yaml:"ttl"`

	// MaxEntries is the memory store's LRU capacity (0 = unlimited).
	MaxEntries int `yaml:"max_entries"`

	// SQLitePath is the sqlite store's database file.
	SQLitePath string `yaml:"sqlite_path"`

	// KeepLatest is how many snapshot rows per key the sqlite store
	// retains when pruning.
	KeepLatest int `yaml:"keep_latest"`
}

// FallbackConfig configures the static fallback table.
type FallbackConfig struct {
	// File is a YAML file of per-key fallback payloads. Empty disables
	// the static tier.
	File string `yaml:"file"`

	// Watch reloads the file on change.
	Watch bool `yaml:"watch"`
}

// RefreshConfig configures the background refresher.
type RefreshConfig struct {
	// Schedule is a cron expression for cache warming. Empty disables
	// warming.
	Schedule string `yaml:"schedule"`

	// Keys is the list of metric keys to keep warm.
	Keys []string `yaml:"keys"`

	// PruneSchedule is a cron expression for sqlite snapshot pruning.
	// Empty disables pruning.
	PruneSchedule string `yaml:"prune_schedule"`
}

// ServerConfig configures the sidecar HTTP server.
type ServerConfig struct {
	// ListenAddress is the host:port to bind.
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the HTTP read timeout.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `yaml:"level"`

	// Format is the output format ("json", "text", "console").
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig configures Prometheus instrumentation.
type MetricsConfig struct {
	// Enabled toggles metric collection.
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric name prefix.
	Namespace string `yaml:"namespace"`

	// Subsystem is the secondary metric name prefix.
	Subsystem string `yaml:"subsystem"`

	// Path is where the sidecar server mounts the exposition endpoint.
	Path string `yaml:"path"`
}
