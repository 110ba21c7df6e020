package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
api:
  base_url: http://localhost:8000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Timeout != DefaultAPITimeout {
		t.Errorf("API.Timeout = %v, want %v", cfg.API.Timeout, DefaultAPITimeout)
	}
	if cfg.API.DurableBaseURL != "http://localhost:8000" {
		t.Errorf("API.DurableBaseURL = %q, want base URL fallback", cfg.API.DurableBaseURL)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("Cache.Backend = %q, want %q", cfg.Cache.Backend, "memory")
	}
	if cfg.Cache.TTL != DefaultCacheTTL {
		t.Errorf("Cache.TTL = %v, want %v", cfg.Cache.TTL, DefaultCacheTTL)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %q/%q, want info/json", cfg.Logging.Level, cfg.Logging.Format)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want /metrics", cfg.Metrics.Path)
	}
}

func TestLoad_FileValuesWin(t *testing.T) {
	path := writeConfigFile(t, `
api:
  base_url: https://api.example.com
  timeout: 3s
  max_retries: 5
cache:
  backend: sqlite
  sqlite_path: /tmp/beacon-test.db
  keep_latest: 3
server:
  listen_address: 0.0.0.0:7777
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.BaseURL != "https://api.example.com" {
		t.Errorf("API.BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 3*time.Second {
		t.Errorf("API.Timeout = %v, want 3s", cfg.API.Timeout)
	}
	if cfg.API.MaxRetries != 5 {
		t.Errorf("API.MaxRetries = %d, want 5", cfg.API.MaxRetries)
	}
	if cfg.Cache.Backend != "sqlite" {
		t.Errorf("Cache.Backend = %q, want sqlite", cfg.Cache.Backend)
	}
	if cfg.Cache.KeepLatest != 3 {
		t.Errorf("Cache.KeepLatest = %d, want 3", cfg.Cache.KeepLatest)
	}
	if cfg.Refresh.PruneSchedule != DefaultPruneSchedule {
		t.Errorf("Refresh.PruneSchedule = %q, want default for sqlite backend", cfg.Refresh.PruneSchedule)
	}
	if cfg.Server.ListenAddress != "0.0.0.0:7777" {
		t.Errorf("Server.ListenAddress = %q", cfg.Server.ListenAddress)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("Load() should fail for a missing file")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfigFile(t, "api: [unterminated")
	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() should fail for malformed YAML")
	}
	if !strings.Contains(err.Error(), "parse") {
		t.Errorf("error %q should mention parsing", err)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
api:
  base_url: http://localhost:8000
`)

	t.Setenv("BEACON_API_BASE_URL", "https://override.example.com")
	t.Setenv("BEACON_API_TIMEOUT", "7s")
	t.Setenv("BEACON_CACHE_BACKEND", "sqlite")
	t.Setenv("BEACON_CACHE_SQLITE_PATH", "/tmp/override.db")
	t.Setenv("BEACON_REFRESH_KEYS", "stripe_mrr, stripe_customers")
	t.Setenv("BEACON_LOGGING_LEVEL", "debug")
	t.Setenv("BEACON_METRICS_ENABLED", "true")

	cfg, err := LoadWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadWithEnvOverrides() error = %v", err)
	}

	if cfg.API.BaseURL != "https://override.example.com" {
		t.Errorf("API.BaseURL = %q, want env override", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 7*time.Second {
		t.Errorf("API.Timeout = %v, want 7s", cfg.API.Timeout)
	}
	if cfg.Cache.Backend != "sqlite" {
		t.Errorf("Cache.Backend = %q, want sqlite", cfg.Cache.Backend)
	}
	want := []string{"stripe_mrr", "stripe_customers"}
	if len(cfg.Refresh.Keys) != len(want) {
		t.Fatalf("Refresh.Keys = %v, want %v", cfg.Refresh.Keys, want)
	}
	for i := range want {
		if cfg.Refresh.Keys[i] != want[i] {
			t.Errorf("Refresh.Keys[%d] = %q, want %q", i, cfg.Refresh.Keys[i], want[i])
		}
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want env override true")
	}
}

func TestLoadWithEnvOverrides_InvalidDurationIgnored(t *testing.T) {
	path := writeConfigFile(t, `
api:
  base_url: http://localhost:8000
  timeout: 3s
`)

	t.Setenv("BEACON_API_TIMEOUT", "not-a-duration")

	cfg, err := LoadWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadWithEnvOverrides() error = %v", err)
	}
	if cfg.API.Timeout != 3*time.Second {
		t.Errorf("API.Timeout = %v, want file value kept", cfg.API.Timeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:   "valid defaults",
			mutate: func(cfg *Config) {},
		},
		{
			name:      "missing base URL",
			mutate:    func(cfg *Config) { cfg.API.BaseURL = "" },
			wantField: "api.base_url",
		},
		{
			name:      "base URL without scheme",
			mutate:    func(cfg *Config) { cfg.API.BaseURL = "localhost:8000" },
			wantField: "api.base_url",
		},
		{
			name:      "unknown cache backend",
			mutate:    func(cfg *Config) { cfg.Cache.Backend = "redis" },
			wantField: "cache.backend",
		},
		{
			name: "sqlite without path",
			mutate: func(cfg *Config) {
				cfg.Cache.Backend = "sqlite"
				cfg.Cache.SQLitePath = ""
			},
			wantField: "cache.sqlite_path",
		},
		{
			name:      "negative retries",
			mutate:    func(cfg *Config) { cfg.API.MaxRetries = -1 },
			wantField: "api.max_retries",
		},
		{
			name: "bad cron expression",
			mutate: func(cfg *Config) {
				cfg.Refresh.Schedule = "every 5 minutes"
				cfg.Refresh.Keys = []string{"stripe_mrr"}
			},
			wantField: "refresh.schedule",
		},
		{
			name: "schedule without keys",
			mutate: func(cfg *Config) {
				cfg.Refresh.Schedule = "*/5 * * * *"
			},
			wantField: "refresh.keys",
		},
		{
			name:      "unknown log level",
			mutate:    func(cfg *Config) { cfg.Logging.Level = "verbose" },
			wantField: "logging.level",
		},
		{
			name:      "metrics path without slash",
			mutate:    func(cfg *Config) { cfg.Metrics.Path = "metrics" },
			wantField: "metrics.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}

			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error type = %T, want ValidationError", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("ValidationError %v missing field %q", verr.Errors, tt.wantField)
			}
		})
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	first := *cfg
	ApplyDefaults(cfg)

	if first.API != cfg.API {
		t.Errorf("API changed on second application: %+v vs %+v", first.API, cfg.API)
	}
	if first.Cache != cfg.Cache {
		t.Errorf("Cache changed on second application: %+v vs %+v", first.Cache, cfg.Cache)
	}
	if first.Server != cfg.Server {
		t.Errorf("Server changed on second application: %+v vs %+v", first.Server, cfg.Server)
	}
	if first.Logging != cfg.Logging {
		t.Errorf("Logging changed on second application: %+v vs %+v", first.Logging, cfg.Logging)
	}
}
