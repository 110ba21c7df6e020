package main

import (
	"fmt"
	"log/slog"
	"os"

	"beacon-hq/beacon/pkg/cache"
	"beacon-hq/beacon/pkg/config"
	"beacon-hq/beacon/pkg/fetch"
	"beacon-hq/beacon/pkg/source"
	"beacon-hq/beacon/pkg/telemetry/logging"
)

// defaultConfigPath is the value of the --config flag when the user
// does not set it.
const defaultConfigPath = "config.yaml"

// loadConfig loads the configuration file named by the --config flag.
// When the flag is left at its default and no such file exists, Beacon
// runs on defaults plus BEACON_* environment overrides, so `beacon
// fetch` works out of the box.
func loadConfig() (*config.Config, error) {
	if cfgFile == defaultConfigPath {
		if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
			return config.DefaultWithEnvOverrides()
		}
	}
	return config.LoadWithEnvOverrides(cfgFile)
}

// newLogger builds the process logger from config, with --verbose
// forcing debug level.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{
		Level:     level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.AddSource,
	})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

// buildStore creates the local cache store selected by the config.
func buildStore(cfg *config.Config, logger *slog.Logger) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case "sqlite":
		return cache.NewSQLiteStore(&cache.SQLiteConfig{
			Path:   cfg.Cache.SQLitePath,
			Logger: logger,
		})
	default:
		return cache.NewMemoryStore(cfg.Cache.TTL, cfg.Cache.MaxEntries), nil
	}
}

// pipeline bundles the wired retrieval chain so commands can tear it
// down in one place.
type pipeline struct {
	orch   *fetch.Orchestrator
	store  cache.Store
	live   *source.Live
	static *source.StaticTable
}

// Close releases the pipeline's resources.
func (p *pipeline) Close() {
	if p.orch != nil {
		p.orch.Close()
	}
	if p.live != nil {
		p.live.Close()
	}
	if p.store != nil {
		p.store.Close()
	}
}

// buildPipeline wires the full retrieval chain: live source, durable
// source, static fallback table, local cache, and orchestrator.
// metrics may be nil.
func buildPipeline(cfg *config.Config, logger *slog.Logger, metrics fetch.Instrument) (*pipeline, error) {
	store, err := buildStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache store: %w", err)
	}

	live, err := source.NewLive(source.LiveConfig{
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.API.Timeout,
		MaxRetries: cfg.API.MaxRetries,
		Logger:     logger,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to build live source: %w", err)
	}

	durable, err := source.NewDurable(source.DurableConfig{
		BaseURL: cfg.API.DurableBaseURL,
		Timeout: cfg.API.Timeout,
		Logger:  logger,
	})
	if err != nil {
		live.Close()
		store.Close()
		return nil, fmt.Errorf("failed to build durable source: %w", err)
	}

	static := source.NewStaticTable(logger)
	if cfg.Fallback.File != "" {
		if err := static.LoadFile(cfg.Fallback.File); err != nil {
			logger.Warn("failed to load static fallback table",
				"file", cfg.Fallback.File,
				"error", err,
			)
		}
	}

	orch, err := fetch.New(fetch.Config{
		Live:              live,
		Durable:           durable,
		Static:            static,
		Store:             store,
		Logger:            logger,
		Metrics:           metrics,
		RevalidateTimeout: cfg.API.RevalidateTimeout,
	})
	if err != nil {
		live.Close()
		store.Close()
		return nil, fmt.Errorf("failed to build orchestrator: %w", err)
	}

	return &pipeline{
		orch:   orch,
		store:  store,
		live:   live,
		static: static,
	}, nil
}
