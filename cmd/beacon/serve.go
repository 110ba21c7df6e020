package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"beacon-hq/beacon/pkg/refresh"
	"beacon-hq/beacon/pkg/server"
	"beacon-hq/beacon/pkg/telemetry/metrics"
)

var serveFlags struct {
	listenAddress string
	warm          bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Beacon sidecar server",
	Long: `Run the Beacon sidecar: an HTTP server exposing the durable-cache
endpoint, health, and Prometheus metrics, plus scheduled background
jobs that keep configured metric keys warm in the local cache and prune
old snapshots.

The sidecar's /api/v1/cached-metrics/{key} endpoint serves the last
known-good payloads even while the metrics backend is down, which is
what makes the durable tier of the fallback chain durable.

Examples:
  # Run with the default config file
  beacon serve

  # Override the listen address
  beacon serve --listen 0.0.0.0:9090

  # Skip the startup warming cycle
  beacon serve --warm=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().BoolVar(&serveFlags.warm, "warm", true, "run a warming cycle at startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector(&cfg.Metrics, nil)

	p, err := buildPipeline(cfg, logger, collector)
	if err != nil {
		return err
	}
	defer p.Close()

	collector.RegisterStore(cfg.Cache.Backend, p.store)

	if cfg.Fallback.File != "" && cfg.Fallback.Watch {
		// Watch blocks until ctx is cancelled, so it runs beside the
		// server rather than ahead of it.
		go func() {
			err := p.static.Watch(ctx, cfg.Fallback.File)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("static fallback watcher stopped",
					"file", cfg.Fallback.File,
					"error", err,
				)
			}
		}()
	}

	var pruner refresh.Pruner
	if pr, ok := p.store.(refresh.Pruner); ok {
		pruner = pr
	}
	refresher := refresh.New(cfg.Refresh, cfg.Cache.KeepLatest, p.orch, pruner, logger)
	if err := refresher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start refresh scheduler: %w", err)
	}
	defer refresher.Stop()

	if serveFlags.warm && len(cfg.Refresh.Keys) > 0 {
		go refresher.WarmNow(ctx)
	}

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = collector.Handler()
	}
	srv := server.New(cfg.Server, p.store, metricsHandler, cfg.Metrics.Path, logger)

	return srv.Start(ctx)
}
