// Package refresh runs scheduled background jobs against the retrieval
// pipeline: keeping configured metric keys warm in the local cache and
// pruning old snapshots from a durable store.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"beacon-hq/beacon/pkg/config"
	"beacon-hq/beacon/pkg/fetch"
)

// warmTimeout bounds one full warming cycle.
const warmTimeout = 2 * time.Minute

// Fetcher is the part of the orchestrator the refresher drives.
type Fetcher interface {
	GetWithOptions(ctx context.Context, key string, opts fetch.Options) fetch.Result
}

// Pruner is implemented by stores that can discard old snapshots.
// *cache.SQLiteStore satisfies it.
type Pruner interface {
	Prune(ctx context.Context, keepLatest int) (int64, error)
}

// Refresher schedules cache warming and store pruning with cron
// expressions.
type Refresher struct {
	cfg     config.RefreshConfig
	keep    int
	fetcher Fetcher
	pruner  Pruner
	cron    *cron.Cron
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
}

// New creates a Refresher. pruner may be nil when the local cache has
// nothing to prune (the memory backend).
func New(cfg config.RefreshConfig, keepLatest int, fetcher Fetcher, pruner Pruner, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		cfg:     cfg,
		keep:    keepLatest,
		fetcher: fetcher,
		pruner:  pruner,
		cron:    cron.New(),
		logger:  logger.With("component", "refresh"),
	}
}

// Start registers the configured jobs and starts the scheduler. With no
// schedules configured it logs and returns nil. The scheduler stops when
// ctx is cancelled.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	registered := 0

	if r.cfg.Schedule != "" && len(r.cfg.Keys) > 0 {
		if _, err := r.cron.AddFunc(r.cfg.Schedule, func() {
			r.warm(ctx)
		}); err != nil {
			return fmt.Errorf("failed to schedule cache warming: %w", err)
		}
		registered++
	}

	if r.cfg.PruneSchedule != "" && r.pruner != nil {
		if _, err := r.cron.AddFunc(r.cfg.PruneSchedule, func() {
			r.prune(ctx)
		}); err != nil {
			return fmt.Errorf("failed to schedule pruning: %w", err)
		}
		registered++
	}

	if registered == 0 {
		r.logger.Info("no refresh jobs configured, scheduler idle")
		return nil
	}

	r.cron.Start()
	r.running = true

	r.logger.Info("refresh scheduler started",
		"warm_schedule", r.cfg.Schedule,
		"warm_keys", len(r.cfg.Keys),
		"prune_schedule", r.cfg.PruneSchedule,
	)

	go func() {
		<-ctx.Done()
		r.Stop()
	}()

	return nil
}

// WarmNow runs one warming cycle immediately, outside the schedule.
// `beacon serve` calls it at startup so the first dashboard paint does
// not wait on the backend.
func (r *Refresher) WarmNow(ctx context.Context) {
	r.warm(ctx)
}

// warm fetches every configured key with the cache bypassed, so a
// successful round trip lands fresh payloads in the local cache.
func (r *Refresher) warm(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, warmTimeout)
	defer cancel()

	var ok, failed int
	for _, key := range r.cfg.Keys {
		res := r.fetcher.GetWithOptions(ctx, key, fetch.Options{PreferCache: false})
		// A fallback answer does not warm the cache; only a clean live
		// fetch counts.
		if res.Data != nil && res.Err == nil {
			ok++
			continue
		}
		failed++
		if res.Err != nil {
			r.logger.Warn("cache warming fetch failed",
				"key", key,
				"kind", res.Err.Kind,
			)
		}
	}

	r.logger.Info("cache warming cycle completed",
		"warmed", ok,
		"failed", failed,
	)
}

// prune discards old snapshots from the durable store.
func (r *Refresher) prune(ctx context.Context) {
	deleted, err := r.pruner.Prune(ctx, r.keep)
	if err != nil {
		r.logger.Error("scheduled pruning failed", "error", err)
		return
	}
	if deleted > 0 {
		r.logger.Info("scheduled pruning completed", "deleted_rows", deleted)
	} else {
		r.logger.Debug("scheduled pruning completed, nothing to delete")
	}
}

// Stop stops the scheduler and waits for running jobs to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	<-r.cron.Stop().Done()
	r.running = false
	r.logger.Info("refresh scheduler stopped")
}

// IsRunning reports whether the scheduler is active.
func (r *Refresher) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
