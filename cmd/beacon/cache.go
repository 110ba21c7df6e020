package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"beacon-hq/beacon/pkg/cache"
	"beacon-hq/beacon/pkg/refresh"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the local cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(store cache.Store) error {
			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read cache stats: %w", err)
			}
			fmt.Printf("entries:   %d\n", stats.Entries)
			fmt.Printf("hits:      %d\n", stats.Hits)
			fmt.Printf("misses:    %d\n", stats.Misses)
			fmt.Printf("evictions: %d\n", stats.Evictions)
			return nil
		})
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(store cache.Store) error {
			if err := store.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			fmt.Println("cache cleared")
			return nil
		})
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Discard old snapshots, keeping the latest per metric",
	Long: `Discard old snapshot rows from the sqlite cache, keeping the newest
cache.keep_latest rows per metric key. The memory backend has nothing
to prune.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		store, err := buildStore(cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		pruner, ok := store.(refresh.Pruner)
		if !ok {
			return fmt.Errorf("cache backend %q does not support pruning", cfg.Cache.Backend)
		}

		deleted, err := pruner.Prune(cmd.Context(), cfg.Cache.KeepLatest)
		if err != nil {
			return fmt.Errorf("prune failed: %w", err)
		}
		fmt.Printf("pruned %d snapshot rows (keeping latest %d per key)\n", deleted, cfg.Cache.KeepLatest)
		return nil
	},
}

// withStore opens the configured store, runs fn, and closes it.
func withStore(cmd *cobra.Command, fn func(cache.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	store, err := buildStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(store)
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePruneCmd)
}
