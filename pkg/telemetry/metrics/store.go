package metrics

import (
	"context"
	"time"

	"beacon-hq/beacon/pkg/cache"
	"beacon-hq/beacon/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// statsTimeout bounds a Stats call made during a scrape.
const statsTimeout = 2 * time.Second

// StatsReader is the part of a cache store the collector samples at
// scrape time.
type StatsReader interface {
	Stats(ctx context.Context) (cache.Stats, error)
}

// StoreMetrics exposes cache store statistics.
//
// Metrics:
//   - beacon_fetch_store_entries: Current number of entries by store
//   - beacon_fetch_store_hits_total: Total store hits
//   - beacon_fetch_store_misses_total: Total store misses
//   - beacon_fetch_store_evictions_total: Total store evictions
//
// Values are read from the store on each scrape rather than pushed, so
// the store stays the single source of truth.
type StoreMetrics struct {
	cfg      *config.MetricsConfig
	registry *prometheus.Registry
}

// NewStoreMetrics creates store metrics bound to the provided registry.
// Individual stores attach via Register.
func NewStoreMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *StoreMetrics {
	return &StoreMetrics{cfg: cfg, registry: registry}
}

// Register exposes one store's statistics under the given name. A store
// whose Stats call fails reports zeros for that scrape.
func (sm *StoreMetrics) Register(name string, store StatsReader) {
	sample := func(pick func(cache.Stats) float64) func() float64 {
		return func() float64 {
			ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
			defer cancel()
			stats, err := store.Stats(ctx)
			if err != nil {
				return 0
			}
			return pick(stats)
		}
	}

	labels := prometheus.Labels{"store": name}

	sm.registry.MustRegister(
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace:   sm.cfg.Namespace,
				Subsystem:   sm.cfg.Subsystem,
				Name:        "store_entries",
				Help:        "Current number of entries in the cache store",
				ConstLabels: labels,
			},
			sample(func(s cache.Stats) float64 { return float64(s.Entries) }),
		),
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace:   sm.cfg.Namespace,
				Subsystem:   sm.cfg.Subsystem,
				Name:        "store_hits_total",
				Help:        "Total number of cache store hits",
				ConstLabels: labels,
			},
			sample(func(s cache.Stats) float64 { return float64(s.Hits) }),
		),
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace:   sm.cfg.Namespace,
				Subsystem:   sm.cfg.Subsystem,
				Name:        "store_misses_total",
				Help:        "Total number of cache store misses",
				ConstLabels: labels,
			},
			sample(func(s cache.Stats) float64 { return float64(s.Misses) }),
		),
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace:   sm.cfg.Namespace,
				Subsystem:   sm.cfg.Subsystem,
				Name:        "store_evictions_total",
				Help:        "Total number of cache store evictions",
				ConstLabels: labels,
			},
			sample(func(s cache.Stats) float64 { return float64(s.Evictions) }),
		),
	)
}
