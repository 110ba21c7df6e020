// Package metrics provides Prometheus instrumentation for the metric
// retrieval pipeline.
package metrics

import (
	"time"

	"beacon-hq/beacon/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector is the orchestrator for all Prometheus metrics in Beacon.
// It manages metric registration and provides a unified interface for
// recording metrics across components.
//
// It satisfies the retrieval orchestrator's Instrument interface, so it
// can be passed directly as the Metrics field of fetch.Config.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	// Retrieval chain metrics
	fetchMetrics *FetchMetrics

	// Cache store metrics
	storeMetrics *StoreMetrics
}

// NewCollector creates a new metrics collector with the specified
// configuration and Prometheus registry. If registry is nil, a fresh
// registry is created.
//
// Example:
//
//	cfg := &config.MetricsConfig{
//		Enabled:   true,
//		Namespace: "beacon",
//		Subsystem: "fetch",
//	}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}

	c := &Collector{
		config:   cfg,
		registry: registry,
	}

	c.fetchMetrics = NewFetchMetrics(cfg, registry)
	c.storeMetrics = NewStoreMetrics(cfg, registry)

	return c
}

// RecordFetch records a completed retrieval: which key was fetched,
// which tier supplied the result, how fresh it was, and how long the
// whole chain took.
func (c *Collector) RecordFetch(key, provenance, freshnessLevel string, elapsed time.Duration) {
	if !c.config.Enabled {
		return
	}

	c.fetchMetrics.RecordFetch(key, provenance, freshnessLevel, elapsed)
}

// RecordTierFailure records a tier that failed during a retrieval,
// labelled by the error classification.
func (c *Collector) RecordTierFailure(tier, kind string) {
	if !c.config.Enabled {
		return
	}

	c.fetchMetrics.RecordTierFailure(tier, kind)
}

// RecordRevalidation records the outcome of a background revalidation.
func (c *Collector) RecordRevalidation(key string, ok bool) {
	if !c.config.Enabled {
		return
	}

	c.fetchMetrics.RecordRevalidation(key, ok)
}

// RegisterStore exposes a cache store's statistics as gauges, sampled
// at scrape time.
func (c *Collector) RegisterStore(name string, store StatsReader) {
	if !c.config.Enabled {
		return
	}

	c.storeMetrics.Register(name, store)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
