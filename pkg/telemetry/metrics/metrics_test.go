package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"beacon-hq/beacon/pkg/cache"
	"beacon-hq/beacon/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestCollector() *Collector {
	cfg := &config.MetricsConfig{
		Enabled:   true,
		Namespace: "beacon",
		Subsystem: "fetch",
	}
	return NewCollector(cfg, prometheus.NewRegistry())
}

func TestCollector_RecordFetch(t *testing.T) {
	collector := newTestCollector()

	collector.RecordFetch("stripe_mrr", "live", "live", 120*time.Millisecond)
	collector.RecordFetch("stripe_mrr", "live", "live", 80*time.Millisecond)
	collector.RecordFetch("stripe_mrr", "local_cache", "stale", time.Millisecond)

	count := testutil.ToFloat64(collector.fetchMetrics.fetchesTotal.WithLabelValues("stripe_mrr", "live", "live"))
	if count != 2 {
		t.Errorf("fetches_total{live} = %v, want 2", count)
	}
	count = testutil.ToFloat64(collector.fetchMetrics.fetchesTotal.WithLabelValues("stripe_mrr", "local_cache", "stale"))
	if count != 1 {
		t.Errorf("fetches_total{local_cache} = %v, want 1", count)
	}
}

func TestCollector_RecordTierFailure(t *testing.T) {
	collector := newTestCollector()

	collector.RecordTierFailure("live", "network_unreachable")
	collector.RecordTierFailure("live", "network_unreachable")
	collector.RecordTierFailure("durable_cache", "http_error")

	count := testutil.ToFloat64(collector.fetchMetrics.tierFailuresTotal.WithLabelValues("live", "network_unreachable"))
	if count != 2 {
		t.Errorf("tier_failures_total{live} = %v, want 2", count)
	}
	count = testutil.ToFloat64(collector.fetchMetrics.tierFailuresTotal.WithLabelValues("durable_cache", "http_error"))
	if count != 1 {
		t.Errorf("tier_failures_total{durable_cache} = %v, want 1", count)
	}
}

func TestCollector_RecordRevalidation(t *testing.T) {
	collector := newTestCollector()

	collector.RecordRevalidation("stripe_mrr", true)
	collector.RecordRevalidation("stripe_mrr", false)
	collector.RecordRevalidation("stripe_mrr", false)

	success := testutil.ToFloat64(collector.fetchMetrics.revalidationsTotal.WithLabelValues("stripe_mrr", "success"))
	if success != 1 {
		t.Errorf("revalidations_total{success} = %v, want 1", success)
	}
	failure := testutil.ToFloat64(collector.fetchMetrics.revalidationsTotal.WithLabelValues("stripe_mrr", "failure"))
	if failure != 2 {
		t.Errorf("revalidations_total{failure} = %v, want 2", failure)
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := &config.MetricsConfig{
		Enabled:   false,
		Namespace: "beacon",
		Subsystem: "fetch",
	}
	collector := NewCollector(cfg, prometheus.NewRegistry())

	collector.RecordFetch("stripe_mrr", "live", "live", time.Millisecond)
	collector.RecordTierFailure("live", "unknown")

	count := testutil.ToFloat64(collector.fetchMetrics.fetchesTotal.WithLabelValues("stripe_mrr", "live", "live"))
	if count != 0 {
		t.Errorf("fetches_total = %v after disabled record, want 0", count)
	}
}

type stubStatsReader struct {
	stats cache.Stats
	err   error
}

func (s *stubStatsReader) Stats(ctx context.Context) (cache.Stats, error) {
	return s.stats, s.err
}

func TestCollector_RegisterStore(t *testing.T) {
	collector := newTestCollector()
	collector.RegisterStore("memory", &stubStatsReader{
		stats: cache.Stats{Entries: 7, Hits: 40, Misses: 3, Evictions: 2},
	})

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`beacon_fetch_store_entries{store="memory"} 7`,
		`beacon_fetch_store_hits_total{store="memory"} 40`,
		`beacon_fetch_store_misses_total{store="memory"} 3`,
		`beacon_fetch_store_evictions_total{store="memory"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q:\n%s", want, body)
		}
	}
}

func TestCollector_RegisterStore_StatsErrorReportsZero(t *testing.T) {
	collector := newTestCollector()
	collector.RegisterStore("sqlite", &stubStatsReader{err: errors.New("db closed")})

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !strings.Contains(rec.Body.String(), `beacon_fetch_store_entries{store="sqlite"} 0`) {
		t.Errorf("failing store should scrape as zero:\n%s", rec.Body.String())
	}
}

func TestCollector_HandlerServesExposition(t *testing.T) {
	collector := newTestCollector()
	collector.RecordFetch("stripe_mrr", "live", "live", 100*time.Millisecond)

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "beacon_fetch_fetches_total") {
		t.Errorf("exposition missing fetch counter:\n%s", rec.Body.String())
	}
}
