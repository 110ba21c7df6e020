// Package fetch implements the metric retrieval orchestrator: the single
// entry point dashboard widgets use to obtain a metric payload.
//
// # Fallback chain
//
// Retrieval walks a fixed chain of tiers, each consulted only after the
// previous one explicitly failed:
//
//  1. Live fetch from the metrics backend
//  2. The already-held local cache entry (optimistic display)
//  3. The server-side durable cache endpoint
//  4. The static fallback table
//
// Every result is annotated with its provenance (which tier supplied it) and
// a freshness classification, so the UI never shows a time-travelled value
// without saying so.
//
// # Basic usage
//
//	live, _ := source.NewLive(source.LiveConfig{BaseURL: baseURL})
//	store := cache.NewMemoryStore(time.Hour, 256)
//
//	orch, err := fetch.New(fetch.Config{
//	    Live:  live,
//	    Store: store,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer orch.Close()
//
//	res := orch.Get(ctx, "stripe_mrr")
//	switch {
//	case res.Data != nil && res.Err == nil && res.Warning == nil:
//	    // showing live data
//	case res.Data != nil:
//	    // showing cached/fallback data; res.Err or res.Warning explains why
//	default:
//	    // no data available; res.Err carries remediation steps
//	}
//
// # Optimistic display
//
// With PreferCache (the default), a cache hit is returned immediately and a
// background revalidation refreshes the entry. Register a listener with
// Subscribe to repaint when the refreshed value arrives:
//
//	cancel := orch.Subscribe(func(res fetch.Result) {
//	    // res.Provenance == fetch.ProvenanceLive after a successful refresh
//	})
//	defer cancel()
//
// # Error contract
//
// Retrieval never returns a Go error and never panics; every failure is
// expressed in the Result. Failures absorbed by a lower tier ride along as
// the Err field next to the served data; background-revalidation failures
// arrive as non-blocking Warnings. Only a fully exhausted chain produces a
// terminal result (Data nil, Err set).
package fetch
