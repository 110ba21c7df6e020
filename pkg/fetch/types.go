package fetch

import (
	"time"

	"beacon-hq/beacon/pkg/freshness"
	"beacon-hq/beacon/pkg/payload"
)

// Provenance identifies which tier of the fallback chain supplied a payload.
type Provenance string

const (
	// ProvenanceLive means the payload came from a successful live fetch.
	ProvenanceLive Provenance = "live"

	// ProvenanceLocalCache means the payload is an optimistic local cache hit.
	ProvenanceLocalCache Provenance = "local_cache"

	// ProvenanceDurableCache means the payload came from the server-side
	// durable cache after the live tier failed.
	ProvenanceDurableCache Provenance = "durable_cache"

	// ProvenanceStaticFallback means the payload is hardcoded demonstration
	// data, served because no live or cached value exists.
	ProvenanceStaticFallback Provenance = "static_fallback"
)

// Result is the value returned to a widget for one retrieval.
//
// The three display states a widget must distinguish map onto Result as:
//
//   - showing live data:       Data != nil, Err == nil, Warning == nil
//   - cached/fallback + warn:  Data != nil, Err != nil or Warning != nil
//   - no data, retry required: Data == nil, Err != nil
//
// Data is nil only when every tier of the chain failed; Provenance is always
// set when Data is non-nil.
type Result struct {
	// RequestID uniquely identifies this retrieval for logs and listeners.
	RequestID string

	// Key is the metric key that was requested.
	Key string

	// Data is the payload, or nil if every tier failed.
	Data *payload.Payload

	// Provenance is the tier that supplied Data. Empty when Data is nil.
	Provenance Provenance

	// Freshness classifies the payload's upstream timestamp at retrieval
	// time. Unavailable results classify as unknown.
	Freshness freshness.Level

	// Err is the live-tier failure when the foreground chain had to fall
	// back (Data from a lower tier) or when the chain was exhausted
	// (Data nil, terminal).
	Err *TypedError

	// Warning is a background-revalidation failure attached to an
	// optimistic cached result. Non-blocking: the cached Data remains
	// authoritative for display.
	Warning *TypedError

	// FetchedAt is when this result was produced.
	FetchedAt time.Time
}

// OK reports whether the result carries displayable data.
func (r Result) OK() bool {
	return r.Data != nil
}

// Options control a single retrieval.
type Options struct {
	// PreferCache serves an existing local cache entry immediately and
	// revalidates in the background. When false, the chain starts at the
	// live tier.
	PreferCache bool
}

// Listener receives asynchronous results: refreshed data after a background
// revalidation succeeds, or a cached result annotated with a Warning when
// revalidation fails. Listeners must not block; they are invoked from the
// revalidation goroutine.
type Listener func(Result)

// Instrument receives retrieval measurements. Implemented by the telemetry
// metrics collector; the interface is defined here so instrumentation stays
// optional and the orchestrator does not depend on a metrics backend.
type Instrument interface {
	// RecordFetch records a completed retrieval.
	RecordFetch(key, provenance, freshnessLevel string, elapsed time.Duration)

	// RecordTierFailure records one tier failing during a chain walk.
	RecordTierFailure(tier, kind string)
}
