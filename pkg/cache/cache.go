// Package cache provides the local stores that hold the last known-good
// payload per metric key.
//
// Two implementations are provided: an in-memory store with TTL expiry and an
// LRU cap (the default for a single dashboard session), and a SQLite-backed
// store that persists snapshots across restarts and can be served back out as
// the durable-cache tier by a Beacon sidecar.
//
// Entries are independently keyed, idempotent snapshots: every successful
// live fetch overwrites the entry for its key, and concurrent writers for the
// same key are last-write-wins by design.
package cache

import (
	"context"
	"errors"
	"time"

	"beacon-hq/beacon/pkg/payload"
)

// ErrNotFound is returned by Get when no entry exists for the key.
var ErrNotFound = errors.New("cache entry not found")

// Entry is one cached snapshot.
type Entry struct {
	// Key is the metric key.
	Key string

	// Payload is the cached metric payload.
	Payload *payload.Payload

	// StoredAt is when the entry was written to this store.
	StoredAt time.Time
}

// Stats describes the cumulative behavior of a store.
type Stats struct {
	// Entries is the current number of cached keys.
	Entries int

	// Hits is the total number of successful Gets.
	Hits int64

	// Misses is the total number of Gets that found nothing.
	Misses int64

	// Evictions is the total number of entries removed by TTL expiry,
	// LRU pressure, or pruning.
	Evictions int64
}

// Store is the cache interface injected into the fetch orchestrator. It is
// explicit rather than ambient so tests can substitute an in-memory map and
// the orchestrator never touches storage details.
//
// All implementations are safe for concurrent use.
type Store interface {
	// Get returns the entry for key, or ErrNotFound.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set writes or overwrites the entry for key.
	Set(ctx context.Context, key string, p *payload.Payload) error

	// Clear removes all entries.
	Clear(ctx context.Context) error

	// Stats returns cumulative store statistics.
	Stats(ctx context.Context) (Stats, error)

	// Close releases any resources held by the store.
	Close() error
}
