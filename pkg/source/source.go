// Package source implements the data-source tiers of the metric retrieval
// chain: the live metrics API, the remote durable cache endpoint, and the
// static fallback table.
//
// All tiers satisfy the same Source interface so the fetch orchestrator can
// walk them in a fixed order without knowing tier-specific details. Sources
// report failures as errors; they never fabricate payloads.
package source

import (
	"context"
	"errors"
	"fmt"

	"beacon-hq/beacon/pkg/payload"
)

// Tier names, used in provenance reporting, logs, and metrics labels.
const (
	TierLive           = "live"
	TierDurableCache   = "durable_cache"
	TierStaticFallback = "static_fallback"
)

// ErrNotRegistered is returned by the static fallback table when no payload
// is registered for the requested key.
var ErrNotRegistered = errors.New("no static fallback registered for key")

// Source is a single tier of the retrieval chain.
//
// Fetch returns the payload for a metric key or an error describing why the
// tier could not serve it. Implementations must respect context cancellation
// and return promptly when the context is done.
type Source interface {
	// Name returns the tier name (TierLive, TierDurableCache, TierStaticFallback).
	Name() string

	// Endpoint returns a diagnostic location string for the given key,
	// used in error reports (a URL for HTTP tiers).
	Endpoint(key string) string

	// Fetch retrieves the payload for key.
	Fetch(ctx context.Context, key string) (*payload.Payload, error)
}

// StatusError is returned when an HTTP tier receives a non-2xx response.
type StatusError struct {
	// Endpoint is the URL that returned the error status.
	Endpoint string

	// StatusCode is the HTTP status code.
	StatusCode int

	// Body is a truncated excerpt of the response body, for diagnostics.
	Body string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.Endpoint, e.Body)
	}
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.Endpoint)
}

// DecodeError is returned when an HTTP tier receives a 2xx response whose
// body cannot be parsed into a payload.
type DecodeError struct {
	// Endpoint is the URL that returned the malformed body.
	Endpoint string

	// Cause is the underlying parse error.
	Cause error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode response from %s: %v", e.Endpoint, e.Cause)
}

// Unwrap returns the underlying error for error chain traversal.
func (e *DecodeError) Unwrap() error {
	return e.Cause
}
