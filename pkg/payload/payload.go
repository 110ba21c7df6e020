// Package payload defines the metric payload model shared by every tier of
// the retrieval chain.
//
// A payload is an opaque JSON object produced by the metrics backend (or by a
// fallback source). The only field this package interprets is the top-level
// "timestamp", which records when the underlying value was computed upstream.
// A payload without a parseable timestamp has unknown freshness; it is still
// a valid payload.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Payload wraps a raw metric JSON object together with the metadata the
// retrieval chain needs: the metric key it belongs to, the upstream
// computation timestamp (zero if unknown), and an optional source tag
// ("stripe", "quickbooks", "manual").
type Payload struct {
	// Key is the metric key this payload belongs to (e.g., "stripe_mrr").
	Key string

	// Raw is the verbatim JSON object as returned by the source.
	Raw json.RawMessage

	// Timestamp is when the underlying value was computed upstream.
	// A zero value means the payload carried no parseable timestamp.
	Timestamp time.Time

	// Source identifies the upstream system that produced the value.
	// Empty when the source did not report one.
	Source string
}

// timestampProbe extracts only the fields this package interprets.
type timestampProbe struct {
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
}

// Parse validates that data is a JSON object and extracts the timestamp and
// source fields. It returns an error for malformed JSON or for any top-level
// value that is not an object (arrays, strings, numbers, null).
//
// An object with a missing or unparseable timestamp is accepted; the
// resulting Payload has a zero Timestamp and is classified as unknown
// freshness downstream.
func Parse(key string, data []byte) (*Payload, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty payload for metric %q", key)
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("payload for metric %q is not a JSON object", key)
	}

	var probe timestampProbe
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse payload for metric %q: %w", key, err)
	}

	p := &Payload{
		Key:    key,
		Raw:    json.RawMessage(append([]byte(nil), trimmed...)),
		Source: probe.Source,
	}

	if probe.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, probe.Timestamp); err == nil {
			p.Timestamp = ts
		}
		// Unparseable timestamps are treated as absent, not as errors.
	}

	return p, nil
}

// Decode unmarshals the raw payload into v. Consumers use this to read their
// widget-specific shape; shape mismatches surface here rather than in
// rendering code.
func (p *Payload) Decode(v any) error {
	if err := json.Unmarshal(p.Raw, v); err != nil {
		return fmt.Errorf("failed to decode payload for metric %q: %w", p.Key, err)
	}
	return nil
}

// HasTimestamp reports whether the payload carried a parseable timestamp.
func (p *Payload) HasTimestamp() bool {
	return !p.Timestamp.IsZero()
}

// Clone returns a deep copy of the payload. Cached entries hand out clones so
// callers cannot mutate the stored snapshot.
func (p *Payload) Clone() *Payload {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Raw = append(json.RawMessage(nil), p.Raw...)
	return &cp
}
