package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDurable_Fetch_Envelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/cached-metrics/stripe_mrr" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{
			"data": {"mrr": 48000},
			"fetched_at": "2025-01-01T00:00:00Z",
			"source": "stripe"
		}`))
	}))
	defer server.Close()

	durable, err := NewDurable(DurableConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewDurable() error = %v", err)
	}

	p, err := durable.Fetch(context.Background(), "stripe_mrr")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	// The payload itself has no timestamp; fetched_at supplies it.
	want := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if !p.Timestamp.Equal(want) {
		t.Errorf("p.Timestamp = %v, want %v (from fetched_at)", p.Timestamp, want)
	}
	if p.Source != "stripe" {
		t.Errorf("p.Source = %q, want stripe", p.Source)
	}
}

func TestDurable_Fetch_PayloadTimestampWins(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"data": {"mrr": 48000, "timestamp": "2025-02-01T00:00:00Z"},
			"fetched_at": "2025-01-01T00:00:00Z"
		}`))
	}))
	defer server.Close()

	durable, err := NewDurable(DurableConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewDurable() error = %v", err)
	}

	p, err := durable.Fetch(context.Background(), "stripe_mrr")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	want := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	if !p.Timestamp.Equal(want) {
		t.Errorf("p.Timestamp = %v, want %v (payload timestamp takes precedence)", p.Timestamp, want)
	}
}

func TestDurable_Fetch_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no cached entry", http.StatusNotFound)
	}))
	defer server.Close()

	durable, err := NewDurable(DurableConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewDurable() error = %v", err)
	}

	_, err = durable.Fetch(context.Background(), "stripe_mrr")

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Fetch() error = %v, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", statusErr.StatusCode)
	}
}

func TestDurable_Fetch_EmptyEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"fetched_at": "2025-01-01T00:00:00Z"}`))
	}))
	defer server.Close()

	durable, err := NewDurable(DurableConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewDurable() error = %v", err)
	}

	_, err = durable.Fetch(context.Background(), "stripe_mrr")

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Fetch() error = %v, want *DecodeError for empty envelope", err)
	}
}

func TestDurable_RequiresBaseURL(t *testing.T) {
	if _, err := NewDurable(DurableConfig{}); err == nil {
		t.Fatal("NewDurable() error = nil, want error for missing base URL")
	}
}
