package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestLive_Fetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/metrics/stripe_mrr" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"mrr": 50000, "timestamp": "2025-01-01T00:00:00Z"}`))
	}))
	defer server.Close()

	live, err := NewLive(LiveConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewLive() error = %v", err)
	}
	defer live.Close()

	p, err := live.Fetch(context.Background(), "stripe_mrr")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if p.Key != "stripe_mrr" {
		t.Errorf("p.Key = %q, want stripe_mrr", p.Key)
	}
	if !p.HasTimestamp() {
		t.Error("p.HasTimestamp() = false, want true")
	}
}

func TestLive_Fetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "temporarily down", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"mrr": 50000}`))
	}))
	defer server.Close()

	live, err := NewLive(LiveConfig{BaseURL: server.URL, MaxRetries: 2})
	if err != nil {
		t.Fatalf("NewLive() error = %v", err)
	}
	defer live.Close()

	p, err := live.Fetch(context.Background(), "stripe_mrr")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if p == nil {
		t.Fatal("Fetch() returned nil payload")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server calls = %d, want 2", got)
	}
}

func TestLive_Fetch_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such metric", http.StatusNotFound)
	}))
	defer server.Close()

	live, err := NewLive(LiveConfig{BaseURL: server.URL, MaxRetries: 3})
	if err != nil {
		t.Fatalf("NewLive() error = %v", err)
	}
	defer live.Close()

	_, err = live.Fetch(context.Background(), "unknown_metric")

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Fetch() error = %v, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", statusErr.StatusCode)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server calls = %d, want 1 (4xx must not be retried)", got)
	}
}

func TestLive_Fetch_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	}))
	defer server.Close()

	live, err := NewLive(LiveConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewLive() error = %v", err)
	}
	defer live.Close()

	_, err = live.Fetch(context.Background(), "stripe_mrr")

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Fetch() error = %v, want *DecodeError", err)
	}
}

func TestLive_Fetch_NetworkError(t *testing.T) {
	// A server that is immediately closed yields connection-refused errors.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	live, err := NewLive(LiveConfig{BaseURL: server.URL, MaxRetries: 0})
	if err != nil {
		t.Fatalf("NewLive() error = %v", err)
	}
	defer live.Close()

	if _, err := live.Fetch(context.Background(), "stripe_mrr"); err == nil {
		t.Fatal("Fetch() error = nil, want network error")
	}
}

func TestLive_Fetch_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	live, err := NewLive(LiveConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewLive() error = %v", err)
	}
	defer live.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = live.Fetch(ctx, "stripe_mrr")
	if err == nil {
		t.Fatal("Fetch() error = nil, want context error")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Fetch() took %v, expected prompt return on cancellation", elapsed)
	}
}

func TestLive_RequiresBaseURL(t *testing.T) {
	if _, err := NewLive(LiveConfig{}); err == nil {
		t.Fatal("NewLive() error = nil, want error for missing base URL")
	}
}

func TestLive_Endpoint(t *testing.T) {
	live, err := NewLive(LiveConfig{BaseURL: "http://example.com/"})
	if err != nil {
		t.Fatalf("NewLive() error = %v", err)
	}
	defer live.Close()

	want := "http://example.com/api/v1/metrics/stripe_mrr"
	if got := live.Endpoint("stripe_mrr"); got != want {
		t.Errorf("Endpoint() = %q, want %q", got, want)
	}
}
