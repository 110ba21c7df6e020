package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"beacon-hq/beacon/pkg/cache"
	"beacon-hq/beacon/pkg/config"
	"beacon-hq/beacon/pkg/payload"
)

func newTestServer(t *testing.T) (*Server, cache.Store) {
	t.Helper()
	store := cache.NewMemoryStore(time.Hour, 16)
	t.Cleanup(func() { store.Close() })

	srv := New(config.ServerConfig{ListenAddress: "127.0.0.1:0"}, store, nil, "", nil)
	return srv, store
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestHandleCachedMetric(t *testing.T) {
	srv, store := newTestServer(t)

	raw := []byte(`{"value": 48500, "timestamp": "2026-08-25T10:00:00Z", "source": "stripe"}`)
	p, err := payload.Parse("stripe_mrr", raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := store.Set(context.Background(), "stripe_mrr", p); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cached-metrics/stripe_mrr", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var envelope struct {
		Data      map[string]any `json:"data"`
		FetchedAt time.Time      `json:"fetched_at"`
		Source    string         `json:"source"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if envelope.Data["value"] != float64(48500) {
		t.Errorf("data.value = %v, want 48500", envelope.Data["value"])
	}
	want := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	if !envelope.FetchedAt.Equal(want) {
		t.Errorf("fetched_at = %v, want payload timestamp %v", envelope.FetchedAt, want)
	}
	if envelope.Source != "stripe" {
		t.Errorf("source = %q, want stripe", envelope.Source)
	}
}

func TestHandleCachedMetric_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cached-metrics/absent", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body["error"] == "" {
		t.Error("404 body should carry an error message")
	}
}

func TestHandleCachedMetric_UsesStoreTimeWithoutPayloadTimestamp(t *testing.T) {
	srv, store := newTestServer(t)

	p, err := payload.Parse("github_stars", []byte(`{"value": 900}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	before := time.Now()
	if err := store.Set(context.Background(), "github_stars", p); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cached-metrics/github_stars", nil))

	var envelope struct {
		FetchedAt time.Time `json:"fetched_at"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if envelope.FetchedAt.Before(before.Add(-time.Second)) {
		t.Errorf("fetched_at = %v, want store time near %v", envelope.FetchedAt, before)
	}
}

func TestMetricsRouteMounting(t *testing.T) {
	store := cache.NewMemoryStore(time.Hour, 16)
	t.Cleanup(func() { store.Close() })

	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := New(config.ServerConfig{ListenAddress: "127.0.0.1:0"}, store, metricsHandler, "/metrics", nil)

	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("metrics route status = %d, want 200", rec.Code)
	}

	// Without a handler the route must not exist.
	srv2, _ := newTestServer(t)
	rec2 := httptest.NewRecorder()
	srv2.routes().ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec2.Code != http.StatusNotFound {
		t.Errorf("unmounted metrics route status = %d, want 404", rec2.Code)
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	srv, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down after context cancellation")
	}
}
