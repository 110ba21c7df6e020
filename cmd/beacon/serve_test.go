package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

// freePort reserves an ephemeral port and releases it for the server to
// bind.
func freePort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestServe_StartsWhileWatchingFallbackFile(t *testing.T) {
	dir := t.TempDir()

	fallbackPath := filepath.Join(dir, "fallbacks.yaml")
	if err := os.WriteFile(fallbackPath, []byte("stripe_mrr:\n  value: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	addr := freePort(t)
	configPath := filepath.Join(dir, "config.yaml")
	configYAML := fmt.Sprintf(`
api:
  base_url: http://127.0.0.1:1
fallback:
  file: %s
  watch: true
server:
  listen_address: %s
`, fallbackPath, addr)
	if err := os.WriteFile(configPath, []byte(configYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	origCfgFile := cfgFile
	origWarm := serveFlags.warm
	cfgFile = configPath
	serveFlags.warm = false
	t.Cleanup(func() {
		cfgFile = origCfgFile
		serveFlags.warm = origWarm
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := &cobra.Command{}
	cmd.SetContext(ctx)

	done := make(chan error, 1)
	go func() {
		done <- runServe(cmd, nil)
	}()

	// The server must come up even though the fallback watcher runs for
	// the process lifetime.
	url := "http://" + addr + "/healthz"
	deadline := time.Now().Add(3 * time.Second)
	started := false
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				started = true
				break
			}
		}
		time.Sleep(25 * time.Millisecond)
	}
	if !started {
		t.Fatal("sidecar never answered /healthz while fallback watching was enabled")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("runServe() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runServe did not return after context cancellation")
	}
}
