package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"beacon-hq/beacon/pkg/payload"
)

// reloadDebounce is how long the watcher waits after a file event before
// reloading, so editors that write in multiple syscalls trigger one reload.
const reloadDebounce = 100 * time.Millisecond

// StaticTable is the last-resort tier: a table of hardcoded demonstration
// payloads per metric key. It serves a key only if one was registered; it
// never invents data.
//
// Entries are registered programmatically with Register, or loaded from a
// YAML file mapping metric keys to payload objects:
//
//	stripe_mrr:
//	  mrr: 50000
//	  arr: 600000
//	  source: manual
//	stripe_customers:
//	  customers: 42
//
// Static payloads normally carry no timestamp and therefore classify as
// unknown freshness, which is exactly what a UI should show for canned data.
type StaticTable struct {
	mu      sync.RWMutex
	entries map[string]*payload.Payload
	logger  *slog.Logger
}

// NewStaticTable creates an empty fallback table.
func NewStaticTable(logger *slog.Logger) *StaticTable {
	if logger == nil {
		logger = slog.Default()
	}
	return &StaticTable{
		entries: make(map[string]*payload.Payload),
		logger:  logger.With("component", "source.static"),
	}
}

// Name returns the tier name.
func (t *StaticTable) Name() string {
	return TierStaticFallback
}

// Endpoint returns a diagnostic location for the given key.
func (t *StaticTable) Endpoint(key string) string {
	return "static-fallback:" + key
}

// Register adds or replaces the fallback payload for key. The data must be a
// JSON object.
func (t *StaticTable) Register(key string, data []byte) error {
	if key == "" {
		return fmt.Errorf("static fallback key must not be empty")
	}

	p, err := payload.Parse(key, data)
	if err != nil {
		return fmt.Errorf("invalid static fallback for key %q: %w", key, err)
	}

	t.mu.Lock()
	t.entries[key] = p
	t.mu.Unlock()
	return nil
}

// Fetch returns the registered fallback payload for key, or ErrNotRegistered.
func (t *StaticTable) Fetch(_ context.Context, key string) (*payload.Payload, error) {
	t.mu.RLock()
	p, ok := t.entries[key]
	t.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, key)
	}
	return p.Clone(), nil
}

// Keys returns the registered metric keys, for diagnostics.
func (t *StaticTable) Keys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	return keys
}

// LoadFile replaces the table contents with the entries in the YAML file at
// path. On any error the existing table is left untouched.
func (t *StaticTable) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read static fallback file %q: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse static fallback file %q: %w", path, err)
	}

	entries := make(map[string]*payload.Payload, len(raw))
	for key, value := range raw {
		obj, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("static fallback for key %q in %q is not a mapping", key, path)
		}
		jsonData, err := json.Marshal(obj)
		if err != nil {
			return fmt.Errorf("failed to encode static fallback for key %q: %w", key, err)
		}
		p, err := payload.Parse(key, jsonData)
		if err != nil {
			return fmt.Errorf("invalid static fallback for key %q: %w", key, err)
		}
		entries[key] = p
	}

	t.mu.Lock()
	t.entries = entries
	t.mu.Unlock()

	t.logger.Info("loaded static fallback table", "path", path, "keys", len(entries))
	return nil
}

// Watch reloads the table whenever the file at path changes. It blocks until
// the context is cancelled. A reload failure keeps the previous table and
// logs a warning; it does not stop the watcher.
func (t *StaticTable) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory rather than the file: editors replace files by
	// rename, which drops a direct file watch.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	target := filepath.Clean(path)
	var debounce *time.Timer
	reload := make(chan struct{}, 1)

	t.logger.Info("watching static fallback file", "path", path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			if err := t.LoadFile(path); err != nil {
				t.logger.Warn("failed to reload static fallback file, keeping previous table",
					"path", path,
					"error", err,
				)
			}

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			t.logger.Warn("static fallback watcher error", "error", watchErr)
		}
	}
}
