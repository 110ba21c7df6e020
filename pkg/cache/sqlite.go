package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"beacon-hq/beacon/pkg/payload"
)

// SQLiteConfig contains configuration for the SQLite-backed store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is how long to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// Logger is the structured logger. Defaults to slog.Default.
	Logger *slog.Logger
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/metrics_cache.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// sqliteSchema creates the snapshot table. Rows are append-only: every write
// inserts a new row, Get reads the newest row per key, and Prune trims
// history. This preserves a short audit trail of recent snapshots instead of
// destroying the previous value on every refresh.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS metrics_cache (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	metric_key  TEXT NOT NULL,
	data        TEXT NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	fetched_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_metrics_cache_key_fetched
	ON metrics_cache(metric_key, fetched_at DESC);
`

// SQLiteStore implements Store using SQLite. It persists the last known-good
// payloads across process restarts, which lets a Beacon sidecar serve the
// durable-cache endpoint after the backend goes down.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	pruned atomic.Int64
}

// NewSQLiteStore opens (and if needed initializes) the database at
// config.Path.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Path == "" {
		return nil, fmt.Errorf("sqlite store requires a database path")
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = 10
	}
	if config.MaxIdleConns <= 0 {
		config.MaxIdleConns = 5
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d", config.Path, config.BusyTimeout.Milliseconds())
	if config.WALMode {
		dsn += "&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %q: %w", config.Path, err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize sqlite schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		config: config,
		logger: logger.With("component", "cache.sqlite"),
	}, nil
}

// Get returns the most recent snapshot for key, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT data, source, fetched_at
		FROM metrics_cache
		WHERE metric_key = ?
		ORDER BY fetched_at DESC, id DESC
		LIMIT 1`, key)

	var data, source string
	var fetchedAt time.Time
	if err := row.Scan(&data, &source, &fetchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.misses.Add(1)
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read cache entry for %q: %w", key, err)
	}

	p, err := payload.Parse(key, []byte(data))
	if err != nil {
		return nil, fmt.Errorf("corrupt cache entry for %q: %w", key, err)
	}
	if p.Source == "" {
		p.Source = source
	}

	s.hits.Add(1)
	return &Entry{
		Key:      key,
		Payload:  p,
		StoredAt: fetchedAt,
	}, nil
}

// Set appends a new snapshot row for key.
func (s *SQLiteStore) Set(ctx context.Context, key string, p *payload.Payload) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metrics_cache (metric_key, data, source, fetched_at)
		VALUES (?, ?, ?, ?)`,
		key, string(p.Raw), p.Source, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write cache entry for %q: %w", key, err)
	}
	return nil
}

// Clear removes all snapshots.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM metrics_cache`); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// Prune deletes old snapshot rows, keeping the keepLatest most recent rows
// per metric key. It returns the number of rows deleted.
func (s *SQLiteStore) Prune(ctx context.Context, keepLatest int) (int64, error) {
	if keepLatest < 1 {
		keepLatest = 1
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM metrics_cache WHERE id NOT IN (
			SELECT id FROM (
				SELECT id,
				       ROW_NUMBER() OVER (
				           PARTITION BY metric_key
				           ORDER BY fetched_at DESC, id DESC
				       ) AS rn
				FROM metrics_cache
			) WHERE rn <= ?
		)`, keepLatest)
	if err != nil {
		return 0, fmt.Errorf("failed to prune cache: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned rows: %w", err)
	}

	if deleted > 0 {
		s.pruned.Add(deleted)
		s.logger.Info("pruned old cache snapshots",
			"deleted", deleted,
			"keep_latest", keepLatest,
		)
	}
	return deleted, nil
}

// Stats returns cumulative store statistics. Entries counts distinct metric
// keys, not snapshot rows.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var entries int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT metric_key) FROM metrics_cache`)
	if err := row.Scan(&entries); err != nil {
		return Stats{}, fmt.Errorf("failed to count cache entries: %w", err)
	}

	return Stats{
		Entries:   entries,
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.pruned.Load(),
	}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
