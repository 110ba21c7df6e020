package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"beacon-hq/beacon/pkg/payload"
)

// maxBodyBytes caps how much of a response body is read. Metric payloads are
// small JSON objects; anything larger indicates a misbehaving backend.
const maxBodyBytes = 4 << 20

// maxErrorBodyExcerpt caps the response-body excerpt carried in StatusError.
const maxErrorBodyExcerpt = 256

// LiveConfig contains configuration for the live metrics API tier.
type LiveConfig struct {
	// BaseURL is the metrics backend base URL (e.g., "http://localhost:8000").
	BaseURL string

	// Timeout is the per-request timeout, including retries' individual
	// attempts. Default: 10 seconds.
	Timeout time.Duration

	// MaxRetries is the number of retries for transient failures
	// (network errors and 5xx responses). Default: 2.
	MaxRetries int

	// MaxIdleConns is the connection pool size. Default: 10.
	MaxIdleConns int

	// MaxIdleConnsPerHost is the per-host pool size. Default: 5.
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept. Default: 90s.
	IdleConnTimeout time.Duration

	// Logger is the structured logger. Defaults to slog.Default.
	Logger *slog.Logger
}

// applyDefaults fills zero fields with defaults.
func (c *LiveConfig) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 10
	}
	if c.MaxIdleConnsPerHost <= 0 {
		c.MaxIdleConnsPerHost = 5
	}
	if c.IdleConnTimeout <= 0 {
		c.IdleConnTimeout = 90 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Live is the primary tier: it fetches metrics from the backend API at
// GET {BaseURL}/api/v1/metrics/{key}. Transient failures are retried with
// exponential backoff; non-2xx responses and parse failures are reported as
// typed wire errors for the orchestrator to classify.
type Live struct {
	config LiveConfig
	client *http.Client
	logger *slog.Logger
}

// NewLive creates the live tier with connection pooling.
func NewLive(cfg LiveConfig) (*Live, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("live source requires a base URL")
	}
	cfg.applyDefaults()

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &Live{
		config: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		logger: cfg.Logger.With("component", "source.live"),
	}, nil
}

// Name returns the tier name.
func (l *Live) Name() string {
	return TierLive
}

// Endpoint returns the metrics URL for the given key.
func (l *Live) Endpoint(key string) string {
	return fmt.Sprintf("%s/api/v1/metrics/%s",
		strings.TrimRight(l.config.BaseURL, "/"), url.PathEscape(key))
}

// Fetch retrieves the live payload for key, retrying transient failures.
// 4xx responses are not retried; the backend will not change its mind.
func (l *Live) Fetch(ctx context.Context, key string) (*payload.Payload, error) {
	endpoint := l.Endpoint(key)

	var lastErr error
	for attempt := 0; attempt <= l.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			l.logger.Debug("retrying live fetch",
				"key", key,
				"attempt", attempt,
				"max_retries", l.config.MaxRetries,
				"backoff", backoff,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		p, err, retryable := l.fetchOnce(ctx, endpoint, key)
		if err == nil {
			return p, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}

	return nil, lastErr
}

// fetchOnce performs a single request. The third return value reports whether
// the failure is transient and worth retrying.
func (l *Live) fetchOnce(ctx context.Context, endpoint, key string) (*payload.Payload, error, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err), false
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		// Network-level failure. Retryable unless the context is done.
		return nil, err, ctx.Err() == nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", endpoint, err), true
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       excerpt(body),
		}
		// Only server-side errors are transient.
		return nil, statusErr, resp.StatusCode >= 500
	}

	p, err := payload.Parse(key, body)
	if err != nil {
		return nil, &DecodeError{Endpoint: endpoint, Cause: err}, false
	}

	return p, nil, false
}

// Close releases idle connections held by the pool.
func (l *Live) Close() error {
	l.client.CloseIdleConnections()
	return nil
}

// excerpt truncates a response body for inclusion in error messages.
func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBodyExcerpt {
		return s[:maxErrorBodyExcerpt] + "..."
	}
	return s
}
