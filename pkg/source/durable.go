package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"beacon-hq/beacon/pkg/payload"
)

// DurableConfig contains configuration for the durable cache tier.
type DurableConfig struct {
	// BaseURL is the base URL of the service exposing the cached-metrics
	// endpoint. Often the same as the live base URL; a Beacon sidecar
	// running `beacon serve` also implements this endpoint.
	BaseURL string

	// Timeout is the per-request timeout. Default: 10 seconds.
	Timeout time.Duration

	// Logger is the structured logger. Defaults to slog.Default.
	Logger *slog.Logger
}

// Durable is the second fallback tier. It queries the server-side cache of
// last known-good payloads at GET {BaseURL}/api/v1/cached-metrics/{key}.
//
// The endpoint returns an envelope {data, fetched_at, source}; fetched_at is
// when the cached value was originally retrieved from its upstream, and is
// used for freshness classification when the payload itself carries no
// timestamp. The durable tier is consulted only after the live tier has
// failed, so it performs a single attempt with no retries.
type Durable struct {
	config DurableConfig
	client *http.Client
	logger *slog.Logger
}

// durableEnvelope is the wire shape of the cached-metrics endpoint.
type durableEnvelope struct {
	Data      json.RawMessage `json:"data"`
	FetchedAt string          `json:"fetched_at"`
	Source    string          `json:"source"`
}

// NewDurable creates the durable cache tier.
func NewDurable(cfg DurableConfig) (*Durable, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("durable source requires a base URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Durable{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: cfg.Logger.With("component", "source.durable"),
	}, nil
}

// Name returns the tier name.
func (d *Durable) Name() string {
	return TierDurableCache
}

// Endpoint returns the cached-metrics URL for the given key.
func (d *Durable) Endpoint(key string) string {
	return fmt.Sprintf("%s/api/v1/cached-metrics/%s",
		strings.TrimRight(d.config.BaseURL, "/"), url.PathEscape(key))
}

// Fetch retrieves the last known-good payload for key from the durable cache.
func (d *Durable) Fetch(ctx context.Context, key string) (*payload.Payload, error) {
	endpoint := d.Endpoint(key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       excerpt(body),
		}
	}

	var envelope durableEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &DecodeError{Endpoint: endpoint, Cause: err}
	}
	if len(envelope.Data) == 0 {
		return nil, &DecodeError{
			Endpoint: endpoint,
			Cause:    fmt.Errorf("envelope has no data field"),
		}
	}

	p, err := payload.Parse(key, envelope.Data)
	if err != nil {
		return nil, &DecodeError{Endpoint: endpoint, Cause: err}
	}

	// The cached payload may predate timestamping; fall back to the
	// envelope's fetched_at so freshness is still classifiable.
	if !p.HasTimestamp() && envelope.FetchedAt != "" {
		if ts, perr := time.Parse(time.RFC3339, envelope.FetchedAt); perr == nil {
			p.Timestamp = ts
		}
	}
	if p.Source == "" {
		p.Source = envelope.Source
	}

	d.logger.Debug("served payload from durable cache",
		"key", key,
		"fetched_at", envelope.FetchedAt,
		"source", envelope.Source,
	)

	return p, nil
}
