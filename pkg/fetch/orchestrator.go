package fetch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"beacon-hq/beacon/pkg/cache"
	"beacon-hq/beacon/pkg/freshness"
	"beacon-hq/beacon/pkg/payload"
	"beacon-hq/beacon/pkg/source"
)

// defaultRevalidateTimeout bounds background revalidation fetches so a hung
// backend cannot pin goroutines indefinitely.
const defaultRevalidateTimeout = 30 * time.Second

// Config contains the collaborators for an Orchestrator.
type Config struct {
	// Live is the primary tier. Required.
	Live source.Source

	// Durable is the server-side cache tier. Optional.
	Durable source.Source

	// Static is the last-resort fallback table. Optional.
	Static source.Source

	// Store is the local cache. Required.
	Store cache.Store

	// Logger is the structured logger. Defaults to slog.Default.
	Logger *slog.Logger

	// Metrics receives retrieval measurements. Optional.
	Metrics Instrument

	// Clock supplies the current time for freshness classification.
	// Defaults to time.Now; overridable in tests.
	Clock func() time.Time

	// Classifier buckets payload ages. Defaults to the standard windows.
	Classifier *freshness.Classifier

	// RevalidateTimeout bounds each background revalidation fetch.
	// Default: 30 seconds.
	RevalidateTimeout time.Duration
}

// Orchestrator is the single entry point for metric retrieval. It owns the
// source-precedence policy so no two consumers implement it differently:
// live fetch first, then the already-held local cache entry, then the durable
// cache endpoint, then the static fallback table. A tier is consulted only
// after the previous one explicitly failed, and lower-tier reads never write
// back to the local cache, so a transient outage is never laundered into
// durable truth.
type Orchestrator struct {
	live       source.Source
	durable    source.Source
	static     source.Source
	store      cache.Store
	logger     *slog.Logger
	metrics    Instrument
	clock      func() time.Time
	classifier *freshness.Classifier

	revalidateTimeout time.Duration

	// sf deduplicates concurrent live fetches per key.
	sf singleflight.Group

	// wg tracks in-flight background revalidations for Close.
	wg sync.WaitGroup

	mu           sync.RWMutex
	listeners    map[int]Listener
	nextListener int
	warnings     map[string]*TypedError
	closed       bool
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Live == nil {
		return nil, errors.New("orchestrator requires a live source")
	}
	if cfg.Store == nil {
		return nil, errors.New("orchestrator requires a cache store")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Classifier == nil {
		cfg.Classifier = freshness.NewClassifier(freshness.LiveWindow, freshness.RecentWindow)
	}
	if cfg.RevalidateTimeout <= 0 {
		cfg.RevalidateTimeout = defaultRevalidateTimeout
	}

	return &Orchestrator{
		live:              cfg.Live,
		durable:           cfg.Durable,
		static:            cfg.Static,
		store:             cfg.Store,
		logger:            cfg.Logger.With("component", "fetch"),
		metrics:           cfg.Metrics,
		clock:             cfg.Clock,
		classifier:        cfg.Classifier,
		revalidateTimeout: cfg.RevalidateTimeout,
		listeners:         make(map[int]Listener),
		warnings:          make(map[string]*TypedError),
	}, nil
}

// Get retrieves the payload for key with the default options
// (PreferCache true).
func (o *Orchestrator) Get(ctx context.Context, key string) Result {
	return o.GetWithOptions(ctx, key, Options{PreferCache: true})
}

// GetWithOptions retrieves the payload for key. It never returns an error
// through the Go error path and never panics: every outcome, including total
// failure, is expressed as a Result.
func (o *Orchestrator) GetWithOptions(ctx context.Context, key string, opts Options) Result {
	now := o.clock()
	requestID := uuid.NewString()

	if key == "" {
		return Result{
			RequestID: requestID,
			Freshness: freshness.Unknown,
			Err: &TypedError{
				Kind:        KindUnknown,
				Message:     "metric key must not be empty",
				Remediation: remediation[KindUnknown],
			},
			FetchedAt: now,
		}
	}

	if opts.PreferCache {
		entry, err := o.store.Get(ctx, key)
		switch {
		case err == nil:
			// Optimistic display: serve the held entry immediately and
			// revalidate off the hot path.
			res := o.resultFromEntry(requestID, entry, now)
			o.revalidate(key)
			o.record(res, now)
			return res
		case !errors.Is(err, cache.ErrNotFound):
			o.logger.Warn("local cache read failed, treating as miss",
				"key", key,
				"error", err,
			)
		}
	}

	res := o.fetchChain(ctx, requestID, key, now)
	o.record(res, now)
	return res
}

// Subscribe registers a listener for asynchronous results (refreshes and
// revalidation warnings). The returned function cancels the subscription.
func (o *Orchestrator) Subscribe(l Listener) func() {
	o.mu.Lock()
	id := o.nextListener
	o.nextListener++
	o.listeners[id] = l
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.listeners, id)
		o.mu.Unlock()
	}
}

// LastWarning returns the most recent background-revalidation failure for
// key, or nil. It is cleared by the next successful revalidation.
func (o *Orchestrator) LastWarning(key string) *TypedError {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.warnings[key]
}

// Close waits for in-flight background revalidations to finish. The
// orchestrator must not be used after Close.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	o.wg.Wait()
	return nil
}

// fetchChain walks live -> durable -> static, in that fixed order. Each tier
// runs only after the previous one explicitly failed, so the returned
// provenance is exact.
func (o *Orchestrator) fetchChain(ctx context.Context, requestID, key string, now time.Time) Result {
	p, err := o.liveFetch(ctx, key)
	if err == nil {
		if serr := o.store.Set(ctx, key, p); serr != nil {
			o.logger.Warn("failed to store live payload in local cache",
				"key", key,
				"error", serr,
			)
		}
		return Result{
			RequestID:  requestID,
			Key:        key,
			Data:       p,
			Provenance: ProvenanceLive,
			Freshness:  o.classifier.Classify(p.Timestamp, now),
			FetchedAt:  now,
		}
	}

	liveErr := ClassifyError(o.live.Endpoint(key), err)
	o.recordTierFailure(source.TierLive, liveErr)
	o.logger.Warn("live fetch failed, walking fallback chain",
		"key", key,
		"kind", liveErr.Kind,
		"error", err,
	)

	if o.durable != nil {
		if p, derr := o.durable.Fetch(ctx, key); derr == nil {
			return Result{
				RequestID:  requestID,
				Key:        key,
				Data:       p,
				Provenance: ProvenanceDurableCache,
				Freshness:  o.classifier.Classify(p.Timestamp, now),
				Err:        liveErr,
				FetchedAt:  now,
			}
		} else {
			o.recordTierFailure(source.TierDurableCache, ClassifyError(o.durable.Endpoint(key), derr))
			o.logger.Warn("durable cache fetch failed",
				"key", key,
				"error", derr,
			)
		}
	}

	if o.static != nil {
		if p, serr := o.static.Fetch(ctx, key); serr == nil {
			return Result{
				RequestID:  requestID,
				Key:        key,
				Data:       p,
				Provenance: ProvenanceStaticFallback,
				Freshness:  o.classifier.Classify(p.Timestamp, now),
				Err:        liveErr,
				FetchedAt:  now,
			}
		} else {
			o.recordTierFailure(source.TierStaticFallback, ClassifyError(o.static.Endpoint(key), serr))
			if !errors.Is(serr, source.ErrNotRegistered) {
				o.logger.Warn("static fallback fetch failed",
					"key", key,
					"error", serr,
				)
			}
		}
	}

	// Terminal: every tier failed. The live error is authoritative for
	// display; remediation steps travel with it.
	return Result{
		RequestID: requestID,
		Key:       key,
		Freshness: freshness.Unknown,
		Err:       liveErr,
		FetchedAt: now,
	}
}

// liveFetch performs the live tier fetch, collapsing concurrent requests for
// the same key into one upstream call.
func (o *Orchestrator) liveFetch(ctx context.Context, key string) (*payload.Payload, error) {
	v, err, _ := o.sf.Do(key, func() (any, error) {
		return o.live.Fetch(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*payload.Payload), nil
}

// revalidate refreshes key in the background. A success overwrites the local
// cache and notifies listeners with a live result; a failure leaves the
// cached value authoritative and attaches a warning.
func (o *Orchestrator) revalidate(key string) {
	// The closed check and wg.Add must be one atomic step: Close sets
	// closed and then waits, so an Add after Close's wg.Wait started
	// would race the counter at zero.
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.wg.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), o.revalidateTimeout)
		defer cancel()

		requestID := uuid.NewString()
		p, err := o.liveFetch(ctx, key)
		now := o.clock()

		if err == nil {
			if serr := o.store.Set(ctx, key, p); serr != nil {
				o.logger.Warn("failed to store revalidated payload",
					"key", key,
					"error", serr,
				)
			}
			o.setWarning(key, nil)
			o.recordRevalidation(key, true)
			o.notify(Result{
				RequestID:  requestID,
				Key:        key,
				Data:       p,
				Provenance: ProvenanceLive,
				Freshness:  o.classifier.Classify(p.Timestamp, now),
				FetchedAt:  now,
			})
			return
		}

		typed := ClassifyError(o.live.Endpoint(key), err)
		o.recordTierFailure(source.TierLive, typed)
		o.setWarning(key, typed)
		o.recordRevalidation(key, false)
		o.logger.Warn("background revalidation failed, cached value remains authoritative",
			"key", key,
			"kind", typed.Kind,
			"error", err,
		)

		// Hand listeners the still-authoritative cached value with the
		// warning attached.
		res := Result{
			RequestID: requestID,
			Key:       key,
			Freshness: freshness.Unknown,
			Warning:   typed,
			FetchedAt: now,
		}
		if entry, gerr := o.store.Get(ctx, key); gerr == nil {
			res.Data = entry.Payload
			res.Provenance = ProvenanceLocalCache
			res.Freshness = o.entryFreshness(entry, now)
		}
		o.notify(res)
	}()
}

// resultFromEntry builds the optimistic result for a local cache hit.
func (o *Orchestrator) resultFromEntry(requestID string, entry *cache.Entry, now time.Time) Result {
	return Result{
		RequestID:  requestID,
		Key:        entry.Key,
		Data:       entry.Payload,
		Provenance: ProvenanceLocalCache,
		Freshness:  o.entryFreshness(entry, now),
		Warning:    o.LastWarning(entry.Key),
		FetchedAt:  now,
	}
}

// entryFreshness classifies a cached entry. Only the payload's upstream
// timestamp counts; a payload without one has unknown freshness, no matter
// how recently the local store saw it.
func (o *Orchestrator) entryFreshness(entry *cache.Entry, now time.Time) freshness.Level {
	if entry.Payload != nil && entry.Payload.HasTimestamp() {
		return o.classifier.Classify(entry.Payload.Timestamp, now)
	}
	return freshness.Unknown
}

// setWarning records (or clears, with nil) the last revalidation failure.
func (o *Orchestrator) setWarning(key string, te *TypedError) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if te == nil {
		delete(o.warnings, key)
		return
	}
	o.warnings[key] = te
}

// notify fans a result out to the current listeners.
func (o *Orchestrator) notify(res Result) {
	o.mu.RLock()
	listeners := make([]Listener, 0, len(o.listeners))
	for _, l := range o.listeners {
		listeners = append(listeners, l)
	}
	o.mu.RUnlock()

	for _, l := range listeners {
		l(res)
	}
}

// record forwards a completed retrieval to the instrumentation hook.
func (o *Orchestrator) record(res Result, start time.Time) {
	if o.metrics == nil {
		return
	}
	prov := string(res.Provenance)
	if prov == "" {
		prov = "none"
	}
	o.metrics.RecordFetch(res.Key, prov, string(res.Freshness), o.clock().Sub(start))
}

// recordTierFailure forwards a tier failure to the instrumentation hook.
func (o *Orchestrator) recordTierFailure(tier string, te *TypedError) {
	if o.metrics == nil {
		return
	}
	o.metrics.RecordTierFailure(tier, string(te.Kind))
}

// recordRevalidation forwards a revalidation outcome to instrumentation
// hooks that track it.
func (o *Orchestrator) recordRevalidation(key string, ok bool) {
	rr, hasIt := o.metrics.(interface{ RecordRevalidation(string, bool) })
	if !hasIt {
		return
	}
	rr.RecordRevalidation(key, ok)
}
