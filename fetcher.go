package hyperfetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hyp3rd/hyperfetch/internal/constants"
	"github.com/hyp3rd/hyperfetch/internal/libs/serializer"
	"github.com/hyp3rd/hyperfetch/internal/sentinel"
	"github.com/hyp3rd/hyperfetch/internal/telemetry/attrs"
	"github.com/hyp3rd/hyperfetch/pkg/backend"
	"github.com/hyp3rd/hyperfetch/pkg/cache"
	"github.com/hyp3rd/hyperfetch/pkg/stats"
)

const tracerName = "hyperfetch"

// Fetcher is the enhanced fetch orchestrator. A GET flows through the tiered
// read path (memory, distributed, in-flight coalescing) before the origin is
// touched; origin calls run under a resizable semaphore and their responses
// are routed to the buffering or the streaming strategy. Non-GET methods
// bypass every cache stage and only honor the concurrency gate.
//
// A single Fetcher is safe for concurrent use and is meant to live for the
// process lifetime.
type Fetcher struct {
	logger    *zap.Logger
	tracer    trace.Tracer
	transport Transport

	memory     *cache.LRU
	remote     backend.Remote
	strategies *cacheStrategies
	streaming  *streamingStrategy
	buffering  *bufferingStrategy
	flights    *flightGroup
	sem        *Semaphore
	pool       *WorkerPool
	collector  stats.ICollector
	config     *configState

	// lifetime scopes background work; it survives request contexts and is
	// cut on Close.
	lifetime context.Context
	cancel   context.CancelFunc
	closed   atomic.Bool

	// staged by options, consumed once in New
	serializerName string
	memoryCapacity int
	poolWorkers    int
	source         Source
	configMaxAge   time.Duration
	initial        *Config
}

// New builds a Fetcher. ctx bounds construction (the initial config load);
// background work is detached from it and stopped by Close.
func New(ctx context.Context, options ...Option) (*Fetcher, error) {
	fetcher := &Fetcher{
		logger:         zap.NewNop(),
		tracer:         otel.Tracer(tracerName),
		transport:      newDefaultTransport(),
		collector:      stats.NewCollector(),
		serializerName: serializer.DefaultSerializerName,
		memoryCapacity: constants.DefaultMemoryCapacity,
		poolWorkers:    constants.DefaultPoolWorkers,
	}

	ApplyOptions(fetcher, options...)

	ser, err := serializer.New(fetcher.serializerName)
	if err != nil {
		return nil, err
	}

	memory, err := cache.NewLRU(fetcher.memoryCapacity)
	if err != nil {
		return nil, err
	}

	memory.OnEvict(func(string) {
		fetcher.collector.IncrementEvictions()
	})
	fetcher.memory = memory

	initial, err := fetcher.initialConfig(ctx)
	if err != nil {
		return nil, err
	}

	fetcher.config = newConfigState(initial, fetcher.source, fetcher.configMaxAge)

	sem, err := NewSemaphore(initial.Concurrency)
	if err != nil {
		return nil, err
	}

	fetcher.sem = sem
	fetcher.flights = newFlightGroup()
	fetcher.pool = NewWorkerPool(fetcher.poolWorkers)

	lifetime, cancel := context.WithCancel(context.WithoutCancel(ctx))
	fetcher.lifetime = lifetime
	fetcher.cancel = cancel

	go fetcher.drainPoolErrors()

	fetcher.strategies = &cacheStrategies{
		memory:     memory,
		remote:     fetcher.remote,
		serializer: ser,
		logger:     fetcher.logger,
		collector:  fetcher.collector,
		config:     fetcher.config.snapshot,
	}
	fetcher.streaming = &streamingStrategy{
		strategies: fetcher.strategies,
		pool:       fetcher.pool,
		logger:     fetcher.logger,
		collector:  fetcher.collector,
		lifetime:   lifetime,
	}
	fetcher.buffering = &bufferingStrategy{
		strategies: fetcher.strategies,
		streaming:  fetcher.streaming,
		pool:       fetcher.pool,
		logger:     fetcher.logger,
		collector:  fetcher.collector,
		lifetime:   lifetime,
	}

	return fetcher, nil
}

// initialConfig resolves the construction-time snapshot: an explicit static
// config wins, then a synchronous Source load, then built-in defaults. A
// failing Source degrades to defaults so the fetcher always comes up.
func (f *Fetcher) initialConfig(ctx context.Context) (Config, error) {
	initial := DefaultConfig()

	if f.initial != nil {
		initial = f.initial.withDefaults()

		err := initial.Validate()
		if err != nil {
			return Config{}, err
		}
	}

	if f.source == nil {
		return initial, nil
	}

	loadCtx, cancel := context.WithTimeout(ctx, constants.DefaultConfigLoadTimeout)
	defer cancel()

	cfg, err := f.source.Load(loadCtx)
	if err != nil {
		f.logger.Warn("initial config load failed, starting with defaults", zap.Error(err))

		return initial, nil
	}

	cfg = cfg.withDefaults()

	err = cfg.Validate()
	if err != nil {
		f.logger.Warn("initial config rejected, starting with defaults", zap.Error(err))

		return initial, nil
	}

	return cfg, nil
}

func (f *Fetcher) drainPoolErrors() {
	for err := range f.pool.Errors() {
		f.logger.Warn("background cache write failed", zap.Error(err))
	}
}

// Fetch resolves url through the tiered read path. The returned Response's
// Body must always be closed, whichever tier produced it.
func (f *Fetcher) Fetch(ctx context.Context, url string, opts *RequestOptions) (*Response, error) {
	if f.closed.Load() {
		return nil, ewrap.Wrap(sentinel.ErrFetcherClosed, "fetch")
	}

	if url == "" {
		return nil, ewrap.Wrap(sentinel.ErrInvalidURL, "fetch")
	}

	cfg := f.config.snapshot()
	f.config.maybeRefresh(f.lifetime, f.logger)

	if cfg.Concurrency != f.sem.Capacity() {
		f.sem.Resize(cfg.Concurrency)
	}

	if !cfg.Enhanced {
		f.collector.IncrementPassthroughs()

		return f.passthrough(ctx, url, opts, cfg)
	}

	method := opts.method()
	key := cache.Key(method, url)

	ctx, span := f.tracer.Start(ctx, "hyperfetch.fetch", trace.WithAttributes(
		attribute.String(attrs.AttrMethod, method),
		attribute.String(attrs.AttrKeyHash, keyFingerprint(key)),
	))

	if method != http.MethodGet {
		return f.fetchDirect(ctx, span, url, method, opts, cfg)
	}

	return f.fetchCached(ctx, span, key, url, method, opts, cfg)
}

// FetchStream resolves url and hands back the raw byte stream.
func (f *Fetcher) FetchStream(ctx context.Context, url string, opts *RequestOptions) (io.ReadCloser, error) {
	resp, err := f.Fetch(ctx, url, opts)
	if err != nil {
		return nil, err
	}

	return resp.Body, nil
}

// passthrough issues the request with the enhanced path disabled.
func (f *Fetcher) passthrough(ctx context.Context, url string, opts *RequestOptions, cfg Config) (*Response, error) {
	resp, err := f.do(ctx, url, opts.method(), opts, cfg)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       resp.Body,
		Source:     SourcePassthrough,
	}, nil
}

// fetchDirect serves non-GET methods: no cache stages, no dedup, just the
// concurrency gate. The permit is released once headers are in because the
// body is never buffered here.
func (f *Fetcher) fetchDirect(
	ctx context.Context,
	span trace.Span,
	url, method string,
	opts *RequestOptions,
	cfg Config,
) (*Response, error) {
	defer span.End()

	f.collector.IncrementNonGets()

	err := f.sem.Acquire(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "semaphore acquire")

		return nil, err
	}

	resp, err := f.do(ctx, url, method, opts, cfg)
	if err != nil {
		f.sem.Release()
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")

		return nil, err
	}

	f.sem.Release()
	span.SetAttributes(attribute.Int(attrs.AttrStatusCode, resp.StatusCode))

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       resp.Body,
		Source:     SourceNetwork,
	}, nil
}

// fetchCached runs the GET read path: memory, distributed, in-flight, then
// origin.
func (f *Fetcher) fetchCached(
	ctx context.Context,
	span trace.Span,
	key, url, method string,
	opts *RequestOptions,
	cfg Config,
) (*Response, error) {
	if resp, ok := f.strategies.tryMemory(key, span); ok {
		span.End()

		return resp, nil
	}

	if resp, ok := f.strategies.tryRemote(ctx, key, span); ok {
		span.End()

		return resp, nil
	}

	if fl, ok := f.flights.lookup(key); ok {
		resp, settled, err := f.awaitFlight(ctx, span, fl)
		if settled {
			return resp, err
		}
		// The leader streamed its response, which cannot be replayed to
		// followers; fetch privately without re-registering.
		return f.fetchOrigin(ctx, span, key, url, method, opts, cfg, false)
	}

	return f.fetchOrigin(ctx, span, key, url, method, opts, cfg, true)
}

// awaitFlight attaches to a pending fetch. settled is false when the flight
// resolved as streamed, meaning the caller must fetch on its own.
func (f *Fetcher) awaitFlight(ctx context.Context, span trace.Span, fl *flight) (*Response, bool, error) {
	f.collector.IncrementInflightHits()
	span.SetAttributes(attribute.Bool(attrs.AttrInflightHit, true))

	value, err := fl.wait(ctx)

	switch {
	case err == nil:
		span.End()

		return newValueResponse(value, SourceInflight), true, nil
	case errors.Is(err, sentinel.ErrResponseStreamed):
		return nil, false, nil
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "shared fetch failed")
		span.End()

		return nil, true, err
	}
}

// fetchOrigin issues the network call under the semaphore and routes the
// response. With dedupe set the caller registers as the in-flight leader and
// every outcome, including failure, settles the shared flight.
func (f *Fetcher) fetchOrigin(
	ctx context.Context,
	span trace.Span,
	key, url, method string,
	opts *RequestOptions,
	cfg Config,
	dedupe bool,
) (*Response, error) {
	settle := func(*cache.Value, error) {}

	if dedupe {
		fl, leader := f.flights.register(key)
		if !leader {
			resp, settled, err := f.awaitFlight(ctx, span, fl)
			if settled {
				return resp, err
			}

			return f.fetchOrigin(ctx, span, key, url, method, opts, cfg, false)
		}

		settle = func(value *cache.Value, err error) {
			f.flights.settle(key, value, err)
		}

		f.collector.IncrementMisses()
	}

	waitStart := time.Now()

	err := f.sem.Acquire(ctx)
	if err != nil {
		settle(nil, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "semaphore acquire")
		span.End()

		return nil, err
	}

	span.SetAttributes(attribute.Int64(attrs.AttrSemaphoreWaitMS, time.Since(waitStart).Milliseconds()))
	f.collector.IncrementNetworkFetches()

	resp, err := f.do(ctx, url, method, opts, cfg)
	if err != nil {
		f.sem.Release()
		settle(nil, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		span.End()

		return nil, err
	}

	release := releaseOnce(f.sem)
	span.SetAttributes(attribute.Int(attrs.AttrStatusCode, resp.StatusCode))

	headerView := responseHeaderView(resp)

	if DetectStreamingResponse(headerView) {
		settle(nil, sentinel.ErrResponseStreamed)
		// The relay ends the span when the stream finishes.
		return f.streaming.handle(key, resp.Body, headerView, resp.StatusCode, nil, release, span), nil
	}

	out, value, err := f.buffering.handle(key, resp.Body, headerView, resp.StatusCode, resp.ContentLength, release, span)
	if err != nil {
		settle(nil, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		span.End()

		return nil, err
	}

	if value != nil {
		settle(value, nil)
		span.End()

		return out, nil
	}

	// Promoted to streaming mid-buffer; the relay ends the span.
	settle(nil, sentinel.ErrResponseStreamed)

	return out, nil
}

// do issues the HTTP call. The per-request deadline rides on the context and
// stays armed until the response body is closed, so it bounds the whole
// exchange, not just the headers.
func (f *Fetcher) do(ctx context.Context, url, method string, opts *RequestOptions, cfg Config) (*http.Response, error) {
	timeout := cfg.RequestTimeout
	if opts != nil && opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	var cancel context.CancelFunc = func() {}

	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}

	var body io.Reader
	if opts != nil {
		body = opts.Body
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		cancel()

		return nil, ewrap.Wrap(err, "build request")
	}

	if opts != nil && opts.Header != nil {
		req.Header = opts.Header.Clone()
	}

	resp, err := f.transport.Do(req)
	if err != nil {
		cancel()

		return nil, ewrap.Wrap(err, "issue request")
	}

	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}

	return resp, nil
}

// releaseOnce wraps a semaphore release so routing code can hand the duty to
// a strategy without double-release risk.
func releaseOnce(sem *Semaphore) func() {
	var once sync.Once

	return func() {
		once.Do(sem.Release)
	}
}

// Stats returns a snapshot of the runtime counters.
func (f *Fetcher) Stats() stats.Stats {
	return f.collector.GetStats()
}

// Config returns the last-good configuration snapshot.
func (f *Fetcher) Config() Config {
	return f.config.snapshot()
}

// Purge empties the in-process tier. The distributed tier is left to its
// TTLs.
func (f *Fetcher) Purge() {
	f.memory.Purge()
}

// MemoryLen reports the entry count of the in-process tier.
func (f *Fetcher) MemoryLen() int {
	return f.memory.Len()
}

// MemoryCapacity reports the entry bound of the in-process tier.
func (f *Fetcher) MemoryCapacity() int {
	return f.memory.Capacity()
}

// InflightLen reports how many fetches are currently coalescing followers.
func (f *Fetcher) InflightLen() int {
	return f.flights.len()
}

// Close drains the background write pool, then stops all background work.
// Mirrors of still-live streams finish when their streams end; ctx bounds
// how long Close waits for that.
func (f *Fetcher) Close(ctx context.Context) error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}

	done := make(chan struct{})

	go func() {
		f.pool.Shutdown()
		close(done)
	}()

	select {
	case <-done:
		f.cancel()

		return nil
	case <-ctx.Done():
		f.cancel()

		return ewrap.Wrap(sentinel.ErrTimeoutOrCanceled, "close fetcher")
	}
}
