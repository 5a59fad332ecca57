package hyperfetch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hyp3rd/ewrap"
	"go.uber.org/zap"

	"github.com/hyp3rd/hyperfetch/internal/constants"
	"github.com/hyp3rd/hyperfetch/internal/sentinel"
)

// Config is the live tuning snapshot the fetcher consults on every call. It
// is refreshed in the background from a Source and is safe to copy.
type Config struct {
	// Concurrency bounds simultaneous origin requests.
	Concurrency int `env:"FETCH_CONCURRENCY"`
	// CacheTTL applies to both the buffered and the stream form.
	CacheTTL time.Duration `env:"FETCH_CACHE_TTL"`
	// Enhanced disables the whole caching and concurrency path when false,
	// delegating straight to the transport.
	Enhanced bool `env:"FETCH_ENHANCED" envDefault:"true"`
	// StreamDetectBuffer is how many bytes the buffering path accumulates
	// before provisionally promoting a response without a content length.
	StreamDetectBuffer int `env:"FETCH_STREAM_DETECT_BUFFER"`
	// StreamBufferMax forcibly promotes any response that grows past it.
	StreamBufferMax int `env:"FETCH_STREAM_BUFFER_MAX"`
	// StreamMaxChunks caps the chunk count mirrored into the remote stream
	// form.
	StreamMaxChunks int `env:"FETCH_STREAM_MAX_CHUNKS"`
	// StreamMaxTotalBytes caps the total bytes mirrored into the remote
	// stream form.
	StreamMaxTotalBytes int64 `env:"FETCH_STREAM_MAX_TOTAL_BYTES"`
	// DedupWriteRequests is a forward hook; write requests are never
	// deduplicated today regardless of its value.
	DedupWriteRequests bool `env:"FETCH_DEDUP_WRITE_REQUESTS"`
	// RequestTimeout bounds a single origin call when the request options do
	// not carry their own timeout.
	RequestTimeout time.Duration `env:"FETCH_REQUEST_TIMEOUT"`
}

// DefaultConfig returns the built-in tuning values.
func DefaultConfig() Config {
	return Config{
		Concurrency:         constants.DefaultConcurrency,
		CacheTTL:            constants.DefaultCacheTTL,
		Enhanced:            true,
		StreamDetectBuffer:  constants.DefaultStreamDetectBuffer,
		StreamBufferMax:     constants.DefaultStreamBufferMax,
		StreamMaxChunks:     constants.DefaultStreamMaxChunks,
		StreamMaxTotalBytes: constants.DefaultStreamMaxTotalBytes,
		RequestTimeout:      constants.DefaultRequestTimeout,
	}
}

// withDefaults fills zero fields so a partial Source payload cannot disable
// the fetch path.
func (cfg Config) withDefaults() Config {
	defaults := DefaultConfig()

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaults.Concurrency
	}

	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaults.CacheTTL
	}

	if cfg.StreamDetectBuffer <= 0 {
		cfg.StreamDetectBuffer = defaults.StreamDetectBuffer
	}

	if cfg.StreamBufferMax <= 0 {
		cfg.StreamBufferMax = defaults.StreamBufferMax
	}

	if cfg.StreamMaxChunks <= 0 {
		cfg.StreamMaxChunks = defaults.StreamMaxChunks
	}

	if cfg.StreamMaxTotalBytes <= 0 {
		cfg.StreamMaxTotalBytes = defaults.StreamMaxTotalBytes
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}

	return cfg
}

// Validate rejects values the fetcher cannot run with.
func (cfg Config) Validate() error {
	if cfg.Concurrency < 1 {
		return ewrap.Wrap(sentinel.ErrInvalidConcurrency, "validate config")
	}

	if cfg.StreamBufferMax < cfg.StreamDetectBuffer {
		return ewrap.New("stream buffer max cannot be below the detect buffer")
	}

	return nil
}

// Source supplies live configuration. Load is called synchronously once at
// construction and in the background afterwards, so implementations should
// honor ctx deadlines.
type Source interface {
	Load(ctx context.Context) (Config, error)
}

// SourceFunc adapts a plain function to the Source interface.
type SourceFunc func(ctx context.Context) (Config, error)

// Load implements Source.
func (f SourceFunc) Load(ctx context.Context) (Config, error) {
	return f(ctx)
}

// EnvSource reads configuration from FETCH_* environment variables, falling
// back to built-in defaults for unset fields.
func EnvSource() Source {
	return SourceFunc(func(_ context.Context) (Config, error) {
		cfg := DefaultConfig()

		err := env.Parse(&cfg)
		if err != nil {
			return Config{}, ewrap.Wrap(err, "parse fetch environment")
		}

		return cfg, nil
	})
}

// configState holds the last-good snapshot plus the refresh bookkeeping. The
// snapshot is read lock-free on every fetch; refreshes happen at most one at
// a time.
type configState struct {
	current     atomic.Pointer[Config]
	refreshedAt atomic.Int64
	refreshing  atomic.Bool
	source      Source
	maxAge      time.Duration
}

func newConfigState(initial Config, source Source, maxAge time.Duration) *configState {
	if maxAge <= 0 {
		maxAge = constants.DefaultConfigMaxAge
	}

	state := &configState{
		source: source,
		maxAge: maxAge,
	}
	state.store(initial)

	return state
}

func (cs *configState) store(cfg Config) {
	cs.current.Store(&cfg)
	cs.refreshedAt.Store(time.Now().UnixNano())
}

// snapshot returns the last-good configuration without blocking.
func (cs *configState) snapshot() Config {
	return *cs.current.Load()
}

func (cs *configState) stale() bool {
	return time.Since(time.Unix(0, cs.refreshedAt.Load())) >= cs.maxAge
}

// maybeRefresh kicks off a background reload when the snapshot is stale and
// no reload is already running. It never blocks the calling fetch.
func (cs *configState) maybeRefresh(ctx context.Context, logger *zap.Logger) {
	if cs.source == nil || !cs.stale() {
		return
	}

	if !cs.refreshing.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer cs.refreshing.Store(false)

		loadCtx, cancel := context.WithTimeout(ctx, constants.DefaultConfigLoadTimeout)
		defer cancel()

		cfg, err := cs.source.Load(loadCtx)
		if err != nil {
			logger.Warn("config refresh failed, keeping last-good snapshot", zap.Error(err))

			return
		}

		cfg = cfg.withDefaults()

		err = cfg.Validate()
		if err != nil {
			logger.Warn("config refresh rejected", zap.Error(err))

			return
		}

		cs.store(cfg)
	}()
}
