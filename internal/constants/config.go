// Package constants defines default configuration values for the hyperfetch
// system. It provides standard settings for request concurrency, cache TTLs,
// stream detection and mirroring budgets, and the tuning of the underlying
// HTTP and Redis clients.
package constants

import "time"

const (
	// DefaultConcurrency is the default number of simultaneous upstream
	// requests permitted by the semaphore when configuration supplies none.
	DefaultConcurrency = 8
	// DefaultCacheTTL is the default time-to-live applied to distributed
	// cache entries, both buffered and stream form.
	DefaultCacheTTL = 5 * time.Minute
	// DefaultRequestTimeout bounds a single upstream HTTP call.
	DefaultRequestTimeout = 30 * time.Second
	// DefaultStreamDetectBuffer is the number of body bytes accumulated
	// before the buffering path makes its provisional stream-vs-buffer
	// decision for responses with ambiguous headers.
	DefaultStreamDetectBuffer = 64 * 1024
	// DefaultStreamBufferMax is the hard ceiling on in-memory accumulation.
	// A body that grows past it is promoted to streaming mode regardless of
	// its header classification.
	DefaultStreamBufferMax = 1024 * 1024
	// DefaultStreamMaxChunks caps the number of chunks mirrored into the
	// stream-form list for a single key.
	DefaultStreamMaxChunks = 256
	// DefaultStreamMaxTotalBytes caps the total byte volume mirrored into
	// the stream-form list for a single key.
	DefaultStreamMaxTotalBytes = 4 * 1024 * 1024
	// DefaultMemoryCapacity is the default entry bound of the in-process LRU tier.
	DefaultMemoryCapacity = 512
	// DefaultConfigMaxAge is how long a configuration snapshot is trusted
	// before a fetch triggers a background refresh.
	DefaultConfigMaxAge = 30 * time.Second
	// DefaultConfigLoadTimeout bounds a single Source.Load call.
	DefaultConfigLoadTimeout = 5 * time.Second
	// DefaultPoolWorkers is the default size of the background worker pool
	// that performs distributed cache writes and stream mirroring.
	DefaultPoolWorkers = 8
	// StreamKeySuffix is appended to a cache key to address the stream-form chunk list.
	StreamKeySuffix = ":stream"
	// StreamMetaKeySuffix is appended to a cache key to address the stream-form metadata.
	StreamMetaKeySuffix = ":stream:meta"
)

const (
	// HTTPMaxIdleConns caps idle connections kept by the default HTTP transport.
	HTTPMaxIdleConns = 100
	// HTTPMaxIdleConnsPerHost caps idle connections per upstream host.
	HTTPMaxIdleConnsPerHost = 10
	// HTTPIdleConnTimeout is how long an idle upstream connection is retained.
	HTTPIdleConnTimeout = 90 * time.Second
	// HTTPDialTimeout bounds establishing a TCP connection to an upstream.
	HTTPDialTimeout = 10 * time.Second
	// HTTPTLSHandshakeTimeout bounds the TLS handshake with an upstream.
	HTTPTLSHandshakeTimeout = 10 * time.Second
)
