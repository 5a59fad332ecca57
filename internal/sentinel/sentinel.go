// Package sentinel provides standardized error definitions for the hyperfetch system.
// This package centralizes all error types used across the hyperfetch components,
// ensuring consistent error handling and messaging throughout the library.
//
// The errors defined here cover various scenarios including:
// - Invalid configuration parameters (capacity, concurrency, buffer budgets)
// - Cache tier outcomes (miss, malformed stored payload)
// - Component initialization errors (nil clients, missing serializers)
// - Runtime operation errors (closed fetcher, timeouts, shutdown deadlines)
//
// All errors are created using the ewrap package to provide enhanced error
// wrapping and context capabilities.
package sentinel

import (
	"github.com/hyp3rd/ewrap"
)

var (
	// ErrInvalidKey is returned when an invalid cache key is derived from a request.
	// An invalid key is a key that is either empty or consists only of whitespace characters.
	ErrInvalidKey = ewrap.New("invalid key")

	// ErrInvalidURL is returned when a request URL is empty or unparsable.
	ErrInvalidURL = ewrap.New("invalid url")

	// ErrCacheMiss is returned by cache tiers when a key holds no value.
	ErrCacheMiss = ewrap.New("cache miss")

	// ErrMalformedPayload is returned when a stored cache payload cannot be decoded.
	ErrMalformedPayload = ewrap.New("malformed cache payload")

	// ErrNilClient is returned when a nil distributed cache client is supplied.
	ErrNilClient = ewrap.New("nil client")

	// ErrNilTransport is returned when a nil HTTP transport is supplied.
	ErrNilTransport = ewrap.New("nil transport")

	// ErrInvalidCapacity is returned when an invalid capacity is passed to the memory cache.
	ErrInvalidCapacity = ewrap.New("capacity cannot be negative")

	// ErrInvalidConcurrency is returned when a semaphore capacity below one is requested.
	ErrInvalidConcurrency = ewrap.New("concurrency must be positive")

	// ErrFetcherClosed is returned when a fetch is attempted after Close.
	ErrFetcherClosed = ewrap.New("fetcher is closed")

	// ErrResponseStreamed is the settlement outcome of an in-flight entry whose
	// network response routed to streaming mode and therefore produced no
	// shareable buffered value.
	ErrResponseStreamed = ewrap.New("in-flight response routed to streaming")

	// ErrStreamMetaMissing is returned when a stream-form list exists without
	// its metadata companion key.
	ErrStreamMetaMissing = ewrap.New("stream metadata missing")

	// ErrParamCannotBeEmpty is returned when a parameter cannot be empty.
	ErrParamCannotBeEmpty = ewrap.New("param cannot be empty")

	// ErrSerializerNotFound is returned when a serializer is not found.
	ErrSerializerNotFound = ewrap.New("serializer not found")

	// ErrTimeoutOrCanceled is returned when a timeout or cancellation occurs.
	ErrTimeoutOrCanceled = ewrap.New("the operation timed out or was canceled")

	// ErrPoolClosed is returned when a job is enqueued on a worker pool that was shut down.
	ErrPoolClosed = ewrap.New("worker pool is closed")

	// ErrMgmtHTTPShutdownTimeout is returned when the management HTTP server fails to shutdown before context deadline.
	ErrMgmtHTTPShutdownTimeout = ewrap.New("management http shutdown timeout")
)
