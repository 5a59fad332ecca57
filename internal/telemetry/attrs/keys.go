// Package attrs provides reusable OpenTelemetry attribute key constants
// to avoid duplication across the fetch path and middlewares.
// These constants provide standardized key names for metrics, traces, and
// logs to ensure consistent telemetry data collection.
package attrs

const (
	// AttrKeyHash carries the xxhash64 hex fingerprint of the cache key.
	// The raw key embeds the request URL and is never exported as telemetry.
	AttrKeyHash = "key.hash"
	// AttrMethod carries the normalized HTTP request method.
	AttrMethod = "http.method"
	// AttrMemoryHit marks whether the in-process LRU tier satisfied the lookup.
	AttrMemoryHit = "cache.memory.hit"
	// AttrRemoteHit marks whether the distributed tier satisfied the lookup
	// in buffered form.
	AttrRemoteHit = "cache.remote.hit"
	// AttrRemoteStreamHit marks whether the distributed tier satisfied the
	// lookup by stream-form replay.
	AttrRemoteStreamHit = "cache.remote.stream_hit"
	// AttrInflightHit marks whether the caller attached to an in-flight fetch.
	AttrInflightHit = "fetch.inflight.hit"
	// AttrStreaming marks whether the response routed to streaming mode.
	AttrStreaming = "fetch.streaming"
	// AttrPromoted marks a buffered response that was promoted to streaming
	// mid-accumulation.
	AttrPromoted = "fetch.promoted"
	// AttrStatusCode carries the upstream HTTP status code.
	AttrStatusCode = "http.status_code"
	// AttrBodyBytes carries the size of a fully buffered response body.
	AttrBodyBytes = "http.body.bytes"
	// AttrMirrorChunks carries the number of chunks handed to the stream mirror.
	AttrMirrorChunks = "mirror.chunks"
	// AttrSemaphoreWaitMS carries the time spent queued for a permit, in milliseconds.
	AttrSemaphoreWaitMS = "semaphore.wait.ms"
)
