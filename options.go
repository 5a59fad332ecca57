package hyperfetch

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hyp3rd/hyperfetch/pkg/backend"
	"github.com/hyp3rd/hyperfetch/pkg/stats"
)

// Option is a function type that can be used to configure the `Fetcher` struct.
type Option func(*Fetcher)

// ApplyOptions applies the given options to the given fetcher.
func ApplyOptions(fetcher *Fetcher, options ...Option) {
	for _, option := range options {
		option(fetcher)
	}
}

// WithLogger sets the structured logger. The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(fetcher *Fetcher) {
		if logger != nil {
			fetcher.logger = logger
		}
	}
}

// WithTracer sets the tracer used to annotate each fetch.
func WithTracer(tracer trace.Tracer) Option {
	return func(fetcher *Fetcher) {
		if tracer != nil {
			fetcher.tracer = tracer
		}
	}
}

// WithTransport sets the HTTP transport used for origin calls.
// `*http.Client` satisfies the Transport interface.
func WithTransport(transport Transport) Option {
	return func(fetcher *Fetcher) {
		if transport != nil {
			fetcher.transport = transport
		}
	}
}

// WithHTTPClient is a convenience form of WithTransport.
func WithHTTPClient(client *http.Client) Option {
	return func(fetcher *Fetcher) {
		if client != nil {
			fetcher.transport = client
		}
	}
}

// WithRemote sets the distributed cache tier. Without it the fetcher runs on
// the in-process tier and in-flight coalescing alone.
func WithRemote(remote backend.Remote) Option {
	return func(fetcher *Fetcher) {
		fetcher.remote = remote
	}
}

// WithMemoryCapacity bounds the in-process tier's entry count. Zero disables
// the tier.
func WithMemoryCapacity(capacity int) Option {
	return func(fetcher *Fetcher) {
		fetcher.memoryCapacity = capacity
	}
}

// WithConfigSource sets the live configuration source. It is loaded once
// synchronously at construction and refreshed lazily in the background
// afterwards.
func WithConfigSource(source Source) Option {
	return func(fetcher *Fetcher) {
		fetcher.source = source
	}
}

// WithConfigMaxAge sets how long a configuration snapshot is trusted before
// a fetch triggers a background refresh.
func WithConfigMaxAge(maxAge time.Duration) Option {
	return func(fetcher *Fetcher) {
		fetcher.configMaxAge = maxAge
	}
}

// WithConfig sets a static initial configuration. A Source, when also set,
// replaces it as soon as the first refresh lands.
func WithConfig(cfg Config) Option {
	return func(fetcher *Fetcher) {
		fetcher.initial = &cfg
	}
}

// WithStatsCollector sets the stats collector used to count fetch outcomes.
func WithStatsCollector(collector stats.ICollector) Option {
	return func(fetcher *Fetcher) {
		if collector != nil {
			fetcher.collector = collector
		}
	}
}

// WithSerializerName selects the wire serializer for the distributed forms
// by registry name ("default", "msgpack", "cbor").
func WithSerializerName(name string) Option {
	return func(fetcher *Fetcher) {
		fetcher.serializerName = name
	}
}

// WithPoolWorkers sets the background worker count for cache writes and
// stream mirrors.
func WithPoolWorkers(workers int) Option {
	return func(fetcher *Fetcher) {
		if workers > 0 {
			fetcher.poolWorkers = workers
		}
	}
}
