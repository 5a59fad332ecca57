package hyperfetch

import (
	"context"
	"io"

	"github.com/hyp3rd/hyperfetch/pkg/stats"
)

// Service is the service interface for the Fetcher.
// It enables middleware to be added to the fetch surface.
type Service interface {
	// Fetch resolves url through the tiered read path
	Fetch(ctx context.Context, url string, opts *RequestOptions) (*Response, error)
	// FetchStream resolves url and returns the raw byte stream
	FetchStream(ctx context.Context, url string, opts *RequestOptions) (io.ReadCloser, error)
	// Stats returns a snapshot of the runtime counters
	Stats() stats.Stats
	// Config returns the last-good configuration snapshot
	Config() Config
	// Purge empties the in-process cache tier
	Purge()
	// Close drains background work and stops the fetcher
	Close(ctx context.Context) error
}

// Middleware describes a service middleware.
type Middleware func(Service) Service

// ApplyMiddleware applies middlewares to a service.
func ApplyMiddleware(svc Service, mw ...Middleware) Service {
	// Apply each middleware in the chain
	for _, m := range mw {
		svc = m(svc)
	}
	// Return the decorated service
	return svc
}
