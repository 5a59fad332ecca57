// Package middleware provides decorators for the hyperfetch service.
// This package includes logging middleware that wraps the fetch service to
// provide execution time logging and method call tracing for debugging and
// monitoring purposes, and a metrics middleware emitting OpenTelemetry
// instruments.
package middleware

import (
	"context"
	"io"
	"time"

	"github.com/hyp3rd/hyperfetch"
	"github.com/hyp3rd/hyperfetch/pkg/stats"
)

// Logger describes a logging interface allowing to implement different external, or custom logger.
// Tested with logrus, and Uber's Zap (high-performance), but should work with any other logger that matches the interface.
type Logger interface {
	Infof(format string, v ...any)
}

// LoggingMiddleware is a middleware that logs the time it takes to execute the next middleware.
// Must implement the hyperfetch.Service interface.
type LoggingMiddleware struct {
	next   hyperfetch.Service
	logger Logger
}

// NewLoggingMiddleware returns a new LoggingMiddleware.
func NewLoggingMiddleware(next hyperfetch.Service, logger Logger) hyperfetch.Service {
	return &LoggingMiddleware{next: next, logger: logger}
}

// Fetch logs the time it takes to execute the next middleware.
func (mw LoggingMiddleware) Fetch(ctx context.Context, url string, opts *hyperfetch.RequestOptions) (*hyperfetch.Response, error) {
	defer func(begin time.Time) {
		mw.logger.Infof("method Fetch took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Infof("Fetch method called with url: %s", url)

	resp, err := mw.next.Fetch(ctx, url, opts)
	if err == nil {
		mw.logger.Infof("Fetch resolved from source: %s status: %d", resp.Source, resp.StatusCode)
	}

	return resp, err
}

// FetchStream logs the time it takes to execute the next middleware.
func (mw LoggingMiddleware) FetchStream(ctx context.Context, url string, opts *hyperfetch.RequestOptions) (io.ReadCloser, error) {
	defer func(begin time.Time) {
		mw.logger.Infof("method FetchStream took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Infof("FetchStream method called with url: %s", url)

	return mw.next.FetchStream(ctx, url, opts)
}

// Stats logs the time it takes to execute the next middleware.
func (mw LoggingMiddleware) Stats() stats.Stats {
	defer func(begin time.Time) {
		mw.logger.Infof("method Stats took: %s", time.Since(begin))
	}(time.Now())

	return mw.next.Stats()
}

// Config returns the current configuration snapshot.
func (mw LoggingMiddleware) Config() hyperfetch.Config {
	return mw.next.Config()
}

// Purge logs the time it takes to execute the next middleware.
func (mw LoggingMiddleware) Purge() {
	defer func(begin time.Time) {
		mw.logger.Infof("method Purge took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Infof("Purge method invoked")
	mw.next.Purge()
}

// Close logs the time it takes to execute the next middleware.
func (mw LoggingMiddleware) Close(ctx context.Context) error {
	defer func(begin time.Time) {
		mw.logger.Infof("method Close took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Infof("Close method invoked")

	return mw.next.Close(ctx)
}
