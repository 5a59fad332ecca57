package middleware

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hyp3rd/hyperfetch"
	"github.com/hyp3rd/hyperfetch/pkg/stats"
)

// OTelMetricsMiddleware emits OpenTelemetry metrics for service methods.
type OTelMetricsMiddleware struct {
	next  hyperfetch.Service
	meter metric.Meter

	// instruments
	calls     metric.Int64Counter
	durations metric.Float64Histogram
}

// NewOTelMetricsMiddleware constructs a metrics middleware using the provided meter.
func NewOTelMetricsMiddleware(next hyperfetch.Service, meter metric.Meter) (hyperfetch.Service, error) {
	calls, err := meter.Int64Counter("hyperfetch.calls")
	if err != nil {
		return nil, fmt.Errorf("create counter: %w", err)
	}

	durations, err := meter.Float64Histogram("hyperfetch.duration.ms")
	if err != nil {
		return nil, fmt.Errorf("create histogram: %w", err)
	}

	return &OTelMetricsMiddleware{next: next, meter: meter, calls: calls, durations: durations}, nil
}

// Fetch implements Service.Fetch with metrics. The duration covers time to
// headers, not body consumption, which the caller controls.
func (mw *OTelMetricsMiddleware) Fetch(ctx context.Context, url string, opts *hyperfetch.RequestOptions) (*hyperfetch.Response, error) {
	start := time.Now()
	resp, err := mw.next.Fetch(ctx, url, opts)

	source := ""
	if resp != nil {
		source = string(resp.Source)
	}

	mw.rec(ctx, "Fetch", start, attribute.String("source", source), attribute.Bool("error", err != nil))

	return resp, err
}

// FetchStream implements Service.FetchStream with metrics.
func (mw *OTelMetricsMiddleware) FetchStream(ctx context.Context, url string, opts *hyperfetch.RequestOptions) (io.ReadCloser, error) {
	start := time.Now()
	stream, err := mw.next.FetchStream(ctx, url, opts)
	mw.rec(ctx, "FetchStream", start, attribute.Bool("error", err != nil))

	return stream, err
}

// Stats returns counters.
func (mw *OTelMetricsMiddleware) Stats() stats.Stats { return mw.next.Stats() }

// Config returns the configuration snapshot.
func (mw *OTelMetricsMiddleware) Config() hyperfetch.Config { return mw.next.Config() }

// Purge implements Service.Purge with metrics.
func (mw *OTelMetricsMiddleware) Purge() {
	start := time.Now()
	mw.next.Purge()
	mw.rec(context.Background(), "Purge", start)
}

// Close stops the underlying service.
func (mw *OTelMetricsMiddleware) Close(ctx context.Context) error { return mw.next.Close(ctx) }

// rec records call count and duration with attributes.
func (mw *OTelMetricsMiddleware) rec(ctx context.Context, method string, start time.Time, attrs ...attribute.KeyValue) {
	base := []attribute.KeyValue{attribute.String("method", method)}
	if len(attrs) > 0 {
		base = append(base, attrs...)
	}

	mw.calls.Add(ctx, 1, metric.WithAttributes(base...))
	mw.durations.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(base...))
}
