package hyperfetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hyp3rd/hyperfetch/internal/telemetry/attrs"
	"github.com/hyp3rd/hyperfetch/pkg/cache"
	"github.com/hyp3rd/hyperfetch/pkg/stats"
)

// bufferingStrategy accumulates a response fully in memory, promoting to
// streaming mid-flight when the body outgrows its thresholds.
type bufferingStrategy struct {
	strategies *cacheStrategies
	streaming  *streamingStrategy
	pool       *WorkerPool
	logger     *zap.Logger
	collector  stats.ICollector
	// lifetime scopes the background cache write.
	lifetime context.Context
}

// handle consumes src until completion or promotion.
//
// Promotion triggers: a body with no declared content length passing the
// detect buffer, or any body passing the hard in-memory cap. Bytes already
// consumed are handed to the streaming path so nothing is lost or
// re-fetched. On promotion the returned value is nil and the Response
// streams.
//
// On completion the permit is released, the memory tier is warmed, the
// distributed write is scheduled in the background, and the completed value
// is returned for in-flight settlement. A read error releases the permit and
// propagates with no cache write.
func (bs *bufferingStrategy) handle(
	key string,
	src io.ReadCloser,
	header http.Header,
	statusCode int,
	contentLength int64,
	release func(),
	span trace.Span,
) (*Response, *cache.Value, error) {
	cfg := bs.strategies.config()
	buf := make([]byte, relayChunkSize)

	var (
		chunks [][]byte
		total  int
	)

	for {
		n, err := src.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			chunks = append(chunks, chunk)
			total += n

			promote := total > cfg.StreamBufferMax ||
				(contentLength < 0 && total > cfg.StreamDetectBuffer)
			if promote {
				bs.collector.IncrementPromotions()
				span.SetAttributes(attribute.Bool(attrs.AttrPromoted, true))
				bs.logger.Debug("buffered response promoted to streaming",
					zap.String(attrs.AttrKeyHash, keyFingerprint(key)),
					zap.Int("buffered_bytes", total))

				return bs.streaming.handle(key, src, header, statusCode, chunks, release, span), nil, nil
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			release()
			src.Close()

			return nil, nil, ewrap.Wrap(err, "read response body")
		}
	}

	release()
	src.Close()

	value := &cache.Value{
		Body:       bytes.Join(chunks, nil),
		Headers:    cache.FlattenHeader(header),
		StatusCode: statusCode,
	}

	bs.strategies.memory.Set(key, value)

	if bs.strategies.remote != nil {
		job := func() error {
			return bs.strategies.storeBuffered(bs.lifetime, key, value)
		}
		if !bs.pool.TryEnqueue(job) {
			bs.logger.Warn("worker pool saturated, skipping buffered cache write",
				zap.String(attrs.AttrKeyHash, keyFingerprint(key)))
		}
	}

	span.SetAttributes(attribute.Int(attrs.AttrBodyBytes, total))

	return newValueResponse(value, SourceNetwork), value, nil
}
