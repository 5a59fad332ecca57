package hyperfetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hyp3rd/hyperfetch/internal/telemetry/attrs"
	"github.com/hyp3rd/hyperfetch/pkg/cache"
	"github.com/hyp3rd/hyperfetch/pkg/stats"
)

const relayChunkSize = 32 * 1024

// DetectStreamingResponse reports whether a response must be treated as an
// unbounded stream: an event-stream content type, or chunked transfer
// encoding with no declared content length. It is a pure function of the
// header values.
func DetectStreamingResponse(header http.Header) bool {
	contentType := strings.ToLower(header.Get("Content-Type"))
	if strings.Contains(contentType, "text/event-stream") {
		return true
	}

	transferEncoding := strings.ToLower(header.Get("Transfer-Encoding"))
	if !strings.Contains(transferEncoding, "chunked") {
		return false
	}

	return header.Get("Content-Length") == ""
}

// responseHeaderView rebuilds the wire-level header signals net/http lifts
// into struct fields, so detection sees what was actually on the wire.
func responseHeaderView(resp *http.Response) http.Header {
	header := resp.Header.Clone()
	if header == nil {
		header = http.Header{}
	}

	for _, encoding := range resp.TransferEncoding {
		header.Add("Transfer-Encoding", encoding)
	}

	if resp.ContentLength >= 0 && header.Get("Content-Length") == "" {
		header.Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}

	return header
}

// streamingStrategy relays a streamed body to the caller while mirroring a
// bounded prefix into the distributed tier in the background.
type streamingStrategy struct {
	strategies *cacheStrategies
	pool       *WorkerPool
	logger     *zap.Logger
	collector  stats.ICollector
	// lifetime scopes mirror jobs, which must outlive the request.
	lifetime context.Context
}

// prefixedBody replays already-buffered bytes before the live remainder.
type prefixedBody struct {
	io.Reader
	closer io.Closer
}

func (b *prefixedBody) Close() error {
	return b.closer.Close()
}

// handle returns a Response immediately; body bytes flow to the caller as
// the origin produces them. pre carries bytes already consumed before a
// promotion so the caller and the mirror both see the full payload. The
// semaphore permit is released up front: a stream may live for minutes and
// must not starve the pool.
func (ss *streamingStrategy) handle(
	key string,
	src io.ReadCloser,
	header http.Header,
	statusCode int,
	pre [][]byte,
	release func(),
	span trace.Span,
) *Response {
	release()
	span.SetAttributes(attribute.Bool(attrs.AttrStreaming, true))

	cfg := ss.strategies.config()
	fingerprint := keyFingerprint(key)
	relayFailed := &atomic.Bool{}

	// nil disables mirror feeding in the relay.
	var mirror chan []byte

	if ss.strategies.remote != nil {
		mirrorCh := make(chan []byte, cfg.StreamMaxChunks)
		flatHeader := cache.FlattenHeader(header)
		job := func() error {
			return ss.strategies.mirrorStream(ss.lifetime, key, mirrorCh, flatHeader, statusCode, pre, relayFailed)
		}

		if ss.pool.TryEnqueue(job) {
			mirror = mirrorCh

			ss.collector.IncrementMirrorsStarted()
		} else {
			ss.collector.IncrementMirrorsAborted()
			ss.logger.Warn("worker pool saturated, skipping stream mirror",
				zap.String(attrs.AttrKeyHash, fingerprint))
		}
	}

	reader, writer := io.Pipe()

	go ss.relay(src, writer, mirror, relayFailed, span, fingerprint)

	var body io.ReadCloser = reader

	if len(pre) > 0 {
		joined := bytes.Join(pre, nil)
		body = &prefixedBody{
			Reader: io.MultiReader(bytes.NewReader(joined), reader),
			closer: reader,
		}
	}

	return &Response{
		StatusCode: statusCode,
		Header:     header.Clone(),
		Body:       body,
		Source:     SourceNetwork,
	}
}

// relay pumps the source into the caller-facing pipe and offers each chunk
// to the mirror without ever blocking on it. A full mirror buffer stops the
// feed; the buffered backlog already covers the chunk budget, so the mirror
// still truncates and finalizes cleanly. A caller that abandons the body
// early does not stop the feed, so the cached copy can still complete.
func (ss *streamingStrategy) relay(
	src io.ReadCloser,
	writer *io.PipeWriter,
	mirror chan []byte,
	relayFailed *atomic.Bool,
	span trace.Span,
	fingerprint string,
) {
	defer src.Close()
	defer span.End()

	buf := make([]byte, relayChunkSize)
	feeding := mirror != nil
	callerGone := false

	for {
		n, err := src.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			if feeding {
				select {
				case mirror <- chunk:
				default:
					feeding = false

					ss.logger.Debug("mirror buffer full, stream mirror truncates at budget",
						zap.String(attrs.AttrKeyHash, fingerprint))
				}
			}

			if !callerGone {
				_, writeErr := writer.Write(chunk)
				if writeErr != nil {
					callerGone = true
				}
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				writer.Close()
			} else {
				relayFailed.Store(true)
				writer.CloseWithError(err)
			}

			if mirror != nil {
				close(mirror)
			}

			return
		}

		if callerGone && !feeding {
			// Nobody is consuming either branch anymore.
			if mirror != nil {
				close(mirror)
			}

			return
		}
	}
}
