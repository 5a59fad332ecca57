package hyperfetch

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"strconv"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hyp3rd/hyperfetch/internal/libs/serializer"
	"github.com/hyp3rd/hyperfetch/internal/sentinel"
	"github.com/hyp3rd/hyperfetch/internal/telemetry/attrs"
	"github.com/hyp3rd/hyperfetch/pkg/backend"
	"github.com/hyp3rd/hyperfetch/pkg/cache"
	"github.com/hyp3rd/hyperfetch/pkg/stats"
)

// memoryCache is the in-process tier capability the strategies consume.
type memoryCache interface {
	Get(key string) (*cache.Value, bool)
	Set(key string, value *cache.Value)
	Purge()
	Len() int
	Capacity() int
}

// storedResponse is the buffered wire form kept under the plain cache key.
type storedResponse struct {
	BodyBase64 string            `json:"bodyBase64"`
	Headers    map[string]string `json:"headers"`
	StatusCode int               `json:"statusCode"`
}

// streamMeta is the stream wire form's metadata, kept beside the chunk list.
type streamMeta struct {
	Headers    map[string]string `json:"headers"`
	StatusCode int               `json:"statusCode"`
}

// cacheStrategies implements the tiered read path and the two background
// write paths. Remote failures never surface to callers: every remote error
// is logged and degraded to a miss.
type cacheStrategies struct {
	memory     memoryCache
	remote     backend.Remote
	serializer serializer.ISerializer
	logger     *zap.Logger
	collector  stats.ICollector
	config     func() Config
}

// keyFingerprint returns a short stable digest safe to log and trace. Raw
// keys embed full URLs and never appear in telemetry.
func keyFingerprint(key string) string {
	return strconv.FormatUint(xxhash.Sum64String(key), 16)
}

// tryMemory serves a hit from the in-process tier.
func (cs *cacheStrategies) tryMemory(key string, span trace.Span) (*Response, bool) {
	value, ok := cs.memory.Get(key)
	span.SetAttributes(attribute.Bool(attrs.AttrMemoryHit, ok))

	if !ok {
		return nil, false
	}

	cs.collector.IncrementMemoryHits()

	return newValueResponse(value, SourceMemory), true
}

// tryRemote serves a hit from the distributed tier. The buffered form is
// preferred; when only the stream form exists the stored chunks are replayed
// through a pipe so the caller starts reading immediately.
func (cs *cacheStrategies) tryRemote(ctx context.Context, key string, span trace.Span) (*Response, bool) {
	if cs.remote == nil {
		span.SetAttributes(attribute.Bool(attrs.AttrRemoteHit, false))

		return nil, false
	}

	payload, err := cs.remote.Get(ctx, key)

	switch {
	case err == nil:
		resp, ok := cs.decodeBuffered(key, payload)
		span.SetAttributes(attribute.Bool(attrs.AttrRemoteHit, ok))

		return resp, ok
	case !errors.Is(err, sentinel.ErrCacheMiss):
		cs.logger.Warn("remote cache read failed, treating as miss",
			zap.String(attrs.AttrKeyHash, keyFingerprint(key)),
			zap.Error(err))
		span.SetAttributes(attribute.Bool(attrs.AttrRemoteHit, false))

		return nil, false
	}

	span.SetAttributes(attribute.Bool(attrs.AttrRemoteHit, false))

	resp, ok := cs.replayStream(ctx, key)
	span.SetAttributes(attribute.Bool(attrs.AttrRemoteStreamHit, ok))

	return resp, ok
}

// decodeBuffered turns the stored buffered form back into a Response and
// warms the memory tier with it. Malformed payloads degrade to a miss.
func (cs *cacheStrategies) decodeBuffered(key, payload string) (*Response, bool) {
	var stored storedResponse

	err := cs.serializer.Unmarshal([]byte(payload), &stored)
	if err != nil {
		cs.logger.Warn("malformed buffered cache payload, treating as miss",
			zap.String(attrs.AttrKeyHash, keyFingerprint(key)),
			zap.Error(err))

		return nil, false
	}

	body, err := base64.StdEncoding.DecodeString(stored.BodyBase64)
	if err != nil {
		cs.logger.Warn("malformed buffered cache body, treating as miss",
			zap.String(attrs.AttrKeyHash, keyFingerprint(key)),
			zap.Error(err))

		return nil, false
	}

	value := &cache.Value{
		Body:       body,
		Headers:    stored.Headers,
		StatusCode: stored.StatusCode,
	}

	cs.memory.Set(key, value)
	cs.collector.IncrementRemoteHits()

	return newValueResponse(value, SourceRemote), true
}

// replayStream serves the stream form. Chunks are stored head-first, so the
// list is decoded in reverse before the pipe writer streams it out in
// original order. Decoding happens up front so a malformed list can still be
// reported as a clean miss.
func (cs *cacheStrategies) replayStream(ctx context.Context, key string) (*Response, bool) {
	streamKey := cache.StreamKey(key)

	length, err := cs.remote.LLen(ctx, streamKey)
	if err != nil {
		cs.logger.Warn("stream length probe failed, treating as miss",
			zap.String(attrs.AttrKeyHash, keyFingerprint(key)),
			zap.Error(err))

		return nil, false
	}

	if length == 0 {
		return nil, false
	}

	metaPayload, err := cs.remote.Get(ctx, cache.StreamMetaKey(key))
	if err != nil {
		if errors.Is(err, sentinel.ErrCacheMiss) {
			err = ewrap.Wrap(sentinel.ErrStreamMetaMissing, "replay stream")
		}

		cs.logger.Warn("stream metadata unavailable, treating as miss",
			zap.String(attrs.AttrKeyHash, keyFingerprint(key)),
			zap.Error(err))

		return nil, false
	}

	var meta streamMeta

	err = cs.serializer.Unmarshal([]byte(metaPayload), &meta)
	if err != nil {
		cs.logger.Warn("malformed stream metadata, treating as miss",
			zap.String(attrs.AttrKeyHash, keyFingerprint(key)),
			zap.Error(err))

		return nil, false
	}

	raw, err := cs.remote.LRange(ctx, streamKey, 0, -1)
	if err != nil {
		cs.logger.Warn("stream chunk read failed, treating as miss",
			zap.String(attrs.AttrKeyHash, keyFingerprint(key)),
			zap.Error(err))

		return nil, false
	}

	ordered := make([][]byte, len(raw))

	for i, encoded := range raw {
		chunk, decodeErr := base64.StdEncoding.DecodeString(encoded)
		if decodeErr != nil {
			cs.logger.Warn("malformed stream chunk, treating as miss",
				zap.String(attrs.AttrKeyHash, keyFingerprint(key)),
				zap.Error(decodeErr))

			return nil, false
		}

		ordered[len(raw)-1-i] = chunk
	}

	reader, writer := io.Pipe()

	go func() {
		for _, chunk := range ordered {
			_, writeErr := writer.Write(chunk)
			if writeErr != nil {
				// Reader gone; nothing left to deliver.
				return
			}
		}

		writer.Close()
	}()

	value := &cache.Value{Headers: meta.Headers, StatusCode: meta.StatusCode}
	cs.collector.IncrementRemoteStreamHits()

	return &Response{
		StatusCode: meta.StatusCode,
		Header:     value.HTTPHeader(),
		Body:       reader,
		Source:     SourceRemoteStream,
	}, true
}

// storeBuffered writes the buffered form with the TTL from the current
// config. It runs on the worker pool; a returned error is logged by the pool
// drain, never surfaced to a caller.
func (cs *cacheStrategies) storeBuffered(ctx context.Context, key string, value *cache.Value) error {
	if cs.remote == nil {
		return nil
	}

	stored := storedResponse{
		BodyBase64: base64.StdEncoding.EncodeToString(value.Body),
		Headers:    value.Headers,
		StatusCode: value.StatusCode,
	}

	payload, err := cs.serializer.Marshal(stored)
	if err != nil {
		return ewrap.Wrap(err, "encode buffered form")
	}

	err = cs.remote.SetEx(ctx, key, cs.config().CacheTTL, string(payload))
	if err != nil {
		return ewrap.Wrap(err, "store buffered form")
	}

	return nil
}

// mirrorStream writes the stream form: clears stale data, stores metadata,
// then pushes the pre-buffered chunks followed by the live remainder until
// the chunk or byte budget runs out. TTLs go on both keys only once pushes
// finish or the budget truncates, so a half-written stream is never served.
//
// relayFailed reports whether the relay closed the chunk channel because the
// source errored; in that case the partial copy is discarded instead of
// finalized.
func (cs *cacheStrategies) mirrorStream(
	ctx context.Context,
	key string,
	chunks <-chan []byte,
	headers map[string]string,
	statusCode int,
	pre [][]byte,
	relayFailed *atomic.Bool,
) error {
	cfg := cs.config()
	streamKey := cache.StreamKey(key)
	metaKey := cache.StreamMetaKey(key)
	fingerprint := keyFingerprint(key)

	err := cs.remote.Del(ctx, streamKey, metaKey)
	if err != nil {
		cs.collector.IncrementMirrorsAborted()

		return ewrap.Wrap(err, "clear stale stream form")
	}

	metaPayload, err := cs.serializer.Marshal(streamMeta{Headers: headers, StatusCode: statusCode})
	if err != nil {
		cs.collector.IncrementMirrorsAborted()

		return ewrap.Wrap(err, "encode stream metadata")
	}

	err = cs.remote.Set(ctx, metaKey, string(metaPayload))
	if err != nil {
		cs.collector.IncrementMirrorsAborted()

		return ewrap.Wrap(err, "store stream metadata")
	}

	pushed := 0
	total := int64(0)
	truncated := false

	push := func(chunk []byte) error {
		pushErr := cs.remote.LPush(ctx, streamKey, base64.StdEncoding.EncodeToString(chunk))
		if pushErr != nil {
			return pushErr
		}

		pushed++
		total += int64(len(chunk))

		return nil
	}

	abort := func(pushErr error) error {
		// Best-effort cleanup; a stream form without TTL must not linger.
		_ = cs.remote.Del(ctx, streamKey, metaKey)
		cs.collector.IncrementMirrorsAborted()

		return ewrap.Wrap(pushErr, "push stream chunk")
	}

	for _, chunk := range pre {
		if pushed >= cfg.StreamMaxChunks || total >= cfg.StreamMaxTotalBytes {
			truncated = true

			break
		}

		err = push(chunk)
		if err != nil {
			return abort(err)
		}
	}

	if !truncated {
		for chunk := range chunks {
			if pushed >= cfg.StreamMaxChunks || total >= cfg.StreamMaxTotalBytes {
				truncated = true

				break
			}

			err = push(chunk)
			if err != nil {
				return abort(err)
			}
		}
	}

	if !truncated && relayFailed.Load() {
		// The source died mid-stream; the network error already travelled to
		// the caller, so just drop the incomplete copy.
		_ = cs.remote.Del(ctx, streamKey, metaKey)
		cs.collector.IncrementMirrorsAborted()
		cs.logger.Debug("stream source failed before mirror completion, partial copy discarded",
			zap.String(attrs.AttrKeyHash, fingerprint))

		return nil
	}

	err = cs.remote.Expire(ctx, streamKey, cfg.CacheTTL)
	if err != nil {
		return abort(err)
	}

	err = cs.remote.Expire(ctx, metaKey, cfg.CacheTTL)
	if err != nil {
		return abort(err)
	}

	cs.logger.Debug("stream mirror complete",
		zap.String(attrs.AttrKeyHash, fingerprint),
		zap.Int(attrs.AttrMirrorChunks, pushed),
		zap.Bool("truncated", truncated))

	return nil
}
