package hyperfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyp3rd/hyperfetch/internal/sentinel"
	"github.com/hyp3rd/hyperfetch/pkg/backend"
	"github.com/hyp3rd/hyperfetch/pkg/cache"
)

func newTestFetcher(t *testing.T, options ...Option) *Fetcher {
	t.Helper()

	fetcher, err := New(context.Background(), options...)
	require.NoError(t, err)

	t.Cleanup(func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = fetcher.Close(closeCtx)
	})

	return fetcher
}

func newRemoteHarness(t *testing.T) (*backend.Redis, *redis.Client) {
	t.Helper()

	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})

	t.Cleanup(func() { client.Close() })

	remote, err := backend.NewRedis(backend.WithClient(client))
	require.NoError(t, err)

	return remote, client
}

func TestFetcher_TwoQuickGetsShareOneOriginCall(t *testing.T) {
	var hits atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"n":1}`)
	}))
	defer server.Close()

	fetcher := newTestFetcher(t)
	ctx := context.Background()

	first, err := fetcher.Fetch(ctx, server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, SourceNetwork, first.Source)
	assert.Equal(t, []byte(`{"n":1}`), readAll(t, first.Body))

	second, err := fetcher.Fetch(ctx, server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, SourceMemory, second.Source)
	assert.Equal(t, []byte(`{"n":1}`), readAll(t, second.Body))
	assert.Equal(t, "application/json", second.Header.Get("Content-Type"))

	assert.EqualValues(t, 1, hits.Load(), "the second call must never reach the origin")
}

func TestFetcher_ConcurrentGetsCoalesce(t *testing.T) {
	var hits atomic.Int64

	gate := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		<-gate
		fmt.Fprint(w, "shared")
	}))
	defer server.Close()

	fetcher := newTestFetcher(t)
	ctx := context.Background()

	const callers = 8

	responses := make([]*Response, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup

	for i := range callers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			responses[i], errs[i] = fetcher.Fetch(ctx, server.URL, nil)
		}()
	}

	// Hold the origin until every follower has attached to the leader's
	// flight, then let the single response settle all of them.
	waitCond(t, func() bool {
		return fetcher.Stats().InflightHits == callers-1
	}, "followers never attached to the in-flight fetch")
	close(gate)
	wg.Wait()

	networks := 0
	inflights := 0

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, []byte("shared"), readAll(t, responses[i].Body))

		switch responses[i].Source {
		case SourceNetwork:
			networks++
		case SourceInflight:
			inflights++
		default:
			t.Fatalf("unexpected source %q", responses[i].Source)
		}
	}

	assert.Equal(t, 1, networks)
	assert.Equal(t, callers-1, inflights)
	assert.EqualValues(t, 1, hits.Load(), "concurrent identical GETs must collapse to one origin call")

	snapshot := fetcher.Stats()
	assert.EqualValues(t, 1, snapshot.Misses)
	assert.EqualValues(t, 1, snapshot.NetworkFetches)
	assert.Equal(t, 0, fetcher.InflightLen())
}

// countingRemote counts distributed-tier reads so tests can assert a tier was
// never consulted.
type countingRemote struct {
	backend.Remote
	reads atomic.Int64
}

func (c *countingRemote) Get(ctx context.Context, key string) (string, error) {
	c.reads.Add(1)

	return c.Remote.Get(ctx, key)
}

func (c *countingRemote) LLen(ctx context.Context, key string) (int64, error) {
	c.reads.Add(1)

	return c.Remote.LLen(ctx, key)
}

func TestFetcher_RemoteHitWarmsMemory(t *testing.T) {
	var hits atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, "payload")
	}))
	defer server.Close()

	remote, client := newRemoteHarness(t)
	ctx := context.Background()

	writer := newTestFetcher(t, WithRemote(remote))

	resp, err := writer.Fetch(ctx, server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), readAll(t, resp.Body))

	key := cache.Key(http.MethodGet, server.URL)
	waitCond(t, func() bool {
		return client.TTL(ctx, key).Val() > 0
	}, "buffered form never reached the distributed tier")

	// A second instance shares only the distributed tier.
	counting := &countingRemote{Remote: remote}
	reader := newTestFetcher(t, WithRemote(counting))

	first, err := reader.Fetch(ctx, server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, first.Source)
	assert.Equal(t, []byte("payload"), readAll(t, first.Body))
	assert.Equal(t, 1, reader.MemoryLen(), "a distributed hit must warm the memory tier")

	readsAfterFirst := counting.reads.Load()

	second, err := reader.Fetch(ctx, server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, SourceMemory, second.Source)
	assert.Equal(t, []byte("payload"), readAll(t, second.Body))
	assert.Equal(t, readsAfterFirst, counting.reads.Load(),
		"the warmed call must not touch the distributed tier")

	assert.EqualValues(t, 1, hits.Load())
}

func TestFetcher_StreamReplayServedFromRemote(t *testing.T) {
	var hits atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: alpha\n\ndata: beta\n\n")
	}))
	defer server.Close()

	remote, client := newRemoteHarness(t)
	ctx := context.Background()

	streamer := newTestFetcher(t, WithRemote(remote))

	live, err := streamer.Fetch(ctx, server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, SourceNetwork, live.Source)
	assert.Equal(t, []byte("data: alpha\n\ndata: beta\n\n"), readAll(t, live.Body))

	key := cache.Key(http.MethodGet, server.URL)
	waitCond(t, func() bool {
		return client.TTL(ctx, cache.StreamKey(key)).Val() > 0
	}, "stream mirror never finalized")

	replayer := newTestFetcher(t, WithRemote(remote))

	replay, err := replayer.Fetch(ctx, server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, SourceRemoteStream, replay.Source)
	assert.Equal(t, "text/event-stream", replay.Header.Get("Content-Type"))
	assert.Equal(t, []byte("data: alpha\n\ndata: beta\n\n"), readAll(t, replay.Body),
		"the replay must match the live stream byte for byte")

	assert.EqualValues(t, 1, hits.Load())
	assert.EqualValues(t, 1, replayer.Stats().RemoteStreamHits)
}

func TestFetcher_StreamingLeaderFollowerFetchesPrivately(t *testing.T) {
	var hits atomic.Int64

	flushGate := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")

		if hits.Add(1) == 1 {
			<-flushGate
			w.WriteHeader(http.StatusOK)
			w.(http.Flusher).Flush()
			fmt.Fprint(w, "data: one\n\n")

			return
		}

		fmt.Fprint(w, "data: two\n\n")
	}))
	defer server.Close()

	fetcher := newTestFetcher(t)
	ctx := context.Background()

	var (
		wg                       sync.WaitGroup
		leaderResp, followerResp *Response
		leaderErr, followerErr   error
	)

	wg.Add(1)

	go func() {
		defer wg.Done()

		leaderResp, leaderErr = fetcher.Fetch(ctx, server.URL, nil)
	}()

	waitCond(t, func() bool { return hits.Load() == 1 }, "leader never reached the origin")

	wg.Add(1)

	go func() {
		defer wg.Done()

		followerResp, followerErr = fetcher.Fetch(ctx, server.URL, nil)
	}()

	// Release the leader's headers only after the follower is attached, so
	// the follower observes the streamed settlement, not an empty registry.
	waitCond(t, func() bool { return fetcher.Stats().InflightHits == 1 }, "follower never attached")
	close(flushGate)
	wg.Wait()

	require.NoError(t, leaderErr)
	require.NoError(t, followerErr)
	assert.Equal(t, []byte("data: one\n\n"), readAll(t, leaderResp.Body))
	assert.Equal(t, []byte("data: two\n\n"), readAll(t, followerResp.Body),
		"a follower of a streamed response must fetch privately")

	assert.EqualValues(t, 2, hits.Load())

	snapshot := fetcher.Stats()
	assert.EqualValues(t, 1, snapshot.Misses)
	assert.EqualValues(t, 2, snapshot.NetworkFetches)
	assert.Equal(t, 0, fetcher.InflightLen())
}

func TestFetcher_SemaphoreResizesFromConfigSource(t *testing.T) {
	var concurrency atomic.Int64

	concurrency.Store(4)

	source := SourceFunc(func(_ context.Context) (Config, error) {
		cfg := DefaultConfig()
		cfg.Concurrency = int(concurrency.Load())

		return cfg, nil
	})

	slowGate := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-slowGate
		fmt.Fprint(w, "slow")
	}))
	defer slow.Close()

	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "fast")
	}))
	defer fast.Close()

	fetcher := newTestFetcher(t, WithConfigSource(source), WithConfigMaxAge(time.Nanosecond))
	require.Equal(t, 4, fetcher.sem.Capacity())

	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		slowResp *Response
		slowErr  error
	)

	wg.Add(1)

	go func() {
		defer wg.Done()

		slowResp, slowErr = fetcher.Fetch(ctx, slow.URL, nil)
	}()

	waitCond(t, func() bool { return fetcher.sem.InUse() == 1 }, "slow fetch never took a permit")

	concurrency.Store(8)

	// The first call notices the stale snapshot and refreshes in the
	// background; the next call applies the new concurrency.
	resp, err := fetcher.Fetch(ctx, fast.URL, nil)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	waitCond(t, func() bool { return fetcher.Config().Concurrency == 8 }, "config refresh never landed")

	resp, err = fetcher.Fetch(ctx, fast.URL, nil)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, 8, fetcher.sem.Capacity())

	// The fetch that was running through the resize completes untouched.
	close(slowGate)
	wg.Wait()
	require.NoError(t, slowErr)
	assert.Equal(t, []byte("slow"), readAll(t, slowResp.Body))
}

func TestFetcher_NonGetSkipsCacheAndDedupe(t *testing.T) {
	var hits atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)

		body, _ := io.ReadAll(r.Body)
		fmt.Fprintf(w, "%s:%s", r.Method, body)
	}))
	defer server.Close()

	fetcher := newTestFetcher(t)
	ctx := context.Background()

	for range 2 {
		resp, err := fetcher.Fetch(ctx, server.URL, &RequestOptions{
			Method: http.MethodPost,
			Body:   strings.NewReader("hello"),
		})
		require.NoError(t, err)
		assert.Equal(t, SourceNetwork, resp.Source)
		assert.Equal(t, []byte("POST:hello"), readAll(t, resp.Body))
	}

	assert.EqualValues(t, 2, hits.Load(), "non-GET requests are never cached or deduplicated")
	assert.Equal(t, 0, fetcher.MemoryLen())
	assert.EqualValues(t, 2, fetcher.Stats().NonGets)

	// A GET afterwards still needs its own origin call.
	resp, err := fetcher.Fetch(ctx, server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("GET:"), readAll(t, resp.Body))
	assert.EqualValues(t, 3, hits.Load())
}

func TestFetcher_PassthroughWhenNotEnhanced(t *testing.T) {
	var hits atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, "direct")
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, WithConfig(Config{Enhanced: false}))
	ctx := context.Background()

	for range 2 {
		resp, err := fetcher.Fetch(ctx, server.URL, nil)
		require.NoError(t, err)
		assert.Equal(t, SourcePassthrough, resp.Source)
		assert.Equal(t, []byte("direct"), readAll(t, resp.Body))
	}

	assert.EqualValues(t, 2, hits.Load(), "a disabled fetch path delegates every call")
	assert.Equal(t, 0, fetcher.MemoryLen())
	assert.EqualValues(t, 2, fetcher.Stats().Passthroughs)
}

func TestFetcher_NetworkErrorReleasesEverything(t *testing.T) {
	fetcher := newTestFetcher(t)
	ctx := context.Background()

	_, err := fetcher.Fetch(ctx, "http://127.0.0.1:1/unreachable", nil)
	require.Error(t, err)

	assert.Equal(t, 0, fetcher.sem.InUse(), "a failed fetch must return its permit")
	assert.Equal(t, 0, fetcher.InflightLen(), "a failed fetch must settle its flight")

	// The fetcher keeps working after the failure.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "recovered")
	}))
	defer server.Close()

	resp, fetchErr := fetcher.Fetch(ctx, server.URL, nil)
	require.NoError(t, fetchErr)
	assert.Equal(t, []byte("recovered"), readAll(t, resp.Body))
}

func TestFetcher_RequestHeadersForwarded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Got", r.Header.Get("X-Want"))
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	fetcher := newTestFetcher(t)

	resp, err := fetcher.Fetch(context.Background(), server.URL, &RequestOptions{
		Header: http.Header{"X-Want": {"forwarded"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "forwarded", resp.Header.Get("X-Got"))
	require.NoError(t, resp.Body.Close())
}

func TestFetcher_FetchStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "raw bytes")
	}))
	defer server.Close()

	fetcher := newTestFetcher(t)
	ctx := context.Background()

	stream, err := fetcher.FetchStream(ctx, server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("raw bytes"), readAll(t, stream))

	// The stream path shares the read tiers with Fetch.
	stream, err = fetcher.FetchStream(ctx, server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("raw bytes"), readAll(t, stream))
	assert.EqualValues(t, 1, fetcher.Stats().MemoryHits)
}

func TestFetcher_EmptyURLRejected(t *testing.T) {
	fetcher := newTestFetcher(t)

	_, err := fetcher.Fetch(context.Background(), "", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrInvalidURL)
}

func TestFetcher_CloseRejectsFurtherFetches(t *testing.T) {
	fetcher := newTestFetcher(t)

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, fetcher.Close(closeCtx))
	require.NoError(t, fetcher.Close(closeCtx), "closing twice is a no-op")

	_, err := fetcher.Fetch(context.Background(), "http://example.com", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrFetcherClosed)
}

func TestFetcher_PurgeDropsMemoryTier(t *testing.T) {
	var hits atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, "cached")
	}))
	defer server.Close()

	fetcher := newTestFetcher(t)
	ctx := context.Background()

	resp, err := fetcher.Fetch(ctx, server.URL, nil)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, 1, fetcher.MemoryLen())

	fetcher.Purge()
	assert.Equal(t, 0, fetcher.MemoryLen())

	resp, err = fetcher.Fetch(ctx, server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, SourceNetwork, resp.Source)
	require.NoError(t, resp.Body.Close())
	assert.EqualValues(t, 2, hits.Load())
}
