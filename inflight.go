package hyperfetch

import (
	"context"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/hyperfetch/pkg/cache"
)

const flightShardCount = 32

// flight is a pending fetch other callers can attach to. The leader resolves
// it exactly once through settle.
type flight struct {
	done  chan struct{}
	value *cache.Value
	err   error
}

// wait blocks until the flight resolves or ctx is done.
func (f *flight) wait(ctx context.Context) (*cache.Value, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ewrap.Wrap(ctx.Err(), "await in-flight fetch")
	}
}

// flightGroup tracks at most one in-flight fetch per key. It is sharded so
// unrelated keys never contend on the same lock.
type flightGroup struct {
	shards [flightShardCount]flightShard
}

type flightShard struct {
	mu      sync.Mutex
	flights map[string]*flight
}

func newFlightGroup() *flightGroup {
	group := &flightGroup{}
	for i := range group.shards {
		group.shards[i].flights = make(map[string]*flight)
	}

	return group
}

func (g *flightGroup) shard(key string) *flightShard {
	return &g.shards[xxhash.Sum64String(key)%flightShardCount]
}

// lookup returns the pending flight for key, if any. It never creates one.
func (g *flightGroup) lookup(key string) (*flight, bool) {
	shard := g.shard(key)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	fl, ok := shard.flights[key]

	return fl, ok
}

// register returns the flight for key, creating it when absent. The second
// return is true when the caller created the flight and owns its settlement.
func (g *flightGroup) register(key string) (*flight, bool) {
	shard := g.shard(key)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	if fl, ok := shard.flights[key]; ok {
		return fl, false
	}

	fl := &flight{done: make(chan struct{})}
	shard.flights[key] = fl

	return fl, true
}

// settle resolves the flight for key and removes it so the next fetch starts
// fresh. Only the registering caller may settle, and only once.
func (g *flightGroup) settle(key string, value *cache.Value, err error) {
	shard := g.shard(key)

	shard.mu.Lock()
	fl, ok := shard.flights[key]
	delete(shard.flights, key)
	shard.mu.Unlock()

	if !ok {
		return
	}

	fl.value = value
	fl.err = err
	close(fl.done)
}

// len reports the number of pending flights across all shards.
func (g *flightGroup) len() int {
	total := 0

	for i := range g.shards {
		shard := &g.shards[i]

		shard.mu.Lock()
		total += len(shard.flights)
		shard.mu.Unlock()
	}

	return total
}
