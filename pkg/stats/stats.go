// Package stats collects fetch-layer statistics: per-tier hit counters,
// network activity, stream promotions, and mirror outcomes. The default
// Collector is a mutex-guarded counter set; custom collectors implement
// ICollector to ship the numbers elsewhere.
package stats

import "sync"

// Stats contains the fetch layer counters.
type Stats struct {
	MemoryHits       uint64 // lookups satisfied by the in-process LRU tier
	RemoteHits       uint64 // lookups satisfied by the distributed tier, buffered form
	RemoteStreamHits uint64 // lookups satisfied by the distributed tier, stream-form replay
	InflightHits     uint64 // lookups that attached to an in-flight fetch
	Misses           uint64 // lookups that fell through every tier to the network
	NetworkFetches   uint64 // upstream requests issued
	Promotions       uint64 // buffered responses promoted to streaming mid-accumulation
	MirrorsStarted   uint64 // stream mirrors handed to the background pool
	MirrorsAborted   uint64 // stream mirrors abandoned (push failure, overflow, or shed)
	Evictions        uint64 // entries evicted from the memory tier by capacity pressure
	Passthroughs     uint64 // requests served with the enhanced path disabled
	NonGets          uint64 // non-GET requests (semaphore only, never cached)
}

// ICollector is the interface a stats collector implements to receive
// fetch-layer events.
type ICollector interface {
	IncrementMemoryHits()
	IncrementRemoteHits()
	IncrementRemoteStreamHits()
	IncrementInflightHits()
	IncrementMisses()
	IncrementNetworkFetches()
	IncrementPromotions()
	IncrementMirrorsStarted()
	IncrementMirrorsAborted()
	IncrementEvictions()
	IncrementPassthroughs()
	IncrementNonGets()
	// GetStats returns a snapshot of the collected statistics.
	GetStats() Stats
}

// Collector is a mutex-guarded counter set implementing ICollector.
type Collector struct {
	mu    sync.RWMutex
	stats Stats
}

// NewCollector creates a new stats collector.
func NewCollector() *Collector {
	return &Collector{}
}

// IncrementMemoryHits increments the number of memory-tier hits.
func (c *Collector) IncrementMemoryHits() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.MemoryHits++
}

// IncrementRemoteHits increments the number of buffered distributed-tier hits.
func (c *Collector) IncrementRemoteHits() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.RemoteHits++
}

// IncrementRemoteStreamHits increments the number of stream-replay distributed-tier hits.
func (c *Collector) IncrementRemoteStreamHits() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.RemoteStreamHits++
}

// IncrementInflightHits increments the number of in-flight attach hits.
func (c *Collector) IncrementInflightHits() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.InflightHits++
}

// IncrementMisses increments the number of full read-path misses.
func (c *Collector) IncrementMisses() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Misses++
}

// IncrementNetworkFetches increments the number of upstream requests issued.
func (c *Collector) IncrementNetworkFetches() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.NetworkFetches++
}

// IncrementPromotions increments the number of buffer-to-stream promotions.
func (c *Collector) IncrementPromotions() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Promotions++
}

// IncrementMirrorsStarted increments the number of stream mirrors started.
func (c *Collector) IncrementMirrorsStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.MirrorsStarted++
}

// IncrementMirrorsAborted increments the number of stream mirrors abandoned.
func (c *Collector) IncrementMirrorsAborted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.MirrorsAborted++
}

// IncrementEvictions increments the number of memory-tier evictions.
func (c *Collector) IncrementEvictions() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Evictions++
}

// IncrementPassthroughs increments the number of passthrough requests.
func (c *Collector) IncrementPassthroughs() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Passthroughs++
}

// IncrementNonGets increments the number of non-GET requests.
func (c *Collector) IncrementNonGets() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.NonGets++
}

// GetStats returns a snapshot of the collected statistics.
func (c *Collector) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.stats
}
