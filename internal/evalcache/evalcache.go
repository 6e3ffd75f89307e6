// Package evalcache memoises NNUE scores by position and network.
package evalcache

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache maps (position hash, network hash) to a score.
// It is safe for concurrent use.
type Cache struct {
	c *ristretto.Cache[uint64, int32]
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits   uint64
	Misses uint64
}

// New creates a cache holding roughly maxEntries scores.
func New(maxEntries int64) (*Cache, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("evalcache: maxEntries must be positive, got %d", maxEntries)
	}
	c, err := ristretto.NewCache(&ristretto.Config[uint64, int32]{
		NumCounters: 10 * maxEntries,
		MaxCost:     maxEntries,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("evalcache: %w", err)
	}
	return &Cache{c: c}, nil
}

// Key combines a position hash and a network identity (nnue.Network.Identity),
// so one blob loaded with different constants never shares entries.
func Key(posHash, netID uint64) uint64 {
	return posHash ^ (netID * 0x9E3779B97F4A7C15)
}

// Get returns the cached score for key.
func (c *Cache) Get(key uint64) (int32, bool) {
	return c.c.Get(key)
}

// Set stores a score. Writes are buffered; call Wait to make them visible.
func (c *Cache) Set(key uint64, score int32) {
	c.c.Set(key, score, 1)
}

// Wait blocks until buffered writes are applied.
func (c *Cache) Wait() {
	c.c.Wait()
}

// Stats returns hit and miss counters.
func (c *Cache) Stats() Stats {
	m := c.c.Metrics
	return Stats{Hits: m.Hits(), Misses: m.Misses()}
}

// Close releases the cache's background goroutines.
func (c *Cache) Close() {
	c.c.Close()
}
