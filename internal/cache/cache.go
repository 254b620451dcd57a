// Package cache provides the geometry deduplication cache used by loaders.
// Loaders hash candidate vertex data before calling CreateGeometry so that
// identical geometry arriving from different elements shares one instance.
// Latency in these lookups matters: they sit on the per-element decode path.
package cache

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"sync"
)

// GeometryCache maps geometry content hashes to already-created geometry ids.
type GeometryCache struct {
	m       sync.Mutex
	entries map[uint64]string
	hits    int
	misses  int
}

// NewGeometryCache creates an empty cache.
func NewGeometryCache() *GeometryCache {
	return &GeometryCache{
		entries: make(map[uint64]string),
	}
}

// Reset clears the cache. Called between models.
func (c *GeometryCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.entries = make(map[uint64]string)
	c.hits, c.misses = 0, 0
}

// Key hashes positions and indices into a cache key.
func Key(positions []float64, indices []uint32) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, p := range positions {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(p))
		h.Write(buf[:])
	}
	for _, i := range indices {
		binary.LittleEndian.PutUint32(buf[:4], i)
		h.Write(buf[:4])
	}
	return h.Sum64()
}

// Lookup returns the geometry id previously stored under key.
func (c *GeometryCache) Lookup(key uint64) (string, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	id, ok := c.entries[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return id, ok
}

// Store records a geometry id under key.
func (c *GeometryCache) Store(key uint64, geometryID string) {
	c.m.Lock()
	defer c.m.Unlock()
	c.entries[key] = geometryID
}

// Stats returns hit/miss counters since the last Reset.
func (c *GeometryCache) Stats() (hits, misses int) {
	c.m.Lock()
	defer c.m.Unlock()
	return c.hits, c.misses
}
