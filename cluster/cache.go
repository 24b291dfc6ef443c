package cluster

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"

	"github.com/YuminosukeSato/tce/lattice"
	"github.com/YuminosukeSato/tce/pkg/errors"
)

// Cache memoises EnumerateOrbits by lattice fingerprint and cutoff. It is
// safe for concurrent use. Cached orbit lists are shared and must not be
// modified by callers.
type Cache struct {
	entries *lru.Cache
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewCache returns a cache holding at most size orbit lists.
func NewCache(size int) (*Cache, error) {
	entries, err := lru.New(size)
	if err != nil {
		return nil, errors.NewConfigurationErrorf("cluster.NewCache", "cache size", "%v", err)
	}
	return &Cache{entries: entries}, nil
}

// CacheKey identifies an enumeration request.
func CacheKey(lat *lattice.Lattice, maxOrder int, maxDiameter float64) string {
	if maxOrder < 1 {
		maxOrder = 0
	}
	return fmt.Sprintf("%s|%d|%.12g", lat.Fingerprint(), maxOrder, maxDiameter)
}

// EnumerateOrbits returns the cached orbit list, enumerating on a miss.
// Errors are not cached.
func (c *Cache) EnumerateOrbits(lat *lattice.Lattice, maxOrder int, maxDiameter float64) ([]Orbit, error) {
	if lat == nil {
		return EnumerateOrbits(lat, maxOrder, maxDiameter)
	}
	key := CacheKey(lat, maxOrder, maxDiameter)
	if v, ok := c.entries.Get(key); ok {
		c.hits.Add(1)
		return v.([]Orbit), nil
	}
	c.misses.Add(1)
	orbits, err := EnumerateOrbits(lat, maxOrder, maxDiameter)
	if err != nil {
		return nil, err
	}
	c.entries.Add(key, orbits)
	return orbits, nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int { return c.entries.Len() }

// Stats returns the hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) { return c.hits.Load(), c.misses.Load() }

// Purge empties the cache.
func (c *Cache) Purge() { c.entries.Purge() }
