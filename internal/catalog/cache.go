package catalog

import (
	"sync"
	"time"
)

const defaultCacheCapacity = 8

// CacheKey identifies one version of a landscape file.
type CacheKey struct {
	Path    string
	Size    int64
	ModTime int64
}

// KeyFor builds a cache key from file metadata.
func KeyFor(path string, size int64, mod time.Time) CacheKey {
	return CacheKey{Path: path, Size: size, ModTime: mod.UnixNano()}
}

// IndexCache memoizes derived indexes. It holds at most capacity entries;
// inserting past that empties the cache first.
type IndexCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[CacheKey]Index
	hits     int
	misses   int
}

// NewIndexCache returns a cache bounded to capacity entries (8 when <= 0).
func NewIndexCache(capacity int) *IndexCache {
	if capacity <= 0 {
		capacity = defaultCacheCapacity
	}
	return &IndexCache{capacity: capacity, entries: map[CacheKey]Index{}}
}

// Get returns the cached index for key.
func (c *IndexCache) Get(key CacheKey) (Index, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, ok := c.entries[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return idx, ok
}

// Put stores idx under key.
func (c *IndexCache) Put(key CacheKey, idx Index) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.capacity {
		c.entries = map[CacheKey]Index{}
	}
	c.entries[key] = idx
}

// Len reports the number of cached entries.
func (c *IndexCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns hit and miss counters.
func (c *IndexCache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
