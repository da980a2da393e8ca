package proxyfs

import (
	"io/fs"
	"sync"
	"time"
)

// Cache remembers backing-store lookups, both found and absent paths. Misses count
// the lookups that had to reach the backing store.
//
// The Writer never writes to the backing store, so an entry can only go stale if
// the backing changes behind the Writer's back; TTLs bound how long that is seen.
type Cache struct {
	statCache     map[string]*statCacheEntry
	negativeCache map[string]*negativeCacheEntry
	mu            sync.RWMutex
	statTTL       time.Duration
	negativeTTL   time.Duration
	maxEntries    int
	enabled       bool
	hits          uint64
	misses        uint64
}

type statCacheEntry struct {
	info    fs.FileInfo
	expires time.Time
}

type negativeCacheEntry struct {
	expires time.Time
}

func newCache(enabled bool, statTTL, negativeTTL time.Duration, maxEntries int) *Cache {
	if !enabled {
		return &Cache{enabled: false}
	}

	return &Cache{
		statCache:     make(map[string]*statCacheEntry),
		negativeCache: make(map[string]*negativeCacheEntry),
		statTTL:       statTTL,
		negativeTTL:   negativeTTL,
		maxEntries:    maxEntries,
		enabled:       true,
	}
}

// getStat retrieves a cached backing info if available and not expired
func (c *Cache) getStat(path string) (fs.FileInfo, bool) {
	if !c.enabled {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.statCache[path]
	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}
	c.hits++
	return entry.info, true
}

func (c *Cache) putStat(path string, info fs.FileInfo) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.misses++
	if len(c.statCache) >= c.maxEntries {
		c.evictOldestStat()
	}

	c.statCache[path] = &statCacheEntry{
		info:    info,
		expires: time.Now().Add(c.statTTL),
	}
}

// isNegative checks if a path is known to be absent from the backing store
func (c *Cache) isNegative(path string) bool {
	if !c.enabled {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.negativeCache[path]
	if !ok || time.Now().After(entry.expires) {
		return false
	}
	c.hits++
	return true
}

func (c *Cache) putNegative(path string) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.misses++
	if len(c.negativeCache) >= c.maxEntries {
		c.evictOldestNegative()
	}

	c.negativeCache[path] = &negativeCacheEntry{
		expires: time.Now().Add(c.negativeTTL),
	}
}

func (c *Cache) clear() {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.statCache = make(map[string]*statCacheEntry)
	c.negativeCache = make(map[string]*negativeCacheEntry)
}

func (c *Cache) evictOldestStat() {
	var oldestPath string
	var oldestTime time.Time

	for path, entry := range c.statCache {
		if oldestPath == "" || entry.expires.Before(oldestTime) {
			oldestPath = path
			oldestTime = entry.expires
		}
	}

	if oldestPath != "" {
		delete(c.statCache, oldestPath)
	}
}

func (c *Cache) evictOldestNegative() {
	var oldestPath string
	var oldestTime time.Time

	for path, entry := range c.negativeCache {
		if oldestPath == "" || entry.expires.Before(oldestTime) {
			oldestPath = path
			oldestTime = entry.expires
		}
	}

	if oldestPath != "" {
		delete(c.negativeCache, oldestPath)
	}
}

// Stats returns cache statistics
func (c *Cache) Stats() CacheStats {
	if !c.enabled {
		return CacheStats{Enabled: false}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return CacheStats{
		Enabled:           true,
		StatCacheSize:     len(c.statCache),
		NegativeCacheSize: len(c.negativeCache),
		MaxEntries:        c.maxEntries,
		StatTTL:           c.statTTL,
		NegativeTTL:       c.negativeTTL,
		Hits:              c.hits,
		Misses:            c.misses,
	}
}

// CacheStats contains cache statistics
type CacheStats struct {
	Enabled           bool
	StatCacheSize     int
	NegativeCacheSize int
	MaxEntries        int
	StatTTL           time.Duration
	NegativeTTL       time.Duration
	Hits              uint64
	Misses            uint64
}
