// Package cache implements ports.ResultCache: a thread-safe in-memory store
// with TTL expiration and LRU eviction.
package cache

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.trai.ch/fanout/core/domain"
	"go.trai.ch/fanout/core/ports"
	"go.trai.ch/zerr"
)

// optimizeOccupancy is the fill ratio above which Optimize sheds entries.
const optimizeOccupancy = 0.9

type entry struct {
	value     any
	createdAt time.Time
	expiresAt time.Time // zero means no expiry

	// lastAccessed (UnixNano) and accessCount are atomics so Get can record
	// an access while holding only the read lock.
	lastAccessed atomic.Int64
	accessCount  atomic.Int64
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Cache is a fingerprint-keyed result store. Reads take the shared side of a
// sync.RWMutex; writes take the exclusive side. Go's RWMutex blocks new
// readers once a writer is waiting, so a pending writer is never starved.
type Cache struct {
	mu              sync.RWMutex
	entries         map[string]*entry
	maxSize         int
	cleanupInterval time.Duration
	lastSweep       time.Time

	hits        atomic.Uint64
	misses      atomic.Uint64
	evictions   atomic.Uint64
	expirations atomic.Uint64
}

var _ ports.ResultCache = (*Cache)(nil)

// New creates a cache holding at most maxSize resident entries. Expired
// entries are swept lazily, at most once per cleanupInterval, piggybacked on
// Set calls.
func New(maxSize int, cleanupInterval time.Duration) (*Cache, error) {
	if maxSize <= 0 {
		return nil, zerr.With(domain.ErrInvalidCacheSize, "max_size", maxSize)
	}
	return &Cache{
		entries:         make(map[string]*entry, maxSize),
		maxSize:         maxSize,
		cleanupInterval: cleanupInterval,
		lastSweep:       time.Now(),
	}, nil
}

// Get returns the value for key. An absent or expired key is a miss; expired
// entries are not removed here, the next sweep collects them.
func (c *Cache) Get(key string) (any, bool) {
	now := time.Now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || e.expired(now) {
		c.misses.Add(1)
		return nil, false
	}

	e.lastAccessed.Store(now.UnixNano())
	e.accessCount.Add(1)
	c.hits.Add(1)
	return e.value, true
}

// Set stores value under key. Inserting a new key at capacity first evicts
// the least-recently-accessed entry, so the cache never holds more than
// maxSize entries at rest.
func (c *Cache) Set(key string, value any, ttl time.Duration) error {
	if key == "" {
		return domain.ErrInvalidKey
	}

	now := time.Now()
	e := &entry{value: value, createdAt: now}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	e.lastAccessed.Store(now.UnixNano())

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cleanupInterval > 0 && now.Sub(c.lastSweep) >= c.cleanupInterval {
		c.sweepLocked(now)
	}

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOneLocked()
	}
	c.entries[key] = e
	return nil
}

// Delete removes key and reports whether it was resident.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
	}
	return ok
}

// Clear drops every entry. Counters are cumulative and survive a Clear.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry, c.maxSize)
}

// Stats returns the running counters.
func (c *Cache) Stats() ports.CacheStats {
	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()

	return ports.CacheStats{
		Size:        size,
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
	}
}

// Optimize sweeps expired entries and, when occupancy still exceeds 90% of
// capacity, evicts the coldest 10% by last access.
func (c *Cache) Optimize() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked(now)

	if float64(len(c.entries)) <= optimizeOccupancy*float64(c.maxSize) {
		return
	}

	shed := c.maxSize / 10
	if shed < 1 {
		shed = 1
	}
	c.evictColdestLocked(shed)
}

func (c *Cache) sweepLocked(now time.Time) {
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			c.expirations.Add(1)
		}
	}
	c.lastSweep = now
}

// evictOneLocked removes the entry with the oldest last access.
func (c *Cache) evictOneLocked() {
	var victim string
	oldest := int64(0)
	for key, e := range c.entries {
		la := e.lastAccessed.Load()
		if victim == "" || la < oldest {
			victim = key
			oldest = la
		}
	}
	if victim != "" {
		delete(c.entries, victim)
		c.evictions.Add(1)
	}
}

func (c *Cache) evictColdestLocked(n int) {
	type aged struct {
		key string
		la  int64
	}
	byAge := make([]aged, 0, len(c.entries))
	for key, e := range c.entries {
		byAge = append(byAge, aged{key: key, la: e.lastAccessed.Load()})
	}
	sort.Slice(byAge, func(i, j int) bool { return byAge[i].la < byAge[j].la })

	if n > len(byAge) {
		n = len(byAge)
	}
	for _, a := range byAge[:n] {
		delete(c.entries, a.key)
		c.evictions.Add(1)
	}
}
