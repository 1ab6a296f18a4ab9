package ports

import "time"

// CacheStats is a point-in-time view of the cache's internal counters.
type CacheStats struct {
	Size        int
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Expirations uint64
}

// HitRate returns hits/(hits+misses), or 0 when the cache is untouched.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// ResultCache memoizes work-function results by fingerprint. Implementations
// must allow many concurrent readers while writers get exclusive, non-starved
// access.
//
//go:generate mockgen -source=cache.go -destination=mocks/mock_cache.go -package=mocks
type ResultCache interface {
	// Get returns the value for key, or found=false on absence or TTL expiry.
	// A miss is a boolean outcome, never an error.
	Get(key string) (value any, found bool)
	// Set stores value under key with the given TTL (zero means no expiry).
	// It errors only on misuse; a failed Set is never retried internally.
	Set(key string, value any, ttl time.Duration) error
	// Delete removes key and reports whether it was resident.
	Delete(key string) bool
	// Clear drops every entry.
	Clear()
	// Stats returns the running counters.
	Stats() CacheStats
	// Optimize sweeps expired entries and sheds the coldest entries when
	// occupancy is high.
	Optimize()
}
