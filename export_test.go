package boxcache

// Export internal hooks for tests. This file is only compiled during
// tests.

import (
	"math/rand/v2"
	"time"
)

// SetNowFuncForTesting points the cache's time source at now, so
// expiry tests control exactly which entries have elapsed.
func (b *base[K, V]) SetNowFuncForTesting(now func() time.Time) {
	b.e.mu.lock()
	defer b.e.mu.unlock()

	b.e.now = now
}

// ReseedForTesting pins the eviction RNG so victim choices replay.
func (c *RRCache[K, V]) ReseedForTesting(seed1, seed2 uint64) {
	c.e.mu.lock()
	defer c.e.mu.unlock()

	c.ord.rng = rand.New(rand.NewPCG(seed1, seed2))
}

// GenerationForTesting returns the iterator-invalidation counter.
func (b *base[K, V]) GenerationForTesting() uint64 {
	b.e.mu.lock()
	defer b.e.mu.unlock()

	return b.e.gen
}

// BucketCountForTesting returns the index table's current size.
func (b *base[K, V]) BucketCountForTesting() int {
	b.e.mu.lock()
	defer b.e.mu.unlock()

	return len(b.e.tab.buckets)
}
