package boxcache

import (
	"fmt"
	"time"
)

// TTLCache expires every entry a fixed ttl after it was written.
// Insert stamps now+ttl; updating a key's value refreshes the stamp
// and moves the entry to the back of the queue, so insertion order
// stays expiry order and the sweep only ever looks at the front.
//
// Expiry is lazy. Nothing runs in the background: elapsed entries are
// dropped by the sweep that precedes inserts, pops, drains,
// iteration, shrink and snapshots, and by Get when it lands on one.
// Peek and Contains report an elapsed entry as a miss but leave its
// removal to the sweep, and Len counts not-yet-swept entries.
//
// When a new key arrives at maxsize the sweep runs first; if the
// cache is still full, the entry closest to expiry is evicted.
type TTLCache[K, V any] struct {
	base[K, V]

	ord *ttlOrder[K, V]
	ttl time.Duration
}

// NewTTL builds a fixed-ttl cache holding at most maxsize entries;
// maxsize 0 means unbounded. ttl must be positive or the constructor
// fails with [ErrInvalidInput]. Keys are hashed with the runtime's
// maphash under a per-cache seed and compared with ==.
func NewTTL[K comparable, V any](maxsize uint64, ttl time.Duration, opts Options) (*TTLCache[K, V], error) {
	return NewTTLKeyed[K, V](maxsize, ttl, defaultKeyOps[K](), opts)
}

// NewTTLKeyed is NewTTL with caller-supplied key callbacks.
func NewTTLKeyed[K, V any](maxsize uint64, ttl time.Duration, keys KeyOps[K], opts Options) (*TTLCache[K, V], error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: ttl must be positive, got %v", ErrInvalidInput, ttl)
	}

	e, err := newEngine[K, V](maxsize, keys, opts)
	if err != nil {
		return nil, err
	}

	ord := &ttlOrder[K, V]{a: &e.arena, gen: &e.gen}
	e.ord = ord

	c := &TTLCache[K, V]{ord: ord, ttl: ttl}
	c.e = e
	c.sweep = func() { c.expireLocked() }
	c.insertMeta = func() uint64 { return uint64(e.now().Add(c.ttl).UnixNano()) }
	c.horizonNow = e.nowNanos

	return c, nil
}

// TTL returns the fixed lifetime applied to every entry.
func (c *TTLCache[K, V]) TTL() time.Duration {
	c.e.mu.lock()
	defer c.e.mu.unlock()

	return c.ttl
}

// Expire removes all elapsed entries and returns how many it removed.
func (c *TTLCache[K, V]) Expire() int {
	c.e.mu.lock()
	defer c.e.mu.unlock()

	return c.expireLocked()
}

// expireLocked pops the front of the queue while it has elapsed.
// Entries sit in expiry order, so the first survivor ends the sweep.
func (c *TTLCache[K, V]) expireLocked() int {
	now := c.e.nowNanos()
	removed := 0

	for {
		r, ok := c.ord.dq.front()
		if !ok {
			break
		}

		if c.e.arena.slot(r).meta > now {
			break
		}

		c.e.removeRefLocked(r)
		removed++
	}

	return removed
}

// GetWithExpiry is Get plus the entry's expiry time.
func (c *TTLCache[K, V]) GetWithExpiry(key K) (V, time.Time, bool, error) {
	return c.getWithExpiry(key)
}

// Equal reports whether both caches have the same maxsize and hold
// the same key/value mapping, elapsed entries excluded on both sides.
// eq compares values; nil means reflect.DeepEqual. Remaining
// lifetimes do not participate.
func (c *TTLCache[K, V]) Equal(other *TTLCache[K, V], eq func(V, V) bool) (bool, error) {
	return c.equal(&other.base, eq)
}

// MarshalBinary encodes the cache for [TTLCache.UnmarshalBinary].
// Entries carry their absolute expiry, so a snapshot loaded later
// drops whatever elapsed in between; the fixed ttl rides along and is
// adopted on load. Keys and values must be gob-encodable.
func (c *TTLCache[K, V]) MarshalBinary() ([]byte, error) {
	c.e.mu.lock()
	ttl := c.ttl
	c.e.mu.unlock()

	return marshalCache(&c.base, kindTTL, ttl)
}

// UnmarshalBinary replaces the cache contents with a snapshot written
// by the same flavor's MarshalBinary, adopting its maxsize and fixed
// ttl. Entries already elapsed are dropped. A malformed snapshot
// fails with [ErrMalformedSnapshot] and leaves the cache unchanged; a
// key-callback failure mid-load fails with [ErrHostCallback] and
// leaves it empty.
func (c *TTLCache[K, V]) UnmarshalBinary(data []byte) error {
	return unmarshalCache(&c.base, kindTTL, data, true, func(ttl time.Duration) {
		c.ttl = ttl
	})
}

// SaveFile writes the cache's snapshot to path atomically.
func (c *TTLCache[K, V]) SaveFile(path string) error {
	return saveFile(path, c.MarshalBinary)
}

// LoadFile loads a snapshot previously written with SaveFile.
func (c *TTLCache[K, V]) LoadFile(path string) error {
	return loadFile(path, c.UnmarshalBinary)
}
