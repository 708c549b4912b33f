package boxcache

import "time"

// VTTLCache expires entries on per-entry lifetimes. Insert takes a
// ttl alongside the value; ttl <= 0 stores the entry without expiry.
// Updating a key's value replaces its lifetime too, so an update can
// add, move or remove the expiry.
//
// When a new key arrives at maxsize the elapsed entries go first; if
// the cache is still full, the entry closest to expiry is evicted,
// and entries without expiry outlive every expiring one. Expiry ties
// are broken by insertion order, oldest first.
//
// Expiry is lazy, as in [TTLCache]: elapsed entries are dropped by
// the sweep preceding mutating operations and by Get when it lands on
// one; Peek and Contains just report a miss, and Len counts
// not-yet-swept entries. Ordering is lazy too — lifetimes changed by
// updates only mark the order dirty, and the sort runs when an
// ordered read needs it.
type VTTLCache[K, V any] struct {
	base[K, V]

	ord *heapOrder[K, V]
}

// NewVTTL builds a per-entry-ttl cache holding at most maxsize
// entries; maxsize 0 means unbounded. Keys are hashed with the
// runtime's maphash under a per-cache seed and compared with ==.
func NewVTTL[K comparable, V any](maxsize uint64, opts Options) (*VTTLCache[K, V], error) {
	return NewVTTLKeyed[K, V](maxsize, defaultKeyOps[K](), opts)
}

// NewVTTLKeyed is NewVTTL with caller-supplied key callbacks.
func NewVTTLKeyed[K, V any](maxsize uint64, keys KeyOps[K], opts Options) (*VTTLCache[K, V], error) {
	e, err := newEngine[K, V](maxsize, keys, opts)
	if err != nil {
		return nil, err
	}

	ord := newVTTLOrder(&e.arena, &e.gen)
	e.ord = ord

	c := &VTTLCache[K, V]{ord: ord}
	c.e = e
	c.sweep = func() { c.expireLocked() }
	c.horizonNow = e.nowNanos

	return c, nil
}

// Insert stores value under key with its own lifetime; ttl <= 0 means
// the entry never expires. Updating an existing key replaces both the
// value and the lifetime. The capacity and error behavior match the
// shared Insert.
func (c *VTTLCache[K, V]) Insert(key K, value V, ttl time.Duration) (prev V, replaced bool, err error) {
	c.e.mu.lock()
	defer c.e.mu.unlock()

	c.expireLocked()

	var meta uint64
	if ttl > 0 {
		meta = uint64(c.e.now().Add(ttl).UnixNano())
	}

	return c.e.insertLocked(key, value, meta)
}

// Expire removes all elapsed entries and returns how many it removed.
func (c *VTTLCache[K, V]) Expire() int {
	c.e.mu.lock()
	defer c.e.mu.unlock()

	return c.expireLocked()
}

// expireLocked pops the soonest-to-expire entry while it has elapsed.
// Entries without expiry sort last, so the first keeper ends the
// sweep.
func (c *VTTLCache[K, V]) expireLocked() int {
	now := c.e.nowNanos()
	removed := 0

	for {
		r, ok := c.ord.first()
		if !ok {
			break
		}

		s := c.e.arena.slot(r)
		if s.meta == 0 || s.meta > now {
			break
		}

		c.e.removeRefLocked(r)
		removed++
	}

	return removed
}

// GetWithExpiry is Get plus the entry's expiry time; the zero
// time.Time means the entry never expires.
func (c *VTTLCache[K, V]) GetWithExpiry(key K) (V, time.Time, bool, error) {
	return c.getWithExpiry(key)
}

// Equal reports whether both caches have the same maxsize and hold
// the same key/value mapping, elapsed entries excluded on both sides.
// eq compares values; nil means reflect.DeepEqual. Remaining
// lifetimes do not participate.
func (c *VTTLCache[K, V]) Equal(other *VTTLCache[K, V], eq func(V, V) bool) (bool, error) {
	return c.equal(&other.base, eq)
}

// MarshalBinary encodes the cache for [VTTLCache.UnmarshalBinary].
// Entries carry their absolute expiries, so a snapshot loaded later
// drops whatever elapsed in between. Keys and values must be
// gob-encodable.
func (c *VTTLCache[K, V]) MarshalBinary() ([]byte, error) {
	return marshalCache(&c.base, kindVTTL, 0)
}

// UnmarshalBinary replaces the cache contents with a snapshot written
// by the same flavor's MarshalBinary, adopting its maxsize. Entries
// already elapsed are dropped. A malformed snapshot fails with
// [ErrMalformedSnapshot] and leaves the cache unchanged; a
// key-callback failure mid-load fails with [ErrHostCallback] and
// leaves it empty.
func (c *VTTLCache[K, V]) UnmarshalBinary(data []byte) error {
	return unmarshalCache(&c.base, kindVTTL, data, true, nil)
}

// SaveFile writes the cache's snapshot to path atomically.
func (c *VTTLCache[K, V]) SaveFile(path string) error {
	return saveFile(path, c.MarshalBinary)
}

// LoadFile loads a snapshot previously written with SaveFile.
func (c *VTTLCache[K, V]) LoadFile(path string) error {
	return loadFile(path, c.UnmarshalBinary)
}
