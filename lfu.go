package boxcache

import "fmt"

// LFUCache evicts the least frequently used entry when a new key
// arrives at maxsize. Get and Insert on an existing key bump the
// entry's access count; Peek and Contains do not. Frequency ties are
// broken by insertion order, oldest first, so eviction among
// equally-used entries is deterministic. PopItem removes the least
// frequently used entry and iteration runs least to most frequent.
//
// Ordering is lazy: accesses only mark the order dirty, and the sort
// runs when an ordered read (eviction, iteration, rank lookups,
// serialization) needs it.
type LFUCache[K, V any] struct {
	base[K, V]

	ord *heapOrder[K, V]
}

// NewLFU builds a least-frequently-used cache holding at most maxsize
// entries; maxsize 0 means unbounded. Keys are hashed with the
// runtime's maphash under a per-cache seed and compared with ==.
func NewLFU[K comparable, V any](maxsize uint64, opts Options) (*LFUCache[K, V], error) {
	return NewLFUKeyed[K, V](maxsize, defaultKeyOps[K](), opts)
}

// NewLFUKeyed is NewLFU with caller-supplied key callbacks.
func NewLFUKeyed[K, V any](maxsize uint64, keys KeyOps[K], opts Options) (*LFUCache[K, V], error) {
	e, err := newEngine[K, V](maxsize, keys, opts)
	if err != nil {
		return nil, err
	}

	ord := newLFUOrder(&e.arena, &e.gen)
	e.ord = ord

	c := &LFUCache[K, V]{ord: ord}
	c.e = e

	return c, nil
}

// LeastFrequentlyUsed returns the key at frequency rank n, 0 being
// the least frequently used (the next eviction victim). The lookup
// itself counts as no access.
func (c *LFUCache[K, V]) LeastFrequentlyUsed(n int) (K, bool) {
	c.e.mu.lock()
	defer c.e.mu.unlock()

	r, ok := c.ord.atRank(n)
	if !ok {
		var zero K
		return zero, false
	}

	return c.e.arena.slot(r).key, true
}

// GetIndex returns the entry at frequency rank n, 0-based from the
// least frequently used, without counting an access. An out-of-range
// index fails with [ErrKeyNotFound].
func (c *LFUCache[K, V]) GetIndex(n int) (K, V, error) {
	c.e.mu.lock()
	defer c.e.mu.unlock()

	r, ok := c.ord.atRank(n)
	if !ok {
		var zk K
		var zv V

		return zk, zv, fmt.Errorf("%w: index %d out of range", ErrKeyNotFound, n)
	}

	s := c.e.arena.slot(r)

	return s.key, s.value, nil
}

// Equal reports whether both caches have the same maxsize and hold
// the same key/value mapping. eq compares values; nil means
// reflect.DeepEqual. Access counts do not participate.
func (c *LFUCache[K, V]) Equal(other *LFUCache[K, V], eq func(V, V) bool) (bool, error) {
	return c.equal(&other.base, eq)
}

// MarshalBinary encodes the cache for [LFUCache.UnmarshalBinary]:
// entries are stored least frequent first with their access counts,
// so loading rebuilds the same eviction order. Keys and values must
// be gob-encodable.
func (c *LFUCache[K, V]) MarshalBinary() ([]byte, error) {
	return marshalCache(&c.base, kindLFU, 0)
}

// UnmarshalBinary replaces the cache contents with a snapshot written
// by the same flavor's MarshalBinary, adopting its maxsize. A
// malformed snapshot fails with [ErrMalformedSnapshot] and leaves the
// cache unchanged; a key-callback failure mid-load fails with
// [ErrHostCallback] and leaves it empty.
func (c *LFUCache[K, V]) UnmarshalBinary(data []byte) error {
	return unmarshalCache(&c.base, kindLFU, data, false, nil)
}

// SaveFile writes the cache's snapshot to path atomically.
func (c *LFUCache[K, V]) SaveFile(path string) error {
	return saveFile(path, c.MarshalBinary)
}

// LoadFile loads a snapshot previously written with SaveFile.
func (c *LFUCache[K, V]) LoadFile(path string) error {
	return loadFile(path, c.UnmarshalBinary)
}
