package boxcache

import "fmt"

// FIFOCache evicts the oldest entry when a new key arrives at
// maxsize. Age is decided by first insertion: updating a key's value
// keeps its place in line, and reads move nothing. PopItem removes
// the oldest entry and iteration runs oldest to newest.
type FIFOCache[K, V any] struct {
	base[K, V]

	ord *fifoOrder
}

// NewFIFO builds a first-in-first-out cache holding at most maxsize
// entries; maxsize 0 means unbounded. Keys are hashed with the
// runtime's maphash under a per-cache seed and compared with ==.
func NewFIFO[K comparable, V any](maxsize uint64, opts Options) (*FIFOCache[K, V], error) {
	return NewFIFOKeyed[K, V](maxsize, defaultKeyOps[K](), opts)
}

// NewFIFOKeyed is NewFIFO with caller-supplied key callbacks.
func NewFIFOKeyed[K, V any](maxsize uint64, keys KeyOps[K], opts Options) (*FIFOCache[K, V], error) {
	e, err := newEngine[K, V](maxsize, keys, opts)
	if err != nil {
		return nil, err
	}

	ord := &fifoOrder{}
	e.ord = ord

	c := &FIFOCache[K, V]{ord: ord}
	c.e = e

	return c, nil
}

// First returns the oldest key: the next eviction victim.
func (c *FIFOCache[K, V]) First() (K, bool) {
	c.e.mu.lock()
	defer c.e.mu.unlock()

	r, ok := c.ord.dq.front()
	if !ok {
		var zero K
		return zero, false
	}

	return c.e.arena.slot(r).key, true
}

// Last returns the newest key.
func (c *FIFOCache[K, V]) Last() (K, bool) {
	c.e.mu.lock()
	defer c.e.mu.unlock()

	r, ok := c.ord.dq.back()
	if !ok {
		var zero K
		return zero, false
	}

	return c.e.arena.slot(r).key, true
}

// GetIndex returns the n-th entry counted from the oldest, 0-based,
// without promoting anything. An out-of-range index fails with
// [ErrKeyNotFound].
func (c *FIFOCache[K, V]) GetIndex(n int) (K, V, error) {
	c.e.mu.lock()
	defer c.e.mu.unlock()

	r, ok := c.ord.dq.at(n)
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
// reflect.DeepEqual. Queue order does not participate.
func (c *FIFOCache[K, V]) Equal(other *FIFOCache[K, V], eq func(V, V) bool) (bool, error) {
	return c.equal(&other.base, eq)
}

// MarshalBinary encodes the cache for [FIFOCache.UnmarshalBinary]:
// entries are stored oldest first, so loading rebuilds the same
// queue. Keys and values must be gob-encodable.
func (c *FIFOCache[K, V]) MarshalBinary() ([]byte, error) {
	return marshalCache(&c.base, kindFIFO, 0)
}

// UnmarshalBinary replaces the cache contents with a snapshot written
// by the same flavor's MarshalBinary, adopting its maxsize. A
// malformed snapshot fails with [ErrMalformedSnapshot] and leaves the
// cache unchanged; a key-callback failure mid-load fails with
// [ErrHostCallback] and leaves it empty.
func (c *FIFOCache[K, V]) UnmarshalBinary(data []byte) error {
	return unmarshalCache(&c.base, kindFIFO, data, false, nil)
}

// SaveFile writes the cache's snapshot to path atomically.
func (c *FIFOCache[K, V]) SaveFile(path string) error {
	return saveFile(path, c.MarshalBinary)
}

// LoadFile loads a snapshot previously written with SaveFile.
func (c *FIFOCache[K, V]) LoadFile(path string) error {
	return loadFile(path, c.UnmarshalBinary)
}
