package boxcache

// LRUCache evicts the least recently used entry when a new key
// arrives at maxsize. Get, Insert on an existing key and PopItem's
// victim choice all count as use; Peek and Contains do not. PopItem
// removes the least recently used entry and iteration runs least to
// most recently used.
type LRUCache[K, V any] struct {
	base[K, V]

	ord *lruOrder
}

// NewLRU builds a least-recently-used cache holding at most maxsize
// entries; maxsize 0 means unbounded. Keys are hashed with the
// runtime's maphash under a per-cache seed and compared with ==.
func NewLRU[K comparable, V any](maxsize uint64, opts Options) (*LRUCache[K, V], error) {
	return NewLRUKeyed[K, V](maxsize, defaultKeyOps[K](), opts)
}

// NewLRUKeyed is NewLRU with caller-supplied key callbacks.
func NewLRUKeyed[K, V any](maxsize uint64, keys KeyOps[K], opts Options) (*LRUCache[K, V], error) {
	e, err := newEngine[K, V](maxsize, keys, opts)
	if err != nil {
		return nil, err
	}

	ord := newLRUOrder(&e.gen)
	e.ord = ord

	c := &LRUCache[K, V]{ord: ord}
	c.e = e

	return c, nil
}

// LeastRecentlyUsed returns the coldest key: the next eviction
// victim. The lookup itself promotes nothing.
func (c *LRUCache[K, V]) LeastRecentlyUsed() (K, bool) {
	c.e.mu.lock()
	defer c.e.mu.unlock()

	r, ok := c.ord.front()
	if !ok {
		var zero K
		return zero, false
	}

	return c.e.arena.slot(r).key, true
}

// MostRecentlyUsed returns the hottest key without promoting it.
func (c *LRUCache[K, V]) MostRecentlyUsed() (K, bool) {
	c.e.mu.lock()
	defer c.e.mu.unlock()

	r, ok := c.ord.backRef()
	if !ok {
		var zero K
		return zero, false
	}

	return c.e.arena.slot(r).key, true
}

// Equal reports whether both caches have the same maxsize and hold
// the same key/value mapping. eq compares values; nil means
// reflect.DeepEqual. Recency order does not participate.
func (c *LRUCache[K, V]) Equal(other *LRUCache[K, V], eq func(V, V) bool) (bool, error) {
	return c.equal(&other.base, eq)
}

// MarshalBinary encodes the cache for [LRUCache.UnmarshalBinary]:
// entries are stored coldest first, so loading rebuilds the same
// recency chain. Keys and values must be gob-encodable.
func (c *LRUCache[K, V]) MarshalBinary() ([]byte, error) {
	return marshalCache(&c.base, kindLRU, 0)
}

// UnmarshalBinary replaces the cache contents with a snapshot written
// by the same flavor's MarshalBinary, adopting its maxsize. A
// malformed snapshot fails with [ErrMalformedSnapshot] and leaves the
// cache unchanged; a key-callback failure mid-load fails with
// [ErrHostCallback] and leaves it empty.
func (c *LRUCache[K, V]) UnmarshalBinary(data []byte) error {
	return unmarshalCache(&c.base, kindLRU, data, false, nil)
}

// SaveFile writes the cache's snapshot to path atomically.
func (c *LRUCache[K, V]) SaveFile(path string) error {
	return saveFile(path, c.MarshalBinary)
}

// LoadFile loads a snapshot previously written with SaveFile.
func (c *LRUCache[K, V]) LoadFile(path string) error {
	return loadFile(path, c.UnmarshalBinary)
}
