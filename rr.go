package boxcache

// RRCache evicts a uniformly random entry when a new key arrives at
// maxsize. Reads and updates carry no policy state, so the hot paths
// cost exactly what the policy-free cache costs; only eviction rolls
// the dice. PopItem removes a random entry too, and iteration walks
// storage order.
type RRCache[K, V any] struct {
	base[K, V]

	ord *randomOrder[K, V]
}

// NewRR builds a random-replacement cache holding at most maxsize
// entries; maxsize 0 means unbounded. Keys are hashed with the
// runtime's maphash under a per-cache seed and compared with ==.
func NewRR[K comparable, V any](maxsize uint64, opts Options) (*RRCache[K, V], error) {
	return NewRRKeyed[K, V](maxsize, defaultKeyOps[K](), opts)
}

// NewRRKeyed is NewRR with caller-supplied key callbacks.
func NewRRKeyed[K, V any](maxsize uint64, keys KeyOps[K], opts Options) (*RRCache[K, V], error) {
	e, err := newEngine[K, V](maxsize, keys, opts)
	if err != nil {
		return nil, err
	}

	ord := newRandomOrder(&e.arena)
	e.ord = ord

	c := &RRCache[K, V]{ord: ord}
	c.e = e

	return c, nil
}

// Equal reports whether both caches have the same maxsize and hold
// the same key/value mapping. eq compares values; nil means
// reflect.DeepEqual.
func (c *RRCache[K, V]) Equal(other *RRCache[K, V], eq func(V, V) bool) (bool, error) {
	return c.equal(&other.base, eq)
}

// MarshalBinary encodes the cache for [RRCache.UnmarshalBinary].
// Keys and values must be gob-encodable.
func (c *RRCache[K, V]) MarshalBinary() ([]byte, error) {
	return marshalCache(&c.base, kindRandom, 0)
}

// UnmarshalBinary replaces the cache contents with a snapshot written
// by the same flavor's MarshalBinary, adopting its maxsize. A
// malformed snapshot fails with [ErrMalformedSnapshot] and leaves the
// cache unchanged; a key-callback failure mid-load fails with
// [ErrHostCallback] and leaves it empty.
func (c *RRCache[K, V]) UnmarshalBinary(data []byte) error {
	return unmarshalCache(&c.base, kindRandom, data, false, nil)
}

// SaveFile writes the cache's snapshot to path atomically.
func (c *RRCache[K, V]) SaveFile(path string) error {
	return saveFile(path, c.MarshalBinary)
}

// LoadFile loads a snapshot previously written with SaveFile.
func (c *RRCache[K, V]) LoadFile(path string) error {
	return loadFile(path, c.UnmarshalBinary)
}
