package boxcache

// Cache is the policy-free flavor: entries stay until explicitly
// removed, and inserting a new key into a full cache fails with
// [ErrCapacityExceeded] instead of evicting. PopItem, Drain and the
// iterators walk entries in storage order, which is insertion order
// until a removal recycles a slot.
type Cache[K, V any] struct {
	base[K, V]
}

// New builds a policy-free cache holding at most maxsize entries;
// maxsize 0 means unbounded. Keys are hashed with the runtime's
// maphash under a per-cache seed and compared with ==.
func New[K comparable, V any](maxsize uint64, opts Options) (*Cache[K, V], error) {
	return NewKeyed[K, V](maxsize, defaultKeyOps[K](), opts)
}

// NewKeyed is New with caller-supplied key callbacks, for key types
// that are not comparable or whose identity the host defines. See
// [KeyOps] for the contract the callbacks must honor.
func NewKeyed[K, V any](maxsize uint64, keys KeyOps[K], opts Options) (*Cache[K, V], error) {
	e, err := newEngine[K, V](maxsize, keys, opts)
	if err != nil {
		return nil, err
	}

	e.ord = &arenaOrder[K, V]{a: &e.arena}

	c := &Cache[K, V]{}
	c.e = e

	return c, nil
}

// Equal reports whether both caches have the same maxsize and hold
// the same key/value mapping. eq compares values; nil means
// reflect.DeepEqual. Storage order does not participate.
func (c *Cache[K, V]) Equal(other *Cache[K, V], eq func(V, V) bool) (bool, error) {
	return c.equal(&other.base, eq)
}

// MarshalBinary encodes the cache for [Cache.UnmarshalBinary]:
// maxsize, reserved capacity and the entries in storage order. Keys
// and values must be gob-encodable.
func (c *Cache[K, V]) MarshalBinary() ([]byte, error) {
	return marshalCache(&c.base, kindNone, 0)
}

// UnmarshalBinary replaces the cache contents with a snapshot written
// by the same flavor's MarshalBinary, adopting its maxsize. A
// malformed snapshot fails with [ErrMalformedSnapshot] and leaves the
// cache unchanged; a key-callback failure mid-load fails with
// [ErrHostCallback] and leaves it empty.
func (c *Cache[K, V]) UnmarshalBinary(data []byte) error {
	return unmarshalCache(&c.base, kindNone, data, false, nil)
}

// SaveFile writes the cache's snapshot to path atomically.
func (c *Cache[K, V]) SaveFile(path string) error {
	return saveFile(path, c.MarshalBinary)
}

// LoadFile loads a snapshot previously written with SaveFile.
func (c *Cache[K, V]) LoadFile(path string) error {
	return loadFile(path, c.UnmarshalBinary)
}
