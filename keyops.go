package boxcache

import (
	"fmt"
	"hash/maphash"
)

// KeyOps supplies the key contract for caches whose key type is not
// comparable, or whose hashing and equality must follow host rules.
// Caches built with the plain constructors ([New], [NewLRU], ...) use a
// built-in contract over comparable keys and never hit the error paths.
//
// Hash must be consistent with Equal: keys that compare equal must hash
// to the same value, and both results must be stable for as long as the
// key is stored. Either callback may fail; a failure aborts the running
// operation with [ErrHostCallback] (wrapping the callback's error) and
// leaves the cache unchanged.
//
// Callbacks run while the cache's internal lock is held. They must not
// call back into the same cache - the lock is not re-entrant and
// re-entry deadlocks - and they should be fast, since every probe step
// of a lookup may invoke Equal.
type KeyOps[K any] struct {
	// Hash returns a 64-bit hash of key.
	Hash func(key K) (uint64, error)

	// Equal reports whether a and b are the same key.
	Equal func(a, b K) (bool, error)
}

func (o KeyOps[K]) validate() error {
	if o.Hash == nil || o.Equal == nil {
		return fmt.Errorf("%w: KeyOps requires both Hash and Equal", ErrInvalidInput)
	}

	return nil
}

// defaultKeyOps builds the infallible contract for comparable keys:
// maphash with a per-cache seed, equality via ==.
func defaultKeyOps[K comparable]() KeyOps[K] {
	seed := maphash.MakeSeed()

	return KeyOps[K]{
		Hash:  func(key K) (uint64, error) { return maphash.Comparable(seed, key), nil },
		Equal: func(a, b K) (bool, error) { return a == b, nil },
	}
}
