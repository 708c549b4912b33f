package boxcache

import "errors"

// Sentinel errors returned by boxcache operations.
//
// Callers should use [errors.Is] to check error types:
//
//	if errors.Is(err, boxcache.ErrConcurrentModification) {
//	    // restart the iteration
//	}
var (
	// ErrKeyNotFound indicates an operation that requires a present entry
	// ran against an empty cache or past the last position.
	//
	// Returned by PopItem on an empty cache and by positional accessors
	// such as [FIFOCache.GetIndex] when the index is out of range. Plain
	// lookups (Get, Peek, Remove) report absence with a false boolean
	// instead of an error.
	ErrKeyNotFound = errors.New("boxcache: key not found")

	// ErrCapacityExceeded indicates an insert of a new key into a full
	// [Cache]. The no-eviction cache never discards entries on its own.
	//
	// Recovery: Remove or Drain entries first, or recreate the cache with
	// a larger maxsize.
	ErrCapacityExceeded = errors.New("boxcache: capacity exceeded")

	// ErrAllocation indicates a reservation could not be satisfied because
	// maxsize or Options.Capacity crossed the per-cache entry limit.
	//
	// Recovery: use a smaller maxsize or capacity.
	ErrAllocation = errors.New("boxcache: allocation failure")

	// ErrConcurrentModification indicates the cache mutated between
	// iterator creation and an iterator step, so the iteration order is no
	// longer meaningful.
	//
	// Recovery: create a new iterator and start over.
	ErrConcurrentModification = errors.New("boxcache: concurrent modification")

	// ErrMalformedSnapshot indicates snapshot bytes failed validation:
	// undecodable payload, wrong magic or version, a policy mismatch, or a
	// stored maxsize smaller than the stored entry count.
	//
	// Recovery: the snapshot cannot be loaded; rebuild the cache from the
	// source of truth.
	ErrMalformedSnapshot = errors.New("boxcache: malformed snapshot")

	// ErrHostCallback indicates a [KeyOps] hash or equality callback
	// returned an error. The failing operation did not modify the cache.
	//
	// The callback's own error is wrapped and can be inspected with
	// [errors.Is] / [errors.As].
	ErrHostCallback = errors.New("boxcache: key callback failed")

	// ErrInvalidInput indicates invalid constructor arguments.
	//
	// Common causes: a non-positive TTL for [NewTTL], or [KeyOps] with a
	// nil Hash or Equal function.
	//
	// This is a programming error.
	ErrInvalidInput = errors.New("boxcache: invalid input")
)
