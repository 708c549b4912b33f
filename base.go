package boxcache

import (
	"fmt"
	"reflect"
	"time"
)

// base is the public surface shared by every cache flavor. Policy
// types embed it, inject their order structure into the engine, and
// add whatever extra introspection their policy supports.
//
// The hooks adapt the shared paths to expiring policies without the
// engine knowing about time:
//
//   - sweep removes elapsed entries; it runs under the lock ahead of
//     inserts, pops, drains, iteration, shrink and snapshots.
//   - insertMeta stamps the policy word for a fresh Insert (the
//     absolute expiry for the fixed-TTL cache).
//   - horizonNow returns the current expiry cutoff; reads treat
//     entries at or past it as absent.
//
// All three are nil for non-expiring policies.
type base[K, V any] struct {
	e *engine[K, V]

	sweep      func()
	insertMeta func() uint64
	horizonNow func() uint64
}

func (b *base[K, V]) sweepLocked() {
	if b.sweep != nil {
		b.sweep()
	}
}

func (b *base[K, V]) horizon() uint64 {
	if b.horizonNow == nil {
		return 0
	}

	return b.horizonNow()
}

// Insert stores value under key. If the key is already present its
// value is replaced and the previous value returned with replaced =
// true; the entry keeps its place in policies where updates do not
// reorder. Inserting a new key into a full cache evicts the policy's
// victim first, except in the policy-free cache, which fails with
// [ErrCapacityExceeded].
//
// A [ErrHostCallback] failure from the key callbacks leaves the cache
// unchanged.
func (b *base[K, V]) Insert(key K, value V) (prev V, replaced bool, err error) {
	b.e.mu.lock()
	defer b.e.mu.unlock()

	b.sweepLocked()

	var meta uint64
	if b.insertMeta != nil {
		meta = b.insertMeta()
	}

	return b.e.insertLocked(key, value, meta)
}

// Get returns the value stored under key. The read counts as an
// access: recency and frequency policies promote the entry. In
// expiring caches an elapsed hit is removed and reported as a miss.
func (b *base[K, V]) Get(key K) (V, bool, error) {
	b.e.mu.lock()
	defer b.e.mu.unlock()

	return b.e.getLocked(key, b.horizon())
}

// Peek returns the value stored under key without promoting it or
// disturbing any policy state. Elapsed entries read as absent but are
// left for the sweep.
func (b *base[K, V]) Peek(key K) (V, bool, error) {
	b.e.mu.lock()
	defer b.e.mu.unlock()

	return b.e.peekLocked(key, b.horizon())
}

// Contains reports whether key is present (and, in expiring caches,
// not elapsed). Like Peek it promotes nothing.
func (b *base[K, V]) Contains(key K) (bool, error) {
	b.e.mu.lock()
	defer b.e.mu.unlock()

	_, ok, err := b.e.peekLocked(key, b.horizon())

	return ok, err
}

// Remove deletes key and returns the value it held. Removing an
// absent key is not an error: it returns ok = false. An elapsed entry
// is deleted but reported as a miss.
func (b *base[K, V]) Remove(key K) (V, bool, error) {
	b.e.mu.lock()
	defer b.e.mu.unlock()

	return b.e.removeLocked(key, b.horizon())
}

// PopItem removes and returns the entry first in policy order: the
// eviction victim where the policy has one, the first stored entry
// otherwise. Popping an empty cache fails with [ErrKeyNotFound].
func (b *base[K, V]) PopItem() (K, V, error) {
	b.e.mu.lock()
	defer b.e.mu.unlock()

	b.sweepLocked()

	k, v, ok := b.e.popLocked()
	if !ok {
		return k, v, fmt.Errorf("%w: cache is empty", ErrKeyNotFound)
	}

	return k, v, nil
}

// Drain removes and returns up to n entries in policy order. It
// returns fewer when the cache runs out first, and never fails: an
// empty cache drains to an empty slice.
func (b *base[K, V]) Drain(n int) []Item[K, V] {
	b.e.mu.lock()
	defer b.e.mu.unlock()

	b.sweepLocked()

	if n <= 0 {
		return nil
	}

	hint := n
	if live := b.e.arena.live(); live < hint {
		hint = live
	}

	out := make([]Item[K, V], 0, hint)
	for len(out) < n {
		k, v, ok := b.e.popLocked()
		if !ok {
			break
		}

		out = append(out, Item[K, V]{Key: k, Value: v})
	}

	return out
}

// Clear discards every entry. reuse keeps the backing storage for
// refill; pass false to release it.
func (b *base[K, V]) Clear(reuse bool) {
	b.e.mu.lock()
	defer b.e.mu.unlock()

	b.e.clearLocked(reuse)
}

// Len returns the number of stored entries. Expiring caches count
// entries that have elapsed but not yet been swept; Len itself never
// sweeps.
func (b *base[K, V]) Len() int {
	b.e.mu.lock()
	defer b.e.mu.unlock()

	return b.e.arena.live()
}

// MaxSize returns the cardinality bound the cache enforces.
func (b *base[K, V]) MaxSize() uint64 {
	b.e.mu.lock()
	defer b.e.mu.unlock()

	return b.e.maxsize
}

// Capacity returns the entry count the cache can hold before its
// storage grows again.
func (b *base[K, V]) Capacity() uint64 {
	b.e.mu.lock()
	defer b.e.mu.unlock()

	return b.e.arena.capacity()
}

// IsEmpty reports Len() == 0.
func (b *base[K, V]) IsEmpty() bool {
	return b.Len() == 0
}

// IsFull reports whether the cache is at its maxsize bound.
func (b *base[K, V]) IsFull() bool {
	b.e.mu.lock()
	defer b.e.mu.unlock()

	return uint64(b.e.arena.live()) >= b.e.maxsize
}

// ShrinkToFit rebuilds storage sized exactly to the current entry
// count. Policy order, tie-breaks and expiry state survive; open
// iterators do not.
func (b *base[K, V]) ShrinkToFit() {
	b.e.mu.lock()
	defer b.e.mu.unlock()

	b.sweepLocked()
	b.e.shrinkLocked()
}

// Items returns an iterator over key/value pairs in policy order. The
// view is fixed when Items returns: any later mutation makes the
// iterator fail with [ErrConcurrentModification].
func (b *base[K, V]) Items() *Iter[Item[K, V]] {
	b.e.mu.lock()
	defer b.e.mu.unlock()

	b.primeLocked()

	return itemsIter(b.e)
}

// Keys returns an iterator over keys in policy order.
func (b *base[K, V]) Keys() *Iter[K] {
	b.e.mu.lock()
	defer b.e.mu.unlock()

	b.primeLocked()

	return keysIter[K, V](b.e)
}

// Values returns an iterator over values in policy order.
func (b *base[K, V]) Values() *Iter[V] {
	b.e.mu.lock()
	defer b.e.mu.unlock()

	b.primeLocked()

	return valuesIter[K, V](b.e)
}

// primeLocked runs the work an iterator must not observe mid-walk:
// the expiry sweep and any deferred sort. Both may bump the
// generation, so they run before the iterator captures it.
func (b *base[K, V]) primeLocked() {
	b.sweepLocked()
	b.e.ord.first()
}

// getWithExpiry is Get plus the entry's expiry time. The zero
// time.Time means the entry never expires.
func (b *base[K, V]) getWithExpiry(key K) (V, time.Time, bool, error) {
	b.e.mu.lock()
	defer b.e.mu.unlock()

	var zero V

	r, bidx, found, err := b.e.findLocked(key)
	if err != nil || !found {
		return zero, time.Time{}, false, err
	}

	s := b.e.arena.slot(r)
	if expired(s.meta, b.horizon()) {
		b.e.removeAtLocked(bidx, r)
		return zero, time.Time{}, false, nil
	}

	value := s.value

	var expiry time.Time
	if s.meta != 0 {
		expiry = time.Unix(0, int64(s.meta))
	}

	b.e.ord.onAccess(r)

	return value, expiry, true, nil
}

// equal implements Equal for the policy wrappers. Caches are compared
// as mappings: same maxsize, same unexpired keys, values equal under
// eq (reflect.DeepEqual when eq is nil). Policy order, capacity and
// remaining TTLs do not participate. Key lookups in the other cache
// run through its own key callbacks, and their failures surface as
// [ErrHostCallback].
func (b *base[K, V]) equal(other *base[K, V], eq func(V, V) bool) (bool, error) {
	if eq == nil {
		eq = func(x, y V) bool { return reflect.DeepEqual(x, y) }
	}

	ea, eb := b.e, other.e
	if ea == eb {
		ea.mu.lock()
		defer ea.mu.unlock()

		return equalEngines(ea, eb, b.horizon(), other.horizon(), eq)
	}

	// Lock both sides in id order so concurrent cross-comparisons
	// cannot deadlock.
	lo, hi := ea, eb
	if hi.id < lo.id {
		lo, hi = hi, lo
	}

	lo.mu.lock()
	defer lo.mu.unlock()
	hi.mu.lock()
	defer hi.mu.unlock()

	return equalEngines(ea, eb, b.horizon(), other.horizon(), eq)
}
