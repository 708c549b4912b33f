package boxcache

import (
	"fmt"
	"sync/atomic"
	"time"
)

// engineIDs hands out a process-wide lock rank per engine. When two
// caches are locked together (Equal), locks are taken in ascending id
// order so concurrent cross-comparisons cannot deadlock.
var engineIDs atomic.Uint64

// engine is the machinery shared by every cache flavor: the key
// contract, the slot arena, the index table, the injected order
// structure, the lock and the generation counter. Policy types embed a
// base around it and differ only in which order they inject and which
// hooks they set.
//
// Every exported operation takes the lock once, up front, and holds it
// until the operation completes. Methods suffixed Locked assume the
// caller holds e.mu.
type engine[K, V any] struct {
	mu      mutex
	keys    KeyOps[K]
	arena   arena[K, V]
	tab     table
	ord     order
	gen     uint64
	maxsize uint64
	id      uint64

	// now is the time source for expiry. Tests swap it for a
	// deterministic clock.
	now func() time.Time
}

// newEngine validates the key contract and sizes storage. The order
// structure is left nil; the policy constructor injects it before the
// engine is used.
func newEngine[K, V any](maxsize uint64, keys KeyOps[K], opts Options) (*engine[K, V], error) {
	if err := keys.validate(); err != nil {
		return nil, err
	}

	if maxsize > maxEntries {
		return nil, fmt.Errorf("%w: maxsize %d exceeds the slot limit %d", ErrAllocation, maxsize, uint64(maxEntries))
	}

	if maxsize == 0 {
		// Zero means unbounded; internally that is the slot limit.
		maxsize = maxEntries
	}

	capacity := opts.Capacity
	if capacity > maxsize {
		capacity = maxsize
	}

	e := &engine[K, V]{
		mu:      makeMutex(),
		keys:    keys,
		maxsize: maxsize,
		id:      engineIDs.Add(1),
		now:     time.Now,
	}
	e.arena.reserve(capacity)
	e.tab.init(bucketCountFor(capacity))

	return e, nil
}

// nowNanos returns the current expiry horizon. Entries whose expiry is
// at or before the horizon are elapsed.
func (e *engine[K, V]) nowNanos() uint64 {
	return uint64(e.now().UnixNano())
}

// hashKey runs the host hash callback, tagging failures.
func (e *engine[K, V]) hashKey(key K) (uint64, error) {
	h, err := e.keys.Hash(key)
	if err != nil {
		return 0, fmt.Errorf("%w: hash: %w", ErrHostCallback, err)
	}

	return h, nil
}

// probeEq builds the equality predicate a table probe uses to compare
// key against stored candidates. Host failures are tagged and abort
// the probe.
func (e *engine[K, V]) probeEq(key K) func(ref) (bool, error) {
	return func(r ref) (bool, error) {
		ok, err := e.keys.Equal(key, e.arena.slot(r).key)
		if err != nil {
			return false, fmt.Errorf("%w: equal: %w", ErrHostCallback, err)
		}

		return ok, nil
	}
}

// findLocked probes for key. On a hit it returns the slot ref and the
// bucket holding it; on a clean miss found is false with a nil error.
func (e *engine[K, V]) findLocked(key K) (r ref, bidx uint64, found bool, err error) {
	hash, err := e.hashKey(key)
	if err != nil {
		return ref{}, 0, false, err
	}

	bidx, found, err = e.tab.find(hash, e.probeEq(key))
	if err != nil {
		return ref{}, 0, false, err
	}
	if !found {
		return ref{}, bidx, false, nil
	}

	return e.tab.buckets[bidx].ref(), bidx, true, nil
}

// insertLocked is the single-probe write path: one lookup decides
// between updating the occupied slot and inserting into the absent
// one. All fallible steps (hashing, equality probes) run before the
// first mutation, so a failed insert leaves the cache unchanged.
//
// meta is the policy word for a fresh entry: the absolute expiry for
// the expiring caches, the initial access count for LFU, zero
// elsewhere. Updates hand meta to the order structure instead, which
// knows whether to overwrite or to bump.
func (e *engine[K, V]) insertLocked(key K, value V, meta uint64) (prev V, replaced bool, err error) {
	var zero V

	hash, err := e.hashKey(key)
	if err != nil {
		return zero, false, err
	}

	bidx, found, err := e.tab.find(hash, e.probeEq(key))
	if err != nil {
		return zero, false, err
	}

	if found {
		r := e.tab.buckets[bidx].ref()
		s := e.arena.slot(r)
		prev = s.value
		s.value = value
		e.ord.onUpdate(r, meta)

		return prev, true, nil
	}

	// Absent key: make room first. Eviction and growth both relocate
	// buckets, so the insert position is re-derived after either runs.
	if uint64(e.arena.live()) >= e.maxsize {
		victim, ok := e.ord.victim()
		if !ok {
			return zero, false, fmt.Errorf("%w: maxsize %d reached", ErrCapacityExceeded, e.maxsize)
		}

		e.removeRefLocked(victim)
		bidx = e.tab.findInsert(hash)
	}

	if e.tab.needsGrow() {
		e.tab.rebuild(uint64(len(e.tab.buckets)) * 2)
		bidx = e.tab.findInsert(hash)
	}

	r := e.arena.alloc(key, hash, value, meta)
	e.tab.set(bidx, hash, r)
	e.ord.onInsert(r)
	e.gen++

	return zero, false, nil
}

// getLocked is the promoting read. horizon is the expiry cutoff in
// unix nanos (zero for non-expiring caches); an elapsed hit is removed
// and reported as a miss.
func (e *engine[K, V]) getLocked(key K, horizon uint64) (V, bool, error) {
	var zero V

	r, bidx, found, err := e.findLocked(key)
	if err != nil || !found {
		return zero, false, err
	}

	s := e.arena.slot(r)
	if expired(s.meta, horizon) {
		e.removeAtLocked(bidx, r)
		return zero, false, nil
	}

	value := s.value
	e.ord.onAccess(r)

	return value, true, nil
}

// peekLocked reads without promoting. An elapsed entry is reported as
// a miss but left in place; the sweep owns its removal.
func (e *engine[K, V]) peekLocked(key K, horizon uint64) (V, bool, error) {
	var zero V

	r, _, found, err := e.findLocked(key)
	if err != nil || !found {
		return zero, false, err
	}

	s := e.arena.slot(r)
	if expired(s.meta, horizon) {
		return zero, false, nil
	}

	return s.value, true, nil
}

// removeLocked deletes key if present. An elapsed entry is removed
// but reported as a miss, so expiry stays observable.
func (e *engine[K, V]) removeLocked(key K, horizon uint64) (V, bool, error) {
	var zero V

	r, bidx, found, err := e.findLocked(key)
	if err != nil || !found {
		return zero, false, err
	}

	elapsed := expired(e.arena.slot(r).meta, horizon)
	_, v := e.removeAtLocked(bidx, r)
	if elapsed {
		return zero, false, nil
	}

	return v, true, nil
}

// removeAtLocked evicts the entry in bucket bidx. The order structure
// is detached first while the slot is still live (heap comparators
// read slot state), then the bucket, then the slot itself.
func (e *engine[K, V]) removeAtLocked(bidx uint64, r ref) (K, V) {
	e.ord.onRemove(r)
	e.tab.removeAt(bidx)
	k, v := e.arena.release(r)
	e.gen++

	return k, v
}

// removeRefLocked evicts by slot ref, locating the bucket from the
// stored hash. The ref must be live.
func (e *engine[K, V]) removeRefLocked(r ref) (K, V) {
	s := e.arena.slot(r)

	bidx, ok := e.tab.findRef(s.hash, r)
	if !ok {
		panic("boxcache: internal: live slot missing from index table")
	}

	return e.removeAtLocked(bidx, r)
}

// popLocked removes and returns the entry first in policy order: the
// eviction victim where the policy defines one, the plain first entry
// otherwise (the policy-free cache pops in storage order even though
// it refuses to evict on insert).
func (e *engine[K, V]) popLocked() (K, V, bool) {
	r, ok := e.ord.victim()
	if !ok {
		r, ok = e.ord.first()
	}
	if !ok {
		var zk K
		var zv V

		return zk, zv, false
	}

	k, v := e.removeRefLocked(r)

	return k, v, true
}

// clearLocked discards every entry. reuse keeps the allocations for
// refill; otherwise storage shrinks back to its minimum.
func (e *engine[K, V]) clearLocked(reuse bool) {
	e.arena.reset(reuse)
	e.tab.reset(reuse)
	e.ord.reset(reuse)
	e.gen++
}

// shrinkLocked rebuilds storage sized exactly to the live count. Slots
// are carried in policy order with their sequence numbers and meta
// intact, so ordering and tie-breaks survive the move.
func (e *engine[K, V]) shrinkLocked() {
	carried := make([]slot[K, V], 0, e.arena.live())
	for r, ok := e.ord.first(); ok; r, ok = e.ord.after(r) {
		carried = append(carried, *e.arena.slot(r))
	}

	e.arena.reset(false)
	e.arena.reserve(uint64(len(carried)))
	e.tab.init(bucketCountFor(uint64(len(carried))))
	e.ord.reset(false)

	for i := range carried {
		s := &carried[i]
		r := e.arena.allocCarried(*s)
		e.tab.set(e.tab.findInsert(s.hash), s.hash, r)
		e.ord.onInsert(r)
	}

	e.gen++
}

// replayLocked replaces the cache contents wholesale: storage is
// rebuilt for capacity, then entries are replayed through the normal
// insert path in order. Entries elapsed at dropBefore are skipped. On
// a replay failure the cache is left empty, never half-loaded.
func (e *engine[K, V]) replayLocked(entries []snapEntry[K, V], maxsize, capacity uint64, dropBefore uint64) error {
	e.maxsize = maxsize
	e.arena.reset(false)
	e.arena.reserve(capacity)
	e.tab.init(bucketCountFor(capacity))
	e.ord.reset(false)
	e.gen++

	for i := range entries {
		ent := &entries[i]
		if expired(ent.Meta, dropBefore) {
			continue
		}

		if _, _, err := e.insertLocked(ent.Key, ent.Val, ent.Meta); err != nil {
			e.clearLocked(false)
			return err
		}
	}

	return nil
}

// expired reports whether a policy meta word is an elapsed expiry.
// Zero meta means the entry never expires; zero horizon means the
// cache does not expire at all.
func expired(meta, horizon uint64) bool {
	return horizon != 0 && meta != 0 && meta <= horizon
}

// equalEngines compares two caches as key/value mappings: same
// maxsize, same unexpired keys, equal values under eq. Lookups in b
// run through b's own key callbacks. The caller holds both locks (or
// the single lock when a == b).
func equalEngines[K, V any](a, b *engine[K, V], horizonA, horizonB uint64, eq func(V, V) bool) (bool, error) {
	if a.maxsize != b.maxsize {
		return false, nil
	}

	liveA := 0
	for r, ok := a.arena.firstLive(); ok; r, ok = a.arena.liveAfter(r) {
		sa := a.arena.slot(r)
		if expired(sa.meta, horizonA) {
			continue
		}
		liveA++

		hash, err := b.hashKey(sa.key)
		if err != nil {
			return false, err
		}

		bidx, found, err := b.tab.find(hash, b.probeEq(sa.key))
		if err != nil {
			return false, err
		}
		if !found {
			return false, nil
		}

		sb := b.arena.slot(b.tab.buckets[bidx].ref())
		if expired(sb.meta, horizonB) {
			return false, nil
		}
		if !eq(sa.value, sb.value) {
			return false, nil
		}
	}

	// Same maxsize and every a-entry matched; equality now reduces to
	// b not holding extra unexpired keys.
	liveB := 0
	for r, ok := b.arena.firstLive(); ok; r, ok = b.arena.liveAfter(r) {
		if !expired(b.arena.slot(r).meta, horizonB) {
			liveB++
		}
	}

	return liveA == liveB, nil
}
