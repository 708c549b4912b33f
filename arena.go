package boxcache

import "fmt"

// maxEntries is the per-cache entry limit. Slot indices are 32-bit and
// the index table stores them offset by one, so the top two values are
// reserved.
const maxEntries = 1<<32 - 2

// ref addresses a live arena slot. The tag mirrors the slot's current
// tag; every release bumps the slot tag, so a ref held across a release
// is detected on the next dereference instead of silently reading
// recycled storage.
type ref struct {
	idx uint32
	tag uint32
}

// slot is one stored entry plus the per-policy bookkeeping the order
// structures need.
//
// meta is policy-defined: LFU keeps the access frequency, TTL and VTTL
// keep the absolute expiry as unix nanoseconds (0 = no expiry), the
// remaining policies leave it zero. seq is a cache-wide insertion
// sequence used for deterministic tie-breaks.
type slot[K, V any] struct {
	key   K
	value V
	hash  uint64
	meta  uint64
	seq   uint64
	tag   uint32
	live  bool
}

// arena owns slot storage. Slots are addressed by [ref] and recycled
// through a free list; an index stays stable for the lifetime of its
// slot. Only Clear and rebuilds (shrink, snapshot load) renumber.
type arena[K, V any] struct {
	slots   []slot[K, V]
	free    []uint32
	nextSeq uint64
}

func (a *arena[K, V]) live() int { return len(a.slots) - len(a.free) }

func (a *arena[K, V]) capacity() uint64 { return uint64(cap(a.slots)) }

func (a *arena[K, V]) reserve(n uint64) {
	if n <= uint64(cap(a.slots)) {
		return
	}

	grown := make([]slot[K, V], len(a.slots), n)
	copy(grown, a.slots)
	a.slots = grown
}

// alloc stores a new live slot and returns its ref.
func (a *arena[K, V]) alloc(key K, hash uint64, value V, meta uint64) ref {
	a.nextSeq++

	return a.allocCarried(slot[K, V]{
		key:   key,
		value: value,
		hash:  hash,
		meta:  meta,
		seq:   a.nextSeq,
		live:  true,
	})
}

// allocCarried stores a slot whose seq was assigned earlier (rebuilds
// and snapshot replay carry sequences over so tie-breaks survive).
func (a *arena[K, V]) allocCarried(s slot[K, V]) ref {
	s.live = true

	if s.seq > a.nextSeq {
		a.nextSeq = s.seq
	}

	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		s.tag = a.slots[idx].tag
		a.slots[idx] = s

		return ref{idx: idx, tag: s.tag}
	}

	a.slots = append(a.slots, s)

	return ref{idx: uint32(len(a.slots) - 1), tag: s.tag}
}

// release frees the slot addressed by r and returns its key and value.
func (a *arena[K, V]) release(r ref) (K, V) {
	s := a.slot(r)
	key, value := s.key, s.value

	var zeroK K
	var zeroV V

	s.key = zeroK
	s.value = zeroV
	s.meta = 0
	s.live = false
	s.tag++
	a.free = append(a.free, r.idx)

	return key, value
}

// slot dereferences r. A stale or out-of-range ref is an internal
// defect, never a caller error, and panics with a diagnostic.
func (a *arena[K, V]) slot(r ref) *slot[K, V] {
	if int(r.idx) >= len(a.slots) {
		panic(fmt.Sprintf("boxcache: internal: slot ref %d out of range (%d slots)", r.idx, len(a.slots)))
	}

	s := &a.slots[r.idx]
	if !s.live || s.tag != r.tag {
		panic(fmt.Sprintf("boxcache: internal: stale slot ref %d (tag %d, slot tag %d, live %t)", r.idx, r.tag, s.tag, s.live))
	}

	return s
}

// refAt rebuilds the ref for a known-live slot index.
func (a *arena[K, V]) refAt(idx uint32) ref {
	if int(idx) >= len(a.slots) || !a.slots[idx].live {
		panic(fmt.Sprintf("boxcache: internal: slot index %d is not live", idx))
	}

	return ref{idx: idx, tag: a.slots[idx].tag}
}

// Storage-order walk over live slots. This is the iteration order of
// the policy-free caches.

func (a *arena[K, V]) firstLive() (ref, bool) {
	return a.liveFrom(0)
}

func (a *arena[K, V]) liveAfter(r ref) (ref, bool) {
	return a.liveFrom(uint64(r.idx) + 1)
}

func (a *arena[K, V]) liveFrom(start uint64) (ref, bool) {
	for i := start; i < uint64(len(a.slots)); i++ {
		if a.slots[i].live {
			return ref{idx: uint32(i), tag: a.slots[i].tag}, true
		}
	}

	return ref{}, false
}

// nthLive returns the n-th live slot in storage order, 0-based.
func (a *arena[K, V]) nthLive(n int) (ref, bool) {
	seen := 0

	for i := range a.slots {
		if !a.slots[i].live {
			continue
		}

		if seen == n {
			return ref{idx: uint32(i), tag: a.slots[i].tag}, true
		}

		seen++
	}

	return ref{}, false
}

func (a *arena[K, V]) reset(reuse bool) {
	if !reuse {
		a.slots = nil
		a.free = nil
		a.nextSeq = 0

		return
	}

	clear(a.slots)
	a.slots = a.slots[:0]
	a.free = a.free[:0]
	a.nextSeq = 0
}
