package boxcache

import (
	"fmt"
	"slices"
)

// heapOrder keeps refs in a flat vector that is only sorted when an
// ordered read needs it. Writes stay cheap: inserts append, access
// bookkeeping touches slot meta, and both just mark the vector dirty.
// The deferred sort runs before eviction candidates, positional reads,
// iteration and arbitrary removal. Executing it relocates the order, so
// it bumps the generation.
//
// LFU and VTTL share this structure and differ only in the comparator
// and in what Update/Access do to the slot meta word.
type heapOrder[K, V any] struct {
	a    *arena[K, V]
	gen  *uint64
	less func(x, y *slot[K, V]) bool

	// accessCounts: reads increment meta (LFU). Otherwise reads leave
	// the order alone and updates assign meta outright (VTTL).
	accessCounts bool

	order []ref
	head  int
	rank  []uint32 // slot idx -> absolute position in order; valid while clean
	dirty bool
}

var _ order = (*heapOrder[string, int])(nil)

func newLFUOrder[K, V any](a *arena[K, V], gen *uint64) *heapOrder[K, V] {
	return &heapOrder[K, V]{a: a, gen: gen, less: lfuLess[K, V], accessCounts: true}
}

func newVTTLOrder[K, V any](a *arena[K, V], gen *uint64) *heapOrder[K, V] {
	return &heapOrder[K, V]{a: a, gen: gen, less: vttlLess[K, V]}
}

// lfuLess orders by access frequency, then by insertion sequence, so
// equal frequencies evict oldest first, deterministically.
func lfuLess[K, V any](x, y *slot[K, V]) bool {
	if x.meta != y.meta {
		return x.meta < y.meta
	}

	return x.seq < y.seq
}

// vttlLess orders by absolute expiry, soonest first. Entries without
// an expiry (meta 0) sort after every expiring entry and are never
// time-evicted; among themselves they keep insertion order, as do
// entries sharing an expiry.
func vttlLess[K, V any](x, y *slot[K, V]) bool {
	switch {
	case x.meta == 0 && y.meta == 0:
		return x.seq < y.seq
	case x.meta == 0:
		return false
	case y.meta == 0:
		return true
	case x.meta != y.meta:
		return x.meta < y.meta
	default:
		return x.seq < y.seq
	}
}

func (h *heapOrder[K, V]) onInsert(r ref) {
	h.order = append(h.order, r)
	h.dirty = true
}

func (h *heapOrder[K, V]) onUpdate(r ref, meta uint64) {
	s := h.a.slot(r)
	if h.accessCounts {
		s.meta++
	} else {
		s.meta = meta
	}

	h.dirty = true
	*h.gen++
}

func (h *heapOrder[K, V]) onAccess(r ref) {
	if !h.accessCounts {
		return
	}

	h.a.slot(r).meta++
	h.dirty = true
	*h.gen++
}

func (h *heapOrder[K, V]) onRemove(r ref) {
	h.ensureSorted()

	p := h.position(r)
	n := len(h.order)

	// Remove from whichever end is cheaper to shift toward.
	switch {
	case p == h.head:
		h.order[p] = ref{}
		h.head++
	case p == n-1:
		h.order = h.order[:n-1]
	case p-h.head <= n-1-p:
		copy(h.order[h.head+1:p+1], h.order[h.head:p])

		for j := h.head + 1; j <= p; j++ {
			h.rank[h.order[j].idx] = uint32(j)
		}

		h.order[h.head] = ref{}
		h.head++
	default:
		copy(h.order[p:], h.order[p+1:])
		h.order = h.order[:n-1]

		for j := p; j < n-1; j++ {
			h.rank[h.order[j].idx] = uint32(j)
		}
	}

	h.compact()
}

func (h *heapOrder[K, V]) victim() (ref, bool) { return h.first() }

func (h *heapOrder[K, V]) first() (ref, bool) {
	h.ensureSorted()

	if h.len() == 0 {
		return ref{}, false
	}

	return h.order[h.head], true
}

func (h *heapOrder[K, V]) after(r ref) (ref, bool) {
	if h.dirty {
		panic("boxcache: internal: ordered step over a dirty heap")
	}

	p := h.position(r)
	if p+1 >= len(h.order) {
		return ref{}, false
	}

	return h.order[p+1], true
}

func (h *heapOrder[K, V]) reset(reuse bool) {
	h.head = 0
	h.dirty = false

	if !reuse {
		h.order = nil
		h.rank = nil

		return
	}

	clear(h.order)
	h.order = h.order[:0]
}

func (h *heapOrder[K, V]) len() int { return len(h.order) - h.head }

// atRank returns the element n positions from the minimum, 0-based,
// sorting first if needed.
func (h *heapOrder[K, V]) atRank(n int) (ref, bool) {
	h.ensureSorted()

	if n < 0 || n >= h.len() {
		return ref{}, false
	}

	return h.order[h.head+n], true
}

// ensureSorted executes a deferred sort. The fold-sort-rerank pass
// costs O(n log n); every read between two writes shares one pass.
func (h *heapOrder[K, V]) ensureSorted() {
	if !h.dirty {
		return
	}

	n := copy(h.order, h.order[h.head:])
	clear(h.order[n:len(h.order)])
	h.order = h.order[:n]
	h.head = 0

	slices.SortFunc(h.order, func(x, y ref) int {
		sx, sy := h.a.slot(x), h.a.slot(y)

		switch {
		case h.less(sx, sy):
			return -1
		case h.less(sy, sx):
			return 1
		default:
			return 0
		}
	})

	if need := len(h.a.slots); need > len(h.rank) {
		h.rank = append(h.rank, make([]uint32, need-len(h.rank))...)
	}

	for j, r := range h.order {
		h.rank[r.idx] = uint32(j)
	}

	h.dirty = false
	*h.gen++
}

// position returns r's absolute index in order, validating the rank
// sidecar entry. Callers must have sorted first.
func (h *heapOrder[K, V]) position(r ref) int {
	if h.dirty {
		panic("boxcache: internal: heap position read while dirty")
	}

	if int(r.idx) >= len(h.rank) {
		panic(fmt.Sprintf("boxcache: internal: no heap rank for slot %d", r.idx))
	}

	p := int(h.rank[r.idx])
	if p < h.head || p >= len(h.order) || h.order[p] != r {
		panic(fmt.Sprintf("boxcache: internal: stale heap rank for slot %d", r.idx))
	}

	return p
}

func (h *heapOrder[K, V]) compact() {
	if h.head < 32 || h.head*2 < len(h.order) {
		return
	}

	n := copy(h.order, h.order[h.head:])
	clear(h.order[n:len(h.order)])
	h.order = h.order[:n]

	if !h.dirty {
		for j := range n {
			h.rank[h.order[j].idx] = uint32(j)
		}
	}

	h.head = 0
}
