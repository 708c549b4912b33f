package boxcache

import "fmt"

// invalidIdx terminates recency chains.
const invalidIdx = ^uint32(0)

// lruNode is one link of the recency chain, stored in a sidecar slice
// indexed by arena slot. The tag mirrors the slot tag so a stale ref is
// caught at dereference.
type lruNode struct {
	prev   uint32
	next   uint32
	tag    uint32
	linked bool
}

// lruOrder is an intrusive doubly-linked list over arena slot indices:
// head = least recently used, tail = most recently used. Links live in
// a sidecar slice, so linking allocates nothing per entry and holds no
// pointers.
type lruOrder struct {
	gen   *uint64
	nodes []lruNode
	head  uint32
	tail  uint32
	size  int
}

var _ order = (*lruOrder)(nil)

func newLRUOrder(gen *uint64) *lruOrder {
	return &lruOrder{gen: gen, head: invalidIdx, tail: invalidIdx}
}

func (o *lruOrder) onInsert(r ref) { o.pushTail(r) }

func (o *lruOrder) onUpdate(r ref, _ uint64) {
	o.moveToTail(r)
	*o.gen++
}

func (o *lruOrder) onAccess(r ref) {
	o.moveToTail(r)
	*o.gen++
}

func (o *lruOrder) onRemove(r ref) { o.unlink(r) }

func (o *lruOrder) victim() (ref, bool) { return o.front() }

func (o *lruOrder) first() (ref, bool) { return o.front() }

func (o *lruOrder) after(r ref) (ref, bool) {
	n := o.node(r)
	if n.next == invalidIdx {
		return ref{}, false
	}

	return ref{idx: n.next, tag: o.nodes[n.next].tag}, true
}

func (o *lruOrder) reset(reuse bool) {
	if reuse {
		clear(o.nodes)
		o.nodes = o.nodes[:0]
	} else {
		o.nodes = nil
	}

	o.head = invalidIdx
	o.tail = invalidIdx
	o.size = 0
}

func (o *lruOrder) front() (ref, bool) {
	if o.head == invalidIdx {
		return ref{}, false
	}

	return ref{idx: o.head, tag: o.nodes[o.head].tag}, true
}

func (o *lruOrder) backRef() (ref, bool) {
	if o.tail == invalidIdx {
		return ref{}, false
	}

	return ref{idx: o.tail, tag: o.nodes[o.tail].tag}, true
}

func (o *lruOrder) pushTail(r ref) {
	if n := int(r.idx) + 1; n > len(o.nodes) {
		o.nodes = append(o.nodes, make([]lruNode, n-len(o.nodes))...)
	}

	o.nodes[r.idx] = lruNode{prev: o.tail, next: invalidIdx, tag: r.tag, linked: true}

	if o.tail != invalidIdx {
		o.nodes[o.tail].next = r.idx
	} else {
		o.head = r.idx
	}

	o.tail = r.idx
	o.size++
}

func (o *lruOrder) moveToTail(r ref) {
	if o.tail == r.idx {
		return
	}

	o.unlink(r)
	o.pushTail(r)
}

func (o *lruOrder) unlink(r ref) {
	n := o.node(r)

	if n.prev != invalidIdx {
		o.nodes[n.prev].next = n.next
	} else {
		o.head = n.next
	}

	if n.next != invalidIdx {
		o.nodes[n.next].prev = n.prev
	} else {
		o.tail = n.prev
	}

	o.nodes[r.idx].linked = false
	o.size--
}

func (o *lruOrder) node(r ref) lruNode {
	if int(r.idx) >= len(o.nodes) {
		panic(fmt.Sprintf("boxcache: internal: no recency link for slot %d", r.idx))
	}

	n := o.nodes[r.idx]
	if !n.linked || n.tag != r.tag {
		panic(fmt.Sprintf("boxcache: internal: stale recency link for slot %d", r.idx))
	}

	return n
}
