package boxcache

import "fmt"

// dequePos records where a ref currently sits in a deque: the sequence
// number of its cell and the deque epoch that issued it. Both are
// validated on every dereference; a mismatch is a bookkeeping defect,
// never a caller error.
type dequePos struct {
	seq   uint64
	epoch uint32
}

// deque keeps refs in insertion order with O(1) amortized front
// removal.
//
// Every element carries a monotonically increasing sequence number and
// the element with sequence s lives at buf[s-baseSeq]. Consuming the
// front only advances head - survivors keep their sequences, nothing is
// renumbered - and the consumed prefix is folded away once it dominates
// the buffer. Removing from the middle shifts whichever side is
// shorter and patches only the shifted range's positions.
type deque struct {
	buf     []ref
	head    int
	baseSeq uint64
	epoch   uint32
	pos     []dequePos
}

func (d *deque) len() int { return len(d.buf) - d.head }

func (d *deque) pushBack(r ref) {
	seq := d.baseSeq + uint64(len(d.buf))
	d.buf = append(d.buf, r)

	if n := int(r.idx) + 1; n > len(d.pos) {
		d.pos = append(d.pos, make([]dequePos, n-len(d.pos))...)
	}

	d.pos[r.idx] = dequePos{seq: seq, epoch: d.epoch}
}

func (d *deque) front() (ref, bool) {
	if d.len() == 0 {
		return ref{}, false
	}

	return d.buf[d.head], true
}

func (d *deque) back() (ref, bool) {
	if d.len() == 0 {
		return ref{}, false
	}

	return d.buf[len(d.buf)-1], true
}

// at returns the n-th element from the front, 0-based.
func (d *deque) at(n int) (ref, bool) {
	if n < 0 || n >= d.len() {
		return ref{}, false
	}

	return d.buf[d.head+n], true
}

func (d *deque) after(r ref) (ref, bool) {
	i := d.indexOf(r)
	if i+1 >= len(d.buf) {
		return ref{}, false
	}

	return d.buf[i+1], true
}

// indexOf returns the physical buffer index of r, validating the
// stored (sequence, epoch) pair against the deque's current state.
func (d *deque) indexOf(r ref) int {
	if int(r.idx) >= len(d.pos) {
		panic(fmt.Sprintf("boxcache: internal: no deque position for slot %d", r.idx))
	}

	p := d.pos[r.idx]
	if p.epoch != d.epoch {
		panic(fmt.Sprintf("boxcache: internal: deque position epoch %d, want %d", p.epoch, d.epoch))
	}

	i := int(p.seq - d.baseSeq)
	if i < d.head || i >= len(d.buf) || d.buf[i] != r {
		panic(fmt.Sprintf("boxcache: internal: stale deque position for slot %d", r.idx))
	}

	return i
}

func (d *deque) remove(r ref) {
	i := d.indexOf(r)
	n := len(d.buf)

	switch {
	case i == d.head:
		d.buf[i] = ref{}
		d.head++
	case i == n-1:
		d.buf = d.buf[:n-1]
	case i-d.head <= n-1-i:
		// Shift the shorter prefix right; each shifted element's
		// sequence grows by one.
		copy(d.buf[d.head+1:i+1], d.buf[d.head:i])

		for j := d.head + 1; j <= i; j++ {
			d.pos[d.buf[j].idx].seq++
		}

		d.buf[d.head] = ref{}
		d.head++
	default:
		// Shift the shorter suffix left; sequences shrink by one.
		copy(d.buf[i:], d.buf[i+1:])
		d.buf = d.buf[:n-1]

		for j := i; j < n-1; j++ {
			d.pos[d.buf[j].idx].seq--
		}
	}

	d.compact()
}

func (d *deque) moveToBack(r ref) {
	d.remove(r)
	d.pushBack(r)
}

// compact folds the consumed prefix away once it exceeds half the
// buffer. Element sequences do not change; the fold advances baseSeq
// by the folded length instead.
func (d *deque) compact() {
	if d.head < 32 || d.head*2 < len(d.buf) {
		return
	}

	n := copy(d.buf, d.buf[d.head:])
	clear(d.buf[n:len(d.buf)])
	d.buf = d.buf[:n]
	d.baseSeq += uint64(d.head)
	d.head = 0
}

func (d *deque) reset(reuse bool) {
	d.epoch++
	d.head = 0
	d.baseSeq = 0

	if !reuse {
		d.buf = nil
		d.pos = nil

		return
	}

	clear(d.buf)
	d.buf = d.buf[:0]
}

// fifoOrder evicts in insertion order. Lookups and updates never
// reposition an entry.
type fifoOrder struct {
	dq deque
}

var _ order = (*fifoOrder)(nil)

func (o *fifoOrder) onInsert(r ref)          { o.dq.pushBack(r) }
func (o *fifoOrder) onUpdate(ref, uint64)    {}
func (o *fifoOrder) onAccess(ref)            {}
func (o *fifoOrder) onRemove(r ref)          { o.dq.remove(r) }
func (o *fifoOrder) victim() (ref, bool)     { return o.dq.front() }
func (o *fifoOrder) first() (ref, bool)      { return o.dq.front() }
func (o *fifoOrder) after(r ref) (ref, bool) { return o.dq.after(r) }
func (o *fifoOrder) reset(reuse bool)        { o.dq.reset(reuse) }

// ttlOrder keeps fixed-lifetime entries in insertion order. Every
// entry gets the same lifetime, so insertion order is expiry order; an
// update re-stamps the expiry and moves the entry to the back, which
// keeps the order sorted without a comparator.
type ttlOrder[K, V any] struct {
	a   *arena[K, V]
	gen *uint64
	dq  deque
}

var _ order = (*ttlOrder[string, int])(nil)

func (o *ttlOrder[K, V]) onInsert(r ref) { o.dq.pushBack(r) }

func (o *ttlOrder[K, V]) onUpdate(r ref, meta uint64) {
	o.a.slot(r).meta = meta
	o.dq.moveToBack(r)
	*o.gen++
}

func (o *ttlOrder[K, V]) onAccess(ref)            {}
func (o *ttlOrder[K, V]) onRemove(r ref)          { o.dq.remove(r) }
func (o *ttlOrder[K, V]) victim() (ref, bool)     { return o.dq.front() }
func (o *ttlOrder[K, V]) first() (ref, bool)      { return o.dq.front() }
func (o *ttlOrder[K, V]) after(r ref) (ref, bool) { return o.dq.after(r) }
func (o *ttlOrder[K, V]) reset(reuse bool)        { o.dq.reset(reuse) }
