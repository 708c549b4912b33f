package boxcache

// bucket maps one key hash to its arena slot. idxPlusOne stores the
// slot index offset by one so the zero value means "empty bucket"; tag
// carries the slot's tag so evictions and pops can locate a bucket by
// ref identity without running key callbacks.
type bucket struct {
	hash       uint64
	idxPlusOne uint32
	tag        uint32
}

func (b bucket) empty() bool { return b.idxPlusOne == 0 }

func (b bucket) ref() ref { return ref{idx: b.idxPlusOne - 1, tag: b.tag} }

// table is a tombstone-free open-addressing index from key hash to
// arena slot. Probing is linear over a power-of-two bucket count;
// deletion backward-shifts the remainder of the probe cluster instead
// of leaving tombstones, so probe chains never accumulate dead steps.
// Load factor stays at or below 1/2.
type table struct {
	buckets []bucket
	mask    uint64
	used    int
}

const minBuckets = 8

// nextPow2 returns the smallest power of two >= n.
func nextPow2(n uint64) uint64 {
	if n == 0 {
		return 1
	}

	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32

	return n + 1
}

// bucketCountFor sizes the table for the given entry count at load
// factor 1/2. Callers bound entries by maxEntries, so the doubling
// cannot overflow.
func bucketCountFor(entries uint64) uint64 {
	n := nextPow2(entries * 2)
	if n < minBuckets {
		n = minBuckets
	}

	return n
}

func (t *table) init(bucketCount uint64) {
	t.buckets = make([]bucket, bucketCount)
	t.mask = bucketCount - 1
	t.used = 0
}

// find probes for hash, calling eq on every hash-matching candidate.
// On a hit it returns the bucket index holding the key. On a miss it
// returns the index of the empty bucket that terminated the probe -
// the position an insert of this key would use, valid until the next
// table mutation.
func (t *table) find(hash uint64, eq func(ref) (bool, error)) (idx uint64, found bool, err error) {
	start := hash & t.mask

	for i := uint64(0); i <= t.mask; i++ {
		idx := (start + i) & t.mask

		b := t.buckets[idx]
		if b.empty() {
			return idx, false, nil
		}

		if b.hash != hash {
			continue
		}

		ok, err := eq(b.ref())
		if err != nil {
			return 0, false, err
		}

		if ok {
			return idx, true, nil
		}
	}

	// The load factor never reaches 1, so every probe hits an empty
	// bucket eventually.
	panic("boxcache: internal: index table has no empty bucket")
}

// findInsert returns the empty bucket an insert of hash would use. The
// key must be known absent; no equality callbacks run.
func (t *table) findInsert(hash uint64) uint64 {
	idx := hash & t.mask
	for !t.buckets[idx].empty() {
		idx = (idx + 1) & t.mask
	}

	return idx
}

// findRef locates the bucket holding exactly r, using the stored hash.
// Used by evictions, pops and sweeps, which already hold a ref and must
// not run key callbacks.
func (t *table) findRef(hash uint64, r ref) (uint64, bool) {
	start := hash & t.mask

	for i := uint64(0); i <= t.mask; i++ {
		idx := (start + i) & t.mask

		b := t.buckets[idx]
		if b.empty() {
			return 0, false
		}

		if b.hash == hash && b.idxPlusOne == r.idx+1 && b.tag == r.tag {
			return idx, true
		}
	}

	return 0, false
}

func (t *table) set(idx uint64, hash uint64, r ref) {
	t.buckets[idx] = bucket{hash: hash, idxPlusOne: r.idx + 1, tag: r.tag}
	t.used++
}

// removeAt empties bucket i and backward-shifts the tail of its probe
// cluster so no probe chain breaks. An entry at j may move into the
// hole at i when its ideal bucket lies cyclically at or before i.
func (t *table) removeAt(i uint64) {
	t.used--

	for {
		t.buckets[i] = bucket{}

		j := i

		for {
			j = (j + 1) & t.mask

			b := t.buckets[j]
			if b.empty() {
				return
			}

			ideal := b.hash & t.mask
			if ((j-ideal)&t.mask) >= ((j-i)&t.mask) {
				t.buckets[i] = b
				i = j

				break
			}
		}
	}
}

// needsGrow reports whether one more entry would push the load factor
// past 1/2.
func (t *table) needsGrow() bool {
	return uint64(t.used+1)*2 > uint64(len(t.buckets))
}

// rebuild re-places every live bucket into a table of the given size.
// Hashes are stored per bucket, so no key callbacks run.
func (t *table) rebuild(bucketCount uint64) {
	old := t.buckets
	t.init(bucketCount)

	for _, b := range old {
		if !b.empty() {
			t.place(b)
		}
	}
}

// place inserts a bucket known to be absent.
func (t *table) place(b bucket) {
	idx := b.hash & t.mask
	for !t.buckets[idx].empty() {
		idx = (idx + 1) & t.mask
	}

	t.buckets[idx] = b
	t.used++
}

func (t *table) reset(reuse bool) {
	if !reuse {
		t.init(minBuckets)

		return
	}

	clear(t.buckets)
	t.used = 0
}
