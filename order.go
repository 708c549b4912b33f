package boxcache

import "math/rand/v2"

// order is the policy side of the engine: it maintains an eviction
// order over arena refs while the engine owns hashing, the index table,
// slot storage and locking. Implementations bump the engine's
// generation counter themselves whenever they relocate entries or
// promote one (the engine bumps for cardinality changes).
//
// All methods run under the cache lock.
type order interface {
	// onInsert links a freshly allocated slot.
	onInsert(r ref)

	// onUpdate records a re-insert of an existing key. meta is the
	// incoming policy meta (fresh expiry for TTL/VTTL); orders that
	// track frequency increment instead of assigning.
	onUpdate(r ref, meta uint64)

	// onAccess records a promoting read.
	onAccess(r ref)

	// onRemove unlinks a slot that is about to be released.
	onRemove(r ref)

	// victim nominates the next entry to evict, if the policy evicts.
	victim() (ref, bool)

	// first and after walk entries in policy order.
	first() (ref, bool)
	after(r ref) (ref, bool)

	reset(reuse bool)
}

// arenaOrder is the no-policy order: no bookkeeping, no victim.
// Iteration is slot storage order.
type arenaOrder[K, V any] struct {
	a *arena[K, V]
}

var _ order = (*arenaOrder[string, int])(nil)

func (o *arenaOrder[K, V]) onInsert(ref)            {}
func (o *arenaOrder[K, V]) onUpdate(ref, uint64)    {}
func (o *arenaOrder[K, V]) onAccess(ref)            {}
func (o *arenaOrder[K, V]) onRemove(ref)            {}
func (o *arenaOrder[K, V]) victim() (ref, bool)     { return ref{}, false }
func (o *arenaOrder[K, V]) first() (ref, bool)      { return o.a.firstLive() }
func (o *arenaOrder[K, V]) after(r ref) (ref, bool) { return o.a.liveAfter(r) }
func (o *arenaOrder[K, V]) reset(bool)              {}

// randomOrder evicts a uniformly random live entry.
type randomOrder[K, V any] struct {
	arenaOrder[K, V]
	rng *rand.Rand
}

var _ order = (*randomOrder[string, int])(nil)

func newRandomOrder[K, V any](a *arena[K, V]) *randomOrder[K, V] {
	return &randomOrder[K, V]{
		arenaOrder: arenaOrder[K, V]{a: a},
		rng:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

func (o *randomOrder[K, V]) victim() (ref, bool) {
	n := o.a.live()
	if n == 0 {
		return ref{}, false
	}

	return o.a.nthLive(o.rng.IntN(n))
}
