// Package boxcache provides bounded in-memory caches with swappable
// eviction policies behind one shared engine.
//
// Seven flavors share the same surface and differ only in what gives
// way when a new key arrives at maxsize:
//   - [Cache]: nothing - a full cache refuses new keys
//   - [RRCache]: a uniformly random entry
//   - [FIFOCache]: the oldest entry
//   - [LRUCache]: the least recently used entry
//   - [LFUCache]: the least frequently used entry
//   - [TTLCache]: elapsed entries first (fixed per-cache lifetime)
//   - [VTTLCache]: elapsed first, then soonest-to-expire (per-entry
//     lifetimes)
//
// # Basic Usage
//
//	c, err := boxcache.NewLRU[string, int](1000, boxcache.Options{})
//	if err != nil {
//	    // only fails on invalid construction input
//	}
//
//	prev, replaced, err := c.Insert("a", 1)
//	v, ok, err := c.Get("a")
//
//	it := c.Items()
//	for it.Next() {
//	    item := it.Value()
//	    _ = item.Key
//	}
//	if err := it.Err(); err != nil {
//	    // cache mutated mid-iteration
//	}
//
// # Keys
//
// The comparable-key constructors ([New], [NewLRU], ...) hash with
// the runtime's maphash under a per-cache seed and compare with ==.
// The Keyed constructors accept [KeyOps] instead: caller-supplied
// hash and equality callbacks for key types the host defines. The
// callbacks run while the cache lock is held and must not call back
// into the cache; their failures surface as [ErrHostCallback] and
// leave the failed operation without effect.
//
// # Concurrency
//
// Every cache is safe for concurrent use. Each instance carries one
// internal lock; every operation takes it for its full duration, so
// compound operations like Insert-with-eviction are atomic. Iterators
// lock only per step and detect concurrent changes to membership or
// order instead of blocking them, failing with
// [ErrConcurrentModification].
//
// # Expiry
//
// The TTL flavors expire lazily: nothing runs in the background.
// Elapsed entries are dropped by the sweep that precedes mutating
// operations and snapshots, and by Get when it lands on one; Peek and
// Contains report them as misses without removing, and Len counts
// entries not yet swept.
//
// # Snapshots
//
// MarshalBinary/UnmarshalBinary round-trip a cache through gob,
// including maxsize and policy state (queue order, access counts,
// absolute expiries). SaveFile and LoadFile do the same through a
// file, written atomically. Snapshots are per-flavor: a cache only
// loads what the same flavor wrote.
package boxcache
