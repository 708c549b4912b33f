package testutil

import (
	"slices"
	"time"

	"github.com/calvinalkan/boxcache"
)

// Policy selects which eviction semantics the model reproduces. The
// random policy is deliberately absent: its victim choice cannot be
// predicted, so random-replacement tests assert invariants instead of
// comparing against a model.
type Policy uint8

const (
	PolicyNone Policy = iota
	PolicyFIFO
	PolicyLRU
	PolicyLFU
	PolicyTTL
	PolicyVTTL
)

// Entry is one modeled cache entry.
type Entry struct {
	Key    string
	Value  int64
	Expiry time.Time // zero = never expires
	Freq   uint64
	Seq    uint64
}

// Model is the in-memory reference a real cache is compared against.
// It favors obviousness over speed: a plain slice, linear scans, and
// sorting on demand. Both sides must share one [Clock] so expiry
// stamps agree to the nanosecond.
type Model struct {
	Policy  Policy
	MaxSize int // 0 = unbounded
	TTL     time.Duration
	Clock   *Clock

	entries []Entry
	seq     uint64
}

// NewModel builds a model mirroring a real cache constructed with the
// same bounds. ttl applies to PolicyTTL only.
func NewModel(policy Policy, maxSize int, ttl time.Duration, clock *Clock) *Model {
	return &Model{Policy: policy, MaxSize: maxSize, TTL: ttl, Clock: clock}
}

// Len counts stored entries, elapsed-but-unswept ones included, the
// way the real Len does.
func (m *Model) Len() int { return len(m.entries) }

// Keys returns the stored keys in no particular order.
func (m *Model) Keys() []string {
	out := make([]string, len(m.entries))
	for i := range m.entries {
		out[i] = m.entries[i].Key
	}

	return out
}

// OrderDeterministic reports whether iteration and pop order can be
// predicted. The policy-free cache walks storage order, which depends
// on slot recycling; those comparisons fall back to set equality.
func (m *Model) OrderDeterministic() bool { return m.Policy != PolicyNone }

// Expired reports whether e has elapsed at the model clock.
func (m *Model) Expired(e Entry) bool {
	return !e.Expiry.IsZero() && !e.Expiry.After(m.Clock.Now())
}

func (m *Model) index(key string) int {
	for i := range m.entries {
		if m.entries[i].Key == key {
			return i
		}
	}

	return -1
}

// Sweep removes every elapsed entry and reports how many went,
// mirroring the sweep the expiring caches run before mutating
// operations.
func (m *Model) Sweep() int {
	if m.Policy != PolicyTTL && m.Policy != PolicyVTTL {
		return 0
	}

	kept := m.entries[:0]
	removed := 0

	for _, e := range m.entries {
		if m.Expired(e) {
			removed++
			continue
		}

		kept = append(kept, e)
	}

	m.entries = kept

	return removed
}

// Insert mirrors the real Insert: sweep, update-in-place on an
// existing key, otherwise evict the victim if full and append. ttl is
// honored by PolicyVTTL only.
func (m *Model) Insert(key string, value int64, ttl time.Duration) (int64, bool, error) {
	m.Sweep()

	if i := m.index(key); i >= 0 {
		prev := m.entries[i].Value
		m.entries[i].Value = value
		m.touchUpdate(i, ttl)

		return prev, true, nil
	}

	if m.MaxSize > 0 && len(m.entries) >= m.MaxSize {
		vi := m.victim()
		if vi < 0 {
			return 0, false, boxcache.ErrCapacityExceeded
		}

		m.entries = slices.Delete(m.entries, vi, vi+1)
	}

	m.seq++
	e := Entry{Key: key, Value: value, Seq: m.seq}

	switch m.Policy {
	case PolicyTTL:
		e.Expiry = m.Clock.Now().Add(m.TTL)
	case PolicyVTTL:
		if ttl > 0 {
			e.Expiry = m.Clock.Now().Add(ttl)
		}
	}

	m.entries = append(m.entries, e)

	return 0, false, nil
}

// touchUpdate applies the policy effect of updating an existing entry.
func (m *Model) touchUpdate(i int, ttl time.Duration) {
	switch m.Policy {
	case PolicyLRU:
		m.moveToEnd(i)
	case PolicyLFU:
		m.entries[i].Freq++
	case PolicyTTL:
		m.entries[i].Expiry = m.Clock.Now().Add(m.TTL)
		m.moveToEnd(i)
	case PolicyVTTL:
		if ttl > 0 {
			m.entries[i].Expiry = m.Clock.Now().Add(ttl)
		} else {
			m.entries[i].Expiry = time.Time{}
		}
	case PolicyNone, PolicyFIFO:
	}
}

// Get mirrors the promoting read: an elapsed hit is removed and
// reported as a miss, a live hit promotes under LRU and LFU.
func (m *Model) Get(key string) (int64, bool) {
	i := m.index(key)
	if i < 0 {
		return 0, false
	}

	if m.Expired(m.entries[i]) {
		m.entries = slices.Delete(m.entries, i, i+1)
		return 0, false
	}

	v := m.entries[i].Value

	switch m.Policy {
	case PolicyLRU:
		m.moveToEnd(i)
	case PolicyLFU:
		m.entries[i].Freq++
	case PolicyNone, PolicyFIFO, PolicyTTL, PolicyVTTL:
	}

	return v, true
}

// Peek reads without promoting; elapsed entries read as absent but
// stay for the sweep.
func (m *Model) Peek(key string) (int64, bool) {
	i := m.index(key)
	if i < 0 || m.Expired(m.entries[i]) {
		return 0, false
	}

	return m.entries[i].Value, true
}

// Remove deletes key; an elapsed entry is deleted but reported as a
// miss.
func (m *Model) Remove(key string) (int64, bool) {
	i := m.index(key)
	if i < 0 {
		return 0, false
	}

	e := m.entries[i]
	m.entries = slices.Delete(m.entries, i, i+1)

	if m.Expired(e) {
		return 0, false
	}

	return e.Value, true
}

// PopItem mirrors the policy-order pop. For PolicyNone the choice is
// storage-dependent in the real cache; callers use membership checks
// instead.
func (m *Model) PopItem() (string, int64, bool) {
	m.Sweep()

	if len(m.entries) == 0 {
		return "", 0, false
	}

	vi := m.victim()
	if vi < 0 {
		vi = 0
	}

	e := m.entries[vi]
	m.entries = slices.Delete(m.entries, vi, vi+1)

	return e.Key, e.Value, true
}

// Drain pops up to n entries in policy order.
func (m *Model) Drain(n int) []Entry {
	m.Sweep()

	var out []Entry

	for len(out) < n && len(m.entries) > 0 {
		vi := m.victim()
		if vi < 0 {
			vi = 0
		}

		out = append(out, m.entries[vi])
		m.entries = slices.Delete(m.entries, vi, vi+1)
	}

	return out
}

// Clear empties the model. Sequence numbers restart, matching the
// real cache's storage reset.
func (m *Model) Clear() {
	m.entries = nil
	m.seq = 0
}

// Ordered returns the entries in the policy's iteration order:
// next-evicted first. PolicyNone has no defined order; callers go
// through set comparison instead.
func (m *Model) Ordered() []Entry {
	out := slices.Clone(m.entries)

	switch m.Policy {
	case PolicyLFU:
		slices.SortFunc(out, func(a, b Entry) int {
			if a.Freq != b.Freq {
				if a.Freq < b.Freq {
					return -1
				}
				return 1
			}

			return seqCmp(a, b)
		})
	case PolicyVTTL:
		slices.SortFunc(out, vttlCmp)
	case PolicyNone, PolicyFIFO, PolicyLRU, PolicyTTL:
	}

	return out
}

// victim returns the index of the entry the policy would evict, -1
// when the policy refuses to evict.
func (m *Model) victim() int {
	if len(m.entries) == 0 || m.Policy == PolicyNone {
		return -1
	}

	switch m.Policy {
	case PolicyFIFO, PolicyLRU, PolicyTTL:
		return 0
	case PolicyLFU:
		best := 0
		for i := 1; i < len(m.entries); i++ {
			if m.entries[i].Freq < m.entries[best].Freq ||
				(m.entries[i].Freq == m.entries[best].Freq && m.entries[i].Seq < m.entries[best].Seq) {
				best = i
			}
		}

		return best
	case PolicyVTTL:
		best := 0
		for i := 1; i < len(m.entries); i++ {
			if vttlCmp(m.entries[i], m.entries[best]) < 0 {
				best = i
			}
		}

		return best
	case PolicyNone:
	}

	return -1
}

func (m *Model) moveToEnd(i int) {
	e := m.entries[i]
	m.entries = slices.Delete(m.entries, i, i+1)
	m.entries = append(m.entries, e)
}

func seqCmp(a, b Entry) int {
	switch {
	case a.Seq < b.Seq:
		return -1
	case a.Seq > b.Seq:
		return 1
	default:
		return 0
	}
}

// vttlCmp orders soonest expiry first, no-expiry entries last, ties
// by insertion sequence.
func vttlCmp(a, b Entry) int {
	switch {
	case a.Expiry.IsZero() && b.Expiry.IsZero():
		return seqCmp(a, b)
	case a.Expiry.IsZero():
		return 1
	case b.Expiry.IsZero():
		return -1
	case a.Expiry.Before(b.Expiry):
		return -1
	case b.Expiry.Before(a.Expiry):
		return 1
	default:
		return seqCmp(a, b)
	}
}
