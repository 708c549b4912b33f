package boxcache

import (
	"runtime"
	"sync/atomic"
)

// Locking architecture:
//
// Every cache instance owns exactly one mutex guarding all of its state
// (index table, slot arena, order structure, generation counter). The
// lock is deliberately simple: uncontended acquire and release are one
// CAS each, short contention spins, and long contention parks on a
// channel semaphore so waiters cost nothing while they sleep.
//
// The state word packs a locked bit in bit 0 and a parked-waiter count
// in the remaining bits. Unlock with waiters present hands the lock
// directly to one waiter: the locked bit stays set on the waiter's
// behalf and only the waiter count changes, so a handed-off lock can
// never be barged by a newcomer.
//
// The lock is not re-entrant. Key callbacks run under it, which is why
// [KeyOps] documents that callbacks must not touch their own cache.

const (
	mutexLocked     uint32 = 1 << 0
	mutexWaiterUnit uint32 = 1 << 1

	// mutexSpinBudget bounds how many scheduler yields a contended
	// goroutine burns before parking. Critical sections here are short
	// (no I/O, no allocation spikes), so a held lock is usually released
	// within a few yields.
	mutexSpinBudget = 16
)

// mutex is a spin-then-park mutual exclusion lock.
//
// The zero value is not ready to use; call makeMutex.
type mutex struct {
	state atomic.Uint32
	wake  chan struct{}
}

func makeMutex() mutex {
	// Capacity 1 suffices: handoff keeps the locked bit set, so a second
	// unlock cannot produce a second in-flight token before the first
	// woken waiter has consumed its own.
	return mutex{wake: make(chan struct{}, 1)}
}

func (m *mutex) lock() {
	if m.state.CompareAndSwap(0, mutexLocked) {
		return
	}

	m.lockSlow()
}

func (m *mutex) lockSlow() {
	for spin := 0; spin < mutexSpinBudget; spin++ {
		if m.tryLock() {
			return
		}

		runtime.Gosched()
	}

	// Register as a parked waiter, then sleep until an unlock hands the
	// lock over. The handoff transfers ownership: no re-acquire loop.
	for {
		s := m.state.Load()
		if s&mutexLocked == 0 {
			if m.state.CompareAndSwap(s, s|mutexLocked) {
				return
			}

			continue
		}

		if m.state.CompareAndSwap(s, s+mutexWaiterUnit) {
			break
		}
	}

	<-m.wake
}

// tryLock acquires the lock if it is free. It never blocks and never
// spins.
func (m *mutex) tryLock() bool {
	for {
		s := m.state.Load()
		if s&mutexLocked != 0 {
			return false
		}

		if m.state.CompareAndSwap(s, s|mutexLocked) {
			return true
		}
	}
}

func (m *mutex) unlock() {
	for {
		s := m.state.Load()
		if s&mutexLocked == 0 {
			panic("boxcache: internal: unlock of unlocked mutex")
		}

		if s>>1 == 0 {
			if m.state.CompareAndSwap(s, 0) {
				return
			}

			continue
		}

		// Waiters present: keep the locked bit, consume one waiter, wake
		// exactly one goroutine.
		if m.state.CompareAndSwap(s, s-mutexWaiterUnit) {
			m.wake <- struct{}{}

			return
		}
	}
}
