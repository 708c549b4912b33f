package boxcache

// Iter walks a cache view in policy order. It holds the cache lock
// only inside Next, so the cache stays usable while an iterator is
// open. Any concurrent change to membership or order invalidates the
// iterator and the next call to Next stops with
// [ErrConcurrentModification]; replacing a value in place does not
// reorder the non-promoting policies and leaves iterators valid.
//
// Usage follows the scanner pattern:
//
//	it := c.Items()
//	for it.Next() {
//		item := it.Value()
//		...
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
//
// An Iter is single-goroutine; hand each goroutine its own.
type Iter[T any] struct {
	next func() (T, bool, error)
	cur  T
	err  error
	done bool
}

// Next advances the iterator. It returns false when the walk is
// exhausted or fails; Err distinguishes the two.
func (it *Iter[T]) Next() bool {
	if it.done {
		return false
	}

	v, ok, err := it.next()
	if err != nil || !ok {
		it.err = err
		it.done = true

		return false
	}

	it.cur = v

	return true
}

// Value returns the element produced by the latest successful Next.
func (it *Iter[T]) Value() T { return it.cur }

// Err reports why the walk stopped early: [ErrConcurrentModification]
// if the cache mutated mid-iteration, nil on clean exhaustion.
func (it *Iter[T]) Err() error { return it.err }

// stepperLocked builds the step function behind every iterator. It is
// created while the caller holds the lock and after any deferred work
// (sweeps, pending sorts) has run, so the captured generation reflects
// the state the walk will see. Each step re-locks, re-validates the
// generation, advances in policy order and projects the slot via visit
// before unlocking; keys and values are copied out under the lock.
func (e *engine[K, V]) stepperLocked() func(visit func(*slot[K, V])) (bool, error) {
	genAt := e.gen
	var cur ref
	started := false

	return func(visit func(*slot[K, V])) (bool, error) {
		e.mu.lock()
		defer e.mu.unlock()

		if e.gen != genAt {
			return false, ErrConcurrentModification
		}

		var r ref
		var ok bool
		if started {
			r, ok = e.ord.after(cur)
		} else {
			r, ok = e.ord.first()
			started = true
		}

		if !ok {
			return false, nil
		}

		cur = r
		visit(e.arena.slot(r))

		return true, nil
	}
}

func itemsIter[K, V any](e *engine[K, V]) *Iter[Item[K, V]] {
	step := e.stepperLocked()

	return &Iter[Item[K, V]]{next: func() (Item[K, V], bool, error) {
		var out Item[K, V]

		ok, err := step(func(s *slot[K, V]) {
			out = Item[K, V]{Key: s.key, Value: s.value}
		})

		return out, ok, err
	}}
}

func keysIter[K, V any](e *engine[K, V]) *Iter[K] {
	step := e.stepperLocked()

	return &Iter[K]{next: func() (K, bool, error) {
		var out K

		ok, err := step(func(s *slot[K, V]) { out = s.key })

		return out, ok, err
	}}
}

func valuesIter[K, V any](e *engine[K, V]) *Iter[V] {
	step := e.stepperLocked()

	return &Iter[V]{next: func() (V, bool, error) {
		var out V

		ok, err := step(func(s *slot[K, V]) { out = s.value })

		return out, ok, err
	}}
}
