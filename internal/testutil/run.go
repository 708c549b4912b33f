package testutil

import (
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/boxcache"
)

// Driver adapts one cache flavor to the behavior harness. The flavors
// share a method set but not a Go interface (the per-entry-ttl Insert
// takes a lifetime), so each test wires closures around its concrete
// cache. Non-expiring flavors ignore the ttl argument.
type Driver struct {
	Insert   func(key string, value int64, ttl time.Duration) (int64, bool, error)
	Get      func(key string) (int64, bool, error)
	Peek     func(key string) (int64, bool, error)
	Contains func(key string) (bool, error)
	Remove   func(key string) (int64, bool, error)
	Pop      func() (string, int64, error)
	Drain    func(n int) []boxcache.Item[string, int64]
	Clear    func(reuse bool)
	Shrink   func()
	Len      func() int
	Items    func() *boxcache.Iter[boxcache.Item[string, int64]]
}

// RunConfig bounds a behavior run.
type RunConfig struct {
	MaxOps        int
	CompareEveryN int
}

// RunModel drives the real cache and the model through the same
// operation sequence, comparing every result and, periodically, the
// full state. The real cache must read time from the model's clock so
// expiry stamps agree exactly.
func RunModel(t *testing.T, drv Driver, m *Model, gen *OpGenerator, cfg RunConfig) {
	t.Helper()

	steps := 0

	for gen.HasMore() && steps < cfg.MaxOps {
		op := gen.NextOp(m)
		applyOp(t, drv, m, op, steps)
		steps++

		if cfg.CompareEveryN > 0 && steps%cfg.CompareEveryN == 0 {
			CompareState(t, drv, m, fmt.Sprintf("after op %d (%s)", steps-1, op))
		}
	}

	CompareState(t, drv, m, fmt.Sprintf("after %d ops", steps))
}

func applyOp(t *testing.T, drv Driver, m *Model, op Op, step int) {
	t.Helper()

	ctx := fmt.Sprintf("op %d: %s", step, op)

	switch op.Kind {
	case OpInsert:
		prevReal, replacedReal, errReal := drv.Insert(op.Key, op.Value, op.TTL)
		prevModel, replacedModel, errModel := m.Insert(op.Key, op.Value, op.TTL)

		if errModel != nil {
			require.ErrorIs(t, errReal, boxcache.ErrCapacityExceeded, ctx)
			return
		}

		require.NoError(t, errReal, ctx)
		require.Equal(t, replacedModel, replacedReal, ctx)

		if replacedModel {
			require.Equal(t, prevModel, prevReal, ctx)
		}

	case OpGet:
		valReal, okReal, errReal := drv.Get(op.Key)
		require.NoError(t, errReal, ctx)

		valModel, okModel := m.Get(op.Key)
		require.Equal(t, okModel, okReal, ctx)

		if okModel {
			require.Equal(t, valModel, valReal, ctx)
		}

	case OpPeek:
		valReal, okReal, errReal := drv.Peek(op.Key)
		require.NoError(t, errReal, ctx)

		valModel, okModel := m.Peek(op.Key)
		require.Equal(t, okModel, okReal, ctx)

		if okModel {
			require.Equal(t, valModel, valReal, ctx)
		}

	case OpContains:
		okReal, errReal := drv.Contains(op.Key)
		require.NoError(t, errReal, ctx)

		_, okModel := m.Peek(op.Key)
		require.Equal(t, okModel, okReal, ctx)

	case OpRemove:
		valReal, okReal, errReal := drv.Remove(op.Key)
		require.NoError(t, errReal, ctx)

		valModel, okModel := m.Remove(op.Key)
		require.Equal(t, okModel, okReal, ctx)

		if okModel {
			require.Equal(t, valModel, valReal, ctx)
		}

	case OpPop:
		keyReal, valReal, errReal := drv.Pop()

		if m.OrderDeterministic() {
			keyModel, valModel, okModel := m.PopItem()
			if !okModel {
				require.ErrorIs(t, errReal, boxcache.ErrKeyNotFound, ctx)
				return
			}

			require.NoError(t, errReal, ctx)
			require.Equal(t, keyModel, keyReal, ctx)
			require.Equal(t, valModel, valReal, ctx)

			return
		}

		// Storage-order pop: assert membership and mirror the removal.
		m.Sweep()

		if m.Len() == 0 {
			require.ErrorIs(t, errReal, boxcache.ErrKeyNotFound, ctx)
			return
		}

		require.NoError(t, errReal, ctx)

		valModel, okModel := m.Remove(keyReal)
		require.True(t, okModel, "%s: popped key %q not in model", ctx, keyReal)
		require.Equal(t, valModel, valReal, ctx)

	case OpDrain:
		itemsReal := drv.Drain(op.N)

		if m.OrderDeterministic() {
			entriesModel := m.Drain(op.N)
			require.Len(t, itemsReal, len(entriesModel), ctx)

			for i := range entriesModel {
				require.Equal(t, entriesModel[i].Key, itemsReal[i].Key, ctx)
				require.Equal(t, entriesModel[i].Value, itemsReal[i].Value, ctx)
			}

			return
		}

		// Storage-order drain: mirror whatever the real cache chose.
		m.Sweep()
		require.Len(t, itemsReal, min(op.N, m.Len()), ctx)

		for _, item := range itemsReal {
			valModel, okModel := m.Remove(item.Key)
			require.True(t, okModel, "%s: drained key %q not in model", ctx, item.Key)
			require.Equal(t, valModel, item.Value, ctx)
		}

	case OpClear:
		drv.Clear(op.Reuse)
		m.Clear()

	case OpShrink:
		drv.Shrink()
		m.Sweep()

	case OpAdvance:
		m.Clock.Advance(op.Advance)

	case OpIterate:
		m.Sweep()
		compareItems(t, drv, m, ctx)
	}
}

// CompareState checks cardinality, membership, values and iteration
// order against the model.
func CompareState(t *testing.T, drv Driver, m *Model, ctx string) {
	t.Helper()

	require.Equal(t, m.Len(), drv.Len(), "%s: cardinality mismatch", ctx)

	for _, e := range m.entries {
		okReal, err := drv.Contains(e.Key)
		require.NoError(t, err, ctx)
		require.Equal(t, !m.Expired(e), okReal, "%s: membership mismatch for %q", ctx, e.Key)

		if m.Expired(e) {
			continue
		}

		valReal, okReal, err := drv.Peek(e.Key)
		require.NoError(t, err, ctx)
		require.True(t, okReal, "%s: %q present in model, absent in cache", ctx, e.Key)
		require.Equal(t, e.Value, valReal, "%s: value mismatch for %q", ctx, e.Key)
	}

	// Iteration sweeps the expiring flavors; mirror before comparing.
	m.Sweep()
	compareItems(t, drv, m, ctx)
}

func compareItems(t *testing.T, drv Driver, m *Model, ctx string) {
	t.Helper()

	it := drv.Items()

	var got []boxcache.Item[string, int64]
	for it.Next() {
		got = append(got, it.Value())
	}

	require.NoError(t, it.Err(), ctx)

	want := make([]boxcache.Item[string, int64], 0, m.Len())
	for _, e := range m.Ordered() {
		want = append(want, boxcache.Item[string, int64]{Key: e.Key, Value: e.Value})
	}

	if !m.OrderDeterministic() {
		sortItems(got)
		sortItems(want)
	}

	diff := cmp.Diff(want, got, cmpopts.EquateEmpty())
	require.Empty(t, diff, "%s: iteration mismatch (-want +got):\n%s", ctx, diff)
}

func sortItems(items []boxcache.Item[string, int64]) {
	slices.SortFunc(items, func(a, b boxcache.Item[string, int64]) int {
		return strings.Compare(a.Key, b.Key)
	})
}
