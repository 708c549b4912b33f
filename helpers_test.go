package boxcache_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/boxcache"
)

// inserter is the two-argument Insert shared by every flavor except
// the per-entry-ttl cache.
type inserter[K comparable, V any] interface {
	Insert(key K, value V) (prev V, replaced bool, err error)
}

func mustInsert[K comparable, V any](t *testing.T, c inserter[K, V], key K, value V) {
	t.Helper()

	_, replaced, err := c.Insert(key, value)
	require.NoError(t, err, "insert %v", key)
	require.False(t, replaced, "insert %v: key already present", key)
}

func mustUpdate[K comparable, V any](t *testing.T, c inserter[K, V], key K, value V) (prev V) {
	t.Helper()

	prev, replaced, err := c.Insert(key, value)
	require.NoError(t, err, "update %v", key)
	require.True(t, replaced, "update %v: key not present", key)

	return prev
}

// collect drains an iterator and fails the test on an iteration error.
func collect[T any](t *testing.T, it *boxcache.Iter[T]) []T {
	t.Helper()

	var out []T
	for it.Next() {
		out = append(out, it.Value())
	}

	require.NoError(t, it.Err(), "iterator failed")

	return out
}

// keysOf projects items to their keys, preserving order.
func keysOf[K comparable, V any](items []boxcache.Item[K, V]) []K {
	out := make([]K, len(items))
	for i, item := range items {
		out[i] = item.Key
	}

	return out
}
