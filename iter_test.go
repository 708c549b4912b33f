package boxcache_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/boxcache"
)

func Test_Iterator_Fails_When_Entry_Inserted_Mid_Iteration(t *testing.T) {
	t.Parallel()

	c, err := boxcache.NewFIFO[string, int](8, boxcache.Options{})
	require.NoError(t, err)

	mustInsert(t, c, "a", 1)
	mustInsert(t, c, "b", 2)
	mustInsert(t, c, "c", 3)

	it := c.Items()
	require.True(t, it.Next())

	mustInsert(t, c, "d", 4)

	require.False(t, it.Next())
	require.ErrorIs(t, it.Err(), boxcache.ErrConcurrentModification)

	// The error sticks.
	require.False(t, it.Next())
	require.ErrorIs(t, it.Err(), boxcache.ErrConcurrentModification)
}

func Test_Iterator_Fails_When_Entry_Removed_Mid_Iteration(t *testing.T) {
	t.Parallel()

	c, err := boxcache.NewFIFO[string, int](8, boxcache.Options{})
	require.NoError(t, err)

	mustInsert(t, c, "a", 1)
	mustInsert(t, c, "b", 2)
	mustInsert(t, c, "c", 3)

	it := c.Keys()
	require.True(t, it.Next())

	_, ok, err := c.Remove("c")
	require.NoError(t, err)
	require.True(t, ok)

	require.False(t, it.Next())
	require.ErrorIs(t, it.Err(), boxcache.ErrConcurrentModification)
}

func Test_Iterator_Fails_When_Cache_Cleared_Mid_Iteration(t *testing.T) {
	t.Parallel()

	c, err := boxcache.New[string, int](8, boxcache.Options{})
	require.NoError(t, err)

	mustInsert(t, c, "a", 1)
	mustInsert(t, c, "b", 2)

	it := c.Values()
	require.True(t, it.Next())

	c.Clear(true)

	require.False(t, it.Next())
	require.ErrorIs(t, it.Err(), boxcache.ErrConcurrentModification)
}

func Test_Iterator_Fails_When_Storage_Shrinks_Mid_Iteration(t *testing.T) {
	t.Parallel()

	c, err := boxcache.New[int, int](0, boxcache.Options{Capacity: 32})
	require.NoError(t, err)

	for i := range 8 {
		_, _, insertErr := c.Insert(i, i)
		require.NoError(t, insertErr)
	}

	it := c.Items()
	require.True(t, it.Next())

	c.ShrinkToFit()

	require.False(t, it.Next())
	require.ErrorIs(t, it.Err(), boxcache.ErrConcurrentModification)
}

func Test_Iterator_Survives_Value_Update_When_Order_Unchanged(t *testing.T) {
	t.Parallel()

	c, err := boxcache.NewFIFO[string, int](8, boxcache.Options{})
	require.NoError(t, err)

	mustInsert(t, c, "a", 1)
	mustInsert(t, c, "b", 2)
	mustInsert(t, c, "c", 3)

	it := c.Items()
	require.True(t, it.Next())
	require.Equal(t, boxcache.Item[string, int]{Key: "a", Value: 1}, it.Value())

	// A FIFO update replaces the value in place: membership and order
	// are untouched, so the walk continues and sees the new value.
	mustUpdate(t, c, "c", 30)

	require.True(t, it.Next())
	require.Equal(t, boxcache.Item[string, int]{Key: "b", Value: 2}, it.Value())

	require.True(t, it.Next())
	require.Equal(t, boxcache.Item[string, int]{Key: "c", Value: 30}, it.Value())

	require.False(t, it.Next())
	require.NoError(t, it.Err())
}

func Test_Iterator_Fails_When_Read_Promotes_Entry(t *testing.T) {
	t.Parallel()

	t.Run("lru", func(t *testing.T) {
		t.Parallel()

		c, err := boxcache.NewLRU[string, int](8, boxcache.Options{})
		require.NoError(t, err)

		mustInsert(t, c, "a", 1)
		mustInsert(t, c, "b", 2)

		it := c.Keys()
		require.True(t, it.Next())

		_, ok, err := c.Get("a")
		require.NoError(t, err)
		require.True(t, ok)

		require.False(t, it.Next())
		require.ErrorIs(t, it.Err(), boxcache.ErrConcurrentModification)
	})

	t.Run("lfu", func(t *testing.T) {
		t.Parallel()

		c, err := boxcache.NewLFU[string, int](8, boxcache.Options{})
		require.NoError(t, err)

		mustInsert(t, c, "a", 1)
		mustInsert(t, c, "b", 2)

		it := c.Keys()
		require.True(t, it.Next())

		_, ok, err := c.Get("a")
		require.NoError(t, err)
		require.True(t, ok)

		require.False(t, it.Next())
		require.ErrorIs(t, it.Err(), boxcache.ErrConcurrentModification)
	})
}

func Test_Iterator_Survives_Reads_That_Do_Not_Promote(t *testing.T) {
	t.Parallel()

	c, err := boxcache.NewLRU[string, int](8, boxcache.Options{})
	require.NoError(t, err)

	mustInsert(t, c, "a", 1)
	mustInsert(t, c, "b", 2)
	mustInsert(t, c, "c", 3)

	it := c.Keys()
	require.True(t, it.Next())

	// Peek and Contains never touch recency; a Get miss has nothing to
	// promote.
	_, ok, err := c.Peek("b")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = c.Contains("c")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = c.Get("missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.Equal(t, "b", mustNextKey(t, it))
	require.Equal(t, "c", mustNextKey(t, it))
	require.False(t, it.Next())
	require.NoError(t, it.Err())
}

func mustNextKey(t *testing.T, it *boxcache.Iter[string]) string {
	t.Helper()
	require.True(t, it.Next())

	return it.Value()
}

func Test_Iterator_Yields_Nothing_When_Cache_Empty(t *testing.T) {
	t.Parallel()

	c, err := boxcache.New[string, int](4, boxcache.Options{})
	require.NoError(t, err)

	it := c.Items()
	require.False(t, it.Next())
	require.NoError(t, it.Err())
}

func Test_Iterators_Walk_Independently(t *testing.T) {
	t.Parallel()

	c, err := boxcache.NewFIFO[string, int](8, boxcache.Options{})
	require.NoError(t, err)

	mustInsert(t, c, "a", 1)
	mustInsert(t, c, "b", 2)

	first := c.Keys()
	second := c.Keys()

	require.Equal(t, "a", mustNextKey(t, first))
	require.Equal(t, "a", mustNextKey(t, second))
	require.Equal(t, "b", mustNextKey(t, first))
	require.Equal(t, "b", mustNextKey(t, second))

	require.False(t, first.Next())
	require.NoError(t, first.Err())
	require.False(t, second.Next())
	require.NoError(t, second.Err())
}

func Test_Iterator_Creation_Runs_Deferred_Work_Up_Front(t *testing.T) {
	t.Parallel()

	c, err := boxcache.NewLFU[string, int](8, boxcache.Options{})
	require.NoError(t, err)

	mustInsert(t, c, "a", 1)
	mustInsert(t, c, "b", 2)

	_, ok, err := c.Get("a")
	require.NoError(t, err)
	require.True(t, ok)

	// The pending re-sort runs when the iterator is created, not on
	// the first step, so it cannot invalidate its own walk.
	it := c.Keys()
	require.Equal(t, []string{"b", "a"}, collect(t, it))
}

func Test_Generation_Tracks_Order_Changes_Only(t *testing.T) {
	t.Parallel()

	c, err := boxcache.NewFIFO[string, int](8, boxcache.Options{})
	require.NoError(t, err)

	mustInsert(t, c, "a", 1)
	before := c.GenerationForTesting()

	// In-place value replace: same membership, same order.
	mustUpdate(t, c, "a", 2)
	require.Equal(t, before, c.GenerationForTesting())

	// Non-promoting reads: no change.
	_, _, err = c.Get("a")
	require.NoError(t, err)
	require.Equal(t, before, c.GenerationForTesting())

	// Membership changes: bump.
	mustInsert(t, c, "b", 2)
	require.NotEqual(t, before, c.GenerationForTesting())
}
