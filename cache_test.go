package boxcache_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/boxcache"
)

func Test_Cache_Insert_Stores_Entry_When_Key_Absent(t *testing.T) {
	t.Parallel()

	c, err := boxcache.New[string, int](4, boxcache.Options{})
	require.NoError(t, err)

	prev, replaced, err := c.Insert("a", 1)
	require.NoError(t, err)
	require.False(t, replaced)
	require.Zero(t, prev)

	got, ok, err := c.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, got)
	require.Equal(t, 1, c.Len())
}

func Test_Cache_Insert_Returns_Previous_Value_When_Key_Present(t *testing.T) {
	t.Parallel()

	c, err := boxcache.New[string, int](4, boxcache.Options{})
	require.NoError(t, err)

	mustInsert(t, c, "a", 1)

	prev, replaced, err := c.Insert("a", 2)
	require.NoError(t, err)
	require.True(t, replaced)
	require.Equal(t, 1, prev)
	require.Equal(t, 1, c.Len(), "update must not grow the cache")

	got, ok, err := c.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, got)
}

func Test_Cache_Insert_Fails_When_Cache_Full(t *testing.T) {
	t.Parallel()

	c, err := boxcache.New[string, int](2, boxcache.Options{})
	require.NoError(t, err)

	mustInsert(t, c, "a", 1)
	mustInsert(t, c, "b", 2)
	require.True(t, c.IsFull())

	_, _, err = c.Insert("c", 3)
	require.ErrorIs(t, err, boxcache.ErrCapacityExceeded)

	// The failed insert must leave the cache unchanged.
	require.Equal(t, 2, c.Len())

	ok, err := c.Contains("a")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = c.Contains("b")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = c.Contains("c")
	require.NoError(t, err)
	require.False(t, ok)
}

func Test_Cache_Insert_Updates_Value_When_Cache_Full_And_Key_Present(t *testing.T) {
	t.Parallel()

	c, err := boxcache.New[string, int](2, boxcache.Options{})
	require.NoError(t, err)

	mustInsert(t, c, "a", 1)
	mustInsert(t, c, "b", 2)

	// Updating an existing key needs no free slot.
	prev, replaced, err := c.Insert("b", 20)
	require.NoError(t, err)
	require.True(t, replaced)
	require.Equal(t, 2, prev)
	require.Equal(t, 2, c.Len())
}

func Test_Cache_Insert_Succeeds_When_Slot_Freed_After_Full(t *testing.T) {
	t.Parallel()

	c, err := boxcache.New[string, int](2, boxcache.Options{})
	require.NoError(t, err)

	mustInsert(t, c, "a", 1)
	mustInsert(t, c, "b", 2)

	_, _, err = c.Insert("c", 3)
	require.ErrorIs(t, err, boxcache.ErrCapacityExceeded)

	_, removed, err := c.Remove("a")
	require.NoError(t, err)
	require.True(t, removed)

	mustInsert(t, c, "c", 3)
	require.Equal(t, 2, c.Len())
}

func Test_Cache_Get_Reports_Miss_When_Key_Absent(t *testing.T) {
	t.Parallel()

	c, err := boxcache.New[string, int](4, boxcache.Options{})
	require.NoError(t, err)

	got, ok, err := c.Get("missing")
	require.NoError(t, err)
	require.False(t, ok)
	require.Zero(t, got)
}

func Test_Cache_Remove_Returns_Value_When_Key_Present(t *testing.T) {
	t.Parallel()

	c, err := boxcache.New[string, int](4, boxcache.Options{})
	require.NoError(t, err)

	mustInsert(t, c, "a", 1)
	mustInsert(t, c, "b", 2)

	got, ok, err := c.Remove("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, got)
	require.Equal(t, 1, c.Len())

	// Removing again is a miss, not an error.
	got, ok, err = c.Remove("a")
	require.NoError(t, err)
	require.False(t, ok)
	require.Zero(t, got)
}

func Test_Cache_PopItem_Returns_First_Stored_Entry(t *testing.T) {
	t.Parallel()

	c, err := boxcache.New[string, int](4, boxcache.Options{})
	require.NoError(t, err)

	mustInsert(t, c, "a", 1)
	mustInsert(t, c, "b", 2)

	key, value, err := c.PopItem()
	require.NoError(t, err)
	require.Equal(t, "a", key)
	require.Equal(t, 1, value)
	require.Equal(t, 1, c.Len())
}

func Test_Cache_PopItem_Fails_When_Cache_Empty(t *testing.T) {
	t.Parallel()

	c, err := boxcache.New[string, int](4, boxcache.Options{})
	require.NoError(t, err)

	_, _, err = c.PopItem()
	require.ErrorIs(t, err, boxcache.ErrKeyNotFound)
}

func Test_Cache_Drain_Returns_All_Entries_When_N_Exceeds_Len(t *testing.T) {
	t.Parallel()

	c, err := boxcache.New[string, int](4, boxcache.Options{})
	require.NoError(t, err)

	mustInsert(t, c, "a", 1)
	mustInsert(t, c, "b", 2)
	mustInsert(t, c, "c", 3)

	items := c.Drain(10)
	require.Len(t, items, 3)
	require.True(t, c.IsEmpty())

	require.Empty(t, c.Drain(10), "draining an empty cache yields nothing")
	require.Empty(t, c.Drain(0))
	require.Empty(t, c.Drain(-1))
}

func Test_Cache_Clear_Removes_All_Entries(t *testing.T) {
	t.Parallel()

	for _, reuse := range []bool{true, false} {
		c, err := boxcache.New[string, int](8, boxcache.Options{Capacity: 8})
		require.NoError(t, err)

		mustInsert(t, c, "a", 1)
		mustInsert(t, c, "b", 2)

		c.Clear(reuse)
		require.True(t, c.IsEmpty())

		ok, containsErr := c.Contains("a")
		require.NoError(t, containsErr)
		require.False(t, ok)

		if reuse {
			require.Equal(t, uint64(8), c.Capacity(), "reuse keeps the backing storage")
		} else {
			require.Zero(t, c.Capacity(), "full clear releases the backing storage")
		}

		// A cleared cache keeps working.
		mustInsert(t, c, "c", 3)
		require.Equal(t, 1, c.Len())
	}
}

func Test_Cache_New_Fails_When_Maxsize_Exceeds_Slot_Limit(t *testing.T) {
	t.Parallel()

	_, err := boxcache.New[string, int](1<<32, boxcache.Options{})
	require.ErrorIs(t, err, boxcache.ErrAllocation)
}

func Test_Cache_New_Treats_Zero_Maxsize_As_Unbounded(t *testing.T) {
	t.Parallel()

	c, err := boxcache.New[int, int](0, boxcache.Options{})
	require.NoError(t, err)

	require.Equal(t, uint64(1)<<32-2, c.MaxSize())
	require.False(t, c.IsFull())

	for i := range 100 {
		_, _, insertErr := c.Insert(i, i)
		require.NoError(t, insertErr)
	}

	require.Equal(t, 100, c.Len())
}

func Test_Cache_Capacity_Is_Clamped_To_Maxsize(t *testing.T) {
	t.Parallel()

	c, err := boxcache.New[string, int](4, boxcache.Options{Capacity: 100})
	require.NoError(t, err)

	require.Equal(t, uint64(4), c.Capacity())
}

func Test_Cache_Grows_Storage_When_Capacity_Hint_Too_Small(t *testing.T) {
	t.Parallel()

	c, err := boxcache.New[int, int](0, boxcache.Options{Capacity: 2})
	require.NoError(t, err)

	for i := range 50 {
		_, _, insertErr := c.Insert(i, i*10)
		require.NoError(t, insertErr)
	}

	require.Equal(t, 50, c.Len())
	require.GreaterOrEqual(t, c.Capacity(), uint64(50))

	for i := range 50 {
		got, ok, getErr := c.Get(i)
		require.NoError(t, getErr)
		require.True(t, ok, "key %d lost during growth", i)
		require.Equal(t, i*10, got)
	}
}

func Test_Cache_ShrinkToFit_Preserves_Entries(t *testing.T) {
	t.Parallel()

	c, err := boxcache.New[int, int](0, boxcache.Options{Capacity: 64})
	require.NoError(t, err)

	for i := range 40 {
		_, _, insertErr := c.Insert(i, i)
		require.NoError(t, insertErr)
	}

	for i := range 30 {
		_, _, removeErr := c.Remove(i)
		require.NoError(t, removeErr)
	}

	c.ShrinkToFit()

	require.Equal(t, 10, c.Len())
	require.Equal(t, uint64(10), c.Capacity())

	for i := 30; i < 40; i++ {
		got, ok, getErr := c.Get(i)
		require.NoError(t, getErr)
		require.True(t, ok, "key %d lost during shrink", i)
		require.Equal(t, i, got)
	}
}

func Test_Cache_Items_Returns_All_Entries(t *testing.T) {
	t.Parallel()

	c, err := boxcache.New[string, int](8, boxcache.Options{})
	require.NoError(t, err)

	mustInsert(t, c, "a", 1)
	mustInsert(t, c, "b", 2)
	mustInsert(t, c, "c", 3)

	items := collect(t, c.Items())
	require.ElementsMatch(t, []boxcache.Item[string, int]{
		{Key: "a", Value: 1},
		{Key: "b", Value: 2},
		{Key: "c", Value: 3},
	}, items)

	keys := collect(t, c.Keys())
	require.ElementsMatch(t, []string{"a", "b", "c"}, keys)

	values := collect(t, c.Values())
	require.ElementsMatch(t, []int{1, 2, 3}, values)
}

func Test_Cache_Works_With_Struct_Keys(t *testing.T) {
	t.Parallel()

	type point struct{ X, Y int }

	c, err := boxcache.New[point, string](4, boxcache.Options{})
	require.NoError(t, err)

	mustInsert(t, c, point{1, 2}, "a")
	mustInsert(t, c, point{3, 4}, "b")

	got, ok, err := c.Get(point{1, 2})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a", got)

	_, ok, err = c.Get(point{2, 1})
	require.NoError(t, err)
	require.False(t, ok)
}
