package boxcache_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/boxcache"
)

func Test_FIFO_Evicts_Oldest_Entry_When_Full(t *testing.T) {
	t.Parallel()

	c, err := boxcache.NewFIFO[string, int](2, boxcache.Options{})
	require.NoError(t, err)

	mustInsert(t, c, "a", 1)
	mustInsert(t, c, "b", 2)
	mustInsert(t, c, "c", 3)

	require.Equal(t, 2, c.Len())

	ok, err := c.Contains("a")
	require.NoError(t, err)
	require.False(t, ok, "oldest entry must be evicted first")

	key, value, err := c.PopItem()
	require.NoError(t, err)
	require.Equal(t, "b", key)
	require.Equal(t, 2, value)
}

func Test_FIFO_Iterates_Oldest_To_Newest(t *testing.T) {
	t.Parallel()

	c, err := boxcache.NewFIFO[string, int](8, boxcache.Options{})
	require.NoError(t, err)

	mustInsert(t, c, "a", 1)
	mustInsert(t, c, "b", 2)
	mustInsert(t, c, "c", 3)

	require.Equal(t, []string{"a", "b", "c"}, keysOf(collect(t, c.Items())))
	require.Equal(t, []string{"a", "b", "c"}, collect(t, c.Keys()))
	require.Equal(t, []int{1, 2, 3}, collect(t, c.Values()))
}

func Test_FIFO_Update_Keeps_Queue_Position(t *testing.T) {
	t.Parallel()

	c, err := boxcache.NewFIFO[string, int](2, boxcache.Options{})
	require.NoError(t, err)

	mustInsert(t, c, "a", 1)
	mustInsert(t, c, "b", 2)
	mustUpdate(t, c, "a", 10)

	// "a" is still the oldest despite the update.
	mustInsert(t, c, "c", 3)

	ok, err := c.Contains("a")
	require.NoError(t, err)
	require.False(t, ok)

	require.Equal(t, []string{"b", "c"}, collect(t, c.Keys()))
}

func Test_FIFO_Get_Does_Not_Promote(t *testing.T) {
	t.Parallel()

	c, err := boxcache.NewFIFO[string, int](2, boxcache.Options{})
	require.NoError(t, err)

	mustInsert(t, c, "a", 1)
	mustInsert(t, c, "b", 2)

	_, ok, err := c.Get("a")
	require.NoError(t, err)
	require.True(t, ok)

	// The read must not save "a" from eviction.
	mustInsert(t, c, "c", 3)

	ok, err = c.Contains("a")
	require.NoError(t, err)
	require.False(t, ok)
}

func Test_FIFO_First_And_Last_Track_Queue_Ends(t *testing.T) {
	t.Parallel()

	c, err := boxcache.NewFIFO[string, int](4, boxcache.Options{})
	require.NoError(t, err)

	_, ok := c.First()
	require.False(t, ok, "empty cache has no first entry")

	_, ok = c.Last()
	require.False(t, ok, "empty cache has no last entry")

	mustInsert(t, c, "a", 1)
	mustInsert(t, c, "b", 2)
	mustInsert(t, c, "c", 3)

	first, ok := c.First()
	require.True(t, ok)
	require.Equal(t, "a", first)

	last, ok := c.Last()
	require.True(t, ok)
	require.Equal(t, "c", last)

	_, _, err = c.PopItem()
	require.NoError(t, err)

	first, ok = c.First()
	require.True(t, ok)
	require.Equal(t, "b", first)
}

func Test_FIFO_GetIndex_Returns_Entry_At_Queue_Position(t *testing.T) {
	t.Parallel()

	c, err := boxcache.NewFIFO[string, int](4, boxcache.Options{})
	require.NoError(t, err)

	mustInsert(t, c, "a", 1)
	mustInsert(t, c, "b", 2)
	mustInsert(t, c, "c", 3)

	key, value, err := c.GetIndex(0)
	require.NoError(t, err)
	require.Equal(t, "a", key)
	require.Equal(t, 1, value)

	key, value, err = c.GetIndex(2)
	require.NoError(t, err)
	require.Equal(t, "c", key)
	require.Equal(t, 3, value)

	_, _, err = c.GetIndex(3)
	require.ErrorIs(t, err, boxcache.ErrKeyNotFound)

	_, _, err = c.GetIndex(-1)
	require.ErrorIs(t, err, boxcache.ErrKeyNotFound)
}

func Test_FIFO_Remove_From_Middle_Keeps_Order(t *testing.T) {
	t.Parallel()

	c, err := boxcache.NewFIFO[string, int](8, boxcache.Options{})
	require.NoError(t, err)

	mustInsert(t, c, "a", 1)
	mustInsert(t, c, "b", 2)
	mustInsert(t, c, "c", 3)
	mustInsert(t, c, "d", 4)

	_, ok, err := c.Remove("b")
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, []string{"a", "c", "d"}, collect(t, c.Keys()))

	// Queue discipline survives the hole.
	key, _, err := c.PopItem()
	require.NoError(t, err)
	require.Equal(t, "a", key)

	key, _, err = c.PopItem()
	require.NoError(t, err)
	require.Equal(t, "c", key)
}

func Test_FIFO_Drain_Removes_In_Queue_Order(t *testing.T) {
	t.Parallel()

	c, err := boxcache.NewFIFO[string, int](8, boxcache.Options{})
	require.NoError(t, err)

	mustInsert(t, c, "a", 1)
	mustInsert(t, c, "b", 2)
	mustInsert(t, c, "c", 3)

	items := c.Drain(2)
	require.Equal(t, []string{"a", "b"}, keysOf(items))
	require.Equal(t, []string{"c"}, collect(t, c.Keys()))
}

func Test_FIFO_Reuses_Storage_After_Heavy_Churn(t *testing.T) {
	t.Parallel()

	c, err := boxcache.NewFIFO[int, int](4, boxcache.Options{})
	require.NoError(t, err)

	// Far more inserts than capacity; the deque must compact rather
	// than grow without bound.
	for i := range 10_000 {
		_, _, insertErr := c.Insert(i, i)
		require.NoError(t, insertErr)
	}

	require.Equal(t, 4, c.Len())
	require.Equal(t, []int{9996, 9997, 9998, 9999}, collect(t, c.Keys()))
}
