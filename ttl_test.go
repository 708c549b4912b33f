package boxcache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/boxcache"
	"github.com/calvinalkan/boxcache/internal/testutil"
)

func newTTLCache(t *testing.T, maxsize uint64, ttl time.Duration) (*boxcache.TTLCache[string, int], *testutil.Clock) {
	t.Helper()

	c, err := boxcache.NewTTL[string, int](maxsize, ttl, boxcache.Options{})
	require.NoError(t, err)

	clock := testutil.NewClock()
	c.SetNowFuncForTesting(clock.Now)

	return c, clock
}

func Test_TTL_New_Fails_When_Lifetime_Not_Positive(t *testing.T) {
	t.Parallel()

	_, err := boxcache.NewTTL[string, int](4, 0, boxcache.Options{})
	require.ErrorIs(t, err, boxcache.ErrInvalidInput)

	_, err = boxcache.NewTTL[string, int](4, -time.Second, boxcache.Options{})
	require.ErrorIs(t, err, boxcache.ErrInvalidInput)
}

func Test_TTL_Get_Misses_When_Lifetime_Elapsed(t *testing.T) {
	t.Parallel()

	c, clock := newTTLCache(t, 4, time.Minute)

	mustInsert(t, c, "a", 1)

	// The deadline itself counts as elapsed.
	clock.Advance(time.Minute)

	got, ok, err := c.Get("a")
	require.NoError(t, err)
	require.False(t, ok)
	require.Zero(t, got)

	// The elapsed hit was removed on the way out.
	require.Equal(t, 0, c.Len())
}

func Test_TTL_Get_Hits_When_Lifetime_Not_Elapsed(t *testing.T) {
	t.Parallel()

	c, clock := newTTLCache(t, 4, time.Minute)

	mustInsert(t, c, "a", 1)

	clock.Advance(time.Minute - time.Nanosecond)

	got, ok, err := c.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, got)
}

func Test_TTL_Expire_Removes_Elapsed_Entries(t *testing.T) {
	t.Parallel()

	c, clock := newTTLCache(t, 8, time.Minute)

	mustInsert(t, c, "a", 1)
	mustInsert(t, c, "b", 2)

	require.Zero(t, c.Expire(), "nothing elapsed yet")

	clock.Advance(30 * time.Second)
	mustInsert(t, c, "c", 3)

	clock.Advance(30 * time.Second)

	// a and b hit their deadline, c has 30s left.
	require.Equal(t, 2, c.Expire())
	require.Equal(t, 1, c.Len())

	ok, err := c.Contains("c")
	require.NoError(t, err)
	require.True(t, ok)
}

func Test_TTL_Len_Counts_Elapsed_Unswept_Entries(t *testing.T) {
	t.Parallel()

	c, clock := newTTLCache(t, 4, time.Minute)

	mustInsert(t, c, "a", 1)
	clock.Advance(2 * time.Minute)

	// Len never sweeps.
	require.Equal(t, 1, c.Len())

	require.Equal(t, 1, c.Expire())
	require.Equal(t, 0, c.Len())
}

func Test_TTL_Peek_Leaves_Elapsed_Entry_In_Place(t *testing.T) {
	t.Parallel()

	c, clock := newTTLCache(t, 4, time.Minute)

	mustInsert(t, c, "a", 1)
	clock.Advance(time.Minute)

	_, ok, err := c.Peek("a")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 1, c.Len(), "peek must not remove")

	ok, err = c.Contains("a")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 1, c.Len(), "contains must not remove")
}

func Test_TTL_Update_Refreshes_Lifetime(t *testing.T) {
	t.Parallel()

	c, clock := newTTLCache(t, 4, time.Minute)

	mustInsert(t, c, "a", 1)

	clock.Advance(45 * time.Second)
	mustUpdate(t, c, "a", 10)

	// 45s after the update the original deadline is long past but the
	// refreshed one is not.
	clock.Advance(45 * time.Second)

	got, ok, err := c.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 10, got)
}

func Test_TTL_Update_Moves_Entry_Behind_Younger_Ones(t *testing.T) {
	t.Parallel()

	c, clock := newTTLCache(t, 2, time.Minute)

	mustInsert(t, c, "a", 1)
	clock.Advance(time.Second)
	mustInsert(t, c, "b", 2)
	clock.Advance(time.Second)

	mustUpdate(t, c, "a", 10)

	// "b" now holds the earliest deadline and is the victim.
	mustInsert(t, c, "c", 3)

	ok, err := c.Contains("b")
	require.NoError(t, err)
	require.False(t, ok)

	require.Equal(t, []string{"a", "c"}, collect(t, c.Keys()))
}

func Test_TTL_Evicts_Earliest_Deadline_When_Full(t *testing.T) {
	t.Parallel()

	c, clock := newTTLCache(t, 2, time.Minute)

	mustInsert(t, c, "a", 1)
	clock.Advance(time.Second)
	mustInsert(t, c, "b", 2)
	clock.Advance(time.Second)

	mustInsert(t, c, "c", 3)

	ok, err := c.Contains("a")
	require.NoError(t, err)
	require.False(t, ok, "entry with the earliest deadline must go first")
	require.Equal(t, 2, c.Len())
}

func Test_TTL_Insert_Sweeps_Elapsed_Before_Evicting(t *testing.T) {
	t.Parallel()

	c, clock := newTTLCache(t, 2, time.Minute)

	mustInsert(t, c, "a", 1)
	mustInsert(t, c, "b", 2)

	clock.Advance(2 * time.Minute)

	// Both residents are elapsed; the insert claims a swept slot
	// instead of evicting a live entry.
	mustInsert(t, c, "c", 3)

	require.Equal(t, 1, c.Len())
	require.Equal(t, []string{"c"}, collect(t, c.Keys()))
}

func Test_TTL_PopItem_Skips_Elapsed_Entries(t *testing.T) {
	t.Parallel()

	c, clock := newTTLCache(t, 4, time.Minute)

	mustInsert(t, c, "a", 1)
	clock.Advance(30 * time.Second)
	mustInsert(t, c, "b", 2)
	clock.Advance(40 * time.Second)

	// "a" is elapsed, "b" has 20s left.
	key, value, err := c.PopItem()
	require.NoError(t, err)
	require.Equal(t, "b", key)
	require.Equal(t, 2, value)

	_, _, err = c.PopItem()
	require.ErrorIs(t, err, boxcache.ErrKeyNotFound)
}

func Test_TTL_GetWithExpiry_Reports_Deadline(t *testing.T) {
	t.Parallel()

	c, clock := newTTLCache(t, 4, time.Minute)

	want := clock.Now().Add(time.Minute)
	mustInsert(t, c, "a", 1)

	got, expiry, ok, err := c.GetWithExpiry("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, got)
	require.True(t, expiry.Equal(want), "expiry %v, want %v", expiry, want)

	_, _, ok, err = c.GetWithExpiry("missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func Test_TTL_TTL_Returns_Configured_Lifetime(t *testing.T) {
	t.Parallel()

	c, _ := newTTLCache(t, 4, 90*time.Second)
	require.Equal(t, 90*time.Second, c.TTL())
}

func Test_TTL_Iterates_Earliest_Deadline_First(t *testing.T) {
	t.Parallel()

	c, clock := newTTLCache(t, 8, time.Minute)

	mustInsert(t, c, "a", 1)
	clock.Advance(time.Second)
	mustInsert(t, c, "b", 2)
	clock.Advance(time.Second)
	mustInsert(t, c, "c", 3)

	require.Equal(t, []string{"a", "b", "c"}, collect(t, c.Keys()))
}
