package boxcache_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/boxcache"
	"github.com/calvinalkan/boxcache/internal/testutil"
)

func Test_Equal_Reports_True_When_Contents_Match(t *testing.T) {
	t.Parallel()

	a, err := boxcache.NewLRU[string, int](4, boxcache.Options{})
	require.NoError(t, err)

	b, err := boxcache.NewLRU[string, int](4, boxcache.Options{})
	require.NoError(t, err)

	mustInsert(t, a, "x", 1)
	mustInsert(t, a, "y", 2)

	// Different insertion order, same contents: recency does not
	// count, membership and values do.
	mustInsert(t, b, "y", 2)
	mustInsert(t, b, "x", 1)

	equal, err := a.Equal(b, nil)
	require.NoError(t, err)
	require.True(t, equal)

	equal, err = b.Equal(a, nil)
	require.NoError(t, err)
	require.True(t, equal)
}

func Test_Equal_Reports_True_When_Comparing_With_Self(t *testing.T) {
	t.Parallel()

	c, err := boxcache.New[string, int](4, boxcache.Options{})
	require.NoError(t, err)
	mustInsert(t, c, "a", 1)

	equal, err := c.Equal(c, nil)
	require.NoError(t, err)
	require.True(t, equal)
}

func Test_Equal_Reports_False_When_Values_Differ(t *testing.T) {
	t.Parallel()

	a, err := boxcache.New[string, int](4, boxcache.Options{})
	require.NoError(t, err)

	b, err := boxcache.New[string, int](4, boxcache.Options{})
	require.NoError(t, err)

	mustInsert(t, a, "x", 1)
	mustInsert(t, b, "x", 2)

	equal, err := a.Equal(b, nil)
	require.NoError(t, err)
	require.False(t, equal)
}

func Test_Equal_Reports_False_When_Membership_Differs(t *testing.T) {
	t.Parallel()

	a, err := boxcache.New[string, int](4, boxcache.Options{})
	require.NoError(t, err)

	b, err := boxcache.New[string, int](4, boxcache.Options{})
	require.NoError(t, err)

	mustInsert(t, a, "x", 1)
	mustInsert(t, b, "x", 1)
	mustInsert(t, b, "extra", 2)

	equal, err := a.Equal(b, nil)
	require.NoError(t, err)
	require.False(t, equal, "b holds an extra key")

	equal, err = b.Equal(a, nil)
	require.NoError(t, err)
	require.False(t, equal, "a misses a key")
}

func Test_Equal_Reports_False_When_MaxSize_Differs(t *testing.T) {
	t.Parallel()

	a, err := boxcache.New[string, int](4, boxcache.Options{})
	require.NoError(t, err)

	b, err := boxcache.New[string, int](8, boxcache.Options{})
	require.NoError(t, err)

	mustInsert(t, a, "x", 1)
	mustInsert(t, b, "x", 1)

	equal, err := a.Equal(b, nil)
	require.NoError(t, err)
	require.False(t, equal, "caches with different bounds are never equal")
}

func Test_Equal_Uses_Custom_Comparator(t *testing.T) {
	t.Parallel()

	a, err := boxcache.New[string, string](4, boxcache.Options{})
	require.NoError(t, err)

	b, err := boxcache.New[string, string](4, boxcache.Options{})
	require.NoError(t, err)

	_, _, err = a.Insert("x", "HELLO")
	require.NoError(t, err)

	_, _, err = b.Insert("x", "hello")
	require.NoError(t, err)

	equal, err := a.Equal(b, nil)
	require.NoError(t, err)
	require.False(t, equal, "default comparison is exact")

	equal, err = a.Equal(b, strings.EqualFold)
	require.NoError(t, err)
	require.True(t, equal)
}

func Test_Equal_Compares_Composite_Values_Deeply(t *testing.T) {
	t.Parallel()

	a, err := boxcache.New[string, []int](4, boxcache.Options{})
	require.NoError(t, err)

	b, err := boxcache.New[string, []int](4, boxcache.Options{})
	require.NoError(t, err)

	_, _, err = a.Insert("x", []int{1, 2, 3})
	require.NoError(t, err)

	_, _, err = b.Insert("x", []int{1, 2, 3})
	require.NoError(t, err)

	equal, err := a.Equal(b, nil)
	require.NoError(t, err)
	require.True(t, equal, "nil comparator falls back to deep equality")
}

func Test_Equal_Ignores_Elapsed_Entries(t *testing.T) {
	t.Parallel()

	clock := testutil.NewClock()

	a, err := boxcache.NewTTL[string, int](4, time.Minute, boxcache.Options{})
	require.NoError(t, err)
	a.SetNowFuncForTesting(clock.Now)

	b, err := boxcache.NewTTL[string, int](4, time.Minute, boxcache.Options{})
	require.NoError(t, err)
	b.SetNowFuncForTesting(clock.Now)

	mustInsert(t, a, "dying", 1)

	clock.Advance(30 * time.Second)

	mustInsert(t, a, "kept", 2)
	mustInsert(t, b, "kept", 2)

	clock.Advance(30 * time.Second)

	// "dying" has elapsed inside a but was never swept; both caches
	// now hold the same live contents.
	require.Equal(t, 2, a.Len())

	equal, err := a.Equal(b, nil)
	require.NoError(t, err)
	require.True(t, equal)

	equal, err = b.Equal(a, nil)
	require.NoError(t, err)
	require.True(t, equal)
}
