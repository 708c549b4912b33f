package boxcache

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodeRecord(t *testing.T, rec snapRecord[string, int]) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(&rec))

	return buf.Bytes()
}

func validRecord(entries ...snapEntry[string, int]) snapRecord[string, int] {
	return snapRecord[string, int]{
		Magic:   snapMagic,
		Version: snapVersion,
		Kind:    uint8(kindNone),
		MaxSize: 8,
		Entries: entries,
	}
}

// loadTarget builds a cache holding one sentinel entry, so tests can
// verify a rejected snapshot left it untouched.
func loadTarget(t *testing.T) *Cache[string, int] {
	t.Helper()

	c, err := New[string, int](8, Options{})
	require.NoError(t, err)

	_, _, err = c.Insert("sentinel", 42)
	require.NoError(t, err)

	return c
}

func requireUntouched(t *testing.T, c *Cache[string, int]) {
	t.Helper()

	got, ok, err := c.Get("sentinel")
	require.NoError(t, err)
	require.True(t, ok, "rejected snapshot must not clear the cache")
	require.Equal(t, 42, got)
	require.Equal(t, 1, c.Len())
}

func Test_Snapshot_Load_Fails_When_Magic_Wrong(t *testing.T) {
	t.Parallel()

	rec := validRecord()
	rec.Magic = "NOPE"

	c := loadTarget(t)

	err := unmarshalCache(&c.base, kindNone, encodeRecord(t, rec), false, nil)
	require.ErrorIs(t, err, ErrMalformedSnapshot)
	requireUntouched(t, c)
}

func Test_Snapshot_Load_Fails_When_Version_Unsupported(t *testing.T) {
	t.Parallel()

	rec := validRecord()
	rec.Version = snapVersion + 1

	c := loadTarget(t)

	err := unmarshalCache(&c.base, kindNone, encodeRecord(t, rec), false, nil)
	require.ErrorIs(t, err, ErrMalformedSnapshot)
	requireUntouched(t, c)
}

func Test_Snapshot_Load_Fails_When_Entry_Count_Exceeds_MaxSize(t *testing.T) {
	t.Parallel()

	rec := validRecord(
		snapEntry[string, int]{Key: "a", Val: 1},
		snapEntry[string, int]{Key: "b", Val: 2},
		snapEntry[string, int]{Key: "c", Val: 3},
	)
	rec.MaxSize = 2

	c := loadTarget(t)

	err := unmarshalCache(&c.base, kindNone, encodeRecord(t, rec), false, nil)
	require.ErrorIs(t, err, ErrMalformedSnapshot)
	requireUntouched(t, c)
}

func Test_Snapshot_Load_Fails_When_MaxSize_Out_Of_Range(t *testing.T) {
	t.Parallel()

	for _, maxsize := range []uint64{0, maxEntries + 1} {
		rec := validRecord()
		rec.MaxSize = maxsize

		c := loadTarget(t)

		err := unmarshalCache(&c.base, kindNone, encodeRecord(t, rec), false, nil)
		require.ErrorIs(t, err, ErrMalformedSnapshot, "maxsize %d", maxsize)
		requireUntouched(t, c)
	}
}

func Test_Snapshot_Load_Fails_When_Fixed_TTL_Missing(t *testing.T) {
	t.Parallel()

	rec := validRecord()
	rec.Kind = uint8(kindTTL)
	rec.TTL = 0

	c := loadTarget(t)

	err := unmarshalCache(&c.base, kindTTL, encodeRecord(t, rec), true, nil)
	require.ErrorIs(t, err, ErrMalformedSnapshot)
	requireUntouched(t, c)
}

func Test_Snapshot_Load_Succeeds_When_Record_Valid(t *testing.T) {
	t.Parallel()

	rec := validRecord(
		snapEntry[string, int]{Key: "a", Val: 1},
		snapEntry[string, int]{Key: "b", Val: 2},
	)

	c := loadTarget(t)

	require.NoError(t, unmarshalCache(&c.base, kindNone, encodeRecord(t, rec), false, nil))
	require.Equal(t, 2, c.Len())

	got, ok, err := c.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, got)

	_, ok, err = c.Get("sentinel")
	require.NoError(t, err)
	require.False(t, ok, "loading replaces previous contents")
}
