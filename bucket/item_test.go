package bucket

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBinaryLayoutFourPoints(t *testing.T) {
	it := New("ph", RawF32, Dynamic, 100, 200)
	_, err := it.Insert([]Point{
		{TS: 0, V: F32Value(0.0)},
		{TS: 1, V: F32Value(2.0)},
		{TS: 2, V: F32Value(4.0)},
		{TS: 3, V: F32Value(6.0)},
	})
	require.NoError(t, err)

	buf := it.ToBytes()
	require.Len(t, buf, 40)
	require.Equal(t, []byte{0x01, 0x00, 0x01, 0x00, 0x04, 0x00, 0x00, 0x00}, buf[:8])
}

func TestBinaryLayoutSinglePoint(t *testing.T) {
	it := New("ph", RawF32, Dynamic, 100, 200)
	_, err := it.Insert([]Point{{TS: 0xFFFF, V: F32Value(6.0)}})
	require.NoError(t, err)

	buf := it.ToBytes()
	require.Len(t, buf, 16)
	expected := []byte{
		0x01, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x00,
		0xFF, 0xFF, 0x00, 0x00,
		0x00, 0x00, 0xC0, 0x40,
	}
	require.Equal(t, expected, buf)
}

func TestRoundTrip(t *testing.T) {
	it := New("k", RawF32, Dynamic, 100, 200)
	_, err := it.Insert([]Point{
		{TS: 5, V: F32Value(1.5)},
		{TS: 1, V: F32Value(0.5)},
		{TS: 3, V: F32Value(3.5)},
	})
	require.NoError(t, err)

	buf := it.ToBytes()
	got, err := FromBytes("k", buf, 100, 200)
	require.NoError(t, err)
	require.True(t, it.Equal(got))
	require.Equal(t, it.ToPoints(), got.ToPoints())
}

func TestRangeKeyEmpty(t *testing.T) {
	it := New("k", RawF32, Dynamic, 100, 200)
	_, err := it.RangeKey()
	require.ErrorIs(t, err, ErrEmptyBucket)
	require.EqualValues(t, -1, it.TSMin())
	require.EqualValues(t, -1, it.TSMax())
}

func TestInsertPointDuplicateSkippedByDefault(t *testing.T) {
	it := New("k", RawF32, Dynamic, 100, 200)
	n, err := it.InsertPoint(1, F32Value(1.0), false)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = it.InsertPoint(1, F32Value(99.0), false)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.InDelta(t, float32(1.0), it.At(0).V.AsF32(), 0)

	n, err = it.InsertPoint(1, F32Value(99.0), true)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.InDelta(t, float32(99.0), it.At(0).V.AsF32(), 0)
}

func TestInsertPointValueShapeMismatch(t *testing.T) {
	it := New("k", RawF32, Dynamic, 100, 200)
	_, err := it.InsertPoint(1, TupleValue(1, 2), false)
	require.ErrorIs(t, err, ErrValueShape)
}

func TestSplitDynamic(t *testing.T) {
	it := New("k", RawF32, Dynamic, 2, 4)
	for ts := uint32(0); ts < 5; ts++ {
		_, err := it.InsertPoint(ts, F32Value(float32(ts)), false)
		require.NoError(t, err)
	}
	require.True(t, it.SplitNeeded("soft"))
	frags, err := it.SplitItem()
	require.NoError(t, err)
	require.Len(t, frags, 3)
	require.Equal(t, 2, frags[0].Len())
	require.Equal(t, 2, frags[1].Len())
	require.Equal(t, 1, frags[2].Len())
	require.False(t, frags[1].Existing())
	require.True(t, frags[1].Dirty())
}

func TestSplitHourly(t *testing.T) {
	it := New("k", RawF32, Hourly, 100, 200)
	for i := 0; i < 70; i++ {
		ts := uint32(i * 60)
		_, err := it.InsertPoint(ts, F32Value(float32(i)), false)
		require.NoError(t, err)
	}
	require.True(t, it.SplitNeeded("soft"))
	frags, err := it.SplitItem()
	require.NoError(t, err)
	require.Len(t, frags, 2)
	require.Equal(t, 60, frags[0].Len())
	require.Equal(t, 10, frags[1].Len())

	rk0, _ := frags[0].RangeKey()
	rk1, _ := frags[1].RangeKey()
	require.EqualValues(t, 0, rk0)
	require.EqualValues(t, 60*60, rk1)
}

func TestEqualWeakIdentity(t *testing.T) {
	a := New("k", RawF32, Dynamic, 100, 200)
	a.InsertPoint(1, F32Value(1), false)
	a.InsertPoint(5, F32Value(5), false)

	b := New("k", RawF32, Dynamic, 100, 200)
	b.InsertPoint(1, F32Value(999), false)
	b.InsertPoint(5, F32Value(999), false)

	require.True(t, a.Equal(b))
}

func TestCalendarHelpers(t *testing.T) {
	// 2024-01-01 is a Monday.
	monday := uint32(1704067200)
	require.Equal(t, monday, WeekLeft(monday))
	require.Equal(t, monday+secondsPerWeek-1, WeekRight(monday))

	midWeek := monday + 3*secondsPerDay + 100
	require.Equal(t, monday, WeekLeft(midWeek))
}
