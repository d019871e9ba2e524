package resultset

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wuttem/gotsdb/bucket"
)

func mkItem(t *testing.T, key string, pts ...bucket.Point) *bucket.Item {
	t.Helper()
	it := bucket.New(key, bucket.RawF32, bucket.Dynamic, 1000, 2000)
	_, err := it.Insert(pts)
	require.NoError(t, err)
	return it
}

func TestConcatAndTrim(t *testing.T) {
	a := mkItem(t, "k", bucket.Point{TS: 1, V: bucket.F32Value(1)}, bucket.Point{TS: 2, V: bucket.F32Value(2)})
	b := mkItem(t, "k", bucket.Point{TS: 3, V: bucket.F32Value(3)}, bucket.Point{TS: 4, V: bucket.F32Value(4)})

	rs, err := New("k", []*bucket.Item{a, b})
	require.NoError(t, err)
	require.Equal(t, 4, rs.Len())

	trimmed := rs.Trim(2, 3)
	require.Equal(t, 2, trimmed.Len())

	it := trimmed.All()
	p, ok := it()
	require.True(t, ok)
	require.EqualValues(t, 2, p.TS)
	p, ok = it()
	require.True(t, ok)
	require.EqualValues(t, 3, p.TS)
	_, ok = it()
	require.False(t, ok)
}

func TestKeyMismatch(t *testing.T) {
	a := mkItem(t, "k1", bucket.Point{TS: 1, V: bucket.F32Value(1)})
	_, err := New("k2", []*bucket.Item{a})
	require.ErrorIs(t, err, ErrKeyMismatch)
}

func TestDailyHourlyAggregation(t *testing.T) {
	// 10 days x 144 ten-minute points, value = index mod 6.
	const day = 86400
	pts := make([]bucket.Point, 0, 1440)
	idx := 0
	for d := 0; d < 10; d++ {
		for s := 0; s < 144; s++ {
			ts := uint32(d*day + s*600)
			pts = append(pts, bucket.Point{TS: ts, V: bucket.F32Value(float32(idx % 6))})
			idx++
		}
	}
	it := mkItem(t, "k", pts...)
	rs, err := New("k", []*bucket.Item{it})
	require.NoError(t, err)

	daily, err := rs.Aggregation(GroupDaily, Sum)
	require.NoError(t, err)
	require.Len(t, daily, 10)
	for _, ap := range daily {
		require.InDelta(t, 360.0, ap.Value, 1e-9)
	}

	hourly, err := rs.Aggregation(GroupHourly, Mean)
	require.NoError(t, err)
	for _, ap := range hourly {
		require.InDelta(t, 2.5, ap.Value, 1e-9)
	}
}

func TestEmptyResultSet(t *testing.T) {
	rs, err := New("k", nil)
	require.NoError(t, err)
	require.Equal(t, 0, rs.Len())
	it := rs.All()
	_, ok := it()
	require.False(t, ok)
}
