package engine

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/wuttem/gotsdb/bucket"
	"github.com/wuttem/gotsdb/cache"
	"github.com/wuttem/gotsdb/events"
	"github.com/wuttem/gotsdb/internal/metrics"
	"github.com/wuttem/gotsdb/store"
)

func pt(ts uint32, v float32) Point {
	return Point{TS: ts, V: bucket.F32Value(v)}
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	s := store.NewMemory()
	c, err := cache.NewMemoryLRU(128)
	require.NoError(t, err)
	bus := events.NewLocalBus()
	opts = append(opts, WithMetrics(metrics.NewEngine(prometheus.NewRegistry())))
	return New(s, c, bus, opts...)
}

func TestInsertRejectsInvalidKey(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Insert(context.Background(), "Bad Key!", []Point{pt(1, 1)})
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestInsertRejectsEmptyBatch(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Insert(context.Background(), "k", nil)
	require.ErrorIs(t, err, ErrInvalidBatch)
}

func TestAppendPathSingleBucket(t *testing.T) {
	e := newTestEngine(t, WithDynamicThresholds(100, 200))
	ctx := context.Background()

	st, err := e.Insert(ctx, "sensor.temp", []Point{pt(10, 1), pt(20, 2), pt(30, 3)})
	require.NoError(t, err)
	require.EqualValues(t, 3, st.Appended)
	require.EqualValues(t, 0, st.Inserted)
	require.EqualValues(t, 3, st.Count)
	require.EqualValues(t, 10, st.TSMin)
	require.EqualValues(t, 30, st.TSMax)

	st2, err := e.Insert(ctx, "sensor.temp", []Point{pt(40, 4)})
	require.NoError(t, err)
	require.EqualValues(t, 1, st2.Appended)
	require.EqualValues(t, 4, st2.Count)
}

func TestInsertDuplicateIsNoOp(t *testing.T) {
	e := newTestEngine(t, WithDynamicThresholds(100, 200))
	ctx := context.Background()

	_, err := e.Insert(ctx, "k", []Point{pt(10, 1), pt(20, 2)})
	require.NoError(t, err)

	st, err := e.Insert(ctx, "k", []Point{pt(10, 99)})
	require.NoError(t, err)
	require.EqualValues(t, 0, st.Appended)
	require.EqualValues(t, 0, st.Updated)
	require.EqualValues(t, 2, st.Count)

	rs, err := e.Query(ctx, "k", 0, 1000)
	require.NoError(t, err)
	it := rs.All()
	p, ok := it()
	require.True(t, ok)
	require.EqualValues(t, 10, p.TS)
	require.InDelta(t, float32(1), p.V.AsF32(), 0.0001)
}

func TestMergePathInsertsIntoEarlierBucket(t *testing.T) {
	e := newTestEngine(t, WithDynamicThresholds(2, 4))
	ctx := context.Background()

	// Force a split: target=2 means a 3rd point in the tail bucket
	// splits it into two fragments.
	_, err := e.Insert(ctx, "k", []Point{pt(10, 1), pt(20, 2), pt(30, 3)})
	require.NoError(t, err)

	// This point's ts falls before the current tail's ts_min, forcing
	// the merge path.
	st, err := e.Insert(ctx, "k", []Point{pt(15, 1.5)})
	require.NoError(t, err)
	require.EqualValues(t, 1, st.Inserted)
	require.EqualValues(t, 4, st.Count)

	rs, err := e.Query(ctx, "k", 0, 1000)
	require.NoError(t, err)
	var got []uint32
	it := rs.All()
	for p, ok := it(); ok; p, ok = it() {
		got = append(got, p.TS)
	}
	require.Equal(t, []uint32{10, 15, 20, 30}, got)
}

func TestDynamicSplitOccurs(t *testing.T) {
	e := newTestEngine(t, WithDynamicThresholds(2, 4))
	ctx := context.Background()

	points := make([]Point, 0, 10)
	for i := uint32(0); i < 10; i++ {
		points = append(points, pt(i*10, float32(i)))
	}
	st, err := e.Insert(ctx, "k", points)
	require.NoError(t, err)
	require.Greater(t, st.Splits, int64(0))

	rs, err := e.Query(ctx, "k", 0, 1000)
	require.NoError(t, err)
	require.Equal(t, 10, rs.Len())
}

func TestHourlyBucketCalendarSplit(t *testing.T) {
	e := newTestEngine(t, WithBucketType(bucket.Hourly))
	ctx := context.Background()

	base := uint32(1704067200) // 2024-01-01T00:00:00Z
	points := []Point{
		pt(base, 1), pt(base+1800, 2), // first hour
		pt(base+3600, 3), pt(base+3700, 4), // second hour
	}
	st, err := e.Insert(ctx, "k", points)
	require.NoError(t, err)
	require.EqualValues(t, 4, st.Appended)

	rs, err := e.Query(ctx, "k", 0, base+10000)
	require.NoError(t, err)
	require.Equal(t, 4, rs.Len())
}

func TestCacheAndEventsWiring(t *testing.T) {
	s := store.NewMemory()
	c, err := cache.NewMemoryLRU(128)
	require.NoError(t, err)
	bus := events.NewLocalBus()
	e := New(s, c, bus, WithDynamicThresholds(100, 200))

	received := make(chan events.Event, 1)
	require.NoError(t, e.RegisterDataListener("k", func(key string, ev events.Event) {
		received <- ev
	}))

	ctx := context.Background()
	_, err = e.Insert(ctx, "k", []Point{pt(1, 1)})
	require.NoError(t, err)

	select {
	case ev := <-received:
		require.Equal(t, "k", ev.Key)
		require.EqualValues(t, 1, ev.Appended)
	default:
		t.Fatal("expected event to be delivered synchronously")
	}

	cached, err := c.GetLastItem(ctx, "k")
	require.NoError(t, err)
	require.EqualValues(t, 1, cached.RangeKey)
}

func TestQueryUnknownKeyReturnsEmptyResultSet(t *testing.T) {
	e := newTestEngine(t)
	rs, err := e.Query(context.Background(), "nope", 0, 1000)
	require.NoError(t, err)
	require.Equal(t, 0, rs.Len())
}
