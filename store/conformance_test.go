package store

import (
	"context"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

// newStoreFn builds a fresh, empty Store instance for one conformance
// pass. The wide-column (gocql/Cassandra) backend needs a live cluster
// and is not part of this shared suite.
type newStoreFn func(t *testing.T) Store

func conformanceBackends(t *testing.T) map[string]newStoreFn {
	return map[string]newStoreFn{
		"memory": func(t *testing.T) Store { return NewMemory() },
		"sql": func(t *testing.T) Store {
			s, err := OpenSQL(":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
		"kv": func(t *testing.T) Store {
			mr, err := miniredis.Run()
			require.NoError(t, err)
			t.Cleanup(mr.Close)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			return NewKV(rdb, "test:")
		},
	}
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}

func TestBackendConformance(t *testing.T) {
	for name, newStore := range conformanceBackends(t) {
		name, newStore := name, newStore
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			_, err := s.Get(ctx, "k", 1)
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Insert(ctx, "k", 10, []byte("r1")))
			require.NoError(t, s.Insert(ctx, "k", 20, []byte("r2")))
			require.ErrorIs(t, s.Insert(ctx, "k", 10, []byte("dup")), ErrConflict)

			got, err := s.Get(ctx, "k", 10)
			require.NoError(t, err)
			require.Equal(t, []byte("r1"), got)

			require.NoError(t, s.Update(ctx, "k", 10, []byte("r1-updated")))
			got, err = s.Get(ctx, "k", 10)
			require.NoError(t, err)
			require.Equal(t, []byte("r1-updated"), got)

			require.ErrorIs(t, s.Update(ctx, "k", 999, []byte("x")), ErrNotFound)

			first, err := s.First(ctx, "k")
			require.NoError(t, err)
			require.EqualValues(t, 10, first.RangeKey)

			last, err := s.Last(ctx, "k")
			require.NoError(t, err)
			require.EqualValues(t, 20, last.RangeKey)

			left, err := s.Left(ctx, "k", 15)
			require.NoError(t, err)
			require.EqualValues(t, 10, left.RangeKey)

			_, err = s.Left(ctx, "k", 5)
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Insert(ctx, "k", 30, []byte("r3")))

			// Query(k, 15, 25) should return r2 (range_key 20) plus the
			// Left(k,15) element (range_key 10) prepended, since it is
			// not already first.
			elems, err := s.Query(ctx, "k", 15, 25)
			require.NoError(t, err)
			require.Len(t, elems, 2)
			require.EqualValues(t, 10, elems[0].RangeKey)
			require.EqualValues(t, 20, elems[1].RangeKey)

			// Query(k, 10, 25) should NOT duplicate range_key 10, since
			// it is already the first element of the ascending range.
			elems, err = s.Query(ctx, "k", 10, 25)
			require.NoError(t, err)
			require.Len(t, elems, 2)
			require.EqualValues(t, 10, elems[0].RangeKey)
			require.EqualValues(t, 20, elems[1].RangeKey)

			_, err = s.First(ctx, "missing-key")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStatsFor(t *testing.T) {
	for name, newStore := range conformanceBackends(t) {
		name, newStore := name, newStore
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			item := func(ts0 uint32, n int) []byte {
				buf := make([]byte, 8+4*n+4*n)
				buf[0], buf[1] = 0x01, 0x00 // RawF32
				buf[2], buf[3] = 0x01, 0x00 // Dynamic
				buf[4] = byte(n)
				for i := 0; i < n; i++ {
					off := 8 + 4*i
					v := ts0 + uint32(i)
					buf[off] = byte(v)
					buf[off+1] = byte(v >> 8)
					buf[off+2] = byte(v >> 16)
					buf[off+3] = byte(v >> 24)
				}
				return buf
			}

			require.NoError(t, s.Insert(ctx, "stat-key", 0, item(0, 3)))
			require.NoError(t, s.Insert(ctx, "stat-key", 10, item(10, 2)))

			st, err := StatsFor(ctx, s, "stat-key")
			require.NoError(t, err)
			require.EqualValues(t, 0, st.TSMin)
			require.EqualValues(t, 11, st.TSMax)
			require.EqualValues(t, 5, st.Count)
		})
	}
}
