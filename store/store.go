// Package store defines the Backing Store abstract contract: an ordered
// associative container from (key, range_key) to opaque payload bytes,
// plus four concrete backends (memory, embedded SQL, sorted-set KV,
// wide-column) that all satisfy it identically.
package store

import (
	"context"
	"errors"

	"github.com/wuttem/gotsdb/bucket"
)

var (
	// ErrNotFound is returned by Get/First/Last/Left when no matching
	// entry exists.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned by Insert when (key, range_key) already
	// exists.
	ErrConflict = errors.New("store: conflict")
)

// Element is the persisted (key, range_key, payload) triple.
type Element struct {
	Key      string
	RangeKey int64
	Data     []byte
}

// Stats is the derived per-key summary: ts_min/ts_max decoded from the
// first/last bucket, count summed across every bucket for the key.
type Stats struct {
	TSMin int64
	TSMax int64
	Count int64
}

// Store is the abstract contract every backend implements.
type Store interface {
	Insert(ctx context.Context, key string, rangeKey int64, data []byte) error
	Update(ctx context.Context, key string, rangeKey int64, data []byte) error
	Get(ctx context.Context, key string, rangeKey int64) ([]byte, error)
	First(ctx context.Context, key string) (Element, error)
	Last(ctx context.Context, key string) (Element, error)
	Left(ctx context.Context, key string, rangeKey int64) (Element, error)
	Query(ctx context.Context, key string, rangeMin, rangeMax int64) ([]Element, error)
}

// StatsFor derives {ts_min, ts_max, count} for key from a Store, per the
// §4.5 contract: ts_min from First, ts_max from Last, count by summing
// decoded point counts across Query(key, -inf, +inf).
func StatsFor(ctx context.Context, s Store, key string) (Stats, error) {
	first, err := s.First(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return Stats{}, ErrNotFound
	}
	if err != nil {
		return Stats{}, err
	}
	last, err := s.Last(ctx, key)
	if err != nil {
		return Stats{}, err
	}

	firstItem, err := bucket.FromDBData(key, first.Data, 0, 0)
	if err != nil {
		return Stats{}, err
	}
	lastItem, err := bucket.FromDBData(key, last.Data, 0, 0)
	if err != nil {
		return Stats{}, err
	}

	elems, err := s.Query(ctx, key, minInt64, maxInt64)
	if err != nil {
		return Stats{}, err
	}
	var count int64
	for _, e := range elems {
		it, err := bucket.FromDBData(key, e.Data, 0, 0)
		if err != nil {
			return Stats{}, err
		}
		count += int64(it.Len())
	}

	return Stats{TSMin: firstItem.TSMin(), TSMax: lastItem.TSMax(), Count: count}, nil
}

const (
	minInt64 = int64(-1) << 62 // wide enough to cover every uint32 range_key
	maxInt64 = int64(1) << 62
)

// prependLeft implements the §4.5 Query contract's "plus Left(key,min)
// iff not already first" rule, shared by every backend's Query method.
func prependLeft(ctx context.Context, s Store, key string, rangeMin int64, ascending []Element) ([]Element, error) {
	left, err := s.Left(ctx, key, rangeMin)
	if errors.Is(err, ErrNotFound) {
		return ascending, nil
	}
	if err != nil {
		return nil, err
	}
	if len(ascending) > 0 && ascending[0].RangeKey == left.RangeKey {
		return ascending, nil
	}
	out := make([]Element, 0, len(ascending)+1)
	out = append(out, left)
	out = append(out, ascending...)
	return out, nil
}
