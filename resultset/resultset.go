// Package resultset implements ResultSet, the immutable concatenation of
// Items for a single key produced by the Engine's read path.
package resultset

import (
	"errors"
	"sort"

	"github.com/wuttem/gotsdb/bucket"
	"github.com/wuttem/gotsdb/column"
)

// ErrKeyMismatch is returned by New when an Item carries a different
// key than the ResultSet being built.
var ErrKeyMismatch = errors.New("resultset: item has wrong key")

// ErrEmptyWindow is returned by Mean on a window with zero points; by
// construction every window produced by Daily/Hourly is non-empty, so
// observing this is an internal bug.
var ErrEmptyWindow = errors.New("resultset: mean of an empty window")

// ResultSet is the read-only, trimmed concatenation of one or more
// Items sharing a key. It never aliases its source Items' columns.
type ResultSet struct {
	key      string
	itemType bucket.ItemType

	ts     *column.Vec
	values *column.Vec
}

// New concatenates items (all of which must share key) in the order
// given.
func New(key string, items []*bucket.Item) (*ResultSet, error) {
	if len(items) == 0 {
		return &ResultSet{key: key}, nil
	}
	itemType := items[0].ItemType()
	kind := column.KindF32
	if itemType.IsU32() {
		kind = column.KindU32
	}
	ts := column.NewScalar(column.KindU32)
	var values *column.Vec
	if itemType.Arity() == 1 {
		values = column.NewScalar(kind)
	} else {
		values = column.NewTuple(kind, itemType.Arity())
	}

	for _, it := range items {
		if it.Key() != key {
			return nil, ErrKeyMismatch
		}
		ts = ts.Concat(it.TSVec())
		values = values.Concat(it.ValuesVec())
	}
	return &ResultSet{key: key, itemType: itemType, ts: ts, values: values}, nil
}

// Trim drops prefix/suffix points outside [tsMin, tsMax] and returns a
// new (possibly shorter) ResultSet; the receiver is left untouched.
func (r *ResultSet) Trim(tsMin, tsMax uint32) *ResultSet {
	n := r.Len()
	lo := sort.Search(n, func(i int) bool { return r.tsAt(i) >= tsMin })
	hi := sort.Search(n, func(i int) bool { return r.tsAt(i) > tsMax })
	return &ResultSet{
		key:      r.key,
		itemType: r.itemType,
		ts:       sliceOrEmpty(r.ts, lo, hi),
		values:   sliceOrEmpty(r.values, lo, hi),
	}
}

func sliceOrEmpty(v *column.Vec, lo, hi int) *column.Vec {
	if v == nil {
		return nil
	}
	return v.Slice(lo, hi)
}

func (r *ResultSet) Len() int {
	if r.ts == nil {
		return 0
	}
	return r.ts.Len()
}

func (r *ResultSet) tsAt(i int) uint32 { return r.ts.At(i)[0] }

func (r *ResultSet) pointAt(i int) bucket.Point {
	lanes := r.values.At(i)
	return bucket.Point{TS: r.tsAt(i), V: bucket.ValueFromLanes(lanes)}
}

// All returns a single-pass iterator closure over every (ts, value)
// pair in ascending timestamp order.
func (r *ResultSet) All() func() (bucket.Point, bool) {
	i := 0
	n := r.Len()
	return func() (bucket.Point, bool) {
		if i >= n {
			return bucket.Point{}, false
		}
		p := r.pointAt(i)
		i++
		return p, true
	}
}

// Window is a contiguous sub-range of a ResultSet covering exactly one
// calendar window.
type Window struct {
	rs       *ResultSet
	lo, hi   int
	WindowLo uint32
}

func (w Window) Len() int { return w.hi - w.lo }

func (w Window) All() func() (bucket.Point, bool) {
	i := w.lo
	return func() (bucket.Point, bool) {
		if i >= w.hi {
			return bucket.Point{}, false
		}
		p := w.rs.pointAt(i)
		i++
		return p, true
	}
}

func (w Window) points() []bucket.Point {
	out := make([]bucket.Point, 0, w.Len())
	it := w.All()
	for p, ok := it(); ok; p, ok = it() {
		out = append(out, p)
	}
	return out
}

// Daily groups points into one Window per UTC calendar day, in
// timestamp order; empty windows are never emitted.
func (r *ResultSet) Daily() []Window { return r.group(bucket.DayLeft, bucket.DayRight) }

// Hourly groups points into one Window per UTC calendar hour.
func (r *ResultSet) Hourly() []Window { return r.group(bucket.HourLeft, bucket.HourRight) }

func (r *ResultSet) group(left, right func(uint32) uint32) []Window {
	var windows []Window
	n := r.Len()
	i := 0
	for i < n {
		lo := left(r.tsAt(i))
		hi := right(r.tsAt(i))
		j := i
		for j < n && r.tsAt(j) <= hi {
			j++
		}
		windows = append(windows, Window{rs: r, lo: i, hi: j, WindowLo: lo})
		i = j
	}
	return windows
}

// AggPoint is one (window_left, scalar) aggregation result.
type AggPoint struct {
	WindowLeft uint32
	Value      float64
}

// AggFunc names one of the fixed aggregation functions.
type AggFunc string

const (
	Sum   AggFunc = "sum"
	Count AggFunc = "count"
	Min   AggFunc = "min"
	Max   AggFunc = "max"
	Mean  AggFunc = "mean"
	Amp   AggFunc = "amp"
)

// Group names the fixed windowing granularities for Aggregation.
type Group string

const (
	GroupHourly Group = "hourly"
	GroupDaily  Group = "daily"
)

// Aggregation computes one scalar per window, in window order.
func (r *ResultSet) Aggregation(group Group, fn AggFunc) ([]AggPoint, error) {
	var windows []Window
	switch group {
	case GroupHourly:
		windows = r.Hourly()
	case GroupDaily:
		windows = r.Daily()
	default:
		return nil, errors.New("resultset: invalid aggregation group")
	}

	out := make([]AggPoint, 0, len(windows))
	for _, w := range windows {
		v, err := r.aggregate(w, fn)
		if err != nil {
			return nil, err
		}
		out = append(out, AggPoint{WindowLeft: w.WindowLo, Value: v})
	}
	return out, nil
}

func (r *ResultSet) aggregate(w Window, fn AggFunc) (float64, error) {
	pts := w.points()
	if len(pts) == 0 {
		if fn == Mean {
			return 0, ErrEmptyWindow
		}
		return 0, nil
	}
	switch fn {
	case Count:
		return float64(len(pts)), nil
	case Sum:
		return r.sumOf(pts), nil
	case Min:
		return r.minOf(pts), nil
	case Max:
		return r.maxOf(pts), nil
	case Mean:
		return r.sumOf(pts) / float64(len(pts)), nil
	case Amp:
		return r.maxOf(pts) - r.minOf(pts), nil
	default:
		return 0, errors.New("resultset: invalid aggregation function")
	}
}

func (r *ResultSet) scalarOf(p bucket.Point) float64 {
	if p.V.Arity() == 1 {
		return p.V.AsScalarFloat(r.itemType.IsU32())
	}
	// Tuple/aggregation values have no single scalar; callers computing
	// sum/min/max/mean over a tuple stream should use the component
	// accessors directly instead of Aggregation.
	return float64(p.V.AsTuple()[0])
}

func (r *ResultSet) sumOf(pts []bucket.Point) float64 {
	var s float64
	for _, p := range pts {
		s += r.scalarOf(p)
	}
	return s
}

func (r *ResultSet) minOf(pts []bucket.Point) float64 {
	m := r.scalarOf(pts[0])
	for _, p := range pts[1:] {
		if v := r.scalarOf(p); v < m {
			m = v
		}
	}
	return m
}

func (r *ResultSet) maxOf(pts []bucket.Point) float64 {
	m := r.scalarOf(pts[0])
	for _, p := range pts[1:] {
		if v := r.scalarOf(p); v > m {
			m = v
		}
	}
	return m
}
