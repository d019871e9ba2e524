// Package bucket implements Item, the binary-packed, sorted, same-key
// cluster of points that is the unit of storage for the bucketed series
// engine, plus the pure calendar-window helpers used by its calendar
// bucket types.
package bucket

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/wuttem/gotsdb/column"
)

// HeaderSize is the fixed 8-byte header: item_type u16, bucket_type u16,
// point_count u32, all little-endian.
const HeaderSize = 8

var (
	// ErrEmptyBucket is returned by RangeKey on a zero-length Item.
	ErrEmptyBucket = errors.New("bucket: range_key of an empty item")
	// ErrCorruptedPayload is returned by FromBytes when the header
	// decodes to an unknown type, the declared length disagrees with
	// the byte count, or the reconstructed item fails the sortedness
	// invariant.
	ErrCorruptedPayload = errors.New("bucket: corrupted payload")
	// ErrValueShape is returned when a Value's arity does not match
	// the Item's configured item_type.
	ErrValueShape = errors.New("bucket: value shape does not match item_type")
)

// Item is an ordered, sorted, same-key cluster of points with a header;
// it owns its two columns exclusively.
type Item struct {
	key        string
	itemType   ItemType
	bucketType BucketType

	ts     *column.Vec
	values *column.Vec

	existing bool
	dirty    bool

	// dynamicTarget/dynamicMax are the soft/hard split thresholds used
	// when bucketType == Dynamic. They are carried on the Item (set at
	// construction time by the engine) rather than as package-global
	// state, so multiple Engine instances with different settings never
	// interfere with each other.
	dynamicTarget int
	dynamicMax    int
}

// New creates an empty, not-yet-persisted Item for key with the given
// item/bucket type and dynamic split thresholds (ignored for calendar
// bucket types).
func New(key string, itemType ItemType, bucketType BucketType, dynamicTarget, dynamicMax int) *Item {
	if !itemType.valid() {
		panic(fmt.Sprintf("bucket: invalid item_type %d", itemType))
	}
	if !bucketType.valid() {
		panic(fmt.Sprintf("bucket: invalid bucket_type %d", bucketType))
	}
	kind := column.KindF32
	if itemType.isU32() {
		kind = column.KindU32
	}
	return &Item{
		key:           key,
		itemType:      itemType,
		bucketType:    bucketType,
		ts:            column.NewScalar(column.KindU32),
		values:        newValueColumn(kind, itemType),
		dynamicTarget: dynamicTarget,
		dynamicMax:    dynamicMax,
	}
}

func newValueColumn(kind column.Kind, t ItemType) *column.Vec {
	if t.arity() == 1 {
		return column.NewScalar(kind)
	}
	return column.NewTuple(kind, t.arity())
}

func (i *Item) Key() string             { return i.key }
func (i *Item) ItemType() ItemType      { return i.itemType }
func (i *Item) BucketType() BucketType  { return i.bucketType }
func (i *Item) Existing() bool          { return i.existing }
func (i *Item) Dirty() bool             { return i.dirty }
func (i *Item) Len() int                { return i.ts.Len() }
func (i *Item) MarkExisting()           { i.existing = true }
func (i *Item) ClearDirty()             { i.dirty = false }

// RangeKey is the timestamp of the first point; fails on an empty Item.
func (i *Item) RangeKey() (uint32, error) {
	if i.Len() == 0 {
		return 0, ErrEmptyBucket
	}
	return i.ts.At(0)[0], nil
}

// TSMin returns the first timestamp, or -1 if empty.
func (i *Item) TSMin() int64 {
	if i.Len() == 0 {
		return -1
	}
	return int64(i.ts.At(0)[0])
}

// TSMax returns the last timestamp, or -1 if empty.
func (i *Item) TSMax() int64 {
	if i.Len() == 0 {
		return -1
	}
	return int64(i.ts.At(i.Len() - 1)[0])
}

// Equal is the deliberately weak structural identity of spec §4.2: same
// key, item_type, bucket_type, length, and (when non-empty) identical
// first/last timestamps. It is NOT deep equality and exists only to let
// the engine ask "is this still the tail bucket?".
func (i *Item) Equal(other *Item) bool {
	if other == nil {
		return false
	}
	if i.key != other.key || i.itemType != other.itemType || i.bucketType != other.bucketType {
		return false
	}
	if i.Len() != other.Len() {
		return false
	}
	if i.Len() > 0 {
		if i.ts.At(0)[0] != other.ts.At(0)[0] {
			return false
		}
		if i.ts.At(i.Len()-1)[0] != other.ts.At(other.Len()-1)[0] {
			return false
		}
	}
	return true
}

// TSVec exposes the timestamp column for callers (resultset.New) that
// need to concatenate it into a new, independently-owned column; it
// does not grant write access to the Item's own state.
func (i *Item) TSVec() *column.Vec { return i.ts }

// ValuesVec exposes the value column, see TSVec.
func (i *Item) ValuesVec() *column.Vec { return i.values }

// At returns the point at position idx.
func (i *Item) At(idx int) Point {
	ts := i.ts.At(idx)[0]
	lanes := i.values.At(idx)
	return Point{TS: ts, V: Value{lanes: lanes}}
}

// ToPoints materialises every point; callers on a read path that only
// need a bounded range should prefer iterating with At/Len instead.
func (i *Item) ToPoints() []Point {
	out := make([]Point, i.Len())
	for x := 0; x < i.Len(); x++ {
		out[x] = i.At(x)
	}
	return out
}

func (i *Item) lowerBound(ts uint32) int {
	n := i.Len()
	return sort.Search(n, func(k int) bool { return i.ts.At(k)[0] >= ts })
}

// InsertPoint inserts (ts, v) maintaining sort order. Returns 1 if a
// record was appended/inserted/overwritten, 0 if a duplicate timestamp
// was silently skipped (overwrite == false).
func (i *Item) InsertPoint(ts uint32, v Value, overwrite bool) (int, error) {
	lanes, ok := v.lanesFor(i.itemType)
	if !ok {
		return 0, ErrValueShape
	}
	idx := i.lowerBound(ts)
	if idx == i.Len() {
		i.ts.Append([]uint32{ts})
		i.values.Append(lanes)
		i.dirty = true
		return 1, nil
	}
	if i.ts.At(idx)[0] == ts {
		if overwrite {
			i.values.Set(idx, lanes)
			i.dirty = true
			return 1, nil
		}
		return 0, nil
	}
	i.ts.Insert(idx, []uint32{ts})
	i.values.Insert(idx, lanes)
	i.dirty = true
	return 1, nil
}

// Insert inserts a batch of points (any order) and returns the number
// of records actually added or overwritten.
func (i *Item) Insert(points []Point) (int, error) {
	count := 0
	for _, p := range points {
		n, err := i.InsertPoint(p.TS, p.V, false)
		if err != nil {
			return count, err
		}
		count += n
	}
	return count, nil
}

// SplitNeeded reports whether the Item has crossed its split threshold.
// limit is either "soft" or "hard"; for calendar bucket types the two
// are equivalent (crossing the calendar window edge is always hard).
func (i *Item) SplitNeeded(limit string) bool {
	if i.bucketType.isCalendar() {
		if i.Len() == 0 {
			return false
		}
		left, _ := i.RangeKey()
		right := windowRight(i.bucketType, left)
		return uint32(i.TSMax()) > right
	}
	if i.Len() > i.dynamicMax {
		return true
	}
	if limit == "soft" && i.Len() > i.dynamicTarget {
		return true
	}
	return false
}

// SplitItem divides the Item into fragments. The first fragment is the
// (mutated) original Item, returned as fragments[0]; later fragments are
// fresh Items with existing=false, dirty=true. For Dynamic buckets,
// fragments are exactly DynamicTarget points, except the tail fragment
// which may be shorter. For calendar buckets, fragment boundaries fall
// on calendar window edges.
func (i *Item) SplitItem() ([]*Item, error) {
	if i.bucketType.isCalendar() {
		return i.splitCalendar()
	}
	return i.splitDynamic()
}

func (i *Item) splitDynamic() ([]*Item, error) {
	count := i.dynamicTarget
	if count <= 0 || count >= i.Len() {
		return nil, fmt.Errorf("bucket: split target %d invalid for length %d", count, i.Len())
	}
	bounds := []int{}
	for b := count; b < i.Len(); b += count {
		bounds = append(bounds, b)
	}
	bounds = append(bounds, i.Len())
	return i.materialiseSplit(bounds), nil
}

func (i *Item) splitCalendar() ([]*Item, error) {
	bounds := []int{}
	x := 0
	for x < i.Len() {
		left := i.ts.At(x)[0]
		right := windowRight(i.bucketType, left)
		j := x
		for j < i.Len() && i.ts.At(j)[0] <= right {
			j++
		}
		bounds = append(bounds, j)
		x = j
	}
	if len(bounds) <= 1 {
		return nil, fmt.Errorf("bucket: calendar split produced no boundary for length %d", i.Len())
	}
	return i.materialiseSplit(bounds), nil
}

// materialiseSplit cuts the column pair at the given ascending
// exclusive-upper bounds (the last equal to Len()) and returns
// fragments in order, with i itself reused as fragments[0].
func (i *Item) materialiseSplit(bounds []int) []*Item {
	fragments := make([]*Item, 0, len(bounds))
	lo := 0
	origTS, origValues := i.ts, i.values
	for idx, hi := range bounds {
		frag := i
		if idx > 0 {
			frag = &Item{
				key:           i.key,
				itemType:      i.itemType,
				bucketType:    i.bucketType,
				dynamicTarget: i.dynamicTarget,
				dynamicMax:    i.dynamicMax,
				existing:      false,
				dirty:         true,
			}
		}
		frag.ts = origTS.Slice(lo, hi)
		frag.values = origValues.Slice(lo, hi)
		fragments = append(fragments, frag)
		lo = hi
	}
	i.dirty = true
	return fragments
}

// ToBytes serialises the Item to its on-disk byte layout.
func (i *Item) ToBytes() []byte {
	n := i.Len()
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(i.itemType))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(i.bucketType))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(n))
	buf = append(buf, i.ts.ToBytes()...)
	buf = append(buf, i.values.ToBytes()...)
	return buf
}

// FromBytes decodes a freshly-constructed Item (existing=false,
// dirty=false) from its on-disk byte layout. Use FromDBData when
// decoding a payload that was read back from storage.
func FromBytes(key string, buf []byte, dynamicTarget, dynamicMax int) (*Item, error) {
	if len(buf) < HeaderSize {
		return nil, ErrCorruptedPayload
	}
	itemType := ItemType(binary.LittleEndian.Uint16(buf[0:2]))
	bucketType := BucketType(binary.LittleEndian.Uint16(buf[2:4]))
	if !itemType.valid() || !bucketType.valid() {
		return nil, ErrCorruptedPayload
	}
	n := int(binary.LittleEndian.Uint32(buf[4:8]))
	width := itemType.Width()
	want := HeaderSize + 4*n + width*n
	if len(buf) != want {
		return nil, ErrCorruptedPayload
	}

	kind := column.KindF32
	if itemType.isU32() {
		kind = column.KindU32
	}

	tsBuf := buf[HeaderSize : HeaderSize+4*n]
	valBuf := buf[HeaderSize+4*n:]

	ts, err := column.FromBytes(column.KindU32, 1, n, tsBuf)
	if err != nil {
		return nil, ErrCorruptedPayload
	}
	values, err := column.FromBytes(kind, itemType.arity(), n, valBuf)
	if err != nil {
		return nil, ErrCorruptedPayload
	}

	it := &Item{
		key:           key,
		itemType:      itemType,
		bucketType:    bucketType,
		ts:            ts,
		values:        values,
		dynamicTarget: dynamicTarget,
		dynamicMax:    dynamicMax,
	}
	if !it.isSorted() {
		return nil, ErrCorruptedPayload
	}
	return it, nil
}

// FromDBData decodes a payload that came from a storage backend and
// marks the result existing=true.
func FromDBData(key string, buf []byte, dynamicTarget, dynamicMax int) (*Item, error) {
	it, err := FromBytes(key, buf, dynamicTarget, dynamicMax)
	if err != nil {
		return nil, err
	}
	it.existing = true
	return it, nil
}

func (i *Item) isSorted() bool {
	for k := 1; k < i.Len(); k++ {
		if i.ts.At(k)[0] < i.ts.At(k-1)[0] {
			return false
		}
	}
	return true
}
