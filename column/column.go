// Package column implements ColumnVec, the packed fixed-width column
// container that backs an Item's timestamp and value storage.
package column

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Width of one scalar record, in bytes. Every scalar value (a timestamp
// or a single value lane of a tuple) is a 4-byte little-endian record.
const ScalarWidth = 4

// ErrArity is returned when a tuple operation is given a value whose
// length does not match the column's configured arity.
var ErrArity = errors.New("column: value arity mismatch")

// Kind distinguishes a u32 scalar column (used for timestamps and
// raw_u32 values) from an f32 scalar column (used for everything else).
type Kind int

const (
	KindU32 Kind = iota
	KindF32
)

// Vec is a growable, densely packed sequence of fixed-width scalar
// records, or of k parallel such sequences (a tuple column). Declaring
// Arity == 1 gives a plain scalar column; Arity > 1 gives a tuple
// column, serialised as the concatenation (not interleave) of its k
// sub-columns, in declaration order, per the on-disk contract.
type Vec struct {
	kind  Kind
	arity int
	// lanes[i] holds the i-th sub-column, each of length Len().
	lanes [][]uint32
}

// NewScalar returns an empty scalar column of the given kind.
func NewScalar(kind Kind) *Vec {
	return &Vec{kind: kind, arity: 1, lanes: [][]uint32{nil}}
}

// NewTuple returns an empty tuple column of arity k over scalar kind.
// Arity must be in [2,20] per the contract.
func NewTuple(kind Kind, arity int) *Vec {
	if arity < 2 || arity > 20 {
		panic(fmt.Sprintf("column: invalid tuple arity %d", arity))
	}
	lanes := make([][]uint32, arity)
	return &Vec{kind: kind, arity: arity, lanes: lanes}
}

func (v *Vec) Kind() Kind   { return v.kind }
func (v *Vec) Arity() int   { return v.arity }
func (v *Vec) Len() int     { return len(v.lanes[0]) }
func (v *Vec) IsTuple() bool { return v.arity > 1 }

// Append adds one record (scalar: len(val)==1, tuple: len(val)==arity).
func (v *Vec) Append(val []uint32) error {
	if len(val) != v.arity {
		return ErrArity
	}
	for i, x := range val {
		v.lanes[i] = append(v.lanes[i], x)
	}
	return nil
}

// Insert inserts one record at position i, shifting the tail right.
func (v *Vec) Insert(i int, val []uint32) error {
	if len(val) != v.arity {
		return ErrArity
	}
	for lane, x := range val {
		l := v.lanes[lane]
		l = append(l, 0)
		copy(l[i+1:], l[i:])
		l[i] = x
		v.lanes[lane] = l
	}
	return nil
}

// Delete removes the record at position i.
func (v *Vec) Delete(i int) {
	for lane := range v.lanes {
		l := v.lanes[lane]
		v.lanes[lane] = append(l[:i], l[i+1:]...)
	}
}

// At returns the record at position i.
func (v *Vec) At(i int) []uint32 {
	out := make([]uint32, v.arity)
	for lane := range v.lanes {
		out[lane] = v.lanes[lane][i]
	}
	return out
}

// Set overwrites the record at position i.
func (v *Vec) Set(i int, val []uint32) error {
	if len(val) != v.arity {
		return ErrArity
	}
	for lane, x := range val {
		v.lanes[lane][i] = x
	}
	return nil
}

// Slice returns a new Vec holding records [lo,hi).
func (v *Vec) Slice(lo, hi int) *Vec {
	out := &Vec{kind: v.kind, arity: v.arity, lanes: make([][]uint32, v.arity)}
	for lane := range v.lanes {
		cp := make([]uint32, hi-lo)
		copy(cp, v.lanes[lane][lo:hi])
		out.lanes[lane] = cp
	}
	return out
}

// Concat appends other's records after v's, in place, and returns v.
func (v *Vec) Concat(other *Vec) *Vec {
	for lane := range v.lanes {
		v.lanes[lane] = append(v.lanes[lane], other.lanes[lane]...)
	}
	return v
}

// ToBytes serialises the column as the concatenation of its lanes, each
// lane little-endian ScalarWidth bytes per record.
func (v *Vec) ToBytes() []byte {
	n := v.Len()
	out := make([]byte, 0, n*ScalarWidth*v.arity)
	for lane := range v.lanes {
		for _, x := range v.lanes[lane] {
			var b [ScalarWidth]byte
			binary.LittleEndian.PutUint32(b[:], x)
			out = append(out, b[:]...)
		}
	}
	return out
}

// FromBytes decodes n records from buf into a freshly allocated column
// of the given kind/arity.
func FromBytes(kind Kind, arity int, n int, buf []byte) (*Vec, error) {
	need := n * ScalarWidth * arity
	if len(buf) < need {
		return nil, fmt.Errorf("column: short buffer, need %d got %d", need, len(buf))
	}
	v := &Vec{kind: kind, arity: arity, lanes: make([][]uint32, arity)}
	off := 0
	for lane := 0; lane < arity; lane++ {
		l := make([]uint32, n)
		for i := 0; i < n; i++ {
			l[i] = binary.LittleEndian.Uint32(buf[off : off+ScalarWidth])
			off += ScalarWidth
		}
		v.lanes[lane] = l
	}
	return v, nil
}
