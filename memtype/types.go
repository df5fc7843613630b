// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package memtype

import (
	"bytes"

	"github.com/grailbio/memscan/memsimd"
)

// Endianness selects the byte order a primitive type's bytes are decoded
// with before comparison.
type Endianness int

const (
	LittleEndian Endianness = iota
	BigEndian
)

// CompareOp enumerates every comparison a scan can request: six immediate,
// four relative, and ten delta ops, per spec §4.B.
type CompareOp int

const (
	EqualTo CompareOp = iota
	NotEqualTo
	GreaterThan
	GreaterThanOrEqualTo
	LessThan
	LessThanOrEqualTo

	Changed
	Unchanged
	Increased
	Decreased

	IncreasedByX
	DecreasedByX
	MultipliedByX
	DividedByX
	ModuloByX
	ShiftLeftByX
	ShiftRightByX
	BitwiseAndX
	BitwiseOrX
	BitwiseXorX
)

// IsImmediate reports whether op compares current bytes against a
// user-supplied constant (as opposed to the previous snapshot).
func (op CompareOp) IsImmediate() bool {
	return op >= EqualTo && op <= LessThanOrEqualTo
}

// IsRelative reports whether op is one of the four parameterless
// current-vs-previous comparisons.
func (op CompareOp) IsRelative() bool {
	return op >= Changed && op <= Decreased
}

// IsDelta reports whether op is a previous-vs-(current op immediate)
// comparison.
func (op CompareOp) IsDelta() bool {
	return op >= IncreasedByX && op <= BitwiseXorX
}

// NeedsPrevious reports whether op requires a previous-value buffer.
func (op CompareOp) NeedsPrevious() bool {
	return op.IsRelative() || op.IsDelta()
}

// Ref identifies a registered data type plus whatever metadata distinguishes
// two uses of the same identifier (e.g. byte-array length). Two refs are
// equal iff both the identifier and the metadata match exactly (spec §3).
type Ref struct {
	ID       string
	Length   int // meaningful only for variable-length types (byte array, string)
	Elements int // meaningful only for fixed-size array container types; 0 otherwise
}

// Equal reports whether r and o refer to the identical type + metadata.
func (r Ref) Equal(o Ref) bool {
	return r.ID == o.ID && r.Length == o.Length && r.Elements == o.Elements
}

// Value pairs a type reference with its raw byte encoding (spec §3's "Data
// Value"). Bytes is never mutated in place from outside this package;
// CopyFromBytes is the only supported mutator.
type Value struct {
	Ref   Ref
	Bytes []byte
}

// CopyFromBytes replaces v's buffer with a copy of b, but only if b differs
// from the current contents — preserving the "immutable except when it
// actually changes" invariant from spec §3, which lets callers compare old
// vs new Value by pointer identity of Bytes as a cheap "did this change"
// check.
func (v *Value) CopyFromBytes(b []byte) {
	if bytes.Equal(v.Bytes, b) {
		return
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	v.Bytes = cp
}

// ImmediateFormat is the wire tag accompanying a user-supplied immediate
// value string (spec §6).
type ImmediateFormat int

const (
	FormatDecimal ImmediateFormat = iota
	FormatHexadecimal
	FormatBinary
	FormatBytesRaw
)

// CompareParams bundles everything a Descriptor's comparison-kernel
// constructors need beyond the op itself: the parsed immediate (for
// immediate and delta ops) and the floating-point tolerance (applied only
// to float immediate equal/not-equal; exact elsewhere, including byte
// arrays — spec §9).
type CompareParams struct {
	Immediate Value
	Tolerance float64
	Mask      PatternMask // optional; see PatternMask doc

	// Overlapping selects the byte-array/string pattern kernel's advance
	// rule on a literal match: false (the default) advances by the
	// pattern's aligned length, reporting disjoint non-overlapping
	// occurrences; true advances by Alignment only, reporting every
	// overlapping occurrence individually. Ignored by every other type.
	Overlapping bool
}

// ScalarCompareFunc is reused verbatim as the per-byte-offset callback fed
// into memsimd's masking primitives: a "vector" kernel is simply this same
// function invoked at every candidate offset in a lane, batched through
// memsimd instead of a scalar loop.
type ScalarCompareFunc = memsimd.CompareFunc

// RelativeCompareFunc is the previous-value counterpart of
// ScalarCompareFunc, covering relative and delta ops.
type RelativeCompareFunc = memsimd.RelativeCompareFunc
