// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package memsimd

import (
	"github.com/grailbio/base/simd"
)

// BytesPerWord is the number of bytes in a machine word. Re-exported from
// base/simd to keep the word-granularity inner loop below tunable in one
// place without every caller importing base/simd directly.
const BytesPerWord = simd.BytesPerWord

// Log2BytesPerWord is log2(BytesPerWord).
const Log2BytesPerWord = simd.Log2BytesPerWord

// MaxLaneWidth is the widest mask this package ever produces.
const MaxLaneWidth = 64

// CompareFunc reports whether an element starting at src[0] matches.
type CompareFunc func(src []byte) bool

// RelativeCompareFunc is a CompareFunc that additionally consults the
// previous snapshot of the same bytes.
type RelativeCompareFunc func(src, prev []byte) bool

// MaskImmediate fills mask[:n] with one 0xFF (match) or 0x00 (no match) byte
// per candidate byte-offset o < n, by invoking cmp(src[o:]). This is not per
// element: the scanner kernel strides the resulting mask by the data type's
// alignment. src must have at least n+width-1 bytes available so that cmp
// can read a full element even at the last candidate offset; callers
// over-read the region's current_values buffer by up to width-1 bytes of
// trailing context the same way the teacher's vector kernels do for their
// final overlapping read.
//
// This is the software-"vector" primitive every lane width below is built
// on: a machine-word granularity inner loop, mirroring
// biosimd_generic.go's portable (non-assembly) fallback path structure.
func MaskImmediate(mask []byte, src []byte, n, width int, cmp CompareFunc) {
	o := 0
	for ; o+BytesPerWord <= n; o += BytesPerWord {
		for w := 0; w < BytesPerWord; w++ {
			if cmp(src[o+w:]) {
				mask[o+w] = 0xFF
			} else {
				mask[o+w] = 0x00
			}
		}
	}
	for ; o < n; o++ {
		if cmp(src[o:]) {
			mask[o] = 0xFF
		} else {
			mask[o] = 0x00
		}
	}
}

// MaskRelative is MaskImmediate's counterpart for comparisons that consult
// both the current and previous byte buffers (changed/unchanged/increased/
// decreased and delta compares).
func MaskRelative(mask []byte, src, prev []byte, n, width int, cmp RelativeCompareFunc) {
	o := 0
	for ; o+BytesPerWord <= n; o += BytesPerWord {
		for w := 0; w < BytesPerWord; w++ {
			if cmp(src[o+w:], prev[o+w:]) {
				mask[o+w] = 0xFF
			} else {
				mask[o+w] = 0x00
			}
		}
	}
	for ; o < n; o++ {
		if cmp(src[o:], prev[o:]) {
			mask[o] = 0xFF
		} else {
			mask[o] = 0x00
		}
	}
}

// Mask16 computes a 16-byte immediate-compare mask into mask[:16].
func Mask16(mask *[16]byte, src []byte, width int, cmp CompareFunc) {
	MaskImmediate(mask[:], src, 16, width, cmp)
}

// Mask32 computes a 32-byte immediate-compare mask into mask[:32].
func Mask32(mask *[32]byte, src []byte, width int, cmp CompareFunc) {
	MaskImmediate(mask[:], src, 32, width, cmp)
}

// Mask64 computes a 64-byte immediate-compare mask into mask[:64].
func Mask64(mask *[64]byte, src []byte, width int, cmp CompareFunc) {
	MaskImmediate(mask[:], src, 64, width, cmp)
}

// RelativeMask16 is Mask16's relative-compare counterpart.
func RelativeMask16(mask *[16]byte, src, prev []byte, width int, cmp RelativeCompareFunc) {
	MaskRelative(mask[:], src, prev, 16, width, cmp)
}

// RelativeMask32 is Mask32's relative-compare counterpart.
func RelativeMask32(mask *[32]byte, src, prev []byte, width int, cmp RelativeCompareFunc) {
	MaskRelative(mask[:], src, prev, 32, width, cmp)
}

// RelativeMask64 is Mask64's relative-compare counterpart.
func RelativeMask64(mask *[64]byte, src, prev []byte, width int, cmp RelativeCompareFunc) {
	MaskRelative(mask[:], src, prev, 64, width, cmp)
}

// AllMatch reports whether every byte in mask[:n] is 0xFF.
func AllMatch(mask []byte, n int) bool {
	for i := 0; i < n; i++ {
		if mask[i] != 0xFF {
			return false
		}
	}
	return true
}

// NoneMatch reports whether every byte in mask[:n] is 0x00.
func NoneMatch(mask []byte, n int) bool {
	for i := 0; i < n; i++ {
		if mask[i] != 0x00 {
			return false
		}
	}
	return true
}
