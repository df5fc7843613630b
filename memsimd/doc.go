// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package memsimd provides pure-Go, word-batched byte-compare-to-mask
// primitives used by the scanner package's vector kernels.
//
// There is no portable way to reach real SIMD instructions from Go without
// hand-written assembly, so "vector" here means a machine-word-sized inner
// loop over a lane group, not an actual SSE/AVX register. Each Mask16/32/64
// function writes one 0xFF (match) or 0x00 (no match) byte per input byte
// into a caller-supplied scratch array, the same mask shape the scanner
// package strides over at the data type's alignment.
package memsimd
