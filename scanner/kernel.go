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

package scanner

import (
	"github.com/grailbio/memscan/filter"
	"github.com/grailbio/memscan/memsimd"
	"github.com/grailbio/memscan/memtype"
	"github.com/grailbio/memscan/scanplan"
)

// Input bundles everything a kernel needs: the candidate filter's bytes
// (Current starts at f.BaseAddress and holds at least f.Size bytes; kernels
// only evaluate offsets whose full DataSize-byte element lies inside the
// filter, so no trailing slack is needed), the element geometry, and
// exactly one non-nil comparison function.
type Input struct {
	Filter filter.Filter

	Current  []byte
	Previous []byte // nil unless the op needs it

	Alignment int
	DataSize  int

	ScalarCompare   memtype.ScalarCompareFunc
	RelativeCompare memtype.RelativeCompareFunc

	// PatternBytes and PatternEqual are set instead of ScalarCompare when
	// Plan.Kind is ByteArrayBoyerMoore: byte-array/string equality has no
	// per-offset scalar closure since the whole pattern, not one typed
	// value, is what's being matched.
	PatternBytes []byte
	PatternEqual bool

	// Overlapping selects boyerMoore's advance rule on a literal pattern
	// match: false (the default) reports disjoint, non-overlapping
	// occurrences; true reports every overlapping occurrence. Unused
	// outside Plan.Kind == ByteArrayBoyerMoore.
	Overlapping bool

	Plan scanplan.Plan
}

// Run dispatches in to the kernel its Plan.Kind names, returning the
// surviving filters in address order.
func Run(in Input) []filter.Filter {
	switch in.Plan.Kind {
	case scanplan.Invalid:
		return nil
	case scanplan.ScalarSingleElement, scanplan.ScalarIterative:
		return scalarIterative(in)
	case scanplan.VectorAligned:
		if in.Plan.Chunked {
			return chunkedVectorAligned(in)
		}
		return vectorStrided(in, in.Plan.LaneWidth, 0)
	case scanplan.VectorSparse:
		return vectorStrided(in, in.Plan.LaneWidth, 0)
	case scanplan.VectorOverlapping, scanplan.VectorOverlappingBytewiseStaggered, scanplan.VectorOverlappingBytewisePeriodic:
		return vectorStrided(in, in.Plan.LaneWidth, overhangPadding(in.DataSize, in.Alignment))
	case scanplan.ByteArrayBoyerMoore:
		return boyerMoore(in)
	default:
		return nil
	}
}

// matchAt reports whether the element starting at offset o in in.Current
// (and, for relative ops, in.Previous) satisfies the requested comparison.
func matchAt(in Input, o int) bool {
	if in.ScalarCompare != nil {
		return in.ScalarCompare(in.Current[o:])
	}
	return in.RelativeCompare(in.Current[o:], in.Previous[o:])
}

// scalarIterative walks candidate offsets one alignment-stride at a time.
// It is also used for ScalarSingleElement, whose single-iteration filters
// make the general loop already optimal.
func scalarIterative(in Input) []filter.Filter {
	enc := filter.NewEncoder(in.Filter.BaseAddress, filter.WithPadding(overhangPadding(in.DataSize, in.Alignment)))
	last := lastCandidateOffset(int(in.Filter.Size), in.DataSize)
	o := 0
	for ; o <= last; o += in.Alignment {
		if matchAt(in, o) {
			enc.EncodeRange(uint64(in.Alignment))
		} else {
			enc.FinalizeCurrentEncode(uint64(in.Alignment))
		}
	}
	enc.FinalizeCurrentEncode(0)
	return enc.TakeResultRegions()
}

// vectorStrided covers VectorAligned, VectorSparse, and every Overlapping*
// variant: they only differ in the relationship between dataSize and
// alignment, which is already baked into in.DataSize/in.Alignment and the
// padding the caller wants on emit. The byte-periodicity staggered/periodic
// plan kinds are a pure performance hint for a true SIMD backend (process
// one byte-plane across many candidates at once); this pure-Go
// implementation gets the same result from the same generic per-offset
// loop, so it intentionally does not special-case them further.
func vectorStrided(in Input, width int, padding uint64) []filter.Filter {
	if width == 0 {
		width = memsimd.MaxLaneWidth
	}
	enc := filter.NewEncoder(in.Filter.BaseAddress, filter.WithPadding(padding))
	last := lastCandidateOffset(int(in.Filter.Size), in.DataSize)

	mask := make([]byte, width)
	o := 0
	for o <= last {
		n := width
		if o+n > last+1 {
			n = last + 1 - o
		}
		fillMask(in, mask[:n], o)
		for i := 0; i < n && o+i <= last; i += in.Alignment {
			if mask[i] == 0xFF {
				enc.EncodeRange(uint64(in.Alignment))
			} else {
				enc.FinalizeCurrentEncode(uint64(in.Alignment))
			}
		}
		o += n
	}
	enc.FinalizeCurrentEncode(0)
	return enc.TakeResultRegions()
}

func fillMask(in Input, mask []byte, base int) {
	if in.ScalarCompare != nil {
		memsimd.MaskImmediate(mask, in.Current[base:], len(mask), in.DataSize, in.ScalarCompare)
		return
	}
	memsimd.MaskRelative(mask, in.Current[base:], in.Previous[base:], len(mask), in.DataSize, in.RelativeCompare)
}

// overhangPadding is how many bytes past the last alignment stride a match
// must be padded by to cover an element wider than the stride itself (the
// overlapping case); zero whenever the element fits within one stride.
func overhangPadding(dataSize, alignment int) uint64 {
	if dataSize <= alignment {
		return 0
	}
	return uint64(dataSize - alignment)
}

// lastCandidateOffset is the largest offset at which a full dataSize-byte
// element still fits inside a buffer of length n.
func lastCandidateOffset(n, dataSize int) int {
	last := n - dataSize
	if last < 0 {
		return -1
	}
	return last
}
