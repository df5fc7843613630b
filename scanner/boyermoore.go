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
	"bytes"

	"github.com/grailbio/memscan/filter"
)

// boyerMoore implements the byte-array pattern kernel: the Boyer-Moore-
// Horspool bad-character shift, rounded up to a multiple of in.Alignment,
// per spec §4.F. in.ScalarCompare is not used here; equality is checked by
// direct byte comparison against in.PatternBytes.
//
// On a literal match, the default (in.Overlapping == false) non-overlapping
// variant advances by alignedPatternLen — the pattern length rounded up to
// in.Alignment — reporting one disjoint filter per occurrence and skipping
// past any positions the match itself covers. The overlapping variant
// advances by in.Alignment instead, examining every candidate position
// individually so occurrences that share bytes are all reported; a genuine
// mismatch, in contrast, proves every skipped position in between is
// uniformly a non-match, so the bad-character shift can advance several
// candidates at once there regardless of in.Overlapping.
func boyerMoore(in Input) []filter.Filter {
	pattern := in.PatternBytes
	equal := in.PatternEqual // false => NotEqualTo: every non-match position is a hit
	m := len(pattern)
	align := in.Alignment
	if align < 1 {
		align = 1
	}

	alignedPatternLen := m
	if r := m % align; r != 0 {
		alignedPatternLen += align - r
	}

	matchAdvance := align
	var padding uint64
	if in.Overlapping {
		if m > align {
			padding = uint64(m - align)
		}
	} else {
		matchAdvance = alignedPatternLen
	}
	enc := filter.NewEncoder(in.Filter.BaseAddress, filter.WithPadding(padding), filter.WithMinimumSize(uint64(m)))

	if m == 0 || int(in.Filter.Size) < m {
		enc.FinalizeCurrentEncode(0)
		return enc.TakeResultRegions()
	}

	badChar := buildBadCharTable(pattern, align)
	limit := int(in.Filter.Size) - m

	pos := 0
	for pos <= limit {
		text := in.Current[pos : pos+m]
		if bytes.Equal(text, pattern) {
			if equal {
				enc.EncodeRange(uint64(matchAdvance))
				if !in.Overlapping {
					enc.FinalizeCurrentEncode(0)
				}
			} else {
				enc.FinalizeCurrentEncode(uint64(matchAdvance))
			}
			pos += matchAdvance
			continue
		}

		// Horspool's shift: keyed on the window's last byte, safe
		// regardless of where inside the window the mismatch occurred.
		shift := badChar[text[m-1]]
		if shift < align {
			shift = align
		}
		if equal {
			enc.FinalizeCurrentEncode(uint64(shift))
		} else {
			enc.EncodeRange(uint64(shift))
		}
		pos += shift
	}
	enc.FinalizeCurrentEncode(0)
	return enc.TakeResultRegions()
}

// buildBadCharTable maps each byte value to how far the pattern may safely
// shift on a mismatch against that byte, rounded up to alignment.
func buildBadCharTable(pattern []byte, alignment int) [256]int {
	var table [256]int
	for i := range table {
		table[i] = len(pattern)
	}
	for i := 0; i < len(pattern)-1; i++ {
		table[pattern[i]] = len(pattern) - 1 - i
	}
	if alignment > 1 {
		for i := range table {
			table[i] = ((table[i] + alignment - 1) / alignment) * alignment
		}
	}
	return table
}
