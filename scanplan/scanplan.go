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

package scanplan

import "github.com/grailbio/memscan/memtype"

// Kind names which scanner kernel a Plan dispatches to.
type Kind int

const (
	Invalid Kind = iota
	ScalarSingleElement
	ScalarIterative
	VectorAligned
	VectorSparse
	VectorOverlapping
	VectorOverlappingBytewiseStaggered
	VectorOverlappingBytewisePeriodic
	ByteArrayBoyerMoore
)

func (k Kind) String() string {
	switch k {
	case Invalid:
		return "Invalid"
	case ScalarSingleElement:
		return "ScalarSingleElement"
	case ScalarIterative:
		return "ScalarIterative"
	case VectorAligned:
		return "VectorAligned"
	case VectorSparse:
		return "VectorSparse"
	case VectorOverlapping:
		return "VectorOverlapping"
	case VectorOverlappingBytewiseStaggered:
		return "VectorOverlappingBytewiseStaggered"
	case VectorOverlappingBytewisePeriodic:
		return "VectorOverlappingBytewisePeriodic"
	case ByteArrayBoyerMoore:
		return "ByteArrayBoyerMoore"
	default:
		return "Unknown"
	}
}

// ChunkThresholdBytes is the filter size at or above which a VectorAligned
// plan additionally carries Chunked=true, splitting the kernel invocation
// across multiple goroutines over non-overlapping sub-filters (spec §4.E,
// §5).
const ChunkThresholdBytes = 1 << 20

// laneWidths are tried from widest to narrowest; the first that fits wins.
var laneWidths = [...]int{64, 32, 16}

// Plan is the Scan Planner's output for one filter.
type Plan struct {
	Kind Kind

	// LaneWidth is one of {16, 32, 64}, meaningful only for Vector* kinds.
	LaneWidth int

	// Periodicity is the byte period detected in the immediate value, or 0
	// if not applicable.
	Periodicity int

	// Chunked and ChunkSize apply only to VectorAligned plans whose filter
	// size is >= ChunkThresholdBytes.
	Chunked   bool
	ChunkSize uint64
}

// Input bundles everything the rule chain needs to decide a plan for one
// filter.
type Input struct {
	Descriptor memtype.Descriptor
	Type       memtype.Ref
	Op         memtype.CompareOp
	Params     memtype.CompareParams
	Alignment  int

	FilterSize uint64

	RegionHasCurrent  bool
	RegionHasPrevious bool
}

// Decide runs the rule chain (spec §4.E), stopping at the first decisive
// rule.
func Decide(in Input) Plan {
	// Rule 1: region validity.
	if !in.RegionHasCurrent || (in.Op.NeedsPrevious() && !in.RegionHasPrevious) {
		return Plan{Kind: Invalid}
	}

	dataSize := in.Descriptor.SizeInBytes(in.Type)

	// Byte-array fallback is considered before the size rules below, since
	// a byte-array type has no fixed dataSize to vectorize against (rule 5
	// in spec order, but must run early here because VectorFeasibility
	// needs a concrete element size).
	if (in.Descriptor.IsByteArray || in.Descriptor.IsString) && !in.Descriptor.IsFloatingPoint &&
		(in.Op == memtype.EqualTo || in.Op == memtype.NotEqualTo) {
		return Plan{Kind: ByteArrayBoyerMoore}
	}

	// Rule 2: too small for vectorization.
	if in.FilterSize < 16 {
		return Plan{Kind: ScalarIterative}
	}

	// Rule 3: vector feasibility.
	width, ok := chooseLaneWidth(in.FilterSize, dataSize)
	if !ok {
		return Plan{Kind: ScalarIterative}
	}

	// Rule 4: relative sizing.
	plan := decideSizing(in, dataSize, width)
	if plan.Kind == VectorAligned && in.FilterSize >= ChunkThresholdBytes {
		plan.Chunked = true
		plan.ChunkSize = ChunkThresholdBytes
	}
	return plan
}

func decideSizing(in Input, dataSize, width int) Plan {
	switch {
	case dataSize > in.Alignment:
		return decideOverlapping(in, dataSize, width)
	case dataSize < in.Alignment:
		return Plan{Kind: VectorSparse, LaneWidth: width}
	default:
		return Plan{Kind: VectorAligned, LaneWidth: width}
	}
}

func decideOverlapping(in Input, dataSize, width int) Plan {
	isIntegral := !in.Descriptor.IsFloatingPoint && !in.Descriptor.IsByteArray && !in.Descriptor.IsString
	if (in.Op != memtype.EqualTo && in.Op != memtype.NotEqualTo) || !isIntegral {
		return Plan{Kind: VectorOverlapping, LaneWidth: width}
	}
	period := BytePeriod(in.Params.Immediate.Bytes)
	switch {
	case period == 1:
		return Plan{Kind: VectorOverlappingBytewisePeriodic, LaneWidth: width, Periodicity: period}
	case period == 2 || period == 4 || period == 8:
		return Plan{Kind: VectorOverlappingBytewiseStaggered, LaneWidth: width, Periodicity: period}
	default:
		return Plan{Kind: VectorOverlapping, LaneWidth: width}
	}
}

// chooseLaneWidth returns the widest lane width for which a full vector
// read (including the data-type-sized overlap tail) fits inside
// filterSize, or ok=false if even the narrowest does not fit.
func chooseLaneWidth(filterSize uint64, dataSize int) (width int, ok bool) {
	for _, w := range laneWidths {
		if filterSize >= uint64(w+dataSize-1) {
			return w, true
		}
	}
	return 0, false
}

// BytePeriod returns the smallest p such that b[i] == b[i mod p] for every
// i < len(b). A zero-length or single-byte value has period 1.
func BytePeriod(b []byte) int {
	for p := 1; p < len(b); p++ {
		periodic := true
		for i := p; i < len(b); i++ {
			if b[i] != b[i%p] {
				periodic = false
				break
			}
		}
		if periodic {
			return p
		}
	}
	if len(b) == 0 {
		return 1
	}
	return len(b)
}
