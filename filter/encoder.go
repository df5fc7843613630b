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

package filter

// Encoder is the run-length output adapter every scanner kernel writes
// through: kernels call EncodeRange as they walk a matching run and
// FinalizeCurrentEncode on a mismatch (or at end of region), and the
// encoder accumulates the resulting Filter list.
type Encoder struct {
	currentAddress uint64
	runLength      uint64
	isEncoding     bool
	results        []Filter

	padding     uint64
	minimumSize uint64
	period      uint64
}

// Option configures an Encoder at construction time.
type Option func(*Encoder)

// WithPadding pads every emitted filter's size by n bytes on finalize, so a
// filter covers the full value a kernel matched even when the match itself
// only strided over a narrower footprint (needed by the overlapping vector
// kernels, whose alignment is narrower than their data type's size).
func WithPadding(n uint64) Option {
	return func(e *Encoder) { e.padding = n }
}

// WithMinimumSize discards any run (after padding) shorter than n bytes,
// used by the byte-array kernels to drop matches shorter than the pattern
// itself could ever be.
func WithMinimumSize(n uint64) Option {
	return func(e *Encoder) { e.minimumSize = n }
}

// Periodic splits a run longer than period bytes into period-sized filters
// at the periodicity boundary, instead of emitting one large filter. A
// period of 0 (the default) disables splitting.
func Periodic(period uint64) Option {
	return func(e *Encoder) { e.period = period }
}

// NewEncoder returns an Encoder whose first emitted filter (if any) starts
// at or after startAddress.
func NewEncoder(startAddress uint64, opts ...Option) *Encoder {
	e := &Encoder{currentAddress: startAddress}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EncodeRange extends the current run by stride bytes, starting a new run if
// one was not already in progress.
func (e *Encoder) EncodeRange(stride uint64) {
	e.isEncoding = true
	e.runLength += stride
}

// FinalizeCurrentEncode ends the current run (if any), emitting a Filter for
// it, then advances currentAddress past the run plus stride bytes. Calling
// this with stride 0 is how kernels flush a final in-progress run at the end
// of a region. A zero-length run (EncodeRange never called since the last
// finalize) emits nothing.
func (e *Encoder) FinalizeCurrentEncode(stride uint64) {
	if e.isEncoding && e.runLength > 0 {
		size := e.runLength + e.padding
		if size >= e.minimumSize {
			e.emit(e.currentAddress, size)
		}
		e.currentAddress += e.runLength + stride
	} else {
		e.currentAddress += stride
	}
	e.runLength = 0
	e.isEncoding = false
}

func (e *Encoder) emit(base, size uint64) {
	if e.period == 0 || size <= e.period {
		e.results = append(e.results, Filter{BaseAddress: base, Size: size})
		return
	}
	for off := uint64(0); off < size; off += e.period {
		chunk := e.period
		if off+chunk > size {
			chunk = size - off
		}
		e.results = append(e.results, Filter{BaseAddress: base + off, Size: chunk})
	}
}

// TakeResultRegions returns the accumulated filter list and clears the
// encoder's internal result buffer (but not its run-in-progress state).
func (e *Encoder) TakeResultRegions() []Filter {
	out := e.results
	e.results = nil
	return out
}
