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

package snapshot

import (
	"hash"

	"blainsmith.com/go/seahash"
	"github.com/golang/snappy"
	"github.com/grailbio/base/log"
	"github.com/grailbio/memscan/filter"
	"github.com/grailbio/memscan/memtype"
	"github.com/pkg/errors"
)

// Region is one Snapshot Region: a normalized address range plus its two
// value buffers and the filter collections tracking which offsets are still
// candidates for each scanned data type.
type Region struct {
	BaseAddress uint64
	Size        uint64

	CurrentValues  []byte
	PreviousValues []byte

	checksum      uint64
	hasChecksum   bool
	unchanged     bool
	prevCompacted bool // PreviousValues currently holds snappy-compressed bytes

	collections []*filter.Collection
}

// End returns the address one past the region's last byte.
func (r *Region) End() uint64 { return r.BaseAddress + r.Size }

// Unchanged reports whether the most recent ReadAllMemory call found
// CurrentValues byte-identical to the prior read, per the region checksum.
func (r *Region) Unchanged() bool { return r.unchanged }

// Collection returns the filter.Collection tracking typ in this region, if
// one has been initialized.
func (r *Region) Collection(typ memtype.Ref) (*filter.Collection, bool) {
	for _, c := range r.collections {
		if c.DataType.Equal(typ) {
			return c, true
		}
	}
	return nil, false
}

// Collections returns every filter.Collection tracked by this region.
func (r *Region) Collections() []*filter.Collection { return r.collections }

// EnsureCollection returns the existing collection for (typ, alignment), or
// creates one covering the region's full element-aligned extent if absent.
func (r *Region) EnsureCollection(typ memtype.Ref, alignment int, elementSize int) *filter.Collection {
	if c, ok := r.Collection(typ); ok {
		return c
	}
	c := filter.NewCollection(typ, alignment, initialFilters(r.BaseAddress, r.Size, alignment, elementSize))
	r.collections = append(r.collections, c)
	return c
}

// initialFilters returns the single filter covering every fully in-bounds,
// element-aligned offset in [base, base+size). For an element wider than the
// alignment stride, the filter also covers the last element's trailing
// elementSize-alignment bytes, the same padding the scanner kernels add to
// the filters they emit.
func initialFilters(base, size uint64, alignment, elementSize int) []filter.Filter {
	if elementSize <= 0 || uint64(elementSize) > size {
		return nil
	}
	usable := size - uint64(elementSize) + 1
	stride := uint64(alignment)
	count := (usable + stride - 1) / stride
	covered := count * stride
	if uint64(elementSize) > stride {
		covered += uint64(elementSize) - stride
	}
	if covered == 0 {
		return nil
	}
	return []filter.Filter{{BaseAddress: base, Size: covered}}
}

// empty reports whether every collection on this region has no filters.
// A region with zero collections is not considered empty: it has not been
// scanned yet.
func (r *Region) empty() bool {
	if len(r.collections) == 0 {
		return false
	}
	for _, c := range r.collections {
		if !c.Empty() {
			return false
		}
	}
	return true
}

func newChecksum() hash.Hash64 { return seahash.New() }

// refreshChecksum recomputes the region's checksum over CurrentValues and
// records in r.unchanged whether the bytes are unchanged from the previous
// checksum.
func (r *Region) refreshChecksum() {
	h := newChecksum()
	h.Write(r.CurrentValues)
	sum := h.Sum64()
	r.unchanged = r.hasChecksum && sum == r.checksum
	r.checksum = sum
	r.hasChecksum = true
}

// compactPreviousIfLarge snappy-compresses PreviousValues in place once it
// reaches thresholdBytes. ReadAllMemory calls it after every successful
// refill, so a buffer that a relative scan is about to compare against can
// be compacted here and is then decompressed again by PreviousValuesPlain.
func (r *Region) compactPreviousIfLarge(thresholdBytes uint64) {
	if r.prevCompacted || uint64(len(r.PreviousValues)) < thresholdBytes {
		return
	}
	compressed := snappy.Encode(nil, r.PreviousValues)
	plainLen := len(r.PreviousValues)
	if len(compressed) >= plainLen {
		return
	}
	r.PreviousValues = compressed
	r.prevCompacted = true
	log.Debug.Printf("snapshot: compacted previous_values for region %#x (%d -> %d bytes)", r.BaseAddress, plainLen, len(compressed))
}

// decompactPrevious returns PreviousValues in its plain, readable form,
// decompressing transparently if compactPreviousIfLarge compressed it.
func (r *Region) decompactPrevious() ([]byte, error) {
	if !r.prevCompacted {
		return r.PreviousValues, nil
	}
	plain, err := snappy.Decode(nil, r.PreviousValues)
	if err != nil {
		return nil, errors.Wrapf(err, "snapshot: decompact region %#x", r.BaseAddress)
	}
	r.PreviousValues = plain
	r.prevCompacted = false
	return plain, nil
}

// PreviousValuesPlain is decompactPrevious exported for callers outside this
// package (the scan executor) that need the full previous-values buffer to
// feed a relative-comparison kernel, rather than one address's value via
// Snapshot.GetPreviousValue.
func (r *Region) PreviousValuesPlain() ([]byte, error) {
	return r.decompactPrevious()
}
