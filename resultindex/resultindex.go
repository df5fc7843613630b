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

package resultindex

import (
	"sort"

	"github.com/grailbio/memscan/filter"
	"github.com/grailbio/memscan/memtype"
	"github.com/grailbio/memscan/snapshot"
	"github.com/pkg/errors"
)

// Match is one concrete scan result: the address it was found at, its data
// type, and its bytes at the time the Index was built.
type Match struct {
	Address  uint64
	Type     memtype.Ref
	Current  []byte
	Previous []byte // nil if the region has no captured previous values
}

// entry is one filter.Collection's contribution to the flat ordinal space,
// keyed by the cumulative count through and including this collection.
type entry struct {
	region     *snapshot.Region
	collection *filter.Collection
	pad        int // see filterPadding
	cumulative int
}

// Index maps a global match ordinal in [0, GetTotal()) to a Match. Building
// one walks every region's collections once; GetMatch after that is a binary
// search over the cumulative-count prefix plus an O(collections-per-region)
// linear scan, mirroring the two-level offset-table lookup in
// encoding/bam/gindex.go.
type Index struct {
	registry *memtype.Registry
	entries  []entry
	total    int
}

// Build walks ss's regions in address order, and each region's collections
// in their stored order, recording a cumulative match count per collection.
// Must be called with at least ss's read lock held, and again after any
// scan that mutates filter collections — it is cheap relative to a scan, so
// callers rebuild lazily on the next query rather than incrementally.
func Build(registry *memtype.Registry, ss *snapshot.Snapshot) *Index {
	idx := &Index{registry: registry}
	for _, r := range ss.Regions() {
		for _, c := range r.Collections() {
			pad := filterPadding(registry, c)
			count := collectionMatchCount(c, pad)
			if count == 0 {
				continue
			}
			idx.total += count
			idx.entries = append(idx.entries, entry{region: r, collection: c, pad: pad, cumulative: idx.total})
		}
	}
	return idx
}

// filterPadding is how many trailing bytes of each of c's filters only cover
// the last element's tail (elemSize-alignment for an element wider than its
// alignment stride, else 0); those bytes start no element of their own.
func filterPadding(registry *memtype.Registry, c *filter.Collection) int {
	desc, ok := registry.Lookup(c.DataType.ID)
	if !ok {
		return 0
	}
	if size := desc.SizeInBytes(c.DataType); size > c.Alignment {
		return size - c.Alignment
	}
	return 0
}

func collectionMatchCount(c *filter.Collection, pad int) int {
	n := 0
	for _, f := range c.Filters() {
		n += (int(f.Size) - pad) / c.Alignment
	}
	return n
}

// GetTotal returns the number of addressable matches across every region and
// collection, i.e. the exclusive upper bound for GetMatch's globalIndex.
func (idx *Index) GetTotal() int { return idx.total }

// GetMatch resolves globalIndex to a concrete Match.
func (idx *Index) GetMatch(globalIndex int) (Match, error) {
	if globalIndex < 0 || globalIndex >= idx.total {
		return Match{}, errors.Errorf("resultindex: index %d out of range [0, %d)", globalIndex, idx.total)
	}

	i := sort.Search(len(idx.entries), func(i int) bool { return idx.entries[i].cumulative > globalIndex })
	e := idx.entries[i]

	localOrdinal := globalIndex
	if i > 0 {
		localOrdinal -= idx.entries[i-1].cumulative
	}

	f, offsetInFilter, ok := locateFilter(e.collection, e.pad, localOrdinal)
	if !ok {
		return Match{}, errors.Errorf("resultindex: ordinal %d not covered by any filter in collection", localOrdinal)
	}
	address := f.BaseAddress + uint64(offsetInFilter*e.collection.Alignment)

	desc, ok := idx.registry.Lookup(e.collection.DataType.ID)
	if !ok {
		return Match{}, errors.Errorf("resultindex: unknown data type %q", e.collection.DataType.ID)
	}
	size := uint64(desc.SizeInBytes(e.collection.DataType))
	off := address - e.region.BaseAddress

	m := Match{Address: address, Type: e.collection.DataType}
	if off+size <= uint64(len(e.region.CurrentValues)) {
		m.Current = e.region.CurrentValues[off : off+size]
	}
	if prev, err := e.region.PreviousValuesPlain(); err == nil && off+size <= uint64(len(prev)) {
		m.Previous = prev[off : off+size]
	}
	return m, nil
}

// locateFilter walks c's filters in address order to find the one
// containing the localOrdinal-th element, returning its offset (in
// elements, not bytes) within that filter.
func locateFilter(c *filter.Collection, pad, localOrdinal int) (filter.Filter, int, bool) {
	remaining := localOrdinal
	for _, f := range c.Filters() {
		count := (int(f.Size) - pad) / c.Alignment
		if remaining < count {
			return f, remaining, true
		}
		remaining -= count
	}
	return filter.Filter{}, 0, false
}
