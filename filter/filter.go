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

import (
	"github.com/grailbio/memscan/addrindex"
	"github.com/grailbio/memscan/memtype"
)

// Filter is a contiguous, still-candidate sub-range inside one Snapshot
// Region. Size is always > 0 and a multiple of the relevant element stride;
// the RLE encoder is responsible for maintaining that invariant.
type Filter struct {
	BaseAddress uint64
	Size        uint64
}

// End returns the address one past the last byte covered by f.
func (f Filter) End() uint64 { return f.BaseAddress + f.Size }

// Collection is an ordered, non-overlapping list of Filters sharing one
// (data type, alignment) pair within a single Snapshot Region.
type Collection struct {
	DataType  memtype.Ref
	Alignment int

	filters []Filter
	index   addrindex.Index
}

// NewCollection returns a Collection holding filters, which the caller
// supplies already sorted by base address, non-overlapping, and clipped to
// element boundaries.
func NewCollection(dataType memtype.Ref, alignment int, filters []Filter) *Collection {
	c := &Collection{DataType: dataType, Alignment: alignment, filters: filters}
	c.index.Reset()
	return c
}

// Filters returns the collection's filters in address order. The returned
// slice must not be mutated by the caller.
func (c *Collection) Filters() []Filter { return c.filters }

// Len returns the number of filters in the collection.
func (c *Collection) Len() int { return len(c.filters) }

// Empty reports whether the collection has no filters, the condition under
// which its owning region becomes eligible for discard.
func (c *Collection) Empty() bool { return len(c.filters) == 0 }

// Replace swaps in a freshly-scanned filter list, which must already be
// sorted by base address and non-overlapping (the postcondition every
// scanner kernel and filter.MergeSorted both guarantee).
func (c *Collection) Replace(filters []Filter) {
	c.filters = filters
	c.index.Reset()
}

// FilterContaining returns the filter whose range contains addr, if any.
func (c *Collection) FilterContaining(addr uint64) (Filter, bool) {
	bases := c.bases()
	idx, ok := c.index.Floor(addr, bases)
	if !ok {
		return Filter{}, false
	}
	f := c.filters[idx]
	if addr >= f.End() {
		return Filter{}, false
	}
	return f, true
}

func (c *Collection) bases() []uint64 {
	bases := make([]uint64, len(c.filters))
	for i, f := range c.filters {
		bases[i] = f.BaseAddress
	}
	return bases
}
