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

import "container/heap"

// MergeSorted k-way merges lists, each already sorted by base address and
// internally non-overlapping (the contract every scanner kernel guarantees),
// and coalesces adjacent filters whose end address equals the next filter's
// base address. This is the concrete postcondition for chunked-parallel
// scanning of one oversized filter: each chunk worker emits its own sorted
// list, and MergeSorted reassembles them into one collection-ready list.
func MergeSorted(lists ...[]Filter) []Filter {
	h := make(mergeHeap, 0, len(lists))
	for i, l := range lists {
		if len(l) > 0 {
			h = append(h, mergeItem{list: l, pos: 0, listIdx: i})
		}
	}
	heap.Init(&h)

	merged := make([]Filter, 0)
	for h.Len() > 0 {
		top := h[0]
		f := top.list[top.pos]
		merged = append(merged, f)
		if top.pos+1 < len(top.list) {
			h[0].pos++
			heap.Fix(&h, 0)
		} else {
			heap.Pop(&h)
		}
	}
	return coalesceAdjacent(merged)
}

func coalesceAdjacent(sorted []Filter) []Filter {
	if len(sorted) == 0 {
		return sorted
	}
	out := sorted[:1]
	for _, f := range sorted[1:] {
		last := &out[len(out)-1]
		if last.End() == f.BaseAddress {
			last.Size += f.Size
			continue
		}
		out = append(out, f)
	}
	return out
}

type mergeItem struct {
	list    []Filter
	pos     int
	listIdx int
}

type mergeHeap []mergeItem

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	bi, bj := h[i].list[h[i].pos].BaseAddress, h[j].list[h[j].pos].BaseAddress
	if bi != bj {
		return bi < bj
	}
	return h[i].listIdx < h[j].listIdx
}
func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x interface{}) {
	*h = append(*h, x.(mergeItem))
}
func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
