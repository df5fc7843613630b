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

// Package addrindex is a sorted, non-overlapping sequence keyed by base
// address, backed by a left-leaning red-black tree for O(log n) "what
// contains address X" lookups. Both snapshot.Snapshot (regions) and
// filter.Collection (filters) are exactly this shape, so they share this one
// implementation instead of each growing their own tree.
//
// The tree is rebuilt lazily: ordered iteration (by far the more common scan
// access pattern) walks a plain slice kept alongside it, and Floor only pays
// the rebuild cost the first time it is called after a slice mutation.
package addrindex

import "github.com/biogo/store/llrb"

type key struct {
	base uint64
	idx  int
}

func (k key) Compare(c2 llrb.Comparable) int {
	o := c2.(key)
	switch {
	case k.base < o.base:
		return -1
	case k.base > o.base:
		return 1
	default:
		return 0
	}
}

// Index maps a base address to the slice index of the entry whose range
// contains it. Callers own the slice itself; Index only ever stores
// addresses and positions into it.
type Index struct {
	tree  llrb.Tree
	dirty bool
}

// Reset marks the index as needing a full rebuild before its next Floor
// call, e.g. after the owning slice has been mutated out from under it.
func (ix *Index) Reset() {
	ix.dirty = true
}

// Rebuild repopulates the tree from bases, one entry per slice position.
// Called automatically by Floor when the index is dirty.
func (ix *Index) Rebuild(bases []uint64) {
	ix.tree = llrb.Tree{}
	for i, b := range bases {
		ix.tree.Insert(key{base: b, idx: i})
	}
	ix.dirty = false
}

// Floor returns the slice index of the entry with the largest base address
// <= addr, rebuilding from bases first if the index is dirty. ok is false if
// no such entry exists (addr is before the first entry, or bases is empty).
func (ix *Index) Floor(addr uint64, bases []uint64) (idx int, ok bool) {
	if ix.dirty {
		ix.Rebuild(bases)
	}
	c := ix.tree.Floor(key{base: addr})
	if c == nil {
		return 0, false
	}
	return c.(key).idx, true
}
