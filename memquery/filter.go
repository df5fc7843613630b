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

package memquery

import "sort"

// FilterAndClip applies opts to an already-enumerated, unsorted region list:
// it sorts by base address, clips to [RangeStart, RangeEnd), and (in
// FromUserSettings mode) drops regions whose protection or type does not
// satisfy opts. The Linux backend and memqueryfake's in-memory backend both
// use this so the filtering semantics never drift between them.
func FilterAndClip(regions []NormalizedRegion, opts EnumerateOptions, isModule func(NormalizedRegion) bool) []NormalizedRegion {
	out := make([]NormalizedRegion, 0, len(regions))
	for _, r := range regions {
		r, ok := clipToRange(r, opts.RangeStart, opts.RangeEnd)
		if !ok {
			continue
		}
		if !matchesMode(r, opts, isModule) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BaseAddress < out[j].BaseAddress })
	return mergeAdjacent(out)
}

func clipToRange(r NormalizedRegion, start, end uint64) (NormalizedRegion, bool) {
	lo := r.BaseAddress
	hi := r.BaseAddress + r.Size
	if lo < start {
		lo = start
	}
	if end != 0 && hi > end {
		hi = end
	}
	if lo >= hi {
		return NormalizedRegion{}, false
	}
	r.BaseAddress = lo
	r.Size = hi - lo
	return r, true
}

func matchesMode(r NormalizedRegion, opts EnumerateOptions, isModule func(NormalizedRegion) bool) bool {
	switch opts.Mode {
	case AllUsermode:
		return r.Protection.Has(ProtRead)
	case ModulesOnly:
		return isModule != nil && isModule(r)
	case NonModules:
		return isModule == nil || !isModule(r)
	default: // FromUserSettings
		if opts.RequiredProtection != 0 && !r.Protection.Has(opts.RequiredProtection) {
			return false
		}
		if opts.ExcludedProtection != 0 && r.Protection&opts.ExcludedProtection != 0 {
			return false
		}
		if opts.TypeMask != PageNone && r.Type != opts.TypeMask {
			return false
		}
		return true
	}
}

// mergeAdjacent coalesces regions with the same protection and type whose
// [base, base+size) ranges touch or overlap, so EnumeratePages never returns
// overlapping or artificially split adjacent regions.
func mergeAdjacent(sorted []NormalizedRegion) []NormalizedRegion {
	if len(sorted) == 0 {
		return sorted
	}
	out := sorted[:1]
	for _, r := range sorted[1:] {
		last := &out[len(out)-1]
		end := last.BaseAddress + last.Size
		if end >= r.BaseAddress && last.Protection == r.Protection && last.Type == r.Type {
			if rEnd := r.BaseAddress + r.Size; rEnd > end {
				last.Size = rEnd - last.BaseAddress
			}
			continue
		}
		out = append(out, r)
	}
	return out
}
