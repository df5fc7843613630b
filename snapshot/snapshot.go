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
	"context"
	"sort"
	"sync"

	"github.com/grailbio/base/log"
	"github.com/grailbio/memscan/addrindex"
	"github.com/grailbio/memscan/memquery"
	"github.com/grailbio/memscan/memtype"
	"github.com/pkg/errors"
)

// CompactionThresholdBytes is the default PreviousValues size, per region,
// above which Region.compactPreviousIfLarge snappy-compresses the buffer.
const CompactionThresholdBytes = 1 << 20

// Snapshot owns an ordered, non-overlapping list of Regions captured from
// one target process. The Executor (outside this package) holds the write
// lock for the duration of a scan; query-result readers take the read lock,
// so they observe either the pre-scan or post-scan state, never a partial
// one (spec §5).
type Snapshot struct {
	mu sync.RWMutex

	registry *memtype.Registry

	regions []*Region
	index   addrindex.Index

	CompactionThresholdBytes uint64
}

// New returns an empty Snapshot. registry is consulted read-only to size
// values for GetCurrentValue/GetPreviousValue and InitializeScanResults.
func New(registry *memtype.Registry) *Snapshot {
	return &Snapshot{registry: registry, CompactionThresholdBytes: CompactionThresholdBytes}
}

// Lock/Unlock/RLock/RUnlock expose the Snapshot's mutex directly to the
// executor, which holds the write lock for an entire ExecuteScan call
// rather than per-operation (spec §5).
func (s *Snapshot) Lock()    { s.mu.Lock() }
func (s *Snapshot) Unlock()  { s.mu.Unlock() }
func (s *Snapshot) RLock()   { s.mu.RLock() }
func (s *Snapshot) RUnlock() { s.mu.RUnlock() }

// Regions returns the snapshot's regions in address order. Callers holding
// at least the read lock may read them; only the executor, holding the
// write lock, may mutate them.
func (s *Snapshot) Regions() []*Region { return s.regions }

// InitializeFromQueryer discards all regions and scan results, then
// repopulates regions (with empty buffers) from source's page enumeration.
// Callers must hold the write lock.
func (s *Snapshot) InitializeFromQueryer(ctx context.Context, proc memquery.Process, source memquery.PageSource, opts memquery.EnumerateOptions) error {
	pages, err := source.EnumeratePages(ctx, proc, opts)
	if err != nil {
		return errors.Wrap(err, "snapshot: enumerate pages")
	}
	regions := make([]*Region, len(pages))
	for i, p := range pages {
		regions[i] = &Region{BaseAddress: p.BaseAddress, Size: p.Size}
	}
	s.regions = regions
	s.index.Reset()
	log.Debug.Printf("snapshot: initialized %d regions from queryer", len(regions))
	return nil
}

// ReadAllMemory attempts to refill CurrentValues for every region. When
// movePreviousOnSuccess is true, a region's prior CurrentValues is moved
// into PreviousValues before being overwritten — the executor sets this only
// when a scan is about to consume the previous values (spec §4.C); plain
// value-collection passes (CollectValues) pass false and simply discard the
// old CurrentValues. A failed read is recorded per region (never returned as
// a fatal error) by leaving CurrentValues empty for that region.
func (s *Snapshot) ReadAllMemory(ctx context.Context, proc memquery.Process, source memquery.PageSource, movePreviousOnSuccess bool) (failedReads int, err error) {
	buf := make([]byte, 0)
	for _, r := range s.regions {
		select {
		case <-ctx.Done():
			return failedReads, ctx.Err()
		default:
		}
		if cap(buf) < int(r.Size) {
			buf = make([]byte, r.Size)
		}
		buf = buf[:r.Size]
		n, readErr := source.ReadBytes(ctx, proc, r.BaseAddress, buf)
		if readErr != nil || uint64(n) != r.Size {
			log.Debug.Printf("snapshot: read failed for region %#x: %v", r.BaseAddress, readErr)
			failedReads++
			r.CurrentValues = nil
			continue
		}
		if movePreviousOnSuccess && len(r.CurrentValues) > 0 {
			r.PreviousValues = r.CurrentValues
			r.prevCompacted = false
		}
		r.CurrentValues = append([]byte(nil), buf...)
		r.refreshChecksum()
		r.compactPreviousIfLarge(s.CompactionThresholdBytes)
	}
	return failedReads, nil
}

// TypeAndAlignment names one data type, at one memory alignment, to track
// scan results for.
type TypeAndAlignment struct {
	Type      memtype.Ref
	Alignment int
}

// InitializeScanResults creates, for every region, one filter.Collection per
// requested (type, alignment) pair not already present, covering the
// region's full element-aligned extent.
func (s *Snapshot) InitializeScanResults(pairs []TypeAndAlignment) error {
	for _, r := range s.regions {
		for _, p := range pairs {
			desc, ok := s.registry.Lookup(p.Type.ID)
			if !ok {
				return errors.Errorf("snapshot: unknown data type %q", p.Type.ID)
			}
			elemSize := desc.SizeInBytes(p.Type)
			r.EnsureCollection(p.Type, p.Alignment, elemSize)
		}
	}
	return nil
}

// DiscardEmptyRegions removes every region whose every filter collection has
// no filters left. Must be called at the end of every scan.
func (s *Snapshot) DiscardEmptyRegions() {
	kept := s.regions[:0]
	for _, r := range s.regions {
		if !r.empty() {
			kept = append(kept, r)
		}
	}
	s.regions = kept
	s.index.Reset()
}

// GetCurrentValue returns the typ-sized byte slice at address from the
// region containing it, or ok=false if no region has captured values there.
func (s *Snapshot) GetCurrentValue(address uint64, typ memtype.Ref) (value []byte, ok bool) {
	r, ok := s.regionContaining(address)
	if !ok || len(r.CurrentValues) == 0 {
		return nil, false
	}
	return s.slice(r.CurrentValues, r, address, typ)
}

// GetPreviousValue is GetCurrentValue's previous-values counterpart,
// transparently decompacting the buffer if it was snappy-compressed.
func (s *Snapshot) GetPreviousValue(address uint64, typ memtype.Ref) (value []byte, ok bool) {
	r, ok := s.regionContaining(address)
	if !ok {
		return nil, false
	}
	plain, err := r.decompactPrevious()
	if err != nil || len(plain) == 0 {
		return nil, false
	}
	return s.slice(plain, r, address, typ)
}

func (s *Snapshot) slice(buf []byte, r *Region, address uint64, typ memtype.Ref) ([]byte, bool) {
	desc, ok := s.registry.Lookup(typ.ID)
	if !ok {
		return nil, false
	}
	size := desc.SizeInBytes(typ)
	off := address - r.BaseAddress
	if off+uint64(size) > uint64(len(buf)) {
		return nil, false
	}
	return buf[off : off+uint64(size)], true
}

func (s *Snapshot) regionContaining(address uint64) (*Region, bool) {
	bases := make([]uint64, len(s.regions))
	for i, r := range s.regions {
		bases[i] = r.BaseAddress
	}
	idx, ok := s.index.Floor(address, bases)
	if !ok {
		return nil, false
	}
	r := s.regions[idx]
	if address >= r.End() {
		return nil, false
	}
	return r, true
}

// SetRegionsForTest installs regions directly, sorted by base address,
// bypassing InitializeFromQueryer. Exported for tests in other packages
// (scanexec, resultindex) that need a populated Snapshot without a
// memquery.PageSource.
func (s *Snapshot) SetRegionsForTest(regions []*Region) {
	sort.Slice(regions, func(i, j int) bool { return regions[i].BaseAddress < regions[j].BaseAddress })
	s.regions = regions
	s.index.Reset()
}
