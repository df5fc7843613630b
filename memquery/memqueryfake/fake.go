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

// Package memqueryfake is a fully in-memory memquery.PageSource, the only
// backend this module's own test suite exercises: driving a real /proc walk
// or a real target process from a unit test would be neither portable nor
// deterministic.
package memqueryfake

import (
	"context"

	"github.com/grailbio/memscan/memquery"
	"github.com/pkg/errors"
)

// page is one fake mapped region plus its backing bytes.
type page struct {
	region memquery.NormalizedRegion
	bytes  []byte
	failed bool // true once SetReadFailure marks it unreadable
}

// Source is an in-memory PageSource. The zero value is ready to use.
type Source struct {
	pages   []page
	Modules map[uint64]bool // BaseAddress -> is module-backed, consulted by IsModuleBacked
}

var _ memquery.PageSource = (*Source)(nil)

// AddPage registers a region backed by contents, which is copied.
func (s *Source) AddPage(region memquery.NormalizedRegion, contents []byte) {
	buf := make([]byte, len(contents))
	copy(buf, contents)
	region.Size = uint64(len(buf))
	s.pages = append(s.pages, page{region: region, bytes: buf})
}

// SetReadFailure makes every subsequent ReadBytes touching base fail,
// simulating a page that was deallocated or reprotected after enumeration.
func (s *Source) SetReadFailure(base uint64, failed bool) {
	for i := range s.pages {
		if s.pages[i].region.BaseAddress == base {
			s.pages[i].failed = failed
		}
	}
}

// MutateBytes overwrites the live contents of the page at base, simulating
// the target process changing its own memory between scans.
func (s *Source) MutateBytes(base uint64, offset int, data []byte) {
	for i := range s.pages {
		if s.pages[i].region.BaseAddress == base {
			copy(s.pages[i].bytes[offset:], data)
			return
		}
	}
}

func (s *Source) IsModuleBacked(proc memquery.Process, region memquery.NormalizedRegion) bool {
	return s.Modules != nil && s.Modules[region.BaseAddress]
}

func (s *Source) EnumeratePages(ctx context.Context, proc memquery.Process, opts memquery.EnumerateOptions) ([]memquery.NormalizedRegion, error) {
	regions := make([]memquery.NormalizedRegion, len(s.pages))
	for i, p := range s.pages {
		regions[i] = p.region
	}
	return memquery.FilterAndClip(regions, opts, func(r memquery.NormalizedRegion) bool { return s.IsModuleBacked(proc, r) }), nil
}

func (s *Source) ReadBytes(ctx context.Context, proc memquery.Process, address uint64, buf []byte) (int, error) {
	for _, p := range s.pages {
		if address < p.region.BaseAddress || address >= p.region.BaseAddress+p.region.Size {
			continue
		}
		if p.failed {
			return 0, errors.Errorf("memqueryfake: simulated read failure at %#x", address)
		}
		off := address - p.region.BaseAddress
		n := copy(buf, p.bytes[off:])
		return n, nil
	}
	return 0, errors.Errorf("memqueryfake: no page contains address %#x", address)
}
