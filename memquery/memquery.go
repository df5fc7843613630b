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

import (
	"context"

	"github.com/pkg/errors"
)

// ErrUnsupportedPlatform is returned by every PageSource method on a
// platform with no native backend.
var ErrUnsupportedPlatform = errors.New("memquery: unsupported platform")

// Process is an opaque handle to a target process, obtained from outside
// this package (process discovery and listing are out of scope; see
// spec §6).
type Process struct {
	PID int
}

// Protection is a bitmask of page protection flags.
type Protection uint8

const (
	ProtRead Protection = 1 << iota
	ProtWrite
	ProtExecute
	ProtCopyOnWrite
)

// Has reports whether all bits in want are set in p.
func (p Protection) Has(want Protection) bool { return p&want == want }

// PageType classifies the backing of a mapped region.
type PageType int

const (
	PageNone PageType = iota
	PagePrivate
	PageImage
	PageMapped
)

// EnumerateMode selects which pages EnumeratePages returns.
type EnumerateMode int

const (
	// FromUserSettings applies the required/excluded protection flags and
	// type mask carried in EnumerateOptions.
	FromUserSettings EnumerateMode = iota
	// AllUsermode returns every readable usermode page, ignoring
	// EnumerateOptions' flags (but still honoring the address range).
	AllUsermode
	// ModulesOnly returns only pages backed by a loaded module/image.
	ModulesOnly
	// NonModules returns every page that is not part of a loaded module.
	NonModules
)

// EnumerateOptions parameterizes FromUserSettings, and bounds every mode's
// address range.
type EnumerateOptions struct {
	Mode EnumerateMode

	RequiredProtection Protection
	ExcludedProtection Protection
	TypeMask           PageType

	RangeStart uint64
	RangeEnd   uint64 // 0 means "no upper bound"
}

// NormalizedRegion is a clipped, non-overlapping page range ready to seed a
// Snapshot Region.
type NormalizedRegion struct {
	BaseAddress uint64
	Size        uint64
	Protection  Protection
	Type        PageType
}

// PageSource enumerates and reads a target process's memory. Implementations
// never panic on a failed read; see ReadBytes.
type PageSource interface {
	// EnumeratePages returns every NormalizedRegion matching opts, sorted
	// by BaseAddress, clipped to opts' range and never overlapping.
	EnumeratePages(ctx context.Context, proc Process, opts EnumerateOptions) ([]NormalizedRegion, error)

	// ReadBytes reads up to len(buf) bytes starting at address into buf,
	// returning the number of bytes actually read. A failed or partial
	// read is reported via the returned error, never a panic: the page may
	// have been deallocated or had its protection changed since
	// enumeration, which is routine, not exceptional.
	ReadBytes(ctx context.Context, proc Process, address uint64, buf []byte) (int, error)
}

// ModuleLister classifies regions as module-backed or not. It is an
// external collaborator interface: this package consumes it (to implement
// ModulesOnly/NonModules) but never implements it — module enumeration is
// out of scope (spec §6). Production wiring supplies a real implementation
// from the process-listing subsystem; tests use memqueryfake's.
type ModuleLister interface {
	IsModuleBacked(proc Process, region NormalizedRegion) bool
}
