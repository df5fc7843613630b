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

// Package memquery enumerates a target process's virtual memory pages and
// reads their bytes. The portable surface (Process, PageSource,
// NormalizedRegion) is defined here; the OS-specific page walk lives behind
// a build-tag pair, the same split biosimd uses between its accelerated and
// portable halves: memquery_linux.go (build tag linux) talks to /proc,
// memquery_generic.go (build tag !linux) returns ErrUnsupportedPlatform
// everywhere. Tests drive the in-memory backend in memquery/memqueryfake
// instead of either platform backend.
package memquery
