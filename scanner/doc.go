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

// Package scanner implements every scanplan.Kind as a function over one
// filter's current (and, for relative/delta ops, previous) bytes, emitting
// surviving sub-ranges through a filter.Encoder. Every kernel, scalar or
// vector, ultimately calls the same memtype comparison function per
// candidate offset; the vector kernels only change how many offsets are
// checked per memsimd call, never the comparison semantics.
package scanner
