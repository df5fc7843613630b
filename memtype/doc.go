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

// Package memtype is the data type registry: a descriptor per scannable
// type (size, endianness, comparison kernels, immediate-value parsing), and
// the built-in type set registered at startup.
//
// Each descriptor is a plain value exposing function values for its scalar
// and vector comparison kernels rather than a method set on an interface
// hierarchy, so that new types are added by constructing and registering
// one more Descriptor value, never by growing a type switch.
package memtype
