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

package memtype

// PatternMask is a named extension point for wildcard byte-array matching:
// a non-nil mask of the same length as an immediate byte-array value marks
// which offsets must match exactly (0xFF) versus are don't-care (0x00). No
// built-in Descriptor constructs one yet; it exists so a future masked
// byte-array compare kernel has a place to read the wildcard bits from
// without changing CompareParams' shape again.
type PatternMask []byte
