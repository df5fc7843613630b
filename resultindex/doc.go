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

// Package resultindex maps a global scan-result ordinal to a concrete match:
// an address, its data type, and its current/previous bytes. It is rebuilt
// lazily from a snapshot.Snapshot whenever a caller pages through results
// after a scan has changed the underlying filter collections.
package resultindex
