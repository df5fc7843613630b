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

// Package snapshot owns the captured memory of a scan target: an ordered
// list of Regions, each carrying current and previous byte buffers and one
// filter.Collection per tracked data type. A Snapshot is the sole owner of
// its Regions; a Region is the sole owner of its buffers and collections.
package snapshot
