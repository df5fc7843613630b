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

// Package scanexec orchestrates one scan end-to-end over a snapshot.Snapshot:
// refilling memory, dispatching scanplan.Decide and scanner.Run across every
// region's filter collections on a fixed worker pool, and folding the
// results back into the snapshot under its write lock.
package scanexec
