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
package main

/*
memscan is a one-shot live-memory value scanner: given a target PID, a data
type, and a comparison, it opens a fresh Snapshot of the process's usermode
pages, narrows it by the requested comparison, and prints the surviving
addresses. It is a thin driver over the memtype/snapshot/scanexec/resultindex
packages for manual, end-to-end exercise of the scanning pipeline; it holds
no scan state between invocations.
*/
