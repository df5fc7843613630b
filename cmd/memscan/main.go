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

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/memscan/memquery"
	"github.com/grailbio/memscan/memtype"
	"github.com/grailbio/memscan/resultindex"
	"github.com/grailbio/memscan/scanexec"
	"github.com/grailbio/memscan/snapshot"
)

// dumpDiagnosticsTo writes ss's diagnostic summary to path, overwriting any
// existing file. Intended for attaching to a bug report after a confusing
// scan result.
func dumpDiagnosticsTo(ss *snapshot.Snapshot, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ss.DumpDiagnostics(f)
}

var (
	pid           = flag.Int("pid", 0, "Target process ID; required")
	typeName      = flag.String("type", "i32", "Data type to scan for, by registry ID (e.g. i32, f64, bytearray, string)")
	length        = flag.Int("length", 0, "Byte length for -type=bytearray/string; ignored for fixed-size types")
	alignment     = flag.Int("alignment", 4, "Byte alignment of candidate addresses")
	op            = flag.String("op", "eq", "Comparison: eq, neq, gt, ge, lt, le, changed, unchanged, increased, decreased, increasedby, decreasedby, multipliedby, dividedby, moduloby, shiftleftby, shiftrightby, bitwiseand, bitwiseor, bitwisexor")
	value         = flag.String("value", "", "Immediate value (required for immediate and *by ops)")
	format        = flag.String("format", "decimal", "Immediate format: decimal, hex, binary, bytes")
	tolerance     = flag.Float64("tolerance", 0, "Floating-point equality tolerance (EqualTo/NotEqualTo on float types only)")
	parallelism   = flag.Int("parallelism", 0, "Worker count for the scan's per-region dispatch; 0 = runtime.NumCPU()")
	deterministic = flag.Bool("deterministic-sharding", false, "Hand regions to workers in address-hash order instead of snapshot order, for a reproducible dispatch order")
	maxResults    = flag.Int("max-results", 50, "Maximum number of matches to print; 0 = print all")
	dumpDiag      = flag.String("dump-diagnostics", "", "If set, write a gzip-compressed diagnostic summary of the final snapshot to this path")
	overlapping   = flag.Bool("overlapping", false, "For -type=bytearray/string: report every overlapping pattern occurrence instead of only disjoint ones")
)

func memscanUsage() {
	fmt.Printf("Usage: %s -pid <PID> -type <type> -op <op> -value <value> [OPTIONS]\n", os.Args[0])
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = memscanUsage
	shutdown := grail.Init()
	defer shutdown()

	if *pid <= 0 {
		log.Fatalf("memscan: -pid is required")
	}

	registry := memtype.NewBuiltinRegistry()
	desc, ok := registry.Lookup(*typeName)
	if !ok {
		log.Fatalf("memscan: unknown -type %q", *typeName)
	}

	compareOp, err := parseOp(*op)
	if err != nil {
		log.Fatalf("%v", err)
	}

	refLength := *length
	var params memtype.CompareParams
	params.Tolerance = *tolerance
	params.Overlapping = *overlapping
	if compareOp.IsImmediate() || compareOp.IsDelta() {
		if *value == "" {
			log.Fatalf("memscan: -value is required for -op %q", *op)
		}
		immediateFormat, err := parseFormat(*format)
		if err != nil {
			log.Fatalf("%v", err)
		}
		imm, err := desc.Deanonymize(*value, immediateFormat)
		if err != nil {
			log.Fatalf("memscan: parsing -value: %v", err)
		}
		params.Immediate = imm
		if desc.IsByteArray || desc.IsString {
			// The immediate's own parsed length is authoritative; -length only
			// matters for a relative op with no immediate to infer it from.
			refLength = imm.Ref.Length
		}
	}

	typeRef := memtype.Ref{ID: *typeName, Length: refLength}

	ctx := vcontext.Background()
	proc := memquery.Process{PID: *pid}
	source := &memquery.LinuxPageSource{}

	ss := snapshot.New(registry)
	executor := scanexec.New(registry)
	executor.Parallelism = *parallelism
	executor.DeterministicSharding = *deterministic

	opts := memquery.EnumerateOptions{Mode: memquery.AllUsermode}
	if err := executor.NewScan(ctx, ss, proc, source, opts, []snapshot.TypeAndAlignment{{Type: typeRef, Alignment: *alignment}}); err != nil {
		log.Fatalf("memscan: initial scan: %v", err)
	}

	req := scanexec.ScanRequest{Type: typeRef, Alignment: *alignment, Op: compareOp, Params: params}
	task := executor.ExecuteScan(ctx, ss, proc, source, req)
	for p := range task.Progress() {
		log.Debug.Printf("memscan: %d/%d regions scanned", p.RegionsDone, p.RegionsTotal)
	}
	if err := task.Wait(); err != nil {
		log.Fatalf("memscan: scan: %v", err)
	}

	printResults(registry, ss)

	if *dumpDiag != "" {
		if err := dumpDiagnosticsTo(ss, *dumpDiag); err != nil {
			log.Fatalf("memscan: writing -dump-diagnostics: %v", err)
		}
	}
}

func printResults(registry *memtype.Registry, ss *snapshot.Snapshot) {
	ss.RLock()
	defer ss.RUnlock()

	idx := resultindex.Build(registry, ss)
	total := idx.GetTotal()
	fmt.Printf("%d matches\n", total)

	n := total
	if *maxResults > 0 && n > *maxResults {
		n = *maxResults
	}
	for i := 0; i < n; i++ {
		m, err := idx.GetMatch(i)
		if err != nil {
			log.Fatalf("memscan: %v", err)
		}
		fmt.Printf("0x%016x  %x\n", m.Address, m.Current)
	}
	if n < total {
		fmt.Printf("... %d more matches omitted (-max-results %d)\n", total-n, *maxResults)
	}
}
