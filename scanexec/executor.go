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

package scanexec

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/base/log"
	"github.com/grailbio/memscan/memquery"
	"github.com/grailbio/memscan/memtype"
	"github.com/grailbio/memscan/snapshot"
	"github.com/pkg/errors"
)

// progressInterval is how many completed regions elapse between progress
// reports (spec §5).
const progressInterval = 32

// ScanRequest names one comparison to run against every tracked region for
// req.Type at req.Alignment.
type ScanRequest struct {
	Type      memtype.Ref
	Alignment int
	Op        memtype.CompareOp
	Params    memtype.CompareParams
}

// Progress reports how much of the current ExecuteScan call has completed.
type Progress struct {
	RegionsDone  int
	RegionsTotal int
}

// Executor runs scans over a snapshot.Snapshot, parallelizing per-region
// work across a fixed-size worker pool (spec §5).
type Executor struct {
	Registry *memtype.Registry

	// Parallelism is the worker count for ExecuteScan's region dispatch.
	// Zero means runtime.NumCPU(), matching cmd/bio-pileup/main.go's
	// "-parallelism 0" convention.
	Parallelism int

	// DeterministicSharding orders the work channel by a hash of each
	// region's base address rather than snapshot order, so repeated scans
	// hand out regions in the same order run to run. Workers still take
	// regions first-come-first-served off that channel, so which worker
	// scans a given region is not fixed.
	DeterministicSharding bool
}

// New returns an Executor backed by registry.
func New(registry *memtype.Registry) *Executor {
	return &Executor{Registry: registry}
}

func (e *Executor) workerCount() int {
	if e.Parallelism > 0 {
		return e.Parallelism
	}
	return runtime.NumCPU()
}

// NewScan discards any prior snapshot state, enumerates proc's pages via
// source, reads every region's initial CurrentValues, and initializes one
// filter.Collection per requested (type, alignment) pair. Callers must not
// hold ss's lock; NewScan takes the write lock itself.
func (e *Executor) NewScan(ctx context.Context, ss *snapshot.Snapshot, proc memquery.Process, source memquery.PageSource, opts memquery.EnumerateOptions, pairs []snapshot.TypeAndAlignment) error {
	ss.Lock()
	defer ss.Unlock()
	if err := ss.InitializeFromQueryer(ctx, proc, source, opts); err != nil {
		return err
	}
	if _, err := ss.ReadAllMemory(ctx, proc, source, false); err != nil {
		return err
	}
	return ss.InitializeScanResults(pairs)
}

// CollectValues re-reads every region's CurrentValues without disturbing
// PreviousValues or any filter collection; used between scans to observe the
// process's state without narrowing results (spec §4.C).
func (e *Executor) CollectValues(ctx context.Context, ss *snapshot.Snapshot, proc memquery.Process, source memquery.PageSource) (failedReads int, err error) {
	ss.Lock()
	defer ss.Unlock()
	return ss.ReadAllMemory(ctx, proc, source, false)
}

// Task is a handle to one in-flight or completed ExecuteScan call.
type Task struct {
	cancel   context.CancelFunc
	progress chan Progress
	done     chan struct{}
	err      error
}

// Progress returns the channel the executor posts Progress updates to. It is
// closed when the scan completes; draining it is optional.
func (t *Task) Progress() <-chan Progress { return t.progress }

// Cancel requests cooperative cancellation. Workers observe it before
// starting each region: a region scan already in progress runs all of its
// filters to completion, completed regions keep their freshly-scanned
// results, and regions not yet started keep their pre-scan filters, so the
// snapshot ends in a valid, partially refined state rather than a torn one.
func (t *Task) Cancel() { t.cancel() }

// Wait blocks until the scan completes and returns its error, if any.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// ExecuteScan re-reads memory (moving each region's prior CurrentValues into
// PreviousValues), then narrows req.Type's filter collection in every region
// by the requested comparison, discarding regions left with no surviving
// filters. The snapshot's write lock is held for the entire call, so readers
// observe either the pre-scan or post-scan state (spec §5). The returned
// Task's background goroutine holds that lock; callers must not also try to
// lock ss until Wait returns.
func (e *Executor) ExecuteScan(ctx context.Context, ss *snapshot.Snapshot, proc memquery.Process, source memquery.PageSource, req ScanRequest) *Task {
	scanCtx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, progress: make(chan Progress, 1), done: make(chan struct{})}
	go func() {
		defer close(t.done)
		defer close(t.progress)
		t.err = e.runScan(scanCtx, ss, proc, source, req, t.progress)
	}()
	return t
}

func (e *Executor) runScan(ctx context.Context, ss *snapshot.Snapshot, proc memquery.Process, source memquery.PageSource, req ScanRequest, progressCh chan<- Progress) error {
	ss.Lock()
	defer ss.Unlock()

	if _, err := ss.ReadAllMemory(ctx, proc, source, true); err != nil {
		return err
	}

	desc, ok := e.Registry.Lookup(req.Type.ID)
	if !ok {
		return errors.Errorf("scanexec: unknown data type %q", req.Type.ID)
	}

	regions := ss.Regions()
	work := e.regionWorkQueue(regions)

	workers := e.workerCount()
	if workers > len(regions) {
		workers = len(regions)
	}
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	var done int32

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				if ctx.Err() != nil {
					continue
				}
				if err := scanRegion(regions[idx], req, desc); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
				n := atomic.AddInt32(&done, 1)
				if int(n)%progressInterval == 0 {
					reportProgress(progressCh, int(n), len(regions))
				}
			}
		}()
	}
	wg.Wait()
	reportProgress(progressCh, int(done), len(regions))

	ss.DiscardEmptyRegions()

	if firstErr != nil {
		return firstErr
	}
	if err := ctx.Err(); err != nil {
		log.Debug.Printf("scanexec: scan canceled after %d/%d regions", done, len(regions))
		return err
	}
	return nil
}

// regionWorkQueue returns a closed channel carrying every region index once.
// When DeterministicSharding is set, indices are emitted ordered by a hash
// of each region's base address rather than snapshot order, so the order in
// which regions are handed out is stable across runs; which worker pops a
// given index still depends on goroutine scheduling.
func (e *Executor) regionWorkQueue(regions []*snapshot.Region) <-chan int {
	indices := make([]int, len(regions))
	for i := range indices {
		indices[i] = i
	}
	if e.DeterministicSharding {
		sortByAddressHash(indices, regions)
	}
	ch := make(chan int, len(indices))
	for _, i := range indices {
		ch <- i
	}
	close(ch)
	return ch
}

func sortByAddressHash(indices []int, regions []*snapshot.Region) {
	hash := func(i int) uint64 {
		addr := regions[i].BaseAddress
		var b [8]byte
		for k := 0; k < 8; k++ {
			b[k] = byte(addr >> (8 * k))
		}
		return farm.Hash64(b[:])
	}
	sort.Slice(indices, func(a, b int) bool { return hash(indices[a]) < hash(indices[b]) })
}

func reportProgress(ch chan<- Progress, done, total int) {
	select {
	case ch <- Progress{RegionsDone: done, RegionsTotal: total}:
	default:
	}
}
