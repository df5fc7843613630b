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

package scanner

import (
	"runtime"
	"sync"

	"github.com/grailbio/memscan/filter"
)

// chunkRequest is one non-overlapping sub-range of the original filter,
// sized in.Plan.ChunkSize apart from a possibly-shorter final chunk.
type chunkRequest struct {
	offset uint64
	size   uint64
}

// chunkedVectorAligned splits an oversized VectorAligned filter into
// Plan.ChunkSize-sized pieces (spec §4.E, §5), runs each through
// vectorStrided on a fixed worker pool, then merges the per-chunk sorted
// filter lists back into one address-ordered list.
func chunkedVectorAligned(in Input) []filter.Filter {
	chunkSize := in.Plan.ChunkSize
	if chunkSize == 0 {
		chunkSize = uint64(len(in.Current))
	}

	var chunks []chunkRequest
	for off := uint64(0); off < in.Filter.Size; off += chunkSize {
		size := chunkSize
		if off+size > in.Filter.Size {
			size = in.Filter.Size - off
		}
		chunks = append(chunks, chunkRequest{offset: off, size: size})
	}

	workers := runtime.NumCPU()
	if workers > len(chunks) {
		workers = len(chunks)
	}
	if workers < 1 {
		workers = 1
	}

	reqCh := make(chan int, len(chunks))
	for i := range chunks {
		reqCh <- i
	}
	close(reqCh)

	results := make([][]filter.Filter, len(chunks))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range reqCh {
				results[idx] = scanChunk(in, chunks[idx])
			}
		}()
	}
	wg.Wait()

	return filter.MergeSorted(results...)
}

// scanChunk runs the non-chunked VectorAligned kernel over one sub-range.
// The current/previous slices extend up to DataSize bytes past the chunk
// where the filter has them, but vectorStrided only evaluates elements that
// lie wholly inside the chunk.
func scanChunk(in Input, c chunkRequest) []filter.Filter {
	end := c.offset + c.size
	slack := uint64(in.DataSize)
	readEnd := end + slack
	if readEnd > uint64(len(in.Current)) {
		readEnd = uint64(len(in.Current))
	}

	sub := in
	sub.Filter = filter.Filter{BaseAddress: in.Filter.BaseAddress + c.offset, Size: c.size}
	sub.Current = in.Current[c.offset:readEnd]
	if in.Previous != nil {
		prevEnd := readEnd
		if prevEnd > uint64(len(in.Previous)) {
			prevEnd = uint64(len(in.Previous))
		}
		sub.Previous = in.Previous[c.offset:prevEnd]
	}
	sub.Plan.Chunked = false

	return vectorStrided(sub, in.Plan.LaneWidth, 0)
}
