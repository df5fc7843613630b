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
	"encoding/binary"
	"strconv"
	"testing"

	"github.com/grailbio/memscan/memquery"
	"github.com/grailbio/memscan/memquery/memqueryfake"
	"github.com/grailbio/memscan/memtype"
	"github.com/grailbio/memscan/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func le32(v int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b
}

func i32Buffer(vals ...int32) []byte {
	buf := make([]byte, 0, 4*len(vals))
	for _, v := range vals {
		buf = append(buf, le32(v)...)
	}
	return buf
}

func newEqualToRequest(registry *memtype.Registry, imm int32) ScanRequest {
	desc, _ := registry.Lookup("i32")
	value, err := desc.Deanonymize(strconv.Itoa(int(imm)), memtype.FormatDecimal)
	if err != nil {
		panic(err)
	}
	return ScanRequest{
		Type:      memtype.Ref{ID: "i32"},
		Alignment: 4,
		Op:        memtype.EqualTo,
		Params:    memtype.CompareParams{Immediate: value},
	}
}

func TestNewScanInitializesRegionsAndCollections(t *testing.T) {
	src := &memqueryfake.Source{}
	src.AddPage(memquery.NormalizedRegion{BaseAddress: 0x1000, Protection: memquery.ProtRead}, i32Buffer(1, 2, 3, 4))

	ss := snapshot.New(memtype.NewBuiltinRegistry())
	e := New(memtype.NewBuiltinRegistry())

	err := e.NewScan(context.Background(), ss, memquery.Process{PID: 1}, src, memquery.EnumerateOptions{Mode: memquery.AllUsermode},
		[]snapshot.TypeAndAlignment{{Type: memtype.Ref{ID: "i32"}, Alignment: 4}})
	require.NoError(t, err)

	require.Len(t, ss.Regions(), 1)
	c, ok := ss.Regions()[0].Collection(memtype.Ref{ID: "i32"})
	require.True(t, ok)
	assert.Equal(t, 1, c.Len(), "one initial filter covering the whole region")
}

func TestExecuteScanNarrowsToMatchingFilters(t *testing.T) {
	src := &memqueryfake.Source{}
	src.AddPage(memquery.NormalizedRegion{BaseAddress: 0x1000, Protection: memquery.ProtRead}, i32Buffer(7, 42, 7, 42, 7))

	ss := snapshot.New(memtype.NewBuiltinRegistry())
	e := New(memtype.NewBuiltinRegistry())

	require.NoError(t, e.NewScan(context.Background(), ss, memquery.Process{PID: 1}, src, memquery.EnumerateOptions{Mode: memquery.AllUsermode},
		[]snapshot.TypeAndAlignment{{Type: memtype.Ref{ID: "i32"}, Alignment: 4}}))

	req := newEqualToRequest(e.Registry, 42)
	task := e.ExecuteScan(context.Background(), ss, memquery.Process{PID: 1}, src, req)
	require.NoError(t, task.Wait())

	ss.RLock()
	defer ss.RUnlock()
	require.Len(t, ss.Regions(), 1)
	c, ok := ss.Regions()[0].Collection(memtype.Ref{ID: "i32"})
	require.True(t, ok)
	require.Equal(t, 2, c.Len())
	assert.Equal(t, uint64(0x1000+4), c.Filters()[0].BaseAddress)
	assert.Equal(t, uint64(0x1000+12), c.Filters()[1].BaseAddress)
}

func TestExecuteScanDiscardsRegionsWithNoSurvivingFilters(t *testing.T) {
	src := &memqueryfake.Source{}
	src.AddPage(memquery.NormalizedRegion{BaseAddress: 0x1000, Protection: memquery.ProtRead}, i32Buffer(1, 2, 3, 4))
	src.AddPage(memquery.NormalizedRegion{BaseAddress: 0x2000, Protection: memquery.ProtRead}, i32Buffer(42))

	ss := snapshot.New(memtype.NewBuiltinRegistry())
	e := New(memtype.NewBuiltinRegistry())

	require.NoError(t, e.NewScan(context.Background(), ss, memquery.Process{PID: 1}, src, memquery.EnumerateOptions{Mode: memquery.AllUsermode},
		[]snapshot.TypeAndAlignment{{Type: memtype.Ref{ID: "i32"}, Alignment: 4}}))

	req := newEqualToRequest(e.Registry, 42)
	require.NoError(t, e.ExecuteScan(context.Background(), ss, memquery.Process{PID: 1}, src, req).Wait())

	ss.RLock()
	defer ss.RUnlock()
	require.Len(t, ss.Regions(), 1, "the all-non-42 region has no surviving filters and is discarded")
	assert.Equal(t, uint64(0x2000), ss.Regions()[0].BaseAddress)
}

func TestExecuteScanReportsProgress(t *testing.T) {
	src := &memqueryfake.Source{}
	for i := 0; i < 80; i++ {
		src.AddPage(memquery.NormalizedRegion{BaseAddress: 0x1000 + uint64(i)*0x1000, Protection: memquery.ProtRead}, i32Buffer(42, 42))
	}

	ss := snapshot.New(memtype.NewBuiltinRegistry())
	e := New(memtype.NewBuiltinRegistry())
	e.Parallelism = 4

	require.NoError(t, e.NewScan(context.Background(), ss, memquery.Process{PID: 1}, src, memquery.EnumerateOptions{Mode: memquery.AllUsermode},
		[]snapshot.TypeAndAlignment{{Type: memtype.Ref{ID: "i32"}, Alignment: 4}}))

	req := newEqualToRequest(e.Registry, 42)
	task := e.ExecuteScan(context.Background(), ss, memquery.Process{PID: 1}, src, req)

	sawProgress := false
	for p := range task.Progress() {
		sawProgress = true
		assert.Equal(t, 80, p.RegionsTotal)
	}
	assert.True(t, sawProgress)
	require.NoError(t, task.Wait())
}

func TestExecuteScanCancellationLeavesValidPartialState(t *testing.T) {
	src := &memqueryfake.Source{}
	for i := 0; i < 40; i++ {
		src.AddPage(memquery.NormalizedRegion{BaseAddress: 0x1000 + uint64(i)*0x1000, Protection: memquery.ProtRead}, i32Buffer(42))
	}

	ss := snapshot.New(memtype.NewBuiltinRegistry())
	e := New(memtype.NewBuiltinRegistry())

	require.NoError(t, e.NewScan(context.Background(), ss, memquery.Process{PID: 1}, src, memquery.EnumerateOptions{Mode: memquery.AllUsermode},
		[]snapshot.TypeAndAlignment{{Type: memtype.Ref{ID: "i32"}, Alignment: 4}}))

	req := newEqualToRequest(e.Registry, 42)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	task := e.ExecuteScan(ctx, ss, memquery.Process{PID: 1}, src, req)
	err := task.Wait()
	assert.Error(t, err, "a pre-canceled context must surface as an error, not a silent partial success")

	ss.RLock()
	defer ss.RUnlock()
	for _, r := range ss.Regions() {
		c, ok := r.Collection(memtype.Ref{ID: "i32"})
		require.True(t, ok)
		assert.LessOrEqual(t, c.Len(), 1, "every surviving collection is a valid, non-torn filter list")
	}
}

func TestRegionWorkQueueDeterministicShardingIsStableAcrossRuns(t *testing.T) {
	regions := []*snapshot.Region{
		{BaseAddress: 0x1000}, {BaseAddress: 0x2000}, {BaseAddress: 0x3000}, {BaseAddress: 0x4000},
	}
	e := &Executor{DeterministicSharding: true}

	order := func() []uint64 {
		ch := e.regionWorkQueue(regions)
		var got []uint64
		for idx := range ch {
			got = append(got, regions[idx].BaseAddress)
		}
		return got
	}

	first := order()
	second := order()
	assert.Equal(t, first, second, "the same region set must hash to the same worker-visible order every run")
}
