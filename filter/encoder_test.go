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

package filter

import (
	"testing"

	"github.com/grailbio/memscan/memtype"
	"github.com/stretchr/testify/assert"
)

func membersDataType() memtype.Ref { return memtype.Ref{ID: "i32"} }

func TestEncoderSimpleRun(t *testing.T) {
	e := NewEncoder(0x1000)
	e.EncodeRange(1)
	e.EncodeRange(1)
	e.EncodeRange(1)
	e.FinalizeCurrentEncode(1) // mismatch byte after the run

	got := e.TakeResultRegions()
	assert.Equal(t, []Filter{{BaseAddress: 0x1000, Size: 3}}, got)
}

func TestEncoderNoMatchEmitsNothing(t *testing.T) {
	e := NewEncoder(0x1000)
	e.FinalizeCurrentEncode(4)
	assert.Empty(t, e.TakeResultRegions())
}

func TestEncoderMultipleRuns(t *testing.T) {
	e := NewEncoder(0)
	e.EncodeRange(1) // match at 0
	e.FinalizeCurrentEncode(1)
	e.FinalizeCurrentEncode(1) // miss at 2
	e.EncodeRange(1)
	e.EncodeRange(1)
	e.FinalizeCurrentEncode(0) // end of region after match at 3,4

	got := e.TakeResultRegions()
	assert.Equal(t, []Filter{
		{BaseAddress: 0, Size: 1},
		{BaseAddress: 3, Size: 2},
	}, got)
}

func TestEncoderWithPadding(t *testing.T) {
	e := NewEncoder(0x100, WithPadding(3))
	e.EncodeRange(1)
	e.FinalizeCurrentEncode(0)

	got := e.TakeResultRegions()
	assert.Equal(t, []Filter{{BaseAddress: 0x100, Size: 4}}, got)
}

func TestEncoderWithMinimumSizeDropsShortRuns(t *testing.T) {
	e := NewEncoder(0, WithMinimumSize(4))
	e.EncodeRange(2)
	e.FinalizeCurrentEncode(1)
	e.EncodeRange(4)
	e.FinalizeCurrentEncode(0)

	got := e.TakeResultRegions()
	assert.Equal(t, []Filter{{BaseAddress: 3, Size: 4}}, got)
}

func TestEncoderPeriodicSplitsLongRuns(t *testing.T) {
	e := NewEncoder(0, Periodic(4))
	for i := 0; i < 10; i++ {
		e.EncodeRange(1)
	}
	e.FinalizeCurrentEncode(0)

	got := e.TakeResultRegions()
	assert.Equal(t, []Filter{
		{BaseAddress: 0, Size: 4},
		{BaseAddress: 4, Size: 4},
		{BaseAddress: 8, Size: 2},
	}, got)
}

func TestCollectionFilterContaining(t *testing.T) {
	c := NewCollection(
		membersDataType(),
		4,
		[]Filter{{BaseAddress: 0x1000, Size: 0x10}, {BaseAddress: 0x2000, Size: 0x10}},
	)
	f, ok := c.FilterContaining(0x2004)
	assert.True(t, ok)
	assert.Equal(t, uint64(0x2000), f.BaseAddress)

	_, ok = c.FilterContaining(0x1FFF)
	assert.False(t, ok)
}
