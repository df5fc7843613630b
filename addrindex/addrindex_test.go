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

package addrindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloorFindsContainingEntry(t *testing.T) {
	var ix Index
	ix.Reset()
	bases := []uint64{0x1000, 0x2000, 0x4000}

	idx, ok := ix.Floor(0x2500, bases)
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestFloorBeforeFirstEntry(t *testing.T) {
	var ix Index
	ix.Reset()
	bases := []uint64{0x1000, 0x2000}

	_, ok := ix.Floor(0x500, bases)
	assert.False(t, ok)
}

func TestFloorExactMatch(t *testing.T) {
	var ix Index
	ix.Reset()
	bases := []uint64{0x1000, 0x2000}

	idx, ok := ix.Floor(0x2000, bases)
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestResetForcesRebuildOnNextFloor(t *testing.T) {
	var ix Index
	ix.Reset()
	bases := []uint64{0x1000}
	idx, ok := ix.Floor(0x1000, bases)
	assert.True(t, ok)
	assert.Equal(t, 0, idx)

	bases = []uint64{0x1000, 0x500}
	ix.Reset()
	idx, ok = ix.Floor(0x500, bases)
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
}
