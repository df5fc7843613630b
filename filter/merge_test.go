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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeSortedCoalescesAdjacent(t *testing.T) {
	a := []Filter{{BaseAddress: 0, Size: 4}, {BaseAddress: 8, Size: 4}}
	b := []Filter{{BaseAddress: 4, Size: 4}, {BaseAddress: 16, Size: 4}}

	got := MergeSorted(a, b)
	assert.Equal(t, []Filter{
		{BaseAddress: 0, Size: 12},
		{BaseAddress: 16, Size: 4},
	}, got)
}

func TestMergeSortedEmptyLists(t *testing.T) {
	assert.Empty(t, MergeSorted())
	assert.Empty(t, MergeSorted(nil, nil))
}

// TestMergeSortedIsOrderIndependent is a property test (spec §8 property 6):
// chunked-parallel scanning must produce the same merged filter set
// regardless of which worker's chunk list is passed first.
func TestMergeSortedIsOrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 100; trial++ {
		numChunks := 1 + rng.Intn(5)
		var all []Filter
		addr := uint64(0)
		for i := 0; i < 40; i++ {
			size := uint64(1 + rng.Intn(8))
			if rng.Intn(2) == 0 {
				all = append(all, Filter{BaseAddress: addr, Size: size})
			}
			addr += size
		}
		lists := make([][]Filter, numChunks)
		for _, f := range all {
			i := rng.Intn(numChunks)
			lists[i] = append(lists[i], f)
		}

		want := MergeSorted(lists...)

		shuffled := make([][]Filter, numChunks)
		copy(shuffled, lists)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got := MergeSorted(shuffled...)

		assert.Equal(t, want, got)
	}
}
