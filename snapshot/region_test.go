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

package snapshot

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshChecksumDetectsUnchanged(t *testing.T) {
	r := &Region{CurrentValues: []byte{1, 2, 3, 4}}
	r.refreshChecksum()
	assert.False(t, r.unchanged, "first checksum has nothing to compare against")

	r.refreshChecksum()
	assert.True(t, r.unchanged, "identical bytes must hash identically")

	r.CurrentValues = []byte{1, 2, 3, 5}
	r.refreshChecksum()
	assert.False(t, r.unchanged)
}

func TestCompactAndDecompactPreviousRoundTrips(t *testing.T) {
	r := &Region{PreviousValues: bytes.Repeat([]byte{0xAB}, 64)}
	r.compactPreviousIfLarge(32)
	assert.True(t, r.prevCompacted)

	plain, err := r.decompactPrevious()
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xAB}, 64), plain)
	assert.False(t, r.prevCompacted)
}

func TestCompactPreviousSkipsBelowThreshold(t *testing.T) {
	r := &Region{PreviousValues: []byte{1, 2, 3, 4}}
	r.compactPreviousIfLarge(1 << 20)
	assert.False(t, r.prevCompacted)
}

func TestInitialFiltersAlignsToElementBoundary(t *testing.T) {
	filters := initialFilters(0x1000, 10, 4, 4)
	require.Len(t, filters, 1)
	assert.Equal(t, uint64(0x1000), filters[0].BaseAddress)
	assert.Equal(t, uint64(8), filters[0].Size, "only 2 full 4-byte-aligned elements fit in 10 bytes")
}
