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

package memqueryfake

import (
	"context"
	"testing"

	"github.com/grailbio/memscan/memquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumerateAndReadRoundTrip(t *testing.T) {
	src := &Source{}
	src.AddPage(memquery.NormalizedRegion{BaseAddress: 0x1000, Protection: memquery.ProtRead | memquery.ProtWrite}, []byte{1, 2, 3, 4})

	regions, err := src.EnumeratePages(context.Background(), memquery.Process{PID: 1}, memquery.EnumerateOptions{Mode: memquery.AllUsermode})
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, uint64(4), regions[0].Size)

	buf := make([]byte, 4)
	n, err := src.ReadBytes(context.Background(), memquery.Process{PID: 1}, 0x1000, buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{1, 2, 3, 4}, buf)
}

func TestReadFailureIsNotFatal(t *testing.T) {
	src := &Source{}
	src.AddPage(memquery.NormalizedRegion{BaseAddress: 0x1000}, []byte{1, 2, 3, 4})
	src.SetReadFailure(0x1000, true)

	buf := make([]byte, 4)
	_, err := src.ReadBytes(context.Background(), memquery.Process{PID: 1}, 0x1000, buf)
	assert.Error(t, err, "a failed page read is reported, not panicked")
}

func TestMutateBytesReflectsInNextRead(t *testing.T) {
	src := &Source{}
	src.AddPage(memquery.NormalizedRegion{BaseAddress: 0x1000}, []byte{0, 0, 0, 0})
	src.MutateBytes(0x1000, 1, []byte{9, 9})

	buf := make([]byte, 4)
	_, err := src.ReadBytes(context.Background(), memquery.Process{PID: 1}, 0x1000, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 9, 9, 0}, buf)
}

func TestModulesOnlyFiltersByModuleMap(t *testing.T) {
	src := &Source{Modules: map[uint64]bool{0x2000: true}}
	src.AddPage(memquery.NormalizedRegion{BaseAddress: 0x1000}, []byte{1})
	src.AddPage(memquery.NormalizedRegion{BaseAddress: 0x2000}, []byte{2})

	regions, err := src.EnumeratePages(context.Background(), memquery.Process{PID: 1}, memquery.EnumerateOptions{Mode: memquery.ModulesOnly})
	require.NoError(t, err)
	if assert.Len(t, regions, 1) {
		assert.Equal(t, uint64(0x2000), regions[0].BaseAddress)
	}
}
