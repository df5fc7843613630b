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
	"testing"

	"github.com/grailbio/memscan/memtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOpRecognizesEveryDocumentedFlag(t *testing.T) {
	for flagValue := range opsByFlag {
		_, err := parseOp(flagValue)
		assert.NoError(t, err, flagValue)
	}
	op, err := parseOp("eq")
	require.NoError(t, err)
	assert.Equal(t, memtype.EqualTo, op)
}

func TestParseOpRejectsUnknownFlag(t *testing.T) {
	_, err := parseOp("nonsense")
	assert.Error(t, err)
}

func TestParseFormatRecognizesEveryDocumentedFlag(t *testing.T) {
	for flagValue := range formatsByFlag {
		_, err := parseFormat(flagValue)
		assert.NoError(t, err, flagValue)
	}
}

func TestParseFormatRejectsUnknownFlag(t *testing.T) {
	_, err := parseFormat("nonsense")
	assert.Error(t, err)
}
