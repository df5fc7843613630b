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
	"github.com/grailbio/memscan/filter"
	"github.com/grailbio/memscan/memtype"
	"github.com/grailbio/memscan/scanplan"
	"github.com/grailbio/memscan/scanner"
	"github.com/grailbio/memscan/snapshot"
	"github.com/pkg/errors"
)

// scanRegion narrows req.Type's filter collection on r by req.Op, replacing
// it with the surviving filters. A region not yet tracking req.Type is left
// untouched: InitializeScanResults, not ExecuteScan, is what starts tracking
// a new type.
func scanRegion(r *snapshot.Region, req ScanRequest, desc memtype.Descriptor) error {
	c, ok := r.Collection(req.Type)
	if !ok {
		return nil
	}

	var previous []byte
	if req.Op.NeedsPrevious() {
		plain, err := r.PreviousValuesPlain()
		if err != nil {
			return errors.Wrapf(err, "scanexec: region %#x", r.BaseAddress)
		}
		previous = plain
	}

	byteArrayOp := (desc.IsByteArray || desc.IsString) && (req.Op == memtype.EqualTo || req.Op == memtype.NotEqualTo)

	var scalarCmp memtype.ScalarCompareFunc
	var relativeCmp memtype.RelativeCompareFunc
	if !byteArrayOp {
		var ok bool
		if req.Op.NeedsPrevious() {
			relativeCmp, ok = desc.RelativeCompare(req.Op, req.Params)
		} else {
			scalarCmp, ok = desc.ScalarCompare(req.Op, req.Params)
		}
		if !ok {
			return errors.Errorf("scanexec: data type %q does not support op %v", req.Type.ID, req.Op)
		}
	}

	dataSize := desc.SizeInBytes(req.Type)
	regionHasCurrent := len(r.CurrentValues) > 0
	regionHasPrevious := len(previous) > 0

	filters := c.Filters()
	results := make([][]filter.Filter, len(filters))
	for i, f := range filters {
		plan := scanplan.Decide(scanplan.Input{
			Descriptor:        desc,
			Type:              req.Type,
			Op:                req.Op,
			Params:            req.Params,
			Alignment:         c.Alignment,
			FilterSize:        f.Size,
			RegionHasCurrent:  regionHasCurrent,
			RegionHasPrevious: !req.Op.NeedsPrevious() || regionHasPrevious,
		})

		off := f.BaseAddress - r.BaseAddress
		var current []byte
		if regionHasCurrent {
			current = r.CurrentValues[off : off+f.Size]
		}
		in := scanner.Input{
			Filter:          f,
			Current:         current,
			Alignment:       c.Alignment,
			DataSize:        dataSize,
			ScalarCompare:   scalarCmp,
			RelativeCompare: relativeCmp,
			Plan:            plan,
		}
		if req.Op.NeedsPrevious() && regionHasPrevious {
			in.Previous = previous[off : off+f.Size]
		}
		if byteArrayOp {
			in.PatternBytes = req.Params.Immediate.Bytes
			in.PatternEqual = req.Op == memtype.EqualTo
			in.Overlapping = req.Params.Overlapping
		}

		results[i] = scanner.Run(in)
	}

	c.Replace(filter.MergeSorted(results...))
	return nil
}
