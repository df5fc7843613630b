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
	"github.com/grailbio/memscan/memtype"
	"github.com/pkg/errors"
)

var opsByFlag = map[string]memtype.CompareOp{
	"eq":  memtype.EqualTo,
	"neq": memtype.NotEqualTo,
	"gt":  memtype.GreaterThan,
	"ge":  memtype.GreaterThanOrEqualTo,
	"lt":  memtype.LessThan,
	"le":  memtype.LessThanOrEqualTo,

	"changed":   memtype.Changed,
	"unchanged": memtype.Unchanged,
	"increased": memtype.Increased,
	"decreased": memtype.Decreased,

	"increasedby":  memtype.IncreasedByX,
	"decreasedby":  memtype.DecreasedByX,
	"multipliedby": memtype.MultipliedByX,
	"dividedby":    memtype.DividedByX,
	"moduloby":     memtype.ModuloByX,
	"shiftleftby":  memtype.ShiftLeftByX,
	"shiftrightby": memtype.ShiftRightByX,
	"bitwiseand":   memtype.BitwiseAndX,
	"bitwiseor":    memtype.BitwiseOrX,
	"bitwisexor":   memtype.BitwiseXorX,
}

func parseOp(flagValue string) (memtype.CompareOp, error) {
	op, ok := opsByFlag[flagValue]
	if !ok {
		return 0, errors.Errorf("memscan: unrecognized -op %q", flagValue)
	}
	return op, nil
}

var formatsByFlag = map[string]memtype.ImmediateFormat{
	"decimal": memtype.FormatDecimal,
	"hex":     memtype.FormatHexadecimal,
	"binary":  memtype.FormatBinary,
	"bytes":   memtype.FormatBytesRaw,
}

func parseFormat(flagValue string) (memtype.ImmediateFormat, error) {
	format, ok := formatsByFlag[flagValue]
	if !ok {
		return 0, errors.Errorf("memscan: unrecognized -format %q", flagValue)
	}
	return format, nil
}
