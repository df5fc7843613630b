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

package memtype

import "math"

// numericKernel holds the decode functions a Descriptor needs to build
// every comparison op generically, instead of hand-writing six immediate +
// four relative + ten delta kernels per primitive type (mirroring
// original_source's ScalarComparisonsInteger, which is itself generic over
// PrimitiveType via Rust trait bounds; Go renders the same genericity as
// plain closures over decode functions instead of generics, since the
// teacher corpus predates widespread use of Go generics).
type numericKernel struct {
	isFloat  bool
	isSigned bool
	// exactly one of decodeUint/decodeInt/decodeFloat is non-nil.
	decodeUint  func([]byte) uint64
	decodeInt   func([]byte) int64
	decodeFloat func([]byte) float64
}

func (k numericKernel) asFloat(b []byte) float64 {
	switch {
	case k.isFloat:
		return k.decodeFloat(b)
	case k.isSigned:
		return float64(k.decodeInt(b))
	default:
		return float64(k.decodeUint(b))
	}
}

func (k numericKernel) scalarCompare(op CompareOp, params CompareParams) (ScalarCompareFunc, bool) {
	if !op.IsImmediate() {
		return nil, false
	}
	imm := k.asFloat(params.Immediate.Bytes)
	tol := 0.0
	if k.isFloat {
		tol = params.Tolerance
	}
	switch op {
	case EqualTo:
		return func(src []byte) bool { return math.Abs(k.asFloat(src)-imm) <= tol }, true
	case NotEqualTo:
		return func(src []byte) bool { return math.Abs(k.asFloat(src)-imm) > tol }, true
	case GreaterThan:
		return func(src []byte) bool { return k.asFloat(src) > imm }, true
	case GreaterThanOrEqualTo:
		return func(src []byte) bool { return k.asFloat(src) >= imm }, true
	case LessThan:
		return func(src []byte) bool { return k.asFloat(src) < imm }, true
	case LessThanOrEqualTo:
		return func(src []byte) bool { return k.asFloat(src) <= imm }, true
	}
	return nil, false
}

func (k numericKernel) relativeCompare(op CompareOp, params CompareParams) (RelativeCompareFunc, bool) {
	switch {
	case op.IsRelative():
		switch op {
		case Changed:
			return func(src, prev []byte) bool { return k.asFloat(src) != k.asFloat(prev) }, true
		case Unchanged:
			return func(src, prev []byte) bool { return k.asFloat(src) == k.asFloat(prev) }, true
		case Increased:
			return func(src, prev []byte) bool { return k.asFloat(src) > k.asFloat(prev) }, true
		case Decreased:
			return func(src, prev []byte) bool { return k.asFloat(src) < k.asFloat(prev) }, true
		}
		return nil, false
	case op.IsDelta():
		return k.deltaCompare(op, params)
	}
	return nil, false
}

func (k numericKernel) deltaCompare(op CompareOp, params CompareParams) (RelativeCompareFunc, bool) {
	imm := k.asFloat(params.Immediate.Bytes)
	switch op {
	case IncreasedByX:
		return func(src, prev []byte) bool { return k.asFloat(src)-k.asFloat(prev) == imm }, true
	case DecreasedByX:
		return func(src, prev []byte) bool { return k.asFloat(prev)-k.asFloat(src) == imm }, true
	case MultipliedByX:
		return func(src, prev []byte) bool { return k.asFloat(src) == k.asFloat(prev)*imm }, true
	case DividedByX:
		if imm == 0 {
			return nil, false
		}
		return func(src, prev []byte) bool { return k.asFloat(src) == k.asFloat(prev)/imm }, true
	case ModuloByX:
		if k.isFloat || imm == 0 {
			return nil, false
		}
		return func(src, prev []byte) bool { return k.intOf(src) == k.intOf(prev)%int64(imm) }, true
	case ShiftLeftByX:
		if k.isFloat {
			return nil, false
		}
		shift := uint(imm)
		return func(src, prev []byte) bool { return k.uintOf(src) == k.uintOf(prev)<<shift }, true
	case ShiftRightByX:
		if k.isFloat {
			return nil, false
		}
		shift := uint(imm)
		return func(src, prev []byte) bool { return k.uintOf(src) == k.uintOf(prev)>>shift }, true
	case BitwiseAndX:
		if k.isFloat {
			return nil, false
		}
		mask := uint64(imm)
		return func(src, prev []byte) bool { return k.uintOf(src) == k.uintOf(prev)&mask }, true
	case BitwiseOrX:
		if k.isFloat {
			return nil, false
		}
		mask := uint64(imm)
		return func(src, prev []byte) bool { return k.uintOf(src) == k.uintOf(prev)|mask }, true
	case BitwiseXorX:
		if k.isFloat {
			return nil, false
		}
		mask := uint64(imm)
		return func(src, prev []byte) bool { return k.uintOf(src) == k.uintOf(prev)^mask }, true
	}
	return nil, false
}

func (k numericKernel) intOf(b []byte) int64 {
	if k.isSigned {
		return k.decodeInt(b)
	}
	return int64(k.decodeUint(b))
}

func (k numericKernel) uintOf(b []byte) uint64 {
	if k.isSigned {
		return uint64(k.decodeInt(b))
	}
	return k.decodeUint(b)
}
