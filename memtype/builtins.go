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

import (
	"bytes"
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Descriptor is everything the rest of the module needs to know about one
// registered data type: how big a value is, how to parse a user-supplied
// immediate for it, and how to build its comparison kernels. It is a value
// type, not an interface, so that registering a new type is "construct and
// Register one more Descriptor" rather than "implement N methods" (spec §3,
// "Data Type Reference").
type Descriptor struct {
	ID string

	// FixedSize is the encoded width in bytes, or 0 for variable-length
	// types (byte array, string), whose width instead comes from the Ref
	// that accompanies every Value of that type.
	FixedSize int

	IsFloatingPoint bool
	IsByteArray     bool
	IsString        bool

	deanonymize func(raw string, format ImmediateFormat) (Value, error)
	scalar      func(op CompareOp, params CompareParams) (ScalarCompareFunc, bool)
	relative    func(op CompareOp, params CompareParams) (RelativeCompareFunc, bool)
}

// SizeInBytes returns the encoded width of values of this type. For
// variable-length types it returns ref.Length.
func (d Descriptor) SizeInBytes(ref Ref) int {
	if d.FixedSize > 0 {
		return d.FixedSize
	}
	return ref.Length
}

// Deanonymize parses a user-supplied immediate string in the given format
// into a Value of this type (spec §6, "Deanonymize").
func (d Descriptor) Deanonymize(raw string, format ImmediateFormat) (Value, error) {
	return d.deanonymize(raw, format)
}

// ScalarCompare builds the immediate-value comparison kernel for op, or
// ok=false if this type does not support op. Relative and delta ops are
// never built here (ok=false); RelativeCompare builds them.
func (d Descriptor) ScalarCompare(op CompareOp, params CompareParams) (fn ScalarCompareFunc, ok bool) {
	if d.scalar == nil {
		return nil, false
	}
	return d.scalar(op, params)
}

// RelativeCompare builds the previous-value comparison kernel for op.
func (d Descriptor) RelativeCompare(op CompareOp, params CompareParams) (fn RelativeCompareFunc, ok bool) {
	if d.relative == nil {
		return nil, false
	}
	return d.relative(op, params)
}

// Registry is a lookup table of registered Descriptors, keyed by Ref.ID.
// A single Registry is constructed once at startup (NewBuiltinRegistry) and
// shared read-only across concurrent scans; Register is not goroutine-safe
// and is meant only for assembling the table up front.
type Registry struct {
	byID map[string]Descriptor
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Descriptor)}
}

// Register adds or replaces d under d.ID.
func (r *Registry) Register(d Descriptor) {
	r.byID[d.ID] = d
}

// Lookup returns the Descriptor registered under id.
func (r *Registry) Lookup(id string) (Descriptor, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// IDs returns every registered type identifier, in no particular order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	return ids
}

func fixedDescriptor(id string, size int, float bool, k numericKernel, deanon func(string, ImmediateFormat) (Value, error)) Descriptor {
	return Descriptor{
		ID:              id,
		FixedSize:       size,
		IsFloatingPoint: float,
		deanonymize:     deanon,
		scalar:          k.scalarCompare,
		relative:        k.relativeCompare,
	}
}

// NewBuiltinRegistry returns a Registry populated with every primitive type
// the scan planner and kernels understand: signed and unsigned integers at
// 1/2/4/8 bytes in both byte orders, IEEE-754 float32/float64 in both byte
// orders, plus the two variable-length types (byte array and UTF-8 string).
// This mirrors the built-in type set enumerated across
// original_source/squalr-engine-api's built_in_types package, one file per
// primitive.
func NewBuiltinRegistry() *Registry {
	reg := NewRegistry()

	intType := func(id string, size int, signed bool, order binary.ByteOrder) {
		var k numericKernel
		k.isSigned = signed
		if signed {
			k.decodeInt = func(b []byte) int64 { return decodeSignedInt(b, size, order) }
		} else {
			k.decodeUint = func(b []byte) uint64 { return decodeUnsignedInt(b, size, order) }
		}
		reg.Register(fixedDescriptor(id, size, false, k, integerDeanonymizer(size, signed, order)))
	}

	intType("i8", 1, true, binary.LittleEndian)
	intType("u8", 1, false, binary.LittleEndian)
	intType("i16", 2, true, binary.LittleEndian)
	intType("i16be", 2, true, binary.BigEndian)
	intType("u16", 2, false, binary.LittleEndian)
	intType("u16be", 2, false, binary.BigEndian)
	intType("i32", 4, true, binary.LittleEndian)
	intType("i32be", 4, true, binary.BigEndian)
	intType("u32", 4, false, binary.LittleEndian)
	intType("u32be", 4, false, binary.BigEndian)
	intType("i64", 8, true, binary.LittleEndian)
	intType("i64be", 8, true, binary.BigEndian)
	intType("u64", 8, false, binary.LittleEndian)
	intType("u64be", 8, false, binary.BigEndian)

	floatType := func(id string, size int, order binary.ByteOrder) {
		var k numericKernel
		k.isFloat = true
		if size == 4 {
			k.decodeFloat = func(b []byte) float64 {
				return float64(math.Float32frombits(order.Uint32(b[:4])))
			}
		} else {
			k.decodeFloat = func(b []byte) float64 {
				return math.Float64frombits(order.Uint64(b[:8]))
			}
		}
		reg.Register(fixedDescriptor(id, size, true, k, floatDeanonymizer(size, order)))
	}

	floatType("f32", 4, binary.LittleEndian)
	floatType("f32be", 4, binary.BigEndian)
	floatType("f64", 8, binary.LittleEndian)
	floatType("f64be", 8, binary.BigEndian)

	reg.Register(byteArrayDescriptor())
	reg.Register(stringDescriptor())

	return reg
}

func decodeUnsignedInt(b []byte, size int, order binary.ByteOrder) uint64 {
	switch size {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(order.Uint16(b[:2]))
	case 4:
		return uint64(order.Uint32(b[:4]))
	default:
		return order.Uint64(b[:8])
	}
}

func decodeSignedInt(b []byte, size int, order binary.ByteOrder) int64 {
	switch size {
	case 1:
		return int64(int8(b[0]))
	case 2:
		return int64(int16(order.Uint16(b[:2])))
	case 4:
		return int64(int32(order.Uint32(b[:4])))
	default:
		return int64(order.Uint64(b[:8]))
	}
}

// integerDeanonymizer returns a parser accepting decimal ("123", "-5"),
// hexadecimal ("0x1F" or "1F"), and binary ("0b1010") immediate strings,
// per spec §6.
func integerDeanonymizer(size int, signed bool, order binary.ByteOrder) func(string, ImmediateFormat) (Value, error) {
	return func(raw string, format ImmediateFormat) (Value, error) {
		var u uint64
		var err error
		switch format {
		case FormatHexadecimal:
			u, err = strconv.ParseUint(strings.TrimPrefix(strings.ToLower(raw), "0x"), 16, 64)
		case FormatBinary:
			u, err = strconv.ParseUint(strings.TrimPrefix(strings.ToLower(raw), "0b"), 2, 64)
		case FormatBytesRaw:
			b, perr := parseByteArrayLiteral(raw)
			if perr != nil {
				return Value{}, perr
			}
			if len(b) != size {
				return Value{}, errors.Errorf("memtype: raw immediate has %d bytes, want %d", len(b), size)
			}
			return Value{Ref: Ref{ID: "", Length: size}, Bytes: b}, nil
		default:
			if signed {
				var s int64
				s, err = strconv.ParseInt(raw, 10, 64)
				u = uint64(s)
			} else {
				u, err = strconv.ParseUint(raw, 10, 64)
			}
		}
		if err != nil {
			return Value{}, errors.Wrapf(err, "memtype: invalid immediate %q", raw)
		}
		buf := make([]byte, size)
		switch size {
		case 1:
			buf[0] = byte(u)
		case 2:
			order.PutUint16(buf, uint16(u))
		case 4:
			order.PutUint32(buf, uint32(u))
		default:
			order.PutUint64(buf, u)
		}
		return Value{Bytes: buf}, nil
	}
}

func floatDeanonymizer(size int, order binary.ByteOrder) func(string, ImmediateFormat) (Value, error) {
	return func(raw string, format ImmediateFormat) (Value, error) {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, errors.Wrapf(err, "memtype: invalid float immediate %q", raw)
		}
		buf := make([]byte, size)
		if size == 4 {
			order.PutUint32(buf, math.Float32bits(float32(f)))
		} else {
			order.PutUint64(buf, math.Float64bits(f))
		}
		return Value{Bytes: buf}, nil
	}
}

// parseByteArrayLiteral accepts two-digit hex pairs separated by spaces or
// hyphens, e.g. "DE AD BE EF" or "de-ad-be-ef" (spec §6).
func parseByteArrayLiteral(raw string) ([]byte, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ' ' || r == '-' })
	out := make([]byte, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 16, 8)
		if err != nil {
			return nil, errors.Wrapf(err, "memtype: invalid byte-array literal %q", raw)
		}
		out[i] = byte(v)
	}
	return out, nil
}

// byteArrayDescriptor implements the variable-length raw byte-array type.
// Its scalar kernel supports only EqualTo/NotEqualTo and its relative kernel
// only Changed/Unchanged; everything else is meaningless for an opaque
// buffer. Neither kernel consults CompareParams.Mask: comparisons are exact
// byte-for-byte.
func byteArrayDescriptor() Descriptor {
	return Descriptor{
		ID:          "bytearray",
		FixedSize:   0,
		IsByteArray: true,
		deanonymize: func(raw string, format ImmediateFormat) (Value, error) {
			b, err := parseByteArrayLiteral(raw)
			if err != nil {
				return Value{}, err
			}
			return Value{Ref: Ref{ID: "bytearray", Length: len(b)}, Bytes: b}, nil
		},
		scalar: func(op CompareOp, params CompareParams) (ScalarCompareFunc, bool) {
			if op != EqualTo && op != NotEqualTo {
				return nil, false
			}
			imm := params.Immediate.Bytes
			want := op == EqualTo
			return func(src []byte) bool {
				if len(src) < len(imm) {
					return false
				}
				return bytes.Equal(src[:len(imm)], imm) == want
			}, true
		},
		relative: func(op CompareOp, params CompareParams) (RelativeCompareFunc, bool) {
			switch op {
			case Changed:
				return func(src, prev []byte) bool { return !bytes.Equal(src, prev) }, true
			case Unchanged:
				return func(src, prev []byte) bool { return bytes.Equal(src, prev) }, true
			}
			return nil, false
		},
	}
}

// stringDescriptor implements the UTF-8 string type: fixed Length taken
// from Ref, equality compared byte-exact (no case-folding, no tolerance —
// spec §9's Open Question resolution).
func stringDescriptor() Descriptor {
	return Descriptor{
		ID:       "string",
		IsString: true,
		deanonymize: func(raw string, format ImmediateFormat) (Value, error) {
			b := []byte(raw)
			return Value{Ref: Ref{ID: "string", Length: len(b)}, Bytes: b}, nil
		},
		scalar: func(op CompareOp, params CompareParams) (ScalarCompareFunc, bool) {
			if op != EqualTo && op != NotEqualTo {
				return nil, false
			}
			imm := params.Immediate.Bytes
			want := op == EqualTo
			return func(src []byte) bool {
				if len(src) < len(imm) {
					return false
				}
				return bytes.Equal(src[:len(imm)], imm) == want
			}, true
		},
		relative: func(op CompareOp, params CompareParams) (RelativeCompareFunc, bool) {
			switch op {
			case Changed:
				return func(src, prev []byte) bool { return !bytes.Equal(src, prev) }, true
			case Unchanged:
				return func(src, prev []byte) bool { return bytes.Equal(src, prev) }, true
			}
			return nil, false
		},
	}
}
