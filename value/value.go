// Package value implements the tagged value model shared by the compiler and
// the VM: a closed set of numeric widths, strings, records, and the
// legacy-compatible promotion ladder used by binary arithmetic.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies which member of the tagged union a Value holds.
type Kind int

const (
	KindInteger Kind = iota
	KindLong
	KindWide
	KindUInteger
	KindULong
	KindUWide
	KindSingle
	KindDouble
	KindString
	KindFixedString
	KindRecord
	KindBytes
	KindEmpty
	KindNull
)

var kindNames = map[Kind]string{
	KindInteger:     "INTEGER",
	KindLong:        "LONG",
	KindWide:        "_INTEGER64",
	KindUInteger:    "_UNSIGNED INTEGER",
	KindULong:       "_UNSIGNED LONG",
	KindUWide:       "_UNSIGNED _INTEGER64",
	KindSingle:      "SINGLE",
	KindDouble:      "DOUBLE",
	KindString:      "STRING",
	KindFixedString: "STRING*n",
	KindRecord:      "RECORD",
	KindBytes:       "BYTES",
	KindEmpty:       "EMPTY",
	KindNull:        "NULL",
}

func (k Kind) String() string { return kindNames[k] }

// rank is this kind's position on the promotion ladder. Higher ranks win a
// binary operation between mixed numeric operands.
var rank = map[Kind]int{
	KindInteger:  0,
	KindUInteger: 0,
	KindLong:     1,
	KindULong:    1,
	KindWide:     2,
	KindUWide:    2,
	KindSingle:   3,
	KindDouble:   4,
}

// Field is one named field of a Record value, in declaration order.
type Field struct {
	Name  string
	Value Value
}

// Value is a single tagged value. Exactly one of the typed fields is
// meaningful for a given Kind.
type Value struct {
	Kind    Kind
	I16     int16
	I32     int32
	I64     int64
	U16     uint16
	U32     uint32
	U64     uint64
	F32     float32
	F64     float64
	Str     string
	FixLen  int
	Fields  []Field
	RecName string
	Bytes   []byte
}

func Integer(v int16) Value  { return Value{Kind: KindInteger, I16: v} }
func Long(v int32) Value     { return Value{Kind: KindLong, I32: v} }
func Wide(v int64) Value     { return Value{Kind: KindWide, I64: v} }
func UInteger(v uint16) Value { return Value{Kind: KindUInteger, U16: v} }
func ULong(v uint32) Value   { return Value{Kind: KindULong, U32: v} }
func UWide(v uint64) Value   { return Value{Kind: KindUWide, U64: v} }
func Single(v float32) Value { return Value{Kind: KindSingle, F32: v} }
func Double(v float64) Value { return Value{Kind: KindDouble, F64: v} }
func Str(v string) Value     { return Value{Kind: KindString, Str: v} }
func FixedString(length int, v string) Value {
	return Value{Kind: KindFixedString, FixLen: length, Str: v}
}
func Record(name string, fields []Field) Value {
	return Value{Kind: KindRecord, RecName: name, Fields: fields}
}
func BytesOf(b []byte) Value { return Value{Kind: KindBytes, Bytes: b} }

var Empty = Value{Kind: KindEmpty}
var Null = Value{Kind: KindNull}

// Bool returns the legacy boolean integer constant: -1 for true, 0 for false.
func Bool(b bool) Value {
	if b {
		return Integer(-1)
	}
	return Integer(0)
}

// TypeName returns the value's canonical type name.
func (v Value) TypeName() string { return v.Kind.String() }

// Size returns the value's width in bytes.
func (v Value) Size() int {
	switch v.Kind {
	case KindInteger, KindUInteger:
		return 2
	case KindLong, KindULong, KindSingle:
		return 4
	case KindWide, KindUWide, KindDouble:
		return 8
	case KindString:
		return 2 + len(v.Str)
	case KindFixedString:
		return v.FixLen
	case KindBytes:
		return len(v.Bytes)
	case KindRecord:
		total := 0
		for _, f := range v.Fields {
			total += f.Value.Size()
		}
		return total
	default:
		return 0
	}
}

func (v Value) IsNumeric() bool {
	switch v.Kind {
	case KindInteger, KindLong, KindWide, KindUInteger, KindULong, KindUWide, KindSingle, KindDouble:
		return true
	}
	return false
}

func (v Value) IsString() bool {
	return v.Kind == KindString || v.Kind == KindFixedString
}

// AsDouble coerces any numeric value to float64. Panics (caught by callers)
// are avoided; non-numeric input returns 0.
func (v Value) AsDouble() float64 {
	switch v.Kind {
	case KindInteger:
		return float64(v.I16)
	case KindLong:
		return float64(v.I32)
	case KindWide:
		return float64(v.I64)
	case KindUInteger:
		return float64(v.U16)
	case KindULong:
		return float64(v.U32)
	case KindUWide:
		return float64(v.U64)
	case KindSingle:
		return float64(v.F32)
	case KindDouble:
		return v.F64
	}
	return 0
}

// AsLong coerces a numeric value to a 32-bit long, as required by integer
// division, modulo, and array subscripting.
func (v Value) AsLong() int32 {
	switch v.Kind {
	case KindInteger:
		return int32(v.I16)
	case KindLong:
		return v.I32
	case KindWide:
		return int32(v.I64)
	case KindUInteger:
		return int32(v.U16)
	case KindULong:
		return int32(v.U32)
	case KindUWide:
		return int32(v.U64)
	case KindSingle:
		return int32(v.F32)
	case KindDouble:
		return int32(v.F64)
	}
	return 0
}

// Truthy implements the legacy notion of truth used by IF/WHILE/DO guards:
// any nonzero numeric, or any nonempty string.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindInteger:
		return v.I16 != 0
	case KindLong:
		return v.I32 != 0
	case KindWide:
		return v.I64 != 0
	case KindUInteger:
		return v.U16 != 0
	case KindULong:
		return v.U32 != 0
	case KindUWide:
		return v.U64 != 0
	case KindSingle:
		return v.F32 != 0
	case KindDouble:
		return v.F64 != 0
	case KindString, KindFixedString:
		return v.Str != ""
	}
	return false
}

// wider returns the kind with the higher promotion rank between a and b.
func wider(a, b Kind) Kind {
	if rank[a] >= rank[b] {
		return a
	}
	return b
}

// fromDouble builds a Value of the requested numeric kind from a float64
// result, used once a binary operator's result kind has been picked.
func fromDouble(kind Kind, f float64) Value {
	switch kind {
	case KindInteger:
		return Integer(int16(int32(f)))
	case KindLong:
		return Long(int32(f))
	case KindWide:
		return Wide(int64(f))
	case KindUInteger:
		return UInteger(uint16(int64(f)))
	case KindULong:
		return ULong(uint32(int64(f)))
	case KindUWide:
		return UWide(uint64(int64(f)))
	case KindSingle:
		return Single(float32(f))
	default:
		return Double(f)
	}
}

// Add implements `+`. String concatenation wins if either side is a string;
// otherwise wrapping numeric addition per the promotion ladder.
func Add(a, b Value) (Value, error) {
	if a.IsString() || b.IsString() {
		return Str(a.Display() + b.Display()), nil
	}
	return arith(a, b, func(x, y float64) float64 { return x + y },
		func(x, y int64) int64 { return x + y })
}

func Sub(a, b Value) (Value, error) {
	return arith(a, b, func(x, y float64) float64 { return x - y },
		func(x, y int64) int64 { return x - y })
}

func Mul(a, b Value) (Value, error) {
	return arith(a, b, func(x, y float64) float64 { return x * y },
		func(x, y int64) int64 { return x * y })
}

// Div implements true division; it always coerces to double and fails on a
// zero divisor.
func Div(a, b Value) (Value, error) {
	bd := b.AsDouble()
	if bd == 0 {
		return Value{}, divisionByZero
	}
	return Double(a.AsDouble() / bd), nil
}

// IntDiv implements integer division: both operands coerce to long.
func IntDiv(a, b Value) (Value, error) {
	bl := b.AsLong()
	if bl == 0 {
		return Value{}, divisionByZero
	}
	return Long(a.AsLong() / bl), nil
}

// Mod implements modulo: both operands coerce to long.
func Mod(a, b Value) (Value, error) {
	bl := b.AsLong()
	if bl == 0 {
		return Value{}, divisionByZero
	}
	return Long(a.AsLong() % bl), nil
}

// Pow implements exponentiation: both operands coerce to double.
func Pow(a, b Value) (Value, error) {
	return Double(math.Pow(a.AsDouble(), b.AsDouble())), nil
}

// divisionByZero is a sentinel the arithmetic helpers return; callers attach
// line/column via goerr when surfacing it.
var divisionByZero = fmt.Errorf("division by zero")

// IsDivisionByZero reports whether err is the sentinel returned by Div,
// IntDiv, and Mod.
func IsDivisionByZero(err error) bool { return err == divisionByZero }

// arith picks the result kind per the promotion ladder, then evaluates with
// wrapping integer math for integer-integer pairs or IEEE math once either
// operand is a float.
func arith(a, b Value, ffn func(float64, float64) float64, ifn func(int64, int64) int64) (Value, error) {
	resultKind := wider(a.Kind, b.Kind)
	if resultKind == KindSingle || resultKind == KindDouble {
		return fromDouble(resultKind, ffn(a.AsDouble(), b.AsDouble())), nil
	}
	r := ifn(toWideInt(a), toWideInt(b))
	return wrapInt(resultKind, r), nil
}

func toWideInt(v Value) int64 {
	switch v.Kind {
	case KindInteger:
		return int64(v.I16)
	case KindLong:
		return int64(v.I32)
	case KindWide:
		return v.I64
	case KindUInteger:
		return int64(v.U16)
	case KindULong:
		return int64(v.U32)
	case KindUWide:
		return int64(v.U64)
	}
	return int64(v.AsDouble())
}

// wrapInt truncates r to the requested integer width using two's-complement
// wraparound, matching the legacy dialect's integer overflow semantics.
func wrapInt(kind Kind, r int64) Value {
	switch kind {
	case KindInteger:
		return Integer(int16(r))
	case KindUInteger:
		return UInteger(uint16(r))
	case KindLong:
		return Long(int32(r))
	case KindULong:
		return ULong(uint32(r))
	case KindUWide:
		return UWide(uint64(r))
	default:
		return Wide(r)
	}
}

// Neg implements unary minus.
func Neg(a Value) (Value, error) {
	switch a.Kind {
	case KindSingle:
		return Single(-a.F32), nil
	case KindDouble:
		return Double(-a.F64), nil
	default:
		return wrapInt(a.Kind, -toWideInt(a)), nil
	}
}

// Compare implements the dialect's pairwise comparison rule: string-string is
// lexicographic, numeric-numeric compares coerced doubles with an epsilon,
// and any other pairing is a TypeMismatch.
const epsilon = 1e-9

func Compare(a, b Value) (int, error) {
	if a.IsString() && b.IsString() {
		return strings.Compare(a.Str, b.Str), nil
	}
	if a.IsNumeric() && b.IsNumeric() {
		da, db := a.AsDouble(), b.AsDouble()
		if math.Abs(da-db) <= epsilon {
			return 0, nil
		}
		if da < db {
			return -1, nil
		}
		return 1, nil
	}
	return 0, typeMismatch
}

var typeMismatch = fmt.Errorf("type mismatch")

// IsTypeMismatch reports whether err is the sentinel returned by Compare.
func IsTypeMismatch(err error) bool { return err == typeMismatch }

// BitNot, BitAnd, BitOr, BitXor, BitImp, BitEqv implement the dialect's
// bitwise operators over integer/long operands, widened per the usual rule.
func BitNot(a Value) Value { return wrapInt(a.Kind, ^toWideInt(a)) }

func bitwise(a, b Value, fn func(int64, int64) int64) Value {
	return wrapInt(wider(a.Kind, b.Kind), fn(toWideInt(a), toWideInt(b)))
}

func BitAnd(a, b Value) Value { return bitwise(a, b, func(x, y int64) int64 { return x & y }) }
func BitOr(a, b Value) Value  { return bitwise(a, b, func(x, y int64) int64 { return x | y }) }
func BitXor(a, b Value) Value { return bitwise(a, b, func(x, y int64) int64 { return x ^ y }) }
func BitImp(a, b Value) Value {
	return bitwise(a, b, func(x, y int64) int64 { return ^x | y })
}
func BitEqv(a, b Value) Value {
	return bitwise(a, b, func(x, y int64) int64 { return ^(x ^ y) })
}

// Display renders a value in its canonical textual form, used by PRINT and
// by string coercion of a numeric operand to `+`. Per the dialect, a
// non-negative numeric gets a leading space and every printed number gets a
// trailing space.
func (v Value) Display() string {
	switch v.Kind {
	case KindString, KindFixedString:
		return v.Str
	case KindEmpty, KindNull:
		return ""
	case KindRecord:
		var b strings.Builder
		for i, f := range v.Fields {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(f.Value.Display())
		}
		return b.String()
	default:
		return formatNumeric(v.AsDouble(), v.Kind)
	}
}

// formatNumeric reproduces the legacy PRINT numeric layout: a leading space
// for values >= 0, and a trailing space always.
func formatNumeric(f float64, kind Kind) string {
	var s string
	switch kind {
	case KindSingle, KindDouble:
		s = strconv.FormatFloat(f, 'g', -1, 64)
	default:
		s = strconv.FormatInt(int64(f), 10)
	}
	if f >= 0 {
		s = " " + s
	}
	return s + " "
}
