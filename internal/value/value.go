// Package value implements the runtime value model and the scope/closure
// machinery. Every Value is a NaN-boxed 64-bit word: doubles pass through
// unboxed, and every other variant is a tagged immediate or a tagged pointer
// to a heap-allocated object rooted by the garbage collector (internal/gc).
//
// The NaN-boxing scheme (tag layout, As*/Is* naming)
// follows a register VM's tagged-double approach, widened to the full
// variant set this runtime needs: Empty, Null, Undefined, Bool, Number,
// String, Object, Array, Function, BuiltinFunction, Arguments.
package value

import "math"

// Value is a NaN-boxed runtime value.
type Value uint64

const (
	nanMask = 0x7FF8000000000000
	tagMask = 0xFFFF000000000000

	// Immediates: all share the NaN payload space at 0x7FF8..., final byte
	// distinguishes the immediate kind.
	tagEmpty     Value = 0x7FF8000000000000
	tagNull      Value = 0x7FF8000000000001
	tagUndefined Value = 0x7FF8000000000002
	tagFalse     Value = 0x7FF8000000000003
	tagTrue      Value = 0x7FF8000000000004

	// Heap pointer tag: bits 51-50 = 11, bits 49-48 = 00 (0x7FFC...). Low 48 bits
	// hold the pointer (see heap.go for the object model it addresses).
	tagPtr  Value = 0x7FFC000000000000
	ptrMask Value = 0x0000FFFFFFFFFFFF

	numberMask = 0x7FF8000000000000
)

// Empty is the sparse-array-slot sentinel: reads back as Undefined through
// the property access protocol but is distinguishable internally so array
// length bookkeeping can tell "never written" from "written undefined".
var Empty = tagEmpty

// Null, Undefined are the two JS-family absent-value immediates.
var (
	Null      = tagNull
	Undefined = tagUndefined
)

// Bool boxes a boolean.
func Bool(b bool) Value {
	if b {
		return tagTrue
	}
	return tagFalse
}

// Number boxes a float64. Any non-NaN double round-trips exactly; a real
// IEEE NaN payload would collide with the tag space (every quiet NaN has the
// 0x7FF8 prefix the tags use), so Number canonicalizes every NaN to the
// single signaling-NaN pattern 0x7FF4000000000000, which lies outside the
// tagged range and still reads back as NaN through AsNumber.
func Number(f float64) Value {
	if f != f {
		return Value(0x7FF4000000000000)
	}
	return Value(math.Float64bits(f))
}

func IsEmpty(v Value) bool     { return v == tagEmpty }
func IsNull(v Value) bool      { return v == tagNull }
func IsUndefined(v Value) bool { return v == tagUndefined }
func IsBool(v Value) bool      { return v == tagTrue || v == tagFalse }
func IsNumber(v Value) bool    { return uint64(v)&numberMask != numberMask }
func IsPointer(v Value) bool   { return uint64(v)&uint64(tagMask) == uint64(tagPtr) }

func AsBool(v Value) bool      { return v == tagTrue }
func AsNumber(v Value) float64 { return math.Float64frombits(uint64(v)) }

// Kind names the semantic variant of a Value for display, type errors, and
// the JIT's value-type table.
type Kind int

const (
	KindEmpty Kind = iota
	KindNull
	KindUndefined
	KindBool
	KindNumber
	KindString
	KindObject
	KindArray
	KindFunction
	KindBuiltinFunction
	KindArguments
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindNull:
		return "null"
	case KindUndefined:
		return "undefined"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindFunction, KindBuiltinFunction:
		return "function"
	case KindArguments:
		return "arguments"
	}
	return "unknown"
}

// TypeOf returns the runtime Kind of v.
func TypeOf(v Value) Kind {
	switch {
	case IsEmpty(v):
		return KindEmpty
	case IsNull(v):
		return KindNull
	case IsUndefined(v):
		return KindUndefined
	case IsBool(v):
		return KindBool
	case IsNumber(v):
		return KindNumber
	case IsPointer(v):
		return AsHeap(v).Kind
	}
	return KindUndefined
}

// IsTruthy implements the boolean-coercion rules the jmp_if_false opcode and
// the JIT's value-to-boolean guard both use.
func IsTruthy(v Value) bool {
	switch {
	case IsEmpty(v), IsNull(v), IsUndefined(v):
		return false
	case IsBool(v):
		return AsBool(v)
	case IsNumber(v):
		return AsNumber(v) != 0.0
	case IsPointer(v):
		h := AsHeap(v)
		switch h.Kind {
		case KindString:
			return AsString(v).S != ""
		default:
			return true
		}
	}
	return true
}
