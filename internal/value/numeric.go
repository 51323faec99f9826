package value

import "golang.org/x/exp/constraints"

// ToInt32 truncates a Value's numeric coercion to a 32-bit integer the way
// the interpreter's bitwise opcodes do: a float64→int64→int32 truncation
// chain, with NaN mapping to 0. The JIT has no lowering for the bitwise
// opcodes, so a region containing one is not compiled and always runs
// through this interpreter path.
func ToInt32(v Value) int32 {
	f := ToNumber(v)
	if f != f { // NaN
		return 0
	}
	return int32(int64(f))
}

// clampIndex bounds n into [lo, hi]; ArrayObj's "length" setter uses it to
// keep an assigned length in range. Generic over any integer type.
func clampIndex[T constraints.Integer](n, lo, hi T) T {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
