package jit

/*
#include <stdbool.h>
*/
import "C"

import (
	"fmt"
	"math"

	"github.com/nomissbowling/rapidus/internal/value"
)

// sink is where //export'd intrinsics write console.log / process.stdout.write
// output; the host sets it once via SetSink before running any JIT-eligible
// program so compiled code's I/O lands in the same place the interpreter's
// builtins.go does.
var sink func(string) = func(s string) { fmt.Print(s) }

// SetSink redirects every intrinsic's output (both interpreted and
// JIT-compiled code must agree, per the differential-execution property).
func SetSink(w func(string)) { sink = w }

//export console_log_string
func console_log_string(s *C.char) {
	sink(C.GoString(s))
}

//export console_log_bool
func console_log_bool(b C.bool) {
	if b {
		sink("true")
	} else {
		sink("false")
	}
}

//export console_log_f64
func console_log_f64(f C.double) {
	sink(value.ToDisplayString(value.Number(float64(f))))
}

//export console_log_newline
func console_log_newline() {
	sink("\n")
}

//export process_stdout_write
func process_stdout_write(s *C.char) {
	sink(C.GoString(s))
}

//export math_pow
func math_pow(a, b C.double) C.double {
	return C.double(math.Pow(float64(a), float64(b)))
}

//export math_floor
func math_floor(a C.double) C.double {
	return C.double(math.Floor(float64(a)))
}

// rngState backs math_random with the same xorshift64* generator
// internal/vm's interpreted Math.random uses, seeded independently here
// since the JIT and the interpreter never observe each other's sequence
// within a single program run that mixes compiled and interpreted calls.
var rngState uint64 = 0x9E3779B97F4A7C15

//export math_random
func math_random() C.double {
	x := rngState
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	rngState = x
	v := x * 0x2545F4914F6CDD1D
	return C.double(float64(v>>11) / float64(uint64(1)<<53))
}
