package vm

import (
	"fmt"
	"math"
	"strings"

	"github.com/nomissbowling/rapidus/internal/errors"
	"github.com/nomissbowling/rapidus/internal/value"
)

// xorshiftState is the process-wide Math.random seed, advanced with the
// xorshift64* generator. Seeded from a fixed constant rather than the clock
// so two runs of the same program produce the same sequence.
var xorshiftState uint64 = 0x9E3779B97F4A7C15

func xorshift64() uint64 {
	x := xorshiftState
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	xorshiftState = x
	return x * 0x2545F4914F6CDD1D
}

// installBuiltins declares the intrinsic ABI's host functions into the
// global scope: console.log, process.stdout.write, and the Math namespace.
// console.log and process.stdout.write close over vm so each VM instance
// writes to its own configured sink.
func (vm *VM) installBuiltins(global *value.ScopeRecord) {
	console := value.NewObject()
	value.AsObject(console).Props.Set("log", value.Builtin("log", vm.builtinConsoleLog))
	global.Declare("console", console)

	stdout := value.NewObject()
	value.AsObject(stdout).Props.Set("write", value.Builtin("write", vm.builtinStdoutWrite))
	process := value.NewObject()
	value.AsObject(process).Props.Set("stdout", stdout)
	global.Declare("process", process)

	math_ := value.NewObject()
	mathProps := value.AsObject(math_).Props
	mathProps.Set("floor", value.Builtin("floor", builtinMathFloor))
	mathProps.Set("random", value.Builtin("random", builtinMathRandom))
	mathProps.Set("pow", value.Builtin("pow", builtinMathPow))
	global.Declare("Math", math_)

	global.Declare("__throw__", value.Builtin("__throw__", builtinThrow))
	global.Declare("__set_proto__", value.Builtin("__set_proto__", builtinSetProto))
}

// builtinThrow lets a compiled throw statement piggyback on the
// interpreter's existing Go-error propagation path instead of needing a
// dedicated opcode: returning a non-nil error here unwinds call.go's doCall
// exactly like any other builtin failure.
func builtinThrow(scope *value.ScopeRecord, args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Undefined, errors.NewUnknownError("thrown error")
	}
	return value.Undefined, errors.NewUnknownError("%s", value.ToDisplayString(args[0]))
}

// builtinSetProto wires a class's prototype object to its superclass's
// prototype object, the one piece of class inheritance that needs a host
// intrinsic rather than a dedicated opcode.
func builtinSetProto(scope *value.ScopeRecord, args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.Undefined, errors.NewTypeError("__set_proto__ requires 2 arguments")
	}
	value.AsObject(args[0]).Props.SetProto(args[1])
	return value.Undefined, nil
}

// builtinConsoleLog formats each argument per its kind and writes a
// space-joined, newline-terminated line to the VM's configured stdout sink.
func (vm *VM) builtinConsoleLog(scope *value.ScopeRecord, args []value.Value) (value.Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = value.ToDisplayString(a)
	}
	vm.StdoutWrite(fmt.Sprintln(strings.Join(parts, " ")))
	return value.Undefined, nil
}

func (vm *VM) builtinStdoutWrite(scope *value.ScopeRecord, args []value.Value) (value.Value, error) {
	if len(args) > 0 {
		vm.StdoutWrite(value.ToDisplayString(args[0]))
	}
	return value.Undefined, nil
}

func builtinMathFloor(scope *value.ScopeRecord, args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Number(math.NaN()), nil
	}
	return value.Number(math.Floor(value.ToNumber(args[0]))), nil
}

func builtinMathRandom(scope *value.ScopeRecord, args []value.Value) (value.Value, error) {
	return value.Number(float64(xorshift64()>>11) / float64(1<<53)), nil
}

func builtinMathPow(scope *value.ScopeRecord, args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.Number(math.NaN()), nil
	}
	return value.Number(math.Pow(value.ToNumber(args[0]), value.ToNumber(args[1]))), nil
}
