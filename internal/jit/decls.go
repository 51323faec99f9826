package jit

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
)

// declareIntrinsics predeclares the intrinsic ABI's symbols as external
// functions in m, so any emitted call to one of them links against this
// executable's //export'd bridge (intrinsics.go) at dlopen time. Declared
// unconditionally on every module rather than only when referenced: LLVM
// tolerates unused declarations, and it keeps the ABI surface in one place.
func declareIntrinsics(m *ir.Module) {
	i8ptr := types.NewPointer(types.I8)
	m.NewFunc("console_log_string", types.Void, ir.NewParam("s", i8ptr))
	m.NewFunc("console_log_bool", types.Void, ir.NewParam("b", types.I1))
	m.NewFunc("console_log_f64", types.Void, ir.NewParam("f", types.Double))
	m.NewFunc("console_log_newline", types.Void)
	m.NewFunc("process_stdout_write", types.Void, ir.NewParam("s", i8ptr))
	m.NewFunc("math_pow", types.Double, ir.NewParam("a", types.Double), ir.NewParam("b", types.Double))
	m.NewFunc("math_floor", types.Double, ir.NewParam("a", types.Double))
	m.NewFunc("math_random", types.Double)
}
