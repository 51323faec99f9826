package vm

import (
	"github.com/nomissbowling/rapidus/internal/bytecode"
	"github.com/nomissbowling/rapidus/internal/value"
)

// LoopSite identifies one loop_start instruction for the JIT's (FuncId, pc)
// hot-path counters. The top-level program body gets one stable FuncId of
// its own (VM.topFuncID) so its loops are traceable the same as a loop
// inside a user function.
type LoopSite struct {
	ID      value.FuncId
	Code    *bytecode.Chunk
	PC      int
	LoopEnd int
	Locals  []string
	Scope   *value.ScopeRecord
}

// JIT is the opaque collaborator the interpreter depends on for three
// operations: deciding whether to enter native code for a function call,
// deciding whether to enter native code for a hot loop, and recording a
// function's observed return type so the next compilation attempt can pick
// a box kind without guessing. The interpreter holds one JIT behind this
// interface; internal/jit supplies the tracing implementation, and tests can
// substitute a no-op one to compare JIT-enabled and JIT-disabled runs
// (the differential invariant).
type JIT interface {
	// TryEnterFunction attempts native execution of fn's body for the given
	// already-evaluated args. ok is false if the call should fall through to
	// the interpreter (not hot yet, not a numeric-args shape, compilation
	// failed, or the site is Dead).
	TryEnterFunction(fn *value.FunctionObj, args []value.Value) (result value.Value, ok bool, err error)

	// TryEnterLoop attempts native execution of the loop body described by
	// site. resumePC is the bytecode offset the interpreter should jump to
	// after native execution; ok is false if the loop should be interpreted
	// normally.
	TryEnterLoop(site LoopSite) (resumePC int, ok bool, err error)

	// RecordReturnType notes the kind of value a function actually returned,
	// so a first compilation that defaulted to double can be informed for
	// the next.
	RecordReturnType(fn *value.FunctionObj, ret value.Value)
}

// NoopJIT never accepts an entry; every call and loop falls through to
// interpretation. Used when no tracing JIT is configured and as the
// "JIT disabled" arm of the differential test.
type NoopJIT struct{}

func (NoopJIT) TryEnterFunction(*value.FunctionObj, []value.Value) (value.Value, bool, error) {
	return value.Undefined, false, nil
}

func (NoopJIT) TryEnterLoop(LoopSite) (int, bool, error) {
	return 0, false, nil
}

func (NoopJIT) RecordReturnType(*value.FunctionObj, value.Value) {}
