// Package bytecode defines the flat, stack-oriented instruction format the
// interpreter and the JIT both consume. It is the contract boundary between
// front ends and the runtime: front ends (lexer/parser/compiler) produce a
// Chunk; the runtime never looks past it.
package bytecode

// OpCode is a single-byte opcode. Operands, when present, are either one
// signed byte (Op1) or four little-endian bytes (Op4).
type OpCode byte

const (
	// Stack / literals
	OpPushInt8 OpCode = iota
	OpPushInt32
	OpPushTrue
	OpPushFalse
	OpPushConst // operand: 4-byte constant table index
	OpPushThis
	OpPushArguments
	OpPushUndefined
	OpPop
	OpDouble // duplicate top of stack

	// Arithmetic / logic: pop two, push one
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpZfShr
	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNe
	OpSeq
	OpSne

	// Unary
	OpLnot
	OpNeg
	OpPosi

	// Scope & names (operand: 4-byte name id into the constant table's
	// interned-string pool)
	OpDeclVar
	OpSetName
	OpGetName
	OpSetCurCallobj

	// Objects
	OpCreateObject // operand: 4-byte count of name/value pairs on stack
	OpCreateArray  // operand: 4-byte element count
	OpGetMember
	OpSetMember

	// Control flow (jump operands are 4-byte signed, relative to the byte
	// after the operand)
	OpJmp
	OpJmpIfFalse
	OpCondOp        // ternary join, no-op in the interpreter
	OpLand          // short-circuit && join, no-op in the interpreter
	OpLor           // short-circuit || join, no-op in the interpreter
	OpLoopStart     // operand: 4-byte loop_end pc; JIT hot-loop probe, no-op semantically
	OpCreateContext // frame prologue marker, no-op semantically

	// Calls
	OpCall      // operand: 4-byte argc
	OpConstruct // operand: 4-byte argc
	OpReturn
	OpEnd
)

// Op1 reports whether op takes a single signed-byte operand.
func Op1(op OpCode) bool {
	return op == OpPushInt8
}

// Op4 reports whether op takes a 4-byte little-endian operand.
func Op4(op OpCode) bool {
	switch op {
	case OpPushInt32, OpPushConst, OpDeclVar, OpSetName, OpGetName,
		OpCreateObject, OpCreateArray, OpJmp, OpJmpIfFalse, OpLoopStart,
		OpCall, OpConstruct:
		return true
	}
	return false
}

var names = map[OpCode]string{
	OpPushInt8: "push_int8", OpPushInt32: "push_int32", OpPushTrue: "push_true",
	OpPushFalse: "push_false", OpPushConst: "push_const", OpPushThis: "push_this",
	OpPushArguments: "push_arguments", OpPushUndefined: "push_undefined",
	OpPop: "pop", OpDouble: "double",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpRem: "rem",
	OpAnd: "and", OpOr: "or", OpXor: "xor", OpShl: "shl", OpShr: "shr", OpZfShr: "zfshr",
	OpLt: "lt", OpLe: "le", OpGt: "gt", OpGe: "ge", OpEq: "eq", OpNe: "ne",
	OpSeq: "seq", OpSne: "sne",
	OpLnot: "lnot", OpNeg: "neg", OpPosi: "posi",
	OpDeclVar: "decl_var", OpSetName: "set_name", OpGetName: "get_name",
	OpSetCurCallobj: "set_cur_callobj",
	OpCreateObject:  "create_object", OpCreateArray: "create_array",
	OpGetMember: "get_member", OpSetMember: "set_member",
	OpJmp: "jmp", OpJmpIfFalse: "jmp_if_false", OpCondOp: "cond_op",
	OpLand: "land", OpLor: "lor", OpLoopStart: "loop_start",
	OpCreateContext: "create_context",
	OpCall:          "call", OpConstruct: "construct", OpReturn: "return", OpEnd: "end",
}

func (op OpCode) String() string {
	if n, ok := names[op]; ok {
		return n
	}
	return "unknown"
}
