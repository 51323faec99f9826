package jit

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	irval "github.com/llir/llvm/ir/value"
	mewfloat "github.com/mewmew/float/float64"

	"github.com/nomissbowling/rapidus/internal/bytecode"
)

// kind tags an IR-level stack slot: this runtime's codegen only ever needs
// to distinguish the double lane (Number) from the i1 lane (the transient
// result of a comparison, consumed immediately by jmp_if_false) — strings
// never reach codegen because the candidacy gates require all-numeric
// inputs before compilation is attempted at all.
type kind int

const (
	kindDouble kind = iota
	kindBool
)

type slot struct {
	k kind
	v irval.Value
}

// errNotSupported aborts codegen for a region this lowering doesn't cover.
// Returned, never panicked: a codegen failure just marks the site Dead.
type errNotSupported struct{ reason string }

func (e *errNotSupported) Error() string { return "jit: cannot compile: " + e.reason }

func unsupported(format string, args ...interface{}) error {
	return &errNotSupported{reason: fmt.Sprintf(format, args...)}
}

// translator lowers one bytecode region into a single LLVM function body.
// It is shared by function-JIT and loop-JIT; they differ only in how a
// local name resolves to storage (localRef) and what a region exit compiles
// to (lowerStraightLine's exitTo).
type translator struct {
	fn     *ir.Func
	code   *bytecode.Chunk
	names  map[string]*ir.InstAlloca // local name -> backing alloca
	block  *ir.Block
	selfFn *ir.Func // forward-declared self reference, for recursive calls
}

// localRef returns the alloca backing name, allocating+seeding it via seed
// on first reference. Function-JIT seeds formals from the call's argument
// registers; loop-JIT seeds every tracked local from the incoming pointer
// array.
func (t *translator) localRef(name string, seed func() irval.Value) *ir.InstAlloca {
	if a, ok := t.names[name]; ok {
		return a
	}
	entry := t.fn.Blocks[0]
	a := entry.NewAlloca(types.Double)
	entry.NewStore(seed(), a)
	t.names[name] = a
	return a
}

// lowerStraightLine walks code.Code[bgn:end) translating arithmetic,
// comparisons, local access, and the region's control flow into t.block
// (and any blocks created along the way). exitTo is called whenever
// translation reaches a jump (conditional or not) that leaves [bgn,end) —
// it must terminate the current block. ret is called when a return opcode
// is reached inside the region (end is not lowered) (function-JIT only; loop-JIT never
// contains one, since a loop body can't return through this lowering).
func lowerStraightLine(t *translator, bgn, end int, exitTo func(pc int), ret func(v irval.Value)) error {
	var stack []slot
	pop := func() (slot, error) {
		if len(stack) == 0 {
			return slot{}, unsupported("operand stack underflow at pc %d", bgn)
		}
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return s, nil
	}
	push := func(s slot) { stack = append(stack, s) }

	pc := bgn
	for pc < end {
		op := bytecode.OpCode(t.code.Code[pc])
		opStart := pc
		pc++

		switch op {
		case bytecode.OpPushInt8:
			n := int8(t.code.Code[pc])
			pc++
			push(slot{kindDouble, constFloat(float64(n))})

		case bytecode.OpPushInt32:
			n := t.code.ReadInt32(pc)
			pc += 4
			push(slot{kindDouble, constFloat(float64(n))})

		case bytecode.OpPushConst:
			idx := t.code.ReadInt32(pc)
			pc += 4
			switch c := t.code.Constants[idx].(type) {
			case float64:
				push(slot{kindDouble, constFloat(c)})
			case int:
				push(slot{kindDouble, constFloat(float64(c))})
			default:
				return unsupported("non-numeric constant at pc %d", opStart)
			}

		case bytecode.OpDeclVar, bytecode.OpSetName:
			id := t.code.ReadInt32(pc)
			pc += 4
			name := t.code.Names[id]
			v, err := pop()
			if err != nil {
				return err
			}
			a := t.localRef(name, func() irval.Value { return constFloat(0) })
			t.block.NewStore(toDouble(t.block, v), a)

		case bytecode.OpGetName:
			id := t.code.ReadInt32(pc)
			pc += 4
			name := t.code.Names[id]
			a, ok := t.names[name]
			if !ok {
				return unsupported("free variable %q not available to codegen", name)
			}
			push(slot{kindDouble, t.block.NewLoad(types.Double, a)})

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpRem:
			b, err := pop()
			if err != nil {
				return err
			}
			a, err := pop()
			if err != nil {
				return err
			}
			af, bf := toDouble(t.block, a), toDouble(t.block, b)
			var r irval.Value
			switch op {
			case bytecode.OpAdd:
				r = t.block.NewFAdd(af, bf)
			case bytecode.OpSub:
				r = t.block.NewFSub(af, bf)
			case bytecode.OpMul:
				r = t.block.NewFMul(af, bf)
			case bytecode.OpDiv:
				r = t.block.NewFDiv(af, bf)
			case bytecode.OpRem:
				r = t.block.NewFRem(af, bf)
			}
			push(slot{kindDouble, r})

		case bytecode.OpLt, bytecode.OpLe, bytecode.OpGt, bytecode.OpGe, bytecode.OpEq, bytecode.OpNe:
			b, err := pop()
			if err != nil {
				return err
			}
			a, err := pop()
			if err != nil {
				return err
			}
			pred := fcmpPred(op)
			push(slot{kindBool, t.block.NewFCmp(pred, toDouble(t.block, a), toDouble(t.block, b))})

		case bytecode.OpJmpIfFalse:
			rel := t.code.ReadInt32(pc)
			pc += 4
			target := pc + int(rel)
			cond, err := pop()
			if err != nil {
				return err
			}
			condBool := toBool(t.block, cond)
			thenBlk := t.fn.NewBlock(fmt.Sprintf("pc%d", pc))
			exitTo2 := func() {
				elseBlk := t.fn.NewBlock(fmt.Sprintf("pc%d", target))
				t.block.NewCondBr(condBool, thenBlk, elseBlk)
				t.block = elseBlk
				exitTo(target)
			}
			if target < bgn || target >= end {
				exitTo2()
				t.block = thenBlk
				continue
			}
			// The then-branch is translated as its own sub-region bounded by
			// target (the jmp_if_false join point). This only produces
			// correct IR when the then-branch itself always terminates
			// (return or jmp) rather than falling through to target — true
			// for the `if (cond) return x;` shape this lowering targets.
			elseBlk := t.fn.NewBlock(fmt.Sprintf("pc%d", target))
			t.block.NewCondBr(condBool, thenBlk, elseBlk)
			t.block = thenBlk
			if err := lowerStraightLine(t, pc, target, exitTo, ret); err != nil {
				return err
			}
			t.block = elseBlk
			pc = target
			continue

		case bytecode.OpJmp:
			rel := t.code.ReadInt32(pc)
			pc += 4
			target := pc + int(rel)
			if target < bgn || target >= end {
				exitTo(target)
				return nil
			}
			pc = target
			continue

		case bytecode.OpReturn:
			v, err := pop()
			if err != nil {
				return err
			}
			if ret == nil {
				return unsupported("return not valid in this region")
			}
			ret(toDouble(t.block, v))
			return nil

		case bytecode.OpCall:
			argc := int(t.code.ReadInt32(pc))
			pc += 4
			args := make([]irval.Value, argc)
			for i := argc - 1; i >= 0; i-- {
				s, err := pop()
				if err != nil {
					return err
				}
				args[i] = toDouble(t.block, s)
			}
			// Only self-recursion is resolvable statically at this lowering
			// stage; any other callee is unknown without a symbol table from
			// the already-compiled-function cache, so bail conservatively.
			if t.selfFn == nil {
				return unsupported("call site at pc %d has no resolvable callee", opStart)
			}
			call := t.block.NewCall(t.selfFn, args...)
			push(slot{kindDouble, call})

		case bytecode.OpPop:
			if _, err := pop(); err != nil {
				return err
			}

		case bytecode.OpDouble:
			s, err := pop()
			if err != nil {
				return err
			}
			push(s)
			push(s)

		default:
			return unsupported("opcode %s not supported by this lowering", op)
		}
	}
	return nil
}

func fcmpPred(op bytecode.OpCode) enum.FPred {
	switch op {
	case bytecode.OpLt:
		return enum.FPredOLT
	case bytecode.OpLe:
		return enum.FPredOLE
	case bytecode.OpGt:
		return enum.FPredOGT
	case bytecode.OpGe:
		return enum.FPredOGE
	case bytecode.OpEq:
		return enum.FPredOEQ
	default:
		return enum.FPredONE
	}
}

func toDouble(b *ir.Block, s slot) irval.Value {
	if s.k == kindDouble {
		return s.v
	}
	return b.NewSelect(s.v, constFloat(1), constFloat(0))
}

func toBool(b *ir.Block, s slot) irval.Value {
	if s.k == kindBool {
		return s.v
	}
	return b.NewFCmp(enum.FPredONE, s.v, constFloat(0))
}

// constFloat builds an LLVM double constant for f.
func constFloat(f float64) *constant.Float {
	return constant.NewFloat(types.Double, f)
}

// hexFloat renders f in the hexadecimal literal form LLVM's textual IR
// requires for a double that doesn't round-trip through a plain decimal
// literal. Nothing in this package calls it; constFloat's constants are
// rendered by llir/llvm itself.
func hexFloat(f float64) string {
	return mewfloat.NewFloatFromFloat64(f).Text('x', 0)
}
