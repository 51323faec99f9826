// Package vm implements the bytecode interpreter: a stack VM with call
// frames and a scope chain, dispatching a flat opcode stream produced by
// internal/bytecode. It consults a JIT (internal/jit, behind the JIT
// interface in jit.go) at function entry and loop headers, and falls back
// to pure interpretation whenever the JIT declines.
//
// The dispatch loop's shape — a switch-in-loop over a program counter, an
// explicit operand stack, and a frame stack each carrying a saved stack
// height and return pc — follows the switch-in-loop convention a register VM
// typically uses, adapted to this runtime's NaN-boxed Value and opcode set.
package vm

import (
	"fmt"

	"github.com/nomissbowling/rapidus/internal/bytecode"
	"github.com/nomissbowling/rapidus/internal/errors"
	"github.com/nomissbowling/rapidus/internal/gc"
	"github.com/nomissbowling/rapidus/internal/value"
)

// Frame is one call-history entry: the executing chunk, the scope it runs
// in, the saved program counter to resume the caller at, and the operand
// stack height to restore on return.
type Frame struct {
	chunk       *bytecode.Chunk
	fn          *value.FunctionObj // nil for the top-level program
	funcID      value.FuncId       // fn.ID, or VM.topFuncID for the top level
	scope       *value.ScopeRecord
	pc          int
	stackHeight int

	// isConstruct/constructThis implement construct's return-value rule: if
	// the callee's return value isn't an Object/Array/Function, the freshly
	// allocated `this` is substituted for it.
	isConstruct   bool
	constructThis value.Value
}

// VM is one interpreter instance: one operand stack, one frame stack, one
// JIT collaborator. Not safe for concurrent use — execution is
// single-threaded and non-cooperative.
type VM struct {
	stack  []value.Value
	frames []*Frame
	cur    *Frame

	global    *value.ScopeRecord
	jit       JIT
	topFuncID value.FuncId

	gcThreshold int
	allocsSinceGC int

	// StdoutWrite receives process.stdout.write and console.log output; the
	// CLI driver points this at os.Stdout, tests point it at a buffer.
	StdoutWrite func(string)
}

// New returns a VM ready to run program at the top level, with an empty
// global scope record. jit may be NoopJIT{} to disable tracing entirely.
func New(jit JIT) *VM {
	vm := &VM{
		stack:       make([]value.Value, 0, 1024),
		global:      value.NewScopeRecord(nil, nil),
		jit:         jit,
		topFuncID:   value.NewFuncId(),
		gcThreshold: 4096,
		StdoutWrite: func(s string) { fmt.Print(s) },
	}
	vm.installBuiltins(vm.global)
	value.CallFunction = vm.callValue
	return vm
}

func (vm *VM) push(v value.Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() value.Value {
	n := len(vm.stack) - 1
	v := vm.stack[n]
	vm.stack = vm.stack[:n]
	return v
}

func (vm *VM) peek(offset int) value.Value {
	return vm.stack[len(vm.stack)-1-offset]
}

// returnFrom unwinds f (applying construct's return-value substitution),
// and either resumes the caller frame with ret pushed back (done is false)
// or reports that the frame stack has unwound to stopAt (done is true, in
// which case the caller is responsible for deciding whether to resume
// itself — callValue's reentrant case already has ret pushed for it; the
// top-level Run case has nothing left to resume).
func (vm *VM) returnFrom(f *Frame, ret value.Value, stopAt int) (value.Value, bool) {
	if f.isConstruct && !isConstructibleResult(ret) {
		ret = f.constructThis
	}
	vm.stack = vm.stack[:f.stackHeight]
	vm.frames = vm.frames[:len(vm.frames)-1]
	if len(vm.frames) == stopAt {
		if stopAt != 0 {
			vm.cur = vm.frames[len(vm.frames)-1]
			vm.push(ret)
		}
		return ret, true
	}
	vm.cur = vm.frames[len(vm.frames)-1]
	vm.push(ret)
	return ret, false
}

// tryEnterLoop asks the JIT to run the loop starting at the current pc
// (already advanced past loop_start's opcode and operand) through loopEnd
// natively. locals is approximated as every name currently bound in the
// executing scope record — this runtime has no separate block scoping, so a
// function body's scope record already holds exactly the names a loop in it
// can read or write.
func (vm *VM) tryEnterLoop(f *Frame, loopEnd int) (int, bool) {
	locals := make([]string, 0, f.scope.Bindings.Len())
	f.scope.Bindings.Each(func(k string, _ value.PropEntry) bool {
		locals = append(locals, k)
		return true
	})
	site := LoopSite{ID: f.funcID, Code: f.chunk, PC: f.pc, LoopEnd: loopEnd, Locals: locals, Scope: f.scope}
	resume, ok, err := vm.jit.TryEnterLoop(site)
	if err != nil || !ok {
		return 0, false
	}
	return resume, true
}

func (vm *VM) maybeGC() {
	vm.allocsSinceGC++
	if vm.allocsSinceGC < vm.gcThreshold {
		return
	}
	vm.allocsSinceGC = 0
	scopes := make([]*value.ScopeRecord, 0, len(vm.frames))
	for _, f := range vm.frames {
		scopes = append(scopes, f.scope)
	}
	gc.Collect(vm.stack, scopes)
}

// Run compiles nothing itself; it executes chunk as the top-level program
// body running in the VM's global scope record, and returns the last value
// left on the operand stack (Undefined if the program never pushed one).
func (vm *VM) Run(chunk *bytecode.Chunk) (value.Value, error) {
	vm.cur = &Frame{chunk: chunk, funcID: vm.topFuncID, scope: vm.global, pc: 0}
	vm.frames = []*Frame{vm.cur}
	return vm.run(0)
}

// run drives the dispatch loop until the frame stack depth drops to stopAt.
// stopAt is 0 for the top-level Run call; callValue (the reentrant seam a
// builtin uses to invoke a user Function mid-dispatch) passes the frame
// depth it was called at, so the nested loop returns control to the Go call
// stack instead of continuing to interpret the resumed caller frame itself
// — that frame is already being interpreted by the outer, paused
// invocation of run.
func (vm *VM) run(stopAt int) (value.Value, error) {
	for {
		f := vm.cur
		if f.pc >= len(f.chunk.Code) {
			ret := value.Undefined
			if len(vm.stack) > f.stackHeight {
				ret = vm.pop()
			}
			ret, done := vm.returnFrom(f, ret, stopAt)
			if done {
				return ret, nil
			}
			continue
		}
		op := bytecode.OpCode(f.chunk.Code[f.pc])
		f.pc++

		switch op {
		case bytecode.OpPushInt8:
			n := int8(f.chunk.Code[f.pc])
			f.pc++
			vm.push(value.Number(float64(n)))

		case bytecode.OpPushInt32:
			n := f.chunk.ReadInt32(f.pc)
			f.pc += 4
			vm.push(value.Number(float64(n)))

		case bytecode.OpPushConst:
			idx := f.chunk.ReadInt32(f.pc)
			f.pc += 4
			vm.push(vm.boxConstant(f.chunk.Constants[idx]))

		case bytecode.OpPushTrue:
			vm.push(value.Bool(true))
		case bytecode.OpPushFalse:
			vm.push(value.Bool(false))
		case bytecode.OpPushUndefined:
			vm.push(value.Undefined)
		case bytecode.OpPushThis:
			vm.push(f.scope.This)
		case bytecode.OpPushArguments:
			vm.push(value.NewArguments(f.scope))
		case bytecode.OpPop:
			vm.pop()
		case bytecode.OpDouble:
			vm.push(vm.peek(0))

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpRem,
			bytecode.OpAnd, bytecode.OpOr, bytecode.OpXor, bytecode.OpShl, bytecode.OpShr, bytecode.OpZfShr,
			bytecode.OpLt, bytecode.OpLe, bytecode.OpGt, bytecode.OpGe,
			bytecode.OpEq, bytecode.OpNe, bytecode.OpSeq, bytecode.OpSne:
			b := vm.pop()
			a := vm.pop()
			r, err := binaryOp(op, a, b)
			if err != nil {
				return value.Undefined, vm.wrapErr(err)
			}
			vm.push(r)

		case bytecode.OpLnot:
			vm.push(value.Bool(!value.IsTruthy(vm.pop())))
		case bytecode.OpNeg:
			vm.push(value.Number(-value.ToNumber(vm.pop())))
		case bytecode.OpPosi:
			vm.push(value.Number(value.ToNumber(vm.pop())))

		case bytecode.OpDeclVar:
			id := f.chunk.ReadInt32(f.pc)
			f.pc += 4
			f.scope.Declare(f.chunk.Names[id], vm.pop())

		case bytecode.OpSetName:
			id := f.chunk.ReadInt32(f.pc)
			f.pc += 4
			f.scope.AssignExisting(f.chunk.Names[id], vm.pop())

		case bytecode.OpGetName:
			id := f.chunk.ReadInt32(f.pc)
			f.pc += 4
			name := f.chunk.Names[id]
			v, ok := f.scope.Get(name)
			if !ok {
				return value.Undefined, vm.wrapErr(errors.NewReferenceError(name))
			}
			vm.push(v)

		case bytecode.OpSetCurCallobj:
			top := vm.peek(0)
			if value.IsFunction(top) {
				value.AsFunction(top).Scope.Parent = f.scope
			}

		case bytecode.OpCreateObject:
			n := int(f.chunk.ReadInt32(f.pc))
			f.pc += 4
			obj := value.NewObject()
			props := value.AsObject(obj).Props
			pairs := make([]struct {
				k string
				v value.Value
			}, n)
			for i := n - 1; i >= 0; i-- {
				v := vm.pop()
				k := vm.pop()
				pairs[i] = struct {
					k string
					v value.Value
				}{value.ToDisplayString(k), v}
			}
			for _, p := range pairs {
				props.Set(p.k, p.v)
			}
			vm.maybeGC()
			vm.push(obj)

		case bytecode.OpCreateArray:
			n := int(f.chunk.ReadInt32(f.pc))
			f.pc += 4
			elems := make([]value.Value, n)
			for i := n - 1; i >= 0; i-- {
				elems[i] = vm.pop()
			}
			vm.maybeGC()
			vm.push(value.NewArray(elems))

		case bytecode.OpGetMember:
			member := vm.pop()
			parent := vm.pop()
			v, err := vm.getMember(parent, member)
			if err != nil {
				return value.Undefined, vm.wrapErr(err)
			}
			vm.push(v)

		case bytecode.OpSetMember:
			v := vm.pop()
			member := vm.pop()
			parent := vm.pop()
			if err := vm.setMember(parent, member, v); err != nil {
				return value.Undefined, vm.wrapErr(err)
			}
			vm.push(v)

		case bytecode.OpJmp:
			rel := f.chunk.ReadInt32(f.pc)
			f.pc += 4
			f.pc += int(rel)

		case bytecode.OpJmpIfFalse:
			rel := f.chunk.ReadInt32(f.pc)
			f.pc += 4
			if !value.IsTruthy(vm.pop()) {
				f.pc += int(rel)
			}

		case bytecode.OpCondOp, bytecode.OpLand, bytecode.OpLor, bytecode.OpCreateContext:
			// no-op join markers

		case bytecode.OpLoopStart:
			loopEnd := f.chunk.ReadInt32(f.pc)
			f.pc += 4
			if resume, ok := vm.tryEnterLoop(f, int(loopEnd)); ok {
				f.pc = resume
			}

		case bytecode.OpCall:
			argc := int(f.chunk.ReadInt32(f.pc))
			f.pc += 4
			if err := vm.doCall(argc, false); err != nil {
				return value.Undefined, vm.wrapErr(err)
			}

		case bytecode.OpConstruct:
			argc := int(f.chunk.ReadInt32(f.pc))
			f.pc += 4
			if err := vm.doCall(argc, true); err != nil {
				return value.Undefined, vm.wrapErr(err)
			}

		case bytecode.OpReturn:
			ret := vm.pop()
			if f.fn != nil {
				vm.jit.RecordReturnType(f.fn, ret)
			}
			ret, done := vm.returnFrom(f, ret, stopAt)
			if done {
				return ret, nil
			}

		case bytecode.OpEnd:
			ret := value.Undefined
			if len(vm.stack) > f.stackHeight {
				ret = vm.pop()
			}
			ret, done := vm.returnFrom(f, ret, stopAt)
			if done {
				return ret, nil
			}

		default:
			return value.Undefined, vm.wrapErr(errors.NewUnknownError("unhandled opcode %s", op))
		}
	}
}

// boxConstant converts a Chunk constant (as produced by the front end) into
// a runtime Value. Numbers, strings and bools box directly; a *FuncLiteral
// boxes as a new Function whose captured scope is a Clone of the current
// scope, which run's OpSetCurCallobj handling then reparents.
func (vm *VM) boxConstant(c interface{}) value.Value {
	switch v := c.(type) {
	case float64:
		return value.Number(v)
	case int:
		return value.Number(float64(v))
	case string:
		return value.String(v)
	case bool:
		return value.Bool(v)
	case *FuncLiteral:
		captured := vm.cur.scope.Clone()
		fn := value.NewFunction(v.Name, v.Params, v.Code, captured)
		return fn
	}
	return value.Undefined
}

// FuncLiteral is the constant-table shape the compiler emits for a nested
// function: its compiled body plus the formal-parameter descriptors that
// the closure machinery needs at call time.
type FuncLiteral struct {
	Name   string
	Params []value.Param
	Code   *bytecode.Chunk
}

func (vm *VM) wrapErr(e error) error {
	if re, ok := e.(*errors.RuntimeError); ok {
		stack := make([]errors.StackFrame, 0, len(vm.frames))
		for i := len(vm.frames) - 1; i >= 0; i-- {
			name := "<anonymous>"
			if vm.frames[i].fn != nil {
				name = vm.frames[i].fn.Name
			}
			stack = append(stack, errors.StackFrame{Function: name})
		}
		return re.WithStack(stack)
	}
	return e
}

// callValue is the internal/value.CallFunction seam: lets host intrinsics
// (Array.prototype.map) invoke a user Function/BuiltinFunction value without
// internal/value importing this package.
func (vm *VM) callValue(fn value.Value, args []value.Value) (value.Value, error) {
	saveStack := len(vm.stack)
	saveFrames := len(vm.frames)
	vm.push(fn)
	for _, a := range args {
		vm.push(a)
	}
	if err := vm.doCall(len(args), false); err != nil {
		vm.stack = vm.stack[:saveStack]
		return value.Undefined, err
	}
	if len(vm.frames) == saveFrames {
		// Builtin ran synchronously; its result is already on top of stack.
		return vm.pop(), nil
	}
	return vm.run(saveFrames)
}
