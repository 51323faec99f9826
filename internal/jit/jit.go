package jit

import (
	"strconv"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	irval "github.com/llir/llvm/ir/value"

	"github.com/nomissbowling/rapidus/internal/bytecode"
	rt "github.com/nomissbowling/rapidus/internal/value"
	"github.com/nomissbowling/rapidus/internal/vm"
)

// TryEnterFunction implements vm.JIT. It increments fn's entry counter; once
// the site is Native it runs the compiled entry directly; once it is
// Counting and has just crossed funcThreshold, it attempts compilation
// (subject to the candidacy gates: argc ≤ 3, every argument Number).
func (t *Tracer) TryEnterFunction(fn *rt.FunctionObj, args []rt.Value) (rt.Value, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	site := t.funcSite(fn.ID)
	switch site.state {
	case stateDead:
		return rt.Undefined, false, nil
	case stateNative:
		// A call reaching an already-Native site with fewer (or more)
		// arguments than the arity the native entry was compiled for falls
		// back to the interpreter, which pads missing args with Undefined;
		// native.go's trampolines are fixed-arity and cannot do that.
		if len(args) != site.native.arity {
			return rt.Undefined, false, nil
		}
		return t.runNativeFunc(site, args)
	}

	site.state = stateCounting
	site.count++
	if site.count < funcThreshold {
		return rt.Undefined, false, nil
	}
	if len(args) != len(fn.Params) || len(args) > 3 {
		site.state = stateDead
		return rt.Undefined, false, nil
	}
	for _, a := range args {
		if !rt.IsNumber(a) {
			site.state = stateDead
			return rt.Undefined, false, nil
		}
	}

	native, err := t.compileFunction(fn)
	if err != nil {
		site.state = stateDead
		return rt.Undefined, false, nil
	}
	site.state = stateNative
	site.native = native
	return t.runNativeFunc(site, args)
}

func (t *Tracer) runNativeFunc(site *siteRecord, args []rt.Value) (rt.Value, bool, error) {
	in := make([]float64, len(args))
	for i, a := range args {
		in[i] = rt.AsNumber(a)
	}
	return rt.Number(site.native.call(in)), true, nil
}

// TryEnterLoop implements vm.JIT, mirroring TryEnterFunction's shape for the
// loop_start site keyed by (FuncId, pc). The candidacy gate requires every
// tracked local to currently hold a Number or Bool.
func (t *Tracer) TryEnterLoop(site vm.LoopSite) (int, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := t.loopSite(site.ID, site.PC)
	switch rec.state {
	case stateDead:
		return 0, false, nil
	case stateNative:
		return t.runNativeLoop(rec, site)
	}

	rec.state = stateCounting
	rec.count++
	if rec.count < loopThreshold {
		return 0, false, nil
	}
	for _, name := range site.Locals {
		v, ok := site.Scope.Get(name)
		if !ok || !(rt.IsNumber(v) || rt.IsBool(v)) {
			rec.state = stateDead
			return 0, false, nil
		}
	}

	native, err := t.compileLoop(site)
	if err != nil {
		rec.state = stateDead
		return 0, false, nil
	}
	rec.state = stateNative
	rec.loop = native
	return t.runNativeLoop(rec, site)
}

func (t *Tracer) runNativeLoop(rec *siteRecord, site vm.LoopSite) (int, bool, error) {
	boxes := make([]float64, len(site.Locals))
	ptrs := make([]*float64, len(site.Locals))
	for i, name := range site.Locals {
		v, _ := site.Scope.Get(name)
		boxes[i] = rt.ToNumber(v)
		ptrs[i] = &boxes[i]
	}
	resume := rec.loop.call(ptrs)
	for i, name := range site.Locals {
		site.Scope.AssignExisting(name, rt.Number(boxes[i]))
	}
	return resume, true, nil
}

// RecordReturnType implements vm.JIT. Every return value this runtime's
// numeric-only JIT ever sees is boxed as Number, so there is nothing to
// branch on yet; the hook exists so a future non-numeric box kind has
// somewhere to plug in without changing the interpreter's call site.
func (t *Tracer) RecordReturnType(fn *rt.FunctionObj, ret rt.Value) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.retTypes[funcKey(fn.ID)] = returnShape{seen: true}
}

// compileFunction lowers fn's entire body to an LLVM function of arity
// len(fn.Params) and compiles it to native code. Only bodies reachable by
// lowerStraightLine's supported opcode subset succeed — arithmetic,
// comparisons, formal/local access, and if/return control flow. A body that
// calls a function does not compile: the callee is loaded with get_name,
// which resolves only formals and assigned locals, so a recursive call by
// the function's own name is rejected too. Anything else (free-variable
// reads, calls, non-numeric constants) returns an error and the caller
// marks the site Dead.
func (t *Tracer) compileFunction(fn *rt.FunctionObj) (*nativeFunc, error) {
	code, ok := fn.Code.(*bytecode.Chunk)
	if !ok {
		return nil, unsupported("function body is not a compiled chunk")
	}
	if len(fn.Params) > 3 {
		return nil, unsupported("arity %d exceeds function-JIT's 3-argument limit", len(fn.Params))
	}

	m := ir.NewModule()
	declareIntrinsics(m)

	symbol := "jit_fn_" + fn.ID.String()
	params := make([]*ir.Param, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = ir.NewParam(p.Name, types.Double)
	}
	irFn := m.NewFunc(symbol, types.Double, params...)
	entry := irFn.NewBlock("entry")

	tr := &translator{
		fn:     irFn,
		code:   code,
		names:  make(map[string]*ir.InstAlloca),
		block:  entry,
		selfFn: irFn,
	}
	for i, p := range fn.Params {
		param := params[i]
		tr.localRef(p.Name, func() irval.Value { return param })
	}

	retFn := func(v irval.Value) { tr.block.NewRet(v) }
	if err := lowerStraightLine(tr, 0, len(code.Code), func(int) {}, retFn); err != nil {
		return nil, err
	}

	sym, err := t.pipeline.compile(m, symbol)
	if err != nil {
		return nil, err
	}
	return &nativeFunc{sym: sym, arity: len(fn.Params)}, nil
}

// compileLoop lowers [site.PC, site.LoopEnd) to an `i32 (double**)` LLVM
// function, per the pointer-to-pointer local-variable ABI: the caller
// passes one boxed double per tracked local. On entry it loads every
// tracked local through its box; on any exit from the region it stores
// every local back through the same boxes before returning the bytecode pc
// to resume at.
func (t *Tracer) compileLoop(site vm.LoopSite) (*nativeLoop, error) {
	m := ir.NewModule()
	declareIntrinsics(m)

	symbol := "jit_loop_" + site.ID.String() + "_" + strconv.Itoa(site.PC)
	doublePtr := types.NewPointer(types.Double)
	arrParam := ir.NewParam("locals", types.NewPointer(doublePtr))
	irFn := m.NewFunc(symbol, types.I32, arrParam)
	entry := irFn.NewBlock("entry")

	boxPtr := func(b *ir.Block, i int) irval.Value {
		slot := b.NewGetElementPtr(doublePtr, arrParam, constant.NewInt(types.I64, int64(i)))
		return b.NewLoad(doublePtr, slot)
	}

	tr := &translator{
		fn:    irFn,
		code:  site.Code,
		names: make(map[string]*ir.InstAlloca),
		block: entry,
	}
	for i, name := range site.Locals {
		idx := i
		tr.localRef(name, func() irval.Value {
			return entry.NewLoad(types.Double, boxPtr(entry, idx))
		})
	}

	storeBack := func(b *ir.Block) {
		for i, name := range site.Locals {
			a := tr.names[name]
			b.NewStore(b.NewLoad(types.Double, a), boxPtr(b, i))
		}
	}

	exitTo := func(pc int) {
		storeBack(tr.block)
		tr.block.NewRet(constant.NewInt(types.I32, int64(pc)))
	}

	if err := lowerStraightLine(tr, site.PC, site.LoopEnd, exitTo, nil); err != nil {
		return nil, err
	}
	if tr.block.Term == nil {
		storeBack(tr.block)
		tr.block.NewRet(constant.NewInt(types.I32, int64(site.LoopEnd)))
	}

	sym, err := t.pipeline.compile(m, symbol)
	if err != nil {
		return nil, err
	}
	return &nativeLoop{sym: sym}, nil
}
