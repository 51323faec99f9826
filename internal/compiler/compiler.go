// Package compiler lowers a parsed statement list to a bytecode.Chunk: the
// one real front-end consumer of the parser's AST contract, and the one
// producer of the instruction stream internal/vm and internal/jit consume.
//
// It walks parser.Stmt/parser.Expr trees directly (no intermediate IR) and
// emits against the name/scope model internal/vm.Frame implements: there is
// no locals-vs-globals split in the instruction stream, because get_name/
// set_name/decl_var already walk the live scope chain at runtime. Hoisting
// only has to reorder function declarations ahead of their enclosing
// statement list; it never needs a separate symbol table.
package compiler

import (
	"fmt"

	"github.com/nomissbowling/rapidus/internal/bytecode"
	"github.com/nomissbowling/rapidus/internal/parser"
	"github.com/nomissbowling/rapidus/internal/value"
	"github.com/nomissbowling/rapidus/internal/vm"
)

// Compiler holds the chunk under construction plus the loop-nesting state
// break/continue need to patch. A fresh Compiler is spun up per function
// body (including the top-level program, treated as a function running in
// the global scope record) via compileFunctionBody/compileConstructorBody.
type Compiler struct {
	chunk       *bytecode.Chunk
	fileName    string
	loops       []*loopFrame
	tempCounter int
}

// loopFrame collects the operand positions of break/continue jump
// placeholders emitted inside one loop, patched once the loop's exit and
// continue targets are known.
type loopFrame struct {
	breakJumps    []int
	continueJumps []int
}

// NewCompiler returns a Compiler ready to compile a top-level program.
// fileName feeds the chunk's debug info, the way the interpreter's stack
// traces expect.
func NewCompiler(fileName string) *Compiler {
	return &Compiler{chunk: bytecode.NewChunk(), fileName: fileName}
}

// Compile lowers stmts as the top-level program body and returns the
// resulting chunk, terminated with an explicit end instruction.
func (c *Compiler) Compile(stmts []parser.Stmt) *bytecode.Chunk {
	c.compileStmts(stmts)
	c.chunk.WriteOp(bytecode.OpEnd)
	return c.chunk
}

// compileStmts hoists every direct FunctionStmt in stmts ahead of the rest,
// preserving each group's relative order, then compiles the reordered list.
// Hoisting only reaches direct children of one statement list — matching
// this runtime's lack of block scoping, a nested list (an if/while/for
// body) hoists independently of its enclosing one.
func (c *Compiler) compileStmts(stmts []parser.Stmt) {
	var fns, rest []parser.Stmt
	for _, s := range stmts {
		if _, ok := s.(*parser.FunctionStmt); ok {
			fns = append(fns, s)
		} else {
			rest = append(rest, s)
		}
	}
	for _, s := range fns {
		s.Accept(c)
	}
	for _, s := range rest {
		s.Accept(c)
	}
}

// --- emission helpers ---

func (c *Compiler) emitName(op bytecode.OpCode, name string) {
	id := c.chunk.InternName(name)
	c.chunk.WriteOp(op)
	c.chunk.WriteInt32(int32(id))
}

func (c *Compiler) emitConst(v interface{}) {
	idx := c.chunk.AddConstant(v)
	c.chunk.WriteOp(bytecode.OpPushConst)
	c.chunk.WriteInt32(int32(idx))
}

// emitJump writes op followed by a placeholder 4-byte relative offset and
// returns the operand's byte position for a later patchJump/patchJumpTo.
func (c *Compiler) emitJump(op bytecode.OpCode) int {
	c.chunk.WriteOp(op)
	pos := len(c.chunk.Code)
	c.chunk.WriteInt32(0)
	return pos
}

// patchJump patches the jump at pos to land at the chunk's current end.
func (c *Compiler) patchJump(pos int) {
	c.patchJumpTo(pos, len(c.chunk.Code))
}

// patchJumpTo patches the jump at pos to land at target, both chunk byte
// offsets; jmp/jmp_if_false operands are relative to the byte after the
// operand, per the opcode contract.
func (c *Compiler) patchJumpTo(pos, target int) {
	c.chunk.PatchInt32(pos, int32(target-(pos+4)))
}

func (c *Compiler) endsInReturn() bool {
	n := len(c.chunk.Code)
	return n > 0 && bytecode.OpCode(c.chunk.Code[n-1]) == bytecode.OpReturn
}

func (c *Compiler) pushLoop() *loopFrame {
	f := &loopFrame{}
	c.loops = append(c.loops, f)
	return f
}

func (c *Compiler) popLoop() *loopFrame {
	f := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]
	return f
}

// --- function/closure construction ---

// compileFunctionBody compiles body as a fresh chunk, appending an implicit
// `return undefined` if body doesn't already end in one.
func (c *Compiler) compileFunctionBody(body []parser.Stmt) *bytecode.Chunk {
	sub := &Compiler{chunk: bytecode.NewChunk(), fileName: c.fileName}
	sub.compileStmts(body)
	if !sub.endsInReturn() {
		sub.chunk.WriteOp(bytecode.OpPushUndefined)
		sub.chunk.WriteOp(bytecode.OpReturn)
	}
	return sub.chunk
}

// compileConstructorBody is compileFunctionBody plus field defaults: every
// declared field is set to undefined on `this` before the constructor body
// runs, so a field never reads as a missing property before its first
// assignment.
func (c *Compiler) compileConstructorBody(fields []string, body []parser.Stmt) *bytecode.Chunk {
	sub := &Compiler{chunk: bytecode.NewChunk(), fileName: c.fileName}
	for _, f := range fields {
		sub.chunk.WriteOp(bytecode.OpPushThis)
		sub.emitConst(f)
		sub.chunk.WriteOp(bytecode.OpPushUndefined)
		sub.chunk.WriteOp(bytecode.OpSetMember)
		sub.chunk.WriteOp(bytecode.OpPop)
	}
	sub.compileStmts(body)
	if !sub.endsInReturn() {
		sub.chunk.WriteOp(bytecode.OpPushUndefined)
		sub.chunk.WriteOp(bytecode.OpReturn)
	}
	return sub.chunk
}

// pushFunctionValue emits the constant-table FuncLiteral push for a
// compiled body plus the set_cur_callobj that rewires its captured scope's
// parent to the live enclosing scope — needed for a function declared
// inside a nested call (not just the top level, where the shared-Bindings-
// map trick already lets a recursive reference resolve).
func (c *Compiler) pushFunctionValue(name string, params []string, code *bytecode.Chunk) {
	vparams := make([]value.Param, len(params))
	for i, p := range params {
		vparams[i] = value.Param{Name: p}
	}
	idx := c.chunk.AddConstant(&vm.FuncLiteral{Name: name, Params: vparams, Code: code})
	c.chunk.WriteOp(bytecode.OpPushConst)
	c.chunk.WriteInt32(int32(idx))
	c.chunk.WriteOp(bytecode.OpSetCurCallobj)
}

func (c *Compiler) emitFunctionLiteral(name string, params []string, body []parser.Stmt) {
	c.pushFunctionValue(name, params, c.compileFunctionBody(body))
}

// --- logical short-circuit ---

// compileAnd/compileOr implement && and || without eagerly evaluating the
// right operand, duplicating the left value so the interpreter's unary
// truthiness test can consume a copy while the original survives as the
// expression's result on the side that short-circuits.
func (c *Compiler) compileAnd(left, right parser.Expr) {
	left.Accept(c)
	c.chunk.WriteOp(bytecode.OpDouble)
	falseJump := c.emitJump(bytecode.OpJmpIfFalse)
	c.chunk.WriteOp(bytecode.OpPop)
	right.Accept(c)
	endJump := c.emitJump(bytecode.OpJmp)
	c.patchJump(falseJump)
	c.chunk.WriteOp(bytecode.OpLand)
	c.patchJump(endJump)
}

func (c *Compiler) compileOr(left, right parser.Expr) {
	left.Accept(c)
	c.chunk.WriteOp(bytecode.OpDouble)
	falseJump := c.emitJump(bytecode.OpJmpIfFalse)
	trueSkip := c.emitJump(bytecode.OpJmp)
	c.patchJump(falseJump)
	c.chunk.WriteOp(bytecode.OpPop)
	right.Accept(c)
	c.patchJump(trueSkip)
	c.chunk.WriteOp(bytecode.OpLor)
}

// --- statements ---

func (c *Compiler) VisitPrintStmt(stmt *parser.PrintStmt) interface{} {
	c.emitName(bytecode.OpGetName, "console")
	c.emitConst("log")
	c.chunk.WriteOp(bytecode.OpGetMember)
	stmt.Expr.Accept(c)
	c.chunk.WriteOp(bytecode.OpCall)
	c.chunk.WriteInt32(1)
	c.chunk.WriteOp(bytecode.OpPop)
	return nil
}

func (c *Compiler) VisitLetStmt(stmt *parser.LetStmt) interface{} {
	stmt.Expr.Accept(c)
	c.emitName(bytecode.OpDeclVar, stmt.Name)
	return nil
}

func (c *Compiler) VisitAssignmentStmt(stmt *parser.AssignmentStmt) interface{} {
	stmt.Value.Accept(c)
	c.emitName(bytecode.OpSetName, stmt.Name)
	return nil
}

func (c *Compiler) VisitIndexAssignmentStmt(stmt *parser.IndexAssignmentStmt) interface{} {
	stmt.Object.Accept(c)
	stmt.Index.Accept(c)
	stmt.Value.Accept(c)
	c.chunk.WriteOp(bytecode.OpSetMember)
	c.chunk.WriteOp(bytecode.OpPop)
	return nil
}

func (c *Compiler) VisitExpressionStmt(stmt *parser.ExpressionStmt) interface{} {
	stmt.Expr.Accept(c)
	c.chunk.WriteOp(bytecode.OpPop)
	return nil
}

func (c *Compiler) VisitFunctionStmt(stmt *parser.FunctionStmt) interface{} {
	c.emitFunctionLiteral(stmt.Name, stmt.Params, stmt.Body)
	c.emitName(bytecode.OpDeclVar, stmt.Name)
	return nil
}

func (c *Compiler) VisitReturnStmt(stmt *parser.ReturnStmt) interface{} {
	if stmt.Value != nil {
		stmt.Value.Accept(c)
	} else {
		c.chunk.WriteOp(bytecode.OpPushUndefined)
	}
	c.chunk.WriteOp(bytecode.OpReturn)
	return nil
}

func (c *Compiler) VisitIfStmt(stmt *parser.IfStmt) interface{} {
	stmt.Condition.Accept(c)
	elseJump := c.emitJump(bytecode.OpJmpIfFalse)
	c.compileStmts(stmt.Then)
	if len(stmt.Else) > 0 {
		endJump := c.emitJump(bytecode.OpJmp)
		c.patchJump(elseJump)
		c.compileStmts(stmt.Else)
		c.patchJump(endJump)
	} else {
		c.patchJump(elseJump)
	}
	return nil
}

func (c *Compiler) VisitWhileStmt(stmt *parser.WhileStmt) interface{} {
	loopStart := len(c.chunk.Code)
	stmt.Condition.Accept(c)
	exitJump := c.emitJump(bytecode.OpJmpIfFalse)

	c.pushLoop()
	c.compileStmts(stmt.Body)

	backJump := c.emitJump(bytecode.OpJmp)
	c.patchJumpTo(backJump, loopStart)
	end := len(c.chunk.Code)
	c.patchJumpTo(exitJump, end)

	frame := c.popLoop()
	for _, p := range frame.breakJumps {
		c.patchJumpTo(p, end)
	}
	for _, p := range frame.continueJumps {
		c.patchJumpTo(p, loopStart)
	}
	return nil
}

func (c *Compiler) VisitForStmt(stmt *parser.ForStmt) interface{} {
	if stmt.Init != nil {
		stmt.Init.Accept(c)
	}
	loopStart := len(c.chunk.Code)

	hasCond := stmt.Condition != nil
	var exitJump int
	if hasCond {
		stmt.Condition.Accept(c)
		exitJump = c.emitJump(bytecode.OpJmpIfFalse)
	}

	c.pushLoop()
	c.compileStmts(stmt.Body)

	updateStart := len(c.chunk.Code)
	if stmt.Update != nil {
		stmt.Update.Accept(c)
		c.chunk.WriteOp(bytecode.OpPop)
	}

	backJump := c.emitJump(bytecode.OpJmp)
	c.patchJumpTo(backJump, loopStart)
	end := len(c.chunk.Code)
	if hasCond {
		c.patchJumpTo(exitJump, end)
	}

	frame := c.popLoop()
	for _, p := range frame.breakJumps {
		c.patchJumpTo(p, end)
	}
	for _, p := range frame.continueJumps {
		c.patchJumpTo(p, updateStart)
	}
	return nil
}

func (c *Compiler) VisitForInStmt(stmt *parser.ForInStmt) interface{} {
	// tempCounter gives each for-in loop's hidden source/index bindings a
	// unique name, so sibling or nested for-in loops compiled into the same
	// chunk don't clobber each other's scope entries.
	c.tempCounter++
	srcName := fmt.Sprintf("@@for_in_src_%d", c.tempCounter)
	idxName := fmt.Sprintf("@@for_in_idx_%d", c.tempCounter)

	stmt.Collection.Accept(c)
	c.emitName(bytecode.OpDeclVar, srcName)
	c.emitConst(float64(0))
	c.emitName(bytecode.OpDeclVar, idxName)

	loopStart := len(c.chunk.Code)
	c.emitName(bytecode.OpGetName, idxName)
	c.emitName(bytecode.OpGetName, srcName)
	c.emitConst("length")
	c.chunk.WriteOp(bytecode.OpGetMember)
	c.chunk.WriteOp(bytecode.OpLt)
	exitJump := c.emitJump(bytecode.OpJmpIfFalse)

	c.pushLoop()
	c.emitName(bytecode.OpGetName, srcName)
	c.emitName(bytecode.OpGetName, idxName)
	c.chunk.WriteOp(bytecode.OpGetMember)
	c.emitName(bytecode.OpDeclVar, stmt.Variable)
	c.compileStmts(stmt.Body)

	updateStart := len(c.chunk.Code)
	c.emitName(bytecode.OpGetName, idxName)
	c.emitConst(float64(1))
	c.chunk.WriteOp(bytecode.OpAdd)
	c.emitName(bytecode.OpSetName, idxName)

	backJump := c.emitJump(bytecode.OpJmp)
	c.patchJumpTo(backJump, loopStart)
	end := len(c.chunk.Code)
	c.patchJumpTo(exitJump, end)

	frame := c.popLoop()
	for _, p := range frame.breakJumps {
		c.patchJumpTo(p, end)
	}
	for _, p := range frame.continueJumps {
		c.patchJumpTo(p, updateStart)
	}
	return nil
}

func (c *Compiler) VisitBreakStmt(stmt *parser.BreakStmt) interface{} {
	if len(c.loops) == 0 {
		return nil
	}
	frame := c.loops[len(c.loops)-1]
	frame.breakJumps = append(frame.breakJumps, c.emitJump(bytecode.OpJmp))
	return nil
}

func (c *Compiler) VisitContinueStmt(stmt *parser.ContinueStmt) interface{} {
	if len(c.loops) == 0 {
		return nil
	}
	frame := c.loops[len(c.loops)-1]
	frame.continueJumps = append(frame.continueJumps, c.emitJump(bytecode.OpJmp))
	return nil
}

// VisitImportStmt has no module loader to call into — this runtime's
// contract only covers the lexer/parser/compiler/vm/jit core, not a module
// resolver — so it just binds the alias to undefined rather than leaving
// the name unresolved.
func (c *Compiler) VisitImportStmt(stmt *parser.ImportStmt) interface{} {
	name := stmt.Alias
	if name == "" {
		name = stmt.Path
	}
	c.chunk.WriteOp(bytecode.OpPushUndefined)
	c.emitName(bytecode.OpDeclVar, name)
	return nil
}

func (c *Compiler) VisitExportStmt(stmt *parser.ExportStmt) interface{} {
	if stmt.Stmt != nil {
		stmt.Stmt.Accept(c)
	}
	return nil
}

// VisitClassStmt builds a constructor Function whose auto-created
// "prototype" object (see value.NewFunction) receives one property per
// non-constructor method, exercising the same prototype-chain lookup a
// plain object literal's members do. A superclass name chains the two
// prototype objects through __set_proto__, one of the two host intrinsics
// (with __throw__) this compiler relies on beyond the interpreter's own
// console/process/Math bindings.
func (c *Compiler) VisitClassStmt(stmt *parser.ClassStmt) interface{} {
	var ctor *parser.FunctionStmt
	methods := make([]*parser.FunctionStmt, 0, len(stmt.Methods))
	for _, m := range stmt.Methods {
		if m.Name == "constructor" {
			ctor = m
		} else {
			methods = append(methods, m)
		}
	}
	var params []string
	var body []parser.Stmt
	if ctor != nil {
		params = ctor.Params
		body = ctor.Body
	}
	c.pushFunctionValue(stmt.Name, params, c.compileConstructorBody(stmt.Fields, body))
	c.emitName(bytecode.OpDeclVar, stmt.Name)

	for _, m := range methods {
		c.emitName(bytecode.OpGetName, stmt.Name)
		c.emitConst("prototype")
		c.chunk.WriteOp(bytecode.OpGetMember)
		c.chunk.WriteOp(bytecode.OpDouble)
		c.emitConst(m.Name)
		c.emitFunctionLiteral(m.Name, m.Params, m.Body)
		c.chunk.WriteOp(bytecode.OpSetMember)
		c.chunk.WriteOp(bytecode.OpPop)
		c.chunk.WriteOp(bytecode.OpPop)
	}

	if stmt.Superclass != "" {
		c.emitName(bytecode.OpGetName, "__set_proto__")
		c.emitName(bytecode.OpGetName, stmt.Name)
		c.emitConst("prototype")
		c.chunk.WriteOp(bytecode.OpGetMember)
		c.emitName(bytecode.OpGetName, stmt.Superclass)
		c.emitConst("prototype")
		c.chunk.WriteOp(bytecode.OpGetMember)
		c.chunk.WriteOp(bytecode.OpCall)
		c.chunk.WriteInt32(2)
		c.chunk.WriteOp(bytecode.OpPop)
	}
	return nil
}

// VisitTryStmt compiles the try block and the finally block in sequence.
// The catch block is not reachable: the interpreter's dispatch loop has no
// exception-frame table to jump into one, so a thrown error unwinds past
// this statement entirely rather than resuming here. Compiling it in would
// be dead code; it's left uncompiled instead, matching the runtime's actual
// error-handling contract (a RuntimeError propagates to the nearest Go
// caller of vm.Run/vm.callValue, not to a bytecode-level handler).
func (c *Compiler) VisitTryStmt(stmt *parser.TryStmt) interface{} {
	c.compileStmts(stmt.TryBlock)
	c.compileStmts(stmt.FinallyBlock)
	return nil
}

// VisitThrowStmt routes through the __throw__ intrinsic rather than a
// dedicated opcode: raising an error is already just "a builtin call that
// returns a non-nil error," which vm.doCall's builtin case passes back to
// run's call handler, where wrapErr attaches a stack trace.
func (c *Compiler) VisitThrowStmt(stmt *parser.ThrowStmt) interface{} {
	c.emitName(bytecode.OpGetName, "__throw__")
	stmt.Value.Accept(c)
	c.chunk.WriteOp(bytecode.OpCall)
	c.chunk.WriteInt32(1)
	c.chunk.WriteOp(bytecode.OpPop)
	return nil
}

func (c *Compiler) VisitMatchStmt(stmt *parser.MatchStmt) interface{} {
	stmt.Value.Accept(c)
	var endJumps []int
	for i, mc := range stmt.Cases {
		isDefault := false
		if lit, ok := mc.Pattern.(*parser.Literal); ok {
			if s, ok := lit.Value.(string); ok && s == "_" {
				isDefault = true
			}
		}
		var skipJump int
		hasSkip := !isDefault
		if hasSkip {
			c.chunk.WriteOp(bytecode.OpDouble)
			mc.Pattern.Accept(c)
			c.chunk.WriteOp(bytecode.OpEq)
			skipJump = c.emitJump(bytecode.OpJmpIfFalse)
		}
		c.compileStmts(mc.Body)
		if i < len(stmt.Cases)-1 {
			endJumps = append(endJumps, c.emitJump(bytecode.OpJmp))
		}
		if hasSkip {
			c.patchJump(skipJump)
		}
	}
	for _, j := range endJumps {
		c.patchJump(j)
	}
	c.chunk.WriteOp(bytecode.OpPop)
	return nil
}

// --- expressions ---

func (c *Compiler) VisitLiteralExpr(expr *parser.Literal) interface{} {
	switch v := expr.Value.(type) {
	case nil:
		c.chunk.WriteOp(bytecode.OpPushUndefined)
	case bool:
		if v {
			c.chunk.WriteOp(bytecode.OpPushTrue)
		} else {
			c.chunk.WriteOp(bytecode.OpPushFalse)
		}
	default:
		c.emitConst(v)
	}
	return nil
}

func (c *Compiler) VisitBinaryExpr(expr *parser.Binary) interface{} {
	switch expr.Operator {
	case "&&":
		c.compileAnd(expr.Left, expr.Right)
		return nil
	case "||":
		c.compileOr(expr.Left, expr.Right)
		return nil
	}
	expr.Left.Accept(c)
	expr.Right.Accept(c)
	switch expr.Operator {
	case "+":
		c.chunk.WriteOp(bytecode.OpAdd)
	case "-":
		c.chunk.WriteOp(bytecode.OpSub)
	case "*":
		c.chunk.WriteOp(bytecode.OpMul)
	case "/":
		c.chunk.WriteOp(bytecode.OpDiv)
	case "%":
		c.chunk.WriteOp(bytecode.OpRem)
	case "==":
		c.chunk.WriteOp(bytecode.OpEq)
	case "!=":
		c.chunk.WriteOp(bytecode.OpNe)
	case "<":
		c.chunk.WriteOp(bytecode.OpLt)
	case ">":
		c.chunk.WriteOp(bytecode.OpGt)
	case "<=":
		c.chunk.WriteOp(bytecode.OpLe)
	case ">=":
		c.chunk.WriteOp(bytecode.OpGe)
	default:
		panic(fmt.Sprintf("compiler: unsupported binary operator %q", expr.Operator))
	}
	return nil
}

func (c *Compiler) VisitVariableExpr(expr *parser.Variable) interface{} {
	switch expr.Name {
	case "this":
		c.chunk.WriteOp(bytecode.OpPushThis)
	case "arguments":
		c.chunk.WriteOp(bytecode.OpPushArguments)
	default:
		c.emitName(bytecode.OpGetName, expr.Name)
	}
	return nil
}

func (c *Compiler) VisitAssignExpr(expr *parser.Assign) interface{} {
	expr.Value.Accept(c)
	c.chunk.WriteOp(bytecode.OpDouble)
	c.emitName(bytecode.OpSetName, expr.Name)
	return nil
}

func (c *Compiler) VisitCallExpr(expr *parser.CallExpr) interface{} {
	expr.Callee.Accept(c)
	for _, a := range expr.Args {
		a.Accept(c)
	}
	c.chunk.WriteOp(bytecode.OpCall)
	c.chunk.WriteInt32(int32(len(expr.Args)))
	return nil
}

// VisitNewExpr mirrors VisitCallExpr's push-callee-then-args protocol,
// substituting OpConstruct so the VM allocates a fresh object and binds it
// as `this` for the constructor body (see doCall's construct branch).
func (c *Compiler) VisitNewExpr(expr *parser.NewExpr) interface{} {
	expr.Callee.Accept(c)
	for _, a := range expr.Args {
		a.Accept(c)
	}
	c.chunk.WriteOp(bytecode.OpConstruct)
	c.chunk.WriteInt32(int32(len(expr.Args)))
	return nil
}

func (c *Compiler) VisitIfExpr(expr *parser.IfExpr) interface{} {
	expr.Cond.Accept(c)
	elseJump := c.emitJump(bytecode.OpJmpIfFalse)
	expr.ThenBranch.Accept(c)
	endJump := c.emitJump(bytecode.OpJmp)
	c.patchJump(elseJump)
	if expr.ElseBranch != nil {
		expr.ElseBranch.Accept(c)
	} else {
		c.chunk.WriteOp(bytecode.OpPushUndefined)
	}
	c.patchJump(endJump)
	c.chunk.WriteOp(bytecode.OpCondOp)
	return nil
}

// VisitBlockExpr evaluates to its last statement's expression value (an
// ExpressionStmt leaves its value unpopped here, unlike in statement
// position) or undefined if the block is empty or ends in a non-expression
// statement.
func (c *Compiler) VisitBlockExpr(expr *parser.BlockExpr) interface{} {
	stmts := expr.Stmts
	if len(stmts) == 0 {
		c.chunk.WriteOp(bytecode.OpPushUndefined)
		return nil
	}
	c.compileStmts(stmts[:len(stmts)-1])
	last := stmts[len(stmts)-1]
	if es, ok := last.(*parser.ExpressionStmt); ok {
		es.Expr.Accept(c)
	} else {
		last.Accept(c)
		c.chunk.WriteOp(bytecode.OpPushUndefined)
	}
	return nil
}

func (c *Compiler) VisitArrayExpr(expr *parser.ArrayExpr) interface{} {
	for _, elem := range expr.Elements {
		elem.Accept(c)
	}
	c.chunk.WriteOp(bytecode.OpCreateArray)
	c.chunk.WriteInt32(int32(len(expr.Elements)))
	return nil
}

func (c *Compiler) VisitMapExpr(expr *parser.MapExpr) interface{} {
	for i := range expr.Keys {
		expr.Keys[i].Accept(c)
		expr.Values[i].Accept(c)
	}
	c.chunk.WriteOp(bytecode.OpCreateObject)
	c.chunk.WriteInt32(int32(len(expr.Keys)))
	return nil
}

func (c *Compiler) VisitIndexExpr(expr *parser.IndexExpr) interface{} {
	expr.Object.Accept(c)
	expr.Index.Accept(c)
	c.chunk.WriteOp(bytecode.OpGetMember)
	return nil
}

func (c *Compiler) VisitSetIndexExpr(expr *parser.SetIndexExpr) interface{} {
	expr.Object.Accept(c)
	expr.Index.Accept(c)
	expr.Value.Accept(c)
	c.chunk.WriteOp(bytecode.OpSetMember)
	return nil
}

func (c *Compiler) VisitUnaryExpr(expr *parser.UnaryExpr) interface{} {
	expr.Operand.Accept(c)
	switch expr.Operator {
	case "!":
		c.chunk.WriteOp(bytecode.OpLnot)
	case "-":
		c.chunk.WriteOp(bytecode.OpNeg)
	case "+":
		c.chunk.WriteOp(bytecode.OpPosi)
	default:
		panic(fmt.Sprintf("compiler: unsupported unary operator %q", expr.Operator))
	}
	return nil
}

func (c *Compiler) VisitLogicalExpr(expr *parser.LogicalExpr) interface{} {
	switch expr.Operator {
	case "&&":
		c.compileAnd(expr.Left, expr.Right)
	case "||":
		c.compileOr(expr.Left, expr.Right)
	default:
		panic(fmt.Sprintf("compiler: unsupported logical operator %q", expr.Operator))
	}
	return nil
}

// VisitInterpolationExpr lowers to a chain of adds: binaryOp's add case
// concatenates whenever either operand is a string, so the first part need
// not be a string literal for the rest of the chain to stringify correctly.
func (c *Compiler) VisitInterpolationExpr(expr *parser.InterpolationExpr) interface{} {
	if len(expr.Parts) == 0 {
		c.emitConst("")
		return nil
	}
	expr.Parts[0].Accept(c)
	for _, p := range expr.Parts[1:] {
		p.Accept(c)
		c.chunk.WriteOp(bytecode.OpAdd)
	}
	return nil
}

func (c *Compiler) VisitLambdaExpr(expr *parser.LambdaExpr) interface{} {
	var body []parser.Stmt
	if be, ok := expr.Body.(*parser.BlockExpr); ok {
		body = be.Stmts
	} else {
		body = []parser.Stmt{&parser.ReturnStmt{Value: expr.Body}}
	}
	c.emitFunctionLiteral("<lambda>", expr.Params, body)
	return nil
}

func (c *Compiler) VisitPropertyExpr(expr *parser.PropertyExpr) interface{} {
	expr.Object.Accept(c)
	c.emitConst(expr.Property)
	c.chunk.WriteOp(bytecode.OpGetMember)
	return nil
}
