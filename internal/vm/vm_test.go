package vm

import (
	"math"
	"testing"

	"github.com/nomissbowling/rapidus/internal/bytecode"
	"github.com/nomissbowling/rapidus/internal/value"
)

// buildChunk assembles a Chunk from a raw instruction stream plus its
// constant and interned-name tables, mirroring how a front end would
// populate one.
func buildChunk(code []byte, constants []interface{}, names []string) *bytecode.Chunk {
	return &bytecode.Chunk{Code: code, Constants: constants, Names: names}
}

func i32(n int32) []byte {
	return []byte{byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24)}
}

func runChunk(t *testing.T, chunk *bytecode.Chunk) value.Value {
	t.Helper()
	m := New(NoopJIT{})
	m.StdoutWrite = func(string) {}
	result, err := m.Run(chunk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result
}

func TestArithmetic(t *testing.T) {
	cases := []struct {
		name     string
		op       bytecode.OpCode
		a, b     float64
		expected float64
	}{
		{"addition", bytecode.OpAdd, 10, 20, 30},
		{"subtraction", bytecode.OpSub, 50, 20, 30},
		{"multiplication", bytecode.OpMul, 5, 6, 30},
		{"division", bytecode.OpDiv, 60, 2, 30},
		{"modulo", bytecode.OpRem, 17, 5, 2},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			code := []byte{byte(bytecode.OpPushConst)}
			code = append(code, i32(0)...)
			code = append(code, byte(bytecode.OpPushConst))
			code = append(code, i32(1)...)
			code = append(code, byte(tt.op), byte(bytecode.OpReturn))
			chunk := buildChunk(code, []interface{}{tt.a, tt.b}, nil)
			result := runChunk(t, chunk)
			if !value.IsNumber(result) {
				t.Fatalf("expected a number, got %s", value.TypeOf(result))
			}
			if math.Abs(value.AsNumber(result)-tt.expected) > 1e-9 {
				t.Errorf("expected %v, got %v", tt.expected, value.AsNumber(result))
			}
		})
	}
}

func TestComparisons(t *testing.T) {
	cases := []struct {
		name     string
		op       bytecode.OpCode
		a, b     float64
		expected bool
	}{
		{"less than true", bytecode.OpLt, 1, 2, true},
		{"less than false", bytecode.OpLt, 2, 1, false},
		{"equal", bytecode.OpEq, 5, 5, true},
		{"not equal", bytecode.OpNe, 5, 6, true},
		{"ge", bytecode.OpGe, 5, 5, true},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			code := []byte{byte(bytecode.OpPushConst)}
			code = append(code, i32(0)...)
			code = append(code, byte(bytecode.OpPushConst))
			code = append(code, i32(1)...)
			code = append(code, byte(tt.op), byte(bytecode.OpReturn))
			chunk := buildChunk(code, []interface{}{tt.a, tt.b}, nil)
			result := runChunk(t, chunk)
			if !value.IsBool(result) {
				t.Fatalf("expected a bool, got %s", value.TypeOf(result))
			}
			if value.AsBool(result) != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, value.AsBool(result))
			}
		})
	}
}

// TestMixedAddCoercesToConcatenation exercises add's "other mixed pairs
// concatenate" rule: a number plus a string falls back to display-string
// concatenation rather than raising a TypeError.
func TestMixedAddCoercesToConcatenation(t *testing.T) {
	code := []byte{byte(bytecode.OpPushConst)}
	code = append(code, i32(0)...)
	code = append(code, byte(bytecode.OpPushConst))
	code = append(code, i32(1)...)
	code = append(code, byte(bytecode.OpAdd), byte(bytecode.OpReturn))
	chunk := buildChunk(code, []interface{}{"value: ", float64(42)}, nil)
	result := runChunk(t, chunk)
	if got := value.ToDisplayString(result); got != "value: 42" {
		t.Errorf("expected %q, got %q", "value: 42", got)
	}
}

// TestScopeDeclareGetSet exercises decl_var/get_name/set_name against the
// top-level (global) scope record.
func TestScopeDeclareGetSet(t *testing.T) {
	code := []byte{byte(bytecode.OpPushConst)}
	code = append(code, i32(0)...)
	code = append(code, byte(bytecode.OpDeclVar))
	code = append(code, i32(0)...)
	code = append(code, byte(bytecode.OpPushConst))
	code = append(code, i32(1)...)
	code = append(code, byte(bytecode.OpSetName))
	code = append(code, i32(0)...)
	code = append(code, byte(bytecode.OpGetName))
	code = append(code, i32(0)...)
	code = append(code, byte(bytecode.OpReturn))
	chunk := buildChunk(code, []interface{}{float64(1), float64(99)}, []string{"x"})
	result := runChunk(t, chunk)
	if value.AsNumber(result) != 99 {
		t.Errorf("expected 99, got %v", value.AsNumber(result))
	}
}

// TestUndeclaredNameIsReferenceError checks get_name on a name never
// declared in the accessible scope chain.
func TestUndeclaredNameIsReferenceError(t *testing.T) {
	code := []byte{byte(bytecode.OpGetName)}
	code = append(code, i32(0)...)
	code = append(code, byte(bytecode.OpReturn))
	chunk := buildChunk(code, nil, []string{"undeclared"})
	m := New(NoopJIT{})
	if _, err := m.Run(chunk); err == nil {
		t.Fatal("expected a reference error, got nil")
	}
}

// TestArrayCreateAndIndex builds a 3-element array then reads index 1 via
// get_member.
func TestArrayCreateAndIndex(t *testing.T) {
	code := []byte{byte(bytecode.OpPushConst)}
	code = append(code, i32(0)...)
	code = append(code, byte(bytecode.OpPushConst))
	code = append(code, i32(1)...)
	code = append(code, byte(bytecode.OpPushConst))
	code = append(code, i32(2)...)
	code = append(code, byte(bytecode.OpCreateArray))
	code = append(code, i32(3)...)
	code = append(code, byte(bytecode.OpPushConst))
	code = append(code, i32(1)...)
	code = append(code, byte(bytecode.OpGetMember), byte(bytecode.OpReturn))
	chunk := buildChunk(code, []interface{}{float64(10), float64(1), float64(30)}, nil)
	result := runChunk(t, chunk)
	if value.AsNumber(result) != 1 {
		t.Errorf("expected arr[1] == 1, got %v", value.AsNumber(result))
	}
}

// TestObjectCreateAndGetMember builds a one-property object and reads it
// back via get_member.
func TestObjectCreateAndGetMember(t *testing.T) {
	code := []byte{byte(bytecode.OpPushConst)} // key
	code = append(code, i32(0)...)
	code = append(code, byte(bytecode.OpPushConst)) // value
	code = append(code, i32(1)...)
	code = append(code, byte(bytecode.OpCreateObject))
	code = append(code, i32(1)...)
	code = append(code, byte(bytecode.OpPushConst)) // member name to read
	code = append(code, i32(0)...)
	code = append(code, byte(bytecode.OpGetMember), byte(bytecode.OpReturn))
	chunk := buildChunk(code, []interface{}{"name", "rapidus"}, nil)
	result := runChunk(t, chunk)
	if got := value.ToDisplayString(result); got != "rapidus" {
		t.Errorf("expected %q, got %q", "rapidus", got)
	}
}

// TestRecursiveCall compiles a hand-assembled recursive factorial function
// and calls it from the top level, exercising doCall's Function branch, the
// fresh-scope-per-call rule, and return-value propagation through nested
// frames.
//
// Bytecode for fact(n):
//
//	get_name n
//	push_const 1        ; 1
//	le                  ; n <= 1
//	jmp_if_false L1
//	push_const 1        ; 1
//	return
//
// L1:
//
//	get_name n
//	get_name fact
//	get_name n
//	push_const 1
//	sub
//	call 1
//	mul
//	return
func TestRecursiveCall(t *testing.T) {
	names := []string{"n", "fact"}
	factCode := []byte{}
	emitOp := func(op bytecode.OpCode) { factCode = append(factCode, byte(op)) }
	emit4 := func(n int32) { factCode = append(factCode, i32(n)...) }

	emitOp(bytecode.OpGetName)
	emit4(0) // n
	emitOp(bytecode.OpPushConst)
	emit4(0) // 1
	emitOp(bytecode.OpLe)
	emitOp(bytecode.OpJmpIfFalse)
	jumpPatch := len(factCode)
	emit4(0) // placeholder, patched below
	emitOp(bytecode.OpPushConst)
	emit4(0) // 1
	emitOp(bytecode.OpReturn)

	l1 := len(factCode)
	binary := []byte{byte(factCode[jumpPatch]), factCode[jumpPatch+1], factCode[jumpPatch+2], factCode[jumpPatch+3]}
	_ = binary
	rel := int32(l1 - (jumpPatch + 4))
	copy(factCode[jumpPatch:jumpPatch+4], i32(rel))

	emitOp(bytecode.OpGetName)
	emit4(0) // n
	emitOp(bytecode.OpGetName)
	emit4(1) // fact
	emitOp(bytecode.OpGetName)
	emit4(0) // n
	emitOp(bytecode.OpPushConst)
	emit4(0) // 1
	emitOp(bytecode.OpSub)
	emitOp(bytecode.OpCall)
	emit4(1)
	emitOp(bytecode.OpMul)
	emitOp(bytecode.OpReturn)

	factChunk := buildChunk(factCode, []interface{}{float64(1)}, names)

	// Top level: decl_var fact = <closure over factChunk>; fact(5); return.
	topCode := []byte{byte(bytecode.OpPushConst)}
	topCode = append(topCode, i32(0)...)
	topCode = append(topCode, byte(bytecode.OpDeclVar))
	topCode = append(topCode, i32(1)...) // name id 1 = "fact" in top-level names
	topCode = append(topCode, byte(bytecode.OpGetName))
	topCode = append(topCode, i32(1)...)
	topCode = append(topCode, byte(bytecode.OpPushConst))
	topCode = append(topCode, i32(1)...)
	topCode = append(topCode, byte(bytecode.OpCall))
	topCode = append(topCode, i32(1)...)
	topCode = append(topCode, byte(bytecode.OpReturn))

	funcLit := &FuncLiteral{Name: "fact", Params: []value.Param{{Name: "n"}}, Code: factChunk}
	topChunk := buildChunk(topCode, []interface{}{funcLit, float64(5)}, []string{"n", "fact"})

	result := runChunk(t, topChunk)
	if value.AsNumber(result) != 120 {
		t.Errorf("expected fact(5) == 120, got %v", value.AsNumber(result))
	}
}

// TestConstructSubstitutesFreshObject exercises construct's return-value
// rule: a constructor returning a non-object value yields the freshly
// allocated `this` instead.
func TestConstructSubstitutesFreshObject(t *testing.T) {
	ctorCode := []byte{byte(bytecode.OpPushConst)}
	ctorCode = append(ctorCode, i32(0)...)
	ctorCode = append(ctorCode, byte(bytecode.OpReturn))
	ctorChunk := buildChunk(ctorCode, []interface{}{float64(42)}, nil)

	topCode := []byte{byte(bytecode.OpPushConst)}
	topCode = append(topCode, i32(0)...)
	topCode = append(topCode, byte(bytecode.OpConstruct))
	topCode = append(topCode, i32(0)...)
	topCode = append(topCode, byte(bytecode.OpReturn))

	funcLit := &FuncLiteral{Name: "Widget", Code: ctorChunk}
	topChunk := buildChunk(topCode, []interface{}{funcLit}, nil)

	result := runChunk(t, topChunk)
	if !value.IsObject(result) {
		t.Errorf("expected an object, got %s", value.TypeOf(result))
	}
}

// TestSetMemberOnArgumentsAliasesFormal calls a one-param function whose
// body assigns through arguments[0] and then returns the formal by name,
// exercising setMember's Arguments case end to end:
//
//	push_arguments            ; parent
//	push_const "0"            ; member (stringIndex-parseable key)
//	push_const 99             ; value
//	set_member
//	pop                       ; discard set_member's pushed value
//	get_name a
//	return
func TestSetMemberOnArgumentsAliasesFormal(t *testing.T) {
	fnCode := []byte{byte(bytecode.OpPushArguments)}
	fnCode = append(fnCode, byte(bytecode.OpPushConst))
	fnCode = append(fnCode, i32(0)...)
	fnCode = append(fnCode, byte(bytecode.OpPushConst))
	fnCode = append(fnCode, i32(1)...)
	fnCode = append(fnCode, byte(bytecode.OpSetMember))
	fnCode = append(fnCode, byte(bytecode.OpPop))
	fnCode = append(fnCode, byte(bytecode.OpGetName))
	fnCode = append(fnCode, i32(0)...)
	fnCode = append(fnCode, byte(bytecode.OpReturn))
	fnChunk := buildChunk(fnCode, []interface{}{"0", float64(99)}, []string{"a"})

	funcLit := &FuncLiteral{Name: "bump", Params: []value.Param{{Name: "a"}}, Code: fnChunk}

	topCode := []byte{byte(bytecode.OpPushConst)}
	topCode = append(topCode, i32(0)...)
	topCode = append(topCode, byte(bytecode.OpPushConst))
	topCode = append(topCode, i32(1)...)
	topCode = append(topCode, byte(bytecode.OpCall))
	topCode = append(topCode, i32(1)...)
	topCode = append(topCode, byte(bytecode.OpReturn))
	topChunk := buildChunk(topCode, []interface{}{funcLit, float64(41)}, nil)

	result := runChunk(t, topChunk)
	if value.AsNumber(result) != 99 {
		t.Errorf("expected arguments[0]=99 to alias formal a, got %v", value.AsNumber(result))
	}
}

// console.log("hi"): get_name console, push_const "log", get_member,
// push_const "hi", call 1
func TestConsoleLogWritesThroughStdoutWrite(t *testing.T) {
	var out string
	m := New(NoopJIT{})
	m.StdoutWrite = func(s string) { out += s }

	names := []string{"console"}
	consts := []interface{}{"log", "hi"}
	instrs := []byte{byte(bytecode.OpGetName)}
	instrs = append(instrs, i32(0)...)
	instrs = append(instrs, byte(bytecode.OpPushConst))
	instrs = append(instrs, i32(0)...)
	instrs = append(instrs, byte(bytecode.OpGetMember))
	instrs = append(instrs, byte(bytecode.OpPushConst))
	instrs = append(instrs, i32(1)...)
	instrs = append(instrs, byte(bytecode.OpCall))
	instrs = append(instrs, i32(1)...)
	instrs = append(instrs, byte(bytecode.OpReturn))

	chunk := buildChunk(instrs, consts, names)
	if _, err := m.Run(chunk); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hi\n" {
		t.Errorf("expected console.log output %q, got %q", "hi\n", out)
	}
}
