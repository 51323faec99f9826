package value

import (
	"unsafe"

	"github.com/google/uuid"
)

// FuncId identifies a function value across the process lifetime. The
// tracing JIT keys its per-site counters and compiled-entry cache on
// (FuncId, pc). NewFunction assigns a fresh FuncId on every call, so each
// closure created from one function literal gets its own FuncId and its own
// JIT counters; only the receiver-bound copies made by BindThis share the
// original's FuncId.
//
// Generated with github.com/google/uuid instead of a hand-rolled counter, so
// ids stay unique across concurrently-compiled modules without the
// interpreter coordinating a shared counter by hand.
type FuncId uuid.UUID

func newFuncId() FuncId {
	return FuncId(uuid.New())
}

// NewFuncId generates a fresh FuncId for a body that isn't wrapped in a
// FunctionObj — the top-level program, which the JIT traces for hot loops
// the same way it traces loops inside a user function.
func NewFuncId() FuncId {
	return newFuncId()
}

func (id FuncId) String() string {
	return uuid.UUID(id).String()
}

// Param describes one formal parameter: a ScopeRecord carries an ordered
// list of (name, is_rest) pairs.
type Param struct {
	Name   string
	IsRest bool
}

// FunctionObj is the heap payload for user Function values: a FuncId, the
// compiled body, a property map (always carries "prototype", whose
// "constructor" points back to the function), and the captured scope
// record.
type FunctionObj struct {
	Heap
	ID       FuncId
	Name     string
	Params   []Param
	Code     interface{} // *bytecode.Chunk; interface{} to avoid an import cycle with internal/bytecode
	Props    *PropertyMap
	Scope    *ScopeRecord
	BoundThis Value
	HasBoundThis bool
}

func IsFunction(v Value) bool {
	return IsPointer(v) && AsHeap(v).Kind == KindFunction
}

func AsFunction(v Value) *FunctionObj {
	return (*FunctionObj)(unsafe.Pointer(AsHeap(v)))
}

// NewFunction allocates a Function value. code is the *bytecode.Chunk body;
// scope is the lexical parent captured by value at creation time, before any
// set_cur_callobj rewrite.
func NewFunction(name string, params []Param, code interface{}, scope *ScopeRecord) Value {
	fn := &FunctionObj{
		Heap:   Heap{Kind: KindFunction},
		ID:     newFuncId(),
		Name:   name,
		Params: params,
		Code:   code,
		Props:  NewPropertyMap(2),
		Scope:  scope,
	}
	register(&fn.Heap)
	v := boxPointer(&fn.Heap)

	proto := NewObject()
	AsObject(proto).Props.Set("constructor", v)
	fn.Props.Set("prototype", proto)
	return v
}

// BuiltinFunc is a host intrinsic's implementation. It receives the scope
// the call executes in (so builtins can read "this"/"arguments" like user
// functions can) and the already-evaluated argument list.
type BuiltinFunc func(scope *ScopeRecord, args []Value) (Value, error)

// BuiltinObj is the heap payload for BuiltinFunction values.
type BuiltinObj struct {
	Heap
	Name         string
	Fn           BuiltinFunc
	Props        *PropertyMap
	BoundThis    Value
	HasBoundThis bool
}

func IsBuiltin(v Value) bool {
	return IsPointer(v) && AsHeap(v).Kind == KindBuiltinFunction
}

func AsBuiltin(v Value) *BuiltinObj {
	return (*BuiltinObj)(unsafe.Pointer(AsHeap(v)))
}

// Builtin wraps a host function as a BuiltinFunction value.
func Builtin(name string, fn BuiltinFunc) Value {
	b := &BuiltinObj{Heap: Heap{Kind: KindBuiltinFunction}, Name: name, Fn: fn, Props: NewPropertyMap(0)}
	register(&b.Heap)
	return boxPointer(&b.Heap)
}

// BindThis returns a shallow copy of a Function/BuiltinFunction value with
// its receiver rebound to this. When a member-access lookup resolves to a
// Function/BuiltinFunction, it hands back this bound copy so that a
// subsequent call opcode picks up the receiver without the call site having
// to know it came from a property.
func BindThis(v, this Value) Value {
	switch {
	case IsFunction(v):
		orig := AsFunction(v)
		fn := &FunctionObj{
			Heap: Heap{Kind: KindFunction}, ID: orig.ID, Name: orig.Name,
			Params: orig.Params, Code: orig.Code, Props: orig.Props, Scope: orig.Scope,
			BoundThis: this, HasBoundThis: true,
		}
		register(&fn.Heap)
		return boxPointer(&fn.Heap)
	case IsBuiltin(v):
		orig := AsBuiltin(v)
		b := &BuiltinObj{
			Heap: Heap{Kind: KindBuiltinFunction}, Name: orig.Name, Fn: orig.Fn, Props: orig.Props,
			BoundThis: this, HasBoundThis: true,
		}
		register(&b.Heap)
		return boxPointer(&b.Heap)
	}
	return v
}
