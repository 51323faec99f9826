package value

import "unsafe"

// ScopeRecord is the call object: a mutable name→value binding map with a
// parent link, the formal parameter descriptors, the excess positional
// arguments beyond the formals, and a settable `this`.
//
// The parent-link-plus-bindings shape mirrors a call-object model shared
// across scripting-language runtimes; the parent-link convention itself
// follows how call frames chain in a typical tree-walking interpreter.
type ScopeRecord struct {
	Heap
	Bindings *PropertyMap
	Params   []Param
	Rest     []Value // excess positional arguments beyond len(Params)
	This     Value
	Parent   *ScopeRecord
}

// NewScopeRecord allocates a fresh ScopeRecord. A fresh Bindings map on every
// call is what makes recursion not alias bindings.
func NewScopeRecord(parent *ScopeRecord, params []Param) *ScopeRecord {
	s := &ScopeRecord{
		Heap:     Heap{Kind: kindScope},
		Bindings: NewPropertyMap(len(params) + 2),
		Params:   params,
		This:     Undefined,
		Parent:   parent,
	}
	register(&s.Heap)
	return s
}

// kindScope is not a Value variant (no Value ever boxes a bare *ScopeRecord
// pointer); it only tags the Heap header so internal/gc's sweep can tell
// a ScopeRecord node apart from Object/Array/Function/String nodes that do
// share the allocation list.
const kindScope Kind = -1

// Clone returns a shallow copy of s sharing the same Bindings map — used at
// function-literal creation time to capture the lexical parent's record by
// value, before set_cur_callobj later rewrites the clone's Parent.
func (s *ScopeRecord) Clone() *ScopeRecord {
	c := &ScopeRecord{
		Heap:     Heap{Kind: kindScope},
		Bindings: s.Bindings,
		Params:   s.Params,
		Rest:     s.Rest,
		This:     s.This,
		Parent:   s.Parent,
	}
	register(&c.Heap)
	return c
}

// Declare always binds name locally (decl_var).
func (s *ScopeRecord) Declare(name string, v Value) {
	s.Bindings.Set(name, v)
}

// Get walks the parent chain looking for name (get_name).
func (s *ScopeRecord) Get(name string) (Value, bool) {
	for cur := s; cur != nil; cur = cur.Parent {
		if e, ok := cur.Bindings.GetOwn(name); ok {
			return e.Value, true
		}
	}
	return Undefined, false
}

// AssignExisting is set_name's assign-if-exists mode: walk parents, write at
// the nearest record that already defines name; if none does, insert at the
// root (the outermost record in the chain).
func (s *ScopeRecord) AssignExisting(name string, v Value) {
	var root *ScopeRecord
	for cur := s; cur != nil; cur = cur.Parent {
		root = cur
		if _, ok := cur.Bindings.GetOwn(name); ok {
			cur.Bindings.Set(name, v)
			return
		}
	}
	if root != nil {
		root.Bindings.Set(name, v)
	}
}

// ArgPositional implements the alias invariant: arguments[n] for n < #formals
// aliases the formal parameter of that index; higher indices read from
// Rest.
func (s *ScopeRecord) ArgPositional(n int) (Value, bool) {
	if n < len(s.Params) {
		return s.Get(s.Params[n].Name)
	}
	i := n - len(s.Params)
	if i >= 0 && i < len(s.Rest) {
		return s.Rest[i], true
	}
	return Undefined, false
}

// SetArgPositional is ArgPositional's write side: arguments[n] = v for
// n < #formals writes through to the aliased formal (visible from the
// formal's name immediately after), keeping both sides of the alias in
// sync; higher indices write into Rest. Reports whether n was in range.
func (s *ScopeRecord) SetArgPositional(n int, v Value) bool {
	if n < len(s.Params) {
		s.AssignExisting(s.Params[n].Name, v)
		return true
	}
	i := n - len(s.Params)
	if i >= 0 && i < len(s.Rest) {
		s.Rest[i] = v
		return true
	}
	return false
}

// ArgCount is the total argument count backing "arguments.length".
func (s *ScopeRecord) ArgCount() int {
	return len(s.Params) + len(s.Rest)
}

// ArgumentsObj is the heap payload for the Arguments value: a thin view over
// the owning call's ScopeRecord.
type ArgumentsObj struct {
	Heap
	Scope *ScopeRecord
}

func NewArguments(s *ScopeRecord) Value {
	a := &ArgumentsObj{Heap: Heap{Kind: KindArguments}, Scope: s}
	register(&a.Heap)
	return boxPointer(&a.Heap)
}

func IsArguments(v Value) bool {
	return IsPointer(v) && AsHeap(v).Kind == KindArguments
}

func AsArguments(v Value) *ArgumentsObj {
	return (*ArgumentsObj)(unsafe.Pointer(AsHeap(v)))
}
