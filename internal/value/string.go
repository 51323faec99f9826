package value

import "unsafe"

// StringObj is the heap payload for String values. Strings are immutable
// byte sequences. The JIT's IR lowering does not take strings: a region
// that pushes a string constant is not compiled.
type StringObj struct {
	Heap
	S string
}

// String boxes a Go string as a runtime String value.
func String(s string) Value {
	obj := &StringObj{Heap: Heap{Kind: KindString}, S: s}
	register(&obj.Heap)
	return boxPointer(&obj.Heap)
}

func IsString(v Value) bool {
	return IsPointer(v) && AsHeap(v).Kind == KindString
}

// AsString extracts the StringObj a String value addresses. Callers must
// have checked IsString.
func AsString(v Value) *StringObj {
	return (*StringObj)(unsafe.Pointer(AsHeap(v)))
}
