package value

import (
	"unsafe"

	"github.com/dolthub/swiss"
)

// protoKey is the special PropertyMap key holding the prototype link;
// absence means no prototype.
const protoKey = "__proto__"

// PropEntry is one property slot: a Value plus its descriptor attributes.
// Defaults are all true, matching ordinary assignment.
type PropEntry struct {
	Value        Value
	Writable     bool
	Enumerable   bool
	Configurable bool
}

// PropertyMap maps string keys to Values with property-descriptor
// attributes. Insertion order is not observable to running programs, which
// is exactly what a hash map backing gives us for free.
//
// Backed by a swiss-table hash map, narrowed to string keys (PropertyMap
// keys are always strings; only Map-typed language values would need Value
// keys, and this runtime has no such type).
type PropertyMap struct {
	m *swiss.Map[string, PropEntry]
}

// NewPropertyMap returns an empty PropertyMap sized for sizeHint entries.
func NewPropertyMap(sizeHint int) *PropertyMap {
	if sizeHint < 1 {
		sizeHint = 1
	}
	return &PropertyMap{m: swiss.NewMap[string, PropEntry](uint32(sizeHint))}
}

// GetOwn looks up key directly on this map, without walking __proto__.
func (p *PropertyMap) GetOwn(key string) (PropEntry, bool) {
	return p.m.Get(key)
}

// Set writes key with default attributes (all true), as plain assignment
// does.
func (p *PropertyMap) Set(key string, v Value) {
	p.m.Put(key, PropEntry{Value: v, Writable: true, Enumerable: true, Configurable: true})
}

// SetEntry writes key with explicit descriptor attributes.
func (p *PropertyMap) SetEntry(key string, e PropEntry) {
	p.m.Put(key, e)
}

func (p *PropertyMap) Delete(key string) bool {
	return p.m.Delete(key)
}

func (p *PropertyMap) Len() int {
	return p.m.Count()
}

// Proto returns the prototype link, if any.
func (p *PropertyMap) Proto() (Value, bool) {
	e, ok := p.m.Get(protoKey)
	if !ok {
		return Undefined, false
	}
	return e.Value, true
}

func (p *PropertyMap) SetProto(v Value) {
	p.m.Put(protoKey, PropEntry{Value: v, Writable: true, Enumerable: false, Configurable: false})
}

// Each calls fn for every own enumerable-or-not property, including
// __proto__. Iteration order is unspecified.
func (p *PropertyMap) Each(fn func(key string, e PropEntry) bool) {
	p.m.Iter(func(k string, e PropEntry) bool {
		return !fn(k, e)
	})
}

// ObjectObj is the heap payload for plain Object values.
type ObjectObj struct {
	Heap
	Props *PropertyMap
}

func NewObject() Value {
	obj := &ObjectObj{Heap: Heap{Kind: KindObject}, Props: NewPropertyMap(4)}
	register(&obj.Heap)
	return boxPointer(&obj.Heap)
}

func IsObject(v Value) bool {
	return IsPointer(v) && AsHeap(v).Kind == KindObject
}

func AsObject(v Value) *ObjectObj {
	return (*ObjectObj)(unsafe.Pointer(AsHeap(v)))
}

// Lookup walks the prototype chain for Object/Function/BuiltinFunction
// receivers: look up key locally, on miss follow __proto__ and retry,
// terminating at the first record without one. The walk visits __proto__ at
// most once per step because each hop strictly advances to a new map or
// stops.
func Lookup(props *PropertyMap, key string) (Value, bool) {
	cur := props
	for {
		if e, ok := cur.GetOwn(key); ok {
			return e.Value, true
		}
		protoVal, ok := cur.Proto()
		if !ok {
			return Undefined, false
		}
		if !IsPointer(protoVal) {
			return Undefined, false
		}
		switch AsHeap(protoVal).Kind {
		case KindObject:
			cur = AsObject(protoVal).Props
		case KindArray:
			cur = AsArray(protoVal).Props
		case KindFunction:
			cur = AsFunction(protoVal).Props
		case KindBuiltinFunction:
			cur = AsBuiltin(protoVal).Props
		default:
			return Undefined, false
		}
	}
}
