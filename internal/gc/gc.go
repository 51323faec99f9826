// Package gc implements a stop-the-world, non-moving mark-and-sweep
// collector, run opportunistically at object/array creation sites, rooted at
// whatever the interpreter currently has reachable on its operand stack,
// scope stack, and the `this` pointers within those scopes.
//
// Walks the same intrusive Heap header list every runtime value embeds,
// unlinking dead nodes during sweep rather than tracking live objects in a
// separate cache.
package gc

import (
	"github.com/dustin/go-humanize"

	"github.com/nomissbowling/rapidus/internal/value"
)

// Stats summarizes one collection, logged via go-humanize for readable
// counts.
type Stats struct {
	Scanned  int
	Swept    int
	Live     int
}

func (s Stats) String() string {
	return "gc: scanned " + humanize.Comma(int64(s.Scanned)) +
		", swept " + humanize.Comma(int64(s.Swept)) +
		", live " + humanize.Comma(int64(s.Live))
}

// Collect performs one mark-and-sweep pass. valueRoots are every Value
// currently reachable from the operand stack and from ScopeRecord.This
// slots; scopeRoots are every ScopeRecord on the live scope stack. Cycles (a
// Function's prototype object pointing back at the Function via
// "constructor") are tolerated because marking tracks visited nodes rather
// than recursing along an acyclic assumption.
func Collect(valueRoots []value.Value, scopeRoots []*value.ScopeRecord) Stats {
	visited := make(map[*value.Heap]bool)

	var markValue func(v value.Value)
	var markScope func(s *value.ScopeRecord)

	markValue = func(v value.Value) {
		if !value.IsPointer(v) {
			return
		}
		h := value.AsHeap(v)
		if h == nil || visited[h] {
			return
		}
		visited[h] = true
		h.Marked = true

		switch {
		case value.IsObject(v):
			value.AsObject(v).Props.Each(func(_ string, e value.PropEntry) bool {
				markValue(e.Value)
				return true
			})
		case value.IsArray(v):
			arr := value.AsArray(v)
			for _, e := range arr.Elems {
				markValue(e)
			}
			arr.Props.Each(func(_ string, e value.PropEntry) bool {
				markValue(e.Value)
				return true
			})
		case value.IsFunction(v):
			fn := value.AsFunction(v)
			fn.Props.Each(func(_ string, e value.PropEntry) bool {
				markValue(e.Value)
				return true
			})
			if fn.HasBoundThis {
				markValue(fn.BoundThis)
			}
			markScope(fn.Scope)
		case value.IsBuiltin(v):
			b := value.AsBuiltin(v)
			b.Props.Each(func(_ string, e value.PropEntry) bool {
				markValue(e.Value)
				return true
			})
			if b.HasBoundThis {
				markValue(b.BoundThis)
			}
		case value.IsArguments(v):
			markScope(value.AsArguments(v).Scope)
		}
	}

	markScope = func(s *value.ScopeRecord) {
		if s == nil || visited[&s.Heap] {
			return
		}
		visited[&s.Heap] = true
		s.Heap.Marked = true

		s.Bindings.Each(func(_ string, e value.PropEntry) bool {
			markValue(e.Value)
			return true
		})
		markValue(s.This)
		for _, r := range s.Rest {
			markValue(r)
		}
		markScope(s.Parent)
	}

	for _, v := range valueRoots {
		markValue(v)
	}
	for _, s := range scopeRoots {
		markScope(s)
	}
	// The shared array prototype is process-wide and always live.
	markValue(value.SharedArrayPrototype())

	scanned, swept, live := 0, 0, 0
	var newHead *value.Heap
	for h := value.AllocHead(); h != nil; {
		next := h.Next
		scanned++
		if h.Marked {
			h.Marked = false
			h.Next = newHead
			newHead = h
			live++
		} else {
			swept++
		}
		h = next
	}
	value.SetAllocHead(newHead)

	return Stats{Scanned: scanned, Swept: swept, Live: live}
}
