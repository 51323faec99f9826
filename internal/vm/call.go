package vm

import (
	"github.com/nomissbowling/rapidus/internal/bytecode"
	"github.com/nomissbowling/rapidus/internal/errors"
	"github.com/nomissbowling/rapidus/internal/value"
)

// doCall pops the callee and argc arguments (the call⟨argc⟩/construct⟨argc⟩
// operand's pop order: arguments first, last argument nearest the top, then
// the callee beneath them all) and dispatches. BuiltinFunction calls execute
// synchronously and push their result; Function calls push a fresh frame
// for the surrounding dispatch loop to continue into. construct allocates a
// fresh object, binds it as `this`, and — if the callee returns a non-
// object/array/function — substitutes the constructed object for the
// return value.
func (vm *VM) doCall(argc int, construct bool) error {
	args := make([]value.Value, argc)
	for i := argc - 1; i >= 0; i-- {
		args[i] = vm.pop()
	}
	callee := vm.pop()

	switch {
	case value.IsBuiltin(callee):
		b := value.AsBuiltin(callee)
		scope := value.NewScopeRecord(nil, nil)
		if b.HasBoundThis {
			scope.This = b.BoundThis
		}
		if construct {
			proto, _ := value.Lookup(b.Props, "prototype")
			obj := value.NewObject()
			if value.IsObject(proto) {
				value.AsObject(obj).Props.SetProto(proto)
			}
			scope.This = obj
		}
		scope.Rest = args
		result, err := b.Fn(scope, args)
		if err != nil {
			return err
		}
		if construct && !isConstructibleResult(result) {
			result = scope.This
		}
		vm.push(result)
		return nil

	case value.IsFunction(callee):
		fn := value.AsFunction(callee)

		if !construct {
			if result, ok, err := vm.jit.TryEnterFunction(fn, args); err != nil {
				return err
			} else if ok {
				vm.jit.RecordReturnType(fn, result)
				vm.push(result)
				return nil
			}
		}

		// A fresh ScopeRecord per call — parented at the closure's captured
		// environment, not sharing its bindings — is what keeps recursive
		// calls from aliasing each other's locals.
		callScope := value.NewScopeRecord(fn.Scope, fn.Params)
		if fn.HasBoundThis {
			callScope.This = fn.BoundThis
		}
		if construct {
			proto, _ := value.Lookup(fn.Props, "prototype")
			obj := value.NewObject()
			if value.IsObject(proto) {
				value.AsObject(obj).Props.SetProto(proto)
			}
			callScope.This = obj
		}

		var rest []value.Value
		for i, p := range fn.Params {
			if p.IsRest {
				remainder := []value.Value{}
				if i < len(args) {
					remainder = append(remainder, args[i:]...)
				}
				callScope.Declare(p.Name, value.NewArray(remainder))
				break
			}
			if i < len(args) {
				callScope.Declare(p.Name, args[i])
			} else {
				callScope.Declare(p.Name, value.Undefined)
			}
		}
		if len(args) > len(fn.Params) {
			lastIsRest := len(fn.Params) > 0 && fn.Params[len(fn.Params)-1].IsRest
			if !lastIsRest {
				rest = append(rest, args[len(fn.Params):]...)
			}
		}
		callScope.Rest = rest

		chunk, _ := fn.Code.(*bytecode.Chunk)
		frame := &Frame{
			chunk:       chunk,
			fn:          fn,
			funcID:      fn.ID,
			scope:       callScope,
			pc:          0,
			stackHeight: len(vm.stack),
			isConstruct: construct,
			constructThis: callScope.This,
		}
		vm.frames = append(vm.frames, frame)
		vm.cur = frame
		return nil

	default:
		return errors.NewTypeError("%s is not a function", value.TypeOf(callee))
	}
}

// isConstructibleResult reports whether a callee's return value is an
// Object/Array/Function — the kinds `construct` lets override the freshly
// allocated `this`.
func isConstructibleResult(v value.Value) bool {
	return value.IsObject(v) || value.IsArray(v) || value.IsFunction(v)
}
