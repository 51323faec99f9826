package vm

import (
	"unicode/utf8"

	"github.com/nomissbowling/rapidus/internal/errors"
	"github.com/nomissbowling/rapidus/internal/value"
)

// getMember implements get_member's dispatch on the parent value's kind.
func (vm *VM) getMember(parent, member value.Value) (value.Value, error) {
	key := value.ToDisplayString(member)

	switch {
	case value.IsObject(parent):
		v, ok := value.Lookup(value.AsObject(parent).Props, key)
		if !ok {
			return value.Undefined, nil
		}
		return bindReceiver(v, parent), nil

	case value.IsArray(parent):
		arr := value.AsArray(parent)
		v, ok := arr.Get(key)
		if !ok {
			return value.Undefined, nil
		}
		return bindReceiver(v, parent), nil

	case value.IsFunction(parent):
		v, ok := value.Lookup(value.AsFunction(parent).Props, key)
		if !ok {
			return value.Undefined, nil
		}
		return bindReceiver(v, parent), nil

	case value.IsBuiltin(parent):
		v, ok := value.Lookup(value.AsBuiltin(parent).Props, key)
		if !ok {
			return value.Undefined, nil
		}
		return bindReceiver(v, parent), nil

	case value.IsString(parent):
		s := value.AsString(parent).S
		if key == "length" {
			return value.Number(float64(utf8.RuneCountInString(s))), nil
		}
		if idx, ok := stringIndex(key); ok {
			runes := []rune(s)
			if idx >= 0 && idx < len(runes) {
				return value.String(string(runes[idx])), nil
			}
		}
		return value.Undefined, nil

	case value.IsArguments(parent):
		scope := value.AsArguments(parent).Scope
		if key == "length" {
			return value.Number(float64(scope.ArgCount())), nil
		}
		if idx, ok := stringIndex(key); ok {
			if v, ok := scope.ArgPositional(idx); ok {
				return v, nil
			}
		}
		return value.Undefined, nil
	}

	return value.Undefined, errors.NewTypeError("cannot read property '%s' of %s", key, value.TypeOf(parent))
}

// setMember implements set_member.
func (vm *VM) setMember(parent, member, v value.Value) error {
	key := value.ToDisplayString(member)

	switch {
	case value.IsObject(parent):
		value.AsObject(parent).Props.Set(key, v)
		return nil
	case value.IsArray(parent):
		value.AsArray(parent).Set(key, v)
		return nil
	case value.IsFunction(parent):
		value.AsFunction(parent).Props.Set(key, v)
		return nil
	case value.IsBuiltin(parent):
		value.AsBuiltin(parent).Props.Set(key, v)
		return nil
	case value.IsArguments(parent):
		scope := value.AsArguments(parent).Scope
		if idx, ok := stringIndex(key); ok && scope.SetArgPositional(idx, v) {
			return nil
		}
		return errors.NewTypeError("cannot set property '%s' of arguments", key)
	}
	return errors.NewTypeError("cannot set property '%s' of %s", key, value.TypeOf(parent))
}

// bindReceiver rebinds a Function/BuiltinFunction's `this` to parent, per
// the member-access rule; any other kind passes through unchanged.
func bindReceiver(v, parent value.Value) value.Value {
	if value.IsFunction(v) || value.IsBuiltin(v) {
		return value.BindThis(v, parent)
	}
	return v
}

func stringIndex(key string) (int, bool) {
	n := 0
	if key == "" {
		return 0, false
	}
	for _, r := range key {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}
