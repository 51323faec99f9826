package vm

import (
	"github.com/nomissbowling/rapidus/internal/bytecode"
	"github.com/nomissbowling/rapidus/internal/errors"
	"github.com/nomissbowling/rapidus/internal/value"
)

// binaryOp implements every pop-two-push-one opcode's coercion and error
// rules. add has the widest coercion table (mixed bool+number coerces,
// anything else mixed concatenates string forms, Undefined yields NaN);
// every other arithmetic op requires both sides numeric, erroring
// Unimplemented otherwise; comparisons require matching value kinds.
func binaryOp(op bytecode.OpCode, a, b value.Value) (value.Value, error) {
	switch op {
	case bytecode.OpAdd:
		return add(a, b), nil
	case bytecode.OpSub:
		if !bothNumeric(a, b) {
			return value.Undefined, errors.NewUnimplementedError("sub requires numeric operands")
		}
		return value.Number(value.ToNumber(a) - value.ToNumber(b)), nil
	case bytecode.OpMul:
		if value.IsString(a) && value.IsNumber(b) {
			return value.String(repeatString(value.AsString(a).S, value.ToNumber(b))), nil
		}
		if value.IsNumber(a) && value.IsString(b) {
			return value.String(repeatString(value.AsString(b).S, value.ToNumber(a))), nil
		}
		if !bothNumeric(a, b) {
			return value.Undefined, errors.NewUnimplementedError("mul requires numeric operands")
		}
		return value.Number(value.ToNumber(a) * value.ToNumber(b)), nil
	case bytecode.OpDiv:
		if !bothNumeric(a, b) {
			return value.Undefined, errors.NewUnimplementedError("div requires numeric operands")
		}
		return value.Number(value.ToNumber(a) / value.ToNumber(b)), nil
	case bytecode.OpRem:
		if !bothNumeric(a, b) {
			return value.Undefined, errors.NewUnimplementedError("rem requires numeric operands")
		}
		af, bf := value.ToNumber(a), value.ToNumber(b)
		return value.Number(af - bf*float64(int64(af/bf))), nil

	case bytecode.OpAnd:
		return value.Number(float64(value.ToInt32(a) & value.ToInt32(b))), nil
	case bytecode.OpOr:
		return value.Number(float64(value.ToInt32(a) | value.ToInt32(b))), nil
	case bytecode.OpXor:
		return value.Number(float64(value.ToInt32(a) ^ value.ToInt32(b))), nil
	case bytecode.OpShl:
		return value.Number(float64(value.ToInt32(a) << (uint32(value.ToInt32(b)) & 31))), nil
	case bytecode.OpShr:
		return value.Number(float64(value.ToInt32(a) >> (uint32(value.ToInt32(b)) & 31))), nil
	case bytecode.OpZfShr:
		return value.Number(float64(uint32(value.ToInt32(a)) >> (uint32(value.ToInt32(b)) & 31))), nil

	case bytecode.OpLt:
		return relational(a, b, func(x, y float64) bool { return x < y }, func(x, y string) bool { return x < y })
	case bytecode.OpLe:
		return relational(a, b, func(x, y float64) bool { return x <= y }, func(x, y string) bool { return x <= y })
	case bytecode.OpGt:
		return relational(a, b, func(x, y float64) bool { return x > y }, func(x, y string) bool { return x > y })
	case bytecode.OpGe:
		return relational(a, b, func(x, y float64) bool { return x >= y }, func(x, y string) bool { return x >= y })

	case bytecode.OpEq:
		if value.TypeOf(a) != value.TypeOf(b) {
			return value.Undefined, errors.NewUnimplementedError("eq requires matching value kinds")
		}
		return value.Bool(value.Equal(a, b)), nil
	case bytecode.OpNe:
		if value.TypeOf(a) != value.TypeOf(b) {
			return value.Undefined, errors.NewUnimplementedError("ne requires matching value kinds")
		}
		return value.Bool(!value.Equal(a, b)), nil
	case bytecode.OpSeq:
		return value.Bool(value.TypeOf(a) == value.TypeOf(b) && value.Equal(a, b)), nil
	case bytecode.OpSne:
		return value.Bool(!(value.TypeOf(a) == value.TypeOf(b) && value.Equal(a, b))), nil
	}
	return value.Undefined, errors.NewUnknownError("unhandled binary opcode %s", op)
}

func bothNumeric(a, b value.Value) bool {
	return value.IsNumber(a) && value.IsNumber(b)
}

// add implements the coercion table: any Undefined operand yields NaN; a
// mixed Bool+Number pair coerces the bool to 0/1; any other mixed pair
// concatenates display-string forms.
func add(a, b value.Value) value.Value {
	if value.IsUndefined(a) || value.IsUndefined(b) {
		return value.Number(value.ToNumber(a) + value.ToNumber(b))
	}
	if value.IsNumber(a) && value.IsNumber(b) {
		return value.Number(value.AsNumber(a) + value.AsNumber(b))
	}
	if (value.IsBool(a) && value.IsNumber(b)) || (value.IsNumber(a) && value.IsBool(b)) {
		return value.Number(value.ToNumber(a) + value.ToNumber(b))
	}
	return value.String(value.ToDisplayString(a) + value.ToDisplayString(b))
}

func relational(a, b value.Value, numCmp func(x, y float64) bool, strCmp func(x, y string) bool) (value.Value, error) {
	if value.IsString(a) && value.IsString(b) {
		return value.Bool(strCmp(value.AsString(a).S, value.AsString(b).S)), nil
	}
	if !bothNumeric(a, b) {
		return value.Undefined, errors.NewUnimplementedError("comparison requires numeric or string operands of matching kind")
	}
	return value.Bool(numCmp(value.AsNumber(a), value.AsNumber(b))), nil
}

func repeatString(s string, n float64) string {
	if n <= 0 {
		return ""
	}
	out := make([]byte, 0, len(s)*int(n))
	for i := 0; i < int(n); i++ {
		out = append(out, s...)
	}
	return string(out)
}
