package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumberRoundTrips(t *testing.T) {
	cases := []float64{0, 1, -1, 3.14159, -1e300, 1e-300}
	for _, f := range cases {
		v := Number(f)
		require.True(t, IsNumber(v), "Number(%v) not recognized as IsNumber", f)
		assert.Equal(t, f, AsNumber(v))
	}
}

func TestImmediateTags(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		kind Kind
	}{
		{"empty", Empty, KindEmpty},
		{"null", Null, KindNull},
		{"undefined", Undefined, KindUndefined},
		{"true", Bool(true), KindBool},
		{"false", Bool(false), KindBool},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, TypeOf(tt.v))
		})
	}
}

func TestIsTruthy(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want bool
	}{
		{"undefined", Undefined, false},
		{"null", Null, false},
		{"empty", Empty, false},
		{"false", Bool(false), false},
		{"true", Bool(true), true},
		{"zero", Number(0), false},
		{"nonzero", Number(1), true},
		{"negative", Number(-1), true},
		{"empty string", String(""), false},
		{"nonempty string", String("x"), true},
		{"object", NewObject(), true},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTruthy(tt.v))
		})
	}
}

func TestStringRoundTrip(t *testing.T) {
	v := String("hello")
	require.True(t, IsString(v))
	assert.Equal(t, "hello", AsString(v).S)
}

func TestPropertyMapGetSetOwn(t *testing.T) {
	m := NewPropertyMap(4)
	m.Set("x", Number(1))
	e, ok := m.GetOwn("x")
	require.True(t, ok, "expected x to be present")
	assert.Equal(t, float64(1), AsNumber(e.Value))

	_, ok = m.GetOwn("missing")
	assert.False(t, ok, "expected missing key to be absent")
}

// TestLookupWalksPrototypeChain exercises the chained property lookup every
// object-like Value kind shares: a miss on the receiver's own map falls
// through __proto__ until it finds the property or runs out of chain.
func TestLookupWalksPrototypeChain(t *testing.T) {
	base := NewObject()
	AsObject(base).Props.Set("greeting", String("hi"))

	derived := NewObject()
	AsObject(derived).Props.SetProto(base)
	AsObject(derived).Props.Set("own", Number(1))

	v, ok := Lookup(AsObject(derived).Props, "own")
	require.True(t, ok, "expected own property to resolve locally")
	assert.Equal(t, float64(1), AsNumber(v))

	v, ok = Lookup(AsObject(derived).Props, "greeting")
	require.True(t, ok, "expected greeting to resolve through the prototype chain")
	assert.Equal(t, "hi", AsString(v).S)

	_, ok = Lookup(AsObject(derived).Props, "nope")
	assert.False(t, ok, "expected a lookup miss past the end of the chain to fail")
}

func TestScopeRecordDeclareGetAssign(t *testing.T) {
	root := NewScopeRecord(nil, nil)
	root.Declare("x", Number(1))

	child := NewScopeRecord(root, nil)
	v, ok := child.Get("x")
	require.True(t, ok, "expected child to see parent binding x=1")
	assert.Equal(t, float64(1), AsNumber(v))

	child.AssignExisting("x", Number(2))
	v, _ = root.Get("x")
	assert.Equal(t, float64(2), AsNumber(v), "expected AssignExisting to write through to the defining record")

	// A name never declared anywhere in the chain inserts at the root on
	// first assignment, mirroring an implicit global.
	child.AssignExisting("y", Number(3))
	v, ok = root.Get("y")
	require.True(t, ok, "expected undeclared assignment to land on the root record")
	assert.Equal(t, float64(3), AsNumber(v))
}

// TestScopeRecordCloneSharesBindings confirms the closure-capture trick a
// function literal's boxing depends on: Clone must share the same Bindings
// map pointer as the original, not a copy, so writes through either handle
// are visible through both.
func TestScopeRecordCloneSharesBindings(t *testing.T) {
	s := NewScopeRecord(nil, nil)
	s.Declare("x", Number(1))

	clone := s.Clone()
	require.Same(t, s.Bindings, clone.Bindings, "expected Clone to share the same Bindings map pointer")

	clone.Declare("y", Number(2))
	v, ok := s.Get("y")
	require.True(t, ok, "expected a declare through the clone to be visible on the original")
	assert.Equal(t, float64(2), AsNumber(v))
}

func TestScopeRecordArgPositionalAliasesFormals(t *testing.T) {
	s := NewScopeRecord(nil, []Param{{Name: "a"}, {Name: "b"}})
	s.Declare("a", Number(10))
	s.Declare("b", Number(20))
	s.Rest = []Value{Number(30)}

	v, ok := s.ArgPositional(0)
	require.True(t, ok)
	assert.Equal(t, float64(10), AsNumber(v))

	v, ok = s.ArgPositional(2)
	require.True(t, ok, "expected arg 2 to come from rest[0]")
	assert.Equal(t, float64(30), AsNumber(v))

	_, ok = s.ArgPositional(3)
	assert.False(t, ok, "expected an out-of-range argument index to report absent")
	assert.Equal(t, 3, s.ArgCount())

	// Reassigning a formal through AssignExisting must be visible through
	// ArgPositional too, since arguments[n] aliases the formal by name.
	s.AssignExisting("a", Number(99))
	v, _ = s.ArgPositional(0)
	assert.Equal(t, float64(99), AsNumber(v), "expected arg 0 to alias the reassigned formal")
}
