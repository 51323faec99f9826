package jit

import (
	"testing"

	"github.com/nomissbowling/rapidus/internal/bytecode"
	"github.com/nomissbowling/rapidus/internal/value"
	"github.com/nomissbowling/rapidus/internal/vm"
)

// TestFuncSiteStaysBelowThreshold checks that a function site doesn't
// attempt compilation (and so never blocks on a real JIT toolchain) before
// its entry count reaches funcThreshold.
func TestFuncSiteStaysBelowThreshold(t *testing.T) {
	tr := NewTracer(t.TempDir())
	fn := &value.FunctionObj{ID: value.NewFuncId()}
	args := []value.Value{value.Number(1)}

	for i := 0; i < funcThreshold-1; i++ {
		if _, ok, err := tr.TryEnterFunction(fn, args); err != nil || ok {
			t.Fatalf("entry %d: expected ok=false below threshold, got ok=%v err=%v", i, ok, err)
		}
	}

	site := tr.funcSite(fn.ID)
	if site.state != stateCounting {
		t.Errorf("expected site to still be Counting below threshold, got %v", site.state)
	}
	if site.count != funcThreshold-1 {
		t.Errorf("expected count %d, got %d", funcThreshold-1, site.count)
	}
}

// TestTryEnterFunctionRejectsTooManyArgs exercises the candidacy gate
// without ever reaching codegen: a function with more than 3 parameters is
// marked Dead as soon as it crosses the entry threshold, regardless of
// whether compilation would otherwise succeed.
func TestTryEnterFunctionRejectsTooManyArgs(t *testing.T) {
	tr := NewTracer(t.TempDir())
	fn := &value.FunctionObj{
		ID:     value.NewFuncId(),
		Params: []value.Param{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}},
	}
	args := []value.Value{value.Number(1), value.Number(2), value.Number(3), value.Number(4)}

	for i := 0; i < funcThreshold; i++ {
		if _, ok, err := tr.TryEnterFunction(fn, args); err != nil {
			t.Fatalf("unexpected error: %v", err)
		} else if ok {
			t.Fatalf("expected ok=false while below/at threshold with too many args")
		}
	}

	site := tr.funcSite(fn.ID)
	if site.state != stateDead {
		t.Errorf("expected site to be marked Dead after exceeding arity, got %v", site.state)
	}

	// Once Dead, further entries still decline without re-evaluating gates.
	if _, ok, err := tr.TryEnterFunction(fn, args); err != nil || ok {
		t.Errorf("expected a Dead site to keep declining, got ok=%v err=%v", ok, err)
	}
}

// TestTryEnterFunctionRejectsNonNumericArgs exercises the "all arguments
// Number" candidacy gate.
func TestTryEnterFunctionRejectsNonNumericArgs(t *testing.T) {
	tr := NewTracer(t.TempDir())
	fn := &value.FunctionObj{ID: value.NewFuncId(), Params: []value.Param{{Name: "a"}}}
	args := []value.Value{value.String("not a number")}

	for i := 0; i < funcThreshold; i++ {
		if _, ok, _ := tr.TryEnterFunction(fn, args); ok {
			t.Fatalf("expected ok=false for non-numeric args")
		}
	}

	site := tr.funcSite(fn.ID)
	if site.state != stateDead {
		t.Errorf("expected site Dead after a non-numeric-args entry at threshold, got %v", site.state)
	}
}

// TestTryEnterLoopRejectsNonNumericLocal mirrors the function-JIT candidacy
// test for the loop-JIT's "every tracked local is Number or Bool" gate.
func TestTryEnterLoopRejectsNonNumericLocal(t *testing.T) {
	tr := NewTracer(t.TempDir())
	scope := value.NewScopeRecord(nil, nil)
	scope.Declare("s", value.String("not numeric"))

	site := vm.LoopSite{
		ID:      value.NewFuncId(),
		Code:    &bytecode.Chunk{},
		PC:      0,
		LoopEnd: 0,
		Locals:  []string{"s"},
		Scope:   scope,
	}
	for i := 0; i < loopThreshold; i++ {
		if _, ok, _ := tr.TryEnterLoop(site); ok {
			t.Fatalf("expected ok=false for a non-numeric tracked local")
		}
	}

	rec := tr.loopSite(site.ID, site.PC)
	if rec.state != stateDead {
		t.Errorf("expected loop site Dead, got %v", rec.state)
	}
}
