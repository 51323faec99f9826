// Package jit is the tracing JIT: it counts entries into user functions and
// loop headers, and once a site is hot enough and passes its candidacy
// gates, lowers the bytecode region to LLVM IR, compiles it to a native
// shared object, and calls the result through cgo. A site that fails
// compilation for any reason is marked permanently non-JITable so future
// entries skip straight back to the interpreter without retrying.
package jit

import (
	"sync"

	"github.com/nomissbowling/rapidus/internal/value"
)

// siteState is one hot-path counter's position in the Unseen → Counting →
// Native|Dead state machine. There is no Compiling state: compilation runs
// to completion inline while the Tracer's lock is held, so no caller can
// observe a site mid-compile.
type siteState int

const (
	stateUnseen siteState = iota
	stateCounting
	stateNative
	stateDead
)

// funcThreshold / loopThreshold are the entry counts that promote a site
// from Counting to an attempted compilation.
const (
	funcThreshold = 5
	loopThreshold = 7
)

// funcKey identifies a function-entry hot site; loopKey additionally
// carries the pc of the loop_start instruction, since one function can
// contain many independently-tracked loops.
type funcKey value.FuncId

type loopKey struct {
	id value.FuncId
	pc int
}

// siteRecord is the bookkeeping kept per hot site: its state, its entry
// count, and — once Native — the compiled entry the tracer calls instead of
// asking the codegen pipeline to run again.
type siteRecord struct {
	state  siteState
	count  int
	native *nativeFunc // function sites only
	loop   *nativeLoop // loop sites only
}

// Tracer is the concrete JIT: it owns the hot-path tables and the native
// code cache, and implements the three operations the interpreter consults
// (TryEnterFunction, TryEnterLoop, RecordReturnType — see the JIT interface
// in internal/vm/jit.go). Safe
// to share across goroutines even though the interpreter itself never calls
// it concurrently, since a future embedding (e.g. a REPL with a background
// warmup pass) would otherwise need to relearn this.
type Tracer struct {
	mu       sync.Mutex
	funcs    map[funcKey]*siteRecord
	loops    map[loopKey]*siteRecord
	retTypes map[funcKey]returnShape
	pipeline *nativePipeline
}

// NewTracer returns a Tracer backed by a fresh native compilation pipeline.
// dir is a scratch directory the pipeline writes .ll/.o/.so files into;
// an empty dir uses os.TempDir().
func NewTracer(dir string) *Tracer {
	return &Tracer{
		funcs:    make(map[funcKey]*siteRecord),
		loops:    make(map[loopKey]*siteRecord),
		retTypes: make(map[funcKey]returnShape),
		pipeline: newNativePipeline(dir),
	}
}

func (t *Tracer) funcSite(id value.FuncId) *siteRecord {
	k := funcKey(id)
	r, ok := t.funcs[k]
	if !ok {
		r = &siteRecord{}
		t.funcs[k] = r
	}
	return r
}

func (t *Tracer) loopSite(id value.FuncId, pc int) *siteRecord {
	k := loopKey{id, pc}
	r, ok := t.loops[k]
	if !ok {
		r = &siteRecord{}
		t.loops[k] = r
	}
	return r
}

// returnShape records only that a return was observed for a function site;
// it does not record the returned value's kind. compileFunction does not
// consult it: every compiled function entry returns a double, and
// runNativeFunc boxes the result as a Number.
type returnShape struct {
	seen bool
}
