package jit

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>

typedef double (*fn0)(void);
typedef double (*fn1)(double);
typedef double (*fn2)(double, double);
typedef double (*fn3)(double, double, double);
typedef int (*loopfn)(double**);

static double call_fn0(void *f) { return ((fn0)f)(); }
static double call_fn1(void *f, double a0) { return ((fn1)f)(a0); }
static double call_fn2(void *f, double a0, double a1) { return ((fn2)f)(a0, a1); }
static double call_fn3(void *f, double a0, double a1, double a2) { return ((fn3)f)(a0, a1, a2); }
static int call_loopfn(void *f, double **locals) { return ((loopfn)f)(locals); }
*/
import "C"

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"unsafe"

	"github.com/llir/llvm/ir"
)

// nativePipeline owns the scratch directory and monotonic counter used to
// give every compiled module a unique file basename, and the set of shared
// objects dlopen'd so far (kept alive for the process's lifetime, per the
// "native entries cached for the lifetime of the process" resource rule).
type nativePipeline struct {
	dir     string
	counter int64
	handles []unsafe.Pointer
}

func newNativePipeline(dir string) *nativePipeline {
	if dir == "" {
		dir = os.TempDir()
	}
	return &nativePipeline{dir: dir}
}

// nativeFunc is a compiled function-JIT entry: a dlsym'd symbol plus its
// declared arity, called through the fixed-arity C trampolines above
// (cgo cannot call an arbitrary function pointer without one).
type nativeFunc struct {
	sym   unsafe.Pointer
	arity int
}

func (n *nativeFunc) call(args []float64) float64 {
	switch n.arity {
	case 0:
		return float64(C.call_fn0(n.sym))
	case 1:
		return float64(C.call_fn1(n.sym, C.double(args[0])))
	case 2:
		return float64(C.call_fn2(n.sym, C.double(args[0]), C.double(args[1])))
	default:
		return float64(C.call_fn3(n.sym, C.double(args[0]), C.double(args[1]), C.double(args[2])))
	}
}

// nativeLoop is a compiled loop-JIT entry: `i32 (double**)`, per the
// pointer-to-pointer local-variable ABI.
type nativeLoop struct {
	sym unsafe.Pointer
}

func (n *nativeLoop) call(locals []*float64) int {
	if len(locals) == 0 {
		return int(C.call_loopfn(n.sym, nil))
	}
	ptrs := make([]*C.double, len(locals))
	for i, p := range locals {
		ptrs[i] = (*C.double)(unsafe.Pointer(p))
	}
	return int(C.call_loopfn(n.sym, (**C.double)(unsafe.Pointer(&ptrs[0]))))
}

// compile writes module m to a .ll file, lowers it to a shared object with
// llc+cc, and dlopens the result. The module declares the intrinsic ABI
// symbols (console_log_*, process_stdout_write, math_*) as externals; they
// resolve at dlopen time against this executable's own //export'd bridge
// (intrinsics.go).
func (p *nativePipeline) compile(m *ir.Module, entrySymbol string) (unsafe.Pointer, error) {
	id := atomic.AddInt64(&p.counter, 1)
	base := filepath.Join(p.dir, fmt.Sprintf("jit_%d_%s", id, entrySymbol))
	llPath := base + ".ll"
	oPath := base + ".o"
	soPath := base + ".so"

	if err := os.WriteFile(llPath, []byte(m.String()), 0o644); err != nil {
		return nil, fmt.Errorf("jit: write %s: %w", llPath, err)
	}
	defer os.Remove(llPath)

	if out, err := exec.Command("llc", "-filetype=obj", "-relocation-model=pic", "-o", oPath, llPath).CombinedOutput(); err != nil {
		return nil, fmt.Errorf("jit: llc failed: %w: %s", err, out)
	}
	defer os.Remove(oPath)

	if out, err := exec.Command("cc", "-shared", "-fPIC", "-o", soPath, oPath, "-lm").CombinedOutput(); err != nil {
		return nil, fmt.Errorf("jit: cc failed: %w: %s", err, out)
	}
	defer os.Remove(soPath)

	cPath := C.CString(soPath)
	defer C.free(unsafe.Pointer(cPath))
	// RTLD_GLOBAL so the emitted module's undefined console_log_*/
	// process_stdout_write/math_* references resolve against this
	// executable's own //export'd symbols (intrinsics.go) rather than
	// failing to link at load time.
	handle := C.dlopen(cPath, C.RTLD_NOW|C.RTLD_GLOBAL)
	if handle == nil {
		return nil, fmt.Errorf("jit: dlopen %s failed", soPath)
	}
	p.handles = append(p.handles, handle)

	cSym := C.CString(entrySymbol)
	defer C.free(unsafe.Pointer(cSym))
	sym := C.dlsym(handle, cSym)
	if sym == nil {
		return nil, fmt.Errorf("jit: dlsym %s not found in %s", entrySymbol, soPath)
	}
	return unsafe.Pointer(sym), nil
}
