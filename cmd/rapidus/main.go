// Command rapidus loads a source file, compiles it, and runs it: the one
// driver responsibility the core interpreter/JIT triad depends on from the
// outside.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/nomissbowling/rapidus/internal/bytecode"
	"github.com/nomissbowling/rapidus/internal/compiler"
	"github.com/nomissbowling/rapidus/internal/errors"
	"github.com/nomissbowling/rapidus/internal/jit"
	"github.com/nomissbowling/rapidus/internal/lexer"
	"github.com/nomissbowling/rapidus/internal/parser"
	"github.com/nomissbowling/rapidus/internal/vm"
)

const usage = `usage: rapidus [flags] <script>

flags:
  -no-jit          disable the tracing JIT; every call and loop interprets
  -jit-scratch dir  scratch directory for compiled .ll/.o/.so files (default: system temp)
`

func main() {
	noJIT := flag.Bool("no-jit", false, "disable the tracing JIT")
	jitScratch := flag.String("jit-scratch", "", "scratch directory for JIT-compiled shared objects")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	source, err := os.ReadFile(path)
	if err != nil {
		fatal(err)
	}

	chunk, err := compile(string(source), path)
	if err != nil {
		fatal(err)
	}

	var engine vm.JIT = vm.NoopJIT{}
	if !*noJIT {
		tracer := jit.NewTracer(*jitScratch)
		jit.SetSink(func(s string) { fmt.Print(s) })
		engine = tracer
	}

	machine := vm.New(engine)
	if _, err := machine.Run(chunk); err != nil {
		fatal(err)
	}
}

// compile drives the lexer/parser/bytecode-assembly external collaborators:
// scan to tokens, parse to an AST, then assemble to a Chunk. Top-level
// function declarations are hoisted ahead of other statements by the
// compiler itself, so they're visible before their point of use.
func compile(source, path string) (*bytecode.Chunk, error) {
	scanner := lexer.NewScanner(source)
	tokens := scanner.ScanTokens()

	p := parser.NewParserWithSource(tokens, source, path)
	stmts := p.Parse()
	if len(p.Errors) > 0 {
		return nil, errors.NewSyntaxError(p.Errors[0].Error(), path, 0, 0)
	}

	c := compiler.NewCompiler(path)
	return c.Compile(stmts), nil
}

func fatal(err error) {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		fmt.Fprintf(os.Stderr, "\x1b[31mrapidus: %v\x1b[0m\n", err)
	} else {
		fmt.Fprintf(os.Stderr, "rapidus: %v\n", err)
	}
	os.Exit(1)
}
