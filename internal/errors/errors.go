// Package errors implements the runtime's error taxonomy, plus the
// syntax/compile-time kinds the front end (kept as an external collaborator)
// still needs to report.
//
// Narrowed to four runtime kinds (Reference, Type, Unimplemented, Unknown)
// plus Syntax/Compile for the front-end boundary. RuntimeError.Wrap attaches
// a github.com/pkg/errors cause to an error; the interpreter and JIT do not
// call it, and return their RuntimeErrors unwrapped.
package errors

import (
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// ErrorType names one member of the runtime's error taxonomy.
type ErrorType string

const (
	// Syntax and Compile are front-end kinds: lexing/parsing and bytecode
	// assembly are external collaborators, but their failures still need to
	// propagate to the CLI driver in the same shape.
	Syntax  ErrorType = "SyntaxError"
	Compile ErrorType = "CompileError"

	// Reference: name not found in scope chain.
	Reference ErrorType = "ReferenceError"
	// Type: value used in a role it does not support.
	Type ErrorType = "TypeError"
	// Unimplemented: operation valid in the language but not supported by
	// this runtime.
	Unimplemented ErrorType = "UnimplementedError"
	// Unknown: reserved for invariant violations.
	Unknown ErrorType = "UnknownError"
)

// SourceLocation is a position in source text.
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

// StackFrame is one call-stack entry for diagnostics.
type StackFrame struct {
	Function string
	File     string
	Line     int
	Column   int
}

// RuntimeError is the core's error value: every opcode handler in
// internal/vm returns one of these rather than panicking. Errors bubble to the caller of run without
// unwinding the scope stack further than necessary for diagnostics.
type RuntimeError struct {
	Type      ErrorType
	Message   string
	Location  SourceLocation
	CallStack []StackFrame
	Source    string
	cause     error
}

func (e *RuntimeError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: %s", e.Type, e.Message))
	if e.Location.File != "" {
		sb.WriteString(fmt.Sprintf("\n  at %s:%d:%d", e.Location.File, e.Location.Line, e.Location.Column))
	}
	for _, fr := range e.CallStack {
		if fr.Function != "" {
			sb.WriteString(fmt.Sprintf("\n  at %s (%s:%d:%d)", fr.Function, fr.File, fr.Line, fr.Column))
		} else {
			sb.WriteString(fmt.Sprintf("\n  at %s:%d:%d", fr.File, fr.Line, fr.Column))
		}
	}
	return sb.String()
}

// Cause implements github.com/pkg/errors' Causer interface.
func (e *RuntimeError) Cause() error { return e.cause }

// Unwrap supports errors.Is/As from the standard library too.
func (e *RuntimeError) Unwrap() error { return e.cause }

// NewReferenceError builds the Reference kind: "'<name>' is not defined".
func NewReferenceError(name string) *RuntimeError {
	return &RuntimeError{Type: Reference, Message: fmt.Sprintf("'%s' is not defined", name)}
}

func NewTypeError(format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{Type: Type, Message: fmt.Sprintf(format, args...)}
}

func NewUnimplementedError(format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{Type: Unimplemented, Message: fmt.Sprintf(format, args...)}
}

func NewUnknownError(format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{Type: Unknown, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches cause as the RuntimeError's underlying cause, using
// pkg/errors so the original stack trace survives to the CLI driver.
func (e *RuntimeError) Wrap(cause error) *RuntimeError {
	e.cause = pkgerrors.WithStack(cause)
	return e
}

func (e *RuntimeError) WithLocation(file string, line, col int) *RuntimeError {
	e.Location = SourceLocation{File: file, Line: line, Column: col}
	return e
}

func (e *RuntimeError) WithStack(stack []StackFrame) *RuntimeError {
	e.CallStack = stack
	return e
}

// --- front-end (kept for the lexer/parser/compiler external collaborator) ---

// SentraError is the front-end diagnostic shape, kept under its original
// name because internal/parser and internal/lexer (kept largely as-is, as
// external collaborators) already construct it by this name and field
// layout.
type SentraError struct {
	Type      ErrorType
	Message   string
	Location  SourceLocation
	CallStack []StackFrame
	Source    string
}

func (e *SentraError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: %s\n", e.Type, e.Message))
	if e.Location.File != "" {
		sb.WriteString(fmt.Sprintf("  at %s:%d:%d\n", e.Location.File, e.Location.Line, e.Location.Column))
		if e.Source != "" {
			sb.WriteString(fmt.Sprintf("\n  %d | %s\n", e.Location.Line, e.Source))
			sb.WriteString(strings.Repeat(" ", len(fmt.Sprintf("%d | ", e.Location.Line))))
			if e.Location.Column > 0 {
				sb.WriteString(strings.Repeat(" ", e.Location.Column-1))
			}
			sb.WriteString("^\n")
		}
	}
	if len(e.CallStack) > 0 {
		sb.WriteString("\nCall Stack:\n")
		for _, frame := range e.CallStack {
			if frame.Function != "" {
				sb.WriteString(fmt.Sprintf("  at %s (%s:%d:%d)\n", frame.Function, frame.File, frame.Line, frame.Column))
			} else {
				sb.WriteString(fmt.Sprintf("  at %s:%d:%d\n", frame.File, frame.Line, frame.Column))
			}
		}
	}
	return sb.String()
}

func NewSyntaxError(message string, file string, line, column int) *SentraError {
	return &SentraError{Type: Syntax, Message: message, Location: SourceLocation{File: file, Line: line, Column: column}}
}

func (e *SentraError) WithSource(source string) *SentraError {
	e.Source = source
	return e
}

func (e *SentraError) WithStack(stack []StackFrame) *SentraError {
	e.CallStack = stack
	return e
}
