package interpreter

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ojpbarbosa/rinha-interpreter/pkg/ast"
	"github.com/ojpbarbosa/rinha-interpreter/pkg/runtime"
)

// ErrEmptyProgram is returned when a file carries no root expression.
var ErrEmptyProgram = errors.New("program has no expression")

// Interpreter evaluates rinha terms against one root environment.
type Interpreter struct {
	global *runtime.Environment
	stdout io.Writer
	stderr io.Writer
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithStdout redirects the output of print.
func WithStdout(w io.Writer) Option {
	return func(i *Interpreter) {
		if w != nil {
			i.stdout = w
		}
	}
}

// WithStderr redirects the diagnostics written by Interpret.
func WithStderr(w io.Writer) Option {
	return func(i *Interpreter) {
		if w != nil {
			i.stderr = w
		}
	}
}

// New returns an interpreter with an empty global environment.
func New(opts ...Option) *Interpreter {
	i := &Interpreter{
		global: runtime.NewEnvironment(nil),
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// GlobalEnvironment returns the interpreter’s global environment.
func (i *Interpreter) GlobalEnvironment() *runtime.Environment {
	return i.global
}

// EvaluateFile evaluates the program's root term in the global environment
// and returns its value or the first runtime error.
func (i *Interpreter) EvaluateFile(file *ast.File) (runtime.Value, error) {
	if file == nil || file.Expression == nil {
		return nil, ErrEmptyProgram
	}
	return i.Evaluate(file.Expression, i.global)
}

// Interpret evaluates the program and reports a failure on the diagnostic
// writer instead of returning it.
func (i *Interpreter) Interpret(file *ast.File) {
	if _, err := i.EvaluateFile(file); err != nil {
		fmt.Fprintln(i.stderr, err)
	}
}
