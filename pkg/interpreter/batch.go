package interpreter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ojpbarbosa/rinha-interpreter/pkg/ast"
	"github.com/ojpbarbosa/rinha-interpreter/pkg/runtime"
)

// Program is one entry of a batch run.
type Program struct {
	File    *ast.File
	Timeout time.Duration
}

// Result is the outcome of one batch entry. Output holds everything the
// program printed, even when it failed part way.
type Result struct {
	Name     string
	Value    runtime.Value
	Output   string
	Err      error
	Duration time.Duration
}

// RunPrograms evaluates programs concurrently with at most limit running at
// once (limit <= 0 means unbounded). Every program gets its own interpreter
// and output buffer. Results are returned in input order.
func RunPrograms(ctx context.Context, programs []Program, limit int) []Result {
	results := make([]Result, len(programs))
	exec := NewGoroutineExecutor()

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for idx, program := range programs {
		idx, program := idx, program
		g.Go(func() error {
			results[idx] = runProgram(ctx, exec, program)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func runProgram(ctx context.Context, exec Executor, program Program) Result {
	res := Result{}
	if program.File != nil {
		res.Name = program.File.Name
	}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	if program.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, program.Timeout)
		defer cancel()
	}

	out := &syncBuffer{}
	interp := New(WithStdout(out), WithStderr(out))
	start := time.Now()
	val, err := interp.EvaluateContext(ctx, exec, program.File)
	res.Duration = time.Since(start)
	res.Value = val
	res.Output = out.String()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			err = fmt.Errorf("evaluation abandoned after %s: %w", res.Duration.Round(time.Millisecond), err)
		}
		res.Err = err
	}
	return res
}

// syncBuffer is written by an evaluation goroutine that may outlive the
// reader when a run is abandoned.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
