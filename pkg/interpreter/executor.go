package interpreter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ojpbarbosa/rinha-interpreter/pkg/ast"
	"github.com/ojpbarbosa/rinha-interpreter/pkg/runtime"
)

// Task is a unit of evaluation work executed by an Executor.
type Task func(ctx context.Context) (runtime.Value, error)

// Executor abstracts where evaluation tasks run.
type Executor interface {
	Run(ctx context.Context, task Task) *Handle
}

// Status is the lifecycle state of a Handle.
type Status int

const (
	StatusPending Status = iota
	StatusResolved
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusResolved:
		return "resolved"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Handle tracks one task. The evaluator has no preemption point, so
// cancelling a handle releases its waiters while the task itself runs on
// until it returns; its late result is discarded.
type Handle struct {
	mu     sync.Mutex
	status Status
	result runtime.Value
	err    error
	done   chan struct{}
	cancel context.CancelFunc
}

func newHandle(cancel context.CancelFunc) *Handle {
	return &Handle{done: make(chan struct{}), cancel: cancel}
}

func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Done is closed once the handle leaves the pending state.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) settle(status Status, val runtime.Value, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status != StatusPending {
		return
	}
	h.status = status
	h.result = val
	h.err = err
	close(h.done)
	if h.cancel != nil {
		h.cancel()
	}
}

func (h *Handle) Resolve(val runtime.Value) { h.settle(StatusResolved, val, nil) }

func (h *Handle) Fail(err error) { h.settle(StatusFailed, nil, err) }

// Cancel abandons the task. Waiters observe context.Canceled.
func (h *Handle) Cancel() { h.settle(StatusCancelled, nil, context.Canceled) }

// Await blocks until the task settles or ctx ends. A ctx that ends first
// cancels the handle and its error is returned.
func (h *Handle) Await(ctx context.Context) (runtime.Value, error) {
	select {
	case <-h.done:
	case <-ctx.Done():
		h.settle(StatusCancelled, nil, ctx.Err())
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, h.err
}

// GoroutineExecutor runs every task on its own goroutine.
type GoroutineExecutor struct{}

func NewGoroutineExecutor() *GoroutineExecutor {
	return &GoroutineExecutor{}
}

func (e *GoroutineExecutor) Run(ctx context.Context, task Task) *Handle {
	if ctx == nil {
		ctx = context.Background()
	}
	taskCtx, cancel := context.WithCancel(ctx)
	handle := newHandle(cancel)
	go func() {
		result, err := safeInvoke(taskCtx, task)
		switch {
		case err == nil:
			handle.Resolve(result)
		case errors.Is(err, context.Canceled):
			handle.Cancel()
		default:
			handle.Fail(err)
		}
	}()
	return handle
}

func safeInvoke(ctx context.Context, task Task) (result runtime.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task(ctx)
}

// EvaluateContext evaluates the program on exec and waits for it within
// ctx. When ctx ends first the run is abandoned and ctx's error returned.
func (i *Interpreter) EvaluateContext(ctx context.Context, exec Executor, file *ast.File) (runtime.Value, error) {
	if exec == nil {
		exec = NewGoroutineExecutor()
	}
	handle := exec.Run(ctx, func(context.Context) (runtime.Value, error) {
		return i.EvaluateFile(file)
	})
	return handle.Await(ctx)
}
