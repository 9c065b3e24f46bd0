package interpreter

import (
	"errors"
	"fmt"

	"github.com/ojpbarbosa/rinha-interpreter/pkg/ast"
	"github.com/ojpbarbosa/rinha-interpreter/pkg/runtime"
)

// Evaluate reduces term in env. The first error aborts the whole reduction.
func (i *Interpreter) Evaluate(term ast.Term, env *runtime.Environment) (runtime.Value, error) {
	switch t := term.(type) {
	case *ast.Int:
		return runtime.IntValue{Val: t.Value}, nil
	case *ast.Str:
		return runtime.StringValue{Val: t.Value}, nil
	case *ast.Bool:
		return runtime.BoolValue{Val: t.Value}, nil
	case *ast.Var:
		val, err := env.Get(t.Text)
		if err != nil {
			return nil, argumentError(t.Loc(), err.Error())
		}
		return val, nil
	case *ast.Function:
		return &runtime.ClosureValue{Function: t, Env: env}, nil
	case *ast.Call:
		return i.evaluateCall(t, env)
	case *ast.Let:
		return i.evaluateLet(t, env)
	case *ast.If:
		return i.evaluateIf(t, env)
	case *ast.Print:
		val, err := i.Evaluate(t.Value, env)
		if err != nil {
			return nil, err
		}
		fmt.Fprintln(i.stdout, val.String())
		return val, nil
	case *ast.Tuple:
		first, err := i.Evaluate(t.First, env)
		if err != nil {
			return nil, err
		}
		second, err := i.Evaluate(t.Second, env)
		if err != nil {
			return nil, err
		}
		return &runtime.TupleValue{First: first, Second: second}, nil
	case *ast.First:
		tuple, err := i.evaluateTupleOperand(t.Value, t.Loc(), env)
		if err != nil {
			return nil, err
		}
		return tuple.First, nil
	case *ast.Second:
		tuple, err := i.evaluateTupleOperand(t.Value, t.Loc(), env)
		if err != nil {
			return nil, err
		}
		return tuple.Second, nil
	case *ast.Binary:
		return i.evaluateBinary(t, env)
	case nil:
		return nil, fmt.Errorf("missing term")
	default:
		return nil, fmt.Errorf("unsupported term kind %s", term.Kind())
	}
}

func (i *Interpreter) evaluateCall(call *ast.Call, env *runtime.Environment) (runtime.Value, error) {
	calleeVal, err := i.Evaluate(call.Callee, env)
	if err != nil {
		return nil, err
	}
	closure, ok := calleeVal.(*runtime.ClosureValue)
	if !ok {
		return nil, argumentError(call.Loc(), "not a function")
	}
	if len(call.Arguments) != closure.Arity() {
		return nil, argumentError(call.Loc(), fmt.Sprintf("expected %d arguments, got %d", closure.Arity(), len(call.Arguments)))
	}
	// Parameters live in a fresh frame chained to the captured one; a call
	// never writes into the captured frame.
	frame := closure.Env.Extend()
	for idx, arg := range call.Arguments {
		val, err := i.Evaluate(arg, env)
		if err != nil {
			return nil, err
		}
		frame.Define(closure.Function.Parameters[idx].Text, val)
	}
	return i.Evaluate(closure.Function.Value, frame)
}

func (i *Interpreter) evaluateLet(let *ast.Let, env *runtime.Environment) (runtime.Value, error) {
	val, err := i.Evaluate(let.Value, env)
	if err != nil {
		return nil, err
	}
	env.Define(let.Name.Text, val)
	return i.Evaluate(let.Next, env)
}

func (i *Interpreter) evaluateIf(expr *ast.If, env *runtime.Environment) (runtime.Value, error) {
	cond, err := i.Evaluate(expr.Condition, env)
	if err != nil {
		return nil, err
	}
	b, ok := cond.(runtime.BoolValue)
	if !ok {
		return nil, argumentError(expr.Loc(), "invalid condition")
	}
	if b.Val {
		return i.Evaluate(expr.Then, env)
	}
	return i.Evaluate(expr.Otherwise, env)
}

func (i *Interpreter) evaluateTupleOperand(term ast.Term, loc ast.Location, env *runtime.Environment) (*runtime.TupleValue, error) {
	val, err := i.Evaluate(term, env)
	if err != nil {
		return nil, err
	}
	tuple, ok := val.(*runtime.TupleValue)
	if !ok {
		return nil, argumentError(loc, "not a tuple")
	}
	return tuple, nil
}

func (i *Interpreter) evaluateBinary(expr *ast.Binary, env *runtime.Environment) (runtime.Value, error) {
	left, err := i.Evaluate(expr.LHS, env)
	if err != nil {
		return nil, err
	}
	right, err := i.Evaluate(expr.RHS, env)
	if err != nil {
		return nil, err
	}
	result, err := runtime.Apply(expr.Op, left, right)
	if err != nil {
		var opErr *runtime.OperationError
		if errors.As(err, &opErr) {
			return nil, &RuntimeError{Kind: opErr.Kind, Message: opErr.Message, Location: expr.Loc()}
		}
		return nil, err
	}
	return result, nil
}
