package runtime

import (
	"fmt"
	"strings"

	"github.com/ojpbarbosa/rinha-interpreter/pkg/ast"
)

// ErrorKind tags a runtime failure. The set is closed.
type ErrorKind string

const (
	ArgumentError          ErrorKind = "ArgumentError"
	DivisionByZero         ErrorKind = "DivisionByZero"
	InvalidBinaryOperation ErrorKind = "InvalidBinaryOperation"
)

// OperationError is returned by the operators below. It carries no source
// location; the evaluator attaches the span of the binary expression.
type OperationError struct {
	Kind    ErrorKind
	Message string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func invalidOperands(op ast.BinaryOp, left, right Value) error {
	return &OperationError{
		Kind:    InvalidBinaryOperation,
		Message: fmt.Sprintf("cannot apply %s to %s and %s", op.Symbol(), left.Kind(), right.Kind()),
	}
}

func divisionByZero(op ast.BinaryOp) error {
	return &OperationError{
		Kind:    DivisionByZero,
		Message: fmt.Sprintf("right operand of %s is zero", op.Symbol()),
	}
}

// Apply dispatches a binary operator over two evaluated operands.
func Apply(op ast.BinaryOp, left, right Value) (Value, error) {
	switch op {
	case ast.OpAdd:
		return Add(left, right), nil
	case ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpRem:
		return Arithmetic(op, left, right)
	case ast.OpEq, ast.OpNeq:
		eq, err := Equal(op, left, right)
		if err != nil {
			return nil, err
		}
		if op == ast.OpNeq {
			eq = !eq
		}
		return BoolValue{Val: eq}, nil
	case ast.OpLt, ast.OpLte, ast.OpGt, ast.OpGte:
		cmp, err := Compare(op, left, right)
		if err != nil {
			return nil, err
		}
		return BoolValue{Val: comparisonOp(op, cmp)}, nil
	case ast.OpAnd, ast.OpOr:
		return Logical(op, left, right)
	default:
		return nil, &OperationError{Kind: InvalidBinaryOperation, Message: fmt.Sprintf("unsupported binary operator %q", string(op))}
	}
}

// Add sums two integers; every other pairing concatenates the display forms.
func Add(left, right Value) Value {
	if lv, ok := left.(IntValue); ok {
		if rv, ok := right.(IntValue); ok {
			return IntValue{Val: lv.Val + rv.Val}
		}
	}
	var b strings.Builder
	b.WriteString(left.String())
	b.WriteString(right.String())
	return StringValue{Val: b.String()}
}

// Arithmetic implements -, *, / and % over 32-bit integers. Division
// truncates toward zero and the remainder takes the sign of the dividend.
func Arithmetic(op ast.BinaryOp, left, right Value) (Value, error) {
	lv, lok := left.(IntValue)
	rv, rok := right.(IntValue)
	if !lok || !rok {
		return nil, invalidOperands(op, left, right)
	}
	switch op {
	case ast.OpAdd:
		return IntValue{Val: lv.Val + rv.Val}, nil
	case ast.OpSub:
		return IntValue{Val: lv.Val - rv.Val}, nil
	case ast.OpMul:
		return IntValue{Val: lv.Val * rv.Val}, nil
	case ast.OpDiv:
		if rv.Val == 0 {
			return nil, divisionByZero(op)
		}
		return IntValue{Val: lv.Val / rv.Val}, nil
	case ast.OpRem:
		if rv.Val == 0 {
			return nil, divisionByZero(op)
		}
		return IntValue{Val: lv.Val % rv.Val}, nil
	default:
		return nil, invalidOperands(op, left, right)
	}
}

// Equal compares two values of the same scalar kind. Mixed kinds, tuples and
// closures are rejected rather than reported unequal.
func Equal(op ast.BinaryOp, left, right Value) (bool, error) {
	switch lv := left.(type) {
	case IntValue:
		if rv, ok := right.(IntValue); ok {
			return lv.Val == rv.Val, nil
		}
	case StringValue:
		if rv, ok := right.(StringValue); ok {
			return lv.Val == rv.Val, nil
		}
	case BoolValue:
		if rv, ok := right.(BoolValue); ok {
			return lv.Val == rv.Val, nil
		}
	}
	return false, invalidOperands(op, left, right)
}

// Compare orders two integers numerically or two strings bytewise.
func Compare(op ast.BinaryOp, left, right Value) (int, error) {
	switch lv := left.(type) {
	case IntValue:
		if rv, ok := right.(IntValue); ok {
			switch {
			case lv.Val < rv.Val:
				return -1, nil
			case lv.Val > rv.Val:
				return 1, nil
			default:
				return 0, nil
			}
		}
	case StringValue:
		if rv, ok := right.(StringValue); ok {
			return strings.Compare(lv.Val, rv.Val), nil
		}
	}
	return 0, invalidOperands(op, left, right)
}

// Logical implements && and ||. Both operands are already evaluated.
func Logical(op ast.BinaryOp, left, right Value) (Value, error) {
	lb, lok := left.(BoolValue)
	rb, rok := right.(BoolValue)
	if !lok || !rok {
		return nil, invalidOperands(op, left, right)
	}
	switch op {
	case ast.OpAnd:
		return BoolValue{Val: lb.Val && rb.Val}, nil
	case ast.OpOr:
		return BoolValue{Val: lb.Val || rb.Val}, nil
	default:
		return nil, invalidOperands(op, left, right)
	}
}

func comparisonOp(op ast.BinaryOp, cmp int) bool {
	switch op {
	case ast.OpLt:
		return cmp < 0
	case ast.OpLte:
		return cmp <= 0
	case ast.OpGt:
		return cmp > 0
	case ast.OpGte:
		return cmp >= 0
	default:
		return false
	}
}
