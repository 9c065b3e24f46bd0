package runtime

import (
	"errors"
	"math"
	"testing"

	"github.com/ojpbarbosa/rinha-interpreter/pkg/ast"
)

func intV(v int32) IntValue { return IntValue{Val: v} }

func strV(v string) StringValue { return StringValue{Val: v} }

func boolV(v bool) BoolValue { return BoolValue{Val: v} }

func pair(a, b Value) *TupleValue { return &TupleValue{First: a, Second: b} }

func closureV() *ClosureValue { return &ClosureValue{Function: ast.Fn(nil, ast.I(0))} }

func expectKind(t *testing.T, err error, want ErrorKind) {
	t.Helper()
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected *OperationError, got %T (%v)", err, err)
	}
	if opErr.Kind != want {
		t.Fatalf("error kind = %s, want %s (%s)", opErr.Kind, want, opErr.Message)
	}
}

func TestAddIsTotal(t *testing.T) {
	cases := []struct {
		left, right Value
		want        Value
	}{
		{intV(1), intV(2), intV(3)},
		{intV(1), strV("x"), strV("1x")},
		{strV("x"), intV(1), strV("x1")},
		{boolV(true), intV(1), strV("true1")},
		{strV("a"), strV("b"), strV("ab")},
		{pair(intV(1), intV(2)), strV("!"), strV("(1, 2)!")},
		{closureV(), intV(5), strV("<#closure>5")},
	}
	for _, tc := range cases {
		got, err := Apply(ast.OpAdd, tc.left, tc.right)
		if err != nil {
			t.Fatalf("%s + %s returned error: %v", tc.left, tc.right, err)
		}
		if got != tc.want {
			t.Fatalf("%s + %s = %#v, want %#v", tc.left, tc.right, got, tc.want)
		}
	}
}

func TestIntegerArithmetic(t *testing.T) {
	cases := []struct {
		op          ast.BinaryOp
		left, right int32
		want        int32
	}{
		{ast.OpSub, 10, 3, 7},
		{ast.OpMul, -4, 6, -24},
		{ast.OpDiv, 7, 2, 3},
		{ast.OpDiv, -7, 2, -3},
		{ast.OpDiv, 7, -2, -3},
		{ast.OpRem, 7, 3, 1},
		{ast.OpRem, -7, 3, -1},
		{ast.OpRem, 7, -3, 1},
		{ast.OpAdd, math.MaxInt32, 1, math.MinInt32},
	}
	for _, tc := range cases {
		got, err := Apply(tc.op, intV(tc.left), intV(tc.right))
		if err != nil {
			t.Fatalf("%d %s %d returned error: %v", tc.left, tc.op, tc.right, err)
		}
		if got != intV(tc.want) {
			t.Fatalf("%d %s %d = %v, want %d", tc.left, tc.op, tc.right, got, tc.want)
		}
	}
}

func TestDivisionByZero(t *testing.T) {
	for _, op := range []ast.BinaryOp{ast.OpDiv, ast.OpRem} {
		_, err := Apply(op, intV(1), intV(0))
		expectKind(t, err, DivisionByZero)
	}
	// operand kinds are checked before the zero test
	_, err := Apply(ast.OpDiv, strV("1"), intV(0))
	expectKind(t, err, InvalidBinaryOperation)
}

func TestArithmeticRequiresIntegers(t *testing.T) {
	for _, op := range []ast.BinaryOp{ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpRem} {
		_, err := Apply(op, intV(1), strV("x"))
		expectKind(t, err, InvalidBinaryOperation)
		_, err = Apply(op, boolV(true), intV(1))
		expectKind(t, err, InvalidBinaryOperation)
	}
	_, err := Apply(ast.OpSub, intV(1), strV("x"))
	if err.Error() != "InvalidBinaryOperation: cannot apply - to int and string" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestEqualityIsPairwise(t *testing.T) {
	cases := []struct {
		op          ast.BinaryOp
		left, right Value
		want        bool
	}{
		{ast.OpEq, intV(1), intV(1), true},
		{ast.OpEq, strV("a"), strV("b"), false},
		{ast.OpNeq, strV("a"), strV("b"), true},
		{ast.OpEq, boolV(true), boolV(true), true},
		{ast.OpNeq, boolV(true), boolV(false), true},
	}
	for _, tc := range cases {
		got, err := Apply(tc.op, tc.left, tc.right)
		if err != nil {
			t.Fatalf("%s %s %s returned error: %v", tc.left, tc.op, tc.right, err)
		}
		if got != boolV(tc.want) {
			t.Fatalf("%s %s %s = %v, want %v", tc.left, tc.op, tc.right, got, tc.want)
		}
	}

	rejected := [][2]Value{
		{intV(1), strV("1")},
		{boolV(true), intV(1)},
		{pair(intV(1), intV(2)), pair(intV(1), intV(2))},
		{closureV(), closureV()},
	}
	for _, operands := range rejected {
		for _, op := range []ast.BinaryOp{ast.OpEq, ast.OpNeq} {
			_, err := Apply(op, operands[0], operands[1])
			expectKind(t, err, InvalidBinaryOperation)
		}
	}
}

func TestOrdering(t *testing.T) {
	cases := []struct {
		op          ast.BinaryOp
		left, right Value
		want        bool
	}{
		{ast.OpLt, intV(1), intV(2), true},
		{ast.OpLte, intV(2), intV(2), true},
		{ast.OpGt, intV(-1), intV(2), false},
		{ast.OpGte, intV(3), intV(2), true},
		{ast.OpLt, strV("abc"), strV("abd"), true},
		{ast.OpGt, strV("b"), strV("abc"), true},
		{ast.OpLte, strV("Z"), strV("a"), true},
	}
	for _, tc := range cases {
		got, err := Apply(tc.op, tc.left, tc.right)
		if err != nil {
			t.Fatalf("%s %s %s returned error: %v", tc.left, tc.op, tc.right, err)
		}
		if got != boolV(tc.want) {
			t.Fatalf("%s %s %s = %v, want %v", tc.left, tc.op, tc.right, got, tc.want)
		}
	}
	for _, op := range []ast.BinaryOp{ast.OpLt, ast.OpLte, ast.OpGt, ast.OpGte} {
		_, err := Apply(op, intV(1), strV("1"))
		expectKind(t, err, InvalidBinaryOperation)
		_, err = Apply(op, boolV(false), boolV(true))
		expectKind(t, err, InvalidBinaryOperation)
	}
}

func TestLogicalOperators(t *testing.T) {
	got, err := Apply(ast.OpAnd, boolV(true), boolV(false))
	if err != nil || got != boolV(false) {
		t.Fatalf("true && false = %v, %v", got, err)
	}
	got, err = Apply(ast.OpOr, boolV(false), boolV(true))
	if err != nil || got != boolV(true) {
		t.Fatalf("false || true = %v, %v", got, err)
	}
	// no short-circuit: a non-bool right operand fails even when the left decides
	_, err = Apply(ast.OpAnd, boolV(false), intV(1))
	expectKind(t, err, InvalidBinaryOperation)
	_, err = Apply(ast.OpOr, boolV(true), strV("x"))
	expectKind(t, err, InvalidBinaryOperation)
}
