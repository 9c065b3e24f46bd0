package runtime

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ojpbarbosa/rinha-interpreter/pkg/ast"
)

// Kind identifies the runtime value category.
type Kind int

const (
	KindInt Kind = iota
	KindBool
	KindString
	KindTuple
	KindClosure
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindTuple:
		return "tuple"
	case KindClosure:
		return "closure"
	default:
		return fmt.Sprintf("unknown_kind_%d", int(k))
	}
}

// Value is the shared behaviour for all runtime values. String returns the
// form print writes.
type Value interface {
	Kind() Kind
	String() string
}

//-----------------------------------------------------------------------------
// Scalars
//-----------------------------------------------------------------------------

type IntValue struct {
	Val int32
}

func (v IntValue) Kind() Kind      { return KindInt }
func (v IntValue) String() string { return strconv.FormatInt(int64(v.Val), 10) }

type BoolValue struct {
	Val bool
}

func (v BoolValue) Kind() Kind      { return KindBool }
func (v BoolValue) String() string { return strconv.FormatBool(v.Val) }

type StringValue struct {
	Val string
}

func (v StringValue) Kind() Kind      { return KindString }
func (v StringValue) String() string { return v.Val }

//-----------------------------------------------------------------------------
// Tuples
//-----------------------------------------------------------------------------

// TupleValue is an ordered pair. Elements are values in their own right, not
// references into the term tree.
type TupleValue struct {
	First  Value
	Second Value
}

func (v *TupleValue) Kind() Kind { return KindTuple }

func (v *TupleValue) String() string {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(v.First.String())
	b.WriteString(", ")
	b.WriteString(v.Second.String())
	b.WriteByte(')')
	return b.String()
}

//-----------------------------------------------------------------------------
// Closures
//-----------------------------------------------------------------------------

// ClosureValue pairs a function literal with the frame that was live when the
// literal was evaluated. Env is shared, never copied.
type ClosureValue struct {
	Function *ast.Function
	Env      *Environment
}

func (v *ClosureValue) Kind() Kind { return KindClosure }

func (v *ClosureValue) String() string { return "<#closure>" }

// Arity is the number of parameters the closure expects.
func (v *ClosureValue) Arity() int {
	if v.Function == nil {
		return 0
	}
	return len(v.Function.Parameters)
}
