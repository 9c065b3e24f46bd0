package ast

import (
	"encoding/json"
	"fmt"
)

// BinaryOp is serialized by name ("Add", "Lt", ...).
type BinaryOp string

const (
	OpAdd BinaryOp = "Add"
	OpSub BinaryOp = "Sub"
	OpMul BinaryOp = "Mul"
	OpDiv BinaryOp = "Div"
	OpRem BinaryOp = "Rem"
	OpEq  BinaryOp = "Eq"
	OpNeq BinaryOp = "Neq"
	OpLt  BinaryOp = "Lt"
	OpGt  BinaryOp = "Gt"
	OpLte BinaryOp = "Lte"
	OpGte BinaryOp = "Gte"
	OpAnd BinaryOp = "And"
	OpOr  BinaryOp = "Or"
)

var operatorSymbols = map[BinaryOp]string{
	OpAdd: "+",
	OpSub: "-",
	OpMul: "*",
	OpDiv: "/",
	OpRem: "%",
	OpEq:  "==",
	OpNeq: "!=",
	OpLt:  "<",
	OpGt:  ">",
	OpLte: "<=",
	OpGte: ">=",
	OpAnd: "&&",
	OpOr:  "||",
}

// IsValid reports whether the operator is one of the known names.
func (op BinaryOp) IsValid() bool {
	_, ok := operatorSymbols[op]
	return ok
}

// Symbol returns the operator as it appears in source, e.g. "<=" for Lte.
func (op BinaryOp) Symbol() string {
	if sym, ok := operatorSymbols[op]; ok {
		return sym
	}
	return string(op)
}

func (op BinaryOp) String() string { return op.Symbol() }

func (op *BinaryOp) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("binary operator must be a string: %w", err)
	}
	parsed, err := ParseBinaryOp(name)
	if err != nil {
		return err
	}
	*op = parsed
	return nil
}

func (op BinaryOp) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(op))
}

// ParseBinaryOp validates an operator name from the wire format.
func ParseBinaryOp(name string) (BinaryOp, error) {
	op := BinaryOp(name)
	if !op.IsValid() {
		return "", fmt.Errorf("unknown binary operator %q", name)
	}
	return op, nil
}
