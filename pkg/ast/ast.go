package ast

import "fmt"

type TermKind string

const (
	KindInt      TermKind = "Int"
	KindStr      TermKind = "Str"
	KindBool     TermKind = "Bool"
	KindVar      TermKind = "Var"
	KindFunction TermKind = "Function"
	KindCall     TermKind = "Call"
	KindLet      TermKind = "Let"
	KindIf       TermKind = "If"
	KindPrint    TermKind = "Print"
	KindTuple    TermKind = "Tuple"
	KindFirst    TermKind = "First"
	KindSecond   TermKind = "Second"
	KindBinary   TermKind = "Binary"
)

// Location is the source span a term was parsed from. Offsets are bytes
// into the file named by Filename.
type Location struct {
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Filename string `json:"filename"`
}

func (l Location) String() string {
	name := l.Filename
	if name == "" {
		name = "<unknown>"
	}
	return fmt.Sprintf("%s:%d..%d", name, l.Start, l.End)
}

// IsZero reports whether the location carries no position information.
func (l Location) IsZero() bool {
	return l.Start == 0 && l.End == 0 && l.Filename == ""
}

// File is a parsed program: the root term plus the metadata the parser
// attached to it.
type File struct {
	Name       string   `json:"name"`
	Expression Term     `json:"expression"`
	Location   Location `json:"location"`
}

type Term interface {
	Kind() TermKind
	Loc() Location
	isTerm()
}

type termImpl struct {
	Type     TermKind `json:"kind"`
	Location Location `json:"location"`
}

func newTermImpl(kind TermKind, loc Location) termImpl {
	return termImpl{Type: kind, Location: loc}
}

func (t termImpl) Kind() TermKind { return t.Type }
func (t termImpl) Loc() Location  { return t.Location }
func (termImpl) isTerm()          {}

func (t *termImpl) setLocation(loc Location) { t.Location = loc }

// Literals

type Int struct {
	termImpl
	Value int32 `json:"value"`
}

func NewInt(value int32, loc Location) *Int {
	return &Int{termImpl: newTermImpl(KindInt, loc), Value: value}
}

type Str struct {
	termImpl
	Value string `json:"value"`
}

func NewStr(value string, loc Location) *Str {
	return &Str{termImpl: newTermImpl(KindStr, loc), Value: value}
}

type Bool struct {
	termImpl
	Value bool `json:"value"`
}

func NewBool(value bool, loc Location) *Bool {
	return &Bool{termImpl: newTermImpl(KindBool, loc), Value: value}
}

// Var references a binding by name.
type Var struct {
	termImpl
	Text string `json:"text"`
}

func NewVar(text string, loc Location) *Var {
	return &Var{termImpl: newTermImpl(KindVar, loc), Text: text}
}

// Parameter names a function parameter or a let binding.
type Parameter struct {
	Text     string   `json:"text"`
	Location Location `json:"location"`
}

// Functions and calls

type Function struct {
	termImpl
	Parameters []Parameter `json:"parameters"`
	Value      Term        `json:"value"`
}

func NewFunction(params []Parameter, body Term, loc Location) *Function {
	return &Function{termImpl: newTermImpl(KindFunction, loc), Parameters: params, Value: body}
}

type Call struct {
	termImpl
	Callee    Term   `json:"callee"`
	Arguments []Term `json:"arguments"`
}

func NewCall(callee Term, args []Term, loc Location) *Call {
	return &Call{termImpl: newTermImpl(KindCall, loc), Callee: callee, Arguments: args}
}

// Bindings and control flow

// Let binds Name in the current frame, then evaluates Next in that frame.
type Let struct {
	termImpl
	Name  Parameter `json:"name"`
	Value Term      `json:"value"`
	Next  Term      `json:"next"`
}

func NewLet(name Parameter, value Term, next Term, loc Location) *Let {
	return &Let{termImpl: newTermImpl(KindLet, loc), Name: name, Value: value, Next: next}
}

type If struct {
	termImpl
	Condition Term `json:"condition"`
	Then      Term `json:"then"`
	Otherwise Term `json:"otherwise"`
}

func NewIf(cond, then, otherwise Term, loc Location) *If {
	return &If{termImpl: newTermImpl(KindIf, loc), Condition: cond, Then: then, Otherwise: otherwise}
}

type Print struct {
	termImpl
	Value Term `json:"value"`
}

func NewPrint(value Term, loc Location) *Print {
	return &Print{termImpl: newTermImpl(KindPrint, loc), Value: value}
}

// Tuples

type Tuple struct {
	termImpl
	First  Term `json:"first"`
	Second Term `json:"second"`
}

func NewTuple(first, second Term, loc Location) *Tuple {
	return &Tuple{termImpl: newTermImpl(KindTuple, loc), First: first, Second: second}
}

type First struct {
	termImpl
	Value Term `json:"value"`
}

func NewFirst(value Term, loc Location) *First {
	return &First{termImpl: newTermImpl(KindFirst, loc), Value: value}
}

type Second struct {
	termImpl
	Value Term `json:"value"`
}

func NewSecond(value Term, loc Location) *Second {
	return &Second{termImpl: newTermImpl(KindSecond, loc), Value: value}
}

// Binary operations

type Binary struct {
	termImpl
	LHS Term     `json:"lhs"`
	Op  BinaryOp `json:"op"`
	RHS Term     `json:"rhs"`
}

func NewBinary(op BinaryOp, lhs, rhs Term, loc Location) *Binary {
	return &Binary{termImpl: newTermImpl(KindBinary, loc), LHS: lhs, Op: op, RHS: rhs}
}
