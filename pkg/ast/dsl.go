package ast

// Term helpers with zero locations, for building programs in Go code.

func I(value int32) *Int {
	return NewInt(value, Location{})
}

func S(value string) *Str {
	return NewStr(value, Location{})
}

func B(value bool) *Bool {
	return NewBool(value, Location{})
}

func V(name string) *Var {
	return NewVar(name, Location{})
}

func Param(name string) Parameter {
	return Parameter{Text: name}
}

func Fn(params []string, body Term) *Function {
	ps := make([]Parameter, 0, len(params))
	for _, name := range params {
		ps = append(ps, Param(name))
	}
	return NewFunction(ps, body, Location{})
}

func CallExpr(callee Term, args ...Term) *Call {
	if args == nil {
		args = []Term{}
	}
	return NewCall(callee, args, Location{})
}

func LetIn(name string, value Term, next Term) *Let {
	return NewLet(Param(name), value, next, Location{})
}

func IfElse(cond, then, otherwise Term) *If {
	return NewIf(cond, then, otherwise, Location{})
}

func PrintExpr(value Term) *Print {
	return NewPrint(value, Location{})
}

func Pair(first, second Term) *Tuple {
	return NewTuple(first, second, Location{})
}

func Fst(value Term) *First {
	return NewFirst(value, Location{})
}

func Snd(value Term) *Second {
	return NewSecond(value, Location{})
}

func Bin(op BinaryOp, lhs, rhs Term) *Binary {
	return NewBinary(op, lhs, rhs, Location{})
}

// At sets the location of term and returns it.
func At[T Term](term T, start, end int, filename string) T {
	SetLocation(term, Location{Start: start, End: end, Filename: filename})
	return term
}

// Prog wraps a root term into a File.
func Prog(name string, expr Term) *File {
	return &File{Name: name, Expression: expr, Location: expr.Loc()}
}
